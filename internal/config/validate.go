package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Validate checks enumerations, durations and the reconcile spec.
// Every problem is reported, joined.
func (c *Config) Validate() error {
	var errs []error
	add := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	switch strings.ToLower(strings.TrimSpace(c.Logging.Level)) {
	case "", "trace", "debug", "info", "warn", "warning", "error":
	default:
		add(fmt.Errorf("logging.level: unknown level %q", c.Logging.Level))
	}
	switch strings.ToLower(strings.TrimSpace(c.Scheduler.Backend)) {
	case "", "auto", "launchd", "systemd":
	default:
		add(fmt.Errorf("scheduler.backend: unknown backend %q (use launchd, systemd or auto)", c.Scheduler.Backend))
	}
	switch strings.ToLower(strings.TrimSpace(c.Storage.Driver)) {
	case "", "file", "sqlite", "sqlite3", "none":
	default:
		add(fmt.Errorf("storage.driver: unknown driver %q", c.Storage.Driver))
	}

	for path, raw := range map[string]string{
		"scheduler.op_timeout":  c.Scheduler.OpTimeout,
		"storage.busy_timeout":  c.Storage.BusyTimeout,
		"notifier.dedup_window": c.Notifier.DedupWindow,
		"api.read_timeout":      c.API.ReadTimeout,
		"api.write_timeout":     c.API.WriteTimeout,
		"api.shutdown_timeout":  c.API.ShutdownTimeout,
	} {
		_, err := ParseDurationField(path, raw)
		add(err)
	}

	if c.Notifier.RatePerSec < 0 || c.Notifier.Burst < 0 || c.Notifier.QueueSize < 0 {
		add(errors.New("notifier: rate_per_sec, burst and queue_size must be >= 0"))
	}
	if _, err := c.ReconcileSchedule(); err != nil {
		add(err)
	}
	return errors.Join(errs...)
}

// ReconcileSchedule parses watch.reconcile. A nil schedule means disabled.
func (c *Config) ReconcileSchedule() (cron.Schedule, error) {
	spec := strings.TrimSpace(c.Watch.Reconcile)
	if spec == "" {
		return nil, nil
	}
	s, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("watch.reconcile: %w", err)
	}
	return s, nil
}

func ParseDurationField(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	return d, nil
}

// ParseDurationOrDefault returns def for an empty or zero duration.
func ParseDurationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	d, err := ParseDurationField(path, raw)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return def, nil
	}
	return d, nil
}
