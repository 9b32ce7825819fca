package app

import (
	"fmt"
	"strings"
	"time"

	"automata/internal/config"
	"automata/internal/notifier"
	"automata/internal/scheduler"
	"automata/internal/storage"
	"automata/pkg/logx"
)

func mapStorageConfig(cfg *config.Config) (storage.Config, bool, error) {
	if cfg == nil {
		return storage.Config{}, false, nil
	}
	sc := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	if driver == "none" {
		return storage.Config{}, false, nil
	}
	path := strings.TrimSpace(sc.Path)

	switch driver {
	case "", "file":
		return storage.Config{Driver: "file", Path: path}, true, nil
	case "sqlite", "sqlite3":
		if path == "" {
			return storage.Config{}, false, fmt.Errorf("storage.path is required when storage.driver=sqlite")
		}
		busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, time.Second)
		if err != nil {
			return storage.Config{}, false, err
		}
		return storage.Config{Driver: driver, Path: path, BusyTimeout: busy}, true, nil
	default:
		return storage.Config{}, false, fmt.Errorf("unknown storage.driver: %s", sc.Driver)
	}
}

func mapNotifierConfig(cfg *config.Config) (notifier.Config, error) {
	nc := cfg.Notifier
	window, err := config.ParseDurationField("notifier.dedup_window", nc.DedupWindow)
	if err != nil {
		return notifier.Config{}, err
	}
	if nc.RatePerSec < 0 || nc.Burst < 0 || nc.QueueSize < 0 {
		return notifier.Config{}, fmt.Errorf("notifier: rate_per_sec, burst and queue_size must be >= 0")
	}
	return notifier.Config{
		Enabled:     nc.Enabled,
		RatePerSec:  nc.RatePerSec,
		Burst:       nc.Burst,
		QueueSize:   nc.QueueSize,
		DedupWindow: window,
	}, nil
}

func mapLogConfig(cfg *config.Config) logx.Config {
	lc := cfg.Logging
	return logx.Config{
		Level:    lc.Level,
		Console:  lc.Console,
		File:     logx.FileConfig{Enabled: lc.File.Enabled, Path: lc.File.Path},
		Activity: logx.FileConfig{Enabled: lc.Activity.Enabled, Path: lc.Activity.Path},
	}
}

func mapSchedulerConfig(cfg *config.Config) (scheduler.Config, time.Duration, error) {
	sc := cfg.Scheduler
	timeout, err := config.ParseDurationOrDefault("scheduler.op_timeout", sc.OpTimeout, 15*time.Second)
	if err != nil {
		return scheduler.Config{}, 0, err
	}
	return scheduler.Config{
		Backend:       sc.Backend,
		UnitsDir:      cfg.Paths.UnitsDir,
		LaunchctlPath: sc.LaunchctlPath,
	}, timeout, nil
}
