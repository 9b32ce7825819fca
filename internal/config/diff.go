package config

import (
	"reflect"

	"automata/pkg/logx"
)

// Changes names the top-level sections that differ between oldCfg and
// newCfg, in declaration order, plus log fields describing the new values.
// A nil config compares as the defaults.
func Changes(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = Default()
	}
	if newCfg == nil {
		newCfg = Default()
	}

	var changed []string
	var attrs []logx.Field
	if !reflect.DeepEqual(oldCfg.Logging, newCfg.Logging) {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file", newCfg.Logging.File.Enabled),
			logx.Bool("logging.activity", newCfg.Logging.Activity.Enabled),
		)
	}
	if !reflect.DeepEqual(oldCfg.Paths, newCfg.Paths) {
		changed = append(changed, "paths")
		attrs = append(attrs,
			logx.String("paths.scripts_dir", newCfg.Paths.ScriptsDir),
			logx.String("paths.logs_dir", newCfg.Paths.LogsDir),
		)
	}
	if !reflect.DeepEqual(oldCfg.Scheduler, newCfg.Scheduler) {
		changed = append(changed, "scheduler")
		attrs = append(attrs,
			logx.String("scheduler.backend", newCfg.Scheduler.Backend),
			logx.String("scheduler.op_timeout", newCfg.Scheduler.OpTimeout),
		)
	}
	if !reflect.DeepEqual(oldCfg.Storage, newCfg.Storage) {
		changed = append(changed, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", newCfg.Storage.Driver),
			logx.Bool("storage.path_set", newCfg.Storage.Path != ""),
		)
	}
	if !reflect.DeepEqual(oldCfg.Notifier, newCfg.Notifier) {
		changed = append(changed, "notifier")
		attrs = append(attrs,
			logx.Bool("notifier.enabled", newCfg.Notifier.Enabled),
			logx.Float64("notifier.rate_per_sec", newCfg.Notifier.RatePerSec),
			logx.Int("notifier.burst", newCfg.Notifier.Burst),
		)
	}
	if !reflect.DeepEqual(oldCfg.API, newCfg.API) {
		changed = append(changed, "api")
		attrs = append(attrs, logx.String("api.addr", newCfg.API.Addr), logx.Bool("api.pprof", newCfg.API.Pprof))
	}
	if !reflect.DeepEqual(oldCfg.Apps, newCfg.Apps) {
		changed = append(changed, "apps")
		attrs = append(attrs, logx.Int("apps.dirs", len(newCfg.Apps.Dirs)))
	}
	if !reflect.DeepEqual(oldCfg.Watch, newCfg.Watch) {
		changed = append(changed, "watch")
		attrs = append(attrs, logx.String("watch.reconcile", newCfg.Watch.Reconcile))
	}
	return changed, attrs
}
