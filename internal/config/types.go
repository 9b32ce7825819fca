// Package config loads the automata config file (JSON or YAML), applies
// environment overrides and watches the file for changes.
package config

// Config is the on-disk shape. Durations are Go duration strings. Empty
// path fields are derived from paths.home by Resolve.
type Config struct {
	Logging   LoggingConfig   `json:"logging"`
	Paths     PathsConfig     `json:"paths"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Storage   StorageConfig   `json:"storage"`
	Notifier  NotifierConfig  `json:"notifier"`
	API       APIConfig       `json:"api"`
	Apps      AppsConfig      `json:"apps"`
	Watch     WatchConfig     `json:"watch"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
	// Activity is the human-readable log of lifecycle operations.
	Activity LoggingFile `json:"activity"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

// PathsConfig places generated artifacts.
//
// Defaults (relative to home, which defaults to ~/.automata):
//   - data_dir:    <home>
//   - scripts_dir: <home>/scripts
//   - logs_dir:    <home>/logs
//   - units_dir:   backend default (~/Library/LaunchAgents or ~/.config/systemd/user)
type PathsConfig struct {
	Home       string `json:"home,omitempty"`
	DataDir    string `json:"data_dir,omitempty"`
	ScriptsDir string `json:"scripts_dir,omitempty"`
	LogsDir    string `json:"logs_dir,omitempty"`
	UnitsDir   string `json:"units_dir,omitempty"`
}

type SchedulerConfig struct {
	// Backend is launchd, systemd or auto.
	Backend       string `json:"backend"`
	LaunchctlPath string `json:"launchctl_path,omitempty"`
	// OpTimeout bounds each register/unregister call.
	OpTimeout string `json:"op_timeout,omitempty"`
}

// StorageConfig selects the rule store.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "~/.automata/rules.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path,omitempty"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite only
}

type NotifierConfig struct {
	Enabled     bool    `json:"enabled"`
	RatePerSec  float64 `json:"rate_per_sec,omitempty"`
	Burst       int     `json:"burst,omitempty"`
	QueueSize   int     `json:"queue_size,omitempty"`
	DedupWindow string  `json:"dedup_window,omitempty"`
}

// APIConfig controls `automata serve`. Prefer a loopback address; the API
// has no authentication.
type APIConfig struct {
	Addr            string `json:"addr"`
	ReadTimeout     string `json:"read_timeout,omitempty"`
	WriteTimeout    string `json:"write_timeout,omitempty"`
	ShutdownTimeout string `json:"shutdown_timeout,omitempty"`
	// Pprof mounts net/http/pprof under /debug.
	Pprof bool `json:"pprof,omitempty"`
}

// AppsConfig lists folders scanned for installed applications. Empty means
// the platform defaults.
type AppsConfig struct {
	Dirs []string `json:"dirs,omitempty"`
}

// WatchConfig controls `automata watch`.
type WatchConfig struct {
	// Reconcile is a cron spec (standard 5-field or @every) for the periodic
	// sync. Empty disables it.
	Reconcile string `json:"reconcile"`
}
