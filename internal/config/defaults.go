package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// Environment overrides, applied after the file is decoded.
const (
	EnvHome     = "AUTOMATA_HOME"
	EnvBackend  = "AUTOMATA_BACKEND"
	EnvLogLevel = "AUTOMATA_LOG_LEVEL"
)

// Default returns the config used when no file exists. Paths stay empty
// until Resolve derives them.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:    "info",
			Console:  true,
			Activity: LoggingFile{Enabled: true},
		},
		Scheduler: SchedulerConfig{
			Backend:       "auto",
			LaunchctlPath: "/bin/launchctl",
			OpTimeout:     "15s",
		},
		Storage: StorageConfig{Driver: "file", BusyTimeout: "5s"},
		Notifier: NotifierConfig{
			Enabled:     true,
			RatePerSec:  0.5,
			Burst:       3,
			QueueSize:   32,
			DedupWindow: "1m",
		},
		API: APIConfig{
			Addr:            "127.0.0.1:7878",
			ReadTimeout:     "10s",
			WriteTimeout:    "30s",
			ShutdownTimeout: "5s",
		},
		Watch: WatchConfig{Reconcile: "@every 5m"},
	}
}

// LoadEnv reads .env files into the process environment. Variables that are
// already set win, and missing files are ignored.
func LoadEnv(files ...string) error {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

func applyEnv(cfg *Config, getenv func(string) string) {
	if v := strings.TrimSpace(getenv(EnvHome)); v != "" {
		cfg.Paths.Home = v
	}
	if v := strings.TrimSpace(getenv(EnvBackend)); v != "" {
		cfg.Scheduler.Backend = v
	}
	if v := strings.TrimSpace(getenv(EnvLogLevel)); v != "" {
		cfg.Logging.Level = v
	}
}

// Resolve fills derived paths and expands a leading ~/ in every path.
func (c *Config) Resolve(userHome string) {
	expand := func(p string) string {
		p = strings.TrimSpace(p)
		if p == "~" {
			return userHome
		}
		if strings.HasPrefix(p, "~/") && userHome != "" {
			return filepath.Join(userHome, p[2:])
		}
		return p
	}

	p := &c.Paths
	p.Home = expand(p.Home)
	if p.Home == "" {
		p.Home = filepath.Join(userHome, ".automata")
	}
	p.DataDir = expand(p.DataDir)
	if p.DataDir == "" {
		p.DataDir = p.Home
	}
	p.ScriptsDir = expand(p.ScriptsDir)
	if p.ScriptsDir == "" {
		p.ScriptsDir = filepath.Join(p.Home, "scripts")
	}
	p.LogsDir = expand(p.LogsDir)
	if p.LogsDir == "" {
		p.LogsDir = filepath.Join(p.Home, "logs")
	}
	p.UnitsDir = expand(p.UnitsDir)

	c.Storage.Path = expand(c.Storage.Path)
	if c.Storage.Path == "" {
		switch strings.ToLower(strings.TrimSpace(c.Storage.Driver)) {
		case "sqlite", "sqlite3":
			c.Storage.Path = filepath.Join(p.DataDir, "rules.db")
		default:
			c.Storage.Path = filepath.Join(p.DataDir, "rules.json")
		}
	}

	c.Logging.File.Path = expand(c.Logging.File.Path)
	if c.Logging.File.Path == "" {
		c.Logging.File.Path = filepath.Join(p.LogsDir, "automata.log")
	}
	c.Logging.Activity.Path = expand(c.Logging.Activity.Path)
	if c.Logging.Activity.Path == "" {
		c.Logging.Activity.Path = filepath.Join(p.LogsDir, "activity.log")
	}
	for i, d := range c.Apps.Dirs {
		c.Apps.Dirs[i] = expand(d)
	}
}
