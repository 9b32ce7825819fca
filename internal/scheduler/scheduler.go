// Package scheduler writes job units in an OS scheduler's declarative format
// and registers them with it. launchd is the native target; a systemd user
// manager backend covers Linux hosts.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"automata/internal/compiler"
	"automata/internal/rule"
	"automata/pkg/logx"
)

var (
	// ErrNotRegistered means the scheduler does not know the label. Callers
	// that are unregistering treat it as success.
	ErrNotRegistered = errors.New("unit not registered")
	// ErrUnsupported means the backend cannot express the unit.
	ErrUnsupported = errors.New("unit not supported by backend")
)

// RegistrationError carries the raw scheduler output of a failed
// register or unregister command.
type RegistrationError struct {
	Label   string
	Command string
	Output  string
	Err     error
}

func (e *RegistrationError) Error() string {
	msg := fmt.Sprintf("%s %s failed", e.Command, e.Label)
	if e.Output != "" {
		msg += ": " + e.Output
	}
	if e.Err != nil {
		msg += " (" + e.Err.Error() + ")"
	}
	return msg
}

func (e *RegistrationError) Unwrap() error { return e.Err }

// Backend owns a unit file format and the commands that load it.
type Backend interface {
	Name() string
	// Check reports ErrUnsupported for units the backend cannot express.
	Check(u compiler.JobUnit) error
	// Write stores the declarative unit file(s) for u atomically.
	Write(u compiler.JobUnit) error
	Exists(label string) bool
	Register(ctx context.Context, label string) error
	Unregister(ctx context.Context, label string) error
	// Remove deletes the unit file(s). Missing files are not an error.
	Remove(label string) error
	// Installed lists labels of automata-owned unit files, sorted.
	Installed() ([]string, error)
	Close() error
}

const (
	BackendAuto    = "auto"
	BackendLaunchd = "launchd"
	BackendSystemd = "systemd"
)

type Config struct {
	Backend       string
	UnitsDir      string
	LaunchctlPath string
}

// Open selects a backend by name. "auto" picks launchd on darwin and
// systemd on linux.
func Open(cfg Config, log logx.Logger) (Backend, error) {
	name := strings.ToLower(strings.TrimSpace(cfg.Backend))
	if name == "" || name == BackendAuto {
		name = DefaultBackend(runtime.GOOS)
	}
	switch name {
	case BackendLaunchd:
		dir := cfg.UnitsDir
		if dir == "" {
			home, _ := os.UserHomeDir()
			dir = filepath.Join(home, "Library", "LaunchAgents")
		}
		return NewLaunchd(dir, cfg.LaunchctlPath, nil, log), nil
	case BackendSystemd:
		dir := cfg.UnitsDir
		if dir == "" {
			base, err := os.UserConfigDir()
			if err != nil {
				return nil, fmt.Errorf("systemd units dir: %w", err)
			}
			dir = filepath.Join(base, "systemd", "user")
		}
		return NewSystemd(dir, dialUserBus, log), nil
	default:
		return nil, fmt.Errorf("unknown scheduler backend %q (use launchd, systemd or auto)", cfg.Backend)
	}
}

// DefaultBackend maps a GOOS value to the backend "auto" resolves to.
func DefaultBackend(goos string) string {
	if goos == "linux" {
		return BackendSystemd
	}
	return BackendLaunchd
}

// listLabels scans dir for automata-owned files with the given suffix.
func listLabels(dir, suffix string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var out []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, rule.LabelPrefix) || !strings.HasSuffix(name, suffix) {
			continue
		}
		out = append(out, strings.TrimSuffix(name, suffix))
	}
	sort.Strings(out)
	return out, nil
}
