package scheduler

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"howett.net/plist"

	"automata/internal/compiler"
	"automata/internal/fsx"
	"automata/pkg/logx"
)

const defaultLaunchctl = "/bin/launchctl"

// Launchd writes LaunchAgent plists and loads them with launchctl.
type Launchd struct {
	dir       string
	launchctl string
	run       Runner
	log       logx.Logger
}

func NewLaunchd(dir, launchctl string, run Runner, log logx.Logger) *Launchd {
	if launchctl == "" {
		launchctl = defaultLaunchctl
	}
	if run == nil {
		run = ExecRunner{}
	}
	return &Launchd{dir: dir, launchctl: launchctl, run: run, log: log.With(logx.String("backend", BackendLaunchd))}
}

func (l *Launchd) Name() string { return BackendLaunchd }

func (l *Launchd) PlistPath(label string) string {
	return filepath.Join(l.dir, label+".plist")
}

type agentPlist struct {
	Label                 string   `plist:"Label"`
	ProgramArguments      []string `plist:"ProgramArguments"`
	StandardOutPath       string   `plist:"StandardOutPath"`
	StandardErrorPath     string   `plist:"StandardErrorPath"`
	StartCalendarInterval any      `plist:"StartCalendarInterval,omitempty"`
	StartInterval         int      `plist:"StartInterval,omitempty"`
	RunAtLoad             bool     `plist:"RunAtLoad,omitempty"`
	WatchPaths            []string `plist:"WatchPaths,omitempty"`
	StartOnMount          bool     `plist:"StartOnMount,omitempty"`
}

type calendarInterval struct {
	Hour    int  `plist:"Hour"`
	Minute  int  `plist:"Minute"`
	Weekday *int `plist:"Weekday,omitempty"`
}

// Check accepts every unit; launchd expresses all schedules natively.
func (l *Launchd) Check(compiler.JobUnit) error { return nil }

// Plist renders the XML plist for u.
func (l *Launchd) Plist(u compiler.JobUnit) ([]byte, error) {
	p := agentPlist{
		Label:             u.Label,
		ProgramArguments:  u.Program,
		StandardOutPath:   u.LogPath,
		StandardErrorPath: u.LogPath,
	}
	s := u.Schedule
	switch {
	case len(s.Calendar) == 1 && s.Calendar[0].Weekday == 0:
		p.StartCalendarInterval = calendarInterval{Hour: s.Calendar[0].Hour, Minute: s.Calendar[0].Minute}
	case len(s.Calendar) > 0:
		entries := make([]calendarInterval, 0, len(s.Calendar))
		for _, e := range s.Calendar {
			ci := calendarInterval{Hour: e.Hour, Minute: e.Minute}
			if e.Weekday != 0 {
				// Weekday runs 1=Sunday..7=Saturday; launchd counts from 0=Sunday.
				wd := int(e.Weekday) - 1
				ci.Weekday = &wd
			}
			entries = append(entries, ci)
		}
		p.StartCalendarInterval = entries
	case s.Interval > 0:
		p.StartInterval = int(s.Interval.Seconds())
	case s.AtLoad:
		p.RunAtLoad = true
	case len(s.WatchPaths) > 0:
		p.WatchPaths = s.WatchPaths
	case s.OnMount:
		p.StartOnMount = true
	default:
		return nil, fmt.Errorf("unit %s has no schedule", u.Label)
	}
	return plist.MarshalIndent(p, plist.XMLFormat, "\t")
}

func (l *Launchd) Write(u compiler.JobUnit) error {
	data, err := l.Plist(u)
	if err != nil {
		return err
	}
	return fsx.WriteFileAtomic(l.PlistPath(u.Label), data, 0o644)
}

func (l *Launchd) Exists(label string) bool { return fsx.Exists(l.PlistPath(label)) }

// Register runs launchctl load. Empty output or "already loaded" is success.
func (l *Launchd) Register(ctx context.Context, label string) error {
	out, err := l.run.Run(ctx, l.launchctl, "load", l.PlistPath(label))
	if strings.Contains(out, "already loaded") {
		l.log.Debug("launchctl: already loaded", logx.String("label", label))
		return nil
	}
	if err == nil && out == "" {
		return nil
	}
	return &RegistrationError{Label: label, Command: "launchctl load", Output: out, Err: err}
}

// Unregister runs launchctl unload. "not loaded" style output maps to
// ErrNotRegistered.
func (l *Launchd) Unregister(ctx context.Context, label string) error {
	out, err := l.run.Run(ctx, l.launchctl, "unload", l.PlistPath(label))
	for _, marker := range []string{"Could not find", "not loaded", "No such"} {
		if strings.Contains(out, marker) {
			return fmt.Errorf("%s: %w", label, ErrNotRegistered)
		}
	}
	if err == nil && out == "" {
		return nil
	}
	return &RegistrationError{Label: label, Command: "launchctl unload", Output: out, Err: err}
}

func (l *Launchd) Remove(label string) error {
	return fsx.RemoveIfExists(l.PlistPath(label))
}

func (l *Launchd) Installed() ([]string, error) { return listLabels(l.dir, ".plist") }

func (l *Launchd) Close() error { return nil }
