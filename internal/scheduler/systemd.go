package scheduler

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/coreos/go-systemd/v22/unit"

	"automata/internal/compiler"
	"automata/internal/fsx"
	"automata/internal/rule"
	"automata/pkg/logx"
)

// unitBus is the slice of the systemd manager API the backend drives.
type unitBus interface {
	Enable(ctx context.Context, names []string) error
	Disable(ctx context.Context, names []string) error
	Reload(ctx context.Context) error
	Start(ctx context.Context, name string) error
	Stop(ctx context.Context, name string) error
	Close()
}

type busDialer func(ctx context.Context) (unitBus, error)

// Systemd writes user-manager units: a oneshot service per job plus a
// .timer or .path activator. Login jobs are services wanted by
// default.target.
type Systemd struct {
	dir  string
	dial busDialer
	log  logx.Logger

	mu  sync.Mutex
	bus unitBus
}

func NewSystemd(dir string, dial busDialer, log logx.Logger) *Systemd {
	return &Systemd{dir: dir, dial: dial, log: log.With(logx.String("backend", BackendSystemd))}
}

func (s *Systemd) Name() string { return BackendSystemd }

var activatorSuffixes = []string{".timer", ".path"}

func (s *Systemd) path(name string) string { return filepath.Join(s.dir, name) }

// Check rejects AppleScript bodies and mount triggers.
func (s *Systemd) Check(u compiler.JobUnit) error {
	if u.Script.Kind == rule.ScriptAppleScript {
		return fmt.Errorf("%s: applescript body: %w", u.Label, ErrUnsupported)
	}
	if u.Schedule.OnMount {
		return fmt.Errorf("%s: drive-mount trigger: %w", u.Label, ErrUnsupported)
	}
	return nil
}

// UnitFiles renders the unit files for u keyed by file name.
func (s *Systemd) UnitFiles(u compiler.JobUnit) (map[string][]byte, error) {
	if err := s.Check(u); err != nil {
		return nil, err
	}
	desc := "automata " + u.Label
	svc := []*unit.UnitOption{
		unit.NewUnitOption("Unit", "Description", desc),
		unit.NewUnitOption("Service", "Type", "oneshot"),
		unit.NewUnitOption("Service", "ExecStart", execLine(u.Program)),
		unit.NewUnitOption("Service", "StandardOutput", "append:"+u.LogPath),
		unit.NewUnitOption("Service", "StandardError", "append:"+u.LogPath),
	}
	files := map[string][]byte{}
	sched := u.Schedule
	var act []*unit.UnitOption
	var actName string
	switch {
	case len(sched.Calendar) > 0:
		actName = u.Label + ".timer"
		act = append(act, unit.NewUnitOption("Unit", "Description", desc+" timer"))
		for _, e := range sched.Calendar {
			act = append(act, unit.NewUnitOption("Timer", "OnCalendar", onCalendar(e)))
		}
		act = append(act, unit.NewUnitOption("Install", "WantedBy", "timers.target"))
	case sched.Interval > 0:
		secs := strconv.Itoa(int(sched.Interval.Seconds()))
		actName = u.Label + ".timer"
		act = append(act,
			unit.NewUnitOption("Unit", "Description", desc+" timer"),
			unit.NewUnitOption("Timer", "OnActiveSec", secs),
			unit.NewUnitOption("Timer", "OnUnitActiveSec", secs),
			unit.NewUnitOption("Install", "WantedBy", "timers.target"),
		)
	case len(sched.WatchPaths) > 0:
		actName = u.Label + ".path"
		act = append(act, unit.NewUnitOption("Unit", "Description", desc+" path"))
		for _, p := range sched.WatchPaths {
			act = append(act, unit.NewUnitOption("Path", "PathModified", p))
		}
		act = append(act, unit.NewUnitOption("Install", "WantedBy", "paths.target"))
	case sched.AtLoad:
		svc = append(svc, unit.NewUnitOption("Install", "WantedBy", "default.target"))
	default:
		return nil, fmt.Errorf("unit %s has no schedule", u.Label)
	}
	b, err := io.ReadAll(unit.Serialize(svc))
	if err != nil {
		return nil, err
	}
	files[u.Label+".service"] = b
	if actName != "" {
		b, err := io.ReadAll(unit.Serialize(act))
		if err != nil {
			return nil, err
		}
		files[actName] = b
	}
	return files, nil
}

// onCalendar renders a calendar entry in systemd.time(7) form.
func onCalendar(e rule.CalendarEntry) string {
	at := fmt.Sprintf("*-*-* %02d:%02d:00", e.Hour, e.Minute)
	if e.Weekday == 0 {
		return at
	}
	return e.Weekday.String() + " " + at
}

func execLine(args []string) string {
	quoted := make([]string, len(args))
	for i, a := range args {
		if strings.ContainsAny(a, " \t\"") {
			a = strconv.Quote(a)
		}
		quoted[i] = a
	}
	return strings.Join(quoted, " ")
}

func (s *Systemd) Write(u compiler.JobUnit) error {
	files, err := s.UnitFiles(u)
	if err != nil {
		return err
	}
	// A schedule change can swap .timer for .path; drop the stale one.
	for _, suf := range activatorSuffixes {
		if _, keep := files[u.Label+suf]; !keep {
			if err := fsx.RemoveIfExists(s.path(u.Label + suf)); err != nil {
				return &fsx.WriteError{Path: s.path(u.Label + suf), Err: err}
			}
		}
	}
	for name, data := range files {
		if err := fsx.WriteFileAtomic(s.path(name), data, 0o644); err != nil {
			return err
		}
	}
	return nil
}

func (s *Systemd) Exists(label string) bool { return fsx.Exists(s.path(label + ".service")) }

// activator is the unit that gets enabled and started for label.
func (s *Systemd) activator(label string) string {
	for _, suf := range activatorSuffixes {
		if fsx.Exists(s.path(label + suf)) {
			return label + suf
		}
	}
	return label + ".service"
}

func (s *Systemd) conn(ctx context.Context) (unitBus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bus != nil {
		return s.bus, nil
	}
	b, err := s.dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("connect to systemd user manager: %w", err)
	}
	s.bus = b
	return b, nil
}

// Register enables and reloads the activator and starts timers and path
// units. A bare oneshot service is only enabled so it runs at the next login.
func (s *Systemd) Register(ctx context.Context, label string) error {
	bus, err := s.conn(ctx)
	if err != nil {
		return &RegistrationError{Label: label, Command: "systemd enable", Err: err}
	}
	name := s.activator(label)
	if err := bus.Enable(ctx, []string{name}); err != nil {
		return &RegistrationError{Label: label, Command: "systemd enable", Output: err.Error(), Err: err}
	}
	if err := bus.Reload(ctx); err != nil {
		return &RegistrationError{Label: label, Command: "systemd reload", Output: err.Error(), Err: err}
	}
	if strings.HasSuffix(name, ".service") {
		return nil
	}
	if err := bus.Start(ctx, name); err != nil {
		return &RegistrationError{Label: label, Command: "systemd start", Output: err.Error(), Err: err}
	}
	return nil
}

// Unregister stops and disables the activator. Unknown units map to
// ErrNotRegistered.
func (s *Systemd) Unregister(ctx context.Context, label string) error {
	bus, err := s.conn(ctx)
	if err != nil {
		return &RegistrationError{Label: label, Command: "systemd stop", Err: err}
	}
	name := s.activator(label)
	if err := bus.Stop(ctx, name); err != nil {
		if isNoSuchUnitErr(err) {
			return fmt.Errorf("%s: %w", label, ErrNotRegistered)
		}
		return &RegistrationError{Label: label, Command: "systemd stop", Output: err.Error(), Err: err}
	}
	if err := bus.Disable(ctx, []string{name}); err != nil && !isNoSuchUnitErr(err) {
		return &RegistrationError{Label: label, Command: "systemd disable", Output: err.Error(), Err: err}
	}
	return nil
}

func (s *Systemd) Remove(label string) error {
	for _, suf := range append([]string{".service"}, activatorSuffixes...) {
		if err := fsx.RemoveIfExists(s.path(label + suf)); err != nil {
			return err
		}
	}
	return nil
}

func (s *Systemd) Installed() ([]string, error) { return listLabels(s.dir, ".service") }

func (s *Systemd) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bus != nil {
		s.bus.Close()
		s.bus = nil
	}
	return nil
}

func isNoSuchUnitErr(err error) bool {
	if err == nil {
		return false
	}
	es := err.Error()
	return strings.Contains(es, "NoSuchUnit") || strings.Contains(es, "not-found") || strings.Contains(es, "not loaded")
}
