package scheduler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"testing"

	"github.com/sebdah/goldie/v2"

	"automata/internal/rule"
	"automata/pkg/logx"
)

type fakeBus struct {
	calls   []string
	stopErr error
	failOn  string
}

func (f *fakeBus) record(call string) error {
	f.calls = append(f.calls, call)
	if f.failOn != "" && f.failOn == call {
		return fmt.Errorf("org.freedesktop.DBus.Error.Failed: %s", call)
	}
	return nil
}

func (f *fakeBus) Enable(_ context.Context, names []string) error {
	return f.record("enable " + names[0])
}
func (f *fakeBus) Disable(_ context.Context, names []string) error {
	return f.record("disable " + names[0])
}
func (f *fakeBus) Reload(context.Context) error { return f.record("reload") }
func (f *fakeBus) Start(_ context.Context, name string) error {
	return f.record("start " + name)
}
func (f *fakeBus) Stop(_ context.Context, name string) error {
	if f.stopErr != nil {
		f.calls = append(f.calls, "stop "+name)
		return f.stopErr
	}
	return f.record("stop " + name)
}
func (f *fakeBus) Close() {}

func dialFake(b *fakeBus) busDialer {
	return func(context.Context) (unitBus, error) { return b, nil }
}

func renderFiles(files map[string][]byte) []byte {
	names := make([]string, 0, len(files))
	for n := range files {
		names = append(names, n)
	}
	sort.Strings(names)
	var b bytes.Buffer
	for _, n := range names {
		fmt.Fprintf(&b, "==> %s <==\n", n)
		b.Write(files[n])
		b.WriteString("\n")
	}
	return b.Bytes()
}

func TestSystemdUnitFilesGolden(t *testing.T) {
	g := goldie.New(t, goldie.WithFixtureDir("testdata/golden"), goldie.WithNameSuffix(".golden"))
	s := NewSystemd(t.TempDir(), dialFake(&fakeBus{}), logx.Nop())

	cases := []struct {
		name string
		r    *rule.Rule
	}{
		{"systemd_calendar", &rule.Rule{
			ID:      "ab12cd34",
			Trigger: rule.FixedSchedule{At: rule.Clock{Hour: 9, Minute: 30}, Days: rule.NewWeekdaySet(rule.Monday, rule.Friday)},
			Action:  rule.CleanDownloads{DaysOld: 30},
		}},
		{"systemd_interval", &rule.Rule{
			ID:      "ab12cd34",
			Trigger: rule.FixedInterval{Minutes: 15},
			Action:  rule.OpenURLs{URLs: []string{"https://example.com"}},
		}},
		{"systemd_path", &rule.Rule{
			ID:      "ab12cd34",
			Trigger: rule.PathWatch{Path: "/data/inbox"},
			Action:  rule.MoveFiles{Destination: "/data/sorted"},
		}},
		{"systemd_login", &rule.Rule{
			ID:      "ab12cd34",
			Trigger: rule.OnLogin{},
			Action:  rule.KeepAwake{Duration: "2 hours"},
		}},
	}
	for _, tc := range cases {
		files, err := s.UnitFiles(compileOne(t, tc.r)[0])
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		g.Assert(t, tc.name, renderFiles(files))
	}
}

func TestSystemdCheckRejects(t *testing.T) {
	t.Parallel()

	s := NewSystemd(t.TempDir(), dialFake(&fakeBus{}), logx.Nop())
	as := compileOne(t, &rule.Rule{ID: "a", Trigger: rule.OnLogin{}, Action: rule.EmptyTrash{}})[0]
	if err := s.Check(as); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("applescript: %v", err)
	}
	mount := compileOne(t, &rule.Rule{ID: "b", Trigger: rule.DriveMount{}, Action: rule.OpenFile{Path: "/x"}})[0]
	if err := s.Check(mount); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("drive-mount: %v", err)
	}
	if err := s.Write(mount); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("Write should check first: %v", err)
	}
}

func TestSystemdRegisterSequence(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	bus := &fakeBus{}
	s := NewSystemd(dir, dialFake(bus), logx.Nop())
	u := compileOne(t, &rule.Rule{ID: "ab12cd34", Trigger: rule.FixedInterval{Minutes: 5}, Action: rule.CleanDownloads{DaysOld: 7}})[0]
	if err := s.Write(u); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := s.Register(context.Background(), u.Label); err != nil {
		t.Fatalf("Register: %v", err)
	}
	timer := u.Label + ".timer"
	want := []string{"enable " + timer, "reload", "start " + timer}
	if fmt.Sprint(bus.calls) != fmt.Sprint(want) {
		t.Fatalf("calls=%v want %v", bus.calls, want)
	}

	bus.calls = nil
	if err := s.Unregister(context.Background(), u.Label); err != nil {
		t.Fatalf("Unregister: %v", err)
	}
	want = []string{"stop " + timer, "disable " + timer}
	if fmt.Sprint(bus.calls) != fmt.Sprint(want) {
		t.Fatalf("calls=%v want %v", bus.calls, want)
	}

	labels, err := s.Installed()
	if err != nil || len(labels) != 1 || labels[0] != u.Label {
		t.Fatalf("Installed=%v err=%v", labels, err)
	}
	if err := s.Remove(u.Label); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, timer)); !os.IsNotExist(err) {
		t.Fatalf("timer left behind: %v", err)
	}
}

func TestSystemdUnregisterUnknown(t *testing.T) {
	t.Parallel()

	bus := &fakeBus{stopErr: errors.New("Unit com.automata.x.service not loaded.")}
	s := NewSystemd(t.TempDir(), dialFake(bus), logx.Nop())
	if err := s.Unregister(context.Background(), "com.automata.x"); !errors.Is(err, ErrNotRegistered) {
		t.Fatalf("expected ErrNotRegistered, got %v", err)
	}
	bus.stopErr = errors.New("org.freedesktop.systemd1.NoSuchUnit: Unit com.automata.x.service not found.")
	if err := s.Unregister(context.Background(), "com.automata.x"); !errors.Is(err, ErrNotRegistered) {
		t.Fatalf("expected ErrNotRegistered, got %v", err)
	}
}

func TestSystemdRegisterFailure(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	bus := &fakeBus{}
	s := NewSystemd(dir, dialFake(bus), logx.Nop())
	u := compileOne(t, &rule.Rule{ID: "ab12cd34", Trigger: rule.OnLogin{}, Action: rule.OpenApps{Apps: []string{"Firefox"}}})[0]
	if err := s.Write(u); err != nil {
		t.Fatalf("Write: %v", err)
	}
	bus.failOn = "enable " + u.Label + ".service"
	err := s.Register(context.Background(), u.Label)
	var re *RegistrationError
	if !errors.As(err, &re) || re.Command != "systemd enable" {
		t.Fatalf("expected enable RegistrationError, got %v", err)
	}
}

func TestSystemdLoginRegisterDoesNotRun(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	bus := &fakeBus{}
	s := NewSystemd(dir, dialFake(bus), logx.Nop())
	u := compileOne(t, &rule.Rule{ID: "ab12cd34", Trigger: rule.OnLogin{}, Action: rule.OpenApps{Apps: []string{"Firefox"}}})[0]
	if err := s.Write(u); err != nil {
		t.Fatalf("Write: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := s.Register(context.Background(), u.Label); err != nil {
			t.Fatalf("Register #%d: %v", i+1, err)
		}
	}
	svc := u.Label + ".service"
	want := []string{"enable " + svc, "reload", "enable " + svc, "reload"}
	if !reflect.DeepEqual(bus.calls, want) {
		t.Fatalf("calls = %v, want %v", bus.calls, want)
	}
}

func TestSystemdWriteDropsStaleActivator(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s := NewSystemd(dir, dialFake(&fakeBus{}), logx.Nop())
	label := "com.automata.fixed-interval.clean-downloads.ab12cd34"
	if err := os.WriteFile(filepath.Join(dir, label+".path"), []byte("stale"), 0o644); err != nil {
		t.Fatal(err)
	}
	u := compileOne(t, &rule.Rule{ID: "ab12cd34", Trigger: rule.FixedInterval{Minutes: 5}, Action: rule.CleanDownloads{DaysOld: 7}})[0]
	if err := s.Write(u); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, label+".path")); !os.IsNotExist(err) {
		t.Fatalf("stale .path kept: %v", err)
	}
}
