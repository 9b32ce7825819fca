package compiler

import (
	"errors"
	"strings"
	"testing"
	"time"

	"automata/internal/rule"
)

func testCompiler() *Compiler {
	return New(rule.Default(), Layout{ScriptsDir: "/data/scripts", LogsDir: "/data/logs"})
}

func TestCompileSingleUnit(t *testing.T) {
	t.Parallel()

	r := &rule.Rule{
		ID:      "ab12cd34",
		Trigger: rule.OnLogin{},
		Action:  rule.OpenApps{Apps: []string{"Safari", "Mail"}},
	}
	units, err := testCompiler().Compile(r)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if len(units) != 1 {
		t.Fatalf("units=%d", len(units))
	}
	u := units[0]
	if u.Label != "com.automata.on-login.open-apps.ab12cd34" || u.Role != RolePrimary {
		t.Fatalf("unit=%+v", u)
	}
	if u.ScriptPath != "/data/scripts/com.automata.on-login.open-apps.ab12cd34.sh" {
		t.Fatalf("script path=%q", u.ScriptPath)
	}
	if u.LogPath != "/data/logs/com.automata.on-login.open-apps.ab12cd34.log" {
		t.Fatalf("log path=%q", u.LogPath)
	}
	if u.Program[0] != ShellPath || u.Program[1] != u.ScriptPath {
		t.Fatalf("program=%v", u.Program)
	}
	if !u.Schedule.AtLoad {
		t.Fatalf("on-login should run at load")
	}
	if !strings.Contains(u.Script.Body, `open -a "Mail"`) {
		t.Fatalf("body=%q", u.Script.Body)
	}
}

func TestCompileTimeRange(t *testing.T) {
	t.Parallel()

	r := &rule.Rule{
		ID:      "ab12cd34",
		Trigger: rule.TimeRange{Start: rule.Clock{Hour: 20}, End: rule.Clock{Hour: 23, Minute: 15}, Days: rule.WorkWeek},
		Action:  rule.Appearance{Mode: rule.ModeDark},
	}
	units, err := testCompiler().Compile(r)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if len(units) != 2 {
		t.Fatalf("units=%d", len(units))
	}
	start, end := units[0], units[1]
	if !strings.HasSuffix(start.Label, "-start") || !strings.HasSuffix(end.Label, "-end") {
		t.Fatalf("labels %q %q", start.Label, end.Label)
	}
	if start.Schedule.Weekdays() != end.Schedule.Weekdays() || start.Schedule.Weekdays() != rule.WorkWeek {
		t.Fatalf("weekday sets differ: %s vs %s", start.Schedule.Weekdays(), end.Schedule.Weekdays())
	}
	if len(start.Schedule.Calendar) != 5 || len(end.Schedule.Calendar) != 5 {
		t.Fatalf("expected one entry per weekday")
	}
	for i := range start.Schedule.Calendar {
		s, e := start.Schedule.Calendar[i], end.Schedule.Calendar[i]
		if s.Weekday != e.Weekday || s.Hour != 20 || e.Hour != 23 || e.Minute != 15 {
			t.Fatalf("entry %d: %+v vs %+v", i, s, e)
		}
	}
	if !strings.Contains(end.Script.Body, "set dark mode to false") {
		t.Fatalf("end body=%q", end.Script.Body)
	}
	if end.Program[0] != OSAScriptPath || !strings.HasSuffix(end.ScriptPath, "-end.scpt") {
		t.Fatalf("end program=%v", end.Program)
	}
}

func TestCompileRevertUsesOwnKind(t *testing.T) {
	t.Parallel()

	r := &rule.Rule{
		ID:      "ffff0000",
		Trigger: rule.TimeRange{Start: rule.Clock{Hour: 9}, End: rule.Clock{Hour: 17}},
		Action:  rule.OpenApps{Apps: []string{"Slack"}},
	}
	units, err := testCompiler().Compile(r)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if units[0].Script.Kind != rule.ScriptShell || units[1].Script.Kind != rule.ScriptAppleScript {
		t.Fatalf("kinds %v %v", units[0].Script.Kind, units[1].Script.Kind)
	}
	if !strings.HasSuffix(units[1].ScriptPath, ".scpt") {
		t.Fatalf("end path=%q", units[1].ScriptPath)
	}
	if got := testCompiler().Labels(r); len(got) != 2 || got[0] != units[0].Label || got[1] != units[1].Label {
		t.Fatalf("Labels=%v", got)
	}
}

func TestCompileRejectsInvalid(t *testing.T) {
	t.Parallel()

	r := &rule.Rule{ID: "x", Trigger: rule.FixedInterval{Minutes: 5}, Action: rule.OpenApps{Apps: []string{"A"}}}
	_, err := testCompiler().Compile(r)
	var ce *rule.CompatibilityError
	if !errors.As(err, &ce) {
		t.Fatalf("expected CompatibilityError, got %v", err)
	}
}

func TestNextRuns(t *testing.T) {
	t.Parallel()

	from := time.Date(2026, 3, 6, 12, 0, 0, 0, time.UTC) // Friday
	sched := rule.FixedSchedule{At: rule.Clock{Hour: 9}, Days: rule.NewWeekdaySet(rule.Monday, rule.Wednesday)}.Schedule()
	runs, err := NextRuns(sched, from, 3)
	if err != nil {
		t.Fatalf("NextRuns: %v", err)
	}
	want := []time.Time{
		time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 11, 9, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 16, 9, 0, 0, 0, time.UTC),
	}
	if len(runs) != len(want) {
		t.Fatalf("runs=%v", runs)
	}
	for i := range want {
		if !runs[i].Equal(want[i]) {
			t.Fatalf("run %d=%v want %v", i, runs[i], want[i])
		}
	}

	every, _ := NextRuns(rule.FixedInterval{Minutes: 15}.Schedule(), from, 2)
	if len(every) != 2 || every[1].Sub(every[0]) != 15*time.Minute {
		t.Fatalf("interval runs=%v", every)
	}
	if none, _ := NextRuns(rule.OnLogin{}.Schedule(), from, 2); none != nil {
		t.Fatalf("login has no preview, got %v", none)
	}
}
