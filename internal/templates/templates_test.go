package templates

import (
	"errors"
	"testing"

	"automata/internal/rule"
)

func TestBuiltinLibrary(t *testing.T) {
	t.Parallel()

	l := Default()
	all := l.All()
	if len(all) != 20 {
		t.Fatalf("templates=%d", len(all))
	}
	groups := l.Grouped()
	if len(groups) != len(Categories) {
		t.Fatalf("groups=%d", len(groups))
	}
	n := 0
	for i, g := range groups {
		if g.Category != Categories[i] {
			t.Fatalf("group %d is %s", i, g.Category)
		}
		n += len(g.Templates)
	}
	if n != len(all) {
		t.Fatalf("grouped %d of %d", n, len(all))
	}
	if CategoryFocus.Title() != "Focus & Wind Down" {
		t.Fatalf("title=%q", CategoryFocus.Title())
	}
}

func TestNeedsInput(t *testing.T) {
	t.Parallel()

	l := Default()
	cases := map[string][]string{
		"morning-workspace": {"apps"},
		"downloads-sorter":  {"destination"},
		"focus-mode":        nil,
		"backup-reminder":   nil,
	}
	for id, want := range cases {
		tpl, ok := l.Get(id)
		if !ok {
			t.Fatalf("missing %s", id)
		}
		got := tpl.Blank()
		if len(got) != len(want) || (len(want) > 0 && got[0] != want[0]) {
			t.Fatalf("%s: blank=%v want %v", id, got, want)
		}
		if tpl.NeedsInput() != (len(want) > 0) {
			t.Fatalf("%s: NeedsInput=%v", id, tpl.NeedsInput())
		}
	}
}

func TestInstantiate(t *testing.T) {
	t.Parallel()

	l := Default()
	r, err := l.Instantiate("focus-mode", nil, "/Users/me")
	if err != nil {
		t.Fatalf("focus-mode: %v", err)
	}
	if r.Name != "Focus Mode" || !r.Enabled || r.Action.Kind() != rule.ActionQuitApps {
		t.Fatalf("rule=%+v", r)
	}
	if got := r.Action.(rule.QuitApps).Apps; len(got) != 3 || got[2] != "Discord" {
		t.Fatalf("apps=%v", got)
	}

	if _, err := l.Instantiate("morning-workspace", nil, ""); !rule.IsValidation(err) {
		t.Fatalf("blank apps should fail validation, got %v", err)
	}
	r, err = l.Instantiate("morning-workspace", map[string]string{"apps": "Safari, Mail", "time": "08:30"}, "")
	if err != nil {
		t.Fatalf("with overrides: %v", err)
	}
	fs := r.Trigger.(rule.FixedSchedule)
	if fs.At != (rule.Clock{Hour: 8, Minute: 30}) || fs.Days != rule.WorkWeek {
		t.Fatalf("trigger=%+v", fs)
	}

	r, err = l.Instantiate("screenshot-organizer", nil, "/Users/me")
	if err != nil {
		t.Fatalf("screenshot-organizer: %v", err)
	}
	if p := r.Trigger.(rule.PathWatch).Path; p != "/Users/me/Desktop" {
		t.Fatalf("path=%q", p)
	}
	if d := r.Action.(rule.MoveFiles).Destination; d != "/Users/me/Pictures/Screenshots" {
		t.Fatalf("destination=%q", d)
	}

	if _, err := l.Instantiate("focus-mode", map[string]string{"volume": "3"}, ""); !rule.IsValidation(err) {
		t.Fatalf("foreign key should be rejected, got %v", err)
	}
	if _, err := l.Instantiate("nope", nil, ""); !errors.Is(err, ErrUnknown) {
		t.Fatalf("unknown template accepted")
	}
}

func TestByAction(t *testing.T) {
	t.Parallel()

	got := Default().ByAction(rule.ActionNotify)
	if len(got) != 4 || got[0].ID != "stretch-break" {
		t.Fatalf("notify templates=%v", got)
	}
}

func TestParseRejects(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"incompatible": `- {id: a, name: A, category: focus, trigger: {type: drive-mount}, action: {type: empty-trash}}`,
		"unknown key":  `- {id: a, name: A, category: focus, trigger: {type: on-login, config: {time: "09:00"}}, action: {type: empty-trash}}`,
		"bad value":    `- {id: a, name: A, category: focus, trigger: {type: fixed-interval, config: {minutes: "0"}}, action: {type: empty-trash}}`,
		"duplicate": `- {id: a, name: A, category: focus, trigger: {type: on-login}, action: {type: empty-trash}}
- {id: a, name: B, category: focus, trigger: {type: on-login}, action: {type: empty-trash}}`,
		"category":      `- {id: a, name: A, category: misc, trigger: {type: on-login}, action: {type: empty-trash}}`,
		"unknown field": `- {id: a, name: A, colour: red, category: focus, trigger: {type: on-login}, action: {type: empty-trash}}`,
	}
	for name, src := range cases {
		if _, err := Parse([]byte(src), rule.Default()); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
	l, err := Parse(nil, rule.Default())
	if err != nil || len(l.All()) != 0 {
		t.Fatalf("empty input: %v", err)
	}
}
