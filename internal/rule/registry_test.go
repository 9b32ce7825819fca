package rule

import (
	"errors"
	"strings"
	"testing"
)

func TestMatrixSymmetric(t *testing.T) {
	t.Parallel()

	reg := Default()
	for _, ts := range reg.Triggers() {
		for _, as := range reg.Actions() {
			compat := reg.Compatible(ts.Kind, as.Kind)
			inActions := containsAction(reg.ActionsFor(ts.Kind), as.Kind)
			inTriggers := containsTrigger(reg.TriggersFor(as.Kind), ts.Kind)
			if compat != inActions || compat != inTriggers {
				t.Fatalf("%s/%s: compatible=%v actionsFor=%v triggersFor=%v", ts.Kind, as.Kind, compat, inActions, inTriggers)
			}
		}
	}
}

func TestTimeRangeActionsAreReversible(t *testing.T) {
	t.Parallel()

	reg := Default()
	for _, as := range reg.Actions() {
		if got := reg.Compatible(TriggerTimeRange, as.Kind); got != as.Reversible {
			t.Fatalf("%s: time-range compatible=%v reversible=%v", as.Kind, got, as.Reversible)
		}
	}
}

func TestMatrixRows(t *testing.T) {
	t.Parallel()

	reg := Default()
	cases := []struct {
		trigger TriggerKind
		want    []ActionKind
	}{
		{TriggerInterval, []ActionKind{ActionQuitApps, ActionOpenURLs, ActionEmptyTrash, ActionCleanDownloads, ActionMoveFiles, ActionNotify}},
		{TriggerPathWatch, []ActionKind{ActionOpenApps, ActionOpenFile, ActionMoveFiles, ActionNotify}},
		{TriggerDriveMount, []ActionKind{ActionOpenApps, ActionOpenFile, ActionOpenURLs, ActionNotify}},
		{TriggerTimeRange, []ActionKind{ActionOpenApps, ActionQuitApps, ActionAppearance, ActionVolume, ActionKeepAwake}},
	}
	for _, tc := range cases {
		got := reg.ActionsFor(tc.trigger)
		if len(got) != len(tc.want) {
			t.Fatalf("%s: got %v want %v", tc.trigger, got, tc.want)
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Fatalf("%s: got %v want %v", tc.trigger, got, tc.want)
			}
		}
	}
	if n := len(reg.ActionsFor(TriggerSchedule)); n != len(reg.Actions()) {
		t.Fatalf("fixed-schedule should accept every action, got %d", n)
	}
}

func TestNewRegistryRejectsIrreversibleTimeRange(t *testing.T) {
	t.Parallel()

	bad := &ActionSpec{
		Kind:     ActionEmptyTrash,
		Body:     ScriptAppleScript,
		Triggers: []TriggerKind{TriggerTimeRange},
		fields:   staticFields(),
		decode:   func(*reader, TriggerKind) ActionConfig { return EmptyTrash{} },
	}
	if _, err := newRegistry(builtinTriggers(), []*ActionSpec{bad}); err == nil {
		t.Fatalf("expected error for non-reversible time-range action")
	}
}

func TestDecodeRejectsUnknownKey(t *testing.T) {
	t.Parallel()

	ts, _ := Default().Trigger(TriggerSchedule)
	_, err := ts.Decode(map[string]string{"time": "09:00", "hour": "9"})
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Field != "hour" {
		t.Fatalf("expected unknown field error on hour, got %v", err)
	}
}

func TestDecodeTriggerErrors(t *testing.T) {
	t.Parallel()

	reg := Default()
	cases := []struct {
		name  string
		kind  TriggerKind
		vals  map[string]string
		field string
	}{
		{"missing time", TriggerSchedule, map[string]string{}, "time"},
		{"bad time", TriggerSchedule, map[string]string{"time": "25:00"}, "time"},
		{"weekday zero", TriggerSchedule, map[string]string{"time": "09:00", "days": "0,2"}, "days"},
		{"weekday eight", TriggerSchedule, map[string]string{"time": "09:00", "days": "8"}, "days"},
		{"zero minutes", TriggerInterval, map[string]string{"minutes": "0"}, "minutes"},
		{"no path", TriggerPathWatch, map[string]string{"path": "  "}, "path"},
		{"wraparound", TriggerTimeRange, map[string]string{"start": "22:00", "end": "06:00"}, "end"},
		{"empty range", TriggerTimeRange, map[string]string{"start": "09:00", "end": "09:00"}, "end"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			ts, _ := reg.Trigger(tc.kind)
			_, err := ts.Decode(tc.vals)
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if ve.Field != tc.field {
				t.Fatalf("field=%q want %q (%v)", ve.Field, tc.field, err)
			}
		})
	}
}

func TestDecodeActionDependsOnPeer(t *testing.T) {
	t.Parallel()

	reg := Default()
	vol, _ := reg.Action(ActionVolume)
	if _, err := vol.Decode(map[string]string{"volume": "20", "restore_volume": "60"}, TriggerSchedule); err == nil {
		t.Fatalf("restore_volume must be rejected outside time-range")
	}
	cfg, err := vol.Decode(map[string]string{"volume": "20", "restore_volume": "60"}, TriggerTimeRange)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if sv := cfg.(SetVolume); sv.Level != 20 || sv.Restore != 60 {
		t.Fatalf("unexpected %+v", sv)
	}

	mv, _ := reg.Action(ActionMoveFiles)
	if _, err := mv.Decode(map[string]string{"destination": "/tmp/x", "source": "/tmp/y"}, TriggerPathWatch); err == nil {
		t.Fatalf("source must be rejected under path-watch")
	}

	ka, _ := reg.Action(ActionKeepAwake)
	if _, err := ka.Decode(map[string]string{"duration": "2 hours"}, TriggerTimeRange); err == nil {
		t.Fatalf("duration must be rejected under time-range")
	}
	if _, err := ka.Decode(map[string]string{"duration": "3 hours"}, TriggerSchedule); err == nil {
		t.Fatalf("unknown duration option must be rejected")
	}
}

func TestQuitAllWaivesApps(t *testing.T) {
	t.Parallel()

	qs, _ := Default().Action(ActionQuitApps)
	if _, err := qs.Decode(map[string]string{"quit_all": "true"}, TriggerSchedule); err != nil {
		t.Fatalf("quit_all without apps: %v", err)
	}
	if _, err := qs.Decode(map[string]string{}, TriggerSchedule); err == nil {
		t.Fatalf("expected apps to be required")
	}
	if got := qs.Missing(map[string]string{"quit_all": "true"}, TriggerSchedule); len(got) != 0 {
		t.Fatalf("missing=%v", got)
	}
	if got := qs.Missing(nil, TriggerSchedule); len(got) != 1 || got[0] != "apps" {
		t.Fatalf("missing=%v", got)
	}
}

func TestDecodePairIncompatible(t *testing.T) {
	t.Parallel()

	_, _, err := Default().DecodePair(TriggerTimeRange, map[string]string{"start": "09:00", "end": "10:00"},
		ActionEmptyTrash, nil)
	var ce *CompatibilityError
	if !errors.As(err, &ce) {
		t.Fatalf("expected CompatibilityError, got %v", err)
	}
	if !IsValidation(err) {
		t.Fatalf("IsValidation should accept compatibility errors")
	}
	if _, _, err := Default().DecodePair("sunrise", nil, ActionEmptyTrash, nil); !errors.Is(err, ErrUnknownTrigger) {
		t.Fatalf("expected ErrUnknownTrigger, got %v", err)
	}
}

func TestPreviewFillsDefaults(t *testing.T) {
	t.Parallel()

	reg := Default()
	ts, _ := reg.Trigger(TriggerTimeRange)
	tr := ts.Preview(map[string]string{"start": "bogus"}).(TimeRange)
	if tr.Start != (Clock{Hour: 9}) || tr.End != (Clock{Hour: 17}) {
		t.Fatalf("unexpected preview %+v", tr)
	}
	cd, _ := reg.Action(ActionCleanDownloads)
	if got := cd.Preview(nil, TriggerSchedule).(CleanDownloads).DaysOld; got != 30 {
		t.Fatalf("days_old default=%d", got)
	}
}

func containsAction(list []ActionKind, k ActionKind) bool {
	for _, v := range list {
		if v == k {
			return true
		}
	}
	return false
}

func containsTrigger(list []TriggerKind, k TriggerKind) bool {
	for _, v := range list {
		if v == k {
			return true
		}
	}
	return false
}

func TestRevertDiffers(t *testing.T) {
	t.Parallel()

	reg := Default()
	want := map[ActionKind]bool{
		ActionOpenApps:   true,
		ActionQuitApps:   true,
		ActionAppearance: false,
		ActionVolume:     false,
		ActionKeepAwake:  false,
	}
	for k, w := range want {
		as, _ := reg.Action(k)
		if got := as.RevertDiffers(); got != w {
			t.Fatalf("%s: RevertDiffers=%v want %v", k, got, w)
		}
	}
	trash, _ := reg.Action(ActionEmptyTrash)
	if trash.RevertDiffers() {
		t.Fatalf("non-reversible action cannot have a differing revert")
	}
	if !strings.HasPrefix(trash.Name, "Empty") {
		t.Fatalf("name=%q", trash.Name)
	}
}

func TestCatalogFollowsDeclarationOrder(t *testing.T) {
	t.Parallel()

	c := Default().Catalog()
	if len(c.Triggers) != 6 || len(c.Actions) != 11 {
		t.Fatalf("catalog sizes: %d triggers, %d actions", len(c.Triggers), len(c.Actions))
	}
	if c.Triggers[0].Kind != TriggerSchedule || c.Actions[len(c.Actions)-1].Kind != ActionKeepAwake {
		t.Fatalf("order: first trigger %s, last action %s", c.Triggers[0].Kind, c.Actions[len(c.Actions)-1].Kind)
	}
	for _, a := range c.Actions {
		if len(a.Triggers) == 0 || len(a.Fields) == 0 && a.Kind != ActionEmptyTrash {
			t.Fatalf("%s: triggers=%v fields=%d", a.Kind, a.Triggers, len(a.Fields))
		}
	}
}
