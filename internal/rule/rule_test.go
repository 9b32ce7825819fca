package rule

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestWeekdayPhrase(t *testing.T) {
	t.Parallel()

	cases := []struct {
		days WeekdaySet
		want string
	}{
		{0, "Every day"},
		{AllDays, "Every day"},
		{WorkWeek, "Every weekday"},
		{Weekend, "Every weekend"},
		{NewWeekdaySet(Monday, Wednesday), "Mon, Wed"},
		{NewWeekdaySet(Saturday, Sunday, Tuesday), "Sun, Tue, Sat"},
	}
	for _, tc := range cases {
		if got := tc.days.Phrase(); got != tc.want {
			t.Fatalf("Phrase(%s)=%q want %q", tc.days, got, tc.want)
		}
	}
}

func TestWeekdayCanonicalCalendar(t *testing.T) {
	t.Parallel()

	full := FixedSchedule{At: Clock{Hour: 7, Minute: 30}, Days: AllDays}.Schedule()
	if len(full.Calendar) != 1 || full.Calendar[0].Weekday != 0 {
		t.Fatalf("full week should compile to one unqualified entry: %+v", full.Calendar)
	}
	empty := FixedSchedule{At: Clock{Hour: 7, Minute: 30}}.Schedule()
	if len(empty.Calendar) != 1 || empty.Calendar[0].Weekday != 0 {
		t.Fatalf("empty set should compile to one unqualified entry: %+v", empty.Calendar)
	}
	some := FixedSchedule{At: Clock{Hour: 7, Minute: 30}, Days: NewWeekdaySet(Monday, Friday)}.Schedule()
	if len(some.Calendar) != 2 || some.Calendar[0].Weekday != Monday || some.Calendar[1].Weekday != Friday {
		t.Fatalf("unexpected entries: %+v", some.Calendar)
	}
	if some.Weekdays() != NewWeekdaySet(Monday, Friday) {
		t.Fatalf("Weekdays=%s", some.Weekdays())
	}
}

func TestParseWeekdays(t *testing.T) {
	t.Parallel()

	s, err := ParseWeekdays("6, 2,4")
	if err != nil {
		t.Fatalf("ParseWeekdays: %v", err)
	}
	if s.String() != "2,4,6" {
		t.Fatalf("String=%q", s.String())
	}
	if _, err := ParseWeekdays("mon"); err == nil {
		t.Fatalf("expected error for non-numeric day")
	}
}

func TestClockKitchen(t *testing.T) {
	t.Parallel()

	cases := map[Clock]string{
		{Hour: 0, Minute: 5}:   "12:05 AM",
		{Hour: 9}:              "9:00 AM",
		{Hour: 12}:             "12:00 PM",
		{Hour: 22, Minute: 45}: "10:45 PM",
	}
	for c, want := range cases {
		if got := c.Kitchen(); got != want {
			t.Fatalf("Kitchen(%s)=%q want %q", c, got, want)
		}
	}
}

func TestSentence(t *testing.T) {
	t.Parallel()

	r := &Rule{
		Trigger: FixedSchedule{At: Clock{Hour: 9}, Days: WorkWeek},
		Action:  OpenApps{Apps: []string{"Safari", "Mail"}},
	}
	if got, want := r.Sentence(), "Every weekday at 9:00 AM, open Safari and Mail"; got != want {
		t.Fatalf("Sentence=%q want %q", got, want)
	}

	cases := []struct {
		t    TriggerConfig
		a    ActionConfig
		want string
	}{
		{FixedInterval{Minutes: 45}, Notify{Message: "Stretch"}, `Every 45 min, remind: "Stretch"`},
		{PathWatch{Path: "/Users/me/Downloads"}, MoveFiles{Destination: "/Users/me/Archive"}, "When files appear in Downloads, move files to Archive"},
		{DriveMount{}, OpenURLs{URLs: []string{"a", "b"}}, "When a drive is mounted, open 2 URLs"},
		{OnLogin{}, Appearance{Mode: ModeToggle}, "On login, toggle Dark Mode"},
		{TimeRange{Start: Clock{Hour: 22}, End: Clock{Hour: 23}}, SetVolume{Level: 10}, "Every day from 10:00 PM to 11:00 PM, set volume to 10%"},
	}
	for _, tc := range cases {
		r := &Rule{Trigger: tc.t, Action: tc.a}
		if got := r.Sentence(); got != tc.want {
			t.Fatalf("Sentence=%q want %q", got, tc.want)
		}
	}
}

func TestAppearanceRevertIsInverse(t *testing.T) {
	t.Parallel()

	dark := Appearance{Mode: ModeDark}
	tr := TimeRange{Start: Clock{Hour: 20}, End: Clock{Hour: 22}}
	if !strings.Contains(dark.Script(tr).Body, "set dark mode to true") {
		t.Fatalf("primary body: %q", dark.Script(tr).Body)
	}
	rev := dark.Revert(tr)
	if rev.Kind != ScriptAppleScript || !strings.Contains(rev.Body, "set dark mode to false") {
		t.Fatalf("revert body: %q", rev.Body)
	}
	if InverseMode(ModeToggle) != ModeToggle {
		t.Fatalf("toggle should be its own inverse")
	}
}

func TestScriptEscapesQuotes(t *testing.T) {
	t.Parallel()

	s := Notify{Message: `say "hi" $HOME`}.Script(OnLogin{})
	want := `display notification "say \"hi\" $HOME" with title "Automata"`
	if !strings.Contains(s.Body, want) {
		t.Fatalf("body=%q", s.Body)
	}
}

func TestMoveFilesSourceFromPeer(t *testing.T) {
	t.Parallel()

	m := MoveFiles{Destination: "/tmp/out"}
	if body := m.Script(PathWatch{Path: "/tmp/in"}).Body; !strings.Contains(body, `SOURCE="/tmp/in"`) {
		t.Fatalf("path-watch source not used: %q", body)
	}
	if body := m.Script(FixedInterval{Minutes: 5}).Body; !strings.Contains(body, `SOURCE="$HOME/Downloads"`) {
		t.Fatalf("default source not used: %q", body)
	}
}

func TestKeepAwakeUsesRangeSpan(t *testing.T) {
	t.Parallel()

	tr := TimeRange{Start: Clock{Hour: 9}, End: Clock{Hour: 10, Minute: 30}}
	if body := (KeepAwake{}).Script(tr).Body; !strings.Contains(body, "caffeinate -di -t 5400") {
		t.Fatalf("body=%q", body)
	}
	if body := (KeepAwake{Duration: "30 min"}).Script(OnLogin{}).Body; !strings.Contains(body, "caffeinate -di -t 1800") {
		t.Fatalf("body=%q", body)
	}
}

func TestSetTriggerResetsIncompatibleAction(t *testing.T) {
	t.Parallel()

	reg := Default()
	r := &Rule{Trigger: PathWatch{Path: "/tmp/in"}, Action: MoveFiles{Destination: "/tmp/out"}}
	if reset := reg.SetTrigger(r, OnLogin{}); !reset {
		t.Fatalf("expected reset")
	}
	oa, ok := r.Action.(OpenApps)
	if !ok || len(oa.Apps) != 0 {
		t.Fatalf("expected default open-apps, got %#v", r.Action)
	}
}

func TestSetTriggerRenormalizesAction(t *testing.T) {
	t.Parallel()

	reg := Default()
	r := &Rule{Trigger: FixedSchedule{At: Clock{Hour: 8}}, Action: SetVolume{Level: 20, Restore: 50}}
	if reset := reg.SetTrigger(r, TimeRange{Start: Clock{Hour: 22}, End: Clock{Hour: 23}}); reset {
		t.Fatalf("set-volume is valid on time-range, no reset expected")
	}
	vs, _ := reg.Action(ActionVolume)
	vals := vs.Values(r.Action, TriggerTimeRange)
	if vals["volume"] != "20" || vals["restore_volume"] != "50" {
		t.Fatalf("values=%v", vals)
	}

	reg.SetTrigger(r, OnLogin{})
	if _, ok := vs.Values(r.Action, TriggerLogin)["restore_volume"]; ok {
		t.Fatalf("restore_volume should disappear outside time-range")
	}

	ka := &Rule{Trigger: FixedSchedule{At: Clock{Hour: 8}}, Action: KeepAwake{Duration: "2 hours"}}
	reg.SetTrigger(ka, TimeRange{Start: Clock{Hour: 9}, End: Clock{Hour: 17}})
	if got := ka.Action.(KeepAwake).Duration; got != "" {
		t.Fatalf("duration under time-range=%q", got)
	}
}

func TestSetActionResetsIncompatibleTrigger(t *testing.T) {
	t.Parallel()

	reg := Default()
	r := &Rule{Trigger: DriveMount{}, Action: OpenFile{Path: "/tmp/a"}}
	if reset := reg.SetAction(r, KeepAwake{Duration: "4 hours"}); !reset {
		t.Fatalf("expected trigger reset")
	}
	fs, ok := r.Trigger.(FixedSchedule)
	if !ok || fs.At != (Clock{Hour: 9}) {
		t.Fatalf("expected default fixed-schedule, got %#v", r.Trigger)
	}
	if got := r.Action.(KeepAwake).Duration; got != "4 hours" {
		t.Fatalf("duration=%q", got)
	}
	if err := r.Validate(reg); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestNewValidates(t *testing.T) {
	t.Parallel()

	reg := Default()
	if _, err := New(reg, "", TimeRange{Start: Clock{Hour: 9}, End: Clock{Hour: 17}}, EmptyTrash{}); !IsValidation(err) {
		t.Fatalf("expected compatibility error, got %v", err)
	}
	if _, err := New(reg, "", OnLogin{}, SetVolume{Level: 120}); !IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	r, err := New(reg, " Morning ", OnLogin{}, OpenApps{Apps: []string{"Safari"}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if len(r.ID) != 8 || !r.Enabled || r.Name != "Morning" {
		t.Fatalf("unexpected rule %+v", r)
	}
	if want := "com.automata.on-login.open-apps." + r.ID; r.Label() != want {
		t.Fatalf("Label=%q want %q", r.Label(), want)
	}
}

func TestRuleJSON(t *testing.T) {
	t.Parallel()

	ran := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	in := Rule{
		ID:        "ab12cd34",
		Trigger:   TimeRange{Start: Clock{Hour: 22}, End: Clock{Hour: 23, Minute: 30}, Days: WorkWeek},
		Action:    SetVolume{Level: 10, Restore: 40},
		Enabled:   true,
		CreatedAt: ran,
		LastRunAt: &ran,
	}
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !strings.Contains(string(data), `"trigger":{"type":"time-range","config":{"days":"2,3,4,5,6","end":"23:30","start":"22:00"}}`) {
		t.Fatalf("wire form: %s", data)
	}
	var out Rule
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if out.Sentence() != in.Sentence() || out.Action != in.Action || out.LastRunAt == nil {
		t.Fatalf("decoded %+v", out)
	}

	bad := strings.Replace(string(data), `"start":"22:00"`, `"start":"22:00","hour":"1"`, 1)
	if err := json.Unmarshal([]byte(bad), &out); err == nil {
		t.Fatalf("expected unknown key to be rejected")
	}
}
