package suggest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"automata/internal/rule"
)

func TestParseEmpty(t *testing.T) {
	t.Parallel()

	e := New(nil, nil, nil)
	for _, in := range []string{"", "   ", "\t\n"} {
		res := e.Parse(in)
		assert.Empty(t, res.Suggestions, "input %q", in)
		assert.Empty(t, res.Templates, "input %q", in)
		assert.NotNil(t, res.Suggestions)
	}
}

func TestParseDarkMode(t *testing.T) {
	t.Parallel()

	res := New(nil, nil, nil).Parse("Dark mode at 10pm")
	require.NotEmpty(t, res.Suggestions)
	top := res.Suggestions[0]
	assert.Equal(t, rule.ActionAppearance, top.Action)
	assert.Equal(t, rule.TriggerSchedule, top.Trigger)
	assert.Equal(t, "22:00", top.TriggerValues["time"])
	assert.Equal(t, "1,2,3,4,5,6,7", top.TriggerValues["days"])
	assert.Equal(t, rule.ModeDark, top.ActionValues["mode"])
	assert.Empty(t, top.Missing)
	assert.Equal(t, 1.0, top.Score)

	require.NotEmpty(t, res.Templates)
	for _, tpl := range res.Templates {
		assert.Equal(t, rule.ActionAppearance, tpl.Action)
	}

	r, err := top.Accept(nil, "", nil)
	require.NoError(t, err)
	fs := r.Trigger.(rule.FixedSchedule)
	assert.Equal(t, rule.Clock{Hour: 22}, fs.At)
	assert.Equal(t, rule.AllDays, fs.Days)
}

func TestParseReminder(t *testing.T) {
	t.Parallel()

	res := New(nil, nil, nil).Parse("remind me to drink water every 30 minutes")
	require.NotEmpty(t, res.Suggestions)
	top := res.Suggestions[0]
	assert.Equal(t, rule.ActionNotify, top.Action)
	assert.Equal(t, rule.TriggerInterval, top.Trigger)
	assert.Equal(t, "30", top.TriggerValues["minutes"])
	assert.Equal(t, "Drink water", top.ActionValues["message"])
}

func TestParseApps(t *testing.T) {
	t.Parallel()

	e := New(nil, nil, []string{"Discord", "Safari", "Slack"})
	res := e.Parse("quit slack and discord at 6pm on weekdays")
	require.NotEmpty(t, res.Suggestions)
	top := res.Suggestions[0]
	assert.Equal(t, rule.ActionQuitApps, top.Action)
	assert.Equal(t, rule.TriggerSchedule, top.Trigger)
	assert.Equal(t, "Discord,Slack", top.ActionValues["apps"])
	assert.Equal(t, "18:00", top.TriggerValues["time"])
	assert.Equal(t, rule.WorkWeek.String(), top.TriggerValues["days"])
}

func TestParseTimeRange(t *testing.T) {
	t.Parallel()

	res := New(nil, nil, nil).Parse("keep awake between 9am and 5pm")
	require.NotEmpty(t, res.Suggestions)
	top := res.Suggestions[0]
	assert.Equal(t, rule.ActionKeepAwake, top.Action)
	assert.Equal(t, rule.TriggerTimeRange, top.Trigger)
	assert.Equal(t, "09:00", top.TriggerValues["start"])
	assert.Equal(t, "17:00", top.TriggerValues["end"])
	assert.NotContains(t, top.ActionValues, "duration")

	r, err := top.Accept(nil, "Work hours", nil)
	require.NoError(t, err)
	tr := r.Trigger.(rule.TimeRange)
	assert.Equal(t, rule.Clock{Hour: 17}, tr.End)
	assert.Equal(t, "Work hours", r.Name)
}

func TestAcceptMissing(t *testing.T) {
	t.Parallel()

	res := New(nil, nil, nil).Parse("quit apps at 6pm")
	require.NotEmpty(t, res.Suggestions)
	top := res.Suggestions[0]
	require.Equal(t, rule.ActionQuitApps, top.Action)
	assert.Equal(t, []string{"apps"}, top.Missing)

	_, err := top.Accept(nil, "", nil)
	assert.True(t, rule.IsValidation(err), "got %v", err)

	_, err = top.Accept(nil, "", map[string]string{"colour": "red"})
	assert.True(t, rule.IsValidation(err), "got %v", err)

	r, err := top.Accept(nil, "", map[string]string{"apps": "Slack"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Slack"}, r.Action.(rule.QuitApps).Apps)
}

func TestTemplateFallback(t *testing.T) {
	t.Parallel()

	res := New(nil, nil, nil).Parse("Daily Standup")
	assert.Empty(t, res.Suggestions)
	require.Len(t, res.Templates, 1)
	assert.Equal(t, "daily-standup", res.Templates[0].ID)
}

func TestParseDeterministic(t *testing.T) {
	t.Parallel()

	e := New(nil, nil, []string{"Mail", "Safari"})
	in := "open safari and mail every weekday at 8:30am"
	first := e.Parse(in)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, e.Parse(in))
	}
	assert.LessOrEqual(t, len(first.Suggestions), maxSuggestions)
	assert.LessOrEqual(t, len(first.Templates), maxTemplates)
}

func TestFuzzy(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 2, levenshtein("dark", "drak"))
	assert.Equal(t, 0, levenshtein("", ""))
	assert.Equal(t, 3, levenshtein("", "abc"))
	assert.True(t, fuzzyContains("turn on drak mode", "dark mode", 2))
	assert.True(t, fuzzyContains("please notfy me", "notify", 2))
	assert.False(t, fuzzyContains("dxxx mode", "dark mode", 2))

	short := []group{{[]string{"run"}, 0.15}}
	assert.Zero(t, score(short, "ran"))
	long := []group{{[]string{"launch"}, 0.2}}
	assert.InDelta(t, 0.14, score(long, "lanch it"), 1e-9)
	assert.InDelta(t, 0.2, score(long, "launch it"), 1e-9)
}

func TestExtractors(t *testing.T) {
	t.Parallel()

	clocks := map[string]rule.Clock{
		"at noon":        {Hour: 12},
		"at midnight":    {},
		"at 12am":        {},
		"at 12:15 pm":    {Hour: 12, Minute: 15},
		"at 7:05 a.m.":   {Hour: 7, Minute: 5},
		"at 18:45 daily": {Hour: 18, Minute: 45},
	}
	for in, want := range clocks {
		got, ok := extractClock(in)
		require.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	_, ok := extractClock("at 25:00")
	assert.False(t, ok)

	days, ok := extractWeekdays("on mondays and fridays")
	require.True(t, ok)
	assert.Equal(t, rule.NewWeekdaySet(rule.Monday, rule.Friday), days)
	days, _ = extractWeekdays("every weekend")
	assert.Equal(t, rule.Weekend, days)
	_, ok = extractWeekdays("someday")
	assert.False(t, ok)

	n, ok := extractInterval("every 2 hours")
	assert.True(t, ok)
	assert.Equal(t, 120, n)
	n, _ = extractInterval("hourly please")
	assert.Equal(t, 60, n)

	n, _ = extractNumber("set volume to 40%")
	assert.Equal(t, 40, n)
	n, _ = extractNumber("older than 14 days")
	assert.Equal(t, 14, n)

	assert.Equal(t, rule.ModeLight, extractMode("switch to light mode"))
	assert.Equal(t, rule.ModeToggle, extractMode("toggle theme"))

	d, ok := extractDuration("for 2 hours")
	assert.True(t, ok)
	assert.Equal(t, "2 hours", d)
	_, ok = extractDuration("for 7 hours")
	assert.False(t, ok)

	msg, _ := extractMessage(`notify me "Stand up"`)
	assert.Equal(t, "Stand up", msg)
	msg, _ = extractMessage("show a notification saying Time to go")
	assert.Equal(t, "Time to go", msg)
	_, ok = extractMessage("dark mode")
	assert.False(t, ok)
}

func TestExtractClockPrefersEarliest(t *testing.T) {
	t.Parallel()

	start, ok := extractClock("dark mode between 9am and noon")
	require.True(t, ok)
	assert.Equal(t, rule.Clock{Hour: 9}, start)
	end, ok := extractRangeEnd("dark mode between 9am and noon")
	require.True(t, ok)
	assert.Equal(t, rule.Clock{Hour: 12}, end)

	start, _ = extractClock("from 22:00 to midnight")
	assert.Equal(t, rule.Clock{Hour: 22}, start)
	end, ok = extractRangeEnd("from 22:00 to midnight")
	require.True(t, ok)
	assert.Equal(t, rule.Clock{}, end)

	c, _ := extractClock("at 10:30pm")
	assert.Equal(t, rule.Clock{Hour: 22, Minute: 30}, c)
	_, ok = extractClock("every afternoon")
	assert.False(t, ok)

	vals, missing := triggerValues(rule.TriggerTimeRange, "keep awake between 9am and noon on weekdays")
	assert.Empty(t, missing)
	assert.Equal(t, "09:00", vals["start"])
	assert.Equal(t, "12:00", vals["end"])
}
