package rule

import "time"

// CalendarEntry fires at Hour:Minute. Weekday 0 means every day.
type CalendarEntry struct {
	Hour    int
	Minute  int
	Weekday Weekday
}

// Schedule is the native firing condition of a job unit. Exactly one of the
// fields is set.
type Schedule struct {
	Calendar   []CalendarEntry
	Interval   time.Duration
	AtLoad     bool
	WatchPaths []string
	OnMount    bool
}

// calendar expands a clock and day set into entries. Daily sets produce a
// single entry without a weekday.
func calendar(at Clock, days WeekdaySet) []CalendarEntry {
	if days.Daily() {
		return []CalendarEntry{{Hour: at.Hour, Minute: at.Minute}}
	}
	out := make([]CalendarEntry, 0, days.Len())
	for _, d := range days.Days() {
		out = append(out, CalendarEntry{Hour: at.Hour, Minute: at.Minute, Weekday: d})
	}
	return out
}

// Weekdays returns the day set a calendar schedule fires on.
func (s Schedule) Weekdays() WeekdaySet {
	var set WeekdaySet
	for _, e := range s.Calendar {
		if e.Weekday == 0 {
			return AllDays
		}
		set |= NewWeekdaySet(e.Weekday)
	}
	return set
}
