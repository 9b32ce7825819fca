package compiler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"automata/internal/rule"
)

var calendarParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// CronSpec renders a calendar entry as a 5-field cron expression. Cron
// counts weekdays from 0=Sunday.
func CronSpec(e rule.CalendarEntry) string {
	dow := "*"
	if e.Weekday != 0 {
		dow = fmt.Sprint(int(e.Weekday) - 1)
	}
	return fmt.Sprintf("%d %d * * %s", e.Minute, e.Hour, dow)
}

// NextRuns previews the next n fire times of a calendar or interval schedule
// after from. Event-driven schedules (login, path, mount) return nil.
func NextRuns(s rule.Schedule, from time.Time, n int) ([]time.Time, error) {
	if n <= 0 {
		return nil, nil
	}
	var scheds []cron.Schedule
	switch {
	case len(s.Calendar) > 0:
		for _, e := range s.Calendar {
			cs, err := calendarParser.Parse(CronSpec(e))
			if err != nil {
				return nil, fmt.Errorf("calendar entry %+v: %w", e, err)
			}
			scheds = append(scheds, cs)
		}
	case s.Interval > 0:
		scheds = append(scheds, cron.Every(s.Interval))
	default:
		return nil, nil
	}

	next := make([]time.Time, len(scheds))
	for i, cs := range scheds {
		next[i] = cs.Next(from)
	}
	out := make([]time.Time, 0, n)
	for len(out) < n {
		first := 0
		for i := range next {
			if next[i].Before(next[first]) {
				first = i
			}
		}
		if next[first].IsZero() {
			break
		}
		out = append(out, next[first])
		next[first] = scheds[first].Next(next[first])
	}
	return out, nil
}
