package rule

import (
	"fmt"
	"math/bits"
	"strconv"
	"strings"
)

// Weekday numbers days 1=Sunday through 7=Saturday.
type Weekday int

const (
	Sunday Weekday = iota + 1
	Monday
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
)

var dayAbbrev = [...]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

func (d Weekday) Valid() bool { return d >= Sunday && d <= Saturday }

func (d Weekday) String() string {
	if !d.Valid() {
		return "Weekday(" + strconv.Itoa(int(d)) + ")"
	}
	return dayAbbrev[d-1]
}

// WeekdaySet is a bitmask of selected days. The empty set means every day.
type WeekdaySet uint8

const (
	AllDays  WeekdaySet = 0x7f
	WorkWeek WeekdaySet = 1<<(Monday-1) | 1<<(Tuesday-1) | 1<<(Wednesday-1) | 1<<(Thursday-1) | 1<<(Friday-1)
	Weekend  WeekdaySet = 1<<(Sunday-1) | 1<<(Saturday-1)
)

func NewWeekdaySet(days ...Weekday) WeekdaySet {
	var s WeekdaySet
	for _, d := range days {
		if d.Valid() {
			s |= 1 << (d - 1)
		}
	}
	return s
}

func (s WeekdaySet) Has(d Weekday) bool { return d.Valid() && s&(1<<(d-1)) != 0 }

func (s WeekdaySet) Len() int { return bits.OnesCount8(uint8(s & AllDays)) }

// Daily reports whether the set fires on every day. Full and empty sets are
// equivalent.
func (s WeekdaySet) Daily() bool {
	s &= AllDays
	return s == 0 || s == AllDays
}

// Days lists the selected days in day-of-week order.
func (s WeekdaySet) Days() []Weekday {
	out := make([]Weekday, 0, 7)
	for d := Sunday; d <= Saturday; d++ {
		if s.Has(d) {
			out = append(out, d)
		}
	}
	return out
}

// Phrase renders the set for sentences: "Every day", "Every weekday",
// "Every weekend" or "Mon, Wed".
func (s WeekdaySet) Phrase() string {
	s &= AllDays
	switch {
	case s.Daily():
		return "Every day"
	case s == WorkWeek:
		return "Every weekday"
	case s == Weekend:
		return "Every weekend"
	}
	days := s.Days()
	names := make([]string, len(days))
	for i, d := range days {
		names[i] = d.String()
	}
	return strings.Join(names, ", ")
}

// String is the persisted form, e.g. "2,3,4,5,6". The empty set renders as "".
func (s WeekdaySet) String() string {
	days := s.Days()
	parts := make([]string, len(days))
	for i, d := range days {
		parts[i] = strconv.Itoa(int(d))
	}
	return strings.Join(parts, ",")
}

// ParseWeekdays parses a comma-separated list of day numbers.
// Out-of-range or non-numeric entries are an error.
func ParseWeekdays(raw string) (WeekdaySet, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	var s WeekdaySet
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return 0, fmt.Errorf("invalid weekday %q", part)
		}
		d := Weekday(n)
		if !d.Valid() {
			return 0, fmt.Errorf("weekday %d out of range 1-7", n)
		}
		s |= 1 << (d - 1)
	}
	return s, nil
}
