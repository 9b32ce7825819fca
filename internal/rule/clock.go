package rule

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Clock is a wall-clock time of day with minute precision.
type Clock struct {
	Hour   int
	Minute int
}

var reClock = regexp.MustCompile(`^\s*(\d{1,2}):(\d{2})\s*$`)

// ParseClock parses 24-hour "HH:MM".
func ParseClock(raw string) (Clock, error) {
	m := reClock.FindStringSubmatch(raw)
	if m == nil {
		return Clock{}, fmt.Errorf("invalid time %q (want HH:MM)", strings.TrimSpace(raw))
	}
	h, _ := strconv.Atoi(m[1])
	mm, _ := strconv.Atoi(m[2])
	c := Clock{Hour: h, Minute: mm}
	if !c.Valid() {
		return Clock{}, fmt.Errorf("time %q out of range", strings.TrimSpace(raw))
	}
	return c, nil
}

func (c Clock) Valid() bool {
	return c.Hour >= 0 && c.Hour <= 23 && c.Minute >= 0 && c.Minute <= 59
}

// Minutes since midnight.
func (c Clock) Minutes() int { return c.Hour*60 + c.Minute }

// String is the persisted form, "HH:MM".
func (c Clock) String() string { return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute) }

// Kitchen renders "9:00 AM" style text.
func (c Clock) Kitchen() string {
	period := "AM"
	if c.Hour >= 12 {
		period = "PM"
	}
	h := c.Hour % 12
	if h == 0 {
		h = 12
	}
	return fmt.Sprintf("%d:%02d %s", h, c.Minute, period)
}
