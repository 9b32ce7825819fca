package suggest

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"automata/internal/rule"
)

var (
	reClock12    = regexp.MustCompile(`(\d{1,2})(?::(\d{2}))?\s*(am|pm|a\.m\.|p\.m\.)`)
	reClock24    = regexp.MustCompile(`(\d{1,2}):(\d{2})`)
	reEveryMin   = regexp.MustCompile(`every\s+(\d+)\s*(?:min|minute)`)
	reEveryHour  = regexp.MustCompile(`every\s+(\d+)\s*hour`)
	reNamedClock = regexp.MustCompile(`\b(noon|midnight)\b`)
	reRangeEnd   = []*regexp.Regexp{
		regexp.MustCompile(`and\s+(noon|midnight|\d{1,2}(?::\d{2})?\s*(?:am|pm|a\.m\.|p\.m\.)?)`),
		regexp.MustCompile(`to\s+(noon|midnight|\d{1,2}(?::\d{2})?\s*(?:am|pm|a\.m\.|p\.m\.)?)`),
	}
	reNumbers = []*regexp.Regexp{
		regexp.MustCompile(`(\d+)\s*%`),
		regexp.MustCompile(`to\s+(\d+)`),
		regexp.MustCompile(`(\d+)\s*days?`),
	}
	reHours  = regexp.MustCompile(`(?:for\s+)?(\d+)\s*hours?`)
	reQuoted = []*regexp.Regexp{
		regexp.MustCompile(`"([^"]+)"`),
		regexp.MustCompile(`'([^']+)'`),
	}
	reSaying = []*regexp.Regexp{
		regexp.MustCompile(`(?i)saying\s+(.+)`),
		regexp.MustCompile(`(?i)that says\s+(.+)`),
	}
	reRemind = []*regexp.Regexp{
		regexp.MustCompile(`(?i)remind me to\s+(.+?)(?:\s+every|\s+at|\s+on|$)`),
		regexp.MustCompile(`(?i)reminder to\s+(.+?)(?:\s+every|\s+at|\s+on|$)`),
		regexp.MustCompile(`(?i)notify(?:\s+me)?\s+to\s+(.+?)(?:\s+every|\s+at|\s+on|$)`),
	}
)

var dayNames = []struct {
	day   rule.Weekday
	names []string
}{
	{rule.Sunday, []string{"sunday", "sun"}},
	{rule.Monday, []string{"monday", "mon"}},
	{rule.Tuesday, []string{"tuesday", "tues", "tue"}},
	{rule.Wednesday, []string{"wednesday", "wed"}},
	{rule.Thursday, []string{"thursday", "thurs", "thur", "thu"}},
	{rule.Friday, []string{"friday", "fri"}},
	{rule.Saturday, []string{"saturday", "sat"}},
}

var dayPatterns = func() map[rule.Weekday]*regexp.Regexp {
	out := make(map[rule.Weekday]*regexp.Regexp, len(dayNames))
	for _, d := range dayNames {
		out[d.day] = regexp.MustCompile(`\b(?:` + strings.Join(d.names, "|") + `)s?\b`)
	}
	return out
}()

// extractClock finds the earliest time of day in text: noon, midnight,
// 12-hour with am/pm, or 24-hour HH:MM.
func extractClock(text string) (rule.Clock, bool) {
	best, at := rule.Clock{}, -1
	take := func(c rule.Clock, pos int) {
		if c.Valid() && (at < 0 || pos < at) {
			best, at = c, pos
		}
	}
	if loc := reNamedClock.FindStringSubmatchIndex(text); loc != nil {
		if text[loc[2]:loc[3]] == "noon" {
			take(rule.Clock{Hour: 12}, loc[0])
		} else {
			take(rule.Clock{}, loc[0])
		}
	}
	for _, m := range reClock12.FindAllStringSubmatchIndex(text, -1) {
		h, _ := strconv.Atoi(text[m[2]:m[3]])
		mm := 0
		if m[4] >= 0 {
			mm, _ = strconv.Atoi(text[m[4]:m[5]])
		}
		pm := text[m[6]] == 'p'
		switch {
		case pm && h < 12:
			h += 12
		case !pm && h == 12:
			h = 0
		}
		if c := (rule.Clock{Hour: h, Minute: mm}); c.Valid() {
			take(c, m[0])
			break
		}
	}
	for _, m := range reClock24.FindAllStringSubmatchIndex(text, -1) {
		h, _ := strconv.Atoi(text[m[2]:m[3]])
		mm, _ := strconv.Atoi(text[m[4]:m[5]])
		// A 12-hour match at the same position already won.
		if c := (rule.Clock{Hour: h, Minute: mm}); c.Valid() {
			take(c, m[0])
			break
		}
	}
	return best, at >= 0
}

// extractRangeEnd reads the end of "between X and Y" or "X to Y".
func extractRangeEnd(text string) (rule.Clock, bool) {
	for _, re := range reRangeEnd {
		if m := re.FindString(text); m != "" {
			if c, ok := extractClock(m); ok {
				return c, true
			}
		}
	}
	return rule.Clock{}, false
}

func extractWeekdays(text string) (rule.WeekdaySet, bool) {
	switch {
	case strings.Contains(text, "every day"), strings.Contains(text, "daily"), strings.Contains(text, "every night"):
		return rule.AllDays, true
	case strings.Contains(text, "weekday"), strings.Contains(text, "mon-fri"),
		strings.Contains(text, "monday to friday"), strings.Contains(text, "monday through friday"):
		return rule.WorkWeek, true
	case strings.Contains(text, "weekend"):
		return rule.Weekend, true
	}
	var days []rule.Weekday
	for _, d := range dayNames {
		if dayPatterns[d.day].MatchString(text) {
			days = append(days, d.day)
		}
	}
	if len(days) == 0 {
		return 0, false
	}
	return rule.NewWeekdaySet(days...), true
}

// extractInterval returns minutes for "every N minutes", "every N hours",
// "hourly" and "every half hour".
func extractInterval(text string) (int, bool) {
	if strings.Contains(text, "hourly") || strings.Contains(text, "every hour") {
		return 60, true
	}
	if strings.Contains(text, "every half hour") || strings.Contains(text, "half an hour") {
		return 30, true
	}
	if m := reEveryMin.FindStringSubmatch(text); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
			return n, true
		}
	}
	if m := reEveryHour.FindStringSubmatch(text); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
			return n * 60, true
		}
	}
	return 0, false
}

// extractNumber finds "N%", "to N" or "N days", in that order of preference.
func extractNumber(text string) (int, bool) {
	for _, re := range reNumbers {
		if m := re.FindStringSubmatch(text); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				return n, true
			}
		}
	}
	return 0, false
}

func extractMode(text string) string {
	switch {
	case strings.Contains(text, "light mode"), strings.Contains(text, "turn on light"), strings.Contains(text, "switch to light"):
		return rule.ModeLight
	case strings.Contains(text, "toggle"):
		return rule.ModeToggle
	default:
		return rule.ModeDark
	}
}

func extractDuration(text string) (string, bool) {
	if strings.Contains(text, "30 min") || strings.Contains(text, "half hour") {
		return "30 min", true
	}
	if m := reHours.FindStringSubmatch(text); m != nil {
		n, _ := strconv.Atoi(m[1])
		cand := strconv.Itoa(n) + " hours"
		if n == 1 {
			cand = "1 hour"
		}
		if _, ok := rule.ParseKeepAwake(cand); ok {
			return cand, true
		}
	}
	return "", false
}

func wantsQuitAll(text string) bool {
	return strings.Contains(text, "all open apps") || strings.Contains(text, "quit all") || strings.Contains(text, "close all")
}

// extractMessage reads a quoted string, a "saying X" tail, or a
// "remind me to X" phrase from raw (case-preserving) text.
func extractMessage(raw string) (string, bool) {
	for _, re := range reQuoted {
		if m := re.FindStringSubmatch(raw); m != nil {
			return m[1], true
		}
	}
	for _, re := range reSaying {
		if m := re.FindStringSubmatch(raw); m != nil {
			if s := strings.TrimSpace(m[1]); s != "" {
				return s, true
			}
		}
	}
	for _, re := range reRemind {
		if m := re.FindStringSubmatch(raw); m != nil {
			if s := strings.TrimSpace(m[1]); s != "" {
				return capitalize(s), true
			}
		}
	}
	return "", false
}

func capitalize(s string) string {
	r, n := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + s[n:]
}
