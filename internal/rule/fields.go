package rule

import (
	"strconv"
	"strings"
)

// FieldKind hints how a value is entered and parsed.
type FieldKind string

const (
	FieldText    FieldKind = "text"
	FieldNumber  FieldKind = "number"
	FieldTime    FieldKind = "time"
	FieldDays    FieldKind = "days"
	FieldFolder  FieldKind = "folder"
	FieldFile    FieldKind = "file"
	FieldApps    FieldKind = "apps"
	FieldURLs    FieldKind = "urls"
	FieldChoice  FieldKind = "choice"
	FieldBoolean FieldKind = "bool"
)

// Field describes one config key of a variant.
type Field struct {
	Key      string    `json:"key"`
	Label    string    `json:"label"`
	Kind     FieldKind `json:"kind"`
	Required bool      `json:"required,omitempty"`
	Default  string    `json:"default,omitempty"`
	Options  []string  `json:"options,omitempty"`
}

func keysOf(fields []Field) map[string]struct{} {
	m := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		m[f.Key] = struct{}{}
	}
	return m
}

// reader pulls typed values out of a string map. In lenient mode every
// problem falls back to the default; otherwise the first problem is kept.
type reader struct {
	variant string
	vals    map[string]string
	lenient bool
	err     error
}

func (r *reader) fail(field, format string, args ...any) {
	if r.lenient || r.err != nil {
		return
	}
	r.err = invalid(r.variant, field, format, args...)
}

func (r *reader) raw(key string) string { return strings.TrimSpace(r.vals[key]) }

func (r *reader) str(key string, required bool, def string) string {
	v := r.raw(key)
	if v == "" {
		if required {
			r.fail(key, "required")
		}
		return def
	}
	return v
}

func (r *reader) integer(key string, required bool, def, min, max int) int {
	v := r.raw(key)
	if v == "" {
		if required {
			r.fail(key, "required")
		}
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.fail(key, "not a number: %q", v)
		return def
	}
	if n < min || n > max {
		r.fail(key, "must be between %d and %d", min, max)
		return def
	}
	return n
}

func (r *reader) clock(key string, required bool, def Clock) Clock {
	v := r.raw(key)
	if v == "" {
		if required {
			r.fail(key, "required")
		}
		return def
	}
	c, err := ParseClock(v)
	if err != nil {
		r.fail(key, "%v", err)
		return def
	}
	return c
}

func (r *reader) days(key string) WeekdaySet {
	s, err := ParseWeekdays(r.raw(key))
	if err != nil {
		r.fail(key, "%v", err)
		return 0
	}
	return s
}

func (r *reader) boolean(key string) bool {
	v := r.raw(key)
	if v == "" {
		return false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.fail(key, "not a boolean: %q", v)
		return false
	}
	return b
}

func (r *reader) choice(key, def string, options []string) string {
	v := strings.ToLower(r.raw(key))
	if v == "" {
		return def
	}
	for _, o := range options {
		if v == o {
			return v
		}
	}
	r.fail(key, "must be one of %s", strings.Join(options, ", "))
	return def
}
