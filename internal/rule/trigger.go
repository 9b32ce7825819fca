package rule

import (
	"fmt"
	"path/filepath"
	"strconv"
	"time"
)

// TriggerConfig is the typed, validated configuration of one trigger variant.
type TriggerConfig interface {
	Kind() TriggerKind
	// Schedule is the native firing condition. Time-range triggers return
	// their start schedule; see TimeRange.EndSchedule.
	Schedule() Schedule
	Sentence() string
	Values() map[string]string
	isTrigger()
}

type FixedSchedule struct {
	At   Clock
	Days WeekdaySet
}

func (FixedSchedule) Kind() TriggerKind { return TriggerSchedule }
func (t FixedSchedule) Schedule() Schedule {
	return Schedule{Calendar: calendar(t.At, t.Days)}
}
func (t FixedSchedule) Sentence() string {
	return t.Days.Phrase() + " at " + t.At.Kitchen()
}
func (t FixedSchedule) Values() map[string]string {
	return map[string]string{"time": t.At.String(), "days": daysValue(t.Days)}
}
func (FixedSchedule) isTrigger() {}

type FixedInterval struct {
	Minutes int
}

func (FixedInterval) Kind() TriggerKind { return TriggerInterval }
func (t FixedInterval) Schedule() Schedule {
	return Schedule{Interval: time.Duration(t.Minutes) * time.Minute}
}
func (t FixedInterval) Sentence() string { return fmt.Sprintf("Every %d min", t.Minutes) }
func (t FixedInterval) Values() map[string]string {
	return map[string]string{"minutes": strconv.Itoa(t.Minutes)}
}
func (FixedInterval) isTrigger() {}

type OnLogin struct{}

func (OnLogin) Kind() TriggerKind         { return TriggerLogin }
func (OnLogin) Schedule() Schedule        { return Schedule{AtLoad: true} }
func (OnLogin) Sentence() string          { return "On login" }
func (OnLogin) Values() map[string]string { return map[string]string{} }
func (OnLogin) isTrigger()                {}

type PathWatch struct {
	Path string
}

func (PathWatch) Kind() TriggerKind { return TriggerPathWatch }
func (t PathWatch) Schedule() Schedule {
	return Schedule{WatchPaths: []string{t.Path}}
}
func (t PathWatch) Sentence() string {
	return "When files appear in " + baseOr(t.Path, "a folder")
}
func (t PathWatch) Values() map[string]string { return map[string]string{"path": t.Path} }
func (PathWatch) isTrigger()                  {}

type DriveMount struct{}

func (DriveMount) Kind() TriggerKind         { return TriggerDriveMount }
func (DriveMount) Schedule() Schedule        { return Schedule{OnMount: true} }
func (DriveMount) Sentence() string          { return "When a drive is mounted" }
func (DriveMount) Values() map[string]string { return map[string]string{} }
func (DriveMount) isTrigger()                {}

// TimeRange runs an action at Start and its inverse at End on the same days.
type TimeRange struct {
	Start Clock
	End   Clock
	Days  WeekdaySet
}

func (TimeRange) Kind() TriggerKind { return TriggerTimeRange }
func (t TimeRange) Schedule() Schedule {
	return Schedule{Calendar: calendar(t.Start, t.Days)}
}

// EndSchedule fires at End with the same weekday set as Schedule.
func (t TimeRange) EndSchedule() Schedule {
	return Schedule{Calendar: calendar(t.End, t.Days)}
}

// Span is the length of the active window.
func (t TimeRange) Span() time.Duration {
	return time.Duration(t.End.Minutes()-t.Start.Minutes()) * time.Minute
}

func (t TimeRange) Sentence() string {
	return fmt.Sprintf("%s from %s to %s", t.Days.Phrase(), t.Start.Kitchen(), t.End.Kitchen())
}
func (t TimeRange) Values() map[string]string {
	return map[string]string{
		"start": t.Start.String(),
		"end":   t.End.String(),
		"days":  daysValue(t.Days),
	}
}
func (TimeRange) isTrigger() {}

func daysValue(s WeekdaySet) string {
	if s.Daily() {
		return ""
	}
	return s.String()
}

func baseOr(path, fallback string) string {
	if path == "" {
		return fallback
	}
	b := filepath.Base(path)
	if b == "." || b == string(filepath.Separator) {
		return fallback
	}
	return b
}
