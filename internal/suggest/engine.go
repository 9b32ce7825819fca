// Package suggest turns a free-text description into ranked candidate rules.
//
// Scoring is keyword based: every action and trigger is scored against the
// text independently, the best actions are paired with their best
// compatible triggers, and extractors fill in whatever configuration the
// text mentions. Parse does no I/O and keeps no state between calls.
package suggest

import (
	"fmt"
	"maps"
	"math"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"automata/internal/rule"
	"automata/internal/templates"
)

const (
	maxSuggestions     = 3
	maxTemplates       = 3
	topActions         = 3
	triggersPerAction  = 2
	filledFieldBonus   = 0.05
	scheduleClockBonus = 0.15
	intervalBonus      = 0.15
	betweenBonus       = 0.1
)

// Suggestion is a candidate rule. Missing lists required keys the text did
// not provide; Accept fails until they are supplied.
type Suggestion struct {
	Trigger       rule.TriggerKind  `json:"trigger"`
	TriggerValues map[string]string `json:"trigger_config"`
	Action        rule.ActionKind   `json:"action"`
	ActionValues  map[string]string `json:"action_config"`
	Score         float64           `json:"score"`
	Summary       string            `json:"summary"`
	Missing       []string          `json:"missing,omitempty"`
}

type Result struct {
	Suggestions []Suggestion         `json:"suggestions"`
	Templates   []templates.Template `json:"templates"`
}

type Engine struct {
	reg  *rule.Registry
	lib  *templates.Library
	apps []string
}

// New builds an engine. apps is the list of installed application names
// used to recognize app mentions; it may be empty.
func New(reg *rule.Registry, lib *templates.Library, apps []string) *Engine {
	if reg == nil {
		reg = rule.Default()
	}
	if lib == nil {
		lib = templates.Default()
	}
	return &Engine{reg: reg, lib: lib, apps: append([]string(nil), apps...)}
}

var quoteFolder = strings.NewReplacer("‘", "'", "’", "'", "“", `"`, "”", `"`)

// normalize returns the NFKC form with straight quotes (raw) and its
// lower-case form (text), both trimmed.
func normalize(input string) (raw, text string) {
	raw = strings.TrimSpace(quoteFolder.Replace(norm.NFKC.String(input)))
	text = cases.Lower(language.Und).String(raw)
	return raw, text
}

type scored[K comparable] struct {
	kind  K
	score float64
	order int
}

func (e *Engine) Parse(input string) Result {
	res := Result{Suggestions: []Suggestion{}, Templates: []templates.Template{}}
	raw, text := normalize(input)
	if text == "" {
		return res
	}

	apps := e.matchApps(text)
	actions := e.scoreActions(text, apps)
	triggers := e.scoreTriggers(text)
	tScore := make(map[rule.TriggerKind]scored[rule.TriggerKind], len(triggers))
	for _, t := range triggers {
		tScore[t.kind] = t
	}

	var cands []Suggestion
	order := map[[2]string]int{}
	for _, a := range actions {
		as, _ := e.reg.Action(a.kind)
		var viable []scored[rule.TriggerKind]
		for _, tk := range as.Triggers {
			if t := tScore[tk]; t.score > 0 {
				viable = append(viable, t)
			}
		}
		sort.SliceStable(viable, func(i, j int) bool { return viable[i].score > viable[j].score })
		if len(viable) > triggersPerAction {
			viable = viable[:triggersPerAction]
		}
		if len(viable) == 0 {
			dk := defaultTrigger(a.kind)
			viable = append(viable, scored[rule.TriggerKind]{kind: dk, order: tScore[dk].order})
		}
		for _, t := range viable {
			cands = append(cands, e.candidate(a, t, raw, text, apps))
			order[[2]string{string(a.kind), string(t.kind)}] = a.order*100 + t.order
		}
	}

	best := map[[2]string]Suggestion{}
	for _, c := range cands {
		k := [2]string{string(c.Action), string(c.Trigger)}
		if prev, ok := best[k]; !ok || c.Score > prev.Score {
			best[k] = c
		}
	}
	uniq := make([]Suggestion, 0, len(best))
	for _, c := range best {
		uniq = append(uniq, c)
	}
	sort.Slice(uniq, func(i, j int) bool {
		if uniq[i].Score != uniq[j].Score {
			return uniq[i].Score > uniq[j].Score
		}
		ki := [2]string{string(uniq[i].Action), string(uniq[i].Trigger)}
		kj := [2]string{string(uniq[j].Action), string(uniq[j].Trigger)}
		return order[ki] < order[kj]
	})
	if len(uniq) > maxSuggestions {
		uniq = uniq[:maxSuggestions]
	}
	res.Suggestions = uniq
	res.Templates = e.matchTemplates(text, uniq)
	return res
}

func (e *Engine) scoreActions(text string, apps []string) []scored[rule.ActionKind] {
	var out []scored[rule.ActionKind]
	for i, as := range e.reg.Actions() {
		groups := actionGroups[as.Kind]
		if (as.Kind == rule.ActionOpenApps || as.Kind == rule.ActionQuitApps) && len(apps) > 0 {
			kws := make([]string, len(apps))
			for j, a := range apps {
				kws[j] = strings.ToLower(a)
			}
			groups = append(append([]group(nil), groups...), group{kws, appGroupWeight})
		}
		if s := score(groups, text); s > 0 {
			out = append(out, scored[rule.ActionKind]{kind: as.Kind, score: s, order: i})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].score > out[j].score })
	if len(out) > topActions {
		out = out[:topActions]
	}
	return out
}

func (e *Engine) scoreTriggers(text string) []scored[rule.TriggerKind] {
	var out []scored[rule.TriggerKind]
	for i, ts := range e.reg.Triggers() {
		s := score(triggerGroups[ts.Kind], text)
		switch ts.Kind {
		case rule.TriggerSchedule:
			if _, ok := extractClock(text); ok {
				s += scheduleClockBonus
			}
		case rule.TriggerInterval:
			if _, ok := extractInterval(text); ok {
				s += intervalBonus
			}
		case rule.TriggerTimeRange:
			if strings.Contains(text, "between") {
				s += betweenBonus
			}
		}
		out = append(out, scored[rule.TriggerKind]{kind: ts.Kind, score: s, order: i})
	}
	return out
}

func (e *Engine) candidate(a scored[rule.ActionKind], t scored[rule.TriggerKind], raw, text string, apps []string) Suggestion {
	tv, tMissing := triggerValues(t.kind, text)
	av, aMissing := actionValues(a.kind, t.kind, raw, text, apps)
	s := a.score + t.score + float64(len(tv)+len(av))*filledFieldBonus
	s = math.Round(math.Min(math.Max(s, 0), 1)*1000) / 1000

	ts, _ := e.reg.Trigger(t.kind)
	as, _ := e.reg.Action(a.kind)
	summary := ts.Preview(tv).Sentence() + ", " + as.Preview(av, t.kind).Sentence()

	return Suggestion{
		Trigger:       t.kind,
		TriggerValues: tv,
		Action:        a.kind,
		ActionValues:  av,
		Score:         s,
		Summary:       summary,
		Missing:       append(tMissing, aMissing...),
	}
}

func triggerValues(k rule.TriggerKind, text string) (map[string]string, []string) {
	vals := map[string]string{}
	var missing []string
	days := func() {
		if d, ok := extractWeekdays(text); ok {
			vals["days"] = d.String()
		} else {
			vals["days"] = rule.AllDays.String()
		}
	}
	switch k {
	case rule.TriggerSchedule:
		if c, ok := extractClock(text); ok {
			vals["time"] = c.String()
		} else {
			missing = append(missing, "time")
		}
		days()
	case rule.TriggerInterval:
		if n, ok := extractInterval(text); ok && n <= 7*24*60 {
			vals["minutes"] = strconv.Itoa(n)
		} else {
			missing = append(missing, "minutes")
		}
	case rule.TriggerPathWatch:
		missing = append(missing, "path")
	case rule.TriggerTimeRange:
		start, okStart := extractClock(text)
		if okStart {
			vals["start"] = start.String()
		} else {
			missing = append(missing, "start")
		}
		if end, ok := extractRangeEnd(text); ok && (!okStart || end.Minutes() > start.Minutes()) {
			vals["end"] = end.String()
		} else {
			missing = append(missing, "end")
		}
		days()
	}
	return vals, missing
}

func actionValues(k rule.ActionKind, peer rule.TriggerKind, raw, text string, apps []string) (map[string]string, []string) {
	vals := map[string]string{}
	var missing []string
	appList := func() {
		if len(apps) > 0 {
			vals["apps"] = strings.Join(apps, ",")
		} else {
			missing = append(missing, "apps")
		}
	}
	switch k {
	case rule.ActionAppearance:
		vals["mode"] = extractMode(text)
	case rule.ActionVolume:
		if n, ok := extractNumber(text); ok && n >= 0 && n <= 100 {
			vals["volume"] = strconv.Itoa(n)
		} else if strings.Contains(text, "mute") {
			vals["volume"] = "0"
		} else {
			missing = append(missing, "volume")
		}
	case rule.ActionCleanDownloads:
		if n, ok := extractNumber(text); ok && n > 0 && n <= 3650 {
			vals["days_old"] = strconv.Itoa(n)
		} else {
			vals["days_old"] = "30"
		}
	case rule.ActionOpenApps:
		appList()
	case rule.ActionQuitApps:
		if peer != rule.TriggerTimeRange && wantsQuitAll(text) {
			vals["quit_all"] = "true"
		} else {
			appList()
		}
	case rule.ActionNotify:
		if msg, ok := extractMessage(raw); ok {
			vals["message"] = msg
		} else {
			missing = append(missing, "message")
		}
	case rule.ActionMoveFiles:
		missing = append(missing, "destination")
	case rule.ActionOpenURLs:
		missing = append(missing, "urls")
	case rule.ActionOpenFile:
		missing = append(missing, "file")
	case rule.ActionKeepAwake:
		if peer != rule.TriggerTimeRange {
			if d, ok := extractDuration(text); ok {
				vals["duration"] = d
			} else {
				vals["duration"] = rule.DefaultKeepAwake
			}
		}
	}
	return vals, missing
}

// matchApps returns installed app names mentioned in text, in list order.
func (e *Engine) matchApps(text string) []string {
	var out []string
	for _, name := range e.apps {
		lower := strings.ToLower(name)
		if len([]rune(lower)) >= 2 && strings.Contains(text, lower) {
			out = append(out, name)
		}
	}
	return out
}

func (e *Engine) matchTemplates(text string, suggestions []Suggestion) []templates.Template {
	var out []templates.Template
	if len(suggestions) > 0 {
		out = e.lib.ByAction(suggestions[0].Action)
	} else {
		for _, t := range e.lib.All() {
			name := strings.ToLower(t.Name)
			if strings.Contains(text, name) || fuzzyContains(text, name, fuzzyMaxDistance) {
				out = append(out, t)
			}
		}
	}
	if len(out) > maxTemplates {
		out = out[:maxTemplates]
	}
	if out == nil {
		out = []templates.Template{}
	}
	return out
}

// Accept turns s into a rule. Overrides are routed to whichever side
// declares the key and fill or replace suggested values; a key missing from
// both the suggestion and the overrides is a validation error.
func (s Suggestion) Accept(reg *rule.Registry, name string, overrides map[string]string) (*rule.Rule, error) {
	if reg == nil {
		reg = rule.Default()
	}
	ts, ok := reg.Trigger(s.Trigger)
	if !ok {
		return nil, fmt.Errorf("%w: %q", rule.ErrUnknownTrigger, s.Trigger)
	}
	as, ok := reg.Action(s.Action)
	if !ok {
		return nil, fmt.Errorf("%w: %q", rule.ErrUnknownAction, s.Action)
	}

	tv := maps.Clone(s.TriggerValues)
	av := maps.Clone(s.ActionValues)
	if tv == nil {
		tv = map[string]string{}
	}
	if av == nil {
		av = map[string]string{}
	}
	tkeys := keySet(ts.Fields)
	akeys := keySet(as.Fields(s.Trigger))
	for k, v := range overrides {
		switch {
		case tkeys[k]:
			tv[k] = v
		case akeys[k]:
			av[k] = v
		default:
			return nil, &rule.ValidationError{Variant: string(s.Action), Field: k, Message: "not a field of this suggestion"}
		}
	}
	for _, k := range s.Missing {
		if strings.TrimSpace(tv[k]) == "" && strings.TrimSpace(av[k]) == "" {
			return nil, &rule.ValidationError{Variant: string(s.Action), Field: k, Message: "required"}
		}
	}

	tc, ac, err := reg.DecodePair(s.Trigger, tv, s.Action, av)
	if err != nil {
		return nil, err
	}
	return rule.New(reg, name, tc, ac)
}

func keySet(fields []rule.Field) map[string]bool {
	out := make(map[string]bool, len(fields))
	for _, f := range fields {
		out[f.Key] = true
	}
	return out
}
