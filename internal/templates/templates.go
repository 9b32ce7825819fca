// Package templates holds the built-in rule templates. A template pre-fills
// a trigger and an action; empty values mark fields the user still has to
// provide before the template becomes a rule.
package templates

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	yaml "go.yaml.in/yaml/v3"

	"automata/internal/rule"
)

//go:embed library.yaml
var builtinYAML []byte

// ErrUnknown is returned for a template id the library does not have.
var ErrUnknown = errors.New("unknown template")

type Category string

const (
	CategoryRoutines  Category = "routines"
	CategoryFocus     Category = "focus"
	CategoryVolume    Category = "volume"
	CategoryReminders Category = "reminders"
	CategoryFiles     Category = "files"
	CategoryWeb       Category = "web"
	CategoryDrives    Category = "drives"
)

// Categories in display order.
var Categories = []Category{
	CategoryRoutines, CategoryFocus, CategoryVolume, CategoryReminders,
	CategoryFiles, CategoryWeb, CategoryDrives,
}

var categoryTitles = map[Category]string{
	CategoryRoutines:  "Routines",
	CategoryFocus:     "Focus & Wind Down",
	CategoryVolume:    "Volume",
	CategoryReminders: "Reminders",
	CategoryFiles:     "File Organization",
	CategoryWeb:       "Web & Links",
	CategoryDrives:    "External Drives",
}

func (c Category) Title() string {
	if t, ok := categoryTitles[c]; ok {
		return t
	}
	return string(c)
}

type Template struct {
	ID            string            `json:"id"`
	Name          string            `json:"name"`
	Subtitle      string            `json:"subtitle"`
	Category      Category          `json:"category"`
	Trigger       rule.TriggerKind  `json:"trigger"`
	TriggerValues map[string]string `json:"trigger_config"`
	Action        rule.ActionKind   `json:"action"`
	ActionValues  map[string]string `json:"action_config"`
}

// NeedsInput reports whether any pre-filled value is empty.
func (t Template) NeedsInput() bool { return len(t.Blank()) > 0 }

// Blank lists the keys left empty for the user, trigger keys first.
func (t Template) Blank() []string {
	var out []string
	for _, vals := range []map[string]string{t.TriggerValues, t.ActionValues} {
		var keys []string
		for k, v := range vals {
			if strings.TrimSpace(v) == "" {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		out = append(out, keys...)
	}
	return out
}

type yamlTemplate struct {
	ID       string   `yaml:"id"`
	Name     string   `yaml:"name"`
	Subtitle string   `yaml:"subtitle"`
	Category Category `yaml:"category"`
	Trigger  struct {
		Type   rule.TriggerKind  `yaml:"type"`
		Config map[string]string `yaml:"config"`
	} `yaml:"trigger"`
	Action struct {
		Type   rule.ActionKind   `yaml:"type"`
		Config map[string]string `yaml:"config"`
	} `yaml:"action"`
}

// Library is an immutable, ordered set of templates.
type Library struct {
	reg   *rule.Registry
	all   []Template
	index map[string]int
}

var defaultLibrary = mustLibrary(Parse(builtinYAML, rule.Default()))

func mustLibrary(l *Library, err error) *Library {
	if err != nil {
		panic(fmt.Sprintf("templates: %v", err))
	}
	return l
}

// Default returns the built-in library.
func Default() *Library { return defaultLibrary }

// Parse decodes a YAML template list and checks every template against reg:
// known kinds, a compatible pair, schema keys only, and valid filled values.
func Parse(data []byte, reg *rule.Registry) (*Library, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var raw []yamlTemplate
	if err := dec.Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode: %w", err)
	}

	l := &Library{reg: reg, index: make(map[string]int, len(raw))}
	for _, y := range raw {
		t := Template{
			ID:            strings.TrimSpace(y.ID),
			Name:          y.Name,
			Subtitle:      y.Subtitle,
			Category:      y.Category,
			Trigger:       y.Trigger.Type,
			TriggerValues: orEmpty(y.Trigger.Config),
			Action:        y.Action.Type,
			ActionValues:  orEmpty(y.Action.Config),
		}
		if t.ID == "" {
			return nil, errors.New("template without id")
		}
		if _, dup := l.index[t.ID]; dup {
			return nil, fmt.Errorf("duplicate template %q", t.ID)
		}
		if _, ok := categoryTitles[t.Category]; !ok {
			return nil, fmt.Errorf("template %s: unknown category %q", t.ID, t.Category)
		}
		if err := check(reg, t); err != nil {
			return nil, fmt.Errorf("template %s: %w", t.ID, err)
		}
		l.index[t.ID] = len(l.all)
		l.all = append(l.all, t)
	}
	return l, nil
}

// check decodes the template with blanks replaced by sample values, so
// everything the template does fill must already be valid.
func check(reg *rule.Registry, t Template) error {
	ts, ok := reg.Trigger(t.Trigger)
	if !ok {
		return fmt.Errorf("%w: %q", rule.ErrUnknownTrigger, t.Trigger)
	}
	as, ok := reg.Action(t.Action)
	if !ok {
		return fmt.Errorf("%w: %q", rule.ErrUnknownAction, t.Action)
	}
	tv := withSamples(t.TriggerValues, ts.Fields)
	av := withSamples(t.ActionValues, as.Fields(t.Trigger))
	_, _, err := reg.DecodePair(t.Trigger, tv, t.Action, av)
	return err
}

func withSamples(vals map[string]string, fields []rule.Field) map[string]string {
	kinds := make(map[string]rule.FieldKind, len(fields))
	for _, f := range fields {
		kinds[f.Key] = f.Kind
	}
	out := make(map[string]string, len(vals))
	for k, v := range vals {
		if strings.TrimSpace(v) == "" {
			v = sample(kinds[k])
		}
		out[k] = v
	}
	return out
}

func sample(k rule.FieldKind) string {
	switch k {
	case rule.FieldNumber:
		return "1"
	case rule.FieldTime:
		return "09:00"
	case rule.FieldURLs:
		return "https://example.com"
	case rule.FieldFolder, rule.FieldFile:
		return "/tmp"
	default:
		return "x"
	}
}

func orEmpty(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

// All returns every template in declaration order.
func (l *Library) All() []Template {
	out := make([]Template, len(l.all))
	copy(out, l.all)
	return out
}

func (l *Library) Get(id string) (Template, bool) {
	i, ok := l.index[id]
	if !ok {
		return Template{}, false
	}
	return l.all[i], true
}

// ByAction returns templates whose action is k, in declaration order.
func (l *Library) ByAction(k rule.ActionKind) []Template {
	var out []Template
	for _, t := range l.all {
		if t.Action == k {
			out = append(out, t)
		}
	}
	return out
}

type Group struct {
	Category  Category
	Templates []Template
}

// Grouped returns non-empty categories in display order.
func (l *Library) Grouped() []Group {
	var out []Group
	for _, c := range Categories {
		var items []Template
		for _, t := range l.all {
			if t.Category == c {
				items = append(items, t)
			}
		}
		if len(items) > 0 {
			out = append(out, Group{Category: c, Templates: items})
		}
	}
	return out
}

// Instantiate turns template id into a rule. Overrides fill blanks or
// replace pre-filled values and are routed to whichever side declares the
// key. Values starting with ~/ expand against home.
func (l *Library) Instantiate(id string, overrides map[string]string, home string) (*rule.Rule, error) {
	t, ok := l.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknown, id)
	}
	ts, _ := l.reg.Trigger(t.Trigger)
	as, _ := l.reg.Action(t.Action)

	tv := cloneMap(t.TriggerValues)
	av := cloneMap(t.ActionValues)
	tkeys := fieldKeys(ts.Fields)
	akeys := fieldKeys(as.Fields(t.Trigger))
	for k, v := range overrides {
		switch {
		case tkeys[k]:
			tv[k] = v
		case akeys[k]:
			av[k] = v
		default:
			return nil, &rule.ValidationError{Variant: t.ID, Field: k, Message: "not a field of this template"}
		}
	}
	for _, vals := range []map[string]string{tv, av} {
		for k, v := range vals {
			vals[k] = expandHome(v, home)
		}
	}

	tc, ac, err := l.reg.DecodePair(t.Trigger, tv, t.Action, av)
	if err != nil {
		return nil, err
	}
	return rule.New(l.reg, t.Name, tc, ac)
}

func expandHome(v, home string) string {
	if home == "" || !strings.HasPrefix(v, "~/") {
		return v
	}
	return filepath.Join(home, v[2:])
}

func fieldKeys(fields []rule.Field) map[string]bool {
	out := make(map[string]bool, len(fields))
	for _, f := range fields {
		out[f.Key] = true
	}
	return out
}

func cloneMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
