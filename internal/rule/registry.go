package rule

import (
	"errors"
	"fmt"
	"sort"
)

// TriggerSpec is the static description of a trigger variant.
type TriggerSpec struct {
	Kind        TriggerKind
	Name        string
	Description string
	Fields      []Field

	decode func(r *reader) TriggerConfig
}

// Decode validates values and returns the typed config. Unknown keys are
// rejected.
func (s *TriggerSpec) Decode(values map[string]string) (TriggerConfig, error) {
	if err := rejectUnknown(string(s.Kind), values, s.Fields); err != nil {
		return nil, err
	}
	r := &reader{variant: string(s.Kind), vals: values}
	cfg := s.decode(r)
	if r.err != nil {
		return nil, r.err
	}
	return cfg, nil
}

// Preview decodes leniently: missing or invalid values take their defaults.
func (s *TriggerSpec) Preview(values map[string]string) TriggerConfig {
	return s.decode(&reader{variant: string(s.Kind), vals: values, lenient: true})
}

// Missing lists required keys with no value, in field order.
func (s *TriggerSpec) Missing(values map[string]string) []string {
	return missing(s.Fields, values)
}

// ActionSpec is the static description of an action variant.
type ActionSpec struct {
	Kind        ActionKind
	Name        string
	Description string
	Body        ScriptKind
	// Reversible actions implement Reverter and may pair with time-range.
	Reversible bool
	RevertBody ScriptKind
	// Triggers is the compatible trigger set in declaration order.
	Triggers []TriggerKind

	fields  func(peer TriggerKind) []Field
	decode  func(r *reader, peer TriggerKind) ActionConfig
	missing func(values map[string]string, peer TriggerKind) []string
}

// Fields is the schema for this action when paired with peer.
func (s *ActionSpec) Fields(peer TriggerKind) []Field { return s.fields(peer) }

// RevertDiffers reports whether the revert body uses a different script kind
// than the primary body.
func (s *ActionSpec) RevertDiffers() bool { return s.Reversible && s.Body != s.RevertBody }

func (s *ActionSpec) Decode(values map[string]string, peer TriggerKind) (ActionConfig, error) {
	if err := rejectUnknown(string(s.Kind), values, s.fields(peer)); err != nil {
		return nil, err
	}
	r := &reader{variant: string(s.Kind), vals: values}
	cfg := s.decode(r, peer)
	if r.err != nil {
		return nil, r.err
	}
	return cfg, nil
}

// Preview decodes leniently; keys outside the peer's schema are ignored.
func (s *ActionSpec) Preview(values map[string]string, peer TriggerKind) ActionConfig {
	return s.decode(&reader{variant: string(s.Kind), vals: values, lenient: true}, peer)
}

// Missing lists required keys with no value for the given peer.
func (s *ActionSpec) Missing(values map[string]string, peer TriggerKind) []string {
	if s.missing != nil {
		return s.missing(values, peer)
	}
	return missing(s.fields(peer), values)
}

// Values returns cfg's values restricted to the schema for peer.
func (s *ActionSpec) Values(cfg ActionConfig, peer TriggerKind) map[string]string {
	keys := keysOf(s.fields(peer))
	out := make(map[string]string, len(keys))
	for k, v := range cfg.Values() {
		if _, ok := keys[k]; ok {
			out[k] = v
		}
	}
	return out
}

func rejectUnknown(variant string, values map[string]string, fields []Field) error {
	known := keysOf(fields)
	var unknown []string
	for k := range values {
		if _, ok := known[k]; !ok {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	sort.Strings(unknown)
	return invalid(variant, unknown[0], "unknown field")
}

func missing(fields []Field, values map[string]string) []string {
	var out []string
	for _, f := range fields {
		if f.Required && (&reader{vals: values}).raw(f.Key) == "" {
			out = append(out, f.Key)
		}
	}
	return out
}

// Registry is the immutable catalogue of trigger and action variants.
type Registry struct {
	triggers []*TriggerSpec
	actions  []*ActionSpec
	tIndex   map[TriggerKind]*TriggerSpec
	aIndex   map[ActionKind]*ActionSpec
	compat   map[TriggerKind][]ActionKind
}

var defaultRegistry = mustRegistry(newRegistry(builtinTriggers(), builtinActions()))

// Default returns the built-in registry.
func Default() *Registry { return defaultRegistry }

func mustRegistry(r *Registry, err error) *Registry {
	if err != nil {
		panic("rule: " + err.Error())
	}
	return r
}

func newRegistry(triggers []*TriggerSpec, actions []*ActionSpec) (*Registry, error) {
	reg := &Registry{
		triggers: triggers,
		actions:  actions,
		tIndex:   make(map[TriggerKind]*TriggerSpec, len(triggers)),
		aIndex:   make(map[ActionKind]*ActionSpec, len(actions)),
		compat:   make(map[TriggerKind][]ActionKind, len(triggers)),
	}
	for _, t := range triggers {
		if _, dup := reg.tIndex[t.Kind]; dup {
			return nil, fmt.Errorf("duplicate trigger %s", t.Kind)
		}
		reg.tIndex[t.Kind] = t
	}
	for _, a := range actions {
		if _, dup := reg.aIndex[a.Kind]; dup {
			return nil, fmt.Errorf("duplicate action %s", a.Kind)
		}
		reg.aIndex[a.Kind] = a
		if a.Reversible {
			if _, ok := a.Preview(nil, TriggerTimeRange).(Reverter); !ok {
				return nil, fmt.Errorf("action %s is marked reversible but has no revert", a.Kind)
			}
		}
		for _, tk := range a.Triggers {
			if _, ok := reg.tIndex[tk]; !ok {
				return nil, fmt.Errorf("action %s names unknown trigger %s", a.Kind, tk)
			}
			if tk == TriggerTimeRange && !a.Reversible {
				return nil, fmt.Errorf("action %s pairs with %s but is not reversible", a.Kind, tk)
			}
		}
	}
	// Derived side, kept in action declaration order.
	for _, a := range actions {
		for _, tk := range a.Triggers {
			reg.compat[tk] = append(reg.compat[tk], a.Kind)
		}
	}
	return reg, nil
}

func (r *Registry) Triggers() []*TriggerSpec { return r.triggers }
func (r *Registry) Actions() []*ActionSpec   { return r.actions }

func (r *Registry) Trigger(k TriggerKind) (*TriggerSpec, bool) {
	s, ok := r.tIndex[k]
	return s, ok
}

func (r *Registry) Action(k ActionKind) (*ActionSpec, bool) {
	s, ok := r.aIndex[k]
	return s, ok
}

func (r *Registry) Compatible(t TriggerKind, a ActionKind) bool {
	for _, k := range r.compat[t] {
		if k == a {
			return true
		}
	}
	return false
}

// ActionsFor lists the actions that can run on t, in declaration order.
func (r *Registry) ActionsFor(t TriggerKind) []ActionKind {
	return append([]ActionKind(nil), r.compat[t]...)
}

// TriggersFor lists the triggers a may run on, in declaration order.
func (r *Registry) TriggersFor(a ActionKind) []TriggerKind {
	var out []TriggerKind
	for _, t := range r.triggers {
		if r.Compatible(t.Kind, a) {
			out = append(out, t.Kind)
		}
	}
	return out
}

// DecodePair decodes both halves of a rule and checks they are compatible.
func (r *Registry) DecodePair(tk TriggerKind, tv map[string]string, ak ActionKind, av map[string]string) (TriggerConfig, ActionConfig, error) {
	ts, ok := r.Trigger(tk)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownTrigger, tk)
	}
	as, ok := r.Action(ak)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownAction, ak)
	}
	if !r.Compatible(tk, ak) {
		return nil, nil, &CompatibilityError{Trigger: tk, Action: ak}
	}
	tc, terr := ts.Decode(tv)
	ac, aerr := as.Decode(av, tk)
	if err := errors.Join(terr, aerr); err != nil {
		return nil, nil, err
	}
	return tc, ac, nil
}
