package rule

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// LabelPrefix starts every unit label owned by automata.
const LabelPrefix = "com.automata."

// Rule pairs one trigger with one compatible action.
type Rule struct {
	ID        string
	Name      string
	Trigger   TriggerConfig
	Action    ActionConfig
	Enabled   bool
	CreatedAt time.Time
	LastRunAt *time.Time
}

// NewID returns the first 8 hex characters of a random UUID.
func NewID() string {
	return strings.ToLower(uuid.NewString()[:8])
}

// New builds an enabled rule with a fresh id after validating the pair.
func New(reg *Registry, name string, t TriggerConfig, a ActionConfig) (*Rule, error) {
	r := &Rule{
		ID:        NewID(),
		Name:      strings.TrimSpace(name),
		Trigger:   t,
		Action:    a,
		Enabled:   true,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
	if err := r.Validate(reg); err != nil {
		return nil, err
	}
	return r, nil
}

// Validate checks compatibility and re-validates both configs against their
// schemas.
func (r *Rule) Validate(reg *Registry) error {
	if r.Trigger == nil || r.Action == nil {
		return invalid("rule", "", "trigger and action are required")
	}
	tk, ak := r.Trigger.Kind(), r.Action.Kind()
	_, _, err := reg.DecodePair(tk, r.Trigger.Values(), ak, r.actionValues(reg))
	return err
}

func (r *Rule) actionValues(reg *Registry) map[string]string {
	if as, ok := reg.Action(r.Action.Kind()); ok {
		return as.Values(r.Action, r.Trigger.Kind())
	}
	return r.Action.Values()
}

// Label is the base unit label, com.automata.<trigger>.<action>.<id>.
func (r *Rule) Label() string {
	return fmt.Sprintf("%s%s.%s.%s", LabelPrefix, r.Trigger.Kind(), r.Action.Kind(), r.ID)
}

// Sentence reads "<when>, <what>".
func (r *Rule) Sentence() string {
	return r.Trigger.Sentence() + ", " + r.Action.Sentence()
}

// DisplayName is the user-given name or, failing that, the sentence.
func (r *Rule) DisplayName() string {
	if r.Name != "" {
		return r.Name
	}
	return r.Sentence()
}

type wireTrigger struct {
	Type   TriggerKind       `json:"type"`
	Config map[string]string `json:"config"`
}

type wireAction struct {
	Type   ActionKind        `json:"type"`
	Config map[string]string `json:"config"`
}

type wireRule struct {
	ID        string      `json:"id"`
	Name      string      `json:"name,omitempty"`
	Trigger   wireTrigger `json:"trigger"`
	Action    wireAction  `json:"action"`
	Enabled   bool        `json:"enabled"`
	CreatedAt time.Time   `json:"created_at"`
	LastRunAt *time.Time  `json:"last_run_at,omitempty"`
}

func (r Rule) MarshalJSON() ([]byte, error) {
	if r.Trigger == nil || r.Action == nil {
		return nil, fmt.Errorf("rule %s: trigger and action are required", r.ID)
	}
	return json.Marshal(wireRule{
		ID:        r.ID,
		Name:      r.Name,
		Trigger:   wireTrigger{Type: r.Trigger.Kind(), Config: r.Trigger.Values()},
		Action:    wireAction{Type: r.Action.Kind(), Config: r.actionValues(Default())},
		Enabled:   r.Enabled,
		CreatedAt: r.CreatedAt,
		LastRunAt: r.LastRunAt,
	})
}

// UnmarshalJSON decodes through the default registry, so persisted rules
// are validated like user input.
func (r *Rule) UnmarshalJSON(data []byte) error {
	var w wireRule
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	t, a, err := Default().DecodePair(w.Trigger.Type, w.Trigger.Config, w.Action.Type, w.Action.Config)
	if err != nil {
		return fmt.Errorf("rule %s: %w", w.ID, err)
	}
	*r = Rule{
		ID:        w.ID,
		Name:      w.Name,
		Trigger:   t,
		Action:    a,
		Enabled:   w.Enabled,
		CreatedAt: w.CreatedAt,
		LastRunAt: w.LastRunAt,
	}
	return nil
}
