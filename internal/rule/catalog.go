package rule

// TriggerInfo and ActionInfo are the serializable view of the registry used
// by `automata kinds` and GET /v1/kinds.
type TriggerInfo struct {
	Kind        TriggerKind  `json:"kind"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Fields      []Field      `json:"fields"`
	Actions     []ActionKind `json:"actions"`
}

type ActionInfo struct {
	Kind        ActionKind    `json:"kind"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Reversible  bool          `json:"reversible"`
	Fields      []Field       `json:"fields"`
	Triggers    []TriggerKind `json:"triggers"`
}

type Catalog struct {
	Triggers []TriggerInfo `json:"triggers"`
	Actions  []ActionInfo  `json:"actions"`
}

// Catalog lists every variant in declaration order. Action fields are the
// ones shown when paired with the first compatible trigger.
func (r *Registry) Catalog() Catalog {
	var c Catalog
	for _, t := range r.triggers {
		c.Triggers = append(c.Triggers, TriggerInfo{
			Kind:        t.Kind,
			Name:        t.Name,
			Description: t.Description,
			Fields:      t.Fields,
			Actions:     r.ActionsFor(t.Kind),
		})
	}
	for _, a := range r.actions {
		var peer TriggerKind
		if len(a.Triggers) > 0 {
			peer = a.Triggers[0]
		}
		c.Actions = append(c.Actions, ActionInfo{
			Kind:        a.Kind,
			Name:        a.Name,
			Description: a.Description,
			Reversible:  a.Reversible,
			Fields:      a.Fields(peer),
			Triggers:    a.Triggers,
		})
	}
	return c
}
