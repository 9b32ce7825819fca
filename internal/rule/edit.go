package rule

// SetTrigger swaps the rule's trigger. When the current action cannot run
// on t it is replaced by the first compatible action with default config and
// SetTrigger reports true. Otherwise the action is re-normalized to the new
// trigger's schema.
func (reg *Registry) SetTrigger(r *Rule, t TriggerConfig) (reset bool) {
	r.Trigger = t
	if r.Action != nil && reg.Compatible(t.Kind(), r.Action.Kind()) {
		as, _ := reg.Action(r.Action.Kind())
		r.Action = as.Preview(as.Values(r.Action, t.Kind()), t.Kind())
		return false
	}
	acts := reg.ActionsFor(t.Kind())
	if len(acts) == 0 {
		r.Action = nil
		return true
	}
	as, _ := reg.Action(acts[0])
	r.Action = as.Preview(nil, t.Kind())
	return true
}

// SetAction swaps the rule's action. When the current trigger is not
// compatible it is replaced by the first compatible trigger with default
// config and SetAction reports true. The new action is always normalized to
// the resulting trigger.
func (reg *Registry) SetAction(r *Rule, a ActionConfig) (reset bool) {
	if r.Trigger == nil || !reg.Compatible(r.Trigger.Kind(), a.Kind()) {
		reset = true
		r.Trigger = nil
		if trs := reg.TriggersFor(a.Kind()); len(trs) > 0 {
			ts, _ := reg.Trigger(trs[0])
			r.Trigger = ts.Preview(nil)
		}
	}
	if r.Trigger == nil {
		r.Action = a
		return reset
	}
	as, _ := reg.Action(a.Kind())
	r.Action = as.Preview(as.Values(a, r.Trigger.Kind()), r.Trigger.Kind())
	return reset
}
