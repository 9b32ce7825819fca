package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"automata/internal/eventbus"
	"automata/internal/fsx"
	"automata/internal/rule"
	"automata/internal/scheduler"
	"automata/internal/storage"
	"automata/pkg/logx"
)

// OperationResult is the outcome of one step of a batch operation.
type OperationResult struct {
	Name    string
	Success bool
	Error   error
	Message string // Human-readable message (plain)
}

// BatchResult wraps the results of a batch operation.
type BatchResult struct {
	Results      []OperationResult
	SuccessCount int
	FailureCount int
	Total        int
}

var errNoStore = errors.New("lifecycle: no rule store configured")

func (m *Manager) batchOperation(ctx context.Context, names []string, action string, op func(context.Context, string) error) BatchResult {
	results := make([]OperationResult, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			results = append(results, OperationResult{Name: name, Error: err, Message: formatOperationMessage(action, name, err)})
			continue
		}
		err := op(ctx, name)
		results = append(results, OperationResult{
			Name:    name,
			Success: err == nil,
			Error:   err,
			Message: formatOperationMessage(action, name, err),
		})
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Name < results[j].Name
	})

	successCount := 0
	for _, r := range results {
		if r.Success {
			successCount++
		}
	}
	return BatchResult{
		Results:      results,
		SuccessCount: successCount,
		FailureCount: len(results) - successCount,
		Total:        len(results),
	}
}

func formatOperationMessage(action, name string, err error) string {
	if err != nil {
		return fmt.Sprintf("%s %s: error: %v", action, name, err)
	}
	return fmt.Sprintf("%s %s: ok", action, name)
}

// PauseAll records the ids of enabled rules and unregisters them. Rule
// flags are left alone so ResumeAll can restore them. It returns how many
// rules were disabled at the scheduler.
func (m *Manager) PauseAll(ctx context.Context) (int, error) {
	if m.store == nil {
		return 0, errNoStore
	}
	rules, err := m.store.List(ctx)
	if err != nil {
		return 0, err
	}
	var ids []string
	var enabled []*rule.Rule
	for _, r := range rules {
		if r.Enabled {
			ids = append(ids, r.ID)
			enabled = append(enabled, r)
		}
	}
	st := storage.PauseState{Paused: true, IDs: ids, At: m.now().UTC()}
	if err := m.store.SetPauseState(ctx, st); err != nil {
		return 0, fmt.Errorf("save pause state: %w", err)
	}

	n := 0
	for _, r := range enabled {
		if m.Disable(ctx, r) {
			n++
		}
	}
	m.log.Info("rules paused", logx.Int("count", n), logx.Int("snapshot", len(ids)))
	m.bus.Publish(eventbus.Event{Type: eventbus.RulesPaused, Time: m.now(), Data: eventbus.CountData{Count: n}})
	return n, nil
}

// ResumeAll enables every snapshotted rule that still exists and is still
// enabled, then clears the snapshot.
func (m *Manager) ResumeAll(ctx context.Context) (int, error) {
	if m.store == nil {
		return 0, errNoStore
	}
	st, err := m.store.PauseState(ctx)
	if err != nil {
		return 0, err
	}
	if !st.Paused {
		return 0, nil
	}

	n := 0
	for _, id := range st.IDs {
		r, err := m.store.Get(ctx, id)
		if errors.Is(err, storage.ErrNotFound) {
			m.log.Debug("paused rule no longer exists", logx.String("rule", id))
			continue
		}
		if err != nil {
			m.log.Warn("load paused rule failed", logx.String("rule", id), logx.Err(err))
			continue
		}
		if !r.Enabled {
			continue
		}
		if m.Enable(ctx, r) {
			n++
		}
	}
	if err := m.store.SetPauseState(ctx, storage.PauseState{}); err != nil {
		return n, fmt.Errorf("clear pause state: %w", err)
	}
	m.log.Info("rules resumed", logx.Int("count", n))
	m.bus.Publish(eventbus.Event{Type: eventbus.RulesResumed, Time: m.now(), Data: eventbus.CountData{Count: n}})
	return n, nil
}

// Paused reports whether a pause-all snapshot is active.
func (m *Manager) Paused(ctx context.Context) (bool, error) {
	if m.store == nil {
		return false, errNoStore
	}
	st, err := m.store.PauseState(ctx)
	return st.Paused, err
}

// RemoveAll unregisters and deletes every automata unit the backend lists,
// then deletes every automata script. Rules in the store are kept.
func (m *Manager) RemoveAll(ctx context.Context) (BatchResult, error) {
	labels, err := m.backend.Installed()
	if err != nil {
		return BatchResult{}, err
	}
	res := m.batchOperation(ctx, labels, "remove", m.removeUnit)

	dir := m.comp.Layout().ScriptsDir
	entries, err := os.ReadDir(dir)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return res, err
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), rule.LabelPrefix) {
			continue
		}
		p := filepath.Join(dir, e.Name())
		if err := fsx.RemoveIfExists(p); err != nil {
			m.log.Warn("remove script failed", logx.String("path", p), logx.Err(err))
		}
	}
	m.log.Info("all units removed", logx.Int("ok", res.SuccessCount), logx.Int("failed", res.FailureCount))
	m.bus.Publish(eventbus.Event{Type: eventbus.RulesRemoved, Time: m.now(), Data: eventbus.CountData{Count: res.SuccessCount}})
	return res, nil
}

func (m *Manager) removeUnit(ctx context.Context, label string) error {
	if err := m.unregister(ctx, label); err != nil && !errors.Is(err, scheduler.ErrNotRegistered) {
		return err
	}
	if err := m.backend.Remove(label); err != nil {
		return err
	}
	for _, k := range []rule.ScriptKind{rule.ScriptShell, rule.ScriptAppleScript} {
		if err := fsx.RemoveIfExists(m.comp.ScriptPath(label, k)); err != nil {
			return err
		}
	}
	return nil
}

// labelID extracts the rule id from a unit label,
// com.automata.<trigger>.<action>.<id>[-start|-end].
func labelID(label string) string {
	id := label[strings.LastIndex(label, ".")+1:]
	id = strings.TrimSuffix(id, "-start")
	return strings.TrimSuffix(id, "-end")
}

// Sync brings the scheduler in line with the store: enabled rules are
// enabled, disabled rules are disabled, and units no rule owns are removed.
// Units of stored entries that fail to decode are kept.
// It does nothing while a pause-all snapshot is active.
func (m *Manager) Sync(ctx context.Context) (BatchResult, error) {
	if m.store == nil {
		return BatchResult{}, errNoStore
	}
	st, err := m.store.PauseState(ctx)
	if err != nil {
		return BatchResult{}, err
	}
	if st.Paused {
		m.log.Debug("sync skipped while paused")
		return BatchResult{}, nil
	}
	rules, err := m.store.List(ctx)
	if err != nil {
		return BatchResult{}, err
	}

	byID := make(map[string]*rule.Rule, len(rules))
	ids := make([]string, 0, len(rules))
	owned := map[string]bool{}
	for _, r := range rules {
		byID[r.ID] = r
		ids = append(ids, r.ID)
		for _, l := range m.comp.Labels(r) {
			owned[l] = true
		}
	}
	res := m.batchOperation(ctx, ids, "sync", func(ctx context.Context, id string) error {
		r := byID[id]
		if r.Enabled {
			if !m.Enable(ctx, r) {
				return errors.New("enable failed")
			}
			return nil
		}
		if !m.Disable(ctx, r) {
			return errors.New("disable failed")
		}
		return nil
	})

	unreadable, err := m.store.Unreadable(ctx)
	if err != nil {
		return res, err
	}
	kept := map[string]bool{}
	for _, id := range unreadable {
		if id == "" {
			m.log.Warn("orphan removal skipped: stored rule without id does not decode")
			return res, nil
		}
		kept[id] = true
	}
	if len(kept) > 0 {
		m.log.Warn("keeping units of undecodable rules", logx.Strings("ids", unreadable))
	}

	installed, err := m.backend.Installed()
	if err != nil {
		return res, err
	}
	var orphans []string
	for _, l := range installed {
		if !owned[l] && !kept[labelID(l)] {
			orphans = append(orphans, l)
		}
	}
	if len(orphans) > 0 {
		m.log.Info("removing orphaned units", logx.Strings("labels", orphans))
		o := m.batchOperation(ctx, orphans, "remove", m.removeUnit)
		for _, r := range o.Results {
			if !r.Success {
				m.log.Warn("orphan removal failed", logx.String("label", r.Name), logx.Err(r.Error))
			}
		}
	}
	return res, nil
}
