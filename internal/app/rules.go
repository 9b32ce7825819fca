package app

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"automata/internal/compiler"
	"automata/internal/lifecycle"
	"automata/internal/rule"
	"automata/internal/storage"
	"automata/pkg/logx"
)

var (
	// ErrInstall means the rule was saved but the scheduler did not take it.
	// Enabling the rule again retries.
	ErrInstall = errors.New("install failed")
	// ErrUninstall means some units could not be removed; the rule is kept.
	ErrUninstall = errors.New("uninstall failed")
	ErrNotFound  = storage.ErrNotFound
)

const previewRuns = 3

// Unit is a compiled job unit as shown by Describe.
type Unit struct {
	Label       string      `json:"label"`
	Role        string      `json:"role"`
	Program     []string    `json:"program"`
	ScriptPath  string      `json:"script_path"`
	LogPath     string      `json:"log_path"`
	Installed   bool        `json:"installed"`
	NextRuns    []time.Time `json:"next_runs,omitempty"`
	Description string      `json:"schedule"`
}

// Detail is a rule plus its compiled units.
type Detail struct {
	Rule     *rule.Rule `json:"rule"`
	Sentence string     `json:"sentence"`
	Paused   bool       `json:"paused"`
	Units    []Unit     `json:"units"`
}

func (a *App) ListRules(ctx context.Context) ([]*rule.Rule, error) {
	return a.store.List(ctx)
}

func (a *App) GetRule(ctx context.Context, id string) (*rule.Rule, error) {
	return a.store.Get(ctx, id)
}

// Describe compiles the rule and previews the next fire times of each unit.
func (a *App) Describe(ctx context.Context, id string) (*Detail, error) {
	r, err := a.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	units, err := a.comp.Compile(r)
	if err != nil {
		return nil, err
	}
	paused, err := a.lc.Paused(ctx)
	if err != nil {
		return nil, err
	}
	d := &Detail{Rule: r, Sentence: r.Sentence(), Paused: paused}
	now := a.now()
	for _, u := range units {
		next, err := compiler.NextRuns(u.Schedule, now, previewRuns)
		if err != nil {
			a.log.Debug("next runs preview failed", logx.String("label", u.Label), logx.Err(err))
		}
		d.Units = append(d.Units, Unit{
			Label:       u.Label,
			Role:        string(u.Role),
			Program:     u.Program,
			ScriptPath:  u.ScriptPath,
			LogPath:     u.LogPath,
			Installed:   a.backend.Exists(u.Label),
			NextRuns:    next,
			Description: describeSchedule(u),
		})
	}
	return d, nil
}

func describeSchedule(u compiler.JobUnit) string {
	s := u.Schedule
	switch {
	case len(s.Calendar) > 0:
		specs := make([]string, 0, len(s.Calendar))
		for _, e := range s.Calendar {
			specs = append(specs, compiler.CronSpec(e))
		}
		return fmt.Sprintf("calendar %v", specs)
	case s.Interval > 0:
		return "every " + s.Interval.String()
	case s.AtLoad:
		return "at login"
	case len(s.WatchPaths) > 0:
		return fmt.Sprintf("on change %v", s.WatchPaths)
	case s.OnMount:
		return "on mount"
	default:
		return "manual"
	}
}

// CreateRule validates and saves r, then installs it when enabled. While a
// pause-all snapshot is active an enabled rule joins the snapshot instead of
// being installed. An install failure keeps the rule and wraps ErrInstall.
func (a *App) CreateRule(ctx context.Context, r *rule.Rule) error {
	if err := r.Validate(a.reg); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.store.Put(ctx, r); err != nil {
		return err
	}
	a.log.Info("rule saved", logx.String("rule", r.ID), logx.String("name", r.DisplayName()))
	if !r.Enabled {
		return nil
	}
	return a.activate(ctx, r)
}

// activate installs r, or records it in the pause snapshot while paused.
func (a *App) activate(ctx context.Context, r *rule.Rule) error {
	st, err := a.store.PauseState(ctx)
	if err != nil {
		return err
	}
	if st.Paused {
		if !slices.Contains(st.IDs, r.ID) {
			st.IDs = append(st.IDs, r.ID)
			if err := a.store.SetPauseState(ctx, st); err != nil {
				return fmt.Errorf("save pause state: %w", err)
			}
		}
		a.log.Info("rule deferred until resume", logx.String("rule", r.ID))
		return nil
	}
	if !a.lc.Enable(ctx, r) {
		return fmt.Errorf("%w: rule %s (see activity log)", ErrInstall, r.ID)
	}
	return nil
}

// UpdateRule replaces the stored rule with the same id. The old units are
// removed first because the label depends on the trigger and action kinds.
func (a *App) UpdateRule(ctx context.Context, r *rule.Rule) error {
	if err := r.Validate(a.reg); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	old, err := a.store.Get(ctx, r.ID)
	if err != nil {
		return err
	}
	if !a.lc.Uninstall(ctx, old) {
		return fmt.Errorf("%w: rule %s", ErrUninstall, old.ID)
	}
	r.CreatedAt = old.CreatedAt
	r.LastRunAt = old.LastRunAt
	if err := a.store.Put(ctx, r); err != nil {
		return err
	}
	a.log.Info("rule updated", logx.String("rule", r.ID), logx.String("sentence", r.Sentence()))
	if !r.Enabled {
		return nil
	}
	return a.activate(ctx, r)
}

// RemoveRule uninstalls every unit of the rule and deletes it from the
// store. A failed uninstall keeps the rule so it can be retried.
func (a *App) RemoveRule(ctx context.Context, id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	r, err := a.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if !a.lc.Uninstall(ctx, r) {
		return fmt.Errorf("%w: rule %s", ErrUninstall, id)
	}
	if err := a.store.Delete(ctx, id); err != nil {
		return err
	}
	a.log.Info("rule removed", logx.String("rule", id))
	return nil
}

// EnableRule marks the rule enabled and registers it.
func (a *App) EnableRule(ctx context.Context, id string) (*rule.Rule, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	r, err := a.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !r.Enabled {
		r.Enabled = true
		if err := a.store.Put(ctx, r); err != nil {
			return nil, err
		}
	}
	return r, a.activate(ctx, r)
}

// DisableRule marks the rule disabled and unregisters its units. Unit files
// and scripts stay on disk.
func (a *App) DisableRule(ctx context.Context, id string) (*rule.Rule, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	r, err := a.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.Enabled {
		r.Enabled = false
		if err := a.store.Put(ctx, r); err != nil {
			return nil, err
		}
	}
	if !a.lc.Disable(ctx, r) {
		return r, fmt.Errorf("%w: rule %s", ErrUninstall, id)
	}
	return r, nil
}

func (a *App) Pause(ctx context.Context) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lc.PauseAll(ctx)
}

func (a *App) Resume(ctx context.Context) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lc.ResumeAll(ctx)
}

func (a *App) RemoveAll(ctx context.Context) (lifecycle.BatchResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lc.RemoveAll(ctx)
}

func (a *App) Sync(ctx context.Context) (lifecycle.BatchResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lc.Sync(ctx)
}

// MarkRun records that the rule fired at at.
func (a *App) MarkRun(ctx context.Context, id string, at time.Time) error {
	if at.IsZero() {
		at = a.now()
	}
	return a.store.MarkRun(ctx, id, at.UTC().Truncate(time.Second))
}

// InstantiateTemplate builds a rule from a template. It is not saved.
func (a *App) InstantiateTemplate(id string, overrides map[string]string) (*rule.Rule, error) {
	return a.lib.Instantiate(id, overrides, a.userHome)
}
