// Package lifecycle installs, enables, disables and removes compiled rules
// against a scheduler backend and the filesystem.
//
// The manager keeps no registration state of its own. Every answer comes
// from what the backend and the filesystem report during the call.
package lifecycle

import (
	"context"
	"errors"
	"io/fs"
	"time"

	"automata/internal/compiler"
	"automata/internal/eventbus"
	"automata/internal/fsx"
	"automata/internal/rule"
	"automata/internal/scheduler"
	"automata/internal/storage"
	"automata/pkg/logx"
)

const defaultOpTimeout = 15 * time.Second

type Options struct {
	Compiler *compiler.Compiler
	Backend  scheduler.Backend
	Store    storage.Store
	Bus      eventbus.Bus
	Log      logx.Logger
	// OpTimeout bounds each register or unregister call.
	OpTimeout time.Duration
	Now       func() time.Time
}

type Manager struct {
	comp      *compiler.Compiler
	backend   scheduler.Backend
	store     storage.Store
	bus       eventbus.Bus
	log       logx.Logger
	opTimeout time.Duration
	now       func() time.Time
}

func New(opts Options) (*Manager, error) {
	if opts.Compiler == nil || opts.Backend == nil {
		return nil, errors.New("lifecycle: compiler and backend are required")
	}
	if opts.Bus == nil {
		opts.Bus = eventbus.Nop()
	}
	if opts.Log.IsZero() {
		opts.Log = logx.Nop()
	}
	if opts.OpTimeout <= 0 {
		opts.OpTimeout = defaultOpTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Manager{
		comp:      opts.Compiler,
		backend:   opts.Backend,
		store:     opts.Store,
		bus:       opts.Bus,
		log:       opts.Log.With(logx.String("comp", "lifecycle"), logx.String("backend", opts.Backend.Name())),
		opTimeout: opts.OpTimeout,
		now:       opts.Now,
	}, nil
}

func (m *Manager) Compiler() *compiler.Compiler { return m.comp }
func (m *Manager) Backend() scheduler.Backend   { return m.backend }

// Install writes every unit of r and registers it. A failure on the second
// half of a time-range rule rolls back both halves; a single-unit failure
// leaves its artifacts in place.
func (m *Manager) Install(ctx context.Context, r *rule.Rule) bool {
	log := m.ruleLog(r)
	units, err := m.comp.Compile(r)
	if err != nil {
		log.Error("compile failed", logx.Err(err))
		m.publish(eventbus.RuleInstallFailed, r, nil, err)
		return false
	}
	lay := m.comp.Layout()
	if err := fsx.EnsureDirs(lay.ScriptsDir, lay.LogsDir); err != nil {
		log.Error("create directories failed", logx.Err(err))
		m.publish(eventbus.RuleInstallFailed, r, unitLabels(units), err)
		return false
	}

	for _, u := range units {
		if err := m.installUnit(ctx, u); err != nil {
			logUnitError(log, "install failed", u.Label, err)
			// Siblings may be registered from an earlier install even when
			// the first unit fails.
			if len(units) > 1 {
				m.rollback(ctx, units)
			}
			m.publish(eventbus.RuleInstallFailed, r, unitLabels(units), err)
			return false
		}
		log.Debug("unit installed", logx.String("label", u.Label), logx.String("role", string(u.Role)))
	}
	log.Info("rule installed", logx.String("sentence", r.Sentence()))
	m.publish(eventbus.RuleInstalled, r, unitLabels(units), nil)
	return true
}

func (m *Manager) installUnit(ctx context.Context, u compiler.JobUnit) error {
	if err := m.backend.Check(u); err != nil {
		return err
	}
	if err := writeScript(u); err != nil {
		return err
	}
	if err := m.backend.Write(u); err != nil {
		return err
	}
	return m.register(ctx, u.Label)
}

func writeScript(u compiler.JobUnit) error {
	var perm fs.FileMode = 0o644
	if u.Script.Kind == rule.ScriptShell {
		perm = 0o755
	}
	return fsx.WriteFileAtomic(u.ScriptPath, []byte(u.Script.Body), perm)
}

// rollback unregisters and deletes every unit, best effort.
func (m *Manager) rollback(ctx context.Context, units []compiler.JobUnit) {
	for _, u := range units {
		if err := m.unregister(ctx, u.Label); err != nil && !errors.Is(err, scheduler.ErrNotRegistered) {
			m.log.Warn("rollback unregister failed", logx.String("label", u.Label), logx.Err(err))
		}
		if err := m.backend.Remove(u.Label); err != nil {
			m.log.Warn("rollback remove failed", logx.String("label", u.Label), logx.Err(err))
		}
		if err := fsx.RemoveIfExists(u.ScriptPath); err != nil {
			m.log.Warn("rollback script remove failed", logx.String("path", u.ScriptPath), logx.Err(err))
		}
	}
}

// Uninstall unregisters every unit of r and deletes unit files and scripts.
// Units the scheduler does not know are skipped quietly.
func (m *Manager) Uninstall(ctx context.Context, r *rule.Rule) bool {
	log := m.ruleLog(r)
	labels := m.comp.Labels(r)
	ok := true
	for _, label := range labels {
		if err := m.unregister(ctx, label); err != nil {
			if errors.Is(err, scheduler.ErrNotRegistered) {
				log.Debug("unit was not registered", logx.String("label", label))
			} else {
				logUnitError(log, "unregister failed", label, err)
				ok = false
			}
		}
		if err := m.backend.Remove(label); err != nil {
			log.Warn("remove unit file failed", logx.String("label", label), logx.Err(err))
			ok = false
		}
	}
	for _, p := range m.comp.ScriptPaths(r) {
		if err := fsx.RemoveIfExists(p); err != nil {
			log.Warn("remove script failed", logx.String("path", p), logx.Err(err))
			ok = false
		}
	}
	log.Info("rule uninstalled")
	m.publish(eventbus.RuleUninstalled, r, labels, nil)
	return ok
}

// Enable re-registers existing unit files, or installs when any artifact is
// missing. A scheduler that already has the unit loaded counts as success.
func (m *Manager) Enable(ctx context.Context, r *rule.Rule) bool {
	log := m.ruleLog(r)
	units, err := m.comp.Compile(r)
	if err != nil {
		log.Error("compile failed", logx.Err(err))
		m.publish(eventbus.RuleEnableFailed, r, nil, err)
		return false
	}
	for _, u := range units {
		if !m.backend.Exists(u.Label) || !fsx.Exists(u.ScriptPath) {
			log.Debug("artifacts missing, installing", logx.String("label", u.Label))
			if !m.Install(ctx, r) {
				m.publish(eventbus.RuleEnableFailed, r, unitLabels(units), errors.New("install failed"))
				return false
			}
			m.publish(eventbus.RuleEnabled, r, unitLabels(units), nil)
			return true
		}
	}

	for i, u := range units {
		if err := m.register(ctx, u.Label); err != nil {
			logUnitError(log, "register failed", u.Label, err)
			for _, done := range units[:i] {
				if uerr := m.unregister(ctx, done.Label); uerr != nil && !errors.Is(uerr, scheduler.ErrNotRegistered) {
					log.Warn("unregister after failed enable", logx.String("label", done.Label), logx.Err(uerr))
				}
			}
			m.publish(eventbus.RuleEnableFailed, r, unitLabels(units), err)
			return false
		}
	}
	log.Info("rule enabled")
	m.publish(eventbus.RuleEnabled, r, unitLabels(units), nil)
	return true
}

// Disable unregisters every unit of r and keeps the files.
func (m *Manager) Disable(ctx context.Context, r *rule.Rule) bool {
	log := m.ruleLog(r)
	labels := m.comp.Labels(r)
	ok := true
	for _, label := range labels {
		err := m.unregister(ctx, label)
		switch {
		case err == nil:
		case errors.Is(err, scheduler.ErrNotRegistered):
			log.Debug("unit was not registered", logx.String("label", label))
		default:
			logUnitError(log, "unregister failed", label, err)
			ok = false
		}
	}
	if ok {
		log.Info("rule disabled")
	}
	m.publish(eventbus.RuleDisabled, r, labels, nil)
	return ok
}

func (m *Manager) register(ctx context.Context, label string) error {
	cctx, cancel := context.WithTimeout(ctx, m.opTimeout)
	defer cancel()
	return m.backend.Register(cctx, label)
}

func (m *Manager) unregister(ctx context.Context, label string) error {
	cctx, cancel := context.WithTimeout(ctx, m.opTimeout)
	defer cancel()
	return m.backend.Unregister(cctx, label)
}

func (m *Manager) ruleLog(r *rule.Rule) logx.Logger {
	return m.log.With(logx.String("rule", r.ID), logx.String("name", r.DisplayName()))
}

func (m *Manager) publish(typ string, r *rule.Rule, labels []string, err error) {
	d := eventbus.RuleData{RuleID: r.ID, Name: r.DisplayName(), Labels: labels}
	if err != nil {
		d.Error = err.Error()
	}
	m.bus.Publish(eventbus.Event{Type: typ, Time: m.now(), Data: d})
}

func logUnitError(log logx.Logger, msg, label string, err error) {
	fields := []logx.Field{logx.String("label", label), logx.Err(err)}
	var re *scheduler.RegistrationError
	if errors.As(err, &re) && re.Output != "" {
		fields = append(fields, logx.String("output", re.Output))
	}
	var we *fsx.WriteError
	if errors.As(err, &we) {
		fields = append(fields, logx.String("path", we.Path))
	}
	log.Error(msg, fields...)
}

func unitLabels(units []compiler.JobUnit) []string {
	out := make([]string, 0, len(units))
	for _, u := range units {
		out = append(out, u.Label)
	}
	return out
}
