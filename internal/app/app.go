package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"automata/internal/apps"
	"automata/internal/compiler"
	"automata/internal/config"
	"automata/internal/eventbus"
	"automata/internal/lifecycle"
	"automata/internal/notifier"
	"automata/internal/rule"
	"automata/internal/scheduler"
	"automata/internal/storage"
	"automata/internal/suggest"
	"automata/internal/templates"
	"automata/pkg/logx"
)

// App wires config, storage, the scheduler backend and the lifecycle
// manager behind the rule operations the CLI and the HTTP API call.
type App struct {
	cfgm     *config.ConfigManager
	log      logx.Logger
	logs     *logx.Service
	bus      eventbus.Bus
	store    storage.Store
	backend  scheduler.Backend
	comp     *compiler.Compiler
	lc       *lifecycle.Manager
	reg      *rule.Registry
	lib      *templates.Library
	notif    *notifier.Service
	userHome string
	now      func() time.Time

	engine atomic.Pointer[suggest.Engine]

	// mu serializes lifecycle calls; the store and the scheduler are
	// re-read on every call so nothing else is cached.
	mu sync.Mutex

	reschedule chan struct{}
}

// Options are the collaborators New builds from config. Embedders and
// tests pass their own to Build.
type Options struct {
	// Manager owns cfg for watch mode. Nil means a manager without a file.
	Manager *config.ConfigManager
	// Logs is the sink service reconfigured on reload. It may be nil.
	Logs    *logx.Service
	Log     logx.Logger
	Store   storage.Store
	Backend scheduler.Backend
	// Deliverer shows notifications. Nil disables the notifier.
	Deliverer notifier.Deliverer
	// Apps are the installed application names the suggestion engine knows.
	Apps     []string
	UserHome string
	Now      func() time.Time
}

// New loads .env and the config file, then opens the log sinks, the rule
// store and the scheduler backend.
func New(cfgPath string) (*App, error) {
	if err := config.LoadEnv(".env"); err != nil {
		return nil, err
	}
	cfgm := config.NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(mapLogConfig(cfg))
	var closers []func() error
	fail := func(err error) (*App, error) {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i]()
		}
		_ = logSvc.Close()
		return nil, err
	}

	sc, enabled, err := mapStorageConfig(cfg)
	if err != nil {
		return fail(err)
	}
	if !enabled {
		return fail(fmt.Errorf("%w: storage.driver=none leaves nowhere to keep rules", storage.ErrDisabled))
	}
	store, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
	if err != nil {
		return fail(err)
	}
	closers = append(closers, store.Close)
	log.Debug("storage enabled", logx.String("driver", sc.Driver), logx.String("path", sc.Path))

	schedCfg, _, err := mapSchedulerConfig(cfg)
	if err != nil {
		return fail(err)
	}
	backend, err := scheduler.Open(schedCfg, log.With(logx.String("comp", "scheduler")))
	if err != nil {
		return fail(err)
	}
	closers = append(closers, backend.Close)

	deliver, err := notifier.NewDeliverer(runtime.GOOS, scheduler.ExecRunner{})
	if err != nil {
		log.Debug("notifications unavailable", logx.Err(err))
	}

	home, _ := os.UserHomeDir()
	dirs := cfg.Apps.Dirs
	if len(dirs) == 0 {
		dirs = apps.DefaultDirs(runtime.GOOS, home)
	}
	names := apps.Discover(dirs, log.With(logx.String("comp", "apps")))

	a, err := Build(cfg, Options{
		Manager:   cfgm,
		Logs:      logSvc,
		Log:       log,
		Store:     store,
		Backend:   backend,
		Deliverer: deliver,
		Apps:      names,
		UserHome:  home,
	})
	if err != nil {
		return fail(err)
	}
	return a, nil
}

// Build wires an App around already-opened collaborators. cfg must be
// resolved; Store and Backend are required.
func Build(cfg *config.Config, o Options) (*App, error) {
	if o.Store == nil || o.Backend == nil {
		return nil, errors.New("app: store and backend are required")
	}
	if o.Log.IsZero() {
		o.Log = logx.Nop()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Manager == nil {
		o.Manager = config.NewConfigManager("")
		o.Manager.Commit(cfg)
	}
	_, opTimeout, err := mapSchedulerConfig(cfg)
	if err != nil {
		return nil, err
	}
	ncfg, err := mapNotifierConfig(cfg)
	if err != nil {
		return nil, err
	}

	reg := rule.Default()
	lib := templates.Default()
	bus := eventbus.New()
	comp := compiler.New(reg, compiler.Layout{ScriptsDir: cfg.Paths.ScriptsDir, LogsDir: cfg.Paths.LogsDir})
	lc, err := lifecycle.New(lifecycle.Options{
		Compiler:  comp,
		Backend:   o.Backend,
		Store:     o.Store,
		Bus:       bus,
		Log:       o.Log,
		OpTimeout: opTimeout,
		Now:       o.Now,
	})
	if err != nil {
		return nil, err
	}

	var notif *notifier.Service
	if o.Deliverer != nil {
		notif = notifier.New(ncfg, o.Deliverer, bus, o.Log.With(logx.String("comp", "notifier")))
	}

	a := &App{
		cfgm:       o.Manager,
		log:        o.Log.With(logx.String("comp", "app")),
		logs:       o.Logs,
		bus:        bus,
		store:      o.Store,
		backend:    o.Backend,
		comp:       comp,
		lc:         lc,
		reg:        reg,
		lib:        lib,
		notif:      notif,
		userHome:   o.UserHome,
		now:        o.Now,
		reschedule: make(chan struct{}, 1),
	}
	a.engine.Store(suggest.New(reg, lib, o.Apps))
	return a, nil
}

func (a *App) Registry() *rule.Registry                        { return a.reg }
func (a *App) Templates() *templates.Library                   { return a.lib }
func (a *App) Compiler() *compiler.Compiler                    { return a.comp }
func (a *App) Backend() scheduler.Backend                      { return a.backend }
func (a *App) Config() *config.Config                          { return a.cfgm.Get() }
func (a *App) Notifier() *notifier.Service                     { return a.notif }
func (a *App) Suggest(text string) suggest.Result              { return a.engine.Load().Parse(text) }
func (a *App) Logger() logx.Logger                             { return a.log }
func (a *App) Subscribe(n int) (<-chan eventbus.Event, func()) { return a.bus.Subscribe(n) }

// Close releases the store, the backend connection and the log files.
func (a *App) Close() error {
	var errs []error
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	if a.backend != nil {
		errs = append(errs, a.backend.Close())
	}
	if a.logs != nil {
		errs = append(errs, a.logs.Close())
	}
	return errors.Join(errs...)
}

// Paused reports whether a pause-all snapshot is active.
func (a *App) Paused(ctx context.Context) (bool, error) {
	return a.lc.Paused(ctx)
}
