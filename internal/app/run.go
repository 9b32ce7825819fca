package app

import (
	"context"
	"errors"
	"net/http"
	"runtime"
	"strings"
	"time"

	"automata/internal/api"
	"automata/internal/apps"
	"automata/internal/config"
	"automata/internal/eventbus"
	"automata/internal/runtime/supervisor"
	"automata/internal/suggest"
	"automata/pkg/logx"
)

// RunOptions picks the long-running parts started by Run.
type RunOptions struct {
	// Serve starts the HTTP API on api.addr.
	Serve bool
	// Watch starts the config watcher and the periodic reconcile.
	Watch bool
}

// Run blocks until ctx is done or a component fails. The notifier always
// runs. A first reconcile happens before anything else when Watch is set.
func (a *App) Run(ctx context.Context, opts RunOptions) error {
	sup := supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))

	if a.notif != nil {
		sup.GoRestart("notifier", a.notif.Run)
	}
	if opts.Watch {
		a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
		a.cfgm.SetValidator(a.validateReload)
		a.reconcile(sup.Context(), "startup")

		sup.GoRestart("config.watch", a.cfgm.Watch)
		sup.Go("config.apply", a.applyLoop)
		sup.Go("reconcile", a.reconcileLoop)
	}
	if opts.Serve {
		sup.Go("api", a.serve)
	}

	<-sup.Context().Done()
	stopCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout()+time.Second)
	defer cancel()
	err := sup.Stop(stopCtx)
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	if r := sup.Restarts(); len(r) > 0 {
		a.log.Info("stopped", logx.Strings("restarts", r))
	}
	return err
}

func (a *App) shutdownTimeout() time.Duration {
	d, err := config.ParseDurationOrDefault("api.shutdown_timeout", a.cfgm.Get().API.ShutdownTimeout, 5*time.Second)
	if err != nil {
		return 5 * time.Second
	}
	return d
}

func (a *App) serve(ctx context.Context) error {
	cfg := a.cfgm.Get().API
	read, err := config.ParseDurationOrDefault("api.read_timeout", cfg.ReadTimeout, 10*time.Second)
	if err != nil {
		return err
	}
	write, err := config.ParseDurationOrDefault("api.write_timeout", cfg.WriteTimeout, 30*time.Second)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Addr: cfg.Addr,
		Handler: api.NewHandler(a, a.log.With(logx.String("comp", "api")),
			api.WithClassifier(classifyError),
			api.WithProfiler(cfg.Pprof),
		),
		ReadTimeout:       read,
		ReadHeaderTimeout: read,
		WriteTimeout:      write,
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("api listening", logx.String("addr", cfg.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		sctx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout())
		defer cancel()
		return srv.Shutdown(sctx)
	}
}

// validateReload rejects configs whose derived settings cannot be applied.
func (a *App) validateReload(_ context.Context, cfg *config.Config) error {
	if _, err := mapNotifierConfig(cfg); err != nil {
		return err
	}
	if _, _, err := mapStorageConfig(cfg); err != nil {
		return err
	}
	_, _, err := mapSchedulerConfig(cfg)
	return err
}

// restartSections need a restart to take effect.
var restartSections = map[string]bool{"paths": true, "scheduler": true, "storage": true, "api": true}

func (a *App) applyLoop(ctx context.Context) error {
	sub := a.cfgm.Subscribe(4)
	defer a.cfgm.Unsubscribe(sub)
	last := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return nil
		case cfg, ok := <-sub:
			if !ok {
				return nil
			}
			a.applyConfig(last, cfg)
			last = cfg
		}
	}
}

func (a *App) applyConfig(oldCfg, newCfg *config.Config) {
	changed, attrs := config.Changes(oldCfg, newCfg)
	if len(changed) == 0 {
		a.log.Debug("config reload received, but no effective changes detected")
		return
	}
	fields := append([]logx.Field{logx.String("changed", strings.Join(changed, ","))}, attrs...)
	a.log.Info("config reloaded", fields...)

	for _, section := range changed {
		switch section {
		case "logging":
			if a.logs != nil {
				a.logs.Apply(mapLogConfig(newCfg))
			}
		case "notifier":
			if a.notif != nil {
				if nc, err := mapNotifierConfig(newCfg); err == nil {
					a.notif.Apply(nc)
				}
			}
		case "apps":
			dirs := newCfg.Apps.Dirs
			if len(dirs) == 0 {
				dirs = apps.DefaultDirs(runtime.GOOS, a.userHome)
			}
			a.engine.Store(suggest.New(a.reg, a.lib, apps.Discover(dirs, a.log)))
		case "watch":
			select {
			case a.reschedule <- struct{}{}:
			default:
			}
		default:
			if restartSections[section] {
				a.log.Warn("config section changed; restart to apply", logx.String("section", section))
			}
		}
	}
	a.bus.Publish(eventbus.Event{Type: eventbus.ConfigReloaded, Time: a.now(), Data: changed})
}

// reconcileLoop runs Sync on the watch.reconcile schedule. A reload of the
// watch section re-reads the schedule.
func (a *App) reconcileLoop(ctx context.Context) error {
	for {
		sched, err := a.cfgm.Get().ReconcileSchedule()
		if err != nil {
			return err
		}
		var fire <-chan time.Time
		var timer *time.Timer
		if sched != nil {
			now := a.now()
			timer = time.NewTimer(sched.Next(now).Sub(now))
			fire = timer.C
		}
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case <-a.reschedule:
			if timer != nil {
				timer.Stop()
			}
		case <-fire:
			a.reconcile(ctx, "schedule")
		}
	}
}

func (a *App) reconcile(ctx context.Context, reason string) {
	res, err := a.Sync(ctx)
	if err != nil {
		a.log.Warn("reconcile failed", logx.String("reason", reason), logx.Err(err))
		return
	}
	for _, r := range res.Results {
		if !r.Success {
			a.log.Warn("reconcile step failed", logx.String("rule", r.Name), logx.Err(r.Error))
		}
	}
	a.log.Debug("reconciled", logx.String("reason", reason),
		logx.Int("ok", res.SuccessCount), logx.Int("failed", res.FailureCount))
}

// classifyError maps scheduler-side failures to 502 E_INSTALL.
func classifyError(err error) (int, string, bool) {
	if errors.Is(err, ErrInstall) || errors.Is(err, ErrUninstall) {
		return http.StatusBadGateway, "E_INSTALL", true
	}
	return 0, "", false
}
