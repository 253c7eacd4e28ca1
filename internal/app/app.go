// Package app wires the deskbridge components together: config, logging,
// metrics, secrets, notifications, tray, the background service, and the
// method router, with hot reload of the runtime-tunable parts.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"deskbridge/internal/background"
	"deskbridge/internal/config"
	"deskbridge/internal/dispatch"
	"deskbridge/internal/eventbus"
	"deskbridge/internal/maintenance"
	"deskbridge/internal/notify"
	"deskbridge/internal/observability/debugserv"
	"deskbridge/internal/observability/metrics"
	rtsup "deskbridge/internal/runtime/supervisor"
	"deskbridge/internal/secrets"
	"deskbridge/internal/tray"
	logx "deskbridge/pkg/logx"
)

type App struct {
	cfgPath string
	cfgMgr  *config.Manager

	logSvc *logx.Service
	log    logx.Logger

	bus      eventbus.Bus
	registry *prometheus.Registry
	met      *metrics.Set

	store    secrets.Store // nil when disabled
	notifier *notify.Manager
	tray     *tray.Manager
	bg       *background.Service
	router   *dispatch.Router
	debug    *debugserv.Service
	maint    *maintenance.Service

	sup *rtsup.Supervisor
}

// New loads the config (built-in defaults when path is empty) and builds
// every component. Nothing runs until Start.
func New(cfgPath string) (*App, error) {
	mgr := config.NewManager(cfgPath)
	cfg := config.Default()
	if cfgPath != "" {
		var err error
		cfg, err = mgr.Load()
		if err != nil {
			return nil, fmt.Errorf("load config %s: %w", cfgPath, err)
		}
	} else {
		mgr.Commit(cfg)
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	mgr.SetLogger(log.With(logx.String("comp", "config")))
	mgr.SetValidator(func(_ context.Context, c *config.Config) error { return validate(c) })

	bus := eventbus.New()
	registry := prometheus.NewRegistry()
	met := metrics.New(registry)

	store, err := secrets.Open(secrets.Config{
		Driver:  cfg.Secrets.Driver,
		Path:    cfg.Secrets.Path,
		KeyFile: cfg.Secrets.KeyFile,
	}, log.With(logx.String("comp", "secrets")))
	if err != nil {
		logSvc.Close()
		return nil, fmt.Errorf("open secrets store: %w", err)
	}

	nlog := log.With(logx.String("comp", "notify"))
	poster, err := notify.NewPoster(cfg.Notifications.Backend, nlog)
	if err != nil {
		// A missing session bus should not take the whole daemon down.
		nlog.Warn("notification backend unavailable, using nop", logx.Err(err))
		poster = notify.NopPoster()
	}
	notifier := notify.New(notifyConfig(cfg), poster, nlog, met)

	trayMgr := tray.New(log.With(logx.String("comp", "tray")), bus)
	if cfg.Tray.Tooltip != "" {
		trayMgr.SetTooltip(cfg.Tray.Tooltip)
	}

	interval, _ := config.ParseDurationOrDefault("background.interval", cfg.Background.Interval, background.DefaultInterval)
	bg := background.New(background.Config{Interval: interval},
		log.With(logx.String("comp", "background")), bus, met)

	a := &App{
		cfgPath:  cfgPath,
		cfgMgr:   mgr,
		logSvc:   logSvc,
		log:      log,
		bus:      bus,
		registry: registry,
		met:      met,
		store:    store,
		notifier: notifier,
		tray:     trayMgr,
		bg:       bg,
		debug:    debugserv.New(debugConfig(cfg), registry, log.With(logx.String("comp", "debugserv"))),
		maint:    maintenance.New(maintConfig(cfg), store, bg, log.With(logx.String("comp", "maintenance"))),
	}
	a.router = dispatch.NewRouter(dispatch.Deps{
		Log:        log.With(logx.String("comp", "dispatch")),
		Background: bg,
		Secrets:    store,
		Notify:     notifier,
		Tray:       trayMgr,
		Bus:        bus,
	})
	return a, nil
}

// Router exposes the method/event surface for the embedding host.
func (a *App) Router() *dispatch.Router { return a.router }

// Log returns the root logger.
func (a *App) Log() logx.Logger { return a.log }

// Start launches the long-running pieces: the background service, the
// maintenance cron, the debug server if enabled, the event forwarder, and
// the config watcher when a config file is in use.
func (a *App) Start(ctx context.Context) {
	a.sup = rtsup.New(ctx,
		rtsup.WithLogger(a.log.With(logx.String("comp", "supervisor"))),
		rtsup.WithCancelOnError(false),
	)

	a.bg.Start(nil)
	a.maint.Start()
	a.debug.Start(a.sup.Context())
	a.sup.Go("dispatch.events", a.router.Run)

	if a.cfgPath != "" {
		a.sup.GoRestart("config.watch", a.cfgMgr.Watch)
		updates := a.cfgMgr.Subscribe(1)
		a.sup.Go0("config.apply", func(ctx context.Context) {
			defer a.cfgMgr.Unsubscribe(updates)
			for {
				select {
				case <-ctx.Done():
					return
				case cfg, ok := <-updates:
					if !ok {
						return
					}
					a.apply(ctx, cfg)
				}
			}
		})
	}
	a.log.Info("deskbridge started", logx.String("config", a.cfgPath))
}

// Stop shuts everything down, honoring ctx as a deadline on the waits.
func (a *App) Stop(ctx context.Context) {
	a.bg.Stop()
	a.maint.Stop()
	a.debug.Stop(ctx)
	if a.sup != nil {
		_ = a.sup.Stop(ctx)
		a.sup = nil
	}
	_ = a.notifier.Close()
	if a.store != nil {
		_ = a.store.Close()
	}
	a.log.Info("deskbridge stopped")
	a.logSvc.Close()
}

// apply pushes a validated config reload into the running components.
// Secrets driver and path changes require a restart and are ignored here.
func (a *App) apply(ctx context.Context, cfg *config.Config) {
	a.logSvc.Apply(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})

	interval, _ := config.ParseDurationOrDefault("background.interval", cfg.Background.Interval, background.DefaultInterval)
	a.bg.SetInterval(interval)

	a.notifier.Apply(notifyConfig(cfg))
	a.debug.Reconfigure(ctx, debugConfig(cfg))
	a.maint.Apply(maintConfig(cfg))
	if cfg.Tray.Tooltip != "" {
		a.tray.SetTooltip(cfg.Tray.Tooltip)
	}
	a.log.Info("config applied")
}

func notifyConfig(cfg *config.Config) notify.Config {
	dedup, _ := config.ParseDurationField("notifications.dedup_window", cfg.Notifications.DedupWindow)
	return notify.Config{
		Enabled:     cfg.Notifications.Enabled,
		RatePerSec:  cfg.Notifications.RatePerSec,
		DedupWindow: dedup,
	}
}

func debugConfig(cfg *config.Config) debugserv.Config {
	return debugserv.Config{
		Enabled:       cfg.Debug.Enabled,
		Addr:          cfg.Debug.Addr,
		Token:         cfg.Debug.Token,
		AllowInsecure: cfg.Debug.AllowInsecure,
		ReadTimeout:   10 * time.Second,
		WriteTimeout:  time.Minute,
		IdleTimeout:   time.Minute,
	}
}

func maintConfig(cfg *config.Config) maintenance.Config {
	return maintenance.Config{
		SweepSpec: cfg.Maintenance.SweepSpec,
		StatsSpec: cfg.Maintenance.StatsSpec,
	}
}

// validate rejects configs whose durations don't parse; boolean and string
// fields degrade gracefully at the component level instead.
func validate(cfg *config.Config) error {
	if _, err := config.ParseDurationField("background.interval", cfg.Background.Interval); err != nil {
		return err
	}
	if _, err := config.ParseDurationField("notifications.dedup_window", cfg.Notifications.DedupWindow); err != nil {
		return err
	}
	return nil
}
