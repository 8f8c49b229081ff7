// Package app wires configuration, the target registry, the dispatch
// orchestrator, verification, persistence, and the operator surfaces into
// one runnable service.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"crosspost/internal/adapter"
	"crosspost/internal/browserauto"
	"crosspost/internal/config"
	"crosspost/internal/content"
	"crosspost/internal/dispatch"
	"crosspost/internal/eventbus"
	"crosspost/internal/notifier"
	"crosspost/internal/registry"
	"crosspost/internal/report"
	"crosspost/internal/runstore"
	"crosspost/internal/runtime/supervisor"
	"crosspost/internal/stats"
	"crosspost/internal/verify"
	"crosspost/pkg/logx"
)

// RunReport is the complete outcome of one distribution: publish-time
// results, verification observations, reconciled verdicts, and summary
// figures.
type RunReport struct {
	Batch    *dispatch.Batch
	Checks   verify.CheckSet
	Statuses map[string]verify.Status
	Stats    stats.Stats
}

type App struct {
	cfgPath string

	cfgm *config.Manager
	sup  *supervisor.Supervisor

	log  logx.Logger
	logs *logx.Service
	bus  eventbus.Bus

	reg   *registry.Registry
	gate  *registry.Gate
	creds registry.CredentialStore

	browser *browserauto.Backend
	factory func(registry.Target) (adapter.Adapter, error)

	orch  *dispatch.Orchestrator
	rec   *verify.Reconciler // delayed initial pass
	sweep *verify.Reconciler // immediate, used by cron sweeps
	cron  *verify.Sweeper

	runs   *runIndex
	store  runstore.Store
	notif  *notifier.Service
	report *report.Server
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
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
	log = log.With(logx.String("comp", "app"))

	bus := eventbus.New()

	// Persistence (optional).
	var store runstore.Store
	if sc, enabled, err := mapStorageConfig(cfg); err != nil {
		return nil, err
	} else if enabled {
		store, err = runstore.Open(sc, log.With(logx.String("comp", "runstore")))
		if err != nil {
			return nil, err
		}
		log.Info("run store enabled", logx.String("driver", sc.Driver))
	}
	runs := newRunIndex(store)

	creds := registry.NewCredentialStore(cfg.Credentials.Static, cfg.Credentials.Env)
	reg := registry.New(cfg.Registry.Path, log.With(logx.String("comp", "registry")), bus)
	if err := reg.Load(); err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	gate := registry.NewGate(reg, creds)

	stepTimeout, probeTimeout, err := mapBrowserTimeouts(cfg)
	if err != nil {
		return nil, err
	}
	browser := browserauto.NewBackend(browserauto.Options{
		Bin:      cfg.Browser.Bin,
		Headless: cfg.Browser.Headless,
	}, log.With(logx.String("comp", "browser")))

	factory := adapter.Factory(adapter.Deps{
		Creds:        creds,
		Browser:      browser,
		Scripts:      browserauto.NewScriptSet(),
		Log:          log.With(logx.String("comp", "adapter")),
		StepTimeout:  stepTimeout,
		ProbeTimeout: probeTimeout,
	})

	dcfg, err := mapDispatchConfig(cfg)
	if err != nil {
		return nil, err
	}
	orch := dispatch.NewOrchestrator(dcfg, factory, log.With(logx.String("comp", "dispatch")), bus)

	vcfg, err := mapVerifyConfig(cfg)
	if err != nil {
		return nil, err
	}
	vlog := log.With(logx.String("comp", "verify"))
	rec := verify.NewReconciler(vcfg, factory, vlog, bus)
	sweepCfg := vcfg
	sweepCfg.Delay = 0
	sweep := verify.NewReconciler(sweepCfg, factory, vlog, bus)

	notif, err := notifier.New(mapNotifierConfig(cfg), log.With(logx.String("comp", "notifier")))
	if err != nil {
		return nil, err
	}

	a := &App{
		cfgPath: cfgPath,
		cfgm:    cfgm,
		log:     log,
		logs:    logSvc,
		bus:     bus,
		reg:     reg,
		gate:    gate,
		creds:   creds,
		browser: browser,
		factory: factory,
		orch:    orch,
		rec:     rec,
		sweep:   sweep,
		runs:    runs,
		store:   store,
		notif:   notif,
	}

	if rcfg, enabled, err := mapReportConfig(cfg); err != nil {
		return nil, err
	} else if enabled {
		a.report = report.New(rcfg, runs, log.With(logx.String("comp", "report")))
	}

	if cfg.Verify.SweepSchedule != "" {
		a.cron, err = verify.NewSweeper(cfg.Verify.SweepSchedule, a.sweepLatest, vlog)
		if err != nil {
			return nil, fmt.Errorf("verify.sweep_schedule: %w", err)
		}
	}
	return a, nil
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx,
		supervisor.WithLogger(a.log),
		supervisor.WithCancelOnError(true),
	)

	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		if _, err := mapDispatchConfig(cfg); err != nil {
			return err
		}
		if _, err := mapVerifyConfig(cfg); err != nil {
			return err
		}
		if _, _, err := mapBrowserTimeouts(cfg); err != nil {
			return err
		}
		if _, _, err := mapStorageConfig(cfg); err != nil {
			return err
		}
		if _, _, err := mapReportConfig(cfg); err != nil {
			return err
		}
		return nil
	})
	a.sup.Go0("config.watch", func(c context.Context) {
		if err := a.cfgm.Watch(c); err != nil && !errors.Is(err, context.Canceled) {
			a.log.Warn("config watch stopped", logx.Err(err))
		}
	})

	// Logging hot reload only; structural sections need a restart.
	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.apply", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		for {
			select {
			case <-c.Done():
				return
			case cfg, ok := <-sub:
				if !ok {
					return
				}
				a.logs.Apply(logx.Config{
					Level:   cfg.Logging.Level,
					Console: cfg.Logging.Console,
					File: logx.FileConfig{
						Enabled: cfg.Logging.File.Enabled,
						Path:    cfg.Logging.File.Path,
					},
				})
			}
		}
	})

	if cfg := a.cfgm.Get(); cfg != nil && cfg.Registry.Watch {
		a.sup.GoRestart("registry.watch", a.reg.Watch,
			supervisor.WithRestartBackoff(time.Second, 30*time.Second))
	}

	if a.notif != nil {
		a.notif.Start(a.sup.Context())
	}
	if a.report != nil {
		srv := a.report
		a.sup.Go("report.serve", func(c context.Context) error {
			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start() }()
			select {
			case <-c.Done():
				sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = srv.Shutdown(sctx)
				return nil
			case err := <-errCh:
				return err
			}
		})
	}
	a.cron.Start()

	a.log.Info("started", logx.String("config", a.cfgPath))
	return nil
}

func (a *App) Stop(ctx context.Context) error {
	if a.cron != nil {
		a.cron.Stop()
	}
	if a.sup != nil {
		_ = a.sup.Stop(ctx)
	}
	if a.notif != nil {
		a.notif.Stop()
	}
	if a.browser != nil {
		_ = a.browser.Close()
	}
	if a.store != nil {
		_ = a.store.Close()
	}
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return nil
}

// Done is closed when the supervisor context ends (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

// Distribute publishes item to every target the gate admits for tier, then
// runs the delayed verification pass and reconciles. The returned report is
// complete even when ctx is cancelled mid-run; the accompanying error then
// carries the cancellation.
func (a *App) Distribute(ctx context.Context, item content.Item, tier registry.Tier) (*RunReport, error) {
	item = item.Normalize()
	if err := item.Validate(); err != nil {
		return nil, err
	}
	targets := a.gate.SelectTargets(tier)
	if len(targets) == 0 {
		return nil, dispatch.ErrNoTargets
	}

	batch, dispatchErr := a.orch.Dispatch(ctx, item, targets)
	if batch == nil {
		return nil, dispatchErr
	}
	if err := a.runs.SaveBatch(ctx, batch); err != nil {
		a.log.Warn("run save failed", logx.String("run_id", batch.RunID), logx.Err(err))
	}

	checks, verifyErr := a.rec.Run(ctx, batch, targets)
	if len(checks.Checks) > 0 {
		if err := a.runs.SaveChecks(ctx, checks); err != nil {
			a.log.Warn("check save failed", logx.String("run_id", batch.RunID), logx.Err(err))
		}
	}

	rep := &RunReport{Batch: batch, Checks: checks}
	rep.Statuses = verify.Merge(batch, checks)
	rep.Stats = stats.Summarize(batch, rep.Statuses)

	if a.notif != nil {
		_ = a.notif.Notify(notifier.Summary{
			RunID: batch.RunID,
			Title: item.Title,
			Stats: rep.Stats,
		})
	}

	if dispatchErr != nil {
		return rep, dispatchErr
	}
	return rep, verifyErr
}

// VerifyRun re-observes a stored run and persists the fresh checks. Targets
// that left the catalog since the run are skipped.
func (a *App) VerifyRun(ctx context.Context, runID string) (*RunReport, error) {
	rec, err := a.runs.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	targets := make([]registry.Target, 0, len(rec.Batch.Results))
	for id := range rec.Batch.Results {
		if t, ok := a.reg.Get(id); ok {
			targets = append(targets, t)
		}
	}
	checks, err := a.sweep.Run(ctx, rec.Batch, targets)
	if err != nil {
		return nil, err
	}
	if err := a.runs.SaveChecks(ctx, checks); err != nil {
		a.log.Warn("check save failed", logx.String("run_id", runID), logx.Err(err))
	}
	rep := &RunReport{Batch: rec.Batch, Checks: checks}
	rep.Statuses = verify.Merge(rec.Batch, checks)
	rep.Stats = stats.Summarize(rec.Batch, rep.Statuses)
	return rep, nil
}

func (a *App) sweepLatest(ctx context.Context) {
	id, err := a.runs.LatestRunID(ctx)
	if err != nil {
		if !errors.Is(err, runstore.ErrNotFound) {
			a.log.Warn("sweep skipped", logx.Err(err))
		}
		return
	}
	if _, err := a.VerifyRun(ctx, id); err != nil {
		a.log.Warn("sweep failed", logx.String("run_id", id), logx.Err(err))
	}
}
