// Package app wires configuration, logging, storage, the transport adapter
// and the delivery orchestrator into a runnable application. cmd/reportbot is
// a thin shell around it.
package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"reportbot/internal/config"
	"reportbot/internal/delivery"
	"reportbot/internal/graphs"
	"reportbot/internal/imgbb"
	"reportbot/internal/report"
	"reportbot/internal/scheduler"
	"reportbot/internal/storage"
	"reportbot/internal/transport"
	"reportbot/internal/transport/localrun"
	"reportbot/internal/transport/noop"
	"reportbot/internal/transport/twilio"
	"reportbot/internal/transport/wweb"
	"reportbot/pkg/logx"
)

type App struct {
	cfg  *config.Config
	cfgm *config.Manager

	log  logx.Logger
	logs *logx.Service

	store storage.Store
	live  transport.Adapter
	orch  *delivery.Orchestrator
	sched *scheduler.Service

	renderer graphs.Renderer
}

// New loads configuration (file layered under environment when cfgPath is
// non-empty, environment only otherwise) and assembles the application.
func New(cfgPath string) (*App, error) {
	var (
		cfg  *config.Config
		cfgm *config.Manager
		err  error
	)
	if strings.TrimSpace(cfgPath) != "" {
		cfgm = config.NewManager(cfgPath)
		cfg, err = cfgm.Load()
	} else {
		cfg, err = config.FromEnv()
	}
	if err != nil {
		return nil, err
	}
	return newFromConfig(cfg, cfgm)
}

func newFromConfig(cfg *config.Config, cfgm *config.Manager) (*App, error) {
	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	log = log.With(logx.String("comp", "app"))
	if cfgm != nil {
		cfgm.SetLogger(log.With(logx.String("comp", "config")))
	}

	// Storage (optional).
	var store storage.Store
	if sc, enabled, err := mapStorageConfig(cfg); err != nil {
		return nil, err
	} else if enabled {
		st, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
		if err != nil {
			return nil, err
		}
		store = st
		log.Info("delivery history enabled", logx.String("driver", sc.Driver))
	}

	live, err := buildAdapter(cfg, log)
	if err != nil {
		return nil, err
	}
	sim := noop.New(cfg.Outputs.Root(), log.With(logx.String("comp", "simulation")))

	var uploader delivery.Uploader
	if strings.TrimSpace(cfg.Imgbb.APIKey) != "" {
		uploader = imgbb.New(imgbb.WithLogger(log.With(logx.String("comp", "imgbb"))))
	}

	orch := delivery.New(delivery.Config{
		Destination:     cfg.Delivery.Destination,
		Simulate:        cfg.Delivery.Simulate,
		MaxRetries:      cfg.Delivery.MaxRetries,
		RetryWait:       time.Duration(cfg.Delivery.RetryWaitSeconds) * time.Second,
		OutputsDir:      cfg.Outputs.Root(),
		ImgbbKey:        cfg.Imgbb.APIKey,
		ImgbbMaxImages:  cfg.Imgbb.MaxImages,
		ImgbbNamePrefix: cfg.Imgbb.NamePrefix,
	}, live, sim, uploader, store, log.With(logx.String("comp", "delivery")))

	a := &App{
		cfg:      cfg,
		cfgm:     cfgm,
		log:      log,
		logs:     logSvc,
		store:    store,
		live:     live,
		orch:     orch,
		renderer: buildRenderer(cfg),
	}
	a.sched = scheduler.New(scheduler.Config{
		Enabled:  cfg.Scheduler.Enabled,
		Spec:     cfg.Scheduler.Spec,
		Timezone: cfg.Scheduler.Timezone,
	}, a.scheduledRun, log.With(logx.String("comp", "scheduler")))
	return a, nil
}

func buildAdapter(cfg *config.Config, log logx.Logger) (transport.Adapter, error) {
	switch cfg.Delivery.Transport {
	case config.TransportTwilio:
		if cfg.Delivery.Simulate && !cfg.Twilio.Complete() {
			// Simulated runs may lack credentials; the live adapter is
			// never invoked, so fall through to the no-op stand-in.
			return noop.New(cfg.Outputs.Root(), log), nil
		}
		return twilio.New(twilio.Config{
			AccountSID: cfg.Twilio.AccountSID,
			AuthToken:  cfg.Twilio.AuthToken,
			From:       cfg.Twilio.From,
			SettleDelay: time.Duration(cfg.Twilio.SettleDelaySeconds) *
				time.Second,
			RatePerSec: cfg.Twilio.RatePerSec,
		}, log.With(logx.String("comp", "twilio")))
	case config.TransportBrowser:
		return wweb.New(wweb.Config{
			Bin:       cfg.Browser.Bin,
			Headless:  cfg.Browser.Headless,
			QRTimeout: time.Duration(cfg.Browser.QRTimeoutSeconds) * time.Second,
		}, log.With(logx.String("comp", "wweb"))), nil
	case config.TransportLocalRun:
		if cfg.Delivery.Simulate && strings.TrimSpace(cfg.LocalRun.Command) == "" {
			return noop.New(cfg.Outputs.Root(), log), nil
		}
		return localrun.New(localrun.Config{
			Command: cfg.LocalRun.Command,
			Args:    cfg.LocalRun.Args,
			Timeout: time.Duration(cfg.LocalRun.TimeoutSeconds) * time.Second,
		}, log.With(logx.String("comp", "localrun")))
	case config.TransportSimulation:
		return noop.New(cfg.Outputs.Root(), log.With(logx.String("comp", "simulation"))), nil
	default:
		return nil, fmt.Errorf("unknown transport %q", cfg.Delivery.Transport)
	}
}

func buildRenderer(cfg *config.Config) graphs.Renderer {
	if strings.TrimSpace(cfg.Renderer.Command) == "" {
		return graphs.NopRenderer{}
	}
	return &graphs.CommandRenderer{
		Command: cfg.Renderer.Command,
		Args:    cfg.Renderer.Args,
		Timeout: time.Duration(cfg.Renderer.TimeoutSeconds) * time.Second,
	}
}

// RunOptions are per-invocation overrides for RunOnce.
type RunOptions struct {
	// ResultsPath overrides renderer.results_path when non-empty.
	ResultsPath string
	// Destination overrides delivery.destination when non-empty.
	Destination string
	// Simulate, when non-nil, overrides delivery.simulate.
	Simulate *bool
}

// RunOnce renders graphs (when a renderer is configured), loads the results
// bundle and delivers the report. The returned bool is delivery success; the
// error covers setup failures that precluded any delivery attempt.
func (a *App) RunOnce(ctx context.Context, opts RunOptions) (bool, error) {
	resultsPath := strings.TrimSpace(opts.ResultsPath)
	if resultsPath == "" {
		resultsPath = strings.TrimSpace(a.cfg.Renderer.ResultsPath)
	}
	if resultsPath == "" {
		return false, fmt.Errorf("no results path: pass -results or set renderer.results_path")
	}

	graphsDir := graphs.Dir(a.cfg.Outputs.Root())
	if err := a.renderer.RenderAll(ctx, resultsPath, graphsDir); err != nil {
		// Rendering is best-effort: the report still goes out, with
		// whatever graphs are already on disk.
		a.log.Warn("graph rendering failed", logx.Err(err))
	}

	res, err := report.LoadFile(resultsPath)
	if err != nil {
		// Malformed results degrade to the error-literal summary rather
		// than aborting the run.
		a.log.Warn("results bundle unreadable", logx.String("path", resultsPath), logx.Err(err))
		res = nil
	}

	ok := a.orch.SendFullReport(ctx, res, delivery.SendOptions{
		Destination: opts.Destination,
		Simulate:    opts.Simulate,
	})
	return ok, nil
}

func (a *App) scheduledRun(ctx context.Context) error {
	ok, err := a.RunOnce(ctx, RunOptions{})
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("report delivery failed")
	}
	return nil
}

// RunDaemon starts the scheduler and the config watcher and blocks until ctx
// is canceled.
func (a *App) RunDaemon(ctx context.Context) error {
	if !a.cfg.Scheduler.Enabled {
		return fmt.Errorf("daemon mode requires scheduler.enabled")
	}
	if err := a.sched.Start(ctx); err != nil {
		return err
	}
	defer a.sched.Stop()

	if a.cfgm != nil {
		sub := a.cfgm.Subscribe(4)
		defer a.cfgm.Unsubscribe(sub)
		go func() {
			if err := a.cfgm.Watch(ctx); err != nil && ctx.Err() == nil {
				a.log.Warn("config watcher stopped", logx.Err(err))
			}
		}()
		go a.consumeReloads(ctx, sub)
	}

	a.log.Info("daemon running", logx.String("spec", a.cfg.Scheduler.Spec))
	<-ctx.Done()
	return nil
}

// consumeReloads applies the subset of config that is safe to swap at
// runtime: logging and the orchestrator-independent knobs handled inside the
// logging service. Transport and schedule changes require a restart.
func (a *App) consumeReloads(ctx context.Context, sub chan *config.Config) {
	for {
		select {
		case <-ctx.Done():
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
			a.log.Info("logging config reapplied", logx.String("level", cfg.Logging.Level))
		}
	}
}

// Close releases the transport session, storage handle and log sinks.
func (a *App) Close(ctx context.Context) error {
	var first error
	if a.live != nil {
		if err := a.live.Close(ctx); err != nil && first == nil {
			first = err
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil && first == nil {
			first = err
		}
	}
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return first
}
