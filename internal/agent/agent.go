// Package agent wires the monitoring pipeline together: timer, scheduler,
// executor, alerter, uploader, session and configurator, all connected over
// the event bus. It owns startup order and shutdown.
package agent

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/benbjohnson/clock"
	"golang.org/x/sync/errgroup"

	"github.com/schnooty/agent/internal/alerter"
	"github.com/schnooty/agent/internal/api"
	"github.com/schnooty/agent/internal/config"
	"github.com/schnooty/agent/internal/configurator"
	"github.com/schnooty/agent/internal/eventbus"
	"github.com/schnooty/agent/internal/executor"
	"github.com/schnooty/agent/internal/probe"
	"github.com/schnooty/agent/internal/scheduler"
	"github.com/schnooty/agent/internal/session"
	"github.com/schnooty/agent/internal/timer"
	"github.com/schnooty/agent/internal/uploader"
)

// Agent runs the full monitoring pipeline for one configuration.
type Agent struct {
	logger *slog.Logger
	cfg    *config.Config
	bus    *eventbus.EventBus

	timer        *timer.Timer
	executor     *executor.Executor
	scheduler    *scheduler.Scheduler
	alerter      *alerter.Alerter
	uploader     *uploader.Uploader
	session      *session.Session
	configurator *configurator.Configurator
}

// New builds the pipeline in dependency order. client is the control-plane
// API and may be nil when none is configured; remote config, status upload
// and session heartbeats are then disabled and the agent runs purely off the
// config file. clk is the wall clock in production.
func New(logger *slog.Logger, cfg *config.Config, clk clock.Clock, client api.Client) (*Agent, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	a := &Agent{
		logger: logger.With("component", "agent"),
		cfg:    cfg,
		bus:    eventbus.NewEventBus(eventbus.DefaultBufferSize),
	}

	if client != nil && cfg.UploadStatuses {
		a.uploader = uploader.New(logger, a.bus, client, clk)
	} else if !cfg.UploadStatuses {
		a.logger.Info("status upload disabled by config")
	} else {
		a.logger.Debug("no control plane configured, statuses stay local")
	}

	a.alerter = alerter.New(logger, a.bus)
	a.executor = executor.New(logger, a.bus, probe.Defaults())
	a.timer = timer.New(logger, clk)
	a.scheduler = scheduler.New(logger, a.timer, a.executor, a.bus)
	a.session = session.New(logger, a.bus, client, clk)
	a.configurator = configurator.New(logger, a.bus, client, clk)

	return a, nil
}

// Run applies the file configuration and supervises the component loops
// until ctx is cancelled or a loop fails. Shutdown aborts outstanding probe
// and alert work without draining buffered statuses.
func (a *Agent) Run(ctx context.Context) error {
	a.logger.Info("starting agent",
		"monitors", len(a.cfg.Monitors),
		"alerts", len(a.cfg.Alerts),
		"control_plane", a.cfg.HasBaseURL())

	if err := a.configurator.Apply(ctx, a.cfg); err != nil {
		return fmt.Errorf("failed to apply initial config: %w", err)
	}

	group, runCtx := errgroup.WithContext(ctx)
	group.Go(func() error { return a.scheduler.Run(runCtx) })
	group.Go(func() error { return a.alerter.Run(runCtx) })
	group.Go(func() error { return a.session.Run(runCtx) })
	group.Go(func() error { return a.configurator.Run(runCtx) })
	if a.uploader != nil {
		group.Go(func() error { return a.uploader.Run(runCtx) })
	}

	err := group.Wait()

	a.timer.Stop()
	a.executor.Wait()
	a.alerter.Wait()
	a.bus.Close()

	a.logger.Info("agent stopped")
	return err
}
