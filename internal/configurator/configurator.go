// Package configurator owns the flow of configuration into the pipeline:
// monitors to the scheduler, alert descriptors to the alerter, and the full
// config to the session manager. With a control plane configured it also
// polls for remotely assigned monitors and alerts and feeds them in under
// their own source id.
package configurator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/schnooty/agent/internal/config"
	"github.com/schnooty/agent/internal/eventbus"
	"github.com/schnooty/agent/internal/models"
)

// Source ids namespacing the monitor lists handed to the scheduler. They
// are URIs so log lines read as "where did this monitor come from".
const (
	FileSource = "config://monitors"
	APISource  = "api://monitors"
)

// Fetcher reads remotely assigned monitors and alerts.
type Fetcher interface {
	GetMonitors(ctx context.Context) ([]models.Monitor, error)
	GetAlerts(ctx context.Context) ([]models.Alert, error)
}

// Configurator fans configuration out over the bus and polls the control
// plane for updates.
type Configurator struct {
	logger *slog.Logger
	bus    *eventbus.EventBus
	api    Fetcher
	clock  clock.Clock

	mu         sync.Mutex
	cfg        *config.Config
	fileAlerts []models.Alert
	apiAlerts  []models.Alert
}

// New creates a Configurator. api may be nil when no control plane is
// configured; the fetch loop then stays idle.
func New(logger *slog.Logger, bus *eventbus.EventBus, api Fetcher, clk clock.Clock) *Configurator {
	return &Configurator{
		logger: logger.With("component", "configurator"),
		bus:    bus,
		api:    api,
		clock:  clk,
	}
}

// Apply fans a config out to the pipeline. The new config supersedes the
// prior one for every consumer.
func (c *Configurator) Apply(ctx context.Context, cfg *config.Config) error {
	c.mu.Lock()
	c.cfg = cfg
	c.fileAlerts = cfg.Alerts
	merged := c.mergedAlertsLocked()
	c.mu.Unlock()

	c.logger.Debug("applying configuration",
		"monitors", len(cfg.Monitors),
		"alerts", len(cfg.Alerts))

	err := c.bus.Publish(ctx, eventbus.TopicMonitorsUpdated, eventbus.MonitorsUpdated{
		SourceID: FileSource,
		Monitors: cfg.Monitors,
	})
	if err != nil {
		return err
	}
	if err := c.bus.Publish(ctx, eventbus.TopicAlertsUpdated, eventbus.AlertsUpdated{Alerts: merged}); err != nil {
		return err
	}
	return c.bus.Publish(ctx, eventbus.TopicConfigUpdated, eventbus.ConfigUpdated{Config: cfg})
}

// Run polls the control plane until ctx ends. The first fetch happens
// immediately so a freshly started agent learns its assignments without
// waiting a full interval.
func (c *Configurator) Run(ctx context.Context) error {
	if c.api == nil {
		<-ctx.Done()
		return nil
	}

	ticker := c.clock.Ticker(c.fetchInterval())
	defer ticker.Stop()

	c.fetch(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			c.fetch(ctx)
		}
	}
}

// fetch pulls monitors and alerts from the control plane. Failures are
// transient config errors: log and keep whatever was applied before.
func (c *Configurator) fetch(ctx context.Context) {
	monitors, err := c.api.GetMonitors(ctx)
	if err != nil {
		c.logger.Error("failed to fetch monitors", "error", err)
	} else {
		c.logger.Debug("fetched monitors", "count", len(monitors))
		c.publishMonitors(ctx, APISource, monitors)
	}

	alerts, err := c.api.GetAlerts(ctx)
	if err != nil {
		c.logger.Error("failed to fetch alerts", "error", err)
		return
	}

	c.mu.Lock()
	c.apiAlerts = alerts
	merged := c.mergedAlertsLocked()
	c.mu.Unlock()

	c.logger.Debug("fetched alerts", "count", len(alerts))
	c.publishAlerts(ctx, merged)
}

func (c *Configurator) publishMonitors(ctx context.Context, sourceID string, monitors []models.Monitor) {
	err := c.bus.Publish(ctx, eventbus.TopicMonitorsUpdated, eventbus.MonitorsUpdated{
		SourceID: sourceID,
		Monitors: monitors,
	})
	if err != nil {
		c.logger.Error("failed to publish monitor update",
			"source", sourceID,
			"error", err)
	}
}

func (c *Configurator) publishAlerts(ctx context.Context, alerts []models.Alert) {
	if err := c.bus.Publish(ctx, eventbus.TopicAlertsUpdated, eventbus.AlertsUpdated{Alerts: alerts}); err != nil {
		c.logger.Error("failed to publish alert update", "error", err)
	}
}

// mergedAlertsLocked unions file and API alerts. Alert descriptors carry no
// identity, so the union is a concatenation with file alerts first.
func (c *Configurator) mergedAlertsLocked() []models.Alert {
	merged := make([]models.Alert, 0, len(c.fileAlerts)+len(c.apiAlerts))
	merged = append(merged, c.fileAlerts...)
	merged = append(merged, c.apiAlerts...)
	return merged
}

func (c *Configurator) fetchInterval() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cfg != nil {
		return c.cfg.GetFetchInterval()
	}
	return config.DefaultFetchInterval
}
