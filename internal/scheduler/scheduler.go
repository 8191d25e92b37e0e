// Package scheduler owns the active monitor set. Each configuration source
// (the config file, the control-plane API) owns a subset; the overall set
// is their union. Every active monitor has one timer schedule, and each
// tick dispatches a single-monitor batch to the executor.
package scheduler

import (
	"context"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/schnooty/agent/internal/eventbus"
	"github.com/schnooty/agent/internal/executor"
	"github.com/schnooty/agent/internal/models"
	"github.com/schnooty/agent/internal/timer"
)

// Dispatcher starts probe batches. Implemented by the executor.
type Dispatcher interface {
	ExecuteBatch(ctx context.Context, monitors []models.Monitor) executor.ExecReport
}

// TickSource is the subset of the timer the scheduler drives.
type TickSource interface {
	Register(uid string, period time.Duration, subscriber chan<- timer.Tick) error
	Cancel(uid string)
}

type entry struct {
	monitor  models.Monitor
	sourceID string
	period   time.Duration
}

// Scheduler maps timer uids to monitors and dispatches on tick.
type Scheduler struct {
	logger     *slog.Logger
	timer      TickSource
	dispatcher Dispatcher

	ticks   chan timer.Tick
	updates <-chan eventbus.Event

	mu      sync.RWMutex
	entries map[string]entry // keyed by uid
}

// New creates a Scheduler. It subscribes to monitor updates immediately so
// configuration applied before Run starts is not lost.
func New(logger *slog.Logger, tickSource TickSource, dispatcher Dispatcher, bus *eventbus.EventBus) *Scheduler {
	return &Scheduler{
		logger:     logger.With("component", "scheduler"),
		timer:      tickSource,
		dispatcher: dispatcher,
		ticks:      make(chan timer.Tick, 16),
		updates:    bus.Subscribe(eventbus.TopicMonitorsUpdated),
		entries:    make(map[string]entry),
	}
}

// Run consumes ticks and monitor updates until ctx ends.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("scheduler started")
	for {
		select {
		case tick := <-s.ticks:
			s.dispatch(ctx, tick)
		case event := <-s.updates:
			if update, ok := event.Payload.(eventbus.MonitorsUpdated); ok {
				s.ApplyMonitors(update.SourceID, update.Monitors)
			}
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return nil
		}
	}
}

// ApplyMonitors replaces the subset of the active set owned by sourceID.
// Monitors that disappeared are cancelled; new ones are registered; ones
// whose definition is unchanged keep their running schedule so their
// cadence does not reset. A name collision across sources resolves
// last-writer-wins.
func (s *Scheduler) ApplyMonitors(sourceID string, monitors []models.Monitor) {
	s.mu.Lock()
	defer s.mu.Unlock()

	incoming := make(map[string]models.Monitor, len(monitors))
	for _, monitor := range monitors {
		incoming[monitor.Name] = monitor
	}

	for uid, existing := range s.entries {
		if existing.sourceID != sourceID {
			continue
		}
		if _, keep := incoming[existing.monitor.Name]; !keep {
			s.timer.Cancel(uid)
			delete(s.entries, uid)
			s.logger.Info("monitor removed", "monitor", existing.monitor.Name, "source", sourceID)
		}
	}

	for name, monitor := range incoming {
		uid := monitorUID(name)
		period, defaulted := models.EffectivePeriod(monitor.Period)
		if defaulted {
			s.logger.Warn("monitor period invalid, using default",
				"monitor", name, "period", monitor.Period, "default", models.DefaultPeriod)
		}

		if existing, ok := s.entries[uid]; ok {
			if existing.sourceID != sourceID {
				s.logger.Warn("monitor name collision across sources, replacing",
					"monitor", name, "old_source", existing.sourceID, "new_source", sourceID)
			} else if existing.period == period && reflect.DeepEqual(existing.monitor, monitor) {
				continue
			}
		}

		if err := s.timer.Register(uid, period, s.ticks); err != nil {
			s.logger.Error("failed to register schedule", "monitor", name, "error", err)
			continue
		}
		s.entries[uid] = entry{monitor: monitor, sourceID: sourceID, period: period}
		s.logger.Info("monitor scheduled", "monitor", name, "period", period, "source", sourceID)
	}
}

func (s *Scheduler) dispatch(ctx context.Context, tick timer.Tick) {
	s.mu.RLock()
	current, ok := s.entries[tick.UID]
	s.mu.RUnlock()

	if !ok {
		// A tick can race its own cancellation; stale uids are dropped.
		s.logger.Debug("dropping tick for unknown uid", "uid", tick.UID)
		return
	}

	report := s.dispatcher.ExecuteBatch(ctx, []models.Monitor{current.monitor})
	if len(report.MonitorsIgnored) > 0 {
		s.logger.Debug("probe suppressed, previous run still in flight",
			"monitor", current.monitor.Name)
	}
}

// monitorUID namespaces timer uids so other tick consumers could share the
// timer without colliding.
func monitorUID(name string) string {
	return "monitor://" + name
}
