// Package executor runs probe batches concurrently, with at most one
// outstanding probe per monitor name. Batches arrive from the scheduler;
// outcomes leave on the event bus.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/schnooty/agent/internal/eventbus"
	"github.com/schnooty/agent/internal/models"
	"github.com/schnooty/agent/internal/probe"
)

// ExecReport summarizes one batch: which monitors started and which were
// ignored because a previous probe for the same name is still in flight.
type ExecReport struct {
	MonitorsStarted []string
	MonitorsIgnored []string
}

// Executor owns the in-flight set. A monitor whose probe is slower than its
// period is simply skipped on subsequent ticks until the probe returns;
// that is the agent's only backpressure on slow targets.
type Executor struct {
	logger   *slog.Logger
	bus      *eventbus.EventBus
	registry *probe.Registry

	mu       sync.Mutex
	inFlight map[string]struct{}

	wg sync.WaitGroup
}

// New creates an Executor publishing to bus and resolving drivers from
// registry.
func New(logger *slog.Logger, bus *eventbus.EventBus, registry *probe.Registry) *Executor {
	return &Executor{
		logger:   logger.With("component", "executor"),
		bus:      bus,
		registry: registry,
		inFlight: make(map[string]struct{}),
	}
}

// ExecuteBatch starts one probe goroutine per runnable monitor and reports
// synchronously. Probes run under ctx: cancelling it aborts outstanding
// work. In-flight probes survive configuration changes; their results still
// deliver.
func (e *Executor) ExecuteBatch(ctx context.Context, monitors []models.Monitor) ExecReport {
	var report ExecReport

	for _, monitor := range monitors {
		if !e.claim(monitor.Name) {
			e.logger.Debug("probe still in flight, ignoring", "monitor", monitor.Name)
			report.MonitorsIgnored = append(report.MonitorsIgnored, monitor.Name)
			continue
		}
		report.MonitorsStarted = append(report.MonitorsStarted, monitor.Name)

		e.wg.Add(1)
		go e.runProbe(ctx, monitor)
	}

	return report
}

// Wait blocks until every started probe has finished. Probes end promptly
// once their context is cancelled.
func (e *Executor) Wait() {
	e.wg.Wait()
}

func (e *Executor) claim(name string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, busy := e.inFlight[name]; busy {
		return false
	}
	e.inFlight[name] = struct{}{}
	return true
}

func (e *Executor) release(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.inFlight, name)
}

func (e *Executor) runProbe(ctx context.Context, monitor models.Monitor) {
	defer e.wg.Done()
	defer e.release(monitor.Name)

	started := time.Now().UTC()
	builder := models.NewStatusBuilder(monitor.Name, monitor.Type, started)

	status, err := e.probe(ctx, monitor, builder)
	if err != nil {
		e.logger.Error("probe could not start", "monitor", monitor.Name, "type", monitor.Type, "error", err)
		status = failedStart(monitor, started, err)
	}

	e.logger.Debug("probe finished", "monitor", monitor.Name, "status", status.Status)

	if err := e.bus.Publish(ctx, eventbus.TopicStatusReceived, eventbus.StatusMsg{Monitor: monitor, Status: status}); err != nil {
		e.logger.Error("dropping status, publish failed", "monitor", monitor.Name, "error", err)
	}
}

func (e *Executor) probe(ctx context.Context, monitor models.Monitor, builder *models.StatusBuilder) (models.MonitorStatus, error) {
	driver, err := e.registry.Get(monitor.Type)
	if err != nil {
		return models.MonitorStatus{}, err
	}
	return driver.Probe(ctx, monitor, builder)
}

// failedStart synthesizes the DOWN status for a probe that never ran. Its
// log is empty: there was no run to capture.
func failedStart(monitor models.Monitor, started time.Time, err error) models.MonitorStatus {
	builder := models.NewStatusBuilder(monitor.Name, monitor.Type, started)
	builder.Describe(fmt.Sprintf("Monitor of type %s", monitor.Type))
	return builder.Down(
		"Expected to be able to start monitor",
		fmt.Sprintf("Starting monitor failed: %v", err),
	)
}
