// Package alerter turns the status stream into edge-triggered alerts. A
// per-monitor state machine tracks the last seen status; only transitions,
// plus the first DOWN of a freshly seen monitor, reach the configured
// channels.
package alerter

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/schnooty/agent/internal/alerts"
	"github.com/schnooty/agent/internal/eventbus"
	"github.com/schnooty/agent/internal/models"
)

// monitorState is the per-monitor record the edge detection runs on. isNew
// marks a monitor that has never emitted an alert, so its first DOWN alerts
// even when the status never changed.
type monitorState struct {
	lastStatus    models.StatusCode
	lastTimestamp time.Time
	isNew         bool
}

// Alerter consumes statuses and alert-list updates from the bus and
// dispatches alert payloads on state edges.
type Alerter struct {
	logger *slog.Logger
	events <-chan eventbus.Event

	mu       sync.Mutex
	states   map[string]*monitorState
	channels []alerts.Channel

	nodeInfo func(ctx context.Context) models.NodeInfo
	wg       sync.WaitGroup
}

// New creates an Alerter subscribed to status and alert-list updates.
func New(logger *slog.Logger, bus *eventbus.EventBus) *Alerter {
	return &Alerter{
		logger:   logger.With("component", "alerter"),
		events:   bus.SubscribeMultiple(eventbus.TopicStatusReceived, eventbus.TopicAlertsUpdated),
		states:   make(map[string]*monitorState),
		nodeInfo: collectNodeInfo,
	}
}

// Run processes bus events until ctx ends. Status bursts are drained in one
// wake-up so each batch can be ordered by timestamp before it is applied.
func (a *Alerter) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case event := <-a.events:
			a.processBatch(ctx, a.drain(event))
		}
	}
}

// Wait blocks until in-flight channel deliveries finish.
func (a *Alerter) Wait() {
	a.wg.Wait()
}

// ApplyAlerts replaces the configured channel list. Updates swap the whole
// list; channels carry no state worth preserving.
func (a *Alerter) ApplyAlerts(alertList []models.Alert) {
	channels := alerts.BuildAll(a.logger, alertList)

	a.mu.Lock()
	a.channels = channels
	a.mu.Unlock()

	a.logger.Info("alert channels updated", "count", len(channels))
}

// drain collects every event already queued behind the first one.
func (a *Alerter) drain(first eventbus.Event) []eventbus.Event {
	batch := []eventbus.Event{first}
	for {
		select {
		case event := <-a.events:
			batch = append(batch, event)
		default:
			return batch
		}
	}
}

// processBatch applies alert-list updates in arrival order, then the
// statuses of the batch in non-decreasing timestamp order.
func (a *Alerter) processBatch(ctx context.Context, batch []eventbus.Event) {
	var statuses []eventbus.StatusMsg
	for _, event := range batch {
		switch payload := event.Payload.(type) {
		case eventbus.AlertsUpdated:
			a.ApplyAlerts(payload.Alerts)
		case eventbus.StatusMsg:
			statuses = append(statuses, payload)
		}
	}

	sort.SliceStable(statuses, func(i, j int) bool {
		return statuses[i].Status.Timestamp.Before(statuses[j].Status.Timestamp)
	})
	for _, msg := range statuses {
		a.apply(ctx, msg)
	}
}

// apply runs one status through the state machine and emits on an edge.
func (a *Alerter) apply(ctx context.Context, msg eventbus.StatusMsg) {
	status := msg.Status
	name := status.MonitorName

	a.mu.Lock()
	state, exists := a.states[name]
	if !exists {
		state = &monitorState{
			lastStatus:    status.Status,
			lastTimestamp: status.Timestamp,
			isNew:         true,
		}
		a.states[name] = state
	} else {
		if status.Timestamp.Before(state.lastTimestamp) {
			a.mu.Unlock()
			a.logger.Debug("dropping out-of-order status",
				"monitor", name,
				"timestamp", status.Timestamp,
				"last_timestamp", state.lastTimestamp)
			return
		}
		state.lastTimestamp = status.Timestamp
	}

	changed := state.lastStatus != status.Status
	isDown := status.Status == models.StatusDown
	if !changed && !(isDown && state.isNew) {
		a.mu.Unlock()
		return
	}

	previous := state.lastStatus
	state.lastStatus = status.Status
	state.isNew = false
	channels := a.channels
	a.mu.Unlock()

	a.logger.Info("detected monitor state change",
		"monitor", name,
		"previous", previous,
		"current", status.Status)

	a.emit(ctx, channels, status)
}

// emit fans the payload out to every channel. Deliveries run concurrently
// and independently; a failing channel is logged and the rest proceed.
func (a *Alerter) emit(ctx context.Context, channels []alerts.Channel, status models.MonitorStatus) {
	if len(channels) == 0 {
		return
	}

	payload := models.AlertPayload{
		MonitorName: status.MonitorName,
		Status:      status,
		NodeInfo:    a.nodeInfo(ctx),
	}
	for _, channel := range channels {
		a.wg.Add(1)
		go a.deliver(ctx, channel, payload)
	}
}

func (a *Alerter) deliver(ctx context.Context, channel alerts.Channel, payload models.AlertPayload) {
	defer a.wg.Done()

	a.logger.Debug("dispatching alert",
		"channel", channel.Type(),
		"monitor", payload.MonitorName)
	if err := channel.Send(ctx, payload); err != nil {
		a.logger.Error("failed to deliver alert",
			"channel", channel.Type(),
			"monitor", payload.MonitorName,
			"error", err)
	}
}
