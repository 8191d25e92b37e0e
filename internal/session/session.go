// Package session keeps the agent's liveness record fresh on the control
// plane. A heartbeat loop upserts the session on a fixed cadence and
// publishes the echoed record on the bus for anyone tracking it.
package session

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"github.com/schnooty/agent/internal/config"
	"github.com/schnooty/agent/internal/eventbus"
	"github.com/schnooty/agent/internal/models"
)

// Putter upserts the agent's session record on the control plane.
type Putter interface {
	PutSession(ctx context.Context, session models.Session) (models.Session, error)
}

// loopHandle tracks one running heartbeat loop so a config update can
// replace it deterministically.
type loopHandle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Session manages the heartbeat loop. Each config update replaces the
// running loop so the cadence and session name follow the latest config.
type Session struct {
	logger  *slog.Logger
	bus     *eventbus.EventBus
	clock   clock.Clock
	api     Putter
	updates <-chan eventbus.Event

	hostname  string
	startedAt time.Time
	fallback  string

	handle *loopHandle
}

// New creates a Session manager. api may be nil when no control plane is
// configured; heartbeats then stay disabled regardless of config.
func New(logger *slog.Logger, bus *eventbus.EventBus, api Putter, clk clock.Clock) *Session {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "Hostname unavailable"
	}
	return &Session{
		logger:    logger.With("component", "session"),
		bus:       bus,
		clock:     clk,
		api:       api,
		updates:   bus.Subscribe(eventbus.TopicConfigUpdated),
		hostname:  hostname,
		startedAt: clk.Now().UTC(),
		fallback:  "agent-" + uuid.NewString()[:8],
	}
}

// Run applies config updates until ctx ends, then stops the loop.
func (s *Session) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			s.stopLoop()
			return nil
		case event := <-s.updates:
			update, ok := event.Payload.(eventbus.ConfigUpdated)
			if !ok || update.Config == nil {
				continue
			}
			s.Apply(ctx, update.Config)
		}
	}
}

// Apply replaces the heartbeat loop with one matching cfg. A config without
// a base URL, or with session creation turned off, leaves heartbeats
// disabled.
func (s *Session) Apply(ctx context.Context, cfg *config.Config) {
	s.stopLoop()

	if s.api == nil || !cfg.HasBaseURL() {
		s.logger.Debug("base url not set, session will not be initialised")
		return
	}
	if !cfg.CreateSession {
		s.logger.Debug("session creation disabled by config")
		return
	}

	name := cfg.SessionName
	if name == "" {
		name = s.fallback
	}

	loopCtx, cancel := context.WithCancel(ctx)
	handle := &loopHandle{cancel: cancel, done: make(chan struct{})}
	s.handle = handle

	go s.loop(loopCtx, handle, name, cfg.GetHeartbeat())
}

// stopLoop cancels the running loop and waits for it to exit, so a
// replacement never races its predecessor.
func (s *Session) stopLoop() {
	if s.handle == nil {
		return
	}
	s.logger.Debug("cancelling heartbeat loop")
	s.handle.cancel()
	<-s.handle.done
	s.handle = nil
}

// loop sends one heartbeat immediately, then one per interval.
func (s *Session) loop(ctx context.Context, handle *loopHandle, name string, interval time.Duration) {
	defer close(handle.done)

	s.logger.Debug("starting heartbeat loop",
		"session", name,
		"interval", interval)

	ticker := s.clock.Ticker(interval)
	defer ticker.Stop()

	s.heartbeat(ctx, name)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.heartbeat(ctx, name)
		}
	}
}

// heartbeat upserts the session record and republishes the echo. Failures
// are logged; the loop keeps its cadence.
func (s *Session) heartbeat(ctx context.Context, name string) {
	record := models.Session{
		Name:        name,
		Hostname:    s.hostname,
		Platform:    runtime.GOOS,
		LastUpdated: s.clock.Now().UTC(),
		StartedAt:   s.startedAt,
	}

	echoed, err := s.api.PutSession(ctx, record)
	if err != nil {
		s.logger.Error("failed to send heartbeat",
			"session", name,
			"error", err)
		return
	}

	s.logger.Debug("heartbeat sent", "session", name)
	if err := s.bus.Publish(ctx, eventbus.TopicSessionUpdated, eventbus.SessionUpdated{Session: echoed}); err != nil {
		s.logger.Error("failed to publish session update", "error", err)
	}
}
