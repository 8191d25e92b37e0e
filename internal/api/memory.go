package api

import (
	"context"
	"sync"

	"github.com/schnooty/agent/internal/models"
)

// Memory is an in-memory Client. It serves canned monitors and alerts and
// records everything written to it, which makes it the test double for the
// pipeline and a stand-in when no control plane is configured.
type Memory struct {
	mu       sync.Mutex
	monitors []models.Monitor
	alerts   []models.Alert
	statuses []models.MonitorStatus
	sessions []models.Session
	err      error
}

var _ Client = (*Memory)(nil)

// NewMemory creates an empty in-memory client.
func NewMemory() *Memory {
	return &Memory{}
}

// SetMonitors replaces the monitors served by GetMonitors.
func (m *Memory) SetMonitors(monitors []models.Monitor) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.monitors = append([]models.Monitor(nil), monitors...)
}

// SetAlerts replaces the alerts served by GetAlerts.
func (m *Memory) SetAlerts(alerts []models.Alert) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts = append([]models.Alert(nil), alerts...)
}

// SetError forces every call to fail with err until reset with nil.
func (m *Memory) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *Memory) GetMonitors(_ context.Context) ([]models.Monitor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return append([]models.Monitor(nil), m.monitors...), nil
}

func (m *Memory) GetAlerts(_ context.Context) ([]models.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return append([]models.Alert(nil), m.alerts...), nil
}

func (m *Memory) PutSession(_ context.Context, session models.Session) (models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return models.Session{}, m.err
	}
	m.sessions = append(m.sessions, session)
	return session, nil
}

func (m *Memory) PostStatus(_ context.Context, status models.MonitorStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.statuses = append(m.statuses, status)
	return nil
}

// PostedStatuses returns every status recorded so far.
func (m *Memory) PostedStatuses() []models.MonitorStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.MonitorStatus(nil), m.statuses...)
}

// Sessions returns every session heartbeat recorded so far.
func (m *Memory) Sessions() []models.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Session(nil), m.sessions...)
}
