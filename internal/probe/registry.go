// Package probe implements the health check drivers and their registry.
// One driver exists per monitor type; the executor resolves a monitor's
// driver here and runs the probe with a per-run timeout.
package probe

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/schnooty/agent/internal/models"
)

// DefaultTimeout bounds a probe run when the monitor sets no timeout.
const DefaultTimeout = 30 * time.Second

// Driver executes one kind of health check. Probe returns a status for
// checks that ran (including failed ones); an error return means the check
// could not start at all and the caller synthesizes a DOWN status.
// Drivers must not panic.
type Driver interface {
	Type() models.MonitorType
	Probe(ctx context.Context, monitor models.Monitor, builder *models.StatusBuilder) (models.MonitorStatus, error)
}

// Registry maps monitor types to their drivers.
type Registry struct {
	drivers map[models.MonitorType]Driver
	mu      sync.RWMutex
}

// NewRegistry creates an empty driver registry.
func NewRegistry() *Registry {
	return &Registry{
		drivers: make(map[models.MonitorType]Driver),
	}
}

// Defaults returns a registry with every built-in driver registered.
func Defaults() *Registry {
	r := NewRegistry()
	r.Register(NewHTTP())
	r.Register(NewTCP())
	r.Register(NewProcess())
	r.Register(NewRedis())
	return r
}

// Register adds a driver, replacing any driver of the same type.
func (r *Registry) Register(d Driver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drivers[d.Type()] = d
}

// Get returns the driver for a monitor type.
func (r *Registry) Get(t models.MonitorType) (Driver, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	driver, exists := r.drivers[t]
	if !exists {
		return nil, fmt.Errorf("no driver registered for monitor type: %s", t)
	}
	return driver, nil
}

// Types returns the registered monitor types.
func (r *Registry) Types() []models.MonitorType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]models.MonitorType, 0, len(r.drivers))
	for t := range r.drivers {
		types = append(types, t)
	}
	return types
}
