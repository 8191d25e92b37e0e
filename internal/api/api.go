// Package api implements the control-plane client. The agent reads monitor
// and alert assignments through it, announces liveness with session
// heartbeats, and uploads probe statuses.
package api

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/schnooty/agent/internal/models"
)

// DefaultTimeout bounds one API call.
const DefaultTimeout = 30 * time.Second

// ErrNoBaseURL is returned when a client is constructed without a base URL.
var ErrNoBaseURL = errors.New("no base url configured")

// Client is the control-plane surface the agent needs.
type Client interface {
	GetMonitors(ctx context.Context) ([]models.Monitor, error)
	GetAlerts(ctx context.Context) ([]models.Alert, error)
	PutSession(ctx context.Context, session models.Session) (models.Session, error)
	PostStatus(ctx context.Context, status models.MonitorStatus) error
}

// StatusError reports a non-2xx API reply.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("api returned status code %d", e.Code)
}
