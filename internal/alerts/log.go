package alerts

import (
	"context"
	"log/slog"

	"github.com/schnooty/agent/internal/models"
)

// Log writes alerts through the agent's own logger. It needs no
// configuration and works when no external channel is reachable.
type Log struct {
	logger *slog.Logger
}

// NewLog builds a log channel.
func NewLog(logger *slog.Logger) *Log {
	return &Log{logger: logger.With("component", "alerts")}
}

func (l *Log) Type() models.AlertType { return models.AlertLog }

func (l *Log) Send(_ context.Context, payload models.AlertPayload) error {
	attrs := []any{
		"monitor", payload.MonitorName,
		"status", payload.Status.Status,
		"expected", payload.Status.ExpectedResult,
		"actual", payload.Status.ActualResult,
	}
	if payload.Status.Status == models.StatusOK {
		l.logger.Info("monitor recovered", attrs...)
	} else {
		l.logger.Warn("monitor is down", attrs...)
	}
	return nil
}
