// Package alerts implements the delivery channels an alert can be routed
// through: SMTP email, Microsoft Teams incoming webhooks, plain webhooks,
// and the agent's own log. The alerter builds channels from alert
// descriptors and dispatches one payload per state edge to each of them.
package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/schnooty/agent/internal/models"
)

// DefaultTimeout bounds one delivery attempt on HTTP-backed channels.
const DefaultTimeout = 30 * time.Second

// Channel delivers alert payloads to one configured destination. Send is
// called once per state edge; implementations honor ctx cancellation and
// report delivery failure with an error.
type Channel interface {
	Type() models.AlertType
	Send(ctx context.Context, payload models.AlertPayload) error
}

// Build constructs the channel for an alert descriptor. The body map is
// decoded here so shape problems surface when the alert list is applied;
// missing required fields are reported by Send, matching how a half
// configured channel behaves at delivery time.
func Build(logger *slog.Logger, alert models.Alert) (Channel, error) {
	switch alert.Type {
	case models.AlertEmail:
		return NewEmail(alert.Body)
	case models.AlertTeams:
		return NewTeams(alert.Body)
	case models.AlertWebhook:
		return NewWebhook(alert.Body)
	case models.AlertLog:
		return NewLog(logger), nil
	default:
		return nil, fmt.Errorf("unknown alert type: %s", alert.Type)
	}
}

// BuildAll constructs channels for every alert in the list. Unusable entries
// are skipped with an error log so one bad alert cannot disable the rest.
func BuildAll(logger *slog.Logger, alertList []models.Alert) []Channel {
	channels := make([]Channel, 0, len(alertList))
	for _, alert := range alertList {
		channel, err := Build(logger, alert)
		if err != nil {
			logger.Error("skipping unusable alert",
				"type", alert.Type,
				"error", err)
			continue
		}
		channels = append(channels, channel)
	}
	return channels
}

// postJSON sends one JSON document and treats any non-2xx reply as a
// delivery failure.
func postJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, body any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode alert body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create alert request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for name, value := range headers {
		req.Header.Set(name, value)
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("alert endpoint returned status %s", resp.Status)
	}
	return nil
}
