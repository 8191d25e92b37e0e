package alerts

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/schnooty/agent/internal/models"
)

// webhookParams is the body shape of a webhook alert.
type webhookParams struct {
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers"`
}

// Webhook posts the alert payload as JSON to a configured URL.
type Webhook struct {
	params webhookParams
	client *http.Client
}

// NewWebhook builds a webhook channel from an alert body.
func NewWebhook(body map[string]any) (*Webhook, error) {
	var params webhookParams
	if err := models.DecodeBody(body, &params); err != nil {
		return nil, fmt.Errorf("failed to decode webhook alert body: %w", err)
	}
	return &Webhook{
		params: params,
		client: &http.Client{Timeout: DefaultTimeout},
	}, nil
}

func (w *Webhook) Type() models.AlertType { return models.AlertWebhook }

// Send posts the raw AlertPayload, including the full status and its probe
// log, so receivers get everything the agent knows about the transition.
func (w *Webhook) Send(ctx context.Context, payload models.AlertPayload) error {
	if w.params.URL == "" {
		return errors.New("webhook alert is misconfigured: url is required")
	}
	return postJSON(ctx, w.client, w.params.URL, w.params.Headers, payload)
}
