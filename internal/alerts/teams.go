package alerts

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/schnooty/agent/internal/models"
)

// teamsParams is the body shape of a msTeamsMessage alert.
type teamsParams struct {
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers"`
}

// messageCard is the Office 365 connector card shape Teams incoming
// webhooks accept.
type messageCard struct {
	Type       string `json:"@type"`
	Context    string `json:"@context"`
	ThemeColor string `json:"themeColor"`
	Summary    string `json:"summary"`
	Title      string `json:"title"`
	Text       string `json:"text"`
}

// Teams posts alerts to a Microsoft Teams incoming webhook.
type Teams struct {
	params teamsParams
	client *http.Client
}

// NewTeams builds a Teams channel from an alert body.
func NewTeams(body map[string]any) (*Teams, error) {
	var params teamsParams
	if err := models.DecodeBody(body, &params); err != nil {
		return nil, fmt.Errorf("failed to decode msTeamsMessage alert body: %w", err)
	}
	return &Teams{
		params: params,
		client: &http.Client{Timeout: DefaultTimeout},
	}, nil
}

func (t *Teams) Type() models.AlertType { return models.AlertTeams }

// Send posts a MessageCard describing the transition. Red for a monitor
// going down, green for a recovery.
func (t *Teams) Send(ctx context.Context, payload models.AlertPayload) error {
	if t.params.URL == "" {
		return errors.New("msTeamsMessage alert is misconfigured: url is required")
	}

	title := fmt.Sprintf("Monitor %s is DOWN", payload.MonitorName)
	color := "d9534f"
	if payload.Status.Status == models.StatusOK {
		title = fmt.Sprintf("Monitor %s has recovered", payload.MonitorName)
		color = "5cb85c"
	}

	card := messageCard{
		Type:       "MessageCard",
		Context:    "http://schema.org/extensions",
		ThemeColor: color,
		Summary:    title,
		Title:      title,
		Text: fmt.Sprintf("Got result: %s. Expected result: %s. Description: %s. Hostname: %s.",
			payload.Status.ActualResult,
			payload.Status.ExpectedResult,
			payload.Status.Description,
			payload.NodeInfo.Hostname),
	}

	return postJSON(ctx, t.client, t.params.URL, t.params.Headers, card)
}
