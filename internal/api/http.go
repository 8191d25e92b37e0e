package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/schnooty/agent/internal/models"
)

// HTTP talks to the control plane over its REST surface. All calls carry
// Basic auth built from the agent's API key and share one timeout.
type HTTP struct {
	baseURL  string // always ends in "/"
	username string
	password string
	hasAuth  bool
	client   *http.Client
	logger   *slog.Logger
}

var _ Client = (*HTTP)(nil)

// NewHTTP builds a client for the given base URL and API key. The key has
// the form "agent-id:secret"; an empty key disables authentication.
func NewHTTP(logger *slog.Logger, baseURL, apiKey string) (*HTTP, error) {
	if baseURL == "" {
		return nil, ErrNoBaseURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}

	h := &HTTP{
		baseURL: baseURL,
		client:  &http.Client{Timeout: DefaultTimeout},
		logger:  logger.With("component", "api"),
	}
	if apiKey != "" {
		username, password, found := strings.Cut(apiKey, ":")
		if !found {
			return nil, errors.New(`api key must have the form "id:secret"`)
		}
		h.username = username
		h.password = password
		h.hasAuth = true
	}
	return h, nil
}

// GetMonitors fetches the monitors assigned to this agent.
func (h *HTTP) GetMonitors(ctx context.Context) ([]models.Monitor, error) {
	var envelope struct {
		Monitors []models.Monitor `json:"monitors"`
	}
	if err := h.do(ctx, http.MethodGet, "monitors", nil, &envelope); err != nil {
		return nil, fmt.Errorf("failed to get monitors: %w", err)
	}
	h.logger.Debug("retrieved monitors", "count", len(envelope.Monitors))
	return envelope.Monitors, nil
}

// GetAlerts fetches the alert descriptors assigned to this agent.
func (h *HTTP) GetAlerts(ctx context.Context) ([]models.Alert, error) {
	var envelope struct {
		Alerts []models.Alert `json:"alerts"`
	}
	if err := h.do(ctx, http.MethodGet, "alerts", nil, &envelope); err != nil {
		return nil, fmt.Errorf("failed to get alerts: %w", err)
	}
	h.logger.Debug("retrieved alerts", "count", len(envelope.Alerts))
	return envelope.Alerts, nil
}

// PutSession upserts the agent's session record and returns the echoed
// session as the control plane stored it.
func (h *HTTP) PutSession(ctx context.Context, session models.Session) (models.Session, error) {
	var echoed models.Session
	path := "sessions/" + url.PathEscape(session.Name)
	if err := h.do(ctx, http.MethodPut, path, session, &echoed); err != nil {
		return models.Session{}, fmt.Errorf("failed to put session: %w", err)
	}
	return echoed, nil
}

// PostStatus upserts one status record. Status ids repeat per monitor, so
// retries are idempotent.
func (h *HTTP) PostStatus(ctx context.Context, status models.MonitorStatus) error {
	path := "statuses/" + url.PathEscape(status.StatusID)
	if err := h.do(ctx, http.MethodPost, path, status, nil); err != nil {
		return fmt.Errorf("failed to post status: %w", err)
	}
	return nil
}

// do sends one request and decodes the JSON reply into out when non-nil.
func (h *HTTP) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, h.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if h.hasAuth {
		req.SetBasicAuth(h.username, h.password)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Code: resp.StatusCode}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response body: %w", err)
	}
	return nil
}
