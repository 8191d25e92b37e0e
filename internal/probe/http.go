package probe

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/schnooty/agent/internal/models"
)

type httpParams struct {
	Method  string `json:"method"`
	URL     string `json:"url"`
	Headers []struct {
		Name  string `json:"name"`
		Value string `json:"value"`
	} `json:"headers"`
	Body string `json:"body"`
}

// HTTP probes an endpoint and reports OK for any 2xx response. Redirects
// are followed (default client policy), so a 301 to a healthy page is OK.
type HTTP struct {
	client *http.Client
}

// NewHTTP creates the HTTP driver.
func NewHTTP() *HTTP {
	return &HTTP{client: &http.Client{}}
}

// Type implements Driver.
func (h *HTTP) Type() models.MonitorType { return models.TypeHTTP }

// Probe implements Driver. Transport failures produce a DOWN status with
// the error text as the actual result rather than a driver error.
func (h *HTTP) Probe(ctx context.Context, monitor models.Monitor, builder *models.StatusBuilder) (models.MonitorStatus, error) {
	const expected = "200-level status code"

	var params httpParams
	if err := models.DecodeBody(monitor.Body, &params); err != nil {
		return models.MonitorStatus{}, fmt.Errorf("decoding http monitor body: %w", err)
	}

	if params.Method == "" || params.URL == "" {
		builder.Describe("HTTP monitor is missing configuration")
		method, url := params.Method, params.URL
		if method == "" {
			method = "<missing>"
		}
		if url == "" {
			url = "<missing>"
		}
		builder.WriteLog(fmt.Sprintf("Monitor configuration (method=%s, url=%s)", method, url))
		return builder.Down(expected, "Either method or url is missing in this monitor's configuration, or both"), nil
	}

	builder.Describe(fmt.Sprintf("GET %s has success status code", params.URL))
	builder.WriteLog(fmt.Sprintf("Beginning GET request to %s", strings.TrimSpace(params.URL)))

	ctx, cancel := context.WithTimeout(ctx, monitor.EffectiveTimeout(DefaultTimeout))
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, strings.ToUpper(params.Method), params.URL, strings.NewReader(params.Body))
	if err != nil {
		builder.WriteLog(fmt.Sprintf("Error completing HTTP request: %v", err))
		return builder.Down(expected, err.Error()), nil
	}
	for _, header := range params.Headers {
		req.Header.Set(header.Name, header.Value)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		builder.WriteLog(fmt.Sprintf("Error completing HTTP request: %v", err))
		return builder.Down(expected, err.Error()), nil
	}
	defer resp.Body.Close()

	builder.WriteLog(fmt.Sprintf("Response status code: %s", strings.TrimSpace(resp.Status)))

	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		builder.WriteLog("Response status code is success.\nAll OK")
		return builder.OK(expected, resp.Status), nil
	}
	return builder.Down(expected, resp.Status), nil
}
