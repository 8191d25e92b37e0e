package probe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/schnooty/agent/internal/models"
)

func httpMonitor(url, method string) models.Monitor {
	body := map[string]any{}
	if url != "" {
		body["url"] = url
	}
	if method != "" {
		body["method"] = method
	}
	return models.Monitor{Name: "web", Type: models.TypeHTTP, Period: "30s", Body: body}
}

func runProbe(t *testing.T, d Driver, monitor models.Monitor) models.MonitorStatus {
	t.Helper()
	builder := models.NewStatusBuilder(monitor.Name, monitor.Type, time.Now())
	status, err := d.Probe(context.Background(), monitor, builder)
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	return status
}

func TestHTTPProbeSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	status := runProbe(t, NewHTTP(), httpMonitor(server.URL, "GET"))

	if status.Status != models.StatusOK {
		t.Fatalf("status = %q, want OK (actual=%q)", status.Status, status.ActualResult)
	}
	if status.ExpectedResult != "200-level status code" {
		t.Errorf("expectedResult = %q", status.ExpectedResult)
	}
	if !strings.Contains(status.ActualResult, "200") {
		t.Errorf("actualResult = %q, want 200 status line", status.ActualResult)
	}
	if len(status.Log) == 0 {
		t.Error("expected probe log lines")
	}
}

func TestHTTPProbeServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	status := runProbe(t, NewHTTP(), httpMonitor(server.URL, "GET"))

	if status.Status != models.StatusDown {
		t.Fatalf("status = %q, want DOWN", status.Status)
	}
	if !strings.Contains(status.ActualResult, "500") {
		t.Errorf("actualResult = %q, want 500 status line", status.ActualResult)
	}
}

func TestHTTPProbeFollowsRedirects(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/ok", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/ok", http.StatusFound)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	status := runProbe(t, NewHTTP(), httpMonitor(server.URL, "GET"))
	if status.Status != models.StatusOK {
		t.Errorf("status = %q, want OK after following redirect", status.Status)
	}
}

func TestHTTPProbeSendsHeadersAndBody(t *testing.T) {
	var gotHeader string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get("X-Check")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	monitor := httpMonitor(server.URL, "POST")
	monitor.Body["headers"] = []any{map[string]any{"name": "X-Check", "value": "yes"}}
	monitor.Body["body"] = `{"ping":true}`

	status := runProbe(t, NewHTTP(), monitor)
	if status.Status != models.StatusOK {
		t.Fatalf("status = %q, want OK", status.Status)
	}
	if gotHeader != "yes" {
		t.Errorf("X-Check header = %q, want %q", gotHeader, "yes")
	}
}

func TestHTTPProbeMissingConfiguration(t *testing.T) {
	testCases := []struct {
		name    string
		monitor models.Monitor
	}{
		{"no url", httpMonitor("", "GET")},
		{"no method", httpMonitor("https://example.com/", "")},
		{"empty body", models.Monitor{Name: "web", Type: models.TypeHTTP}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			status := runProbe(t, NewHTTP(), tc.monitor)
			if status.Status != models.StatusDown {
				t.Fatalf("status = %q, want DOWN", status.Status)
			}
			if status.ActualResult != "Either method or url is missing in this monitor's configuration, or both" {
				t.Errorf("actualResult = %q", status.ActualResult)
			}
			if status.Description != "HTTP monitor is missing configuration" {
				t.Errorf("description = %q", status.Description)
			}
		})
	}
}

func TestHTTPProbeTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close() // connection refused from now on

	status := runProbe(t, NewHTTP(), httpMonitor(url, "GET"))
	if status.Status != models.StatusDown {
		t.Fatalf("status = %q, want DOWN", status.Status)
	}
	if status.ActualResult == "" {
		t.Error("actualResult should carry the transport error text")
	}
}

func TestHTTPProbeHonorsTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	monitor := httpMonitor(server.URL, "GET")
	monitor.Timeout = "1s"

	start := time.Now()
	status := runProbe(t, NewHTTP(), monitor)
	elapsed := time.Since(start)

	if status.Status != models.StatusDown {
		t.Fatalf("status = %q, want DOWN on timeout", status.Status)
	}
	if elapsed > 5*time.Second {
		t.Errorf("probe took %v, want ~1s timeout", elapsed)
	}
}
