package alerts

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/schnooty/agent/internal/models"
)

func downPayload() models.AlertPayload {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return models.AlertPayload{
		MonitorName: "api-prod",
		Status: models.MonitorStatus{
			StatusID:       "api-prod",
			MonitorName:    "api-prod",
			MonitorType:    models.TypeHTTP,
			Status:         models.StatusDown,
			Timestamp:      ts,
			ExpiresAt:      ts.Add(24 * time.Hour),
			ExpectedResult: "200-level status code",
			ActualResult:   "500 Internal Server Error",
			Description:    "GET https://example.com/health has success status code",
			Log: []models.LogLine{
				{Timestamp: ts, Value: "Beginning GET request to https://example.com/health"},
				{Timestamp: ts, Value: "Response status code: 500 Internal Server Error"},
			},
		},
		NodeInfo: models.NodeInfo{
			Hostname: "node-1",
			Platform: "linux",
			CPU:      "8 logical cores, 4 physical cores",
			RAM:      "1048576 KB used of 2097152 total (50.00 %)",
		},
	}
}

func okPayload() models.AlertPayload {
	payload := downPayload()
	payload.Status.Status = models.StatusOK
	payload.Status.ActualResult = "200 OK"
	return payload
}

func TestBuildConstructsEveryChannelType(t *testing.T) {
	for _, alertType := range []models.AlertType{
		models.AlertEmail,
		models.AlertTeams,
		models.AlertWebhook,
		models.AlertLog,
	} {
		channel, err := Build(slog.Default(), models.Alert{Type: alertType})
		if err != nil {
			t.Errorf("Build(%s): %v", alertType, err)
			continue
		}
		if channel.Type() != alertType {
			t.Errorf("Build(%s).Type() = %s", alertType, channel.Type())
		}
	}
}

func TestBuildRejectsUnknownType(t *testing.T) {
	_, err := Build(slog.Default(), models.Alert{Type: "pager"})
	if err == nil {
		t.Fatal("expected an error for an unknown alert type")
	}
}

func TestBuildAllSkipsUnusableAlerts(t *testing.T) {
	channels := BuildAll(slog.Default(), []models.Alert{
		{Type: models.AlertLog},
		{Type: "carrier-pigeon"},
		{Type: models.AlertWebhook, Body: map[string]any{"url": "https://example.com/hook"}},
	})
	if len(channels) != 2 {
		t.Fatalf("got %d channels, want 2", len(channels))
	}
}

func TestLogChannelWritesTransitions(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	channel := NewLog(logger)
	if err := channel.Send(context.Background(), downPayload()); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if err := channel.Send(context.Background(), okPayload()); err != nil {
		t.Fatalf("Send: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "monitor is down") {
		t.Errorf("log output missing the down line: %q", out)
	}
	if !strings.Contains(out, "monitor recovered") {
		t.Errorf("log output missing the recovery line: %q", out)
	}
	if !strings.Contains(out, "api-prod") {
		t.Errorf("log output missing the monitor name: %q", out)
	}
}
