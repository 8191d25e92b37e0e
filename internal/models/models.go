package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// MonitorType identifies which probe driver runs a monitor.
type MonitorType string

const (
	TypeHTTP    MonitorType = "http"
	TypeTCP     MonitorType = "tcp"
	TypeProcess MonitorType = "process"
	TypeRedis   MonitorType = "redis"
)

// StatusCode is the binary outcome of a probe run.
type StatusCode string

const (
	StatusOK   StatusCode = "OK"
	StatusDown StatusCode = "DOWN"
)

// Monitor describes a single health check target. Name is the monitor's
// identity: one schedule, one in-flight slot and one alert state per name.
type Monitor struct {
	Name    string         `json:"name" yaml:"name" validate:"required"`
	Type    MonitorType    `json:"type" yaml:"type" validate:"required,oneof=http tcp process redis"`
	Period  string         `json:"period" yaml:"period"`                     // e.g. "30s", "5m", "1m 30s"
	Timeout string         `json:"timeout,omitempty" yaml:"timeout,omitempty"` // same syntax as period
	Body    map[string]any `json:"body,omitempty" yaml:"body,omitempty"`
}

// EffectiveTimeout returns the monitor's timeout as a duration, or fallback
// when no positive timeout is configured.
func (m Monitor) EffectiveTimeout(fallback time.Duration) time.Duration {
	if m.Timeout == "" {
		return fallback
	}
	if ms := ParsePeriod(m.Timeout); ms > 0 {
		return time.Duration(ms) * time.Millisecond
	}
	return fallback
}

// MonitorStatus is the outcome of one probe run, shaped for the statuses API.
type MonitorStatus struct {
	StatusID       string      `json:"statusId"`
	MonitorName    string      `json:"monitorName"`
	MonitorType    MonitorType `json:"monitorType"`
	Status         StatusCode  `json:"status"`
	Timestamp      time.Time   `json:"timestamp"`
	ExpiresAt      time.Time   `json:"expiresAt"`
	ExpectedResult string      `json:"expectedResult"`
	ActualResult   string      `json:"actualResult"`
	Description    string      `json:"description"`
	Log            []LogLine   `json:"log"`
}

// LogLine is one line of probe output captured during a run.
type LogLine struct {
	Timestamp time.Time `json:"timestamp"`
	Value     string    `json:"value"`
}

// AlertType identifies an alert delivery channel.
type AlertType string

const (
	AlertEmail   AlertType = "email"
	AlertTeams   AlertType = "msTeamsMessage"
	AlertWebhook AlertType = "webhook"
	AlertLog     AlertType = "log"
)

// Alert configures one alert delivery channel.
type Alert struct {
	Type AlertType      `json:"type" yaml:"type" validate:"required,oneof=email msTeamsMessage webhook log"`
	Body map[string]any `json:"body,omitempty" yaml:"body,omitempty"`
}

// Session is the heartbeat body sent to the sessions API.
type Session struct {
	Name        string    `json:"name"`
	Hostname    string    `json:"hostname"`
	Platform    string    `json:"platform"`
	LastUpdated time.Time `json:"lastUpdated"`
	StartedAt   time.Time `json:"startedAt"`
}

// NodeInfo is a human-readable snapshot of the host, attached to alerts.
type NodeInfo struct {
	Hostname string `json:"hostname"`
	Platform string `json:"platform"`
	CPU      string `json:"cpu"` // "N logical cores, M physical cores"
	RAM      string `json:"ram"` // "X KB used of Y total (Z.ZZ %)"
}

// AlertPayload is the body delivered to alert channels on a state edge. It
// carries the full status so channels can render the probe log.
type AlertPayload struct {
	MonitorName string        `json:"monitor_name"`
	Status      MonitorStatus `json:"status"`
	NodeInfo    NodeInfo      `json:"node_info"`
}

// DecodeBody maps a monitor or alert body into a typed parameter struct via
// a JSON round trip, so body maps parsed from YAML or the API decode the
// same way.
func DecodeBody(body map[string]any, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding body: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decoding body: %w", err)
	}
	return nil
}
