package models

import (
	"strings"
	"time"
)

// DefaultDescription is attached to a status when the probe never set one.
const DefaultDescription = "Description unavailable"

// statusTTL is how long a status stays valid after its probe ran.
const statusTTL = 24 * time.Hour

// StatusBuilder accumulates probe output for one run and materializes it as
// a MonitorStatus. The zero value is not usable; construct with
// NewStatusBuilder.
type StatusBuilder struct {
	monitorName string
	monitorType MonitorType
	timestamp   time.Time
	description string
	log         []LogLine
}

// NewStatusBuilder starts a status for one probe run. The timestamp should
// be the probe start time; it becomes the status timestamp.
func NewStatusBuilder(name string, typ MonitorType, timestamp time.Time) *StatusBuilder {
	return &StatusBuilder{
		monitorName: name,
		monitorType: typ,
		timestamp:   timestamp.UTC(),
	}
}

// Describe sets the human-readable description attached to the status.
func (b *StatusBuilder) Describe(description string) {
	b.description = description
}

// WriteLog appends probe output. Multi-line input is split on newlines; each
// trimmed non-empty line becomes one log entry stamped at write time.
func (b *StatusBuilder) WriteLog(message string) {
	now := time.Now().UTC()
	for _, line := range strings.Split(message, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		b.log = append(b.log, LogLine{Timestamp: now, Value: line})
	}
}

// OK materializes the run as successful.
func (b *StatusBuilder) OK(expected, actual string) MonitorStatus {
	return b.build(StatusOK, expected, actual)
}

// Down materializes the run as failed.
func (b *StatusBuilder) Down(expected, actual string) MonitorStatus {
	return b.build(StatusDown, expected, actual)
}

func (b *StatusBuilder) build(code StatusCode, expected, actual string) MonitorStatus {
	description := b.description
	if description == "" {
		description = DefaultDescription
	}
	return MonitorStatus{
		StatusID:       b.monitorName,
		MonitorName:    b.monitorName,
		MonitorType:    b.monitorType,
		Status:         code,
		Timestamp:      b.timestamp,
		ExpiresAt:      b.timestamp.Add(statusTTL),
		ExpectedResult: expected,
		ActualResult:   actual,
		Description:    description,
		Log:            b.log,
	}
}
