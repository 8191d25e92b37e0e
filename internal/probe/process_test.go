package probe

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/schnooty/agent/internal/models"
)

func fakeLister(infos ...ProcessInfo) ProcessLister {
	return func(ctx context.Context) ([]ProcessInfo, error) {
		return infos, nil
	}
}

func processMonitor(body map[string]any) models.Monitor {
	return models.Monitor{Name: "proc", Type: models.TypeProcess, Period: "30s", Body: body}
}

func TestProcessProbeMatchesByBasename(t *testing.T) {
	driver := &Process{list: fakeLister(
		ProcessInfo{Exe: "/usr/sbin/nginx", RSS: 10 << 20},
		ProcessInfo{Exe: "/usr/sbin/nginx", RSS: 12 << 20},
		ProcessInfo{Exe: "/bin/bash", RSS: 1 << 20},
	)}

	status := runProbe(t, driver, processMonitor(map[string]any{
		"executable":   "nginx",
		"minimumCount": 2,
	}))

	if status.Status != models.StatusOK {
		t.Fatalf("status = %q, want OK (actual=%q)", status.Status, status.ActualResult)
	}
	if status.Description != "Process monitor for nginx" {
		t.Errorf("description = %q", status.Description)
	}
}

func TestProcessProbeMatchesByAbsolutePath(t *testing.T) {
	driver := &Process{list: fakeLister(
		ProcessInfo{Exe: "/usr/sbin/nginx", RSS: 1 << 20},
		ProcessInfo{Exe: "/opt/other/nginx", RSS: 1 << 20},
	)}

	status := runProbe(t, driver, processMonitor(map[string]any{
		"executable":     "/usr/sbin/nginx",
		"isPathAbsolute": true,
		"minimumCount":   1,
		"maximumCount":   1,
	}))

	if status.Status != models.StatusOK {
		t.Fatalf("status = %q, want OK: exactly one absolute-path match (actual=%q)",
			status.Status, status.ActualResult)
	}
}

func TestProcessProbeMinimumCountViolation(t *testing.T) {
	driver := &Process{list: fakeLister(
		ProcessInfo{Exe: "/usr/sbin/nginx", RSS: 1 << 20},
	)}

	status := runProbe(t, driver, processMonitor(map[string]any{
		"executable":   "nginx",
		"minimumCount": 3,
	}))

	if status.Status != models.StatusDown {
		t.Fatalf("status = %q, want DOWN", status.Status)
	}
	if status.ExpectedResult != "Should be at least 3 process(es) that match" {
		t.Errorf("expectedResult = %q", status.ExpectedResult)
	}
	if status.ActualResult != "Found 1 process(es) that match" {
		t.Errorf("actualResult = %q", status.ActualResult)
	}
}

func TestProcessProbeMaximumCountViolation(t *testing.T) {
	driver := &Process{list: fakeLister(
		ProcessInfo{Exe: "/usr/sbin/nginx", RSS: 1 << 20},
		ProcessInfo{Exe: "/usr/sbin/nginx", RSS: 1 << 20},
		ProcessInfo{Exe: "/usr/sbin/nginx", RSS: 1 << 20},
	)}

	status := runProbe(t, driver, processMonitor(map[string]any{
		"executable":   "nginx",
		"maximumCount": 2,
	}))

	if status.Status != models.StatusDown {
		t.Fatalf("status = %q, want DOWN when count exceeds maximum", status.Status)
	}
	if status.ExpectedResult != "Found 2 or fewer matching process(es)" {
		t.Errorf("expectedResult = %q", status.ExpectedResult)
	}
}

func TestProcessProbeZeroMatchesSatisfiesMaximum(t *testing.T) {
	driver := &Process{list: fakeLister(
		ProcessInfo{Exe: "/bin/bash", RSS: 1 << 20},
	)}

	status := runProbe(t, driver, processMonitor(map[string]any{
		"executable":   "nginx",
		"maximumCount": 2,
	}))

	if status.Status != models.StatusOK {
		t.Errorf("status = %q, want OK: zero matches is within the maximum", status.Status)
	}
}

func TestProcessProbeIndividualMemoryViolation(t *testing.T) {
	driver := &Process{list: fakeLister(
		ProcessInfo{Exe: "/usr/sbin/nginx", RSS: 64 << 20},
	)}

	status := runProbe(t, driver, processMonitor(map[string]any{
		"executable":           "nginx",
		"maximumRamIndividual": 32 << 20,
	}))

	if status.Status != models.StatusDown {
		t.Fatalf("status = %q, want DOWN", status.Status)
	}
	if status.ActualResult != "At least one process violates the memory limit" {
		t.Errorf("actualResult = %q", status.ActualResult)
	}
}

func TestProcessProbeTotalMemoryViolation(t *testing.T) {
	driver := &Process{list: fakeLister(
		ProcessInfo{Exe: "/usr/sbin/nginx", RSS: 30 << 20},
		ProcessInfo{Exe: "/usr/sbin/nginx", RSS: 30 << 20},
	)}

	status := runProbe(t, driver, processMonitor(map[string]any{
		"executable":      "nginx",
		"maximumRamTotal": 50 << 20,
	}))

	if status.Status != models.StatusDown {
		t.Fatalf("status = %q, want DOWN", status.Status)
	}
	wantActual := "Total memory of matching processes was 62914560 bytes"
	if status.ActualResult != wantActual {
		t.Errorf("actualResult = %q, want %q", status.ActualResult, wantActual)
	}
}

func TestProcessProbeMissingExecutable(t *testing.T) {
	driver := &Process{list: fakeLister()}

	status := runProbe(t, driver, processMonitor(map[string]any{}))

	if status.Status != models.StatusDown {
		t.Fatalf("status = %q, want DOWN", status.Status)
	}
	if status.ActualResult != "Process monitor's executable field is null" {
		t.Errorf("actualResult = %q", status.ActualResult)
	}
	if status.Description != "Process monitor for unknown executable" {
		t.Errorf("description = %q", status.Description)
	}
}

func TestProcessProbeListerError(t *testing.T) {
	driver := &Process{list: func(ctx context.Context) ([]ProcessInfo, error) {
		return nil, errors.New("proc unavailable")
	}}

	builder := models.NewStatusBuilder("proc", models.TypeProcess, time.Now())
	_, err := driver.Probe(context.Background(), processMonitor(map[string]any{"executable": "nginx"}), builder)
	if err == nil {
		t.Fatal("expected error when process table is unavailable")
	}
}
