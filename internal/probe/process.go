package probe

import (
	"context"
	"fmt"
	"math"
	"path/filepath"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/schnooty/agent/internal/models"
)

type processParams struct {
	Executable           string  `json:"executable"`
	IsPathAbsolute       bool    `json:"isPathAbsolute"`
	MinimumCount         *int    `json:"minimumCount"`
	MaximumCount         *int    `json:"maximumCount"`
	MaximumRamIndividual *uint64 `json:"maximumRamIndividual"` // bytes
	MaximumRamTotal      *uint64 `json:"maximumRamTotal"`      // bytes
}

// ProcessInfo is one row of the process table as seen by the process driver.
type ProcessInfo struct {
	Exe string // argv[0]
	RSS uint64 // resident set size in bytes
}

// ProcessLister enumerates running processes. Swappable for tests.
type ProcessLister func(ctx context.Context) ([]ProcessInfo, error)

// Process checks the local process table: presence, instance count and
// memory ceilings for processes matching an executable name. With
// isPathAbsolute the full argv[0] is compared, otherwise its basename.
type Process struct {
	list ProcessLister
}

// NewProcess creates the process driver backed by the OS process table.
func NewProcess() *Process {
	return &Process{list: systemProcesses}
}

// Type implements Driver.
func (d *Process) Type() models.MonitorType { return models.TypeProcess }

// Probe implements Driver.
func (d *Process) Probe(ctx context.Context, monitor models.Monitor, builder *models.StatusBuilder) (models.MonitorStatus, error) {
	var params processParams
	if err := models.DecodeBody(monitor.Body, &params); err != nil {
		return models.MonitorStatus{}, fmt.Errorf("decoding process monitor body: %w", err)
	}

	if params.Executable == "" {
		builder.Describe("Process monitor for unknown executable")
		return builder.Down(
			"Process monitor should have executable path to monitor",
			"Process monitor's executable field is null",
		), nil
	}

	builder.Describe(fmt.Sprintf("Process monitor for %s", params.Executable))

	maxRAMIndividual := uint64(math.MaxUint64)
	if params.MaximumRamIndividual != nil {
		maxRAMIndividual = *params.MaximumRamIndividual
	}
	maxRAMTotal := uint64(math.MaxUint64)
	if params.MaximumRamTotal != nil {
		maxRAMTotal = *params.MaximumRamTotal
	}

	builder.WriteLog("Inspecting process information")

	processes, err := d.list(ctx)
	if err != nil {
		return models.MonitorStatus{}, err
	}

	var totalRAM uint64
	var totalCount int
	instanceViolation := false

	for _, proc := range processes {
		var matches bool
		if params.IsPathAbsolute {
			matches = params.Executable == proc.Exe
		} else {
			matches = params.Executable == filepath.Base(proc.Exe)
		}
		if !matches {
			continue
		}

		builder.WriteLog(fmt.Sprintf("Found matching process with cmd: %s", filepath.Base(proc.Exe)))

		if proc.RSS > maxRAMIndividual {
			builder.WriteLog(fmt.Sprintf("Maximum RAM for any one process must be %d bytes or less. I got %d bytes", maxRAMIndividual, proc.RSS))
			instanceViolation = true
		}
		totalRAM += proc.RSS
		totalCount++
	}

	builder.WriteLog(fmt.Sprintf("Found %d process(es) that match", totalCount))

	if instanceViolation {
		return builder.Down(
			fmt.Sprintf("All matching processes should use less than %d bytes of memory", maxRAMIndividual),
			"At least one process violates the memory limit",
		), nil
	}

	builder.WriteLog("Checking if total process memory over limit")
	if totalRAM > maxRAMTotal {
		builder.WriteLog(fmt.Sprintf("Maximum sum of RAM must be %d bytes or less. I got %d bytes", maxRAMTotal, totalRAM))
		return builder.Down(
			fmt.Sprintf("Total memory of matching processes should be less than %d bytes", maxRAMTotal),
			fmt.Sprintf("Total memory of matching processes was %d bytes", totalRAM),
		), nil
	}

	builder.WriteLog("Checking that process count not below minimum count")
	if params.MinimumCount != nil {
		builder.WriteLog(fmt.Sprintf("Minimum number of processes is %d. I found %d", *params.MinimumCount, totalCount))
		if totalCount < *params.MinimumCount {
			builder.WriteLog("Failing because minimum process count not reached")
			return builder.Down(
				fmt.Sprintf("Should be at least %d process(es) that match", *params.MinimumCount),
				fmt.Sprintf("Found %d process(es) that match", totalCount),
			), nil
		}
	}

	builder.WriteLog("Checking that process count not over maximum count")
	if params.MaximumCount != nil {
		builder.WriteLog(fmt.Sprintf("Maximum number of processes is %d. I found %d", *params.MaximumCount, totalCount))
		if totalCount > *params.MaximumCount {
			builder.WriteLog("Failing because number of processes found is over limit")
			return builder.Down(
				fmt.Sprintf("Found %d or fewer matching process(es)", *params.MaximumCount),
				fmt.Sprintf("Found %d process(es) that match", totalCount),
			), nil
		}
	}

	builder.WriteLog("All OK")
	return builder.OK(
		"All matching processes should be below threshold in monitor",
		"No process violated the memory or total count rules",
	), nil
}

// systemProcesses reads the OS process table. Processes whose command line
// is unreadable (already exited, or owned by another user on some
// platforms) are skipped.
func systemProcesses(ctx context.Context) ([]ProcessInfo, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing processes: %w", err)
	}

	infos := make([]ProcessInfo, 0, len(procs))
	for _, p := range procs {
		argv, err := p.CmdlineSliceWithContext(ctx)
		if err != nil || len(argv) == 0 || argv[0] == "" {
			continue
		}
		var rss uint64
		if mem, err := p.MemoryInfoWithContext(ctx); err == nil && mem != nil {
			rss = mem.RSS
		}
		infos = append(infos, ProcessInfo{Exe: argv[0], RSS: rss})
	}
	return infos, nil
}
