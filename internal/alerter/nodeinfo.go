package alerter

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/schnooty/agent/internal/models"
)

// collectNodeInfo gathers host facts for an alert payload. Collection runs
// per emission so the RAM figures describe the node at alert time. Each
// field degrades to an "unavailable" placeholder on its own; host
// introspection failures never block an alert.
func collectNodeInfo(ctx context.Context) models.NodeInfo {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "Hostname unavailable"
	}

	cpuInfo := "CPU info unavailable"
	logical, logicalErr := cpu.CountsWithContext(ctx, true)
	physical, physicalErr := cpu.CountsWithContext(ctx, false)
	if logicalErr == nil && physicalErr == nil {
		cpuInfo = fmt.Sprintf("%d logical cores, %d physical cores", logical, physical)
	}

	ramInfo := "RAM info unavailable"
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil && vm.Total > 0 {
		ramInfo = fmt.Sprintf("%d KB used of %d total (%.2f %%)",
			vm.Used/1024,
			vm.Total/1024,
			100*float64(vm.Used)/float64(vm.Total))
	}

	return models.NodeInfo{
		Hostname: hostname,
		Platform: runtime.GOOS,
		CPU:      cpuInfo,
		RAM:      ramInfo,
	}
}
