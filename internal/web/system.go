package web

import (
	"runtime"

	"github.com/shirou/gopsutil/cpu"
	"github.com/shirou/gopsutil/mem"
)

var (
	cpuPercentFn    = cpu.Percent
	virtualMemoryFn = mem.VirtualMemory
)

// SystemSnapshot is host load reported next to the controller state.
// Fields are omitted when the platform cannot provide them.
type SystemSnapshot struct {
	CPUPercent     *float64 `json:"cpu_percent,omitempty"`
	MemUsedPercent *float64 `json:"mem_used_percent,omitempty"`
	Goroutines     int      `json:"goroutines"`
}

// readSystem samples host load without blocking: CPU usage is measured
// since the previous call.
func readSystem() SystemSnapshot {
	snap := SystemSnapshot{Goroutines: runtime.NumGoroutine()}
	if usage, err := cpuPercentFn(0, false); err == nil && len(usage) > 0 {
		v := usage[0]
		snap.CPUPercent = &v
	}
	if vm, err := virtualMemoryFn(); err == nil && vm != nil {
		v := vm.UsedPercent
		snap.MemUsedPercent = &v
	}
	return snap
}
