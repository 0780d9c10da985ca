package system

import (
	"fmt"
	"os"
	"runtime"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// HostStats describes the machine a render ran on.
type HostStats struct {
	OS           string
	Platform     string
	CPUModel     string
	LogicalCPUs  int
	TotalMemory  uint64
	AvailMemory  uint64
	ProcessRSS   uint64
	GoMaxProcs   int
	NumGoroutine int
}

// Snapshot collects host statistics. Fields gopsutil cannot read on this
// platform are left zero.
func Snapshot() HostStats {
	s := HostStats{
		OS:           runtime.GOOS,
		GoMaxProcs:   runtime.GOMAXPROCS(0),
		NumGoroutine: runtime.NumGoroutine(),
	}

	if info, err := host.Info(); err == nil {
		s.Platform = fmt.Sprintf("%s %s", info.Platform, info.PlatformVersion)
	}
	if n, err := cpu.Counts(true); err == nil {
		s.LogicalCPUs = n
	}
	if infos, err := cpu.Info(); err == nil && len(infos) > 0 {
		s.CPUModel = infos[0].ModelName
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		s.TotalMemory = vm.Total
		s.AvailMemory = vm.Available
	}
	if p, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if mi, err := p.MemoryInfo(); err == nil {
			s.ProcessRSS = mi.RSS
		}
	}
	return s
}

// MiB formats a byte count.
func MiB(b uint64) string {
	return fmt.Sprintf("%.1f MiB", float64(b)/(1<<20))
}
