package system

import (
	"context"
	"runtime"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// HostStats is a snapshot of the machine the renderer runs on.
type HostStats struct {
	LogicalCPUs  int
	PhysicalCPUs int
	TotalMemory  uint64
	FreeMemory   uint64
}

// ReadHostStats queries gopsutil. Counters that cannot be read fall back to
// runtime values or stay zero.
func ReadHostStats(ctx context.Context) HostStats {
	st := HostStats{LogicalCPUs: runtime.NumCPU()}
	if n, err := cpu.CountsWithContext(ctx, true); err == nil && n > 0 {
		st.LogicalCPUs = n
	}
	if n, err := cpu.CountsWithContext(ctx, false); err == nil {
		st.PhysicalCPUs = n
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		st.TotalMemory = vm.Total
		st.FreeMemory = vm.Available
	}
	return st
}

// frameBudget is the memory one in-flight export segment is allowed: source
// image, an RGBA copy and ffmpeg buffers.
const frameBudget = 256 << 20

// Workers suggests a worker count: one per logical CPU, lowered so that the
// segments fit in available memory. Never less than one.
func (s HostStats) Workers() int {
	n := s.LogicalCPUs
	if s.FreeMemory > 0 {
		if byMem := int(s.FreeMemory / frameBudget); byMem < n {
			n = byMem
		}
	}
	if n < 1 {
		n = 1
	}
	return n
}

func (s HostStats) Log(log zerolog.Logger) {
	log.Info().
		Int("cpu_logical", s.LogicalCPUs).
		Int("cpu_physical", s.PhysicalCPUs).
		Uint64("mem_total_mb", s.TotalMemory>>20).
		Uint64("mem_free_mb", s.FreeMemory>>20).
		Msg("host")
}
