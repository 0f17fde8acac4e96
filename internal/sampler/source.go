package sampler

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v4/process"

	"github.com/alejoacosta74/profiler/pkg/perf"
)

// Counters is one joint reading of the process memory and CPU counters.
type Counters struct {
	Memory perf.MemorySample
	CPU    perf.CPUSample
}

// Source reads the current process counters. The production implementation
// combines runtime memstats with OS-level process accounting; tests inject
// fakes.
type Source interface {
	Read() (Counters, error)
}

// processSource reads counters for the current process via the Go runtime
// and gopsutil.
type processSource struct {
	proc *process.Process
}

// NewProcessSource creates a Source for the running process.
func NewProcessSource() (Source, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, fmt.Errorf("failed to open process handle: %w", err)
	}
	return &processSource{proc: proc}, nil
}

func (s *processSource) Read() (Counters, error) {
	now := time.Now()

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	sample := perf.MemorySample{
		Timestamp: now,
		HeapUsed:  m.HeapAlloc,
		HeapTotal: m.HeapSys,
		External:  m.Sys - m.HeapSys,
	}

	if info, err := s.proc.MemoryInfo(); err == nil {
		sample.RSS = info.RSS
	}

	times, err := s.proc.Times()
	if err != nil {
		return Counters{}, fmt.Errorf("failed to read cpu times: %w", err)
	}

	return Counters{
		Memory: sample,
		CPU: perf.CPUSample{
			Timestamp:  now,
			UserTime:   time.Duration(times.User * float64(time.Second)),
			SystemTime: time.Duration(times.System * float64(time.Second)),
		},
	}, nil
}
