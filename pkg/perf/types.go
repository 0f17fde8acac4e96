package perf

import "time"

// MemorySample is a point-in-time snapshot of process memory counters.
// Samples are immutable once recorded.
type MemorySample struct {
	Timestamp time.Time `json:"timestamp"`
	HeapUsed  uint64    `json:"heapUsed"`  // bytes currently allocated on the heap
	HeapTotal uint64    `json:"heapTotal"` // bytes reserved by the heap from the OS
	External  uint64    `json:"external"`  // bytes held outside the heap (stacks, runtime structures)
	RSS       uint64    `json:"rss"`       // resident set size reported by the OS
}

// CPUSample holds cumulative process CPU time split by mode.
// Values are cumulative since process start, per host convention.
type CPUSample struct {
	Timestamp  time.Time     `json:"timestamp"`
	UserTime   time.Duration `json:"userTime"`
	SystemTime time.Duration `json:"systemTime"`
}

// GCEvent records a single garbage collection observed in the host process.
type GCEvent struct {
	Timestamp time.Time     `json:"timestamp"`
	Duration  time.Duration `json:"duration"`
	Kind      string        `json:"kind"`
	Flags     uint64        `json:"flags,omitempty"`
}

// OperationRecord is one timed occurrence of a named operation.
type OperationRecord struct {
	Timestamp time.Time     `json:"timestamp"`
	Duration  time.Duration `json:"duration"`
	StartTime time.Time     `json:"startTime"`
}

// BottleneckKind identifies the class of a detected bottleneck.
type BottleneckKind string

const (
	BottleneckHighGCFrequency BottleneckKind = "high_gc_frequency"
	BottleneckMemoryLeak      BottleneckKind = "memory_leak"
	BottleneckSlowOperation   BottleneckKind = "slow_operation"
)

// Severity grades a bottleneck finding.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Bottleneck is a derived diagnostic finding. It is recomputed on each
// detection pass and never persisted as state.
type Bottleneck struct {
	Kind     BottleneckKind         `json:"kind"`
	Severity Severity               `json:"severity"`
	Message  string                 `json:"message"`
	Data     map[string]interface{} `json:"data,omitempty"`
}

// ProfileType identifies the flavor of a captured profile artifact.
type ProfileType string

const (
	ProfileCPU    ProfileType = "cpu"
	ProfileHeap   ProfileType = "heap"
	ProfileMemory ProfileType = "memory"
)

// CapturedProfile is the metadata record for a persisted profiling artifact.
// An entry exists in the profile registry iff its backing file is known to
// exist, best effort: a failed delete may leave an entry pointing at an
// already-removed file until the next cleanup pass.
type CapturedProfile struct {
	ID          string        `json:"id"`
	Type        ProfileType   `json:"type"`
	StoragePath string        `json:"storagePath"`
	Timestamp   time.Time     `json:"timestamp"`
	Size        int64         `json:"size"`
	Duration    time.Duration `json:"duration,omitempty"`
}
