package perf

import "time"

// MemoryTrend classifies heap growth over the recent sample window.
type MemoryTrend string

const (
	TrendIncreasing       MemoryTrend = "increasing"
	TrendDecreasing       MemoryTrend = "decreasing"
	TrendStable           MemoryTrend = "stable"
	TrendInsufficientData MemoryTrend = "insufficient_data"
)

// GCSummary aggregates garbage collection activity over the last five minutes.
type GCSummary struct {
	Count         int           `json:"count"`
	AvgDuration   time.Duration `json:"avgDuration"`
	TotalDuration time.Duration `json:"totalDuration"`
}

// ReportSummary holds the derived top-level figures of a report.
type ReportSummary struct {
	TotalProfiles int         `json:"totalProfiles"`
	MemoryTrend   MemoryTrend `json:"memoryTrend"`
	GC            GCSummary   `json:"gcSummary"`
}

// ReportMetrics carries the trimmed metric slices included in a report:
// the last 100 memory and CPU samples, the last 50 GC events and the last 10
// records per operation.
type ReportMetrics struct {
	Memory     []MemorySample               `json:"memory"`
	CPU        []CPUSample                  `json:"cpu"`
	GC         []GCEvent                    `json:"gc"`
	Operations map[string][]OperationRecord `json:"operations"`
}

// Report is a point-in-time snapshot of the profiler's collected state.
type Report struct {
	Timestamp   time.Time                   `json:"timestamp"`
	Uptime      time.Duration               `json:"uptime"`
	Profiles    map[string]*CapturedProfile `json:"profiles"`
	Metrics     ReportMetrics               `json:"metrics"`
	Bottlenecks []Bottleneck                `json:"bottlenecks"`
	Summary     ReportSummary               `json:"summary"`
}

// MemoryFieldSummary holds min/max/avg for one memory counter across a timed
// memory profile.
type MemoryFieldSummary struct {
	Min uint64 `json:"min"`
	Max uint64 `json:"max"`
	Avg uint64 `json:"avg"`
}

// MemoryProfileSummary is the derived summary written with a memory profile
// artifact. GrowthRate is bytes of heap growth per sample.
type MemoryProfileSummary struct {
	HeapUsed   MemoryFieldSummary `json:"heapUsed"`
	HeapTotal  MemoryFieldSummary `json:"heapTotal"`
	External   MemoryFieldSummary `json:"external"`
	RSS        MemoryFieldSummary `json:"rss"`
	GrowthRate float64            `json:"growthRate"`
}

// MemoryProfile is the JSON artifact produced by a timed memory profile.
type MemoryProfile struct {
	ProfileID string               `json:"profileId"`
	Type      ProfileType          `json:"type"`
	Duration  time.Duration        `json:"duration"`
	Samples   []MemorySample       `json:"samples"`
	Summary   MemoryProfileSummary `json:"summary"`
}
