// Package detector derives bottleneck findings from the current metric
// buffers. Detection is a pure read: nothing is mutated and findings are
// recomputed from scratch on every pass.
package detector

import (
	"fmt"
	"time"

	"github.com/alejoacosta74/profiler/internal/buffers"
	"github.com/alejoacosta74/profiler/pkg/perf"
)

const (
	// gcWindow is the trailing window for the GC frequency check.
	gcWindow = time.Minute

	// leakSampleCount is how many trailing memory samples feed the growth
	// rate computation.
	leakSampleCount = 10

	// leakGrowthThreshold is the per-sample heap growth above which a
	// memory leak is flagged.
	leakGrowthThreshold = float64(1 << 20) // 1 MiB

	// slowOpWindow is the trailing window for the slow-operation check.
	slowOpWindow = 5 * time.Minute

	// slowOpMinRecords is the minimum number of recent records before an
	// operation is judged at all.
	slowOpMinRecords = 5

	// slowOpAvgThreshold is the average duration above which an operation
	// is flagged.
	slowOpAvgThreshold = time.Second
)

// Detector evaluates bottleneck checks against a metric store.
type Detector struct {
	store *buffers.Store

	// GCFrequencyThreshold is the configured collections-per-minute limit.
	gcThreshold int

	// now is stubbed in tests
	now func() time.Time
}

// New creates a Detector reading from the given store.
func New(store *buffers.Store, gcFrequencyThreshold int) *Detector {
	return &Detector{
		store:       store,
		gcThreshold: gcFrequencyThreshold,
		now:         time.Now,
	}
}

// Detect runs the three checks and returns the flagged findings in check
// order: GC frequency, memory growth, slow operations. An empty result is a
// valid, non-error outcome.
func (d *Detector) Detect() []perf.Bottleneck {
	var found []perf.Bottleneck

	if b := d.checkGCFrequency(); b != nil {
		found = append(found, *b)
	}
	if b := d.checkMemoryGrowth(); b != nil {
		found = append(found, *b)
	}
	found = append(found, d.checkSlowOperations()...)

	return found
}

func (d *Detector) checkGCFrequency() *perf.Bottleneck {
	count := len(d.store.GCEventsSince(d.now().Add(-gcWindow)))
	if count <= d.gcThreshold {
		return nil
	}
	return &perf.Bottleneck{
		Kind:     perf.BottleneckHighGCFrequency,
		Severity: perf.SeverityWarning,
		Message:  fmt.Sprintf("%d garbage collections in the last minute (threshold %d)", count, d.gcThreshold),
		Data: map[string]interface{}{
			"count":     count,
			"threshold": d.gcThreshold,
		},
	}
}

func (d *Detector) checkMemoryGrowth() *perf.Bottleneck {
	samples := d.store.LastMemorySamples(leakSampleCount)
	if len(samples) < 2 {
		return nil // no verdict from fewer than two samples
	}

	first := samples[0].HeapUsed
	last := samples[len(samples)-1].HeapUsed
	growth := (float64(last) - float64(first)) / float64(len(samples))
	if growth <= leakGrowthThreshold {
		return nil
	}

	return &perf.Bottleneck{
		Kind:     perf.BottleneckMemoryLeak,
		Severity: perf.SeverityCritical,
		Message:  fmt.Sprintf("heap growing %.2f MiB per sample over the last %d samples", growth/float64(1<<20), len(samples)),
		Data: map[string]interface{}{
			"growthRate":  growth,
			"sampleCount": len(samples),
			"firstHeap":   first,
			"lastHeap":    last,
		},
	}
}

func (d *Detector) checkSlowOperations() []perf.Bottleneck {
	cutoff := d.now().Add(-slowOpWindow)

	var found []perf.Bottleneck
	for _, name := range d.store.OperationNames() {
		records := d.store.OperationRecordsSince(name, cutoff)
		if len(records) <= slowOpMinRecords {
			continue
		}

		var total time.Duration
		for _, r := range records {
			total += r.Duration
		}
		avg := total / time.Duration(len(records))
		if avg <= slowOpAvgThreshold {
			continue
		}

		found = append(found, perf.Bottleneck{
			Kind:     perf.BottleneckSlowOperation,
			Severity: perf.SeverityWarning,
			Message:  fmt.Sprintf("operation %q averaged %s over %d recent calls", name, avg, len(records)),
			Data: map[string]interface{}{
				"operation":   name,
				"avgDuration": avg,
				"count":       len(records),
			},
		})
	}
	return found
}
