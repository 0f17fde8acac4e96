package detector

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejoacosta74/profiler/internal/buffers"
	"github.com/alejoacosta74/profiler/pkg/perf"
)

func newStore() *buffers.Store {
	return buffers.NewStore(time.Hour)
}

func TestDetector_GCFrequency(t *testing.T) {
	now := time.Now()
	threshold := 10

	tests := []struct {
		name       string
		eventCount int
		expectFlag bool
	}{
		{name: "exactly threshold flags nothing", eventCount: 10, expectFlag: false},
		{name: "threshold plus one flags once", eventCount: 11, expectFlag: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newStore()
			for i := 0; i < tt.eventCount; i++ {
				store.AddGCEvent(perf.GCEvent{
					Timestamp: now.Add(-time.Duration(i) * time.Second),
					Duration:  2 * time.Millisecond,
				})
			}

			d := New(store, threshold)
			d.now = func() time.Time { return now }

			found := d.Detect()
			if tt.expectFlag {
				require.Len(t, found, 1)
				assert.Equal(t, perf.BottleneckHighGCFrequency, found[0].Kind)
				assert.Equal(t, perf.SeverityWarning, found[0].Severity)
				assert.Equal(t, tt.eventCount, found[0].Data["count"])
			} else {
				assert.Empty(t, found)
			}
		})
	}
}

func TestDetector_GCFrequencyIgnoresOldEvents(t *testing.T) {
	now := time.Now()
	store := newStore()

	// Plenty of events, but all outside the 60s window
	for i := 0; i < 50; i++ {
		store.AddGCEvent(perf.GCEvent{Timestamp: now.Add(-2 * time.Minute)})
	}

	d := New(store, 10)
	d.now = func() time.Time { return now }
	assert.Empty(t, d.Detect())
}

func TestDetector_MemoryGrowth(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name       string
		heapUsed   func(i int) uint64
		samples    int
		expectFlag bool
	}{
		{
			name:       "2 MiB growth per sample flags memory_leak",
			heapUsed:   func(i int) uint64 { return uint64(100<<20 + i*(2<<20)) },
			samples:    10,
			expectFlag: true,
		},
		{
			name:       "constant heap flags nothing",
			heapUsed:   func(i int) uint64 { return 100 << 20 },
			samples:    10,
			expectFlag: false,
		},
		{
			name:       "single sample yields no verdict",
			heapUsed:   func(i int) uint64 { return uint64(100<<20 + i*(10<<20)) },
			samples:    1,
			expectFlag: false,
		},
		{
			name:       "shrinking heap flags nothing",
			heapUsed:   func(i int) uint64 { return uint64(200<<20 - i*(2<<20)) },
			samples:    10,
			expectFlag: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newStore()
			for i := 0; i < tt.samples; i++ {
				store.AddMemorySample(perf.MemorySample{
					Timestamp: now.Add(time.Duration(i-tt.samples) * time.Second),
					HeapUsed:  tt.heapUsed(i),
				})
			}

			d := New(store, 1000)
			d.now = func() time.Time { return now }

			found := d.Detect()
			if tt.expectFlag {
				require.Len(t, found, 1)
				assert.Equal(t, perf.BottleneckMemoryLeak, found[0].Kind)
				assert.Equal(t, perf.SeverityCritical, found[0].Severity)
				// 10 samples growing 2 MiB each: (last-first)/count = 18/10 MiB... the
				// rate uses first-to-last delta over the sample count
				assert.InDelta(t, float64(18<<20)/10, found[0].Data["growthRate"], 1)
			} else {
				assert.Empty(t, found)
			}
		})
	}
}

func TestDetector_SlowOperations(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name        string
		records     int
		avgDuration time.Duration
		expectFlag  bool
	}{
		{name: "six slow records flag slow_operation", records: 6, avgDuration: 1500 * time.Millisecond, expectFlag: true},
		{name: "four slow records are too few", records: 4, avgDuration: 5 * time.Second, expectFlag: false},
		{name: "six fast records flag nothing", records: 6, avgDuration: 200 * time.Millisecond, expectFlag: false},
		{name: "exactly five records are too few", records: 5, avgDuration: 5 * time.Second, expectFlag: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newStore()
			for i := 0; i < tt.records; i++ {
				store.AddOperationRecord("inference", perf.OperationRecord{
					Timestamp: now.Add(-time.Duration(i) * time.Second),
					Duration:  tt.avgDuration,
				})
			}

			d := New(store, 1000)
			d.now = func() time.Time { return now }

			found := d.Detect()
			if tt.expectFlag {
				require.Len(t, found, 1)
				assert.Equal(t, perf.BottleneckSlowOperation, found[0].Kind)
				assert.Equal(t, "inference", found[0].Data["operation"])
				assert.Equal(t, tt.records, found[0].Data["count"])
				assert.Equal(t, tt.avgDuration, found[0].Data["avgDuration"])
			} else {
				assert.Empty(t, found)
			}
		})
	}
}

func TestDetector_SlowOperationsIgnoreOldRecords(t *testing.T) {
	now := time.Now()
	store := newStore()

	// Six slow records, but outside the five-minute window
	for i := 0; i < 6; i++ {
		store.AddOperationRecord("inference", perf.OperationRecord{
			Timestamp: now.Add(-10 * time.Minute),
			Duration:  5 * time.Second,
		})
	}

	d := New(store, 1000)
	d.now = func() time.Time { return now }
	assert.Empty(t, d.Detect())
}

func TestDetector_SlowOperationsStableOrder(t *testing.T) {
	now := time.Now()
	store := newStore()

	// Insert out of alphabetical order so map iteration alone could not
	// produce the expected sequence
	for _, name := range []string{"gamma", "alpha", "beta"} {
		for i := 0; i < 6; i++ {
			store.AddOperationRecord(name, perf.OperationRecord{
				Timestamp: now.Add(-time.Duration(i) * time.Second),
				Duration:  2 * time.Second,
			})
		}
	}

	d := New(store, 1000)
	d.now = func() time.Time { return now }

	found := d.Detect()
	require.Len(t, found, 3)
	for i, want := range []string{"alpha", "beta", "gamma"} {
		assert.Equal(t, perf.BottleneckSlowOperation, found[i].Kind)
		assert.Equal(t, want, found[i].Data["operation"])
	}
}

func TestDetector_CheckOrder(t *testing.T) {
	now := time.Now()
	store := newStore()

	// Trip all three checks at once
	for i := 0; i < 15; i++ {
		store.AddGCEvent(perf.GCEvent{Timestamp: now.Add(-time.Duration(i) * time.Second)})
	}
	for i := 0; i < 10; i++ {
		store.AddMemorySample(perf.MemorySample{
			Timestamp: now.Add(time.Duration(i-10) * time.Second),
			HeapUsed:  uint64(100<<20 + i*(2<<20)),
		})
	}
	for i := 0; i < 6; i++ {
		store.AddOperationRecord("inference", perf.OperationRecord{
			Timestamp: now.Add(-time.Duration(i) * time.Second),
			Duration:  2 * time.Second,
		})
	}

	d := New(store, 10)
	d.now = func() time.Time { return now }

	found := d.Detect()
	require.Len(t, found, 3)
	assert.Equal(t, perf.BottleneckHighGCFrequency, found[0].Kind)
	assert.Equal(t, perf.BottleneckMemoryLeak, found[1].Kind)
	assert.Equal(t, perf.BottleneckSlowOperation, found[2].Kind)
}
