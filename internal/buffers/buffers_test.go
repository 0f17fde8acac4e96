package buffers

import (
	"testing"
	"time"

	"github.com/alejoacosta74/profiler/pkg/perf"
	"github.com/stretchr/testify/assert"
)

func TestStore_MemoryEviction(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name      string
		window    time.Duration
		samples   []perf.MemorySample
		wantCount int
		wantFirst time.Time
	}{
		{
			name:   "all samples within window survive",
			window: time.Hour,
			samples: []perf.MemorySample{
				{Timestamp: now.Add(-30 * time.Minute)},
				{Timestamp: now.Add(-10 * time.Minute)},
				{Timestamp: now},
			},
			wantCount: 3,
			wantFirst: now.Add(-30 * time.Minute),
		},
		{
			name:   "expired samples evicted on append",
			window: time.Hour,
			samples: []perf.MemorySample{
				{Timestamp: now.Add(-2 * time.Hour)},
				{Timestamp: now.Add(-90 * time.Minute)},
				{Timestamp: now.Add(-5 * time.Minute)},
				{Timestamp: now},
			},
			wantCount: 2,
			wantFirst: now.Add(-5 * time.Minute),
		},
		{
			name:   "everything expired except the new arrival",
			window: time.Minute,
			samples: []perf.MemorySample{
				{Timestamp: now.Add(-10 * time.Minute)},
				{Timestamp: now.Add(-5 * time.Minute)},
				{Timestamp: now},
			},
			wantCount: 1,
			wantFirst: now,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewStore(tt.window)
			store.now = func() time.Time { return now }

			for _, s := range tt.samples {
				store.AddMemorySample(s)
			}

			got := store.MemorySamples()
			assert.Len(t, got, tt.wantCount)
			if tt.wantCount > 0 {
				assert.Equal(t, tt.wantFirst, got[0].Timestamp)
			}
			// No record older than the cutoff may survive
			cutoff := now.Add(-tt.window)
			for _, s := range got {
				assert.True(t, s.Timestamp.After(cutoff))
			}
		})
	}
}

func TestStore_AppendOrderPreserved(t *testing.T) {
	now := time.Now()
	store := NewStore(time.Hour)
	store.now = func() time.Time { return now }

	for i := 0; i < 5; i++ {
		store.AddGCEvent(perf.GCEvent{
			Timestamp: now.Add(time.Duration(i-4) * time.Minute),
			Kind:      "major",
		})
	}

	events := store.GCEvents()
	assert.Len(t, events, 5)
	for i := 1; i < len(events); i++ {
		assert.True(t, events[i].Timestamp.After(events[i-1].Timestamp))
	}
}

func TestStore_RecentGCCount(t *testing.T) {
	now := time.Now()
	store := NewStore(time.Hour)
	store.now = func() time.Time { return now }

	// Three events within the last minute, two older
	store.AddGCEvent(perf.GCEvent{Timestamp: now.Add(-10 * time.Minute)})
	store.AddGCEvent(perf.GCEvent{Timestamp: now.Add(-2 * time.Minute)})
	store.AddGCEvent(perf.GCEvent{Timestamp: now.Add(-50 * time.Second)})
	store.AddGCEvent(perf.GCEvent{Timestamp: now.Add(-30 * time.Second)})
	store.AddGCEvent(perf.GCEvent{Timestamp: now.Add(-time.Second)})

	assert.Equal(t, 3, store.RecentGCCount(time.Minute))
	assert.Equal(t, 5, store.RecentGCCount(time.Hour))
}

func TestStore_LastMemorySamples(t *testing.T) {
	now := time.Now()
	store := NewStore(time.Hour)
	store.now = func() time.Time { return now }

	for i := 0; i < 15; i++ {
		store.AddMemorySample(perf.MemorySample{
			Timestamp: now.Add(time.Duration(i-14) * time.Second),
			HeapUsed:  uint64(i),
		})
	}

	last := store.LastMemorySamples(10)
	assert.Len(t, last, 10)
	assert.Equal(t, uint64(5), last[0].HeapUsed)
	assert.Equal(t, uint64(14), last[9].HeapUsed)

	// Asking for more than available returns everything
	all := store.LastMemorySamples(100)
	assert.Len(t, all, 15)
}

func TestStore_OperationRecords(t *testing.T) {
	now := time.Now()
	store := NewStore(time.Hour)
	store.now = func() time.Time { return now }

	for i := 0; i < 8; i++ {
		store.AddOperationRecord("inference", perf.OperationRecord{
			Timestamp: now.Add(time.Duration(i-7) * time.Minute),
			Duration:  time.Duration(i) * time.Millisecond,
		})
	}
	store.AddOperationRecord("tokenize", perf.OperationRecord{Timestamp: now})

	names := store.OperationNames()
	assert.ElementsMatch(t, []string{"inference", "tokenize"}, names)

	// Five-minute window keeps only the newest records
	recent := store.OperationRecordsSince("inference", now.Add(-5*time.Minute))
	assert.Len(t, recent, 5)

	last := store.LastOperationRecords("inference", 3)
	assert.Len(t, last, 3)
	assert.Equal(t, 7*time.Millisecond, last[2].Duration)

	assert.Empty(t, store.LastOperationRecords("unknown", 3))
}

func TestStore_CopiesAreIsolated(t *testing.T) {
	store := NewStore(time.Hour)
	store.AddMemorySample(perf.MemorySample{Timestamp: time.Now(), HeapUsed: 1})

	got := store.MemorySamples()
	got[0].HeapUsed = 99

	assert.Equal(t, uint64(1), store.MemorySamples()[0].HeapUsed)
}
