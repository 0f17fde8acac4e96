package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejoacosta74/profiler/internal/buffers"
	"github.com/alejoacosta74/profiler/internal/detector"
	"github.com/alejoacosta74/profiler/pkg/perf"
)

func newManager(t *testing.T) (*Manager, *buffers.Store, *Registry) {
	t.Helper()
	store := buffers.NewStore(time.Hour)
	registry := NewRegistry()
	m := NewManager(store, detector.New(store, 10), registry, t.TempDir(), nil)
	return m, store, registry
}

func TestManager_Generate(t *testing.T) {
	m, store, registry := newManager(t)
	now := time.Now()

	for i := 0; i < 120; i++ {
		store.AddMemorySample(perf.MemorySample{
			Timestamp: now.Add(time.Duration(i-120) * time.Second),
			HeapUsed:  100 << 20,
		})
		store.AddCPUSample(perf.CPUSample{Timestamp: now.Add(time.Duration(i-120) * time.Second)})
	}
	for i := 0; i < 60; i++ {
		store.AddGCEvent(perf.GCEvent{
			Timestamp: now.Add(time.Duration(i-60) * time.Second),
			Duration:  4 * time.Millisecond,
		})
	}
	for i := 0; i < 15; i++ {
		store.AddOperationRecord("inference", perf.OperationRecord{
			Timestamp: now.Add(-time.Duration(i) * time.Second),
			Duration:  100 * time.Millisecond,
		})
	}
	registry.Register(&perf.CapturedProfile{ID: "p1", Type: perf.ProfileCPU, Timestamp: now})

	rep := m.Generate()

	// Slices are trimmed to their report sizes
	assert.Len(t, rep.Metrics.Memory, 100)
	assert.Len(t, rep.Metrics.CPU, 100)
	assert.Len(t, rep.Metrics.GC, 50)
	assert.Len(t, rep.Metrics.Operations["inference"], 10)

	assert.Equal(t, 1, rep.Summary.TotalProfiles)
	assert.Contains(t, rep.Profiles, "p1")
	assert.Equal(t, perf.TrendStable, rep.Summary.MemoryTrend)

	// GC summary covers the five-minute window
	assert.Equal(t, 60, rep.Summary.GC.Count)
	assert.Equal(t, 4*time.Millisecond, rep.Summary.GC.AvgDuration)
	assert.Equal(t, 240*time.Millisecond, rep.Summary.GC.TotalDuration)
}

func TestManager_MemoryTrend(t *testing.T) {
	tests := []struct {
		name     string
		heapUsed func(i int) uint64
		samples  int
		want     perf.MemoryTrend
	}{
		{
			name:     "growing heap is increasing",
			heapUsed: func(i int) uint64 { return uint64(100<<20 + i*(4<<20)) },
			samples:  20,
			want:     perf.TrendIncreasing,
		},
		{
			name:     "shrinking heap is decreasing",
			heapUsed: func(i int) uint64 { return uint64(200<<20 - i*(4<<20)) },
			samples:  20,
			want:     perf.TrendDecreasing,
		},
		{
			name:     "flat heap is stable",
			heapUsed: func(i int) uint64 { return 100 << 20 },
			samples:  20,
			want:     perf.TrendStable,
		},
		{
			name:     "one sample is insufficient data",
			heapUsed: func(i int) uint64 { return 100 << 20 },
			samples:  1,
			want:     perf.TrendInsufficientData,
		},
		{
			name:     "no samples is insufficient data",
			heapUsed: func(i int) uint64 { return 0 },
			samples:  0,
			want:     perf.TrendInsufficientData,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, store, _ := newManager(t)
			now := time.Now()
			for i := 0; i < tt.samples; i++ {
				store.AddMemorySample(perf.MemorySample{
					Timestamp: now.Add(time.Duration(i-tt.samples) * time.Second),
					HeapUsed:  tt.heapUsed(i),
				})
			}
			assert.Equal(t, tt.want, m.Generate().Summary.MemoryTrend)
		})
	}
}

func TestManager_WriteRoundTrip(t *testing.T) {
	m, store, registry := newManager(t)
	now := time.Now()

	store.AddMemorySample(perf.MemorySample{Timestamp: now, HeapUsed: 42 << 20})
	store.AddGCEvent(perf.GCEvent{Timestamp: now, Duration: time.Millisecond, Kind: "mark-sweep"})
	store.AddOperationRecord("tokenize", perf.OperationRecord{Timestamp: now, Duration: 10 * time.Millisecond})
	registry.Register(&perf.CapturedProfile{ID: "p1", Type: perf.ProfileHeap, Timestamp: now, Size: 1024})

	path, rep, err := m.Write()
	require.NoError(t, err)
	require.FileExists(t, path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var parsed perf.Report
	require.NoError(t, json.Unmarshal(data, &parsed))

	// Structural shape survives the round trip
	assert.Len(t, parsed.Metrics.Memory, len(rep.Metrics.Memory))
	assert.Len(t, parsed.Metrics.GC, len(rep.Metrics.GC))
	assert.Equal(t, len(rep.Bottlenecks), len(parsed.Bottlenecks))
	require.Contains(t, parsed.Profiles, "p1")
	assert.Equal(t, perf.ProfileHeap, parsed.Profiles["p1"].Type)
	assert.Equal(t, int64(1024), parsed.Profiles["p1"].Size)
	assert.Contains(t, parsed.Metrics.Operations, "tokenize")
	assert.Equal(t, rep.Summary.MemoryTrend, parsed.Summary.MemoryTrend)
}

func TestManager_CleanupProfiles(t *testing.T) {
	m, _, registry := newManager(t)
	now := time.Now()

	dir := t.TempDir()
	oldPath := filepath.Join(dir, "old.cpuprofile")
	freshPath := filepath.Join(dir, "fresh.cpuprofile")
	require.NoError(t, os.WriteFile(oldPath, []byte("old"), 0o644))
	require.NoError(t, os.WriteFile(freshPath, []byte("fresh"), 0o644))

	registry.Register(&perf.CapturedProfile{
		ID: "old", Type: perf.ProfileCPU, StoragePath: oldPath,
		Timestamp: now.Add(-48 * time.Hour),
	})
	registry.Register(&perf.CapturedProfile{
		ID: "fresh", Type: perf.ProfileCPU, StoragePath: freshPath,
		Timestamp: now,
	})

	removed := m.CleanupProfiles(24 * time.Hour)
	assert.Equal(t, 1, removed)

	assert.NoFileExists(t, oldPath)
	assert.FileExists(t, freshPath)

	_, ok := registry.Get("old")
	assert.False(t, ok)
	_, ok = registry.Get("fresh")
	assert.True(t, ok)

	// Second pass with nothing new is a no-op
	assert.Equal(t, 0, m.CleanupProfiles(24*time.Hour))
	assert.Equal(t, 1, registry.Count())
}

func TestManager_CleanupKeepsEntryOnFailedDelete(t *testing.T) {
	m, _, registry := newManager(t)
	now := time.Now()

	// Artifact file never existed, deletion fails and is logged
	registry.Register(&perf.CapturedProfile{
		ID: "ghost", Type: perf.ProfileHeap,
		StoragePath: filepath.Join(t.TempDir(), "missing.heapsnapshot"),
		Timestamp:   now.Add(-48 * time.Hour),
	})

	removed := m.CleanupProfiles(24 * time.Hour)
	assert.Equal(t, 0, removed)

	// Entry stays for the next retry
	_, ok := registry.Get("ghost")
	assert.True(t, ok)
}
