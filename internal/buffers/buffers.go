// Package buffers implements the bounded, time-windowed metric stores the
// profiler collects into: memory samples, CPU samples, GC events and
// per-operation duration records.
package buffers

import (
	"sort"
	"sync"
	"time"

	"github.com/alejoacosta74/profiler/pkg/perf"
)

// DefaultWindow is the rolling retention window for metric samples.
const DefaultWindow = time.Hour

// Store holds the profiler's metric buffers. Eviction is lazy: appending a
// record drops everything older than the retention window. Within a buffer,
// append order equals arrival order; windowed filters sort nothing, they only
// cut on timestamps.
type Store struct {
	mu sync.RWMutex

	window     time.Duration
	memory     []perf.MemorySample
	cpu        []perf.CPUSample
	gc         []perf.GCEvent
	operations map[string][]perf.OperationRecord

	// now is stubbed in tests
	now func() time.Time
}

// NewStore creates a Store with the given retention window. A zero window
// falls back to DefaultWindow.
func NewStore(window time.Duration) *Store {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Store{
		window:     window,
		operations: make(map[string][]perf.OperationRecord),
		now:        time.Now,
	}
}

// AddMemorySample appends a memory sample and evicts expired ones.
func (s *Store) AddMemorySample(sample perf.MemorySample) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.memory = append(s.memory, sample)
	cutoff := s.now().Add(-s.window)
	s.memory = evictMemory(s.memory, cutoff)
}

// AddCPUSample appends a CPU sample and evicts expired ones.
func (s *Store) AddCPUSample(sample perf.CPUSample) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cpu = append(s.cpu, sample)
	cutoff := s.now().Add(-s.window)
	s.cpu = evictCPU(s.cpu, cutoff)
}

// AddGCEvent appends a GC event and evicts expired ones.
func (s *Store) AddGCEvent(event perf.GCEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gc = append(s.gc, event)
	cutoff := s.now().Add(-s.window)
	s.gc = evictGC(s.gc, cutoff)
}

// AddOperationRecord appends a duration record under the given operation
// name. Records are kept in insertion order, which is chronological.
func (s *Store) AddOperationRecord(name string, record perf.OperationRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.operations[name] = append(s.operations[name], record)
}

// MemorySamples returns a copy of the buffered memory samples.
func (s *Store) MemorySamples() []perf.MemorySample {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]perf.MemorySample, len(s.memory))
	copy(out, s.memory)
	return out
}

// LastMemorySamples returns a copy of the most recent n memory samples.
func (s *Store) LastMemorySamples(n int) []perf.MemorySample {
	s.mu.RLock()
	defer s.mu.RUnlock()
	start := len(s.memory) - n
	if start < 0 {
		start = 0
	}
	out := make([]perf.MemorySample, len(s.memory)-start)
	copy(out, s.memory[start:])
	return out
}

// CPUSamples returns a copy of the buffered CPU samples.
func (s *Store) CPUSamples() []perf.CPUSample {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]perf.CPUSample, len(s.cpu))
	copy(out, s.cpu)
	return out
}

// LastCPUSamples returns a copy of the most recent n CPU samples.
func (s *Store) LastCPUSamples(n int) []perf.CPUSample {
	s.mu.RLock()
	defer s.mu.RUnlock()
	start := len(s.cpu) - n
	if start < 0 {
		start = 0
	}
	out := make([]perf.CPUSample, len(s.cpu)-start)
	copy(out, s.cpu[start:])
	return out
}

// GCEvents returns a copy of the buffered GC events.
func (s *Store) GCEvents() []perf.GCEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]perf.GCEvent, len(s.gc))
	copy(out, s.gc)
	return out
}

// GCEventsSince returns the GC events with a timestamp after the cutoff.
// This is the derived "recent" view; nothing is stored separately for it.
func (s *Store) GCEventsSince(cutoff time.Time) []perf.GCEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []perf.GCEvent
	for _, e := range s.gc {
		if e.Timestamp.After(cutoff) {
			out = append(out, e)
		}
	}
	return out
}

// RecentGCCount counts GC events within the trailing window.
func (s *Store) RecentGCCount(window time.Duration) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cutoff := s.now().Add(-window)
	count := 0
	for _, e := range s.gc {
		if e.Timestamp.After(cutoff) {
			count++
		}
	}
	return count
}

// LastGCEvents returns a copy of the most recent n GC events.
func (s *Store) LastGCEvents(n int) []perf.GCEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	start := len(s.gc) - n
	if start < 0 {
		start = 0
	}
	out := make([]perf.GCEvent, len(s.gc)-start)
	copy(out, s.gc[start:])
	return out
}

// OperationNames returns the distinct operation names with recorded data,
// sorted so downstream findings and reports come out in a stable order.
func (s *Store) OperationNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.operations))
	for name := range s.operations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// OperationRecordsSince returns the records for an operation with a
// timestamp after the cutoff.
func (s *Store) OperationRecordsSince(name string, cutoff time.Time) []perf.OperationRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []perf.OperationRecord
	for _, r := range s.operations[name] {
		if r.Timestamp.After(cutoff) {
			out = append(out, r)
		}
	}
	return out
}

// LastOperationRecords returns a copy of the most recent n records for an
// operation.
func (s *Store) LastOperationRecords(name string, n int) []perf.OperationRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	records := s.operations[name]
	start := len(records) - n
	if start < 0 {
		start = 0
	}
	out := make([]perf.OperationRecord, len(records)-start)
	copy(out, records[start:])
	return out
}

func evictMemory(samples []perf.MemorySample, cutoff time.Time) []perf.MemorySample {
	i := 0
	for i < len(samples) && !samples[i].Timestamp.After(cutoff) {
		i++
	}
	return samples[i:]
}

func evictCPU(samples []perf.CPUSample, cutoff time.Time) []perf.CPUSample {
	i := 0
	for i < len(samples) && !samples[i].Timestamp.After(cutoff) {
		i++
	}
	return samples[i:]
}

func evictGC(events []perf.GCEvent, cutoff time.Time) []perf.GCEvent {
	i := 0
	for i < len(events) && !events[i].Timestamp.After(cutoff) {
		i++
	}
	return events[i:]
}
