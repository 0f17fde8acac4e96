package perf

import "time"

// EntryKind discriminates the variants of the instrumentation feed.
type EntryKind string

const (
	EntryGC       EntryKind = "gc"
	EntryMeasure  EntryKind = "measure"
	EntryMark     EntryKind = "mark"
	EntryFunction EntryKind = "function"
)

// Entry is a single record from the host's instrumentation feed.
// Exactly four concrete variants exist: GCEntry, MeasureEntry, MarkEntry and
// FunctionEntry.
type Entry interface {
	Kind() EntryKind
	Time() time.Time
}

// GCEntry reports a completed garbage collection.
type GCEntry struct {
	Timestamp time.Time
	Duration  time.Duration
	GCKind    string
	Flags     uint64
}

func (e GCEntry) Kind() EntryKind { return EntryGC }
func (e GCEntry) Time() time.Time { return e.Timestamp }

// MeasureEntry reports the duration of a named operation, typically the span
// between two marks.
type MeasureEntry struct {
	Timestamp time.Time
	Name      string
	Duration  time.Duration
	StartTime time.Time
}

func (e MeasureEntry) Kind() EntryKind { return EntryMeasure }
func (e MeasureEntry) Time() time.Time { return e.Timestamp }

// MarkEntry reports a named point in time set by the host.
type MarkEntry struct {
	Timestamp time.Time
	Name      string
}

func (e MarkEntry) Kind() EntryKind { return EntryMark }
func (e MarkEntry) Time() time.Time { return e.Timestamp }

// FunctionEntry reports a single instrumented function call. Diagnostic only,
// no state is kept for these.
type FunctionEntry struct {
	Timestamp time.Time
	Name      string
	Duration  time.Duration
}

func (e FunctionEntry) Kind() EntryKind { return EntryFunction }
func (e FunctionEntry) Time() time.Time { return e.Timestamp }
