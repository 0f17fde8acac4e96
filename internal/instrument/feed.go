// Package instrument implements the host-facing instrumentation feed: the
// Mark/Measure API the host process calls, and a watcher that turns runtime
// GC activity into entries. Entries stream over a single channel consumed by
// the listener.
package instrument

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/alejoacosta74/profiler/pkg/perf"
)

const (
	// entryBufferSize bounds the entry channel; producers never block, an
	// entry is dropped when the consumer falls this far behind.
	entryBufferSize = 256

	// gcPollInterval is how often the watcher inspects runtime GC counters.
	gcPollInterval = 500 * time.Millisecond
)

// Feed produces instrumentation entries. Mark, Measure and ObserveFunction
// may be called by the host at any time, before or after a session starts;
// the GC watcher only runs while the feed is connected.
type Feed struct {
	entries chan perf.Entry

	mu        sync.Mutex
	marks     map[string]time.Time
	connected bool
	closed    bool
	stopCh    chan struct{}
	watcherWg sync.WaitGroup

	lastNumGC uint32

	logger *logrus.Entry
}

// NewFeed creates an instrumentation feed.
func NewFeed(logger *logrus.Logger) *Feed {
	if logger == nil {
		logger = logrus.New()
	}
	return &Feed{
		entries: make(chan perf.Entry, entryBufferSize),
		marks:   make(map[string]time.Time),
		logger:  logger.WithField("component", "instrument_feed"),
	}
}

// Entries returns the entry stream. The channel is owned by the feed and is
// never closed while the feed is alive; consumers select on it for the
// lifetime of the profiler.
func (f *Feed) Entries() <-chan perf.Entry {
	return f.entries
}

// Connect opens the instrumentation connection: it primes the GC counters
// and starts the GC watcher. Connecting an already-connected or closed feed
// is an error.
func (f *Feed) Connect() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return fmt.Errorf("instrumentation feed is closed")
	}
	if f.connected {
		return fmt.Errorf("instrumentation feed already connected")
	}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	f.lastNumGC = m.NumGC

	f.stopCh = make(chan struct{})
	f.connected = true

	f.watcherWg.Add(1)
	go f.watchGC(f.stopCh)

	f.logger.Debug("Instrumentation feed connected")
	return nil
}

// Disconnect stops the GC watcher. Mark/Measure keep working so that host
// activity between sessions is not silently dropped.
func (f *Feed) Disconnect() {
	f.mu.Lock()
	if !f.connected {
		f.mu.Unlock()
		return
	}
	f.connected = false
	close(f.stopCh)
	f.mu.Unlock()

	f.watcherWg.Wait()
	f.logger.Debug("Instrumentation feed disconnected")
}

// Connected reports whether the GC watcher is running.
func (f *Feed) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

// Mark records a named point in time and emits a MarkEntry.
func (f *Feed) Mark(name string) {
	now := time.Now()
	f.mu.Lock()
	f.marks[name] = now
	f.mu.Unlock()

	f.emit(perf.MarkEntry{Timestamp: now, Name: name})
}

// Measure emits a MeasureEntry spanning from the named start mark to now.
// The mark must have been set with Mark beforehand.
func (f *Feed) Measure(name, startMark string) (time.Duration, error) {
	now := time.Now()

	f.mu.Lock()
	start, ok := f.marks[startMark]
	f.mu.Unlock()
	if !ok {
		return 0, fmt.Errorf("unknown start mark %q", startMark)
	}

	d := now.Sub(start)
	f.emit(perf.MeasureEntry{
		Timestamp: now,
		Name:      name,
		Duration:  d,
		StartTime: start,
	})
	return d, nil
}

// MeasureSince emits a MeasureEntry for an operation that began at start.
// Useful when the host tracks its own start times instead of marks.
func (f *Feed) MeasureSince(name string, start time.Time) time.Duration {
	now := time.Now()
	d := now.Sub(start)
	f.emit(perf.MeasureEntry{
		Timestamp: now,
		Name:      name,
		Duration:  d,
		StartTime: start,
	})
	return d
}

// ObserveFunction emits a FunctionEntry for a single instrumented call.
func (f *Feed) ObserveFunction(name string, duration time.Duration) {
	f.emit(perf.FunctionEntry{
		Timestamp: time.Now(),
		Name:      name,
		Duration:  duration,
	})
}

// Close shuts the feed down for good. Subsequent Connect calls fail.
func (f *Feed) Close() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	connected := f.connected
	if connected {
		f.connected = false
		close(f.stopCh)
	}
	f.mu.Unlock()

	if connected {
		f.watcherWg.Wait()
	}
}

// watchGC polls runtime GC counters and synthesizes a GCEntry for every
// collection completed since the previous poll. Pause durations come from
// the runtime's PauseNs/PauseEnd rings.
func (f *Feed) watchGC(stopCh chan struct{}) {
	defer f.watcherWg.Done()

	ticker := time.NewTicker(gcPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			var m runtime.MemStats
			runtime.ReadMemStats(&m)

			last := f.lastNumGC
			if m.NumGC == last {
				continue
			}

			// The rings hold the 256 most recent collections
			newGCs := m.NumGC - last
			if newGCs > 256 {
				newGCs = 256
			}
			// collection number j lands in slot (j+255)%256, so the
			// loop index j-1 reduces to j-1 mod 256
			for i := m.NumGC - newGCs; i < m.NumGC; i++ {
				idx := i % 256
				f.emit(perf.GCEntry{
					Timestamp: time.Unix(0, int64(m.PauseEnd[idx])),
					Duration:  time.Duration(m.PauseNs[idx]),
					GCKind:    "mark-sweep",
				})
			}
			f.lastNumGC = m.NumGC
		}
	}
}

// emit pushes an entry without blocking. Entries are dropped when the
// consumer is saturated.
func (f *Feed) emit(e perf.Entry) {
	select {
	case f.entries <- e:
	default:
		f.logger.WithField("kind", e.Kind()).Warn("Entry channel full, dropping entry")
	}
}
