// Package listener routes instrumentation entries into the metric buffers
// and raises threshold diagnostics on the event bus.
package listener

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/alejoacosta74/profiler/internal/buffers"
	"github.com/alejoacosta74/profiler/internal/common"
	"github.com/alejoacosta74/profiler/internal/events"
	"github.com/alejoacosta74/profiler/pkg/perf"
)

const (
	// RecentGCWindow is the trailing window used for GC frequency checks.
	RecentGCWindow = time.Minute

	// SlowOperationThreshold flags individual measures slower than this.
	SlowOperationThreshold = time.Second
)

// Config configures a Listener.
type Config struct {
	Store *buffers.Store
	Bus   events.Bus

	// GCFrequencyThreshold is the configured collections-per-minute limit.
	GCFrequencyThreshold int

	// SessionActive gates diagnostic emission: entries are always buffered,
	// but threshold events are only published while a session is active.
	SessionActive func() bool

	Logger *logrus.Logger
}

// Listener consumes the instrumentation entry stream. It stays subscribed
// for the lifetime of the profiler, independent of session start/stop, so
// marks and measures issued before a session starts are not dropped.
type Listener struct {
	store     *buffers.Store
	bus       events.Bus
	gcLimit   int
	active    func() bool
	marksMu   sync.RWMutex
	lastMarks map[string]time.Time
	logger    *logrus.Entry
	done      chan struct{}
}

// New creates a Listener.
func New(cfg Config) *Listener {
	log := cfg.Logger
	if log == nil {
		log = logrus.New()
	}
	active := cfg.SessionActive
	if active == nil {
		active = func() bool { return true }
	}
	return &Listener{
		store:     cfg.Store,
		bus:       cfg.Bus,
		gcLimit:   cfg.GCFrequencyThreshold,
		active:    active,
		lastMarks: make(map[string]time.Time),
		logger:    log.WithField("component", "listener"),
		done:      make(chan struct{}),
	}
}

// Run consumes entries until the context is cancelled or the channel closes.
func (l *Listener) Run(ctx context.Context, entries <-chan perf.Entry) {
	defer close(l.done)
	l.logger.Debug("Listener started")

	for {
		select {
		case <-ctx.Done():
			l.logger.Debug("Listener stopped")
			return
		case entry, ok := <-entries:
			if !ok {
				l.logger.Debug("Entry channel closed")
				return
			}
			l.handle(entry)
		}
	}
}

// Done is closed once the listener has drained and returned.
func (l *Listener) Done() <-chan struct{} {
	return l.done
}

func (l *Listener) handle(entry perf.Entry) {
	switch e := entry.(type) {
	case perf.GCEntry:
		l.handleGC(e)
	case perf.MeasureEntry:
		l.handleMeasure(e)
	case perf.MarkEntry:
		l.marksMu.Lock()
		l.lastMarks[e.Name] = e.Timestamp
		l.marksMu.Unlock()
	case perf.FunctionEntry:
		l.logger.WithFields(logrus.Fields{
			"function": e.Name,
			"duration": e.Duration,
		}).Trace("Function entry")
	default:
		l.logger.WithField("kind", entry.Kind()).Warn("Unknown entry kind")
	}
}

func (l *Listener) handleGC(e perf.GCEntry) {
	l.store.AddGCEvent(perf.GCEvent{
		Timestamp: e.Timestamp,
		Duration:  e.Duration,
		Kind:      e.GCKind,
		Flags:     e.Flags,
	})

	count := l.store.RecentGCCount(RecentGCWindow)
	if count > l.gcLimit && l.active() {
		l.logger.WithFields(logrus.Fields{
			"count":     count,
			"threshold": l.gcLimit,
		}).Warn("High GC frequency")
		l.bus.Publish(common.TypeHighGCFrequency, common.HighGCFrequencyEvent{
			Count:     count,
			Threshold: l.gcLimit,
		})
	}
}

func (l *Listener) handleMeasure(e perf.MeasureEntry) {
	l.store.AddOperationRecord(e.Name, perf.OperationRecord{
		Timestamp: e.Timestamp,
		Duration:  e.Duration,
		StartTime: e.StartTime,
	})

	if e.Duration > SlowOperationThreshold && l.active() {
		l.logger.WithFields(logrus.Fields{
			"operation": e.Name,
			"duration":  e.Duration,
		}).Warn("Slow operation")
		l.bus.Publish(common.TypeSlowOperation, common.SlowOperationEvent{
			Operation: e.Name,
			Duration:  e.Duration,
			Threshold: SlowOperationThreshold,
		})
	}
}

// LastMark returns the last-seen timestamp for a mark name.
func (l *Listener) LastMark(name string) (time.Time, bool) {
	l.marksMu.RLock()
	defer l.marksMu.RUnlock()
	t, ok := l.lastMarks[name]
	return t, ok
}
