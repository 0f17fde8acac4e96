// Package sampler implements the periodic system-metric sampler. While a
// session is active it snapshots memory and CPU counters into the metric
// buffers on a fixed interval and raises high-memory-usage diagnostics when
// the heap exceeds the configured threshold.
package sampler

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/alejoacosta74/profiler/internal/buffers"
	"github.com/alejoacosta74/profiler/internal/common"
	"github.com/alejoacosta74/profiler/internal/events"
)

// DefaultInterval is the default sampling period.
const DefaultInterval = 5 * time.Second

// Config configures a Sampler.
type Config struct {
	Source   Source
	Store    *buffers.Store
	Bus      events.Bus
	Interval time.Duration

	// MemoryThreshold is the heap usage in bytes above which a
	// high-memory-usage diagnostic is published.
	MemoryThreshold uint64

	Logger *logrus.Logger
}

// Sampler appends periodic counter snapshots to the metric buffers. Sampling
// never blocks on I/O; persistence only happens when a report or profile
// artifact is explicitly written elsewhere.
type Sampler struct {
	source    Source
	store     *buffers.Store
	bus       events.Bus
	interval  time.Duration
	threshold uint64
	logger    *logrus.Entry
	done      chan struct{}
}

// New creates a Sampler.
func New(cfg Config) *Sampler {
	log := cfg.Logger
	if log == nil {
		log = logrus.New()
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Sampler{
		source:    cfg.Source,
		store:     cfg.Store,
		bus:       cfg.Bus,
		interval:  interval,
		threshold: cfg.MemoryThreshold,
		logger:    log.WithField("component", "sampler"),
		done:      make(chan struct{}),
	}
}

// Run samples on the configured interval until the context is cancelled.
// It takes one sample immediately on start.
func (s *Sampler) Run(ctx context.Context) {
	defer close(s.done)
	s.logger.WithField("interval", s.interval).Debug("Sampler started")

	s.sample()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("Sampler stopped")
			return
		case <-ticker.C:
			s.sample()
		}
	}
}

// Done is closed once the sampler has returned.
func (s *Sampler) Done() <-chan struct{} {
	return s.done
}

func (s *Sampler) sample() {
	counters, err := s.source.Read()
	if err != nil {
		// A single failed reading is logged and skipped, the next tick
		// proceeds normally.
		s.logger.WithError(err).Warn("Failed to read counters")
		return
	}

	s.store.AddMemorySample(counters.Memory)
	s.store.AddCPUSample(counters.CPU)

	if s.threshold > 0 && counters.Memory.HeapUsed > s.threshold {
		s.logger.WithFields(logrus.Fields{
			"current":   counters.Memory.HeapUsed,
			"threshold": s.threshold,
		}).Warn("High memory usage")
		s.bus.Publish(common.TypeHighMemoryUsage, common.HighMemoryUsageEvent{
			Current:   counters.Memory.HeapUsed,
			Threshold: s.threshold,
		})
	}
}
