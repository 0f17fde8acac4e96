// Package profiler implements a runtime performance profiler embedded in a
// host process. It samples memory, CPU and garbage collection behavior into
// rolling windows, captures CPU profiles and heap snapshots on demand,
// tracks named operation durations, and derives bottleneck diagnostics from
// the collected data.
package profiler

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/alejoacosta74/profiler/internal/buffers"
	"github.com/alejoacosta74/profiler/internal/capture"
	"github.com/alejoacosta74/profiler/internal/common"
	"github.com/alejoacosta74/profiler/internal/detector"
	"github.com/alejoacosta74/profiler/internal/events"
	"github.com/alejoacosta74/profiler/internal/instrument"
	"github.com/alejoacosta74/profiler/internal/listener"
	"github.com/alejoacosta74/profiler/internal/report"
	"github.com/alejoacosta74/profiler/internal/sampler"
	"github.com/alejoacosta74/profiler/pkg/perf"
)

// Profiler owns the single active instrumentation session and orchestrates
// collection, capture, detection and reporting. Construct it with New; there
// is no implicit global instance.
type Profiler struct {
	cfg Config
	log *logrus.Logger

	bus      *events.EventBus
	store    *buffers.Store
	feed     *instrument.Feed
	listener *listener.Listener
	detector *detector.Detector
	registry *report.Registry
	reports  *report.Manager
	capture  capture.Subsystem
	source   sampler.Source

	mu            sync.Mutex
	active        bool
	capturing     bool
	sessionCtx    context.Context
	sessionCancel context.CancelFunc
	samplerDone   <-chan struct{}
	autoDone      chan struct{}

	lifeCtx    context.Context
	lifeCancel context.CancelFunc

	logger *logrus.Entry
}

// Option overrides internals during construction, mainly for testing.
type Option func(*Profiler)

// WithCaptureSubsystem replaces the pprof-backed capture subsystem.
func WithCaptureSubsystem(sub capture.Subsystem) Option {
	return func(p *Profiler) { p.capture = sub }
}

// WithCounterSource replaces the process counter source.
func WithCounterSource(src sampler.Source) Option {
	return func(p *Profiler) { p.source = src }
}

// New creates a Profiler and starts its instrumentation listener. The
// listener stays subscribed until Close, independent of session start/stop,
// so marks and measures issued before a session starts are not dropped.
func New(cfg Config, opts ...Option) (*Profiler, error) {
	log := cfg.Logger
	if log == nil {
		log = logrus.New()
	}

	p := &Profiler{
		cfg:     cfg,
		log:     log,
		bus:     events.NewEventBus(),
		store:   buffers.NewStore(cfg.RetentionWindow),
		feed:    instrument.NewFeed(log),
		capture: capture.NewPprofSubsystem(),
		logger:  log.WithField("component", "profiler"),
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.source == nil {
		src, err := sampler.NewProcessSource()
		if err != nil {
			return nil, err
		}
		p.source = src
	}

	p.detector = detector.New(p.store, cfg.Thresholds.GCFrequency)
	p.registry = report.NewRegistry()
	p.reports = report.NewManager(p.store, p.detector, p.registry, cfg.OutputDir, log)

	p.listener = listener.New(listener.Config{
		Store:                p.store,
		Bus:                  p.bus,
		GCFrequencyThreshold: cfg.Thresholds.GCFrequency,
		SessionActive:        p.Active,
		Logger:               log,
	})

	p.lifeCtx, p.lifeCancel = context.WithCancel(context.Background())
	go p.listener.Run(p.lifeCtx, p.feed.Entries())

	return p, nil
}

// Start activates the profiling session: it opens the instrumentation
// connection, begins the sampler and, when configured, the auto-profile
// cycle. Starting an already-active session is a no-op with a warning; no
// second connection is opened.
func (p *Profiler) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.active {
		p.logger.Warn("Profiling session already active")
		return nil
	}

	if err := p.feed.Connect(); err != nil {
		return &perf.SessionError{Op: "start", Err: err}
	}

	p.sessionCtx, p.sessionCancel = context.WithCancel(p.lifeCtx)

	s := sampler.New(sampler.Config{
		Source:          p.source,
		Store:           p.store,
		Bus:             p.bus,
		Interval:        p.cfg.SampleInterval,
		MemoryThreshold: p.cfg.Thresholds.MemoryUsage,
		Logger:          p.log,
	})
	go s.Run(p.sessionCtx)
	p.samplerDone = s.Done()

	if p.cfg.AutoProfile {
		p.autoDone = make(chan struct{})
		go p.autoProfileLoop(p.sessionCtx, p.autoDone)
	}

	p.active = true
	p.logger.Info("Profiling session started")
	p.bus.Publish(common.TypeStarted, struct{}{})
	return nil
}

// Stop deactivates the session: the instrumentation connection is closed
// and the sampler stops. An in-flight capture is cancelled and its partial
// artifact discarded. Collected buffers and registered profiles are kept.
// Stopping an inactive session is a no-op.
func (p *Profiler) Stop() {
	p.mu.Lock()
	if !p.active {
		p.mu.Unlock()
		return
	}
	p.active = false
	p.sessionCancel()
	samplerDone := p.samplerDone
	autoDone := p.autoDone
	p.autoDone = nil
	p.mu.Unlock()

	p.feed.Disconnect()
	<-samplerDone
	if autoDone != nil {
		<-autoDone
	}

	p.logger.Info("Profiling session stopped")
	p.bus.Publish(common.TypeStopped, struct{}{})
}

// Active reports whether a session is running.
func (p *Profiler) Active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// Close stops the session if active and shuts down the listener, the feed
// and the event bus. The profiler cannot be restarted after Close.
func (p *Profiler) Close() {
	p.Stop()
	p.lifeCancel()
	p.feed.Close()
	<-p.listener.Done()
	p.bus.Shutdown()
}

// Subscribe returns a channel of diagnostic events for a topic.
func (p *Profiler) Subscribe(topic common.EventType) <-chan interface{} {
	return p.bus.Subscribe(topic)
}

// Unsubscribe releases a subscription obtained from Subscribe.
func (p *Profiler) Unsubscribe(topic common.EventType, ch <-chan interface{}) {
	p.bus.Unsubscribe(topic, ch)
}

// Bus exposes the event bus for wiring sinks.
func (p *Profiler) Bus() events.Bus {
	return p.bus
}

// Source exposes the process counter source, shared with external
// collectors so scrapes and sampled buffers agree.
func (p *Profiler) Source() sampler.Source {
	return p.source
}

// Mark records a named point in time on the instrumentation feed.
func (p *Profiler) Mark(name string) {
	p.feed.Mark(name)
}

// Measure records the duration from a named start mark to now.
func (p *Profiler) Measure(name, startMark string) (time.Duration, error) {
	return p.feed.Measure(name, startMark)
}

// MeasureSince records the duration of an operation that began at start.
func (p *Profiler) MeasureSince(name string, start time.Time) time.Duration {
	return p.feed.MeasureSince(name, start)
}

// ObserveFunction records a single instrumented function call.
func (p *Profiler) ObserveFunction(name string, duration time.Duration) {
	p.feed.ObserveFunction(name, duration)
}

// DetectBottlenecks runs the detector against the current buffers.
func (p *Profiler) DetectBottlenecks() []perf.Bottleneck {
	return p.detector.Detect()
}

// GenerateReport assembles a point-in-time report.
func (p *Profiler) GenerateReport() *perf.Report {
	return p.reports.Generate()
}

// WriteReport assembles a report and persists it as a JSON artifact.
func (p *Profiler) WriteReport() (string, *perf.Report, error) {
	return p.reports.Write()
}

// CleanupProfiles deletes profile artifacts older than maxAge and returns
// how many were removed. Pass zero for the default 24 hour retention.
func (p *Profiler) CleanupProfiles(maxAge time.Duration) int {
	return p.reports.CleanupProfiles(maxAge)
}

// Profiles returns a copy of the registered profile mapping.
func (p *Profiler) Profiles() map[string]*perf.CapturedProfile {
	return p.registry.Snapshot()
}

// beginCapture acquires the in-flight capture guard. Concurrent captures
// against the same session risk protocol-level cross-talk, so a second
// caller is rejected instead.
func (p *Profiler) beginCapture(typ perf.ProfileType) (context.Context, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.active {
		return nil, perf.ErrNotActive
	}
	if p.capturing {
		return nil, &perf.CaptureError{Type: typ, Err: errCaptureBusy}
	}
	p.capturing = true
	return p.sessionCtx, nil
}

func (p *Profiler) endCapture() {
	p.mu.Lock()
	p.capturing = false
	p.mu.Unlock()
}
