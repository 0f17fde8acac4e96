// Package report assembles point-in-time profiler reports and enforces
// age-based retention of captured profile artifacts.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/alejoacosta74/profiler/internal/buffers"
	"github.com/alejoacosta74/profiler/internal/detector"
	"github.com/alejoacosta74/profiler/pkg/perf"
)

const (
	// DefaultMaxProfileAge is how long captured artifacts are retained.
	DefaultMaxProfileAge = 24 * time.Hour

	// Trimmed slice sizes for report metrics.
	reportMemorySamples = 100
	reportCPUSamples    = 100
	reportGCEvents      = 50
	reportOpRecords     = 10

	// trendSampleCount is how many trailing samples classify the memory
	// trend.
	trendSampleCount = 20

	// trendThreshold is the per-sample growth that separates stable from
	// increasing or decreasing.
	trendThreshold = float64(1 << 20) // 1 MiB

	// gcSummaryWindow is the window of the report's GC summary.
	gcSummaryWindow = 5 * time.Minute
)

// Manager generates reports and prunes expired artifacts.
type Manager struct {
	store     *buffers.Store
	detector  *detector.Detector
	registry  *Registry
	outputDir string
	startTime time.Time
	logger    *logrus.Entry

	// now is stubbed in tests
	now func() time.Time
}

// NewManager creates a report and retention manager.
func NewManager(store *buffers.Store, det *detector.Detector, registry *Registry, outputDir string, logger *logrus.Logger) *Manager {
	if logger == nil {
		logger = logrus.New()
	}
	return &Manager{
		store:     store,
		detector:  det,
		registry:  registry,
		outputDir: outputDir,
		startTime: time.Now(),
		logger:    logger.WithField("component", "report_manager"),
		now:       time.Now,
	}
}

// Generate assembles a report from the current buffers, registry and
// detector output.
func (m *Manager) Generate() *perf.Report {
	now := m.now()
	profiles := m.registry.Snapshot()

	operations := make(map[string][]perf.OperationRecord)
	for _, name := range m.store.OperationNames() {
		operations[name] = m.store.LastOperationRecords(name, reportOpRecords)
	}

	return &perf.Report{
		Timestamp: now,
		Uptime:    now.Sub(m.startTime),
		Profiles:  profiles,
		Metrics: perf.ReportMetrics{
			Memory:     m.store.LastMemorySamples(reportMemorySamples),
			CPU:        m.store.LastCPUSamples(reportCPUSamples),
			GC:         m.store.LastGCEvents(reportGCEvents),
			Operations: operations,
		},
		Bottlenecks: m.detector.Detect(),
		Summary: perf.ReportSummary{
			TotalProfiles: len(profiles),
			MemoryTrend:   m.memoryTrend(),
			GC:            m.gcSummary(now),
		},
	}
}

// Write generates a report and persists it as a JSON artifact in the output
// directory.
func (m *Manager) Write() (string, *perf.Report, error) {
	rep := m.Generate()

	if err := os.MkdirAll(m.outputDir, 0o755); err != nil {
		return "", nil, &perf.PersistenceError{Path: m.outputDir, Err: err}
	}

	path := filepath.Join(m.outputDir, fmt.Sprintf("report-%d.json", rep.Timestamp.UnixMilli()))
	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return "", nil, &perf.PersistenceError{Path: path, Err: err}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", nil, &perf.PersistenceError{Path: path, Err: err}
	}

	m.logger.WithField("path", path).Info("Report written")
	return path, rep, nil
}

// CleanupProfiles deletes artifacts older than maxAge and removes them from
// the registry. A failed delete is logged and the entry kept, so the next
// pass retries it; a missing file counts as a failed delete. Returns the
// number of removed profiles.
func (m *Manager) CleanupProfiles(maxAge time.Duration) int {
	if maxAge <= 0 {
		maxAge = DefaultMaxProfileAge
	}
	cutoff := m.now().Add(-maxAge)

	removed := 0
	for id, p := range m.registry.Snapshot() {
		if !p.Timestamp.Before(cutoff) {
			continue
		}
		if err := os.Remove(p.StoragePath); err != nil {
			m.logger.WithError(err).WithFields(logrus.Fields{
				"profile": id,
				"path":    p.StoragePath,
			}).Warn("Failed to delete expired profile artifact")
			continue
		}
		m.registry.Remove(id)
		removed++
		m.logger.WithField("profile", id).Debug("Expired profile artifact deleted")
	}
	return removed
}

// memoryTrend classifies heap growth over the last trendSampleCount samples.
func (m *Manager) memoryTrend() perf.MemoryTrend {
	samples := m.store.LastMemorySamples(trendSampleCount)
	if len(samples) < 2 {
		return perf.TrendInsufficientData
	}

	first := float64(samples[0].HeapUsed)
	last := float64(samples[len(samples)-1].HeapUsed)
	growth := (last - first) / float64(len(samples))

	switch {
	case growth > trendThreshold:
		return perf.TrendIncreasing
	case growth < -trendThreshold:
		return perf.TrendDecreasing
	default:
		return perf.TrendStable
	}
}

// gcSummary aggregates GC events over the last five minutes.
func (m *Manager) gcSummary(now time.Time) perf.GCSummary {
	events := m.store.GCEventsSince(now.Add(-gcSummaryWindow))

	summary := perf.GCSummary{Count: len(events)}
	for _, e := range events {
		summary.TotalDuration += e.Duration
	}
	if len(events) > 0 {
		summary.AvgDuration = summary.TotalDuration / time.Duration(len(events))
	}
	return summary
}
