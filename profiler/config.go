package profiler

import (
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Thresholds holds the performance limits that trigger diagnostics.
type Thresholds struct {
	// CPUUsage is the percent of a core above which CPU usage is considered
	// high. Recorded in reports; no diagnostic is emitted for it.
	CPUUsage float64

	// MemoryUsage is the heap size in bytes above which the sampler emits
	// high-memory-usage.
	MemoryUsage uint64

	// GCFrequency is the collections-per-minute count above which the
	// listener emits high-gc-frequency.
	GCFrequency int
}

// Config configures a Profiler instance. The zero value is not usable; start
// from DefaultConfig.
type Config struct {
	// OutputDir is where capture artifacts and reports are written.
	OutputDir string

	// SampleInterval is the period of the system-metric sampler.
	SampleInterval time.Duration

	// RetentionWindow bounds the metric buffers.
	RetentionWindow time.Duration

	// AutoProfile enables the periodic capture cycle: one CPU profile
	// followed by one heap snapshot every HeapSnapshotInterval.
	AutoProfile bool

	// ProfileDuration is the length of each automatic CPU capture.
	ProfileDuration time.Duration

	// HeapSnapshotInterval is the period between auto-capture cycles.
	HeapSnapshotInterval time.Duration

	Thresholds Thresholds

	// Logger receives all profiler logging. A default logger is created
	// when nil.
	Logger *logrus.Logger
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		OutputDir:            "./profiles",
		SampleInterval:       5 * time.Second,
		RetentionWindow:      time.Hour,
		AutoProfile:          false,
		ProfileDuration:      30 * time.Second,
		HeapSnapshotInterval: time.Minute,
		Thresholds: Thresholds{
			CPUUsage:    80,
			MemoryUsage: 500 << 20, // 500 MiB
			GCFrequency: 10,
		},
	}
}

// ConfigFromViper projects the recognized viper keys onto a Config,
// falling back to defaults for unset keys.
func ConfigFromViper(v *viper.Viper) Config {
	cfg := DefaultConfig()

	if v.IsSet("outputDir") {
		cfg.OutputDir = v.GetString("outputDir")
	}
	if v.IsSet("sampleInterval") {
		cfg.SampleInterval = v.GetDuration("sampleInterval")
	}
	if v.IsSet("autoProfile") {
		cfg.AutoProfile = v.GetBool("autoProfile")
	}
	if v.IsSet("profileDuration") {
		cfg.ProfileDuration = v.GetDuration("profileDuration")
	}
	if v.IsSet("heapSnapshotInterval") {
		cfg.HeapSnapshotInterval = v.GetDuration("heapSnapshotInterval")
	}
	if v.IsSet("performanceThresholds.cpuUsage") {
		cfg.Thresholds.CPUUsage = v.GetFloat64("performanceThresholds.cpuUsage")
	}
	if v.IsSet("performanceThresholds.memoryUsage") {
		cfg.Thresholds.MemoryUsage = v.GetUint64("performanceThresholds.memoryUsage")
	}
	if v.IsSet("performanceThresholds.gcFrequency") {
		cfg.Thresholds.GCFrequency = v.GetInt("performanceThresholds.gcFrequency")
	}

	return cfg
}
