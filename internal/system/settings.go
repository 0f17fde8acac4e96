// Package system applies process-wide runtime tuning before profiling
// starts, so that the observed GC and memory behavior reflects a known
// configuration.
package system

import (
	"runtime"
	"runtime/debug"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Settings holds runtime tuning for the profiled process.
type Settings struct {
	MaxProcs    int
	GCPercent   int
	MaxThreads  int
	MemoryLimit int // in MB, 0 means no limit

	logger *logrus.Entry
}

// DefaultSettings returns the runtime defaults.
func DefaultSettings(log *logrus.Logger) *Settings {
	if log == nil {
		log = logrus.New()
	}
	return &Settings{
		MaxProcs:   runtime.NumCPU(),
		GCPercent:  100,
		MaxThreads: 10000,
		logger:     log.WithField("component", "system_settings"),
	}
}

// Apply configures the Go runtime with the current settings.
func (s *Settings) Apply() {
	s.logger.Info("Applying runtime settings...")

	runtime.GOMAXPROCS(s.MaxProcs)
	s.logger.Infof("GOMAXPROCS set to %d", s.MaxProcs)

	debug.SetGCPercent(s.GCPercent)
	s.logger.Infof("GC percent set to %d", s.GCPercent)

	debug.SetMaxThreads(s.MaxThreads)
	s.logger.Infof("Max threads set to %d", s.MaxThreads)

	if s.MemoryLimit > 0 {
		debug.SetMemoryLimit(int64(s.MemoryLimit) * 1024 * 1024)
		s.logger.Infof("Memory limit set to %dMB", s.MemoryLimit)
	}
}

// WithMaxProcs sets the maximum number of CPUs to use.
func (s *Settings) WithMaxProcs(n int) *Settings {
	if n > 0 {
		s.MaxProcs = n
	}
	return s
}

// WithGCPercent sets the GC target percentage.
func (s *Settings) WithGCPercent(percent int) *Settings {
	if percent > 0 {
		s.GCPercent = percent
	}
	return s
}

// WithMaxThreads sets the maximum number of OS threads.
func (s *Settings) WithMaxThreads(n int) *Settings {
	if n > 0 {
		s.MaxThreads = n
	}
	return s
}

// WithMemoryLimit sets the soft memory limit in MB.
func (s *Settings) WithMemoryLimit(mb int) *Settings {
	if mb > 0 {
		s.MemoryLimit = mb
	}
	return s
}

// LoadFromViper loads runtime settings from the system.* configuration keys,
// keeping the defaults for any key left unset.
func LoadFromViper(v *viper.Viper, log *logrus.Logger) *Settings {
	return DefaultSettings(log).
		WithMaxProcs(v.GetInt("system.maxprocs")).
		WithGCPercent(v.GetInt("system.gcpercent")).
		WithMaxThreads(v.GetInt("system.maxthreads")).
		WithMemoryLimit(v.GetInt("system.memorylimit"))
}
