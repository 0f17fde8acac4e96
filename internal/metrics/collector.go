package metrics

import (
	"runtime"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/alejoacosta74/profiler/internal/sampler"
)

// RuntimeCollector implements the prometheus.Collector interface to expose
// the profiled process's counters: heap, external and resident memory, CPU
// time, GC activity and goroutine count. Readings come from the same counter
// source the sampler uses, so the scrape and the sampled buffers agree.
type RuntimeCollector struct {
	source sampler.Source

	memBytes   *prometheus.GaugeVec
	cpuSeconds *prometheus.GaugeVec
	gcStats    *prometheus.GaugeVec
	goroutines prometheus.Gauge

	logger *logrus.Entry
}

// NewRuntimeCollector creates the collector and registers it against reg.
// Pass nil to use the default Prometheus registerer.
func NewRuntimeCollector(source sampler.Source, reg prometheus.Registerer, log *logrus.Logger) *RuntimeCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := &RuntimeCollector{
		source: source,
		memBytes: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "process_profile",
				Name:      "memory_bytes",
				Help:      "Profiled process memory counters in bytes.",
			},
			[]string{"type"},
		),
		cpuSeconds: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "process_profile",
				Name:      "cpu_seconds_total",
				Help:      "Cumulative CPU time of the profiled process.",
			},
			[]string{"mode"},
		),
		gcStats: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "process_profile",
				Name:      "gc_stats",
				Help:      "Garbage collector statistics.",
			},
			[]string{"type"},
		),
		goroutines: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "process_profile",
				Name:      "goroutines",
				Help:      "Number of running goroutines.",
			},
		),
		logger: log.WithField("component", "runtime_collector"),
	}

	reg.MustRegister(c)
	return c
}

// Describe implements prometheus.Collector.
func (c *RuntimeCollector) Describe(ch chan<- *prometheus.Desc) {
	c.memBytes.Describe(ch)
	c.cpuSeconds.Describe(ch)
	c.gcStats.Describe(ch)
	ch <- c.goroutines.Desc()
}

// Collect implements prometheus.Collector. It takes a fresh counter reading
// on every scrape.
func (c *RuntimeCollector) Collect(ch chan<- prometheus.Metric) {
	counters, err := c.source.Read()
	if err != nil {
		c.logger.WithError(err).Warn("Failed to read process counters")
		return
	}

	c.memBytes.WithLabelValues("heap_used").Set(float64(counters.Memory.HeapUsed))
	c.memBytes.WithLabelValues("heap_total").Set(float64(counters.Memory.HeapTotal))
	c.memBytes.WithLabelValues("external").Set(float64(counters.Memory.External))
	c.memBytes.WithLabelValues("rss").Set(float64(counters.Memory.RSS))

	c.cpuSeconds.WithLabelValues("user").Set(counters.CPU.UserTime.Seconds())
	c.cpuSeconds.WithLabelValues("system").Set(counters.CPU.SystemTime.Seconds())

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	c.gcStats.WithLabelValues("num_gc").Set(float64(m.NumGC))
	c.gcStats.WithLabelValues("pause_total_ns").Set(float64(m.PauseTotalNs))

	c.goroutines.Set(float64(runtime.NumGoroutine()))

	c.memBytes.Collect(ch)
	c.cpuSeconds.Collect(ch)
	c.gcStats.Collect(ch)
	c.goroutines.Collect(ch)
}
