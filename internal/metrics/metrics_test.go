package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejoacosta74/profiler/internal/common"
	"github.com/alejoacosta74/profiler/internal/events"
	"github.com/alejoacosta74/profiler/internal/sampler"
	"github.com/alejoacosta74/profiler/pkg/perf"
)

type stubSource struct{}

func (stubSource) Read() (sampler.Counters, error) {
	return sampler.Counters{
		Memory: perf.MemorySample{
			Timestamp: time.Now(),
			HeapUsed:  64 << 20,
			HeapTotal: 128 << 20,
			External:  8 << 20,
			RSS:       256 << 20,
		},
		CPU: perf.CPUSample{
			Timestamp:  time.Now(),
			UserTime:   1500 * time.Millisecond,
			SystemTime: 250 * time.Millisecond,
		},
	}, nil
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func TestRecorderCountsDiagnosticEvents(t *testing.T) {
	reg := prometheus.NewRegistry()
	bus := events.NewEventBus()
	defer bus.Shutdown()

	r := NewRecorder(bus, reg, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	r.Start(ctx)

	bus.Publish(common.TypeHighMemoryUsage, common.HighMemoryUsageEvent{Current: 1, Threshold: 1})
	bus.Publish(common.TypeHighMemoryUsage, common.HighMemoryUsageEvent{Current: 2, Threshold: 1})
	bus.Publish(common.TypeProfileComplete, common.ProfileCompleteEvent{Type: "cpu"})

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(r.diagnosticEvents.WithLabelValues(string(common.TypeHighMemoryUsage))) == 2 &&
			testutil.ToFloat64(r.diagnosticEvents.WithLabelValues(string(common.TypeProfileComplete))) == 1
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-r.Done():
	case <-time.After(time.Second):
		t.Fatal("recorder did not unsubscribe on cancel")
	}
}

func TestRecorderKafkaMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	bus := events.NewEventBus()
	defer bus.Shutdown()

	r := NewRecorder(bus, reg, quietLogger())

	r.RecordKafkaMessageSent("profiler.diagnostics", 0.01)
	r.RecordKafkaMessageSent("profiler.diagnostics", 0.02)
	r.RecordKafkaError("timeout")
	r.UpdateKafkaQueueSize(3)

	assert.Equal(t, float64(2), testutil.ToFloat64(r.kafkaMetrics.messagesSent.WithLabelValues("profiler.diagnostics")))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.kafkaMetrics.sendErrors.WithLabelValues("timeout")))
	assert.Equal(t, float64(3), testutil.ToFloat64(r.kafkaMetrics.queueSize))
}

func TestRecorderCaptureCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	bus := events.NewEventBus()
	defer bus.Shutdown()

	r := NewRecorder(bus, reg, quietLogger())
	r.RecordCapture("cpu")
	r.RecordCapture("cpu")
	r.RecordCapture("heap")

	assert.Equal(t, float64(2), testutil.ToFloat64(r.capturesTotal.WithLabelValues("cpu")))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.capturesTotal.WithLabelValues("heap")))
}

func TestRuntimeCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewRuntimeCollector(stubSource{}, reg, quietLogger())

	families, err := reg.Gather()
	require.NoError(t, err)

	byName := make(map[string]*dto.MetricFamily)
	for _, fam := range families {
		byName[fam.GetName()] = fam
	}

	memFamily := byName["process_profile_memory_bytes"]
	require.NotNil(t, memFamily)
	assert.Len(t, memFamily.GetMetric(), 4)

	assert.Contains(t, byName, "process_profile_cpu_seconds_total")
	assert.Contains(t, byName, "process_profile_goroutines")
}

func TestServerEndpoints(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewRuntimeCollector(stubSource{}, reg, quietLogger())

	s := NewServer("127.0.0.1:0", reg, quietLogger())

	tests := []struct {
		name       string
		path       string
		wantStatus int
		wantBody   string
	}{
		{
			name:       "health endpoint responds ok",
			path:       "/health",
			wantStatus: http.StatusOK,
		},
		{
			name:       "metrics endpoint serves registry",
			path:       "/metrics",
			wantStatus: http.StatusOK,
			wantBody:   "process_profile_memory_bytes",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			rec := httptest.NewRecorder()
			s.server.Handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantBody != "" {
				assert.True(t, strings.Contains(rec.Body.String(), tt.wantBody))
			}
		})
	}
}
