// Package metrics exposes the profiler's own operational metrics via
// Prometheus: diagnostic event counts, capture activity, Kafka sink health
// and process runtime gauges.
package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"

	"github.com/alejoacosta74/profiler/internal/common"
	"github.com/alejoacosta74/profiler/internal/events"
)

// Recorder collects and records the profiler's operational metrics. It
// subscribes to the diagnostic event bus and counts what flows through it;
// the Kafka sink reports its own send activity through the Record* methods.
type Recorder struct {
	diagnosticEvents *prometheus.CounterVec
	capturesTotal    *prometheus.CounterVec

	kafkaMetrics struct {
		messagesSent *prometheus.CounterVec
		sendErrors   *prometheus.CounterVec
		sendLatency  prometheus.Histogram
		queueSize    prometheus.Gauge
	}

	eventBus events.Bus
	logger   *logrus.Entry
	done     chan struct{}
}

// NewRecorder creates a Recorder registered against reg. Pass nil to use
// the default Prometheus registerer.
func NewRecorder(eventBus events.Bus, reg prometheus.Registerer, log *logrus.Logger) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	r := &Recorder{
		eventBus: eventBus,
		logger:   log.WithField("component", "metrics_recorder"),
		done:     make(chan struct{}),
	}

	r.diagnosticEvents = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "profiler",
			Name:      "diagnostic_events_total",
			Help:      "Number of diagnostic events published by topic",
		},
		[]string{"topic"},
	)

	r.capturesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "profiler",
			Name:      "captures_total",
			Help:      "Number of completed profile captures by type",
		},
		[]string{"type"},
	)

	r.kafkaMetrics.messagesSent = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kafka",
			Name:      "messages_total",
			Help:      "Number of diagnostic messages delivered to Kafka by topic",
		},
		[]string{"topic"},
	)

	r.kafkaMetrics.sendErrors = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kafka",
			Name:      "send_errors_total",
			Help:      "Number of failed Kafka sends by reason",
		},
		[]string{"reason"},
	)

	r.kafkaMetrics.sendLatency = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: "kafka",
		Name:      "send_latency_seconds",
		Help:      "Latency of Kafka send operations in seconds",
		Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
	})

	r.kafkaMetrics.queueSize = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: "kafka",
		Name:      "producer_queue_size",
		Help:      "Number of idle producers in the pool",
	})

	r.logger.Debug("Metrics recorder initialized")
	return r
}

// Start subscribes to every diagnostic topic and counts published events
// until ctx is cancelled.
func (r *Recorder) Start(ctx context.Context) {
	r.logger.Debug("Starting metrics recorder")

	type subscription struct {
		topic common.EventType
		ch    <-chan interface{}
	}

	var subs []subscription
	for _, topic := range common.Topics() {
		subs = append(subs, subscription{topic: topic, ch: r.eventBus.Subscribe(topic)})
	}

	for _, sub := range subs {
		go func(topic common.EventType, ch <-chan interface{}) {
			for {
				select {
				case <-ctx.Done():
					return
				case event, ok := <-ch:
					if !ok {
						return
					}
					r.diagnosticEvents.WithLabelValues(string(topic)).Inc()
					if complete, ok := event.(common.ProfileCompleteEvent); ok {
						r.RecordCapture(complete.Type)
					}
				}
			}
		}(sub.topic, sub.ch)
	}

	go func() {
		<-ctx.Done()
		for _, sub := range subs {
			r.eventBus.Unsubscribe(sub.topic, sub.ch)
		}
		close(r.done)
	}()
}

// Done is closed once the recorder has unsubscribed after Start's context
// was cancelled.
func (r *Recorder) Done() <-chan struct{} {
	return r.done
}

// RecordCapture counts one completed profile capture.
func (r *Recorder) RecordCapture(profileType string) {
	r.capturesTotal.WithLabelValues(profileType).Inc()
}

// RecordKafkaMessageSent counts one delivered message and observes its
// send latency.
func (r *Recorder) RecordKafkaMessageSent(topic string, latencySeconds float64) {
	r.kafkaMetrics.messagesSent.WithLabelValues(topic).Inc()
	r.kafkaMetrics.sendLatency.Observe(latencySeconds)
}

// RecordKafkaError counts one failed send.
func (r *Recorder) RecordKafkaError(reason string) {
	r.kafkaMetrics.sendErrors.WithLabelValues(reason).Inc()
}

// UpdateKafkaQueueSize records the number of idle producers in the pool.
func (r *Recorder) UpdateKafkaQueueSize(size float64) {
	r.kafkaMetrics.queueSize.Set(size)
}
