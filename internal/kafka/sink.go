package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/alejoacosta74/profiler/internal/circuitbreaker"
	"github.com/alejoacosta74/profiler/internal/common"
	"github.com/alejoacosta74/profiler/internal/events"
)

// Envelope is the wire form of one diagnostic event on the Kafka topic.
type Envelope struct {
	Topic     string      `json:"topic"`
	Timestamp time.Time   `json:"timestamp"`
	Event     interface{} `json:"event"`
}

// SinkConfig configures the diagnostic event sink.
type SinkConfig struct {
	Bus        events.Bus
	Sender     MessageSender
	KafkaTopic string // destination topic for all diagnostic events
	Logger     *logrus.Logger
}

// Sink forwards the profiler's diagnostic events to Kafka. Every bus topic
// is multiplexed onto a single Kafka topic; the source topic travels in the
// envelope. A circuit breaker keeps a dead cluster from stalling the
// profiled process: after repeated failures sends are skipped until the
// breaker lets one through again.
type Sink struct {
	bus     events.Bus
	sender  MessageSender
	topic   string
	breaker *circuitbreaker.CircuitBreaker
	logger  *logrus.Entry
	done    chan struct{}
}

// NewSink creates a Sink that publishes to config.KafkaTopic.
func NewSink(config SinkConfig) *Sink {
	log := config.Logger
	if log == nil {
		log = logrus.New()
	}
	return &Sink{
		bus:     config.Bus,
		sender:  config.Sender,
		topic:   config.KafkaTopic,
		breaker: circuitbreaker.New(5, 30*time.Second, log),
		logger:  log.WithField("component", "kafka_sink"),
		done:    make(chan struct{}),
	}
}

// Run subscribes to every diagnostic topic and forwards published events
// until ctx is cancelled. A failed or skipped send is logged and dropped;
// diagnostics are best-effort by nature.
func (s *Sink) Run(ctx context.Context) {
	defer close(s.done)

	type subscription struct {
		topic common.EventType
		ch    <-chan interface{}
	}

	var subs []subscription
	for _, topic := range common.Topics() {
		subs = append(subs, subscription{topic: topic, ch: s.bus.Subscribe(topic)})
	}
	defer func() {
		for _, sub := range subs {
			s.bus.Unsubscribe(sub.topic, sub.ch)
		}
	}()

	s.logger.WithField("kafka_topic", s.topic).Info("Diagnostic event sink started")

	forwarded := make(chan Envelope, 64)
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
					select {
					case forwarded <- Envelope{Topic: string(topic), Timestamp: time.Now(), Event: event}:
					default:
						s.logger.WithField("topic", topic).Warn("Sink backlog full, dropping event")
					}
				}
			}
		}(sub.topic, sub.ch)
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Diagnostic event sink stopped")
			return
		case envelope := <-forwarded:
			s.deliver(ctx, envelope)
		}
	}
}

// Done is closed once Run has returned.
func (s *Sink) Done() <-chan struct{} {
	return s.done
}

func (s *Sink) deliver(ctx context.Context, envelope Envelope) {
	payload, err := json.Marshal(envelope)
	if err != nil {
		s.logger.WithError(err).WithField("topic", envelope.Topic).Error("Failed to encode diagnostic event")
		return
	}

	err = s.breaker.Execute(func() error {
		return s.sender.Send(ctx, s.topic, payload)
	})
	if err != nil {
		s.logger.WithError(err).WithField("topic", envelope.Topic).Warn("Failed to forward diagnostic event")
	}
}
