package kafka

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/alejoacosta74/profiler/internal/metrics"
)

// Message represents a message to be sent to Kafka.
type Message struct {
	Topic   string
	Payload []byte
	Headers map[string]string
}

// ProducerConfig holds configuration for the producer pool.
type ProducerConfig struct {
	BrokerList []string // Kafka brokers (i.e. ["localhost:9092"])
	PoolSize   int      // Number of producers in the pool
	Metrics    *metrics.Recorder
	Logger     *logrus.Logger
}

// producerPool manages a pool of Producers. Idle producers sit in a channel;
// Send checks one out, uses it, and returns it.
type producerPool struct {
	producers chan Producer
	config    ProducerConfig
	logger    *logrus.Entry
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
	started   bool
	mu        sync.RWMutex
	metrics   *metrics.Recorder
}

// NewProducerPool creates a new pool of Kafka producers.
func NewProducerPool(config ProducerConfig) (*producerPool, error) {
	if config.PoolSize <= 0 {
		return nil, fmt.Errorf("pool size must be greater than 0")
	}
	log := config.Logger
	if log == nil {
		log = logrus.New()
	}

	ctx, cancel := context.WithCancel(context.Background())

	pool := &producerPool{
		producers: make(chan Producer, config.PoolSize),
		config:    config,
		logger:    log.WithField("component", "kafka_producer_pool"),
		ctx:       ctx,
		cancel:    cancel,
		metrics:   config.Metrics,
	}

	return pool, nil
}

// Start creates all producers and fills the pool.
func (p *producerPool) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return fmt.Errorf("producer pool already started")
	}

	for i := 0; i < p.config.PoolSize; i++ {
		producer, err := newSaramaProducer(p.config)
		if err != nil {
			p.drain()
			return fmt.Errorf("failed to create producer %d: %w", i, err)
		}
		p.producers <- producer
	}

	p.started = true
	p.logger.Info("Producer pool started successfully")
	return nil
}

// Stop gracefully shuts down the producer pool.
func (p *producerPool) Stop() error {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return fmt.Errorf("producer pool not started")
	}
	p.mu.Unlock()

	p.logger.Info("Stopping producer pool...")
	p.cancel()

	shutdownTimeout := time.After(10 * time.Second)
	done := make(chan struct{})

	go func() {
		p.drain()
		close(p.producers)

		p.mu.Lock()
		p.started = false
		p.mu.Unlock()

		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("Producer pool stopped successfully")
		return nil
	case <-shutdownTimeout:
		return fmt.Errorf("timeout while stopping producer pool")
	}
}

// drain closes every producer currently sitting in the pool.
func (p *producerPool) drain() {
	for {
		select {
		case producer := <-p.producers:
			if err := producer.Close(); err != nil {
				p.logger.WithError(err).Error("Failed to close producer")
			}
		case <-time.After(time.Second):
			return
		}
	}
}

// Send delivers a message through an available producer from the pool. It
// implements MessageSender. The wait for an idle producer is bounded by ctx;
// the broker round trip itself gets a 5 second budget.
func (p *producerPool) Send(ctx context.Context, topic string, rawMsg []byte) error {
	start := time.Now()

	if p.metrics != nil {
		p.metrics.UpdateKafkaQueueSize(float64(len(p.producers)))
	}

	msg := Message{
		Topic:   topic,
		Payload: rawMsg,
	}

	p.wg.Add(1)
	defer p.wg.Done()

	select {
	case producer := <-p.producers:
		defer func() {
			select {
			case <-p.ctx.Done():
				// pool is shutting down
				producer.Close()
			default:
				p.producers <- producer
			}
		}()

		sendCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		if err := producer.Send(sendCtx, msg); err != nil {
			if p.metrics != nil {
				p.metrics.RecordKafkaError(err.Error())
			}
			return fmt.Errorf("failed to send message: %w", err)
		}

		if p.metrics != nil {
			p.metrics.RecordKafkaMessageSent(msg.Topic, time.Since(start).Seconds())
		}
		return nil

	case <-ctx.Done():
		if p.metrics != nil {
			p.metrics.RecordKafkaError("context_cancelled")
		}
		return fmt.Errorf("operation cancelled by caller: %w", ctx.Err())

	case <-p.ctx.Done():
		if p.metrics != nil {
			p.metrics.RecordKafkaError("producer_pool_shutdown")
		}
		return fmt.Errorf("producer pool is shutting down")
	}
}
