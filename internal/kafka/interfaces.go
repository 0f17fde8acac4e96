// Package kafka ships the profiler's diagnostic events to a Kafka cluster
// through a pool of synchronous producers.
package kafka

import "context"

// MessageSender sends a raw payload to a Kafka topic.
type MessageSender interface {
	Send(ctx context.Context, topic string, msg []byte) error
}

// PoolController manages the lifecycle of a producer pool.
type PoolController interface {
	Start() error
	Stop() error
}

// ProducerPool is a pool of Kafka producers: start it, send through it,
// stop it.
type ProducerPool interface {
	MessageSender
	PoolController
}

// Producer is a single Kafka producer connection.
type Producer interface {
	Send(ctx context.Context, msg Message) error
	Close() error
}
