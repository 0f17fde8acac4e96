package events

import (
	"sync"

	"github.com/alejoacosta74/profiler/internal/common"
)

// EventBus implements the Bus interface providing a concurrent-safe
// publish-subscribe bus for diagnostic events.
type EventBus struct {
	// subscribers maps topics to a set of subscriber channels
	subscribers map[common.EventType]map[chan interface{}]struct{}

	// subscribersMu protects concurrent access to the subscribers map
	subscribersMu sync.RWMutex

	// channelBufferSize determines the buffer size for new subscriber channels
	channelBufferSize int

	// shutdownCh is closed when the event bus is shutting down
	shutdownCh chan struct{}
}

// NewEventBus creates a new EventBus instance.
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers:       make(map[common.EventType]map[chan interface{}]struct{}),
		channelBufferSize: 100, // Buffer up to 100 events per subscriber
		shutdownCh:        make(chan struct{}),
	}
}

// Publish sends an event to all subscribers of the specified topic.
// This method is concurrent-safe and non-blocking: if a subscriber's channel
// is full, the event is dropped for that subscriber.
func (b *EventBus) Publish(topic common.EventType, event interface{}) {
	b.subscribersMu.RLock()
	defer b.subscribersMu.RUnlock()

	subscribers, exists := b.subscribers[topic]
	if !exists {
		return // No subscribers for this topic
	}

	for subscriberCh := range subscribers {
		select {
		case subscriberCh <- event:
			// Event sent successfully
		default:
			// Channel full, drop event for this subscriber
		}
	}
}

// Subscribe creates a new subscription to the specified topic.
// The returned channel is buffered with size channelBufferSize. The
// subscriber should always call Unsubscribe when done to prevent resource
// leaks.
func (b *EventBus) Subscribe(topic common.EventType) <-chan interface{} {
	b.subscribersMu.Lock()
	defer b.subscribersMu.Unlock()

	ch := make(chan interface{}, b.channelBufferSize)

	if b.subscribers[topic] == nil {
		b.subscribers[topic] = make(map[chan interface{}]struct{})
	}

	b.subscribers[topic][ch] = struct{}{}

	return ch
}

// Unsubscribe removes a subscriber from the specified topic.
// This method is concurrent-safe and idempotent.
//
// Usage example:
//
//	ch := eventBus.Subscribe(common.TypeProfileComplete)
//	defer eventBus.Unsubscribe(common.TypeProfileComplete, ch)
func (b *EventBus) Unsubscribe(topic common.EventType, ch <-chan interface{}) {
	b.subscribersMu.Lock()
	defer b.subscribersMu.Unlock()

	subscribers, exists := b.subscribers[topic]
	if !exists {
		return
	}

	for subCh := range subscribers {
		// Compare channel pointers
		if ch == subCh {
			delete(subscribers, subCh)
			close(subCh)
			break
		}
	}

	// Clean up topic if no more subscribers
	if len(subscribers) == 0 {
		delete(b.subscribers, topic)
	}
}

// Shutdown gracefully shuts down the event bus.
// It closes all subscriber channels and cleans up resources.
func (b *EventBus) Shutdown() {
	close(b.shutdownCh)

	b.subscribersMu.Lock()
	defer b.subscribersMu.Unlock()

	for topic, subscribers := range b.subscribers {
		for ch := range subscribers {
			close(ch)
		}
		delete(b.subscribers, topic)
	}
}

// TopicSubscriberCount returns the number of subscribers for a topic.
// This method is useful for testing and monitoring.
func (b *EventBus) TopicSubscriberCount(topic common.EventType) int {
	b.subscribersMu.RLock()
	defer b.subscribersMu.RUnlock()

	return len(b.subscribers[topic])
}
