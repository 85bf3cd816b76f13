// internal/handler/event_bus.go
package handler

import (
	"sync"

	"go.uber.org/zap"

	"escpos-service/internal/model"
)

// EventBus manages job event distribution
type EventBus struct {
	subscribers map[int]chan model.JobEvent
	nextID      int
	events      chan model.JobEvent
	done        chan struct{}
	closeOnce   sync.Once
	mutex       sync.RWMutex
	logger      *zap.Logger
}

// NewEventBus creates a new event bus
func NewEventBus(logger *zap.Logger) *EventBus {
	return &EventBus{
		subscribers: make(map[int]chan model.JobEvent),
		events:      make(chan model.JobEvent, 1000),
		done:        make(chan struct{}),
		logger:      logger,
	}
}

// Start distributes published events until Stop is called
func (eb *EventBus) Start() {
	for {
		select {
		case event := <-eb.events:
			eb.distributeEvent(event)
		case <-eb.done:
			eb.mutex.Lock()
			for id, subscriber := range eb.subscribers {
				delete(eb.subscribers, id)
				close(subscriber)
			}
			eb.mutex.Unlock()
			return
		}
	}
}

// Stop ends distribution and closes every subscriber channel
func (eb *EventBus) Stop() {
	eb.closeOnce.Do(func() { close(eb.done) })
}

// Publish publishes an event without blocking
func (eb *EventBus) Publish(event model.JobEvent) {
	select {
	case eb.events <- event:
	default:
		// Event bus is full
		if eb.logger != nil {
			eb.logger.Warn("Event bus full, dropping event",
				zap.String("event_type", string(event.EventType)),
			)
		}
	}
}

// Subscribe returns a channel receiving every event and a function that
// cancels the subscription
func (eb *EventBus) Subscribe() (<-chan model.JobEvent, func()) {
	eb.mutex.Lock()
	defer eb.mutex.Unlock()

	id := eb.nextID
	eb.nextID++
	subscriber := make(chan model.JobEvent, 100)
	eb.subscribers[id] = subscriber

	return subscriber, func() {
		eb.mutex.Lock()
		defer eb.mutex.Unlock()
		if ch, ok := eb.subscribers[id]; ok {
			delete(eb.subscribers, id)
			close(ch)
		}
	}
}

// distributeEvent distributes an event to subscribers
func (eb *EventBus) distributeEvent(event model.JobEvent) {
	eb.mutex.RLock()
	defer eb.mutex.RUnlock()

	for _, subscriber := range eb.subscribers {
		select {
		case subscriber <- event:
		default:
			// Subscriber is slow, skip
		}
	}
}
