// Package eventbus provides a thread-safe publish-subscribe bus connecting
// the stages of the agent pipeline. Unlike a fire-and-forget bus, Publish
// blocks while a subscriber's buffer is full: probe statuses must reach the
// alerter and uploader, so backpressure is absorbed by the publishing
// goroutine instead of dropping events.
package eventbus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/schnooty/agent/internal/config"
	"github.com/schnooty/agent/internal/models"
)

// Topic represents the name of an event topic.
type Topic string

const (
	// TopicStatusReceived carries probe outcomes from the executor to the
	// alerter and uploader.
	TopicStatusReceived Topic = "status.received"

	// TopicMonitorsUpdated replaces one source's monitor set on the scheduler.
	TopicMonitorsUpdated Topic = "monitors.updated"

	// TopicAlertsUpdated replaces the alerter's channel list.
	TopicAlertsUpdated Topic = "alerts.updated"

	// TopicConfigUpdated announces a newly applied agent configuration.
	TopicConfigUpdated Topic = "config.updated"

	// TopicSessionUpdated carries the session echoed by the control plane
	// after a heartbeat.
	TopicSessionUpdated Topic = "session.updated"
)

// Event is the envelope delivered to subscribers.
type Event struct {
	Topic     Topic
	Timestamp time.Time
	Payload   interface{}
}

// StatusMsg is the payload of TopicStatusReceived: one probe outcome plus
// the monitor that produced it.
type StatusMsg struct {
	Monitor models.Monitor
	Status  models.MonitorStatus
}

// MonitorsUpdated is the payload of TopicMonitorsUpdated. SourceID
// identifies which configuration source owns the listed monitors.
type MonitorsUpdated struct {
	SourceID string
	Monitors []models.Monitor
}

// AlertsUpdated is the payload of TopicAlertsUpdated.
type AlertsUpdated struct {
	Alerts []models.Alert
}

// ConfigUpdated is the payload of TopicConfigUpdated.
type ConfigUpdated struct {
	Config *config.Config
}

// SessionUpdated is the payload of TopicSessionUpdated.
type SessionUpdated struct {
	Session models.Session
}

// ErrBusClosed is returned by Publish after Close has been called.
var ErrBusClosed = errors.New("event bus is closed")

// EventBus is a thread-safe publish-subscribe bus with bounded subscriber
// buffers. Publish blocks while a buffer is full and unblocks when the
// subscriber drains, the bus closes, or the publish context is cancelled.
type EventBus struct {
	// mu protects subscribers map
	mu sync.RWMutex

	// subscribers maps topics to their subscriber channels
	subscribers map[Topic][]chan Event

	// bufferSize is the buffer size for each subscriber channel
	bufferSize int

	// done signals shutdown
	done chan struct{}

	closeOnce sync.Once

	// wg tracks relay goroutines from SubscribeMultiple
	wg sync.WaitGroup
}

// DefaultBufferSize is the per-subscriber channel capacity used when
// NewEventBus is given a non-positive size.
const DefaultBufferSize = 256

// NewEventBus creates a new EventBus with the specified per-subscriber
// buffer size.
func NewEventBus(bufferSize int) *EventBus {
	if bufferSize < 1 {
		bufferSize = DefaultBufferSize
	}
	return &EventBus{
		subscribers: make(map[Topic][]chan Event),
		bufferSize:  bufferSize,
		done:        make(chan struct{}),
	}
}

// Subscribe registers a new subscriber for the given topic and returns a
// channel for receiving events. Each call creates an independent channel
// with its own buffer. Subscriber channels are never closed; consumers
// should select on their own context alongside the channel.
//
// Example:
//
//	ch := bus.Subscribe(TopicStatusReceived)
//	for {
//		select {
//		case event := <-ch:
//			msg := event.Payload.(StatusMsg)
//			// process msg
//		case <-ctx.Done():
//			return
//		}
//	}
func (eb *EventBus) Subscribe(topic Topic) <-chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	ch := make(chan Event, eb.bufferSize)
	eb.subscribers[topic] = append(eb.subscribers[topic], ch)

	return ch
}

// SubscribeMultiple registers a subscriber for several topics and returns a
// single channel receiving events from any of them. Useful for components
// consuming more than one topic in a single run loop, such as the alerter
// (statuses plus alert list updates). Relays forward with backpressure; no
// event is dropped.
func (eb *EventBus) SubscribeMultiple(topics ...Topic) <-chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	muxCh := make(chan Event, eb.bufferSize)

	for _, topic := range topics {
		ch := make(chan Event, eb.bufferSize)
		eb.subscribers[topic] = append(eb.subscribers[topic], ch)

		eb.wg.Add(1)
		go func(relay <-chan Event) {
			defer eb.wg.Done()
			for {
				select {
				case event := <-relay:
					select {
					case muxCh <- event:
					case <-eb.done:
						return
					}
				case <-eb.done:
					return
				}
			}
		}(ch)
	}

	return muxCh
}

// Publish delivers an event to every subscriber of the topic, blocking per
// subscriber until its buffer has room. Returns ErrBusClosed if the bus is
// shut down and ctx.Err() if the context ends first; either way some
// subscribers may already have received the event.
func (eb *EventBus) Publish(ctx context.Context, topic Topic, payload interface{}) error {
	eb.mu.RLock()
	subscribers := eb.subscribers[topic]
	// Copy so the lock is not held during sends
	subscribersCopy := make([]chan Event, len(subscribers))
	copy(subscribersCopy, subscribers)
	eb.mu.RUnlock()

	if len(subscribersCopy) == 0 {
		return nil
	}

	event := Event{
		Topic:     topic,
		Timestamp: time.Now(),
		Payload:   payload,
	}

	for _, ch := range subscribersCopy {
		select {
		case ch <- event:
		case <-eb.done:
			return ErrBusClosed
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return nil
}

// Close shuts down the bus. Blocked publishers return ErrBusClosed and
// relay goroutines exit. Subscriber channels stay open (and drain whatever
// they already buffered) so consumers never see a send-on-closed panic;
// they terminate via their own contexts.
func (eb *EventBus) Close() error {
	eb.closeOnce.Do(func() {
		close(eb.done)
	})
	eb.wg.Wait()

	eb.mu.Lock()
	eb.subscribers = make(map[Topic][]chan Event)
	eb.mu.Unlock()

	return nil
}

// String returns the string representation of a Topic.
func (t Topic) String() string {
	return string(t)
}

// String returns a human-readable representation of an Event for logging.
func (e Event) String() string {
	return fmt.Sprintf("Event{Topic: %s, Timestamp: %s, Payload: %+v}",
		e.Topic.String(),
		e.Timestamp.Format(time.RFC3339Nano),
		e.Payload,
	)
}
