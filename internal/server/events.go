package server

import (
	"context"
	"sync"
	"time"
)

const (
	eventHeartbeat       = "heartbeat"
	eventSource          = "folio-backend"
	defaultEventBuffer   = 16
	defaultHeartbeatTick = 25 * time.Second
)

// ProjectEvent tells connected editors that a project changed.
type ProjectEvent struct {
	Type      string    `json:"type"`
	ProjectID string    `json:"projectId,omitempty"`
	Revision  int64     `json:"revision,omitempty"`
	Actor     string    `json:"actor,omitempty"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
}

// EventDispatcher fans project events out to every subscribed editor stream.
// Slow subscribers lose events rather than block publishers.
type EventDispatcher struct {
	mu          sync.RWMutex
	subscribers map[int64]chan ProjectEvent
	nextID      int64
	bufferSize  int
	clock       func() time.Time
}

// NewEventDispatcher constructs an empty dispatcher.
func NewEventDispatcher() *EventDispatcher {
	return &EventDispatcher{
		subscribers: make(map[int64]chan ProjectEvent),
		bufferSize:  defaultEventBuffer,
		clock:       time.Now,
	}
}

// Subscribe registers a stream that lives until ctx ends or cleanup runs.
func (d *EventDispatcher) Subscribe(ctx context.Context) (<-chan ProjectEvent, func()) {
	stream := make(chan ProjectEvent, d.bufferSize)
	d.mu.Lock()
	d.nextID++
	id := d.nextID
	d.subscribers[id] = stream
	d.mu.Unlock()

	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			d.mu.Lock()
			delete(d.subscribers, id)
			d.mu.Unlock()
		})
	}
	go func() {
		<-ctx.Done()
		cleanup()
	}()
	return stream, cleanup
}

// Publish delivers event to every current subscriber without blocking.
func (d *EventDispatcher) Publish(event ProjectEvent) {
	if event.Type == "" {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = d.clock().UTC()
	}
	event.Source = eventSource
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, stream := range d.subscribers {
		select {
		case stream <- event:
		default:
		}
	}
}

// SubscriberCount reports how many streams are attached.
func (d *EventDispatcher) SubscriberCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.subscribers)
}
