package server

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/ashita-ai/kansoku/internal/snapshot"
)

// Broker fans each new view out to SSE subscribers. It implements
// watch.Publisher. The last event is kept so a new subscriber sees the
// current view without waiting for the next poll.
type Broker struct {
	logger *slog.Logger

	mu          sync.RWMutex
	subscribers map[chan []byte]struct{}
	last        []byte
}

// NewBroker creates a broker with no subscribers.
func NewBroker(logger *slog.Logger) *Broker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broker{
		logger:      logger,
		subscribers: make(map[chan []byte]struct{}),
	}
}

// Publish encodes v as a "view" event (or "stale" when the last poll
// failed) and broadcasts it.
func (b *Broker) Publish(v snapshot.View) {
	data, err := json.Marshal(v)
	if err != nil {
		b.logger.Error("broker: encode view", "error", err)
		return
	}
	event := "view"
	if v.Stale {
		event = "stale"
	}
	msg := formatSSE(event, string(data))

	b.mu.Lock()
	b.last = msg
	b.mu.Unlock()
	b.broadcast(msg)
}

// Subscribe returns a channel of SSE-formatted events, primed with the
// last event if there is one. The caller must call Unsubscribe.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, 16)
	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	if b.last != nil {
		ch <- b.last
	}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes ch and closes it.
func (b *Broker) Unsubscribe(ch chan []byte) {
	b.mu.Lock()
	delete(b.subscribers, ch)
	b.mu.Unlock()
	close(ch)
}

// SubscriberCount returns the number of connected subscribers.
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// broadcast sends event to every subscriber. A subscriber whose buffer is
// full misses the event; the next view supersedes it anyway.
func (b *Broker) broadcast(event []byte) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subscribers {
		select {
		case ch <- event:
		default:
			b.logger.Debug("broker: subscriber buffer full, event dropped")
		}
	}
}

// formatSSE renders one Server-Sent Events message.
func formatSSE(eventType, data string) []byte {
	return []byte("event: " + eventType + "\ndata: " + data + "\n\n")
}
