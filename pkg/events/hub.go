package events

import (
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// DefaultBuffer is how many events a subscriber may fall behind by.
const DefaultBuffer = 16

// EventHub fans the events of one session out to its open browser tabs.
//
// A subscriber that falls behind loses its oldest pending events, never the
// newest. Every event tells the page to reload, so the last one is the one
// that matters.
type EventHub struct {
	mu      sync.RWMutex
	subs    map[chan Event]struct{}
	buffer  int
	dropped atomic.Uint64
}

// NewEventHub returns a hub with DefaultBuffer slots per subscriber.
func NewEventHub() *EventHub {
	return NewEventHubWithBuffer(DefaultBuffer)
}

// NewEventHubWithBuffer returns a hub with buffer slots per subscriber. A
// buffer below 1 is raised to 1.
func NewEventHubWithBuffer(buffer int) *EventHub {
	if buffer < 1 {
		buffer = 1
	}
	return &EventHub{
		subs:   make(map[chan Event]struct{}),
		buffer: buffer,
	}
}

// Subscribe opens a subscription. Release it with Unsubscribe.
func (h *EventHub) Subscribe() chan Event {
	ch := make(chan Event, h.buffer)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

// Unsubscribe closes ch. Unknown or already closed channels are ignored.
func (h *EventHub) Unsubscribe(ch chan Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[ch]; !ok {
		return
	}
	delete(h.subs, ch)
	close(ch)
}

// Subscribers returns the number of open subscriptions.
func (h *EventHub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Dropped returns how many events were discarded to make room for newer ones.
func (h *EventHub) Dropped() uint64 {
	return h.dropped.Load()
}

// Close closes every subscription.
func (h *EventHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		delete(h.subs, ch)
		close(ch)
	}
}

// Publish encodes payload and delivers it to every subscriber without
// blocking. Publishing on a nil hub does nothing.
func (h *EventHub) Publish(name string, payload any) {
	if h == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		logrus.WithError(err).WithField("event", name).Warn("failed to encode event")
		return
	}
	ev := Event{Name: name, Data: data}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs {
		h.deliver(ch, ev)
	}
}

func (h *EventHub) deliver(ch chan Event, ev Event) {
	for {
		select {
		case ch <- ev:
			return
		default:
		}
		// Full: discard the oldest pending event and retry.
		select {
		case <-ch:
			h.dropped.Add(1)
		default:
		}
	}
}
