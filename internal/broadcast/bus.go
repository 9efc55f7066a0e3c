// Package broadcast fans change events out to every subscriber of a topic
// except the publisher itself. The Bus covers subscribers inside one process;
// RedisBridge extends delivery to sibling processes over pub/sub channels.
package broadcast

import (
	"context"
	"sync"

	"github.com/campaignhub/backend/domain"
)

// Handler receives one event per publish, in publish order. Delivery may
// duplicate across transports, so handlers must be idempotent.
type Handler func(domain.Event)

// Broadcaster is the publish/subscribe surface the content services use.
type Broadcaster interface {
	// Publish delivers ev to all current subscribers on topic whose origin
	// differs from ev.Origin. The publisher updates its own state directly
	// and never observes its own events.
	Publish(ctx context.Context, topic string, ev domain.Event) error
	// Subscribe registers a handler for events published after this call.
	// There is no replay of history. The returned function unsubscribes.
	Subscribe(topic, origin string, h Handler) (func(), error)
}

type subscription struct {
	id      int64
	origin  string
	handler Handler
}

// Bus is a process-wide topic registry with explicit subscribe/unsubscribe
// lifecycle. Dispatch is synchronous, so one publisher's events arrive in
// publish order.
type Bus struct {
	mu     sync.RWMutex
	nextID int64
	subs   map[string][]*subscription
}

// NewBus creates an empty in-process bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[string][]*subscription)}
}

// Publish delivers ev to every subscriber on topic except those registered
// with the event's own origin.
func (b *Bus) Publish(_ context.Context, topic string, ev domain.Event) error {
	b.mu.RLock()
	targets := make([]*subscription, 0, len(b.subs[topic]))
	for _, sub := range b.subs[topic] {
		if ev.Origin != "" && sub.origin == ev.Origin {
			continue
		}
		targets = append(targets, sub)
	}
	b.mu.RUnlock()

	for _, sub := range targets {
		sub.handler(ev)
	}
	return nil
}

// Subscribe registers a handler under the given origin. Events published with
// that origin are not delivered back to it.
func (b *Bus) Subscribe(topic, origin string, h Handler) (func(), error) {
	b.mu.Lock()
	b.nextID++
	sub := &subscription{id: b.nextID, origin: origin, handler: h}
	b.subs[topic] = append(b.subs[topic], sub)
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		list := b.subs[topic]
		for i, candidate := range list {
			if candidate.id == sub.id {
				b.subs[topic] = append(list[:i], list[i+1:]...)
				break
			}
		}
		if len(b.subs[topic]) == 0 {
			delete(b.subs, topic)
		}
	}, nil
}

// SubscriberCount reports how many handlers are attached to a topic.
func (b *Bus) SubscriberCount(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}
