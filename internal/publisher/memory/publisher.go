// Package memory records job lifecycle events in process for tests and the
// dev configuration, standing in for the Pub/Sub publisher.
package memory

import (
	"context"
	"fmt"
	"sync"
)

// Publisher keeps every published event so tests can assert on what a crawl
// emitted and in which order.
type Publisher struct {
	mu     sync.RWMutex
	events []Event
}

// Event is one recorded publish call.
type Event struct {
	Topic   string
	Payload any
}

// New returns an empty Publisher.
func New() *Publisher {
	return &Publisher{}
}

// Publish records the event and returns a pseudo message ID.
func (p *Publisher) Publish(_ context.Context, topic string, payload any) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, Event{Topic: topic, Payload: payload})
	return fmt.Sprintf("memory-%d", len(p.events)), nil
}

// Messages returns all recorded events in publish order.
func (p *Publisher) Messages() []Event {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Event, len(p.events))
	copy(out, p.events)
	return out
}

// MessagesFor returns the recorded events published to one topic.
func (p *Publisher) MessagesFor(topic string) []Event {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []Event
	for _, ev := range p.events {
		if ev.Topic == topic {
			out = append(out, ev)
		}
	}
	return out
}
