// Package memory collects published enrichment events in-memory for tests
// and development.
package memory

import (
	"context"
	"fmt"
	"sync"
)

// PublishedEvent captures one publish call.
type PublishedEvent struct {
	Topic   string
	Payload any
}

// Publisher stores published events for later inspection.
type Publisher struct {
	mu     sync.RWMutex
	events []PublishedEvent
}

// New returns an empty memory Publisher.
func New() *Publisher {
	return &Publisher{}
}

// Publish records the event and returns a pseudo message ID.
func (p *Publisher) Publish(_ context.Context, topic string, payload any) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.events = append(p.events, PublishedEvent{Topic: topic, Payload: payload})
	return fmt.Sprintf("event-%d", len(p.events)), nil
}

// Events returns a copy of the recorded publishes.
func (p *Publisher) Events() []PublishedEvent {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return append([]PublishedEvent(nil), p.events...)
}

// Count reports how many events were published.
func (p *Publisher) Count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return len(p.events)
}
