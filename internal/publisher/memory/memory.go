// Package memory is the in-process notification backend, used when no Pub/Sub
// topic is configured and in tests. It keeps every batch notice so callers can
// inspect what a run would have announced.
package memory

import (
	"context"
	"fmt"
	"sync"
)

// Notice is one recorded publish call: the topic and the payload handed over,
// typically a sync batch summary.
type Notice struct {
	Topic   string
	Payload any
}

// Publisher collects notices in publish order. Safe for concurrent use.
type Publisher struct {
	mu      sync.Mutex
	notices []Notice
}

// New returns an empty Publisher.
func New() *Publisher {
	return &Publisher{}
}

// Publish records the notice. The returned id ("mem-1", "mem-2", ...) is
// synthetic but stable, so callers that log message ids see something useful.
func (p *Publisher) Publish(_ context.Context, topic string, payload any) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notices = append(p.notices, Notice{Topic: topic, Payload: payload})
	return fmt.Sprintf("mem-%d", len(p.notices)), nil
}

// Notices returns a copy of everything published so far.
func (p *Publisher) Notices() []Notice {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Notice(nil), p.notices...)
}
