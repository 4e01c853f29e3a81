package events

import (
	"context"
	"sync"
)

// MemoryPublisher records published events for test assertions.
type MemoryPublisher struct {
	mu     sync.Mutex
	Events []PublishedEvent
}

// PublishedEvent is one recorded publish call.
type PublishedEvent struct {
	Subject string
	Payload any
}

var _ Publisher = (*MemoryPublisher)(nil)

func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{}
}

func (p *MemoryPublisher) Publish(ctx context.Context, subject string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Events = append(p.Events, PublishedEvent{Subject: subject, Payload: payload})
	return nil
}

func (p *MemoryPublisher) Close() {}

// BySubject returns the recorded events published to subject.
func (p *MemoryPublisher) BySubject(subject string) []PublishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []PublishedEvent
	for _, e := range p.Events {
		if e.Subject == subject {
			out = append(out, e)
		}
	}
	return out
}

// NopPublisher discards all events. Used when no broker is configured.
type NopPublisher struct{}

var _ Publisher = (*NopPublisher)(nil)

func NewNopPublisher() *NopPublisher { return &NopPublisher{} }

func (NopPublisher) Publish(ctx context.Context, subject string, payload any) error { return nil }

func (NopPublisher) Close() {}
