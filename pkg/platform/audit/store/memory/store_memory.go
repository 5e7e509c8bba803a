// Package memory provides an in-memory audit store for tests and
// single-process deployments.
package memory

import (
	"context"
	"sync"

	audit "rollcall/pkg/platform/audit"
)

// InMemoryStore keeps appended events in order. It intentionally favors
// clarity over performance.
type InMemoryStore struct {
	mu     sync.RWMutex
	events []audit.Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// List returns a copy of all appended events, oldest first.
func (s *InMemoryStore) List(_ context.Context) []audit.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]audit.Event, len(s.events))
	copy(out, s.events)
	return out
}

// ListByAction filters appended events by action name.
func (s *InMemoryStore) ListByAction(_ context.Context, action string) []audit.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []audit.Event
	for _, e := range s.events {
		if e.Action == action {
			out = append(out, e)
		}
	}
	return out
}
