package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"rollcall/internal/cutoff/models"
	"rollcall/pkg/platform/sentinel"
)

// InMemoryTokenStore keeps the token ledger in memory. Consume is a
// compare-and-set under the store lock.
type InMemoryTokenStore struct {
	mu     sync.RWMutex
	nextID int64
	tokens map[int64]*models.Token
}

func NewInMemoryTokenStore() *InMemoryTokenStore {
	return &InMemoryTokenStore{tokens: make(map[int64]*models.Token)}
}

func (s *InMemoryTokenStore) Create(_ context.Context, token *models.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.tokens {
		if existing.EventID == token.EventID && existing.Value == token.Value {
			return fmt.Errorf("token %q for event %d: %w", token.Value, token.EventID, sentinel.ErrConflict)
		}
	}
	s.nextID++
	token.ID = s.nextID
	clone := *token
	s.tokens[token.ID] = &clone
	return nil
}

func (s *InMemoryTokenStore) FindByValue(_ context.Context, eventID int64, value string) (*models.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, token := range s.tokens {
		if token.EventID == eventID && token.Value == value {
			clone := *token
			return &clone, nil
		}
	}
	return nil, fmt.Errorf("token for event %d: %w", eventID, sentinel.ErrNotFound)
}

func (s *InMemoryTokenStore) ListByEvent(_ context.Context, eventID int64) ([]models.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Token
	for _, token := range s.tokens {
		if token.EventID == eventID {
			out = append(out, *token)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *InMemoryTokenStore) Consume(_ context.Context, tokenID int64, note string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	token, ok := s.tokens[tokenID]
	if !ok {
		return fmt.Errorf("token %d: %w", tokenID, sentinel.ErrNotFound)
	}
	if token.Consumed {
		return fmt.Errorf("token %d: %w", tokenID, sentinel.ErrAlreadyUsed)
	}
	token.Consumed = true
	token.Note = note
	token.ConsumedAt = now
	return nil
}

// teamEvents maps a team to the events it is registered for. The memory
// store models the contest chain as a flat association.
type InMemoryEventStore struct {
	mu         sync.RWMutex
	events     map[int64]*models.Event
	teamEvents map[int64][]int64
}

func NewInMemoryEventStore() *InMemoryEventStore {
	return &InMemoryEventStore{
		events:     make(map[int64]*models.Event),
		teamEvents: make(map[int64][]int64),
	}
}

// PutEvent registers or replaces an event.
func (s *InMemoryEventStore) PutEvent(event models.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := event
	s.events[event.ID] = &clone
}

// LinkTeam associates a team with an event.
func (s *InMemoryEventStore) LinkTeam(teamID, eventID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.teamEvents[teamID] = append(s.teamEvents[teamID], eventID)
}

func (s *InMemoryEventStore) Find(_ context.Context, eventID int64) (*models.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	event, ok := s.events[eventID]
	if !ok {
		return nil, fmt.Errorf("event %d: %w", eventID, sentinel.ErrNotFound)
	}
	clone := *event
	return &clone, nil
}

func (s *InMemoryEventStore) SetStatus(_ context.Context, eventID int64, status models.EventStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	event, ok := s.events[eventID]
	if !ok {
		return fmt.Errorf("event %d: %w", eventID, sentinel.ErrNotFound)
	}
	event.Status = status
	return nil
}

func (s *InMemoryEventStore) CutoffEventsForTeam(_ context.Context, teamID int64) ([]models.EventRef, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var refs []models.EventRef
	for _, eventID := range s.teamEvents[teamID] {
		event, ok := s.events[eventID]
		if ok && event.Cutoff() {
			refs = append(refs, models.EventRef{ID: event.ID, Name: event.Name})
		}
	}
	return refs, nil
}
