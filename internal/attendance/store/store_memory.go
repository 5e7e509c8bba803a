package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"rollcall/internal/attendance/models"
	"rollcall/pkg/platform/sentinel"
)

// groupKey addresses the get-or-create path for team/contingent rows.
type groupKey struct {
	kind     models.Kind
	entityID int64
	eventID  int64
}

// InMemoryStore keeps attendance records in memory. It intentionally favors
// clarity over performance.
type InMemoryStore struct {
	mu      sync.RWMutex
	nextID  int64
	records map[models.Kind]map[int64]*models.Record
	groups  map[groupKey]int64
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		records: map[models.Kind]map[int64]*models.Record{
			models.KindContestant: {},
			models.KindManager:    {},
			models.KindTeam:       {},
			models.KindContingent: {},
		},
		groups: make(map[groupKey]int64),
	}
}

func (s *InMemoryStore) Create(_ context.Context, record *models.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	record.ID = s.nextID
	clone := *record
	s.records[record.Kind][record.ID] = &clone
	// Team and contingent rows are unique per (entity, event).
	if record.Kind == models.KindTeam || record.Kind == models.KindContingent {
		s.groups[groupKey{record.Kind, record.EntityID, record.EventID}] = record.ID
	}
	return nil
}

func (s *InMemoryStore) Find(_ context.Context, kind models.Kind, recordID int64) (*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[kind][recordID]
	if !ok {
		return nil, fmt.Errorf("attendance record %s/%d: %w", kind, recordID, sentinel.ErrNotFound)
	}
	clone := *record
	return &clone, nil
}

func (s *InMemoryStore) SetStatus(_ context.Context, kind models.Kind, recordID int64, status models.Status, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[kind][recordID]
	if !ok {
		return fmt.Errorf("attendance record %s/%d: %w", kind, recordID, sentinel.ErrNotFound)
	}
	record.ApplyStatus(status, now)
	return nil
}

func (s *InMemoryStore) SetNote(_ context.Context, kind models.Kind, recordID int64, note string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[kind][recordID]
	if !ok {
		return fmt.Errorf("attendance record %s/%d: %w", kind, recordID, sentinel.ErrNotFound)
	}
	record.Note = note
	return nil
}

func (s *InMemoryStore) UpsertGroupPresent(_ context.Context, kind models.Kind, entityID, contingentID, eventID int64, hashcode string, now time.Time) error {
	if kind != models.KindTeam && kind != models.KindContingent {
		return fmt.Errorf("upsert group for kind %s: %w", kind, sentinel.ErrInvalidState)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := groupKey{kind, entityID, eventID}
	if id, ok := s.groups[key]; ok {
		s.records[kind][id].ApplyStatus(models.StatusPresent, now)
		return nil
	}

	s.nextID++
	record := &models.Record{
		ID:           s.nextID,
		Kind:         kind,
		EntityID:     entityID,
		ContingentID: contingentID,
		EventID:      eventID,
		Hashcode:     hashcode,
		Status:       models.StatusNotPresent,
		CreatedAt:    now,
	}
	record.ApplyStatus(models.StatusPresent, now)
	s.records[kind][record.ID] = record
	s.groups[key] = record.ID
	return nil
}

func (s *InMemoryStore) MarkContingentPresent(_ context.Context, kind models.Kind, contingentID, eventID int64, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var updated int64
	for _, record := range s.records[kind] {
		if record.ContingentID == contingentID && record.EventID == eventID {
			record.ApplyStatus(models.StatusPresent, now)
			updated++
		}
	}
	return updated, nil
}

func (s *InMemoryStore) List(_ context.Context, kind models.Kind, eventID int64, filter Filter) ([]models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Record
	for _, record := range s.records[kind] {
		if record.EventID != eventID {
			continue
		}
		if filter.StateID != 0 && record.StateID != filter.StateID {
			continue
		}
		if filter.ContestGroup != "" && record.ContestGroup != filter.ContestGroup {
			continue
		}
		out = append(out, *record)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
