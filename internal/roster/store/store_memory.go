package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"rollcall/internal/roster/models"
	"rollcall/pkg/platform/sentinel"
)

// InMemoryStore keeps teams, contestants, and memberships in memory.
type InMemoryStore struct {
	mu          sync.RWMutex
	nextID      int64
	teams       map[int64]*models.Team
	contestants map[int64]*models.Contestant
	members     map[int64]*models.Member
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		teams:       make(map[int64]*models.Team),
		contestants: make(map[int64]*models.Contestant),
		members:     make(map[int64]*models.Member),
	}
}

// PutTeam registers or replaces a team. Members are tracked separately.
func (s *InMemoryStore) PutTeam(team models.Team) {
	s.mu.Lock()
	defer s.mu.Unlock()
	team.Members = nil
	clone := team
	s.teams[team.ID] = &clone
}

// PutContestant registers or replaces a contestant.
func (s *InMemoryStore) PutContestant(contestant models.Contestant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := contestant
	s.contestants[contestant.ID] = &clone
}

func (s *InMemoryStore) FindTeam(_ context.Context, teamID int64) (*models.Team, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	team, ok := s.teams[teamID]
	if !ok {
		return nil, fmt.Errorf("team %d: %w", teamID, sentinel.ErrNotFound)
	}
	clone := *team
	for _, member := range s.members {
		if member.TeamID == teamID {
			clone.Members = append(clone.Members, *member)
		}
	}
	sort.Slice(clone.Members, func(i, j int) bool { return clone.Members[i].ID < clone.Members[j].ID })
	return &clone, nil
}

func (s *InMemoryStore) FindContestant(_ context.Context, contestantID int64) (*models.Contestant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	contestant, ok := s.contestants[contestantID]
	if !ok {
		return nil, fmt.Errorf("contestant %d: %w", contestantID, sentinel.ErrNotFound)
	}
	clone := *contestant
	return &clone, nil
}

func (s *InMemoryStore) FindMember(_ context.Context, teamID, memberID int64) (*models.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	member, ok := s.members[memberID]
	if !ok || member.TeamID != teamID {
		return nil, fmt.Errorf("member %d of team %d: %w", memberID, teamID, sentinel.ErrNotFound)
	}
	clone := *member
	return &clone, nil
}

func (s *InMemoryStore) AddMember(_ context.Context, member *models.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.members {
		if existing.TeamID == member.TeamID && existing.ContestantID == member.ContestantID {
			return fmt.Errorf("contestant %d on team %d: %w", member.ContestantID, member.TeamID, sentinel.ErrConflict)
		}
	}
	s.nextID++
	member.ID = s.nextID
	clone := *member
	s.members[member.ID] = &clone
	return nil
}

func (s *InMemoryStore) RemoveMember(_ context.Context, teamID, memberID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	member, ok := s.members[memberID]
	if !ok || member.TeamID != teamID {
		return fmt.Errorf("member %d of team %d: %w", memberID, teamID, sentinel.ErrNotFound)
	}
	delete(s.members, memberID)
	return nil
}
