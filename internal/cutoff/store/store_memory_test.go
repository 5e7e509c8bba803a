package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"rollcall/internal/cutoff/models"
	"rollcall/pkg/platform/sentinel"
)

type TokenStoreSuite struct {
	suite.Suite
	ctx   context.Context
	store *InMemoryTokenStore
}

func (s *TokenStoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = NewInMemoryTokenStore()
}

func TestTokenStoreSuite(t *testing.T) {
	suite.Run(t, new(TokenStoreSuite))
}

func (s *TokenStoreSuite) TestCreateAndFind() {
	token := &models.Token{EventID: 9, Value: "tok-abc", CreatedAt: time.Now()}
	s.Require().NoError(s.store.Create(s.ctx, token))
	s.Require().NotZero(token.ID)

	found, err := s.store.FindByValue(s.ctx, 9, "tok-abc")
	s.Require().NoError(err)
	s.Equal(token.ID, found.ID)
	s.False(found.Consumed)
}

func (s *TokenStoreSuite) TestCreateDuplicateValue() {
	s.Require().NoError(s.store.Create(s.ctx, &models.Token{EventID: 9, Value: "tok-abc"}))
	err := s.store.Create(s.ctx, &models.Token{EventID: 9, Value: "tok-abc"})
	s.ErrorIs(err, sentinel.ErrConflict)

	// Same value for a different event is a different token.
	s.NoError(s.store.Create(s.ctx, &models.Token{EventID: 10, Value: "tok-abc"}))
}

func (s *TokenStoreSuite) TestFindScopedByEvent() {
	s.Require().NoError(s.store.Create(s.ctx, &models.Token{EventID: 9, Value: "tok-abc"}))
	_, err := s.store.FindByValue(s.ctx, 10, "tok-abc")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *TokenStoreSuite) TestConsumeOnce() {
	token := &models.Token{EventID: 9, Value: "tok-abc"}
	s.Require().NoError(s.store.Create(s.ctx, token))

	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	s.Require().NoError(s.store.Consume(s.ctx, token.ID, "add Ana to team Rockets", now))

	found, err := s.store.FindByValue(s.ctx, 9, "tok-abc")
	s.Require().NoError(err)
	s.True(found.Consumed)
	s.Equal("add Ana to team Rockets", found.Note)
	s.Equal(now, found.ConsumedAt)

	err = s.store.Consume(s.ctx, token.ID, "second use", now)
	s.ErrorIs(err, sentinel.ErrAlreadyUsed)
}

func (s *TokenStoreSuite) TestConsumeUnknownToken() {
	err := s.store.Consume(s.ctx, 404, "", time.Now())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

// Concurrent burns of one token: exactly one wins.
func (s *TokenStoreSuite) TestConcurrentConsumeSingleWinner() {
	token := &models.Token{EventID: 9, Value: "tok-abc"}
	s.Require().NoError(s.store.Create(s.ctx, token))

	const attempts = 32
	var wg sync.WaitGroup
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- s.store.Consume(s.ctx, token.ID, "racing", time.Now())
		}()
	}
	wg.Wait()
	close(results)

	var wins, rejections int
	for err := range results {
		switch {
		case err == nil:
			wins++
		default:
			s.ErrorIs(err, sentinel.ErrAlreadyUsed)
			rejections++
		}
	}
	s.Equal(1, wins)
	s.Equal(attempts-1, rejections)
}

func (s *TokenStoreSuite) TestListByEvent() {
	s.Require().NoError(s.store.Create(s.ctx, &models.Token{EventID: 9, Value: "a"}))
	s.Require().NoError(s.store.Create(s.ctx, &models.Token{EventID: 9, Value: "b"}))
	s.Require().NoError(s.store.Create(s.ctx, &models.Token{EventID: 10, Value: "c"}))

	tokens, err := s.store.ListByEvent(s.ctx, 9)
	s.Require().NoError(err)
	s.Len(tokens, 2)
	s.Equal("a", tokens[0].Value)
	s.Equal("b", tokens[1].Value)
}

type EventStoreSuite struct {
	suite.Suite
	ctx   context.Context
	store *InMemoryEventStore
}

func (s *EventStoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = NewInMemoryEventStore()
}

func TestEventStoreSuite(t *testing.T) {
	suite.Run(t, new(EventStoreSuite))
}

func (s *EventStoreSuite) TestCutoffEventsForTeam() {
	s.store.PutEvent(models.Event{ID: 9, Name: "Regional Finals", Status: models.EventCutoffRegistration, IsActive: true})
	s.store.PutEvent(models.Event{ID: 10, Name: "Open Qualifier", Status: models.EventOpen, IsActive: true})
	s.store.PutEvent(models.Event{ID: 11, Name: "Archived Cup", Status: models.EventCutoffRegistration, IsActive: false})
	s.store.LinkTeam(3, 9)
	s.store.LinkTeam(3, 10)
	s.store.LinkTeam(3, 11)

	refs, err := s.store.CutoffEventsForTeam(s.ctx, 3)
	s.Require().NoError(err)
	s.Equal([]models.EventRef{{ID: 9, Name: "Regional Finals"}}, refs)

	refs, err = s.store.CutoffEventsForTeam(s.ctx, 4)
	s.Require().NoError(err)
	s.Empty(refs)
}

func (s *EventStoreSuite) TestSetStatus() {
	s.store.PutEvent(models.Event{ID: 9, Status: models.EventOpen, IsActive: true})
	s.Require().NoError(s.store.SetStatus(s.ctx, 9, models.EventCutoffRegistration))

	event, err := s.store.Find(s.ctx, 9)
	s.Require().NoError(err)
	s.True(event.Cutoff())

	s.ErrorIs(s.store.SetStatus(s.ctx, 404, models.EventOpen), sentinel.ErrNotFound)
}
