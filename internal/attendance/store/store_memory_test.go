package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"rollcall/internal/attendance/models"
	"rollcall/pkg/platform/sentinel"
)

type InMemoryStoreSuite struct {
	suite.Suite
	store *InMemoryStore
	now   time.Time
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = NewInMemoryStore()
	s.now = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
}

func (s *InMemoryStoreSuite) TestCreateAndFind() {
	record := &models.Record{
		Kind:         models.KindContestant,
		EntityID:     42,
		EventID:      1,
		ContingentID: 5,
		TeamID:       7,
		Status:       models.StatusNotPresent,
	}
	require.NoError(s.T(), s.store.Create(context.Background(), record))
	require.NotZero(s.T(), record.ID)

	found, err := s.store.Find(context.Background(), models.KindContestant, record.ID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), int64(42), found.EntityID)
	assert.Equal(s.T(), int64(7), found.TeamID)
}

func (s *InMemoryStoreSuite) TestFindNotFound() {
	_, err := s.store.Find(context.Background(), models.KindManager, 999)
	assert.ErrorIs(s.T(), err, sentinel.ErrNotFound)
}

func (s *InMemoryStoreSuite) TestSetStatusStampsOnlyPresent() {
	record := &models.Record{Kind: models.KindContestant, EntityID: 1, EventID: 1, Status: models.StatusNotPresent}
	require.NoError(s.T(), s.store.Create(context.Background(), record))

	require.NoError(s.T(), s.store.SetStatus(context.Background(), models.KindContestant, record.ID, models.StatusPresent, s.now))
	found, err := s.store.Find(context.Background(), models.KindContestant, record.ID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), models.StatusPresent, found.Status)
	assert.Equal(s.T(), s.now, found.AttendanceDate)

	later := s.now.Add(time.Hour)
	require.NoError(s.T(), s.store.SetStatus(context.Background(), models.KindContestant, record.ID, models.StatusNotPresent, later))
	found, err = s.store.Find(context.Background(), models.KindContestant, record.ID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), models.StatusNotPresent, found.Status)
	// The prior check-in stamp survives the reset.
	assert.Equal(s.T(), s.now, found.AttendanceDate)
}

func (s *InMemoryStoreSuite) TestUpsertGroupPresentCreatesThenUpdates() {
	err := s.store.UpsertGroupPresent(context.Background(), models.KindTeam, 7, 5, 1, "team-7-1-1", s.now)
	require.NoError(s.T(), err)

	records, err := s.store.List(context.Background(), models.KindTeam, 1, Filter{})
	require.NoError(s.T(), err)
	require.Len(s.T(), records, 1)
	assert.Equal(s.T(), models.StatusPresent, records[0].Status)
	assert.Equal(s.T(), "team-7-1-1", records[0].Hashcode)

	later := s.now.Add(time.Minute)
	err = s.store.UpsertGroupPresent(context.Background(), models.KindTeam, 7, 5, 1, "team-7-1-2", later)
	require.NoError(s.T(), err)

	records, err = s.store.List(context.Background(), models.KindTeam, 1, Filter{})
	require.NoError(s.T(), err)
	require.Len(s.T(), records, 1, "second upsert must not create a duplicate row")
	assert.Equal(s.T(), later, records[0].AttendanceDate)
	assert.Equal(s.T(), "team-7-1-1", records[0].Hashcode, "hashcode is set only at creation")
}

func (s *InMemoryStoreSuite) TestUpsertGroupPresentRejectsNonGroupKinds() {
	err := s.store.UpsertGroupPresent(context.Background(), models.KindContestant, 1, 1, 1, "x", s.now)
	assert.ErrorIs(s.T(), err, sentinel.ErrInvalidState)
}

func (s *InMemoryStoreSuite) TestMarkContingentPresent() {
	for _, entityID := range []int64{20, 21, 22} {
		require.NoError(s.T(), s.store.Create(context.Background(), &models.Record{
			Kind: models.KindContestant, EntityID: entityID, EventID: 1, ContingentID: 5,
			Status: models.StatusNotPresent,
		}))
	}
	// Different contingent, untouched by the bulk update.
	require.NoError(s.T(), s.store.Create(context.Background(), &models.Record{
		Kind: models.KindContestant, EntityID: 30, EventID: 1, ContingentID: 6,
		Status: models.StatusNotPresent,
	}))

	updated, err := s.store.MarkContingentPresent(context.Background(), models.KindContestant, 5, 1, s.now)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), int64(3), updated)

	records, err := s.store.List(context.Background(), models.KindContestant, 1, Filter{})
	require.NoError(s.T(), err)
	for _, record := range records {
		if record.ContingentID == 5 {
			assert.Equal(s.T(), models.StatusPresent, record.Status)
		} else {
			assert.Equal(s.T(), models.StatusNotPresent, record.Status)
		}
	}
}

func (s *InMemoryStoreSuite) TestListFilters() {
	require.NoError(s.T(), s.store.Create(context.Background(), &models.Record{
		Kind: models.KindContestant, EntityID: 1, EventID: 1, StateID: 3, ContestGroup: "primary",
	}))
	require.NoError(s.T(), s.store.Create(context.Background(), &models.Record{
		Kind: models.KindContestant, EntityID: 2, EventID: 1, StateID: 4, ContestGroup: "secondary",
	}))

	records, err := s.store.List(context.Background(), models.KindContestant, 1, Filter{StateID: 3})
	require.NoError(s.T(), err)
	require.Len(s.T(), records, 1)
	assert.Equal(s.T(), int64(1), records[0].EntityID)

	records, err = s.store.List(context.Background(), models.KindContestant, 1, Filter{ContestGroup: "secondary"})
	require.NoError(s.T(), err)
	require.Len(s.T(), records, 1)
	assert.Equal(s.T(), int64(2), records[0].EntityID)
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}
