package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rollcall/internal/attendance/models"
	"rollcall/internal/attendance/store"
	dErrors "rollcall/pkg/domain-errors"
	"rollcall/pkg/requestcontext"
)

func fixedCtx(t time.Time) context.Context {
	return requestcontext.WithTime(context.Background(), t)
}

func mustCreate(t *testing.T, s *store.InMemoryStore, record *models.Record) *models.Record {
	t.Helper()
	if record.Status == "" {
		record.Status = models.StatusNotPresent
	}
	require.NoError(t, s.Create(context.Background(), record))
	return record
}

func TestContestantPresentCascadesToTeam(t *testing.T) {
	s := store.NewInMemoryStore()
	reconciler := NewReconciler(s)
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	// Contestant id=42, team id=7, event id=1, no prior team attendance row.
	record := mustCreate(t, s, &models.Record{
		Kind: models.KindContestant, EntityID: 42, EventID: 1, ContingentID: 5, TeamID: 7,
	})

	result, err := reconciler.SetAttendance(fixedCtx(now), SetAttendanceInput{
		Kind: models.KindContestant, RecordID: record.ID, EventID: 1, Status: models.StatusPresent,
	})
	require.NoError(t, err)
	assert.Nil(t, result.Broadcast)

	updated, err := s.Find(context.Background(), models.KindContestant, record.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPresent, updated.Status)
	assert.Equal(t, now, updated.AttendanceDate)

	teams, err := s.List(context.Background(), models.KindTeam, 1, store.Filter{})
	require.NoError(t, err)
	require.Len(t, teams, 1, "a team row must be created for (7,1)")
	assert.Equal(t, int64(7), teams[0].EntityID)
	assert.Equal(t, models.StatusPresent, teams[0].Status)
	assert.Equal(t, models.TeamHashcode(7, 1, now), teams[0].Hashcode)
}

func TestContestantPresentUpdatesExistingTeamRow(t *testing.T) {
	s := store.NewInMemoryStore()
	reconciler := NewReconciler(s)
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	record := mustCreate(t, s, &models.Record{
		Kind: models.KindContestant, EntityID: 42, EventID: 1, ContingentID: 5, TeamID: 7,
	})
	team := mustCreate(t, s, &models.Record{
		Kind: models.KindTeam, EntityID: 7, EventID: 1, ContingentID: 5,
	})

	_, err := reconciler.SetAttendance(fixedCtx(now), SetAttendanceInput{
		Kind: models.KindContestant, RecordID: record.ID, EventID: 1, Status: models.StatusPresent,
	})
	require.NoError(t, err)

	updatedTeam, err := s.Find(context.Background(), models.KindTeam, team.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPresent, updatedTeam.Status)
	assert.Equal(t, now, updatedTeam.AttendanceDate)

	teams, err := s.List(context.Background(), models.KindTeam, 1, store.Filter{})
	require.NoError(t, err)
	assert.Len(t, teams, 1, "existing team row must be updated, not duplicated")
}

func TestContestantRetractionDoesNotRevertTeam(t *testing.T) {
	s := store.NewInMemoryStore()
	reconciler := NewReconciler(s)
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	record := mustCreate(t, s, &models.Record{
		Kind: models.KindContestant, EntityID: 42, EventID: 1, ContingentID: 5, TeamID: 7,
	})

	_, err := reconciler.SetAttendance(fixedCtx(now), SetAttendanceInput{
		Kind: models.KindContestant, RecordID: record.ID, EventID: 1, Status: models.StatusPresent,
	})
	require.NoError(t, err)

	later := now.Add(10 * time.Minute)
	_, err = reconciler.SetAttendance(fixedCtx(later), SetAttendanceInput{
		Kind: models.KindContestant, RecordID: record.ID, EventID: 1, Status: models.StatusNotPresent,
	})
	require.NoError(t, err)

	updated, err := s.Find(context.Background(), models.KindContestant, record.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusNotPresent, updated.Status)
	assert.Equal(t, now, updated.AttendanceDate, "retraction keeps the prior check-in stamp")

	teams, err := s.List(context.Background(), models.KindTeam, 1, store.Filter{})
	require.NoError(t, err)
	require.Len(t, teams, 1)
	assert.Equal(t, models.StatusPresent, teams[0].Status, "one member's retraction does not un-mark the team")
}

func TestRepeatedPresentRefreshesStamp(t *testing.T) {
	s := store.NewInMemoryStore()
	reconciler := NewReconciler(s)
	first := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	second := first.Add(2 * time.Hour)

	record := mustCreate(t, s, &models.Record{
		Kind: models.KindContestant, EntityID: 42, EventID: 1, ContingentID: 5,
	})

	for _, instant := range []time.Time{first, second} {
		_, err := reconciler.SetAttendance(fixedCtx(instant), SetAttendanceInput{
			Kind: models.KindContestant, RecordID: record.ID, EventID: 1, Status: models.StatusPresent,
		})
		require.NoError(t, err)
	}

	updated, err := s.Find(context.Background(), models.KindContestant, record.ID)
	require.NoError(t, err)
	assert.Equal(t, second, updated.AttendanceDate, "repeated check-ins stamp the latest instant")
}

func TestManagerBroadcastMarksWholeContingent(t *testing.T) {
	s := store.NewInMemoryStore()
	reconciler := NewReconciler(s)
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	// Contingent id=5: managers [10, 11], contestants [20, 21, 22], event 1.
	manager10 := mustCreate(t, s, &models.Record{Kind: models.KindManager, EntityID: 10, EventID: 1, ContingentID: 5})
	manager11 := mustCreate(t, s, &models.Record{Kind: models.KindManager, EntityID: 11, EventID: 1, ContingentID: 5})
	for _, id := range []int64{20, 21, 22} {
		mustCreate(t, s, &models.Record{Kind: models.KindContestant, EntityID: id, EventID: 1, ContingentID: 5})
	}

	result, err := reconciler.SetAttendance(fixedCtx(now), SetAttendanceInput{
		Kind: models.KindManager, RecordID: manager10.ID, EventID: 1,
		Status: models.StatusPresent, ContingentID: 5,
	})
	require.NoError(t, err)
	require.NotNil(t, result.Broadcast)
	assert.False(t, result.Broadcast.Partial())

	for _, recordID := range []int64{manager10.ID, manager11.ID} {
		record, err := s.Find(context.Background(), models.KindManager, recordID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusPresent, record.Status)
	}

	contingents, err := s.List(context.Background(), models.KindContingent, 1, store.Filter{})
	require.NoError(t, err)
	require.Len(t, contingents, 1, "contingent row created if absent")
	assert.Equal(t, int64(5), contingents[0].EntityID)
	assert.Equal(t, models.StatusPresent, contingents[0].Status)

	contestants, err := s.List(context.Background(), models.KindContestant, 1, store.Filter{})
	require.NoError(t, err)
	require.Len(t, contestants, 3)
	for _, record := range contestants {
		assert.Equal(t, models.StatusPresent, record.Status)
	}

	// Step outcomes report how many rows each sub-step touched.
	require.Len(t, result.Broadcast.Steps, 3)
	assert.Equal(t, int64(2), result.Broadcast.Steps[0].Updated)
	assert.Equal(t, int64(1), result.Broadcast.Steps[1].Updated)
	assert.Equal(t, int64(3), result.Broadcast.Steps[2].Updated)
}

func TestManagerPresentWithoutContingentIsSingleUpdate(t *testing.T) {
	s := store.NewInMemoryStore()
	reconciler := NewReconciler(s)
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	manager10 := mustCreate(t, s, &models.Record{Kind: models.KindManager, EntityID: 10, EventID: 1, ContingentID: 5})
	manager11 := mustCreate(t, s, &models.Record{Kind: models.KindManager, EntityID: 11, EventID: 1, ContingentID: 5})

	result, err := reconciler.SetAttendance(fixedCtx(now), SetAttendanceInput{
		Kind: models.KindManager, RecordID: manager10.ID, EventID: 1, Status: models.StatusPresent,
	})
	require.NoError(t, err)
	assert.Nil(t, result.Broadcast)

	other, err := s.Find(context.Background(), models.KindManager, manager11.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusNotPresent, other.Status)
}

func TestBroadcastIsIdempotent(t *testing.T) {
	s := store.NewInMemoryStore()
	reconciler := NewReconciler(s)
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	manager := mustCreate(t, s, &models.Record{Kind: models.KindManager, EntityID: 10, EventID: 1, ContingentID: 5})
	mustCreate(t, s, &models.Record{Kind: models.KindContestant, EntityID: 20, EventID: 1, ContingentID: 5})

	in := SetAttendanceInput{
		Kind: models.KindManager, RecordID: manager.ID, EventID: 1,
		Status: models.StatusPresent, ContingentID: 5,
	}
	_, err := reconciler.SetAttendance(fixedCtx(now), in)
	require.NoError(t, err)

	// Re-invoking completes/repeats the broadcast without duplicating rows.
	result, err := reconciler.SetAttendance(fixedCtx(now.Add(time.Minute)), in)
	require.NoError(t, err)
	assert.False(t, result.Broadcast.Partial())

	contingents, err := s.List(context.Background(), models.KindContingent, 1, store.Filter{})
	require.NoError(t, err)
	assert.Len(t, contingents, 1)
}

func TestSetAttendanceUnknownRecord(t *testing.T) {
	reconciler := NewReconciler(store.NewInMemoryStore())
	_, err := reconciler.SetAttendance(context.Background(), SetAttendanceInput{
		Kind: models.KindContestant, RecordID: 999, EventID: 1, Status: models.StatusPresent,
	})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func TestSetAttendanceValidation(t *testing.T) {
	reconciler := NewReconciler(store.NewInMemoryStore())

	_, err := reconciler.SetAttendance(context.Background(), SetAttendanceInput{
		Kind: models.KindTeam, RecordID: 1, EventID: 1, Status: models.StatusPresent,
	})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation), "team records cannot be targeted directly")

	_, err = reconciler.SetAttendance(context.Background(), SetAttendanceInput{
		Kind: models.KindContestant, RecordID: 1, EventID: 1, Status: "Maybe",
	})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestSetNote(t *testing.T) {
	s := store.NewInMemoryStore()
	reconciler := NewReconciler(s)

	record := mustCreate(t, s, &models.Record{Kind: models.KindContestant, EntityID: 42, EventID: 1})
	require.NoError(t, reconciler.SetNote(context.Background(), models.KindContestant, record.ID, "arrived late"))

	updated, err := s.Find(context.Background(), models.KindContestant, record.ID)
	require.NoError(t, err)
	assert.Equal(t, "arrived late", updated.Note)
	assert.Equal(t, models.StatusNotPresent, updated.Status, "note update never touches status")
}

func TestAttendanceLogMergesLedgers(t *testing.T) {
	s := store.NewInMemoryStore()
	reconciler := NewReconciler(s)

	mustCreate(t, s, &models.Record{Kind: models.KindContestant, EntityID: 42, EventID: 1, StateID: 3, ContestGroup: "primary"})
	mustCreate(t, s, &models.Record{Kind: models.KindManager, EntityID: 10, EventID: 1, StateID: 4})
	mustCreate(t, s, &models.Record{Kind: models.KindContestant, EntityID: 50, EventID: 2})

	log, err := reconciler.AttendanceLog(context.Background(), 1, LogFilter{})
	require.NoError(t, err)
	assert.Len(t, log.Records, 2)
	assert.ElementsMatch(t, []int64{3, 4}, log.States)
	assert.Equal(t, []string{"primary"}, log.ContestGroups)

	managersOnly, err := reconciler.AttendanceLog(context.Background(), 1, LogFilter{Kind: models.KindManager})
	require.NoError(t, err)
	require.Len(t, managersOnly.Records, 1)
	assert.Equal(t, models.KindManager, managersOnly.Records[0].Kind)
}
