package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cutoffmodels "rollcall/internal/cutoff/models"
	cutoffservice "rollcall/internal/cutoff/service"
	cutoffstore "rollcall/internal/cutoff/store"
	"rollcall/internal/roster/models"
	"rollcall/internal/roster/store"
	dErrors "rollcall/pkg/domain-errors"
	"rollcall/pkg/platform/tx"
	"rollcall/pkg/requestcontext"
)

type fixture struct {
	service *Service
	roster  *store.InMemoryStore
	tokens  *cutoffstore.InMemoryTokenStore
	events  *cutoffstore.InMemoryEventStore
}

// newFixture wires team 3 (contingent 2) and contestant 42 (same contingent).
func newFixture(t *testing.T) *fixture {
	t.Helper()
	roster := store.NewInMemoryStore()
	roster.PutTeam(models.Team{ID: 3, Name: "Rockets", ContingentID: 2, MaxMembers: 4})
	roster.PutContestant(models.Contestant{ID: 42, Name: "Ana", ContingentID: 2})

	tokens := cutoffstore.NewInMemoryTokenStore()
	events := cutoffstore.NewInMemoryEventStore()
	gate := cutoffservice.NewGate(tokens, events)

	return &fixture{
		service: New(roster, gate, tx.NoopRunner{}),
		roster:  roster,
		tokens:  tokens,
		events:  events,
	}
}

func (f *fixture) freeze(t *testing.T) {
	t.Helper()
	f.events.PutEvent(cutoffmodels.Event{ID: 9, Name: "Regional Finals", Status: cutoffmodels.EventCutoffRegistration, IsActive: true})
	f.events.LinkTeam(3, 9)
}

func (f *fixture) mintToken(t *testing.T) *cutoffmodels.Token {
	t.Helper()
	token := &cutoffmodels.Token{EventID: 9, Value: "tok-fresh", CreatedAt: time.Now()}
	require.NoError(t, f.tokens.Create(context.Background(), token))
	return token
}

func TestAddMemberWithoutCutoff(t *testing.T) {
	f := newFixture(t)

	member, err := f.service.AddMember(context.Background(), AddMemberInput{TeamID: 3, ContestantID: 42})
	require.NoError(t, err)
	assert.Equal(t, "Ana", member.Name)

	team, err := f.roster.FindTeam(context.Background(), 3)
	require.NoError(t, err)
	assert.True(t, team.HasMember(42))
}

func TestAddMemberDuringCutoffWithoutToken(t *testing.T) {
	f := newFixture(t)
	f.freeze(t)

	_, err := f.service.AddMember(context.Background(), AddMemberInput{TeamID: 3, ContestantID: 42})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))

	details := dErrors.DetailsOf(err)
	require.NotNil(t, details)
	assert.Equal(t, true, details["requiresToken"])
	assert.Equal(t, []cutoffmodels.EventRef{{ID: 9, Name: "Regional Finals"}}, details["cutoffEvents"])

	team, err := f.roster.FindTeam(context.Background(), 3)
	require.NoError(t, err)
	assert.Empty(t, team.Members, "rejection must not mutate the roster")
}

func TestAddMemberDuringCutoffWithToken(t *testing.T) {
	f := newFixture(t)
	f.freeze(t)
	f.mintToken(t)

	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(context.Background(), now)

	member, err := f.service.AddMember(ctx, AddMemberInput{TeamID: 3, ContestantID: 42, Token: "tok-fresh"})
	require.NoError(t, err)
	assert.Equal(t, now, member.JoinedAt)

	burnt, err := f.tokens.FindByValue(context.Background(), 9, "tok-fresh")
	require.NoError(t, err)
	assert.True(t, burnt.Consumed)
	assert.Contains(t, burnt.Note, "Ana")
	assert.Contains(t, burnt.Note, "Rockets")
}

func TestAddMemberRejectsBadTokens(t *testing.T) {
	f := newFixture(t)
	f.freeze(t)
	token := f.mintToken(t)
	require.NoError(t, f.tokens.Consume(context.Background(), token.ID, "spent earlier", time.Now()))

	_, err := f.service.AddMember(context.Background(), AddMemberInput{TeamID: 3, ContestantID: 42, Token: "tok-fresh"})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
	assert.Contains(t, err.Error(), "already consumed")

	_, err = f.service.AddMember(context.Background(), AddMemberInput{TeamID: 3, ContestantID: 42, Token: "tok-forged"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid token")
}

func TestAddMemberValidationRunsBeforeConsumption(t *testing.T) {
	f := newFixture(t)
	f.freeze(t)
	f.mintToken(t)
	f.roster.PutContestant(models.Contestant{ID: 50, Name: "Bo", ContingentID: 99})

	// Cross-contingent contestant: rejected after the gate, token untouched.
	_, err := f.service.AddMember(context.Background(), AddMemberInput{TeamID: 3, ContestantID: 50, Token: "tok-fresh"})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))

	token, findErr := f.tokens.FindByValue(context.Background(), 9, "tok-fresh")
	require.NoError(t, findErr)
	assert.False(t, token.Consumed, "a rejecting validation must not burn the token")
}

func TestAddMemberDuplicate(t *testing.T) {
	f := newFixture(t)
	_, err := f.service.AddMember(context.Background(), AddMemberInput{TeamID: 3, ContestantID: 42})
	require.NoError(t, err)

	_, err = f.service.AddMember(context.Background(), AddMemberInput{TeamID: 3, ContestantID: 42})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
}

func TestAddMemberCapacity(t *testing.T) {
	f := newFixture(t)
	f.roster.PutTeam(models.Team{ID: 4, Name: "Duo", ContingentID: 2, MaxMembers: 4, ContestMaxMembers: 1})
	f.roster.PutContestant(models.Contestant{ID: 43, Name: "Ben", ContingentID: 2})

	_, err := f.service.AddMember(context.Background(), AddMemberInput{TeamID: 4, ContestantID: 42})
	require.NoError(t, err)

	// ContestMaxMembers overrides the team's own limit.
	_, err = f.service.AddMember(context.Background(), AddMemberInput{TeamID: 4, ContestantID: 43})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	assert.Contains(t, err.Error(), "full")
}

func TestAddMemberUnknownTeamOrContestant(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.AddMember(context.Background(), AddMemberInput{TeamID: 404, ContestantID: 42})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))

	_, err = f.service.AddMember(context.Background(), AddMemberInput{TeamID: 3, ContestantID: 404})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func TestRemoveMemberDuringCutoff(t *testing.T) {
	f := newFixture(t)
	member, err := f.service.AddMember(context.Background(), AddMemberInput{TeamID: 3, ContestantID: 42})
	require.NoError(t, err)

	f.freeze(t)

	err = f.service.RemoveMember(context.Background(), RemoveMemberInput{TeamID: 3, MemberID: member.ID})
	require.Error(t, err)
	assert.Equal(t, true, dErrors.DetailsOf(err)["requiresToken"])

	f.mintToken(t)
	err = f.service.RemoveMember(context.Background(), RemoveMemberInput{TeamID: 3, MemberID: member.ID, Token: "tok-fresh"})
	require.NoError(t, err)

	team, err := f.roster.FindTeam(context.Background(), 3)
	require.NoError(t, err)
	assert.Empty(t, team.Members)

	burnt, err := f.tokens.FindByValue(context.Background(), 9, "tok-fresh")
	require.NoError(t, err)
	assert.True(t, burnt.Consumed)
	assert.Contains(t, burnt.Note, "remove Ana from team Rockets")
}

func TestRemoveMemberUnknown(t *testing.T) {
	f := newFixture(t)
	err := f.service.RemoveMember(context.Background(), RemoveMemberInput{TeamID: 3, MemberID: 404})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}
