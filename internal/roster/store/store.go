// Package store persists teams and their members, with in-memory and
// PostgreSQL implementations.
package store

import (
	"context"

	"rollcall/internal/roster/models"
)

// Store is the roster persistence boundary. AddMember and RemoveMember are
// called inside the transaction that also burns the authorizing token, so
// the PostgreSQL implementation joins the transaction carried in context.
type Store interface {
	// FindTeam loads the team with its members and contest limits.
	FindTeam(ctx context.Context, teamID int64) (*models.Team, error)
	FindContestant(ctx context.Context, contestantID int64) (*models.Contestant, error)
	FindMember(ctx context.Context, teamID, memberID int64) (*models.Member, error)
	// AddMember returns sentinel.ErrConflict when the contestant already
	// holds a seat on the team.
	AddMember(ctx context.Context, member *models.Member) error
	RemoveMember(ctx context.Context, teamID, memberID int64) error
}
