// Package store provides the token ledger and the event lookup backing the
// cutoff gate, with in-memory, PostgreSQL, and Redis implementations.
package store

import (
	"context"
	"time"

	"rollcall/internal/cutoff/models"
)

// TokenStore is the single-use token ledger.
//
// Consume is the single write path for burning a token and MUST be an atomic
// conditional update: of any number of concurrent Consume calls for the same
// token, exactly one succeeds and the rest get sentinel.ErrAlreadyUsed. The
// check-then-consume sequence is never split across calls.
type TokenStore interface {
	Create(ctx context.Context, token *models.Token) error
	FindByValue(ctx context.Context, eventID int64, value string) (*models.Token, error)
	ListByEvent(ctx context.Context, eventID int64) ([]models.Token, error)
	Consume(ctx context.Context, tokenID int64, note string, now time.Time) error
}

// EventStore resolves events and their cutoff state.
type EventStore interface {
	Find(ctx context.Context, eventID int64) (*models.Event, error)
	SetStatus(ctx context.Context, eventID int64, status models.EventStatus) error
	// CutoffEventsForTeam walks the team's contest registrations and returns
	// every active event currently in CUTOFF_REGISTRATION.
	CutoffEventsForTeam(ctx context.Context, teamID int64) ([]models.EventRef, error)
}
