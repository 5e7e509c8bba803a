// Package store persists attendance records. Implementations come in memory
// (tests, dev) and postgres variants behind one interface.
//
// Error contract: methods return sentinel.ErrNotFound when the addressed
// record does not exist, nil on success, and wrapped errors with context for
// infrastructure failures. Services translate sentinels into domain errors.
package store

import (
	"context"
	"time"

	"rollcall/internal/attendance/models"
)

// Filter narrows List results. Zero values mean "no filter".
type Filter struct {
	StateID      int64
	ContestGroup string
}

// Store is the attendance record store.
type Store interface {
	// Create inserts a record and assigns its ID.
	Create(ctx context.Context, record *models.Record) error

	// Find returns the record with the given id in the kind's ledger.
	Find(ctx context.Context, kind models.Kind, recordID int64) (*models.Record, error)

	// SetStatus applies a status transition to a single record. Present
	// stamps attendance date/time with now; Not Present leaves the prior
	// stamp untouched.
	SetStatus(ctx context.Context, kind models.Kind, recordID int64, status models.Status, now time.Time) error

	// SetNote updates the free-text note without touching status.
	SetNote(ctx context.Context, kind models.Kind, recordID int64, note string) error

	// UpsertGroupPresent marks the team or contingent record for
	// (entityID, eventID) as Present, creating it with the given hashcode if
	// absent. The (entityID, eventID) key is what makes concurrent first-time
	// check-ins converge on one row.
	UpsertGroupPresent(ctx context.Context, kind models.Kind, entityID, contingentID, eventID int64, hashcode string, now time.Time) error

	// MarkContingentPresent marks every record of the kind belonging to
	// (contingentID, eventID) as Present and reports how many rows changed.
	MarkContingentPresent(ctx context.Context, kind models.Kind, contingentID, eventID int64, now time.Time) (int64, error)

	// List returns all records of the kind for an event, filtered.
	List(ctx context.Context, kind models.Kind, eventID int64, filter Filter) ([]models.Record, error)
}
