// Package models defines the cutoff gate entities: events whose registration
// window is frozen, and the single-use tokens that can unfreeze one roster
// mutation.
package models

import (
	"fmt"
	"time"

	dErrors "rollcall/pkg/domain-errors"
)

// EventStatus is the lifecycle state of an event's registration window.
type EventStatus string

const (
	EventOpen   EventStatus = "OPEN"
	EventClosed EventStatus = "CLOSED"
	// EventCutoffRegistration freezes roster composition: mutations require
	// a single-use token.
	EventCutoffRegistration EventStatus = "CUTOFF_REGISTRATION"
)

// ParseEventStatus validates a wire-format event status.
func ParseEventStatus(s string) (EventStatus, error) {
	switch EventStatus(s) {
	case EventOpen, EventClosed, EventCutoffRegistration:
		return EventStatus(s), nil
	default:
		return "", dErrors.New(dErrors.CodeValidation, fmt.Sprintf("invalid event status %q", s))
	}
}

// Event is the subset of the event entity the gate cares about.
type Event struct {
	ID       int64
	Name     string
	Status   EventStatus
	IsActive bool
}

// Cutoff reports whether the event currently blocks roster mutations.
func (e Event) Cutoff() bool {
	return e.IsActive && e.Status == EventCutoffRegistration
}

// EventRef identifies a blocking event in error responses.
type EventRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Token is one single-use authorization for a roster mutation during cutoff.
// Note is filled at consumption time with a description of what the token
// paid for.
type Token struct {
	ID         int64
	EventID    int64
	Value      string
	Consumed   bool
	Note       string
	CreatedAt  time.Time
	ConsumedAt time.Time
}

// Outcome classifies a token presented for authorization.
type Outcome string

const (
	OutcomeValid           Outcome = "valid"
	OutcomeInvalid         Outcome = "invalid"
	OutcomeAlreadyConsumed Outcome = "already_consumed"
)
