// Package audit captures key domain actions as transport-agnostic events so
// stores and sinks can fan out without coupling services to any backend.
package audit

import "time"

// EventCategory classifies audit events by their primary purpose. Categories
// route events to different retention policies and sinks.
type EventCategory string

const (
	// CategoryCompliance covers events with organizational significance:
	// roster changes during a registration freeze, token consumption.
	CategoryCompliance EventCategory = "compliance"

	// CategoryOperations covers events useful for debugging and operational
	// visibility: attendance marks, partial broadcast failures.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions.
type Event struct {
	Category  EventCategory
	Timestamp time.Time
	Action    string
	// Actor is the operator (email) who performed the action.
	Actor string
	// Subject identifies the entity acted on, e.g. "team/7" or
	// "contestant-record/42".
	Subject string
	// EventID is the competition event the action applies to, when known.
	EventID int64
	// Detail is a human-readable description, e.g. the note recorded when a
	// cutoff token was consumed.
	Detail string
	// RequestID correlates the event with the HTTP request that caused it.
	RequestID string
}

// Action names. Keep them stable: downstream consumers key on these.
const (
	ActionAttendanceMarked   = "attendance_marked"
	ActionBroadcastPartial   = "attendance_broadcast_partial"
	ActionTokenConsumed      = "cutoff_token_consumed"
	ActionTokensGenerated    = "cutoff_tokens_generated"
	ActionMemberAdded        = "team_member_added"
	ActionMemberRemoved      = "team_member_removed"
	ActionEventStatusChanged = "event_status_changed"
)

// categoryFor maps actions to categories; unknown actions default to
// operations so nothing is dropped.
var categoryFor = map[string]EventCategory{
	ActionAttendanceMarked:   CategoryOperations,
	ActionBroadcastPartial:   CategoryOperations,
	ActionTokenConsumed:      CategoryCompliance,
	ActionTokensGenerated:    CategoryCompliance,
	ActionMemberAdded:        CategoryCompliance,
	ActionMemberRemoved:      CategoryCompliance,
	ActionEventStatusChanged: CategoryCompliance,
}

// Categorize returns the category for an action.
func Categorize(action string) EventCategory {
	if c, ok := categoryFor[action]; ok {
		return c
	}
	return CategoryOperations
}
