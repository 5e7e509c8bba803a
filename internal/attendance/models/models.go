package models

import (
	"fmt"
	"time"

	dErrors "rollcall/pkg/domain-errors"
)

// Kind identifies which attendance ledger a record belongs to.
type Kind string

const (
	KindContestant Kind = "contestant"
	KindManager    Kind = "manager"
	KindTeam       Kind = "team"
	KindContingent Kind = "contingent"
)

// Status of an attendance record. Records start as Not Present; absence of a
// record is treated the same as Not Present.
type Status string

const (
	StatusPresent    Status = "Present"
	StatusNotPresent Status = "Not Present"
)

// ParseStatus validates a wire-format status value.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPresent, StatusNotPresent:
		return Status(s), nil
	default:
		return "", dErrors.New(dErrors.CodeValidation, fmt.Sprintf("invalid status %q", s))
	}
}

// Record is one attendance row, keyed by (Kind, EntityID, EventID).
//
// Invariants:
//   - AttendanceDate/AttendanceTime are stamped on every transition into
//     Present and never cleared on transition to Not Present. A record that
//     was present once keeps its last check-in time. This is deliberate and
//     tested, not an oversight.
//   - TeamID is set only on contestant records; 0 means the contestant is
//     not on a team and no team cascade happens.
type Record struct {
	ID           int64
	Kind         Kind
	EntityID     int64
	EventID      int64
	ContingentID int64
	TeamID       int64
	StateID      int64
	ContestGroup string
	Name         string
	Hashcode     string
	Status       Status
	Note         string

	AttendanceDate time.Time
	AttendanceTime time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ApplyStatus transitions the record, stamping the check-in time only when
// entering Present. Repeated Present transitions refresh the stamp to the
// latest call.
func (r *Record) ApplyStatus(status Status, now time.Time) {
	r.Status = status
	if status == StatusPresent {
		r.AttendanceDate = now
		r.AttendanceTime = now
	}
	r.UpdatedAt = now
}

// TeamHashcode synthesizes the unique token for a lazily created team
// attendance row.
func TeamHashcode(teamID, eventID int64, now time.Time) string {
	return fmt.Sprintf("team-%d-%d-%d", teamID, eventID, now.UnixMilli())
}

// ContingentHashcode synthesizes the unique token for a lazily created
// contingent attendance row.
func ContingentHashcode(contingentID, eventID int64, now time.Time) string {
	return fmt.Sprintf("cont-%d-%d-%d", contingentID, eventID, now.UnixMilli())
}

// BroadcastStep names one sub-operation of the manager group broadcast.
type BroadcastStep string

const (
	StepManagers    BroadcastStep = "managers"
	StepContingent  BroadcastStep = "contingent"
	StepContestants BroadcastStep = "contestants"
)

// StepOutcome records the result of a single broadcast sub-operation.
type StepOutcome struct {
	Step    BroadcastStep
	Updated int64
	Err     string
}

// BroadcastResult is the caller-visible outcome of a manager group
// broadcast. Sub-steps are independent and best-effort; a failed step does
// not roll back the ones before it. The whole broadcast is idempotent, so a
// caller recovers from a partial result by re-invoking the same request.
type BroadcastResult struct {
	ContingentID int64
	EventID      int64
	Steps        []StepOutcome
}

// Partial reports whether any sub-step failed.
func (b *BroadcastResult) Partial() bool {
	for _, s := range b.Steps {
		if s.Err != "" {
			return true
		}
	}
	return false
}

// FailedSteps lists the names of failed sub-steps for the response body.
func (b *BroadcastResult) FailedSteps() []string {
	var failed []string
	for _, s := range b.Steps {
		if s.Err != "" {
			failed = append(failed, string(s.Step))
		}
	}
	return failed
}
