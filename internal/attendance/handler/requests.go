package handler

import (
	"fmt"
	"strings"

	"rollcall/internal/attendance/models"
	dErrors "rollcall/pkg/domain-errors"
)

// UpdateRequest is the HTTP request body for PUT /api/events/{eventID}/attendance/log.
//
// Status and AttendanceNote are independent updates: a body may carry either
// or both. Category uses the wire vocabulary ("Participant"/"Manager") rather
// than the internal ledger names.
type UpdateRequest struct {
	RecordID       int64   `json:"recordId"`
	Category       string  `json:"category"`
	Status         *string `json:"status,omitempty"`
	AttendanceNote *string `json:"attendanceNote,omitempty"`
	ContingentID   int64   `json:"contingentId,omitempty"`

	// Parsed values (populated by Validate)
	parsedKind   models.Kind
	parsedStatus models.Status
}

// Validate validates and parses the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *UpdateRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	switch strings.TrimSpace(r.Category) {
	case "Participant":
		r.parsedKind = models.KindContestant
	case "Manager":
		r.parsedKind = models.KindManager
	case "":
		return dErrors.New(dErrors.CodeValidation, "category is required")
	default:
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("invalid category %q", r.Category))
	}

	if r.Status == nil && r.AttendanceNote == nil {
		return dErrors.New(dErrors.CodeValidation, "status or attendanceNote is required")
	}

	if r.Status != nil {
		status, err := models.ParseStatus(*r.Status)
		if err != nil {
			return err
		}
		r.parsedStatus = status
	}

	broadcast := r.parsedKind == models.KindManager &&
		r.parsedStatus == models.StatusPresent && r.ContingentID > 0
	if r.RecordID <= 0 && !broadcast {
		return dErrors.New(dErrors.CodeValidation, "recordId is required")
	}

	return nil
}

// ParsedKind returns the validated ledger kind.
func (r *UpdateRequest) ParsedKind() models.Kind {
	return r.parsedKind
}

// ParsedStatus returns the validated status; empty when the body carried
// only a note.
func (r *UpdateRequest) ParsedStatus() models.Status {
	return r.parsedStatus
}
