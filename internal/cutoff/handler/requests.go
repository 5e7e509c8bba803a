package handler

import (
	"strings"

	"rollcall/internal/cutoff/models"
	dErrors "rollcall/pkg/domain-errors"
)

// GenerateRequest is the HTTP request body for POST /api/events/{eventID}/tokens.
type GenerateRequest struct {
	Count int `json:"count"`
}

// Validate implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *GenerateRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if r.Count <= 0 {
		return dErrors.New(dErrors.CodeValidation, "count must be positive")
	}
	return nil
}

// StatusRequest is the HTTP request body for PATCH /api/events/{eventID}/status.
type StatusRequest struct {
	Status string `json:"status"`

	parsedStatus models.EventStatus
}

// Validate implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *StatusRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	status, err := models.ParseEventStatus(strings.TrimSpace(r.Status))
	if err != nil {
		return err
	}
	r.parsedStatus = status
	return nil
}

// ParsedStatus returns the validated event status.
func (r *StatusRequest) ParsedStatus() models.EventStatus {
	return r.parsedStatus
}
