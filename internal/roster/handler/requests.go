package handler

import (
	dErrors "rollcall/pkg/domain-errors"
)

// AddMemberRequest is the HTTP request body for POST /api/teams/{teamID}/members.
// Token carries the cutoff authorization when the team's events are frozen.
type AddMemberRequest struct {
	ContestantID int64  `json:"contestantId"`
	Role         string `json:"role,omitempty"`
	Token        string `json:"token,omitempty"`
}

// Validate implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *AddMemberRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if r.ContestantID <= 0 {
		return dErrors.New(dErrors.CodeValidation, "contestantId is required")
	}
	return nil
}

// RemoveMemberRequest is the HTTP request body for DELETE /api/teams/{teamID}/members.
type RemoveMemberRequest struct {
	TeamMemberID int64  `json:"teamMemberId"`
	Token        string `json:"token,omitempty"`
}

// Validate implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *RemoveMemberRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if r.TeamMemberID <= 0 {
		return dErrors.New(dErrors.CodeValidation, "teamMemberId is required")
	}
	return nil
}
