package handler

import (
	"time"

	"rollcall/internal/roster/models"
)

// MemberResponse is the HTTP response for POST /api/teams/{teamID}/members.
type MemberResponse struct {
	Success bool       `json:"success"`
	Message string     `json:"message"`
	Data    MemberData `json:"data"`
}

// MemberData is the created seat.
type MemberData struct {
	ID           int64     `json:"id"`
	TeamID       int64     `json:"teamId"`
	ContestantID int64     `json:"contestantId"`
	Name         string    `json:"name"`
	Role         string    `json:"role,omitempty"`
	JoinedAt     time.Time `json:"joinedAt"`
}

// FromMember converts a created member to an HTTP response.
func FromMember(member *models.Member) *MemberResponse {
	return &MemberResponse{
		Success: true,
		Message: "member added",
		Data: MemberData{
			ID:           member.ID,
			TeamID:       member.TeamID,
			ContestantID: member.ContestantID,
			Name:         member.Name,
			Role:         member.Role,
			JoinedAt:     member.JoinedAt,
		},
	}
}

// RemovedResponse is the HTTP response for DELETE /api/teams/{teamID}/members.
type RemovedResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
