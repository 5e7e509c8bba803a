package handler

import (
	"time"

	"rollcall/internal/attendance/models"
	"rollcall/internal/attendance/service"
)

// UpdateResponse is the HTTP response for PUT /api/events/{eventID}/attendance/log.
// OverallStatus is "ok" for full success and "partial" when a group broadcast
// left one or more sub-steps failed; FailedSteps names them so callers can
// retry the same request.
type UpdateResponse struct {
	Success       bool        `json:"success"`
	Message       string      `json:"message"`
	OverallStatus string      `json:"status"`
	FailedSteps   []string    `json:"failedSteps,omitempty"`
	Data          *UpdateData `json:"data,omitempty"`
}

// UpdateData echoes the applied transition.
type UpdateData struct {
	RecordID int64  `json:"recordId"`
	Category string `json:"category"`
	Status   string `json:"status,omitempty"`
}

// FromResult converts a reconciliation result to an HTTP response.
func FromResult(result *service.Result, message string) *UpdateResponse {
	resp := &UpdateResponse{
		Success:       true,
		Message:       message,
		OverallStatus: "ok",
		Data: &UpdateData{
			RecordID: result.RecordID,
			Category: wireCategory(result.Kind),
			Status:   string(result.Status),
		},
	}
	if result.Broadcast != nil && result.Broadcast.Partial() {
		resp.OverallStatus = "partial"
		resp.FailedSteps = result.Broadcast.FailedSteps()
	}
	return resp
}

// LogResponse is the HTTP response for GET /api/events/{eventID}/attendance/log.
type LogResponse struct {
	Success       bool        `json:"success"`
	Records       []LogRecord `json:"records"`
	States        []int64     `json:"states"`
	ContestGroups []string    `json:"contestGroups"`
}

// LogRecord is one attendance row in the read projection.
type LogRecord struct {
	RecordID       int64      `json:"recordId"`
	Category       string     `json:"category"`
	EntityID       int64      `json:"entityId"`
	Name           string     `json:"name,omitempty"`
	StateID        int64      `json:"stateId,omitempty"`
	ContestGroup   string     `json:"contestGroup,omitempty"`
	Status         string     `json:"status"`
	AttendanceNote string     `json:"attendanceNote,omitempty"`
	AttendanceDate *time.Time `json:"attendanceDate,omitempty"`
}

// FromLog converts the read projection to an HTTP response.
func FromLog(log *service.Log) *LogResponse {
	resp := &LogResponse{
		Success:       true,
		Records:       make([]LogRecord, 0, len(log.Records)),
		States:        log.States,
		ContestGroups: log.ContestGroups,
	}
	for _, record := range log.Records {
		row := LogRecord{
			RecordID:       record.ID,
			Category:       wireCategory(record.Kind),
			EntityID:       record.EntityID,
			Name:           record.Name,
			StateID:        record.StateID,
			ContestGroup:   record.ContestGroup,
			Status:         string(record.Status),
			AttendanceNote: record.Note,
		}
		if !record.AttendanceDate.IsZero() {
			date := record.AttendanceDate
			row.AttendanceDate = &date
		}
		resp.Records = append(resp.Records, row)
	}
	return resp
}

func wireCategory(kind models.Kind) string {
	switch kind {
	case models.KindContestant:
		return "Participant"
	case models.KindManager:
		return "Manager"
	default:
		return string(kind)
	}
}
