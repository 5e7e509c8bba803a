package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rollcall/internal/attendance/models"
	"rollcall/internal/attendance/service"
	"rollcall/internal/attendance/store"
)

func newTestRouter(t *testing.T, svc Service) chi.Router {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := chi.NewRouter()
	New(svc, logger).Register(r)
	return r
}

func seedStore(t *testing.T) (*store.InMemoryStore, *models.Record) {
	t.Helper()
	s := store.NewInMemoryStore()
	record := &models.Record{
		Kind: models.KindContestant, EntityID: 42, EventID: 1,
		ContingentID: 5, TeamID: 7, Status: models.StatusNotPresent,
	}
	require.NoError(t, s.Create(context.Background(), record))
	return s, record
}

func doJSON(t *testing.T, router chi.Router, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, reader)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHandleUpdateMarksPresent(t *testing.T) {
	s, record := seedStore(t)
	router := newTestRouter(t, service.NewReconciler(s))

	status := "Present"
	w := doJSON(t, router, http.MethodPut, "/api/events/1/attendance/log", UpdateRequest{
		RecordID: record.ID, Category: "Participant", Status: &status,
	})

	require.Equal(t, http.StatusOK, w.Code)
	var resp UpdateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "ok", resp.OverallStatus)
	assert.Empty(t, resp.FailedSteps)
	require.NotNil(t, resp.Data)
	assert.Equal(t, "Participant", resp.Data.Category)
	assert.Equal(t, "Present", resp.Data.Status)

	teams, err := s.List(context.Background(), models.KindTeam, 1, store.Filter{})
	require.NoError(t, err)
	assert.Len(t, teams, 1, "team cascade reaches the store through the handler")
}

func TestHandleUpdateNoteOnly(t *testing.T) {
	s, record := seedStore(t)
	router := newTestRouter(t, service.NewReconciler(s))

	note := "left early"
	w := doJSON(t, router, http.MethodPut, "/api/events/1/attendance/log", UpdateRequest{
		RecordID: record.ID, Category: "Participant", AttendanceNote: &note,
	})

	require.Equal(t, http.StatusOK, w.Code)
	updated, err := s.Find(context.Background(), models.KindContestant, record.ID)
	require.NoError(t, err)
	assert.Equal(t, "left early", updated.Note)
	assert.Equal(t, models.StatusNotPresent, updated.Status)
}

func TestHandleUpdateValidation(t *testing.T) {
	s, record := seedStore(t)
	router := newTestRouter(t, service.NewReconciler(s))

	tests := []struct {
		name string
		body UpdateRequest
	}{
		{"missing category", UpdateRequest{RecordID: record.ID}},
		{"unknown category", UpdateRequest{RecordID: record.ID, Category: "Coach"}},
		{"no status or note", UpdateRequest{RecordID: record.ID, Category: "Participant"}},
		{"bad status", UpdateRequest{RecordID: record.ID, Category: "Participant", Status: ptr("Maybe")}},
		{"missing record id", UpdateRequest{Category: "Participant", Status: ptr("Present")}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := doJSON(t, router, http.MethodPut, "/api/events/1/attendance/log", tc.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestHandleUpdateUnknownRecord(t *testing.T) {
	router := newTestRouter(t, service.NewReconciler(store.NewInMemoryStore()))

	w := doJSON(t, router, http.MethodPut, "/api/events/1/attendance/log", UpdateRequest{
		RecordID: 999, Category: "Participant", Status: ptr("Present"),
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// partialService always reports a broadcast with one failed sub-step.
type partialService struct{}

func (partialService) SetAttendance(ctx context.Context, in service.SetAttendanceInput) (*service.Result, error) {
	return &service.Result{
		Kind: in.Kind, RecordID: in.RecordID, Status: in.Status,
		Broadcast: &models.BroadcastResult{
			ContingentID: in.ContingentID,
			EventID:      in.EventID,
			Steps: []models.StepOutcome{
				{Step: models.StepManagers, Updated: 2},
				{Step: models.StepContingent, Updated: 1},
				{Step: models.StepContestants, Err: "storage unavailable"},
			},
		},
	}, nil
}

func (partialService) SetNote(context.Context, models.Kind, int64, string) error { return nil }

func (partialService) AttendanceLog(context.Context, int64, service.LogFilter) (*service.Log, error) {
	return &service.Log{}, nil
}

func TestHandleUpdatePartialBroadcast(t *testing.T) {
	router := newTestRouter(t, partialService{})

	w := doJSON(t, router, http.MethodPut, "/api/events/1/attendance/log", UpdateRequest{
		Category: "Manager", Status: ptr("Present"), ContingentID: 5,
	})

	require.Equal(t, http.StatusOK, w.Code)
	var resp UpdateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "partial", resp.OverallStatus)
	assert.Equal(t, []string{"contestants"}, resp.FailedSteps)
}

func TestHandleLog(t *testing.T) {
	s, _ := seedStore(t)
	require.NoError(t, s.Create(context.Background(), &models.Record{
		Kind: models.KindManager, EntityID: 10, EventID: 1, ContingentID: 5, StateID: 3,
	}))
	router := newTestRouter(t, service.NewReconciler(s))

	w := doJSON(t, router, http.MethodGet, "/api/events/1/attendance/log?category=Manager", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp LogResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Records, 1)
	assert.Equal(t, "Manager", resp.Records[0].Category)
	assert.Equal(t, []int64{3}, resp.States)
}

func TestHandleLogBadEventID(t *testing.T) {
	router := newTestRouter(t, service.NewReconciler(store.NewInMemoryStore()))
	w := doJSON(t, router, http.MethodGet, "/api/events/zero/attendance/log", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func ptr(s string) *string { return &s }
