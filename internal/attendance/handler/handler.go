// Package handler exposes the attendance log over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"rollcall/internal/attendance/models"
	"rollcall/internal/attendance/service"
	dErrors "rollcall/pkg/domain-errors"
	"rollcall/pkg/platform/httputil"
	"rollcall/pkg/requestcontext"
)

// Service defines the interface for attendance operations.
type Service interface {
	SetAttendance(ctx context.Context, in service.SetAttendanceInput) (*service.Result, error)
	SetNote(ctx context.Context, kind models.Kind, recordID int64, note string) error
	AttendanceLog(ctx context.Context, eventID int64, filter service.LogFilter) (*service.Log, error)
}

// Handler wires attendance endpoints to the reconciler.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs an attendance handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Register mounts attendance endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Put("/api/events/{eventID}/attendance/log", h.HandleUpdate)
	r.Get("/api/events/{eventID}/attendance/log", h.HandleLog)
}

// HandleUpdate handles PUT /api/events/{eventID}/attendance/log requests.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	eventID, err := pathID(r, "eventID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[UpdateRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	var result *service.Result
	if req.Status != nil {
		result, err = h.service.SetAttendance(ctx, service.SetAttendanceInput{
			Kind:         req.ParsedKind(),
			RecordID:     req.RecordID,
			EventID:      eventID,
			Status:       req.ParsedStatus(),
			ContingentID: req.ContingentID,
		})
		if err != nil {
			h.logger.ErrorContext(ctx, "attendance update failed",
				"request_id", requestID,
				"event_id", eventID,
				"record_id", req.RecordID,
				"category", req.Category,
				"error", err,
			)
			httputil.WriteError(w, err)
			return
		}
	} else {
		result = &service.Result{Kind: req.ParsedKind(), RecordID: req.RecordID}
	}

	if req.AttendanceNote != nil {
		if err := h.service.SetNote(ctx, req.ParsedKind(), req.RecordID, *req.AttendanceNote); err != nil {
			h.logger.ErrorContext(ctx, "attendance note update failed",
				"request_id", requestID,
				"record_id", req.RecordID,
				"error", err,
			)
			httputil.WriteError(w, err)
			return
		}
	}

	h.logger.InfoContext(ctx, "attendance updated",
		"request_id", requestID,
		"event_id", eventID,
		"record_id", req.RecordID,
		"category", req.Category,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	httputil.WriteJSON(w, http.StatusOK, FromResult(result, "attendance updated"))
}

// HandleLog handles GET /api/events/{eventID}/attendance/log requests.
func (h *Handler) HandleLog(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	eventID, err := pathID(r, "eventID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	filter, err := logFilterFromQuery(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	log, err := h.service.AttendanceLog(ctx, eventID, filter)
	if err != nil {
		h.logger.ErrorContext(ctx, "attendance log query failed",
			"request_id", requestID,
			"event_id", eventID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, FromLog(log))
}

func logFilterFromQuery(r *http.Request) (service.LogFilter, error) {
	var filter service.LogFilter
	q := r.URL.Query()

	if raw := q.Get("stateId"); raw != "" {
		stateID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return filter, dErrors.New(dErrors.CodeValidation, "stateId must be numeric")
		}
		filter.StateID = stateID
	}
	filter.ContestGroup = q.Get("contestGroup")

	switch q.Get("category") {
	case "":
	case "Participant":
		filter.Kind = models.KindContestant
	case "Manager":
		filter.Kind = models.KindManager
	default:
		return filter, dErrors.New(dErrors.CodeValidation, "invalid category filter")
	}
	return filter, nil
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, dErrors.New(dErrors.CodeBadRequest, name+" must be a positive integer")
	}
	return id, nil
}
