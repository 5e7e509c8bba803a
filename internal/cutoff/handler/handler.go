// Package handler exposes token administration and event status transitions
// over HTTP. These endpoints are for operators, not contestants; routing
// guards them with role checks.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"rollcall/internal/cutoff/models"
	dErrors "rollcall/pkg/domain-errors"
	"rollcall/pkg/platform/httputil"
	"rollcall/pkg/requestcontext"
)

// Service defines the interface for token and event administration.
type Service interface {
	GenerateTokens(ctx context.Context, eventID int64, count int) ([]models.Token, error)
	ListTokens(ctx context.Context, eventID int64) ([]models.Token, error)
	SetEventStatus(ctx context.Context, eventID int64, status models.EventStatus) error
}

// Handler wires cutoff administration endpoints to the gate.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a cutoff handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Register mounts cutoff administration endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/api/events/{eventID}/tokens", h.HandleListTokens)
	r.Post("/api/events/{eventID}/tokens", h.HandleGenerateTokens)
	r.Patch("/api/events/{eventID}/status", h.HandleSetStatus)
}

// HandleListTokens handles GET /api/events/{eventID}/tokens requests.
func (h *Handler) HandleListTokens(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	eventID, err := pathID(r, "eventID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	tokens, err := h.service.ListTokens(ctx, eventID)
	if err != nil {
		h.logger.ErrorContext(ctx, "token listing failed",
			"request_id", requestID,
			"event_id", eventID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromTokens(tokens))
}

// HandleGenerateTokens handles POST /api/events/{eventID}/tokens requests.
func (h *Handler) HandleGenerateTokens(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	eventID, err := pathID(r, "eventID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[GenerateRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	tokens, err := h.service.GenerateTokens(ctx, eventID, req.Count)
	if err != nil {
		h.logger.ErrorContext(ctx, "token generation failed",
			"request_id", requestID,
			"event_id", eventID,
			"count", req.Count,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, FromTokens(tokens))
}

// HandleSetStatus handles PATCH /api/events/{eventID}/status requests.
func (h *Handler) HandleSetStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	eventID, err := pathID(r, "eventID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[StatusRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	if err := h.service.SetEventStatus(ctx, eventID, req.ParsedStatus()); err != nil {
		h.logger.ErrorContext(ctx, "event status change failed",
			"request_id", requestID,
			"event_id", eventID,
			"status", req.Status,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "event status changed",
		"request_id", requestID,
		"event_id", eventID,
		"status", req.Status,
	)
	httputil.WriteJSON(w, http.StatusOK, StatusResponse{Success: true, EventID: eventID, Status: req.Status})
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, dErrors.New(dErrors.CodeBadRequest, name+" must be a positive integer")
	}
	return id, nil
}
