// Package handler exposes roster mutations over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"rollcall/internal/roster/models"
	"rollcall/internal/roster/service"
	dErrors "rollcall/pkg/domain-errors"
	"rollcall/pkg/platform/httputil"
	"rollcall/pkg/requestcontext"
)

// Service defines the interface for roster mutations.
type Service interface {
	AddMember(ctx context.Context, in service.AddMemberInput) (*models.Member, error)
	RemoveMember(ctx context.Context, in service.RemoveMemberInput) error
}

// Handler wires roster endpoints to the roster service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a roster handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Register mounts roster endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/api/teams/{teamID}/members", h.HandleAddMember)
	r.Delete("/api/teams/{teamID}/members", h.HandleRemoveMember)
}

// HandleAddMember handles POST /api/teams/{teamID}/members requests.
func (h *Handler) HandleAddMember(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	teamID, err := pathID(r, "teamID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[AddMemberRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	member, err := h.service.AddMember(ctx, service.AddMemberInput{
		TeamID:       teamID,
		ContestantID: req.ContestantID,
		Role:         req.Role,
		Token:        req.Token,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "add member rejected",
			"request_id", requestID,
			"team_id", teamID,
			"contestant_id", req.ContestantID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, FromMember(member))
}

// HandleRemoveMember handles DELETE /api/teams/{teamID}/members requests.
func (h *Handler) HandleRemoveMember(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	teamID, err := pathID(r, "teamID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[RemoveMemberRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	err = h.service.RemoveMember(ctx, service.RemoveMemberInput{
		TeamID:   teamID,
		MemberID: req.TeamMemberID,
		Token:    req.Token,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "remove member rejected",
			"request_id", requestID,
			"team_id", teamID,
			"member_id", req.TeamMemberID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, RemovedResponse{Success: true, Message: "member removed"})
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, dErrors.New(dErrors.CodeBadRequest, name+" must be a positive integer")
	}
	return id, nil
}
