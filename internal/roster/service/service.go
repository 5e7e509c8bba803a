// Package service implements roster mutations behind the cutoff gate. The
// gating protocol runs in a fixed order: resolve the team, check cutoff,
// authorize the token, validate the mutation, then consume the token and
// commit the write in one transaction.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	cutoffmodels "rollcall/internal/cutoff/models"
	cutoffservice "rollcall/internal/cutoff/service"
	"rollcall/internal/roster/models"
	"rollcall/internal/roster/store"
	dErrors "rollcall/pkg/domain-errors"
	audit "rollcall/pkg/platform/audit"
	"rollcall/pkg/platform/sentinel"
	"rollcall/pkg/platform/tx"
	"rollcall/pkg/requestcontext"
)

// Gate is the subset of the cutoff gate the roster service needs.
type Gate interface {
	CutoffStatus(ctx context.Context, teamID int64) (*cutoffservice.CutoffStatus, error)
	Authorize(ctx context.Context, eventID int64, value string) (cutoffmodels.Outcome, *cutoffmodels.Token, error)
	Consume(ctx context.Context, tokenID int64, note string) error
}

// AuditEmitter is the subset of the audit publisher the roster service needs.
type AuditEmitter interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service mutates team rosters.
type Service struct {
	store  store.Store
	gate   Gate
	runner tx.Runner
	logger *slog.Logger
	audit  AuditEmitter
}

// Option configures a Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithAudit(emitter AuditEmitter) Option {
	return func(s *Service) { s.audit = emitter }
}

// New constructs a roster service. The runner scopes the token burn and the
// roster write to one commit.
func New(st store.Store, gate Gate, runner tx.Runner, opts ...Option) *Service {
	s := &Service{
		store:  st,
		gate:   gate,
		runner: runner,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddMemberInput is one seat-assignment request.
type AddMemberInput struct {
	TeamID       int64
	ContestantID int64
	Role         string
	Token        string
}

// RemoveMemberInput is one seat-removal request.
type RemoveMemberInput struct {
	TeamID   int64
	MemberID int64
	Token    string
}

// AddMember assigns a contestant to a team, consuming a cutoff token when
// the team's events are frozen.
func (s *Service) AddMember(ctx context.Context, in AddMemberInput) (*models.Member, error) {
	if in.TeamID <= 0 || in.ContestantID <= 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "teamId and contestantId are required")
	}

	team, err := s.store.FindTeam(ctx, in.TeamID)
	if err != nil {
		return nil, translateStoreErr(err, "team not found")
	}

	authorized, err := s.passGate(ctx, team, in.Token)
	if err != nil {
		return nil, err
	}

	contestant, err := s.store.FindContestant(ctx, in.ContestantID)
	if err != nil {
		return nil, translateStoreErr(err, "contestant not found")
	}
	if contestant.ContingentID != team.ContingentID {
		return nil, dErrors.New(dErrors.CodeValidation, "contestant belongs to a different contingent")
	}
	if team.HasMember(in.ContestantID) {
		return nil, dErrors.New(dErrors.CodeConflict, "contestant is already on the team")
	}
	if capacity := team.Capacity(); capacity > 0 && len(team.Members) >= capacity {
		return nil, dErrors.New(dErrors.CodeValidation,
			fmt.Sprintf("team is full (%d/%d members)", len(team.Members), capacity))
	}

	member := &models.Member{
		TeamID:       in.TeamID,
		ContestantID: in.ContestantID,
		Name:         contestant.Name,
		Role:         strings.TrimSpace(in.Role),
		JoinedAt:     requestcontext.Now(ctx),
	}

	// Token burn and member insert commit or roll back together. The
	// consume happens only now, after every rejecting validation.
	err = s.runner.RunInTx(ctx, func(ctx context.Context) error {
		if authorized != nil {
			note := fmt.Sprintf("add %s to team %s", contestant.Name, team.Name)
			if err := s.gate.Consume(ctx, authorized.ID, note); err != nil {
				return err
			}
		}
		if err := s.store.AddMember(ctx, member); err != nil {
			return translateStoreErr(err, "team not found")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "team member added",
		"request_id", requestcontext.RequestID(ctx),
		"team_id", in.TeamID,
		"contestant_id", in.ContestantID,
		"gated", authorized != nil,
	)
	s.emitAudit(ctx, audit.Event{
		Action:    audit.ActionMemberAdded,
		Subject:   fmt.Sprintf("team/%d", in.TeamID),
		Detail:    contestant.Name,
		Timestamp: requestcontext.Now(ctx),
		Actor:     requestcontext.UserEmail(ctx),
		RequestID: requestcontext.RequestID(ctx),
	})
	return member, nil
}

// RemoveMember takes a contestant off a team, consuming a cutoff token when
// the team's events are frozen.
func (s *Service) RemoveMember(ctx context.Context, in RemoveMemberInput) error {
	if in.TeamID <= 0 || in.MemberID <= 0 {
		return dErrors.New(dErrors.CodeValidation, "teamId and teamMemberId are required")
	}

	team, err := s.store.FindTeam(ctx, in.TeamID)
	if err != nil {
		return translateStoreErr(err, "team not found")
	}

	authorized, err := s.passGate(ctx, team, in.Token)
	if err != nil {
		return err
	}

	member, err := s.store.FindMember(ctx, in.TeamID, in.MemberID)
	if err != nil {
		return translateStoreErr(err, "team member not found")
	}

	err = s.runner.RunInTx(ctx, func(ctx context.Context) error {
		if authorized != nil {
			note := fmt.Sprintf("remove %s from team %s", member.Name, team.Name)
			if err := s.gate.Consume(ctx, authorized.ID, note); err != nil {
				return err
			}
		}
		if err := s.store.RemoveMember(ctx, in.TeamID, in.MemberID); err != nil {
			return translateStoreErr(err, "team member not found")
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "team member removed",
		"request_id", requestcontext.RequestID(ctx),
		"team_id", in.TeamID,
		"member_id", in.MemberID,
		"gated", authorized != nil,
	)
	s.emitAudit(ctx, audit.Event{
		Action:    audit.ActionMemberRemoved,
		Subject:   fmt.Sprintf("team/%d", in.TeamID),
		Detail:    member.Name,
		Timestamp: requestcontext.Now(ctx),
		Actor:     requestcontext.UserEmail(ctx),
		RequestID: requestcontext.RequestID(ctx),
	})
	return nil
}

// passGate runs the cutoff check and token authorization. It returns the
// authorized token when the mutation must burn one, nil when the team is
// not under cutoff.
func (s *Service) passGate(ctx context.Context, team *models.Team, tokenValue string) (*cutoffmodels.Token, error) {
	status, err := s.gate.CutoffStatus(ctx, team.ID)
	if err != nil {
		return nil, err
	}
	if !status.Active {
		return nil, nil
	}

	if tokenValue == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "roster is frozen during registration cutoff").
			WithDetails(map[string]any{
				"requiresToken": true,
				"cutoffEvents":  status.Events,
			})
	}

	// A token is accepted when valid for any of the blocking events.
	outcome := cutoffmodels.OutcomeInvalid
	for _, ref := range status.Events {
		eventOutcome, token, err := s.gate.Authorize(ctx, ref.ID, tokenValue)
		if err != nil {
			return nil, err
		}
		switch eventOutcome {
		case cutoffmodels.OutcomeValid:
			return token, nil
		case cutoffmodels.OutcomeAlreadyConsumed:
			outcome = cutoffmodels.OutcomeAlreadyConsumed
		}
	}
	if outcome == cutoffmodels.OutcomeAlreadyConsumed {
		return nil, dErrors.New(dErrors.CodeBadRequest, "token already consumed")
	}
	return nil, dErrors.New(dErrors.CodeBadRequest, "invalid token")
}

func (s *Service) emitAudit(ctx context.Context, event audit.Event) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Emit(ctx, event)
}

func translateStoreErr(err error, notFoundMsg string) error {
	var domainErr *dErrors.Error
	if errors.As(err, &domainErr) {
		return err
	}
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, notFoundMsg)
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, "contestant is already on the team")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "roster store failure")
	}
}
