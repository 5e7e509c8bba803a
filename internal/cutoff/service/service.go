// Package service implements the cutoff gate: deciding whether a team's
// roster is frozen and brokering the single-use tokens that unfreeze one
// mutation at a time.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"rollcall/internal/cutoff/models"
	"rollcall/internal/cutoff/store"
	dErrors "rollcall/pkg/domain-errors"
	audit "rollcall/pkg/platform/audit"
	"rollcall/pkg/platform/sentinel"
	"rollcall/pkg/requestcontext"
)

var tokenOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "rollcall_token_authorizations_total",
	Help: "Token authorization attempts by outcome",
}, []string{"outcome"})

// AuditEmitter is the subset of the audit publisher the gate needs.
type AuditEmitter interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Gate answers cutoff questions and manages the token ledger.
type Gate struct {
	tokens store.TokenStore
	events store.EventStore
	logger *slog.Logger
	audit  AuditEmitter
}

// Option configures a Gate.
type Option func(*Gate)

func WithLogger(logger *slog.Logger) Option {
	return func(g *Gate) {
		if logger != nil {
			g.logger = logger
		}
	}
}

func WithAudit(emitter AuditEmitter) Option {
	return func(g *Gate) { g.audit = emitter }
}

// NewGate constructs a Gate over the token ledger and event store.
func NewGate(tokens store.TokenStore, events store.EventStore, opts ...Option) *Gate {
	g := &Gate{
		tokens: tokens,
		events: events,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// CutoffStatus reports whether any of the team's events currently freeze
// roster mutations, and which.
type CutoffStatus struct {
	Active bool
	Events []models.EventRef
}

func (g *Gate) CutoffStatus(ctx context.Context, teamID int64) (*CutoffStatus, error) {
	refs, err := g.events.CutoffEventsForTeam(ctx, teamID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve cutoff state")
	}
	return &CutoffStatus{Active: len(refs) > 0, Events: refs}, nil
}

// Authorize classifies a presented token without consuming it. The returned
// token is non-nil only for OutcomeValid.
func (g *Gate) Authorize(ctx context.Context, eventID int64, value string) (models.Outcome, *models.Token, error) {
	if value == "" {
		tokenOutcomes.WithLabelValues(string(models.OutcomeInvalid)).Inc()
		return models.OutcomeInvalid, nil, nil
	}
	token, err := g.tokens.FindByValue(ctx, eventID, value)
	if errors.Is(err, sentinel.ErrNotFound) {
		tokenOutcomes.WithLabelValues(string(models.OutcomeInvalid)).Inc()
		return models.OutcomeInvalid, nil, nil
	}
	if err != nil {
		return "", nil, dErrors.Wrap(err, dErrors.CodeInternal, "token lookup failed")
	}
	if token.Consumed {
		tokenOutcomes.WithLabelValues(string(models.OutcomeAlreadyConsumed)).Inc()
		return models.OutcomeAlreadyConsumed, nil, nil
	}
	tokenOutcomes.WithLabelValues(string(models.OutcomeValid)).Inc()
	return models.OutcomeValid, token, nil
}

// Consume burns a token. The store guarantees at most one caller succeeds;
// a lost race comes back as a conflict so the roster write sharing our
// transaction rolls back.
func (g *Gate) Consume(ctx context.Context, tokenID int64, note string) error {
	now := requestcontext.Now(ctx)
	if err := g.tokens.Consume(ctx, tokenID, note, now); err != nil {
		switch {
		case errors.Is(err, sentinel.ErrAlreadyUsed):
			return dErrors.Wrap(err, dErrors.CodeConflict, "token already consumed")
		case errors.Is(err, sentinel.ErrNotFound):
			return dErrors.Wrap(err, dErrors.CodeNotFound, "token not found")
		default:
			return dErrors.Wrap(err, dErrors.CodeInternal, "token consumption failed")
		}
	}
	g.emitAudit(ctx, audit.Event{
		Action:    audit.ActionTokenConsumed,
		Subject:   fmt.Sprintf("token/%d", tokenID),
		Detail:    note,
		Timestamp: now,
		Actor:     requestcontext.UserEmail(ctx),
		RequestID: requestcontext.RequestID(ctx),
	})
	return nil
}

// GenerateTokens mints count fresh tokens for an event. Values are opaque
// and unguessable.
func (g *Gate) GenerateTokens(ctx context.Context, eventID int64, count int) ([]models.Token, error) {
	if count <= 0 || count > 100 {
		return nil, dErrors.New(dErrors.CodeValidation, "count must be between 1 and 100")
	}
	if _, err := g.events.Find(ctx, eventID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "event not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "event lookup failed")
	}

	now := requestcontext.Now(ctx)
	tokens := make([]models.Token, 0, count)
	for i := 0; i < count; i++ {
		token := models.Token{
			EventID:   eventID,
			Value:     uuid.NewString(),
			CreatedAt: now,
		}
		if err := g.tokens.Create(ctx, &token); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "token creation failed")
		}
		tokens = append(tokens, token)
	}

	g.logger.InfoContext(ctx, "cutoff tokens generated",
		"request_id", requestcontext.RequestID(ctx),
		"event_id", eventID,
		"count", count,
	)
	g.emitAudit(ctx, audit.Event{
		Action:    audit.ActionTokensGenerated,
		Subject:   fmt.Sprintf("event/%d", eventID),
		EventID:   eventID,
		Detail:    fmt.Sprintf("%d tokens", count),
		Timestamp: now,
		Actor:     requestcontext.UserEmail(ctx),
		RequestID: requestcontext.RequestID(ctx),
	})
	return tokens, nil
}

// ListTokens returns the event's full ledger, consumed entries included, for
// monitoring.
func (g *Gate) ListTokens(ctx context.Context, eventID int64) ([]models.Token, error) {
	tokens, err := g.tokens.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "token listing failed")
	}
	return tokens, nil
}

// SetEventStatus transitions an event's registration window.
func (g *Gate) SetEventStatus(ctx context.Context, eventID int64, status models.EventStatus) error {
	if _, err := models.ParseEventStatus(string(status)); err != nil {
		return err
	}
	if err := g.events.SetStatus(ctx, eventID, status); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Wrap(err, dErrors.CodeNotFound, "event not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "event status update failed")
	}
	g.emitAudit(ctx, audit.Event{
		Action:    audit.ActionEventStatusChanged,
		Subject:   fmt.Sprintf("event/%d", eventID),
		EventID:   eventID,
		Detail:    string(status),
		Timestamp: requestcontext.Now(ctx),
		Actor:     requestcontext.UserEmail(ctx),
		RequestID: requestcontext.RequestID(ctx),
	})
	return nil
}

func (g *Gate) emitAudit(ctx context.Context, event audit.Event) {
	if g.audit == nil {
		return
	}
	_ = g.audit.Emit(ctx, event)
}
