// Package service implements attendance status reconciliation: the rules
// governing how one check-in action propagates across contestant, team,
// manager, and contingent records.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	attendancemetrics "rollcall/internal/attendance/metrics"
	"rollcall/internal/attendance/models"
	"rollcall/internal/attendance/store"
	dErrors "rollcall/pkg/domain-errors"
	audit "rollcall/pkg/platform/audit"
	"rollcall/pkg/platform/sentinel"
	"rollcall/pkg/requestcontext"
)

// AuditEmitter is the subset of the audit publisher the reconciler needs.
type AuditEmitter interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Reconciler computes and applies the cascading updates that keep dependent
// attendance records consistent with a single mark-present intent.
type Reconciler struct {
	store   store.Store
	logger  *slog.Logger
	metrics *attendancemetrics.Metrics
	audit   AuditEmitter
}

// Option configures a Reconciler.
type Option func(*Reconciler)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Reconciler) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func WithMetrics(m *attendancemetrics.Metrics) Option {
	return func(r *Reconciler) { r.metrics = m }
}

func WithAudit(emitter AuditEmitter) Option {
	return func(r *Reconciler) { r.audit = emitter }
}

// NewReconciler constructs a Reconciler over the given store.
func NewReconciler(s store.Store, opts ...Option) *Reconciler {
	r := &Reconciler{
		store:  s,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SetAttendanceInput is one mark-present / mark-not-present intent.
type SetAttendanceInput struct {
	// Kind is the ledger of the targeted record: contestant or manager.
	Kind models.Kind
	// RecordID is the attendance record's own id, not the contestant or
	// manager id.
	RecordID int64
	// EventID scopes group operations.
	EventID int64
	Status  models.Status
	// ContingentID triggers the manager group broadcast when set together
	// with Kind=manager and Status=Present.
	ContingentID int64
}

func (in SetAttendanceInput) validate() error {
	if in.Kind != models.KindContestant && in.Kind != models.KindManager {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("attendance can only be set on contestant or manager records, got %q", in.Kind))
	}
	if in.RecordID <= 0 && !(in.Kind == models.KindManager && in.Status == models.StatusPresent && in.ContingentID > 0) {
		return dErrors.New(dErrors.CodeValidation, "recordId is required")
	}
	if in.EventID <= 0 {
		return dErrors.New(dErrors.CodeValidation, "eventId is required")
	}
	if in.Status != models.StatusPresent && in.Status != models.StatusNotPresent {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("invalid status %q", in.Status))
	}
	return nil
}

// Result is the caller-visible outcome of SetAttendance. Broadcast is set
// only for the manager group path.
type Result struct {
	Kind      models.Kind
	RecordID  int64
	Status    models.Status
	Broadcast *models.BroadcastResult
}

// SetAttendance applies a status transition and its cascading updates.
//
// Contestant → Present also marks the contestant's team Present, creating
// the team record if absent. Contestant → Not Present touches only the
// contestant's own record: a single member's retraction does not un-mark
// the whole team.
//
// Manager → Present with a contingent id is a group broadcast across every
// manager, the contingent record itself, and every contestant of that
// contingent. Sub-steps are independent and best-effort; failures surface in
// Result.Broadcast so callers can retry, and the broadcast is idempotent.
func (r *Reconciler) SetAttendance(ctx context.Context, in SetAttendanceInput) (*Result, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	start := time.Now()
	if r.metrics != nil {
		defer r.metrics.ObserveReconcile(start)
	}

	var result *Result
	var err error
	switch {
	case in.Kind == models.KindContestant:
		result, err = r.setContestant(ctx, in)
	case in.Kind == models.KindManager && in.Status == models.StatusPresent && in.ContingentID > 0:
		result, err = r.broadcastContingent(ctx, in)
	default:
		result, err = r.setSingle(ctx, in)
	}
	if err != nil {
		return nil, err
	}

	if r.metrics != nil {
		r.metrics.MarksApplied.Inc()
	}
	r.emitAudit(ctx, audit.Event{
		Action:    audit.ActionAttendanceMarked,
		Subject:   fmt.Sprintf("%s-record/%d", in.Kind, in.RecordID),
		EventID:   in.EventID,
		Detail:    string(in.Status),
		Timestamp: requestcontext.Now(ctx),
		Actor:     requestcontext.UserEmail(ctx),
		RequestID: requestcontext.RequestID(ctx),
	})
	return result, nil
}

func (r *Reconciler) setContestant(ctx context.Context, in SetAttendanceInput) (*Result, error) {
	now := requestcontext.Now(ctx)

	if in.Status == models.StatusNotPresent {
		// Deliberate asymmetry: no team cascade on retraction.
		if err := r.store.SetStatus(ctx, models.KindContestant, in.RecordID, in.Status, now); err != nil {
			return nil, translateStoreErr(err)
		}
		return &Result{Kind: in.Kind, RecordID: in.RecordID, Status: in.Status}, nil
	}

	record, err := r.store.Find(ctx, models.KindContestant, in.RecordID)
	if err != nil {
		return nil, translateStoreErr(err)
	}
	if err := r.store.SetStatus(ctx, models.KindContestant, in.RecordID, models.StatusPresent, now); err != nil {
		return nil, translateStoreErr(err)
	}

	if record.TeamID != 0 {
		hashcode := models.TeamHashcode(record.TeamID, record.EventID, now)
		if err := r.store.UpsertGroupPresent(ctx, models.KindTeam, record.TeamID, record.ContingentID, record.EventID, hashcode, now); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to mark team present")
		}
	}
	return &Result{Kind: in.Kind, RecordID: in.RecordID, Status: in.Status}, nil
}

func (r *Reconciler) setSingle(ctx context.Context, in SetAttendanceInput) (*Result, error) {
	now := requestcontext.Now(ctx)
	if err := r.store.SetStatus(ctx, in.Kind, in.RecordID, in.Status, now); err != nil {
		return nil, translateStoreErr(err)
	}
	return &Result{Kind: in.Kind, RecordID: in.RecordID, Status: in.Status}, nil
}

// broadcastContingent marks every manager, the contingent record, and every
// contestant of (contingentID, eventID) Present. Each sub-step runs even if
// an earlier one failed; the outcome list tells the caller what to retry.
func (r *Reconciler) broadcastContingent(ctx context.Context, in SetAttendanceInput) (*Result, error) {
	now := requestcontext.Now(ctx)
	broadcast := &models.BroadcastResult{ContingentID: in.ContingentID, EventID: in.EventID}

	updated, err := r.store.MarkContingentPresent(ctx, models.KindManager, in.ContingentID, in.EventID, now)
	broadcast.Steps = append(broadcast.Steps, stepOutcome(models.StepManagers, updated, err))

	hashcode := models.ContingentHashcode(in.ContingentID, in.EventID, now)
	err = r.store.UpsertGroupPresent(ctx, models.KindContingent, in.ContingentID, in.ContingentID, in.EventID, hashcode, now)
	outcome := stepOutcome(models.StepContingent, 0, err)
	if err == nil {
		outcome.Updated = 1
	}
	broadcast.Steps = append(broadcast.Steps, outcome)

	updated, err = r.store.MarkContingentPresent(ctx, models.KindContestant, in.ContingentID, in.EventID, now)
	broadcast.Steps = append(broadcast.Steps, stepOutcome(models.StepContestants, updated, err))

	if r.metrics != nil {
		r.metrics.Broadcasts.Inc()
	}
	if broadcast.Partial() {
		if r.metrics != nil {
			r.metrics.BroadcastPartials.Inc()
		}
		r.logger.ErrorContext(ctx, "group broadcast completed partially",
			"request_id", requestcontext.RequestID(ctx),
			"contingent_id", in.ContingentID,
			"event_id", in.EventID,
			"failed_steps", broadcast.FailedSteps(),
		)
		r.emitAudit(ctx, audit.Event{
			Action:    audit.ActionBroadcastPartial,
			Subject:   fmt.Sprintf("contingent/%d", in.ContingentID),
			EventID:   in.EventID,
			Detail:    fmt.Sprintf("failed steps: %v", broadcast.FailedSteps()),
			Timestamp: now,
			Actor:     requestcontext.UserEmail(ctx),
			RequestID: requestcontext.RequestID(ctx),
		})
	}

	return &Result{Kind: in.Kind, RecordID: in.RecordID, Status: in.Status, Broadcast: broadcast}, nil
}

func stepOutcome(step models.BroadcastStep, updated int64, err error) models.StepOutcome {
	outcome := models.StepOutcome{Step: step, Updated: updated}
	if err != nil {
		outcome.Err = err.Error()
	}
	return outcome
}

// SetNote updates the free-text note on a record. Notes are independent of
// status and never cascade.
func (r *Reconciler) SetNote(ctx context.Context, kind models.Kind, recordID int64, note string) error {
	if kind != models.KindContestant && kind != models.KindManager {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("notes can only be set on contestant or manager records, got %q", kind))
	}
	if recordID <= 0 {
		return dErrors.New(dErrors.CodeValidation, "recordId is required")
	}
	if err := r.store.SetNote(ctx, kind, recordID, note); err != nil {
		return translateStoreErr(err)
	}
	return nil
}

// Log is the read projection over an event's contestant and manager ledgers.
// The two queries run concurrently.
type Log struct {
	Records       []models.Record
	States        []int64
	ContestGroups []string
}

// LogFilter narrows the projection.
type LogFilter struct {
	StateID      int64
	ContestGroup string
	// Kind restricts the projection to one ledger; empty means both.
	Kind models.Kind
}

func (r *Reconciler) AttendanceLog(ctx context.Context, eventID int64, filter LogFilter) (*Log, error) {
	if eventID <= 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "eventId is required")
	}

	storeFilter := store.Filter{StateID: filter.StateID, ContestGroup: filter.ContestGroup}

	var contestants, managers []models.Record
	g, gctx := errgroup.WithContext(ctx)
	if filter.Kind == "" || filter.Kind == models.KindContestant {
		g.Go(func() error {
			var err error
			contestants, err = r.store.List(gctx, models.KindContestant, eventID, storeFilter)
			return err
		})
	}
	if filter.Kind == "" || filter.Kind == models.KindManager {
		g.Go(func() error {
			var err error
			managers, err = r.store.List(gctx, models.KindManager, eventID, storeFilter)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load attendance log")
	}

	log := &Log{Records: append(contestants, managers...)}
	log.States, log.ContestGroups = distinctFilterOptions(log.Records)
	return log, nil
}

func distinctFilterOptions(records []models.Record) ([]int64, []string) {
	seenStates := make(map[int64]bool)
	seenGroups := make(map[string]bool)
	var states []int64
	var groups []string
	for _, record := range records {
		if record.StateID != 0 && !seenStates[record.StateID] {
			seenStates[record.StateID] = true
			states = append(states, record.StateID)
		}
		if record.ContestGroup != "" && !seenGroups[record.ContestGroup] {
			seenGroups[record.ContestGroup] = true
			groups = append(groups, record.ContestGroup)
		}
	}
	return states, groups
}

func (r *Reconciler) emitAudit(ctx context.Context, event audit.Event) {
	if r.audit == nil {
		return
	}
	_ = r.audit.Emit(ctx, event)
}

func translateStoreErr(err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.Wrap(err, dErrors.CodeNotFound, "attendance record not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "attendance store failure")
}
