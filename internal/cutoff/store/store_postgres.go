package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"rollcall/internal/cutoff/models"
	"rollcall/pkg/platform/sentinel"
	txcontext "rollcall/pkg/platform/tx"
)

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// PostgresTokenStore persists the token ledger in PostgreSQL. Consume joins
// the transaction carried in context so a token burn commits or rolls back
// together with the roster write it authorized.
type PostgresTokenStore struct {
	db *sql.DB
}

func NewPostgresTokenStore(db *sql.DB) *PostgresTokenStore {
	return &PostgresTokenStore{db: db}
}

func (s *PostgresTokenStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresTokenStore) Create(ctx context.Context, token *models.Token) error {
	err := s.execer(ctx).QueryRowContext(ctx, `
		INSERT INTO cutoff_token (event_id, value, consumed, note, created_at)
		VALUES ($1, $2, FALSE, '', $3)
		RETURNING id`,
		token.EventID, token.Value, token.CreatedAt,
	).Scan(&token.ID)
	if err != nil {
		return fmt.Errorf("insert token: %w", err)
	}
	return nil
}

func (s *PostgresTokenStore) FindByValue(ctx context.Context, eventID int64, value string) (*models.Token, error) {
	row := s.execer(ctx).QueryRowContext(ctx, `
		SELECT id, event_id, value, consumed, note, created_at, consumed_at
		FROM cutoff_token
		WHERE event_id = $1 AND value = $2`,
		eventID, value,
	)
	return scanToken(row)
}

func (s *PostgresTokenStore) ListByEvent(ctx context.Context, eventID int64) ([]models.Token, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT id, event_id, value, consumed, note, created_at, consumed_at
		FROM cutoff_token
		WHERE event_id = $1
		ORDER BY id`,
		eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("list tokens: %w", err)
	}
	defer rows.Close()

	var out []models.Token
	for rows.Next() {
		token, err := scanTokenRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *token)
	}
	return out, rows.Err()
}

// Consume is the atomic conditional update: the WHERE consumed = FALSE
// clause makes concurrent burns race at the row, and affected-row count
// tells the loser apart.
func (s *PostgresTokenStore) Consume(ctx context.Context, tokenID int64, note string, now time.Time) error {
	result, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE cutoff_token
		SET consumed = TRUE, note = $2, consumed_at = $3
		WHERE id = $1 AND consumed = FALSE`,
		tokenID, note, now,
	)
	if err != nil {
		return fmt.Errorf("consume token: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("consume token: %w", err)
	}
	if affected == 0 {
		var exists bool
		err := s.execer(ctx).QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM cutoff_token WHERE id = $1)`, tokenID,
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("consume token: %w", err)
		}
		if !exists {
			return fmt.Errorf("token %d: %w", tokenID, sentinel.ErrNotFound)
		}
		return fmt.Errorf("token %d: %w", tokenID, sentinel.ErrAlreadyUsed)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanToken(row *sql.Row) (*models.Token, error) {
	token, err := scanTokenRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("token: %w", sentinel.ErrNotFound)
	}
	return token, err
}

func scanTokenRow(row rowScanner) (*models.Token, error) {
	var token models.Token
	var consumedAt sql.NullTime
	err := row.Scan(&token.ID, &token.EventID, &token.Value, &token.Consumed,
		&token.Note, &token.CreatedAt, &consumedAt)
	if err != nil {
		return nil, err
	}
	if consumedAt.Valid {
		token.ConsumedAt = consumedAt.Time
	}
	return &token, nil
}

// PostgresEventStore resolves events and the team → contest → event chain.
type PostgresEventStore struct {
	db *sql.DB
}

func NewPostgresEventStore(db *sql.DB) *PostgresEventStore {
	return &PostgresEventStore{db: db}
}

func (s *PostgresEventStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresEventStore) Find(ctx context.Context, eventID int64) (*models.Event, error) {
	var event models.Event
	err := s.execer(ctx).QueryRowContext(ctx, `
		SELECT id, name, status, is_active
		FROM event
		WHERE id = $1`,
		eventID,
	).Scan(&event.ID, &event.Name, &event.Status, &event.IsActive)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("event %d: %w", eventID, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find event: %w", err)
	}
	return &event, nil
}

func (s *PostgresEventStore) SetStatus(ctx context.Context, eventID int64, status models.EventStatus) error {
	result, err := s.execer(ctx).ExecContext(ctx,
		`UPDATE event SET status = $2 WHERE id = $1`,
		eventID, string(status),
	)
	if err != nil {
		return fmt.Errorf("set event status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set event status: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("event %d: %w", eventID, sentinel.ErrNotFound)
	}
	return nil
}

func (s *PostgresEventStore) CutoffEventsForTeam(ctx context.Context, teamID int64) ([]models.EventRef, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT DISTINCT e.id, e.name
		FROM event e
		JOIN event_contest ec ON ec.event_id = e.id
		JOIN event_contest_team ect ON ect.event_contest_id = ec.id
		WHERE ect.team_id = $1
		  AND e.is_active = TRUE
		  AND e.status = $2
		ORDER BY e.id`,
		teamID, string(models.EventCutoffRegistration),
	)
	if err != nil {
		return nil, fmt.Errorf("cutoff events for team: %w", err)
	}
	defer rows.Close()

	var refs []models.EventRef
	for rows.Next() {
		var ref models.EventRef
		if err := rows.Scan(&ref.ID, &ref.Name); err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}
