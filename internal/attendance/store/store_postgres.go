package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"rollcall/internal/attendance/models"
	"rollcall/pkg/platform/sentinel"
	txcontext "rollcall/pkg/platform/tx"
)

// PostgresStore persists attendance records in PostgreSQL, one table per
// ledger kind. Team and contingent tables carry a UNIQUE(entity, event_id)
// constraint that backs the upsert path.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed attendance store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

type tableInfo struct {
	name      string
	entityCol string
	hasTeam   bool
}

var tables = map[models.Kind]tableInfo{
	models.KindContestant: {name: "attendance_contestant", entityCol: "contestant_id", hasTeam: true},
	models.KindManager:    {name: "attendance_manager", entityCol: "manager_id"},
	models.KindTeam:       {name: "attendance_team", entityCol: "team_id"},
	models.KindContingent: {name: "attendance_contingent", entityCol: "contingent_id"},
}

func table(kind models.Kind) (tableInfo, error) {
	t, ok := tables[kind]
	if !ok {
		return tableInfo{}, fmt.Errorf("unknown attendance kind %q", kind)
	}
	return t, nil
}

func (s *PostgresStore) Create(ctx context.Context, record *models.Record) error {
	t, err := table(record.Kind)
	if err != nil {
		return err
	}
	var query string
	args := []any{
		record.EntityID, record.ContingentID, record.EventID, record.StateID,
		record.ContestGroup, record.Name, record.Hashcode, string(record.Status),
		record.Note, nullTime(record.AttendanceDate), nullTime(record.AttendanceTime),
	}
	switch {
	case record.Kind == models.KindContingent:
		// entity column and contingent_id are the same column.
		query = `
			INSERT INTO attendance_contingent (contingent_id, event_id, state_id,
				contest_group, name, hashcode, status, note, attendance_date,
				attendance_time, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
			RETURNING id`
		args = []any{
			record.EntityID, record.EventID, record.StateID, record.ContestGroup,
			record.Name, record.Hashcode, string(record.Status), record.Note,
			nullTime(record.AttendanceDate), nullTime(record.AttendanceTime),
		}
	case t.hasTeam:
		query = fmt.Sprintf(`
			INSERT INTO %s (%s, contingent_id, event_id, state_id, contest_group,
				name, hashcode, status, note, attendance_date, attendance_time,
				created_at, updated_at, team_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW(), $12)
			RETURNING id`, t.name, t.entityCol)
		args = append(args, record.TeamID)
	default:
		query = fmt.Sprintf(`
			INSERT INTO %s (%s, contingent_id, event_id, state_id, contest_group,
				name, hashcode, status, note, attendance_date, attendance_time,
				created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW())
			RETURNING id`, t.name, t.entityCol)
	}

	if err := s.execer(ctx).QueryRowContext(ctx, query, args...).Scan(&record.ID); err != nil {
		return fmt.Errorf("create %s attendance record: %w", record.Kind, err)
	}
	return nil
}

func (s *PostgresStore) Find(ctx context.Context, kind models.Kind, recordID int64) (*models.Record, error) {
	t, err := table(kind)
	if err != nil {
		return nil, err
	}
	teamExpr := "0"
	if t.hasTeam {
		teamExpr = "COALESCE(team_id, 0)"
	}
	query := fmt.Sprintf(`
		SELECT id, %s, contingent_id, event_id, %s, COALESCE(state_id, 0),
			COALESCE(contest_group, ''), COALESCE(name, ''), hashcode, status,
			COALESCE(note, ''), attendance_date, attendance_time
		FROM %s
		WHERE id = $1
	`, t.entityCol, teamExpr, t.name)

	record := models.Record{Kind: kind}
	var attendanceDate, attendanceTime sql.NullTime
	var status string
	err = s.execer(ctx).QueryRowContext(ctx, query, recordID).Scan(
		&record.ID, &record.EntityID, &record.ContingentID, &record.EventID,
		&record.TeamID, &record.StateID, &record.ContestGroup, &record.Name,
		&record.Hashcode, &status, &record.Note, &attendanceDate, &attendanceTime,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("attendance record %s/%d: %w", kind, recordID, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find %s attendance record: %w", kind, err)
	}
	record.Status = models.Status(status)
	record.AttendanceDate = attendanceDate.Time
	record.AttendanceTime = attendanceTime.Time
	return &record, nil
}

func (s *PostgresStore) SetStatus(ctx context.Context, kind models.Kind, recordID int64, status models.Status, now time.Time) error {
	t, err := table(kind)
	if err != nil {
		return err
	}

	var query string
	if status == models.StatusPresent {
		query = fmt.Sprintf(`
			UPDATE %s
			SET status = $2, attendance_date = $3, attendance_time = $3, updated_at = $3
			WHERE id = $1
		`, t.name)
	} else {
		// Not Present keeps the prior check-in stamp.
		query = fmt.Sprintf(`
			UPDATE %s
			SET status = $2, updated_at = $3
			WHERE id = $1
		`, t.name)
	}

	result, err := s.execer(ctx).ExecContext(ctx, query, recordID, string(status), now)
	if err != nil {
		return fmt.Errorf("set %s attendance status: %w", kind, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set %s attendance status: %w", kind, err)
	}
	if affected == 0 {
		return fmt.Errorf("attendance record %s/%d: %w", kind, recordID, sentinel.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) SetNote(ctx context.Context, kind models.Kind, recordID int64, note string) error {
	t, err := table(kind)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`UPDATE %s SET note = $2, updated_at = NOW() WHERE id = $1`, t.name)
	result, err := s.execer(ctx).ExecContext(ctx, query, recordID, note)
	if err != nil {
		return fmt.Errorf("set %s attendance note: %w", kind, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set %s attendance note: %w", kind, err)
	}
	if affected == 0 {
		return fmt.Errorf("attendance record %s/%d: %w", kind, recordID, sentinel.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) UpsertGroupPresent(ctx context.Context, kind models.Kind, entityID, contingentID, eventID int64, hashcode string, now time.Time) error {
	if kind != models.KindTeam && kind != models.KindContingent {
		return fmt.Errorf("upsert group for kind %s: %w", kind, sentinel.ErrInvalidState)
	}
	t, _ := table(kind)

	// ON CONFLICT on the (entity, event) unique key makes concurrent
	// first-time check-ins converge on a single row.
	query := fmt.Sprintf(`
		INSERT INTO %s (%s, contingent_id, event_id, hashcode, status,
			attendance_date, attendance_time, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 'Present', $5, $5, $5, $5)
		ON CONFLICT (%s, event_id) DO UPDATE SET
			status = 'Present',
			attendance_date = EXCLUDED.attendance_date,
			attendance_time = EXCLUDED.attendance_time,
			updated_at = EXCLUDED.updated_at
	`, t.name, t.entityCol, t.entityCol)

	args := []any{entityID, contingentID, eventID, hashcode, now}
	if kind == models.KindContingent {
		// entity column and contingent_id are the same column.
		query = fmt.Sprintf(`
			INSERT INTO %s (contingent_id, event_id, hashcode, status,
				attendance_date, attendance_time, created_at, updated_at)
			VALUES ($1, $2, $3, 'Present', $4, $4, $4, $4)
			ON CONFLICT (contingent_id, event_id) DO UPDATE SET
				status = 'Present',
				attendance_date = EXCLUDED.attendance_date,
				attendance_time = EXCLUDED.attendance_time,
				updated_at = EXCLUDED.updated_at
		`, t.name)
		args = []any{entityID, eventID, hashcode, now}
	}

	if _, err := s.execer(ctx).ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert %s attendance: %w", kind, err)
	}
	return nil
}

func (s *PostgresStore) MarkContingentPresent(ctx context.Context, kind models.Kind, contingentID, eventID int64, now time.Time) (int64, error) {
	t, err := table(kind)
	if err != nil {
		return 0, err
	}
	query := fmt.Sprintf(`
		UPDATE %s
		SET status = 'Present', attendance_date = $3, attendance_time = $3, updated_at = $3
		WHERE contingent_id = $1 AND event_id = $2
	`, t.name)

	result, err := s.execer(ctx).ExecContext(ctx, query, contingentID, eventID, now)
	if err != nil {
		return 0, fmt.Errorf("mark %s records present: %w", kind, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark %s records present: %w", kind, err)
	}
	return affected, nil
}

func (s *PostgresStore) List(ctx context.Context, kind models.Kind, eventID int64, filter Filter) ([]models.Record, error) {
	t, err := table(kind)
	if err != nil {
		return nil, err
	}
	teamExpr := "0"
	if t.hasTeam {
		teamExpr = "COALESCE(team_id, 0)"
	}

	query := fmt.Sprintf(`
		SELECT id, %s, contingent_id, event_id, %s, COALESCE(state_id, 0),
			COALESCE(contest_group, ''), COALESCE(name, ''), hashcode, status,
			COALESCE(note, ''), attendance_date, attendance_time
		FROM %s
		WHERE event_id = $1
	`, t.entityCol, teamExpr, t.name)
	args := []any{eventID}

	if filter.StateID != 0 {
		args = append(args, filter.StateID)
		query += fmt.Sprintf(" AND state_id = $%d", len(args))
	}
	if filter.ContestGroup != "" {
		args = append(args, filter.ContestGroup)
		query += fmt.Sprintf(" AND contest_group = $%d", len(args))
	}
	query += " ORDER BY id"

	rows, err := s.execer(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list %s attendance records: %w", kind, err)
	}
	defer rows.Close()

	var out []models.Record
	for rows.Next() {
		record := models.Record{Kind: kind}
		var attendanceDate, attendanceTime sql.NullTime
		var status string
		if err := rows.Scan(
			&record.ID, &record.EntityID, &record.ContingentID, &record.EventID,
			&record.TeamID, &record.StateID, &record.ContestGroup, &record.Name,
			&record.Hashcode, &status, &record.Note, &attendanceDate, &attendanceTime,
		); err != nil {
			return nil, fmt.Errorf("scan %s attendance record: %w", kind, err)
		}
		record.Status = models.Status(status)
		record.AttendanceDate = attendanceDate.Time
		record.AttendanceTime = attendanceTime.Time
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list %s attendance records: %w", kind, err)
	}
	return out, nil
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}
