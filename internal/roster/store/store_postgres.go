package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"rollcall/internal/roster/models"
	"rollcall/pkg/platform/sentinel"
	txcontext "rollcall/pkg/platform/tx"
)

// PostgresStore persists rosters in PostgreSQL. Writes join the transaction
// carried in context so a member insert commits together with the token
// burn that authorized it.
type PostgresStore struct {
	db *sql.DB
}

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

func (s *PostgresStore) FindTeam(ctx context.Context, teamID int64) (*models.Team, error) {
	var team models.Team
	var contestMax sql.NullInt64
	var contestName sql.NullString
	err := s.execer(ctx).QueryRowContext(ctx, `
		SELECT t.id, t.name, t.contingent_id, t.max_members,
		       c.max_members, c.name
		FROM team t
		LEFT JOIN contest c ON c.id = t.contest_id
		WHERE t.id = $1`,
		teamID,
	).Scan(&team.ID, &team.Name, &team.ContingentID, &team.MaxMembers,
		&contestMax, &contestName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("team %d: %w", teamID, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find team: %w", err)
	}
	if contestMax.Valid {
		team.ContestMaxMembers = int(contestMax.Int64)
	}
	if contestName.Valid {
		team.ContestName = contestName.String
	}

	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT m.id, m.team_id, m.contestant_id, ct.name, m.role, m.joined_at
		FROM team_member m
		JOIN contestant ct ON ct.id = m.contestant_id
		WHERE m.team_id = $1
		ORDER BY m.id`,
		teamID,
	)
	if err != nil {
		return nil, fmt.Errorf("load team members: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var member models.Member
		if err := rows.Scan(&member.ID, &member.TeamID, &member.ContestantID,
			&member.Name, &member.Role, &member.JoinedAt); err != nil {
			return nil, err
		}
		team.Members = append(team.Members, member)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &team, nil
}

func (s *PostgresStore) FindContestant(ctx context.Context, contestantID int64) (*models.Contestant, error) {
	var contestant models.Contestant
	err := s.execer(ctx).QueryRowContext(ctx, `
		SELECT id, name, contingent_id
		FROM contestant
		WHERE id = $1`,
		contestantID,
	).Scan(&contestant.ID, &contestant.Name, &contestant.ContingentID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("contestant %d: %w", contestantID, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find contestant: %w", err)
	}
	return &contestant, nil
}

func (s *PostgresStore) FindMember(ctx context.Context, teamID, memberID int64) (*models.Member, error) {
	var member models.Member
	err := s.execer(ctx).QueryRowContext(ctx, `
		SELECT m.id, m.team_id, m.contestant_id, ct.name, m.role, m.joined_at
		FROM team_member m
		JOIN contestant ct ON ct.id = m.contestant_id
		WHERE m.id = $1 AND m.team_id = $2`,
		memberID, teamID,
	).Scan(&member.ID, &member.TeamID, &member.ContestantID,
		&member.Name, &member.Role, &member.JoinedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("member %d of team %d: %w", memberID, teamID, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find member: %w", err)
	}
	return &member, nil
}

func (s *PostgresStore) AddMember(ctx context.Context, member *models.Member) error {
	err := s.execer(ctx).QueryRowContext(ctx, `
		INSERT INTO team_member (team_id, contestant_id, role, joined_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		member.TeamID, member.ContestantID, member.Role, member.JoinedAt,
	).Scan(&member.ID)
	if err != nil {
		var pqErr *pq.Error
		// 23505 unique_violation on (team_id, contestant_id)
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return fmt.Errorf("contestant %d on team %d: %w", member.ContestantID, member.TeamID, sentinel.ErrConflict)
		}
		return fmt.Errorf("add member: %w", err)
	}
	return nil
}

func (s *PostgresStore) RemoveMember(ctx context.Context, teamID, memberID int64) error {
	result, err := s.execer(ctx).ExecContext(ctx,
		`DELETE FROM team_member WHERE id = $1 AND team_id = $2`,
		memberID, teamID,
	)
	if err != nil {
		return fmt.Errorf("remove member: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("remove member: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("member %d of team %d: %w", memberID, teamID, sentinel.ErrNotFound)
	}
	return nil
}
