//go:build integration

// Package containers provides shared test containers for integration tests.
package containers

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// PostgresContainer wraps a testcontainers PostgreSQL instance with the
// project schema applied.
type PostgresContainer struct {
	Container testcontainers.Container
	DSN       string
	DB        *sql.DB
}

// NewPostgresContainer starts a PostgreSQL container and applies the schema.
func NewPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("rollcall_test"),
		tcpostgres.WithUsername("rollcall"),
		tcpostgres.WithPassword("rollcall"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to get postgres connection string: %v", err)
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to open postgres connection: %v", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		_ = container.Terminate(ctx)
		t.Fatalf("failed to ping postgres: %v", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		_ = container.Terminate(ctx)
		t.Fatalf("failed to apply schema: %v", err)
	}

	pc := &PostgresContainer{Container: container, DSN: dsn, DB: db}
	t.Cleanup(func() {
		_ = db.Close()
		_ = container.Terminate(context.Background())
	})
	return pc
}

// TruncateTables clears the given tables between tests.
func (p *PostgresContainer) TruncateTables(ctx context.Context, tables ...string) error {
	if len(tables) == 0 {
		return nil
	}
	_, err := p.DB.ExecContext(ctx,
		fmt.Sprintf("TRUNCATE %s RESTART IDENTITY CASCADE", strings.Join(tables, ", ")))
	return err
}

const schema = `
CREATE TABLE event (
	id        BIGSERIAL PRIMARY KEY,
	name      TEXT NOT NULL,
	status    TEXT NOT NULL DEFAULT 'OPEN',
	is_active BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE TABLE contest (
	id          BIGSERIAL PRIMARY KEY,
	name        TEXT NOT NULL,
	max_members INT NOT NULL DEFAULT 0
);

CREATE TABLE event_contest (
	id         BIGSERIAL PRIMARY KEY,
	event_id   BIGINT NOT NULL REFERENCES event(id),
	contest_id BIGINT NOT NULL REFERENCES contest(id)
);

CREATE TABLE team (
	id            BIGSERIAL PRIMARY KEY,
	name          TEXT NOT NULL,
	contingent_id BIGINT NOT NULL,
	contest_id    BIGINT REFERENCES contest(id),
	max_members   INT NOT NULL DEFAULT 0
);

CREATE TABLE event_contest_team (
	id               BIGSERIAL PRIMARY KEY,
	event_contest_id BIGINT NOT NULL REFERENCES event_contest(id),
	team_id          BIGINT NOT NULL REFERENCES team(id)
);

CREATE TABLE contestant (
	id            BIGSERIAL PRIMARY KEY,
	name          TEXT NOT NULL,
	contingent_id BIGINT NOT NULL
);

CREATE TABLE team_member (
	team_id       BIGINT NOT NULL REFERENCES team(id),
	id            BIGSERIAL PRIMARY KEY,
	contestant_id BIGINT NOT NULL REFERENCES contestant(id),
	role          TEXT NOT NULL DEFAULT '',
	joined_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (team_id, contestant_id)
);

CREATE TABLE cutoff_token (
	id          BIGSERIAL PRIMARY KEY,
	event_id    BIGINT NOT NULL REFERENCES event(id),
	value       TEXT NOT NULL,
	consumed    BOOLEAN NOT NULL DEFAULT FALSE,
	note        TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	consumed_at TIMESTAMPTZ,
	UNIQUE (event_id, value)
);

CREATE TABLE attendance_contestant (
	id              BIGSERIAL PRIMARY KEY,
	contestant_id   BIGINT NOT NULL,
	contingent_id   BIGINT NOT NULL,
	event_id        BIGINT NOT NULL,
	team_id         BIGINT,
	state_id        BIGINT,
	contest_group   TEXT,
	name            TEXT,
	hashcode        TEXT NOT NULL DEFAULT '',
	status          TEXT NOT NULL DEFAULT 'Not Present',
	note            TEXT,
	attendance_date TIMESTAMPTZ,
	attendance_time TIMESTAMPTZ,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (contestant_id, event_id)
);

CREATE TABLE attendance_manager (
	id              BIGSERIAL PRIMARY KEY,
	manager_id      BIGINT NOT NULL,
	contingent_id   BIGINT NOT NULL,
	event_id        BIGINT NOT NULL,
	state_id        BIGINT,
	contest_group   TEXT,
	name            TEXT,
	hashcode        TEXT NOT NULL DEFAULT '',
	status          TEXT NOT NULL DEFAULT 'Not Present',
	note            TEXT,
	attendance_date TIMESTAMPTZ,
	attendance_time TIMESTAMPTZ,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (manager_id, event_id)
);

CREATE TABLE attendance_team (
	id              BIGSERIAL PRIMARY KEY,
	team_id         BIGINT NOT NULL,
	contingent_id   BIGINT NOT NULL,
	event_id        BIGINT NOT NULL,
	state_id        BIGINT,
	contest_group   TEXT,
	name            TEXT,
	hashcode        TEXT NOT NULL DEFAULT '',
	status          TEXT NOT NULL DEFAULT 'Not Present',
	note            TEXT,
	attendance_date TIMESTAMPTZ,
	attendance_time TIMESTAMPTZ,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (team_id, event_id)
);

CREATE TABLE attendance_contingent (
	id              BIGSERIAL PRIMARY KEY,
	contingent_id   BIGINT NOT NULL,
	event_id        BIGINT NOT NULL,
	state_id        BIGINT,
	contest_group   TEXT,
	name            TEXT,
	hashcode        TEXT NOT NULL DEFAULT '',
	status          TEXT NOT NULL DEFAULT 'Not Present',
	note            TEXT,
	attendance_date TIMESTAMPTZ,
	attendance_time TIMESTAMPTZ,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (contingent_id, event_id)
);
`
