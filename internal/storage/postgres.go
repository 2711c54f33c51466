package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PgxIface is the subset of *pgxpool.Pool the postgres medium needs.
// pgxmock pools satisfy it in tests.
type PgxIface interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Postgres stores values in the client_storage table, partitioned by a profile
// name so several shells can share one database.
type Postgres struct {
	pgpool  PgxIface
	profile string
}

var _ Storage = (*Postgres)(nil)

// NewPostgres returns a medium scoped to profile. The table is created by the
// migrations in app/db.
func NewPostgres(pgpool PgxIface, profile string) *Postgres {
	if profile == "" {
		profile = "default"
	}
	return &Postgres{pgpool: pgpool, profile: profile}
}

func (p *Postgres) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := p.pgpool.QueryRow(ctx,
		`SELECT value FROM client_storage WHERE profile = $1 AND key = $2`,
		p.profile, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("postgres get %q: %w", key, err)
	}
	return value, nil
}

func (p *Postgres) Set(ctx context.Context, key, value string) error {
	_, err := p.pgpool.Exec(ctx, `
		INSERT INTO client_storage (profile, key, value, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (profile, key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`,
		p.profile, key, value)
	if err != nil {
		return fmt.Errorf("postgres set %q: %w", key, err)
	}
	return nil
}

func (p *Postgres) Remove(ctx context.Context, key string) error {
	_, err := p.pgpool.Exec(ctx,
		`DELETE FROM client_storage WHERE profile = $1 AND key = $2`, p.profile, key)
	if err != nil {
		return fmt.Errorf("postgres remove %q: %w", key, err)
	}
	return nil
}
