package settings

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Schema is the SQL DDL for the user_profiles table. Execute it via
// [PostgresStore.Migrate] or apply it manually during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS user_profiles (
    user_id    TEXT PRIMARY KEY,
    name       TEXT NOT NULL DEFAULT '',
    voice      INTEGER,
    skin       INTEGER,
    font       INTEGER,
    sound      INTEGER,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// DB is the database interface used by [PostgresStore]. Both *pgxpool.Pool
// and *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore is a [Store] backed by a PostgreSQL database. Optional
// numeric fields map to nullable columns.
type PostgresStore struct {
	db DB
}

// Compile-time interface check.
var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a new [PostgresStore] that uses the given database
// connection or pool. The caller is responsible for calling
// [PostgresStore.Migrate] to ensure the schema exists before issuing queries.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate executes the [Schema] DDL against the database, creating the
// user_profiles table if it does not already exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.Exec(ctx, Schema)
	if err != nil {
		return fmt.Errorf("settings: migrate: %w", err)
	}
	return nil
}

// Get implements [Store.Get]. It returns (nil, nil) if the user has no
// stored profile.
func (s *PostgresStore) Get(ctx context.Context, userID string) (*Profile, error) {
	const query = `
		SELECT name, voice, skin, font, sound
		FROM user_profiles
		WHERE user_id = $1`

	var p Profile
	err := s.db.QueryRow(ctx, query, userID).Scan(
		&p.Name, &p.Voice, &p.Skin, &p.Font, &p.Sound,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("settings: get %q: %w", userID, err)
	}
	return &p, nil
}

// Put implements [Store.Put] as an upsert, so first-time commenters get a
// profile row without a separate create step.
func (s *PostgresStore) Put(ctx context.Context, userID string, p Profile) error {
	const query = `
		INSERT INTO user_profiles (user_id, name, voice, skin, font, sound)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (user_id) DO UPDATE SET
			name = EXCLUDED.name,
			voice = EXCLUDED.voice,
			skin = EXCLUDED.skin,
			font = EXCLUDED.font,
			sound = EXCLUDED.sound,
			updated_at = now()`

	_, err := s.db.Exec(ctx, query, userID, p.Name, p.Voice, p.Skin, p.Font, p.Sound)
	if err != nil {
		return fmt.Errorf("settings: put %q: %w", userID, err)
	}
	return nil
}
