package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/kalambet/creatorswipe/internal/profile"
)

const postgresSchema = `CREATE TABLE IF NOT EXISTS profiles (
	seq         BIGSERIAL PRIMARY KEY,
	id          TEXT NOT NULL UNIQUE,
	name        TEXT NOT NULL,
	project     TEXT NOT NULL,
	description TEXT NOT NULL,
	video_url   TEXT NOT NULL DEFAULT '',
	tags        TEXT[] NOT NULL DEFAULT '{}',
	created_at  TIMESTAMPTZ NOT NULL
)`

// PostgresStore keeps creator profiles in a hosted Postgres database.
// Decisions and jobs stay in the local SQLite store.
type PostgresStore struct {
	db *sql.DB
}

// OpenPostgres connects to dsn and creates the profiles table if needed.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn is empty")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening postgres: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}

	if _, err := db.ExecContext(ctx, postgresSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating profiles table: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func (p *PostgresStore) Close() error {
	return p.db.Close()
}

func (p *PostgresStore) SaveProfile(r profile.Record) error {
	tags := r.Tags
	if tags == nil {
		tags = []string{}
	}
	_, err := p.db.Exec(`
		INSERT INTO profiles (id, name, project, description, video_url, tags, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		string(r.ID), r.Name, r.Project, r.Description, r.VideoURL, pq.Array(tags), r.CreatedAt.UTC(),
	)
	return err
}

func (p *PostgresStore) GetProfile(id string) (profile.Record, error) {
	row := p.db.QueryRow(`
		SELECT id, name, project, description, video_url, tags, created_at
		FROM profiles WHERE id = $1`, id,
	)
	r, err := scanPostgresProfile(row)
	if err == sql.ErrNoRows {
		return profile.Record{}, ErrNotFound
	}
	return r, err
}

// ListProfiles returns profiles in insertion order. limit <= 0 means no limit.
func (p *PostgresStore) ListProfiles(limit, offset int) ([]profile.Record, error) {
	var lim any // NULL disables LIMIT
	if limit > 0 {
		lim = limit
	}
	rows, err := p.db.Query(`
		SELECT id, name, project, description, video_url, tags, created_at
		FROM profiles ORDER BY seq ASC LIMIT $1 OFFSET $2`, lim, max(offset, 0),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []profile.Record{}
	for rows.Next() {
		r, err := scanPostgresProfile(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

func scanPostgresProfile(row rowScanner) (profile.Record, error) {
	var r profile.Record
	var id string
	var tags pq.StringArray
	if err := row.Scan(&id, &r.Name, &r.Project, &r.Description, &r.VideoURL, &tags, &r.CreatedAt); err != nil {
		return profile.Record{}, err
	}
	r.ID = profile.ID(id)
	r.Tags = []string(tags)
	if r.Tags == nil {
		r.Tags = []string{}
	}
	return r, nil
}
