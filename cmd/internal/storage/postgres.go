package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS taskdash_session_kv (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
)`

// PostgresStore implements Store using PostgreSQL (taskdash_session_kv).
type PostgresStore struct {
	pool  *pgxpool.Pool
	owned bool
}

// NewPostgresStore wraps an existing pool. The caller keeps ownership of the pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// OpenPostgres dials dsn, validates connectivity and ensures the table exists.
// The returned store closes its pool on Close.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := NewDBPool(ctx, dsn, 4, 0)
	if err != nil {
		return nil, err
	}

	s := &PostgresStore{pool: pool, owned: true}
	if err := s.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// EnsureSchema creates the backing table if it is missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresSchema)
	return err
}

// Get returns the value stored under key.
func (s *PostgresStore) Get(ctx context.Context, key string) (string, bool, error) {
	if err := checkKey(key); err != nil {
		return "", false, err
	}

	var v string
	err := s.pool.QueryRow(ctx, `
		SELECT value
		FROM taskdash_session_kv
		WHERE key = $1
	`, key).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

// Set stores value under key (upsert).
func (s *PostgresStore) Set(ctx context.Context, key, value string) error {
	if err := checkKey(key); err != nil {
		return err
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO taskdash_session_kv (key, value, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value,
		    updated_at = EXCLUDED.updated_at
	`, key, value, time.Now().UTC())
	return err
}

// Delete removes key (idempotent).
func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	if err := checkKey(key); err != nil {
		return err
	}

	_, err := s.pool.Exec(ctx, `
		DELETE FROM taskdash_session_kv
		WHERE key = $1
	`, key)
	return err
}

// Close releases the pool if the store opened it.
func (s *PostgresStore) Close() error {
	if s.owned {
		s.pool.Close()
	}
	return nil
}

// Ping acquires a connection within two seconds.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return PingDB(ctx, s.pool, 2*time.Second)
}

// NewDBPool builds a pgxpool with sane defaults and validates connectivity.
func NewDBPool(ctx context.Context, dsn string, maxConns, minConns int32) (*pgxpool.Pool, error) {
	pcfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}

	if maxConns > 0 {
		pcfg.MaxConns = maxConns
	}
	if minConns >= 0 {
		pcfg.MinConns = minConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, err
	}

	if err := PingDB(ctx, pool, 3*time.Second); err != nil {
		pool.Close()
		return nil, err
	}

	return pool, nil
}

// PingDB checks if we can acquire a connection within timeout.
func PingDB(parent context.Context, pool *pgxpool.Pool, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return err
	}
	conn.Release()
	return nil
}
