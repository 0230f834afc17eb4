package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/your-org/attention/internal/config"
	"github.com/your-org/attention/internal/models"
)

const postgresSchema = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS attention_kv (
    key        TEXT PRIMARY KEY,
    value      JSONB NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS identity_embeddings (
    identity_id  TEXT NOT NULL,
    ref_index    INT NOT NULL,
    display_name TEXT NOT NULL,
    external_ref TEXT NOT NULL,
    embedding    vector NOT NULL,
    PRIMARY KEY (identity_id, ref_index)
);`

// PostgresStore keeps snapshots in Postgres and mirrors the gallery's
// reference embeddings into a pgvector table for nearest-identity search.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(cfg config.DatabaseConfig) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConns)

	pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// EnsureSchema creates the tables and the vector extension if missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.pool.QueryRow(ctx, `SELECT value FROM attention_kv WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return value, nil
}

func (s *PostgresStore) Put(ctx context.Context, key string, value []byte) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO attention_kv (key, value, updated_at) VALUES ($1, $2, $3)
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
		key, value, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

// IndexIdentities replaces the embedding index with the given gallery.
func (s *PostgresStore) IndexIdentities(ctx context.Context, identities []models.Identity) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin index: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM identity_embeddings`); err != nil {
		return fmt.Errorf("clear index: %w", err)
	}

	batch := &pgx.Batch{}
	for _, identity := range identities {
		for i, ref := range identity.ReferenceEmbeddings {
			batch.Queue(
				`INSERT INTO identity_embeddings (identity_id, ref_index, display_name, external_ref, embedding)
				 VALUES ($1, $2, $3, $4, $5)`,
				identity.ID, i, identity.DisplayName, identity.ExternalRef, pgvector.NewVector(ref),
			)
		}
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert index rows: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit index: %w", err)
	}
	return nil
}

// SearchIdentities ranks identities by the L2 distance of their closest
// reference embedding to probe.
func (s *PostgresStore) SearchIdentities(ctx context.Context, probe []float32, limit int) ([]models.IdentityMatch, error) {
	if limit <= 0 {
		limit = 5
	}
	rows, err := s.pool.Query(ctx, `
		SELECT identity_id, display_name, external_ref, MIN(embedding <-> $1) AS distance
		FROM identity_embeddings
		WHERE vector_dims(embedding) = $2
		GROUP BY identity_id, display_name, external_ref
		ORDER BY distance
		LIMIT $3`,
		pgvector.NewVector(probe), len(probe), limit)
	if err != nil {
		return nil, fmt.Errorf("search identities: %w", err)
	}
	defer rows.Close()

	var matches []models.IdentityMatch
	for rows.Next() {
		var m models.IdentityMatch
		if err := rows.Scan(&m.IdentityID, &m.DisplayName, &m.ExternalRef, &m.Distance); err != nil {
			return nil, fmt.Errorf("scan identity match: %w", err)
		}
		m.Confidence = 1 - m.Distance
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("search identities: %w", err)
	}
	return matches, nil
}
