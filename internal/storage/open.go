package storage

import (
	"context"
	"log/slog"

	"github.com/your-org/attention/internal/config"
)

// Backend is the opened snapshot store plus the optional extras some
// backends provide.
type Backend struct {
	KV KV
	// Postgres is set for the postgres backend; it also serves identity search.
	Postgres *PostgresStore
	// MinIO is set whenever MinIO is reachable; it also serves camera frames.
	MinIO *MinIOStore

	closers []func()
}

// Close releases every connection the backend holds.
func (b *Backend) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

// Open connects the configured snapshot backend. A backend that cannot be
// opened degrades to an in-memory store with a warning; Open never fails.
func Open(ctx context.Context, cfg *config.Config) *Backend {
	b := &Backend{}

	if cfg.MinIO.Endpoint != "" {
		m, err := NewMinIOStore(cfg.MinIO)
		if err == nil {
			err = m.EnsureBucket(ctx)
		}
		if err != nil {
			slog.Warn("minio unavailable", "error", err)
		} else {
			b.MinIO = m
		}
	}

	switch cfg.Storage.Backend {
	case "sqlite":
		s, err := NewSQLiteStore(cfg.SQLite.Path)
		if err != nil {
			slog.Warn("sqlite unavailable, keeping state in memory", "path", cfg.SQLite.Path, "error", err)
			break
		}
		b.KV = s
		b.closers = append(b.closers, func() { s.Close() })
	case "postgres":
		p, err := NewPostgresStore(cfg.Database)
		if err == nil {
			err = p.EnsureSchema(ctx)
			if err != nil {
				p.Close()
			}
		}
		if err != nil {
			slog.Warn("postgres unavailable, keeping state in memory", "error", err)
			break
		}
		b.KV = p
		b.Postgres = p
		b.closers = append(b.closers, p.Close)
	case "minio":
		if b.MinIO == nil {
			slog.Warn("minio backend selected but unavailable, keeping state in memory")
			break
		}
		b.KV = b.MinIO
	}

	if b.KV == nil {
		b.KV = NewMemoryStore()
	}
	slog.Info("storage ready", "backend", cfg.Storage.Backend, "kv", kvName(b.KV))
	return b
}

func kvName(kv KV) string {
	switch kv.(type) {
	case *SQLiteStore:
		return "sqlite"
	case *PostgresStore:
		return "postgres"
	case *MinIOStore:
		return "minio"
	default:
		return "memory"
	}
}
