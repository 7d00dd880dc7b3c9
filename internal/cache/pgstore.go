package cache

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const cacheSchema = `
CREATE TABLE IF NOT EXISTS translation_cache (
	key         TEXT PRIMARY KEY,
	source      TEXT NOT NULL,
	target      TEXT NOT NULL,
	text        TEXT NOT NULL,
	translation TEXT NOT NULL
)`

const upsertEntry = `
INSERT INTO translation_cache (key, source, target, text, translation)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (key) DO UPDATE SET text = EXCLUDED.text, translation = EXCLUDED.translation`

// pgStore persists entries in PostgreSQL so several machines can share a
// cache.
type pgStore struct {
	pool *pgxpool.Pool
}

// NewPGStore ensures the cache table exists and returns a Store backed by
// pool. The pool remains owned by the caller.
func NewPGStore(ctx context.Context, pool *pgxpool.Pool) (Store, error) {
	if _, err := pool.Exec(ctx, cacheSchema); err != nil {
		return nil, fmt.Errorf("create cache table: %w", err)
	}
	return &pgStore{pool: pool}, nil
}

func (s *pgStore) Load(ctx context.Context) ([]Entry, error) {
	rows, err := s.pool.Query(ctx, `SELECT key, source, target, text, translation FROM translation_cache`)
	if err != nil {
		return nil, fmt.Errorf("load cache: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Key, &e.Source, &e.Target, &e.Text, &e.Translation); err != nil {
			return nil, fmt.Errorf("scan cache row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load cache: %w", err)
	}
	return entries, nil
}

func (s *pgStore) Append(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	b := &pgx.Batch{}
	for _, e := range entries {
		b.Queue(upsertEntry, e.Key, e.Source, e.Target, e.Text, e.Translation)
	}
	br := s.pool.SendBatch(ctx, b)
	defer br.Close()
	for range entries {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("upsert cache entry: %w", err)
		}
	}
	return nil
}

func (s *pgStore) Save(ctx context.Context, entries []Entry) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin cache rewrite: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM translation_cache`); err != nil {
		return fmt.Errorf("clear cache table: %w", err)
	}
	if len(entries) > 0 {
		b := &pgx.Batch{}
		for _, e := range entries {
			b.Queue(upsertEntry, e.Key, e.Source, e.Target, e.Text, e.Translation)
		}
		br := tx.SendBatch(ctx, b)
		for range entries {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return fmt.Errorf("rewrite cache entry: %w", err)
			}
		}
		if err := br.Close(); err != nil {
			return fmt.Errorf("rewrite cache: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit cache rewrite: %w", err)
	}
	return nil
}
