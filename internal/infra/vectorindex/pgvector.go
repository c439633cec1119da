package vectorindex

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/yanqian/offlineqa/internal/domain/qa"
)

// PgvectorIndex stores vectors in Postgres and ranks them with the pgvector
// `<->` (L2) operator.
type PgvectorIndex struct {
	pool   *pgxpool.Pool
	name   string
	logger *slog.Logger

	mu    sync.RWMutex
	count int
	dims  int
	built bool
}

// NewPgvectorIndex constructs the index. name scopes rows so several
// datasets can share one database.
func NewPgvectorIndex(pool *pgxpool.Pool, name string, logger *slog.Logger) *PgvectorIndex {
	if name == "" {
		name = "default"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PgvectorIndex{pool: pool, name: name, logger: logger.With("component", "vectorindex.pgvector")}
}

// EnsureSchema creates the extension and tables when missing.
func (p *PgvectorIndex) EnsureSchema(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, `
		CREATE EXTENSION IF NOT EXISTS vector;
		CREATE TABLE IF NOT EXISTS qa_index_meta (
			name TEXT PRIMARY KEY,
			version TEXT NOT NULL,
			dims INTEGER NOT NULL,
			count INTEGER NOT NULL
		);
		CREATE TABLE IF NOT EXISTS qa_vectors (
			index_name TEXT NOT NULL,
			position INTEGER NOT NULL,
			embedding vector NOT NULL,
			PRIMARY KEY (index_name, position)
		);
	`)
	if err != nil {
		return fmt.Errorf("ensure pgvector schema: %w", err)
	}
	return nil
}

// Build rewrites the rows for this index unless the stored version, width and
// count already match.
func (p *PgvectorIndex) Build(ctx context.Context, version string, vectors [][]float32) error {
	dims, err := uniformDims(vectors)
	if err != nil {
		return err
	}
	if err := p.EnsureSchema(ctx); err != nil {
		return err
	}

	var (
		storedVersion string
		storedDims    int
		storedCount   int
	)
	err = p.pool.QueryRow(ctx, `SELECT version, dims, count FROM qa_index_meta WHERE name = $1`, p.name).
		Scan(&storedVersion, &storedDims, &storedCount)
	switch {
	case err == nil && storedVersion == version && storedDims == dims && storedCount == len(vectors):
		p.setState(len(vectors), dims)
		p.logger.Info("pgvector index up to date", "name", p.name, "version", version, "count", storedCount)
		return nil
	case err != nil && !errors.Is(err, pgx.ErrNoRows):
		return fmt.Errorf("reading index meta: %w", err)
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM qa_vectors WHERE index_name = $1`, p.name); err != nil {
		return fmt.Errorf("clearing vectors: %w", err)
	}
	batch := &pgx.Batch{}
	for i, vec := range vectors {
		batch.Queue(`INSERT INTO qa_vectors (index_name, position, embedding) VALUES ($1, $2, $3)`,
			p.name, i, pgvector.NewVector(vec))
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("inserting vectors: %w", err)
		}
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO qa_index_meta (name, version, dims, count) VALUES ($1, $2, $3, $4)
		ON CONFLICT (name) DO UPDATE SET version = EXCLUDED.version, dims = EXCLUDED.dims, count = EXCLUDED.count
	`, p.name, version, dims, len(vectors)); err != nil {
		return fmt.Errorf("writing index meta: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	p.setState(len(vectors), dims)
	p.logger.Info("pgvector index rebuilt", "name", p.name, "version", version, "count", len(vectors), "dims", dims)
	return nil
}

// Search returns the k nearest rows.
func (p *PgvectorIndex) Search(ctx context.Context, vector []float32, k int) ([]qa.Neighbor, error) {
	p.mu.RLock()
	count, dims, built := p.count, p.dims, p.built
	p.mu.RUnlock()
	if !built {
		return nil, ErrNotBuilt
	}
	if count == 0 || k <= 0 {
		return nil, nil
	}
	if len(vector) != dims {
		return nil, fmt.Errorf("query has %d dimensions, index has %d", len(vector), dims)
	}

	rows, err := p.pool.Query(ctx, `
		SELECT position, embedding <-> $2 AS distance
		FROM qa_vectors
		WHERE index_name = $1
		ORDER BY embedding <-> $2, position
		LIMIT $3
	`, p.name, pgvector.NewVector(vector), k)
	if err != nil {
		return nil, fmt.Errorf("query nearest: %w", err)
	}
	defer rows.Close()

	hits := make([]qa.Neighbor, 0, k)
	for rows.Next() {
		var hit qa.Neighbor
		if err := rows.Scan(&hit.Position, &hit.Distance); err != nil {
			return nil, fmt.Errorf("scan nearest: %w", err)
		}
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return hits, nil
}

// Len returns the number of indexed vectors.
func (p *PgvectorIndex) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.count
}

// Close is a no-op; the pool is owned by the caller.
func (p *PgvectorIndex) Close() error { return nil }

func (p *PgvectorIndex) setState(count, dims int) {
	p.mu.Lock()
	p.count, p.dims, p.built = count, dims, true
	p.mu.Unlock()
}

var _ qa.Index = (*PgvectorIndex)(nil)
