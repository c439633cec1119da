package vectorindex

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"github.com/yanqian/offlineqa/internal/domain/qa"
)

// maxKNN is the largest k a vec0 KNN query accepts.
const maxKNN = 4096

// SQLiteVecIndex persists vectors in a sqlite-vec vec0 table so a restart
// with the same dataset and model skips re-indexing.
type SQLiteVecIndex struct {
	db     *sql.DB
	logger *slog.Logger

	mu    sync.RWMutex
	count int
	dims  int
	built bool
}

// NewSQLiteVecIndex opens (or creates) the database at path. ":memory:" keeps
// everything in process.
func NewSQLiteVecIndex(path string, logger *slog.Logger) (*SQLiteVecIndex, error) {
	sqlite_vec.Auto()

	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite database path is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// one connection so ":memory:" is a single database
	db.SetMaxOpenConns(1)

	var vecVersion string
	if err := db.QueryRow("SELECT vec_version()").Scan(&vecVersion); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite-vec not available: %w", err)
	}
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS qa_index_meta (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			version TEXT NOT NULL,
			dims INTEGER NOT NULL,
			count INTEGER NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating meta table: %w", err)
	}

	log := logger.With("component", "vectorindex.sqlitevec")
	log.Info("sqlite-vec index opened", "db_path", path, "vec_version", vecVersion)
	return &SQLiteVecIndex{db: db, logger: log}, nil
}

// Build writes vectors unless the stored version, width and count already
// match.
func (s *SQLiteVecIndex) Build(ctx context.Context, version string, vectors [][]float32) error {
	dims, err := uniformDims(vectors)
	if err != nil {
		return err
	}

	var (
		storedVersion string
		storedDims    int
		storedCount   int
	)
	err = s.db.QueryRowContext(ctx, `SELECT version, dims, count FROM qa_index_meta WHERE id = 1`).
		Scan(&storedVersion, &storedDims, &storedCount)
	switch {
	case err == nil && storedVersion == version && storedDims == dims && storedCount == len(vectors):
		s.setState(len(vectors), dims)
		s.logger.Info("sqlite-vec index up to date", "version", version, "count", storedCount)
		return nil
	case err != nil && !errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("reading index meta: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DROP TABLE IF EXISTS qa_vectors`); err != nil {
		return fmt.Errorf("dropping vec0 table: %w", err)
	}
	if dims > 0 {
		createVec := fmt.Sprintf(`CREATE VIRTUAL TABLE qa_vectors USING vec0(embedding float[%d])`, dims)
		if _, err := tx.ExecContext(ctx, createVec); err != nil {
			return fmt.Errorf("creating vec0 table: %w", err)
		}
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO qa_vectors(rowid, embedding) VALUES (?, ?)`)
		if err != nil {
			return fmt.Errorf("preparing insert: %w", err)
		}
		defer stmt.Close()
		for i, vec := range vectors {
			// vec0 rowids start at 1
			if _, err := stmt.ExecContext(ctx, int64(i+1), serializeFloat32(vec)); err != nil {
				return fmt.Errorf("inserting vector %d: %w", i, err)
			}
		}
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO qa_index_meta(id, version, dims, count) VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET version = excluded.version, dims = excluded.dims, count = excluded.count
	`, version, dims, len(vectors)); err != nil {
		return fmt.Errorf("writing index meta: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	s.setState(len(vectors), dims)
	s.logger.Info("sqlite-vec index rebuilt", "version", version, "count", len(vectors), "dims", dims)
	return nil
}

// Search runs a vec0 KNN query.
func (s *SQLiteVecIndex) Search(ctx context.Context, vector []float32, k int) ([]qa.Neighbor, error) {
	s.mu.RLock()
	count, dims, built := s.count, s.dims, s.built
	s.mu.RUnlock()
	if !built {
		return nil, ErrNotBuilt
	}
	if count == 0 || k <= 0 {
		return nil, nil
	}
	if len(vector) != dims {
		return nil, fmt.Errorf("query has %d dimensions, index has %d", len(vector), dims)
	}

	k = min(k, count)
	query := `
		SELECT rowid, distance
		FROM qa_vectors
		WHERE embedding MATCH ?
			AND k = ?
		ORDER BY distance
	`
	if k > maxKNN {
		// vec0 KNN caps k; scan the table instead
		query = `
			SELECT rowid, vec_distance_l2(embedding, ?) AS distance
			FROM qa_vectors
			ORDER BY distance, rowid
			LIMIT ?
		`
	}
	rows, err := s.db.QueryContext(ctx, query, serializeFloat32(vector), k)
	if err != nil {
		return nil, fmt.Errorf("querying vectors: %w", err)
	}
	defer rows.Close()

	var hits []qa.Neighbor
	for rows.Next() {
		var (
			rowID    int64
			distance float64
		)
		if err := rows.Scan(&rowID, &distance); err != nil {
			return nil, fmt.Errorf("scanning query result: %w", err)
		}
		hits = append(hits, qa.Neighbor{Position: int(rowID - 1), Distance: distance})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating query results: %w", err)
	}
	sortNeighbors(hits)
	return hits, nil
}

// Len returns the number of indexed vectors.
func (s *SQLiteVecIndex) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.count
}

// Close releases the database handle.
func (s *SQLiteVecIndex) Close() error {
	return s.db.Close()
}

func (s *SQLiteVecIndex) setState(count, dims int) {
	s.mu.Lock()
	s.count, s.dims, s.built = count, dims, true
	s.mu.Unlock()
}

// serializeFloat32 encodes a vector in the little-endian blob format sqlite-vec expects.
func serializeFloat32(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

var _ qa.Index = (*SQLiteVecIndex)(nil)
