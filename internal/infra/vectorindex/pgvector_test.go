package vectorindex

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
)

// Runs only against a live database with the vector extension available.
func TestPgvectorIndexRoundTrip(t *testing.T) {
	dsn := os.Getenv("PGVECTOR_TEST_DSN")
	if dsn == "" {
		t.Skip("PGVECTOR_TEST_DSN not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	defer pool.Close()

	idx := NewPgvectorIndex(pool, "test-"+t.Name(), discardLogger())
	require.NoError(t, idx.Build(ctx, "v1", [][]float32{{0, 0}, {3, 4}, {1, 0}}))
	hits, err := idx.Search(ctx, []float32{0, 0}, 2)
	require.NoError(t, err)
	require.Equal(t, []int{0, 2}, positions(hits))
	require.InDelta(t, 1, hits[1].Distance, 1e-6)
}
