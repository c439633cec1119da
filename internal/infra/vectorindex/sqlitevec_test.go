package vectorindex

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSQLiteVecIndexRoundTrip(t *testing.T) {
	idx, err := NewSQLiteVecIndex(":memory:", discardLogger())
	require.NoError(t, err)
	defer idx.Close()

	require.NoError(t, idx.Build(context.Background(), "v1", [][]float32{
		{0, 0, 0},
		{1, 0, 0},
		{0, 3, 4},
	}))
	require.Equal(t, 3, idx.Len())

	hits, err := idx.Search(context.Background(), []float32{0, 0, 0}, 2)
	require.NoError(t, err)
	require.Equal(t, []int{0, 1}, positions(hits))
	require.InDelta(t, 0, hits[0].Distance, 1e-6)
	require.InDelta(t, 1, hits[1].Distance, 1e-6)
}

func TestSQLiteVecIndexReusesMatchingVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	vectors := [][]float32{{1, 0}, {0, 1}}

	first, err := NewSQLiteVecIndex(path, discardLogger())
	require.NoError(t, err)
	require.NoError(t, first.Build(context.Background(), "v1", vectors))
	require.NoError(t, first.Close())

	second, err := NewSQLiteVecIndex(path, discardLogger())
	require.NoError(t, err)
	defer second.Close()
	// stale content under the same version is served from disk
	require.NoError(t, second.Build(context.Background(), "v1", [][]float32{{5, 5}, {6, 6}}))
	hits, err := second.Search(context.Background(), []float32{1, 0}, 1)
	require.NoError(t, err)
	require.InDelta(t, 0, hits[0].Distance, 1e-6)

	// a new version triggers a rebuild
	require.NoError(t, second.Build(context.Background(), "v2", [][]float32{{5, 5}, {6, 6}}))
	hits, err = second.Search(context.Background(), []float32{5, 5}, 1)
	require.NoError(t, err)
	require.Equal(t, 0, hits[0].Position)
	require.InDelta(t, 0, hits[0].Distance, 1e-6)
}

func TestSQLiteVecIndexSearchBeyondKNNLimit(t *testing.T) {
	idx, err := NewSQLiteVecIndex(":memory:", discardLogger())
	require.NoError(t, err)
	defer idx.Close()

	// pairs of identical vectors so every distance is tied with a neighbour
	const n = 5000
	vectors := make([][]float32, n)
	for i := range vectors {
		vectors[i] = []float32{float32(i / 2), 0}
	}
	require.NoError(t, idx.Build(context.Background(), "v1", vectors))

	hits, err := idx.Search(context.Background(), []float32{0, 0}, n+10)
	require.NoError(t, err)
	require.Len(t, hits, n)
	for i, hit := range hits {
		require.Equal(t, i, hit.Position)
	}
	require.InDelta(t, float64((n-1)/2), hits[n-1].Distance, 1e-6)
}

func TestSQLiteVecIndexEmpty(t *testing.T) {
	idx, err := NewSQLiteVecIndex(":memory:", discardLogger())
	require.NoError(t, err)
	defer idx.Close()

	require.NoError(t, idx.Build(context.Background(), "v1", nil))
	hits, err := idx.Search(context.Background(), []float32{1, 2}, 3)
	require.NoError(t, err)
	require.Empty(t, hits)
}

func TestNewSQLiteVecIndexRequiresPath(t *testing.T) {
	_, err := NewSQLiteVecIndex(" ", discardLogger())
	require.Error(t, err)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
