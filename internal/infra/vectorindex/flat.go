// Package vectorindex holds the nearest-neighbour backends behind qa.Index.
// Every backend ranks by plain Euclidean distance and breaks ties by
// ascending position.
package vectorindex

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/yanqian/offlineqa/internal/domain/qa"
)

// Backend names accepted in configuration.
const (
	BackendMemory    = "memory"
	BackendSQLiteVec = "sqlitevec"
	BackendPgvector  = "pgvector"
)

// ErrNotBuilt is returned by Search before Build has been called.
var ErrNotBuilt = errors.New("index not built")

// FlatIndex is an exact brute-force index held in memory.
type FlatIndex struct {
	mu      sync.RWMutex
	vectors [][]float32
	dims    int
	built   bool
}

// NewFlatIndex constructs an empty index.
func NewFlatIndex() *FlatIndex {
	return &FlatIndex{}
}

// Build replaces the index contents. The version is ignored since nothing
// outlives the process.
func (f *FlatIndex) Build(_ context.Context, _ string, vectors [][]float32) error {
	dims, err := uniformDims(vectors)
	if err != nil {
		return err
	}
	copied := make([][]float32, len(vectors))
	for i, vec := range vectors {
		copied[i] = append([]float32(nil), vec...)
	}
	f.mu.Lock()
	f.vectors = copied
	f.dims = dims
	f.built = true
	f.mu.Unlock()
	return nil
}

// Search scans every vector.
func (f *FlatIndex) Search(ctx context.Context, vector []float32, k int) ([]qa.Neighbor, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if !f.built {
		return nil, ErrNotBuilt
	}
	if len(f.vectors) == 0 || k <= 0 {
		return nil, nil
	}
	if len(vector) != f.dims {
		return nil, fmt.Errorf("query has %d dimensions, index has %d", len(vector), f.dims)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	hits := make([]qa.Neighbor, len(f.vectors))
	for i, vec := range f.vectors {
		hits[i] = qa.Neighbor{Position: i, Distance: euclideanDistance(vec, vector)}
	}
	sortNeighbors(hits)
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Len returns the number of indexed vectors.
func (f *FlatIndex) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.vectors)
}

// Close is a no-op.
func (f *FlatIndex) Close() error { return nil }

func euclideanDistance(a, b []float32) float64 {
	var sum float64
	for i := range a {
		diff := float64(a[i] - b[i])
		sum += diff * diff
	}
	return math.Sqrt(sum)
}

func sortNeighbors(hits []qa.Neighbor) {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Distance == hits[j].Distance {
			return hits[i].Position < hits[j].Position
		}
		return hits[i].Distance < hits[j].Distance
	})
}

func uniformDims(vectors [][]float32) (int, error) {
	if len(vectors) == 0 {
		return 0, nil
	}
	dims := len(vectors[0])
	if dims == 0 {
		return 0, errors.New("vectors must not be empty")
	}
	for i, vec := range vectors {
		if len(vec) != dims {
			return 0, fmt.Errorf("vector %d has %d dimensions, expected %d", i, len(vec), dims)
		}
	}
	return dims, nil
}

var _ qa.Index = (*FlatIndex)(nil)
