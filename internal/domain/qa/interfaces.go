package qa

import "context"

// DatasetLoader reads the Q&A dataset from a file path or object URL.
type DatasetLoader interface {
	Load(ctx context.Context, path string) (Dataset, error)
}

// Embedder maps texts to fixed-length vectors. The same embedder must be used
// for the dataset and for queries.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Index performs exact k-nearest-neighbour search by Euclidean distance.
type Index interface {
	// Build replaces the indexed vectors. version identifies the content so
	// persistent backends can skip rewriting an identical build.
	Build(ctx context.Context, version string, vectors [][]float32) error
	// Search returns up to k neighbours in ascending distance, ties by position.
	Search(ctx context.Context, vector []float32, k int) ([]Neighbor, error)
	Len() int
	Close() error
}
