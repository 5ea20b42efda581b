// Package vector provides an embedding index with exact nearest-neighbor
// search. The knowledge corpus is small and fixed at runtime, so brute-force
// Euclidean search is sufficient; there is no index maintenance or eviction.
package vector

import "context"

// VectorIndex stores embeddings and answers nearest-neighbor queries.
type VectorIndex interface {
	Add(ctx context.Context, ids []string, vectors [][]float32) error
	// Search returns the k nearest vectors by Euclidean distance, closest first.
	Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error)
	Remove(ctx context.Context, ids []string) error
	Save(path string) error
	Load(path string) error
	Size() int
	Close() error
}

// VectorResult is a single nearest-neighbor hit (ID is the chunk ID).
type VectorResult struct {
	ID string
	// Distance is the Euclidean distance to the query; lower is closer.
	Distance float64
}
