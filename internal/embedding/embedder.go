// Package embedding produces vector embeddings for knowledge-base chunks
// and chatbot questions, via ONNX Runtime when available.
package embedding

import "context"

// Embedder produces vector embeddings for text. Chunk and question
// embeddings must come from the same Embedder so they share a vector space.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}
