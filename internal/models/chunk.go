package models

// KnowledgeChunk is a span of the medical reference document with its
// precomputed embedding. Chunks are built once when the knowledge base
// loads and are read-only at query time.
type KnowledgeChunk struct {
	ID         string    `json:"id"`
	ChunkIndex int       `json:"chunk_index"`
	Content    string    `json:"content"`
	Embedding  []float32 `json:"-"`
}
