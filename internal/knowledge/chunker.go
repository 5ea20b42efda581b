// Package knowledge loads the medical reference document and serves chunk
// retrieval for the chatbot.
package knowledge

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/carebook/carebook/internal/models"
)

// Chunker splits text into overlapping word-based chunks.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
}

// NewChunker creates a chunker with the given size and overlap (in words).
func NewChunker(chunkSize, chunkOverlap int) *Chunker {
	return &Chunker{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
	}
}

// Chunk splits text into KnowledgeChunks with overlapping windows.
func (c *Chunker) Chunk(text string) []*models.KnowledgeChunk {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	chunks := make([]*models.KnowledgeChunk, 0)
	chunkIndex := 0
	step := c.chunkSize - c.chunkOverlap
	if step <= 0 {
		step = 1
	}
	for i := 0; i < len(words); i += step {
		end := i + c.chunkSize
		if end > len(words) {
			end = len(words)
		}
		chunkWords := words[i:end]
		chunk := &models.KnowledgeChunk{
			ID:         fmt.Sprintf("chunk_%s", uuid.New().String()[:8]),
			ChunkIndex: chunkIndex,
			Content:    strings.Join(chunkWords, " "),
		}
		chunks = append(chunks, chunk)
		chunkIndex++
		if end >= len(words) {
			break
		}
	}
	return chunks
}
