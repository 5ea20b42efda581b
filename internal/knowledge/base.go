package knowledge

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/carebook/carebook/internal/embedding"
	"github.com/carebook/carebook/internal/extract"
	"github.com/carebook/carebook/internal/keyword"
	"github.com/carebook/carebook/internal/models"
	"github.com/carebook/carebook/internal/vector"
)

// Base is the in-memory knowledge base: the chunked medical reference
// document plus a vector index over chunk embeddings. When no embedder is
// configured, retrieval falls back to the lexical index.
type Base struct {
	mu       sync.RWMutex
	chunks   map[string]*models.KnowledgeChunk
	vectors  vector.VectorIndex
	lexical  keyword.KeywordIndex
	embedder embedding.Embedder
	chunker  *Chunker
	docPath  string
	logger   *zap.Logger
}

// Options configures a Base.
type Options struct {
	// DocumentPath is the medical reference document to load.
	DocumentPath string
	// Embedder may be nil; retrieval then uses the lexical index only.
	Embedder embedding.Embedder
	// Lexical indexes chunk content for the no-embedder fallback.
	Lexical      keyword.KeywordIndex
	ChunkSize    int
	ChunkOverlap int
	Logger       *zap.Logger
}

// NewBase creates an empty knowledge base. Call Load to populate it.
func NewBase(opts Options) *Base {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Base{
		chunks:   make(map[string]*models.KnowledgeChunk),
		embedder: opts.Embedder,
		lexical:  opts.Lexical,
		chunker:  NewChunker(opts.ChunkSize, opts.ChunkOverlap),
		docPath:  opts.DocumentPath,
		logger:   opts.Logger,
	}
}

// Load reads the reference document, chunks it, embeds the chunks, and
// rebuilds the indexes. Safe to call again to pick up document changes;
// retrieval sees either the old or the new state, never a mix.
func (b *Base) Load(ctx context.Context) error {
	extractor := extract.NewExtractor()
	text, err := extractor.Extract(b.docPath)
	if err != nil {
		return fmt.Errorf("failed to read knowledge document: %w", err)
	}

	chunks := b.chunker.Chunk(text)
	b.logger.Info("loaded knowledge document",
		zap.String("path", b.docPath),
		zap.Int("chunks", len(chunks)))

	var vectors vector.VectorIndex
	if b.embedder != nil {
		texts := make([]string, len(chunks))
		for i, c := range chunks {
			texts[i] = c.Content
		}
		embeddings, err := b.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return fmt.Errorf("failed to embed chunks: %w", err)
		}

		idx, err := vector.NewMemoryIndex(b.embedder.Dimensions())
		if err != nil {
			return err
		}
		ids := make([]string, len(chunks))
		for i, c := range chunks {
			ids[i] = c.ID
			c.Embedding = embeddings[i]
		}
		if err := idx.Add(ctx, ids, embeddings); err != nil {
			return err
		}
		vectors = idx
	}

	chunkMap := make(map[string]*models.KnowledgeChunk, len(chunks))
	for _, c := range chunks {
		chunkMap[c.ID] = c
	}

	b.mu.Lock()
	oldVectors := b.vectors
	oldChunks := b.chunks
	b.chunks = chunkMap
	b.vectors = vectors
	b.mu.Unlock()

	if oldVectors != nil {
		_ = oldVectors.Close()
	}

	if b.lexical != nil {
		for id := range oldChunks {
			_ = b.lexical.Delete(ctx, id)
		}
		for _, c := range chunks {
			if err := b.lexical.Index(ctx, c); err != nil {
				return fmt.Errorf("failed to index chunk: %w", err)
			}
		}
	}
	return nil
}

// Retrieve returns up to k chunks relevant to the question, nearest first.
// With an embedder the question is embedded and matched by Euclidean
// distance; otherwise the lexical index is queried.
func (b *Base) Retrieve(ctx context.Context, question string, k int) ([]*models.KnowledgeChunk, error) {
	b.mu.RLock()
	vectors := b.vectors
	b.mu.RUnlock()

	if b.embedder != nil && vectors != nil {
		queryVec, err := b.embedder.Embed(ctx, question)
		if err != nil {
			return nil, fmt.Errorf("failed to embed question: %w", err)
		}
		results, err := vectors.Search(ctx, queryVec, k)
		if err != nil {
			return nil, err
		}
		return b.resolve(resultIDs(results)), nil
	}

	if b.lexical == nil {
		return nil, nil
	}
	hits, err := b.lexical.Search(ctx, question, k)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.ID
	}
	return b.resolve(ids), nil
}

func resultIDs(results []*vector.VectorResult) []string {
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.ID
	}
	return ids
}

func (b *Base) resolve(ids []string) []*models.KnowledgeChunk {
	b.mu.RLock()
	defer b.mu.RUnlock()

	chunks := make([]*models.KnowledgeChunk, 0, len(ids))
	for _, id := range ids {
		if c, ok := b.chunks[id]; ok {
			chunks = append(chunks, c)
		}
	}
	return chunks
}

// ChunkCount returns the number of loaded chunks.
func (b *Base) ChunkCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.chunks)
}

// Close releases the vector index. The lexical index and embedder are owned
// by the caller.
func (b *Base) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.vectors != nil {
		err := b.vectors.Close()
		b.vectors = nil
		return err
	}
	return nil
}
