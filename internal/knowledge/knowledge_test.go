package knowledge

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/carebook/carebook/internal/embedding"
	"github.com/carebook/carebook/internal/keyword"
)

func TestChunker(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		size       int
		overlap    int
		wantChunks int
	}{
		{"empty text", "", 10, 2, 0},
		{"single chunk", "one two three", 10, 2, 1},
		{"exact fit", "a b c d e", 5, 0, 1},
		{"two chunks with overlap", "a b c d e f g h", 5, 2, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks := NewChunker(tt.size, tt.overlap).Chunk(tt.text)
			if len(chunks) != tt.wantChunks {
				t.Errorf("got %d chunks, want %d", len(chunks), tt.wantChunks)
			}
			for i, c := range chunks {
				if c.ChunkIndex != i {
					t.Errorf("chunk %d has index %d", i, c.ChunkIndex)
				}
				if c.ID == "" {
					t.Errorf("chunk %d has empty ID", i)
				}
			}
		})
	}
}

func TestChunkerOverlap(t *testing.T) {
	chunks := NewChunker(4, 2).Chunk("w1 w2 w3 w4 w5 w6")
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(chunks))
	}
	if chunks[0].Content != "w1 w2 w3 w4" {
		t.Errorf("chunk 0 = %q", chunks[0].Content)
	}
	if chunks[1].Content != "w3 w4 w5 w6" {
		t.Errorf("chunk 1 = %q", chunks[1].Content)
	}
}

func writeDoc(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "knowledge.txt")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const testDoc = `Migraine headaches often present with nausea and sensitivity to light.
Rest in a dark room and hydration can help reduce symptoms.
Acid reflux causes heartburn and is managed with dietary changes.
Asthma attacks involve wheezing and shortness of breath and may need an inhaler.`

func TestBaseLoadAndRetrieveWithEmbedder(t *testing.T) {
	embedder := embedding.NewMockEmbedder(64)
	base := NewBase(Options{
		DocumentPath: writeDoc(t, testDoc),
		Embedder:     embedder,
		ChunkSize:    12,
		ChunkOverlap: 4,
	})
	defer base.Close()

	ctx := context.Background()
	if err := base.Load(ctx); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if base.ChunkCount() == 0 {
		t.Fatal("expected chunks after load")
	}

	chunks, err := base.Retrieve(ctx, "what helps with migraine headaches", 3)
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(chunks) == 0 {
		t.Fatal("expected at least one chunk")
	}
	if len(chunks) > 3 {
		t.Errorf("got %d chunks, want at most 3", len(chunks))
	}
}

func TestBaseRetrieveLexicalFallback(t *testing.T) {
	lexical, err := keyword.NewMemBleveIndex()
	if err != nil {
		t.Fatal(err)
	}
	defer lexical.Close()

	base := NewBase(Options{
		DocumentPath: writeDoc(t, testDoc),
		Lexical:      lexical,
		ChunkSize:    12,
		ChunkOverlap: 4,
	})
	defer base.Close()

	ctx := context.Background()
	if err := base.Load(ctx); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	chunks, err := base.Retrieve(ctx, "asthma wheezing", 3)
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(chunks) == 0 {
		t.Fatal("expected lexical hits")
	}
	found := false
	for _, c := range chunks {
		if strings.Contains(c.Content, "wheezing") {
			found = true
		}
	}
	if !found {
		t.Error("expected a chunk mentioning wheezing")
	}
}

func TestBaseRetrieveAfterRestart(t *testing.T) {
	dir := t.TempDir()
	docPath := filepath.Join(dir, "knowledge.txt")
	if err := os.WriteFile(docPath, []byte(testDoc), 0o644); err != nil {
		t.Fatal(err)
	}
	indexPath := filepath.Join(dir, "knowledge.bleve")
	ctx := context.Background()

	// First process lifetime populates the on-disk index.
	lexical, err := keyword.NewBleveIndex(indexPath)
	if err != nil {
		t.Fatal(err)
	}
	base := NewBase(Options{
		DocumentPath: docPath,
		Lexical:      lexical,
		ChunkSize:    12,
		ChunkOverlap: 4,
	})
	if err := base.Load(ctx); err != nil {
		t.Fatal(err)
	}
	if err := base.Close(); err != nil {
		t.Fatal(err)
	}
	if err := lexical.Close(); err != nil {
		t.Fatal(err)
	}

	// Second lifetime reuses the index path. Chunk IDs are regenerated, so
	// leftovers from the first run must not shadow the fresh chunks.
	lexical2, err := keyword.NewBleveIndex(indexPath)
	if err != nil {
		t.Fatal(err)
	}
	defer lexical2.Close()
	base2 := NewBase(Options{
		DocumentPath: docPath,
		Lexical:      lexical2,
		ChunkSize:    12,
		ChunkOverlap: 4,
	})
	defer base2.Close()
	if err := base2.Load(ctx); err != nil {
		t.Fatal(err)
	}

	count, err := lexical2.DocCount()
	if err != nil {
		t.Fatal(err)
	}
	if int(count) != base2.ChunkCount() {
		t.Errorf("indexed docs = %d, want %d (one per live chunk)", count, base2.ChunkCount())
	}

	chunks, err := base2.Retrieve(ctx, "asthma wheezing", 3)
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(chunks) == 0 {
		t.Fatal("expected hits after restart")
	}
	found := false
	for _, c := range chunks {
		if strings.Contains(c.Content, "wheezing") {
			found = true
		}
	}
	if !found {
		t.Error("expected a chunk mentioning wheezing")
	}
}

func TestBaseReload(t *testing.T) {
	path := writeDoc(t, "short document about fever")
	base := NewBase(Options{
		DocumentPath: path,
		Embedder:     embedding.NewMockEmbedder(32),
		ChunkSize:    5,
		ChunkOverlap: 0,
	})
	defer base.Close()

	ctx := context.Background()
	if err := base.Load(ctx); err != nil {
		t.Fatal(err)
	}
	before := base.ChunkCount()

	longer := strings.Repeat("more words about different medical conditions ", 20)
	if err := os.WriteFile(path, []byte(longer), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := base.Load(ctx); err != nil {
		t.Fatal(err)
	}
	if base.ChunkCount() <= before {
		t.Errorf("chunk count %d after reload, want more than %d", base.ChunkCount(), before)
	}
}

func TestWatcherReloads(t *testing.T) {
	path := writeDoc(t, "initial content about headaches")
	base := NewBase(Options{
		DocumentPath: path,
		Embedder:     embedding.NewMockEmbedder(32),
		ChunkSize:    5,
		ChunkOverlap: 0,
	})
	defer base.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := base.Load(ctx); err != nil {
		t.Fatal(err)
	}
	before := base.ChunkCount()

	w := NewWatcher(base, nil)
	w.debounce = 50 * time.Millisecond
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer w.Stop()

	longer := strings.Repeat("expanded reference material on several conditions ", 10)
	if err := os.WriteFile(path, []byte(longer), 0o644); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if base.ChunkCount() > before {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Errorf("chunk count %d, want more than %d after reload", base.ChunkCount(), before)
}
