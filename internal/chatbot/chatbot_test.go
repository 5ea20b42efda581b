package chatbot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/carebook/carebook/internal/embedding"
	"github.com/carebook/carebook/internal/knowledge"
)

func TestNormalizeQuestion(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			"advice-seeking form",
			"What can I do if I have a headache?",
			"What are the possible conditions related to a headache?",
		},
		{
			"bare i have statement",
			"i have fever",
			"What are the possible conditions related to i have fever?",
		},
		{
			"direct question unchanged",
			"What causes asthma?",
			"What causes asthma?",
		},
		{
			"empty unchanged",
			"",
			"",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeQuestion(tt.input); got != tt.want {
				t.Errorf("NormalizeQuestion(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestLexicalQA(t *testing.T) {
	qa := NewLexicalQA()
	ctx := context.Background()

	passage := "Migraines cause throbbing pain. Rest in a dark room helps migraine symptoms. Drink water."
	answer, err := qa.Extract(ctx, "what helps migraine symptoms", passage)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if answer.Text != "Rest in a dark room helps migraine symptoms" {
		t.Errorf("Text = %q", answer.Text)
	}
	if answer.Score <= 0 {
		t.Errorf("Score = %v, want positive", answer.Score)
	}

	// No shared terms yields a zero score.
	answer, err = qa.Extract(ctx, "quantum entanglement", passage)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if answer.Score != 0 {
		t.Errorf("Score = %v, want 0 for unrelated question", answer.Score)
	}
}

func TestHTTPQAModel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		fmt.Fprint(w, `{"answer": "rest and hydration", "score": 0.92}`)
	}))
	defer srv.Close()

	qa := NewHTTPQAModel(srv.URL, 5*time.Second)
	answer, err := qa.Extract(context.Background(), "what helps?", "some context")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if answer.Text != "rest and hydration" || answer.Score != 0.92 {
		t.Errorf("answer = %+v", answer)
	}
}

func TestHTTPQAModelServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	qa := NewHTTPQAModel(srv.URL, 5*time.Second)
	if _, err := qa.Extract(context.Background(), "q", "c"); err == nil {
		t.Fatal("expected error on 500 response")
	}
}

// scriptedQA returns preset answers keyed by passage content.
type scriptedQA struct {
	answers map[string]*Answer
	err     error
}

func (s *scriptedQA) Extract(_ context.Context, _, passage string) (*Answer, error) {
	if s.err != nil {
		return nil, s.err
	}
	for key, answer := range s.answers {
		if key != "" && len(passage) >= len(key) && passage[:len(key)] == key {
			return answer, nil
		}
	}
	return &Answer{}, nil
}

func newTestBase(t *testing.T, doc string) *knowledge.Base {
	t.Helper()
	path := filepath.Join(t.TempDir(), "knowledge.txt")
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	base := knowledge.NewBase(knowledge.Options{
		DocumentPath: path,
		Embedder:     embedding.NewMockEmbedder(32),
		ChunkSize:    8,
		ChunkOverlap: 0,
	})
	t.Cleanup(func() { base.Close() })
	if err := base.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	return base
}

func TestAnswererPicksBestAboveCutoff(t *testing.T) {
	base := newTestBase(t, "alpha beta gamma delta epsilon zeta eta theta iota kappa lambda mu nu xi omicron pi")

	qa := &scriptedQA{answers: map[string]*Answer{
		"alpha": {Text: "weak answer", Score: 0.2},
		"iota":  {Text: "strong answer", Score: 0.8},
	}}
	answerer := NewAnswerer(base, qa, 3, DefaultMinScore, nil)

	got, err := answerer.Answer(context.Background(), "what about gamma?")
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	// Both chunks are retrieved (k=3 over 2 chunks), so the higher score wins.
	if got != "strong answer" {
		t.Errorf("Answer() = %q, want strong answer", got)
	}
}

func TestAnswererNoAnswerBelowCutoff(t *testing.T) {
	base := newTestBase(t, "alpha beta gamma delta epsilon zeta eta theta")

	// Scores at the cutoff are excluded, not kept.
	qa := &scriptedQA{answers: map[string]*Answer{
		"alpha": {Text: "borderline", Score: DefaultMinScore},
	}}
	answerer := NewAnswerer(base, qa, 3, DefaultMinScore, nil)

	if _, err := answerer.Answer(context.Background(), "anything"); !errors.Is(err, ErrNoAnswer) {
		t.Errorf("Answer() error = %v, want ErrNoAnswer", err)
	}
}

func TestAnswererBackendFailure(t *testing.T) {
	base := newTestBase(t, "alpha beta gamma delta epsilon zeta eta theta")

	qa := &scriptedQA{err: errors.New("backend down")}
	answerer := NewAnswerer(base, qa, 3, DefaultMinScore, nil)

	// A failing QA backend degrades to not-found, never a hard error.
	if _, err := answerer.Answer(context.Background(), "anything"); !errors.Is(err, ErrNoAnswer) {
		t.Errorf("Answer() error = %v, want ErrNoAnswer", err)
	}
}

// queryFailEmbedder embeds chunks at load time but fails on questions.
type queryFailEmbedder struct {
	embedding.Embedder
}

func (e *queryFailEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, errors.New("embedding backend down")
}

func TestAnswererRetrievalFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "knowledge.txt")
	if err := os.WriteFile(path, []byte("alpha beta gamma delta"), 0o644); err != nil {
		t.Fatal(err)
	}
	base := knowledge.NewBase(knowledge.Options{
		DocumentPath: path,
		Embedder:     &queryFailEmbedder{embedding.NewMockEmbedder(32)},
		ChunkSize:    8,
		ChunkOverlap: 0,
	})
	t.Cleanup(func() { base.Close() })
	if err := base.Load(context.Background()); err != nil {
		t.Fatal(err)
	}

	qa := &scriptedQA{answers: map[string]*Answer{
		"alpha": {Text: "unreachable", Score: 0.9},
	}}
	answerer := NewAnswerer(base, qa, 3, DefaultMinScore, nil)

	// A retrieval failure at query time degrades to not-found like an empty
	// corpus, never a hard error.
	if _, err := answerer.Answer(context.Background(), "anything"); !errors.Is(err, ErrNoAnswer) {
		t.Errorf("Answer() error = %v, want ErrNoAnswer", err)
	}
}

func TestAnswererOverriddenCutoff(t *testing.T) {
	base := newTestBase(t, "alpha beta gamma delta epsilon zeta eta theta")

	qa := &scriptedQA{answers: map[string]*Answer{
		"alpha": {Text: "low confidence", Score: 0.05},
	}}
	answerer := NewAnswerer(base, qa, 3, 0.01, nil)

	got, err := answerer.Answer(context.Background(), "anything")
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if got != "low confidence" {
		t.Errorf("Answer() = %q, want low confidence answer", got)
	}
}
