// Package chatbot implements the retrieval-augmented question answerer.
package chatbot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Answer is one extractive-QA candidate: a span of the context and the
// model's confidence in it.
type Answer struct {
	Text  string  `json:"answer"`
	Score float64 `json:"score"`
}

// QAModel extracts an answer span from a context passage.
type QAModel interface {
	Extract(ctx context.Context, question, passage string) (*Answer, error)
}

// HTTPQAModel calls an external question-answering service over HTTP. The
// service takes {"question": ..., "context": ...} and returns an Answer.
type HTTPQAModel struct {
	endpoint string
	client   *http.Client
}

// NewHTTPQAModel returns an HTTPQAModel posting to endpoint.
func NewHTTPQAModel(endpoint string, timeout time.Duration) *HTTPQAModel {
	return &HTTPQAModel{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

type qaRequest struct {
	Question string `json:"question"`
	Context  string `json:"context"`
}

// Extract posts the question and passage to the QA service.
func (m *HTTPQAModel) Extract(ctx context.Context, question, passage string) (*Answer, error) {
	body, err := json.Marshal(qaRequest{Question: question, Context: passage})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("QA request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("QA service returned status %d", resp.StatusCode)
	}

	var answer Answer
	if err := json.NewDecoder(resp.Body).Decode(&answer); err != nil {
		return nil, fmt.Errorf("failed to decode QA response: %w", err)
	}
	return &answer, nil
}

// LexicalQA is the built-in extractor used when no QA service is configured.
// It picks the sentence of the passage sharing the most terms with the
// question, scored by question-term coverage.
type LexicalQA struct{}

// NewLexicalQA returns a LexicalQA.
func NewLexicalQA() *LexicalQA {
	return &LexicalQA{}
}

// qaStopwords are question scaffolding words ignored when matching terms.
var qaStopwords = map[string]bool{
	"what": true, "are": true, "the": true, "is": true, "a": true, "an": true,
	"to": true, "of": true, "i": true, "do": true, "if": true, "have": true,
	"can": true, "my": true, "for": true, "with": true, "and": true, "or": true,
	"possible": true, "conditions": true, "related": true,
}

// Extract scores each sentence of the passage by the fraction of question
// terms it contains and returns the best one.
func (q *LexicalQA) Extract(ctx context.Context, question, passage string) (*Answer, error) {
	terms := questionTerms(question)
	if len(terms) == 0 {
		return &Answer{}, nil
	}

	best := &Answer{}
	for _, sentence := range splitSentences(passage) {
		lower := strings.ToLower(sentence)
		matched := 0
		for _, term := range terms {
			if strings.Contains(lower, term) {
				matched++
			}
		}
		score := float64(matched) / float64(len(terms))
		if score > best.Score {
			best = &Answer{Text: sentence, Score: score}
		}
	}
	return best, nil
}

func questionTerms(question string) []string {
	cleaned := strings.Map(func(r rune) rune {
		if r == '?' || r == '.' || r == ',' || r == '!' {
			return -1
		}
		return r
	}, strings.ToLower(question))

	var terms []string
	for _, w := range strings.Fields(cleaned) {
		if !qaStopwords[w] {
			terms = append(terms, w)
		}
	}
	return terms
}

func splitSentences(text string) []string {
	var sentences []string
	start := 0
	for i, r := range text {
		if r == '.' || r == '!' || r == '?' || r == '\n' {
			s := strings.TrimSpace(text[start:i])
			if s != "" {
				sentences = append(sentences, s)
			}
			start = i + 1
		}
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}
