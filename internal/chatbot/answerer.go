package chatbot

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/carebook/carebook/internal/knowledge"
)

// DefaultMinScore is the extractive-QA confidence cutoff. Candidates scoring
// at or below it are discarded.
const DefaultMinScore = 0.1

// ErrNoAnswer is returned when no candidate answer clears the confidence
// cutoff, or when nothing could be retrieved at all.
var ErrNoAnswer = errors.New("no confident answer found")

// Answerer runs the retrieval-augmented pipeline: normalize the question,
// retrieve the nearest knowledge chunks, extract a candidate answer from
// each, and return the highest-scoring one above the cutoff.
type Answerer struct {
	base     *knowledge.Base
	qa       QAModel
	topK     int
	minScore float64
	logger   *zap.Logger
}

// NewAnswerer creates an Answerer. topK <= 0 defaults to 3 and minScore < 0
// defaults to DefaultMinScore.
func NewAnswerer(base *knowledge.Base, qa QAModel, topK int, minScore float64, logger *zap.Logger) *Answerer {
	if topK <= 0 {
		topK = 3
	}
	if minScore < 0 {
		minScore = DefaultMinScore
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Answerer{base: base, qa: qa, topK: topK, minScore: minScore, logger: logger}
}

// NormalizeQuestion rewrites vague advice-seeking questions into condition
// queries. "What can I do if I have X?" becomes "What are the possible
// conditions related to X?". Other questions pass through unchanged.
func NormalizeQuestion(question string) string {
	if !strings.Contains(strings.ToLower(question), "i have") {
		return question
	}
	symptom := strings.ToLower(question)
	symptom = strings.ReplaceAll(symptom, "what can i do if i have ", "")
	symptom = strings.ReplaceAll(symptom, "?", "")
	symptom = strings.TrimSpace(symptom)
	return "What are the possible conditions related to " + symptom + "?"
}

// Answer runs the full pipeline for question. Chunks whose extracted answer
// scores at or below the cutoff are dropped; if none survive, ErrNoAnswer is
// returned. A failing QA backend on one chunk does not abort the others.
func (a *Answerer) Answer(ctx context.Context, question string) (string, error) {
	normalized := NormalizeQuestion(question)

	// A retrieval failure is degraded to ErrNoAnswer so callers see the same
	// not-found outcome as an empty corpus rather than a hard error.
	chunks, err := a.base.Retrieve(ctx, normalized, a.topK)
	if err != nil {
		a.logger.Warn("retrieval failed", zap.Error(err))
		return "", ErrNoAnswer
	}
	if len(chunks) == 0 {
		return "", ErrNoAnswer
	}

	var best *Answer
	for _, chunk := range chunks {
		answer, err := a.qa.Extract(ctx, normalized, chunk.Content)
		if err != nil {
			a.logger.Warn("answer extraction failed", zap.String("chunk", chunk.ID), zap.Error(err))
			continue
		}
		if answer.Score <= a.minScore {
			continue
		}
		if best == nil || answer.Score > best.Score {
			best = answer
		}
	}

	if best == nil {
		return "", ErrNoAnswer
	}
	a.logger.Debug("answered question",
		zap.String("question", normalized),
		zap.Float64("score", best.Score))
	return best.Text, nil
}
