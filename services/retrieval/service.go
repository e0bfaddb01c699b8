// Package retrieval implements similarity search over the vector store.
package retrieval

import (
	"context"

	"go.uber.org/zap"

	"github.com/upb/rag-chat/models"
	"github.com/upb/rag-chat/repositories"
)

// DefaultCeiling caps the number of matches requested from the store. Two is
// enough context for a single-document prompt and keeps search latency low;
// it is a policy knob, not a protocol limit.
const DefaultCeiling = 2

// Result is the outcome of one retrieval. TopDocument is nil when nothing
// matched; Ranked is ordered ascending by distance (lower = better).
type Result struct {
	TopDocument *models.Document
	TopScore    float64
	Ranked      []models.ScoredDocument
}

// Empty reports whether the retrieval produced no documents.
func (r *Result) Empty() bool {
	return r.TopDocument == nil
}

// Service queries the vector store for the documents most relevant to a user
// query. It never fails: store errors degrade to an empty result so the
// orchestrator can still generate with a fallback context.
type Service struct {
	store   repositories.VectorStore
	topK    int
	ceiling int
	logger  *zap.Logger
}

// NewService creates a retrieval service. topK <= 0 falls back to 4 and
// ceiling <= 0 to DefaultCeiling.
func NewService(store repositories.VectorStore, topK, ceiling int, logger *zap.Logger) *Service {
	if topK <= 0 {
		topK = 4
	}
	if ceiling <= 0 {
		ceiling = DefaultCeiling
	}
	return &Service{
		store:   store,
		topK:    topK,
		ceiling: ceiling,
		logger:  logger,
	}
}

// Retrieve returns the ranked matches for query along with the best match and
// its score. Ranking order is whatever the store returns; no re-ranking
// happens here. Empty or whitespace queries are the caller's concern.
func (s *Service) Retrieve(ctx context.Context, query string) *Result {
	k := s.topK
	if k > s.ceiling {
		k = s.ceiling
	}

	ranked, err := s.store.Search(ctx, query, k)
	if err != nil {
		// Recover locally: a broken index must not take down the query path.
		s.logger.Error("retrieving documents failed",
			zap.String("query", query),
			zap.Int("k", k),
			zap.Error(err))
		return &Result{}
	}

	if len(ranked) == 0 {
		return &Result{}
	}

	top := ranked[0]
	return &Result{
		TopDocument: &top.Document,
		TopScore:    top.Distance,
		Ranked:      ranked,
	}
}
