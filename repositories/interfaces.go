// Package repositories defines interfaces for the external capabilities the
// core consumes. Services depend on these abstractions, not on the SQLite or
// MLflow implementations.
package repositories

import (
	"context"

	"github.com/upb/rag-chat/models"
)

// VectorStore persists document embeddings and answers similarity queries.
// Search returns documents ordered by ascending distance (lower = better).
type VectorStore interface {
	Search(ctx context.Context, query string, k int) ([]models.ScoredDocument, error)
	Add(ctx context.Context, docs []models.Document) error
	DeleteAll(ctx context.Context) error
}

// Embedder maps text to a fixed-dimension vector. It is used internally by
// VectorStore implementations; the core never calls it directly.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// TelemetryRun is one logical experiment-tracking record: string parameters,
// numeric metrics, tags, and a text artifact.
type TelemetryRun struct {
	Name         string
	Params       map[string]string
	Metrics      map[string]float64
	Tags         map[string]string
	ArtifactName string
	ArtifactText string
}

// TelemetrySink accepts named runs on behalf of an experiment-tracking
// backend. Implementations must be safe for concurrent use by the logging
// worker pool.
type TelemetrySink interface {
	LogRun(ctx context.Context, run *TelemetryRun) error
}
