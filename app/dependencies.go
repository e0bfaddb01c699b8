// Package app wires the application together. Construction is explicit and
// happens once at startup; nothing here is created lazily or globally.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/upb/rag-chat/config"
	"github.com/upb/rag-chat/repositories"
	"github.com/upb/rag-chat/repositories/mlflow"
	"github.com/upb/rag-chat/repositories/sqlitevec"
	"github.com/upb/rag-chat/services/embedding"
	"github.com/upb/rag-chat/services/generation"
	"github.com/upb/rag-chat/services/generation/ollama"
	"github.com/upb/rag-chat/services/ingest"
	"github.com/upb/rag-chat/services/rag"
	"github.com/upb/rag-chat/services/retrieval"
	"github.com/upb/rag-chat/services/telemetry"
)

// Dependencies holds all application dependencies. This is the central wiring
// point for dependency injection.
type Dependencies struct {
	Config *config.Config
	Logger *zap.Logger

	Store     *sqlitevec.Store
	Embedder  repositories.Embedder
	Generator generation.Client
	Telemetry *telemetry.Logger
	Retriever *retrieval.Service
	Ingester  *ingest.Service
}

// NewDependencies creates and wires up all application dependencies. Any
// failure is fatal: a partially constructed pipeline must not serve queries.
// The telemetry worker pool is started before returning.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	embedder := embedding.NewOllamaClient(cfg.Model.Endpoint, cfg.Model.EmbeddingModel)
	deps.Embedder = embedder

	store, err := sqlitevec.New(cfg.Storage.PersistDirectory, embedder, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize vector store: %w", err)
	}
	deps.Store = store

	deps.Generator = ollama.NewAdapter(ollama.Config{
		BaseURL:     cfg.Model.Endpoint,
		Model:       cfg.Model.Name,
		Temperature: cfg.Model.Temperature,
		Timeout:     cfg.Model.Timeout,
	}, logger)

	sink, err := mlflow.NewClient(cfg.MLflow.TrackingURI, cfg.MLflow.ExperimentName, cfg.MLflow.ArtifactDir, logger)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to initialize tracking client: %w", err)
	}

	deps.Telemetry = telemetry.NewLogger(sink, telemetry.Config{
		BufferSize:      cfg.MLflow.BufferSize,
		Workers:         cfg.MLflow.Workers,
		InputCostPer1K:  cfg.Costs.InputCostPer1K,
		OutputCostPer1K: cfg.Costs.OutputCostPer1K,
	}, logger)
	if err := deps.Telemetry.Start(); err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to start telemetry logger: %w", err)
	}

	deps.Retriever = retrieval.NewService(store, cfg.Retrieval.TopK, cfg.Retrieval.Ceiling, logger)
	deps.Ingester = ingest.NewService(store, logger)

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// NewSession builds a fresh conversation pipeline over the shared components.
// Sessions are cheap; only the history is per-session state.
func (d *Dependencies) NewSession() *rag.Session {
	return rag.NewSession(d.Retriever, d.Generator, d.Telemetry, d.Config.Chat.MaxHistory, d.Logger)
}

// Close gracefully shuts down all dependencies. The telemetry logger gets its
// configured grace period to drain buffered records.
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	if d.Telemetry != nil {
		if err := d.Telemetry.Stop(d.Config.MLflow.StopGrace); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop telemetry logger: %w", err))
		}
	}

	if d.Store != nil {
		if err := d.Store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close vector store: %w", err))
		} else {
			d.Logger.Info("vector store closed")
		}
	}

	if d.Logger != nil {
		_ = d.Logger.Sync()
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errs)
	}

	return nil
}
