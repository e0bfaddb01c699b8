// Command ingest rebuilds the vector index from the document corpus.
package main

import (
	"context"
	"flag"
	"log"

	"go.uber.org/zap"

	"github.com/upb/rag-chat/app"
	"github.com/upb/rag-chat/config"
	"github.com/upb/rag-chat/internal/observability"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	corpusDir := flag.String("dir", "", "corpus directory (overrides configuration)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	cfg.SetupEnvironment()
	if *corpusDir != "" {
		cfg.Storage.CorpusDirectory = *corpusDir
	}

	logger, err := observability.NewLogger(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}

	ctx := context.Background()
	deps, err := app.NewDependencies(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize dependencies", zap.Error(err))
	}

	report, err := deps.Ingester.ReloadCorpus(ctx, cfg.Storage.CorpusDirectory)
	if err != nil {
		logger.Fatal("corpus reload failed", zap.Error(err))
	}
	logger.Info("ingestion complete",
		zap.Int("loaded", report.Loaded),
		zap.Int("skipped", report.Skipped))

	if err := deps.Close(ctx); err != nil {
		logger.Error("dependency shutdown failed", zap.Error(err))
	}
}
