// Package ingest loads the document corpus into the vector store. Ingestion
// is a batch job run from the command line, not part of the query path.
package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/upb/rag-chat/models"
	"github.com/upb/rag-chat/repositories"
	"github.com/upb/rag-chat/services"
)

// Service rebuilds the vector index from a directory of plain-text files.
type Service struct {
	store  repositories.VectorStore
	logger *zap.Logger
}

// NewService creates an ingestion service over the given store.
func NewService(store repositories.VectorStore, logger *zap.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// Report summarizes one ingestion run.
type Report struct {
	Loaded  int // documents embedded and stored
	Skipped int // empty or whitespace-only files
}

// ReloadCorpus drops the existing index and loads every .txt file under dir.
// The file name becomes the document's source. Empty files are skipped, not
// errors; an unreadable file aborts the run since a partial reload would
// leave the index silently incomplete.
func (s *Service) ReloadCorpus(ctx context.Context, dir string) (*Report, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, services.NewDomainError(services.ErrorTypeValidation,
			fmt.Sprintf("corpus directory %s unreadable", dir), err)
	}

	report := &Report{}
	var docs []models.Document
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".txt") {
			continue
		}
		content, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, services.NewDomainError(services.ErrorTypeValidation,
				fmt.Sprintf("corpus file %s unreadable", entry.Name()), err)
		}
		if strings.TrimSpace(string(content)) == "" {
			s.logger.Warn("skipping empty corpus file", zap.String("file", entry.Name()))
			report.Skipped++
			continue
		}
		docs = append(docs, models.Document{
			Content:  string(content),
			Metadata: map[string]string{models.MetadataSourceKey: entry.Name()},
		})
	}

	if err := s.store.DeleteAll(ctx); err != nil {
		return nil, services.NewDomainError(services.ErrorTypeRetrieval, "clearing index failed", err)
	}
	if len(docs) > 0 {
		if err := s.store.Add(ctx, docs); err != nil {
			return nil, services.NewDomainError(services.ErrorTypeRetrieval, "storing corpus failed", err)
		}
	}

	report.Loaded = len(docs)
	s.logger.Info("corpus reloaded",
		zap.String("dir", dir),
		zap.Int("loaded", report.Loaded),
		zap.Int("skipped", report.Skipped))
	return report, nil
}
