package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/upb/rag-chat/services/ingest"
	"github.com/upb/rag-chat/utils"
)

// ReloadResponse summarizes a corpus reload
type ReloadResponse struct {
	Loaded  int `json:"loaded"`
	Skipped int `json:"skipped"`
}

// CorpusHandler exposes corpus administration. The reload rebuilds the whole
// index; queries served meanwhile may briefly see an empty index.
type CorpusHandler struct {
	ingester  *ingest.Service
	corpusDir string
	logger    *zap.Logger
}

// NewCorpusHandler creates a CorpusHandler bound to the configured corpus
// directory.
func NewCorpusHandler(ingester *ingest.Service, corpusDir string, logger *zap.Logger) *CorpusHandler {
	return &CorpusHandler{
		ingester:  ingester,
		corpusDir: corpusDir,
		logger:    logger,
	}
}

// HandleReload handles POST /api/v1/corpus/reload
func (h *CorpusHandler) HandleReload(w http.ResponseWriter, r *http.Request) {
	report, err := h.ingester.ReloadCorpus(r.Context(), h.corpusDir)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	if err := utils.WriteOK(w, ReloadResponse{
		Loaded:  report.Loaded,
		Skipped: report.Skipped,
	}); err != nil {
		h.logger.Error("failed to write reload response", zap.Error(err))
	}
}
