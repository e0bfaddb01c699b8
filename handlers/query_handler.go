package handlers

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/upb/rag-chat/services/rag"
	"github.com/upb/rag-chat/utils"
)

// QueryRequest is the body for POST /api/v1/ask
type QueryRequest struct {
	Question        string `json:"question" validate:"required"`
	SystemPrompt    string `json:"system_prompt,omitempty"`
	AssistantPrompt string `json:"assistant_prompt,omitempty"`
}

// QueryResponse is the single-shot answer payload
type QueryResponse struct {
	Answer    string  `json:"answer"`
	Model     string  `json:"model"`
	CreatedAt string  `json:"created_at"`
	Source    string  `json:"source,omitempty"`
	Distance  float64 `json:"distance"`
}

// QueryHandler serves single-shot questions. Each request runs in a fresh
// session, so no history carries over between calls.
type QueryHandler struct {
	newSession func() *rag.Session
	logger     *zap.Logger
}

// NewQueryHandler creates a QueryHandler. newSession is called once per
// request.
func NewQueryHandler(newSession func() *rag.Session, logger *zap.Logger) *QueryHandler {
	return &QueryHandler{newSession: newSession, logger: logger}
}

// HandleQuery handles POST /api/v1/ask
func (h *QueryHandler) HandleQuery(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		_ = utils.WriteBadRequest(w, "question must not be blank", nil)
		return
	}

	answer := h.newSession().HandleQuery(r.Context(), req.Question, req.SystemPrompt, req.AssistantPrompt)
	writeAnswer(w, answer, h.logger)
}

// writeAnswer maps a pipeline answer onto the HTTP response. Generation
// failures surface as 502 because the model backend, not this service, is
// the broken piece.
func writeAnswer(w http.ResponseWriter, answer *rag.Answer, logger *zap.Logger) {
	if answer.Result.Failed() {
		if err := utils.WriteBadGateway(w, answer.Result.Error, nil); err != nil {
			logger.Error("failed to write bad gateway response", zap.Error(err))
		}
		return
	}

	resp := QueryResponse{
		Answer:    answer.Result.ResponseText,
		Model:     answer.Result.ModelName,
		CreatedAt: answer.Result.CreatedAt,
		Distance:  answer.TopScore,
	}
	if len(answer.Ranked) > 0 {
		resp.Source = answer.Ranked[0].Source()
	}

	if err := utils.WriteOK(w, resp); err != nil {
		logger.Error("failed to write query response", zap.Error(err))
	}
}
