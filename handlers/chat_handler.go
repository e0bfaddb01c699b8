package handlers

import (
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/upb/rag-chat/models"
	"github.com/upb/rag-chat/services/rag"
	"github.com/upb/rag-chat/utils"
)

// MessageRequest is the body for POST /api/v1/chat/sessions/{id}/messages
type MessageRequest struct {
	Message         string `json:"message" validate:"required"`
	SystemPrompt    string `json:"system_prompt,omitempty"`
	AssistantPrompt string `json:"assistant_prompt,omitempty"`
}

// TurnResponse is one retained conversation turn
type TurnResponse struct {
	UserInput string `json:"user_input"`
	Response  string `json:"response"`
}

// SessionResponse identifies a created chat session
type SessionResponse struct {
	SessionID string `json:"session_id"`
}

// chatSession serializes queries per conversation: the pipeline holds
// per-session history that is not safe for concurrent turns.
type chatSession struct {
	mu      sync.Mutex
	session *rag.Session
}

// ChatHandler serves multi-turn conversations. Sessions live in memory and
// disappear on restart; there is no cross-process session store.
type ChatHandler struct {
	mu         sync.RWMutex
	sessions   map[string]*chatSession
	newSession func() *rag.Session
	logger     *zap.Logger
}

// NewChatHandler creates a ChatHandler.
func NewChatHandler(newSession func() *rag.Session, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{
		sessions:   make(map[string]*chatSession),
		newSession: newSession,
		logger:     logger,
	}
}

// HandleCreateSession handles POST /api/v1/chat/sessions
func (h *ChatHandler) HandleCreateSession(w http.ResponseWriter, r *http.Request) {
	id := uuid.NewString()

	h.mu.Lock()
	h.sessions[id] = &chatSession{session: h.newSession()}
	h.mu.Unlock()

	h.logger.Info("chat session created", zap.String("session_id", id))
	if err := utils.WriteCreated(w, SessionResponse{SessionID: id}); err != nil {
		h.logger.Error("failed to write session response", zap.Error(err))
	}
}

// HandleMessage handles POST /api/v1/chat/sessions/{id}/messages
func (h *ChatHandler) HandleMessage(w http.ResponseWriter, r *http.Request) {
	cs, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var req MessageRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		_ = utils.WriteBadRequest(w, "message must not be blank", nil)
		return
	}

	cs.mu.Lock()
	answer := cs.session.HandleQuery(r.Context(), req.Message, req.SystemPrompt, req.AssistantPrompt)
	cs.mu.Unlock()

	writeAnswer(w, answer, h.logger)
}

// HandleHistory handles GET /api/v1/chat/sessions/{id}/history
func (h *ChatHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	cs, ok := h.lookup(w, r)
	if !ok {
		return
	}

	cs.mu.Lock()
	turns := cs.session.History()
	cs.mu.Unlock()

	if err := utils.WriteOK(w, toTurnResponses(turns)); err != nil {
		h.logger.Error("failed to write history response", zap.Error(err))
	}
}

// HandleDeleteSession handles DELETE /api/v1/chat/sessions/{id}
func (h *ChatHandler) HandleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := utils.ValidateUUID(id); err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}

	h.mu.Lock()
	_, existed := h.sessions[id]
	delete(h.sessions, id)
	h.mu.Unlock()

	if !existed {
		_ = utils.WriteNotFound(w, "chat session not found")
		return
	}
	utils.WriteNoContent(w)
}

func (h *ChatHandler) lookup(w http.ResponseWriter, r *http.Request) (*chatSession, bool) {
	id := chi.URLParam(r, "id")
	if err := utils.ValidateUUID(id); err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return nil, false
	}

	h.mu.RLock()
	cs, ok := h.sessions[id]
	h.mu.RUnlock()

	if !ok {
		_ = utils.WriteNotFound(w, "chat session not found")
		return nil, false
	}
	return cs, true
}

func toTurnResponses(turns []models.ConversationTurn) []TurnResponse {
	out := make([]TurnResponse, len(turns))
	for i, turn := range turns {
		out[i] = TurnResponse{UserInput: turn.UserInput, Response: turn.ResponseText}
	}
	return out
}
