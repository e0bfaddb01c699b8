// Package rag orchestrates one query through retrieval, prompt composition,
// generation, history, and telemetry. It is the single integration point
// every front-end calls.
package rag

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/upb/rag-chat/models"
	"github.com/upb/rag-chat/services/generation"
	"github.com/upb/rag-chat/services/history"
	"github.com/upb/rag-chat/services/prompt"
	"github.com/upb/rag-chat/services/retrieval"
	"github.com/upb/rag-chat/services/telemetry"
)

// NoContextFallback is the context used when retrieval comes back empty:
// generation still runs, just without grounding.
const NoContextFallback = "No relevant document found."

// EmptyInputMessage is the user-facing rejection for blank input.
const EmptyInputMessage = "Error: Please enter a valid question."

// Session ties the pipeline together for one conversation. All collaborators
// are constructed up front and injected; the session owns only the history.
//
// A session handles one query at a time. Front-ends that build a fresh
// session per request (the single-shot web form) simply start with empty
// history each time; that is the intended behavior, not a defect.
type Session struct {
	retriever *retrieval.Service
	generator generation.Client
	telemetry *telemetry.Logger
	history   *history.History
	logger    *zap.Logger
}

// NewSession creates a session with ready, explicitly constructed components.
func NewSession(
	retriever *retrieval.Service,
	generator generation.Client,
	telemetryLogger *telemetry.Logger,
	maxHistory int,
	logger *zap.Logger,
) *Session {
	return &Session{
		retriever: retriever,
		generator: generator,
		telemetry: telemetryLogger,
		history:   history.New(maxHistory),
		logger:    logger,
	}
}

// Answer is a query result paired with what retrieval found, for front-ends
// that render the relevance score and source snippet alongside the response.
type Answer struct {
	Result   *models.GenerationResult
	Context  string
	TopScore float64
	Ranked   []models.ScoredDocument
}

// HandleQuery runs the full pipeline for one user turn and returns a
// well-formed result in every case. Component failures are converted to an
// error-carrying GenerationResult at this boundary; a query can never crash
// the process. Telemetry is dispatched fire-and-forget and never delays the
// returned answer.
func (s *Session) HandleQuery(ctx context.Context, userInput, systemPrompt, assistantPrompt string) (answer *Answer) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("query pipeline panicked", zap.Any("panic", r))
			answer = &Answer{
				Context: NoContextFallback,
				Result: (&models.GenerationResult{
					Error: fmt.Sprintf("internal error: %v", r),
				}).Normalize(),
			}
		}
	}()

	if strings.TrimSpace(userInput) == "" {
		return &Answer{
			Context: NoContextFallback,
			Result: &models.GenerationResult{
				ResponseText: EmptyInputMessage,
				Error:        "empty user input",
			},
		}
	}

	retrieved := s.retriever.Retrieve(ctx, userInput)

	docContext := NoContextFallback
	if !retrieved.Empty() {
		docContext = retrieved.TopDocument.Content
	}

	fullPrompt := prompt.Compose(userInput, docContext)

	var result *models.GenerationResult
	if systemPrompt == "" && assistantPrompt == "" {
		result = s.generator.Invoke(ctx, fullPrompt)
	} else {
		messages := prompt.ComposeMessages(userInput, docContext, systemPrompt, assistantPrompt)
		result = s.generator.InvokeChat(ctx, messages)
	}

	s.history.Append(models.ConversationTurn{
		UserInput:    userInput,
		ResponseText: result.ResponseText,
	})

	// Only the top match travels with the record; telemetry stores the source
	// name, not the corpus.
	var topDocs []models.ScoredDocument
	if !retrieved.Empty() {
		topDocs = retrieved.Ranked[:1]
	}
	s.telemetry.LogInteraction(&models.InteractionRecord{
		UserInput:     userInput,
		FullPrompt:    fullPrompt,
		SystemPrompt:  systemPrompt,
		Result:        *result,
		RetrievedDocs: topDocs,
		TopScore:      retrieved.TopScore,
	})

	return &Answer{
		Result:   result,
		Context:  docContext,
		TopScore: retrieved.TopScore,
		Ranked:   retrieved.Ranked,
	}
}

// History returns a copy of the session's retained turns.
func (s *Session) History() []models.ConversationTurn {
	return s.history.Snapshot()
}

// ClearHistory drops the session's retained turns.
func (s *Session) ClearHistory() {
	s.history.Clear()
}
