package rag

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/upb/rag-chat/models"
	"github.com/upb/rag-chat/repositories"
	"github.com/upb/rag-chat/services/retrieval"
	"github.com/upb/rag-chat/services/telemetry"
)

type fakeStore struct {
	docs []models.ScoredDocument
	err  error
}

func (f *fakeStore) Search(_ context.Context, _ string, k int) ([]models.ScoredDocument, error) {
	if f.err != nil {
		return nil, f.err
	}
	if k > len(f.docs) {
		k = len(f.docs)
	}
	return f.docs[:k], nil
}

func (f *fakeStore) Add(_ context.Context, _ []models.Document) error { return nil }
func (f *fakeStore) DeleteAll(_ context.Context) error                { return nil }

type fakeGenerator struct {
	mu           sync.Mutex
	lastPrompt   string
	lastMessages []models.ChatMessage
	result       *models.GenerationResult
	panicWith    any
}

func (f *fakeGenerator) Invoke(_ context.Context, prompt string) *models.GenerationResult {
	if f.panicWith != nil {
		panic(f.panicWith)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastPrompt = prompt
	return f.result
}

func (f *fakeGenerator) InvokeChat(_ context.Context, messages []models.ChatMessage) *models.GenerationResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastMessages = messages
	return f.result
}

type captureSink struct {
	mu   sync.Mutex
	runs []*repositories.TelemetryRun
}

func (c *captureSink) LogRun(_ context.Context, run *repositories.TelemetryRun) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.runs = append(c.runs, run)
	return nil
}

func (c *captureSink) logged() []*repositories.TelemetryRun {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*repositories.TelemetryRun, len(c.runs))
	copy(out, c.runs)
	return out
}

func okResult() *models.GenerationResult {
	return &models.GenerationResult{
		ModelName:    "llama3.2",
		ResponseText: "Paris.",
		CreatedAt:    "2024-01-15T14:30:00Z",
	}
}

func parisDoc() models.ScoredDocument {
	return models.ScoredDocument{
		Document: models.Document{
			Content:  "Paris is the capital of France.",
			Metadata: map[string]string{models.MetadataSourceKey: "geo.txt"},
		},
		Distance: 0.12,
	}
}

func newTestSession(t *testing.T, store repositories.VectorStore, gen *fakeGenerator, sink repositories.TelemetrySink) *Session {
	t.Helper()
	logger := zap.NewNop()
	tl := telemetry.NewLogger(sink, telemetry.DefaultConfig(), logger)
	require.NoError(t, tl.Start())
	t.Cleanup(func() { tl.Stop(time.Second) })
	return NewSession(
		retrieval.NewService(store, 4, 2, logger),
		gen, tl, 3, logger,
	)
}

func TestHandleQuery_GroundedAnswer(t *testing.T) {
	gen := &fakeGenerator{result: okResult()}
	sink := &captureSink{}
	session := newTestSession(t, &fakeStore{docs: []models.ScoredDocument{parisDoc()}}, gen, sink)

	answer := session.HandleQuery(context.Background(), "What is the capital of France?", "", "")

	require.NotNil(t, answer)
	assert.Equal(t, "Paris.", answer.Result.ResponseText)
	assert.Equal(t, "Paris is the capital of France.", answer.Context)
	assert.Equal(t, 0.12, answer.TopScore)
	assert.Equal(t,
		"Context: Paris is the capital of France.\nQuestion: What is the capital of France?",
		gen.lastPrompt)
}

func TestHandleQuery_EmptyInputRejectedBeforeRetrieval(t *testing.T) {
	gen := &fakeGenerator{result: okResult()}
	store := &fakeStore{err: errors.New("must not be called")}
	session := newTestSession(t, store, gen, &captureSink{})

	for _, input := range []string{"", "   ", "\n\t"} {
		answer := session.HandleQuery(context.Background(), input, "", "")

		assert.Equal(t, EmptyInputMessage, answer.Result.ResponseText)
		assert.True(t, answer.Result.Failed())
		assert.Empty(t, gen.lastPrompt)
	}
}

func TestHandleQuery_NoDocumentFallbackContext(t *testing.T) {
	gen := &fakeGenerator{result: okResult()}
	session := newTestSession(t, &fakeStore{}, gen, &captureSink{})

	answer := session.HandleQuery(context.Background(), "anything?", "", "")

	assert.Equal(t, NoContextFallback, answer.Context)
	assert.Contains(t, gen.lastPrompt, "Context: "+NoContextFallback)
	assert.Equal(t, "Paris.", answer.Result.ResponseText)
}

func TestHandleQuery_StoreFailureStillAnswers(t *testing.T) {
	gen := &fakeGenerator{result: okResult()}
	session := newTestSession(t, &fakeStore{err: errors.New("index corrupt")}, gen, &captureSink{})

	answer := session.HandleQuery(context.Background(), "anything?", "", "")

	assert.Equal(t, NoContextFallback, answer.Context)
	assert.False(t, answer.Result.Failed())
}

func TestHandleQuery_ChatFormWhenSystemPromptSet(t *testing.T) {
	gen := &fakeGenerator{result: okResult()}
	session := newTestSession(t, &fakeStore{docs: []models.ScoredDocument{parisDoc()}}, gen, &captureSink{})

	session.HandleQuery(context.Background(), "capital?", "You are concise.", "Understood.")

	require.Len(t, gen.lastMessages, 3)
	assert.Equal(t, "system", gen.lastMessages[0].Role)
	assert.Equal(t, "You are concise.", gen.lastMessages[0].Content)
	assert.Equal(t, "user", gen.lastMessages[1].Role)
	assert.Contains(t, gen.lastMessages[1].Content, "Paris is the capital of France.")
	assert.Equal(t, "assistant", gen.lastMessages[2].Role)
	assert.Empty(t, gen.lastPrompt)
}

func TestHandleQuery_AppendsHistory(t *testing.T) {
	gen := &fakeGenerator{result: okResult()}
	session := newTestSession(t, &fakeStore{docs: []models.ScoredDocument{parisDoc()}}, gen, &captureSink{})

	session.HandleQuery(context.Background(), "first?", "", "")
	session.HandleQuery(context.Background(), "second?", "", "")

	turns := session.History()
	require.Len(t, turns, 2)
	assert.Equal(t, "first?", turns[0].UserInput)
	assert.Equal(t, "Paris.", turns[0].ResponseText)
	assert.Equal(t, "second?", turns[1].UserInput)
}

func TestHandleQuery_HistoryBounded(t *testing.T) {
	gen := &fakeGenerator{result: okResult()}
	session := newTestSession(t, &fakeStore{}, gen, &captureSink{})

	for i := 0; i < 5; i++ {
		session.HandleQuery(context.Background(), "q", "", "")
	}

	assert.Len(t, session.History(), 3)
}

func TestHandleQuery_TelemetryRecordsTopDocument(t *testing.T) {
	gen := &fakeGenerator{result: okResult()}
	sink := &captureSink{}
	docs := []models.ScoredDocument{parisDoc(), {
		Document: models.Document{Content: "Berlin.", Metadata: map[string]string{models.MetadataSourceKey: "de.txt"}},
		Distance: 0.9,
	}}
	session := newTestSession(t, &fakeStore{docs: docs}, gen, sink)

	session.HandleQuery(context.Background(), "capital?", "", "")

	require.Eventually(t, func() bool { return len(sink.logged()) == 1 }, time.Second, 10*time.Millisecond)
	run := sink.logged()[0]
	assert.Equal(t, "geo.txt", run.Params["retrieved_doc_name"])
	assert.Equal(t, 0.12, run.Metrics["cosine_distance"])
	assert.Equal(t, "Paris.", run.Params["llm_response"])
}

func TestHandleQuery_GenerationFailurePropagatedAsResult(t *testing.T) {
	failed := (&models.GenerationResult{Error: "ollama unreachable"}).Normalize()
	gen := &fakeGenerator{result: failed}
	session := newTestSession(t, &fakeStore{}, gen, &captureSink{})

	answer := session.HandleQuery(context.Background(), "anything?", "", "")

	assert.True(t, answer.Result.Failed())
	assert.Equal(t, models.NoResponseFallback, answer.Result.ResponseText)
	assert.Equal(t, models.UnknownModel, answer.Result.ModelName)
}

func TestHandleQuery_PanicConvertedToErrorResult(t *testing.T) {
	gen := &fakeGenerator{result: okResult(), panicWith: "boom"}
	session := newTestSession(t, &fakeStore{}, gen, &captureSink{})

	answer := session.HandleQuery(context.Background(), "anything?", "", "")

	require.NotNil(t, answer)
	assert.True(t, answer.Result.Failed())
	assert.Contains(t, answer.Result.Error, "boom")
}

func TestClearHistory(t *testing.T) {
	gen := &fakeGenerator{result: okResult()}
	session := newTestSession(t, &fakeStore{}, gen, &captureSink{})

	session.HandleQuery(context.Background(), "q", "", "")
	session.ClearHistory()

	assert.Empty(t, session.History())
}
