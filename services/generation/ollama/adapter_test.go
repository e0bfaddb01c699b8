package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/upb/rag-chat/models"
)

func newTestAdapter(t *testing.T, handler http.HandlerFunc) *Adapter {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewAdapter(Config{BaseURL: srv.URL, Model: "llama3.2", Temperature: 0.1}, zap.NewNop())
}

func TestInvoke_NormalizesFullReply(t *testing.T) {
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)

		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "llama3.2", req.Model)
		assert.False(t, req.Stream)
		assert.Equal(t, 0.1, req.Options["temperature"])

		json.NewEncoder(w).Encode(map[string]interface{}{
			"model":             "llama3.2",
			"response":          "Paris is the capital of France.",
			"created_at":        "2024-01-15T14:30:00Z",
			"total_duration":    1_500_000_000, // ns
			"prompt_eval_count": 26,
			"eval_count":        8,
		})
	})

	result := adapter.Invoke(context.Background(), "Context: ...\nQuestion: ...")

	assert.False(t, result.Failed())
	assert.Equal(t, "llama3.2", result.ModelName)
	assert.Equal(t, "Paris is the capital of France.", result.ResponseText)
	assert.Equal(t, "2024-01-15T14:30:00Z", result.CreatedAt)
	assert.Equal(t, int64(1_500_000), result.TotalDurationMicros)
	assert.Equal(t, 26, result.PromptTokens)
	assert.Equal(t, 8, result.GeneratedTokens)
}

func TestInvoke_MissingFieldsDefaultToZeroAndSentinels(t *testing.T) {
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		// Reply missing eval counts, duration, model, timestamp.
		w.Write([]byte(`{"response":"an answer"}`))
	})

	result := adapter.Invoke(context.Background(), "prompt")

	assert.False(t, result.Failed())
	assert.Equal(t, models.UnknownModel, result.ModelName)
	assert.Equal(t, "an answer", result.ResponseText)
	assert.Equal(t, models.UnknownTime, result.CreatedAt)
	assert.Equal(t, int64(0), result.TotalDurationMicros)
	assert.Equal(t, 0, result.PromptTokens)
	assert.Equal(t, 0, result.GeneratedTokens)
}

func TestInvoke_EmptyResponseGetsFallbackText(t *testing.T) {
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"model":"llama3.2"}`))
	})

	result := adapter.Invoke(context.Background(), "prompt")

	assert.False(t, result.Failed())
	assert.Equal(t, models.NoResponseFallback, result.ResponseText)
}

func TestInvoke_ConnectionRefused(t *testing.T) {
	adapter := NewAdapter(Config{BaseURL: "http://127.0.0.1:1", Model: "llama3.2"}, zap.NewNop())

	result := adapter.Invoke(context.Background(), "prompt")

	assert.True(t, result.Failed())
	assert.NotEmpty(t, result.Error)
	assert.Equal(t, models.NoResponseFallback, result.ResponseText)
	assert.Equal(t, "llama3.2", result.ModelName)
}

func TestInvoke_Non2xxStatus(t *testing.T) {
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	})

	result := adapter.Invoke(context.Background(), "prompt")

	assert.True(t, result.Failed())
	assert.Contains(t, result.Error, "500")
	assert.Equal(t, models.NoResponseFallback, result.ResponseText)
}

func TestInvoke_MalformedReply(t *testing.T) {
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json at all"))
	})

	result := adapter.Invoke(context.Background(), "prompt")

	assert.True(t, result.Failed())
	assert.Equal(t, models.NoResponseFallback, result.ResponseText)
}

func TestInvoke_NoRetryOnServerError(t *testing.T) {
	calls := 0
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	})

	adapter.Invoke(context.Background(), "prompt")

	assert.Equal(t, 1, calls)
}

func TestInvokeChat(t *testing.T) {
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)

		json.NewEncoder(w).Encode(map[string]interface{}{
			"model":      "llama3.2",
			"message":    map[string]string{"role": "assistant", "content": "chat answer"},
			"created_at": "2024-01-15T14:30:00Z",
			"eval_count": 5,
		})
	})

	result := adapter.InvokeChat(context.Background(), []models.ChatMessage{
		{Role: "system", Content: "be helpful"},
		{Role: "user", Content: "question"},
	})

	assert.False(t, result.Failed())
	assert.Equal(t, "chat answer", result.ResponseText)
	assert.Equal(t, 5, result.GeneratedTokens)
}

func TestInvoke_ContextDeadline(t *testing.T) {
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(`{"response":"late"}`))
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	result := adapter.Invoke(ctx, "prompt")

	assert.True(t, result.Failed())
}

func TestNewAdapter_Defaults(t *testing.T) {
	adapter := NewAdapter(Config{}, zap.NewNop())
	assert.Equal(t, defaultBaseURL, adapter.baseURL)
	assert.Equal(t, "llama3.2", adapter.model)
	assert.Equal(t, 300*time.Second, adapter.httpClient.Timeout)
}
