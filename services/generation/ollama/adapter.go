// Package ollama implements generation.Client for a locally hosted Ollama
// server.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/upb/rag-chat/models"
)

const defaultBaseURL = "http://localhost:11434"

// Adapter calls Ollama's non-streaming generate and chat endpoints and
// normalizes replies into models.GenerationResult.
type Adapter struct {
	baseURL     string
	model       string
	temperature float64
	httpClient  *http.Client
	logger      *zap.Logger
}

// Config holds the adapter's settings.
type Config struct {
	BaseURL string
	Model   string
	// Temperature trades creativity for reproducibility and latency. The
	// original deployment runs at 0.1.
	Temperature float64
	Timeout     time.Duration
}

// NewAdapter creates an Ollama adapter.
func NewAdapter(cfg Config, logger *zap.Logger) *Adapter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = "llama3.2"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 300 * time.Second
	}
	return &Adapter{
		baseURL:     cfg.BaseURL,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		logger:      logger,
	}
}

type generateRequest struct {
	Model   string                 `json:"model"`
	Prompt  string                 `json:"prompt"`
	Stream  bool                   `json:"stream"`
	Options map[string]interface{} `json:"options,omitempty"`
}

type chatRequest struct {
	Model    string                 `json:"model"`
	Messages []models.ChatMessage   `json:"messages"`
	Stream   bool                   `json:"stream"`
	Options  map[string]interface{} `json:"options,omitempty"`
}

// ollamaResponse covers both the generate and chat reply shapes.
type ollamaResponse struct {
	Model     string `json:"model"`
	Response  string `json:"response"`
	Message   *models.ChatMessage `json:"message,omitempty"`
	CreatedAt string `json:"created_at"`
	// TotalDuration is reported in nanoseconds.
	TotalDuration   int64 `json:"total_duration"`
	PromptEvalCount int   `json:"prompt_eval_count"`
	EvalCount       int   `json:"eval_count"`
}

// Invoke sends a flat prompt to /api/generate.
func (a *Adapter) Invoke(ctx context.Context, prompt string) *models.GenerationResult {
	body := generateRequest{
		Model:   a.model,
		Prompt:  prompt,
		Stream:  false,
		Options: a.options(),
	}
	return a.call(ctx, "/api/generate", body)
}

// InvokeChat sends role-tagged messages to /api/chat.
func (a *Adapter) InvokeChat(ctx context.Context, messages []models.ChatMessage) *models.GenerationResult {
	body := chatRequest{
		Model:    a.model,
		Messages: messages,
		Stream:   false,
		Options:  a.options(),
	}
	return a.call(ctx, "/api/chat", body)
}

func (a *Adapter) options() map[string]interface{} {
	return map[string]interface{}{"temperature": a.temperature}
}

func (a *Adapter) call(ctx context.Context, path string, body interface{}) *models.GenerationResult {
	payload, err := json.Marshal(body)
	if err != nil {
		return a.failure(fmt.Errorf("marshaling request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return a.failure(fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return a.failure(fmt.Errorf("calling generation service: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return a.failure(fmt.Errorf("generation service returned status %d: %s", resp.StatusCode, msg))
	}

	var raw ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return a.failure(fmt.Errorf("decoding response: %w", err))
	}

	return a.normalize(&raw)
}

// normalize converts a raw reply into a GenerationResult with every missing
// field defaulted, so nothing downstream has to null-check.
func (a *Adapter) normalize(raw *ollamaResponse) *models.GenerationResult {
	responseText := raw.Response
	if responseText == "" && raw.Message != nil {
		responseText = raw.Message.Content
	}

	result := &models.GenerationResult{
		ModelName:           raw.Model,
		ResponseText:        responseText,
		CreatedAt:           raw.CreatedAt,
		TotalDurationMicros: raw.TotalDuration / int64(time.Microsecond),
		PromptTokens:        raw.PromptEvalCount,
		GeneratedTokens:     raw.EvalCount,
	}
	return result.Normalize()
}

// failure produces the degraded-but-valid result for a failed call. The
// client never retries; the orchestrator and telemetry both handle results
// with Error set.
func (a *Adapter) failure(err error) *models.GenerationResult {
	a.logger.Error("generation call failed",
		zap.String("model", a.model),
		zap.Error(err))

	result := &models.GenerationResult{
		ModelName: a.model,
		Error:     err.Error(),
	}
	return result.Normalize()
}
