// Package telemetry records interaction records to an experiment-tracking
// backend off the critical response path.
package telemetry

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/upb/rag-chat/models"
	"github.com/upb/rag-chat/repositories"
)

// Config holds configuration for the Logger.
type Config struct {
	BufferSize int // size of the record buffer channel
	Workers    int // number of concurrent workers
	// InputCostPer1K and OutputCostPer1K are the per-1000-token prices used
	// for the derived cost metrics.
	InputCostPer1K  float64
	OutputCostPer1K float64
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		BufferSize: 256,
		Workers:    2,
	}
}

// Logger computes derived metrics for each interaction and hands the
// resulting run to the sink from a background worker pool. Enqueueing never
// blocks the caller; when the buffer is full the record is dropped with a
// warning. Sink failures are logged and dropped, never propagated.
type Logger struct {
	sink    repositories.TelemetrySink
	logger  *zap.Logger
	cfg     Config
	records chan *models.InteractionRecord
	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool
	stopped bool
}

// NewLogger creates a Logger. It holds its own sink handle; there is no
// process-global telemetry state.
func NewLogger(sink repositories.TelemetrySink, cfg Config, logger *zap.Logger) *Logger {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultConfig().BufferSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultConfig().Workers
	}
	return &Logger{
		sink:    sink,
		logger:  logger,
		cfg:     cfg,
		records: make(chan *models.InteractionRecord, cfg.BufferSize),
	}
}

// Start launches the background workers.
func (l *Logger) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.started {
		return fmt.Errorf("telemetry logger already started")
	}

	for i := 0; i < l.cfg.Workers; i++ {
		l.wg.Add(1)
		go l.worker(i)
	}

	l.started = true
	l.logger.Info("started telemetry logger",
		zap.Int("workers", l.cfg.Workers),
		zap.Int("buffer_size", l.cfg.BufferSize))

	return nil
}

// Stop drains outstanding records, waiting up to grace before abandoning
// whatever is still in flight. Delivery is best effort, not at-least-once.
func (l *Logger) Stop(grace time.Duration) error {
	l.mu.Lock()
	if !l.started || l.stopped {
		l.mu.Unlock()
		return fmt.Errorf("telemetry logger not running")
	}
	l.stopped = true
	l.mu.Unlock()

	l.logger.Info("stopping telemetry logger", zap.Int("pending", len(l.records)))
	close(l.records)

	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		l.logger.Info("telemetry logger stopped")
		return nil
	case <-time.After(grace):
		return fmt.Errorf("telemetry logger stop timeout after %v", grace)
	}
}

// LogInteraction enqueues a record without blocking. A full buffer drops the
// record: telemetry must never delay the response to the user.
func (l *Logger) LogInteraction(record *models.InteractionRecord) {
	// The send stays under the lock so Stop cannot close the channel between
	// the state check and the send.
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.started || l.stopped {
		l.logger.Warn("telemetry logger not running, dropping record")
		return
	}

	select {
	case l.records <- record:
	default:
		l.logger.Warn("telemetry buffer full, dropping record",
			zap.String("user_input", record.UserInput))
	}
}

// Pending returns the number of buffered, unprocessed records.
func (l *Logger) Pending() int {
	return len(l.records)
}

func (l *Logger) worker(id int) {
	defer l.wg.Done()

	for record := range l.records {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := l.sink.LogRun(ctx, l.buildRun(record)); err != nil {
			// Terminal but isolated: the interaction already completed.
			l.logger.Error("recording interaction failed",
				zap.Int("worker_id", id),
				zap.Error(err))
		}
		cancel()
	}
}

// buildRun converts an interaction record into one telemetry run: identifying
// parameters, derived metrics, a timestamp tag, and the response artifact.
// Only the top document's source name is recorded, never full document text.
func (l *Logger) buildRun(record *models.InteractionRecord) *repositories.TelemetryRun {
	result := record.Result
	inputCost, outputCost, totalCost := ComputeCosts(
		result.PromptTokens, result.GeneratedTokens,
		l.cfg.InputCostPer1K, l.cfg.OutputCostPer1K)

	return &repositories.TelemetryRun{
		Name: "rag_interaction",
		Params: map[string]string{
			"model_used":         result.ModelName,
			"user_prompt":        record.UserInput,
			"system_prompt":      record.SystemPrompt,
			"full_prompt":        record.FullPrompt,
			"retrieved_doc_name": record.TopDocumentSource(),
			"llm_response":       result.ResponseText,
		},
		Metrics: map[string]float64{
			"cosine_distance":     record.TopScore,
			"processing_time_us":  float64(result.TotalDurationMicros),
			"prompt_tokens":       float64(result.PromptTokens),
			"generated_tokens":    float64(result.GeneratedTokens),
			"input_cost_usd":      inputCost,
			"output_cost_usd":     outputCost,
			"total_cost_usd":      totalCost,
			"llm_response_length": float64(len(result.ResponseText)),
		},
		Tags: map[string]string{
			"date_time": result.CreatedAt,
		},
		ArtifactName: "llm_response.txt",
		ArtifactText: result.ResponseText,
	}
}

// ComputeCosts derives the per-interaction costs from token counts and
// per-1k-token rates, each rounded to 6 decimal places.
func ComputeCosts(promptTokens, generatedTokens int, inputPer1K, outputPer1K float64) (inputCost, outputCost, totalCost float64) {
	inputCost = round6(float64(promptTokens) / 1000 * inputPer1K)
	outputCost = round6(float64(generatedTokens) / 1000 * outputPer1K)
	totalCost = round6(inputCost + outputCost)
	return inputCost, outputCost, totalCost
}

func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
