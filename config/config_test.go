package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const validConfig = `
model:
  name: llama3.2
  embedding_model: all-minilm
  endpoint: http://localhost:11434
  temperature: 0.1
storage:
  persist_directory: ./chroma_db
retrieval:
  top_k: 4
  ceiling: 2
chat:
  max_history: 3
costs:
  input_cost_per_1k: 0.003
  output_cost_per_1k: 0.015
mlflow:
  tracking_uri: http://localhost:5000
  experiment_name: LLM_RAG_Logging
`

func TestLoad_ValidFile(t *testing.T) {
	path := writeConfigFile(t, validConfig)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "llama3.2", cfg.Model.Name)
	assert.Equal(t, "all-minilm", cfg.Model.EmbeddingModel)
	assert.Equal(t, 0.1, cfg.Model.Temperature)
	assert.Equal(t, "./chroma_db", cfg.Storage.PersistDirectory)
	assert.Equal(t, 4, cfg.Retrieval.TopK)
	assert.Equal(t, 3, cfg.Chat.MaxHistory)
	assert.Equal(t, 0.003, cfg.Costs.InputCostPer1K)
	assert.Equal(t, "LLM_RAG_Logging", cfg.MLflow.ExperimentName)
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfigFile(t, `
model:
  name: llama3.2
  embedding_model: all-minilm
  endpoint: http://localhost:11434
storage:
  persist_directory: ./data
mlflow:
  tracking_uri: http://localhost:5000
  experiment_name: exp
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Retrieval.TopK)
	assert.Equal(t, 2, cfg.Retrieval.Ceiling)
	assert.Equal(t, 3, cfg.Chat.MaxHistory)
	assert.Equal(t, 2, cfg.MLflow.Workers)
	assert.Equal(t, 2*time.Second, cfg.MLflow.StopGrace)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "false", cfg.TokenizersParallelism)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_MalformedFile(t *testing.T) {
	path := writeConfigFile(t, "model: [not: valid")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_ValidationFailure(t *testing.T) {
	// Missing persist_directory and tracking_uri.
	path := writeConfigFile(t, `
model:
  name: llama3.2
  embedding_model: all-minilm
  endpoint: http://localhost:11434
mlflow:
  experiment_name: exp
`)

	_, err := Load(path)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "validation")
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("RAGCHAT_MODEL_ENDPOINT", "http://ollama:11434")
	t.Setenv("RAGCHAT_LOG_LEVEL", "debug")
	t.Setenv("PORT", "9999")

	cfg, err := Load(writeConfigFile(t, validConfig))
	require.NoError(t, err)

	assert.Equal(t, "http://ollama:11434", cfg.Model.Endpoint)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 9999, cfg.Server.Port)
}

func TestEffectiveTopK(t *testing.T) {
	tests := []struct {
		name    string
		topK    int
		ceiling int
		want    int
	}{
		{"ceiling caps topK", 4, 2, 2},
		{"topK below ceiling", 1, 2, 1},
		{"no ceiling", 4, 0, 4},
		{"equal", 2, 2, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Retrieval: RetrievalConfig{TopK: tt.topK, Ceiling: tt.ceiling}}
			assert.Equal(t, tt.want, cfg.EffectiveTopK())
		})
	}
}

func TestSetupEnvironment(t *testing.T) {
	t.Setenv("TOKENIZERS_PARALLELISM", "")
	cfg := &Config{TokenizersParallelism: "false"}
	cfg.SetupEnvironment()
	assert.Equal(t, "false", os.Getenv("TOKENIZERS_PARALLELISM"))
}

func TestServerConfig_Address(t *testing.T) {
	sc := ServerConfig{Host: "127.0.0.1", Port: 8080}
	assert.Equal(t, "127.0.0.1:8080", sc.Address())
}
