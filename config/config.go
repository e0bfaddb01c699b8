package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the complete application configuration. It is loaded once
// at startup and passed down by value reference; nothing re-reads the file.
type Config struct {
	Model     ModelConfig     `yaml:"model" validate:"required"`
	Storage   StorageConfig   `yaml:"storage" validate:"required"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Chat      ChatConfig      `yaml:"chat"`
	Costs     CostsConfig     `yaml:"costs"`
	MLflow    MLflowConfig    `yaml:"mlflow" validate:"required"`
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"logging"`

	// TokenizersParallelism mirrors the embedding runtime's
	// TOKENIZERS_PARALLELISM switch; exported to the environment at startup.
	TokenizersParallelism string `yaml:"tokenizers_parallelism"`
}

// ModelConfig identifies the generation and embedding models.
type ModelConfig struct {
	Name           string        `yaml:"name" validate:"required"`
	EmbeddingModel string        `yaml:"embedding_model" validate:"required"`
	Endpoint       string        `yaml:"endpoint" validate:"required,url"`
	Temperature    float64       `yaml:"temperature" validate:"gte=0,lte=2"`
	Timeout        time.Duration `yaml:"timeout"`
}

// StorageConfig holds the persisted vector index location and the source
// corpus it is built from.
type StorageConfig struct {
	PersistDirectory string `yaml:"persist_directory" validate:"required"`
	CorpusDirectory  string `yaml:"corpus_directory"`
}

// RetrievalConfig tunes similarity search.
type RetrievalConfig struct {
	TopK int `yaml:"top_k" validate:"gte=0"`
	// Ceiling caps the effective k regardless of TopK. Kept low for latency;
	// raise it when the store and model can afford wider context.
	Ceiling int `yaml:"ceiling" validate:"gte=0"`
}

// ChatConfig tunes conversation behavior.
type ChatConfig struct {
	MaxHistory int `yaml:"max_history" validate:"gte=0"`
}

// CostsConfig holds per-1k-token pricing used for telemetry cost metrics.
type CostsConfig struct {
	InputCostPer1K  float64 `yaml:"input_cost_per_1k" validate:"gte=0"`
	OutputCostPer1K float64 `yaml:"output_cost_per_1k" validate:"gte=0"`
}

// MLflowConfig addresses the experiment-tracking backend.
type MLflowConfig struct {
	TrackingURI    string `yaml:"tracking_uri" validate:"required,url"`
	ExperimentName string `yaml:"experiment_name" validate:"required"`
	ArtifactDir    string `yaml:"artifact_dir"`
	// BufferSize and Workers size the background logging pool.
	BufferSize int           `yaml:"buffer_size" validate:"gte=0"`
	Workers    int           `yaml:"workers" validate:"gte=0"`
	StopGrace  time.Duration `yaml:"stop_grace"`
}

// ServerConfig holds HTTP server configuration for the web front-ends.
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port" validate:"gte=0,lte=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `yaml:"format" validate:"omitempty,oneof=json text"`
}

// Load reads the configuration file, applies environment overrides, fills
// defaults, and validates. Any failure here is fatal: the process must not
// proceed with partial configuration.
func Load(path string) (*Config, error) {
	// Load .env if present so RAGCHAT_* overrides work in development.
	_ = godotenv.Load(".env")

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	cfg.applyEnvOverrides()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration against its struct tags.
func (c *Config) Validate() error {
	return validator.New().Struct(c)
}

// EffectiveTopK returns min(TopK, Ceiling), the k actually requested from the
// vector store.
func (c *Config) EffectiveTopK() int {
	k := c.Retrieval.TopK
	if c.Retrieval.Ceiling > 0 && k > c.Retrieval.Ceiling {
		k = c.Retrieval.Ceiling
	}
	return k
}

// SetupEnvironment exports environment switches the embedding runtime reads.
func (c *Config) SetupEnvironment() {
	if c.TokenizersParallelism != "" {
		os.Setenv("TOKENIZERS_PARALLELISM", c.TokenizersParallelism)
	}
}

func (c *Config) applyDefaults() {
	if c.Model.Name == "" {
		c.Model.Name = "llama3.2"
	}
	if c.Model.EmbeddingModel == "" {
		c.Model.EmbeddingModel = "all-minilm"
	}
	if c.Model.Endpoint == "" {
		c.Model.Endpoint = "http://localhost:11434"
	}
	if c.Model.Timeout == 0 {
		c.Model.Timeout = 300 * time.Second
	}
	if c.Storage.CorpusDirectory == "" {
		c.Storage.CorpusDirectory = "./docs"
	}
	if c.Retrieval.TopK == 0 {
		c.Retrieval.TopK = 4
	}
	if c.Retrieval.Ceiling == 0 {
		c.Retrieval.Ceiling = 2
	}
	if c.Chat.MaxHistory == 0 {
		c.Chat.MaxHistory = 3
	}
	if c.MLflow.BufferSize == 0 {
		c.MLflow.BufferSize = 256
	}
	if c.MLflow.Workers == 0 {
		c.MLflow.Workers = 2
	}
	if c.MLflow.StopGrace == 0 {
		c.MLflow.StopGrace = 2 * time.Second
	}
	if c.MLflow.ArtifactDir == "" {
		c.MLflow.ArtifactDir = "./mlruns-artifacts"
	}
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 30 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 330 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.TokenizersParallelism == "" {
		c.TokenizersParallelism = "false"
	}
}

// applyEnvOverrides lets deployment environments override file settings
// without editing the file. Only operational knobs are overridable.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("RAGCHAT_MODEL_ENDPOINT"); v != "" {
		c.Model.Endpoint = v
	}
	if v := os.Getenv("RAGCHAT_MODEL_NAME"); v != "" {
		c.Model.Name = v
	}
	if v := os.Getenv("RAGCHAT_PERSIST_DIR"); v != "" {
		c.Storage.PersistDirectory = v
	}
	if v := os.Getenv("RAGCHAT_CORPUS_DIR"); v != "" {
		c.Storage.CorpusDirectory = v
	}
	if v := os.Getenv("RAGCHAT_MLFLOW_URI"); v != "" {
		c.MLflow.TrackingURI = v
	}
	if v := os.Getenv("RAGCHAT_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Server.Port = p
		}
	}
}

// Address returns the HTTP server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
