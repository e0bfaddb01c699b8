// Package mlflow implements repositories.TelemetrySink against the MLflow
// REST API. Each logged interaction becomes one run in a single experiment
// resolved once at construction time.
package mlflow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/upb/rag-chat/repositories"
)

const apiPrefix = "/api/2.0/mlflow"

// Client talks to an MLflow tracking server. It holds the target experiment
// ID resolved at construction; there is no ambient global experiment state.
type Client struct {
	baseURL      string
	experimentID string
	artifactDir  string
	httpClient   *http.Client
	logger       *zap.Logger
}

// NewClient resolves (or creates) the named experiment on the tracking server
// and returns a ready client. A failure here surfaces at startup rather than
// on the first logged interaction.
func NewClient(trackingURI, experimentName, artifactDir string, logger *zap.Logger) (*Client, error) {
	c := &Client{
		baseURL:     trackingURI,
		artifactDir: artifactDir,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		logger:      logger,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	id, err := c.getExperimentID(ctx, experimentName)
	if err != nil {
		id, err = c.createExperiment(ctx, experimentName)
		if err != nil {
			return nil, fmt.Errorf("resolving experiment %q: %w", experimentName, err)
		}
	}
	c.experimentID = id

	return c, nil
}

// LogRun creates a run, logs the record's params/metrics/tags in one batch,
// writes the text artifact, and finishes the run.
func (c *Client) LogRun(ctx context.Context, run *repositories.TelemetryRun) error {
	runID, err := c.createRun(ctx, run.Name)
	if err != nil {
		return fmt.Errorf("creating run: %w", err)
	}

	if err := c.logBatch(ctx, runID, run); err != nil {
		return fmt.Errorf("logging batch for run %s: %w", runID, err)
	}

	if run.ArtifactName != "" {
		if err := c.writeArtifact(runID, run.ArtifactName, run.ArtifactText); err != nil {
			// The run itself is intact; the artifact is best effort.
			c.logger.Warn("writing artifact failed",
				zap.String("run_id", runID),
				zap.Error(err))
		}
	}

	if err := c.finishRun(ctx, runID); err != nil {
		return fmt.Errorf("finishing run %s: %w", runID, err)
	}

	return nil
}

type experimentResponse struct {
	Experiment struct {
		ExperimentID string `json:"experiment_id"`
	} `json:"experiment"`
	ExperimentID string `json:"experiment_id"`
}

func (c *Client) getExperimentID(ctx context.Context, name string) (string, error) {
	endpoint := fmt.Sprintf("%s%s/experiments/get-by-name?experiment_name=%s",
		c.baseURL, apiPrefix, url.QueryEscape(name))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}

	var resp experimentResponse
	if err := c.do(req, &resp); err != nil {
		return "", err
	}
	if resp.Experiment.ExperimentID == "" {
		return "", fmt.Errorf("experiment %q not found", name)
	}
	return resp.Experiment.ExperimentID, nil
}

func (c *Client) createExperiment(ctx context.Context, name string) (string, error) {
	var resp experimentResponse
	err := c.post(ctx, "/experiments/create", map[string]interface{}{"name": name}, &resp)
	if err != nil {
		return "", err
	}
	if resp.ExperimentID == "" {
		return "", fmt.Errorf("create experiment returned empty id")
	}
	return resp.ExperimentID, nil
}

type createRunResponse struct {
	Run struct {
		Info struct {
			RunID string `json:"run_id"`
		} `json:"info"`
	} `json:"run"`
}

func (c *Client) createRun(ctx context.Context, name string) (string, error) {
	body := map[string]interface{}{
		"experiment_id": c.experimentID,
		"run_name":      name,
		"start_time":    time.Now().UnixMilli(),
	}

	var resp createRunResponse
	if err := c.post(ctx, "/runs/create", body, &resp); err != nil {
		return "", err
	}
	if resp.Run.Info.RunID == "" {
		return "", fmt.Errorf("create run returned empty id")
	}
	return resp.Run.Info.RunID, nil
}

type kv struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type metric struct {
	Key       string  `json:"key"`
	Value     float64 `json:"value"`
	Timestamp int64   `json:"timestamp"`
	Step      int64   `json:"step"`
}

func (c *Client) logBatch(ctx context.Context, runID string, run *repositories.TelemetryRun) error {
	now := time.Now().UnixMilli()

	params := make([]kv, 0, len(run.Params))
	for k, v := range run.Params {
		params = append(params, kv{Key: k, Value: v})
	}
	metrics := make([]metric, 0, len(run.Metrics))
	for k, v := range run.Metrics {
		metrics = append(metrics, metric{Key: k, Value: v, Timestamp: now})
	}
	tags := make([]kv, 0, len(run.Tags))
	for k, v := range run.Tags {
		tags = append(tags, kv{Key: k, Value: v})
	}

	body := map[string]interface{}{
		"run_id":  runID,
		"params":  params,
		"metrics": metrics,
		"tags":    tags,
	}

	return c.post(ctx, "/runs/log-batch", body, nil)
}

func (c *Client) finishRun(ctx context.Context, runID string) error {
	body := map[string]interface{}{
		"run_id":   runID,
		"status":   "FINISHED",
		"end_time": time.Now().UnixMilli(),
	}
	return c.post(ctx, "/runs/update", body, nil)
}

// writeArtifact persists the response text under the run's local artifact
// directory. The tracking server's artifact store is not involved.
func (c *Client) writeArtifact(runID, name, text string) error {
	dir := filepath.Join(c.artifactDir, runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, name), []byte(text), 0o644)
}

func (c *Client) post(ctx context.Context, path string, body interface{}, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+apiPrefix+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("calling tracking server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("tracking server returned status %d: %s", resp.StatusCode, body)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
