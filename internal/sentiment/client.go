// Package sentiment calls the external analysis service and turns its
// output into stored sentiment signals.
package sentiment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/failsafe-go/failsafe-go"

	"geopulse/pkg/clients"
	"geopulse/pkg/logging"
	"geopulse/pkg/models"
)

// AnalysisRequest is the payload sent to the analysis service.
type AnalysisRequest struct {
	Content  string `json:"content"`
	Language string `json:"language"`
	Context  string `json:"context"`
}

// AnalysisResult is the analysis service's verdict on one text.
type AnalysisResult struct {
	Label        models.SentimentLabel `json:"label"`
	Score        float64               `json:"score"`
	Confidence   float64               `json:"confidence"`
	ModelVersion string                `json:"model_version"`
}

// Client calls the sentiment analysis service with retries and a circuit
// breaker.
type Client struct {
	baseURL    string
	httpClient *http.Client
	executor   failsafe.Executor[*http.Response]
	logger     logging.Logger
}

func NewClient(baseURL string, logger logging.Logger) *Client {
	cfg := clients.DefaultHTTPExecutorConfig()
	cfg.EnableCircuitBreaker = true
	cfg.Logger = logger
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Transport: clients.DefaultTransport(),
			Timeout:   10 * time.Second,
		},
		executor: clients.NewHTTPExecutor(cfg),
		logger:   logger,
	}
}

// Analyze sends content to the analysis service and returns its verdict.
func (c *Client) Analyze(ctx context.Context, content string) (*AnalysisResult, error) {
	payload, err := json.Marshal(AnalysisRequest{
		Content:  content,
		Language: "auto",
		Context:  "political_news",
	})
	if err != nil {
		return nil, fmt.Errorf("marshal analysis request: %w", err)
	}

	resp, err := clients.ExecuteHTTP(ctx, c.executor, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			c.baseURL+"/analyze/sentiment", bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return c.httpClient.Do(req)
	})
	if err != nil {
		return nil, fmt.Errorf("call analysis service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("analysis service returned %d: %s", resp.StatusCode, body)
	}

	var result AnalysisResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode analysis response: %w", err)
	}
	if !result.Label.Valid() {
		return nil, fmt.Errorf("analysis service returned unknown label %q", result.Label)
	}
	return &result, nil
}
