// Package replicate is a minimal client for the Replicate predictions API.
package replicate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultBaseURL = "https://api.replicate.com/v1"

// Prediction statuses reported by Replicate.
const (
	StatusStarting   = "starting"
	StatusProcessing = "processing"
	StatusSucceeded  = "succeeded"
	StatusFailed     = "failed"
	StatusCanceled   = "canceled"
)

// Model versions used by the gateway.
const (
	ModelSDXL       = "39ed52f2a78e934b3ba6e2a89f5b1c712de7dfea535525255b1aa35c5565e08b"
	ModelRealESRGAN = "42fed1c4974146d4d2414e2be2c5277c7fcf05fcc3a73abf41610695738c1d7b"
	ModelRembg      = "fb8af171cfa1616ddcf1242c093f9c46bcada5ad4cf6f2fbe8b81b330ec5c003"
)

// PredictionRequest creates a prediction.
type PredictionRequest struct {
	Version string         `json:"version"`
	Input   map[string]any `json:"input"`
}

// Prediction is Replicate's view of an asynchronous model run.
type Prediction struct {
	ID     string         `json:"id"`
	Status string         `json:"status"`
	Input  map[string]any `json:"input"`
	Output any            `json:"output"`
	Error  any            `json:"error"`
	URLs   struct {
		Get    string `json:"get"`
		Cancel string `json:"cancel"`
	} `json:"urls"`
}

// OutputURLs normalizes Output, which Replicate returns as either a string
// or a list of strings depending on the model.
func (p *Prediction) OutputURLs() []string {
	switch out := p.Output.(type) {
	case string:
		return []string{out}
	case []any:
		urls := make([]string, 0, len(out))
		for _, v := range out {
			if s, ok := v.(string); ok {
				urls = append(urls, s)
			}
		}
		return urls
	}
	return nil
}

// ErrorMessage flattens the Error field, which may be a string or absent.
func (p *Prediction) ErrorMessage() string {
	if s, ok := p.Error.(string); ok {
		return s
	}
	return ""
}

type Client struct {
	httpClient *http.Client
	token      string
	baseURL    string
}

func NewClient(token string) *Client {
	return NewClientWithBaseURL(token, defaultBaseURL)
}

// NewClientWithBaseURL exists for tests that point the client at a fake
// server.
func NewClientWithBaseURL(token, baseURL string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		token:      token,
		baseURL:    baseURL,
	}
}

func (c *Client) Configured() bool {
	return c.token != ""
}

func (c *Client) CreatePrediction(ctx context.Context, version string, input map[string]any) (*Prediction, error) {
	body, err := json.Marshal(PredictionRequest{Version: version, Input: input})
	if err != nil {
		return nil, fmt.Errorf("marshal prediction request: %w", err)
	}

	var p Prediction
	if err := c.do(ctx, http.MethodPost, "/predictions", bytes.NewReader(body), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) GetPrediction(ctx context.Context, id string) (*Prediction, error) {
	var p Prediction
	if err := c.do(ctx, http.MethodGet, "/predictions/"+id, nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// CancelPrediction asks Replicate to stop a running prediction. Best-effort:
// callers log but do not fail on error.
func (c *Client) CancelPrediction(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/predictions/"+id+"/cancel", nil, nil)
}

// CheckAccount probes credentials for health checks.
func (c *Client) CheckAccount(ctx context.Context) error {
	if !c.Configured() {
		return fmt.Errorf("replicate: no API token configured")
	}
	return c.do(ctx, http.MethodGet, "/account", nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("replicate request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("replicate API error: status %d: %s", resp.StatusCode, string(data))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode replicate response: %w", err)
	}
	return nil
}
