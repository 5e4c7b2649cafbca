// Package removebg is a client for the remove.bg background removal API.
package removebg

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

const defaultBaseURL = "https://api.remove.bg/v1.0"

type Client struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
}

func NewClient(apiKey string) *Client {
	return NewClientWithBaseURL(apiKey, defaultBaseURL)
}

func NewClientWithBaseURL(apiKey, baseURL string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		apiKey:     apiKey,
		baseURL:    baseURL,
	}
}

func (c *Client) Configured() bool {
	return c.apiKey != ""
}

// RemoveBackground submits an image by URL and returns the cut-out PNG bytes.
func (c *Client) RemoveBackground(ctx context.Context, imageURL string) ([]byte, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("removebg: no API key configured")
	}

	var body strings.Builder
	form := multipart.NewWriter(&body)
	form.WriteField("image_url", imageURL)
	form.WriteField("size", "auto")
	form.WriteField("format", "png")
	if err := form.Close(); err != nil {
		return nil, fmt.Errorf("build form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/removebg", strings.NewReader(body.String()))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("removebg request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("removebg API error: status %d: %s", resp.StatusCode, string(data))
	}
	return io.ReadAll(resp.Body)
}

// CheckAccount probes credentials for health checks.
func (c *Client) CheckAccount(ctx context.Context) error {
	if c.apiKey == "" {
		return fmt.Errorf("removebg: no API key configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/account", nil)
	if err != nil {
		return err
	}
	req.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("removebg account probe: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("removebg account probe: status %d", resp.StatusCode)
	}
	return nil
}
