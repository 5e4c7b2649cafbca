// Package deepl is a client for the DeepL translation API.
package deepl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultBaseURL = "https://api-free.deepl.com/v2"

type Client struct {
	httpClient *http.Client
	authKey    string
	baseURL    string
}

func NewClient(authKey string) *Client {
	return NewClientWithBaseURL(authKey, defaultBaseURL)
}

func NewClientWithBaseURL(authKey, baseURL string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		authKey:    authKey,
		baseURL:    baseURL,
	}
}

func (c *Client) Configured() bool {
	return c.authKey != ""
}

// Translation is one translated text with the language DeepL detected.
type Translation struct {
	Text                   string `json:"text"`
	DetectedSourceLanguage string `json:"detected_source_language"`
}

type translateRequest struct {
	Text               []string `json:"text"`
	TargetLang         string   `json:"target_lang"`
	SourceLang         string   `json:"source_lang,omitempty"`
	PreserveFormatting bool     `json:"preserve_formatting"`
}

type translateResponse struct {
	Translations []Translation `json:"translations"`
}

// Translate sends text to DeepL. sourceLang may be empty for auto-detection.
func (c *Client) Translate(ctx context.Context, text, sourceLang, targetLang string, preserveFormatting bool) (*Translation, error) {
	if c.authKey == "" {
		return nil, fmt.Errorf("deepl: no auth key configured")
	}

	body, err := json.Marshal(translateRequest{
		Text:               []string{text},
		TargetLang:         strings.ToUpper(targetLang),
		SourceLang:         strings.ToUpper(sourceLang),
		PreserveFormatting: preserveFormatting,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal translate request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/translate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "DeepL-Auth-Key "+c.authKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("deepl request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("deepl API error: status %d: %s", resp.StatusCode, string(data))
	}

	var out translateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode deepl response: %w", err)
	}
	if len(out.Translations) == 0 {
		return nil, fmt.Errorf("deepl: empty translation response")
	}
	return &out.Translations[0], nil
}

// CheckAccount probes credentials via the usage endpoint.
func (c *Client) CheckAccount(ctx context.Context) error {
	if c.authKey == "" {
		return fmt.Errorf("deepl: no auth key configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/usage", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "DeepL-Auth-Key "+c.authKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("deepl usage probe: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("deepl usage probe: status %d", resp.StatusCode)
	}
	return nil
}
