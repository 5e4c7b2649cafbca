// Package gpt wraps the OpenAI chat completions API for text generation.
package gpt

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

const defaultModel = openai.GPT4

// Client is a thin wrapper over the OpenAI SDK carrying the model choice and
// the sampling defaults the gateway uses.
type Client struct {
	api   *openai.Client
	model string
}

func NewClient(apiKey string) *Client {
	return NewClientWithModel(apiKey, defaultModel)
}

func NewClientWithModel(apiKey, model string) *Client {
	if model == "" {
		model = defaultModel
	}
	var api *openai.Client
	if apiKey != "" {
		api = openai.NewClient(apiKey)
	}
	return &Client{api: api, model: model}
}

func (c *Client) Configured() bool {
	return c.api != nil
}

// Complete runs a single chat completion and returns the trimmed assistant
// message.
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string, maxTokens int, temperature float32) (string, error) {
	if c.api == nil {
		return "", fmt.Errorf("openai: no API key configured")
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		MaxTokens:        maxTokens,
		Temperature:      temperature,
		TopP:             0.9,
		PresencePenalty:  0.3,
		FrequencyPenalty: 0.3,
	})
	if err != nil {
		return "", fmt.Errorf("openai completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai completion: empty response")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// CheckAccount probes credentials for health checks.
func (c *Client) CheckAccount(ctx context.Context) error {
	if c.api == nil {
		return fmt.Errorf("openai: no API key configured")
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if _, err := c.api.ListModels(ctx); err != nil {
		return fmt.Errorf("openai models probe: %w", err)
	}
	return nil
}
