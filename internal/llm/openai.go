package llm

import (
	"context"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIConfig describes an OpenAI-compatible chat completions endpoint.
// BaseURL may point at OpenAI, OpenRouter, Ollama or vLLM.
type OpenAIConfig struct {
	Name    string
	BaseURL string
	Model   string
	APIKey  string
	Timeout time.Duration
}

// OpenAIBackend sends the prompt as a single user message.
type OpenAIBackend struct {
	name    string
	model   string
	timeout time.Duration
	client  *openai.Client
}

// NewOpenAIBackend creates a backend for the given endpoint.
func NewOpenAIBackend(cfg OpenAIConfig) *OpenAIBackend {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	name := cfg.Name
	if name == "" {
		name = cfg.Model
	}
	return &OpenAIBackend{
		name:    name,
		model:   cfg.Model,
		timeout: cfg.Timeout,
		client:  openai.NewClientWithConfig(clientCfg),
	}
}

func (b *OpenAIBackend) Name() string {
	return b.name
}

func (b *OpenAIBackend) Complete(ctx context.Context, req Request) (string, error) {
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	resp, err := b.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: b.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		},
		MaxTokens:   req.MaxTokens,
		Temperature: float32(req.Temperature),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion %s: %w", b.model, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion %s: %w", b.model, ErrEmptyResponse)
	}
	return resp.Choices[0].Message.Content, nil
}
