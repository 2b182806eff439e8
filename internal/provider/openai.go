// Package provider implements domain.Engine on top of hosted and local
// language-model APIs.
package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"

	"taskagent/internal/domain"
)

const openAIDefaultModel = "gpt-4o-mini"

// OpenAI implements domain.Engine for OpenAI and OpenAI-compatible chat APIs.
type OpenAI struct {
	name        string
	apiKey      string
	model       string
	temperature float32
	maxTokens   int
	client      *openai.Client
	logger      *slog.Logger
}

type OpenAIConfig struct {
	Name        string // defaults to "openai"; compatible providers keep their config key
	APIKey      string
	APIBase     string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
	Logger      *slog.Logger
}

func NewOpenAI(cfg OpenAIConfig) *OpenAI {
	if cfg.Name == "" {
		cfg.Name = "openai"
	}
	if cfg.Model == "" {
		cfg.Model = openAIDefaultModel
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.APIBase != "" {
		clientCfg.BaseURL = cfg.APIBase
	}
	clientCfg.HTTPClient = SharedHTTPClient(cfg.Timeout)

	return &OpenAI{
		name:        cfg.Name,
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		temperature: float32(cfg.Temperature),
		maxTokens:   cfg.MaxTokens,
		client:      openai.NewClientWithConfig(clientCfg),
		logger:      cfg.Logger,
	}
}

func (o *OpenAI) Name() string  { return o.name }
func (o *OpenAI) Model() string { return o.model }

func (o *OpenAI) Healthy(ctx context.Context) error {
	if o.apiKey == "" {
		return fmt.Errorf("%s: no API key configured", o.name)
	}
	if _, err := o.client.ListModels(ctx); err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusUnauthorized {
			return fmt.Errorf("%s: invalid API key", o.name)
		}
		return fmt.Errorf("%s not reachable: %w", o.name, err)
	}
	return nil
}

func (o *OpenAI) Complete(ctx context.Context, messages []domain.Message) (string, error) {
	msgs := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	start := time.Now()
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.model,
		Messages:    msgs,
		Temperature: o.temperature,
		MaxTokens:   o.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("%s chat completion: %w", o.name, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%s: no choices in response", o.name)
	}

	o.logger.Debug("completion received",
		"provider", o.name,
		"model", resp.Model,
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
		"duration", time.Since(start),
	)
	return resp.Choices[0].Message.Content, nil
}
