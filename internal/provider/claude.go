package provider

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"taskagent/internal/domain"
)

const (
	claudeDefaultModel = "claude-sonnet-4-5"
	defaultMaxTokens   = 4096
)

// Claude implements domain.Engine for the Anthropic Messages API.
type Claude struct {
	apiKey      string
	model       string
	temperature float64
	maxTokens   int64
	client      anthropic.Client
	logger      *slog.Logger
}

type ClaudeConfig struct {
	APIKey      string
	APIBase     string // optional override
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
	Logger      *slog.Logger
}

func NewClaude(cfg ClaudeConfig) *Claude {
	if cfg.Model == "" {
		cfg.Model = claudeDefaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(SharedHTTPClient(cfg.Timeout)),
	}
	if cfg.APIBase != "" {
		opts = append(opts, option.WithBaseURL(cfg.APIBase))
	}
	return &Claude{
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   int64(cfg.MaxTokens),
		client:      anthropic.NewClient(opts...),
		logger:      cfg.Logger,
	}
}

func (c *Claude) Name() string  { return "claude" }
func (c *Claude) Model() string { return c.model }

func (c *Claude) Healthy(_ context.Context) error {
	if c.apiKey == "" {
		return fmt.Errorf("claude: no API key configured")
	}
	return nil
}

// Complete lifts system turns into the System parameter; the Messages API
// only accepts user and assistant turns in the conversation itself.
func (c *Claude) Complete(ctx context.Context, messages []domain.Message) (string, error) {
	var system []string
	msgs := make([]anthropic.MessageParam, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case domain.RoleSystem:
			system = append(system, m.Content)
		case domain.RoleAssistant:
			msgs = append(msgs, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			msgs = append(msgs, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(c.model),
		MaxTokens:   c.maxTokens,
		Messages:    msgs,
		Temperature: anthropic.Float(c.temperature),
	}
	if len(system) > 0 {
		params.System = []anthropic.TextBlockParam{{Text: strings.Join(system, "\n\n")}}
	}

	start := time.Now()
	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("claude messages: %w", err)
	}

	var b strings.Builder
	for _, block := range resp.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			b.WriteString(tb.Text)
		}
	}

	c.logger.Debug("completion received",
		"provider", "claude",
		"model", string(resp.Model),
		"input_tokens", resp.Usage.InputTokens,
		"output_tokens", resp.Usage.OutputTokens,
		"stop_reason", string(resp.StopReason),
		"duration", time.Since(start),
	)
	if b.Len() == 0 {
		return "", fmt.Errorf("claude: response contained no text")
	}
	return b.String(), nil
}
