package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/slack-go/slack"

	"taskagent/internal/domain"
)

// SlackConfig configures delivery through the Slack Web API.
type SlackConfig struct {
	BotToken       string
	DefaultChannel string // used when the recipient is not a channel or user ID
	APIURL         string // optional override, mainly for tests
}

// Slack posts notifications with chat.postMessage.
type Slack struct {
	client         *slack.Client
	defaultChannel string
	logger         *slog.Logger
}

func NewSlack(cfg SlackConfig, logger *slog.Logger) *Slack {
	opts := []slack.Option{}
	if cfg.APIURL != "" {
		opts = append(opts, slack.OptionAPIURL(cfg.APIURL))
	}
	return &Slack{
		client:         slack.New(cfg.BotToken, opts...),
		defaultChannel: cfg.DefaultChannel,
		logger:         logger,
	}
}

func (s *Slack) Name() string { return "slack" }

func (s *Slack) Send(ctx context.Context, n domain.Notification) error {
	target := s.target(n.Recipient)
	if target == "" {
		return fmt.Errorf("no slack channel for recipient %q", n.Recipient)
	}

	text := n.Message
	if n.Priority == "high" {
		text = ":rotating_light: " + text
	}
	if target != n.Recipient {
		text = fmt.Sprintf("*To %s:* %s", n.Recipient, text)
	}

	channelID, ts, err := s.client.PostMessageContext(ctx, target, slack.MsgOptionText(text, false))
	if err != nil {
		return fmt.Errorf("post message: %w", err)
	}
	s.logger.Info("slack notification sent", "channel", channelID, "ts", ts)
	return nil
}

// target returns the recipient when it already names a Slack conversation
// (C…, G…, D… or U… IDs, or #name), otherwise the default channel.
func (s *Slack) target(recipient string) string {
	r := strings.TrimSpace(recipient)
	if strings.HasPrefix(r, "#") {
		return r
	}
	if len(r) >= 9 && strings.ToUpper(r) == r && strings.ContainsRune("CGDU", rune(r[0])) && !strings.ContainsAny(r, "@ .") {
		return r
	}
	return s.defaultChannel
}
