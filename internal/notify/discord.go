package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"

	"taskagent/internal/domain"
)

const discordMaxMsgLen = 2000

// DiscordConfig configures delivery through a Discord bot.
type DiscordConfig struct {
	Token            string
	DefaultChannelID string // used when the recipient is not a channel snowflake
}

// discordSender is the part of *discordgo.Session we use.
type discordSender interface {
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Discord posts notifications to a text channel over the REST API. No
// gateway connection is opened.
type Discord struct {
	cfg    DiscordConfig
	logger *slog.Logger

	mu      sync.Mutex
	session discordSender
}

func NewDiscord(cfg DiscordConfig, logger *slog.Logger) *Discord {
	return &Discord{cfg: cfg, logger: logger}
}

func (d *Discord) Name() string { return "discord" }

func (d *Discord) client() (discordSender, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.session != nil {
		return d.session, nil
	}
	session, err := discordgo.New("Bot " + d.cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("discord session: %w", err)
	}
	d.session = session
	return session, nil
}

func (d *Discord) Send(ctx context.Context, n domain.Notification) error {
	channelID := d.channelID(n.Recipient)
	if channelID == "" {
		return fmt.Errorf("no discord channel for recipient %q", n.Recipient)
	}
	session, err := d.client()
	if err != nil {
		return err
	}

	text := n.Message
	if channelID != strings.TrimSpace(n.Recipient) {
		text = fmt.Sprintf("**To %s:** %s", n.Recipient, text)
	}
	if n.Priority == "high" {
		text = ":rotating_light: " + text
	}
	if len(text) > discordMaxMsgLen {
		text = text[:discordMaxMsgLen]
	}

	msg, err := session.ChannelMessageSend(channelID, text, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("channel message send: %w", err)
	}
	d.logger.Info("discord notification sent", "channel_id", channelID, "message_id", msg.ID)
	return nil
}

// channelID returns the recipient when it is a numeric snowflake, otherwise
// the default channel.
func (d *Discord) channelID(recipient string) string {
	r := strings.TrimSpace(recipient)
	if len(r) >= 17 && strings.Trim(r, "0123456789") == "" {
		return r
	}
	return d.cfg.DefaultChannelID
}
