package tool

import (
	"context"
	"fmt"
	"time"

	"taskagent/internal/domain"
)

var (
	notificationChannels   = []string{"email", "sms", "slack", "telegram", "discord"}
	notificationPriorities = []string{"low", "normal", "high"}
)

// NotificationSender delivers a notification on the channel it names.
type NotificationSender interface {
	Send(ctx context.Context, n domain.Notification) error
}

// SendNotificationTool sends a notification message to a user.
type SendNotificationTool struct {
	sender NotificationSender
}

func NewSendNotificationTool(sender NotificationSender) *SendNotificationTool {
	return &SendNotificationTool{sender: sender}
}

func (t *SendNotificationTool) Name() string { return "send_notification" }
func (t *SendNotificationTool) Description() string {
	return "Send a notification message to a user via email, SMS, Slack, Telegram or Discord"
}
func (t *SendNotificationTool) HasSideEffects() bool { return true }
func (t *SendNotificationTool) Parameters() map[string]any {
	return ToolParameters(map[string]Param{
		"recipient": {Type: "string", Description: "Email or user ID of the recipient"},
		"message":   {Type: "string", Description: "Notification message (1-500 characters)"},
		"channel":   {Type: "string", Description: "Notification channel", Enum: notificationChannels, Default: "email"},
		"priority":  {Type: "string", Description: "Message priority", Enum: notificationPriorities, Default: "normal"},
	}, []string{"recipient", "message"})
}

func (t *SendNotificationTool) Execute(ctx context.Context, args map[string]any) (domain.ToolResult, error) {
	in := readArgs(args)
	recipient := in.requiredString("recipient")
	message := in.requiredString("message")
	in.length("message", message, 1, 500)
	channel := in.optionalString("channel", "email")
	in.oneOf("channel", channel, notificationChannels)
	priority := in.optionalString("priority", "normal")
	in.oneOf("priority", priority, notificationPriorities)
	if err := in.err(); err != nil {
		return domain.Fail("Invalid input: %v", err), nil
	}

	n := domain.Notification{
		Recipient: recipient,
		Channel:   channel,
		Priority:  priority,
		Message:   message,
		Status:    "sent",
		CreatedAt: time.Now().UTC(),
	}
	if err := t.sender.Send(ctx, n); err != nil {
		return domain.ToolResult{}, fmt.Errorf("deliver via %s: %w", channel, err)
	}

	return domain.OK(map[string]any{
		"recipient":       n.Recipient,
		"channel":         n.Channel,
		"priority":        n.Priority,
		"status":          n.Status,
		"message_preview": preview(n.Message, 50),
	}), nil
}
