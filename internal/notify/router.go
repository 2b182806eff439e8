// Package notify delivers notifications produced by the send_notification tool.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"taskagent/internal/domain"
)

// Recorder keeps a durable outbox of every delivered notification.
type Recorder interface {
	RecordNotification(ctx context.Context, n domain.Notification) error
}

// Router picks a backend by notification channel. Channels with no backend
// (email and sms unless configured) go to the fallback, which only logs.
type Router struct {
	mu       sync.RWMutex
	backends map[string]domain.Notifier
	fallback domain.Notifier
	outbox   Recorder
	logger   *slog.Logger
}

func NewRouter(outbox Recorder, logger *slog.Logger) *Router {
	return &Router{
		backends: make(map[string]domain.Notifier),
		fallback: NewLogNotifier(logger),
		outbox:   outbox,
		logger:   logger,
	}
}

// Register routes channel to n.
func (r *Router) Register(channel string, n domain.Notifier) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backends[channel] = n
	r.logger.Debug("notification backend registered", "channel", channel, "backend", n.Name())
}

// Backends returns channel -> backend name for status reporting.
func (r *Router) Backends() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]string, len(r.backends))
	for ch, n := range r.backends {
		out[ch] = n.Name()
	}
	return out
}

// Send delivers n and then records it in the outbox.
func (r *Router) Send(ctx context.Context, n domain.Notification) error {
	r.mu.RLock()
	backend, ok := r.backends[n.Channel]
	r.mu.RUnlock()
	if !ok {
		backend = r.fallback
	}

	if err := backend.Send(ctx, n); err != nil {
		return fmt.Errorf("%s: %w", backend.Name(), err)
	}

	if r.outbox != nil {
		if err := r.outbox.RecordNotification(ctx, n); err != nil {
			// Delivery already happened; losing the outbox row is not a tool failure.
			r.logger.Error("failed to record notification", "channel", n.Channel, "err", err)
		}
	}
	return nil
}

// LogNotifier simulates delivery by logging the notification.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (l *LogNotifier) Name() string { return "log" }

func (l *LogNotifier) Send(_ context.Context, n domain.Notification) error {
	l.logger.Info("notification sent",
		"channel", n.Channel,
		"recipient", n.Recipient,
		"priority", n.Priority,
		"chars", len(n.Message),
	)
	return nil
}
