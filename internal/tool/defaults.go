package tool

import (
	"log/slog"

	"taskagent/internal/domain"
)

// Backends bundles what the built-in tools need to persist and deliver.
type Backends struct {
	Store    domain.Store
	Notifier NotificationSender
}

// NewDefaultRegistry registers the built-in tools in their canonical order.
func NewDefaultRegistry(b Backends, logger *slog.Logger) *Registry {
	reg := NewRegistry(logger)
	reg.Register(NewGetPricingTool(b.Store))
	reg.Register(NewCreateOrderTool(b.Store))
	reg.Register(NewSendNotificationTool(b.Notifier))
	reg.Register(NewEscalateToHumanTool(b.Store))
	return reg
}
