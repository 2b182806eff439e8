package domain

import (
	"context"
	"time"
)

// Store persists the side effects of tools. It is not task history.
type Store interface {
	GetProduct(ctx context.Context, id string) (*Product, error)
	ListProducts(ctx context.Context) ([]Product, error)
	SeedProducts(ctx context.Context, products []Product) error

	CreateOrder(ctx context.Context, order Order) error
	GetOrder(ctx context.Context, id string) (*Order, error)

	CreateEscalation(ctx context.Context, esc Escalation) error
	RecordNotification(ctx context.Context, n Notification) error

	Close() error
}

type Product struct {
	ID       string  `json:"product_id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Currency string  `json:"currency"`
}

type Order struct {
	ID         string    `json:"order_id"`
	ProductID  string    `json:"product_id"`
	Quantity   int       `json:"quantity"`
	CustomerID string    `json:"customer_id"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
}

type Escalation struct {
	ID        string    `json:"escalation_id"`
	Reason    string    `json:"reason"`
	Priority  string    `json:"priority"`
	Context   string    `json:"context,omitempty"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

type Notification struct {
	ID        int64     `json:"id"`
	Recipient string    `json:"recipient"`
	Channel   string    `json:"channel"`
	Priority  string    `json:"priority"`
	Message   string    `json:"message"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// Notifier delivers a notification on one channel (slack, telegram, ...).
type Notifier interface {
	Name() string
	Send(ctx context.Context, n Notification) error
}
