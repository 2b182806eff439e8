package tool

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"taskagent/internal/domain"
)

type OrderWriter interface {
	CreateOrder(ctx context.Context, order domain.Order) error
}

// CreateOrderTool creates a new order in the system.
type CreateOrderTool struct {
	orders OrderWriter
}

func NewCreateOrderTool(orders OrderWriter) *CreateOrderTool {
	return &CreateOrderTool{orders: orders}
}

func (t *CreateOrderTool) Name() string         { return "create_order" }
func (t *CreateOrderTool) Description() string  { return "Create a new order for a product" }
func (t *CreateOrderTool) HasSideEffects() bool { return true }
func (t *CreateOrderTool) Parameters() map[string]any {
	return ToolParameters(map[string]Param{
		"product_id":  {Type: "string", Description: "The product ID to order"},
		"quantity":    {Type: "integer", Description: "Quantity to order (1-100)"},
		"customer_id": {Type: "string", Description: "The customer ID placing the order"},
	}, []string{"product_id", "quantity", "customer_id"})
}

func (t *CreateOrderTool) Execute(ctx context.Context, args map[string]any) (domain.ToolResult, error) {
	in := readArgs(args)
	productID := in.requiredString("product_id")
	quantity := in.requiredInt("quantity")
	in.intRange("quantity", quantity, 1, 100)
	customerID := in.requiredString("customer_id")
	if err := in.err(); err != nil {
		return domain.Fail("Invalid input: %v", err), nil
	}

	order := domain.Order{
		ID:         newID("ORD"),
		ProductID:  productID,
		Quantity:   quantity,
		CustomerID: customerID,
		Status:     "created",
		CreatedAt:  time.Now().UTC(),
	}
	if err := t.orders.CreateOrder(ctx, order); err != nil {
		return domain.ToolResult{}, fmt.Errorf("store order: %w", err)
	}

	return domain.OK(map[string]any{
		"order_id":    order.ID,
		"product_id":  order.ProductID,
		"quantity":    order.Quantity,
		"customer_id": order.CustomerID,
		"status":      order.Status,
	}), nil
}

// newID returns prefix + "-" + the first 8 hex digits of a random UUID, upper-cased.
func newID(prefix string) string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return prefix + "-" + strings.ToUpper(hex[:8])
}
