package tool

import (
	"context"
	"errors"
	"fmt"

	"taskagent/internal/domain"
)

// ProductCatalog looks up products by ID.
type ProductCatalog interface {
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
}

// DefaultProducts is the catalog a fresh store is seeded with.
var DefaultProducts = []domain.Product{
	{ID: "PROD-001", Name: "Basic Widget", Price: 29.99, Currency: "USD"},
	{ID: "PROD-002", Name: "Pro Widget", Price: 99.99, Currency: "USD"},
	{ID: "PROD-003", Name: "Enterprise Widget", Price: 299.99, Currency: "USD"},
}

// GetPricingTool looks up pricing information for a product.
type GetPricingTool struct {
	catalog ProductCatalog
}

func NewGetPricingTool(catalog ProductCatalog) *GetPricingTool {
	return &GetPricingTool{catalog: catalog}
}

func (t *GetPricingTool) Name() string         { return "get_pricing" }
func (t *GetPricingTool) Description() string  { return "Get pricing information for a product by its ID" }
func (t *GetPricingTool) HasSideEffects() bool { return false }
func (t *GetPricingTool) Parameters() map[string]any {
	return ToolParameters(map[string]Param{
		"product_id": {Type: "string", Description: "The product ID to look up"},
	}, []string{"product_id"})
}

func (t *GetPricingTool) Execute(ctx context.Context, args map[string]any) (domain.ToolResult, error) {
	in := readArgs(args)
	productID := in.requiredString("product_id")
	if err := in.err(); err != nil {
		return domain.Fail("Invalid input: %v", err), nil
	}

	p, err := t.catalog.GetProduct(ctx, productID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Fail("Product not found: %s", productID), nil
	}
	if err != nil {
		return domain.ToolResult{}, fmt.Errorf("lookup product %s: %w", productID, err)
	}

	return domain.OK(map[string]any{
		"product_id": p.ID,
		"name":       p.Name,
		"price":      p.Price,
		"currency":   p.Currency,
	}), nil
}
