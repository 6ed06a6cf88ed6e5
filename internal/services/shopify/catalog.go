package shopify

import (
	"context"
	"fmt"

	"esimsync/internal/models"

	"github.com/shopspring/decimal"
)

type UpsertOutcome string

const (
	OutcomeCreated UpsertOutcome = "created"
	OutcomeUpdated UpsertOutcome = "updated"
	OutcomeSkipped UpsertOutcome = "skipped"
)

// UpsertCatalogItem creates the listing for item unless one with the same
// handle already exists. Existing listings are left alone, except that the
// price of the primary variant is refreshed when refreshPrice is set.
func (c *Client) UpsertCatalogItem(ctx context.Context, item *models.CatalogItem, refreshPrice bool) (UpsertOutcome, error) {
	existing, err := c.FindProductByHandle(ctx, item.Handle)
	if err != nil {
		return "", fmt.Errorf("failed to look up %s: %w", item.Handle, err)
	}

	if existing != nil {
		if !refreshPrice {
			return OutcomeSkipped, nil
		}
		variant := existing.PrimaryVariant()
		if variant == nil || samePrice(variant.Price, item.Price) {
			return OutcomeSkipped, nil
		}
		if err := c.UpdateVariantPrice(ctx, variant.ID, item.Price); err != nil {
			return "", fmt.Errorf("failed to update price of %s: %w", item.Handle, err)
		}
		return OutcomeUpdated, nil
	}

	created, err := c.CreateProduct(ctx, c.transformer.TransformToShopify(item))
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", item.Handle, err)
	}

	if item.InventoryQuantity > 0 {
		if err := c.stock(ctx, created, item.InventoryQuantity); err != nil {
			c.logger.Warn("Created %s but failed to set inventory: %v", item.Handle, err)
		}
	}
	return OutcomeCreated, nil
}

// RemoveCatalogItem deletes the listing with handle, if any.
func (c *Client) RemoveCatalogItem(ctx context.Context, handle string) error {
	existing, err := c.FindProductByHandle(ctx, handle)
	if err != nil {
		return fmt.Errorf("failed to look up %s: %w", handle, err)
	}
	if existing == nil {
		return nil
	}
	return c.DeleteProduct(ctx, existing.ID)
}

// ListCatalogHandles returns the handles of every listing created from the
// provider catalog for vendor.
func (c *Client) ListCatalogHandles(ctx context.Context, vendor string) ([]string, error) {
	products, err := c.ListProducts(ctx, vendor)
	if err != nil {
		return nil, err
	}
	handles := make([]string, 0, len(products))
	for _, p := range products {
		if models.IsProviderHandle(p.Handle) {
			handles = append(handles, p.Handle)
		}
	}
	return handles, nil
}

func (c *Client) stock(ctx context.Context, product *Product, quantity int) error {
	variant := product.PrimaryVariant()
	if variant == nil || variant.InventoryItemID == 0 {
		return fmt.Errorf("product %d has no inventory item", product.ID)
	}
	locationID, err := c.inventoryLocation(ctx)
	if err != nil {
		return err
	}
	return c.SetInventoryLevel(ctx, locationID, variant.InventoryItemID, quantity)
}

func samePrice(a, b string) bool {
	da, errA := decimal.NewFromString(a)
	db, errB := decimal.NewFromString(b)
	if errA != nil || errB != nil {
		return a == b
	}
	return da.Equal(db)
}
