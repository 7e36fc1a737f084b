package engine

import (
	"context"

	"github.com/safar/salon-engine/internal/apperr"
	"github.com/safar/salon-engine/internal/models"
	"github.com/safar/salon-engine/internal/store"
)

// InventoryAdjuster moves product stock without ever letting it go
// negative.
type InventoryAdjuster struct {
	core *core
}

// AdjustStock applies delta in its own batch and returns the updated
// product.
func (a *InventoryAdjuster) AdjustStock(ctx context.Context, productID string, delta int) (models.Product, error) {
	var product models.Product
	err := a.core.write(ctx, "adjust_stock", models.KindProduct, productID, func(s *store.Session) error {
		if err := a.Apply(ctx, s, productID, delta); err != nil {
			return err
		}
		var err error
		product, err = s.Products.GetByID(ctx, productID)
		return err
	})
	if err != nil {
		return models.Product{}, err
	}
	return product, nil
}

// Apply adjusts stock inside the caller's batch with one conditional
// update, so concurrent adjustments cannot overdraw.
func (a *InventoryAdjuster) Apply(ctx context.Context, s *store.Session, productID string, delta int) error {
	if delta == 0 {
		return apperr.Validation(string(models.KindProduct), productID, "stock delta must not be zero")
	}

	changed, err := s.Products.Increment(ctx, productID, "stock_quantity", delta)
	if err != nil {
		return err
	}
	if changed {
		return nil
	}

	product, err := s.Products.GetByID(ctx, productID)
	if err != nil {
		return err
	}
	return apperr.Validation(string(models.KindProduct), productID,
		"insufficient stock: have %d, delta %d", product.StockQuantity, delta)
}

// LowStock lists active products with fewer than threshold units in stock.
func (a *InventoryAdjuster) LowStock(ctx context.Context, threshold int) ([]models.Product, error) {
	var products []models.Product
	err := a.core.read(ctx, "low_stock", models.KindProduct, "", func(s *store.Session) error {
		var err error
		products, err = s.Products.List(ctx, store.Query[models.Product]{
			Where: []store.Cond{store.Lt("stock_quantity", threshold)},
		})
		return err
	})
	return products, err
}
