package engine

import (
	"context"
	"sort"

	"github.com/safar/salon-engine/internal/apperr"
	"github.com/safar/salon-engine/internal/models"
	"github.com/safar/salon-engine/internal/store"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// DocumentWriter writes receipts, requests and visits together with their
// line items. The writer prices every line from the referenced product or
// service and assigns the parent reference itself; callers supply line ids,
// the referenced product or service, and the quantity or session count.
//
// Updates reconcile lines by their own id. Lines missing from the update are
// soft-deleted with reason "removed", lines with a new id are inserted, and
// lines present on both sides are replaced.
type DocumentWriter struct {
	core      *core
	refs      *ReferentialValidator
	lifecycle *LifecycleManager
	inventory *InventoryAdjuster
	policy    DeletePolicy
}

// Delete soft-deletes a document and its line items after the delete
// policy accepts the stored state. Stock is not moved.
func (w *DocumentWriter) Delete(ctx context.Context, kind models.Kind, id string) error {
	return w.core.write(ctx, "delete_"+string(kind), kind, id, func(s *store.Session) error {
		doc, err := loadHeader(ctx, s, kind, id)
		if err != nil {
			return err
		}
		if err := w.policy(kind, id, doc); err != nil {
			return err
		}
		return w.lifecycle.SoftDelete(ctx, s, kind, id)
	})
}

// Restore reverses Delete, bringing back the lines the delete cascaded to.
func (w *DocumentWriter) Restore(ctx context.Context, kind models.Kind, id string) error {
	return w.core.write(ctx, "restore_"+string(kind), kind, id, func(s *store.Session) error {
		return w.lifecycle.Restore(ctx, s, kind, id)
	})
}

func loadHeader(ctx context.Context, s *store.Session, kind models.Kind, id string) (any, error) {
	switch kind {
	case models.KindReceipt:
		return s.Receipts.GetForUpdate(ctx, id)
	case models.KindRequest:
		return s.Requests.GetForUpdate(ctx, id)
	case models.KindVisit:
		return s.Visits.GetForUpdate(ctx, id)
	}
	return nil, apperr.Validation(string(kind), id, "not a document kind")
}

func validateProductLines(lines []models.ProductLine) error {
	seen := make(map[string]struct{}, len(lines))
	for _, line := range lines {
		if err := models.Validate(models.KindProductLine, line.ID, line); err != nil {
			return err
		}
		if _, dup := seen[line.ID]; dup {
			return apperr.Validation(string(models.KindProductLine), line.ID, "duplicate line id")
		}
		seen[line.ID] = struct{}{}
	}
	return nil
}

func validateServiceLines(lines []models.ServiceLine) error {
	seen := make(map[string]struct{}, len(lines))
	for _, line := range lines {
		if err := models.Validate(models.KindServiceLine, line.ID, line); err != nil {
			return err
		}
		if _, dup := seen[line.ID]; dup {
			return apperr.Validation(string(models.KindServiceLine), line.ID, "duplicate line id")
		}
		seen[line.ID] = struct{}{}
	}
	return nil
}

// productRefs lists the products of the lines that are priced again.
func productRefs(lines []models.ProductLine, carried map[string]models.ProductLine) []Ref {
	refs := make([]Ref, 0, len(lines))
	for _, line := range lines {
		if _, ok := carried[line.ID]; ok {
			continue
		}
		refs = append(refs, Ref{Kind: models.KindProduct, ID: line.ProductID})
	}
	return refs
}

func serviceRefs(lines []models.ServiceLine, carried map[string]models.ServiceLine) []Ref {
	refs := make([]Ref, 0, len(lines))
	for _, line := range lines {
		if _, ok := carried[line.ID]; ok {
			continue
		}
		refs = append(refs, Ref{Kind: models.KindService, ID: line.ServiceID})
	}
	return refs
}

// carriedProductLines returns, by line id, the stored lines that an update
// repeats with the same product and quantity. They keep the price they were
// written with and are not checked against the catalog again.
func carriedProductLines(stored, incoming []models.ProductLine) map[string]models.ProductLine {
	byID := make(map[string]models.ProductLine, len(stored))
	for _, line := range stored {
		byID[line.ID] = line
	}
	carried := make(map[string]models.ProductLine)
	for _, line := range incoming {
		if old, ok := byID[line.ID]; ok && old.ProductID == line.ProductID && old.Quantity == line.Quantity {
			carried[line.ID] = old
		}
	}
	return carried
}

func carriedServiceLines(stored, incoming []models.ServiceLine) map[string]models.ServiceLine {
	byID := make(map[string]models.ServiceLine, len(stored))
	for _, line := range stored {
		byID[line.ID] = line
	}
	carried := make(map[string]models.ServiceLine)
	for _, line := range incoming {
		if old, ok := byID[line.ID]; ok && old.ServiceID == line.ServiceID && old.Sessions == line.Sessions {
			carried[line.ID] = old
		}
	}
	return carried
}

// lockProducts takes exclusive row locks on the active products of the
// lines in id order. Stock-moving batches call it before any other read of
// those products.
func lockProducts(ctx context.Context, s *store.Session, lineSets ...[]models.ProductLine) error {
	seen := make(map[string]struct{})
	var ids []string
	for _, lines := range lineSets {
		for _, line := range lines {
			if _, ok := seen[line.ProductID]; ok {
				continue
			}
			seen[line.ProductID] = struct{}{}
			ids = append(ids, line.ProductID)
		}
	}
	sort.Strings(ids)

	for _, id := range ids {
		if _, err := s.Products.LockActive(ctx, id, true); err != nil {
			return err
		}
	}
	return nil
}

// priceProductLines returns the lines with price and parent set, the total,
// and the products it read. Carried lines are returned as stored.
func priceProductLines(ctx context.Context, s *store.Session, lines []models.ProductLine, parent models.ProductParent, carried map[string]models.ProductLine) ([]models.ProductLine, decimal.Decimal, map[string]models.Product, error) {
	products := make(map[string]models.Product)
	priced := make([]models.ProductLine, 0, len(lines))
	total := decimal.Zero

	for _, line := range lines {
		if old, ok := carried[line.ID]; ok {
			priced = append(priced, old)
			total = total.Add(old.Price)
			continue
		}

		product, ok := products[line.ProductID]
		if !ok {
			var err error
			product, err = s.Products.GetByID(ctx, line.ProductID)
			if err != nil {
				return nil, total, nil, err
			}
			products[line.ProductID] = product
		}

		price := product.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity)))
		priced = append(priced, models.ProductLine{
			ID:        line.ID,
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			Price:     price,
			Parent:    parent,
			Active:    true,
		})
		total = total.Add(price)
	}
	return priced, total, products, nil
}

func priceServiceLines(ctx context.Context, s *store.Session, lines []models.ServiceLine, parent models.ServiceParent, carried map[string]models.ServiceLine) ([]models.ServiceLine, decimal.Decimal, error) {
	services := make(map[string]models.Service)
	priced := make([]models.ServiceLine, 0, len(lines))
	total := decimal.Zero

	for _, line := range lines {
		if old, ok := carried[line.ID]; ok {
			priced = append(priced, old)
			total = total.Add(old.Price)
			continue
		}

		service, ok := services[line.ServiceID]
		if !ok {
			var err error
			service, err = s.Services.GetByID(ctx, line.ServiceID)
			if err != nil {
				return nil, total, err
			}
			services[line.ServiceID] = service
		}

		price := service.BasePrice.Mul(decimal.NewFromInt(int64(line.Sessions)))
		priced = append(priced, models.ServiceLine{
			ID:              line.ID,
			ServiceID:       line.ServiceID,
			Sessions:        line.Sessions,
			DurationMinutes: service.DurationMinutes * line.Sessions,
			Price:           price,
			Parent:          parent,
			Active:          true,
		})
		total = total.Add(price)
	}
	return priced, total, nil
}

// reconcile makes the active lines of one document equal incoming.
func reconcile[L any](ctx context.Context, lines *store.EntityStore[L], stored, incoming []L, idOf func(L) string) error {
	keep := make(map[string]struct{}, len(incoming))
	for _, line := range incoming {
		keep[idOf(line)] = struct{}{}
	}

	existing := make(map[string]struct{}, len(stored))
	for _, line := range stored {
		id := idOf(line)
		existing[id] = struct{}{}
		if _, ok := keep[id]; ok {
			continue
		}
		_, err := lines.UpdateWhere(ctx,
			[]store.Assign{{Column: "active", Value: false}, {Column: "inactive_reason", Value: models.ReasonRemoved}},
			store.Eq("id", id), store.Eq("active", true))
		if err != nil {
			return err
		}
	}

	for _, line := range incoming {
		var err error
		if _, ok := existing[idOf(line)]; ok {
			err = lines.Update(ctx, line)
		} else {
			err = lines.Insert(ctx, line)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func activeProductLines(ctx context.Context, s *store.Session, column, parentID string) ([]models.ProductLine, error) {
	return s.ProductLines.List(ctx, store.Query[models.ProductLine]{
		Where: []store.Cond{store.Eq(column, parentID)},
	})
}

func activeServiceLines(ctx context.Context, s *store.Session, column, parentID string) ([]models.ServiceLine, error) {
	return s.ServiceLines.List(ctx, store.Query[models.ServiceLine]{
		Where: []store.Cond{store.Eq(column, parentID)},
	})
}

func productLineID(l models.ProductLine) string { return l.ID }
func serviceLineID(l models.ServiceLine) string { return l.ID }

// stockDeltas returns the stock change per product when the consumed lines
// go from before to after. Receipts that do not consume pass nil.
func stockDeltas(before, after []models.ProductLine) map[string]int {
	deltas := make(map[string]int)
	for _, line := range before {
		deltas[line.ProductID] += line.Quantity
	}
	for _, line := range after {
		deltas[line.ProductID] -= line.Quantity
	}
	for id, d := range deltas {
		if d == 0 {
			delete(deltas, id)
		}
	}
	return deltas
}

// checkStock rejects withdrawals the loaded products cannot cover.
func checkStock(deltas map[string]int, products map[string]models.Product) error {
	for id, d := range deltas {
		if p, ok := products[id]; ok && d < 0 && p.StockQuantity+d < 0 {
			return apperr.Validation(string(models.KindProduct), id,
				"insufficient stock: have %d, need %d", p.StockQuantity, -d)
		}
	}
	return nil
}

// applyStock applies the deltas in product id order. Returns to products
// that are no longer active are skipped.
func (w *DocumentWriter) applyStock(ctx context.Context, s *store.Session, docID string, deltas map[string]int) error {
	ids := make([]string, 0, len(deltas))
	for id := range deltas {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		d := deltas[id]
		if d > 0 {
			active, err := s.Products.Exists(ctx, id)
			if err != nil {
				return err
			}
			if !active {
				w.core.log.WithFields(logrus.Fields{
					"receipt": docID,
					"product": id,
					"delta":   d,
				}).Warn("skipping restock of inactive product")
				continue
			}
		}
		if err := w.inventory.Apply(ctx, s, id, d); err != nil {
			return err
		}
	}
	return nil
}
