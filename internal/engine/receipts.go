package engine

import (
	"context"
	"time"

	"github.com/safar/salon-engine/internal/apperr"
	"github.com/safar/salon-engine/internal/models"
	"github.com/safar/salon-engine/internal/store"
)

type ReceiptFilter struct {
	CashBoxID  string
	StaffID    string
	CustomerID string
	Canceled   *bool

	IssuedFrom   time.Time
	IssuedBefore time.Time

	IncludeInactive bool
	Limit           int
	Offset          int
}

func receiptRefs(r models.Receipt, carried map[string]models.ProductLine) []Ref {
	refs := []Ref{
		{Kind: models.KindCashBox, ID: r.CashBoxID},
		{Kind: models.KindStaff, ID: r.StaffID},
	}
	if r.CustomerID != nil {
		refs = append(refs, Ref{Kind: models.KindCustomer, ID: *r.CustomerID})
	}
	if r.VisitID != nil {
		refs = append(refs, Ref{Kind: models.KindVisit, ID: *r.VisitID})
	}
	return append(refs, productRefs(r.Items, carried)...)
}

func validateReceipt(r models.Receipt) error {
	if err := models.Validate(models.KindReceipt, r.ID, r); err != nil {
		return err
	}
	if len(r.Items) == 0 {
		return apperr.Validation(string(models.KindReceipt), r.ID, "a receipt needs at least one line")
	}
	return validateProductLines(r.Items)
}

// AddReceipt writes a receipt and its lines and, unless it is issued
// canceled, takes the sold quantities out of stock.
func (w *DocumentWriter) AddReceipt(ctx context.Context, r models.Receipt) (models.Receipt, error) {
	if err := validateReceipt(r); err != nil {
		return models.Receipt{}, err
	}

	var out models.Receipt
	err := w.core.write(ctx, "add_receipt", models.KindReceipt, r.ID, func(s *store.Session) error {
		if err := lockProducts(ctx, s, r.Items); err != nil {
			return err
		}
		if err := w.refs.ValidateAll(ctx, s, receiptRefs(r, nil)); err != nil {
			return err
		}

		items, total, products, err := priceProductLines(ctx, s, r.Items, models.ReceiptParent(r.ID), nil)
		if err != nil {
			return err
		}
		if !total.IsPositive() {
			return apperr.Validation(string(models.KindReceipt), r.ID, "total must be positive")
		}

		var deltas map[string]int
		if !r.Canceled {
			deltas = stockDeltas(nil, items)
		}
		if err := checkStock(deltas, products); err != nil {
			return err
		}

		header := r
		header.IssuedAt = r.IssuedAt.UTC()
		header.Total = total
		header.Active = true
		header.Items = nil

		if err := s.Receipts.Insert(ctx, header); err != nil {
			return err
		}
		for _, item := range items {
			if err := s.ProductLines.Insert(ctx, item); err != nil {
				return err
			}
		}
		if err := w.applyStock(ctx, s, r.ID, deltas); err != nil {
			return err
		}

		out = header
		out.Items = items
		return nil
	})
	if err != nil {
		return models.Receipt{}, err
	}
	return out, nil
}

// UpdateReceipt replaces the header fields and reconciles the lines.
// Stock follows the difference between the stored and new lines; setting
// Canceled returns everything the receipt had taken. Unchanged lines keep
// their sale price even if the product was repriced or deleted since. A
// canceled receipt cannot be changed.
func (w *DocumentWriter) UpdateReceipt(ctx context.Context, r models.Receipt) (models.Receipt, error) {
	if err := validateReceipt(r); err != nil {
		return models.Receipt{}, err
	}

	var out models.Receipt
	err := w.core.write(ctx, "update_receipt", models.KindReceipt, r.ID, func(s *store.Session) error {
		stored, err := s.Receipts.GetForUpdate(ctx, r.ID)
		if err != nil {
			return err
		}
		if stored.Canceled {
			return apperr.InvalidState(string(models.KindReceipt), r.ID, "a canceled receipt cannot be changed")
		}

		storedItems, err := activeProductLines(ctx, s, "receipt_id", r.ID)
		if err != nil {
			return err
		}
		carried := carriedProductLines(storedItems, r.Items)

		if err := lockProducts(ctx, s, storedItems, r.Items); err != nil {
			return err
		}
		if err := w.refs.ValidateAll(ctx, s, receiptRefs(r, carried)); err != nil {
			return err
		}

		items, total, products, err := priceProductLines(ctx, s, r.Items, models.ReceiptParent(r.ID), carried)
		if err != nil {
			return err
		}
		if !total.IsPositive() {
			return apperr.Validation(string(models.KindReceipt), r.ID, "total must be positive")
		}

		consumed := items
		if r.Canceled {
			consumed = nil
		}
		deltas := stockDeltas(storedItems, consumed)
		if err := checkStock(deltas, products); err != nil {
			return err
		}

		header := r
		header.IssuedAt = r.IssuedAt.UTC()
		header.Total = total
		header.Active = true
		header.Items = nil

		if err := reconcile(ctx, s.ProductLines, storedItems, items, productLineID); err != nil {
			return err
		}
		if err := s.Receipts.Update(ctx, header); err != nil {
			return err
		}
		if err := w.applyStock(ctx, s, r.ID, deltas); err != nil {
			return err
		}

		out = header
		out.Items = items
		return nil
	})
	if err != nil {
		return models.Receipt{}, err
	}
	return out, nil
}

func (w *DocumentWriter) GetReceipt(ctx context.Context, id string) (models.Receipt, error) {
	var out models.Receipt
	err := w.core.read(ctx, "get_receipt", models.KindReceipt, id, func(s *store.Session) error {
		var err error
		out, err = s.Receipts.GetByID(ctx, id)
		if err != nil {
			return err
		}
		out.Items, err = activeProductLines(ctx, s, "receipt_id", id)
		return err
	})
	if err != nil {
		return models.Receipt{}, err
	}
	return out, nil
}

func (w *DocumentWriter) ListReceipts(ctx context.Context, f ReceiptFilter) ([]models.Receipt, error) {
	q := store.Query[models.Receipt]{
		IncludeInactive: f.IncludeInactive,
		Limit:           f.Limit,
		Offset:          f.Offset,
	}
	if f.CashBoxID != "" {
		q.Where = append(q.Where, store.Eq("cash_box_id", f.CashBoxID))
	}
	if f.StaffID != "" {
		q.Where = append(q.Where, store.Eq("staff_id", f.StaffID))
	}
	if f.CustomerID != "" {
		q.Where = append(q.Where, store.Eq("customer_id", f.CustomerID))
	}
	if f.Canceled != nil {
		q.Where = append(q.Where, store.Eq("canceled", *f.Canceled))
	}
	if !f.IssuedFrom.IsZero() || !f.IssuedBefore.IsZero() {
		q.Match = func(r models.Receipt) bool {
			return inRange(r.IssuedAt, f.IssuedFrom, f.IssuedBefore)
		}
	}

	var out []models.Receipt
	err := w.core.read(ctx, "list_receipts", models.KindReceipt, "", func(s *store.Session) error {
		receipts, err := s.Receipts.List(ctx, q)
		if err != nil {
			return err
		}
		for i := range receipts {
			if receipts[i].Items, err = activeProductLines(ctx, s, "receipt_id", receipts[i].ID); err != nil {
				return err
			}
		}
		out = receipts
		return nil
	})
	return out, err
}

