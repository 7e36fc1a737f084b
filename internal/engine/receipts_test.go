package engine

import (
	"testing"
	"time"

	"github.com/safar/salon-engine/internal/apperr"
	"github.com/safar/salon-engine/internal/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receipt(id string, items ...models.ProductLine) models.Receipt {
	return models.Receipt{
		ID:         id,
		CashBoxID:  "cb-1",
		StaffID:    "staff-1",
		CustomerID: strPtr("cust-1"),
		IssuedAt:   t0,
		Items:      items,
	}
}

func item(id, productID string, qty int) models.ProductLine {
	return models.ProductLine{ID: id, ProductID: productID, Quantity: qty}
}

func lineIDs(lines []models.ProductLine) []string {
	ids := make([]string, len(lines))
	for i, l := range lines {
		ids[i] = l.ID
	}
	return ids
}

func TestAddReceipt(t *testing.T) {
	f := setup(t)

	out, err := f.eng.Documents.AddReceipt(f.ctx, receipt("rcpt-1", item("line-1", "prod-1", 2), item("line-2", "prod-2", 4)))
	require.NoError(t, err)
	assert.True(t, out.Total.Equal(decimal.NewFromInt(30)), out.Total.String())
	require.Len(t, out.Items, 2)
	assert.True(t, out.Items[0].Price.Equal(decimal.NewFromInt(20)))
	assert.Equal(t, models.ReceiptParent("rcpt-1"), out.Items[0].Parent)

	assert.Equal(t, 1, f.stock(t, "prod-1"))
	assert.Equal(t, 6, f.stock(t, "prod-2"))

	got, err := f.eng.Documents.GetReceipt(f.ctx, "rcpt-1")
	require.NoError(t, err)
	assert.True(t, got.Total.Equal(decimal.NewFromInt(30)))
	assert.Equal(t, []string{"line-1", "line-2"}, lineIDs(got.Items))
	assert.Equal(t, "cust-1", *got.CustomerID)
	assert.True(t, got.IssuedAt.Equal(t0))
}

func TestAddReceiptWithDeletedProductWritesNothing(t *testing.T) {
	f := setup(t)

	require.NoError(t, f.eng.Products.Delete(f.ctx, "prod-2"))

	_, err := f.eng.Documents.AddReceipt(f.ctx, receipt("rcpt-1", item("line-1", "prod-1", 1), item("line-2", "prod-2", 1)))
	require.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = f.eng.Documents.GetReceipt(f.ctx, "rcpt-1")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	receipts, err := f.eng.Documents.ListReceipts(f.ctx, ReceiptFilter{IncludeInactive: true})
	require.NoError(t, err)
	assert.Empty(t, receipts)

	products, _ := f.countLines(t)
	assert.Zero(t, products)
	assert.Equal(t, 3, f.stock(t, "prod-1"))
}

func TestAddReceiptRejects(t *testing.T) {
	f := setup(t)

	tests := []struct {
		name string
		r    models.Receipt
		want error
	}{
		{"no lines", receipt("rcpt-1"), apperr.ErrValidation},
		{"duplicate line ids", receipt("rcpt-1", item("line-1", "prod-1", 1), item("line-1", "prod-2", 1)), apperr.ErrValidation},
		{"zero quantity", receipt("rcpt-1", item("line-1", "prod-1", 0)), apperr.ErrValidation},
		{"insufficient stock", receipt("rcpt-1", item("line-1", "prod-1", 2), item("line-2", "prod-1", 2)), apperr.ErrValidation},
		{"unknown customer", func() models.Receipt {
			r := receipt("rcpt-1", item("line-1", "prod-1", 1))
			r.CustomerID = strPtr("ghost")
			return r
		}(), apperr.ErrNotFound},
		{"unknown cash box", func() models.Receipt {
			r := receipt("rcpt-1", item("line-1", "prod-1", 1))
			r.CashBoxID = "cb-9"
			return r
		}(), apperr.ErrNotFound},
		{"missing issue time", func() models.Receipt {
			r := receipt("rcpt-1", item("line-1", "prod-1", 1))
			r.IssuedAt = time.Time{}
			return r
		}(), apperr.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.eng.Documents.AddReceipt(f.ctx, tt.r)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	products, _ := f.countLines(t)
	assert.Zero(t, products)
	assert.Equal(t, 3, f.stock(t, "prod-1"))
}

func TestAddReceiptDuplicateID(t *testing.T) {
	f := setup(t)

	_, err := f.eng.Documents.AddReceipt(f.ctx, receipt("rcpt-1", item("line-1", "prod-2", 1)))
	require.NoError(t, err)

	_, err = f.eng.Documents.AddReceipt(f.ctx, receipt("rcpt-1", item("line-2", "prod-2", 1)))
	assert.ErrorIs(t, err, apperr.ErrConflict)
	assert.Equal(t, 9, f.stock(t, "prod-2"))
}

func TestAddCanceledReceiptKeepsStock(t *testing.T) {
	f := setup(t)

	r := receipt("rcpt-1", item("line-1", "prod-1", 3))
	r.Canceled = true
	_, err := f.eng.Documents.AddReceipt(f.ctx, r)
	require.NoError(t, err)
	assert.Equal(t, 3, f.stock(t, "prod-1"))
}

func TestUpdateReceiptReconcilesLines(t *testing.T) {
	f := setup(t)

	_, err := f.eng.Documents.AddReceipt(f.ctx, receipt("rcpt-1", item("line-1", "prod-1", 1), item("line-2", "prod-2", 2)))
	require.NoError(t, err)
	assert.Equal(t, 2, f.stock(t, "prod-1"))
	assert.Equal(t, 8, f.stock(t, "prod-2"))

	out, err := f.eng.Documents.UpdateReceipt(f.ctx, receipt("rcpt-1", item("line-1", "prod-1", 2), item("line-3", "prod-2", 1)))
	require.NoError(t, err)
	assert.True(t, out.Total.Equal(decimal.RequireFromString("22.5")), out.Total.String())

	got, err := f.eng.Documents.GetReceipt(f.ctx, "rcpt-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"line-1", "line-3"}, lineIDs(got.Items))
	assert.Equal(t, 2, got.Items[0].Quantity)

	removed := f.productLine(t, "line-2")
	assert.False(t, removed.Active)
	assert.Equal(t, models.ReasonRemoved, removed.InactiveReason)

	assert.Equal(t, 1, f.stock(t, "prod-1"))
	assert.Equal(t, 9, f.stock(t, "prod-2"))
}

func TestUpdateReceiptInsufficientStockRollsBack(t *testing.T) {
	f := setup(t)

	_, err := f.eng.Documents.AddReceipt(f.ctx, receipt("rcpt-1", item("line-1", "prod-1", 1)))
	require.NoError(t, err)

	_, err = f.eng.Documents.UpdateReceipt(f.ctx, receipt("rcpt-1", item("line-1", "prod-1", 4)))
	require.ErrorIs(t, err, apperr.ErrValidation)

	got, err := f.eng.Documents.GetReceipt(f.ctx, "rcpt-1")
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Equal(t, 1, got.Items[0].Quantity)
	assert.Equal(t, 2, f.stock(t, "prod-1"))
}

func TestCancelReceiptRestocks(t *testing.T) {
	f := setup(t)

	r := receipt("rcpt-1", item("line-1", "prod-1", 2), item("line-2", "prod-2", 5))
	_, err := f.eng.Documents.AddReceipt(f.ctx, r)
	require.NoError(t, err)

	r.Canceled = true
	_, err = f.eng.Documents.UpdateReceipt(f.ctx, r)
	require.NoError(t, err)
	assert.Equal(t, 3, f.stock(t, "prod-1"))
	assert.Equal(t, 10, f.stock(t, "prod-2"))

	r.Canceled = false
	_, err = f.eng.Documents.UpdateReceipt(f.ctx, r)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)
	assert.Equal(t, 3, f.stock(t, "prod-1"))

	canceled := true
	list, err := f.eng.Documents.ListReceipts(f.ctx, ReceiptFilter{Canceled: &canceled})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Len(t, list[0].Items, 2)
}

func TestRestockSkipsInactiveProduct(t *testing.T) {
	f := setup(t)

	_, err := f.eng.Documents.AddReceipt(f.ctx, receipt("rcpt-1", item("line-1", "prod-1", 1), item("line-2", "prod-2", 1)))
	require.NoError(t, err)
	require.NoError(t, f.eng.Products.Delete(f.ctx, "prod-1"))
	f.hook.Reset()

	_, err = f.eng.Documents.UpdateReceipt(f.ctx, receipt("rcpt-1", item("line-2", "prod-2", 1)))
	require.NoError(t, err)

	var warned bool
	for _, e := range f.hook.AllEntries() {
		if e.Level == logrus.WarnLevel && e.Message == "skipping restock of inactive product" {
			warned = true
			assert.Equal(t, "prod-1", e.Data["product"])
		}
	}
	assert.True(t, warned)
}

func TestCancelReceiptAfterProductDeleted(t *testing.T) {
	f := setup(t)

	r := receipt("rcpt-1", item("line-1", "prod-1", 1), item("line-2", "prod-2", 4))
	_, err := f.eng.Documents.AddReceipt(f.ctx, r)
	require.NoError(t, err)
	require.NoError(t, f.eng.Products.Delete(f.ctx, "prod-1"))

	// A changed line is priced again and needs an active product.
	changed := receipt("rcpt-1", item("line-1", "prod-1", 2), item("line-2", "prod-2", 4))
	_, err = f.eng.Documents.UpdateReceipt(f.ctx, changed)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Equal(t, 6, f.stock(t, "prod-2"))

	r.Canceled = true
	out, err := f.eng.Documents.UpdateReceipt(f.ctx, r)
	require.NoError(t, err)
	assert.True(t, out.Canceled)
	assert.True(t, out.Total.Equal(decimal.NewFromInt(20)), out.Total.String())
	assert.Equal(t, 10, f.stock(t, "prod-2"))

	require.NoError(t, f.eng.Products.Restore(f.ctx, "prod-1"))
	assert.Equal(t, 2, f.stock(t, "prod-1"))

	got, err := f.eng.Documents.GetReceipt(f.ctx, "rcpt-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"line-1", "line-2"}, lineIDs(got.Items))
}

func TestUpdateReceiptKeepsSalePrice(t *testing.T) {
	f := setup(t)

	r := receipt("rcpt-1", item("line-1", "prod-2", 2))
	_, err := f.eng.Documents.AddReceipt(f.ctx, r)
	require.NoError(t, err)

	p, err := f.eng.Products.GetByID(f.ctx, "prod-2")
	require.NoError(t, err)
	p.UnitPrice = decimal.NewFromInt(4)
	require.NoError(t, f.eng.Products.Update(f.ctx, p))

	r.Items = append(r.Items, item("line-2", "prod-2", 1))
	out, err := f.eng.Documents.UpdateReceipt(f.ctx, r)
	require.NoError(t, err)
	assert.True(t, out.Total.Equal(decimal.NewFromInt(9)), out.Total.String())
	assert.True(t, f.productLine(t, "line-1").Price.Equal(decimal.NewFromInt(5)))
	assert.True(t, f.productLine(t, "line-2").Price.Equal(decimal.NewFromInt(4)))
	assert.Equal(t, 7, f.stock(t, "prod-2"))

	r.Items[0].Quantity = 3
	out, err = f.eng.Documents.UpdateReceipt(f.ctx, r)
	require.NoError(t, err)
	assert.True(t, out.Total.Equal(decimal.NewFromInt(16)), out.Total.String())
	assert.True(t, f.productLine(t, "line-1").Price.Equal(decimal.NewFromInt(12)))
	assert.Equal(t, 6, f.stock(t, "prod-2"))
}

func TestReceiptDeleteRestoreCascade(t *testing.T) {
	f := setup(t)

	_, err := f.eng.Documents.AddReceipt(f.ctx, receipt("rcpt-1", item("line-1", "prod-1", 1), item("line-2", "prod-2", 1)))
	require.NoError(t, err)
	_, err = f.eng.Documents.UpdateReceipt(f.ctx, receipt("rcpt-1", item("line-1", "prod-1", 1)))
	require.NoError(t, err)

	require.NoError(t, f.eng.Delete(f.ctx, models.KindReceipt, "rcpt-1"))

	_, err = f.eng.Documents.GetReceipt(f.ctx, "rcpt-1")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	cascaded := f.productLine(t, "line-1")
	assert.False(t, cascaded.Active)
	assert.Equal(t, models.ReasonCascade, cascaded.InactiveReason)
	assert.Equal(t, models.ReasonRemoved, f.productLine(t, "line-2").InactiveReason)

	assert.Equal(t, 2, f.stock(t, "prod-1"))

	err = f.eng.Delete(f.ctx, models.KindReceipt, "rcpt-1")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	require.NoError(t, f.eng.Restore(f.ctx, models.KindReceipt, "rcpt-1"))

	got, err := f.eng.Documents.GetReceipt(f.ctx, "rcpt-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"line-1"}, lineIDs(got.Items))
	assert.Empty(t, f.productLine(t, "line-1").InactiveReason)
	assert.False(t, f.productLine(t, "line-2").Active)
	assert.Equal(t, 2, f.stock(t, "prod-1"))
}

func TestDeletePolicyVeto(t *testing.T) {
	f := setup(t, WithDeletePolicy(func(kind models.Kind, id string, doc any) error {
		if r, ok := doc.(models.Receipt); ok && !r.Canceled {
			return apperr.InvalidState(string(kind), id, "only canceled receipts can be deleted")
		}
		return nil
	}))

	r := receipt("rcpt-1", item("line-1", "prod-1", 1))
	_, err := f.eng.Documents.AddReceipt(f.ctx, r)
	require.NoError(t, err)

	err = f.eng.Documents.Delete(f.ctx, models.KindReceipt, "rcpt-1")
	require.ErrorIs(t, err, apperr.ErrInvalidState)
	assert.True(t, f.productLine(t, "line-1").Active)

	r.Canceled = true
	_, err = f.eng.Documents.UpdateReceipt(f.ctx, r)
	require.NoError(t, err)
	require.NoError(t, f.eng.Documents.Delete(f.ctx, models.KindReceipt, "rcpt-1"))
}

func TestListReceipts(t *testing.T) {
	f := setup(t)

	first := receipt("rcpt-1", item("line-1", "prod-2", 1))
	second := receipt("rcpt-2", item("line-2", "prod-2", 1))
	second.StaffID = "staff-2"
	second.CustomerID = nil
	second.IssuedAt = t0.Add(48 * time.Hour)

	for _, r := range []models.Receipt{first, second} {
		_, err := f.eng.Documents.AddReceipt(f.ctx, r)
		require.NoError(t, err)
	}

	byStaff, err := f.eng.Documents.ListReceipts(f.ctx, ReceiptFilter{StaffID: "staff-2"})
	require.NoError(t, err)
	require.Len(t, byStaff, 1)
	assert.Equal(t, "rcpt-2", byStaff[0].ID)
	assert.Nil(t, byStaff[0].CustomerID)

	byCustomer, err := f.eng.Documents.ListReceipts(f.ctx, ReceiptFilter{CustomerID: "cust-1"})
	require.NoError(t, err)
	require.Len(t, byCustomer, 1)
	assert.Equal(t, "rcpt-1", byCustomer[0].ID)

	recent, err := f.eng.Documents.ListReceipts(f.ctx, ReceiptFilter{IssuedFrom: t0.Add(time.Hour)})
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "rcpt-2", recent[0].ID)

	paged, err := f.eng.Documents.ListReceipts(f.ctx, ReceiptFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, paged, 1)
	assert.Equal(t, "rcpt-2", paged[0].ID)
}
