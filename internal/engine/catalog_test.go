package engine

import (
	"testing"
	"time"

	"github.com/safar/salon-engine/internal/apperr"
	"github.com/safar/salon-engine/internal/models"
	"github.com/safar/salon-engine/internal/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProductNameUnique(t *testing.T) {
	f := setup(t)

	dup := models.Product{
		ID:        "prod-9",
		Name:      "Shampoo",
		Category:  models.CategoryCareCosmetics,
		UnitPrice: decimal.NewFromInt(1),
	}
	err := f.eng.Products.Add(f.ctx, dup)
	require.ErrorIs(t, err, apperr.ErrConflict)

	require.NoError(t, f.eng.Products.Delete(f.ctx, "prod-1"))
	require.NoError(t, f.eng.Products.Add(f.ctx, dup))

	// The original cannot come back while its name is taken.
	err = f.eng.Products.Restore(f.ctx, "prod-1")
	require.ErrorIs(t, err, apperr.ErrConflict)
	_, err = f.eng.Products.GetByID(f.ctx, "prod-1")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	require.NoError(t, f.eng.Products.Delete(f.ctx, "prod-9"))
	require.NoError(t, f.eng.Products.Restore(f.ctx, "prod-1"))
}

func TestProductUpdateKeepsStock(t *testing.T) {
	f := setup(t)

	p, err := f.eng.Products.GetByID(f.ctx, "prod-1")
	require.NoError(t, err)

	p.StockQuantity = 100
	p.Description = "For dry hair"
	require.NoError(t, f.eng.Products.Update(f.ctx, p))

	got, err := f.eng.Products.GetByID(f.ctx, "prod-1")
	require.NoError(t, err)
	assert.Equal(t, 3, got.StockQuantity)
	assert.Equal(t, "For dry hair", got.Description)

	p.Name = "Nail file"
	err = f.eng.Products.Update(f.ctx, p)
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestCustomerPhoneUnique(t *testing.T) {
	f := setup(t)

	born := time.Date(1985, 7, 2, 0, 0, 0, 0, time.UTC)
	phone := "+7 912 345-67-89"

	err := f.eng.Customers.Add(f.ctx, models.Customer{ID: "cust-2", FullName: "Irina", BirthDate: born, Phone: &phone})
	require.ErrorIs(t, err, apperr.ErrConflict)

	// Customers without a phone never collide.
	require.NoError(t, f.eng.Customers.Add(f.ctx, models.Customer{ID: "cust-2", FullName: "Irina", BirthDate: born}))
	require.NoError(t, f.eng.Customers.Add(f.ctx, models.Customer{ID: "cust-3", FullName: "Olga", BirthDate: born}))

	require.NoError(t, f.eng.Customers.Delete(f.ctx, "cust-1"))
	other, err := f.eng.Customers.GetByID(f.ctx, "cust-2")
	require.NoError(t, err)
	other.Phone = &phone
	require.NoError(t, f.eng.Customers.Update(f.ctx, other))

	err = f.eng.Customers.Restore(f.ctx, "cust-1")
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestCatalogValidation(t *testing.T) {
	f := setup(t)

	err := f.eng.Staff.Add(f.ctx, models.Staff{ID: "staff-9", FullName: "Vera", Post: "janitor", BirthDate: t0, EmployedAt: t0})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	err = f.eng.CashBoxes.Add(f.ctx, models.CashBox{ID: "cb-9", Capacity: decimal.NewFromInt(-1)})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	err = f.eng.CashBoxes.Add(f.ctx, models.CashBox{ID: "cb-1"})
	assert.ErrorIs(t, err, apperr.ErrConflict)

	err = f.eng.Services.Update(f.ctx, models.Service{ID: "svc-9", Name: "Peeling", DurationMinutes: 20})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestCatalogListAndPage(t *testing.T) {
	f := setup(t)

	require.NoError(t, f.eng.Staff.Delete(f.ctx, "staff-2"))

	active, err := f.eng.Staff.GetList(f.ctx, true)
	require.NoError(t, err)
	assert.Len(t, active, 1)

	all, err := f.eng.Staff.GetList(f.ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	tools, err := f.eng.Products.GetList(f.ctx, true, store.Eq("category", string(models.CategoryTools)))
	require.NoError(t, err)
	require.Len(t, tools, 1)
	assert.Equal(t, "prod-2", tools[0].ID)

	page, err := f.eng.Products.GetPage(f.ctx, true, 2, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total)
	assert.Equal(t, 2, page.TotalPages)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "prod-2", page.Items[0].ID)
}

func TestDeletingReferencedRecordBlocksNewDocuments(t *testing.T) {
	f := setup(t)

	_, err := f.eng.Documents.AddReceipt(f.ctx, receipt("rcpt-1", item("line-1", "prod-2", 1)))
	require.NoError(t, err)

	require.NoError(t, f.eng.Staff.Delete(f.ctx, "staff-1"))

	// Existing documents stay readable.
	_, err = f.eng.Documents.GetReceipt(f.ctx, "rcpt-1")
	require.NoError(t, err)

	_, err = f.eng.Documents.AddReceipt(f.ctx, receipt("rcpt-2", item("line-2", "prod-2", 1)))
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	require.NoError(t, f.eng.Staff.Restore(f.ctx, "staff-1"))
	_, err = f.eng.Documents.AddReceipt(f.ctx, receipt("rcpt-2", item("line-2", "prod-2", 1)))
	assert.NoError(t, err)
}
