package engine

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/safar/salon-engine/internal/apperr"
	"github.com/safar/salon-engine/internal/models"
	"github.com/safar/salon-engine/internal/store"
	"github.com/safar/salon-engine/internal/testdb"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

type fixture struct {
	eng  *Engine
	st   *store.Store
	hook *test.Hook
	ctx  context.Context
}

func setup(t *testing.T, opts ...Option) *fixture {
	t.Helper()

	db, dialect := testdb.SQLite(t)
	return seed(t, store.New(db, dialect), opts...)
}

// seed creates two cash boxes, two staff members, a customer, two products
// and two services.
func seed(t *testing.T, st *store.Store, opts ...Option) *fixture {
	t.Helper()

	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	f := &fixture{
		eng:  New(st, append([]Option{WithLogger(logger)}, opts...)...),
		st:   st,
		hook: hook,
		ctx:  context.Background(),
	}

	born := time.Date(1990, 1, 15, 0, 0, 0, 0, time.UTC)
	hired := time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC)
	phone := "+7 912 345-67-89"

	for _, id := range []string{"cb-1", "cb-2"} {
		require.NoError(t, f.eng.CashBoxes.Add(f.ctx, models.CashBox{ID: id, Capacity: decimal.NewFromInt(1000)}))
	}
	for _, id := range []string{"staff-1", "staff-2"} {
		require.NoError(t, f.eng.Staff.Add(f.ctx, models.Staff{
			ID:         id,
			FullName:   "Staff " + id,
			Post:       models.PostMaster,
			BirthDate:  born,
			EmployedAt: hired,
		}))
	}
	require.NoError(t, f.eng.Customers.Add(f.ctx, models.Customer{
		ID:        "cust-1",
		FullName:  "Anna Petrova",
		BirthDate: born,
		Phone:     &phone,
	}))
	require.NoError(t, f.eng.Products.Add(f.ctx, models.Product{
		ID:            "prod-1",
		Name:          "Shampoo",
		Category:      models.CategoryCareCosmetics,
		StockQuantity: 3,
		UnitPrice:     decimal.NewFromInt(10),
	}))
	require.NoError(t, f.eng.Products.Add(f.ctx, models.Product{
		ID:            "prod-2",
		Name:          "Nail file",
		Category:      models.CategoryTools,
		StockQuantity: 10,
		UnitPrice:     decimal.RequireFromString("2.5"),
	}))
	require.NoError(t, f.eng.Services.Add(f.ctx, models.Service{
		ID:              "svc-1",
		Name:            "Haircut",
		DurationMinutes: 60,
		BasePrice:       decimal.NewFromInt(30),
	}))
	require.NoError(t, f.eng.Services.Add(f.ctx, models.Service{
		ID:              "svc-2",
		Name:            "Manicure",
		DurationMinutes: 45,
		BasePrice:       decimal.NewFromInt(15),
	}))

	hook.Reset()
	return f
}

func (f *fixture) stock(t *testing.T, productID string) int {
	t.Helper()
	p, err := f.eng.Products.GetByID(f.ctx, productID)
	require.NoError(t, err)
	return p.StockQuantity
}

// productLine returns the stored line in any state.
func (f *fixture) productLine(t *testing.T, id string) models.ProductLine {
	t.Helper()
	var line models.ProductLine
	require.NoError(t, f.st.Read(f.ctx, func(s *store.Session) error {
		var err error
		line, err = s.ProductLines.GetAny(f.ctx, id)
		return err
	}))
	return line
}

func (f *fixture) serviceLine(t *testing.T, id string) models.ServiceLine {
	t.Helper()
	var line models.ServiceLine
	require.NoError(t, f.st.Read(f.ctx, func(s *store.Session) error {
		var err error
		line, err = s.ServiceLines.GetAny(f.ctx, id)
		return err
	}))
	return line
}

func (f *fixture) countLines(t *testing.T) (products, services int64) {
	t.Helper()
	require.NoError(t, f.st.Read(f.ctx, func(s *store.Session) error {
		var err error
		if products, err = s.ProductLines.Count(f.ctx, store.Query[models.ProductLine]{IncludeInactive: true}); err != nil {
			return err
		}
		services, err = s.ServiceLines.Count(f.ctx, store.Query[models.ServiceLine]{IncludeInactive: true})
		return err
	}))
	return products, services
}

func strPtr(s string) *string { return &s }

func TestEngineDeleteDispatch(t *testing.T) {
	f := setup(t)

	require.NoError(t, f.eng.Delete(f.ctx, models.KindService, "svc-2"))
	_, err := f.eng.Services.GetByID(f.ctx, "svc-2")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	require.NoError(t, f.eng.Restore(f.ctx, models.KindService, "svc-2"))
	_, err = f.eng.Services.GetByID(f.ctx, "svc-2")
	assert.NoError(t, err)

	err = f.eng.Delete(f.ctx, models.KindProductLine, "line-1")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	err = f.eng.Restore(f.ctx, models.Kind("invoice"), "x")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	err = f.eng.Delete(f.ctx, models.KindCustomer, "missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestPing(t *testing.T) {
	f := setup(t)
	assert.NoError(t, f.eng.Ping(f.ctx))
}

func TestMetricsAndLogs(t *testing.T) {
	db, dialect := testdb.SQLite(t)
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	f := seed(t, store.New(db, dialect), WithMetrics(metrics))

	_, err := f.eng.Inventory.AdjustStock(f.ctx, "prod-1", 2)
	require.NoError(t, err)
	_, err = f.eng.Inventory.AdjustStock(f.ctx, "prod-1", -50)
	require.ErrorIs(t, err, apperr.ErrValidation)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.operations.WithLabelValues("adjust_stock", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.operations.WithLabelValues("adjust_stock", "validation")))
	assert.Equal(t, 1, testutil.CollectAndCount(metrics.duration, "salon_engine_operation_duration_seconds"))

	entries := f.hook.AllEntries()
	require.Len(t, entries, 2)
	assert.Equal(t, logrus.InfoLevel, entries[0].Level)
	assert.Equal(t, "adjust_stock", entries[0].Data["op"])
	assert.Equal(t, "ok", entries[0].Data["outcome"])
	assert.Equal(t, "operation rejected", entries[1].Message)
	assert.Equal(t, "validation", entries[1].Data["outcome"])
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() { m.observe("op", "ok", time.Second) })
}
