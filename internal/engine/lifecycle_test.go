package engine

import (
	"errors"
	"testing"

	"github.com/safar/salon-engine/internal/apperr"
	"github.com/safar/salon-engine/internal/models"
	"github.com/safar/salon-engine/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCascadeIsAtomic(t *testing.T) {
	f := setup(t)

	_, err := f.eng.Documents.AddReceipt(f.ctx, receipt("rcpt-1",
		item("line-1", "prod-1", 1), item("line-2", "prod-2", 1), item("line-3", "prod-2", 2)))
	require.NoError(t, err)

	injected := errors.New("injected failure")
	err = f.st.Atomic(f.ctx, func(s *store.Session) error {
		if err := f.eng.Lifecycle.SoftDelete(f.ctx, s, models.KindReceipt, "rcpt-1"); err != nil {
			return err
		}
		return injected
	})
	require.ErrorIs(t, err, injected)

	got, err := f.eng.Documents.GetReceipt(f.ctx, "rcpt-1")
	require.NoError(t, err)
	assert.Len(t, got.Items, 3)
	for _, id := range []string{"line-1", "line-2", "line-3"} {
		line := f.productLine(t, id)
		assert.True(t, line.Active, id)
		assert.Empty(t, line.InactiveReason, id)
	}
}

func TestLifecycleNotFound(t *testing.T) {
	f := setup(t)

	restore := func(kind models.Kind, id string) error {
		return f.st.Atomic(f.ctx, func(s *store.Session) error {
			return f.eng.Lifecycle.Restore(f.ctx, s, kind, id)
		})
	}
	softDelete := func(kind models.Kind, id string) error {
		return f.st.Atomic(f.ctx, func(s *store.Session) error {
			return f.eng.Lifecycle.SoftDelete(f.ctx, s, kind, id)
		})
	}

	// Restoring an active record.
	assert.ErrorIs(t, restore(models.KindStaff, "staff-1"), apperr.ErrNotFound)
	assert.ErrorIs(t, restore(models.KindStaff, "ghost"), apperr.ErrNotFound)
	assert.ErrorIs(t, softDelete(models.KindVisit, "ghost"), apperr.ErrNotFound)

	require.NoError(t, softDelete(models.KindStaff, "staff-1"))
	assert.ErrorIs(t, softDelete(models.KindStaff, "staff-1"), apperr.ErrNotFound)
	require.NoError(t, restore(models.KindStaff, "staff-1"))
}

func TestReceiptRoundTrip(t *testing.T) {
	f := setup(t)

	in := receipt("rcpt-1", item("line-b", "prod-2", 4), item("line-a", "prod-1", 1))
	out, err := f.eng.Documents.AddReceipt(f.ctx, in)
	require.NoError(t, err)

	got, err := f.eng.Documents.GetReceipt(f.ctx, "rcpt-1")
	require.NoError(t, err)

	assert.Equal(t, out.ID, got.ID)
	assert.Equal(t, out.CashBoxID, got.CashBoxID)
	assert.Equal(t, out.StaffID, got.StaffID)
	assert.Equal(t, *out.CustomerID, *got.CustomerID)
	assert.Nil(t, got.VisitID)
	assert.True(t, out.IssuedAt.Equal(got.IssuedAt))
	assert.True(t, out.Total.Equal(got.Total))
	assert.Equal(t, out.Canceled, got.Canceled)

	want := make(map[string]models.ProductLine, len(out.Items))
	for _, l := range out.Items {
		want[l.ID] = l
	}
	require.Len(t, got.Items, len(want))
	for _, l := range got.Items {
		w, ok := want[l.ID]
		require.True(t, ok, l.ID)
		assert.Equal(t, w.ProductID, l.ProductID)
		assert.Equal(t, w.Quantity, l.Quantity)
		assert.True(t, w.Price.Equal(l.Price), l.ID)
		assert.Equal(t, w.Parent, l.Parent)
		assert.True(t, l.Active)
	}
}
