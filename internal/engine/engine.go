// Package engine enforces the salon's cross-entity rules on top of the
// store: referential checks, soft-delete cascades, the shift state machine,
// stock adjustment and composite document writes.
//
// Every mutating operation runs in exactly one store batch. Business checks
// happen before the physical writes, and any failure rolls the whole batch
// back. The engine never retries; apperr.IsRetryable tells the caller when a
// retry may help.
package engine

import (
	"context"
	"time"

	"github.com/safar/salon-engine/internal/apperr"
	"github.com/safar/salon-engine/internal/logging"
	"github.com/safar/salon-engine/internal/models"
	"github.com/safar/salon-engine/internal/store"
	"github.com/sirupsen/logrus"
)

type Engine struct {
	core *core

	Refs      *ReferentialValidator
	Lifecycle *LifecycleManager
	Shifts    *ShiftLedger
	Inventory *InventoryAdjuster
	Documents *DocumentWriter

	CashBoxes *Catalog[models.CashBox]
	Staff     *Catalog[models.Staff]
	Customers *Catalog[models.Customer]
	Products  *Catalog[models.Product]
	Services  *Catalog[models.Service]
}

// DeletePolicy may veto deleting a document in its current state. doc is
// the stored header (models.Receipt, models.Request or models.Visit).
type DeletePolicy func(kind models.Kind, id string, doc any) error

// AllowAllDeletes is the default policy.
func AllowAllDeletes(models.Kind, string, any) error { return nil }

type options struct {
	log          logrus.FieldLogger
	metrics      *Metrics
	deletePolicy DeletePolicy
}

type Option func(*options)

func WithLogger(log logrus.FieldLogger) Option {
	return func(o *options) { o.log = log }
}

// WithMetrics enables instrumentation. A nil value keeps it off.
func WithMetrics(m *Metrics) Option {
	return func(o *options) { o.metrics = m }
}

func WithDeletePolicy(p DeletePolicy) Option {
	return func(o *options) { o.deletePolicy = p }
}

func New(st *store.Store, opts ...Option) *Engine {
	o := options{deletePolicy: AllowAllDeletes}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = logging.Discard()
	}
	if o.deletePolicy == nil {
		o.deletePolicy = AllowAllDeletes
	}

	c := &core{store: st, log: o.log, metrics: o.metrics}

	refs := &ReferentialValidator{core: c}
	lifecycle := &LifecycleManager{core: c}
	inventory := &InventoryAdjuster{core: c}

	return &Engine{
		core:      c,
		Refs:      refs,
		Lifecycle: lifecycle,
		Shifts:    &ShiftLedger{core: c, refs: refs, lifecycle: lifecycle},
		Inventory: inventory,
		Documents: &DocumentWriter{
			core:      c,
			refs:      refs,
			lifecycle: lifecycle,
			inventory: inventory,
			policy:    o.deletePolicy,
		},
		CashBoxes: newCashBoxCatalog(c, lifecycle),
		Staff:     newStaffCatalog(c, lifecycle),
		Customers: newCustomerCatalog(c, lifecycle),
		Products:  newProductCatalog(c, lifecycle),
		Services:  newServiceCatalog(c, lifecycle),
	}
}

// Delete soft-deletes any record by kind, applying the rules of the owning
// component.
func (e *Engine) Delete(ctx context.Context, kind models.Kind, id string) error {
	switch kind {
	case models.KindCashBox:
		return e.CashBoxes.Delete(ctx, id)
	case models.KindStaff:
		return e.Staff.Delete(ctx, id)
	case models.KindCustomer:
		return e.Customers.Delete(ctx, id)
	case models.KindProduct:
		return e.Products.Delete(ctx, id)
	case models.KindService:
		return e.Services.Delete(ctx, id)
	case models.KindShift:
		return e.Shifts.Delete(ctx, id)
	case models.KindReceipt, models.KindRequest, models.KindVisit:
		return e.Documents.Delete(ctx, kind, id)
	case models.KindProductLine, models.KindServiceLine:
		return apperr.Validation(string(kind), id, "line items change through their document")
	}
	return apperr.Validation(string(kind), id, "unknown entity kind")
}

// Restore reverses Delete.
func (e *Engine) Restore(ctx context.Context, kind models.Kind, id string) error {
	switch kind {
	case models.KindCashBox:
		return e.CashBoxes.Restore(ctx, id)
	case models.KindStaff:
		return e.Staff.Restore(ctx, id)
	case models.KindCustomer:
		return e.Customers.Restore(ctx, id)
	case models.KindProduct:
		return e.Products.Restore(ctx, id)
	case models.KindService:
		return e.Services.Restore(ctx, id)
	case models.KindShift:
		return e.Shifts.Restore(ctx, id)
	case models.KindReceipt, models.KindRequest, models.KindVisit:
		return e.Documents.Restore(ctx, kind, id)
	case models.KindProductLine, models.KindServiceLine:
		return apperr.Validation(string(kind), id, "line items change through their document")
	}
	return apperr.Validation(string(kind), id, "unknown entity kind")
}

// core carries what every component shares.
type core struct {
	store   *store.Store
	log     logrus.FieldLogger
	metrics *Metrics
}

// write runs fn as one atomic batch and records the outcome.
func (c *core) write(ctx context.Context, op string, kind models.Kind, id string, fn func(*store.Session) error) error {
	start := time.Now()
	err := c.store.Atomic(ctx, fn)
	c.observe(op, kind, id, start, err, true)
	return err
}

func (c *core) read(ctx context.Context, op string, kind models.Kind, id string, fn func(*store.Session) error) error {
	start := time.Now()
	err := c.store.Read(ctx, fn)
	c.observe(op, kind, id, start, err, false)
	return err
}

func (c *core) observe(op string, kind models.Kind, id string, start time.Time, err error, mutating bool) {
	outcome := apperr.Outcome(err)
	c.metrics.observe(op, outcome, time.Since(start))

	entry := c.log.WithFields(logrus.Fields{
		"op":      op,
		"kind":    kind,
		"id":      id,
		"outcome": outcome,
	})

	switch {
	case err == nil:
		if mutating {
			entry.Info("operation completed")
		}
	case apperr.KindOf(err) == apperr.KindStorage:
		entry.WithError(err).Error("operation failed")
	case mutating:
		entry.WithError(err).Info("operation rejected")
	default:
		entry.WithError(err).Debug("operation rejected")
	}
}

// Ping opens a read batch and touches one table.
func (e *Engine) Ping(ctx context.Context) error {
	return e.core.store.Read(ctx, func(s *store.Session) error {
		_, err := s.CashBoxes.Count(ctx, store.Query[models.CashBox]{})
		return err
	})
}
