package engine

import (
	"context"

	"github.com/safar/salon-engine/internal/apperr"
	"github.com/safar/salon-engine/internal/models"
	"github.com/safar/salon-engine/internal/store"
)

type uniqueField[T any] struct {
	column string
	// value returns false when the record does not take part, e.g. a
	// customer without a phone.
	value func(T) (any, bool)
}

// Catalog is the CRUD surface for the simple kinds: cash boxes, staff,
// customers, products and services.
type Catalog[T any] struct {
	core      *core
	lifecycle *LifecycleManager
	kind      models.Kind
	records   func(*store.Session) *store.EntityStore[T]
	id        func(T) string
	uniques   []uniqueField[T]

	// merge adjusts the incoming record against the stored one on update.
	merge func(stored, next T) T
}

// GetList returns records matching filters. activeOnly=false includes
// deleted records.
func (c *Catalog[T]) GetList(ctx context.Context, activeOnly bool, filters ...store.Cond) ([]T, error) {
	var items []T
	err := c.core.read(ctx, "list_"+string(c.kind), c.kind, "", func(s *store.Session) error {
		var err error
		items, err = c.records(s).List(ctx, store.Query[T]{IncludeInactive: !activeOnly, Where: filters})
		return err
	})
	return items, err
}

// GetPage is GetList with offset paging.
func (c *Catalog[T]) GetPage(ctx context.Context, activeOnly bool, page, pageSize int, filters ...store.Cond) (*store.OffsetPage[T], error) {
	var result *store.OffsetPage[T]
	err := c.core.read(ctx, "page_"+string(c.kind), c.kind, "", func(s *store.Session) error {
		var err error
		result, err = c.records(s).Page(ctx, store.Query[T]{IncludeInactive: !activeOnly, Where: filters}, page, pageSize)
		return err
	})
	return result, err
}

func (c *Catalog[T]) GetByID(ctx context.Context, id string) (T, error) {
	var item T
	err := c.core.read(ctx, "get_"+string(c.kind), c.kind, id, func(s *store.Session) error {
		var err error
		item, err = c.records(s).GetByID(ctx, id)
		return err
	})
	return item, err
}

func (c *Catalog[T]) Add(ctx context.Context, item T) error {
	id := c.id(item)
	if err := models.Validate(c.kind, id, item); err != nil {
		return err
	}

	return c.core.write(ctx, "add_"+string(c.kind), c.kind, id, func(s *store.Session) error {
		if err := c.checkUnique(ctx, s, item); err != nil {
			return err
		}
		return c.records(s).Insert(ctx, item)
	})
}

func (c *Catalog[T]) Update(ctx context.Context, item T) error {
	id := c.id(item)
	if err := models.Validate(c.kind, id, item); err != nil {
		return err
	}

	return c.core.write(ctx, "update_"+string(c.kind), c.kind, id, func(s *store.Session) error {
		stored, err := c.records(s).GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if c.merge != nil {
			item = c.merge(stored, item)
		}
		if err := c.checkUnique(ctx, s, item); err != nil {
			return err
		}
		return c.records(s).Update(ctx, item)
	})
}

func (c *Catalog[T]) Delete(ctx context.Context, id string) error {
	return c.core.write(ctx, "delete_"+string(c.kind), c.kind, id, func(s *store.Session) error {
		return c.lifecycle.SoftDelete(ctx, s, c.kind, id)
	})
}

func (c *Catalog[T]) Restore(ctx context.Context, id string) error {
	return c.core.write(ctx, "restore_"+string(c.kind), c.kind, id, func(s *store.Session) error {
		return c.lifecycle.Restore(ctx, s, c.kind, id)
	})
}

func (c *Catalog[T]) checkUnique(ctx context.Context, s *store.Session, item T) error {
	id := c.id(item)
	for _, u := range c.uniques {
		value, ok := u.value(item)
		if !ok {
			continue
		}
		taken, err := c.records(s).ActiveWith(ctx, u.column, value, id)
		if err != nil {
			return err
		}
		if taken {
			return apperr.Conflict(string(c.kind), id, "an active %s with %s %v exists", c.kind, u.column, value)
		}
	}
	return nil
}

func newCashBoxCatalog(c *core, lm *LifecycleManager) *Catalog[models.CashBox] {
	return &Catalog[models.CashBox]{
		core:      c,
		lifecycle: lm,
		kind:      models.KindCashBox,
		records:   func(s *store.Session) *store.EntityStore[models.CashBox] { return s.CashBoxes },
		id:        func(v models.CashBox) string { return v.ID },
	}
}

func newStaffCatalog(c *core, lm *LifecycleManager) *Catalog[models.Staff] {
	return &Catalog[models.Staff]{
		core:      c,
		lifecycle: lm,
		kind:      models.KindStaff,
		records:   func(s *store.Session) *store.EntityStore[models.Staff] { return s.Staff },
		id:        func(v models.Staff) string { return v.ID },
	}
}

func newCustomerCatalog(c *core, lm *LifecycleManager) *Catalog[models.Customer] {
	return &Catalog[models.Customer]{
		core:      c,
		lifecycle: lm,
		kind:      models.KindCustomer,
		records:   func(s *store.Session) *store.EntityStore[models.Customer] { return s.Customers },
		id:        func(v models.Customer) string { return v.ID },
		uniques: []uniqueField[models.Customer]{{
			column: "phone",
			value: func(v models.Customer) (any, bool) {
				if v.Phone == nil {
					return nil, false
				}
				return *v.Phone, true
			},
		}},
	}
}

// Product stock only moves through the InventoryAdjuster, so an update
// keeps the stored quantity.
func newProductCatalog(c *core, lm *LifecycleManager) *Catalog[models.Product] {
	return &Catalog[models.Product]{
		core:      c,
		lifecycle: lm,
		kind:      models.KindProduct,
		records:   func(s *store.Session) *store.EntityStore[models.Product] { return s.Products },
		id:        func(v models.Product) string { return v.ID },
		uniques: []uniqueField[models.Product]{{
			column: "name",
			value:  func(v models.Product) (any, bool) { return v.Name, true },
		}},
		merge: func(stored, next models.Product) models.Product {
			next.StockQuantity = stored.StockQuantity
			return next
		},
	}
}

func newServiceCatalog(c *core, lm *LifecycleManager) *Catalog[models.Service] {
	return &Catalog[models.Service]{
		core:      c,
		lifecycle: lm,
		kind:      models.KindService,
		records:   func(s *store.Session) *store.EntityStore[models.Service] { return s.Services },
		id:        func(v models.Service) string { return v.ID },
		uniques: []uniqueField[models.Service]{{
			column: "name",
			value:  func(v models.Service) (any, bool) { return v.Name, true },
		}},
	}
}
