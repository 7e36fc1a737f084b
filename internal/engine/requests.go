package engine

import (
	"context"
	"time"

	"github.com/safar/salon-engine/internal/apperr"
	"github.com/safar/salon-engine/internal/models"
	"github.com/safar/salon-engine/internal/store"
)

type RequestFilter struct {
	CustomerID string
	Status     models.RequestStatus

	CreatedFrom   time.Time
	CreatedBefore time.Time

	IncludeInactive bool
	Limit           int
	Offset          int
}

func requestRefs(r models.Request, products map[string]models.ProductLine, services map[string]models.ServiceLine) []Ref {
	refs := []Ref{{Kind: models.KindCustomer, ID: r.CustomerID}}
	refs = append(refs, productRefs(r.Products, products)...)
	return append(refs, serviceRefs(r.Services, services)...)
}

func validateRequest(r models.Request) error {
	if err := models.Validate(models.KindRequest, r.ID, r); err != nil {
		return err
	}
	if err := validateProductLines(r.Products); err != nil {
		return err
	}
	return validateServiceLines(r.Services)
}

// AddRequest writes a request with its product and service lines. Requests
// do not move stock.
func (w *DocumentWriter) AddRequest(ctx context.Context, r models.Request) (models.Request, error) {
	if r.Status == "" {
		r.Status = models.RequestDraft
	}
	if err := validateRequest(r); err != nil {
		return models.Request{}, err
	}

	var out models.Request
	err := w.core.write(ctx, "add_request", models.KindRequest, r.ID, func(s *store.Session) error {
		if err := w.refs.ValidateAll(ctx, s, requestRefs(r, nil, nil)); err != nil {
			return err
		}

		products, productTotal, _, err := priceProductLines(ctx, s, r.Products, models.ProductRequestParent(r.ID), nil)
		if err != nil {
			return err
		}
		services, serviceTotal, err := priceServiceLines(ctx, s, r.Services, models.ServiceRequestParent(r.ID), nil)
		if err != nil {
			return err
		}

		header := r
		header.CreatedAt = r.CreatedAt.UTC()
		header.Total = productTotal.Add(serviceTotal)
		header.Active = true
		header.Products = nil
		header.Services = nil

		if err := s.Requests.Insert(ctx, header); err != nil {
			return err
		}
		for _, line := range products {
			if err := s.ProductLines.Insert(ctx, line); err != nil {
				return err
			}
		}
		for _, line := range services {
			if err := s.ServiceLines.Insert(ctx, line); err != nil {
				return err
			}
		}

		out = header
		out.Products = products
		out.Services = services
		return nil
	})
	if err != nil {
		return models.Request{}, err
	}
	return out, nil
}

// UpdateRequest replaces the header and reconciles both line collections.
// Completed and cancelled requests are frozen, and the status may only
// move draft -> confirmed -> completed, or to cancelled before completion.
func (w *DocumentWriter) UpdateRequest(ctx context.Context, r models.Request) (models.Request, error) {
	if err := validateRequest(r); err != nil {
		return models.Request{}, err
	}

	var out models.Request
	err := w.core.write(ctx, "update_request", models.KindRequest, r.ID, func(s *store.Session) error {
		stored, err := s.Requests.GetForUpdate(ctx, r.ID)
		if err != nil {
			return err
		}
		if stored.Status.Final() {
			return apperr.InvalidState(string(models.KindRequest), r.ID, "a %s request cannot be changed", stored.Status)
		}
		if !stored.Status.CanMoveTo(r.Status) {
			return apperr.InvalidState(string(models.KindRequest), r.ID, "status cannot change from %s to %s", stored.Status, r.Status)
		}

		storedProducts, err := activeProductLines(ctx, s, "request_id", r.ID)
		if err != nil {
			return err
		}
		storedServices, err := activeServiceLines(ctx, s, "request_id", r.ID)
		if err != nil {
			return err
		}

		carriedProducts := carriedProductLines(storedProducts, r.Products)
		carriedServices := carriedServiceLines(storedServices, r.Services)

		if err := w.refs.ValidateAll(ctx, s, requestRefs(r, carriedProducts, carriedServices)); err != nil {
			return err
		}

		products, productTotal, _, err := priceProductLines(ctx, s, r.Products, models.ProductRequestParent(r.ID), carriedProducts)
		if err != nil {
			return err
		}
		services, serviceTotal, err := priceServiceLines(ctx, s, r.Services, models.ServiceRequestParent(r.ID), carriedServices)
		if err != nil {
			return err
		}

		header := r
		header.CreatedAt = r.CreatedAt.UTC()
		header.Total = productTotal.Add(serviceTotal)
		header.Active = true
		header.Products = nil
		header.Services = nil

		if err := reconcile(ctx, s.ProductLines, storedProducts, products, productLineID); err != nil {
			return err
		}
		if err := reconcile(ctx, s.ServiceLines, storedServices, services, serviceLineID); err != nil {
			return err
		}
		if err := s.Requests.Update(ctx, header); err != nil {
			return err
		}

		out = header
		out.Products = products
		out.Services = services
		return nil
	})
	if err != nil {
		return models.Request{}, err
	}
	return out, nil
}

func (w *DocumentWriter) GetRequest(ctx context.Context, id string) (models.Request, error) {
	var out models.Request
	err := w.core.read(ctx, "get_request", models.KindRequest, id, func(s *store.Session) error {
		var err error
		out, err = s.Requests.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if out.Products, err = activeProductLines(ctx, s, "request_id", id); err != nil {
			return err
		}
		out.Services, err = activeServiceLines(ctx, s, "request_id", id)
		return err
	})
	if err != nil {
		return models.Request{}, err
	}
	return out, nil
}

// ListRequests returns request headers with their active lines.
func (w *DocumentWriter) ListRequests(ctx context.Context, f RequestFilter) ([]models.Request, error) {
	q := store.Query[models.Request]{
		IncludeInactive: f.IncludeInactive,
		Limit:           f.Limit,
		Offset:          f.Offset,
	}
	if f.CustomerID != "" {
		q.Where = append(q.Where, store.Eq("customer_id", f.CustomerID))
	}
	if f.Status != "" {
		q.Where = append(q.Where, store.Eq("status", string(f.Status)))
	}
	if !f.CreatedFrom.IsZero() || !f.CreatedBefore.IsZero() {
		q.Match = func(r models.Request) bool {
			return inRange(r.CreatedAt, f.CreatedFrom, f.CreatedBefore)
		}
	}

	var out []models.Request
	err := w.core.read(ctx, "list_requests", models.KindRequest, "", func(s *store.Session) error {
		requests, err := s.Requests.List(ctx, q)
		if err != nil {
			return err
		}
		for i := range requests {
			if requests[i].Products, err = activeProductLines(ctx, s, "request_id", requests[i].ID); err != nil {
				return err
			}
			if requests[i].Services, err = activeServiceLines(ctx, s, "request_id", requests[i].ID); err != nil {
				return err
			}
		}
		out = requests
		return nil
	})
	return out, err
}
