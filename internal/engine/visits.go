package engine

import (
	"context"
	"time"

	"github.com/safar/salon-engine/internal/apperr"
	"github.com/safar/salon-engine/internal/models"
	"github.com/safar/salon-engine/internal/store"
)

type VisitFilter struct {
	CustomerID      string
	StaffID         string
	RequestID       string
	Completed       *bool
	ScheduledFrom   time.Time
	ScheduledBefore time.Time
	IncludeInactive bool
	Limit           int
	Offset          int
}

func visitRefs(v models.Visit, carried map[string]models.ServiceLine) []Ref {
	refs := []Ref{
		{Kind: models.KindCustomer, ID: v.CustomerID},
		{Kind: models.KindStaff, ID: v.StaffID},
	}
	if v.RequestID != nil {
		refs = append(refs, Ref{Kind: models.KindRequest, ID: *v.RequestID})
	}
	return append(refs, serviceRefs(v.Services, carried)...)
}

func validateVisit(v models.Visit) error {
	if err := models.Validate(models.KindVisit, v.ID, v); err != nil {
		return err
	}
	return validateServiceLines(v.Services)
}

func (w *DocumentWriter) AddVisit(ctx context.Context, v models.Visit) (models.Visit, error) {
	if err := validateVisit(v); err != nil {
		return models.Visit{}, err
	}

	var out models.Visit
	err := w.core.write(ctx, "add_visit", models.KindVisit, v.ID, func(s *store.Session) error {
		if err := w.refs.ValidateAll(ctx, s, visitRefs(v, nil)); err != nil {
			return err
		}

		services, total, err := priceServiceLines(ctx, s, v.Services, models.VisitParent(v.ID), nil)
		if err != nil {
			return err
		}

		header := v
		header.ScheduledAt = v.ScheduledAt.UTC()
		header.Total = total
		header.Active = true
		header.Services = nil

		if err := s.Visits.Insert(ctx, header); err != nil {
			return err
		}
		for _, line := range services {
			if err := s.ServiceLines.Insert(ctx, line); err != nil {
				return err
			}
		}

		out = header
		out.Services = services
		return nil
	})
	if err != nil {
		return models.Visit{}, err
	}
	return out, nil
}

// UpdateVisit replaces the header and reconciles the service lines. A
// completed visit cannot be changed.
func (w *DocumentWriter) UpdateVisit(ctx context.Context, v models.Visit) (models.Visit, error) {
	if err := validateVisit(v); err != nil {
		return models.Visit{}, err
	}

	var out models.Visit
	err := w.core.write(ctx, "update_visit", models.KindVisit, v.ID, func(s *store.Session) error {
		stored, err := s.Visits.GetForUpdate(ctx, v.ID)
		if err != nil {
			return err
		}
		if stored.Completed {
			return apperr.InvalidState(string(models.KindVisit), v.ID, "a completed visit cannot be changed")
		}

		storedServices, err := activeServiceLines(ctx, s, "visit_id", v.ID)
		if err != nil {
			return err
		}

		carried := carriedServiceLines(storedServices, v.Services)

		if err := w.refs.ValidateAll(ctx, s, visitRefs(v, carried)); err != nil {
			return err
		}

		services, total, err := priceServiceLines(ctx, s, v.Services, models.VisitParent(v.ID), carried)
		if err != nil {
			return err
		}

		header := v
		header.ScheduledAt = v.ScheduledAt.UTC()
		header.Total = total
		header.Active = true
		header.Services = nil

		if err := reconcile(ctx, s.ServiceLines, storedServices, services, serviceLineID); err != nil {
			return err
		}
		if err := s.Visits.Update(ctx, header); err != nil {
			return err
		}

		out = header
		out.Services = services
		return nil
	})
	if err != nil {
		return models.Visit{}, err
	}
	return out, nil
}

func (w *DocumentWriter) GetVisit(ctx context.Context, id string) (models.Visit, error) {
	var out models.Visit
	err := w.core.read(ctx, "get_visit", models.KindVisit, id, func(s *store.Session) error {
		var err error
		out, err = s.Visits.GetByID(ctx, id)
		if err != nil {
			return err
		}
		out.Services, err = activeServiceLines(ctx, s, "visit_id", id)
		return err
	})
	if err != nil {
		return models.Visit{}, err
	}
	return out, nil
}

func (w *DocumentWriter) ListVisits(ctx context.Context, f VisitFilter) ([]models.Visit, error) {
	q := store.Query[models.Visit]{
		IncludeInactive: f.IncludeInactive,
		Limit:           f.Limit,
		Offset:          f.Offset,
	}
	if f.CustomerID != "" {
		q.Where = append(q.Where, store.Eq("customer_id", f.CustomerID))
	}
	if f.StaffID != "" {
		q.Where = append(q.Where, store.Eq("staff_id", f.StaffID))
	}
	if f.RequestID != "" {
		q.Where = append(q.Where, store.Eq("request_id", f.RequestID))
	}
	if f.Completed != nil {
		q.Where = append(q.Where, store.Eq("completed", *f.Completed))
	}
	if !f.ScheduledFrom.IsZero() || !f.ScheduledBefore.IsZero() {
		q.Match = func(v models.Visit) bool {
			return inRange(v.ScheduledAt, f.ScheduledFrom, f.ScheduledBefore)
		}
	}

	var out []models.Visit
	err := w.core.read(ctx, "list_visits", models.KindVisit, "", func(s *store.Session) error {
		visits, err := s.Visits.List(ctx, q)
		if err != nil {
			return err
		}
		for i := range visits {
			if visits[i].Services, err = activeServiceLines(ctx, s, "visit_id", visits[i].ID); err != nil {
				return err
			}
		}
		out = visits
		return nil
	})
	return out, err
}
