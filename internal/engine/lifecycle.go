package engine

import (
	"context"

	"github.com/safar/salon-engine/internal/apperr"
	"github.com/safar/salon-engine/internal/models"
	"github.com/safar/salon-engine/internal/store"
)

// Columns that must be unique among active records.
var uniqueColumns = map[models.Kind][]string{
	models.KindProduct:  {"name"},
	models.KindService:  {"name"},
	models.KindCustomer: {"phone"},
}

type childLink struct {
	lines  func(*store.Session) store.Records
	column string
}

func productLines(s *store.Session) store.Records { return s.ProductLines }
func serviceLines(s *store.Session) store.Records { return s.ServiceLines }

// Line items owned by each composite kind, by parent column.
var children = map[models.Kind][]childLink{
	models.KindReceipt: {{productLines, "receipt_id"}},
	models.KindRequest: {{productLines, "request_id"}, {serviceLines, "request_id"}},
	models.KindVisit:   {{serviceLines, "visit_id"}},
}

// LifecycleManager implements soft delete and restore for every kind.
// Both operations run inside the caller's batch.
type LifecycleManager struct {
	core *core
}

// SoftDelete deactivates an active record and, for documents, every active
// line item it owns.
func (m *LifecycleManager) SoftDelete(ctx context.Context, s *store.Session, kind models.Kind, id string) error {
	records, err := s.Records(kind)
	if err != nil {
		return err
	}
	if err := records.SoftDelete(ctx, id); err != nil {
		return err
	}

	for _, link := range children[kind] {
		_, err := link.lines(s).UpdateWhere(ctx,
			[]store.Assign{{Column: "active", Value: false}, {Column: "inactive_reason", Value: models.ReasonCascade}},
			store.Eq(link.column, id), store.Eq("active", true))
		if err != nil {
			return err
		}
	}
	return nil
}

// Restore reactivates an inactive record. It fails with Conflict, before
// writing anything, if an active record already holds one of its unique
// values. Line items come back only if the matching cascade removed them.
func (m *LifecycleManager) Restore(ctx context.Context, s *store.Session, kind models.Kind, id string) error {
	records, err := s.Records(kind)
	if err != nil {
		return err
	}

	active, err := records.Exists(ctx, id)
	if err != nil {
		return err
	}
	if active {
		return apperr.NotFound(string(kind), id, "record is not deleted")
	}

	for _, column := range uniqueColumns[kind] {
		dup, err := records.DuplicateActive(ctx, id, column)
		if err != nil {
			return err
		}
		if dup {
			return apperr.Conflict(string(kind), id, "an active %s with the same %s exists", kind, column)
		}
	}

	if kind == models.KindShift {
		if err := m.checkShiftRestore(ctx, s, id); err != nil {
			return err
		}
	}

	if err := records.Restore(ctx, id); err != nil {
		return err
	}

	for _, link := range children[kind] {
		_, err := link.lines(s).UpdateWhere(ctx,
			[]store.Assign{{Column: "active", Value: true}, {Column: "inactive_reason", Value: nil}},
			store.Eq(link.column, id), store.Eq("active", false), store.Eq("inactive_reason", models.ReasonCascade))
		if err != nil {
			return err
		}
	}
	return nil
}

// An open shift may only come back if its staff has no other open shift.
func (m *LifecycleManager) checkShiftRestore(ctx context.Context, s *store.Session, id string) error {
	shift, err := s.Shifts.GetAny(ctx, id)
	if err != nil {
		return err
	}
	if !shift.Open() {
		return nil
	}

	open, err := openShifts(ctx, s, shift.StaffID)
	if err != nil {
		return err
	}
	if len(open) > 0 {
		return errOpenShiftExists(shift.StaffID)
	}
	return nil
}
