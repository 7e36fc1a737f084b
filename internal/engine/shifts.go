package engine

import (
	"context"
	"time"

	"github.com/safar/salon-engine/internal/apperr"
	"github.com/safar/salon-engine/internal/database"
	"github.com/safar/salon-engine/internal/models"
	"github.com/safar/salon-engine/internal/store"
)

// OpenShift is the input of ShiftLedger.Open.
type OpenShift struct {
	ID        string
	StaffID   string
	CashBoxID string
	Start     time.Time
}

type ShiftFilter struct {
	StaffID   string
	CashBoxID string

	// StartedFrom and StartedBefore bound start_at when set.
	StartedFrom   time.Time
	StartedBefore time.Time

	// FinishedFrom and FinishedBefore bound finish_at when set; open
	// shifts never match them.
	FinishedFrom   time.Time
	FinishedBefore time.Time

	OpenOnly        bool
	IncludeInactive bool
	Limit           int
	Offset          int
}

// ShiftLedger is the shift state machine. A shift is Open until Close
// records its finish time; a closed shift never reopens. At most one active
// open shift exists per staff member: Open checks first, and the
// shifts_one_open_per_staff unique index settles concurrent opens.
type ShiftLedger struct {
	core      *core
	refs      *ReferentialValidator
	lifecycle *LifecycleManager
}

func errOpenShiftExists(staffID string) error {
	return apperr.Conflict(string(models.KindStaff), staffID, "staff already has an open shift")
}

func openShifts(ctx context.Context, s *store.Session, staffID string) ([]models.Shift, error) {
	return s.Shifts.List(ctx, store.Query[models.Shift]{
		Where: []store.Cond{store.Eq("staff_id", staffID), store.IsNull("finished_at")},
	})
}

func (l *ShiftLedger) Open(ctx context.Context, req OpenShift) (models.Shift, error) {
	shift := models.Shift{
		ID:        req.ID,
		CashBoxID: req.CashBoxID,
		StaffID:   req.StaffID,
		StartAt:   req.Start.UTC(),
		Active:    true,
	}
	if err := models.Validate(models.KindShift, shift.ID, shift); err != nil {
		return models.Shift{}, err
	}

	err := l.core.write(ctx, "open_shift", models.KindShift, shift.ID, func(s *store.Session) error {
		err := l.refs.ValidateAll(ctx, s, []Ref{
			{Kind: models.KindStaff, ID: shift.StaffID},
			{Kind: models.KindCashBox, ID: shift.CashBoxID},
		})
		if err != nil {
			return err
		}

		open, err := openShifts(ctx, s, shift.StaffID)
		if err != nil {
			return err
		}
		if len(open) > 0 {
			return errOpenShiftExists(shift.StaffID)
		}

		if err := s.Shifts.Insert(ctx, shift); err != nil {
			// A concurrent open that committed first trips the partial
			// unique index.
			if database.ClassifyError(err) == database.ErrorClassUniqueViolation {
				return errOpenShiftExists(shift.StaffID)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return models.Shift{}, err
	}
	return shift, nil
}

// Close records the finish time of an open shift. Closing a shift that is
// already closed is NotFound.
func (l *ShiftLedger) Close(ctx context.Context, id string, finish time.Time) (models.Shift, error) {
	if finish.IsZero() {
		return models.Shift{}, apperr.Validation(string(models.KindShift), id, "finish time is required")
	}
	finish = finish.UTC()

	var shift models.Shift
	err := l.core.write(ctx, "close_shift", models.KindShift, id, func(s *store.Session) error {
		var err error
		shift, err = s.Shifts.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !shift.Open() {
			return apperr.NotFound(string(models.KindShift), id, "no open shift")
		}
		if !finish.After(shift.StartAt) {
			return apperr.Validation(string(models.KindShift), id, "finish must be after start")
		}

		shift.FinishAt = &finish
		return s.Shifts.Update(ctx, shift)
	})
	if err != nil {
		return models.Shift{}, err
	}
	return shift, nil
}

// OpenShiftFor returns the open shift of a staff member.
func (l *ShiftLedger) OpenShiftFor(ctx context.Context, staffID string) (models.Shift, error) {
	var shift models.Shift
	err := l.core.read(ctx, "open_shift_for", models.KindShift, staffID, func(s *store.Session) error {
		open, err := openShifts(ctx, s, staffID)
		if err != nil {
			return err
		}
		if len(open) == 0 {
			return apperr.NotFound(string(models.KindStaff), staffID, "no open shift")
		}
		shift = open[0]
		return nil
	})
	return shift, err
}

func (l *ShiftLedger) Get(ctx context.Context, id string) (models.Shift, error) {
	var shift models.Shift
	err := l.core.read(ctx, "get_shift", models.KindShift, id, func(s *store.Session) error {
		var err error
		shift, err = s.Shifts.GetByID(ctx, id)
		return err
	})
	return shift, err
}

func (l *ShiftLedger) List(ctx context.Context, f ShiftFilter) ([]models.Shift, error) {
	q := store.Query[models.Shift]{
		IncludeInactive: f.IncludeInactive,
		Limit:           f.Limit,
		Offset:          f.Offset,
	}
	if f.StaffID != "" {
		q.Where = append(q.Where, store.Eq("staff_id", f.StaffID))
	}
	if f.CashBoxID != "" {
		q.Where = append(q.Where, store.Eq("cash_box_id", f.CashBoxID))
	}
	if f.OpenOnly {
		q.Where = append(q.Where, store.IsNull("finished_at"))
	}
	byStart := !f.StartedFrom.IsZero() || !f.StartedBefore.IsZero()
	byFinish := !f.FinishedFrom.IsZero() || !f.FinishedBefore.IsZero()
	if byStart || byFinish {
		q.Match = func(sh models.Shift) bool {
			if !inRange(sh.StartAt, f.StartedFrom, f.StartedBefore) {
				return false
			}
			if !byFinish {
				return true
			}
			return sh.FinishAt != nil && inRange(*sh.FinishAt, f.FinishedFrom, f.FinishedBefore)
		}
	}

	var shifts []models.Shift
	err := l.core.read(ctx, "list_shifts", models.KindShift, "", func(s *store.Session) error {
		var err error
		shifts, err = s.Shifts.List(ctx, q)
		return err
	})
	return shifts, err
}

// inRange reports whether from <= t < before, ignoring zero bounds.
func inRange(t, from, before time.Time) bool {
	if !from.IsZero() && t.Before(from) {
		return false
	}
	return before.IsZero() || t.Before(before)
}

// Delete archives a closed shift. Open shifts must be closed first.
func (l *ShiftLedger) Delete(ctx context.Context, id string) error {
	return l.core.write(ctx, "delete_shift", models.KindShift, id, func(s *store.Session) error {
		shift, err := s.Shifts.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if shift.Open() {
			return apperr.InvalidState(string(models.KindShift), id, "an open shift cannot be deleted")
		}
		return l.lifecycle.SoftDelete(ctx, s, models.KindShift, id)
	})
}

// Restore brings back a deleted shift whose staff and cash box are still
// active.
func (l *ShiftLedger) Restore(ctx context.Context, id string) error {
	return l.core.write(ctx, "restore_shift", models.KindShift, id, func(s *store.Session) error {
		shift, err := s.Shifts.GetAny(ctx, id)
		if err != nil {
			return err
		}
		if shift.Active {
			return apperr.NotFound(string(models.KindShift), id, "record is not deleted")
		}

		err = l.refs.ValidateAll(ctx, s, []Ref{
			{Kind: models.KindStaff, ID: shift.StaffID},
			{Kind: models.KindCashBox, ID: shift.CashBoxID},
		})
		if err != nil {
			return err
		}
		return l.lifecycle.Restore(ctx, s, models.KindShift, id)
	})
}
