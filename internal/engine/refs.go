package engine

import (
	"context"
	"sort"

	"github.com/safar/salon-engine/internal/apperr"
	"github.com/safar/salon-engine/internal/models"
	"github.com/safar/salon-engine/internal/store"
)

// Ref names one record by kind and id.
type Ref struct {
	Kind models.Kind
	ID   string
}

func (r Ref) String() string {
	return string(r.Kind) + "/" + r.ID
}

func errMissingRef(ref Ref) error {
	return apperr.NotFound(string(ref.Kind), ref.ID, "referenced %s is missing or inactive", ref)
}

// ReferentialValidator confirms that referenced records exist and are
// active. It never writes. Inside an Atomic batch a confirmed reference
// stays locked until the batch ends, so it cannot be deleted before the
// write that depends on it commits.
type ReferentialValidator struct {
	core *core
}

func (v *ReferentialValidator) ValidateExists(ctx context.Context, s *store.Session, ref Ref) error {
	if ref.ID == "" {
		return apperr.NotFound(string(ref.Kind), "", "empty reference")
	}

	records, err := s.Records(ref.Kind)
	if err != nil {
		return err
	}

	var ok bool
	if s.Writable() {
		ok, err = records.LockActive(ctx, ref.ID, false)
	} else {
		ok, err = records.Exists(ctx, ref.ID)
	}
	if err != nil {
		return err
	}
	if !ok {
		return errMissingRef(ref)
	}
	return nil
}

// ValidateAll checks refs in kind and id order, which is also the order
// their rows are locked in, and stops at the first missing or inactive one.
func (v *ReferentialValidator) ValidateAll(ctx context.Context, s *store.Session, refs []Ref) error {
	unique := make([]Ref, 0, len(refs))
	seen := make(map[Ref]struct{}, len(refs))
	for _, ref := range refs {
		if _, dup := seen[ref]; dup {
			continue
		}
		seen[ref] = struct{}{}
		unique = append(unique, ref)
	}
	sort.Slice(unique, func(i, j int) bool {
		if unique[i].Kind != unique[j].Kind {
			return unique[i].Kind < unique[j].Kind
		}
		return unique[i].ID < unique[j].ID
	})

	for _, ref := range unique {
		if err := v.ValidateExists(ctx, s, ref); err != nil {
			return err
		}
	}
	return nil
}

// Check runs ValidateAll in its own read batch.
func (v *ReferentialValidator) Check(ctx context.Context, refs ...Ref) error {
	return v.core.read(ctx, "validate_refs", "", "", func(s *store.Session) error {
		return v.ValidateAll(ctx, s, refs)
	})
}
