package models

import (
	"database/sql"
	"encoding/json"

	"github.com/safar/salon-engine/internal/apperr"
)

// ProductParent is the document a product line belongs to: a Receipt or a
// Request. The zero value is unset; only the constructors produce a set one,
// so a line can never point at both kinds.
type ProductParent struct {
	ref parentRef
}

func ReceiptParent(id string) ProductParent {
	return ProductParent{parentRef{kind: KindReceipt, id: id}}
}

func ProductRequestParent(id string) ProductParent {
	return ProductParent{parentRef{kind: KindRequest, id: id}}
}

func (p ProductParent) Kind() Kind   { return p.ref.kind }
func (p ProductParent) ID() string   { return p.ref.id }
func (p ProductParent) IsZero() bool { return p.ref.id == "" }

// Columns serializes the parent to the (receipt_id, request_id) pair.
func (p ProductParent) Columns() (receiptID, requestID sql.NullString) {
	return p.ref.columns(KindReceipt, KindRequest)
}

func (p ProductParent) MarshalJSON() ([]byte, error) {
	return p.ref.marshal()
}

// ProductParentFromColumns decodes the stored pair. Exactly one column must
// be set.
func ProductParentFromColumns(lineID string, receiptID, requestID sql.NullString) (ProductParent, error) {
	ref, err := decodeParent(KindProductLine, lineID, KindReceipt, receiptID, KindRequest, requestID)
	return ProductParent{ref}, err
}

// ServiceParent is the document a service line belongs to: a Request or a
// Visit.
type ServiceParent struct {
	ref parentRef
}

func ServiceRequestParent(id string) ServiceParent {
	return ServiceParent{parentRef{kind: KindRequest, id: id}}
}

func VisitParent(id string) ServiceParent {
	return ServiceParent{parentRef{kind: KindVisit, id: id}}
}

func (p ServiceParent) Kind() Kind   { return p.ref.kind }
func (p ServiceParent) ID() string   { return p.ref.id }
func (p ServiceParent) IsZero() bool { return p.ref.id == "" }

// Columns serializes the parent to the (request_id, visit_id) pair.
func (p ServiceParent) Columns() (requestID, visitID sql.NullString) {
	return p.ref.columns(KindRequest, KindVisit)
}

func (p ServiceParent) MarshalJSON() ([]byte, error) {
	return p.ref.marshal()
}

func ServiceParentFromColumns(lineID string, requestID, visitID sql.NullString) (ServiceParent, error) {
	ref, err := decodeParent(KindServiceLine, lineID, KindRequest, requestID, KindVisit, visitID)
	return ServiceParent{ref}, err
}

type parentRef struct {
	kind Kind
	id   string
}

func (r parentRef) columns(first, second Kind) (a, b sql.NullString) {
	switch r.kind {
	case first:
		a = sql.NullString{String: r.id, Valid: r.id != ""}
	case second:
		b = sql.NullString{String: r.id, Valid: r.id != ""}
	}
	return a, b
}

func (r parentRef) marshal() ([]byte, error) {
	if r.id == "" {
		return []byte("null"), nil
	}
	return json.Marshal(struct {
		Kind Kind   `json:"kind"`
		ID   string `json:"id"`
	}{r.kind, r.id})
}

func decodeParent(line Kind, lineID string, first Kind, a sql.NullString, second Kind, b sql.NullString) (parentRef, error) {
	switch {
	case a.Valid && b.Valid:
		return parentRef{}, apperr.Constraint(string(line), lineID, "both %s and %s parents are set", first, second)
	case a.Valid:
		return parentRef{kind: first, id: a.String}, nil
	case b.Valid:
		return parentRef{kind: second, id: b.String}, nil
	}
	return parentRef{}, apperr.Constraint(string(line), lineID, "no parent set")
}
