package store

import (
	"github.com/safar/salon-engine/internal/apperr"
	"github.com/safar/salon-engine/internal/database"
	"github.com/safar/salon-engine/internal/models"
)

// Session is the handle for one atomic batch. Every store it exposes runs
// on the same transaction. A Session must not be used after the function
// it was passed to returns.
type Session struct {
	dialect  database.Dialect
	writable bool

	CashBoxes    *EntityStore[models.CashBox]
	Staff        *EntityStore[models.Staff]
	Shifts       *EntityStore[models.Shift]
	Customers    *EntityStore[models.Customer]
	Products     *EntityStore[models.Product]
	Services     *EntityStore[models.Service]
	ProductLines *EntityStore[models.ProductLine]
	ServiceLines *EntityStore[models.ServiceLine]
	Receipts     *EntityStore[models.Receipt]
	Requests     *EntityStore[models.Request]
	Visits       *EntityStore[models.Visit]
}

func NewSession(q Querier, dialect database.Dialect) *Session {
	return &Session{
		dialect:      dialect,
		CashBoxes:    NewEntityStore(q, dialect, CashBoxSchema),
		Staff:        NewEntityStore(q, dialect, StaffSchema),
		Shifts:       NewEntityStore(q, dialect, ShiftSchema),
		Customers:    NewEntityStore(q, dialect, CustomerSchema),
		Products:     NewEntityStore(q, dialect, ProductSchema),
		Services:     NewEntityStore(q, dialect, ServiceSchema),
		ProductLines: NewEntityStore(q, dialect, ProductLineSchema),
		ServiceLines: NewEntityStore(q, dialect, ServiceLineSchema),
		Receipts:     NewEntityStore(q, dialect, ReceiptSchema),
		Requests:     NewEntityStore(q, dialect, RequestSchema),
		Visits:       NewEntityStore(q, dialect, VisitSchema),
	}
}

func (s *Session) Dialect() database.Dialect {
	return s.dialect
}

// Writable reports whether the session belongs to an Atomic batch.
func (s *Session) Writable() bool {
	return s.writable
}

// Records returns the store for kind.
func (s *Session) Records(kind models.Kind) (Records, error) {
	switch kind {
	case models.KindCashBox:
		return s.CashBoxes, nil
	case models.KindStaff:
		return s.Staff, nil
	case models.KindShift:
		return s.Shifts, nil
	case models.KindCustomer:
		return s.Customers, nil
	case models.KindProduct:
		return s.Products, nil
	case models.KindService:
		return s.Services, nil
	case models.KindProductLine:
		return s.ProductLines, nil
	case models.KindServiceLine:
		return s.ServiceLines, nil
	case models.KindReceipt:
		return s.Receipts, nil
	case models.KindRequest:
		return s.Requests, nil
	case models.KindVisit:
		return s.Visits, nil
	}
	return nil, apperr.Validation(string(kind), "", "unknown entity kind")
}
