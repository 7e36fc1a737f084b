package store

import (
	"database/sql"
	"time"

	"github.com/safar/salon-engine/internal/models"
)

// Explicit column mappings, one per entity kind.

var CashBoxSchema = &Schema[models.CashBox]{
	Kind:    models.KindCashBox,
	Table:   "cash_boxes",
	Columns: []string{"capacity"},
	ID:      func(c models.CashBox) string { return c.ID },
	Values: func(c models.CashBox) []any {
		return []any{c.Capacity}
	},
	Scan: func(row rowScanner) (models.CashBox, error) {
		var c models.CashBox
		err := row.Scan(&c.ID, &c.Capacity, &c.Active)
		return c, err
	},
}

var StaffSchema = &Schema[models.Staff]{
	Kind:    models.KindStaff,
	Table:   "staff",
	Columns: []string{"full_name", "post", "birth_date", "employed_at"},
	ID:      func(s models.Staff) string { return s.ID },
	Values: func(s models.Staff) []any {
		return []any{s.FullName, string(s.Post), s.BirthDate.UTC(), s.EmployedAt.UTC()}
	},
	Scan: func(row rowScanner) (models.Staff, error) {
		var s models.Staff
		var post string
		err := row.Scan(&s.ID, &s.FullName, &post, &s.BirthDate, &s.EmployedAt, &s.Active)
		s.Post = models.PostType(post)
		s.BirthDate = s.BirthDate.UTC()
		s.EmployedAt = s.EmployedAt.UTC()
		return s, err
	},
}

var ShiftSchema = &Schema[models.Shift]{
	Kind:    models.KindShift,
	Table:   "shifts",
	Columns: []string{"cash_box_id", "staff_id", "started_at", "finished_at"},
	ID:      func(s models.Shift) string { return s.ID },
	Values: func(s models.Shift) []any {
		return []any{s.CashBoxID, s.StaffID, s.StartAt.UTC(), nullTime(s.FinishAt)}
	},
	Scan: func(row rowScanner) (models.Shift, error) {
		var s models.Shift
		var finish sql.NullTime
		err := row.Scan(&s.ID, &s.CashBoxID, &s.StaffID, &s.StartAt, &finish, &s.Active)
		s.StartAt = s.StartAt.UTC()
		s.FinishAt = timePtr(finish)
		return s, err
	},
}

var CustomerSchema = &Schema[models.Customer]{
	Kind:    models.KindCustomer,
	Table:   "customers",
	Columns: []string{"full_name", "birth_date", "phone"},
	ID:      func(c models.Customer) string { return c.ID },
	Values: func(c models.Customer) []any {
		return []any{c.FullName, c.BirthDate.UTC(), nullString(c.Phone)}
	},
	Scan: func(row rowScanner) (models.Customer, error) {
		var c models.Customer
		var phone sql.NullString
		err := row.Scan(&c.ID, &c.FullName, &c.BirthDate, &phone, &c.Active)
		c.BirthDate = c.BirthDate.UTC()
		c.Phone = stringPtr(phone)
		return c, err
	},
}

var ProductSchema = &Schema[models.Product]{
	Kind:    models.KindProduct,
	Table:   "products",
	Columns: []string{"name", "category", "description", "stock_quantity", "unit_price"},
	ID:      func(p models.Product) string { return p.ID },
	Values: func(p models.Product) []any {
		return []any{p.Name, string(p.Category), p.Description, p.StockQuantity, p.UnitPrice}
	},
	Scan: func(row rowScanner) (models.Product, error) {
		var p models.Product
		var category string
		err := row.Scan(&p.ID, &p.Name, &category, &p.Description, &p.StockQuantity, &p.UnitPrice, &p.Active)
		p.Category = models.ProductCategory(category)
		return p, err
	},
}

var ServiceSchema = &Schema[models.Service]{
	Kind:    models.KindService,
	Table:   "services",
	Columns: []string{"name", "description", "duration_minutes", "base_price"},
	ID:      func(s models.Service) string { return s.ID },
	Values: func(s models.Service) []any {
		return []any{s.Name, s.Description, s.DurationMinutes, s.BasePrice}
	},
	Scan: func(row rowScanner) (models.Service, error) {
		var s models.Service
		err := row.Scan(&s.ID, &s.Name, &s.Description, &s.DurationMinutes, &s.BasePrice, &s.Active)
		return s, err
	},
}

var ProductLineSchema = &Schema[models.ProductLine]{
	Kind:    models.KindProductLine,
	Table:   "product_lines",
	Columns: []string{"product_id", "quantity", "price", "receipt_id", "request_id", "inactive_reason"},
	ID:      func(l models.ProductLine) string { return l.ID },
	Values: func(l models.ProductLine) []any {
		receiptID, requestID := l.Parent.Columns()
		return []any{l.ProductID, l.Quantity, l.Price, receiptID, requestID, nullReason(l.InactiveReason)}
	},
	Scan: func(row rowScanner) (models.ProductLine, error) {
		var l models.ProductLine
		var receiptID, requestID, reason sql.NullString
		if err := row.Scan(&l.ID, &l.ProductID, &l.Quantity, &l.Price, &receiptID, &requestID, &reason, &l.Active); err != nil {
			return l, err
		}
		l.InactiveReason = reason.String

		parent, err := models.ProductParentFromColumns(l.ID, receiptID, requestID)
		l.Parent = parent
		return l, err
	},
}

var ServiceLineSchema = &Schema[models.ServiceLine]{
	Kind:    models.KindServiceLine,
	Table:   "service_lines",
	Columns: []string{"service_id", "sessions", "duration_minutes", "price", "request_id", "visit_id", "inactive_reason"},
	ID:      func(l models.ServiceLine) string { return l.ID },
	Values: func(l models.ServiceLine) []any {
		requestID, visitID := l.Parent.Columns()
		return []any{l.ServiceID, l.Sessions, l.DurationMinutes, l.Price, requestID, visitID, nullReason(l.InactiveReason)}
	},
	Scan: func(row rowScanner) (models.ServiceLine, error) {
		var l models.ServiceLine
		var requestID, visitID, reason sql.NullString
		if err := row.Scan(&l.ID, &l.ServiceID, &l.Sessions, &l.DurationMinutes, &l.Price, &requestID, &visitID, &reason, &l.Active); err != nil {
			return l, err
		}
		l.InactiveReason = reason.String

		parent, err := models.ServiceParentFromColumns(l.ID, requestID, visitID)
		l.Parent = parent
		return l, err
	},
}

// Document schemas map headers only; line items live in their own tables.

var ReceiptSchema = &Schema[models.Receipt]{
	Kind:    models.KindReceipt,
	Table:   "receipts",
	Columns: []string{"cash_box_id", "staff_id", "customer_id", "visit_id", "issued_at", "total", "canceled"},
	ID:      func(r models.Receipt) string { return r.ID },
	Values: func(r models.Receipt) []any {
		return []any{r.CashBoxID, r.StaffID, nullString(r.CustomerID), nullString(r.VisitID), r.IssuedAt.UTC(), r.Total, r.Canceled}
	},
	Scan: func(row rowScanner) (models.Receipt, error) {
		var r models.Receipt
		var customerID, visitID sql.NullString
		err := row.Scan(&r.ID, &r.CashBoxID, &r.StaffID, &customerID, &visitID, &r.IssuedAt, &r.Total, &r.Canceled, &r.Active)
		r.CustomerID = stringPtr(customerID)
		r.VisitID = stringPtr(visitID)
		r.IssuedAt = r.IssuedAt.UTC()
		return r, err
	},
}

var RequestSchema = &Schema[models.Request]{
	Kind:    models.KindRequest,
	Table:   "requests",
	Columns: []string{"customer_id", "created_at", "status", "total"},
	ID:      func(r models.Request) string { return r.ID },
	Values: func(r models.Request) []any {
		return []any{r.CustomerID, r.CreatedAt.UTC(), string(r.Status), r.Total}
	},
	Scan: func(row rowScanner) (models.Request, error) {
		var r models.Request
		var status string
		err := row.Scan(&r.ID, &r.CustomerID, &r.CreatedAt, &status, &r.Total, &r.Active)
		r.Status = models.RequestStatus(status)
		r.CreatedAt = r.CreatedAt.UTC()
		return r, err
	},
}

var VisitSchema = &Schema[models.Visit]{
	Kind:    models.KindVisit,
	Table:   "visits",
	Columns: []string{"customer_id", "staff_id", "request_id", "scheduled_at", "total", "completed"},
	ID:      func(v models.Visit) string { return v.ID },
	Values: func(v models.Visit) []any {
		return []any{v.CustomerID, v.StaffID, nullString(v.RequestID), v.ScheduledAt.UTC(), v.Total, v.Completed}
	},
	Scan: func(row rowScanner) (models.Visit, error) {
		var v models.Visit
		var requestID sql.NullString
		err := row.Scan(&v.ID, &v.CustomerID, &v.StaffID, &requestID, &v.ScheduledAt, &v.Total, &v.Completed, &v.Active)
		v.RequestID = stringPtr(requestID)
		v.ScheduledAt = v.ScheduledAt.UTC()
		return v, err
	},
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func nullReason(reason string) sql.NullString {
	return sql.NullString{String: reason, Valid: reason != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}
