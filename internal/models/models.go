package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Kind names an entity kind. It doubles as the label used in errors and
// metrics.
type Kind string

const (
	KindCashBox     Kind = "cash_box"
	KindStaff       Kind = "staff"
	KindShift       Kind = "shift"
	KindCustomer    Kind = "customer"
	KindProduct     Kind = "product"
	KindService     Kind = "service"
	KindProductLine Kind = "product_line"
	KindServiceLine Kind = "service_line"
	KindReceipt     Kind = "receipt"
	KindRequest     Kind = "request"
	KindVisit       Kind = "visit"
)

// NewID returns a fresh opaque identifier for callers that do not bring
// their own.
func NewID() string {
	return uuid.NewString()
}

type PostType string

const (
	PostAdministrator PostType = "administrator"
	PostMaster        PostType = "master"
	PostCashier       PostType = "cashier"
	PostManager       PostType = "manager"
)

type ProductCategory string

const (
	CategoryTools               ProductCategory = "tools"
	CategoryDecorativeCosmetics ProductCategory = "decorative_cosmetics"
	CategoryCareCosmetics       ProductCategory = "care_cosmetics"
)

type RequestStatus string

const (
	RequestDraft     RequestStatus = "draft"
	RequestConfirmed RequestStatus = "confirmed"
	RequestCancelled RequestStatus = "cancelled"
	RequestCompleted RequestStatus = "completed"
)

// Final reports whether no further changes are allowed.
func (s RequestStatus) Final() bool {
	return s == RequestCompleted || s == RequestCancelled
}

// CanMoveTo reports whether a stored request may change to next.
func (s RequestStatus) CanMoveTo(next RequestStatus) bool {
	if s == next {
		return true
	}
	switch s {
	case RequestDraft:
		return next == RequestConfirmed || next == RequestCancelled
	case RequestConfirmed:
		return next == RequestCompleted || next == RequestCancelled
	}
	return false
}

type CashBox struct {
	ID       string          `json:"id" validate:"required"`
	Capacity decimal.Decimal `json:"capacity" validate:"gte=0"`
	Active   bool            `json:"active"`
}

type Staff struct {
	ID         string    `json:"id" validate:"required"`
	FullName   string    `json:"full_name" validate:"required,max=200"`
	Post       PostType  `json:"post" validate:"required,oneof=administrator master cashier manager"`
	BirthDate  time.Time `json:"birth_date" validate:"required"`
	EmployedAt time.Time `json:"employed_at" validate:"required"`
	Active     bool      `json:"active"`
}

type Shift struct {
	ID        string     `json:"id" validate:"required"`
	CashBoxID string     `json:"cash_box_id" validate:"required"`
	StaffID   string     `json:"staff_id" validate:"required"`
	StartAt   time.Time  `json:"start_at" validate:"required"`
	FinishAt  *time.Time `json:"finish_at,omitempty"`
	Active    bool       `json:"active"`
}

// Open reports whether the shift has no finish time yet.
func (s Shift) Open() bool {
	return s.FinishAt == nil
}

type Customer struct {
	ID        string    `json:"id" validate:"required"`
	FullName  string    `json:"full_name" validate:"required,max=200"`
	BirthDate time.Time `json:"birth_date" validate:"required"`
	Phone     *string   `json:"phone,omitempty" validate:"omitempty,phone"`
	Active    bool      `json:"active"`
}

type Product struct {
	ID            string          `json:"id" validate:"required"`
	Name          string          `json:"name" validate:"required,max=200"`
	Category      ProductCategory `json:"category" validate:"required,oneof=tools decorative_cosmetics care_cosmetics"`
	Description   string          `json:"description,omitempty"`
	StockQuantity int             `json:"stock_quantity" validate:"gte=0"`
	UnitPrice     decimal.Decimal `json:"unit_price" validate:"gte=0"`
	Active        bool            `json:"active"`
}

type Service struct {
	ID              string          `json:"id" validate:"required"`
	Name            string          `json:"name" validate:"required,max=200"`
	Description     string          `json:"description,omitempty"`
	DurationMinutes int             `json:"duration_minutes" validate:"gt=0"`
	BasePrice       decimal.Decimal `json:"base_price" validate:"gte=0"`
	Active          bool            `json:"active"`
}

// Reasons recorded on line items when they are deactivated.
const (
	ReasonCascade = "cascade"
	ReasonRemoved = "removed"
)

type ProductLine struct {
	ID             string          `json:"id" validate:"required"`
	ProductID      string          `json:"product_id" validate:"required"`
	Quantity       int             `json:"quantity" validate:"gt=0"`
	Price          decimal.Decimal `json:"price" validate:"gte=0"`
	Parent         ProductParent   `json:"parent"`
	Active         bool            `json:"active"`
	InactiveReason string          `json:"inactive_reason,omitempty"`
}

type ServiceLine struct {
	ID              string          `json:"id" validate:"required"`
	ServiceID       string          `json:"service_id" validate:"required"`
	Sessions        int             `json:"sessions" validate:"gt=0"`
	DurationMinutes int             `json:"duration_minutes" validate:"gte=0"`
	Price           decimal.Decimal `json:"price" validate:"gte=0"`
	Parent          ServiceParent   `json:"parent"`
	Active          bool            `json:"active"`
	InactiveReason  string          `json:"inactive_reason,omitempty"`
}

type Receipt struct {
	ID         string          `json:"id" validate:"required"`
	CashBoxID  string          `json:"cash_box_id" validate:"required"`
	StaffID    string          `json:"staff_id" validate:"required"`
	CustomerID *string         `json:"customer_id,omitempty" validate:"omitempty,min=1"`
	VisitID    *string         `json:"visit_id,omitempty" validate:"omitempty,min=1"`
	IssuedAt   time.Time       `json:"issued_at" validate:"required"`
	Total      decimal.Decimal `json:"total"`
	Canceled   bool            `json:"canceled"`
	Active     bool            `json:"active"`
	Items      []ProductLine   `json:"items,omitempty"`
}

type Request struct {
	ID         string          `json:"id" validate:"required"`
	CustomerID string          `json:"customer_id" validate:"required"`
	CreatedAt  time.Time       `json:"created_at" validate:"required"`
	Status     RequestStatus   `json:"status" validate:"required,oneof=draft confirmed cancelled completed"`
	Total      decimal.Decimal `json:"total"`
	Active     bool            `json:"active"`
	Products   []ProductLine   `json:"products,omitempty"`
	Services   []ServiceLine   `json:"services,omitempty"`
}

type Visit struct {
	ID          string          `json:"id" validate:"required"`
	CustomerID  string          `json:"customer_id" validate:"required"`
	StaffID     string          `json:"staff_id" validate:"required"`
	RequestID   *string         `json:"request_id,omitempty" validate:"omitempty,min=1"`
	ScheduledAt time.Time       `json:"scheduled_at" validate:"required"`
	Total       decimal.Decimal `json:"total"`
	Completed   bool            `json:"completed"`
	Active      bool            `json:"active"`
	Services    []ServiceLine   `json:"services,omitempty"`
}

// TotalDuration is the sum of the active service line durations.
func (v Visit) TotalDuration() time.Duration {
	var minutes int
	for _, line := range v.Services {
		if line.Active {
			minutes += line.DurationMinutes
		}
	}
	return time.Duration(minutes) * time.Minute
}
