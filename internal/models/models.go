package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the fixed set of lifecycle positions an order can occupy.
type OrderStatus string

const (
	StatusPending    OrderStatus = "pending"
	StatusProcessing OrderStatus = "processing"
	StatusConfirmed  OrderStatus = "confirmed"
	StatusShipped    OrderStatus = "shipped"
	StatusHold       OrderStatus = "hold"
	StatusCancelled  OrderStatus = "cancelled"
	StatusDelivered  OrderStatus = "delivered"
	StatusFailed     OrderStatus = "failed"
	StatusReturn     OrderStatus = "return"
)

// AllStatuses lists every order status in dashboard display order.
var AllStatuses = []OrderStatus{
	StatusPending,
	StatusProcessing,
	StatusConfirmed,
	StatusShipped,
	StatusHold,
	StatusCancelled,
	StatusDelivered,
	StatusFailed,
	StatusReturn,
}

func (s OrderStatus) String() string { return string(s) }

func (s OrderStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusConfirmed, StatusShipped,
		StatusHold, StatusCancelled, StatusDelivered, StatusFailed, StatusReturn:
		return true
	default:
		return false
	}
}

// Role is the coarse access level of an administrative identity.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleModerator Role = "moderator"
	RoleUser      Role = "user"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleModerator, RoleUser:
		return true
	default:
		return false
	}
}

// Permission names a single CRUD capability. Permission checks only apply
// to moderators; admins hold every permission implicitly.
type Permission string

const (
	PermCreate Permission = "create"
	PermRead   Permission = "read"
	PermUpdate Permission = "update"
	PermDelete Permission = "delete"
)

// PermissionSet holds the per-capability grants of a moderator.
type PermissionSet struct {
	Create bool `json:"create"`
	Read   bool `json:"read"`
	Update bool `json:"update"`
	Delete bool `json:"delete"`
}

// Has reports whether the named permission is granted.
func (p PermissionSet) Has(perm Permission) bool {
	switch perm {
	case PermCreate:
		return p.Create
	case PermRead:
		return p.Read
	case PermUpdate:
		return p.Update
	case PermDelete:
		return p.Delete
	default:
		return false
	}
}

type Order struct {
	ID           int64                `json:"id"`
	OrderNumber  string               `json:"order_number"`
	Status       OrderStatus          `json:"status"`
	CustomerName string               `json:"customer_name"`
	Phone        string               `json:"phone"`
	Address      string               `json:"address"`
	ShippingCost decimal.Decimal      `json:"shipping_cost"`
	TotalAmount  decimal.Decimal      `json:"total_amount"`
	Read         bool                 `json:"read"`
	CreatedAt    time.Time            `json:"created_at"`
	UpdatedAt    time.Time            `json:"updated_at"`
	Version      int                  `json:"version"`
	Items        []OrderItem          `json:"items,omitempty"`
	History      []StatusHistoryEntry `json:"status_history,omitempty"`
}

type OrderItem struct {
	ID         int64           `json:"id"`
	OrderID    int64           `json:"order_id"`
	ProductRef string          `json:"product_ref"`
	SKU        string          `json:"sku"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	Quantity   int             `json:"quantity"`
	Subtotal   decimal.Decimal `json:"subtotal"`
}

// StatusHistoryEntry is one row of an order's append-only audit log. The
// persisted JSON shape is stable: {status, note, changed_at, changed_by}.
type StatusHistoryEntry struct {
	ID        int64       `json:"-"`
	OrderID   int64       `json:"-"`
	Status    OrderStatus `json:"status"`
	Note      *string     `json:"note"`
	ChangedAt time.Time   `json:"changed_at"`
	ChangedBy *int64      `json:"changed_by"`
}

// AdminUser is a row of the back-office identity store. The permission
// columns are only consulted when Role is moderator.
type AdminUser struct {
	ID          int64         `json:"id"`
	Email       string        `json:"email"`
	Name        string        `json:"name"`
	Role        Role          `json:"role"`
	Permissions PermissionSet `json:"permissions"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
	Version     int           `json:"version"`
}

// ShippingInfo is the editable ship-to block of an order. Edits go through
// the dedicated update operation, never through the lifecycle engine.
type ShippingInfo struct {
	CustomerName string `json:"customer_name"`
	Phone        string `json:"phone"`
	Address      string `json:"address"`
}

// Summary is the per-status order count projection shown on the dashboard.
// It is recomputed from the orders table on every read; the counts always
// sum to Total.
type Summary struct {
	Total      int64 `json:"total"`
	Pending    int64 `json:"pending"`
	Processing int64 `json:"processing"`
	Confirmed  int64 `json:"confirmed"`
	Shipped    int64 `json:"shipped"`
	Hold       int64 `json:"hold"`
	Cancelled  int64 `json:"cancelled"`
	Delivered  int64 `json:"delivered"`
	Failed     int64 `json:"failed"`
	Return     int64 `json:"return"`
}
