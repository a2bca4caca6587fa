package domain

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Andrei-Ionita/BRM-Trading-sub000/pkg/units"
)

// OrderStatus is the lifecycle state of a locally tracked order.
type OrderStatus string

const (
	OrderPending   OrderStatus = "PENDING"
	OrderFilled    OrderStatus = "FILLED"
	OrderRejected  OrderStatus = "REJECTED"
	OrderCancelled OrderStatus = "CANCELLED"
)

// PendingOrder tracks an in-flight order between submission and its
// terminal execution report. RequestID correlates receipts for the send,
// ClientOrderID correlates execution reports.
type PendingOrder struct {
	RequestID     string
	ClientOrderID string
	ContractID    string
	Interval      int
	Side          Side
	QuantityMW    decimal.Decimal
	Price         units.Cents
	Status        OrderStatus
	CreatedAt     time.Time

	// LedgerApplied marks that the position was already updated
	// optimistically at submission time; the fill report must not
	// credit the same quantity again.
	LedgerApplied bool
}

// Terminal reports whether the status ends the order's lifecycle.
func (s OrderStatus) Terminal() bool {
	return s == OrderFilled || s == OrderRejected || s == OrderCancelled
}
