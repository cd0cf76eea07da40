package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of an order.
//
// RECEIVED exists only between aggregate construction and the total
// computation inside the ingestion transaction; a stored order is always
// PROCESSED, SENT or ERROR.
type Status string

const (
	StatusReceived  Status = "RECEIVED"
	StatusProcessed Status = "PROCESSED"
	StatusSent      Status = "SENT"
	StatusError     Status = "ERROR"
)

func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusReceived, StatusProcessed, StatusSent, StatusError:
		return Status(s), nil
	}
	return "", fmt.Errorf("unknown order status %q", s)
}

// Terminal reports whether no further transition is allowed from s.
func (s Status) Terminal() bool {
	return s == StatusSent || s == StatusError
}

func (s Status) canTransitionTo(next Status) bool {
	switch s {
	case StatusReceived:
		return next == StatusProcessed
	case StatusProcessed:
		return next == StatusSent || next == StatusError
	}
	return false
}

type Order struct {
	ID              uuid.UUID       `json:"id"`
	ExternalOrderID string          `json:"external_order_id"`
	Status          Status          `json:"status"`
	TotalValue      decimal.Decimal `json:"total_value"`
	Items           []OrderItem     `json:"items"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

type OrderItem struct {
	ProductCode string          `json:"product_code"`
	ProductName string          `json:"product_name"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    int             `json:"quantity"`
}

// Subtotal is unit price times quantity in exact decimal arithmetic.
func (i OrderItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// TotalValue sums the item subtotals. Pure, no rounding.
func TotalValue(items []OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Subtotal())
	}
	return total
}

// NewOrder builds a RECEIVED aggregate. The surrogate id is assigned by the
// store on first save.
func NewOrder(externalOrderID string, items []OrderItem, now time.Time) *Order {
	return &Order{
		ExternalOrderID: externalOrderID,
		Status:          StatusReceived,
		TotalValue:      decimal.Zero,
		Items:           items,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// Transition moves the order to next, refreshing UpdatedAt. Illegal moves,
// including any move out of a terminal state, are rejected.
func (o *Order) Transition(next Status, now time.Time) error {
	if !o.Status.canTransitionTo(next) {
		return fmt.Errorf("illegal status transition %s -> %s", o.Status, next)
	}
	o.Status = next
	o.UpdatedAt = now
	return nil
}
