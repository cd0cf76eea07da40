package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Snapshot is the immutable representation of a persisted order returned to
// callers and forwarded downstream.
type Snapshot struct {
	ID              uuid.UUID       `json:"id"`
	ExternalOrderID string          `json:"externalOrderId"`
	TotalValue      decimal.Decimal `json:"totalValue"`
	Status          Status          `json:"status"`
	Items           []ItemSnapshot  `json:"items"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

type ItemSnapshot struct {
	ProductCode string          `json:"productCode"`
	ProductName string          `json:"productName,omitempty"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	Quantity    int             `json:"quantity"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

func (o *Order) Snapshot() Snapshot {
	items := make([]ItemSnapshot, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, ItemSnapshot{
			ProductCode: it.ProductCode,
			ProductName: it.ProductName,
			UnitPrice:   it.UnitPrice,
			Quantity:    it.Quantity,
			Subtotal:    it.Subtotal(),
		})
	}
	return Snapshot{
		ID:              o.ID,
		ExternalOrderID: o.ExternalOrderID,
		TotalValue:      o.TotalValue,
		Status:          o.Status,
		Items:           items,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}
