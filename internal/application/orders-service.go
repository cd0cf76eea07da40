package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/akarpov/orders-bridge/internal/domain"
	"github.com/akarpov/orders-bridge/internal/logger"
	"github.com/akarpov/orders-bridge/internal/repository"
)

var ErrDuplicateOrder = repository.ErrDuplicateOrder

// IngestRequest is the order shape the upstream system submits, over HTTP or
// through the ingestion topic.
type IngestRequest struct {
	OrderID string       `json:"orderId"`
	Items   []IngestItem `json:"items"`
}

type IngestItem struct {
	ProductCode string          `json:"productCode"`
	ProductName string          `json:"productName"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	Quantity    int             `json:"quantity"`
}

func (r IngestRequest) Validate() error {
	if strings.TrimSpace(r.OrderID) == "" {
		return fmt.Errorf("orderId is required")
	}
	if len(r.Items) == 0 {
		return fmt.Errorf("order must have at least one item")
	}
	for i, it := range r.Items {
		if strings.TrimSpace(it.ProductCode) == "" {
			return fmt.Errorf("items[%d]: productCode is required", i)
		}
		if it.UnitPrice.IsNegative() {
			return fmt.Errorf("items[%d]: unitPrice must not be negative", i)
		}
		if it.Quantity <= 0 {
			return fmt.Errorf("items[%d]: quantity must be positive", i)
		}
	}
	return nil
}

func (r IngestRequest) toItems() []domain.OrderItem {
	items := make([]domain.OrderItem, 0, len(r.Items))
	for _, it := range r.Items {
		items = append(items, domain.OrderItem{
			ProductCode: it.ProductCode,
			ProductName: it.ProductName,
			UnitPrice:   it.UnitPrice,
			Quantity:    it.Quantity,
		})
	}
	return items
}

type OrdersService struct {
	repo repository.OrderRepo
	now  func() time.Time
}

func NewOrdersService(r repository.OrderRepo) *OrdersService {
	return &OrdersService{repo: r, now: time.Now}
}

// Ingest persists one order: duplicate check, total computation, status
// transition and save. The existence check is only the fast rejection; the
// store's uniqueness constraint decides races. Ingest never talks to the
// downstream system.
func (s *OrdersService) Ingest(ctx context.Context, req IngestRequest) (domain.Snapshot, error) {
	exists, err := s.repo.Exists(ctx, req.OrderID)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("duplicate check: %w", err)
	}
	if exists {
		logger.Warn("duplicate order rejected", "external_order_id", req.OrderID)
		return domain.Snapshot{}, ErrDuplicateOrder
	}

	now := s.now().UTC()
	order := domain.NewOrder(req.OrderID, req.toItems(), now)
	order.TotalValue = domain.TotalValue(order.Items)
	if err := order.Transition(domain.StatusProcessed, now); err != nil {
		return domain.Snapshot{}, err
	}

	if err := s.repo.Save(ctx, order); err != nil {
		if errors.Is(err, repository.ErrDuplicateOrder) {
			logger.Warn("duplicate order lost the insert race", "external_order_id", req.OrderID)
			return domain.Snapshot{}, ErrDuplicateOrder
		}
		return domain.Snapshot{}, fmt.Errorf("save order: %w", err)
	}

	logger.Info("order ingested",
		"external_order_id", order.ExternalOrderID,
		"total_value", order.TotalValue.String(),
	)
	return order.Snapshot(), nil
}

// FindByExternalID returns the full snapshot, or nil when no such order exists.
func (s *OrdersService) FindByExternalID(ctx context.Context, externalOrderID string) (*domain.Snapshot, error) {
	o, err := s.repo.GetByExternalID(ctx, externalOrderID)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, nil
	}
	snap := o.Snapshot()
	return &snap, nil
}

// List returns snapshots of all orders, optionally filtered by status. Items
// are not loaded for the list view.
func (s *OrdersService) List(ctx context.Context, status *domain.Status) ([]domain.Snapshot, error) {
	orders, err := s.repo.List(ctx, status)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Snapshot, 0, len(orders))
	for i := range orders {
		out = append(out, orders[i].Snapshot())
	}
	return out, nil
}
