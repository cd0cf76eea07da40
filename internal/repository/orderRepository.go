package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/akarpov/orders-bridge/internal/domain"
	"github.com/akarpov/orders-bridge/internal/logger"
)

var ErrDuplicateOrder = errors.New("order already exists")

type OrderRepo interface {
	Exists(ctx context.Context, externalOrderID string) (bool, error)
	Save(ctx context.Context, o *domain.Order) error
	GetByExternalID(ctx context.Context, externalOrderID string) (*domain.Order, error)
	List(ctx context.Context, status *domain.Status) ([]domain.Order, error)
	UpdateStatus(ctx context.Context, externalOrderID string, status domain.Status) error
}

type OrderRepository struct {
	pool *pgxpool.Pool
}

func NewOrderRepository(p *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: p}
}

func (p *OrderRepository) Exists(ctx context.Context, externalOrderID string) (bool, error) {
	var exists bool
	err := p.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM orders WHERE external_order_id = $1)`,
		externalOrderID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("exists check: %w", err)
	}
	return exists, nil
}

// Save inserts the order and its items in one transaction and fills in the
// surrogate id. The UNIQUE constraint on external_order_id is the
// authoritative duplicate guard; a violation surfaces as ErrDuplicateOrder.
func (p *OrderRepository) Save(ctx context.Context, o *domain.Order) error {
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	// Rollback is a no-op after commit; tx is nilled out on success.
	defer func() {
		if tx != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	var orderID uuid.UUID
	err = tx.QueryRow(ctx,
		`INSERT INTO orders
			(external_order_id, status, total_value, created_at, updated_at)
		 VALUES
			($1, $2, $3, $4, $5)
		 RETURNING id
		`,
		o.ExternalOrderID,
		string(o.Status),
		o.TotalValue.String(),
		o.CreatedAt,
		o.UpdatedAt,
	).Scan(&orderID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateOrder
		}
		return fmt.Errorf("insert order: %w", err)
	}

	if len(o.Items) > 0 {
		batch := &pgx.Batch{}
		for _, it := range o.Items {
			batch.Queue(`
				INSERT INTO order_items
					(order_id, product_code, product_name, unit_price, quantity)
				VALUES
					($1, $2, $3, $4, $5)
			`,
				orderID,
				it.ProductCode,
				it.ProductName,
				it.UnitPrice.String(),
				it.Quantity,
			)
		}
		br := tx.SendBatch(ctx, batch)
		if err = br.Close(); err != nil {
			return fmt.Errorf("insert items: %w", err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	tx = nil
	o.ID = orderID
	return nil
}

// GetByExternalID loads the order together with its items. Returns (nil, nil)
// when no order carries that external id.
func (p *OrderRepository) GetByExternalID(ctx context.Context, externalOrderID string) (*domain.Order, error) {
	var (
		o      domain.Order
		status string
		total  decimal.Decimal
	)
	err := p.pool.QueryRow(ctx,
		`SELECT id, external_order_id, status, total_value, created_at, updated_at
		 FROM orders WHERE external_order_id = $1`,
		externalOrderID,
	).Scan(&o.ID, &o.ExternalOrderID, &status, &total, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select order: %w", err)
	}
	o.Status = domain.Status(status)
	o.TotalValue = total

	rows, err := p.pool.Query(ctx,
		`SELECT product_code, product_name, unit_price, quantity
		 FROM order_items WHERE order_id = $1 ORDER BY id`,
		o.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("select items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var it domain.OrderItem
		var price decimal.Decimal
		if err := rows.Scan(&it.ProductCode, &it.ProductName, &price, &it.Quantity); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		it.UnitPrice = price
		o.Items = append(o.Items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate items: %w", err)
	}
	return &o, nil
}

// List returns orders without their items, optionally filtered by status.
func (p *OrderRepository) List(ctx context.Context, status *domain.Status) ([]domain.Order, error) {
	q := `SELECT id, external_order_id, status, total_value, created_at, updated_at
	      FROM orders ORDER BY created_at`
	args := []any{}
	if status != nil {
		q = `SELECT id, external_order_id, status, total_value, created_at, updated_at
		     FROM orders WHERE status = $1 ORDER BY created_at`
		args = append(args, string(*status))
	}

	rows, err := p.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var out []domain.Order
	for rows.Next() {
		var o domain.Order
		var st string
		if err := rows.Scan(&o.ID, &o.ExternalOrderID, &st, &o.TotalValue, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		o.Status = domain.Status(st)
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}
	return out, nil
}

// UpdateStatus is a single-row atomic write keyed by external id. A missing
// order is a silent no-op: dispatch has nobody to report the miss to.
func (p *OrderRepository) UpdateStatus(ctx context.Context, externalOrderID string, status domain.Status) error {
	tag, err := p.pool.Exec(ctx,
		`UPDATE orders SET status = $2, updated_at = now() WHERE external_order_id = $1`,
		externalOrderID,
		string(status),
	)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		logger.Debug("status update for unknown order skipped", "external_order_id", externalOrderID)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
