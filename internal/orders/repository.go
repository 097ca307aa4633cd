package orders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/joao-fontenele/storefront-checkout/internal/coupons"
	"github.com/joao-fontenele/storefront-checkout/internal/domain"
)

// FulfillResult describes the outcome of turning a paid session into an order.
type FulfillResult struct {
	Order *domain.Order
	// Created is false when the session had already been fulfilled; Order is
	// then the existing order.
	Created bool
	// CouponRedeemed reports whether an active coupon was deactivated.
	CouponRedeemed bool
	// CouponErr is the redemption failure, if any. It never prevents the order.
	CouponErr error
}

type OrderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// Fulfill persists order and redeems the coupon in a single transaction. The
// order is keyed on its session id, so fulfilling the same session twice
// returns the first order and leaves the coupon untouched.
func (r *OrderRepository) Fulfill(ctx context.Context, order *domain.Order, redemption *domain.CouponRedemption) (*FulfillResult, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	order.ID = uuid.New().String()

	var insertedID string
	err = tx.QueryRowContext(ctx, `
		INSERT INTO orders (id, user_id, session_id, status, total_amount, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (session_id) DO NOTHING
		RETURNING id
	`, order.ID, order.UserID, order.SessionID, order.Status, int64(order.TotalAmount), order.CreatedAt).Scan(&insertedID)
	if errors.Is(err, sql.ErrNoRows) {
		_ = tx.Rollback()

		existing, err := r.GetBySessionID(ctx, order.SessionID)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			return nil, fmt.Errorf("order for session %s conflicted but was not found", order.SessionID)
		}
		return &FulfillResult{Order: existing}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("insert order: %w", err)
	}

	for i, item := range order.Items {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (id, order_id, position, product_id, name, quantity, price)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, uuid.New().String(), order.ID, i, item.ProductID, item.Name, item.Quantity, int64(item.Price))
		if err != nil {
			return nil, fmt.Errorf("insert order item: %w", err)
		}
	}

	result := &FulfillResult{Order: order, Created: true}

	if redemption != nil {
		if _, err := tx.ExecContext(ctx, `SAVEPOINT coupon_redemption`); err != nil {
			return nil, fmt.Errorf("savepoint: %w", err)
		}

		redeemed, err := coupons.Redeem(ctx, tx, redemption.Code, redemption.UserID, redemption.RedeemedAt)
		if err != nil {
			result.CouponErr = err
			if _, err := tx.ExecContext(ctx, `ROLLBACK TO SAVEPOINT coupon_redemption`); err != nil {
				return nil, fmt.Errorf("rollback to savepoint: %w", err)
			}
		}
		result.CouponRedeemed = redeemed
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *OrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	return r.getOne(ctx, `
		SELECT id, user_id, session_id, status, total_amount, created_at
		FROM orders
		WHERE id = $1
	`, id)
}

func (r *OrderRepository) GetBySessionID(ctx context.Context, sessionID string) (*domain.Order, error) {
	return r.getOne(ctx, `
		SELECT id, user_id, session_id, status, total_amount, created_at
		FROM orders
		WHERE session_id = $1
	`, sessionID)
}

func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, session_id, status, total_amount, created_at
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	orderMap := make(map[string]*domain.Order)
	var orderIDs []string

	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		order.Items = []domain.OrderItem{}
		orderMap[order.ID] = order
		orderIDs = append(orderIDs, order.ID)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(orderIDs) == 0 {
		return []domain.Order{}, nil
	}

	itemRows, err := r.db.QueryContext(ctx, `
		SELECT order_id, product_id, name, quantity, price
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY order_id, position
	`, pq.Array(orderIDs))
	if err != nil {
		return nil, err
	}
	defer func() { _ = itemRows.Close() }()

	for itemRows.Next() {
		var orderID string
		var item domain.OrderItem
		if err := itemRows.Scan(&orderID, &item.ProductID, &item.Name, &item.Quantity, &item.Price); err != nil {
			return nil, err
		}
		if order, ok := orderMap[orderID]; ok {
			order.Items = append(order.Items, item)
		}
	}

	if err := itemRows.Err(); err != nil {
		return nil, err
	}

	orders := make([]domain.Order, 0, len(orderIDs))
	for _, id := range orderIDs {
		orders = append(orders, *orderMap[id])
	}

	return orders, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	order := &domain.Order{}
	err := row.Scan(&order.ID, &order.UserID, &order.SessionID, &order.Status, &order.TotalAmount, &order.CreatedAt)
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (r *OrderRepository) getOne(ctx context.Context, query string, arg string) (*domain.Order, error) {
	order, err := scanOrder(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT product_id, name, quantity, price
		FROM order_items
		WHERE order_id = $1
		ORDER BY position
	`, order.ID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	order.Items = []domain.OrderItem{}
	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.ProductID, &item.Name, &item.Quantity, &item.Price); err != nil {
			return nil, err
		}
		order.Items = append(order.Items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return order, nil
}
