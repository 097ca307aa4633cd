package coupons

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/joao-fontenele/storefront-checkout/internal/domain"
)

var ErrDuplicateCoupon = errors.New("coupon code already exists for user")

const couponColumns = `id, code, user_id, discount_percentage, is_active, expires_at, used_at, created_at`

// Execer is satisfied by *sql.DB and *sql.Tx.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type CouponRepository struct {
	db *sql.DB
}

func NewCouponRepository(db *sql.DB) *CouponRepository {
	return &CouponRepository{db: db}
}

// FindActive returns the active coupon with the given code owned by userID, or
// nil. Expiry is left to the caller.
func (r *CouponRepository) FindActive(ctx context.Context, code, userID string) (*domain.Coupon, error) {
	return r.queryOne(ctx, `
		SELECT `+couponColumns+`
		FROM coupons
		WHERE code = $1 AND user_id = $2 AND is_active
		LIMIT 1
	`, code, userID)
}

// FindActiveByPrefix returns the newest active coupon of userID whose code
// starts with prefix, or nil.
func (r *CouponRepository) FindActiveByPrefix(ctx context.Context, userID, prefix string) (*domain.Coupon, error) {
	return r.queryOne(ctx, `
		SELECT `+couponColumns+`
		FROM coupons
		WHERE user_id = $1 AND code LIKE $2 AND is_active
		ORDER BY created_at DESC
		LIMIT 1
	`, userID, prefix+"%")
}

// FindActiveForUser returns the newest active coupon of userID, or nil.
func (r *CouponRepository) FindActiveForUser(ctx context.Context, userID string) (*domain.Coupon, error) {
	return r.queryOne(ctx, `
		SELECT `+couponColumns+`
		FROM coupons
		WHERE user_id = $1 AND is_active
		ORDER BY created_at DESC
		LIMIT 1
	`, userID)
}

func (r *CouponRepository) Create(ctx context.Context, c *domain.Coupon) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO coupons (id, code, user_id, discount_percentage, is_active, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, c.ID, c.Code, c.UserID, c.DiscountPercentage, c.IsActive, c.ExpiresAt, c.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateCoupon
		}
		return fmt.Errorf("insert coupon: %w", err)
	}
	return nil
}

// Deactivate marks the coupon redeemed at the given time. It reports whether an
// active coupon was found.
func (r *CouponRepository) Deactivate(ctx context.Context, code, userID string, at time.Time) (bool, error) {
	return Redeem(ctx, r.db, code, userID, at)
}

// Expire deactivates a coupon without stamping a redemption time.
func (r *CouponRepository) Expire(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `
		UPDATE coupons SET is_active = FALSE
		WHERE id = $1
	`, id); err != nil {
		return fmt.Errorf("expire coupon: %w", err)
	}
	return nil
}

// Redeem deactivates the active coupon (code, userID) through q, so it can run
// inside a caller's transaction. Redeeming an already inactive coupon is a no-op.
func Redeem(ctx context.Context, q Execer, code, userID string, at time.Time) (bool, error) {
	result, err := q.ExecContext(ctx, `
		UPDATE coupons SET is_active = FALSE, used_at = $3
		WHERE code = $1 AND user_id = $2 AND is_active
	`, code, userID, at)
	if err != nil {
		return false, fmt.Errorf("redeem coupon: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return rowsAffected > 0, nil
}

func (r *CouponRepository) queryOne(ctx context.Context, query string, args ...any) (*domain.Coupon, error) {
	c := &domain.Coupon{}
	var usedAt sql.NullTime

	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&c.ID, &c.Code, &c.UserID, &c.DiscountPercentage, &c.IsActive, &c.ExpiresAt, &usedAt, &c.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	if usedAt.Valid {
		c.UsedAt = &usedAt.Time
	}

	return c, nil
}
