package coupons

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joao-fontenele/storefront-checkout/internal/domain"
)

const giftCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

type giftStore interface {
	FindActiveByPrefix(ctx context.Context, userID, prefix string) (*domain.Coupon, error)
	Create(ctx context.Context, c *domain.Coupon) error
	Expire(ctx context.Context, id string) error
}

// GiftIssuer grants reward coupons for large purchases. A customer holds at
// most one live gift coupon.
type GiftIssuer struct {
	store  giftStore
	logger *slog.Logger
	now    func() time.Time
}

func NewGiftIssuer(store giftStore, logger *slog.Logger) *GiftIssuer {
	return &GiftIssuer{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// Issue returns the customer's live gift coupon, creating one when needed. The
// boolean reports whether a new coupon was created. Failures are logged and
// yield a nil coupon.
//
// The database allows one active GIFT coupon per user, so when a concurrent
// checkout wins the insert the coupon it created is returned instead.
func (g *GiftIssuer) Issue(ctx context.Context, userID string) (*domain.Coupon, bool) {
	now := g.now().UTC()

	existing, err := g.store.FindActiveByPrefix(ctx, userID, domain.GiftCouponPrefix)
	if err != nil {
		g.logger.Error("failed to look up gift coupon", "error", err, "user_id", userID)
		return nil, false
	}
	if existing != nil {
		if existing.Redeemable(now) {
			g.logger.Info("user already has active gift coupon", "user_id", userID, "code", existing.Code)
			return existing, false
		}
		if err := g.store.Expire(ctx, existing.ID); err != nil {
			g.logger.Error("failed to expire gift coupon", "error", err, "user_id", userID, "code", existing.Code)
			return nil, false
		}
	}

	c := &domain.Coupon{
		ID:                 uuid.NewString(),
		Code:               NewGiftCode(),
		UserID:             userID,
		DiscountPercentage: domain.GiftCouponPercentage,
		IsActive:           true,
		ExpiresAt:          now.Add(domain.GiftCouponValidity),
		CreatedAt:          now,
	}

	if err := g.store.Create(ctx, c); err != nil {
		if errors.Is(err, ErrDuplicateCoupon) {
			return g.concurrentGift(ctx, userID, now)
		}
		g.logger.Error("failed to create gift coupon", "error", err, "user_id", userID)
		return nil, false
	}

	g.logger.Info("gift coupon created", "user_id", userID, "code", c.Code)
	return c, true
}

func (g *GiftIssuer) concurrentGift(ctx context.Context, userID string, now time.Time) (*domain.Coupon, bool) {
	winner, err := g.store.FindActiveByPrefix(ctx, userID, domain.GiftCouponPrefix)
	if err != nil {
		g.logger.Error("failed to look up gift coupon", "error", err, "user_id", userID)
		return nil, false
	}
	if winner == nil || !winner.Redeemable(now) {
		g.logger.Error("failed to create gift coupon", "error", ErrDuplicateCoupon, "user_id", userID)
		return nil, false
	}

	g.logger.Info("gift coupon issued concurrently", "user_id", userID, "code", winner.Code)
	return winner, false
}

// NewGiftCode returns GIFT followed by six random uppercase alphanumerics.
func NewGiftCode() string {
	id := uuid.New()
	code := make([]byte, 0, len(domain.GiftCouponPrefix)+6)
	code = append(code, domain.GiftCouponPrefix...)
	for _, b := range id[:6] {
		code = append(code, giftCodeAlphabet[int(b)%len(giftCodeAlphabet)])
	}
	return string(code)
}
