package domain

import "time"

const (
	GiftCouponPrefix     = "GIFT"
	GiftCouponPercentage = 10
	GiftCouponValidity   = 30 * 24 * time.Hour
)

type Coupon struct {
	ID                 string     `json:"id"`
	Code               string     `json:"code"`
	UserID             string     `json:"userId"`
	DiscountPercentage int        `json:"discountPercentage"`
	IsActive           bool       `json:"isActive"`
	ExpiresAt          time.Time  `json:"expirationDate"`
	UsedAt             *time.Time `json:"usedAt,omitempty"`
	CreatedAt          time.Time  `json:"createdAt"`
}

// Redeemable reports whether the coupon can still be applied at t.
func (c *Coupon) Redeemable(t time.Time) bool {
	return c.IsActive && t.Before(c.ExpiresAt)
}

// CouponRedemption identifies the coupon consumed by a paid checkout session.
type CouponRedemption struct {
	Code       string
	UserID     string
	RedeemedAt time.Time
}
