package domain

import "time"

const (
	TopicOrderCompleted = "order.completed"
	TopicCouponIssued   = "coupon.issued"
)

type OrderCompletedEvent struct {
	OrderID     string      `json:"order_id"`
	UserID      string      `json:"user_id"`
	Email       string      `json:"email,omitempty"`
	Items       []OrderItem `json:"items"`
	TotalAmount Amount      `json:"total_amount"`
	Timestamp   time.Time   `json:"timestamp"`
}

type CouponIssuedEvent struct {
	CouponID           string    `json:"coupon_id"`
	UserID             string    `json:"user_id"`
	Email              string    `json:"email,omitempty"`
	Code               string    `json:"code"`
	DiscountPercentage int       `json:"discount_percentage"`
	ExpiresAt          time.Time `json:"expires_at"`
	Timestamp          time.Time `json:"timestamp"`
}
