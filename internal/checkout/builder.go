package checkout

import (
	"context"
	"strings"

	"github.com/joao-fontenele/storefront-checkout/internal/domain"
	"github.com/joao-fontenele/storefront-checkout/internal/payment"
	"github.com/joao-fontenele/storefront-checkout/internal/telemetry"
)

type SessionResult struct {
	SessionID  string
	SessionURL string
	// Total is what the customer is charged, after any coupon.
	Total    domain.Amount
	Discount domain.Amount
	// GiftCoupon is set when the purchase earned a gift coupon.
	GiftCoupon *domain.Coupon
}

// CreateSession prices the cart, applies the customer's coupon and opens a
// hosted payment session carrying the metadata needed to build the order.
func (s *Service) CreateSession(ctx context.Context, customer domain.Customer, lines []domain.CartLine, couponCode string) (*SessionResult, error) {
	if err := ValidateCart(lines); err != nil {
		s.metrics.SessionFailed(ctx, "validation")
		return nil, err
	}

	total := CartTotal(lines)

	applied := s.applyCoupon(ctx, customer.ID, strings.TrimSpace(couponCode), total)
	total -= applied.amount

	req := payment.SessionRequest{
		LineItems:         lineItems(lines),
		Currency:          s.opts.Currency,
		Mode:              payment.ModePayment,
		SuccessURL:        s.opts.ClientURL + "/purchase-success?session_id=" + payment.SessionIDPlaceholder,
		CancelURL:         s.opts.ClientURL + "/purchase-cancel",
		Metadata:          payment.NewSessionMetadata(customer.ID, applied.code, lines),
		ShippingCountries: s.opts.ShippingCountries,
		CustomerEmail:     customer.Email,
		DiscountID:        applied.discountID,
	}

	gctx, cancel := s.gatewayContext(ctx)
	session, err := s.gateway.CreateSession(gctx, req)
	cancel()
	if err != nil {
		s.metrics.SessionFailed(ctx, "gateway")
		return nil, &GatewayError{Op: "create checkout session", Err: err}
	}

	s.metrics.SessionCreated(ctx)
	s.logger.Info("checkout session created",
		"session_id", session.ID,
		"user_id", customer.ID,
		"lines", len(lines),
		"total", total.String(),
		"coupon", applied.code,
	)

	result := &SessionResult{
		SessionID:  session.ID,
		SessionURL: session.URL,
		Total:      total,
		Discount:   applied.amount,
	}

	if total >= GiftThreshold {
		result.GiftCoupon = s.grantGift(ctx, customer)
	}

	return result, nil
}

type appliedCoupon struct {
	code       string
	discountID string
	amount     domain.Amount
}

// applyCoupon returns the discount for code. Unknown, inactive or expired
// coupons and gateway failures all yield no discount.
func (s *Service) applyCoupon(ctx context.Context, userID, code string, total domain.Amount) appliedCoupon {
	if code == "" || s.coupons == nil {
		return appliedCoupon{}
	}

	c, err := s.coupons.FindActive(ctx, code, userID)
	if err != nil {
		s.logger.Error("failed to look up coupon", "error", err, "user_id", userID, "code", code)
		return appliedCoupon{}
	}
	if c == nil || !c.Redeemable(s.now()) {
		s.logger.Info("coupon not found or not active", "user_id", userID, "code", code)
		return appliedCoupon{}
	}

	percent := payment.ClampPercent(c.DiscountPercentage)

	gctx, cancel := s.gatewayContext(ctx)
	discountID, err := s.gateway.CreatePercentDiscount(gctx, percent, discountLabel(c.DiscountPercentage))
	cancel()
	if err != nil {
		s.logger.Error("failed to create gateway discount", "error", err, "user_id", userID, "code", code)
		s.metrics.AuxiliaryFailure(ctx, telemetry.FailureDiscount)
		return appliedCoupon{}
	}

	return appliedCoupon{
		code:       c.Code,
		discountID: discountID,
		amount:     Discount(total, c.DiscountPercentage),
	}
}

func (s *Service) grantGift(ctx context.Context, customer domain.Customer) *domain.Coupon {
	if s.gifts == nil {
		return nil
	}

	c, created := s.gifts.Issue(ctx, customer.ID)
	if c == nil {
		s.metrics.AuxiliaryFailure(ctx, telemetry.FailureGiftCoupon)
		return nil
	}

	if created {
		s.publish(ctx, domain.TopicCouponIssued, c.ID, domain.CouponIssuedEvent{
			CouponID:           c.ID,
			UserID:             c.UserID,
			Email:              customer.Email,
			Code:               c.Code,
			DiscountPercentage: c.DiscountPercentage,
			ExpiresAt:          c.ExpiresAt,
			Timestamp:          c.CreatedAt,
		})
	}

	return c
}

func lineItems(lines []domain.CartLine) []payment.LineItem {
	items := make([]payment.LineItem, 0, len(lines))
	for _, l := range lines {
		name := strings.TrimSpace(l.Name)
		if name == "" {
			name = defaultProductName
		}

		items = append(items, payment.LineItem{
			Name:        name,
			Description: strings.TrimSpace(l.Description),
			Image:       l.Image,
			UnitAmount:  l.Price,
			Quantity:    l.Qty(),
		})
	}
	return items
}
