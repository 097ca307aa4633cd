package checkout

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/joao-fontenele/storefront-checkout/internal/domain"
	"github.com/joao-fontenele/storefront-checkout/internal/payment"
	"github.com/joao-fontenele/storefront-checkout/internal/telemetry"
)

func TestService_CreateSession(t *testing.T) {
	ctx := context.Background()

	t.Run("prices the cart and assembles the session", func(t *testing.T) {
		env := newTestEnv()
		lines := []domain.CartLine{
			{ProductID: "p1", Name: "Mug", Price: 2999, Quantity: 2, Image: "mug.png", Description: "  "},
			{ProductID: "p2", Price: 500, Description: "Sticker pack"},
		}

		result, err := env.svc.CreateSession(ctx, testCustomer, lines, "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if result.Total != 6498 {
			t.Errorf("expected total 6498, got %d", result.Total)
		}
		if !strings.HasPrefix(result.SessionID, "cs_stub_") {
			t.Errorf("unexpected session id %q", result.SessionID)
		}

		req := env.gateway.lastRequest
		if req.Mode != payment.ModePayment {
			t.Errorf("expected payment mode, got %q", req.Mode)
		}
		if req.SuccessURL != "http://shop.test/purchase-success?session_id="+payment.SessionIDPlaceholder {
			t.Errorf("unexpected success url %q", req.SuccessURL)
		}
		if req.CancelURL != "http://shop.test/purchase-cancel" {
			t.Errorf("unexpected cancel url %q", req.CancelURL)
		}
		if req.CustomerEmail != testCustomer.Email {
			t.Errorf("expected customer email, got %q", req.CustomerEmail)
		}
		if len(req.ShippingCountries) != 4 {
			t.Errorf("unexpected shipping countries %v", req.ShippingCountries)
		}
		if req.DiscountID != "" {
			t.Errorf("expected no discount, got %q", req.DiscountID)
		}

		first, second := req.LineItems[0], req.LineItems[1]
		if first.UnitAmount != 2999 || first.Quantity != 2 || first.Image != "mug.png" || first.Description != "" {
			t.Errorf("unexpected first line item: %+v", first)
		}
		if second.Name != "Product" || second.Quantity != 1 || second.Description != "Sticker pack" || second.Image != "" {
			t.Errorf("unexpected second line item: %+v", second)
		}

		meta := req.Metadata
		if meta.UserID != testCustomer.ID || meta.CouponCode != "" || len(meta.Products) != 2 {
			t.Errorf("unexpected metadata: %+v", meta)
		}
		if meta.Products[0].UnitAmount != 2999 || meta.Products[1].Quantity != 1 {
			t.Errorf("unexpected product snapshot: %+v", meta.Products)
		}
	})

	t.Run("rejects invalid carts before calling the gateway", func(t *testing.T) {
		carts := map[string][]domain.CartLine{
			"empty":                {},
			"zero price":           {{ProductID: "p1", Price: 0}},
			"negative price":       {{ProductID: "p1", Price: 100}, {ProductID: "p2", Price: -1}},
			"negative quantity":    {{ProductID: "p1", Price: 100, Quantity: -2}},
			"overflowing quantity": {{ProductID: "p1", Price: 100, Quantity: 100_000_000_000_000_000}},
			"price above limit":    {{ProductID: "p1", Price: MaxUnitAmount + 1}},
		}

		for name, lines := range carts {
			t.Run(name, func(t *testing.T) {
				env := newTestEnv()

				_, err := env.svc.CreateSession(ctx, testCustomer, lines, "SAVE10")

				var verr *ValidationError
				if !errors.As(err, &verr) {
					t.Fatalf("expected ValidationError, got %v", err)
				}
				if env.gateway.createCalls != 0 || len(env.gateway.percents) != 0 {
					t.Error("expected no gateway calls")
				}
			})
		}
	})

	t.Run("applies an active coupon", func(t *testing.T) {
		env := newTestEnv()
		env.addCoupon("SAVE10", 10, testNow.Add(time.Hour))

		result, err := env.svc.CreateSession(ctx, testCustomer, mugCart(), " SAVE10 ")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if result.Discount != 600 || result.Total != 5398 {
			t.Errorf("expected discount 600 and total 5398, got %d and %d", result.Discount, result.Total)
		}
		if len(env.gateway.percents) != 1 || env.gateway.percents[0] != 10 {
			t.Errorf("expected one 10%% discount, got %v", env.gateway.percents)
		}
		if env.gateway.labels[0] != "10% Discount" {
			t.Errorf("unexpected discount label %q", env.gateway.labels[0])
		}
		if env.gateway.lastRequest.DiscountID == "" {
			t.Error("expected discount on session")
		}
		if env.gateway.lastRequest.Metadata.CouponCode != "SAVE10" {
			t.Errorf("expected coupon in metadata, got %q", env.gateway.lastRequest.Metadata.CouponCode)
		}

		session, err := env.gateway.RetrieveSession(ctx, result.SessionID)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if session.AmountTotal != result.Total {
			t.Errorf("gateway total %d disagrees with quoted total %d", session.AmountTotal, result.Total)
		}
	})

	t.Run("clamps the percentage sent to the gateway", func(t *testing.T) {
		env := newTestEnv()
		env.addCoupon("ALL", 150, testNow.Add(time.Hour))

		if _, err := env.svc.CreateSession(ctx, testCustomer, mugCart(), "ALL"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if env.gateway.percents[0] != 100 {
			t.Errorf("expected clamped percent 100, got %d", env.gateway.percents[0])
		}
	})

	t.Run("ignores unknown and expired coupons", func(t *testing.T) {
		env := newTestEnv()
		env.addCoupon("OLD", 10, testNow.Add(-time.Minute))

		for _, code := range []string{"OLD", "NOPE"} {
			result, err := env.svc.CreateSession(ctx, testCustomer, mugCart(), code)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result.Total != 5998 || result.Discount != 0 {
				t.Errorf("%s: expected no discount, got total %d", code, result.Total)
			}
			if env.gateway.lastRequest.Metadata.CouponCode != "" {
				t.Errorf("%s: expected no coupon in metadata", code)
			}
		}
		if len(env.gateway.percents) != 0 {
			t.Error("expected no discount requests")
		}
	})

	t.Run("ignores coupons owned by someone else", func(t *testing.T) {
		env := newTestEnv()
		env.addCoupon("SAVE10", 10, testNow.Add(time.Hour))

		other := domain.Customer{ID: "user-2", Email: "bob@example.com"}
		result, err := env.svc.CreateSession(ctx, other, mugCart(), "SAVE10")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.Discount != 0 {
			t.Errorf("expected no discount, got %d", result.Discount)
		}
	})

	t.Run("proceeds without a discount when the gateway refuses it", func(t *testing.T) {
		env := newTestEnv()
		env.addCoupon("SAVE10", 10, testNow.Add(time.Hour))
		env.gateway.discountErr = errors.New("rate limited")

		result, err := env.svc.CreateSession(ctx, testCustomer, mugCart(), "SAVE10")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.Total != 5998 {
			t.Errorf("expected undiscounted total 5998, got %d", result.Total)
		}
		if env.gateway.lastRequest.DiscountID != "" || env.gateway.lastRequest.Metadata.CouponCode != "" {
			t.Error("expected session without discount or coupon")
		}
		if len(env.metrics.failures) != 1 || env.metrics.failures[0] != telemetry.FailureDiscount {
			t.Errorf("expected discount failure metric, got %v", env.metrics.failures)
		}
	})

	t.Run("treats coupon lookup failures as no coupon", func(t *testing.T) {
		env := newTestEnv()
		env.coupons.err = errors.New("db down")

		result, err := env.svc.CreateSession(ctx, testCustomer, mugCart(), "SAVE10")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.Total != 5998 {
			t.Errorf("expected total 5998, got %d", result.Total)
		}
	})

	t.Run("surfaces gateway failures", func(t *testing.T) {
		env := newTestEnv()
		env.gateway.createErr = &payment.ProviderError{Type: "invalid_request_error", Message: "bad image url", RequestID: "req_1"}

		_, err := env.svc.CreateSession(ctx, testCustomer, mugCart(), "")

		var gerr *GatewayError
		if !errors.As(err, &gerr) {
			t.Fatalf("expected GatewayError, got %v", err)
		}
		if !strings.Contains(gerr.Detail(), "request_id=req_1") {
			t.Errorf("expected provider detail, got %q", gerr.Detail())
		}
		if env.gifts.calls != 0 {
			t.Error("expected no gift issuance after a failed session")
		}
	})
}

func TestService_CreateSession_GiftCoupon(t *testing.T) {
	ctx := context.Background()

	gift := &domain.Coupon{
		ID:                 "gift-1",
		Code:               "GIFTABC123",
		UserID:             testCustomer.ID,
		DiscountPercentage: domain.GiftCouponPercentage,
		IsActive:           true,
		ExpiresAt:          testNow.Add(domain.GiftCouponValidity),
		CreatedAt:          testNow,
	}

	t.Run("issues a gift at exactly the threshold", func(t *testing.T) {
		env := newTestEnv()
		env.gifts.coupon = gift
		env.gifts.created = true

		result, err := env.svc.CreateSession(ctx, testCustomer, []domain.CartLine{{ProductID: "p1", Price: 10000, Quantity: 2}}, "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if env.gifts.calls != 1 {
			t.Errorf("expected one gift issuance, got %d", env.gifts.calls)
		}
		if result.GiftCoupon == nil || result.GiftCoupon.Code != "GIFTABC123" {
			t.Errorf("unexpected gift coupon: %+v", result.GiftCoupon)
		}

		if len(env.publisher.events) != 1 {
			t.Fatalf("expected one event, got %d", len(env.publisher.events))
		}
		ev := env.publisher.events[0]
		if ev.topic != domain.TopicCouponIssued {
			t.Errorf("expected coupon.issued, got %s", ev.topic)
		}
		if issued, ok := ev.event.(domain.CouponIssuedEvent); !ok || issued.Email != testCustomer.Email || issued.Code != gift.Code {
			t.Errorf("unexpected event payload: %+v", ev.event)
		}
	})

	t.Run("does not announce an existing gift", func(t *testing.T) {
		env := newTestEnv()
		env.gifts.coupon = gift

		if _, err := env.svc.CreateSession(ctx, testCustomer, []domain.CartLine{{Price: 25000}}, ""); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if env.gifts.calls != 1 {
			t.Errorf("expected one gift lookup, got %d", env.gifts.calls)
		}
		if len(env.publisher.events) != 0 {
			t.Errorf("expected no events, got %d", len(env.publisher.events))
		}
	})

	t.Run("skips gifts below the threshold", func(t *testing.T) {
		env := newTestEnv()
		env.gifts.coupon = gift

		if _, err := env.svc.CreateSession(ctx, testCustomer, []domain.CartLine{{Price: 19999}}, ""); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if env.gifts.calls != 0 {
			t.Errorf("expected no gift issuance, got %d", env.gifts.calls)
		}
	})

	t.Run("checks the threshold after the coupon discount", func(t *testing.T) {
		env := newTestEnv()
		env.gifts.coupon = gift
		env.addCoupon("SAVE10", 10, testNow.Add(time.Hour))

		if _, err := env.svc.CreateSession(ctx, testCustomer, []domain.CartLine{{Price: 21000}}, "SAVE10"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if env.gifts.calls != 0 {
			t.Errorf("expected no gift for a discounted total of 18900, got %d calls", env.gifts.calls)
		}
	})

	t.Run("still succeeds when issuance fails", func(t *testing.T) {
		env := newTestEnv()

		result, err := env.svc.CreateSession(ctx, testCustomer, []domain.CartLine{{Price: 30000}}, "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.GiftCoupon != nil {
			t.Errorf("expected no gift coupon, got %+v", result.GiftCoupon)
		}
		if len(env.metrics.failures) != 1 || env.metrics.failures[0] != telemetry.FailureGiftCoupon {
			t.Errorf("expected gift failure metric, got %v", env.metrics.failures)
		}
	})
}
