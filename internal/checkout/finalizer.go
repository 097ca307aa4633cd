package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/joao-fontenele/storefront-checkout/internal/domain"
	"github.com/joao-fontenele/storefront-checkout/internal/lock"
	"github.com/joao-fontenele/storefront-checkout/internal/payment"
	"github.com/joao-fontenele/storefront-checkout/internal/telemetry"
)

type FinalizeResult struct {
	Order *domain.Order
	// Created is false when the session had already been fulfilled.
	Created bool
}

func finalizeLockKey(sessionID string) string {
	return "checkout:finalize:" + sessionID
}

// Finalize materializes the order for a paid session. The gateway's record is
// the only input trusted; caller is used for logging and notifications. Calling
// it again for the same session returns the original order.
func (s *Service) Finalize(ctx context.Context, caller domain.Customer, sessionID string) (*FinalizeResult, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, ErrMissingSessionID
	}

	existing, err := s.orders.GetBySessionID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("look up order: %w", err)
	}
	if existing != nil {
		s.metrics.DuplicateFinalization(ctx)
		s.logger.Info("session already fulfilled", "session_id", sessionID, "order_id", existing.ID)
		return &FinalizeResult{Order: existing}, nil
	}

	release, err := s.locker.Acquire(ctx, finalizeLockKey(sessionID), s.opts.FinalizeLockTTL)
	switch {
	case errors.Is(err, lock.ErrNotAcquired):
		return nil, ErrFinalizeInProgress
	case err != nil:
		s.logger.Error("failed to acquire finalize lock", "error", err, "session_id", sessionID)
		s.metrics.AuxiliaryFailure(ctx, telemetry.FailureLock)
	default:
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				s.logger.Error("failed to release finalize lock", "error", err, "session_id", sessionID)
			}
		}()
	}

	gctx, cancel := s.gatewayContext(ctx)
	session, err := s.gateway.RetrieveSession(gctx, sessionID)
	cancel()
	if err != nil {
		if errors.Is(err, payment.ErrSessionNotFound) {
			return nil, err
		}
		return nil, &GatewayError{Op: "retrieve checkout session", Err: err}
	}

	if !session.Paid() {
		s.logger.Info("payment not completed", "session_id", sessionID, "status", session.PaymentStatus)
		return nil, &PaymentIncompleteError{Status: session.PaymentStatus}
	}

	meta, err := payment.DecodeSessionMetadata(session.Metadata)
	if err != nil {
		if !errors.Is(err, payment.ErrMalformedProducts) {
			return nil, fmt.Errorf("decode session metadata: %w", err)
		}
		s.logger.Error("failed to parse products", "error", err, "session_id", sessionID)
		s.metrics.AuxiliaryFailure(ctx, telemetry.FailureMetadata)
	}
	if meta.UserID == "" {
		return nil, ErrForeignSession
	}
	if caller.ID != "" && caller.ID != meta.UserID {
		s.logger.Warn("session finalized by a different user", "session_id", sessionID, "user_id", meta.UserID, "caller_id", caller.ID)
	}

	now := s.now().UTC()
	order := &domain.Order{
		UserID:      meta.UserID,
		Items:       orderItems(meta.Products),
		TotalAmount: session.AmountTotal,
		SessionID:   sessionID,
		Status:      domain.OrderStatusCompleted,
		CreatedAt:   now,
	}

	var redemption *domain.CouponRedemption
	if meta.CouponCode != "" {
		redemption = &domain.CouponRedemption{
			Code:       meta.CouponCode,
			UserID:     meta.UserID,
			RedeemedAt: now,
		}
	}

	result, err := s.orders.Fulfill(ctx, order, redemption)
	if err != nil {
		return nil, fmt.Errorf("fulfill order: %w", err)
	}

	if result.CouponErr != nil {
		s.logger.Error("failed to deactivate coupon", "error", result.CouponErr, "session_id", sessionID, "code", meta.CouponCode)
		s.metrics.AuxiliaryFailure(ctx, telemetry.FailureRedemption)
	}

	if !result.Created {
		s.metrics.DuplicateFinalization(ctx)
		s.logger.Info("session already fulfilled", "session_id", sessionID, "order_id", result.Order.ID)
		return &FinalizeResult{Order: result.Order}, nil
	}

	s.metrics.OrderCreated(ctx, int64(result.Order.TotalAmount))
	s.logger.Info("order created",
		"order_id", result.Order.ID,
		"session_id", sessionID,
		"user_id", meta.UserID,
		"total", result.Order.TotalAmount.String(),
		"coupon_redeemed", result.CouponRedeemed,
	)

	var email string
	if caller.ID == meta.UserID {
		email = caller.Email
	}
	s.publish(ctx, domain.TopicOrderCompleted, result.Order.ID, domain.OrderCompletedEvent{
		OrderID:     result.Order.ID,
		UserID:      result.Order.UserID,
		Email:       email,
		Items:       result.Order.Items,
		TotalAmount: result.Order.TotalAmount,
		Timestamp:   result.Order.CreatedAt,
	})

	return &FinalizeResult{Order: result.Order, Created: true}, nil
}

func orderItems(products []payment.ProductSnapshot) []domain.OrderItem {
	items := make([]domain.OrderItem, 0, len(products))
	for _, p := range products {
		qty := p.Quantity
		if qty <= 0 {
			qty = 1
		}
		items = append(items, domain.OrderItem{
			ProductID: p.ID,
			Name:      p.Name,
			Quantity:  qty,
			Price:     p.UnitAmount,
		})
	}
	return items
}
