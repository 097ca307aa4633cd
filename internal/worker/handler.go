package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/joao-fontenele/storefront-checkout/internal/domain"
	"github.com/joao-fontenele/storefront-checkout/internal/email"
)

// NotificationHandler turns checkout events into customer emails.
type NotificationHandler struct {
	emailServiceURL string
	httpClient      *http.Client
	logger          *slog.Logger
}

func NewNotificationHandler(emailServiceURL string, client *http.Client, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{
		emailServiceURL: emailServiceURL,
		httpClient:      client,
		logger:          logger,
	}
}

func (h *NotificationHandler) HandleOrderCompleted(ctx context.Context, payload []byte) error {
	var event domain.OrderCompletedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("unmarshal order completed event: %w", err)
	}

	h.logger.Info("processing order completed event", "order_id", event.OrderID, "user_id", event.UserID)

	if event.Email == "" {
		h.logger.Warn("no recipient for order receipt", "order_id", event.OrderID)
		return nil
	}

	if err := h.sendEmail(ctx, receipt(event)); err != nil {
		h.logger.Error("failed to send receipt", "error", err, "order_id", event.OrderID)
		return fmt.Errorf("send receipt: %w", err)
	}

	h.logger.Info("receipt sent", "order_id", event.OrderID)
	return nil
}

func (h *NotificationHandler) HandleCouponIssued(ctx context.Context, payload []byte) error {
	var event domain.CouponIssuedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("unmarshal coupon issued event: %w", err)
	}

	h.logger.Info("processing coupon issued event", "coupon_id", event.CouponID, "user_id", event.UserID)

	if event.Email == "" {
		h.logger.Warn("no recipient for gift coupon", "coupon_id", event.CouponID)
		return nil
	}

	msg := email.Message{
		To:      event.Email,
		Subject: "You earned a gift coupon",
		Body: fmt.Sprintf("Thanks for your purchase! Use code %s for %d%% off your next order before %s.",
			event.Code, event.DiscountPercentage, event.ExpiresAt.Format("January 2, 2006")),
	}

	if err := h.sendEmail(ctx, msg); err != nil {
		h.logger.Error("failed to send gift coupon email", "error", err, "coupon_id", event.CouponID)
		return fmt.Errorf("send gift coupon email: %w", err)
	}

	h.logger.Info("gift coupon email sent", "coupon_id", event.CouponID)
	return nil
}

func receipt(event domain.OrderCompletedEvent) email.Message {
	var b strings.Builder
	fmt.Fprintf(&b, "Your order %s is confirmed.\n\n", event.OrderID)
	for _, item := range event.Items {
		fmt.Fprintf(&b, "%d x %s  %s\n", item.Quantity, item.Name, item.Price)
	}
	fmt.Fprintf(&b, "\nTotal: %s\n", event.TotalAmount)

	return email.Message{
		To:      event.Email,
		Subject: "Order Confirmation: " + event.OrderID,
		Body:    b.String(),
	}
}

func (h *NotificationHandler) sendEmail(ctx context.Context, msg email.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.emailServiceURL+"/send", bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("email service returned status %d", resp.StatusCode)
	}

	return nil
}
