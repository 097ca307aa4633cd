// Package payment abstracts the hosted-checkout payment provider.
package payment

import (
	"context"

	"github.com/joao-fontenele/storefront-checkout/internal/domain"
)

const (
	ModePayment = "payment"

	PaymentStatusPaid     = "paid"
	PaymentStatusUnpaid   = "unpaid"
	PaymentStatusNoCharge = "no_payment_required"

	// SessionIDPlaceholder is substituted by the provider in redirect URLs.
	SessionIDPlaceholder = "{CHECKOUT_SESSION_ID}"
)

// Gateway is the capability the checkout core needs from a payment provider.
type Gateway interface {
	CreateSession(ctx context.Context, req SessionRequest) (*Session, error)
	RetrieveSession(ctx context.Context, id string) (*Session, error)
	CreatePercentDiscount(ctx context.Context, percent int, label string) (string, error)
}

type LineItem struct {
	Name        string
	Description string
	Image       string
	UnitAmount  domain.Amount
	Quantity    int
}

type SessionRequest struct {
	LineItems         []LineItem
	Currency          string
	Mode              string
	SuccessURL        string
	CancelURL         string
	Metadata          SessionMetadata
	ShippingCountries []string
	CustomerEmail     string
	DiscountID        string
}

type Session struct {
	ID            string
	URL           string
	PaymentStatus string
	AmountTotal   domain.Amount
	Metadata      map[string]string
}

// Paid reports whether the provider considers the session settled.
func (s *Session) Paid() bool {
	return s.PaymentStatus == PaymentStatusPaid
}

// ClampPercent bounds a discount percentage to the range providers accept.
func ClampPercent(p int) int {
	return min(max(p, 1), 100)
}
