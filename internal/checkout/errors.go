package checkout

import (
	"errors"
	"fmt"

	"github.com/joao-fontenele/storefront-checkout/internal/domain"
	"github.com/joao-fontenele/storefront-checkout/internal/payment"
)

var (
	ErrMissingSessionID   = errors.New("session ID is required")
	ErrFinalizeInProgress = errors.New("checkout finalization already in progress")
	ErrForeignSession     = errors.New("checkout session was not created by this store")
)

// ValidationError rejects a cart before any gateway call.
type ValidationError struct {
	Message string
	// Index of the offending line, or -1 when the cart as a whole is invalid.
	Index    int
	Product  *domain.CartLine
	Received any
}

func (e *ValidationError) Error() string {
	return e.Message
}

// PaymentIncompleteError reports a session the gateway has not settled yet.
type PaymentIncompleteError struct {
	Status string
}

func (e *PaymentIncompleteError) Error() string {
	return "Payment not completed. Status: " + e.Status
}

// GatewayError wraps a failed payment gateway call on the primary path.
type GatewayError struct {
	Op  string
	Err error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// Detail describes the raw provider rejection when there is one.
func (e *GatewayError) Detail() string {
	var perr *payment.ProviderError
	if errors.As(e.Err, &perr) {
		return fmt.Sprintf("type=%s code=%s request_id=%s message=%s", perr.Type, perr.Code, perr.RequestID, perr.Message)
	}
	return fmt.Sprintf("%+v", e.Err)
}
