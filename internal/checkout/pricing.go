package checkout

import (
	"fmt"

	"github.com/joao-fontenele/storefront-checkout/internal/domain"
)

// GiftThreshold is the session total at which a gift coupon is granted.
const GiftThreshold domain.Amount = 20000

const defaultProductName = "Product"

// Upper bounds accepted from a client cart. MaxUnitAmount and MaxCartTotal
// follow the payment provider's eight-digit amount limit.
const (
	MaxUnitAmount domain.Amount = 99_999_999
	MaxCartTotal  domain.Amount = 99_999_999
	MaxQuantity                 = 10_000
)

// ValidateCart checks every line and the cart total against the bounds above,
// so CartTotal cannot overflow on a validated cart.
func ValidateCart(lines []domain.CartLine) error {
	if len(lines) == 0 {
		return &ValidationError{
			Message:  "Invalid or empty products array",
			Index:    -1,
			Received: lines,
		}
	}

	var total domain.Amount
	for i := range lines {
		line := lines[i]
		if line.Price <= 0 || line.Price > MaxUnitAmount {
			return &ValidationError{
				Message: fmt.Sprintf("Invalid price for product: %s", line.Name),
				Index:   i,
				Product: &line,
			}
		}
		if line.Quantity < 0 || line.Quantity > MaxQuantity {
			return &ValidationError{
				Message: fmt.Sprintf("Invalid quantity for product: %s", line.Name),
				Index:   i,
				Product: &line,
			}
		}

		// Each subtotal is at most MaxUnitAmount * MaxQuantity and total stays
		// below MaxCartTotal, so the sum cannot overflow.
		total += line.Subtotal()
		if total > MaxCartTotal {
			return &ValidationError{
				Message:  "Cart total exceeds the maximum allowed amount",
				Index:    -1,
				Received: lines,
			}
		}
	}

	return nil
}

// CartTotal sums unit price times quantity over all lines, in minor units.
func CartTotal(lines []domain.CartLine) domain.Amount {
	var total domain.Amount
	for _, l := range lines {
		total += l.Subtotal()
	}
	return total
}

// Discount is the amount a coupon of percent takes off total.
func Discount(total domain.Amount, percent int) domain.Amount {
	if percent <= 0 {
		return 0
	}
	return min(total.Percent(percent), total)
}

func discountLabel(percent int) string {
	return fmt.Sprintf("%d%% Discount", percent)
}
