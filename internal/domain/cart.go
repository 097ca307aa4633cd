package domain

// Customer is the authenticated purchaser as supplied by the edge.
type Customer struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type CartLine struct {
	ProductID   string `json:"productId"`
	Name        string `json:"name"`
	Price       Amount `json:"price"`
	Quantity    int    `json:"quantity"`
	Image       string `json:"image,omitempty"`
	Description string `json:"description,omitempty"`
}

// Qty returns the line quantity, defaulting to 1 when unset. Negative
// quantities are returned as is for validation to reject.
func (l CartLine) Qty() int {
	if l.Quantity == 0 {
		return 1
	}
	return l.Quantity
}

// Subtotal is the unit price times the quantity, in minor units.
func (l CartLine) Subtotal() Amount {
	return l.Price * Amount(l.Qty())
}
