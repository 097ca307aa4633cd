package domain

import "time"

type OrderStatus string

const (
	OrderStatusCompleted OrderStatus = "completed"
)

type OrderItem struct {
	ProductID string `json:"product"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	Price     Amount `json:"price"`
}

type Order struct {
	ID          string      `json:"id"`
	UserID      string      `json:"user"`
	Items       []OrderItem `json:"products"`
	TotalAmount Amount      `json:"totalAmount"`
	SessionID   string      `json:"stripeSessionId"`
	Status      OrderStatus `json:"status"`
	CreatedAt   time.Time   `json:"createdAt"`
}
