package domain

import "time"

type OrderStatus string

const OrderStatusCompleted OrderStatus = "completed"

// Order is created exactly once per completed checkout and never changes.
type Order struct {
	ID         string      `json:"id"`
	CheckoutID string      `json:"checkout_id"`
	SessionID  string      `json:"session_id"`
	Items      []LineItem  `json:"items"`
	Customer   Customer    `json:"customer"`
	Totals     Totals      `json:"totals"`
	PaymentID  string      `json:"payment_id"`
	Status     OrderStatus `json:"status"`
	CreatedAt  time.Time   `json:"created_at"`
}
