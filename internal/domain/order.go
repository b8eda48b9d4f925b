package domain

import "time"

type OrderStatus string

const (
	OrderStatusPlaced    OrderStatus = "Placed"
	OrderStatusShipped   OrderStatus = "Shipped"
	OrderStatusDelivered OrderStatus = "Delivered"
	OrderStatusCancelled OrderStatus = "Cancelled"
)

// Order is one purchased line: a single book in a given quantity. A checkout
// of a multi-book cart produces one Order per book, committed together.
// TotalCents is snapshotted from the book price at checkout time and never
// recomputed.
type Order struct {
	ID         string      `json:"id"`
	UserID     string      `json:"user_id"`
	BookID     string      `json:"book_id"`
	BookTitle  string      `json:"book_title,omitempty"`
	Quantity   int         `json:"quantity"`
	TotalCents int64       `json:"total_cents"`
	Status     OrderStatus `json:"status"`
	CreatedAt  time.Time   `json:"created_at"`
}
