package domain

import "time"

type OrderCreatedEvent struct {
	OrderID   string     `json:"order_id"`
	Items     []CartItem `json:"items"`
	Total     float64    `json:"total"`
	UserID    int64      `json:"user_id,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}
