package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderCreatedEvent struct {
	OrderID       string              `json:"order_id"`
	UserID        string              `json:"user_id"`
	Email         string              `json:"email,omitempty"`
	TotalAmount   decimal.Decimal     `json:"total_amount"`
	Items         []OrderItem         `json:"items"`
	StockWarnings []StockWarningEvent `json:"stock_warnings,omitempty"`
	Timestamp     time.Time           `json:"timestamp"`
}

type StockWarningEvent struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Reason    string `json:"reason"`
}

// OrderOrphanedEvent announces an order header that may have been left
// without items after a failed checkout.
type OrderOrphanedEvent struct {
	OrderID   string    `json:"order_id"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}
