package domain

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// LineItem is one (product, quantity) pair of a cart. UnitPrice is empty
// until the cart has been validated against the catalog.
type LineItem struct {
	ProductID string
	Quantity  int
	UnitPrice decimal.Decimal
}

type Cart struct {
	Items           []LineItem
	ShippingAddress json.RawMessage
	PaymentMethod   string
}
