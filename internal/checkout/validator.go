package checkout

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/joao-fontenele/storefront/internal/domain"
)

// Catalog resolves products for validation. GetProduct returns nil, nil when
// the product does not exist.
type Catalog interface {
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
}

// ValidatedCart carries the line items with their price snapshot and the
// total computed from that snapshot.
type ValidatedCart struct {
	Items           []domain.LineItem
	Total           decimal.Decimal
	ShippingAddress json.RawMessage
	PaymentMethod   string
}

type Validator struct {
	catalog Catalog
}

func NewValidator(catalog Catalog) *Validator {
	return &Validator{catalog: catalog}
}

// Validate checks the items in the order given and reports the first one that
// fails. It never writes to the catalog.
func (v *Validator) Validate(ctx context.Context, cart domain.Cart) (*ValidatedCart, error) {
	ctx, span := tracer.Start(ctx, "checkout.validate")
	defer span.End()
	span.SetAttributes(attribute.Int("checkout.items", len(cart.Items)))

	if len(cart.Items) == 0 {
		return nil, &MissingFieldError{Field: "items"}
	}
	if addressAbsent(cart.ShippingAddress) {
		return nil, &MissingFieldError{Field: "shippingAddress"}
	}

	validated := &ValidatedCart{
		Items:           make([]domain.LineItem, 0, len(cart.Items)),
		Total:           decimal.Zero,
		ShippingAddress: cart.ShippingAddress,
		PaymentMethod:   cart.PaymentMethod,
	}

	for i, item := range cart.Items {
		if item.ProductID == "" {
			return nil, &MissingFieldError{Field: fmt.Sprintf("items[%d].productId", i)}
		}
		if item.Quantity < 1 {
			return nil, &InvalidQuantityError{ProductID: item.ProductID, Quantity: item.Quantity}
		}

		product, err := v.catalog.GetProduct(ctx, item.ProductID)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("look up product %s: %w", item.ProductID, err)
		}
		if product == nil {
			return nil, &ProductNotFoundError{ProductID: item.ProductID}
		}
		if product.Stock < item.Quantity {
			return nil, &InsufficientStockError{
				ProductID: item.ProductID,
				Requested: item.Quantity,
				Available: product.Stock,
			}
		}

		validated.Items = append(validated.Items, domain.LineItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: product.Price,
		})
		validated.Total = validated.Total.Add(product.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}

	return validated, nil
}

func addressAbsent(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) || bytes.Equal(trimmed, []byte(`""`))
}
