package checkout_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joao-fontenele/storefront/internal/checkout"
	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/memstore"
)

func newCatalog(products ...domain.Product) *memstore.Store {
	store := memstore.New()
	for _, p := range products {
		store.PutProduct(p)
	}
	return store
}

func product(id, price string, stock int) domain.Product {
	return domain.Product{ID: id, Name: id, Price: decimal.RequireFromString(price), Stock: stock}
}

func cartOf(items ...domain.LineItem) domain.Cart {
	return domain.Cart{
		Items:           items,
		ShippingAddress: json.RawMessage(`"addr"`),
		PaymentMethod:   "card",
	}
}

type failingCatalog struct{ err error }

func (c failingCatalog) GetProduct(context.Context, string) (*domain.Product, error) {
	return nil, c.err
}

func TestValidator_Validate(t *testing.T) {
	ctx := context.Background()

	t.Run("computes total from catalog prices", func(t *testing.T) {
		v := checkout.NewValidator(newCatalog(product("p1", "10.00", 5)))

		got, err := v.Validate(ctx, cartOf(domain.LineItem{ProductID: "p1", Quantity: 2}))
		require.NoError(t, err)

		assert.True(t, got.Total.Equal(decimal.RequireFromString("20.00")), "total %s", got.Total)
		require.Len(t, got.Items, 1)
		assert.True(t, got.Items[0].UnitPrice.Equal(decimal.RequireFromString("10.00")))
		assert.Equal(t, "card", got.PaymentMethod)
		assert.JSONEq(t, `"addr"`, string(got.ShippingAddress))
	})

	t.Run("ignores caller supplied price", func(t *testing.T) {
		v := checkout.NewValidator(newCatalog(product("p1", "10.00", 5)))

		got, err := v.Validate(ctx, cartOf(domain.LineItem{ProductID: "p1", Quantity: 1, UnitPrice: decimal.NewFromInt(1)}))
		require.NoError(t, err)
		assert.True(t, got.Total.Equal(decimal.NewFromInt(10)))
		assert.True(t, got.Items[0].UnitPrice.Equal(decimal.NewFromInt(10)))
	})

	t.Run("sums many items without drift", func(t *testing.T) {
		v := checkout.NewValidator(newCatalog(product("a", "0.10", 1000), product("b", "0.20", 1000)))

		items := make([]domain.LineItem, 0, 200)
		for i := 0; i < 100; i++ {
			items = append(items, domain.LineItem{ProductID: "a", Quantity: 1}, domain.LineItem{ProductID: "b", Quantity: 1})
		}

		got, err := v.Validate(ctx, cartOf(items...))
		require.NoError(t, err)
		assert.True(t, got.Total.Equal(decimal.NewFromInt(30)), "total %s", got.Total)
	})

	t.Run("rejects empty items", func(t *testing.T) {
		v := checkout.NewValidator(newCatalog())

		_, err := v.Validate(ctx, cartOf())

		var missing *checkout.MissingFieldError
		require.ErrorAs(t, err, &missing)
		assert.Equal(t, "items", missing.Field)
		assert.ErrorIs(t, err, checkout.ErrValidation)
	})

	t.Run("rejects absent shipping address", func(t *testing.T) {
		v := checkout.NewValidator(newCatalog(product("p1", "1", 1)))

		for _, raw := range []string{"", "null", `""`, "  "} {
			cart := cartOf(domain.LineItem{ProductID: "p1", Quantity: 1})
			cart.ShippingAddress = json.RawMessage(raw)

			_, err := v.Validate(ctx, cart)

			var missing *checkout.MissingFieldError
			require.ErrorAs(t, err, &missing, "address %q", raw)
			assert.Equal(t, "shippingAddress", missing.Field)
		}
	})

	t.Run("accepts structured shipping address", func(t *testing.T) {
		v := checkout.NewValidator(newCatalog(product("p1", "1", 1)))
		cart := cartOf(domain.LineItem{ProductID: "p1", Quantity: 1})
		cart.ShippingAddress = json.RawMessage(`{"street":"1 Main St","city":"Lahore"}`)

		_, err := v.Validate(ctx, cart)
		assert.NoError(t, err)
	})

	t.Run("rejects non-positive quantity", func(t *testing.T) {
		v := checkout.NewValidator(newCatalog(product("p1", "1", 10)))

		for _, qty := range []int{0, -3} {
			_, err := v.Validate(ctx, cartOf(domain.LineItem{ProductID: "p1", Quantity: qty}))

			var invalid *checkout.InvalidQuantityError
			require.ErrorAs(t, err, &invalid)
			assert.Equal(t, qty, invalid.Quantity)
		}
	})

	t.Run("rejects missing product id", func(t *testing.T) {
		v := checkout.NewValidator(newCatalog())

		_, err := v.Validate(ctx, cartOf(domain.LineItem{Quantity: 1}))

		var missing *checkout.MissingFieldError
		require.ErrorAs(t, err, &missing)
		assert.Equal(t, "items[0].productId", missing.Field)
	})

	t.Run("reports unknown product", func(t *testing.T) {
		v := checkout.NewValidator(newCatalog(product("p1", "1", 10)))

		got, err := v.Validate(ctx, cartOf(
			domain.LineItem{ProductID: "p1", Quantity: 1},
			domain.LineItem{ProductID: "ghost", Quantity: 1},
		))

		assert.Nil(t, got)
		var notFound *checkout.ProductNotFoundError
		require.ErrorAs(t, err, &notFound)
		assert.Equal(t, "ghost", notFound.ProductID)
		assert.ErrorIs(t, err, checkout.ErrValidation)
	})

	t.Run("reports insufficient stock", func(t *testing.T) {
		v := checkout.NewValidator(newCatalog(product("p1", "10.00", 1)))

		got, err := v.Validate(ctx, cartOf(domain.LineItem{ProductID: "p1", Quantity: 2}))

		assert.Nil(t, got)
		var short *checkout.InsufficientStockError
		require.ErrorAs(t, err, &short)
		assert.Equal(t, checkout.InsufficientStockError{ProductID: "p1", Requested: 2, Available: 1}, *short)
		assert.ErrorIs(t, err, checkout.ErrInsufficientStock)
	})

	t.Run("reports first failing item only", func(t *testing.T) {
		v := checkout.NewValidator(newCatalog(product("low", "1", 0)))

		_, err := v.Validate(ctx, cartOf(
			domain.LineItem{ProductID: "low", Quantity: 1},
			domain.LineItem{ProductID: "ghost", Quantity: 1},
		))

		var short *checkout.InsufficientStockError
		assert.ErrorAs(t, err, &short)
	})

	t.Run("wraps catalog failures", func(t *testing.T) {
		boom := errors.New("connection reset")
		v := checkout.NewValidator(failingCatalog{err: boom})

		_, err := v.Validate(ctx, cartOf(domain.LineItem{ProductID: "p1", Quantity: 1}))

		assert.ErrorIs(t, err, boom)
		assert.NotErrorIs(t, err, checkout.ErrValidation)
	})
}
