package checkout

import (
	"errors"
	"fmt"
)

// Class sentinels. Every checkout error matches exactly one of them with errors.Is.
var (
	ErrValidation  = errors.New("checkout: invalid cart")
	ErrPersistence = errors.New("checkout: persistence failure")
)

// Returned by Inventory implementations when a conditional decrement does not apply.
var (
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrProductNotFound   = errors.New("product not found")
)

type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("%s is required", e.Field)
}

func (e *MissingFieldError) Is(target error) bool { return target == ErrValidation }

type InvalidQuantityError struct {
	ProductID string
	Quantity  int
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("invalid quantity %d for product %s", e.Quantity, e.ProductID)
}

func (e *InvalidQuantityError) Is(target error) bool { return target == ErrValidation }

type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product with id %s not found", e.ProductID)
}

func (e *ProductNotFoundError) Is(target error) bool {
	return target == ErrValidation || target == ErrProductNotFound
}

type InsufficientStockError struct {
	ProductID string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("not enough stock for product %s: requested %d, available %d", e.ProductID, e.Requested, e.Available)
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrValidation || target == ErrInsufficientStock
}

// OrderCreateError means the order header was not persisted.
type OrderCreateError struct {
	Err error
}

func (e *OrderCreateError) Error() string { return "create order: " + e.Err.Error() }

func (e *OrderCreateError) Unwrap() error { return e.Err }

func (e *OrderCreateError) Is(target error) bool { return target == ErrPersistence }

// OrderItemsInsertError means the items could not be written and the header
// was rolled back with them.
type OrderItemsInsertError struct {
	OrderID string
	Err     error
}

func (e *OrderItemsInsertError) Error() string {
	return fmt.Sprintf("insert items for order %s: %s", e.OrderID, e.Err)
}

func (e *OrderItemsInsertError) Unwrap() error { return e.Err }

func (e *OrderItemsInsertError) Is(target error) bool { return target == ErrPersistence }

// PartialOrderError means the items could not be written and the header could
// not be rolled back either. OrderID may exist in storage without items.
type PartialOrderError struct {
	OrderID     string
	Err         error
	RollbackErr error
}

func (e *PartialOrderError) Error() string {
	return fmt.Sprintf("order %s partially created: insert items: %s; rollback: %s", e.OrderID, e.Err, e.RollbackErr)
}

func (e *PartialOrderError) Unwrap() []error { return []error{e.Err, e.RollbackErr} }

func (e *PartialOrderError) Is(target error) bool { return target == ErrPersistence }
