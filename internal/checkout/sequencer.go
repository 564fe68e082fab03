package checkout

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"github.com/joao-fontenele/storefront/internal/domain"
)

// OrderStore opens the transaction that scopes the header and item writes of
// one commit.
type OrderStore interface {
	Begin(ctx context.Context) (Tx, error)
}

type Tx interface {
	CreateOrder(ctx context.Context, order *domain.Order) error
	InsertOrderItems(ctx context.Context, items []domain.OrderItem) error
	Commit() error
	Rollback() error
}

// Inventory applies stock decrements. DecrementStock must only succeed when
// the product still has at least quantity units, and must do so atomically.
type Inventory interface {
	DecrementStock(ctx context.Context, productID string, quantity int) error
}

// StockWarning records a decrement that did not apply after the order was
// committed.
type StockWarning struct {
	ProductID string
	Quantity  int
	Err       error
}

type Receipt struct {
	OrderID   string
	Total     decimal.Decimal
	CreatedAt time.Time
	Items     []domain.OrderItem
	Warnings  []StockWarning
}

type Sequencer struct {
	orders    OrderStore
	inventory Inventory
	logger    *slog.Logger
	now       func() time.Time
	newID     func() string

	stockWarnings metric.Int64Counter
}

type SequencerOption func(*Sequencer)

func WithClock(now func() time.Time) SequencerOption {
	return func(s *Sequencer) { s.now = now }
}

func WithIDGenerator(newID func() string) SequencerOption {
	return func(s *Sequencer) { s.newID = newID }
}

func NewSequencer(orders OrderStore, inventory Inventory, logger *slog.Logger, opts ...SequencerOption) *Sequencer {
	s := &Sequencer{
		orders:    orders,
		inventory: inventory,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.stockWarnings, _ = meter.Int64Counter("checkout.stock.warnings",
		metric.WithDescription("Stock decrements that did not apply after an order was committed"))

	return s
}

// Commit persists the order header and its items in one transaction, then
// decrements stock item by item. Decrement failures are returned as warnings
// on a successful receipt.
func (s *Sequencer) Commit(ctx context.Context, userID string, cart *ValidatedCart) (*Receipt, error) {
	ctx, span := tracer.Start(ctx, "checkout.commit")
	defer span.End()

	receipt, err := s.persist(ctx, userID, cart)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.String("order.id", receipt.OrderID))

	for _, item := range cart.Items {
		if err := s.inventory.DecrementStock(ctx, item.ProductID, item.Quantity); err != nil {
			s.logger.Warn("failed to decrement stock",
				"error", err, "order_id", receipt.OrderID, "product_id", item.ProductID, "quantity", item.Quantity)
			receipt.Warnings = append(receipt.Warnings, StockWarning{
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
				Err:       err,
			})
			if s.stockWarnings != nil {
				s.stockWarnings.Add(ctx, 1, metric.WithAttributes(attribute.Bool("insufficient", errors.Is(err, ErrInsufficientStock))))
			}
		}
	}

	return receipt, nil
}

func (s *Sequencer) persist(ctx context.Context, userID string, cart *ValidatedCart) (*Receipt, error) {
	now := s.now()
	order := &domain.Order{
		ID:              s.newID(),
		UserID:          userID,
		TotalAmount:     cart.Total,
		Status:          domain.OrderStatusPending,
		ShippingAddress: cart.ShippingAddress,
		PaymentMethod:   cart.PaymentMethod,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	tx, err := s.orders.Begin(ctx)
	if err != nil {
		return nil, &OrderCreateError{Err: err}
	}

	if err := tx.CreateOrder(ctx, order); err != nil {
		_ = tx.Rollback()
		return nil, &OrderCreateError{Err: err}
	}

	items := make([]domain.OrderItem, 0, len(cart.Items))
	for _, item := range cart.Items {
		items = append(items, domain.OrderItem{
			ID:          s.newID(),
			OrderID:     order.ID,
			ProductID:   item.ProductID,
			Quantity:    item.Quantity,
			PriceAtTime: item.UnitPrice,
		})
	}

	if err := tx.InsertOrderItems(ctx, items); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return nil, &PartialOrderError{OrderID: order.ID, Err: err, RollbackErr: rbErr}
		}
		return nil, &OrderItemsInsertError{OrderID: order.ID, Err: err}
	}

	if err := tx.Commit(); err != nil {
		return nil, &OrderCreateError{Err: err}
	}

	return &Receipt{
		OrderID:   order.ID,
		Total:     order.TotalAmount,
		CreatedAt: order.CreatedAt,
		Items:     items,
	}, nil
}
