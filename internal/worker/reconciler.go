package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/joao-fontenele/storefront/internal/domain"
)

type OrderJanitor interface {
	DeleteIfEmpty(ctx context.Context, orderID string) (bool, error)
}

// Reconciler removes order headers announced on order.orphaned, provided they
// still have no items. Replays are harmless.
type Reconciler struct {
	orders OrderJanitor
	logger *slog.Logger
}

func NewReconciler(orders OrderJanitor, logger *slog.Logger) *Reconciler {
	return &Reconciler{orders: orders, logger: logger}
}

func (r *Reconciler) Handle(ctx context.Context, payload []byte) error {
	var event domain.OrderOrphanedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("unmarshal order orphaned event: %w", err)
	}

	deleted, err := r.orders.DeleteIfEmpty(ctx, event.OrderID)
	if err != nil {
		r.logger.Error("failed to delete orphaned order", "error", err, "order_id", event.OrderID)
		return fmt.Errorf("delete orphaned order %s: %w", event.OrderID, err)
	}

	if deleted {
		r.logger.Info("orphaned order deleted", "order_id", event.OrderID, "reason", event.Reason)
	} else {
		r.logger.Info("orphaned order kept", "order_id", event.OrderID)
	}
	return nil
}
