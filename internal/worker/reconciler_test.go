package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/memstore"
)

type failingJanitor struct{}

func (failingJanitor) DeleteIfEmpty(context.Context, string) (bool, error) {
	return false, errors.New("db down")
}

func orphanEvent(id string) []byte {
	data, _ := json.Marshal(domain.OrderOrphanedEvent{OrderID: id, Reason: "rollback failed", Timestamp: time.Now().UTC()})
	return data
}

func TestReconciler_Handle(t *testing.T) {
	ctx := context.Background()

	t.Run("deletes empty header and tolerates replay", func(t *testing.T) {
		store := memstore.New()
		store.PutOrder(domain.Order{ID: "o1", UserID: "u1", Status: domain.OrderStatusPending})
		r := NewReconciler(store, discardLogger)

		require.NoError(t, r.Handle(ctx, orphanEvent("o1")))
		assert.Nil(t, store.Order("o1"))

		require.NoError(t, r.Handle(ctx, orphanEvent("o1")))
	})

	t.Run("keeps order that has items", func(t *testing.T) {
		store := memstore.New()
		tx, err := store.Begin(ctx)
		require.NoError(t, err)
		require.NoError(t, tx.CreateOrder(ctx, &domain.Order{ID: "o2", UserID: "u1"}))
		require.NoError(t, tx.InsertOrderItems(ctx, []domain.OrderItem{{ID: "i1", OrderID: "o2", ProductID: "p1", Quantity: 1}}))
		require.NoError(t, tx.Commit())

		require.NoError(t, NewReconciler(store, discardLogger).Handle(ctx, orphanEvent("o2")))
		assert.NotNil(t, store.Order("o2"))
	})

	t.Run("storage error is returned", func(t *testing.T) {
		assert.Error(t, NewReconciler(failingJanitor{}, discardLogger).Handle(ctx, orphanEvent("o3")))
	})

	t.Run("invalid payload", func(t *testing.T) {
		assert.Error(t, NewReconciler(failingJanitor{}, discardLogger).Handle(ctx, []byte("nope")))
	})
}
