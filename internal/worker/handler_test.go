package worker

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joao-fontenele/storefront/internal/domain"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type mailbox struct {
	mu       sync.Mutex
	messages []emailMessage
	status   int
}

func (m *mailbox) server(t *testing.T) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/send", r.URL.Path)
		var msg emailMessage
		if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		m.mu.Lock()
		m.messages = append(m.messages, msg)
		status := m.status
		m.mu.Unlock()
		if status == 0 {
			status = http.StatusAccepted
		}
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func (m *mailbox) sent() []emailMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]emailMessage(nil), m.messages...)
}

func orderEvent(warnings ...domain.StockWarningEvent) []byte {
	data, _ := json.Marshal(domain.OrderCreatedEvent{
		OrderID:     "o1",
		UserID:      "u1",
		Email:       "buyer@example.com",
		TotalAmount: decimal.RequireFromString("30"),
		Items: []domain.OrderItem{
			{ProductID: "p1", Quantity: 2},
			{ProductID: "p2", Quantity: 4},
		},
		StockWarnings: warnings,
		Timestamp:     time.Now().UTC(),
	})
	return data
}

func TestNotificationHandler_Handle(t *testing.T) {
	ctx := context.Background()

	t.Run("sends confirmation", func(t *testing.T) {
		box := &mailbox{}
		srv := box.server(t)
		h := NewNotificationHandler(srv.URL, "ops@example.com", srv.Client(), discardLogger)

		require.NoError(t, h.Handle(ctx, orderEvent()))

		sent := box.sent()
		require.Len(t, sent, 1)
		assert.Equal(t, "buyer@example.com", sent[0].To)
		assert.Contains(t, sent[0].Subject, "o1")
		assert.Contains(t, sent[0].Body, "6 item(s)")
		assert.Contains(t, sent[0].Body, "30.00")
	})

	t.Run("alerts operator on stock warnings", func(t *testing.T) {
		box := &mailbox{}
		srv := box.server(t)
		h := NewNotificationHandler(srv.URL, "ops@example.com", srv.Client(), discardLogger)

		err := h.Handle(ctx, orderEvent(domain.StockWarningEvent{ProductID: "p2", Quantity: 4, Reason: "insufficient_stock"}))
		require.NoError(t, err)

		sent := box.sent()
		require.Len(t, sent, 2)
		assert.Equal(t, "ops@example.com", sent[1].To)
		assert.Contains(t, sent[1].Body, "product p2, quantity 4: insufficient_stock")
	})

	t.Run("no alert without operator address", func(t *testing.T) {
		box := &mailbox{}
		srv := box.server(t)
		h := NewNotificationHandler(srv.URL, "", srv.Client(), discardLogger)

		err := h.Handle(ctx, orderEvent(domain.StockWarningEvent{ProductID: "p2", Quantity: 4, Reason: "insufficient_stock"}))
		require.NoError(t, err)
		assert.Len(t, box.sent(), 1)
	})

	t.Run("mail service failure is returned", func(t *testing.T) {
		box := &mailbox{status: http.StatusInternalServerError}
		srv := box.server(t)
		h := NewNotificationHandler(srv.URL, "", srv.Client(), discardLogger)

		assert.Error(t, h.Handle(ctx, orderEvent()))
	})

	t.Run("invalid payload", func(t *testing.T) {
		h := NewNotificationHandler("http://unused", "", http.DefaultClient, discardLogger)
		assert.Error(t, h.Handle(ctx, []byte("{")))
	})
}
