package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/joao-fontenele/storefront/internal/domain"
)

// NotificationHandler turns order.created events into mail: a confirmation
// for the customer and, when stock could not be taken for some item, an
// alert for the operator.
type NotificationHandler struct {
	emailServiceURL string
	opsEmail        string
	httpClient      *http.Client
	logger          *slog.Logger
}

// NewNotificationHandler builds the handler. An empty opsEmail disables stock
// alerts.
func NewNotificationHandler(emailServiceURL, opsEmail string, client *http.Client, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{
		emailServiceURL: strings.TrimRight(emailServiceURL, "/"),
		opsEmail:        opsEmail,
		httpClient:      client,
		logger:          logger,
	}
}

type emailMessage struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

func (h *NotificationHandler) Handle(ctx context.Context, payload []byte) error {
	var event domain.OrderCreatedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("unmarshal order created event: %w", err)
	}

	h.logger.Info("processing order created event",
		"order_id", event.OrderID, "user_id", event.UserID, "stock_warnings", len(event.StockWarnings))

	if event.Email == "" {
		h.logger.Warn("order created event has no recipient", "order_id", event.OrderID)
	} else if err := h.sendEmail(ctx, confirmationEmail(event)); err != nil {
		h.logger.Error("failed to send confirmation email", "error", err, "order_id", event.OrderID)
		return fmt.Errorf("send confirmation email: %w", err)
	}

	if len(event.StockWarnings) > 0 && h.opsEmail != "" {
		if err := h.sendEmail(ctx, stockAlertEmail(h.opsEmail, event)); err != nil {
			h.logger.Error("failed to send stock alert", "error", err, "order_id", event.OrderID)
			return fmt.Errorf("send stock alert: %w", err)
		}
	}

	h.logger.Info("order notifications sent", "order_id", event.OrderID)
	return nil
}

func confirmationEmail(event domain.OrderCreatedEvent) emailMessage {
	units := 0
	for _, item := range event.Items {
		units += item.Quantity
	}
	return emailMessage{
		To:      event.Email,
		Subject: "Order Confirmation: " + event.OrderID,
		Body: fmt.Sprintf("Your order %s with %d item(s) totalling %s has been received.",
			event.OrderID, units, event.TotalAmount.StringFixed(2)),
	}
}

func stockAlertEmail(to string, event domain.OrderCreatedEvent) emailMessage {
	var b strings.Builder
	fmt.Fprintf(&b, "Order %s was committed but stock could not be taken for:\n", event.OrderID)
	for _, w := range event.StockWarnings {
		fmt.Fprintf(&b, "- product %s, quantity %d: %s\n", w.ProductID, w.Quantity, w.Reason)
	}
	return emailMessage{
		To:      to,
		Subject: "Stock warning: " + event.OrderID,
		Body:    b.String(),
	}
}

func (h *NotificationHandler) sendEmail(ctx context.Context, msg emailMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.emailServiceURL+"/send", bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("email service returned status %d", resp.StatusCode)
	}

	return nil
}
