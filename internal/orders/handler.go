package orders

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/storefront/internal/auth"
	"github.com/joao-fontenele/storefront/internal/checkout"
	"github.com/joao-fontenele/storefront/internal/domain"
)

type Placer interface {
	PlaceOrder(ctx context.Context, userID string, cart domain.Cart) (*checkout.Receipt, error)
}

type Store interface {
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Order, error)
	ListAll(ctx context.Context) ([]domain.Order, error)
	UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) (*domain.Order, error)
}

type Publisher interface {
	Publish(ctx context.Context, key string, event any) error
}

type Handler struct {
	placer   Placer
	repo     Store
	created  Publisher
	orphaned Publisher
	logger   *slog.Logger
}

type Option func(*Handler)

// WithCreatedPublisher announces every committed order.
func WithCreatedPublisher(p Publisher) Option {
	return func(h *Handler) { h.created = p }
}

// WithOrphanedPublisher announces headers that may have been left without items.
func WithOrphanedPublisher(p Publisher) Option {
	return func(h *Handler) { h.orphaned = p }
}

func NewHandler(placer Placer, repo Store, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{
		placer: placer,
		repo:   repo,
		logger: logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

type createOrderItem struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
	// Price is accepted for compatibility with existing clients and ignored.
	Price json.RawMessage `json:"price,omitempty"`
}

type createOrderRequest struct {
	Items           []createOrderItem `json:"items"`
	ShippingAddress json.RawMessage   `json:"shippingAddress"`
	PaymentMethod   string            `json:"paymentMethod"`
}

type stockWarningResponse struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
	Reason    string `json:"reason"`
}

type createOrderResponse struct {
	Message       string                 `json:"message"`
	OrderID       string                 `json:"orderId"`
	TotalAmount   decimal.Decimal        `json:"totalAmount"`
	StockWarnings []stockWarningResponse `json:"stockWarnings,omitempty"`
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	cart := domain.Cart{
		Items:           make([]domain.LineItem, 0, len(req.Items)),
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
	}
	for _, item := range req.Items {
		cart.Items = append(cart.Items, domain.LineItem{ProductID: item.ProductID, Quantity: item.Quantity})
	}

	receipt, err := h.placer.PlaceOrder(r.Context(), principal.ID, cart)
	if err != nil {
		h.writeCheckoutError(w, r, err)
		return
	}

	resp := createOrderResponse{
		Message:     "order created successfully",
		OrderID:     receipt.OrderID,
		TotalAmount: receipt.Total,
	}
	warnings := make([]domain.StockWarningEvent, 0, len(receipt.Warnings))
	for _, wn := range receipt.Warnings {
		reason := stockWarningReason(wn.Err)
		resp.StockWarnings = append(resp.StockWarnings, stockWarningResponse{
			ProductID: wn.ProductID,
			Quantity:  wn.Quantity,
			Reason:    reason,
		})
		warnings = append(warnings, domain.StockWarningEvent{
			ProductID: wn.ProductID,
			Quantity:  wn.Quantity,
			Reason:    reason,
		})
	}

	if h.created != nil {
		event := domain.OrderCreatedEvent{
			OrderID:       receipt.OrderID,
			UserID:        principal.ID,
			Email:         principal.Email,
			TotalAmount:   receipt.Total,
			Items:         receipt.Items,
			StockWarnings: warnings,
			Timestamp:     receipt.CreatedAt,
		}
		if err := h.created.Publish(r.Context(), receipt.OrderID, event); err != nil {
			h.logger.Error("failed to publish order created event", "error", err, "order_id", receipt.OrderID)
		}
	}

	h.logger.Info("order created",
		"order_id", receipt.OrderID, "user_id", principal.ID, "total", receipt.Total.String(), "stock_warnings", len(receipt.Warnings))
	h.writeJSON(w, http.StatusCreated, resp)
}

func stockWarningReason(err error) string {
	switch {
	case errors.Is(err, checkout.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, checkout.ErrProductNotFound):
		return "product_not_found"
	default:
		return "stock_update_failed"
	}
}

func (h *Handler) writeCheckoutError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		partial  *checkout.PartialOrderError
		itemsErr *checkout.OrderItemsInsertError
		create   *checkout.OrderCreateError
	)

	switch {
	case errors.Is(err, checkout.ErrValidation):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &partial):
		h.logger.Error("order partially created", "error", err, "order_id", partial.OrderID)
		h.publishOrphaned(r.Context(), partial.OrderID, err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error":   "order was created but its items could not be saved",
			"orderId": partial.OrderID,
		})
	case errors.As(err, &itemsErr):
		h.logger.Error("failed to add order items", "error", err, "order_id", itemsErr.OrderID)
		h.writeError(w, http.StatusBadRequest, "failed to add order items")
	case errors.As(err, &create):
		h.logger.Error("failed to create order", "error", err)
		h.writeError(w, http.StatusBadRequest, "failed to create order")
	default:
		h.logger.Error("checkout failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func (h *Handler) publishOrphaned(ctx context.Context, orderID string, cause error) {
	if h.orphaned == nil {
		return
	}
	event := domain.OrderOrphanedEvent{
		OrderID:   orderID,
		Reason:    cause.Error(),
		Timestamp: time.Now().UTC(),
	}
	if err := h.orphaned.Publish(ctx, orderID, event); err != nil {
		h.logger.Error("failed to publish order orphaned event", "error", err, "order_id", orderID)
	}
}

func (h *Handler) HandleMyOrders(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	orders, err := h.repo.ListByUser(r.Context(), principal.ID)
	if err != nil {
		h.logger.Error("failed to list user orders", "error", err, "user_id", principal.ID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, orders)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id := chi.URLParam(r, "id")
	order, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get order", "error", err, "id", id)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if order == nil {
		h.writeError(w, http.StatusNotFound, "order not found")
		return
	}
	if order.UserID != principal.ID && !principal.IsAdmin {
		h.writeError(w, http.StatusForbidden, "unauthorized")
		return
	}

	h.writeJSON(w, http.StatusOK, order)
}

func (h *Handler) HandleListAll(w http.ResponseWriter, r *http.Request) {
	orders, err := h.repo.ListAll(r.Context())
	if err != nil {
		h.logger.Error("failed to list orders", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("orders listed", "count", len(orders))
	h.writeJSON(w, http.StatusOK, orders)
}

type updateStatusRequest struct {
	Status domain.OrderStatus `json:"status"`
}

func (h *Handler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Status == "" {
		h.writeError(w, http.StatusBadRequest, "status is required")
		return
	}
	if !req.Status.Valid() {
		h.writeError(w, http.StatusBadRequest, "invalid status value")
		return
	}

	order, err := h.repo.UpdateStatus(r.Context(), id, req.Status)
	if err != nil {
		h.logger.Error("failed to update order status", "error", err, "id", id)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if order == nil {
		h.writeError(w, http.StatusNotFound, "order not found")
		return
	}

	h.logger.Info("order status updated", "order_id", order.ID, "status", order.Status)
	h.writeJSON(w, http.StatusOK, map[string]any{
		"message": "order status updated successfully",
		"order":   order,
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
