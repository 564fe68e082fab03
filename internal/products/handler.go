package products

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/storefront/internal/domain"
)

type Store interface {
	List(ctx context.Context, f Filter) ([]domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	Create(ctx context.Context, p *domain.Product) error
	Update(ctx context.Context, id string, patch Patch) (*domain.Product, error)
	Delete(ctx context.Context, id string) (bool, error)
}

type Handler struct {
	repo   Store
	logger *slog.Logger
}

func NewHandler(repo Store, logger *slog.Logger) *Handler {
	return &Handler{
		repo:   repo,
		logger: logger,
	}
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	products, err := h.repo.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("failed to list products", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("products listed", "count", len(products))
	h.writeJSON(w, http.StatusOK, products)
}

func parseFilter(r *http.Request) (Filter, error) {
	q := r.URL.Query()
	f := Filter{
		Category:   q.Get("category"),
		Search:     q.Get("search"),
		Sort:       q.Get("sort"),
		Descending: strings.EqualFold(q.Get("order"), "desc"),
	}

	if f.Sort != "" {
		if _, ok := sortColumns[f.Sort]; !ok {
			return Filter{}, errors.New("invalid sort field")
		}
	}

	for _, bound := range []struct {
		key  string
		dest **decimal.Decimal
	}{
		{"minPrice", &f.MinPrice},
		{"maxPrice", &f.MaxPrice},
	} {
		raw := q.Get(bound.key)
		if raw == "" {
			continue
		}
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return Filter{}, errors.New("invalid " + bound.key)
		}
		*bound.dest = &d
	}

	return f, nil
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	product, err := h.repo.GetProduct(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get product", "error", err, "id", id)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if product == nil {
		h.writeError(w, http.StatusNotFound, "product not found")
		return
	}

	h.writeJSON(w, http.StatusOK, product)
}

type productRequest struct {
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	Price       *decimal.Decimal `json:"price"`
	Category    *string          `json:"category"`
	Stock       *int             `json:"stock"`
	ImageURL    *string          `json:"image_url"`
}

func (req productRequest) validate() error {
	if req.Price != nil && req.Price.IsNegative() {
		return errors.New("price must not be negative")
	}
	if req.Stock != nil && *req.Stock < 0 {
		return errors.New("stock must not be negative")
	}
	return nil
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Name == nil || *req.Name == "" || req.Price == nil {
		h.writeError(w, http.StatusBadRequest, "name and price are required fields")
		return
	}
	if err := req.validate(); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	product := &domain.Product{
		Name:  *req.Name,
		Price: *req.Price,
	}
	if req.Description != nil {
		product.Description = *req.Description
	}
	if req.Category != nil {
		product.Category = *req.Category
	}
	if req.Stock != nil {
		product.Stock = *req.Stock
	}
	if req.ImageURL != nil {
		product.ImageURL = *req.ImageURL
	}

	if err := h.repo.Create(r.Context(), product); err != nil {
		h.logger.Error("failed to create product", "error", err)
		h.writeError(w, http.StatusBadRequest, "failed to create product")
		return
	}

	h.logger.Info("product created", "product_id", product.ID)
	h.writeJSON(w, http.StatusCreated, product)
}

func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req productRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name != nil && *req.Name == "" {
		h.writeError(w, http.StatusBadRequest, "name must not be empty")
		return
	}
	if err := req.validate(); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	product, err := h.repo.Update(r.Context(), id, Patch{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Category:    req.Category,
		Stock:       req.Stock,
		ImageURL:    req.ImageURL,
	})
	if err != nil {
		h.logger.Error("failed to update product", "error", err, "id", id)
		h.writeError(w, http.StatusBadRequest, "failed to update product")
		return
	}

	if product == nil {
		h.writeError(w, http.StatusNotFound, "product not found")
		return
	}

	h.logger.Info("product updated", "product_id", product.ID)
	h.writeJSON(w, http.StatusOK, product)
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	deleted, err := h.repo.Delete(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrProductInUse) {
			h.writeError(w, http.StatusConflict, err.Error())
			return
		}
		h.logger.Error("failed to delete product", "error", err, "id", id)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if !deleted {
		h.writeError(w, http.StatusNotFound, "product not found")
		return
	}

	h.logger.Info("product deleted", "product_id", id)
	h.writeJSON(w, http.StatusOK, map[string]string{"message": "product deleted successfully"})
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
