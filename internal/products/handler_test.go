package products

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joao-fontenele/storefront/internal/domain"
)

type fakeStore struct {
	products   map[string]domain.Product
	lastFilter Filter
	lastPatch  Patch
	deleteErr  error
}

func (f *fakeStore) List(_ context.Context, filter Filter) ([]domain.Product, error) {
	f.lastFilter = filter
	out := []domain.Product{}
	for _, p := range f.products {
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeStore) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (f *fakeStore) Create(_ context.Context, p *domain.Product) error {
	p.ID = "new-id"
	f.products[p.ID] = *p
	return nil
}

func (f *fakeStore) Update(_ context.Context, id string, patch Patch) (*domain.Product, error) {
	f.lastPatch = patch
	p, ok := f.products[id]
	if !ok {
		return nil, nil
	}
	if patch.Name != nil {
		p.Name = *patch.Name
	}
	if patch.Stock != nil {
		p.Stock = *patch.Stock
	}
	return &p, nil
}

func (f *fakeStore) Delete(_ context.Context, id string) (bool, error) {
	if f.deleteErr != nil {
		return false, f.deleteErr
	}
	_, ok := f.products[id]
	delete(f.products, id)
	return ok, nil
}

func newTestRouter(store *fakeStore) http.Handler {
	h := NewHandler(store, slog.New(slog.NewTextHandler(io.Discard, nil)))
	r := chi.NewRouter()
	r.Get("/products", h.HandleList)
	r.Get("/products/{id}", h.HandleGet)
	r.Post("/products", h.HandleCreate)
	r.Put("/products/{id}", h.HandleUpdate)
	r.Delete("/products/{id}", h.HandleDelete)
	return r
}

func seededStore() *fakeStore {
	return &fakeStore{products: map[string]domain.Product{
		"p1": {ID: "p1", Name: "Kettle", Price: decimal.RequireFromString("24.99"), Stock: 3},
	}}
}

func TestHandler_HandleList(t *testing.T) {
	t.Run("parses filters", func(t *testing.T) {
		store := seededStore()
		req := httptest.NewRequest(http.MethodGet, "/products?category=kitchen&minPrice=5&maxPrice=30.5&search=ket&sort=price&order=DESC", nil)
		rec := httptest.NewRecorder()

		newTestRouter(store).ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "kitchen", store.lastFilter.Category)
		assert.Equal(t, "ket", store.lastFilter.Search)
		assert.Equal(t, "price", store.lastFilter.Sort)
		assert.True(t, store.lastFilter.Descending)
		require.NotNil(t, store.lastFilter.MinPrice)
		assert.True(t, store.lastFilter.MinPrice.Equal(decimal.NewFromInt(5)))
		require.NotNil(t, store.lastFilter.MaxPrice)
		assert.True(t, store.lastFilter.MaxPrice.Equal(decimal.RequireFromString("30.5")))

		var got []domain.Product
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
		assert.Len(t, got, 1)
	})

	t.Run("rejects unknown sort column", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/products?sort=password", nil)
		rec := httptest.NewRecorder()

		newTestRouter(seededStore()).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("rejects malformed price bound", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/products?minPrice=cheap", nil)
		rec := httptest.NewRecorder()

		newTestRouter(seededStore()).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandler_HandleGet(t *testing.T) {
	t.Run("returns product", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/products/p1", nil)
		rec := httptest.NewRecorder()

		newTestRouter(seededStore()).ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var got domain.Product
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
		assert.Equal(t, "Kettle", got.Name)
		assert.True(t, got.Price.Equal(decimal.RequireFromString("24.99")))
	})

	t.Run("returns 404 for unknown product", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/products/nope", nil)
		rec := httptest.NewRecorder()

		newTestRouter(seededStore()).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestHandler_HandleCreate(t *testing.T) {
	t.Run("creates product with string or numeric price", func(t *testing.T) {
		for _, body := range []string{
			`{"name":"Mug","price":"7.50","stock":12,"category":"kitchen"}`,
			`{"name":"Mug","price":7.5,"stock":12,"category":"kitchen"}`,
		} {
			store := seededStore()
			req := httptest.NewRequest(http.MethodPost, "/products", strings.NewReader(body))
			rec := httptest.NewRecorder()

			newTestRouter(store).ServeHTTP(rec, req)

			require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
			created := store.products["new-id"]
			assert.Equal(t, "Mug", created.Name)
			assert.Equal(t, 12, created.Stock)
			assert.True(t, created.Price.Equal(decimal.RequireFromString("7.5")))
		}
	})

	t.Run("requires name and price", func(t *testing.T) {
		for _, body := range []string{`{"price":1}`, `{"name":"Mug"}`, `{"name":"","price":1}`} {
			req := httptest.NewRequest(http.MethodPost, "/products", strings.NewReader(body))
			rec := httptest.NewRecorder()

			newTestRouter(seededStore()).ServeHTTP(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		}
	})

	t.Run("rejects negative price and stock", func(t *testing.T) {
		for _, body := range []string{`{"name":"Mug","price":-1}`, `{"name":"Mug","price":1,"stock":-2}`} {
			req := httptest.NewRequest(http.MethodPost, "/products", strings.NewReader(body))
			rec := httptest.NewRecorder()

			newTestRouter(seededStore()).ServeHTTP(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		}
	})
}

func TestHandler_HandleUpdate(t *testing.T) {
	t.Run("applies partial update", func(t *testing.T) {
		store := seededStore()
		req := httptest.NewRequest(http.MethodPut, "/products/p1", strings.NewReader(`{"stock":9}`))
		rec := httptest.NewRecorder()

		newTestRouter(store).ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Nil(t, store.lastPatch.Name)
		assert.Nil(t, store.lastPatch.Price)
		require.NotNil(t, store.lastPatch.Stock)
		assert.Equal(t, 9, *store.lastPatch.Stock)
	})

	t.Run("returns 404 for unknown product", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPut, "/products/nope", strings.NewReader(`{"name":"x"}`))
		rec := httptest.NewRecorder()

		newTestRouter(seededStore()).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestHandler_HandleDelete(t *testing.T) {
	t.Run("deletes product", func(t *testing.T) {
		store := seededStore()
		req := httptest.NewRequest(http.MethodDelete, "/products/p1", nil)
		rec := httptest.NewRecorder()

		newTestRouter(store).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, store.products)
	})

	t.Run("returns 409 when product is referenced", func(t *testing.T) {
		store := seededStore()
		store.deleteErr = ErrProductInUse
		req := httptest.NewRequest(http.MethodDelete, "/products/p1", nil)
		rec := httptest.NewRecorder()

		newTestRouter(store).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("returns 404 for unknown product", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodDelete, "/products/nope", nil)
		rec := httptest.NewRecorder()

		newTestRouter(seededStore()).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
