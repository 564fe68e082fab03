package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/joao-fontenele/storefront/internal/auth"
	"github.com/joao-fontenele/storefront/internal/orders"
	"github.com/joao-fontenele/storefront/internal/products"
	"github.com/joao-fontenele/storefront/internal/telemetry"
)

type routes struct {
	auth     *auth.Handler
	authn    *auth.Middleware
	products *products.Handler
	orders   *orders.Handler
	metrics  http.Handler
	ping     func(ctx context.Context) error
}

func newRouter(rt routes) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(telemetry.RouteAttributes)
	r.Use(middleware.Timeout(30 * time.Second))

	if rt.metrics != nil {
		r.Method(http.MethodGet, "/metrics", rt.metrics)
	}
	r.Get("/healthz", healthz(rt.ping))

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/signup", rt.auth.HandleSignup)
			r.Post("/login", rt.auth.HandleLogin)
			r.Post("/logout", rt.auth.HandleLogout)
		})

		r.Route("/products", func(r chi.Router) {
			r.Get("/", rt.products.HandleList)
			r.Get("/{id}", rt.products.HandleGet)

			r.Group(func(r chi.Router) {
				r.Use(rt.authn.Authenticate, auth.RequireAdmin)
				r.Post("/", rt.products.HandleCreate)
				r.Put("/{id}", rt.products.HandleUpdate)
				r.Delete("/{id}", rt.products.HandleDelete)
			})
		})

		r.Route("/orders", func(r chi.Router) {
			r.Use(rt.authn.Authenticate)
			r.Post("/", rt.orders.HandleCreate)
			r.Get("/my-orders", rt.orders.HandleMyOrders)
			r.Get("/{id}", rt.orders.HandleGet)

			r.Group(func(r chi.Router) {
				r.Use(auth.RequireAdmin)
				r.Get("/", rt.orders.HandleListAll)
				r.Patch("/{id}/status", rt.orders.HandleUpdateStatus)
			})
		})
	})

	return r
}

func healthz(ping func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, body := http.StatusOK, map[string]string{"status": "ok"}
		if ping != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := ping(ctx); err != nil {
				status, body = http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()}
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}
}
