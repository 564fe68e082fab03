package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/joao-fontenele/storefront/internal/auth"
	"github.com/joao-fontenele/storefront/internal/checkout"
	"github.com/joao-fontenele/storefront/internal/config"
	"github.com/joao-fontenele/storefront/internal/messaging"
	"github.com/joao-fontenele/storefront/internal/orders"
	"github.com/joao-fontenele/storefront/internal/products"
	"github.com/joao-fontenele/storefront/internal/telemetry"
)

const (
	serviceName    = "storefront-api"
	serviceVersion = "0.1.0"
)

func main() {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.LoadAPI()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, cfg.OTLPEndpoint, serviceName, serviceVersion)
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(ctx) }()

	metricsHandler, shutdownMeter, err := telemetry.InitMeterProvider(serviceName, serviceVersion)
	if err != nil {
		logger.Error("failed to initialize meter", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownMeter(ctx) }()

	db, err := telemetry.OpenDB(ctx, "postgres", cfg.PostgresURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	var denylist auth.Denylist
	if cfg.RedisURL != "" {
		redisDenylist, err := auth.NewRedisDenylist(cfg.RedisURL)
		if err != nil {
			logger.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer func() { _ = redisDenylist.Close() }()
		denylist = redisDenylist
	} else {
		logger.Warn("REDIS_URL not set, logout will not revoke tokens")
	}

	var orderOpts []orders.Option
	if len(cfg.KafkaBrokers) > 0 {
		created := messaging.NewProducer(cfg.KafkaBrokers, messaging.TopicOrderCreated)
		defer func() { _ = created.Close() }()
		orphaned := messaging.NewProducer(cfg.KafkaBrokers, messaging.TopicOrderOrphaned)
		defer func() { _ = orphaned.Close() }()
		orderOpts = append(orderOpts, orders.WithCreatedPublisher(created), orders.WithOrphanedPublisher(orphaned))
	} else {
		logger.Warn("KAFKA_BROKERS not set, order events will not be published")
	}

	productRepo := products.NewProductRepository(db)
	orderRepo := orders.NewOrderRepository(db)
	userRepo := auth.NewUserRepository(db)
	tokens := auth.NewTokens([]byte(cfg.JWTSecret), cfg.TokenTTL)

	service := checkout.NewService(
		checkout.NewValidator(productRepo),
		checkout.NewSequencer(orderRepo, productRepo, logger),
	)

	router := newRouter(routes{
		auth:     auth.NewHandler(userRepo, tokens, denylist, cfg.CookieSecure, logger),
		authn:    auth.NewMiddleware(tokens, userRepo, denylist, logger),
		products: products.NewHandler(productRepo, logger),
		orders:   orders.NewHandler(service, orderRepo, logger, orderOpts...),
		metrics:  metricsHandler,
		ping:     db.PingContext,
	})

	server := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: otelhttp.NewHandler(router, serviceName,
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}),
		),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 35 * time.Second,
	}

	go func() {
		logger.Info("starting api", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}
