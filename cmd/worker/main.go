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
	"golang.org/x/sync/errgroup"

	"github.com/joao-fontenele/storefront/internal/config"
	"github.com/joao-fontenele/storefront/internal/messaging"
	"github.com/joao-fontenele/storefront/internal/orders"
	"github.com/joao-fontenele/storefront/internal/telemetry"
	"github.com/joao-fontenele/storefront/internal/worker"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.LoadWorker()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, cfg.OTLPEndpoint, "storefront-worker", "0.1.0")
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(context.Background()) }()

	httpClient := &http.Client{
		Timeout:   10 * time.Second,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
	notifications := worker.NewNotificationHandler(cfg.EmailServiceURL, cfg.OpsEmail, httpClient, logger)

	created := messaging.NewConsumer(cfg.KafkaBrokers, messaging.TopicOrderCreated, "notification-worker", logger)
	defer func() { _ = created.Close() }()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return created.Consume(gctx, notifications.Handle)
	})

	if cfg.PostgresURL != "" {
		db, err := telemetry.OpenDB(ctx, "postgres", cfg.PostgresURL)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer func() { _ = db.Close() }()

		reconciler := worker.NewReconciler(orders.NewOrderRepository(db), logger)
		orphaned := messaging.NewConsumer(cfg.KafkaBrokers, messaging.TopicOrderOrphaned, "order-reconciler", logger)
		defer func() { _ = orphaned.Close() }()

		g.Go(func() error {
			return orphaned.Consume(gctx, reconciler.Handle)
		})
	} else {
		logger.Warn("POSTGRES_URL not set, orphaned orders will not be reconciled")
	}

	logger.Info("starting worker", "brokers", cfg.KafkaBrokers)

	if err := g.Wait(); err != nil {
		logger.Error("consumer error", "error", err)
		os.Exit(1)
	}
	logger.Info("worker stopped")
}
