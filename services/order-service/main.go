package main

import (
	"context"

	"github.com/ashendes/order-fulfillment/internal/cache"
	"github.com/ashendes/order-fulfillment/internal/config"
	"github.com/ashendes/order-fulfillment/internal/gateway"
	"github.com/ashendes/order-fulfillment/internal/order"
	"github.com/ashendes/order-fulfillment/internal/patterns"
	"github.com/ashendes/order-fulfillment/internal/sagalog/sqlite"
	"github.com/ashendes/order-fulfillment/internal/server"
	"github.com/ashendes/order-fulfillment/internal/storage/memory"
	"github.com/ashendes/order-fulfillment/internal/storage/postgres"
	log "github.com/sirupsen/logrus"
)

const serviceName = "order-service"

func main() {
	cfg, err := config.LoadOrder()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	server.SetupLogging(cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repo, closeRepo := openOrders(ctx, cfg.DatabaseURL)
	defer closeRepo()

	customers := gateway.NewCustomerGateway(gateway.Options{
		BaseURL:      cfg.CustomerServiceURL,
		Timeout:      cfg.CustomerServiceTimeout,
		BulkheadSize: cfg.BulkheadSize,
		Service:      serviceName,
	})
	payments := gateway.NewPaymentGateway(gateway.Options{
		BaseURL:      cfg.PaymentServiceURL,
		Timeout:      cfg.PaymentServiceTimeout,
		BulkheadSize: cfg.BulkheadSize,
		Service:      serviceName,
	})
	breaker := patterns.NewCountingBreaker("payment", serviceName, cfg.BreakerFailureThreshold, cfg.BreakerCoolDown)

	var opts []order.SagaOption
	if cfg.RedisAddr != "" {
		keys := cache.NewIdempotencyStore(cfg.RedisAddr, serviceName, cfg.IdempotencyTTL)
		defer keys.Close()
		opts = append(opts, order.WithIdempotency(keys))
		log.WithField("redis_addr", cfg.RedisAddr).Info("Idempotency keys enabled")
	}
	sagaLogEnabled := cfg.SagaLogPath != ""
	if sagaLogEnabled {
		steps, err := sqlite.Open(cfg.SagaLogPath)
		if err != nil {
			log.Fatalf("Failed to open saga log: %v", err)
		}
		defer steps.Close()
		opts = append(opts, order.WithSagaLog(steps))
		log.WithField("path", cfg.SagaLogPath).Info("Saga log enabled")
	}

	handler := order.NewHandler(
		order.NewSaga(repo, customers, payments, breaker, opts...),
		order.NewDetailsAggregator(repo, customers, payments),
		order.NewService(repo),
		order.BreakerReporter{
			Payment: breaker.Snapshot,
			Clients: []func() patterns.ClientBreakerStatus{customers.Status, payments.Status},
		},
		sagaLogEnabled,
	)

	router := server.NewRouter(serviceName)
	handler.Register(router.Group("/api/v1"))

	log.WithField("port", cfg.Port).Info("Order Service starting")
	if err := server.Run(ctx, ":"+cfg.Port, router); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

func openOrders(ctx context.Context, dsn string) (order.Repository, func()) {
	if dsn == "" {
		log.Info("DATABASE_URL not set, using in-memory order store")
		return memory.NewOrderStore(), func() {}
	}
	store, err := postgres.New(ctx, dsn)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	return store.Orders(), func() { _ = store.Close() }
}
