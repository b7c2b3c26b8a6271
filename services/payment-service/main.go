package main

import (
	"context"

	"github.com/ashendes/order-fulfillment/internal/chaos"
	"github.com/ashendes/order-fulfillment/internal/config"
	"github.com/ashendes/order-fulfillment/internal/gateway"
	"github.com/ashendes/order-fulfillment/internal/payment"
	"github.com/ashendes/order-fulfillment/internal/server"
	"github.com/ashendes/order-fulfillment/internal/storage/memory"
	"github.com/ashendes/order-fulfillment/internal/storage/postgres"
	log "github.com/sirupsen/logrus"
)

const serviceName = "payment-service"

func main() {
	cfg, err := config.LoadPayment()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	server.SetupLogging(cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repo, closeRepo := openPayments(ctx, cfg.DatabaseURL)
	defer closeRepo()

	orders := gateway.NewOrderStatusGateway(gateway.Options{
		BaseURL:      cfg.OrderServiceURL,
		Timeout:      cfg.OrderServiceTimeout,
		BulkheadSize: cfg.BulkheadSize,
		Service:      serviceName,
	})
	processor := payment.NewProcessor(repo, payment.NewRandomSettlement(cfg.SettlementSuccessRate), orders,
		payment.WithBatchSize(cfg.ProcessingBatchSize),
		payment.WithCutoff(cfg.ProcessingCutoff),
	)
	go processor.Run(ctx, cfg.ProcessingInterval)
	go payment.NewStatisticsReporter(repo).Run(ctx, cfg.StatisticsInterval)

	injector := chaos.NewInjector(serviceName)
	router := server.NewRouter(serviceName)
	v1 := router.Group("/api/v1")
	v1.Use(injector.Middleware())
	injector.Register(v1)
	payment.NewHandler(payment.NewService(repo)).Register(v1)

	log.WithField("port", cfg.Port).Info("Payment Service starting")
	if err := server.Run(ctx, ":"+cfg.Port, router); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

func openPayments(ctx context.Context, dsn string) (payment.Repository, func()) {
	if dsn == "" {
		log.Info("DATABASE_URL not set, using in-memory payment store")
		return memory.NewPaymentStore(), func() {}
	}
	store, err := postgres.New(ctx, dsn)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	return store.Payments(), func() { _ = store.Close() }
}
