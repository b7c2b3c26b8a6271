package main

import (
	"context"

	"github.com/ashendes/order-fulfillment/internal/chaos"
	"github.com/ashendes/order-fulfillment/internal/config"
	"github.com/ashendes/order-fulfillment/internal/customer"
	"github.com/ashendes/order-fulfillment/internal/server"
	"github.com/ashendes/order-fulfillment/internal/storage/memory"
	"github.com/ashendes/order-fulfillment/internal/storage/postgres"
	log "github.com/sirupsen/logrus"
)

const serviceName = "customer-service"

func main() {
	cfg, err := config.LoadCustomer()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	server.SetupLogging(cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repo, closeRepo := openCustomers(ctx, cfg.DatabaseURL)
	defer closeRepo()

	svc := customer.NewService(repo)
	if cfg.SeedCustomers {
		if err := svc.Seed(ctx); err != nil {
			log.WithError(err).Warn("Failed to seed sample customers")
		}
	}

	injector := chaos.NewInjector(serviceName)
	router := server.NewRouter(serviceName)
	v1 := router.Group("/api/v1")
	v1.Use(injector.Middleware())
	injector.Register(v1)
	customer.NewHandler(svc).Register(v1)

	log.WithField("port", cfg.Port).Info("Customer Service starting")
	if err := server.Run(ctx, ":"+cfg.Port, router); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

func openCustomers(ctx context.Context, dsn string) (customer.Repository, func()) {
	if dsn == "" {
		log.Info("DATABASE_URL not set, using in-memory customer store")
		return memory.NewCustomerStore(), func() {}
	}
	store, err := postgres.New(ctx, dsn)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	return store.Customers(), func() { _ = store.Close() }
}
