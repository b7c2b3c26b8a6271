// Package config loads per-service settings from the environment, with an
// optional .env file.
package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	log "github.com/sirupsen/logrus"
)

// Common settings every service reads.
type Common struct {
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	DatabaseURL string `envconfig:"DATABASE_URL" default:""` // empty = in-memory store
}

type Order struct {
	Common
	Port string `envconfig:"PORT" default:"8080"`

	CustomerServiceURL     string        `envconfig:"CUSTOMER_SERVICE_URL" default:"http://localhost:8081"`
	CustomerServiceTimeout time.Duration `envconfig:"CUSTOMER_SERVICE_TIMEOUT" default:"5s"`
	PaymentServiceURL      string        `envconfig:"PAYMENT_SERVICE_URL" default:"http://localhost:8082"`
	PaymentServiceTimeout  time.Duration `envconfig:"PAYMENT_SERVICE_TIMEOUT" default:"10s"`
	BulkheadSize           int           `envconfig:"BULKHEAD_SIZE" default:"10"`

	BreakerFailureThreshold int           `envconfig:"BREAKER_FAILURE_THRESHOLD" default:"5"`
	BreakerCoolDown         time.Duration `envconfig:"BREAKER_COOL_DOWN" default:"300s"`

	RedisAddr      string        `envconfig:"REDIS_ADDR" default:""` // empty disables idempotency keys
	IdempotencyTTL time.Duration `envconfig:"IDEMPOTENCY_TTL" default:"24h"`
	SagaLogPath    string        `envconfig:"SAGA_LOG_PATH" default:""` // empty disables the saga log
}

type Payment struct {
	Common
	Port string `envconfig:"PORT" default:"8082"`

	OrderServiceURL     string        `envconfig:"ORDER_SERVICE_URL" default:"http://localhost:8080"`
	OrderServiceTimeout time.Duration `envconfig:"ORDER_SERVICE_TIMEOUT" default:"5s"`
	BulkheadSize        int           `envconfig:"BULKHEAD_SIZE" default:"10"`

	ProcessingInterval    time.Duration `envconfig:"PROCESSING_INTERVAL" default:"60s"`
	ProcessingBatchSize   int           `envconfig:"PROCESSING_BATCH_SIZE" default:"10"`
	ProcessingCutoff      time.Duration `envconfig:"PROCESSING_CUTOFF" default:"1m"`
	StatisticsInterval    time.Duration `envconfig:"STATISTICS_INTERVAL" default:"5m"`
	SettlementSuccessRate float64       `envconfig:"SETTLEMENT_SUCCESS_RATE" default:"0.9"`
}

type Customer struct {
	Common
	Port          string `envconfig:"PORT" default:"8081"`
	SeedCustomers bool   `envconfig:"SEED_CUSTOMERS" default:"true"`
}

// LoadOrder reads the order service settings.
func LoadOrder() (*Order, error) {
	var cfg Order
	return &cfg, load(&cfg)
}

// LoadPayment reads the payment service settings.
func LoadPayment() (*Payment, error) {
	var cfg Payment
	return &cfg, load(&cfg)
}

// LoadCustomer reads the customer service settings.
func LoadCustomer() (*Customer, error) {
	var cfg Customer
	return &cfg, load(&cfg)
}

func load(spec any) error {
	if err := godotenv.Load(); err != nil {
		log.Debug("No .env file found, using environment variables")
	}
	return envconfig.Process("", spec)
}
