package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"tickio/internal/availability"
	"tickio/internal/checkout"
	"tickio/internal/checkout/api"
	checkoutdb "tickio/internal/checkout/db"
	"tickio/internal/checkout/locks"
	"tickio/internal/config"
	"tickio/internal/database/migrations"
	"tickio/internal/holds"
	holdsdb "tickio/internal/holds/db"
	"tickio/internal/inventory"
	invdb "tickio/internal/inventory/db"
	"tickio/internal/kafka"
	"tickio/internal/logger"
	"tickio/internal/payment"
)

func connectPostgres(cfg config.DatabaseConfig, log *logger.Logger) *bun.DB {
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database, cfg.SSLMode)

	var sqldb *sql.DB
	var err error
	maxRetries := 5

	for i := 0; i < maxRetries; i++ {
		log.Info("DATABASE", fmt.Sprintf("Connecting to PostgreSQL (attempt %d/%d)", i+1, maxRetries))
		sqldb, err = sql.Open("postgres", dsn)
		if err == nil {
			err = sqldb.Ping()
			if err == nil {
				break
			}
		}
		log.Error("DATABASE", fmt.Sprintf("PostgreSQL connection failed: %v", err))
		if i < maxRetries-1 {
			time.Sleep(2 * time.Second)
		}
	}
	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Could not connect to PostgreSQL after %d attempts: %v", maxRetries, err))
	}

	sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.MaxLifetime)

	log.Info("DATABASE", "PostgreSQL connection successful")
	return bun.NewDB(sqldb, pgdialect.New())
}

func connectRedis(ctx context.Context, cfg config.RedisConfig, log *logger.Logger) *redis.Client {
	client := redis.NewClient(&redis.Options{Addr: cfg.Addr})
	if err := client.Ping(ctx).Err(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Redis connection error: %v", err))
	}
	log.Info("DATABASE", fmt.Sprintf("Redis connection successful to %s", cfg.Addr))
	return client
}

func main() {
	log := logger.NewLogger()
	defer log.Close()

	log.Info("APP", "Starting inventory core initialization")

	if err := godotenv.Load(); err != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	}
	cfg := config.Load()

	ctx := context.Background()
	bunDB := connectPostgres(cfg.Database, log)
	defer bunDB.Close()
	redisClient := connectRedis(ctx, cfg.Redis, log)
	defer redisClient.Close()

	runner := migrations.NewRunner(bunDB, migrations.DefaultOptions(), log)
	if err := runner.Up(); err != nil {
		log.Fatal("MIGRATE", fmt.Sprintf("Migrations failed: %v", err))
	}

	var publisher checkout.Publisher
	if cfg.Kafka.Enabled {
		topics := []string{cfg.Kafka.Topics.OrdersPaid, cfg.Kafka.Topics.OrdersRefunded}
		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, topics); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		}
		producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topics.OrdersPaid, cfg.Kafka.Topics.OrdersRefunded, log)
		defer producer.Close()
		publisher = producer
		log.Info("KAFKA", "Kafka producer initialized")
	} else {
		log.Info("KAFKA", "Kafka disabled, order events will not be published")
	}

	var gateway payment.Gateway = payment.DummyGateway{}
	if cfg.Stripe.SecretKey != "" {
		gateway = payment.NewStripeGateway(cfg.Stripe.SecretKey, cfg.Stripe.Currency, log)
		log.Info("PAYMENT", "Stripe gateway configured")
	} else {
		log.Warn("PAYMENT", "No Stripe key configured, using dummy gateway")
	}

	ledger := inventory.NewLedger(&invdb.DB{Bun: bunDB})
	holdStore := holds.NewStore(&holdsdb.DB{Bun: bunDB}, cfg.Holds.TTL)
	calculator := availability.NewCalculator(ledger, holdStore)
	inventoryLocks := locks.NewLocks(redisClient, cfg.Checkout.LockTTL, cfg.Checkout.LockRetries, cfg.Checkout.LockRetryDelay, log)

	orchestrator := checkout.NewOrchestrator(
		ledger,
		holdStore,
		calculator,
		checkoutdb.NewDB(bunDB),
		inventoryLocks,
		gateway,
		publisher,
		log,
	)

	reaper := holds.NewReaper(holdStore, cfg.Holds.SweepInterval, log)
	reaperCtx, stopReaper := context.WithCancel(ctx)
	defer stopReaper()
	go reaper.Run(reaperCtx)
	log.Info("APP", fmt.Sprintf("Hold reaper sweeping every %s", cfg.Holds.SweepInterval))

	handler := &api.Handler{
		Checkout:     orchestrator,
		Availability: calculator,
		Ledger:       ledger,
	}

	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})
	r.Mount("/", handler.Routes())

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("Inventory core running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	log.Info("APP", "Service started, waiting for shutdown signal")
	<-stop

	log.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	stopReaper()

	ctxShutdown, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server shutdown failed: %v", err))
	} else {
		log.Info("HTTP", "Inventory core shutdown complete")
	}
}
