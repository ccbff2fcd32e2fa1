package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Holds    HoldsConfig
	Checkout CheckoutConfig
	Stripe   StripeConfig
}

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type DatabaseConfig struct {
	Host         string
	Port         string
	Username     string
	Password     string
	Database     string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
}

type RedisConfig struct {
	Addr string
}

type KafkaConfig struct {
	Brokers []string
	Enabled bool
	Topics  TopicConfig
}

type TopicConfig struct {
	OrdersPaid     string
	OrdersRefunded string
}

type HoldsConfig struct {
	TTL           time.Duration
	SweepInterval time.Duration
}

type CheckoutConfig struct {
	LockTTL        time.Duration
	LockRetries    int
	LockRetryDelay time.Duration
}

type StripeConfig struct {
	SecretKey string
	Currency  string
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", ":8080"),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "5432"),
			Username:     getEnv("DB_USERNAME", "tickio"),
			Password:     getEnv("DB_PASSWORD", "tickio"),
			Database:     getEnv("DB_NAME", "tickio"),
			SSLMode:      getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:  time.Duration(getEnvInt("DB_MAX_LIFETIME_MINUTES", 5)) * time.Minute,
		},
		Redis: RedisConfig{
			Addr: getEnv("REDIS_ADDR", "localhost:6379"),
		},
		Kafka: KafkaConfig{
			Brokers: []string{getEnv("KAFKA_BROKERS", "localhost:9092")},
			Enabled: getEnvBool("KAFKA_ENABLED", false),
			Topics: TopicConfig{
				OrdersPaid:     getEnv("KAFKA_TOPIC_ORDERS_PAID", "tickio.orders.paid"),
				OrdersRefunded: getEnv("KAFKA_TOPIC_ORDERS_REFUNDED", "tickio.orders.refunded"),
			},
		},
		Holds: HoldsConfig{
			TTL:           time.Duration(getEnvInt("HOLD_TTL_MINUTES", 10)) * time.Minute,
			SweepInterval: time.Duration(getEnvInt("HOLD_SWEEP_SECONDS", 60)) * time.Second,
		},
		Checkout: CheckoutConfig{
			LockTTL:        time.Duration(getEnvInt("INVENTORY_LOCK_TTL_SECONDS", 30)) * time.Second,
			LockRetries:    getEnvInt("INVENTORY_LOCK_RETRIES", 3),
			LockRetryDelay: time.Duration(getEnvInt("INVENTORY_LOCK_RETRY_MS", 50)) * time.Millisecond,
		},
		Stripe: StripeConfig{
			SecretKey: getEnv("STRIPE_SECRET_KEY", ""),
			Currency:  getEnv("STRIPE_CURRENCY", "usd"),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
