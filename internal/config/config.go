package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Checkout  CheckoutConfig
	Payment   PaymentConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Telemetry TelemetryConfig
	Edge      EdgeConfig
	Worker    WorkerConfig
	Migrate   MigrateConfig
}

type ServerConfig struct {
	Port string
	Env  string
}

type DatabaseConfig struct {
	URL    string
	Schema string
}

type CheckoutConfig struct {
	ClientURL         string
	Currency          string
	ShippingCountries []string
	FinalizeLockTTL   time.Duration
}

type PaymentConfig struct {
	StripeSecretKey string
	StubAutoPay     bool
	Timeout         time.Duration
}

type RedisConfig struct {
	URL string
}

type KafkaConfig struct {
	Brokers []string
}

type TelemetryConfig struct {
	TracingEnabled bool
	ServiceVersion string
	OTLPEndpoint   string
}

type EdgeConfig struct {
	JWTSecret          string
	CheckoutServiceURL string
	UpstreamTimeout    time.Duration
}

type WorkerConfig struct {
	EmailServiceURL string
	GroupID         string
}

type MigrateConfig struct {
	Path string
}

func Load() *Config {
	// .env.local wins over .env; neither is required.
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load(".env")

	return &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "8081"),
			Env:  getEnv("ENV", "production"),
		},
		Database: DatabaseConfig{
			URL:    getEnv("POSTGRES_URL", ""),
			Schema: getEnv("DB_SCHEMA", "storefront"),
		},
		Checkout: CheckoutConfig{
			ClientURL:         strings.TrimRight(getEnv("CLIENT_URL", "http://localhost:5173"), "/"),
			Currency:          getEnv("CURRENCY", "usd"),
			ShippingCountries: getEnvAsList("SHIPPING_COUNTRIES", []string{"US", "CA", "GB", "KE"}),
			FinalizeLockTTL:   getEnvAsDuration("FINALIZE_LOCK_TTL", 30*time.Second),
		},
		Payment: PaymentConfig{
			StripeSecretKey: strings.TrimSpace(getEnv("STRIPE_SECRET_KEY", "")),
			StubAutoPay:     getEnvAsBool("PAYMENT_STUB_AUTOPAY", false),
			Timeout:         getEnvAsDuration("GATEWAY_TIMEOUT", 15*time.Second),
		},
		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", ""),
		},
		Kafka: KafkaConfig{
			Brokers: getEnvAsList("KAFKA_BROKERS", nil),
		},
		Telemetry: TelemetryConfig{
			TracingEnabled: getEnvAsBool("TRACING_ENABLED", false),
			ServiceVersion: getEnv("SERVICE_VERSION", "0.1.0"),
			OTLPEndpoint:   getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		},
		Edge: EdgeConfig{
			JWTSecret:          getEnv("JWT_SECRET", ""),
			CheckoutServiceURL: strings.TrimRight(getEnv("CHECKOUT_SERVICE_URL", ""), "/"),
			UpstreamTimeout:    getEnvAsDuration("UPSTREAM_TIMEOUT", 20*time.Second),
		},
		Worker: WorkerConfig{
			EmailServiceURL: strings.TrimRight(getEnv("EMAIL_SERVICE_URL", ""), "/"),
			GroupID:         getEnv("KAFKA_GROUP_ID", "notification-worker"),
		},
		Migrate: MigrateConfig{
			Path: getEnv("MIGRATIONS_PATH", "file://migrations"),
		},
	}
}

func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

// ListenPort returns PORT, or defaultPort for binaries other than checkout.
func ListenPort(defaultPort string) string {
	return getEnv("PORT", defaultPort)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}

	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
