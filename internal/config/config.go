// Package config loads the storefront configuration from the environment.
//
// Values are read with github.com/caarlos0/env; a .env file in the working
// directory is loaded first when present.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type AppConfig struct {
	API       APIConfig
	HTTP      HTTPConfig
	Store     StoreConfig `envPrefix:"STORE_"`
	Redis     RedisConfig `envPrefix:"REDIS_"`
	Mongo     MongoConfig `envPrefix:"MONGO_"`
	Checkout  CheckoutConfig
	Catalog   CatalogConfig `envPrefix:"CATALOG_"`
	Breaker   BreakerConfig `envPrefix:"BREAKER_"`
	Log       LogConfig     `envPrefix:"LOG_"`
	Telemetry TelemetryConfig
}

type APIConfig struct {
	BaseURL        string        `env:"API_BASE_URL" envDefault:"http://localhost:5000/api"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"30s"`
}

type HTTPConfig struct {
	Port               string        `env:"HTTP_PORT" envDefault:"8080"`
	ShutdownTimeout    time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	MaxRequestBodySize int64         `env:"MAX_REQUEST_BODY_SIZE" envDefault:"1048576"`
}

// StoreConfig selects the durable key-value store used for guest state.
type StoreConfig struct {
	Driver     string `env:"DRIVER" envDefault:"sqlite"`
	Namespace  string `env:"NAMESPACE" envDefault:"storefront"`
	SQLitePath string `env:"SQLITE_PATH" envDefault:"storefront.db"`
}

type RedisConfig struct {
	Addr     string        `env:"ADDR" envDefault:"localhost:6379"`
	Password string        `env:"PASSWORD"`
	DB       int           `env:"DB" envDefault:"0"`
	TTL      time.Duration `env:"TTL" envDefault:"0s"`
}

type MongoConfig struct {
	URI      string `env:"URI" envDefault:"mongodb://localhost:27017"`
	Database string `env:"DB" envDefault:"storefront"`
}

type CheckoutConfig struct {
	PaymentKeyID string  `env:"PAYMENT_KEY_ID"`
	StoreName    string  `env:"STORE_NAME" envDefault:"Hardware Store"`
	TaxRate      float64 `env:"TAX_RATE" envDefault:"0.18"`
	Country      string  `env:"DEFAULT_COUNTRY" envDefault:"India"`
}

// CatalogConfig controls the product cache. It is only used with the redis
// store driver.
type CatalogConfig struct {
	CacheEnabled bool          `env:"CACHE_ENABLED" envDefault:"true"`
	CacheTTL     time.Duration `env:"CACHE_TTL" envDefault:"15m"`
}

// BreakerConfig tunes the circuit breaker around outbound API calls.
type BreakerConfig struct {
	MaxRequests         uint32        `env:"MAX_REQUESTS" envDefault:"1"`
	Interval            time.Duration `env:"INTERVAL" envDefault:"60s"`
	Timeout             time.Duration `env:"TIMEOUT" envDefault:"30s"`
	ConsecutiveFailures uint32        `env:"CONSECUTIVE_FAILURES" envDefault:"5"`
}

type LogConfig struct {
	Level  string `env:"LEVEL" envDefault:"info"`
	Format string `env:"FORMAT" envDefault:"json"`
}

type TelemetryConfig struct {
	ServiceName    string        `env:"OTEL_SERVICE_NAME" envDefault:"storefront"`
	MetricsEnabled bool          `env:"OTEL_METRICS_ENABLED" envDefault:"false"`
	Endpoint       string        `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	Insecure       bool          `env:"OTEL_EXPORTER_OTLP_INSECURE" envDefault:"true"`
	ExportInterval time.Duration `env:"OTEL_METRIC_EXPORT_INTERVAL" envDefault:"10s"`
}

const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
	DriverMongo  = "mongo"
)

// Load reads .env (if any) and the process environment.
func Load() (AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return AppConfig{}, fmt.Errorf("load .env file: %w", err)
		}
	}

	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}

	cfg.Sanitize()
	return cfg, cfg.Validate()
}

// Sanitize applies guardrails to values loaded from env.
func (c *AppConfig) Sanitize() {
	c.API.BaseURL = strings.TrimRight(strings.TrimSpace(c.API.BaseURL), "/")
	if c.API.RequestTimeout <= 0 {
		c.API.RequestTimeout = 30 * time.Second
	}
	if c.HTTP.ShutdownTimeout <= 0 {
		c.HTTP.ShutdownTimeout = 10 * time.Second
	}
	if c.HTTP.MaxRequestBodySize <= 0 {
		c.HTTP.MaxRequestBodySize = 1 << 20
	}
	c.Store.Driver = strings.ToLower(strings.TrimSpace(c.Store.Driver))
	if c.Checkout.TaxRate < 0 {
		c.Checkout.TaxRate = 0
	}
	if c.Breaker.ConsecutiveFailures == 0 {
		c.Breaker.ConsecutiveFailures = 5
	}
	if c.Catalog.CacheTTL <= 0 {
		c.Catalog.CacheTTL = 15 * time.Minute
	}
	if c.Redis.TTL < 0 {
		c.Redis.TTL = 0
	}
}

func (c *AppConfig) Validate() error {
	if c.API.BaseURL == "" {
		return errors.New("API_BASE_URL is required")
	}
	switch c.Store.Driver {
	case DriverMemory, DriverSQLite, DriverRedis, DriverMongo:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.Store.Driver)
	}
	return nil
}
