package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/luxe-store/internal/domain/order"
	"github.com/xenking/luxe-store/internal/domain/pricing"
)

// Storage drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config holds the complete application configuration, loadable from
// environment variables (LUXE_ prefix), flags, or YAML config files.
type Config struct {
	Addr         string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL  string `usage:"PostgreSQL connection URL (LUXE_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	ImageBaseURL string `default:"" usage:"Base URL for relative product image paths" flag:"image-base-url"`
	Storage      StorageConfig
	Redis        RedisConfig
	Auth         AuthConfig
	Pricing      PricingConfig
	Orders       OrdersConfig
	Promo        PromoConfig
	RateLimit    RateLimitConfig
	CORS         CORSConfig
	Graceful     GracefulConfig
}

// StorageConfig selects the repository backend.
type StorageConfig struct {
	Driver string `default:"postgres" usage:"Storage driver: postgres or memory"`
	// Seed loads the embedded catalog into the memory driver on start.
	Seed bool `default:"true" usage:"Seed the memory driver with the embedded catalog"`
}

// RedisConfig enables the product cache and the shared rate limiter. Empty
// Addr disables both.
type RedisConfig struct {
	Addr     string        `default:"" usage:"Redis address (host:port)"`
	Password string        `default:"" usage:"Redis password"`
	DB       int           `default:"0" usage:"Redis database number"`
	CacheTTL time.Duration `default:"5m" usage:"Product cache entry TTL"`
}

// AuthConfig controls bearer token verification.
type AuthConfig struct {
	JWTSecret string `usage:"HS256 secret for bearer tokens (LUXE_AUTH_JWT_SECRET)" flag:"jwt-secret"`
	Issuer    string `default:"" usage:"Expected token issuer; empty accepts any"`
}

// PricingConfig holds the storefront pricing constants as decimal strings.
type PricingConfig struct {
	FreeShippingThreshold string `default:"200" usage:"Subtotal above which shipping is free"`
	TaxRate               string `default:"0.08" usage:"Tax rate applied after discount"`
	Standard              string `default:"15" usage:"Standard shipping rate"`
	Express               string `default:"25" usage:"Express shipping rate"`
	Overnight             string `default:"45" usage:"Overnight shipping rate"`
}

// OrdersConfig holds the ledger constants.
type OrdersConfig struct {
	NumberPrefix string `default:"LUXE" usage:"Order number prefix"`
	DeliveryDays int    `default:"7" usage:"Days from order to estimated delivery"`
}

// PromoConfig points at an optional YAML promotion table.
type PromoConfig struct {
	File string `default:"" usage:"YAML promo rules file; built-in codes when empty"`
}

// RateLimitConfig controls the per-client rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "LUXE",
		Files:     []string{"config.yaml", "/etc/luxe/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field requirements that tags cannot express.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return errors.New("database URL is required: set LUXE_DATABASE_URL or DATABASE_URL")
		}
	case DriverMemory:
	default:
		return errors.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("JWT secret is required: set LUXE_AUTH_JWT_SECRET")
	}
	if _, err := c.Pricing.Calculator(); err != nil {
		return err
	}
	if c.Orders.DeliveryDays < 0 {
		return errors.New("orders delivery days must not be negative")
	}
	return nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's LUXE_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}

// Calculator parses the pricing constants.
func (p PricingConfig) Calculator() (pricing.Calculator, error) {
	var (
		calc pricing.Calculator
		err  error
	)
	parse := func(name, v string, dst *decimal.Decimal) {
		if err != nil {
			return
		}
		d, perr := decimal.NewFromString(v)
		switch {
		case perr != nil:
			err = errors.Wrapf(perr, "pricing %s", name)
		case d.IsNegative():
			err = errors.Errorf("pricing %s must not be negative", name)
		default:
			*dst = d
		}
	}
	parse("free shipping threshold", p.FreeShippingThreshold, &calc.FreeShippingThreshold)
	parse("tax rate", p.TaxRate, &calc.TaxRate)
	parse("standard rate", p.Standard, &calc.Rates.Standard)
	parse("express rate", p.Express, &calc.Rates.Express)
	parse("overnight rate", p.Overnight, &calc.Rates.Overnight)
	return calc, err
}

// Ledger returns the order ledger constants.
func (o OrdersConfig) Ledger() order.Config {
	return order.Config{NumberPrefix: o.NumberPrefix, DeliveryDays: o.DeliveryDays}
}
