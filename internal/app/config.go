package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/pharmacy-pos/internal/domain/sale"
)

const defaultAddr = "0.0.0.0:8080"

// Config holds the complete application configuration, loadable from
// environment variables (PHARMACY_ prefix), flags, or YAML config files.
type Config struct {
	Addr        string        `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL string        `usage:"PostgreSQL connection URL (PHARMACY_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	JWTSecret   string        `usage:"HMAC secret for bearer tokens (PHARMACY_JWT_SECRET)" flag:"jwt-secret"`
	TokenTTL    time.Duration `default:"12h" usage:"Lifetime of issued bearer tokens" flag:"token-ttl"`
	Sales       SalesConfig
	RateLimit   RateLimitConfig
	CORS        CORSConfig
	Graceful    GracefulConfig
}

// SalesConfig holds checkout parameters. Rates are percentages.
type SalesConfig struct {
	TaxRatePercent     string        `default:"5" usage:"Tax percentage applied after discount" flag:"tax-rate"`
	MaxDiscountPercent string        `default:"10" usage:"Discount cap as a percentage of the subtotal" flag:"max-discount"`
	StockPolicy        string        `default:"aggregate" usage:"Stock check policy: aggregate or per_line" flag:"stock-policy"`
	LockTimeout        time.Duration `default:"5s" usage:"Max wait for medicine row locks" flag:"lock-timeout"`
	Timezone           string        `default:"Local" usage:"IANA zone defining the business day" flag:"timezone"`
}

// RateLimitConfig controls the per-client sliding window rate limiter.
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
		EnvPrefix: "PHARMACY",
		Files:     []string{"config.yaml", "/etc/pharmacy/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return errors.New("database URL is required: set PHARMACY_DATABASE_URL or DATABASE_URL")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT secret is required: set PHARMACY_JWT_SECRET")
	}
	if _, err := c.Sales.saleConfig(); err != nil {
		return errors.Wrap(err, "sales")
	}
	return nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's PHARMACY_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}

// saleConfig converts the textual settings into sale.Config.
func (s SalesConfig) saleConfig() (sale.Config, error) {
	tax, err := percent("tax rate", s.TaxRatePercent)
	if err != nil {
		return sale.Config{}, err
	}
	maxDiscount, err := percent("max discount", s.MaxDiscountPercent)
	if err != nil {
		return sale.Config{}, err
	}
	policy, err := sale.ParseStockPolicy(s.StockPolicy)
	if err != nil {
		return sale.Config{}, err
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return sale.Config{}, errors.Wrapf(err, "timezone %q", s.Timezone)
	}
	return sale.Config{
		TaxRate:         tax,
		MaxDiscountRate: maxDiscount,
		StockPolicy:     policy,
		Location:        loc,
	}, nil
}

func percent(name, s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "parse %s %q", name, s)
	}
	if d.IsNegative() || d.GreaterThan(decimal.NewFromInt(100)) {
		return decimal.Zero, errors.Errorf("%s %s out of range [0, 100]", name, s)
	}
	return d, nil
}
