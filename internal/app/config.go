package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/xenking/procurement-portal/internal/domain/order"
	"github.com/xenking/procurement-portal/pkg/pagination"
)

const defaultAddr = "0.0.0.0:8080"

// Config holds the complete application configuration, loadable from
// environment variables (PORTAL_ prefix), a .env file, flags, or YAML config
// files.
type Config struct {
	Addr         string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL  string `usage:"PostgreSQL connection URL (PORTAL_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	APIKeyPepper string `usage:"HMAC pepper for API key hashing (PORTAL_API_KEY_PEPPER)" flag:"api-key-pepper"`
	Quota        QuotaConfig
	EditWindow   EditWindowConfig
	Pagination   PaginationConfig
	Orders       OrdersConfig
	Graceful     GracefulConfig
}

// QuotaConfig sets the per-user monthly weight ceiling.
type QuotaConfig struct {
	MonthlyLimitKg string `default:"30" usage:"Monthly weight limit per user in kilograms" flag:"monthly-limit-kg"`
}

// EditWindowConfig bounds the days of the month on which users may edit
// their own orders.
type EditWindowConfig struct {
	OpeningDay int      `default:"15" usage:"First day of month edits are allowed"`
	ClosingDay int      `default:"20" usage:"Last day of month edits are allowed"`
	TimeZones  []string `default:"America/Sao_Paulo,Brazil/East" usage:"Time zones tried in order to evaluate the day of month"`
}

type PaginationConfig struct {
	DefaultPageSize int `default:"20"  usage:"Page size when none is requested"`
	MaxPageSize     int `default:"100" usage:"Largest accepted page size"`
}

type OrdersConfig struct {
	RequireDeliveryUnit bool `default:"false" usage:"Reject orders without a delivery unit" flag:"require-delivery-unit"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from .env, environment variables and YAML
// config files, then applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	// A missing .env is normal outside local development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, errors.Wrap(err, "load .env")
	}

	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "PORTAL",
		Files:     []string{"config.yaml", "/etc/portal/config.yaml"},
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

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's PORTAL_-prefixed configuration.
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

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return errors.New("database URL is required: set PORTAL_DATABASE_URL or DATABASE_URL")
	}
	if c.APIKeyPepper == "" {
		return errors.New("api key pepper is required: set PORTAL_API_KEY_PEPPER")
	}
	limit, err := decimal.NewFromString(c.Quota.MonthlyLimitKg)
	if err != nil || !limit.IsPositive() {
		return errors.Errorf("quota.monthlyLimitKg must be a positive number, got %q", c.Quota.MonthlyLimitKg)
	}
	w := c.EditWindow
	if w.OpeningDay < 1 || w.ClosingDay > 31 || w.OpeningDay > w.ClosingDay {
		return errors.Errorf("edit window %d..%d is not a valid day range", w.OpeningDay, w.ClosingDay)
	}
	return nil
}

// OrderConfig converts the loaded settings into the order engine's
// configuration.
func (c *Config) OrderConfig() order.Config {
	return order.Config{
		MonthlyLimitKg: decimal.RequireFromString(c.Quota.MonthlyLimitKg),
		Window: order.EditWindow{
			OpeningDay: c.EditWindow.OpeningDay,
			ClosingDay: c.EditWindow.ClosingDay,
			Location:   order.ResolveLocation(c.EditWindow.TimeZones),
		},
		Pagination: pagination.Options{
			DefaultPageSize: c.Pagination.DefaultPageSize,
			MaxPageSize:     c.Pagination.MaxPageSize,
		},
		RequireDeliveryUnit: c.Orders.RequireDeliveryUnit,
	}
}
