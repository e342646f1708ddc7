package app

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		Addr:         defaultAddr,
		DatabaseURL:  "postgres://localhost/portal",
		APIKeyPepper: "pepper",
		Quota:        QuotaConfig{MonthlyLimitKg: "30"},
		EditWindow: EditWindowConfig{
			OpeningDay: 15,
			ClosingDay: 20,
			TimeZones:  []string{"Nowhere/Unknown", "America/Sao_Paulo"},
		},
		Pagination: PaginationConfig{DefaultPageSize: 20, MaxPageSize: 100},
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "no database", mutate: func(c *Config) { c.DatabaseURL = "" }, wantErr: "database URL"},
		{name: "no pepper", mutate: func(c *Config) { c.APIKeyPepper = "" }, wantErr: "pepper"},
		{name: "bad limit", mutate: func(c *Config) { c.Quota.MonthlyLimitKg = "thirty" }, wantErr: "monthlyLimitKg"},
		{name: "zero limit", mutate: func(c *Config) { c.Quota.MonthlyLimitKg = "0" }, wantErr: "monthlyLimitKg"},
		{name: "inverted window", mutate: func(c *Config) { c.EditWindow.OpeningDay = 25 }, wantErr: "edit window"},
		{name: "window past month end", mutate: func(c *Config) { c.EditWindow.ClosingDay = 32 }, wantErr: "edit window"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_PlatformDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://platform/db")
	t.Setenv("PORT", "9000")

	cfg := Config{Addr: defaultAddr}
	cfg.applyPlatformDefaults()
	assert.Equal(t, "postgres://platform/db", cfg.DatabaseURL)
	assert.Equal(t, "0.0.0.0:9000", cfg.Addr)

	cfg = Config{Addr: "127.0.0.1:7000", DatabaseURL: "postgres://explicit/db"}
	cfg.applyPlatformDefaults()
	assert.Equal(t, "postgres://explicit/db", cfg.DatabaseURL)
	assert.Equal(t, "127.0.0.1:7000", cfg.Addr)
}

func TestConfig_OrderConfig(t *testing.T) {
	cfg := validConfig()
	cfg.Orders.RequireDeliveryUnit = true

	oc := cfg.OrderConfig()
	assert.True(t, oc.MonthlyLimitKg.Equal(decimal.NewFromInt(30)))
	assert.Equal(t, 15, oc.Window.OpeningDay)
	assert.Equal(t, 20, oc.Window.ClosingDay)
	require.NotNil(t, oc.Window.Location)
	assert.Equal(t, "America/Sao_Paulo", oc.Window.Location.String())
	assert.Equal(t, 100, oc.Pagination.MaxPageSize)
	assert.True(t, oc.RequireDeliveryUnit)
}
