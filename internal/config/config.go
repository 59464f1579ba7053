package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Database struct {
		Driver   string `mapstructure:"driver"`
		DSN      string `mapstructure:"dsn"`
		LogLevel string `mapstructure:"log_level"`
	} `mapstructure:"db"`
	HTTP struct {
		Addr        string   `mapstructure:"addr"`
		BaseURL     string   `mapstructure:"base_url"`
		CORSOrigins []string `mapstructure:"cors_origins"`
	} `mapstructure:"http"`
	Auth struct {
		JWTSecret           string        `mapstructure:"jwt_secret"`
		JWTTTL              time.Duration `mapstructure:"jwt_ttl"`
		AdminUsername       string        `mapstructure:"admin_username"`
		AdminPasswordHash   string        `mapstructure:"admin_password_hash"`
		CashierUsername     string        `mapstructure:"cashier_username"`
		CashierPasswordHash string        `mapstructure:"cashier_password_hash"`
	} `mapstructure:"auth"`
	Sales struct {
		DefaultTaxRate string `mapstructure:"default_tax_rate"`
		Timezone       string `mapstructure:"timezone"`
		TerminalID     string `mapstructure:"terminal_id"` // derived from the machine when empty
	} `mapstructure:"sales"`
	AI struct {
		GeminiAPIKey string `mapstructure:"gemini_api_key"`
		Model        string `mapstructure:"model"`
	} `mapstructure:"ai"`
	LogLevel string `mapstructure:"log_level"`
}

// envKeys maps flat environment variable names onto nested config keys.
var envKeys = map[string]string{
	"db.driver":                  "DB_DRIVER",
	"db.dsn":                     "DB_DSN",
	"db.log_level":               "DB_LOG_LEVEL",
	"http.addr":                  "HTTP_ADDR",
	"http.base_url":              "BASE_URL",
	"http.cors_origins":          "CORS_ORIGINS",
	"auth.jwt_secret":            "JWT_SECRET",
	"auth.jwt_ttl":               "JWT_TTL",
	"auth.admin_username":        "ADMIN_USERNAME",
	"auth.admin_password_hash":   "ADMIN_PASSWORD_HASH",
	"auth.cashier_username":      "CASHIER_USERNAME",
	"auth.cashier_password_hash": "CASHIER_PASSWORD_HASH",
	"sales.default_tax_rate":     "DEFAULT_TAX_RATE",
	"sales.timezone":             "TIMEZONE",
	"sales.terminal_id":          "TERMINAL_ID",
	"ai.gemini_api_key":          "GEMINI_API_KEY",
	"ai.model":                   "GEMINI_MODEL",
	"log_level":                  "LOG_LEVEL",
}

// Load reads .env (if present), then config/config.yaml (if present), then
// the environment. Environment values win.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found")
	}

	v := viper.New()
	v.AddConfigPath("./config")
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetDefault("db.driver", "mysql")
	v.SetDefault("db.log_level", "warn")
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.base_url", "http://localhost:8080")
	v.SetDefault("http.cors_origins", []string{"http://localhost:5173"})
	v.SetDefault("auth.jwt_ttl", 24*time.Hour)
	v.SetDefault("sales.default_tax_rate", "0")
	v.SetDefault("sales.timezone", "UTC")
	v.SetDefault("ai.model", "gemini-2.0-flash-001")
	v.SetDefault("log_level", "info")

	for key, env := range envKeys {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.HTTP.CORSOrigins = splitList(cfg.HTTP.CORSOrigins)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the values the server cannot start without.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "mysql", "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return errors.New("DB_DSN not configured")
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("JWT_SECRET not configured")
	}
	if _, err := c.TaxRate(); err != nil {
		return err
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// TaxRate parses the default tax rate as a fraction (0.16 = 16%).
func (c *Config) TaxRate() (decimal.Decimal, error) {
	rate, err := decimal.NewFromString(c.Sales.DefaultTaxRate)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid DEFAULT_TAX_RATE %q: %w", c.Sales.DefaultTaxRate, err)
	}
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
		return decimal.Zero, fmt.Errorf("DEFAULT_TAX_RATE must be within [0,1], got %s", rate)
	}
	return rate, nil
}

// Location resolves the time zone used for daily sales buckets.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Sales.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", c.Sales.Timezone, err)
	}
	return loc, nil
}

// splitList accepts both YAML lists and comma-separated env values.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
