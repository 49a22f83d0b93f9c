package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Port          string `mapstructure:"PORT"`
	Env           string `mapstructure:"APP_ENV"`
	LogLevel      string `mapstructure:"LOG_LEVEL"`
	AllowedOrigin string `mapstructure:"ALLOWED_ORIGIN"`

	DatabaseURL string `mapstructure:"DATABASE_URL"`

	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	AuthSecret            string `mapstructure:"AUTH_SECRET"`
	AccessTokenTTLMinutes int    `mapstructure:"ACCESS_TOKEN_TTL_MINUTES"`

	ReceiptDir        string `mapstructure:"RECEIPT_DIR"`
	ReceiptPDF        bool   `mapstructure:"RECEIPT_PDF"`
	CurrencySymbol    string `mapstructure:"CURRENCY_SYMBOL"`
	LowStockThreshold int    `mapstructure:"LOW_STOCK_THRESHOLD"`

	SeedAdminPassword string `mapstructure:"SEED_ADMIN_PASSWORD"`
	SeedStaffPassword string `mapstructure:"SEED_STAFF_PASSWORD"`
}

var defaults = map[string]any{
	"PORT":                     "8080",
	"APP_ENV":                  "development",
	"LOG_LEVEL":                "info",
	"ALLOWED_ORIGIN":           "http://127.0.0.1:3000",
	"DATABASE_URL":             "",
	"REDIS_ADDR":               "",
	"REDIS_PASSWORD":           "",
	"REDIS_DB":                 0,
	"AUTH_SECRET":              "",
	"ACCESS_TOKEN_TTL_MINUTES": 480,
	"RECEIPT_DIR":              "receipts",
	"RECEIPT_PDF":              false,
	"CURRENCY_SYMBOL":          "Rs.",
	"LOW_STOCK_THRESHOLD":      5,
	"SEED_ADMIN_PASSWORD":      "",
	"SEED_STAFF_PASSWORD":      "",
}

// Load reads configuration from the environment and an optional .env file in
// the working directory. Every key has a default so AutomaticEnv can bind it.
func Load() (Config, error) {
	v := viper.New()
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AutomaticEnv()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read .env: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	cfg.AuthSecret = strings.TrimSpace(cfg.AuthSecret)
	if cfg.AccessTokenTTLMinutes < 1 {
		cfg.AccessTokenTTLMinutes = 480
	}
	if cfg.LowStockThreshold < 0 {
		cfg.LowStockThreshold = 5
	}
	if strings.TrimSpace(cfg.ReceiptDir) == "" {
		cfg.ReceiptDir = "receipts"
	}
	return cfg, nil
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}
