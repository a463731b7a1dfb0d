package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/rezonia/invoice-pricer/internal/currency"
	"github.com/rezonia/invoice-pricer/internal/logger"
	"github.com/rezonia/invoice-pricer/internal/model"
)

// Default upstream feeds
const (
	DefaultCentralBankURL  = "https://www.tcmb.gov.tr/kurlar/today.xml"
	DefaultRefreshInterval = 5 * time.Minute
	DefaultHTTPTimeout     = 15 * time.Second
)

type Config struct {
	// Currency
	HomeCurrency    model.CurrencyCode
	RateSource      model.RateSource
	RefreshInterval time.Duration

	// Rate providers
	CentralBankURL string
	FreeMarketURL  string
	HTTPTimeout    time.Duration

	// Logging
	LogLevel      string
	LogFormat     string
	LogTimeFormat string
	LogOutput     string
}

// LoadDotEnv loads variables from the given .env files (default ".env").
// A missing file is not an error.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	var present []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			present = append(present, f)
		}
	}
	if len(present) == 0 {
		return nil
	}
	return godotenv.Load(present...)
}

// Load reads the configuration from the environment
func Load() (*Config, error) {
	source, err := model.ParseRateSource(getEnv("RATE_SOURCE", string(model.SourceCentralBank)))
	if err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	interval, err := getDuration("RATE_REFRESH_INTERVAL", DefaultRefreshInterval)
	if err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	timeout, err := getDuration("HTTP_TIMEOUT", DefaultHTTPTimeout)
	if err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	config := &Config{
		HomeCurrency:    model.NormalizeCurrency(getEnv("HOME_CURRENCY", string(model.DefaultHomeCurrency))),
		RateSource:      source,
		RefreshInterval: interval,
		CentralBankURL:  getEnv("CENTRAL_BANK_URL", DefaultCentralBankURL),
		FreeMarketURL:   getEnv("FREE_MARKET_URL", ""),
		HTTPTimeout:     timeout,
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		LogFormat:       getEnv("LOG_FORMAT", "console"),
		LogTimeFormat:   getEnv("LOG_TIME_FORMAT", time.RFC3339),
		LogOutput:       getEnv("LOG_OUTPUT", "stderr"),
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// Validate checks the configuration for consistency
func (c *Config) Validate() error {
	if len(c.HomeCurrency) != 3 {
		return fmt.Errorf("HOME_CURRENCY must be a 3-letter code, got %q", c.HomeCurrency)
	}
	if c.RefreshInterval <= 0 {
		return fmt.Errorf("RATE_REFRESH_INTERVAL must be positive")
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive")
	}
	if c.RateSource == model.SourceCentralBank && c.HomeCurrency != currency.CentralBankQuoteCurrency {
		return fmt.Errorf("RATE_SOURCE %s quotes against %s, HOME_CURRENCY %s is not supported",
			model.SourceCentralBank, currency.CentralBankQuoteCurrency, c.HomeCurrency)
	}
	if c.RateSource == model.SourceFreeMarket && c.FreeMarketURL == "" {
		return fmt.Errorf("FREE_MARKET_URL is required when RATE_SOURCE is %s", model.SourceFreeMarket)
	}
	return nil
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: c.LogTimeFormat,
		Output:     c.LogOutput,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
