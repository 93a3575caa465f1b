package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix namespaces every environment override, e.g. EXPORTER_STORE_ID.
const EnvPrefix = "EXPORTER"

// ErrMissingStoreID is returned when no source store identifier was supplied.
var ErrMissingStoreID = errors.New("store id is required")

// Config holds the export run configuration.
type Config struct {
	StoreID string `envconfig:"STORE_ID"`
	Host    string `envconfig:"HOST"`

	// Exchange rate source and price conversion.
	RateURL        string  `envconfig:"RATE_URL"`
	RateCurrency   string  `envconfig:"RATE_CURRENCY"`
	RateAdjustment float64 `envconfig:"RATE_ADJUSTMENT"`
	FallbackRate   float64 `envconfig:"FALLBACK_RATE"`

	// Destination listing price formula.
	PlatformFeePercent float64 `envconfig:"PLATFORM_FEE_PERCENT"`
	ShippingFee        int64   `envconfig:"SHIPPING_FEE"`
	ProfitMargin       int64   `envconfig:"PROFIT_MARGIN"`

	MaxRowsPerFile int    `envconfig:"MAX_ROWS_PER_FILE"`
	OutputDir      string `envconfig:"OUTPUT_DIR"`
	StagingDir     string `envconfig:"STAGING_DIR"`
	DetailsDump    string `envconfig:"DETAILS_DUMP"`

	PoliteDelay   time.Duration `envconfig:"POLITE_DELAY"`
	RequestDelay  time.Duration `envconfig:"REQUEST_DELAY"`
	Timeout       time.Duration `envconfig:"TIMEOUT"`
	MaxBodySize   int           `envconfig:"MAX_BODY_SIZE"`
	ImageAttempts int           `envconfig:"IMAGE_ATTEMPTS"`
	ImageBackoff  time.Duration `envconfig:"IMAGE_BACKOFF"`
	UserAgent     string        `envconfig:"USER_AGENT"`

	StoreBackend    string `envconfig:"STORE_BACKEND"` // memory, sqlite, mysql or postgres
	StoreDSN        string `envconfig:"STORE_DSN"`
	DedupeCacheSize int    `envconfig:"DEDUPE_CACHE_SIZE"`

	MetricsAddr string `envconfig:"METRICS_ADDR"`
	Verbose     bool   `envconfig:"VERBOSE"`
}

// DefaultConfig returns defaults matching the destination import tool limits.
func DefaultConfig() *Config {
	return &Config{
		Host:               "https://ja.aliexpress.com",
		RateURL:            "http://api.aoikujira.com/kawase/json/usd",
		RateCurrency:       "JPY",
		RateAdjustment:     3.6,
		FallbackRate:       110,
		PlatformFeePercent: 3.6,
		ShippingFee:        700,
		ProfitMargin:       600,
		MaxRowsPerFile:     1000,
		OutputDir:          "storage/app/base",
		StagingDir:         "storage/app/temp_image",
		PoliteDelay:        3 * time.Second,
		RequestDelay:       0,
		Timeout:            30 * time.Second,
		MaxBodySize:        20 * 1024 * 1024,
		ImageAttempts:      3,
		ImageBackoff:       time.Second,
		UserAgent:          "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/117.0.0.0 Safari/537.36",
		StoreBackend:       "sqlite",
		StoreDSN:           "storage/exporter.db",
		DedupeCacheSize:    10000,
	}
}

// Load returns DefaultConfig overlaid with EXPORTER_* environment variables.
// A .env file in the working directory is read first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := DefaultConfig()
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("load env config: %w", err)
	}
	return cfg, nil
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.StoreID) == "" {
		return ErrMissingStoreID
	}
	if c.Host == "" {
		return fmt.Errorf("host cannot be empty")
	}

	parsedURL, err := url.Parse(c.Host)
	if err != nil {
		return fmt.Errorf("invalid host: %w", err)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("host must include a hostname")
	}

	if c.FallbackRate <= 0 {
		return fmt.Errorf("fallback rate must be positive")
	}
	if c.PlatformFeePercent < 0 {
		return fmt.Errorf("platform fee percent cannot be negative")
	}
	if c.MaxRowsPerFile <= 0 {
		return fmt.Errorf("max rows per file must be positive")
	}
	if c.OutputDir == "" {
		return fmt.Errorf("output dir cannot be empty")
	}
	if c.StagingDir == "" {
		return fmt.Errorf("staging dir cannot be empty")
	}
	if c.PoliteDelay < 0 {
		return fmt.Errorf("polite delay cannot be negative")
	}
	if c.RequestDelay < 0 {
		return fmt.Errorf("request delay cannot be negative")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxBodySize < 0 {
		return fmt.Errorf("max body size cannot be negative")
	}
	if c.ImageAttempts <= 0 {
		return fmt.Errorf("image attempts must be positive")
	}
	if c.ImageBackoff < 0 {
		return fmt.Errorf("image backoff cannot be negative")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}
	switch c.StoreBackend {
	case "memory":
	case "sqlite", "mysql", "postgres":
		if c.StoreDSN == "" {
			return fmt.Errorf("store dsn is required for %s backend", c.StoreBackend)
		}
	default:
		return fmt.Errorf("store backend must be memory, sqlite, mysql, or postgres")
	}
	if c.DedupeCacheSize <= 0 {
		return fmt.Errorf("dedupe cache size must be positive")
	}

	return nil
}

// CatalogPageURL returns the sale-items listing URL for one page of a store.
func (c *Config) CatalogPageURL(storeID string, page int) string {
	return fmt.Sprintf("%s/store/sale-items/%s/%d.html", strings.TrimSuffix(c.Host, "/"), storeID, page)
}

// ItemURL returns the canonical detail page URL of an item.
func (c *Config) ItemURL(itemID string) string {
	return fmt.Sprintf("%s/item/%s.html", strings.TrimSuffix(c.Host, "/"), itemID)
}
