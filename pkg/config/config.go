package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App     AppConfig
	API     APIConfig
	Storage StorageConfig
	Catalog CatalogConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.API.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"KIRANA_APP_ENV" default:"dev"`
	LogLevel     string `envconfig:"KIRANA_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"KIRANA_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type APIConfig struct {
	// BaseURL is the single fixed origin of the storefront backend.
	BaseURL string `envconfig:"KIRANA_API_BASE_URL" default:"https://vigorously-more-impala.ngrok-free.app"`
	// Timeout bounds every request; there is no retry or backoff layer.
	Timeout time.Duration `envconfig:"KIRANA_API_TIMEOUT" default:"10s"`
	// TunnelBypass sends the header that skips the tunnel proxy's
	// interstitial warning page. Dev-environment artifact, on by default.
	TunnelBypass bool `envconfig:"KIRANA_API_TUNNEL_BYPASS" default:"true"`
	// RequestLogSize bounds the in-memory request monitor log.
	RequestLogSize int `envconfig:"KIRANA_API_REQUEST_LOG_SIZE" default:"50"`
}

func (a APIConfig) validate() error {
	if strings.TrimSpace(a.BaseURL) == "" {
		return fmt.Errorf("KIRANA_API_BASE_URL is required")
	}
	parsed, err := url.Parse(a.BaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("KIRANA_API_BASE_URL must be an absolute url")
	}
	if a.Timeout <= 0 {
		return fmt.Errorf("KIRANA_API_TIMEOUT must be positive")
	}
	return nil
}

type StorageConfig struct {
	// Path locates the on-device snapshot database.
	Path        string `envconfig:"KIRANA_STORAGE_PATH" default:"kirana.db"`
	AutoMigrate bool   `envconfig:"KIRANA_STORAGE_AUTO_MIGRATE" default:"true"`
}

type CatalogConfig struct {
	CacheTTL     time.Duration `envconfig:"KIRANA_CATALOG_CACHE_TTL" default:"5m"`
	StoreLimit   int           `envconfig:"KIRANA_CATALOG_STORE_LIMIT" default:"100"`
	ProductLimit int           `envconfig:"KIRANA_CATALOG_PRODUCT_LIMIT" default:"1000"`
}
