package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultEnvFile      = ".env"
	defaultPort         = "8080"
	defaultReadTimeout  = 15 * time.Second
	defaultWriteTimeout = 30 * time.Second
	defaultIdleTimeout  = 120 * time.Second

	defaultCommerceBaseURL = "https://app.ecwid.com/api/v3"
	defaultCacheTTL        = 60 * time.Second
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server     ServerConfig
	Commerce   CommerceConfig
	Stripe     StripeConfig
	Site       SiteConfig
	Cache      CacheConfig
	Analytics  AnalyticsConfig
	Revalidate RevalidateConfig
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// CommerceConfig holds commerce platform credentials and addressing.
type CommerceConfig struct {
	BaseURL       string
	StoreID       string
	SecretToken   string
	PublicToken   string
	WebhookSecret string
}

// StripeConfig collects payment processor secrets.
type StripeConfig struct {
	APIKey        string
	WebhookSecret string
}

// SiteConfig carries the public site address used to build redirect URLs.
type SiteConfig struct {
	BaseURL string
}

// CacheConfig controls the catalog read cache.
type CacheConfig struct {
	TTL       time.Duration
	RedisAddr string
}

// AnalyticsConfig configures the optional event capture endpoint.
type AnalyticsConfig struct {
	Endpoint string
	Key      string
}

// RevalidateConfig guards the operator cache-invalidation endpoint.
type RevalidateConfig struct {
	Secret string
}

// ValidationError is returned when required configuration fields are missing or invalid.
type ValidationError struct {
	fields []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the missing/invalid field list.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile      string
	envMap       map[string]string
	useSystemEnv bool
}

// WithEnvFile overrides the .env file path used for local overrides.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
	}
}

// WithEnvMap injects an explicit key/value map for environment lookups. Values in the map
// take precedence over system environment variables.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) {
		o.envMap = values
	}
}

// WithoutSystemEnv disables reading from os.Getenv, relying only on provided maps and .env files.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) {
		o.useSystemEnv = false
	}
}

// Load assembles the application configuration by combining defaults, .env overrides,
// and environment variables.
func Load(opts ...Option) (Config, error) {
	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
	}

	for _, opt := range opts {
		opt(&options)
	}

	dotEnvValues, err := loadDotEnv(options.envFile)
	if err != nil {
		return Config{}, err
	}

	lookup := func(key string) (string, bool) {
		if options.envMap != nil {
			if value, ok := options.envMap[key]; ok {
				return value, true
			}
		}
		if options.useSystemEnv {
			if value, ok := os.LookupEnv(key); ok {
				return value, true
			}
		}
		if dotEnvValues != nil {
			if value, ok := dotEnvValues[key]; ok {
				return value, true
			}
		}
		return "", false
	}

	cfg := Config{
		Server: ServerConfig{
			Port:         stringWithDefault(lookup, "STOREFRONT_SERVER_PORT", defaultPort),
			ReadTimeout:  durationWithDefault(lookup, "STOREFRONT_SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout: durationWithDefault(lookup, "STOREFRONT_SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:  durationWithDefault(lookup, "STOREFRONT_SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
		},
		Commerce: CommerceConfig{
			BaseURL:       stringWithDefault(lookup, "STOREFRONT_COMMERCE_BASE_URL", defaultCommerceBaseURL),
			StoreID:       stringWithDefault(lookup, "STOREFRONT_COMMERCE_STORE_ID", ""),
			SecretToken:   stringWithDefault(lookup, "STOREFRONT_COMMERCE_SECRET_TOKEN", ""),
			PublicToken:   stringWithDefault(lookup, "STOREFRONT_COMMERCE_PUBLIC_TOKEN", ""),
			WebhookSecret: stringWithDefault(lookup, "STOREFRONT_COMMERCE_WEBHOOK_SECRET", ""),
		},
		Stripe: StripeConfig{
			APIKey:        stringWithDefault(lookup, "STOREFRONT_STRIPE_API_KEY", ""),
			WebhookSecret: stringWithDefault(lookup, "STOREFRONT_STRIPE_WEBHOOK_SECRET", ""),
		},
		Site: SiteConfig{
			BaseURL: stringWithDefault(lookup, "STOREFRONT_SITE_BASE_URL", ""),
		},
		Cache: CacheConfig{
			TTL:       durationWithDefault(lookup, "STOREFRONT_CACHE_TTL", defaultCacheTTL),
			RedisAddr: stringWithDefault(lookup, "STOREFRONT_CACHE_REDIS_ADDR", ""),
		},
		Analytics: AnalyticsConfig{
			Endpoint: stringWithDefault(lookup, "STOREFRONT_ANALYTICS_ENDPOINT", ""),
			Key:      stringWithDefault(lookup, "STOREFRONT_ANALYTICS_KEY", ""),
		},
		Revalidate: RevalidateConfig{
			Secret: stringWithDefault(lookup, "STOREFRONT_REVALIDATE_SECRET", ""),
		},
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func validateConfig(cfg Config) error {
	var missing []string

	if cfg.Server.Port == "" {
		missing = append(missing, "Server.Port")
	}
	if strings.TrimSpace(cfg.Commerce.StoreID) == "" {
		missing = append(missing, "Commerce.StoreID")
	}
	if strings.TrimSpace(cfg.Commerce.SecretToken) == "" {
		missing = append(missing, "Commerce.SecretToken")
	}
	if strings.TrimSpace(cfg.Site.BaseURL) == "" {
		missing = append(missing, "Site.BaseURL")
	}
	if cfg.Cache.TTL <= 0 {
		missing = append(missing, "Cache.TTL")
	}

	if len(missing) > 0 {
		return &ValidationError{fields: missing}
	}
	return nil
}

func loadDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}

	values, err := godotenv.Read(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: unable to read %s: %w", path, err)
	}
	return values, nil
}

func stringWithDefault(lookup func(string) (string, bool), key, fallback string) string {
	if value, ok := lookup(key); ok && value != "" {
		return value
	}
	return fallback
}

func durationWithDefault(lookup func(string) (string, bool), key string, fallback time.Duration) time.Duration {
	if value, ok := lookup(key); ok && value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
	}
	return fallback
}
