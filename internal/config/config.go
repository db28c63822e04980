// Package config provides application configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration values loaded from file or environment variables.
type Config struct {
	JWTSecret      string `mapstructure:"JWT_SECRET"`
	Port           string `mapstructure:"PORT"`
	DBHost         string `mapstructure:"DB_HOST"`
	DBPort         string `mapstructure:"DB_PORT"`
	DBUser         string `mapstructure:"DB_USER"`
	DBPassword     string `mapstructure:"DB_PASSWORD"`
	DBName         string `mapstructure:"DB_NAME"`
	DBSSLMode      string `mapstructure:"DB_SSLMODE"`
	DBMaxOpenConns int    `mapstructure:"DB_MAX_OPEN_CONNS"`
	DBMaxIdleConns int    `mapstructure:"DB_MAX_IDLE_CONNS"`
	RedisURL       string `mapstructure:"REDIS_URL"`
	AllowedOrigins string `mapstructure:"ALLOWED_ORIGINS"`
	FeatureFlags   string `mapstructure:"FEATURE_FLAGS"`
	Env            string `mapstructure:"APP_ENV"`

	// Public media resolution for stored relative links.
	BackendDomain string `mapstructure:"BACKEND_DOMAIN"`
	MediaURL      string `mapstructure:"MEDIA_URL"`

	NewProductsDays int `mapstructure:"NEW_PRODUCTS_DAYS"`

	// Cache TTLs in seconds.
	CacheFeedTTL   int `mapstructure:"CACHE_FEED_TTL"`
	CacheEntityTTL int `mapstructure:"CACHE_ENTITY_TTL"`
	CacheViewerTTL int `mapstructure:"CACHE_VIEWER_TTL"`
	CacheLocalTTL  int `mapstructure:"CACHE_LOCAL_TTL"`

	PrewarmWorkers int `mapstructure:"PREWARM_WORKERS"`
	PrewarmQueue   int `mapstructure:"PREWARM_QUEUE"`

	TracingEnabled  bool    `mapstructure:"TRACING_ENABLED"`
	TracingExporter string  `mapstructure:"TRACING_EXPORTER"`
	OTLPEndpoint    string  `mapstructure:"OTLP_ENDPOINT"`
	TracingSampler  float64 `mapstructure:"TRACING_SAMPLER"`
}

// LoadConfig loads application configuration from .env, config files and environment variables.
func LoadConfig() (*Config, error) {
	// .env is optional; real deployments inject the environment directly.
	_ = godotenv.Load()

	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.AddConfigPath("../..")
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AutomaticEnv()

	// The base config file may not exist yet.
	_ = viper.ReadInConfig()

	env := viper.GetString("APP_ENV")
	if env == "" {
		env = "development"
	}

	if env != "development" && env != "test" {
		viper.SetConfigName("config." + env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("required profile-specific config 'config.%s.yml' not found: %w", env, err)
		}
		log.Printf("Loaded profile-specific configuration: config.%s.yml", env)
	}

	setDefaults()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	config.DBSSLMode = strings.ToLower(strings.TrimSpace(config.DBSSLMode))

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("PORT", "8000")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_USER", "user")
	viper.SetDefault("DB_PASSWORD", "password")
	viper.SetDefault("DB_NAME", "reviewfeed")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("DB_MAX_OPEN_CONNS", 25)
	viper.SetDefault("DB_MAX_IDLE_CONNS", 5)
	viper.SetDefault("REDIS_URL", "localhost:6379")
	viper.SetDefault("JWT_SECRET", "your-secret-key-change-in-production")
	viper.SetDefault("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000")
	viper.SetDefault("FEATURE_FLAGS", "")
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("BACKEND_DOMAIN", "http://127.0.0.1:8000")
	viper.SetDefault("MEDIA_URL", "/media/")
	viper.SetDefault("NEW_PRODUCTS_DAYS", 10)
	viper.SetDefault("CACHE_FEED_TTL", 300)
	viper.SetDefault("CACHE_ENTITY_TTL", 600)
	viper.SetDefault("CACHE_VIEWER_TTL", 60)
	viper.SetDefault("CACHE_LOCAL_TTL", 30)
	viper.SetDefault("PREWARM_WORKERS", 2)
	viper.SetDefault("PREWARM_QUEUE", 256)
	viper.SetDefault("TRACING_ENABLED", false)
	viper.SetDefault("TRACING_EXPORTER", "stdout")
	viper.SetDefault("OTLP_ENDPOINT", "localhost:4318")
	viper.SetDefault("TRACING_SAMPLER", 1.0)
}

// Validate ensures that required configuration values are present and meet security standards.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.BackendDomain == "" {
		return errors.New("BACKEND_DOMAIN is required")
	}
	if c.CacheFeedTTL < 0 || c.CacheEntityTTL < 0 || c.CacheViewerTTL < 0 || c.CacheLocalTTL < 0 {
		return errors.New("cache TTLs must not be negative")
	}
	if c.NewProductsDays < 0 {
		return errors.New("NEW_PRODUCTS_DAYS must not be negative")
	}

	if c.IsProduction() {
		if c.JWTSecret == "your-secret-key-change-in-production" {
			return errors.New("JWT_SECRET must be changed from the default value in production")
		}
		if len(c.JWTSecret) < 32 {
			return errors.New("JWT_SECRET must be at least 32 characters in production")
		}
		if c.DBPassword == "password" || c.DBPassword == "" {
			return errors.New("a strong DB_PASSWORD is required in production")
		}
		if c.DBSSLMode == "disable" || c.DBSSLMode == "" {
			return errors.New("DB_SSLMODE must enable SSL in production")
		}
		if c.AllowedOrigins == "*" {
			log.Println("WARNING: ALLOWED_ORIGINS is set to '*' in production. This is insecure.")
		}
	} else if len(c.JWTSecret) < 32 {
		log.Println("WARNING: JWT_SECRET is shorter than 32 characters. Consider using a stronger secret for production.")
	}

	return nil
}

// IsProduction reports whether the config describes a production deployment.
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

// FeedTTL is the lifetime of shared feed-level cache entries.
func (c *Config) FeedTTL() time.Duration { return seconds(c.CacheFeedTTL, 300) }

// EntityTTL is the lifetime of per-product and per-feedback cache entries.
func (c *Config) EntityTTL() time.Duration { return seconds(c.CacheEntityTTL, 600) }

// ViewerTTL is the lifetime of per-user reaction sets.
func (c *Config) ViewerTTL() time.Duration { return seconds(c.CacheViewerTTL, 60) }

// LocalTTL caps how long the in-process layer keeps an entry.
func (c *Config) LocalTTL() time.Duration { return seconds(c.CacheLocalTTL, 30) }

func seconds(v, fallback int) time.Duration {
	if v <= 0 {
		v = fallback
	}
	return time.Duration(v) * time.Second
}
