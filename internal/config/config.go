// Package config provides application configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const defaultJWTSecret = "your-secret-key-change-in-production"

// Config holds application configuration values loaded from file or environment variables.
// It is built once at startup and passed explicitly to every component that needs it.
type Config struct {
	Port string `mapstructure:"PORT"`
	Env  string `mapstructure:"APP_ENV"`

	MongoURILocal string `mapstructure:"MONGO_URI_LOCAL"`
	MongoURILive  string `mapstructure:"MONGO_URI_LIVE"`
	MongoDatabase string `mapstructure:"MONGO_DATABASE"`
	RedisURL      string `mapstructure:"REDIS_URL"`

	JWTSecret          string `mapstructure:"JWT_SECRET"`
	JWTExpiresIn       string `mapstructure:"JWT_EXPIRES_IN"`
	JWTCookieExpiresIn int    `mapstructure:"JWT_COOKIE_EXPIRES_IN"`

	AllowedOrigins        string `mapstructure:"ALLOWED_ORIGINS"`
	RegistrationAllowlist string `mapstructure:"REGISTRATION_ALLOWLIST"`

	AssetBucket    string `mapstructure:"ASSET_BUCKET"`
	AssetRegion    string `mapstructure:"ASSET_REGION"`
	AssetEndpoint  string `mapstructure:"ASSET_ENDPOINT"`
	AssetAccessKey string `mapstructure:"ASSET_ACCESS_KEY"`
	AssetSecretKey string `mapstructure:"ASSET_SECRET_KEY"`
	AssetPublicURL string `mapstructure:"ASSET_PUBLIC_URL"`
	AssetPreset    string `mapstructure:"ASSET_PRESET"`
	AssetMaxSizeMB int    `mapstructure:"ASSET_MAX_SIZE_MB"`

	MailProvider   string `mapstructure:"MAIL_PROVIDER"`
	MailFrom       string `mapstructure:"MAIL_FROM"`
	SendGridAPIKey string `mapstructure:"SENDGRID_API_KEY"`
	MailgunDomain  string `mapstructure:"MAILGUN_DOMAIN"`
	MailgunAPIKey  string `mapstructure:"MAILGUN_API_KEY"`
	ResetURL       string `mapstructure:"RESET_URL"`

	TracingEnabled    bool    `mapstructure:"TRACING_ENABLED"`
	TracingExporter   string  `mapstructure:"TRACING_EXPORTER"`
	OTLPEndpoint      string  `mapstructure:"OTLP_ENDPOINT"`
	TracingSampleRate float64 `mapstructure:"TRACING_SAMPLE_RATE"`
}

// LoadConfig loads application configuration from an optional .env file,
// an optional config.yml and environment variables.
func LoadConfig() (*Config, error) {
	// A missing .env is the normal case outside local development.
	_ = godotenv.Load()

	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AutomaticEnv()
	_ = viper.ReadInConfig()

	viper.SetDefault("PORT", "4000")
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("MONGO_URI_LOCAL", "mongodb://localhost:27017")
	viper.SetDefault("MONGO_URI_LIVE", "")
	viper.SetDefault("MONGO_DATABASE", "folio")
	viper.SetDefault("REDIS_URL", "localhost:6379")
	viper.SetDefault("JWT_SECRET", defaultJWTSecret)
	viper.SetDefault("JWT_EXPIRES_IN", "90d")
	viper.SetDefault("JWT_COOKIE_EXPIRES_IN", 90)
	viper.SetDefault("ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173")
	viper.SetDefault("REGISTRATION_ALLOWLIST", "")
	viper.SetDefault("ASSET_BUCKET", "")
	viper.SetDefault("ASSET_REGION", "us-east-1")
	viper.SetDefault("ASSET_ENDPOINT", "")
	viper.SetDefault("ASSET_ACCESS_KEY", "")
	viper.SetDefault("ASSET_SECRET_KEY", "")
	viper.SetDefault("ASSET_PUBLIC_URL", "")
	viper.SetDefault("ASSET_PRESET", "blog")
	viper.SetDefault("ASSET_MAX_SIZE_MB", 10)
	viper.SetDefault("MAIL_PROVIDER", "log")
	viper.SetDefault("MAIL_FROM", "no-reply@localhost")
	viper.SetDefault("SENDGRID_API_KEY", "")
	viper.SetDefault("MAILGUN_DOMAIN", "")
	viper.SetDefault("MAILGUN_API_KEY", "")
	viper.SetDefault("RESET_URL", "http://localhost:3000/reset-password")
	viper.SetDefault("TRACING_ENABLED", false)
	viper.SetDefault("TRACING_EXPORTER", "stdout")
	viper.SetDefault("OTLP_ENDPOINT", "localhost:4318")
	viper.SetDefault("TRACING_SAMPLE_RATE", 1.0)

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	config.Env = strings.ToLower(strings.TrimSpace(config.Env))

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Validate ensures that required configuration values are present and meet security standards.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if _, err := ParseExpiry(c.JWTExpiresIn); err != nil {
		return fmt.Errorf("JWT_EXPIRES_IN: %w", err)
	}
	if c.JWTCookieExpiresIn <= 0 {
		return errors.New("JWT_COOKIE_EXPIRES_IN must be a positive number of days")
	}

	if c.IsProduction() {
		if c.JWTSecret == defaultJWTSecret {
			return errors.New("JWT_SECRET must be changed from the default value in production")
		}
		if len(c.JWTSecret) < 32 {
			return errors.New("JWT_SECRET must be at least 32 characters in production")
		}
		if c.MongoURILive == "" {
			return errors.New("MONGO_URI_LIVE is required in production")
		}
		if len(c.Allowlist()) == 0 {
			log.Println("WARNING: REGISTRATION_ALLOWLIST is empty in production. Nobody can register.")
		}
		if c.AllowedOrigins == "*" {
			log.Println("WARNING: ALLOWED_ORIGINS is set to '*' in production. This is insecure.")
		}
	} else if len(c.JWTSecret) < 32 {
		log.Println("WARNING: JWT_SECRET is shorter than 32 characters. Consider using a stronger secret for production.")
	}

	return nil
}

// IsDevelopment reports whether verbose error output is allowed.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development" || c.Env == "dev"
}

// IsProduction reports whether production rules apply.
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

// MongoURI returns the connection string for the current mode.
func (c *Config) MongoURI() string {
	if c.IsProduction() {
		return c.MongoURILive
	}
	return c.MongoURILocal
}

// TokenTTL returns the parsed session token lifetime. Validate guarantees it parses.
func (c *Config) TokenTTL() time.Duration {
	d, _ := ParseExpiry(c.JWTExpiresIn)
	return d
}

// CookieTTL returns the session cookie lifetime.
func (c *Config) CookieTTL() time.Duration {
	return time.Duration(c.JWTCookieExpiresIn) * 24 * time.Hour
}

// Allowlist returns the normalized registration allow-list.
func (c *Config) Allowlist() []string {
	return splitList(c.RegistrationAllowlist, true)
}

// Origins returns the configured CORS origins.
func (c *Config) Origins() []string {
	return splitList(c.AllowedOrigins, false)
}

// ParseExpiry accepts Go durations ("12h") and whole days ("90d").
func ParseExpiry(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, errors.New("empty duration")
	}
	if days, ok := strings.CutSuffix(raw, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil || n <= 0 {
			return 0, fmt.Errorf("invalid day count %q", raw)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("duration must be positive: %q", raw)
	}
	return d, nil
}

func splitList(raw string, lower bool) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if lower {
			part = strings.ToLower(part)
		}
		out = append(out, part)
	}
	return out
}
