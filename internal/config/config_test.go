package config

import (
	"os"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Port:               "4000",
		Env:                "development",
		JWTSecret:          "secure-secret-at-least-32-chars-long",
		JWTExpiresIn:       "90d",
		JWTCookieExpiresIn: 90,
		MongoURILocal:      "mongodb://localhost:27017",
		MongoURILive:       "mongodb+srv://cluster.example.net",
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(c *Config)
		expectError bool
	}{
		{"valid development", func(c *Config) {}, false},
		{"missing port", func(c *Config) { c.Port = "" }, true},
		{"missing secret", func(c *Config) { c.JWTSecret = "" }, true},
		{"bad expiry", func(c *Config) { c.JWTExpiresIn = "soon" }, true},
		{"zero cookie days", func(c *Config) { c.JWTCookieExpiresIn = 0 }, true},
		{"production default secret", func(c *Config) { c.Env = "production"; c.JWTSecret = defaultJWTSecret }, true},
		{"production short secret", func(c *Config) { c.Env = "production"; c.JWTSecret = "short" }, true},
		{"production without live db", func(c *Config) { c.Env = "production"; c.MongoURILive = "" }, true},
		{"production ok", func(c *Config) { c.Env = "prod" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)
			err := c.Validate()
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestParseExpiry(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"90d", 90 * 24 * time.Hour, false},
		{"1d", 24 * time.Hour, false},
		{"12h", 12 * time.Hour, false},
		{"30m", 30 * time.Minute, false},
		{"0d", 0, true},
		{"-5m", 0, true},
		{"xd", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseExpiry(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConfig_ModeDependentMongoURI(t *testing.T) {
	c := validConfig()
	assert.Equal(t, c.MongoURILocal, c.MongoURI())

	c.Env = "production"
	assert.Equal(t, c.MongoURILive, c.MongoURI())
}

func TestConfig_Allowlist(t *testing.T) {
	c := validConfig()
	c.RegistrationAllowlist = " Owner@Example.com, ,editor@example.com "
	assert.Equal(t, []string{"owner@example.com", "editor@example.com"}, c.Allowlist())
}

func TestLoadConfig_FromEnvironment(t *testing.T) {
	defer viper.Reset()
	for k, v := range map[string]string{
		"APP_ENV":                " Test ",
		"PORT":                   "5050",
		"JWT_COOKIE_EXPIRES_IN":  "7",
		"REGISTRATION_ALLOWLIST": "a@example.com",
	} {
		require.NoError(t, os.Setenv(k, v))
		defer os.Unsetenv(k)
	}

	c, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "test", c.Env)
	assert.Equal(t, "5050", c.Port)
	assert.Equal(t, 7*24*time.Hour, c.CookieTTL())
	assert.Equal(t, 90*24*time.Hour, c.TokenTTL())
	assert.Equal(t, []string{"a@example.com"}, c.Allowlist())
}
