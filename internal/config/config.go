// Package config loads the immutable process configuration from the environment
// and an optional .env file using Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/samirsuroshe18/lth-painting-management-sub001/internal/auth"
	"github.com/samirsuroshe18/lth-painting-management-sub001/internal/httpapi"
	"github.com/samirsuroshe18/lth-painting-management-sub001/internal/notify"
)

// Config holds application configuration. It is built once at startup and
// passed by value to the components that need it.
type Config struct {
	HTTPAddr    string `mapstructure:"HTTP_ADDR"`
	GRPCAddr    string `mapstructure:"GRPC_ADDR"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	Env         string `mapstructure:"APP_ENV"`
	LogLevel    string `mapstructure:"LOG_LEVEL"`

	AccessTokenSecret  string `mapstructure:"ACCESS_TOKEN_SECRET"`
	RefreshTokenSecret string `mapstructure:"REFRESH_TOKEN_SECRET"`
	// AccessTokenTTL and RefreshTokenTTL are Go durations ("15m", "168h").
	AccessTokenTTL  string `mapstructure:"ACCESS_TOKEN_TTL"`
	RefreshTokenTTL string `mapstructure:"REFRESH_TOKEN_TTL"`
	TokenIssuer     string `mapstructure:"TOKEN_ISSUER"`
	BcryptCost      int    `mapstructure:"BCRYPT_COST"`

	CookieHTTPOnly       bool   `mapstructure:"COOKIE_HTTP_ONLY"`
	CookieSameSite       string `mapstructure:"COOKIE_SAME_SITE"`
	CookieRememberMaxAge string `mapstructure:"COOKIE_REMEMBER_MAX_AGE"`
	// AllowedOrigins is a comma-separated list of CORS origins.
	AllowedOrigins string `mapstructure:"ALLOWED_ORIGINS"`
	// TrustedProxies is a comma-separated list of proxy CIDRs allowed to set X-Forwarded-For.
	TrustedProxies string `mapstructure:"TRUSTED_PROXIES"`

	SuperadminEmail    string `mapstructure:"SUPERADMIN_EMAIL"`
	SuperadminPassword string `mapstructure:"SUPERADMIN_PASSWORD"`
	SuperadminName     string `mapstructure:"SUPERADMIN_NAME"`

	SMTPHost     string `mapstructure:"SMTP_HOST"`
	SMTPPort     int    `mapstructure:"SMTP_PORT"`
	SMTPUsername string `mapstructure:"SMTP_USERNAME"`
	SMTPPassword string `mapstructure:"SMTP_PASSWORD"`
	SMTPFrom     string `mapstructure:"SMTP_FROM"`
	ResetURLBase string `mapstructure:"RESET_URL_BASE"`

	LoginRatePerSec float64 `mapstructure:"LOGIN_RATE_PER_SEC"`
	LoginRateBurst  int     `mapstructure:"LOGIN_RATE_BURST"`
}

// Load reads .env (if present), then builds and validates Config from the
// environment. Env vars override .env.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // missing .env is fine

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("GRPC_ADDR", ":9090")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("ACCESS_TOKEN_SECRET", "")
	v.SetDefault("REFRESH_TOKEN_SECRET", "")
	v.SetDefault("ACCESS_TOKEN_TTL", "15m")
	v.SetDefault("REFRESH_TOKEN_TTL", "168h")
	v.SetDefault("TOKEN_ISSUER", "asset-admin")
	v.SetDefault("BCRYPT_COST", 10)
	v.SetDefault("COOKIE_HTTP_ONLY", true)
	v.SetDefault("COOKIE_SAME_SITE", "strict")
	v.SetDefault("COOKIE_REMEMBER_MAX_AGE", "168h")
	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("TRUSTED_PROXIES", "")
	v.SetDefault("SUPERADMIN_EMAIL", "")
	v.SetDefault("SUPERADMIN_PASSWORD", "")
	v.SetDefault("SUPERADMIN_NAME", "Super Admin")
	v.SetDefault("SMTP_HOST", "")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SMTP_USERNAME", "")
	v.SetDefault("SMTP_PASSWORD", "")
	v.SetDefault("SMTP_FROM", "")
	v.SetDefault("RESET_URL_BASE", "http://localhost:8080/v1/auth/password/reset")
	v.SetDefault("LOGIN_RATE_PER_SEC", 1.0)
	v.SetDefault("LOGIN_RATE_BURST", 5)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks required fields and normalizes clamped values.
func (c *Config) Validate() error {
	if c.HTTPAddr == "" {
		return errors.New("config: HTTP_ADDR must be set")
	}
	if c.AccessTokenSecret == "" || c.RefreshTokenSecret == "" {
		return errors.New("config: ACCESS_TOKEN_SECRET and REFRESH_TOKEN_SECRET are required")
	}
	if c.AccessTokenSecret == c.RefreshTokenSecret {
		return errors.New("config: access and refresh token secrets must differ")
	}
	for key, value := range map[string]string{
		"ACCESS_TOKEN_TTL":        c.AccessTokenTTL,
		"REFRESH_TOKEN_TTL":       c.RefreshTokenTTL,
		"COOKIE_REMEMBER_MAX_AGE": c.CookieRememberMaxAge,
	} {
		if d, err := time.ParseDuration(strings.TrimSpace(value)); err != nil || d <= 0 {
			return fmt.Errorf("config: %s must be a positive duration, got %q", key, value)
		}
	}
	if _, err := httpapi.ParseTrustedProxies(c.Proxies()); err != nil {
		return fmt.Errorf("config: TRUSTED_PROXIES: %w", err)
	}
	if (c.SuperadminEmail == "") != (c.SuperadminPassword == "") {
		return errors.New("config: SUPERADMIN_EMAIL and SUPERADMIN_PASSWORD must be set together")
	}
	if c.SMTPHost != "" && c.SMTPFrom == "" {
		return errors.New("config: SMTP_FROM is required when SMTP_HOST is set")
	}
	switch {
	case c.BcryptCost == 0:
		c.BcryptCost = 10
	case c.BcryptCost < 4:
		c.BcryptCost = 4
	case c.BcryptCost > 31:
		c.BcryptCost = 31
	}
	return nil
}

// Production reports whether APP_ENV selects production behavior.
func (c *Config) Production() bool {
	return strings.EqualFold(strings.TrimSpace(c.Env), "production")
}

// Tokens returns the TokenService configuration.
func (c *Config) Tokens() auth.TokenConfig {
	return auth.TokenConfig{
		AccessSecret:  c.AccessTokenSecret,
		RefreshSecret: c.RefreshTokenSecret,
		AccessTTL:     parseDuration(c.AccessTokenTTL, 15*time.Minute),
		RefreshTTL:    parseDuration(c.RefreshTokenTTL, 168*time.Hour),
		Issuer:        c.TokenIssuer,
	}
}

// Cookies returns the session cookie attributes. Cookies are Secure in production.
func (c *Config) Cookies() httpapi.CookieConfig {
	return httpapi.CookieConfig{
		Secure:         c.Production(),
		HTTPOnly:       c.CookieHTTPOnly,
		SameSite:       httpapi.ParseSameSite(c.CookieSameSite),
		RememberMaxAge: parseDuration(c.CookieRememberMaxAge, 168*time.Hour),
		Path:           "/",
	}
}

// SMTP returns the mail relay settings.
func (c *Config) SMTP() notify.SMTPConfig {
	return notify.SMTPConfig{
		Host:         c.SMTPHost,
		Port:         c.SMTPPort,
		Username:     c.SMTPUsername,
		Password:     c.SMTPPassword,
		From:         c.SMTPFrom,
		ResetURLBase: c.ResetURLBase,
	}
}

// Superadmin returns the bootstrap account, or false when none is configured.
func (c *Config) Superadmin() (auth.NewAccount, bool) {
	if c.SuperadminEmail == "" {
		return auth.NewAccount{}, false
	}
	return auth.NewAccount{
		Email:    c.SuperadminEmail,
		Name:     c.SuperadminName,
		Password: c.SuperadminPassword,
		Role:     auth.RoleSuperAdmin,
	}, true
}

// Origins splits AllowedOrigins.
func (c *Config) Origins() []string {
	if c == nil {
		return nil
	}
	return splitList(c.AllowedOrigins)
}

// Proxies splits TrustedProxies.
func (c *Config) Proxies() []string {
	if c == nil {
		return nil
	}
	return splitList(c.TrustedProxies)
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
