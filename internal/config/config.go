// Package config reads server settings from the environment, optionally
// seeded from a .env file in the working directory.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every setting the server needs at startup.
type Config struct {
	Port         string
	DatabaseURL  string // postgres DSN; when empty SQLite at DatabasePath is used
	DatabasePath string
	JWTSecret    string
	JWTTTL       time.Duration
	BcryptCost   int
	CORSOrigin   string
	FrontendURL  string
	CookieSecure bool
	LogLevel     slog.Level

	GoogleClientID     string
	GoogleClientSecret string
	GoogleCallbackURL  string
}

// GoogleTokenLogin reports whether ID tokens posted by clients can be verified.
func (c *Config) GoogleTokenLogin() bool {
	return c.GoogleClientID != ""
}

// GoogleRedirectLogin reports whether the browser redirect flow is available.
func (c *Config) GoogleRedirectLogin() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != "" && c.GoogleCallbackURL != ""
}

// Load reads .env if present, then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv(os.LookupEnv)
}

// FromEnv builds a Config from lookup and validates it. All problems are
// reported together.
func FromEnv(lookup func(string) (string, bool)) (*Config, error) {
	get := func(key, def string) string {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		return def
	}

	var errs []error
	cfg := &Config{
		Port:               get("PORT", "8080"),
		DatabaseURL:        get("DATABASE_URL", ""),
		DatabasePath:       get("DATABASE_PATH", "habit-tracker.db"),
		JWTSecret:          get("JWT_SECRET", ""),
		CORSOrigin:         get("CORS_ORIGIN", "*"),
		FrontendURL:        get("FRONTEND_URL", ""),
		CookieSecure:       get("COOKIE_SECURE", "true") != "false",
		GoogleClientID:     get("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: get("GOOGLE_CLIENT_SECRET", ""),
		GoogleCallbackURL:  get("GOOGLE_CALLBACK_URL", ""),
	}

	switch {
	case cfg.JWTSecret == "":
		errs = append(errs, errors.New("JWT_SECRET is required"))
	case len(cfg.JWTSecret) < 32:
		errs = append(errs, errors.New("JWT_SECRET must be at least 32 characters"))
	}

	ttl, err := time.ParseDuration(get("JWT_TTL", "24h"))
	if err != nil || ttl <= 0 {
		errs = append(errs, fmt.Errorf("JWT_TTL must be a positive duration, got %q", get("JWT_TTL", "")))
	}
	cfg.JWTTTL = ttl

	cost, err := strconv.Atoi(get("BCRYPT_COST", "12"))
	if err != nil || cost < 4 || cost > 14 {
		errs = append(errs, fmt.Errorf("BCRYPT_COST must be an integer between 4 and 14, got %q", get("BCRYPT_COST", "")))
	}
	cfg.BcryptCost = cost

	if err := cfg.LogLevel.UnmarshalText([]byte(get("LOG_LEVEL", "info"))); err != nil {
		errs = append(errs, fmt.Errorf("LOG_LEVEL: %w", err))
	}

	if cfg.FrontendURL != "" {
		if u, err := url.Parse(cfg.FrontendURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("FRONTEND_URL must be an absolute URL, got %q", cfg.FrontendURL))
		}
	}

	// The redirect flow needs all three settings; a partial set is a mistake.
	if (cfg.GoogleClientSecret != "" || cfg.GoogleCallbackURL != "") && !cfg.GoogleRedirectLogin() {
		errs = append(errs, errors.New("GOOGLE_CLIENT_ID, GOOGLE_CLIENT_SECRET and GOOGLE_CALLBACK_URL must be set together"))
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}
