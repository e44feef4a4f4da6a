package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Addr               string        `toml:"addr"`
	DatabaseURL        string        `toml:"database_url"`
	JWTSecret          string        `toml:"jwt_secret"`
	Environment        string        `toml:"environment"`
	TokenTTL           time.Duration `toml:"-"`
	SeedAdminEmail     string        `toml:"seed_admin_email"`
	SeedAdminPassword  string        `toml:"seed_admin_password"`
	RunMigrations      bool          `toml:"run_migrations"`
	RunSeed            bool          `toml:"run_seed"`
	MaxBodyBytes       int64         `toml:"max_body_bytes"`
	RateLimitPerMinute int           `toml:"rate_limit_per_minute"`
	CORSAllowedOrigins []string      `toml:"cors_allowed_origins"`
	RolloverInterval   time.Duration `toml:"-"`
	PurgeInterval      time.Duration `toml:"-"`
	PurgeGracePeriod   time.Duration `toml:"-"`
	LockTimeout        time.Duration `toml:"-"`
	MetricsEnabled     bool          `toml:"metrics_enabled"`
}

// Load builds the config from the environment. When LMS_CONFIG_FILE points
// at a TOML file, values from the file are applied first and the environment
// overrides them.
func Load() Config {
	cfg := Config{
		Addr:               ":8080",
		Environment:        "development",
		TokenTTL:           12 * time.Hour,
		RunMigrations:      true,
		RunSeed:            true,
		MaxBodyBytes:       1048576,
		RateLimitPerMinute: 60,
		CORSAllowedOrigins: []string{"*"},
		RolloverInterval:   24 * time.Hour,
		PurgeInterval:      time.Hour,
		PurgeGracePeriod:   30 * 24 * time.Hour,
		LockTimeout:        5 * time.Second,
		MetricsEnabled:     true,
	}

	if path := os.Getenv("LMS_CONFIG_FILE"); path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			fmt.Fprintf(os.Stderr, "config file %s: %v\n", path, err)
		}
	}

	cfg.Addr = getEnv("APP_ADDR", cfg.Addr)
	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.JWTSecret = getEnv("JWT_SECRET", cfg.JWTSecret)
	cfg.Environment = getEnv("APP_ENV", cfg.Environment)
	cfg.TokenTTL = getEnvDuration("TOKEN_TTL", cfg.TokenTTL)
	cfg.SeedAdminEmail = getEnv("SEED_ADMIN_EMAIL", cfg.SeedAdminEmail)
	cfg.SeedAdminPassword = getEnv("SEED_ADMIN_PASSWORD", cfg.SeedAdminPassword)
	cfg.RunMigrations = getEnvBool("RUN_MIGRATIONS", cfg.RunMigrations)
	cfg.RunSeed = getEnvBool("RUN_SEED", cfg.RunSeed)
	cfg.MaxBodyBytes = int64(getEnvInt("MAX_BODY_BYTES", int(cfg.MaxBodyBytes)))
	cfg.RateLimitPerMinute = getEnvInt("RATE_LIMIT_PER_MINUTE", cfg.RateLimitPerMinute)
	if origins := os.Getenv("CORS_ALLOWED_ORIGINS"); origins != "" {
		cfg.CORSAllowedOrigins = splitAndTrim(origins)
	}
	cfg.RolloverInterval = getEnvDuration("ROLLOVER_INTERVAL", cfg.RolloverInterval)
	cfg.PurgeInterval = getEnvDuration("PURGE_INTERVAL", cfg.PurgeInterval)
	cfg.PurgeGracePeriod = getEnvDuration("PURGE_GRACE_PERIOD", cfg.PurgeGracePeriod)
	cfg.LockTimeout = getEnvDuration("LOCK_TIMEOUT", cfg.LockTimeout)
	cfg.MetricsEnabled = getEnvBool("METRICS_ENABLED", cfg.MetricsEnabled)

	return cfg
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func splitAndTrim(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.Environment == "production" {
		if strings.TrimSpace(c.JWTSecret) == "" {
			return fmt.Errorf("JWT_SECRET must be set to a strong value in production")
		}
		if c.RunSeed && strings.TrimSpace(c.SeedAdminPassword) == "" {
			return fmt.Errorf("SEED_ADMIN_PASSWORD must be changed or RUN_SEED disabled in production")
		}
	}
	if c.TokenTTL < time.Minute {
		return fmt.Errorf("TOKEN_TTL must be at least one minute")
	}
	if c.MaxBodyBytes < 1024 {
		return fmt.Errorf("MAX_BODY_BYTES must be at least 1024")
	}
	if c.RateLimitPerMinute <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must be positive")
	}
	if c.LockTimeout <= 0 {
		return fmt.Errorf("LOCK_TIMEOUT must be positive")
	}
	return nil
}
