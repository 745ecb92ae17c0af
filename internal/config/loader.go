package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"stocktracker/internal/logger"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// DefaultPath picks config-{env}.toml when STOCKTRACKER_ENV is set
func DefaultPath() string {
	env := strings.ToLower(os.Getenv(logger.EnvKey))
	if env == "" {
		return "config.toml"
	}
	return fmt.Sprintf("config-%s.toml", env)
}

// Load merges the TOML file at path over the defaults and then applies
// STOCKTRACKER_* environment overrides. A missing file leaves the defaults
// in place.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	// .env is optional
	_ = godotenv.Load()

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("invalid environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) error {
	errs := []error{}
	errs = append(errs, setInt(&cfg.Server.Port, "STOCKTRACKER_SERVER_PORT"))
	setStringSlice(&cfg.Server.CORSOrigins, "STOCKTRACKER_SERVER_CORS_ORIGINS")

	setStr(&cfg.Postgres.Host, "STOCKTRACKER_POSTGRES_HOST")
	setStr(&cfg.Postgres.Port, "STOCKTRACKER_POSTGRES_PORT")
	setStr(&cfg.Postgres.User, "STOCKTRACKER_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "STOCKTRACKER_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.Database, "STOCKTRACKER_POSTGRES_DATABASE")
	errs = append(errs, setBool(&cfg.Postgres.EnableSsl, "STOCKTRACKER_POSTGRES_ENABLE_SSL"))

	setStr(&cfg.Redis.Addr, "STOCKTRACKER_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "STOCKTRACKER_REDIS_PASSWORD")
	errs = append(errs,
		setInt(&cfg.Redis.DB, "STOCKTRACKER_REDIS_DB"),
		setDuration(&cfg.Redis.TTL, "STOCKTRACKER_REDIS_TTL"),
	)

	setStr(&cfg.Alpaca.ApiKey, "STOCKTRACKER_ALPACA_API_KEY")
	setStr(&cfg.Alpaca.ApiSecret, "STOCKTRACKER_ALPACA_API_SECRET")
	setStr(&cfg.Alpaca.DataEndpoint, "STOCKTRACKER_ALPACA_DATA_ENDPOINT")

	setStr(&cfg.Prices.Provider, "STOCKTRACKER_PRICES_PROVIDER")
	setStr(&cfg.Monitor.Strategy, "STOCKTRACKER_MONITOR_STRATEGY")

	return errors.Join(errs...)
}

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s=%q is not an integer: %w", key, v, err)
	}
	*dst = n
	return nil
}

func setBool(dst *bool, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s=%q is not a boolean: %w", key, v, err)
	}
	*dst = b
	return nil
}

func setDuration(dst *duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s=%q is not a duration: %w", key, v, err)
	}
	dst.Duration = d
	return nil
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		out := []string{}
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		*dst = out
	}
}
