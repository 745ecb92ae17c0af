package config

import (
	"fmt"
	"time"
)

type Config struct {
	Server   ServerConfig   `toml:"server"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	Alpaca   AlpacaConfig   `toml:"alpaca"`
	Prices   PricesConfig   `toml:"prices"`
	Monitor  MonitorConfig  `toml:"monitor"`
}

type ServerConfig struct {
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
}

// PostgresConfig is optional; without a host positions are kept in memory
type PostgresConfig struct {
	Host      string `toml:"host"`
	Port      string `toml:"port"`
	User      string `toml:"user"`
	Password  string `toml:"password"`
	Database  string `toml:"database"`
	EnableSsl bool   `toml:"enable_ssl"`
}

func (t PostgresConfig) Enabled() bool {
	return t.Host != ""
}

func (t PostgresConfig) ToConnectionStr() string {
	x := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s",
		t.Host, t.Port, t.User, t.Password, t.Database)
	if !t.EnableSsl {
		x += " sslmode=disable"
	}
	return x
}

// RedisConfig is optional; without an address price history is not cached
type RedisConfig struct {
	Addr     string   `toml:"addr"`
	Password string   `toml:"password"`
	DB       int      `toml:"db"`
	TTL      duration `toml:"ttl"`
}

func (t RedisConfig) Enabled() bool {
	return t.Addr != ""
}

type AlpacaConfig struct {
	ApiKey       string `toml:"api_key"`
	ApiSecret    string `toml:"api_secret"`
	DataEndpoint string `toml:"data_endpoint"`
}

func (t AlpacaConfig) Enabled() bool {
	return t.ApiKey != "" && t.ApiSecret != ""
}

const (
	PriceProviderYahoo  = "yahoo"
	PriceProviderAlpaca = "alpaca"
)

type PricesConfig struct {
	Provider string `toml:"provider"`
}

type MonitorConfig struct {
	Strategy string `toml:"strategy"`
}

type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:        3009,
			CORSOrigins: []string{"http://localhost:3000"},
		},
		Postgres: PostgresConfig{
			Port: "5432",
		},
		Redis: RedisConfig{
			TTL: duration{12 * time.Hour},
		},
		Alpaca: AlpacaConfig{
			DataEndpoint: "https://data.alpaca.markets",
		},
		Prices: PricesConfig{
			Provider: PriceProviderYahoo,
		},
		Monitor: MonitorConfig{
			Strategy: "rr_3_advancing",
		},
	}
}

func (c Config) Validate() error {
	switch c.Prices.Provider {
	case PriceProviderYahoo:
	case PriceProviderAlpaca:
		if !c.Alpaca.Enabled() {
			return fmt.Errorf("prices.provider is alpaca but alpaca credentials are missing")
		}
	default:
		return fmt.Errorf("unknown prices.provider %q", c.Prices.Provider)
	}
	if c.Server.Port <= 0 {
		return fmt.Errorf("invalid server.port %d", c.Server.Port)
	}
	if c.Redis.Enabled() && c.Redis.TTL.Duration <= 0 {
		return fmt.Errorf("redis.ttl must be positive")
	}
	return nil
}
