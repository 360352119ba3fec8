package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/modelgate/modelgate/internal/cache"
	"github.com/modelgate/modelgate/internal/database"
	"github.com/modelgate/modelgate/internal/ledger"
	"github.com/modelgate/modelgate/internal/payments"
)

// Config is the root configuration for the service. Values come from a
// config file when one is present, with MODELGATE_ environment variables
// overriding individual keys.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Ledger     LedgerConfig     `mapstructure:"ledger"`
	Payments   PaymentsConfig   `mapstructure:"payments"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
}

type ServerConfig struct {
	Port      int             `mapstructure:"port"`
	LogLevel  string          `mapstructure:"log_level"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

type RateLimitConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	MaxRequests int           `mapstructure:"max_requests"`
	Window      time.Duration `mapstructure:"window"`
}

type DatabaseConfig struct {
	Driver   string            `mapstructure:"driver"`
	Path     string            `mapstructure:"path"`
	DSN      string            `mapstructure:"dsn"`
	Host     string            `mapstructure:"host"`
	Port     int               `mapstructure:"port"`
	Name     string            `mapstructure:"name"`
	User     string            `mapstructure:"user"`
	Password string            `mapstructure:"password"`
	Options  map[string]string `mapstructure:"options"`
}

// DatabaseConfig converts the section into the database package's config.
func (d DatabaseConfig) DatabaseConfig() database.Config {
	return database.Config{
		Driver:   d.Driver,
		Path:     d.Path,
		DSN:      d.DSN,
		Host:     d.Host,
		Port:     d.Port,
		Name:     d.Name,
		User:     d.User,
		Password: d.Password,
		Options:  d.Options,
	}
}

type CacheConfig struct {
	Redis RedisConfig `mapstructure:"redis"`
}

type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Address  string        `mapstructure:"address"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TLS      bool          `mapstructure:"tls"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// RedisConfig converts the section into the cache package's config.
func (r RedisConfig) RedisConfig() cache.RedisConfig {
	return cache.RedisConfig{
		Address:  r.Address,
		Username: r.Username,
		Password: r.Password,
		DB:       r.DB,
		TLS:      r.TLS,
		Timeout:  r.Timeout,
	}
}

type LedgerConfig struct {
	RPCURL         string        `mapstructure:"rpc_url"`
	Network        string        `mapstructure:"network"`
	ChainID        int64         `mapstructure:"chain_id"`
	Confirmations  uint64        `mapstructure:"confirmations"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	ConfirmTimeout time.Duration `mapstructure:"confirm_timeout"`
}

// LedgerConfig converts the section into the ledger package's config.
func (l LedgerConfig) LedgerConfig() ledger.Config {
	return ledger.Config{
		RPCURL:         l.RPCURL,
		Network:        l.Network,
		ChainID:        l.ChainID,
		Confirmations:  l.Confirmations,
		PollInterval:   l.PollInterval,
		ConfirmTimeout: l.ConfirmTimeout,
	}
}

type PaymentsConfig struct {
	Destination    string            `mapstructure:"destination"`
	Currency       string            `mapstructure:"currency"`
	Decimals       int32             `mapstructure:"decimals"`
	Fees           map[string]string `mapstructure:"fees"`
	DefaultFee     string            `mapstructure:"default_fee"`
	ValidityWindow time.Duration     `mapstructure:"validity_window"`
}

// FeeSchedule parses the configured fee amounts and builds the schedule.
func (p PaymentsConfig) FeeSchedule() (*payments.FeeSchedule, error) {
	fees := make(map[string]decimal.Decimal, len(p.Fees))
	for resourceType, raw := range p.Fees {
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("parse fee for %q: %w", resourceType, err)
		}
		fees[resourceType] = amount
	}

	defaultFee, err := decimal.NewFromString(p.DefaultFee)
	if err != nil {
		return nil, fmt.Errorf("parse default fee: %w", err)
	}

	return payments.NewFeeSchedule(p.Destination, p.Currency, p.Decimals, fees, defaultFee)
}

type MonitoringConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
}

type PrometheusConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// LoadConfig reads configuration from the given file path. An empty path
// falls back to config.yaml in the working directory; a missing file is not
// an error, defaults and environment variables still apply.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("MODELGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.rate_limit.enabled", true)
	v.SetDefault("server.rate_limit.max_requests", 120)
	v.SetDefault("server.rate_limit.window", time.Minute)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "data/modelgate.db")

	v.SetDefault("cache.redis.enabled", false)
	v.SetDefault("cache.redis.address", "localhost:6379")
	v.SetDefault("cache.redis.timeout", 5*time.Second)

	v.SetDefault("ledger.rpc_url", "http://localhost:8545")
	v.SetDefault("ledger.network", "base-sepolia")
	v.SetDefault("ledger.chain_id", 84532)
	v.SetDefault("ledger.confirmations", 1)
	v.SetDefault("ledger.poll_interval", 3*time.Second)
	v.SetDefault("ledger.confirm_timeout", 2*time.Minute)

	v.SetDefault("payments.currency", "ETH")
	v.SetDefault("payments.decimals", 18)
	v.SetDefault("payments.default_fee", "0.0001")
	v.SetDefault("payments.fees", map[string]string{
		"model-details":     "0.0001",
		"competition-entry": "0.0005",
		"deposit":           "0.001",
	})
	v.SetDefault("payments.validity_window", 30*24*time.Hour)

	v.SetDefault("monitoring.prometheus.enabled", true)
	v.SetDefault("monitoring.prometheus.path", "/metrics")
}
