// Package config loads the application configuration from the environment.
//
// Variables are read with the ONEPAGER_ prefix; a double underscore nests
// keys, so ONEPAGER_STORE__URL becomes store.url. A .env file in the
// working directory is loaded first when present.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	_ "github.com/joho/godotenv/autoload"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

const (
	EnvPrefix   = "ONEPAGER_"
	ServiceName = "onepager"
)

type Config struct {
	Primary       Primary              `koanf:"primary" validate:"required"`
	Server        ServerConfig         `koanf:"server" validate:"required"`
	Store         StoreConfig          `koanf:"store" validate:"required"`
	Redis         RedisConfig          `koanf:"redis"`
	Auth          AuthConfig           `koanf:"auth"`
	Jobs          JobsConfig           `koanf:"jobs"`
	Observability *ObservabilityConfig `koanf:"observability"`
}

type Primary struct {
	Env string `koanf:"env" validate:"required,oneof=local development staging production"`
}

// ServerConfig timeouts are in seconds.
type ServerConfig struct {
	Port               string   `koanf:"port" validate:"required"`
	ReadTimeout        int      `koanf:"read_timeout" validate:"min=1"`
	WriteTimeout       int      `koanf:"write_timeout" validate:"min=1"`
	IdleTimeout        int      `koanf:"idle_timeout" validate:"min=1"`
	CORSAllowedOrigins []string `koanf:"cors_allowed_origins"`
	RateLimit          float64  `koanf:"rate_limit" validate:"min=0"`
}

// StoreConfig points at the hosted Postgres database. URL is the endpoint,
// Key the access credential used as the connection password.
type StoreConfig struct {
	URL  string `koanf:"url" validate:"required,url"`
	Key  string `koanf:"key" validate:"required"`
	User string `koanf:"user"`

	MaxConns        int32         `koanf:"max_conns" validate:"min=1"`
	MinConns        int32         `koanf:"min_conns" validate:"min=0,ltefield=MaxConns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `koanf:"conn_max_idle_time"`

	// SimpleProtocol is needed behind transaction-mode connection poolers.
	SimpleProtocol bool `koanf:"simple_protocol"`
}

// RedisConfig is optional. Without an address the stale-record sweeper
// is disabled.
type RedisConfig struct {
	Address  string `koanf:"address"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db" validate:"min=0"`
}

func (c RedisConfig) Enabled() bool {
	return c.Address != ""
}

// AuthConfig holds the Clerk secret. Write routes are open when it is empty,
// which is only allowed outside production.
type AuthConfig struct {
	SecretKey string `koanf:"secret_key"`
}

func (c AuthConfig) Enabled() bool {
	return c.SecretKey != ""
}

type JobsConfig struct {
	SweepInterval time.Duration `koanf:"sweep_interval" validate:"min=1s"`
	StaleAfter    time.Duration `koanf:"stale_after" validate:"min=1s"`
	Concurrency   int           `koanf:"concurrency" validate:"min=1"`
}

// Defaults returns a Config holding every optional value. Environment
// variables are decoded on top of it.
func Defaults() *Config {
	return &Config{
		Primary: Primary{Env: "development"},
		Server: ServerConfig{
			Port:               "8080",
			ReadTimeout:        30,
			WriteTimeout:       30,
			IdleTimeout:        60,
			CORSAllowedOrigins: []string{"*"},
			RateLimit:          20,
		},
		Store: StoreConfig{
			User:            "postgres",
			MaxConns:        10,
			MinConns:        1,
			ConnMaxLifetime: time.Hour,
			ConnMaxIdleTime: 30 * time.Minute,
		},
		Jobs: JobsConfig{
			SweepInterval: 5 * time.Minute,
			StaleAfter:    30 * time.Minute,
			Concurrency:   5,
		},
		Observability: DefaultObservabilityConfig(),
	}
}

// listKeys are decoded from comma-separated environment values.
var listKeys = map[string]bool{
	"server.cors_allowed_origins":         true,
	"observability.health_checks.checks": true,
}

func envKeyValue(name, value string) (string, any) {
	key := strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(name, EnvPrefix)), "__", ".")
	if !listKeys[key] {
		return key, value
	}

	items := []string{}
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return key, items
}

// LoadConfig reads, defaults and validates the configuration. Any error is
// fatal for the caller.
func LoadConfig() (*Config, error) {
	k := koanf.New(".")

	err := k.Load(env.ProviderWithValue(EnvPrefix, ".", envKeyValue), nil)
	if err != nil {
		return nil, fmt.Errorf("loading env variables: %w", err)
	}

	cfg := Defaults()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	if cfg.Observability == nil {
		cfg.Observability = DefaultObservabilityConfig()
	}
	cfg.Observability.ServiceName = ServiceName
	cfg.Observability.Environment = cfg.Primary.Env

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks struct tags and the rules that span blocks.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	if err := c.Observability.Validate(); err != nil {
		return fmt.Errorf("invalid observability config: %w", err)
	}
	if c.IsProduction() && !c.Auth.Enabled() {
		return fmt.Errorf("auth.secret_key is required in production")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Primary.Env == "production"
}

func (c *Config) IsLocal() bool {
	return c.Primary.Env == "local"
}
