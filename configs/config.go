package configs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/shopspring/decimal"
)

type Config struct {
	App struct {
		Name     string `koanf:"name"`
		Env      string `koanf:"env"`
		HTTPAddr string `koanf:"http_addr"`
		LogLevel string `koanf:"log_level"`
		LogFile  string `koanf:"log_file"`
	} `koanf:"app"`

	HTTP struct {
		ReadTimeout     time.Duration `koanf:"read_timeout"`
		WriteTimeout    time.Duration `koanf:"write_timeout"`
		IdleTimeout     time.Duration `koanf:"idle_timeout"`
		RequestTimeout  time.Duration `koanf:"request_timeout"`
		ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	} `koanf:"http"`

	GRPC struct {
		Addr string `koanf:"addr"`
	} `koanf:"grpc"`

	MySQL struct {
		DSN             string        `koanf:"dsn"`
		MaxOpenConns    int           `koanf:"max_open_conns"`
		MaxIdleConns    int           `koanf:"max_idle_conns"`
		ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	} `koanf:"mysql"`

	Redis struct {
		Addr     string `koanf:"addr"`
		Password string `koanf:"password"`
		DB       int    `koanf:"db"`
	} `koanf:"redis"`

	Idempotency struct {
		TTL        time.Duration `koanf:"ttl"`
		OutcomeTTL time.Duration `koanf:"outcome_ttl"`
	} `koanf:"idempotency"`

	Rabbit struct {
		URL      string        `koanf:"url"`
		Prefetch int           `koanf:"prefetch"`
		Timeout  time.Duration `koanf:"timeout"`
	} `koanf:"rabbitmq"`

	Kafka struct {
		Enabled      bool     `koanf:"enabled"`
		Brokers      []string `koanf:"brokers"`
		GroupID      string   `koanf:"group_id"`
		TopicStatus  string   `koanf:"topic_status"`
		OffsetOldest bool     `koanf:"offset_oldest"`
	} `koanf:"kafka"`

	Security struct {
		JWTSecret string        `koanf:"jwt_secret"`
		Issuer    string        `koanf:"issuer"`
		Audience  string        `koanf:"audience"`
		TTL       time.Duration `koanf:"ttl"`
	} `koanf:"security"`

	PaymentAuthority struct {
		BaseURL       string        `koanf:"base_url"`
		APIKey        string        `koanf:"api_key"`
		Authorization string        `koanf:"authorization"`
		Timeout       time.Duration `koanf:"timeout"`
		Attempts      int           `koanf:"attempts"`
		BaseDelay     time.Duration `koanf:"base_delay"`
		MaxDelay      time.Duration `koanf:"max_delay"`
	} `koanf:"payment_authority"`

	Checkout struct {
		ClientID       string        `koanf:"client_id"`
		GatewayEnv     string        `koanf:"gateway_env"`
		Currency       string        `koanf:"currency"`
		CallbackURL    string        `koanf:"callback_url"`
		ShippingCharge string        `koanf:"shipping_charge"`
		SessionTTL     time.Duration `koanf:"session_ttl"`
		MaxReconciles  int           `koanf:"max_reconciles"`
		EventBuffer    int           `koanf:"event_buffer"`
	} `koanf:"checkout"`
}

const envPrefix = "CHECKOUT_"

// Load layers <dir>/base.yaml, the optional <dir>/<env>.yaml and CHECKOUT_*
// variables, in that order. Nesting in variable names uses "__":
// CHECKOUT_MYSQL__DSN sets mysql.dsn.
func Load(dir, envName string) (Config, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(filepath.Join(dir, "base.yaml")), yaml.Parser()); err != nil {
		return Config{}, fmt.Errorf("load base config: %w", err)
	}
	overlay := filepath.Join(dir, envName+".yaml")
	if _, err := os.Stat(overlay); err == nil {
		if err := k.Load(file.Provider(overlay), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("load %s config: %w", envName, err)
		}
	}
	if err := k.Load(env.ProviderWithValue(envPrefix, ".", envValue), nil); err != nil {
		return Config{}, fmt.Errorf("load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if cfg.App.Env == "" {
		cfg.App.Env = envName
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// listKeys may be given as comma-separated environment values.
var listKeys = map[string]bool{"kafka.brokers": true}

func envValue(key, value string) (string, any) {
	key = strings.ToLower(strings.ReplaceAll(strings.TrimPrefix(key, envPrefix), "__", "."))
	if listKeys[key] {
		return key, strings.Split(value, ",")
	}
	return key, value
}

// envVar names the variable that overrides a koanf key.
func envVar(key string) string {
	return envPrefix + strings.ToUpper(strings.ReplaceAll(key, ".", "__"))
}

// Validate reports every missing or malformed setting at once.
func (c Config) Validate() error {
	var errs []error
	require := func(ok bool, name string) {
		if !ok {
			errs = append(errs, fmt.Errorf("%s is required (set %s)", name, envVar(name)))
		}
	}
	require(c.App.HTTPAddr != "", "app.http_addr")
	require(c.MySQL.DSN != "", "mysql.dsn")
	require(c.Redis.Addr != "", "redis.addr")
	require(c.Security.JWTSecret != "", "security.jwt_secret")
	require(c.PaymentAuthority.BaseURL != "", "payment_authority.base_url")
	require(c.Checkout.ClientID != "", "checkout.client_id")
	if c.Kafka.Enabled {
		require(len(c.Kafka.Brokers) > 0, "kafka.brokers")
		require(c.Kafka.TopicStatus != "", "kafka.topic_status")
	}
	if c.Checkout.ShippingCharge != "" {
		if d, err := decimal.NewFromString(c.Checkout.ShippingCharge); err != nil || d.IsNegative() {
			errs = append(errs, fmt.Errorf("checkout.shipping_charge %q is not a non-negative amount", c.Checkout.ShippingCharge))
		}
	}
	return errors.Join(errs...)
}
