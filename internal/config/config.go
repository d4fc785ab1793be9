package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type Config struct {
	App      AppConfig
	Log      LogConfig
	Mongo    MongoConfig
	Redis    RedisConfig
	Postgres PostgresConfig
	Catalog  CatalogConfig
	Kafka    KafkaConfig
	Checkout CheckoutConfig
	Auth     AuthConfig
	HTTP     HTTPConfig
}

type AppConfig struct {
	Name string
	Env  string
	Port string
}

type LogConfig struct {
	Level  string
	Format string
	Output string
}

type MongoConfig struct {
	URI      string
	Database string
}

type RedisConfig struct {
	Addr       string
	Password   string
	DB         int
	CartTTL    time.Duration
	SessionTTL time.Duration
}

type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// DSN builds a lib/pq connection URL.
func (p PostgresConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(p.User, p.Password),
		Host:     fmt.Sprintf("%s:%d", p.Host, p.Port),
		Path:     p.DBName,
		RawQuery: "sslmode=" + p.SSLMode,
	}
	return u.String()
}

type CatalogConfig struct {
	Path string
}

type KafkaConfig struct {
	Brokers      []string
	Topic        string
	GroupID      string
	PollInterval time.Duration
	BatchSize    int
}

type CheckoutConfig struct {
	ShippingCost   decimal.Decimal
	GatewayTimeout time.Duration
	GatewayDelay   time.Duration
	ApprovalRate   float64
}

type AuthConfig struct {
	JWTSecret string
}

type HTTPConfig struct {
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	RequestTimeout time.Duration
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "storefront")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output", "stdout")

	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.database", "storefront")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.cart_ttl", 15*time.Minute)
	v.SetDefault("redis.session_ttl", 2*time.Hour)

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "postgres")
	v.SetDefault("postgres.password", "postgres")
	v.SetDefault("postgres.dbname", "storefront")
	v.SetDefault("postgres.sslmode", "disable")

	v.SetDefault("catalog.path", "catalog.db")

	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "storefront.orders")
	v.SetDefault("kafka.group_id", "storefront-cart-sweeper")
	v.SetDefault("kafka.poll_interval", 5*time.Second)
	v.SetDefault("kafka.batch_size", 100)

	v.SetDefault("checkout.shipping_cost", "4500")
	v.SetDefault("checkout.gateway_timeout", 10*time.Second)
	v.SetDefault("checkout.gateway_delay", 2*time.Second)
	v.SetDefault("checkout.approval_rate", 1.0)

	v.SetDefault("auth.jwt_secret", "")

	v.SetDefault("http.read_timeout", 10*time.Second)
	v.SetDefault("http.write_timeout", 30*time.Second)
	v.SetDefault("http.idle_timeout", 60*time.Second)
	v.SetDefault("http.request_timeout", 20*time.Second)
}

// Load reads configuration.
// Priority (highest to lowest):
// 1. Environment variables with STOREFRONT_ prefix (e.g., STOREFRONT_POSTGRES_PASSWORD)
// 2. config.toml found in one of paths (or the working directory)
// 3. Built-in defaults
func Load(paths ...string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("toml")
	if len(paths) == 0 {
		paths = []string{".", "/app"}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("STOREFRONT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	shippingCost, err := decimal.NewFromString(v.GetString("checkout.shipping_cost"))
	if err != nil {
		return nil, fmt.Errorf("invalid checkout.shipping_cost: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Mongo: MongoConfig{
			URI:      v.GetString("mongo.uri"),
			Database: v.GetString("mongo.database"),
		},
		Redis: RedisConfig{
			Addr:       v.GetString("redis.addr"),
			Password:   v.GetString("redis.password"),
			DB:         v.GetInt("redis.db"),
			CartTTL:    v.GetDuration("redis.cart_ttl"),
			SessionTTL: v.GetDuration("redis.session_ttl"),
		},
		Postgres: PostgresConfig{
			Host:     v.GetString("postgres.host"),
			Port:     v.GetInt("postgres.port"),
			User:     v.GetString("postgres.user"),
			Password: v.GetString("postgres.password"),
			DBName:   v.GetString("postgres.dbname"),
			SSLMode:  v.GetString("postgres.sslmode"),
		},
		Catalog: CatalogConfig{
			Path: v.GetString("catalog.path"),
		},
		Kafka: KafkaConfig{
			Brokers:      v.GetStringSlice("kafka.brokers"),
			Topic:        v.GetString("kafka.topic"),
			GroupID:      v.GetString("kafka.group_id"),
			PollInterval: v.GetDuration("kafka.poll_interval"),
			BatchSize:    v.GetInt("kafka.batch_size"),
		},
		Checkout: CheckoutConfig{
			ShippingCost:   shippingCost,
			GatewayTimeout: v.GetDuration("checkout.gateway_timeout"),
			GatewayDelay:   v.GetDuration("checkout.gateway_delay"),
			ApprovalRate:   v.GetFloat64("checkout.approval_rate"),
		},
		Auth: AuthConfig{
			JWTSecret: v.GetString("auth.jwt_secret"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:    v.GetDuration("http.read_timeout"),
			WriteTimeout:   v.GetDuration("http.write_timeout"),
			IdleTimeout:    v.GetDuration("http.idle_timeout"),
			RequestTimeout: v.GetDuration("http.request_timeout"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	if c.App.Env == "production" && len(c.Auth.JWTSecret) < 32 {
		return errors.New("auth.jwt_secret must be at least 32 characters in production")
	}
	if c.Checkout.ShippingCost.IsNegative() {
		return errors.New("checkout.shipping_cost must not be negative")
	}
	if c.Checkout.ApprovalRate < 0 || c.Checkout.ApprovalRate > 1 {
		return errors.New("checkout.approval_rate must be between 0 and 1")
	}
	if c.Checkout.GatewayTimeout <= 0 {
		return errors.New("checkout.gateway_timeout must be positive")
	}
	return nil
}
