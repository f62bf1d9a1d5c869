package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "STOREFRONT"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	StorageFile  = "file"
	StorageRedis = "redis"
	StorageMongo = "mongo"

	SessionPlaceholder = "{session_id}"
)

type Config struct {
	App     AppConfig
	Backend BackendConfig
	Payment PaymentConfig
	Storage StorageConfig
	Redis   RedisConfig
	Mongo   MongoConfig
	HTTP    HTTPConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if _, err := url.ParseRequestURI(c.Backend.BaseURL); err != nil {
		return fmt.Errorf("invalid backend url %q: %w", c.Backend.BaseURL, err)
	}
	if !strings.Contains(c.Payment.PageURL, SessionPlaceholder) {
		return fmt.Errorf("payment page url must contain %s", SessionPlaceholder)
	}
	switch c.Storage.Backend {
	case StorageFile, StorageRedis, StorageMongo:
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	if c.Storage.Backend == StorageMongo && c.Mongo.URI == "" {
		return fmt.Errorf("mongo storage requires %s_MONGO_URI", EnvPrefix)
	}
	return nil
}

type AppConfig struct {
	Env          string `envconfig:"STOREFRONT_APP_ENV" default:"dev"`
	Port         string `envconfig:"STOREFRONT_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"STOREFRONT_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"STOREFRONT_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"STOREFRONT_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type BackendConfig struct {
	BaseURL string        `envconfig:"STOREFRONT_BACKEND_URL" required:"true"`
	Timeout time.Duration `envconfig:"STOREFRONT_BACKEND_TIMEOUT" default:"30s"`

	CheckoutPath string `envconfig:"STOREFRONT_BACKEND_CHECKOUT_PATH" default:"/checkout-sessions"`
	VerifyPath   string `envconfig:"STOREFRONT_BACKEND_VERIFY_PATH" default:"/checkout-sessions/{session_id}/verify"`
	LoginPath    string `envconfig:"STOREFRONT_BACKEND_LOGIN_PATH" default:"/auth/login"`
	CarPath      string `envconfig:"STOREFRONT_BACKEND_CAR_PATH" default:"/cars/{id}"`
	OrdersPath   string `envconfig:"STOREFRONT_BACKEND_ORDERS_PATH" default:"/orders/user/{email}"`

	BreakerMaxFailures uint32        `envconfig:"STOREFRONT_BACKEND_BREAKER_MAX_FAILURES" default:"5"`
	BreakerOpenTimeout time.Duration `envconfig:"STOREFRONT_BACKEND_BREAKER_OPEN_TIMEOUT" default:"30s"`
}

type PaymentConfig struct {
	PageURL string `envconfig:"STOREFRONT_PAYMENT_PAGE_URL" required:"true"`
}

type StorageConfig struct {
	Backend   string `envconfig:"STOREFRONT_STORAGE_BACKEND" default:"file"`
	Dir       string `envconfig:"STOREFRONT_STORAGE_DIR" default:".storefront"`
	Namespace string `envconfig:"STOREFRONT_STORAGE_NAMESPACE" default:"storefront"`
	Scope     string `envconfig:"STOREFRONT_STORAGE_SCOPE" default:"local"`
}

type RedisConfig struct {
	Addr     string `envconfig:"STOREFRONT_REDIS_ADDR" default:"localhost:6379"`
	Password string `envconfig:"STOREFRONT_REDIS_PASSWORD"`
	DB       int    `envconfig:"STOREFRONT_REDIS_DB" default:"0"`
	// TTL is refreshed on every write. Zero keeps keys forever.
	TTL time.Duration `envconfig:"STOREFRONT_REDIS_TTL" default:"720h"`
}

type MongoConfig struct {
	URI      string `envconfig:"STOREFRONT_MONGO_URI"`
	Database string `envconfig:"STOREFRONT_MONGO_DATABASE" default:"storefront"`
}

type HTTPConfig struct {
	AllowedOrigins  []string      `envconfig:"STOREFRONT_HTTP_ALLOWED_ORIGINS" default:"http://localhost:5173"`
	RequestTimeout  time.Duration `envconfig:"STOREFRONT_HTTP_REQUEST_TIMEOUT" default:"30s"`
	ShutdownTimeout time.Duration `envconfig:"STOREFRONT_HTTP_SHUTDOWN_TIMEOUT" default:"10s"`
	CookieSecure    bool          `envconfig:"STOREFRONT_HTTP_COOKIE_SECURE" default:"false"`
}
