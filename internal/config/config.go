// Package config предоставляет структуры и функции для загрузки конфигурации
// из YAML-файла и переменных окружения.
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Окружения запуска.
const (
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"
)

// DevJWTSecret используется только в локальном окружении, если секрет не задан.
const DevJWTSecret = "billdesk-local-dev-secret"

// Config общая структура для хранения настроек.
type Config struct {
	Env                     string `yaml:"env" env:"ENV" env-default:"local"`
	StorageConnectionString string `yaml:"storage_connection_string" env:"STORAGE_CONNECTION_STRING"`
	MigrationsPath          string `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"./migrations"`
	// DisablePublicRoutes убирает неаутентифицированные маршруты чтения счетов.
	DisablePublicRoutes bool `yaml:"disable_public_routes" env:"DISABLE_PUBLIC_ROUTES"`
	RedisConnection     `yaml:"redis_connection"`
	HTTPServer          `yaml:"http_server"`
	JWTToken            `yaml:"jwttoken"`
	Auth                Auth     `yaml:"auth"`
	Assets              Assets   `yaml:"assets"`
	RabbitMQ            RabbitMQ `yaml:"rabbitmq"`

	// DevSecret выставляется, если подставлен DevJWTSecret.
	DevSecret bool `yaml:"-"`
}

// HTTPServer структура для настройки сервера.
type HTTPServer struct {
	AddressHTTP        string        `yaml:"addresshttp" env:"HTTP_ADDRESS" env-default:":5000"`
	TimeoutHTTP        time.Duration `yaml:"timeouthttp" env:"HTTP_TIMEOUT" env-default:"30s"`
	IdleTimeout        time.Duration `yaml:"idle_timeout" env:"HTTP_IDLE_TIMEOUT" env-default:"60s"`
	BodyLimit          int64         `yaml:"body_limit" env:"HTTP_BODY_LIMIT" env-default:"52428800"`
	CORSAllowedOrigins []string      `yaml:"cors_allowed_origins" env:"CORS_ALLOWED_ORIGINS" env-default:"*"`
	// TrustProxyHeaders берет адрес клиента из X-Forwarded-For/X-Real-IP.
	// Включать только за доверенным прокси, иначе клиент подменит адрес.
	TrustProxyHeaders bool `yaml:"trust_proxy_headers" env:"HTTP_TRUST_PROXY_HEADERS"`
}

// RedisConnection структура для настройки подключения к redis.
type RedisConnection struct {
	AddressRedis string        `yaml:"addressredis" env:"REDIS_ADDRESS" env-default:"localhost:6379"`
	Password     string        `yaml:"password" env:"REDIS_PASSWORD"`
	User         string        `yaml:"user" env:"REDIS_USER"`
	DB           int           `yaml:"db" env:"REDIS_DB"`
	MaxRetries   int           `yaml:"max_retries" env:"REDIS_MAX_RETRIES" env-default:"3"`
	DialTimeout  time.Duration `yaml:"dial_timeout" env:"REDIS_DIAL_TIMEOUT" env-default:"5s"`
	TimeoutRedis time.Duration `yaml:"timeoutredis" env:"REDIS_TIMEOUT" env-default:"3s"`
	BillCacheTTL time.Duration `yaml:"bill_cache_ttl" env:"REDIS_BILL_CACHE_TTL" env-default:"1h"`
}

// JWTToken структура для работы с jwt-токеном.
type JWTToken struct {
	JWTSecretKey string        `yaml:"jwt_secret_key" env:"JWT_SECRET"`
	TokenTTL     time.Duration `yaml:"token_ttl" env:"JWT_TOKEN_TTL" env-default:"168h"`
}

// Auth настройки учетных данных.
type Auth struct {
	// DisablePlaintextFallback запрещает вход по паролю, сохраненному открытым
	// текстом. По умолчанию такой вход разрешен и сразу перехеширует пароль.
	DisablePlaintextFallback bool    `yaml:"disable_plaintext_fallback" env:"AUTH_DISABLE_PLAINTEXT_FALLBACK"`
	LoginRate                float64 `yaml:"login_rate" env:"AUTH_LOGIN_RATE" env-default:"5"`
	LoginBurst               int     `yaml:"login_burst" env:"AUTH_LOGIN_BURST" env-default:"10"`
	// LoginLimiterIdle: через сколько забывать лимитер неактивного клиента.
	LoginLimiterIdle time.Duration `yaml:"login_limiter_idle" env:"AUTH_LOGIN_LIMITER_IDLE" env-default:"10m"`
}

// Assets настройки S3-совместимого хранилища PDF.
type Assets struct {
	Endpoint      string `yaml:"endpoint" env:"ASSETS_ENDPOINT"`
	Region        string `yaml:"region" env:"ASSETS_REGION" env-default:"us-east-1"`
	Bucket        string `yaml:"bucket" env:"ASSETS_BUCKET" env-default:"billdesk"`
	AccessKey     string `yaml:"access_key" env:"ASSETS_ACCESS_KEY"`
	SecretKey     string `yaml:"secret_key" env:"ASSETS_SECRET_KEY"`
	PublicBaseURL string `yaml:"public_base_url" env:"ASSETS_PUBLIC_BASE_URL"`
	Folder        string `yaml:"folder" env:"ASSETS_FOLDER" env-default:"billdesk-invoices"`
}

// RabbitMQ настройки публикации событий. Пустой URL отключает публикацию.
type RabbitMQ struct {
	URL        string        `yaml:"url" env:"RABBITMQ_URL"`
	Exchange   string        `yaml:"exchange" env:"RABBITMQ_EXCHANGE" env-default:"bills"`
	Retries    int           `yaml:"retries" env:"RABBITMQ_RETRIES" env-default:"5"`
	RetryDelay time.Duration `yaml:"retry_delay" env:"RABBITMQ_RETRY_DELAY" env-default:"2s"`
	// AuditQueue: очередь, из которой bill-audit читает события.
	AuditQueue string `yaml:"audit_queue" env:"RABBITMQ_AUDIT_QUEUE" env-default:"bill_audit"`
}

// ErrMissingSecret: секрет подписи не задан вне локального окружения.
var ErrMissingSecret = errors.New("jwt secret is not set")

// ErrMissingStorage: не задана строка подключения к базе.
var ErrMissingStorage = errors.New("storage connection string is not set")

// Load читает конфиг из файла path (если задан) и переменных окружения.
func Load(path string) (*Config, error) {
	const op = "config.Load"

	var cfg Config
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := cfg.finalize(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &cfg, nil
}

// MustLoad загружает конфиг по пути из CONFIG_PATH и завершает процесс при ошибке.
func MustLoad() *Config {
	cfg, err := Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	return cfg
}

func (c *Config) finalize() error {
	if c.StorageConnectionString == "" {
		return ErrMissingStorage
	}
	if c.JWTSecretKey == "" {
		if c.Env != EnvLocal {
			return fmt.Errorf("%w for env %q", ErrMissingSecret, c.Env)
		}
		c.JWTSecretKey = DevJWTSecret
		c.DevSecret = true
	}
	return nil
}

func (c *Config) String() string {
	return fmt.Sprintf(
		"Env: %s\n"+
			"StorageConnectionString: %s\n"+
			"MigrationsPath: %s\n"+
			"DisablePublicRoutes: %t\n"+
			"RedisConnection:\n"+
			"  Addr: %s\n"+
			"  DB: %d\n"+
			"HTTPServer:\n"+
			"  Address: %s\n"+
			"  Timeout: %s\n"+
			"  IdleTimeout: %s\n"+
			"  BodyLimit: %d\n"+
			"JWTToken:\n"+
			"  JWTSecretKey: %s\n"+
			"  TokenTTL: %s\n"+
			"Assets:\n"+
			"  Endpoint: %s\n"+
			"  Bucket: %s\n"+
			"RabbitMQ:\n"+
			"  Enabled: %t\n",
		c.Env,
		mask(c.StorageConnectionString),
		c.MigrationsPath,
		c.DisablePublicRoutes,
		c.AddressRedis,
		c.DB,
		c.AddressHTTP,
		c.TimeoutHTTP,
		c.IdleTimeout,
		c.BodyLimit,
		mask(c.JWTSecretKey),
		c.TokenTTL,
		c.Assets.Endpoint,
		c.Assets.Bucket,
		c.RabbitMQ.URL != "",
	)
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return "***"
}
