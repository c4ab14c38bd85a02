// config предоставляет структуру конфигурации сервиса и функции
// загрузки из файла/переменных окружения с предсказуемым приоритетом.
package config

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Config — корневая конфигурация сервиса.
// Источники значений (по убыванию приоритета):
//  1. явный путь через флаг --config;
//  2. путь в переменной окружения CONFIG_PATH;
//  3. файл local.yaml из рабочей директории;
//  4. переменные окружения (cleanenv, в т.ч. из .env).
type Config struct {
	Env      string         `yaml:"env" env:"ENV" env-default:"local"`
	HTTP     HTTPConfig     `yaml:"http"`
	GRPC     GRPCConfig     `yaml:"grpc"`
	Auth     AuthConfig     `yaml:"auth"`
	DB       DBConfig       `yaml:"db"`
	Redis    RedisConfig    `yaml:"redis"`
	Mongo    MongoConfig    `yaml:"mongo"`
	S3       S3Config       `yaml:"s3"`
	Provider ProviderConfig `yaml:"provider"`
	Retry    RetryConfig    `yaml:"retry"`
	Breakers BreakersConfig `yaml:"breakers"`
	Cache    CacheConfig    `yaml:"cache"`
	Cleanup  CleanupConfig  `yaml:"cleanup"`
	Admin    AdminConfig    `yaml:"admin"`
	Timeouts TimeoutConfig  `yaml:"timeouts"`
}

// TimeoutConfig — таймауты сервиса.
type TimeoutConfig struct {
	Service time.Duration `yaml:"service" env:"SERVICE_TIMEOUT" env-default:"5s"`
}

// HTTPConfig — сетевые настройки HTTP-сервера (API, health, метрики).
type HTTPConfig struct {
	Host string `yaml:"host" env:"HTTP_HOST" env-default:"0.0.0.0"`
	Port string `yaml:"port" env:"HTTP_PORT" env-default:"8080"`
}

// GRPCConfig описывает сетевые настройки gRPC-сервера (health).
type GRPCConfig struct {
	Host string `yaml:"host" env:"GRPC_HOST" env-default:"0.0.0.0"`
	Port string `yaml:"port" env:"GRPC_PORT" env-default:"50051"`
}

// Addr возвращает адрес в формате host:port.
func (g HTTPConfig) Addr() string {
	return net.JoinHostPort(g.Host, g.Port)
}

// Addr возвращает адрес в формате host:port.
func (g GRPCConfig) Addr() string {
	return net.JoinHostPort(g.Host, g.Port)
}

// AuthConfig содержит параметры выпуска и ротации токенов.
type AuthConfig struct {
	JWTSecret       string        `yaml:"jwt_secret" env:"JWT_SECRET" env-required:"true"`
	AccessTokenTTL  time.Duration `yaml:"access_token_ttl" env:"ACCESS_TOKEN_TTL" env-default:"15m"`
	RefreshTokenTTL time.Duration `yaml:"refresh_token_ttl" env:"REFRESH_TOKEN_TTL" env-default:"720h"`
	// FamilyTTL — абсолютный срок жизни семейства: ротация не продлевает сессию дальше него.
	FamilyTTL time.Duration `yaml:"family_ttl" env:"FAMILY_TTL" env-default:"2160h"`
	Issuer    string        `yaml:"issuer" env:"ISSUER" env-default:"flexibill"`
	Audience  []string      `yaml:"audience" env:"AUDIENCE" env-default:"flexibill-app"`
}

// DBConfig — настройки подключения к PostgreSQL.
// Пустой URL допустим только в env=local: тогда используется хранилище в памяти.
type DBConfig struct {
	DatabaseURL string `yaml:"db_url" env:"DATABASE_URL"`
}

// RedisConfig — кэш ответов провайдера; пустой URL — кэш в памяти процесса.
type RedisConfig struct {
	RedisURL string `yaml:"redis_url" env:"REDIS_URL"`
}

// MongoConfig — журнал инцидентов безопасности; пустой URL — журнал отключён.
type MongoConfig struct {
	URL          string        `yaml:"url" env:"MONGO_URL"`
	IncidentsTTL time.Duration `yaml:"incidents_ttl" env:"MONGO_INCIDENTS_TTL" env-default:"2160h"`
}

// S3Config — архив сырых webhook-событий в MinIO/S3; пустой endpoint — архив отключён.
type S3Config struct {
	Endpoint     string `yaml:"endpoint" env:"S3_ENDPOINT"`
	RootUser     string `yaml:"root_user" env:"S3_ROOT_USER"`
	RootPassword string `yaml:"root_password" env:"S3_ROOT_PASSWORD"`
	Bucket       string `yaml:"bucket" env:"S3_BUCKET" env-default:"webhooks"`
}

// ProviderConfig — доступ к API провайдера финансовых данных.
type ProviderConfig struct {
	BaseURL  string `yaml:"base_url" env:"PROVIDER_BASE_URL" env-default:"https://sandbox.plaid.com"`
	ClientID string `yaml:"client_id" env:"PROVIDER_CLIENT_ID"`
	Secret   string `yaml:"secret" env:"PROVIDER_SECRET"`
	// WebhookURL — публичный адрес /api/webhooks/provider для новых link-токенов.
	WebhookURL string `yaml:"webhook_url" env:"PROVIDER_WEBHOOK_URL"`
	// EncryptionKey — 32 байта в hex для шифрования access token связанных счетов.
	EncryptionKey string        `yaml:"encryption_key" env:"PROVIDER_ENCRYPTION_KEY" env-required:"true"`
	HTTPTimeout   time.Duration `yaml:"http_timeout" env:"PROVIDER_HTTP_TIMEOUT" env-default:"30s"`
	// TransactionsWindow — глубина выборки транзакций по webhook.
	TransactionsWindow time.Duration `yaml:"transactions_window" env:"PROVIDER_TRANSACTIONS_WINDOW" env-default:"720h"`
}

// RetryConfig — параметры RetryPolicy.
type RetryConfig struct {
	MaxRetries     int           `yaml:"max_retries" env:"RETRY_MAX_RETRIES" env-default:"3"`
	BaseDelay      time.Duration `yaml:"base_delay" env:"RETRY_BASE_DELAY" env-default:"1s"`
	MaxDelay       time.Duration `yaml:"max_delay" env:"RETRY_MAX_DELAY" env-default:"30s"`
	AttemptTimeout time.Duration `yaml:"attempt_timeout" env:"RETRY_ATTEMPT_TIMEOUT" env-default:"10s"`
}

// BreakerConfig — пороги circuit breaker одной зависимости.
type BreakerConfig struct {
	FailureThreshold int           `yaml:"failure_threshold"`
	ResetTimeout     time.Duration `yaml:"reset_timeout"`
	SuccessThreshold int           `yaml:"success_threshold"`
}

// BreakersConfig — пороги по умолчанию и переопределения по имени зависимости.
type BreakersConfig struct {
	FailureThreshold int                      `yaml:"failure_threshold" env:"BREAKER_FAILURE_THRESHOLD" env-default:"5"`
	ResetTimeout     time.Duration            `yaml:"reset_timeout" env:"BREAKER_RESET_TIMEOUT" env-default:"30s"`
	SuccessThreshold int                      `yaml:"success_threshold" env:"BREAKER_SUCCESS_THRESHOLD" env-default:"2"`
	Overrides        map[string]BreakerConfig `yaml:"overrides"`
}

// For возвращает пороги зависимости name: переопределение, дополненное значениями по умолчанию.
func (b BreakersConfig) For(name string) BreakerConfig {
	out := BreakerConfig{
		FailureThreshold: b.FailureThreshold,
		ResetTimeout:     b.ResetTimeout,
		SuccessThreshold: b.SuccessThreshold,
	}

	o, ok := b.Overrides[name]
	if !ok {
		return out
	}
	if o.FailureThreshold > 0 {
		out.FailureThreshold = o.FailureThreshold
	}
	if o.ResetTimeout > 0 {
		out.ResetTimeout = o.ResetTimeout
	}
	if o.SuccessThreshold > 0 {
		out.SuccessThreshold = o.SuccessThreshold
	}

	return out
}

// CacheConfig — кэш ответов внешних зависимостей.
type CacheConfig struct {
	TTL    time.Duration `yaml:"ttl" env:"CACHE_TTL" env-default:"1h"`
	Prefix string        `yaml:"prefix" env:"CACHE_PREFIX" env-default:"flexibill:gw:"`
}

// CleanupConfig — фоновые задачи над refresh-токенами.
type CleanupConfig struct {
	Interval           time.Duration `yaml:"interval" env:"CLEANUP_INTERVAL" env-default:"60m"`
	SuspiciousInterval time.Duration `yaml:"suspicious_interval" env:"CLEANUP_SUSPICIOUS_INTERVAL" env-default:"24h"`
	// SuspiciousWindow — за какой период искать признаки повторного использования.
	SuspiciousWindow time.Duration `yaml:"suspicious_window" env:"CLEANUP_SUSPICIOUS_WINDOW" env-default:"24h"`
	BatchSize        int           `yaml:"batch_size" env:"CLEANUP_BATCH_SIZE" env-default:"500"`
}

// AdminConfig — доступ к служебным эндпойнтам.
type AdminConfig struct {
	Token string `yaml:"token" env:"ADMIN_TOKEN" env-required:"true"`
}

// MustLoad — обёртка над Load с panic при ошибке.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}

	return cfg
}

// Load загружает конфигурацию по приоритету:
// 1) явный путь; 2) CONFIG_PATH; 3) ./local.yaml; 4) ENV.
// Перед чтением подгружается необязательный .env; ENV накладывается поверх YAML.
func Load(path string) (*Config, error) {
	var cfg Config

	// .env необязателен: его отсутствие не ошибка.
	_ = godotenv.Load()

	read := func(p string) (*Config, error) {
		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("config file %q stat failed: %w", p, err)
		}

		if err := cleanenv.ReadConfig(p, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}

		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("failed to overlay env: %w", err)
		}

		if err := cfg.validate(); err != nil {
			return nil, err
		}

		return &cfg, nil
	}

	// 1) Явный путь.
	if path != "" {
		return read(path)
	}

	// 2) CONFIG_PATH.
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		return read(envPath)
	}

	// 3) ./local.yaml.
	if _, err := os.Stat("local.yaml"); err == nil {
		return read("local.yaml")
	}

	// 4) Только ENV.
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config not found: provide --config, CONFIG_PATH, local.yaml or env vars: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// validate — базовая валидация значений.
func (c *Config) validate() error {
	if c.DB.DatabaseURL == "" && c.Env != "local" {
		return fmt.Errorf("db.db_url is required outside env=local")
	}
	if c.Auth.AccessTokenTTL <= 0 || c.Auth.RefreshTokenTTL <= 0 {
		return fmt.Errorf("auth token ttl must be > 0")
	}
	if c.Auth.FamilyTTL < c.Auth.RefreshTokenTTL {
		return fmt.Errorf("auth.family_ttl must be >= auth.refresh_token_ttl")
	}
	if c.Retry.MaxRetries < 0 {
		return fmt.Errorf("retry.max_retries must be >= 0")
	}
	if c.Retry.BaseDelay <= 0 || c.Retry.MaxDelay < c.Retry.BaseDelay {
		return fmt.Errorf("retry delays must satisfy 0 < base_delay <= max_delay")
	}
	if c.Breakers.FailureThreshold <= 0 || c.Breakers.SuccessThreshold <= 0 || c.Breakers.ResetTimeout <= 0 {
		return fmt.Errorf("breakers thresholds and reset_timeout must be > 0")
	}
	for name, o := range c.Breakers.Overrides {
		if o.FailureThreshold < 0 || o.SuccessThreshold < 0 || o.ResetTimeout < 0 {
			return fmt.Errorf("breakers.overrides.%s: values must be >= 0", name)
		}
	}
	if c.Cleanup.Interval < time.Minute {
		return fmt.Errorf("cleanup.interval must be at least 1m")
	}
	if c.Cleanup.SuspiciousInterval < time.Minute {
		return fmt.Errorf("cleanup.suspicious_interval must be at least 1m")
	}
	if c.Cleanup.BatchSize <= 0 {
		return fmt.Errorf("cleanup.batch_size must be > 0")
	}
	if c.S3.Endpoint != "" && c.S3.Bucket == "" {
		return fmt.Errorf("s3.bucket is required when s3.endpoint is set")
	}

	return nil
}
