// Package config предоставляет структуры и функции для загрузки конфигурации сервиса подписок.
// Конфиг читается из YAML-файла по пути CONFIG_PATH, значения переопределяются переменными окружения.
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

// Драйверы хранилища.
const (
	DriverMongo    = "mongo"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config общая структура для хранения настроек
type Config struct {
	Env               string `yaml:"env" env:"ENV" env-default:"local"`
	GRPCHealthAddress string `yaml:"grpc_health_address" env:"GRPC_HEALTH_ADDRESS"`
	HTTPServer        `yaml:"http_server"`
	Storage           `yaml:"storage"`
	RedisConnection   `yaml:"redis_connection"`
	RabbitMQ          `yaml:"rabbitmq"`
	Session           `yaml:"session"`
	PayPal            `yaml:"paypal"`
	Subscription      `yaml:"subscription"`
	Email             `yaml:"email"`
}

// HTTPServer структура для настройки сервера
type HTTPServer struct {
	AddressHTTP  string        `yaml:"addresshttp" env:"HTTP_ADDRESS" env-default:":8080"`
	TimeoutHTTP  time.Duration `yaml:"timeouthttp" env-default:"10s"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" env-default:"60s"`
	RateLimitRPS float64       `yaml:"rate_limit_rps" env-default:"10"`
	RateBurst    int           `yaml:"rate_limit_burst" env-default:"20"`
}

// Storage структура для выбора и настройки хранилища
type Storage struct {
	Driver                  string `yaml:"driver" env:"STORAGE_DRIVER" env-default:"memory"`
	StorageConnectionString string `yaml:"storage_connection_string" env:"STORAGE_CONNECTION_STRING"`
	MigrationsPath          string `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"migrations"`
	MongoURI                string `yaml:"mongo_uri" env:"MONGO_URI"`
	MongoDatabase           string `yaml:"mongo_database" env:"MONGO_DATABASE" env-default:"nextgig"`
}

// RedisConnection структура для настройки подключения к redis
type RedisConnection struct {
	AddressRedis string        `yaml:"addressredis" env:"REDIS_ADDRESS"`
	Password     string        `yaml:"password" env:"REDIS_PASSWORD"`
	User         string        `yaml:"user"`
	DB           int           `yaml:"db"`
	MaxRetries   int           `yaml:"max_retries" env-default:"3"`
	DialTimeout  time.Duration `yaml:"dial_timeout" env-default:"5s"`
	TimeoutRedis time.Duration `yaml:"timeoutredis" env-default:"3s"`
}

// RabbitMQ структура для подключения к брокеру
type RabbitMQ struct {
	RabbitMQURL string `yaml:"rabbitmq_url" env:"RABBITMQ_URL"`
}

// Session структура для проверки сессионных токенов провайдера идентичности
type Session struct {
	JWTSecretKey string        `yaml:"jwt_secret_key" env:"JWT_SECRET_KEY"`
	JWTIssuer    string        `yaml:"jwt_issuer" env:"JWT_ISSUER"`
	TokenTTL     time.Duration `yaml:"token_ttl" env-default:"24h"`
}

// PayPal структура для доступа к REST API PayPal
type PayPal struct {
	ClientID      string        `yaml:"client_id" env:"PAYPAL_CLIENT_ID"`
	ClientSecret  string        `yaml:"client_secret" env:"PAYPAL_CLIENT_SECRET"`
	BaseURL       string        `yaml:"base_url" env:"PAYPAL_BASE_URL" env-default:"https://api-m.sandbox.paypal.com"`
	PlanID        string        `yaml:"plan_id" env:"PAYPAL_PLAN_ID"`
	WebhookID     string        `yaml:"webhook_id" env:"PAYPAL_WEBHOOK_ID"`
	BrandName     string        `yaml:"brand_name" env-default:"Next Gig"`
	ReturnURL     string        `yaml:"return_url" env:"PAYPAL_RETURN_URL"`
	CancelURL     string        `yaml:"cancel_url" env:"PAYPAL_CANCEL_URL"`
	TimeoutPayPal time.Duration `yaml:"timeout" env-default:"10s"`
}

// Subscription структура с параметрами тарифа
type Subscription struct {
	Plan       string        `yaml:"plan" env-default:"standard"`
	Price      float64       `yaml:"price" env-default:"2.99"`
	Currency   string        `yaml:"currency" env-default:"GBP"`
	FreeAccess bool          `yaml:"free_access" env:"FREE_ACCESS"`
	StatusTTL  time.Duration `yaml:"status_ttl" env-default:"5m"`
	WebhookTTL time.Duration `yaml:"webhook_dedupe_ttl" env-default:"24h"`
}

// Email структура для отправки уведомлений
type Email struct {
	Transport     string `yaml:"transport" env:"EMAIL_TRANSPORT" env-default:"smtp"`
	From          string `yaml:"from" env:"EMAIL_FROM" env-default:"Next Gig <no-reply@nextgig.app>"`
	SMTPHost      string `yaml:"smtp_host" env:"SMTP_HOST"`
	SMTPPort      string `yaml:"smtp_port" env:"SMTP_PORT" env-default:"587"`
	SMTPUser      string `yaml:"smtp_user" env:"SMTP_USER"`
	SMTPPassword  string `yaml:"smtp_password" env:"SMTP_PASSWORD"`
	PostmarkToken string `yaml:"postmark_server_token" env:"POSTMARK_SERVER_TOKEN"`
}

// Load читает конфиг из файла path и переменных окружения.
func Load(path string) (*Config, error) {
	const op = "config.Load"

	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	var cfg Config
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &cfg, nil
}

// MustLoad функция для загрузки конфига по пути из CONFIG_PATH, завершает процесс при ошибке
func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		log.Fatal("CONFIG_PATH is not set")
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Fatalf("file: %s - does not exist", configPath)
	}
	cfg, err := Load(configPath)
	if err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	return cfg
}

// Validate проверяет согласованность настроек.
func (c *Config) Validate() error {
	switch c.Env {
	case EnvLocal, EnvDev, EnvProd:
	default:
		return fmt.Errorf("unknown env %q", c.Env)
	}
	switch c.Driver {
	case DriverMemory:
		if c.Env == EnvProd {
			return errors.New("memory storage is not allowed in prod")
		}
	case DriverPostgres:
		if c.StorageConnectionString == "" {
			return errors.New("storage_connection_string is required for postgres")
		}
	case DriverMongo:
		if c.MongoURI == "" {
			return errors.New("mongo_uri is required for mongo")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Driver)
	}
	if c.JWTSecretKey == "" {
		return errors.New("session.jwt_secret_key is required")
	}
	return nil
}

// PayPalEnabled сообщает, заданы ли учётные данные PayPal.
func (c *Config) PayPalEnabled() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

func (c *Config) String() string {
	return fmt.Sprintf(
		"Env: %s\n"+
			"Storage:\n"+
			"  Driver: %s\n"+
			"  MongoDatabase: %s\n"+
			"RedisConnection:\n"+
			"  Addr: %s\n"+
			"  DB: %d\n"+
			"HTTPServer:\n"+
			"  Address: %s\n"+
			"  Timeout: %s\n"+
			"  IdleTimeout: %s\n"+
			"PayPal:\n"+
			"  BaseURL: %s\n"+
			"  PlanID: %s\n"+
			"Subscription:\n"+
			"  Plan: %s %.2f %s\n"+
			"  FreeAccess: %t\n",
		c.Env,
		c.Driver,
		c.MongoDatabase,
		c.AddressRedis,
		c.DB,
		c.AddressHTTP,
		c.TimeoutHTTP,
		c.IdleTimeout,
		c.BaseURL,
		c.PlanID,
		c.Plan,
		c.Price,
		c.Currency,
		c.FreeAccess,
	)
}
