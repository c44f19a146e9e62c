// Package config предоставялет структуры и функцию для парсинга и загрузки конфига
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config общая структура для хранения настроек
type Config struct {
	Env                     string `yaml:"env" env-default:"local"`
	StorageConnectionString string `yaml:"storage_connection_string"`
	RedisConnection         `yaml:"redis_connection"`
	HTTPServer              `yaml:"http_server"`
	JWTToken                `yaml:"jwttoken"`
	RabbitMQ                RabbitMQ     `yaml:"rabbitmq"`
	SMTP                    SMTP         `yaml:"smtp"`
	FastSpring              FastSpring   `yaml:"fastspring"`
	AccountAPI              AccountAPI   `yaml:"account_api"`
	Checkout                Checkout     `yaml:"checkout"`
	URLs                    URLs         `yaml:"urls"`
	Catalog                 []CatalogRow `yaml:"catalog"`
}

// HTTPServer структура для настройки сервера
type HTTPServer struct {
	AddressHTTP string        `yaml:"addresshttp" env-default:":8080"`
	TimeoutHTTP time.Duration `yaml:"timeouthttp" env-default:"10s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
	RateLimit   float64       `yaml:"rate_limit" env-default:"5"`
	RateBurst   int           `yaml:"rate_burst" env-default:"10"`
}

// RedisConnection структура для настройки подключения к redis
type RedisConnection struct {
	AddressRedis string        `yaml:"addressredis"`
	Password     string        `yaml:"password"`
	User         string        `yaml:"user"`
	DB           int           `yaml:"db"`
	MaxRetries   int           `yaml:"max_retries"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	TimeoutRedis time.Duration `yaml:"timeoutredis"`
	StatusTTL    time.Duration `yaml:"status_ttl" env-default:"10m"`
}

// JWTToken структура для работы с jwt-токеном
type JWTToken struct {
	JWTSecretKey string        `yaml:"jwt_secret_key"`
	TokenTTL     time.Duration `yaml:"token_ttl"`
}

// RabbitMQ настройки подключения к брокеру событий checkout.
type RabbitMQ struct {
	URL        string        `yaml:"url"`
	MaxRetries int           `yaml:"max_retries" env-default:"5"`
	RetryDelay time.Duration `yaml:"retry_delay" env-default:"2s"`
	Exchange   string        `yaml:"exchange" env-default:"checkout"`
}

// SMTP настройки почтового транспорта нотификатора.
type SMTP struct {
	Host string `yaml:"host"`
	Port string `yaml:"port" env-default:"587"`
	User string `yaml:"user"`
	Pass string `yaml:"pass"`
}

// FastSpring настройки платежной системы.
type FastSpring struct {
	APIURL        string        `yaml:"api_url" env-default:"https://api.fastspring.com"`
	Username      string        `yaml:"username"`
	Password      string        `yaml:"password"`
	Storefront    string        `yaml:"storefront"`
	WebhookSecret string        `yaml:"webhook_secret"`
	Timeout       time.Duration `yaml:"timeout" env-default:"10s"`
}

// AccountAPI настройки внешнего API аккаунтов и подписок.
type AccountAPI struct {
	BaseURL string        `yaml:"base_url"`
	APIKey  string        `yaml:"api_key"`
	Timeout time.Duration `yaml:"timeout" env-default:"5s"`
}

// Checkout тайминги ожидания активации после оплаты.
type Checkout struct {
	ActivationDelay time.Duration `yaml:"activation_delay" env-default:"5s"`
	PollInterval    time.Duration `yaml:"poll_interval" env-default:"2s"`
	MaxAttempts     int           `yaml:"max_attempts" env-default:"15"`
	PollTimeout     time.Duration `yaml:"poll_timeout" env-default:"35s"`
	AllowGuest      bool          `yaml:"allow_guest"`
	SessionTTL      time.Duration `yaml:"session_ttl" env-default:"30m"`
	SweepInterval   time.Duration `yaml:"sweep_interval" env-default:"1m"`
}

// URLs адреса фронтенда, на которые перенаправляется пользователь.
type URLs struct {
	SignIn        string `yaml:"sign_in" env-default:"/sign-in"`
	Studio        string `yaml:"studio" env-default:"/studio"`
	BillingPortal string `yaml:"billing_portal"`
}

// CatalogRow строка таблицы продуктов: путь продукта в платежной системе и цена.
type CatalogRow struct {
	Tier     string  `yaml:"tier"`
	Duration string  `yaml:"duration"`
	Path     string  `yaml:"path"`
	Price    float64 `yaml:"price"`
}

// MustLoad функция для загрузки конфига, путь берется из CONFIG_PATH
func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		log.Fatal("CONFIG_PATH is not set")
	}
	cfg, err := Load(configPath)
	if err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	return cfg
}

// Load читает и проверяет конфиг по указанному пути.
func Load(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("file: %s - does not exist", configPath)
	}
	var cfg Config
	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate проверяет тайминги опроса. Основная граница это число попыток,
// таймаут должен ее покрывать.
func (c *Config) Validate() error {
	ch := c.Checkout
	if ch.ActivationDelay < 0 {
		return errors.New("checkout.activation_delay must not be negative")
	}
	if ch.PollInterval <= 0 {
		return errors.New("checkout.poll_interval must be positive")
	}
	if ch.MaxAttempts <= 0 {
		return errors.New("checkout.max_attempts must be positive")
	}
	if ch.PollTimeout < time.Duration(ch.MaxAttempts)*ch.PollInterval {
		return fmt.Errorf("checkout.poll_timeout %s is shorter than max_attempts*poll_interval %s",
			ch.PollTimeout, time.Duration(ch.MaxAttempts)*ch.PollInterval)
	}
	if ch.SessionTTL < 0 {
		return errors.New("checkout.session_ttl must not be negative")
	}
	if ch.SweepInterval < 0 {
		return errors.New("checkout.sweep_interval must not be negative")
	}
	return nil
}

func (c *Config) String() string {
	return fmt.Sprintf(
		"Env: %s\n"+
			"HTTPServer:\n"+
			"  Address: %s\n"+
			"  Timeout: %s\n"+
			"  IdleTimeout: %s\n"+
			"Redis:\n"+
			"  Addr: %s\n"+
			"  DB: %d\n"+
			"FastSpring:\n"+
			"  APIURL: %s\n"+
			"  Storefront: %s\n"+
			"AccountAPI:\n"+
			"  BaseURL: %s\n"+
			"Checkout:\n"+
			"  ActivationDelay: %s\n"+
			"  PollInterval: %s\n"+
			"  MaxAttempts: %d\n"+
			"  PollTimeout: %s\n"+
			"  AllowGuest: %t\n"+
			"  SessionTTL: %s\n"+
			"  SweepInterval: %s\n"+
			"Catalog rows: %d\n",
		c.Env,
		c.AddressHTTP,
		c.TimeoutHTTP,
		c.IdleTimeout,
		c.AddressRedis,
		c.DB,
		c.FastSpring.APIURL,
		c.FastSpring.Storefront,
		c.AccountAPI.BaseURL,
		c.Checkout.ActivationDelay,
		c.Checkout.PollInterval,
		c.Checkout.MaxAttempts,
		c.Checkout.PollTimeout,
		c.Checkout.AllowGuest,
		c.Checkout.SessionTTL,
		c.Checkout.SweepInterval,
		len(c.Catalog),
	)
}
