// Package config предоставляет структуры и функции для парсинга и загрузки конфига бота
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Config общая структура для хранения настроек
type Config struct {
	Env                     string `yaml:"env" env:"ENV" env-default:"local"`
	StorageConnectionString string `yaml:"storage_connection_string" env:"STORAGE_CONNECTION_STRING" env-required:"true"`
	MigrationsPath          string `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"./migrations"`
	RedisConnection         `yaml:"redis_connection"`
	RabbitMQ                `yaml:"rabbitmq"`
	HTTPServer              `yaml:"http_server"`
	Telegram                `yaml:"telegram"`
	Panel                   `yaml:"panel"`
	YooKassa                `yaml:"yookassa"`
	Billing                 `yaml:"billing"`
	Scheduler               `yaml:"scheduler"`
}

// HTTPServer структура для настройки служебного сервера (health, metrics)
type HTTPServer struct {
	AddressHTTP string        `yaml:"addresshttp" env:"HTTP_ADDRESS" env-default:":8080"`
	TimeoutHTTP time.Duration `yaml:"timeouthttp" env-default:"5s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
}

// RedisConnection структура для настройки подключения к redis
type RedisConnection struct {
	AddressRedis string        `yaml:"addressredis" env:"REDIS_ADDRESS" env-default:"localhost:6379"`
	Password     string        `yaml:"password" env:"REDIS_PASSWORD"`
	User         string        `yaml:"user" env:"REDIS_USER"`
	DB           int           `yaml:"db"`
	MaxRetries   int           `yaml:"max_retries" env-default:"3"`
	DialTimeout  time.Duration `yaml:"dial_timeout" env-default:"5s"`
	TimeoutRedis time.Duration `yaml:"timeoutredis" env-default:"3s"`
}

// RabbitMQ настройки очереди отложенных реферальных начислений.
// Пустой URL отключает очередь.
type RabbitMQ struct {
	RabbitMQURL        string        `yaml:"url" env:"RABBITMQ_URL"`
	RabbitMQMaxRetries int           `yaml:"max_retries" env-default:"5"`
	RabbitMQRetryDelay time.Duration `yaml:"retry_delay" env-default:"3s"`
}

// Telegram настройки чат-бота
type Telegram struct {
	BotToken      string  `yaml:"bot_token" env:"BOT_TOKEN" env-required:"true"`
	AdminID       string  `yaml:"admin_id" env:"ADMIN_TELEGRAM_ID"`
	UpdateTimeout int     `yaml:"update_timeout" env-default:"60"`
	ActionRate    float64 `yaml:"action_rate" env-default:"1"`
	ActionBurst   int     `yaml:"action_burst" env-default:"3"`
	TermsURL      string  `yaml:"terms_url" env:"TELEGRAPH_TERMS"`
	GuideURL      string  `yaml:"guide_url" env:"TELETYPE_INSTRUCTION"`

	// ConnectTemplate ссылка импорта подписки в клиент, {url} заменяется на ссылку подписки
	ConnectTemplate string `yaml:"connect_template" env:"VPN_CONNECT_TEMPLATE"`
}

// Panel настройки подключения к панели управления доступом (Marzban)
type Panel struct {
	PanelURL      string        `yaml:"url" env:"MARZBAN_URL" env-required:"true"`
	PanelUsername string        `yaml:"username" env:"MARZBAN_USERNAME" env-required:"true"`
	PanelPassword string        `yaml:"password" env:"MARZBAN_PASSWORD" env-required:"true"`
	PanelTimeout  time.Duration `yaml:"timeout" env-default:"10s"`
	TokenTTL      time.Duration `yaml:"token_ttl" env-default:"30m"`
}

// YooKassa настройки платёжного шлюза
type YooKassa struct {
	ShopID    string        `yaml:"shop_id" env:"YOOKASSA_ID" env-required:"true"`
	SecretKey string        `yaml:"secret_key" env:"YOOKASSA_SECRET_KEY" env-required:"true"`
	APIURL    string        `yaml:"api_url" env-default:"https://api.yookassa.ru/v3"`
	Timeout   time.Duration `yaml:"timeout" env-default:"10s"`
}

// Billing тарифы: срок в месяцах -> цена в копейках
type Billing struct {
	Prices    map[int]int64 `yaml:"prices" env-default:"1:9900,3:29900,6:59900"`
	ReturnURL string        `yaml:"return_url" env:"PAYMENT_RETURN_URL" env-default:"https://t.me"`
}

// Scheduler настройки ежедневной рассылки об истечении подписки
type Scheduler struct {
	ExpirySchedule string `yaml:"expiry_schedule" env-default:"0 12 * * *"`
	Timezone       string `yaml:"timezone" env-default:"Europe/Moscow"`
}

// Location возвращает часовой пояс рассылки.
func (s Scheduler) Location() (*time.Location, error) {
	return time.LoadLocation(s.Timezone)
}

// MustLoad загружает конфиг по пути из CONFIG_PATH, завершая процесс при ошибке
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

// Load читает .env (если он есть) и yaml-файл конфига.
func Load(configPath string) (*Config, error) {
	const op = "config.Load"

	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%s: file %s does not exist", op, configPath)
	}

	var cfg Config
	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if len(cfg.Prices) == 0 {
		return nil, fmt.Errorf("%s: billing prices are empty", op)
	}
	if _, err := cfg.Scheduler.Location(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &cfg, nil
}

func (c *Config) String() string {
	return fmt.Sprintf(
		"Env: %s\n"+
			"MigrationsPath: %s\n"+
			"RedisConnection:\n"+
			"  Addr: %s\n"+
			"  DB: %d\n"+
			"RabbitMQ:\n"+
			"  Enabled: %t\n"+
			"HTTPServer:\n"+
			"  Address: %s\n"+
			"Panel:\n"+
			"  URL: %s\n"+
			"Billing:\n"+
			"  Prices: %v\n"+
			"Scheduler:\n"+
			"  Schedule: %s\n"+
			"  Timezone: %s\n",
		c.Env,
		c.MigrationsPath,
		c.AddressRedis,
		c.DB,
		c.RabbitMQURL != "",
		c.AddressHTTP,
		c.PanelURL,
		c.Prices,
		c.ExpirySchedule,
		c.Timezone,
	)
}
