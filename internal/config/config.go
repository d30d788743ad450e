// config - источник загрузки конфигурации campus-sync.
//
// Источники (по убыванию приоритета):
//  1. явный путь --config;
//  2. CONFIG_PATH;
//  3. ./local.yaml;
//  4. только ENV (cleanenv).
package config

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Драйверы защищённого хранилища.
const (
	StorageMemory = "memory"
	StorageAge    = "age"
	StorageRedis  = "redis"
)

type Config struct {
	Env        string           `yaml:"env" env:"ENV" env-default:"local"`
	API        APIConfig        `yaml:"api"`
	Storage    StorageConfig    `yaml:"storage"`
	Live       LiveConfig       `yaml:"live"`
	HTTP       HTTPConfig       `yaml:"http"`
	Pagination PaginationConfig `yaml:"pagination"`
}

// APIConfig — удалённый бэкенд.
type APIConfig struct {
	BaseURL        string        `yaml:"base_url"        env:"API_BASE_URL"        env-default:"http://localhost:8080/api"`
	UserAgent      string        `yaml:"user_agent"      env:"API_USER_AGENT"      env-default:"campus-sync"`
	RequestTimeout time.Duration `yaml:"request_timeout" env:"API_REQUEST_TIMEOUT" env-default:"10s"`
	RefreshTimeout time.Duration `yaml:"refresh_timeout" env:"API_REFRESH_TIMEOUT" env-default:"15s"`
}

// StorageConfig — где живут учётные данные.
// Для драйвера age нужен путь к файлу данных и к ключу X25519,
// для redis — URL сервера.
type StorageConfig struct {
	Driver       string `yaml:"driver"        env:"STORAGE_DRIVER"        env-default:"memory"`
	Path         string `yaml:"path"          env:"STORAGE_PATH"          env-default:"./data/credentials.age"`
	IdentityPath string `yaml:"identity_path" env:"STORAGE_IDENTITY_PATH" env-default:"./data/identity.txt"`
	RedisURL     string `yaml:"redis_url"     env:"STORAGE_REDIS_URL"`
	RedisKey     string `yaml:"redis_key"     env:"STORAGE_REDIS_KEY"     env-default:"campus-sync:credentials"`
}

// LiveConfig — Kafka-топик live-обновлений чатов.
type LiveConfig struct {
	Enabled bool     `yaml:"enabled" env:"LIVE_ENABLED" env-default:"false"`
	Brokers []string `yaml:"brokers" env:"LIVE_BROKERS" env-separator:"," env-default:"localhost:9092"`
	Topic   string   `yaml:"topic"   env:"LIVE_TOPIC"   env-default:"chat-messages"`
	GroupID string   `yaml:"group"   env:"LIVE_GROUP"   env-default:"campus-sync"`
}

// HTTPConfig — локальный инспектор: health, metrics и управляющие ручки.
type HTTPConfig struct {
	Host string `yaml:"host" env:"HTTP_HOST" env-default:"127.0.0.1"`
	Port string `yaml:"port" env:"HTTP_PORT" env-default:"50090"`
}

func (h HTTPConfig) Addr() string { return net.JoinHostPort(h.Host, h.Port) }

// PaginationConfig — подсказка размера страницы (параметр size).
type PaginationConfig struct {
	Size int `yaml:"size" env:"PAGE_SIZE" env-default:"20"`
}

// MustLoad — паника при ошибке загрузки.
func MustLoad(path string) *Config {
	cfg, err := Load(path)

	if err != nil {
		panic(err)
	}

	return cfg
}

func Load(path string) (*Config, error) {
	var cfg Config

	tryRead := func(p string) (*Config, error) {
		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("config file %q stat failed: %w", p, err)
		}

		if err := cleanenv.ReadConfig(p, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}

		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("failed to overlay env: %w", err)
		}

		return validate(&cfg)
	}

	// 1) --config
	if path != "" {
		return tryRead(path)
	}

	// 2) CONFIG_PATH
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		return tryRead(envPath)
	}

	// 3) ./local.yaml
	if _, err := os.Stat("local.yaml"); err == nil {
		return tryRead("local.yaml")
	}

	// 4) только ENV
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config not found: provide --config, CONFIG_PATH, local.yaml or env vars: %w", err)
	}

	return validate(&cfg)
}

func validate(cfg *Config) (*Config, error) {
	switch cfg.Storage.Driver {
	case StorageMemory, StorageAge:
	case StorageRedis:
		if cfg.Storage.RedisURL == "" {
			return nil, fmt.Errorf("storage.redis_url is required for driver %q", StorageRedis)
		}
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}

	if cfg.API.BaseURL == "" {
		return nil, fmt.Errorf("api.base_url is required")
	}

	if cfg.Pagination.Size <= 0 {
		return nil, fmt.Errorf("pagination.size must be positive, got %d", cfg.Pagination.Size)
	}

	if cfg.Live.Enabled && (len(cfg.Live.Brokers) == 0 || cfg.Live.Topic == "") {
		return nil, fmt.Errorf("live: brokers and topic are required when enabled")
	}

	return cfg, nil
}
