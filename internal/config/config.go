package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"turfhub/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App           AppConfig           `yaml:"app"`
	Redis         RedisConfig         `yaml:"redis"`
	Store         StoreConfig         `yaml:"store"`
	API           APIConfig           `yaml:"api"`
	Monitoring    MonitoringConfig    `yaml:"monitoring"`
	Logging       LoggingConfig       `yaml:"logging"`
	Journal       JournalConfig       `yaml:"journal"`
	Notifications NotificationsConfig `yaml:"notifications"`
	CatalogPath   string              `yaml:"catalog_path"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

// StoreConfig selects the persistence driver and its expiration policy.
type StoreConfig struct {
	Driver       string        `yaml:"driver"` // redis, memory
	TurfTTL      time.Duration `yaml:"turf_ttl"`
	BookingTTL   time.Duration `yaml:"booking_ttl"`
	EquipmentTTL time.Duration `yaml:"equipment_ttl"`
	OrderTTL     time.Duration `yaml:"order_ttl"`
	LockTTL      time.Duration `yaml:"lock_ttl"`
	LockWait     time.Duration `yaml:"lock_wait"`
}

type APIConfig struct {
	HTTP      APIHTTPConfig      `yaml:"http"`
	GRPC      APIGRPCConfig      `yaml:"grpc"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIHTTPConfig struct {
	Port int `yaml:"port"`
}

type APIGRPCConfig struct {
	Enabled        bool          `yaml:"enabled"`
	Port           int           `yaml:"port"`
	Reflection     bool          `yaml:"reflection"`
	HealthInterval time.Duration `yaml:"health_interval"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type JournalConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

type NotificationsConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

type TelegramConfig struct {
	Enabled  bool    `yaml:"enabled"`
	BotToken string  `yaml:"bot_token"`
	ChatIDs  []int64 `yaml:"chat_ids"`
	Debug    bool    `yaml:"debug"`
}

func Load(configPath string) (*Config, error) {
	// .env is optional
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	// Переменные окружения подставляются до разбора YAML
	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "redis":
		if c.Redis.Address == "" {
			return errors.New("redis address is required for the redis store driver")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}

	for name, ttl := range map[string]time.Duration{
		"turf_ttl":      c.Store.TurfTTL,
		"booking_ttl":   c.Store.BookingTTL,
		"equipment_ttl": c.Store.EquipmentTTL,
		"order_ttl":     c.Store.OrderTTL,
	} {
		if ttl < 0 {
			return fmt.Errorf("store.%s must not be negative", name)
		}
	}

	if c.Journal.Enabled && c.Journal.Path == "" {
		return errors.New("journal path is required when the journal is enabled")
	}

	tg := c.Notifications.Telegram
	if tg.Enabled {
		if tg.BotToken == "" || tg.BotToken == "YOUR_BOT_TOKEN_HERE" {
			return errors.New("telegram bot token is required when notifications are enabled")
		}
		if len(tg.ChatIDs) == 0 {
			return errors.New("telegram chat_ids are required when notifications are enabled")
		}
	}

	return nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "turfhub"
	}
	c.Store.Driver = strings.ToLower(strings.TrimSpace(c.Store.Driver))
	if c.Store.Driver == "" {
		c.Store.Driver = "redis"
	}
	if c.Store.TurfTTL == 0 {
		c.Store.TurfTTL = models.DefaultCatalogTTL
	}
	if c.Store.EquipmentTTL == 0 {
		c.Store.EquipmentTTL = models.DefaultCatalogTTL
	}
	if c.Store.BookingTTL == 0 {
		c.Store.BookingTTL = models.DefaultTransactionTTL
	}
	if c.Store.OrderTTL == 0 {
		c.Store.OrderTTL = models.DefaultTransactionTTL
	}
	if c.Store.LockTTL == 0 {
		c.Store.LockTTL = models.DefaultLockTTL
	}
	if c.Store.LockWait == 0 {
		c.Store.LockWait = models.DefaultLockWait
	}
	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 8080
	}
	if c.API.GRPC.Port == 0 {
		c.API.GRPC.Port = 8081
	}
	if c.API.GRPC.HealthInterval == 0 {
		c.API.GRPC.HealthInterval = 15 * time.Second
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if c.Journal.Enabled && c.Journal.Path == "" {
		c.Journal.Path = "./data/journal.db"
	}
}
