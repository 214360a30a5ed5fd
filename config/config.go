package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Database DatabaseConfig `yaml:"database"`
	Accounts AccountsConfig `yaml:"accounts"`
	Redis    RedisConfig    `yaml:"redis"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Search   SearchConfig   `yaml:"search"`
	Session  SessionConfig  `yaml:"session"`
	Worker   WorkerConfig   `yaml:"worker"`
	Log      LogConfig      `yaml:"log"`
}

type HTTPConfig struct {
	Address        string   `yaml:"address"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s", d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// AccountsConfig points at the account service database that owns the
// "account payment methods" table.
type AccountsConfig struct {
	DSN string `yaml:"dsn"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type KafkaConfig struct {
	Brokers          []string `yaml:"brokers"`
	VaultEventsTopic string   `yaml:"vault_events_topic"`
	BookingTopic     string   `yaml:"booking_topic"`
	GroupID          string   `yaml:"group_id"`
}

type SearchConfig struct {
	CacheTTLMinutes        int    `yaml:"cache_ttl_minutes"`
	ProviderURL            string `yaml:"provider_url"`
	ProviderName           string `yaml:"provider_name"`
	ProviderAPIKey         string `yaml:"provider_api_key"`
	ProviderTimeoutSeconds int    `yaml:"provider_timeout_seconds"`
	RetentionHours         int    `yaml:"retention_hours"`
}

type SessionConfig struct {
	SearchWindowMinutes int `yaml:"search_window_minutes"`
	TargetWindowMinutes int `yaml:"target_window_minutes"`
}

type WorkerConfig struct {
	SweepIntervalMinutes int `yaml:"sweep_interval_minutes"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

func (s SearchConfig) CacheTTL() time.Duration {
	return time.Duration(s.CacheTTLMinutes) * time.Minute
}

func (s SearchConfig) ProviderTimeout() time.Duration {
	return time.Duration(s.ProviderTimeoutSeconds) * time.Second
}

func (s SearchConfig) Retention() time.Duration {
	return time.Duration(s.RetentionHours) * time.Hour
}

func (s SessionConfig) SearchWindow() time.Duration {
	return time.Duration(s.SearchWindowMinutes) * time.Minute
}

func (s SessionConfig) TargetWindow() time.Duration {
	return time.Duration(s.TargetWindowMinutes) * time.Minute
}

func (w WorkerConfig) SweepInterval() time.Duration {
	return time.Duration(w.SweepIntervalMinutes) * time.Minute
}

// LoadConfig reads the YAML file at path, overlays environment variables
// (optionally sourced from a .env file) and fills defaults.
func LoadConfig(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnv()
	cfg.ApplyDefaults()
	return &cfg, nil
}

func (c *Config) ApplyDefaults() {
	if c.HTTP.Address == "" {
		c.HTTP.Address = ":8080"
	}
	if c.Database.Port == 0 {
		c.Database.Port = 5432
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Kafka.VaultEventsTopic == "" {
		c.Kafka.VaultEventsTopic = "vault-events"
	}
	if c.Kafka.BookingTopic == "" {
		c.Kafka.BookingTopic = "booking-payments"
	}
	if c.Kafka.GroupID == "" {
		c.Kafka.GroupID = "travelbooking-worker"
	}
	if c.Search.CacheTTLMinutes <= 0 {
		c.Search.CacheTTLMinutes = 30
	}
	if c.Search.ProviderName == "" {
		c.Search.ProviderName = "aggregator"
	}
	if c.Search.ProviderTimeoutSeconds <= 0 {
		c.Search.ProviderTimeoutSeconds = 20
	}
	if c.Search.RetentionHours <= 0 {
		c.Search.RetentionHours = 24
	}
	if c.Session.SearchWindowMinutes <= 0 {
		c.Session.SearchWindowMinutes = 60
	}
	if c.Session.TargetWindowMinutes <= 0 {
		c.Session.TargetWindowMinutes = 60
	}
	if c.Worker.SweepIntervalMinutes <= 0 {
		c.Worker.SweepIntervalMinutes = 5
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

func (c *Config) applyEnv() {
	c.HTTP.Address = getEnv("HTTP_ADDRESS", c.HTTP.Address)
	c.Database.Host = getEnv("POSTGRES_HOST", c.Database.Host)
	c.Database.Port = getEnvAsInt("POSTGRES_PORT", c.Database.Port)
	c.Database.User = getEnv("POSTGRES_USER", c.Database.User)
	c.Database.Password = getEnv("POSTGRES_PASSWORD", c.Database.Password)
	c.Database.Name = getEnv("POSTGRES_DB", c.Database.Name)
	c.Accounts.DSN = getEnv("ACCOUNTS_DSN", c.Accounts.DSN)
	c.Redis.Addr = getEnv("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = getEnv("REDIS_PASSWORD", c.Redis.Password)
	if brokers := getEnv("KAFKA_BROKERS", ""); brokers != "" {
		c.Kafka.Brokers = strings.Split(brokers, ",")
	}
	c.Search.ProviderURL = getEnv("SEARCH_PROVIDER_URL", c.Search.ProviderURL)
	c.Search.ProviderAPIKey = getEnv("SEARCH_PROVIDER_API_KEY", c.Search.ProviderAPIKey)
	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
