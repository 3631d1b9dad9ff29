package config

import (
	"fmt"
	"os"
	"time"

	"github.com/cuongbtq/genesis-be/internal/domain"
	"gopkg.in/yaml.v3"
)

const (
	// MinPort is the minimum valid port number
	MinPort = 1
	// MaxPort is the maximum valid port number
	MaxPort = 65535
)

// Queue backends
const (
	QueueBackendMemory   = "memory"
	QueueBackendRabbitMQ = "rabbitmq"
)

// Config represents the complete application configuration
type Config struct {
	App        AppConfig        `yaml:"app"`
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	RabbitMQ   RabbitMQConfig   `yaml:"rabbitmq"`
	Redis      RedisConfig      `yaml:"redis"`
	Logging    LoggingConfig    `yaml:"logging"`
	Worker     WorkerConfig     `yaml:"worker"`
	Generation GenerationConfig `yaml:"generation"`
	Provider   ProviderConfig   `yaml:"provider"`
	Storage    StorageConfig    `yaml:"storage"`
	Auth       AuthConfig       `yaml:"auth"`
	Credits    CreditsConfig    `yaml:"credits"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
}

// DatabaseConfig holds PostgreSQL connection configuration
type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
}

// RabbitMQConfig holds RabbitMQ connection and exchange/queue configuration
type RabbitMQConfig struct {
	Host       string           `yaml:"host"`
	Port       int              `yaml:"port"`
	User       string           `yaml:"user"`
	Password   string           `yaml:"password"`
	VHost      string           `yaml:"vhost"`
	Exchange   ExchangeConfig   `yaml:"exchange"`
	Queue      QueueConfig      `yaml:"queue"`
	RoutingKey string           `yaml:"routing_key"`
	Connection ConnectionConfig `yaml:"connection"`
	Publish    PublishConfig    `yaml:"publish"`
	Consumer   ConsumerConfig   `yaml:"consumer"`
}

// ExchangeConfig holds RabbitMQ exchange configuration
type ExchangeConfig struct {
	Name       string `yaml:"name"`
	Type       string `yaml:"type"`
	Durable    bool   `yaml:"durable"`
	AutoDelete bool   `yaml:"auto_delete"`
}

// QueueConfig holds RabbitMQ queue configuration
type QueueConfig struct {
	Name       string `yaml:"name"`
	Durable    bool   `yaml:"durable"`
	AutoDelete bool   `yaml:"auto_delete"`
	Exclusive  bool   `yaml:"exclusive"`
}

// ConnectionConfig holds RabbitMQ connection settings
type ConnectionConfig struct {
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	Heartbeat         time.Duration `yaml:"heartbeat"`
	ConnectionTimeout time.Duration `yaml:"connection_timeout"`
}

// PublishConfig holds RabbitMQ publish retry settings
type PublishConfig struct {
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier"`
}

// ConsumerConfig holds RabbitMQ consumer settings
type ConsumerConfig struct {
	Tag           string `yaml:"tag"`
	PrefetchCount int    `yaml:"prefetch_count"`
}

// RedisConfig holds the submission rate limiter's Redis settings.
// An empty Addr disables rate limiting.
type RedisConfig struct {
	Addr                 string `yaml:"addr"`
	Password             string `yaml:"password"`
	DB                   int    `yaml:"db"`
	Prefix               string `yaml:"prefix"`
	SubmitLimitPerMinute int    `yaml:"submit_limit_per_minute"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level        string `yaml:"level"`
	Format       string `yaml:"format"`
	Output       string `yaml:"output"`
	EnableCaller bool   `yaml:"enable_caller"`
}

// AppConfig holds application metadata
type AppConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`
}

// WorkerConfig holds job processing configuration
type WorkerConfig struct {
	QueueBackend    string        `yaml:"queue_backend"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// GenerationConfig holds submission rules
type GenerationConfig struct {
	Cost               int           `yaml:"cost"`
	MaxReferenceImages int           `yaml:"max_reference_images"`
	SignedURLTTL       time.Duration `yaml:"signed_url_ttl"`
}

// ProviderConfig holds the image model credentials and model name mapping
type ProviderConfig struct {
	APIKey string            `yaml:"api_key"`
	Models map[string]string `yaml:"models"`
}

// StorageConfig holds the artifact bucket settings
type StorageConfig struct {
	URL        string `yaml:"url"`
	ServiceKey string `yaml:"service_key"`
	Bucket     string `yaml:"bucket"`
}

// AuthConfig holds bearer token verification settings
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
	Issuer    string `yaml:"issuer"`
	Audience  string `yaml:"audience"`
}

// CreditsConfig holds the ledger's pricing and expiry rules
type CreditsConfig struct {
	ExpiryPolicy        domain.ExpiryPolicy `yaml:"expiry_policy"`
	ExpirySweepSchedule string              `yaml:"expiry_sweep_schedule"`
	Tiers               []domain.Tier       `yaml:"tiers"`
}

// Load reads and parses the configuration file.
// ${VAR} references are expanded from the environment before parsing.
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applyDefaults()

	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Worker.QueueBackend == "" {
		c.Worker.QueueBackend = QueueBackendMemory
	}
	if c.Worker.ShutdownTimeout == 0 {
		c.Worker.ShutdownTimeout = 30 * time.Second
	}
	if c.Generation.Cost == 0 {
		c.Generation.Cost = 50
	}
	if c.Generation.MaxReferenceImages == 0 {
		c.Generation.MaxReferenceImages = 6
	}
	if c.Generation.SignedURLTTL == 0 {
		c.Generation.SignedURLTTL = time.Hour
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 15 * time.Second
	}
	if c.Server.MaxBodyBytes == 0 {
		c.Server.MaxBodyBytes = 25 << 20
	}
	if c.Storage.Bucket == "" {
		c.Storage.Bucket = "generated-images"
	}
	if c.Redis.Prefix == "" {
		c.Redis.Prefix = "genesis"
	}
	if c.Credits.ExpiryPolicy == "" {
		c.Credits.ExpiryPolicy = domain.ExpiryPolicyNone
	}
	if c.Credits.ExpirySweepSchedule == "" {
		c.Credits.ExpirySweepSchedule = "@hourly"
	}
	if c.RabbitMQ.Consumer.PrefetchCount == 0 {
		c.RabbitMQ.Consumer.PrefetchCount = 1
	}
}

// Validate checks the sections every binary depends on
func (c *Config) Validate() error {
	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if c.Database.Port < MinPort || c.Database.Port > MaxPort {
		return fmt.Errorf("invalid database port: %d (must be between %d and %d)", c.Database.Port, MinPort, MaxPort)
	}

	if c.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}

	if c.Generation.Cost <= 0 {
		return fmt.Errorf("generation cost must be greater than 0")
	}

	switch c.Credits.ExpiryPolicy {
	case domain.ExpiryPolicyNone, domain.ExpiryPolicyZero:
	default:
		return fmt.Errorf("invalid credits expiry_policy: %q", c.Credits.ExpiryPolicy)
	}

	for _, tier := range c.Credits.Tiers {
		if tier.Key == "" || tier.Credits <= 0 {
			return fmt.Errorf("credit tier %q must have a key and positive credits", tier.Key)
		}
	}

	switch c.Worker.QueueBackend {
	case QueueBackendMemory:
	case QueueBackendRabbitMQ:
		if err := c.validateRabbitMQ(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("invalid worker queue_backend: %q", c.Worker.QueueBackend)
	}

	return nil
}

func (c *Config) validateRabbitMQ() error {
	if c.RabbitMQ.Host == "" {
		return fmt.Errorf("rabbitmq host is required")
	}

	if c.RabbitMQ.Port < MinPort || c.RabbitMQ.Port > MaxPort {
		return fmt.Errorf("invalid rabbitmq port: %d (must be between %d and %d)", c.RabbitMQ.Port, MinPort, MaxPort)
	}

	if c.RabbitMQ.Exchange.Name == "" {
		return fmt.Errorf("rabbitmq exchange name is required")
	}

	if c.RabbitMQ.Queue.Name == "" {
		return fmt.Errorf("rabbitmq queue name is required")
	}

	return nil
}

func (c *Config) validateProcessing() error {
	if c.Provider.APIKey == "" {
		return fmt.Errorf("provider api_key is required")
	}

	if c.Storage.URL == "" || c.Storage.ServiceKey == "" {
		return fmt.Errorf("storage url and service_key are required")
	}

	if c.Worker.ShutdownTimeout <= 0 {
		return fmt.Errorf("worker shutdown_timeout must be greater than 0")
	}

	return nil
}

// ValidateAPIConfig checks what the API service needs on top of Validate
func (c *Config) ValidateAPIConfig() error {
	if err := c.Validate(); err != nil {
		return err
	}

	if c.Server.Port < MinPort || c.Server.Port > MaxPort {
		return fmt.Errorf("invalid server port: %d (must be between %d and %d)", c.Server.Port, MinPort, MaxPort)
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth jwt_secret is required")
	}

	if c.Storage.URL == "" || c.Storage.ServiceKey == "" {
		return fmt.Errorf("storage url and service_key are required")
	}

	// The in-memory queue runs the worker inside the API process.
	if c.Worker.QueueBackend == QueueBackendMemory {
		return c.validateProcessing()
	}

	return nil
}

// ValidateWorkerConfig checks what the standalone worker needs on top of Validate
func (c *Config) ValidateWorkerConfig() error {
	if err := c.Validate(); err != nil {
		return err
	}

	if c.Worker.QueueBackend != QueueBackendRabbitMQ {
		return fmt.Errorf("worker service requires queue_backend %q", QueueBackendRabbitMQ)
	}

	return c.validateProcessing()
}
