package config

import (
	"testing"
	"time"

	"github.com/cuongbtq/genesis-be/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name      string
		filePath  string
		wantErr   bool
		errString string
	}{
		{
			name:     "valid config file",
			filePath: "testdata/valid_config.yaml",
			wantErr:  false,
		},
		{
			name:      "non-existent file",
			filePath:  "testdata/nonexistent.yaml",
			wantErr:   true,
			errString: "failed to read config file",
		},
		{
			name:      "malformed yaml",
			filePath:  "testdata/malformed.yaml",
			wantErr:   true,
			errString: "failed to parse config file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("GENESIS_TEST_DB_PASSWORD", "s3cret")

			cfg, err := Load(tt.filePath)

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
				assert.Nil(t, cfg)
			} else {
				require.NoError(t, err)
				require.NotNil(t, cfg)

				// Verify some key fields are populated
				assert.Equal(t, 8080, cfg.Server.Port)
				assert.Equal(t, "localhost", cfg.Database.Host)
				assert.Equal(t, "s3cret", cfg.Database.Password)
				assert.Equal(t, "genesis_db", cfg.Database.Database)
				assert.Equal(t, "generation_queue", cfg.RabbitMQ.Queue.Name)
				assert.Equal(t, "genesis-api-service", cfg.App.Name)
				assert.Equal(t, 10, cfg.Redis.SubmitLimitPerMinute)
				assert.Equal(t, domain.ExpiryPolicyZero, cfg.Credits.ExpiryPolicy)
				assert.Equal(t, "*/30 * * * *", cfg.Credits.ExpirySweepSchedule)
				require.Len(t, cfg.Credits.Tiers, 2)
				assert.Equal(t, 720*time.Hour, cfg.Credits.Tiers[1].Validity)
				assert.Equal(t, "gemini-2.5-flash-image", cfg.Provider.Models["v2"])
			}
		})
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("testdata/missing_database.yaml")
	require.NoError(t, err)

	assert.Equal(t, QueueBackendMemory, cfg.Worker.QueueBackend)
	assert.Equal(t, 30*time.Second, cfg.Worker.ShutdownTimeout)
	assert.Equal(t, 50, cfg.Generation.Cost)
	assert.Equal(t, 6, cfg.Generation.MaxReferenceImages)
	assert.Equal(t, time.Hour, cfg.Generation.SignedURLTTL)
	assert.Equal(t, int64(25<<20), cfg.Server.MaxBodyBytes)
	assert.Equal(t, "generated-images", cfg.Storage.Bucket)
	assert.Equal(t, domain.ExpiryPolicyNone, cfg.Credits.ExpiryPolicy)
	assert.Equal(t, "@hourly", cfg.Credits.ExpirySweepSchedule)
	assert.Equal(t, 1, cfg.RabbitMQ.Consumer.PrefetchCount)
}

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{Port: 8080},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			Database: "genesis_db",
		},
		RabbitMQ: RabbitMQConfig{
			Host:     "localhost",
			Port:     5672,
			Exchange: ExchangeConfig{Name: "generation_exchange"},
			Queue:    QueueConfig{Name: "generation_queue"},
		},
		Worker: WorkerConfig{
			QueueBackend:    QueueBackendMemory,
			ShutdownTimeout: 30 * time.Second,
		},
		Generation: GenerationConfig{Cost: 50},
		Provider:   ProviderConfig{APIKey: "key"},
		Storage:    StorageConfig{URL: "http://storage", ServiceKey: "service"},
		Auth:       AuthConfig{JWTSecret: "secret"},
		Credits:    CreditsConfig{ExpiryPolicy: domain.ExpiryPolicyNone},
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(c *Config)
		wantErr   bool
		errString string
	}{
		{
			name:    "valid config",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:      "empty database host",
			mutate:    func(c *Config) { c.Database.Host = "" },
			wantErr:   true,
			errString: "database host is required",
		},
		{
			name:      "invalid database port",
			mutate:    func(c *Config) { c.Database.Port = 0 },
			wantErr:   true,
			errString: "invalid database port",
		},
		{
			name:      "empty database name",
			mutate:    func(c *Config) { c.Database.Database = "" },
			wantErr:   true,
			errString: "database name is required",
		},
		{
			name:      "zero cost",
			mutate:    func(c *Config) { c.Generation.Cost = 0 },
			wantErr:   true,
			errString: "generation cost must be greater than 0",
		},
		{
			name:      "unknown expiry policy",
			mutate:    func(c *Config) { c.Credits.ExpiryPolicy = "halve" },
			wantErr:   true,
			errString: "invalid credits expiry_policy",
		},
		{
			name: "tier without credits",
			mutate: func(c *Config) {
				c.Credits.Tiers = []domain.Tier{{Key: "free"}}
			},
			wantErr:   true,
			errString: "credit tier \"free\"",
		},
		{
			name:      "unknown queue backend",
			mutate:    func(c *Config) { c.Worker.QueueBackend = "kafka" },
			wantErr:   true,
			errString: "invalid worker queue_backend",
		},
		{
			name: "rabbitmq backend without host",
			mutate: func(c *Config) {
				c.Worker.QueueBackend = QueueBackendRabbitMQ
				c.RabbitMQ.Host = ""
			},
			wantErr:   true,
			errString: "rabbitmq host is required",
		},
		{
			name: "rabbitmq backend without exchange",
			mutate: func(c *Config) {
				c.Worker.QueueBackend = QueueBackendRabbitMQ
				c.RabbitMQ.Exchange.Name = ""
			},
			wantErr:   true,
			errString: "rabbitmq exchange name is required",
		},
		{
			name: "rabbitmq backend without queue",
			mutate: func(c *Config) {
				c.Worker.QueueBackend = QueueBackendRabbitMQ
				c.RabbitMQ.Queue.Name = ""
			},
			wantErr:   true,
			errString: "rabbitmq queue name is required",
		},
		{
			name: "memory backend ignores rabbitmq",
			mutate: func(c *Config) {
				c.RabbitMQ = RabbitMQConfig{}
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestConfig_ValidateAPIConfig(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(c *Config)
		errString string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "server port too low", mutate: func(c *Config) { c.Server.Port = 0 }, errString: "invalid server port"},
		{name: "server port too high", mutate: func(c *Config) { c.Server.Port = 70000 }, errString: "invalid server port"},
		{name: "missing jwt secret", mutate: func(c *Config) { c.Auth.JWTSecret = "" }, errString: "auth jwt_secret is required"},
		{name: "missing storage", mutate: func(c *Config) { c.Storage.URL = "" }, errString: "storage url and service_key are required"},
		{
			name:      "memory backend needs provider",
			mutate:    func(c *Config) { c.Provider.APIKey = "" },
			errString: "provider api_key is required",
		},
		{
			name: "rabbitmq backend does not need provider",
			mutate: func(c *Config) {
				c.Worker.QueueBackend = QueueBackendRabbitMQ
				c.Provider.APIKey = ""
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.ValidateAPIConfig()
			if tt.errString == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errString)
		})
	}
}

func TestConfig_ValidateWorkerConfig(t *testing.T) {
	t.Run("requires rabbitmq backend", func(t *testing.T) {
		cfg := validConfig()
		err := cfg.ValidateWorkerConfig()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "requires queue_backend")
	})

	t.Run("valid rabbitmq worker", func(t *testing.T) {
		cfg := validConfig()
		cfg.Worker.QueueBackend = QueueBackendRabbitMQ
		require.NoError(t, cfg.ValidateWorkerConfig())
	})

	t.Run("zero shutdown timeout", func(t *testing.T) {
		cfg := validConfig()
		cfg.Worker.QueueBackend = QueueBackendRabbitMQ
		cfg.Worker.ShutdownTimeout = 0
		err := cfg.ValidateWorkerConfig()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "shutdown_timeout must be greater than 0")
	})
}

func TestLoad_ValidateIntegration(t *testing.T) {
	t.Run("load and validate valid config", func(t *testing.T) {
		cfg, err := Load("testdata/valid_config.yaml")
		require.NoError(t, err)
		require.NotNil(t, cfg)

		err = cfg.ValidateAPIConfig()
		require.NoError(t, err)
	})

	t.Run("load config with invalid port", func(t *testing.T) {
		cfg, err := Load("testdata/invalid_port.yaml")
		require.NoError(t, err)
		require.NotNil(t, cfg)

		err = cfg.ValidateAPIConfig()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid server port")
	})

	t.Run("load config with missing database", func(t *testing.T) {
		cfg, err := Load("testdata/missing_database.yaml")
		require.NoError(t, err)
		require.NotNil(t, cfg)

		err = cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database name is required")
	})
}

func TestPortConstants(t *testing.T) {
	assert.Equal(t, 1, MinPort)
	assert.Equal(t, 65535, MaxPort)
}
