package main

import (
	"fmt"
	"log"
	"os"

	"github.com/cuongbtq/genesis-be/internal/bootstrap"
	"github.com/cuongbtq/genesis-be/internal/cli"
	"github.com/cuongbtq/genesis-be/internal/config"
	"github.com/cuongbtq/genesis-be/internal/domain"
	"github.com/cuongbtq/genesis-be/shared/logger"
	"github.com/cuongbtq/genesis-be/shared/postgresql"
	"github.com/joho/godotenv"
)

func main() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	defaultConfigPath := os.Getenv("API_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/api-service/config.yaml"
	}

	var (
		appLogger *logger.Logger
		dbClient  *postgresql.Client
	)
	defer func() {
		if dbClient != nil {
			dbClient.Close()
		}
		if appLogger != nil {
			appLogger.Close()
		}
	}()

	wire := func(configPath string) (*cli.App, error) {
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid config: %w", err)
		}

		// Operator output goes to stdout; logs stay on stderr.
		cfg.Logging.Output = "stderr"
		appLogger, err = bootstrap.InitLogger(&cfg.Logging)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize logger: %w", err)
		}

		dbClient, err = bootstrap.InitPostgreSQL(&cfg.Database, appLogger.Logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}

		return &cli.App{
			Ledger:  bootstrap.InitStorage(dbClient, &cfg.Credits, appLogger.Logger),
			Catalog: domain.NewCatalog(cfg.Credits.Tiers),
		}, nil
	}

	return cli.NewRootCmd(wire, defaultConfigPath).Execute()
}
