package postgresql

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/cuongbtq/genesis-be/shared/logger"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockClient(t *testing.T) (*Client, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &Client{db: sqlx.NewDb(db, "sqlmock"), config: &Config{}, logger: logger.NewDiscard()}, mock
}

func TestConfig_DSN(t *testing.T) {
	cfg := &Config{Host: "db", Port: 5432, User: "app", Password: "secret", Database: "genesis", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=app password=secret dbname=genesis sslmode=disable", cfg.DSN())
}

func TestClient_HealthCheck(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		client, mock := newMockClient(t)
		mock.ExpectPing()
		mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

		require.NoError(t, client.HealthCheck(context.Background()))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("ping fails", func(t *testing.T) {
		client, mock := newMockClient(t)
		mock.ExpectPing().WillReturnError(errors.New("connection refused"))

		err := client.HealthCheck(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database health check failed")
	})
}

func TestClient_Stats(t *testing.T) {
	client, _ := newMockClient(t)
	client.db.SetMaxOpenConns(7)

	stats := client.Stats()
	assert.Contains(t, stats, "MaxOpenConns: 7")
	assert.Contains(t, stats, "InUse: 0")
}
