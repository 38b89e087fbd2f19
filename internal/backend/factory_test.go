package backend

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moneymate/internal/config"
)

func TestFromAppConfig(t *testing.T) {
	_, err := FromAppConfig(nil)
	assert.Error(t, err)

	_, err = FromAppConfig(&config.Config{DataBackend: "sheets"})
	assert.ErrorIs(t, err, ErrUnknownBackend)

	cfg, err := FromAppConfig(&config.Config{
		DataBackend:    "memory",
		MemorySeedFile: "seed.txt",
		AMQPURL:        "amqp://localhost",
	})
	require.NoError(t, err)
	assert.Equal(t, MemoryBackend, cfg.Type)
	assert.Equal(t, "seed.txt", cfg.MemorySeedFile)
	assert.Empty(t, cfg.AMQPURL, "memory backend never publishes")

	cfg, err = FromAppConfig(&config.Config{
		DataBackend:  " SQLite ",
		SQLiteDBPath: "data/moneymate.db",
		AMQPURL:      "amqp://localhost",
		AMQPExchange: "moneymate",
		AMQPQueue:    "sync_transactions",
	})
	require.NoError(t, err)
	assert.Equal(t, SQLiteBackend, cfg.Type)
	assert.Equal(t, "amqp://localhost", cfg.AMQPURL)
	assert.Equal(t, "sync_transactions", cfg.AMQPQueue)
}

func TestConfigValidate(t *testing.T) {
	assert.ErrorIs(t, Config{Type: "postgres"}.Validate(), ErrUnknownBackend)
	assert.Error(t, Config{Type: SQLiteBackend}.Validate())
	assert.NoError(t, Config{Type: MemoryBackend}.Validate())
	assert.Equal(t, []string{"sqlite", "memory"}, GetBackendTypeStrings())
}

func TestCreateBackend_Memory(t *testing.T) {
	seed := filepath.Join(t.TempDir(), "seed.txt")
	require.NoError(t, os.WriteFile(seed, []byte("2024-03-01;income;Salary;1500000;March salary\n"), 0o644))

	res, err := NewFactory(nil).CreateBackend(context.Background(), Config{Type: MemoryBackend, MemorySeedFile: seed})
	require.NoError(t, err)
	assert.Nil(t, res.Sync)
	assert.Nil(t, res.Publisher)

	n, err := res.Store.CountTransactions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NoError(t, res.Cleanup())
}

func TestCreateBackend_SQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db", "moneymate.db")
	res, err := NewFactory(nil).CreateBackend(context.Background(), Config{Type: SQLiteBackend, SQLiteDBPath: path})
	require.NoError(t, err)
	t.Cleanup(func() { _ = res.Cleanup() })

	assert.NotNil(t, res.Sync)
	assert.Nil(t, res.Publisher, "no publisher without AMQP")
	assert.NoError(t, res.Store.Ping(context.Background()))
}
