package backend

import (
	"context"

	"moneymate/internal/currency"
	"moneymate/internal/services"
)

// Store is everything the application needs from a data backend:
// the transaction repository, the preference store behind the rate cache,
// and a health check.
type Store interface {
	services.Repository
	currency.Store
	Ping(ctx context.Context) error
	Close() error
}

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the store and the optional pieces that only some
// backends provide.
type BackendResult struct {
	Store Store
	// Sync is the export bookkeeping; nil for backends that are not shared
	// with the worker.
	Sync services.SyncStore
	// Publisher announces writes to the worker; nil when AMQP is disabled.
	Publisher services.EventPublisher
	Cleanup   CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Memory specific; empty means start empty
	MemorySeedFile string
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
