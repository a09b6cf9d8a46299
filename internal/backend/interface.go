package backend

import (
	"context"

	"immo/internal/amqp"
	"immo/internal/store"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// Result is the store selected by configuration plus the optional
// publisher for statement sync messages.
type Result struct {
	Repository store.Repository
	// Publisher is nil when AMQP is disabled or the broker is unreachable.
	Publisher *amqp.Client
	Cleanup   CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*Result, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Memory backend specific; empty means default categories only.
	SeedFile string
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
