// Package storage provides the key-value persistence capability used by the history store.
// Backends are interchangeable: memory, SQLite, Redis, and Postgres (see internal/db).
package storage

import (
	"context"
	"errors"
	"fmt"
)

// KV is a string key-value store.
type KV interface {
	// Get returns the value for key. The bool reports whether the key exists.
	Get(ctx context.Context, key string) (string, bool, error)
	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Close releases backend resources.
	Close() error
}

// Operation names used in StorageError.
const (
	OpGet    = "get"
	OpSet    = "set"
	OpDelete = "delete"
)

// StorageError reports a failed read or write against a backend.
type StorageError struct {
	Op    string
	Key   string
	Cause error
}

func (e *StorageError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("storage %s %q failed: %v", e.Op, e.Key, e.Cause)
	}
	return fmt.Sprintf("storage %s %q failed", e.Op, e.Key)
}

func (e *StorageError) Unwrap() error {
	return e.Cause
}

// IsStorageError reports whether err is or wraps a *StorageError.
func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}

// Driver names accepted by configuration.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
)
