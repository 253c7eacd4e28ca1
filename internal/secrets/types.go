package secrets

import (
	"context"
	"errors"
)

var (
	ErrNotFound = errors.New("secret not found")
	ErrDisabled = errors.New("secrets storage disabled")
)

// Config configures secret storage.
//
// Driver values:
//   - "file": one sealed blob file per key under Path (default)
//   - "sqlite": SQLite database file at Path
//
// If Driver is "none", storage is disabled.
type Config struct {
	Driver  string
	Path    string
	KeyFile string
}

// Store is the persistence API behind the secureStore/secureRetrieve
// method surface.
type Store interface {
	Put(ctx context.Context, key string, value []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	Contains(ctx context.Context, key string) (bool, error)
	DeleteAll(ctx context.Context) error
	// Sweep drops entries that no longer unseal (key rotation, corruption)
	// and compacts the backend. Returns the number of entries removed.
	Sweep(ctx context.Context) (int, error)
	Close() error
}
