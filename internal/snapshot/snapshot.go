// Package snapshot persists the last successfully fetched card payload under
// a single key, so a provisional view can be shown before the network
// answers.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
)

// ErrNotFound is returned by Get when the key holds no snapshot
var ErrNotFound = errors.New("snapshot not found")

// DefaultKey is the key the card list is stored under
const DefaultKey = "cards"

// Store is a minimal persisted key/value store
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Backend names accepted by Open
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Open creates the store for backend rooted at dir
func Open(backend, dir string) (Store, error) {
	switch backend {
	case "", BackendFile:
		return NewFileStore(dir), nil
	case BackendSQLite:
		return NewSQLiteStore(filepath.Join(dir, "snapshots.db"))
	default:
		return nil, fmt.Errorf("unknown snapshot backend: %s", backend)
	}
}
