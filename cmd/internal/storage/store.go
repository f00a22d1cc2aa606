package storage

import (
	"context"
	"errors"
)

var (
	// ErrUnsupportedScheme is returned by Open for unknown URL schemes.
	ErrUnsupportedScheme = errors.New("unsupported storage scheme")
	// ErrCorrupt marks a stored value that exists but cannot be decoded.
	// Callers should treat it as absence and delete the key.
	ErrCorrupt = errors.New("stored value is corrupt")
	// ErrInvalidKey is returned for empty keys.
	ErrInvalidKey = errors.New("invalid storage key")
)

// Store is a durable string key-value store.
//
// Get reports ok=false (and a nil error) when the key is absent.
// Delete of an absent key is not an error.
type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Close() error
}

func checkKey(key string) error {
	if key == "" {
		return ErrInvalidKey
	}
	return nil
}

// Pinger is implemented by networked backends that can report reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Ping checks s when it implements Pinger. Local backends always succeed.
func Ping(ctx context.Context, s Store) error {
	if p, ok := s.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}
