package storage

import (
	"context"
	"fmt"

	"taskdash/cmd/security/seal"
)

// SealedStore encrypts values before handing them to the wrapped Store.
// Keys are stored in the clear.
type SealedStore struct {
	inner  Store
	sealer *seal.Sealer
}

// NewSealedStore wraps inner so every value is sealed at rest.
func NewSealedStore(inner Store, sealer *seal.Sealer) *SealedStore {
	return &SealedStore{inner: inner, sealer: sealer}
}

// Get opens the stored blob. Plaintext or undecryptable values yield ErrCorrupt.
func (s *SealedStore) Get(ctx context.Context, key string) (string, bool, error) {
	blob, ok, err := s.inner.Get(ctx, key)
	if err != nil || !ok {
		return "", ok, err
	}
	pt, err := s.sealer.Open(blob)
	if err != nil {
		return "", false, fmt.Errorf("%w: %s: %v", ErrCorrupt, key, err)
	}
	return string(pt), true, nil
}

// Set seals value and stores it.
func (s *SealedStore) Set(ctx context.Context, key, value string) error {
	blob, err := s.sealer.Seal([]byte(value))
	if err != nil {
		return fmt.Errorf("seal %s: %w", key, err)
	}
	return s.inner.Set(ctx, key, blob)
}

// Delete removes key from the wrapped store.
func (s *SealedStore) Delete(ctx context.Context, key string) error {
	return s.inner.Delete(ctx, key)
}

// Close closes the wrapped store.
func (s *SealedStore) Close() error { return s.inner.Close() }

// Ping forwards to the wrapped store.
func (s *SealedStore) Ping(ctx context.Context) error { return Ping(ctx, s.inner) }
