package app

import (
	"errors"
	"fmt"
	"strings"

	"taskdash/cmd/security/seal"
)

// ValidateSecurityConfig enforces the at-rest policy before anything is opened.
// With require_sealed_storage set, starting without a usable passphrase is refused
// rather than silently storing tokens in the clear.
func ValidateSecurityConfig(cfg Config) error {
	if !cfg.RequireSealedStorage {
		return nil
	}
	if strings.TrimSpace(cfg.SealPassphrase) == "" {
		return errors.New("security policy: require_sealed_storage=true but seal_passphrase is missing")
	}
	_, err := newSealer(cfg)
	return err
}

// newSealer returns nil, nil when no passphrase is configured.
func newSealer(cfg Config) (*seal.Sealer, error) {
	if strings.TrimSpace(cfg.SealPassphrase) == "" {
		return nil, nil
	}

	sc, err := seal.FromEnv()
	if err != nil {
		return nil, fmt.Errorf("security policy: %w", err)
	}

	s, err := seal.New(cfg.SealPassphrase, sc)
	switch {
	case errors.Is(err, seal.ErrPassphraseTooShort):
		return nil, fmt.Errorf("security policy: seal_passphrase is too short (min %d bytes)", sc.MinPassphraseBytes)
	case err != nil:
		return nil, fmt.Errorf("security policy: %w", err)
	}
	return s, nil
}
