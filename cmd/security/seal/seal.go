package seal

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

const prefix = "sealed:v1:"

// Sealer encrypts and decrypts storage values with a passphrase-derived key.
// It is safe for concurrent use.
type Sealer struct {
	cfg        Config
	passphrase []byte
	salt       []byte

	mu   sync.Mutex
	keys map[string][]byte // salt -> derived key
}

// New validates the passphrase and derives the key for a fresh random salt.
func New(passphrase string, cfg Config) (*Sealer, error) {
	raw := strings.TrimSpace(passphrase)
	if raw == "" {
		return nil, ErrPassphraseMissing
	}
	if cfg.MinPassphraseBytes > 0 && len(raw) < cfg.MinPassphraseBytes {
		return nil, ErrPassphraseTooShort
	}
	if cfg.Params.SaltLength == 0 {
		cfg.Params.SaltLength = DefaultConfig().Params.SaltLength
	}

	salt := make([]byte, cfg.Params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("salt: %w", err)
	}

	s := &Sealer{
		cfg:        cfg,
		passphrase: []byte(raw),
		salt:       salt,
		keys:       make(map[string][]byte, 1),
	}
	s.keyFor(salt)
	return s, nil
}

// IsSealed reports whether v carries the sealed-blob prefix.
func IsSealed(v string) bool { return strings.HasPrefix(v, prefix) }

// Seal encrypts plaintext and returns a printable blob.
func (s *Sealer) Seal(plaintext []byte) (string, error) {
	aead, err := chacha20poly1305.NewX(s.keyFor(s.salt))
	if err != nil {
		return "", err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("nonce: %w", err)
	}

	out := make([]byte, 0, len(s.salt)+len(nonce)+len(plaintext)+aead.Overhead())
	out = append(out, s.salt...)
	out = append(out, nonce...)
	out = aead.Seal(out, nonce, plaintext, []byte(prefix))

	return prefix + base64.RawURLEncoding.EncodeToString(out), nil
}

// Open decrypts a blob produced by Seal (under any salt, same passphrase).
func (s *Sealer) Open(blob string) ([]byte, error) {
	if !IsSealed(blob) {
		return nil, ErrInvalidBlob
	}
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(blob, prefix))
	if err != nil {
		return nil, ErrInvalidBlob
	}

	saltLen := int(s.cfg.Params.SaltLength)
	nonceLen := chacha20poly1305.NonceSizeX
	if len(raw) < saltLen+nonceLen+chacha20poly1305.Overhead {
		return nil, ErrInvalidBlob
	}

	salt := raw[:saltLen]
	nonce := raw[saltLen : saltLen+nonceLen]
	ct := raw[saltLen+nonceLen:]

	aead, err := chacha20poly1305.NewX(s.keyFor(salt))
	if err != nil {
		return nil, err
	}
	pt, err := aead.Open(nil, nonce, ct, []byte(prefix))
	if err != nil {
		return nil, ErrDecrypt
	}
	return pt, nil
}

func (s *Sealer) keyFor(salt []byte) []byte {
	id := string(salt)

	s.mu.Lock()
	defer s.mu.Unlock()

	if k, ok := s.keys[id]; ok {
		return k
	}
	k := argon2.IDKey(
		s.passphrase,
		salt,
		s.cfg.Params.Iterations,
		s.cfg.Params.MemoryKiB,
		s.cfg.Params.Parallelism,
		chacha20poly1305.KeySize,
	)
	s.keys[id] = k
	return k
}
