package seal

import (
	"fmt"
	"math"
	"os"
	"runtime"
	"strconv"
	"strings"
)

// Argon2idParams controls Argon2id key-stretching cost.
// MemoryKiB is in KiB as required by argon2.IDKey.
type Argon2idParams struct {
	MemoryKiB   uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
}

// Config is the single configuration surface for this package.
type Config struct {
	Params Argon2idParams

	// MinPassphraseBytes is measured in bytes, not runes, because the passphrase is used as raw bytes.
	MinPassphraseBytes int
}

// DefaultConfig returns a baseline sized for a one-time derivation per process.
func DefaultConfig() Config {
	threads := runtime.NumCPU()
	if threads <= 0 {
		threads = 1
	}
	if threads > 4 {
		threads = 4
	}

	return Config{
		Params: Argon2idParams{
			MemoryKiB:   64 * 1024,      // 64 MiB
			Iterations:  3,              // derivation happens once per process
			Parallelism: uint8(threads), // #nosec G115 -- clamped to [1..4] above; safe conversion.
			SaltLength:  16,
		},
		MinPassphraseBytes: 16,
	}
}

// FromEnv loads config from environment variables.
//
// Env surface:
// - TASKDASH_SEAL_MIN_PASSPHRASE_BYTES
// - TASKDASH_SEAL_ARGON2_MEMORY_KIB
// - TASKDASH_SEAL_ARGON2_ITERATIONS
// - TASKDASH_SEAL_ARGON2_PARALLELISM
// - TASKDASH_SEAL_ARGON2_SALT_LEN
func FromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v, ok := os.LookupEnv("TASKDASH_SEAL_MIN_PASSPHRASE_BYTES"); ok {
		u, err := atou32(v, 8, 1024)
		if err != nil {
			return Config{}, fmt.Errorf("TASKDASH_SEAL_MIN_PASSPHRASE_BYTES: %w", err)
		}
		cfg.MinPassphraseBytes = int(u)
	}

	if v, ok := os.LookupEnv("TASKDASH_SEAL_ARGON2_MEMORY_KIB"); ok {
		u, err := atou32(v, 8*1024, 1024*1024) // 8 MiB .. 1 GiB
		if err != nil {
			return Config{}, fmt.Errorf("TASKDASH_SEAL_ARGON2_MEMORY_KIB: %w", err)
		}
		cfg.Params.MemoryKiB = u
	}

	if v, ok := os.LookupEnv("TASKDASH_SEAL_ARGON2_ITERATIONS"); ok {
		u, err := atou32(v, 1, 20)
		if err != nil {
			return Config{}, fmt.Errorf("TASKDASH_SEAL_ARGON2_ITERATIONS: %w", err)
		}
		cfg.Params.Iterations = u
	}

	if v, ok := os.LookupEnv("TASKDASH_SEAL_ARGON2_PARALLELISM"); ok {
		u, err := atou32(v, 1, 64)
		if err != nil {
			return Config{}, fmt.Errorf("TASKDASH_SEAL_ARGON2_PARALLELISM: %w", err)
		}
		p, err := u32ToU8(u)
		if err != nil {
			return Config{}, fmt.Errorf("TASKDASH_SEAL_ARGON2_PARALLELISM: %w", err)
		}
		cfg.Params.Parallelism = p
	}

	if v, ok := os.LookupEnv("TASKDASH_SEAL_ARGON2_SALT_LEN"); ok {
		u, err := atou32(v, 8, 64)
		if err != nil {
			return Config{}, fmt.Errorf("TASKDASH_SEAL_ARGON2_SALT_LEN: %w", err)
		}
		cfg.Params.SaltLength = u
	}

	return cfg, nil
}

func atou32(s string, minVal, maxVal uint32) (uint32, error) {
	s = strings.TrimSpace(s)
	u64, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("not an unsigned integer")
	}

	u := uint32(u64)
	if u < minVal || u > maxVal {
		return 0, fmt.Errorf("out of range [%d..%d]", minVal, maxVal)
	}
	return u, nil
}

func u32ToU8(u uint32) (uint8, error) {
	if u > math.MaxUint8 {
		return 0, fmt.Errorf("out of range [0..%d]", math.MaxUint8)
	}
	return uint8(u), nil
}
