package session

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds what the Manager needs from the application's configuration.
type Config struct {
	// TokenKey and UserKey name the two storage entries.
	TokenKey string
	UserKey  string

	// RefreshInterval is the period of the RefreshCycle.
	RefreshInterval time.Duration

	// AdminRole is the role value that grants admin access.
	AdminRole string

	// RefreshMaxAttempts bounds refresh calls per tick (total, not retries).
	RefreshMaxAttempts int

	// RefreshRetryDelay is the pause between attempts after a transport failure.
	RefreshRetryDelay time.Duration
}

// DefaultConfig returns the dashboard's stock settings.
func DefaultConfig() Config {
	return Config{
		TokenKey:           "tms_token",
		UserKey:            "tms_user",
		RefreshInterval:    30 * time.Minute,
		AdminRole:          "admin",
		RefreshMaxAttempts: 3,
		RefreshRetryDelay:  5 * time.Second,
	}
}

// Validate reports ErrConfigUnavailable when a required field is missing
// and ErrConfig when a value is out of range.
func (c Config) Validate() error {
	var missing []string
	if strings.TrimSpace(c.TokenKey) == "" {
		missing = append(missing, "token_key")
	}
	if strings.TrimSpace(c.UserKey) == "" {
		missing = append(missing, "user_key")
	}
	if c.RefreshInterval == 0 {
		missing = append(missing, "refresh_interval")
	}
	if strings.TrimSpace(c.AdminRole) == "" {
		missing = append(missing, "admin_role")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrConfigUnavailable, strings.Join(missing, ", "))
	}

	if c.TokenKey == c.UserKey {
		return fmt.Errorf("%w: token_key and user_key must differ", ErrConfig)
	}
	if c.RefreshInterval < 0 {
		return fmt.Errorf("%w: refresh_interval must be positive", ErrConfig)
	}
	if c.RefreshMaxAttempts < 1 || c.RefreshMaxAttempts > 10 {
		return fmt.Errorf("%w: refresh_max_attempts out of range [1..10]", ErrConfig)
	}
	if c.RefreshRetryDelay < 0 {
		return fmt.Errorf("%w: refresh_retry_delay must not be negative", ErrConfig)
	}
	return nil
}

// OverlayEnv applies session overrides from the environment on top of base.
//
// Optional (durations must be valid Go duration strings):
//   - TASKDASH_TOKEN_KEY
//   - TASKDASH_USER_KEY
//   - TASKDASH_REFRESH_INTERVAL
//   - TASKDASH_ADMIN_ROLE
//   - TASKDASH_REFRESH_MAX_ATTEMPTS
//   - TASKDASH_REFRESH_RETRY_DELAY
//
// Returns an error wrapping ErrConfig naming the first malformed variable.
func OverlayEnv(base Config) (Config, error) {
	cfg := base

	if v := strings.TrimSpace(os.Getenv("TASKDASH_TOKEN_KEY")); v != "" {
		cfg.TokenKey = v
	}
	if v := strings.TrimSpace(os.Getenv("TASKDASH_USER_KEY")); v != "" {
		cfg.UserKey = v
	}
	if v := strings.TrimSpace(os.Getenv("TASKDASH_ADMIN_ROLE")); v != "" {
		cfg.AdminRole = v
	}

	if v := strings.TrimSpace(os.Getenv("TASKDASH_REFRESH_INTERVAL")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, fmt.Errorf("%w: TASKDASH_REFRESH_INTERVAL=%q", ErrConfig, v)
		}
		cfg.RefreshInterval = d
	}

	if v := strings.TrimSpace(os.Getenv("TASKDASH_REFRESH_MAX_ATTEMPTS")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 10 {
			return Config{}, fmt.Errorf("%w: TASKDASH_REFRESH_MAX_ATTEMPTS=%q", ErrConfig, v)
		}
		cfg.RefreshMaxAttempts = n
	}

	if v := strings.TrimSpace(os.Getenv("TASKDASH_REFRESH_RETRY_DELAY")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return Config{}, fmt.Errorf("%w: TASKDASH_REFRESH_RETRY_DELAY=%q", ErrConfig, v)
		}
		cfg.RefreshRetryDelay = d
	}

	return cfg, nil
}

// ConfigSource yields the session configuration once it is available.
type ConfigSource interface {
	SessionConfig(ctx context.Context) (Config, error)
}

// ConfigSourceFunc adapts a function to ConfigSource.
type ConfigSourceFunc func(ctx context.Context) (Config, error)

// SessionConfig calls f.
func (f ConfigSourceFunc) SessionConfig(ctx context.Context) (Config, error) { return f(ctx) }

// AwaitConfig polls src until it yields a valid Config, making at most
// attempts calls with backoff between them. The application awaits this
// before constructing a Manager. On exhaustion the error wraps
// ErrConfigUnavailable and the last failure.
func AwaitConfig(ctx context.Context, src ConfigSource, attempts int, backoff time.Duration) (Config, error) {
	if src == nil {
		return Config{}, fmt.Errorf("%w: nil source", ErrConfigUnavailable)
	}
	if attempts < 1 {
		attempts = 1
	}

	var last error
	for i := 1; i <= attempts; i++ {
		cfg, err := src.SessionConfig(ctx)
		if err == nil {
			err = cfg.Validate()
		}
		if err == nil {
			return cfg, nil
		}
		last = err

		if i == attempts {
			break
		}
		if err := sleepCtx(ctx, backoff); err != nil {
			return Config{}, fmt.Errorf("%w: %v", ErrConfigUnavailable, err)
		}
	}
	return Config{}, fmt.Errorf("%w: after %d attempts: %v", ErrConfigUnavailable, attempts, last)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
