package storage

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// Open returns the backend named by rawURL. A bare path is treated as a file store.
func Open(ctx context.Context, rawURL string) (Store, error) {
	raw := strings.TrimSpace(rawURL)
	if raw == "" {
		return nil, fmt.Errorf("%w: empty url", ErrUnsupportedScheme)
	}
	if raw == "memory:" || raw == "memory://" || raw == "memory" {
		return NewMemoryStore(), nil
	}
	if !strings.Contains(raw, "://") {
		p, err := ExpandHome(raw)
		if err != nil {
			return nil, err
		}
		return NewFileStore(p)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse storage url: %w", err)
	}

	switch strings.ToLower(u.Scheme) {
	case "file":
		p, err := ExpandHome(urlPath(u))
		if err != nil {
			return nil, err
		}
		return NewFileStore(p)
	case "sqlite", "sqlite3":
		p, err := ExpandHome(urlPath(u))
		if err != nil {
			return nil, err
		}
		return OpenSQLite(ctx, p)
	case "postgres", "postgresql":
		return OpenPostgres(ctx, raw)
	case "redis", "rediss":
		return OpenRedis(ctx, raw)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
}

// Describe renders rawURL for logs with any password removed.
func Describe(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Scheme == "" {
		return rawURL
	}
	return u.Redacted()
}

// ExpandHome replaces a leading "~" with the current user's home directory.
func ExpandHome(p string) (string, error) {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~")), nil
}

// urlPath recovers the filesystem path from file:// style URLs, including
// the "file://~/x" form where "~" parses as the host.
func urlPath(u *url.URL) string {
	if u.Host == "~" {
		return "~" + u.Path
	}
	if u.Host != "" && u.Host != "localhost" {
		return u.Host + u.Path
	}
	if u.Opaque != "" {
		return u.Opaque
	}
	return u.Path
}
