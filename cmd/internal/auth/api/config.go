package authapi

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// ClientConfig controls the auth API client.
type ClientConfig struct {
	BaseURL      string
	Timeout      time.Duration
	MaxBodyBytes int64
	UserAgent    string
}

// LoadClientConfigFromEnv loads client config from environment variables with safe defaults.
func LoadClientConfigFromEnv() ClientConfig {
	cfg := ClientConfig{
		BaseURL:      strings.TrimSpace(os.Getenv("TASKDASH_API_URL")),
		Timeout:      envDuration("TASKDASH_REQUEST_TIMEOUT", 15*time.Second),
		MaxBodyBytes: envInt64("TASKDASH_API_MAX_BODY_BYTES", 1<<20), // 1 MiB
		UserAgent:    strings.TrimSpace(os.Getenv("TASKDASH_USER_AGENT")),
	}
	return cfg.withDefaults()
}

func (c ClientConfig) withDefaults() ClientConfig {
	if c.Timeout <= 0 {
		c.Timeout = 15 * time.Second
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = 1 << 20
	}
	if c.UserAgent == "" {
		c.UserAgent = "taskdash"
	}
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	return c
}

func envInt64(key string, def int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
