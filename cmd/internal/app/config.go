package app

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"taskdash/cmd/internal/auth/api"
	"taskdash/cmd/internal/auth/session"
	"taskdash/cmd/internal/realtime"
	"taskdash/cmd/internal/storage"
)

const defaultConfigPath = "~/.taskdash/config.yaml"

// ErrInvalidConfig is returned by Validate and LoadConfig for unusable settings.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the full runtime configuration: an optional YAML file at
// TASKDASH_CONFIG overlaid by TASKDASH_* environment variables.
type Config struct {
	// Path is the YAML file the config was read from, empty if none.
	Path string `yaml:"-"`

	APIURL         string        `yaml:"api_url"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	UserAgent      string        `yaml:"user_agent"`

	TokenKey           string        `yaml:"token_key"`
	UserKey            string        `yaml:"user_key"`
	RefreshInterval    time.Duration `yaml:"refresh_interval"`
	AdminRole          string        `yaml:"admin_role"`
	RefreshMaxAttempts int           `yaml:"refresh_max_attempts"`
	RefreshRetryDelay  time.Duration `yaml:"refresh_retry_delay"`

	StorageURL           string `yaml:"storage_url"`
	SealPassphrase       string `yaml:"seal_passphrase"`
	RequireSealedStorage bool   `yaml:"require_sealed_storage"`

	HTTPAddr          string        `yaml:"http_addr"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
	IdleTimeout       time.Duration `yaml:"idle_timeout"`
	MaxHeaderBytes    int           `yaml:"max_header_bytes"`

	// AllowedOrigins gates /events and CORS on /session.
	AllowedOrigins []string `yaml:"allowed_origins"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	ConfigWaitAttempts int           `yaml:"config_wait_attempts"`
	ConfigWaitBackoff  time.Duration `yaml:"config_wait_backoff"`
}

// DefaultConfig returns the built-in settings. APIURL has no default.
func DefaultConfig() Config {
	sc := session.DefaultConfig()
	return Config{
		RequestTimeout: 15 * time.Second,
		UserAgent:      "taskdash/" + Version,

		TokenKey:           sc.TokenKey,
		UserKey:            sc.UserKey,
		RefreshInterval:    sc.RefreshInterval,
		AdminRole:          sc.AdminRole,
		RefreshMaxAttempts: sc.RefreshMaxAttempts,
		RefreshRetryDelay:  sc.RefreshRetryDelay,

		StorageURL: "file://~/.taskdash/session.json",

		HTTPAddr:          "127.0.0.1:8787",
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,

		AllowedOrigins: []string{"http://localhost", "http://127.0.0.1"},

		LogLevel:  "info",
		LogFormat: "json",

		ConfigWaitAttempts: 5,
		ConfigWaitBackoff:  200 * time.Millisecond,
	}
}

// LoadConfigFrom reads the YAML file (if present) and applies env overrides.
// An empty path falls back to TASKDASH_CONFIG, then the default location.
// A missing file at the default path is fine; a missing file named
// explicitly is an error.
func LoadConfigFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	explicit := true
	if path = strings.TrimSpace(path); path == "" {
		path = strings.TrimSpace(os.Getenv("TASKDASH_CONFIG"))
	}
	if path == "" {
		path, explicit = defaultConfigPath, false
	}

	if err := cfg.loadFile(path, explicit); err != nil {
		return Config{}, err
	}
	cfg.applyEnv()

	sc, err := session.OverlayEnv(cfg.Session())
	if err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	cfg.setSession(sc)
	return cfg, nil
}

func (c *Config) loadFile(path string, explicit bool) error {
	p, err := storage.ExpandHome(path)
	if err != nil {
		return err
	}

	b, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return nil
		}
		return fmt.Errorf("read config %s: %w", p, err)
	}

	if err := yaml.Unmarshal(b, c); err != nil {
		return fmt.Errorf("%w: parse %s: %v", ErrInvalidConfig, p, err)
	}
	c.Path = p
	return nil
}

func (c *Config) applyEnv() {
	c.APIURL = EnvString("TASKDASH_API_URL", c.APIURL)
	c.RequestTimeout = EnvDuration("TASKDASH_REQUEST_TIMEOUT", c.RequestTimeout)
	c.UserAgent = EnvString("TASKDASH_USER_AGENT", c.UserAgent)

	c.StorageURL = EnvString("TASKDASH_STORAGE_URL", c.StorageURL)
	c.SealPassphrase = EnvString("TASKDASH_SEAL_PASSPHRASE", c.SealPassphrase)
	c.RequireSealedStorage = EnvBool("TASKDASH_REQUIRE_SEALED_STORAGE", c.RequireSealedStorage)

	c.HTTPAddr = EnvString("TASKDASH_HTTP_ADDR", c.HTTPAddr)
	c.ReadHeaderTimeout = EnvDuration("TASKDASH_HTTP_READ_HEADER_TIMEOUT", c.ReadHeaderTimeout)
	c.IdleTimeout = EnvDuration("TASKDASH_HTTP_IDLE_TIMEOUT", c.IdleTimeout)
	c.MaxHeaderBytes = EnvInt("TASKDASH_HTTP_MAX_HEADER_BYTES", c.MaxHeaderBytes)
	c.AllowedOrigins = EnvCSV("TASKDASH_ALLOWED_ORIGINS", c.AllowedOrigins)

	c.LogLevel = EnvString("TASKDASH_LOG_LEVEL", c.LogLevel)
	c.LogFormat = EnvString("TASKDASH_LOG_FORMAT", c.LogFormat)

	c.ConfigWaitAttempts = EnvInt("TASKDASH_CONFIG_WAIT_ATTEMPTS", c.ConfigWaitAttempts)
	c.ConfigWaitBackoff = EnvDuration("TASKDASH_CONFIG_WAIT_BACKOFF", c.ConfigWaitBackoff)
}

// Validate checks settings the process cannot start without.
// A missing APIURL is not an error here: the session layer waits for it.
func (c Config) Validate() error {
	var problems []string

	if _, ok := logLevels[strings.ToLower(strings.TrimSpace(c.LogLevel))]; !ok && strings.TrimSpace(c.LogLevel) != "" {
		problems = append(problems, "log_level must be debug, info, warn or error")
	}
	switch strings.ToLower(strings.TrimSpace(c.LogFormat)) {
	case "", "json", "pretty", "text":
	default:
		problems = append(problems, "log_format must be json, pretty or text")
	}
	if strings.TrimSpace(c.HTTPAddr) == "" {
		problems = append(problems, "http_addr is required")
	}
	if strings.TrimSpace(c.StorageURL) == "" {
		problems = append(problems, "storage_url is required")
	}
	if c.ConfigWaitAttempts < 1 {
		problems = append(problems, "config_wait_attempts must be >= 1")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// Session projects the session subset.
func (c Config) Session() session.Config {
	return session.Config{
		TokenKey:           c.TokenKey,
		UserKey:            c.UserKey,
		RefreshInterval:    c.RefreshInterval,
		AdminRole:          c.AdminRole,
		RefreshMaxAttempts: c.RefreshMaxAttempts,
		RefreshRetryDelay:  c.RefreshRetryDelay,
	}
}

func (c *Config) setSession(sc session.Config) {
	c.TokenKey = sc.TokenKey
	c.UserKey = sc.UserKey
	c.RefreshInterval = sc.RefreshInterval
	c.AdminRole = sc.AdminRole
	c.RefreshMaxAttempts = sc.RefreshMaxAttempts
	c.RefreshRetryDelay = sc.RefreshRetryDelay
}

// Client projects the auth API client settings.
func (c Config) Client() authapi.ClientConfig {
	cc := authapi.LoadClientConfigFromEnv()
	cc.BaseURL = c.APIURL
	cc.Timeout = c.RequestTimeout
	cc.UserAgent = c.UserAgent
	return cc
}

// Gateway projects the /events policy. TASKDASH_WS_* tuning still applies.
func (c Config) Gateway() realtime.GatewayConfig {
	g := realtime.GatewayConfigFromEnv()
	if len(c.AllowedOrigins) > 0 {
		g.AllowedOrigins = append([]string(nil), c.AllowedOrigins...)
	}
	return g
}
