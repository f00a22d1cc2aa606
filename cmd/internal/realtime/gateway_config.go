package realtime

import (
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	wsDefaultSendQueueSize = 64
	wsMinSendQueueSize     = 8

	wsDefaultWriteTimeout = 5 * time.Second
	wsDefaultReadIdle     = 2 * time.Minute
	wsCloseGrace          = 1 * time.Second

	wsMaxPingFailures = 3

	wsDefaultOriginRequired = true
	wsDefaultAllowedOrigins = "http://localhost,http://127.0.0.1"
)

// GatewayConfig holds the /events WebSocket policy.
type GatewayConfig struct {
	// OriginRequired rejects handshakes without an Origin header.
	OriginRequired bool
	// AllowedOrigins is matched by full origin, then by host. "*" allows any.
	AllowedOrigins []string
	// InsecureSkipVerify disables the library's own origin check. Dev only.
	InsecureSkipVerify bool

	WriteTimeout    time.Duration
	ReadIdleTimeout time.Duration
	SendQueueSize   int

	HeartbeatEvery   time.Duration
	HeartbeatTimeout time.Duration

	RateEvents int
	RateWindow time.Duration
}

// DefaultGatewayConfig allows localhost origins only.
func DefaultGatewayConfig() GatewayConfig {
	return GatewayConfig{
		OriginRequired:   wsDefaultOriginRequired,
		AllowedOrigins:   splitCSV(wsDefaultAllowedOrigins),
		WriteTimeout:     wsDefaultWriteTimeout,
		ReadIdleTimeout:  wsDefaultReadIdle,
		SendQueueSize:    wsDefaultSendQueueSize,
		HeartbeatEvery:   heartbeatInterval,
		HeartbeatTimeout: heartbeatTimeout,
		RateEvents:       rateLimitEvents,
		RateWindow:       rateLimitWindow,
	}
}

// GatewayConfigFromEnv overlays TASKDASH_WS_* variables on the defaults.
// Invalid values keep the default.
func GatewayConfigFromEnv() GatewayConfig {
	c := DefaultGatewayConfig()

	c.InsecureSkipVerify = envBoolWS("TASKDASH_WS_DEV_INSECURE", false)
	c.OriginRequired = envBoolWS("TASKDASH_WS_ORIGIN_REQUIRED", c.OriginRequired)
	if v := strings.TrimSpace(os.Getenv("TASKDASH_WS_ALLOWED_ORIGINS")); v != "" {
		c.AllowedOrigins = splitCSV(v)
	}

	c.WriteTimeout = envDurationWS("TASKDASH_WS_WRITE_TIMEOUT", c.WriteTimeout)
	c.ReadIdleTimeout = envDurationWS("TASKDASH_WS_READ_IDLE_TIMEOUT", c.ReadIdleTimeout)
	c.SendQueueSize = envIntWS("TASKDASH_WS_SEND_QUEUE", c.SendQueueSize)

	c.HeartbeatEvery = envDurationWS("TASKDASH_WS_HEARTBEAT_INTERVAL", c.HeartbeatEvery)
	c.HeartbeatTimeout = envDurationWS("TASKDASH_WS_HEARTBEAT_TIMEOUT", c.HeartbeatTimeout)

	c.RateEvents = envIntWS("TASKDASH_WS_RATE_EVENTS", c.RateEvents)
	c.RateWindow = envDurationWS("TASKDASH_WS_RATE_WINDOW", c.RateWindow)
	return c
}

func (c GatewayConfig) withDefaults() GatewayConfig {
	d := DefaultGatewayConfig()
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = d.WriteTimeout
	}
	if c.ReadIdleTimeout <= 0 {
		c.ReadIdleTimeout = d.ReadIdleTimeout
	}
	if c.SendQueueSize < wsMinSendQueueSize {
		c.SendQueueSize = wsMinSendQueueSize
	}
	if c.HeartbeatEvery <= 0 {
		c.HeartbeatEvery = d.HeartbeatEvery
	}
	if c.HeartbeatTimeout <= 0 {
		c.HeartbeatTimeout = d.HeartbeatTimeout
	}
	if c.RateEvents <= 0 {
		c.RateEvents = d.RateEvents
	}
	if c.RateWindow <= 0 {
		c.RateWindow = d.RateWindow
	}
	return c
}

func envBoolWS(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envIntWS(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func envDurationWS(key string, def time.Duration) time.Duration {
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

func splitCSV(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
