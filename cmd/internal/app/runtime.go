package app

import (
	"net"
	"strings"
)

// runtimeBaseURL turns a listen address into a URL a local client can dial.
// Wildcard binds are reached through loopback.
func runtimeBaseURL(addr string) string {
	addr = strings.TrimSpace(addr)
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "http://" + addr
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port)
}

// wsBaseURL maps an http(s) base to ws(s). A bare host:port becomes ws://.
func wsBaseURL(base string) string {
	switch {
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		return "ws://" + strings.TrimPrefix(base, "http://")
	default:
		return "ws://" + base
	}
}

// AgentURL is the base URL of the local agent listening on cfg.HTTPAddr.
func (c Config) AgentURL() string { return runtimeBaseURL(c.HTTPAddr) }

// EventsURL is the /events WebSocket URL of the local agent.
func (c Config) EventsURL() string { return wsBaseURL(c.AgentURL()) + "/events" }
