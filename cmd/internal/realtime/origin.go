package realtime

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strings"
)

var errOriginMissing = errors.New("missing origin")

// checkOrigin applies the allowlist before the upgrade so rejected
// handshakes get a plain 403.
func checkOrigin(r *http.Request, required bool, allowed []string) error {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		if required {
			return errOriginMissing
		}
		return nil
	}
	if len(allowed) == 0 {
		return errors.New("origin not allowed (no allowlist)")
	}

	host := originHostOnly(origin)
	for _, a := range allowed {
		a = strings.TrimSpace(a)
		switch {
		case a == "":
			continue
		case a == "*":
			return nil
		case strings.EqualFold(origin, a):
			return nil
		case host != "" && host == originHostOnly(a):
			return nil
		}
	}
	return fmt.Errorf("origin not allowed: %s", origin)
}

// originHostOnly extracts the lowercase host from an origin or host[:port].
func originHostOnly(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	if strings.Contains(s, "://") {
		u, err := url.Parse(s)
		if err != nil {
			return ""
		}
		s = strings.TrimSpace(u.Host)
		if s == "" {
			return ""
		}
	}

	if host, _, err := net.SplitHostPort(s); err == nil {
		return strings.ToLower(host)
	}
	return strings.ToLower(s)
}

// originPatterns derives websocket.AcceptOptions.OriginPatterns from the
// allowlist so both checks agree on cross-origin hosts. The library matches
// against host:port, so every host also gets a port wildcard.
func originPatterns(allowed []string) []string {
	seen := make(map[string]struct{}, len(allowed))
	for _, a := range allowed {
		h := originHostOnly(a)
		if h == "*" {
			return []string{"*"}
		}
		if h == "" {
			continue
		}
		seen[h] = struct{}{}
	}

	out := make([]string, 0, 2*len(seen))
	for h := range seen {
		out = append(out, h, h+":*")
	}
	sort.Strings(out)
	return out
}
