package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/spf13/cobra"

	"taskdash/cmd/internal/app"
	v1 "taskdash/contracts/events/v1"
)

const watchReadLimit = 1 << 16

type watchOptions struct {
	url     string
	origin  string
	asJSON  bool
	timeout time.Duration
}

func watchCmd(opts *globalOptions) *cobra.Command {
	wo := &watchOptions{}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream session events from a running agent",
		Long: `Connect to the agent's /events stream and print each session change
until interrupted.

Examples:
  taskdash watch
  taskdash watch --json | jq .type`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if wo.url == "" {
				wo.url = cfg.EventsURL()
			}
			if wo.origin == "" {
				wo.origin = cfg.AgentURL()
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return watch(ctx, cmd.OutOrStdout(), wo)
		},
	}

	f := cmd.Flags()
	f.StringVar(&wo.url, "url", "", "Events URL (default derived from http_addr)")
	f.StringVar(&wo.origin, "origin", "", "Origin header sent with the handshake")
	f.BoolVar(&wo.asJSON, "json", false, "Print raw envelopes as JSON lines")
	f.DurationVar(&wo.timeout, "timeout", 5*time.Second, "Handshake timeout")
	return cmd
}

func validateEventsURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return errors.New("missing host")
	}
	return nil
}

// watch subscribes with hello and prints envelopes until ctx ends or the
// agent closes the stream.
func watch(ctx context.Context, out io.Writer, wo *watchOptions) error {
	if err := validateEventsURL(wo.url); err != nil {
		return fmt.Errorf("invalid --url: %w", err)
	}

	h := http.Header{}
	if strings.TrimSpace(wo.origin) != "" {
		h.Set("Origin", wo.origin)
	}

	dialCtx, cancel := context.WithTimeout(ctx, wo.timeout)
	conn, resp, err := websocket.Dial(dialCtx, wo.url, &websocket.DialOptions{
		Subprotocols: []string{v1.Subprotocol},
		HTTPHeader:   h,
	})
	cancel()
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return fmt.Errorf("connect %s: %w", wo.url, err)
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "bye") }()

	if sp := conn.Subprotocol(); sp != v1.Subprotocol {
		return fmt.Errorf("subprotocol mismatch: got=%q want=%q", sp, v1.Subprotocol)
	}
	conn.SetReadLimit(watchReadLimit)

	hello, err := json.Marshal(v1.HelloPayload{Client: "taskdash-cli/" + app.Version})
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, wo.timeout)
	err = wsjson.Write(writeCtx, conn, v1.Envelope{
		V:       v1.Version,
		Type:    v1.TypeHello,
		ID:      fmt.Sprintf("cli-hello-%d", time.Now().UnixNano()),
		TS:      time.Now().UTC(),
		Payload: hello,
	})
	cancel()
	if err != nil {
		return fmt.Errorf("send hello: %w", err)
	}

	for {
		var env v1.Envelope
		if err := wsjson.Read(ctx, conn, &env); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure ||
				websocket.CloseStatus(err) == websocket.StatusGoingAway {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}

		if wo.asJSON {
			b, err := json.Marshal(env)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, string(b))
			continue
		}
		fmt.Fprintln(out, formatEvent(env))
	}
}

// formatEvent renders one envelope as a single human-readable line.
func formatEvent(env v1.Envelope) string {
	ts := env.TS.Local().Format("15:04:05")

	switch env.Type {
	case v1.TypeHelloAck:
		var p v1.HelloAckPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return fmt.Sprintf("%s  %-20s (bad payload)", ts, env.Type)
		}
		return fmt.Sprintf("%s  %-20s subscriber=%s %s", ts, "subscribed", p.SubscriberID, describeSession(p.Session))

	case v1.TypeSessionEstablished, v1.TypeSessionRefreshed, v1.TypeSessionCleared, v1.TypeProfileUpdated:
		var p v1.SessionPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return fmt.Sprintf("%s  %-20s (bad payload)", ts, env.Type)
		}
		line := fmt.Sprintf("%s  %-20s %s", ts, env.Type, describeSession(p))
		if p.Reason != "" {
			line += " reason=" + p.Reason
		}
		return line

	case v1.TypeNavigateLogin:
		return fmt.Sprintf("%s  %-20s sign-in required", ts, env.Type)

	case v1.TypeError:
		var p v1.ErrorPayload
		_ = json.Unmarshal(env.Payload, &p)
		return fmt.Sprintf("%s  %-20s %s: %s", ts, env.Type, p.Code, p.Message)

	default:
		return fmt.Sprintf("%s  %-20s %s", ts, env.Type, string(env.Payload))
	}
}

func describeSession(p v1.SessionPayload) string {
	if !p.Authenticated || p.User == nil {
		return "signed out"
	}
	s := fmt.Sprintf("user=%s role=%s", p.User.Username, p.User.Role)
	if p.Admin {
		s += " admin"
	}
	return s
}
