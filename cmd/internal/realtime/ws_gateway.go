package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	v1 "taskdash/contracts/events/v1"
)

// WSGateway serves the session event stream on /events.
//
// A connection is accepted once origin and subprotocol checks pass. The
// client subscribes by sending hello; the gateway answers with hello_ack
// carrying the current session, then forwards every Hub broadcast.
type WSGateway struct {
	log *slog.Logger
	hub *Hub
	cfg GatewayConfig

	// Derived for websocket.Accept, which only authorizes same-host origins by itself.
	patterns []string
}

// NewWSGateway constructs a gateway. A nil hub gets a private one.
func NewWSGateway(log *slog.Logger, hub *Hub, cfg GatewayConfig) *WSGateway {
	if log == nil {
		log = slog.Default()
	}
	if hub == nil {
		hub = NewHub(log)
	}
	cfg = cfg.withDefaults()
	return &WSGateway{
		log:      log,
		hub:      hub,
		cfg:      cfg,
		patterns: originPatterns(cfg.AllowedOrigins),
	}
}

// ServeHTTP adapter so it can be mounted as http.Handler.
func (g *WSGateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.HandleWS(w, r)
}

// HandleWS upgrades the request and runs the subscriber loop until the peer leaves.
func (g *WSGateway) HandleWS(w http.ResponseWriter, r *http.Request) {
	if err := checkOrigin(r, g.cfg.OriginRequired, g.cfg.AllowedOrigins); err != nil {
		g.log.Info("ws.reject.origin", "err", err, "origin", r.Header.Get("Origin"), "remote", r.RemoteAddr)
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:       []string{v1.Subprotocol},
		OriginPatterns:     g.patterns,
		InsecureSkipVerify: g.cfg.InsecureSkipVerify,
	})
	if err != nil {
		g.log.Error("ws.accept.fail", "err", err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "bye") }()

	if sp := conn.Subprotocol(); sp != v1.Subprotocol {
		g.log.Info("ws.reject.subprotocol", "got", sp, "want", v1.Subprotocol)
		_ = conn.Close(websocket.StatusProtocolError, "subprotocol required")
		return
	}

	conn.SetReadLimit(maxFrameBytes)

	client := NewClient(NewSubscriberID(time.Now().UTC()), g.cfg.SendQueueSize)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	var closeOnce sync.Once
	// shutdown is idempotent. Unsubscribe runs before client.Close so
	// broadcasters never see a closed client in the set.
	shutdown := func(code websocket.StatusCode, reason string) {
		closeOnce.Do(func() {
			g.hub.Unsubscribe(client.ID)
			client.Close()
			_ = conn.Close(code, reason)
			cancel()
		})
	}

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		g.writeLoop(ctx, conn, client, shutdown)
	}()

	heartbeatDone := make(chan struct{})
	go func() {
		defer close(heartbeatDone)
		g.heartbeat(ctx, conn, client, shutdown)
	}()

	g.readLoop(ctx, conn, client, shutdown)

	shutdown(websocket.StatusNormalClosure, "bye")
	<-writerDone

	select {
	case <-heartbeatDone:
	case <-time.After(wsCloseGrace):
	}
}

type shutdownFunc func(code websocket.StatusCode, reason string)

func (g *WSGateway) writeLoop(ctx context.Context, conn *websocket.Conn, client *Client, shutdown shutdownFunc) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-client.Done():
			return
		case env := <-client.Send:
			if err := writeEnvelope(ctx, conn, env, g.cfg.WriteTimeout); err != nil {
				g.log.Info("ws.write.fail", "subscriber_id", client.ID, "close_status", websocket.CloseStatus(err), "err", err)
				shutdown(websocket.StatusAbnormalClosure, "write failed")
				return
			}
		}
	}
}

func (g *WSGateway) heartbeat(ctx context.Context, conn *websocket.Conn, client *Client, shutdown shutdownFunc) {
	t := time.NewTicker(g.cfg.HeartbeatEvery)
	defer t.Stop()

	failures := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-client.Done():
			return
		case <-t.C:
			hbCtx, hbCancel := context.WithTimeout(ctx, g.cfg.HeartbeatTimeout)
			err := conn.Ping(hbCtx)
			hbCancel()

			if err == nil {
				failures = 0
				continue
			}
			failures++
			g.log.Info("ws.ping.fail", "subscriber_id", client.ID, "failures", failures, "err", err)
			if failures >= wsMaxPingFailures {
				shutdown(websocket.StatusGoingAway, "heartbeat failed")
				return
			}
		}
	}
}

func (g *WSGateway) readLoop(ctx context.Context, conn *websocket.Conn, client *Client, shutdown shutdownFunc) {
	rl := NewRateLimiter(g.cfg.RateEvents, g.cfg.RateWindow)
	subscribed := false

	for {
		readCtx, readCancel := context.WithTimeout(ctx, g.cfg.ReadIdleTimeout)
		env, err := readEnvelope(readCtx, conn)
		readCancel()

		if err != nil {
			switch classifyReadErr(err) {
			case readErrClose:
				shutdown(websocket.StatusNormalClosure, "peer closed")
				return
			case readErrCtxDone:
				shutdown(websocket.StatusNormalClosure, "context done")
				return
			case readErrConnClosed:
				shutdown(websocket.StatusAbnormalClosure, "conn closed")
				return
			case readErrBadJSON:
				g.trySendError(ctx, client, "bad_json", "invalid JSON")
				continue
			default:
				g.log.Info("ws.read.fail", "subscriber_id", client.ID, "err", err)
				shutdown(websocket.StatusAbnormalClosure, "read failed")
				return
			}
		}

		if !rl.Allow(time.Now().UTC()) {
			g.trySendError(ctx, client, "rate_limited", "too many events")
			shutdown(websocket.StatusPolicyViolation, "rate limited")
			return
		}

		if err := env.Validate(); err != nil {
			g.trySendError(ctx, client, "bad_envelope", err.Error())
			continue
		}

		switch env.Type {
		case v1.TypeHello:
			if err := g.onHello(ctx, client, env, subscribed); err != nil {
				g.trySendError(ctx, client, "hello_failed", err.Error())
				shutdown(websocket.StatusPolicyViolation, "hello failed")
				return
			}
			subscribed = true
		default:
			g.trySendError(ctx, client, "unsupported", fmt.Sprintf("unsupported type: %s", env.Type))
		}
	}
}

// onHello acks with the current session and subscribes the client.
// A repeated hello re-sends the snapshot without subscribing twice.
func (g *WSGateway) onHello(ctx context.Context, client *Client, env v1.Envelope, subscribed bool) error {
	var p v1.HelloPayload
	if len(env.Payload) > 0 {
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return fmt.Errorf("invalid payload: %w", err)
		}
	}

	sendAck := func(current v1.SessionPayload) bool {
		ack := newEnvelope(v1.TypeHelloAck, mustJSON(v1.HelloAckPayload{
			SubscriberID: client.ID,
			Session:      current,
		}), time.Now().UTC())
		return g.enqueue(ctx, client, ack)
	}

	if subscribed {
		if !sendAck(g.hub.Current()) {
			return errors.New("backpressure: hello_ack")
		}
		return nil
	}
	if !g.hub.Join(client, sendAck) {
		return errors.New("backpressure: hello_ack")
	}
	g.log.Debug("ws.hello", "subscriber_id", client.ID, "client", p.Client)
	return nil
}

func (g *WSGateway) trySendError(ctx context.Context, client *Client, code, msg string) {
	env := newEnvelope(v1.TypeError, mustJSON(v1.ErrorPayload{Code: code, Message: msg}), time.Now().UTC())
	_ = g.enqueue(ctx, client, env)
}

func (g *WSGateway) enqueue(ctx context.Context, client *Client, env v1.Envelope) bool {
	select {
	case <-ctx.Done():
		return false
	case <-client.Done():
		return false
	case client.Send <- env:
		return true
	default:
		return false
	}
}
