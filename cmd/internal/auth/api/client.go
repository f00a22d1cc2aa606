package authapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"taskdash/cmd/security/token"
)

const tracerName = "taskdash/authapi"

// Client calls the auth endpoints. It is safe for concurrent use.
type Client struct {
	cfg    ClientConfig
	log    *slog.Logger
	http   *http.Client
	tracer trace.Tracer
}

// Option configures optional client dependencies.
type Option func(*Client)

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if c == nil || hc == nil {
			return
		}
		c.http = hc
	}
}

// WithLogger sets the logger used for request diagnostics.
func WithLogger(log *slog.Logger) Option {
	return func(c *Client) {
		if c == nil || log == nil {
			return
		}
		c.log = log
	}
}

// NewClient constructs a Client for cfg.BaseURL.
func NewClient(cfg ClientConfig, opts ...Option) (*Client, error) {
	cfg = cfg.withDefaults()

	u, err := url.Parse(cfg.BaseURL)
	if err != nil || cfg.BaseURL == "" || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBaseURL, cfg.BaseURL)
	}

	c := &Client{
		cfg:    cfg,
		log:    slog.Default(),
		http:   &http.Client{Timeout: cfg.Timeout},
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(c)
	}
	return c, nil
}

// Login exchanges credentials for a token and user.
func (c *Client) Login(ctx context.Context, username, password string) (AuthResponse, error) {
	var out AuthResponse
	err := c.do(ctx, "login", http.MethodPost, "/auth/login", "", loginRequest{Username: username, Password: password}, &out)
	return out, err
}

// Register creates an account. It does not authenticate the caller.
func (c *Client) Register(ctx context.Context, in RegisterRequest) (UserResponse, error) {
	var out UserResponse
	err := c.do(ctx, "register", http.MethodPost, "/auth/register", "", in, &out)
	return out, err
}

// Refresh renews token.
func (c *Client) Refresh(ctx context.Context, tok string) (AuthResponse, error) {
	var out AuthResponse
	err := c.do(ctx, "refresh", http.MethodPost, "/auth/refresh", tok, nil, &out)
	return out, err
}

// UpdateProfile replaces profile fields of the token's user.
func (c *Client) UpdateProfile(ctx context.Context, tok string, in ProfileRequest) (UserResponse, error) {
	var out UserResponse
	err := c.do(ctx, "profile", http.MethodPut, "/auth/profile", tok, in, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, op, method, path, tok string, in, out any) (err error) {
	reqID := uuid.NewString()

	ctx, span := c.tracer.Start(ctx, "authapi."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("http.route", path),
			attribute.String("taskdash.request_id", reqID),
		),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}()

	body, err := encodeJSON(in)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("build %s request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("X-Request-ID", reqID)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok = strings.TrimSpace(tok); tok != "" {
		req.Header.Set("Authorization", token.BearerHeader(tok))
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &TransportError{Method: method, Path: path, Err: err}
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	raw, readErr := readBody(resp, c.cfg.MaxBodyBytes)

	// A status line arrived, so a non-2xx is a rejection whatever the body looked like.
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		se := statusErrorFrom(resp.StatusCode, raw)
		c.log.Debug("authapi.response.error",
			"op", op,
			"status", resp.StatusCode,
			"code", se.Code,
			"request_id", reqID,
			"body_err", readErr,
		)
		return se
	}

	switch {
	case errors.Is(readErr, errBodyTooLarge):
		return fmt.Errorf("%w: %v", ErrDecode, readErr)
	case readErr != nil:
		return &TransportError{Method: method, Path: path, Err: readErr}
	}

	return decodeSuccess(raw, out)
}
