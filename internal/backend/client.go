// Package backend speaks the veterinary assistant HTTP API.
package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
)

const (
	// DefaultBaseURL is where the assistant service listens in a local deployment.
	DefaultBaseURL = "http://127.0.0.1:5000"

	// SessionHeader carries the per-process client session id.
	SessionHeader = "X-Client-Session"

	maxResponseBytes = 4 << 20
)

// Config controls backend connectivity.
type Config struct {
	BaseURL string
	// Timeout bounds one request. Zero leaves cancellation to the caller context.
	Timeout    time.Duration
	SessionID  string
	UserAgent  string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client is a thin typed wrapper over the assistant endpoints.
type Client struct {
	baseURL   string
	sessionID string
	userAgent string
	http      *http.Client
	logger    *slog.Logger
}

// New builds a client, defaulting the base URL and generating a session id.
func New(cfg Config) *Client {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}

	sessionID := strings.TrimSpace(cfg.SessionID)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &Client{
		baseURL:   base,
		sessionID: sessionID,
		userAgent: strings.TrimSpace(cfg.UserAgent),
		http:      httpClient,
		logger:    cfg.Logger,
	}
}

// BaseURL returns the normalized service root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// SessionID returns the id sent in SessionHeader.
func (c *Client) SessionID() string {
	return c.sessionID
}

// Chat sends one user message.
func (c *Client) Chat(ctx context.Context, message string, language string) (Reply, error) {
	payload, err := sonic.Marshal(chatRequest{Message: message, Language: language})
	if err != nil {
		return Reply{}, fmt.Errorf("encode chat request: %w", err)
	}

	var reply Reply
	status, err := c.do(ctx, "chat", http.MethodPost, "/api/chat", "application/json", bytes.NewReader(payload), &reply)
	if err != nil {
		return Reply{}, err
	}
	return reply.settle(status), nil
}

// Languages fetches the supported chat languages keyed by code.
func (c *Client) Languages(ctx context.Context) (map[string]string, error) {
	var resp languagesResponse
	status, err := c.do(ctx, "languages", http.MethodGet, "/api/chat/languages", "", nil, &resp)
	if err != nil {
		return nil, err
	}
	if !resp.decoded {
		return nil, &ServiceError{Status: status, Message: invalidResponseMessage(status)}
	}
	if !resp.Success {
		return nil, &ServiceError{Status: status, Message: resp.Error}
	}
	return resp.Languages, nil
}

// Clear resets the server-side conversation context.
func (c *Client) Clear(ctx context.Context) error {
	var resp clearResponse
	status, err := c.do(ctx, "clear", http.MethodPost, "/api/chat/clear", "", nil, &resp)
	if err != nil {
		return err
	}
	if !resp.decoded {
		return &ServiceError{Status: status, Message: invalidResponseMessage(status)}
	}
	if !resp.Success {
		return &ServiceError{Status: status, Message: resp.Error}
	}
	return nil
}

// Health probes the service and its dependencies.
func (c *Client) Health(ctx context.Context) (Health, error) {
	var resp Health
	status, err := c.do(ctx, "health", http.MethodGet, "/api/chat/health", "", nil, &resp)
	if err != nil {
		return Health{}, err
	}
	if !resp.decoded {
		return Health{}, &ServiceError{Status: status, Message: invalidResponseMessage(status)}
	}
	return resp, nil
}

// decodable is implemented by response types that track whether the body parsed.
type decodable interface {
	markDecoded()
}

func (c *Client) do(ctx context.Context, op string, method string, path string, contentType string, body io.Reader, out decodable) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, fmt.Errorf("build %s request: %w", op, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(SessionHeader, c.sessionID)
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.debug("backend request failed", "op", op, "error", err.Error())
		return 0, &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return resp.StatusCode, &TransportError{Op: op, Err: fmt.Errorf("read response: %w", err)}
	}

	c.debug("backend request complete",
		"op", op,
		"status", resp.StatusCode,
		"bytes", len(raw),
		"elapsed_ms", time.Since(started).Milliseconds(),
	)

	if err := sonic.Unmarshal(raw, out); err != nil {
		c.debug("backend response is not json", "op", op, "status", resp.StatusCode, "error", err.Error())
		return resp.StatusCode, nil
	}
	out.markDecoded()
	return resp.StatusCode, nil
}

func (c *Client) debug(msg string, args ...any) {
	if c.logger == nil {
		return
	}
	c.logger.Debug(msg, args...)
}

func invalidResponseMessage(status int) string {
	return fmt.Sprintf("invalid response from server (HTTP %d)", status)
}

// IsTransport reports whether err means no HTTP response was received.
func IsTransport(err error) bool {
	var transportErr *TransportError
	return errors.As(err, &transportErr)
}
