package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// Transport kinds accepted by NewTransport.
const (
	KindWebhook   = "webhook"
	KindWebSocket = "websocket"
)

// NewTransport builds the transport for kind. An empty kind selects the
// webhook.
func NewTransport(kind, rawURL string) (Transport, error) {
	switch kind {
	case "", KindWebhook:
		return NewWebhook(rawURL, nil)
	case KindWebSocket:
		return NewWebSocket(rawURL, nil)
	default:
		return nil, fmt.Errorf("relay: unknown transport kind %q", kind)
	}
}

func parseURL(rawURL string, schemes ...string) (string, error) {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return "", fmt.Errorf("relay: URL is required")
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("relay: parse URL: %w", err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("relay: URL %q has no host", trimmed)
	}
	for _, s := range schemes {
		if u.Scheme == s {
			return trimmed, nil
		}
	}
	return "", fmt.Errorf("relay: URL scheme %q not supported (want %s)", u.Scheme, strings.Join(schemes, " or "))
}

// Webhook posts each message as a JSON document.
type Webhook struct {
	url    string
	client *http.Client
}

// NewWebhook returns a webhook transport for an http or https URL. A nil
// client uses http.DefaultClient.
func NewWebhook(rawURL string, client *http.Client) (*Webhook, error) {
	u, err := parseURL(rawURL, "http", "https")
	if err != nil {
		return nil, err
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Webhook{url: u, client: client}, nil
}

// Deliver implements Transport. Any non-2xx response is an error.
func (w *Webhook) Deliver(ctx context.Context, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encoding message: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("posting message: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook returned %s", resp.Status)
	}
	return nil
}

// Close implements Transport.
func (w *Webhook) Close() error { return nil }

// WebSocket writes each message as a JSON text frame on a lazily dialed
// connection. A failed write drops the connection and the next message
// redials.
type WebSocket struct {
	url    string
	dialer *websocket.Dialer
	conn   *websocket.Conn
}

// NewWebSocket returns a websocket transport for a ws or wss URL. A nil
// dialer uses websocket.DefaultDialer.
func NewWebSocket(rawURL string, dialer *websocket.Dialer) (*WebSocket, error) {
	u, err := parseURL(rawURL, "ws", "wss")
	if err != nil {
		return nil, err
	}
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	return &WebSocket{url: u, dialer: dialer}, nil
}

// Deliver implements Transport.
func (s *WebSocket) Deliver(ctx context.Context, msg Message) error {
	if s.conn == nil {
		conn, resp, err := s.dialer.DialContext(ctx, s.url, nil)
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		if err != nil {
			return fmt.Errorf("dialing relay: %w", err)
		}
		s.conn = conn
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = s.conn.SetWriteDeadline(deadline)
	}
	if err := s.conn.WriteJSON(msg); err != nil {
		s.conn.Close()
		s.conn = nil
		return fmt.Errorf("writing message: %w", err)
	}
	return nil
}

// Close sends a close frame and closes the connection, if one is open.
func (s *WebSocket) Close() error {
	if s.conn == nil {
		return nil
	}
	conn := s.conn
	s.conn = nil
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return conn.Close()
}
