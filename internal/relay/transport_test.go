package relay

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTransport(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		kind    string
		url     string
		wantErr string
	}{
		{name: "default webhook", url: "https://hooks.example/x"},
		{name: "webhook", kind: KindWebhook, url: "http://localhost:1/x"},
		{name: "websocket", kind: KindWebSocket, url: "wss://relay.example/ws"},
		{name: "unknown kind", kind: "smoke", url: "http://x", wantErr: "unknown transport kind"},
		{name: "empty url", kind: KindWebhook, url: " ", wantErr: "URL is required"},
		{name: "no host", kind: KindWebhook, url: "http:///path", wantErr: "has no host"},
		{name: "scheme mismatch", kind: KindWebSocket, url: "https://relay.example", wantErr: "not supported"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			tr, err := NewTransport(tt.kind, tt.url)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.NoError(t, tr.Close())
		})
	}
}

func TestWebhook_Deliver(t *testing.T) {
	t.Parallel()

	var (
		mu       sync.Mutex
		received []Message
		ctype    string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var m Message
		if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		mu.Lock()
		received = append(received, m)
		ctype = r.Header.Get("Content-Type")
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	wh, err := NewWebhook(srv.URL+"/hook", srv.Client())
	require.NoError(t, err)

	at := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, wh.Deliver(context.Background(), Message{Kind: "operator", Text: "hello", RunID: "r", Time: at}))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, 1)
	assert.Equal(t, "operator", received[0].Kind)
	assert.Equal(t, "hello", received[0].Text)
	assert.Equal(t, "r", received[0].RunID)
	assert.True(t, at.Equal(received[0].Time))
	assert.Equal(t, "application/json", ctype)
}

func TestWebhook_Non2xxIsError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	wh, err := NewWebhook(srv.URL, nil)
	require.NoError(t, err)

	err = wh.Deliver(context.Background(), Message{Text: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestWebhook_ThroughRelay(t *testing.T) {
	t.Parallel()

	var (
		mu    sync.Mutex
		texts []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var m Message
		_ = json.NewDecoder(r.Body).Decode(&m)
		mu.Lock()
		texts = append(texts, m.Text)
		mu.Unlock()
	}))
	defer srv.Close()

	tr, err := NewTransport(KindWebhook, srv.URL)
	require.NoError(t, err)
	r := New(tr, Options{RunID: "abc"}, nil)

	r.Send("operator", "prompt")
	r.Send("agent", "reply")
	require.NoError(t, r.Drain(context.Background()))
	require.NoError(t, r.Close())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"prompt", "reply"}, texts)
}

// wsServer records every JSON text frame it receives.
type wsServer struct {
	mu    sync.Mutex
	msgs  []Message
	conns int
}

func (s *wsServer) handler(t *testing.T) http.Handler {
	upgrader := websocket.Upgrader{}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		s.mu.Lock()
		s.conns++
		s.mu.Unlock()
		for {
			var m Message
			if err := conn.ReadJSON(&m); err != nil {
				return
			}
			s.mu.Lock()
			s.msgs = append(s.msgs, m)
			s.mu.Unlock()
		}
	})
}

func (s *wsServer) texts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.msgs))
	for _, m := range s.msgs {
		out = append(out, m.Text)
	}
	return out
}

func TestWebSocket_DeliverReusesConnection(t *testing.T) {
	t.Parallel()

	ws := &wsServer{}
	srv := httptest.NewServer(ws.handler(t))
	defer srv.Close()

	tr, err := NewWebSocket("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, tr.Deliver(ctx, Message{Kind: "operator", Text: "one"}))
	require.NoError(t, tr.Deliver(ctx, Message{Kind: "agent", Text: "two"}))
	require.NoError(t, tr.Close())

	assert.Eventually(t, func() bool { return len(ws.texts()) == 2 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"one", "two"}, ws.texts())
	ws.mu.Lock()
	assert.Equal(t, 1, ws.conns)
	ws.mu.Unlock()
}

func TestWebSocket_DialFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	tr, err := NewWebSocket("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)

	err = tr.Deliver(context.Background(), Message{Text: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dialing relay")
	assert.NoError(t, tr.Close())
}
