// Package transport provides tests for the reconnecting websocket
// client.
package transport

import (
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// fastConfig keeps live reconnect tests quick.
func fastConfig() Config {
	return Config{
		MaxAttempts:      3,
		BaseDelay:        10 * time.Millisecond,
		MaxDelay:         50 * time.Millisecond,
		Factor:           2.0,
		Jitter:           time.Millisecond,
		HandshakeTimeout: time.Second,
	}
}

// wsServer runs an httptest server that upgrades every request and
// hands the connection to fn.
func wsServer(t *testing.T, fn func(conn *websocket.Conn)) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		fn(conn)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

// unreachableURL returns a websocket URL nothing listens on.
func unreachableURL(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("reserve port: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()
	return "ws://" + addr
}

func waitPhase(t *testing.T, states <-chan State, want Phase) State {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case st := <-states:
			if st.Phase == want {
				return st
			}
		case <-deadline:
			t.Fatalf("timed out waiting for phase %v", want)
		}
	}
}

// TestDelayFor tests the backoff schedule with and without jitter.
func TestDelayFor(t *testing.T) {
	base := Config{
		BaseDelay: time.Second,
		MaxDelay:  5 * time.Second,
		Factor:    2.0,
	}

	t.Run("without jitter", func(t *testing.T) {
		tr := New("ws://unused", base, Handler{})
		tests := []struct {
			attempt int
			want    time.Duration
		}{
			{attempt: 0, want: time.Second},
			{attempt: 1, want: 2 * time.Second},
			{attempt: 2, want: 4 * time.Second},
			{attempt: 3, want: 5 * time.Second}, // capped
			{attempt: 9, want: 5 * time.Second},
		}
		for _, tt := range tests {
			if got := tr.delayFor(tt.attempt); got != tt.want {
				t.Errorf("delayFor(%d) = %v, want %v", tt.attempt, got, tt.want)
			}
		}
	})

	t.Run("with jitter", func(t *testing.T) {
		cfg := base
		cfg.Jitter = time.Second
		tr := New("ws://unused", cfg, Handler{})
		for attempt, floor := range []time.Duration{time.Second, 2 * time.Second, 4 * time.Second} {
			for range 50 {
				got := tr.delayFor(attempt)
				if got < floor || got >= floor+time.Second {
					t.Fatalf("delayFor(%d) = %v, want [%v, %v)", attempt, got, floor, floor+time.Second)
				}
			}
		}
	})
}

// TestSendNotOpen tests that frames are dropped while disconnected.
func TestSendNotOpen(t *testing.T) {
	tr := New("ws://unused", fastConfig(), Handler{})
	if err := tr.Send([]byte("hello")); !errors.Is(err, ErrNotOpen) {
		t.Errorf("Send() error = %v, want ErrNotOpen", err)
	}
}

// TestConnectSendReceive tests the frame path in both directions over a
// live connection.
func TestConnectSendReceive(t *testing.T) {
	received := make(chan string, 1)
	srv := wsServer(t, func(conn *websocket.Conn) {
		defer conn.Close()
		if err := conn.WriteMessage(websocket.TextMessage, []byte("from-server")); err != nil {
			return
		}
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		received <- string(data)
	})

	frames := make(chan []byte, 1)
	states := make(chan State, 16)
	tr := New(wsURL(srv), fastConfig(), Handler{
		OnFrame:       func(data []byte) { frames <- data },
		OnStateChange: func(st State) { states <- st },
	})
	defer tr.Close()

	tr.Connect(t.Context())
	waitPhase(t, states, PhaseOpen)

	select {
	case data := <-frames:
		if string(data) != "from-server" {
			t.Errorf("frame = %q, want from-server", data)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for inbound frame")
	}

	if err := tr.Send([]byte("from-client")); err != nil {
		t.Fatalf("Send() error: %v", err)
	}
	select {
	case got := <-received:
		if got != "from-client" {
			t.Errorf("server received %q, want from-client", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for outbound frame")
	}
}

// TestOpenPrecedesFrames tests that OnOpen fires before the first
// OnFrame of each connection.
func TestOpenPrecedesFrames(t *testing.T) {
	srv := wsServer(t, func(conn *websocket.Conn) {
		defer conn.Close()
		_ = conn.WriteMessage(websocket.TextMessage, []byte("first"))
		// Hold the connection until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	var opened atomic.Bool
	violation := make(chan struct{}, 1)
	gotFrame := make(chan struct{}, 1)
	tr := New(wsURL(srv), fastConfig(), Handler{
		OnOpen: func() { opened.Store(true) },
		OnFrame: func([]byte) {
			if !opened.Load() {
				violation <- struct{}{}
			}
			select {
			case gotFrame <- struct{}{}:
			default:
			}
		},
	})
	defer tr.Close()

	tr.Connect(t.Context())
	select {
	case <-gotFrame:
	case <-violation:
		t.Fatal("OnFrame delivered before OnOpen")
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for frame")
	}
}

// TestCleanCloseStops tests that a server-initiated normal close ends
// the lifecycle without retries.
func TestCleanCloseStops(t *testing.T) {
	srv := wsServer(t, func(conn *websocket.Conn) {
		defer conn.Close()
		_ = conn.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session ended"),
		)
		// Drain until the client acknowledges the close.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	states := make(chan State, 16)
	tr := New(wsURL(srv), fastConfig(), Handler{
		OnStateChange: func(st State) { states <- st },
	})
	tr.Connect(t.Context())
	waitPhase(t, states, PhaseClosed)

	// Give a stray retry time to surface, then confirm none did.
	time.Sleep(100 * time.Millisecond)
	if st := tr.State(); st.Phase != PhaseClosed {
		t.Errorf("Phase = %v after clean close, want PhaseClosed", st.Phase)
	}
}

// TestAbnormalCloseReconnects tests automatic recovery after the server
// drops the connection without a close handshake.
func TestAbnormalCloseReconnects(t *testing.T) {
	var conns atomic.Int32
	srv := wsServer(t, func(conn *websocket.Conn) {
		defer conn.Close()
		if conns.Add(1) == 1 {
			// Drop the first connection abruptly.
			_ = conn.UnderlyingConn().Close()
			return
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	opens := make(chan struct{}, 4)
	states := make(chan State, 32)
	tr := New(wsURL(srv), fastConfig(), Handler{
		OnOpen:        func() { opens <- struct{}{} },
		OnStateChange: func(st State) { states <- st },
	})
	defer tr.Close()

	tr.Connect(t.Context())
	for i := 0; i < 2; i++ {
		select {
		case <-opens:
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for open %d", i+1)
		}
	}

	st := waitPhase(t, states, PhaseOpen)
	if st.Attempt != 0 {
		t.Errorf("Attempt = %d after reopen, want 0", st.Attempt)
	}
	if got := conns.Load(); got != 2 {
		t.Errorf("server saw %d connections, want 2", got)
	}
}

// TestExhaustion tests that the retry budget is honored and that manual
// Reconnect revives an exhausted transport.
func TestExhaustion(t *testing.T) {
	url := unreachableURL(t)

	cfg := fastConfig()
	cfg.MaxAttempts = 2

	states := make(chan State, 32)
	var dialErrs atomic.Int32
	tr := New(url, cfg, Handler{
		OnError:       func(error) { dialErrs.Add(1) },
		OnStateChange: func(st State) { states <- st },
	})
	defer tr.Close()

	tr.Connect(t.Context())
	st := waitPhase(t, states, PhaseExhausted)
	if st.Attempt != 2 {
		t.Errorf("Attempt = %d at exhaustion, want 2", st.Attempt)
	}
	// Initial dial plus both retries failed.
	if got := dialErrs.Load(); got != 3 {
		t.Errorf("dial errors = %d, want 3", got)
	}

	// Exhausted is terminal for the automatic path.
	time.Sleep(100 * time.Millisecond)
	if got := tr.State().Phase; got != PhaseExhausted {
		t.Fatalf("Phase = %v after exhaustion, want PhaseExhausted", got)
	}

	// Manual reconnect starts a fresh cycle with a reset budget.
	srv := wsServer(t, func(conn *websocket.Conn) {
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	tr.url = wsURL(srv)
	tr.Reconnect()
	waitPhase(t, states, PhaseOpen)
}

// TestCloseStopsRetries tests that Close cancels a pending retry timer.
func TestCloseStopsRetries(t *testing.T) {
	cfg := fastConfig()
	cfg.BaseDelay = 50 * time.Millisecond

	states := make(chan State, 32)
	tr := New(unreachableURL(t), cfg, Handler{
		OnStateChange: func(st State) { states <- st },
	})

	tr.Connect(t.Context())
	waitPhase(t, states, PhaseReconnecting)
	tr.Close()
	waitPhase(t, states, PhaseClosed)

	// The armed timer must not fire a new attempt after Close.
	time.Sleep(200 * time.Millisecond)
	if got := tr.State().Phase; got != PhaseClosed {
		t.Errorf("Phase = %v after Close, want PhaseClosed", got)
	}
}

// TestRetryIn tests the countdown helper.
func TestRetryIn(t *testing.T) {
	now := time.Now()
	st := State{Phase: PhaseReconnecting, NextRetry: now.Add(3 * time.Second)}
	if got := st.RetryIn(now); got != 3*time.Second {
		t.Errorf("RetryIn() = %v, want 3s", got)
	}
	if got := st.RetryIn(now.Add(5 * time.Second)); got != 0 {
		t.Errorf("RetryIn() past deadline = %v, want 0", got)
	}
	if got := (State{Phase: PhaseOpen}).RetryIn(now); got != 0 {
		t.Errorf("RetryIn() while open = %v, want 0", got)
	}
}
