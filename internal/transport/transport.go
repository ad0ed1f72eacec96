// Package transport maintains one logical websocket connection to a
// codemux session endpoint, retrying with jittered exponential backoff
// on abnormal disconnects.
//
// A Transport exposes a single external handle across reconnects; the
// underlying socket is created per connection attempt and is owned and
// mutated exclusively by this package. Callbacks (open, frame, error,
// state change) never run concurrently with each other.
package transport

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
)

// ErrNotOpen is returned by Send while the connection is not open. The
// frame is dropped; there is no client-side queue, and re-sync after a
// reopen happens by requesting a fresh keyframe, not by replay.
var ErrNotOpen = errors.New("transport: connection not open")

// Config tunes the reconnection behavior.
type Config struct {
	// MaxAttempts is the automatic retry budget. Once spent, the
	// transport surfaces PhaseExhausted and only Reconnect recovers it.
	MaxAttempts int

	// BaseDelay is the delay before the first retry.
	BaseDelay time.Duration

	// MaxDelay caps the exponential growth, before jitter.
	MaxDelay time.Duration

	// Factor is the exponential growth factor per attempt.
	Factor float64

	// Jitter is the upper bound of the uniform random addition to each
	// delay, preventing synchronized retries.
	Jitter time.Duration

	// HandshakeTimeout bounds each dial.
	HandshakeTimeout time.Duration
}

// DefaultConfig matches the server operators' recommended tuning.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:      10,
		BaseDelay:        5 * time.Second,
		MaxDelay:         30 * time.Second,
		Factor:           2.0,
		Jitter:           time.Second,
		HandshakeTimeout: 30 * time.Second,
	}
}

// Handler receives transport lifecycle events. Nil funcs are skipped.
// Handlers run serially; a slow handler delays frame delivery.
type Handler struct {
	// OnOpen fires after each successful (re)connection, before any
	// OnFrame from that connection.
	OnOpen func()

	// OnFrame delivers one raw inbound text frame.
	OnFrame func(data []byte)

	// OnError reports transport-level errors. Errors never trigger
	// reconnection by themselves; only an abnormal close does.
	OnError func(err error)

	// OnStateChange reports every connection state transition.
	OnStateChange func(st State)
}

// Transport owns the connection lifecycle for one session endpoint.
type Transport struct {
	url     string
	cfg     Config
	handler Handler

	// cbMu serializes all handler invocations.
	cbMu sync.Mutex

	mu        sync.Mutex
	ctx       context.Context
	conn      *websocket.Conn
	state     State
	attempt   int
	reconnect bool
	closed    bool
	timer     *time.Timer
	// gen identifies the current connection epoch. Events carrying a
	// stale gen (late close from a discarded socket, a timer that lost
	// a race with Close or Reconnect) are ignored.
	gen int
}

// New creates a transport for the given websocket URL. It does not
// connect; call Connect.
func New(url string, cfg Config, handler Handler) *Transport {
	if cfg.Factor <= 0 {
		cfg.Factor = 2.0
	}
	return &Transport{
		url:     url,
		cfg:     cfg,
		handler: handler,
		state:   State{Phase: PhaseConnecting},
	}
}

// State returns the current connection state.
func (t *Transport) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Connect starts the connection lifecycle. ctx bounds every dial this
// transport performs, including automatic redials.
func (t *Transport) Connect(ctx context.Context) {
	t.restart(ctx)
}

// Reconnect is the manual override: it cancels any pending retry timer,
// resets the attempt counter, re-enables reconnection, and immediately
// attempts a fresh connection from any state, including exhausted and
// closed.
func (t *Transport) Reconnect() {
	t.restart(nil)
}

func (t *Transport) restart(ctx context.Context) {
	t.mu.Lock()
	if ctx != nil {
		t.ctx = ctx
	}
	if t.ctx == nil {
		t.ctx = context.Background()
	}
	t.closed = false
	t.reconnect = true
	t.attempt = 0
	t.stopTimerLocked()
	// Discard any still-live socket before dialing so two sockets are
	// never live at once under rapid close/reopen races.
	if t.conn != nil {
		_ = t.conn.Close()
		t.conn = nil
	}
	t.gen++
	gen := t.gen
	st := State{Phase: PhaseConnecting}
	t.state = st
	t.mu.Unlock()

	t.emitState(st)
	go t.dial(gen)
}

// Send transmits one frame if the connection is open. Otherwise the
// frame is dropped with a warning and ErrNotOpen; delivery is not
// guaranteed while disconnected by design.
func (t *Transport) Send(frame []byte) error {
	t.mu.Lock()
	if t.state.Phase != PhaseOpen || t.conn == nil {
		t.mu.Unlock()
		log.Warn("dropping outbound frame while disconnected", "bytes", len(frame))
		return ErrNotOpen
	}
	err := t.conn.WriteMessage(websocket.TextMessage, frame)
	t.mu.Unlock()
	if err != nil {
		err = fmt.Errorf("write frame: %w", err)
		t.emitError(err)
		return err
	}
	return nil
}

// Close shuts the transport down permanently: it cancels any pending
// retry timer, closes the socket with a clean status code, and
// guarantees no further reconnect attempts even if a stray close event
// arrives afterwards. Only Reconnect revives a closed transport.
func (t *Transport) Close() {
	t.mu.Lock()
	t.closed = true
	t.reconnect = false
	t.stopTimerLocked()
	t.gen++
	conn := t.conn
	t.conn = nil
	st := State{Phase: PhaseClosed}
	t.state = st
	t.mu.Unlock()

	if conn != nil {
		_ = conn.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "client closing"),
		)
		_ = conn.Close()
	}
	t.emitState(st)
}

// dial attempts one connection for the given epoch. A dial failure is
// handled like an abnormal close: it schedules the next retry.
func (t *Transport) dial(gen int) {
	t.mu.Lock()
	ctx := t.ctx
	t.mu.Unlock()

	dialer := websocket.Dialer{HandshakeTimeout: t.cfg.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, t.url, nil)

	t.mu.Lock()
	if gen != t.gen || !t.reconnect {
		t.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		return
	}
	if err != nil {
		t.mu.Unlock()
		t.emitError(fmt.Errorf("dial %s: %w", t.url, err))
		t.scheduleReconnect(gen)
		return
	}
	t.conn = conn
	t.attempt = 0
	st := State{Phase: PhaseOpen}
	t.state = st
	t.mu.Unlock()

	log.Debug("websocket connected", "url", t.url)
	t.emitState(st)
	t.emitOpen()
	go t.readLoop(conn, gen)
}

func (t *Transport) readLoop(conn *websocket.Conn, gen int) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.handleClose(gen, err)
			return
		}
		t.emitFrame(data)
	}
}

// handleClose reacts to the end of a connection. A clean close stops
// the transport; anything else schedules a retry. Close events from a
// stale epoch are ignored so an already-closed transport never
// reconnects.
func (t *Transport) handleClose(gen int, err error) {
	t.mu.Lock()
	if gen != t.gen {
		t.mu.Unlock()
		return
	}
	if t.conn != nil {
		_ = t.conn.Close()
		t.conn = nil
	}
	clean := websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway)
	if clean || !t.reconnect {
		st := State{Phase: PhaseClosed}
		t.state = st
		t.mu.Unlock()
		log.Debug("websocket closed cleanly", "url", t.url)
		t.emitState(st)
		return
	}
	t.mu.Unlock()

	log.Debug("websocket closed abnormally", "url", t.url, "err", err)
	t.scheduleReconnect(gen)
}

// scheduleReconnect arms the retry timer for the current attempt, or
// surfaces exhaustion when the budget is spent. The attempt counter is
// incremented when the timer is scheduled, not when it fires.
func (t *Transport) scheduleReconnect(gen int) {
	t.mu.Lock()
	if gen != t.gen || !t.reconnect {
		t.mu.Unlock()
		return
	}
	if t.attempt >= t.cfg.MaxAttempts {
		st := State{Phase: PhaseExhausted, Attempt: t.attempt}
		t.state = st
		t.mu.Unlock()
		log.Warn("reconnect attempts exhausted", "url", t.url, "attempts", t.cfg.MaxAttempts)
		t.emitState(st)
		return
	}
	delay := t.delayFor(t.attempt)
	t.attempt++
	t.timer = time.AfterFunc(delay, func() { t.retry(gen) })
	st := State{
		Phase:     PhaseReconnecting,
		Attempt:   t.attempt,
		Delay:     delay,
		NextRetry: time.Now().Add(delay),
	}
	t.state = st
	t.mu.Unlock()

	log.Info("reconnecting", "url", t.url,
		"attempt", st.Attempt, "of", t.cfg.MaxAttempts, "in", delay)
	t.emitState(st)
}

func (t *Transport) retry(gen int) {
	t.mu.Lock()
	if gen != t.gen || !t.reconnect {
		t.mu.Unlock()
		return
	}
	t.timer = nil
	t.gen++
	newGen := t.gen
	st := State{Phase: PhaseConnecting, Attempt: t.attempt}
	t.state = st
	t.mu.Unlock()

	t.emitState(st)
	t.dial(newGen)
}

// delayFor computes min(base * factor^attempt, maxDelay) plus uniform
// jitter in [0, Jitter).
func (t *Transport) delayFor(attempt int) time.Duration {
	d := float64(t.cfg.BaseDelay) * math.Pow(t.cfg.Factor, float64(attempt))
	if ceil := float64(t.cfg.MaxDelay); d > ceil {
		d = ceil
	}
	delay := time.Duration(d)
	if t.cfg.Jitter > 0 {
		delay += time.Duration(rand.Int63n(int64(t.cfg.Jitter)))
	}
	return delay
}

func (t *Transport) stopTimerLocked() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

func (t *Transport) emitOpen() {
	if t.handler.OnOpen == nil {
		return
	}
	t.cbMu.Lock()
	defer t.cbMu.Unlock()
	t.handler.OnOpen()
}

func (t *Transport) emitFrame(data []byte) {
	if t.handler.OnFrame == nil {
		return
	}
	t.cbMu.Lock()
	defer t.cbMu.Unlock()
	t.handler.OnFrame(data)
}

func (t *Transport) emitError(err error) {
	log.Debug("transport error", "err", err)
	if t.handler.OnError == nil {
		return
	}
	t.cbMu.Lock()
	defer t.cbMu.Unlock()
	t.handler.OnError(err)
}

func (t *Transport) emitState(st State) {
	if t.handler.OnStateChange == nil {
		return
	}
	t.cbMu.Lock()
	defer t.cbMu.Unlock()
	t.handler.OnStateChange(st)
}
