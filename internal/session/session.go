// Package session binds a transport, the wire codec, and a grid store
// into one attached terminal session.
//
// Inbound flow: the transport delivers a raw frame, the codec decodes
// it, and the resulting message is applied to the store. Outbound flow:
// a typed client message is encoded and handed to the transport. A
// malformed inbound frame is logged and dropped without touching
// connection state.
package session

import (
	"context"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/codemux/cli/internal/grid"
	"github.com/codemux/cli/internal/protocol"
	"github.com/codemux/cli/internal/transport"
)

// Options configures a session.
type Options struct {
	// URL is the ws(s)://host:port/ws/<sessionId> endpoint.
	URL string

	// Theme resolves abstract colors; nil selects the default theme.
	Theme *grid.Theme

	// Transport tunes reconnection.
	Transport transport.Config
}

// Session is one attached terminal session. It owns its store and its
// transport and keeps them in sync across reconnects by requesting a
// fresh keyframe on every open.
type Session struct {
	id    string
	store *grid.Store
	tr    *transport.Transport

	mu            sync.Mutex
	onStateChange func(st transport.State)
	onServerError func(message string)
}

// New creates a session. It does not connect; call Connect.
func New(opts Options) *Session {
	s := &Session{
		// Short id correlating this session's log lines across epochs.
		id:    uuid.NewString()[:8],
		store: grid.NewStore(opts.Theme),
	}
	s.tr = transport.New(opts.URL, opts.Transport, transport.Handler{
		OnOpen:        s.handleOpen,
		OnFrame:       s.handleFrame,
		OnError:       s.handleError,
		OnStateChange: s.handleState,
	})
	return s
}

// Store returns the grid store renderers read from.
func (s *Session) Store() *grid.Store { return s.store }

// OnStateChange registers an observer for connection state
// transitions. Set it before Connect.
func (s *Session) OnStateChange(fn func(st transport.State)) {
	s.mu.Lock()
	s.onStateChange = fn
	s.mu.Unlock()
}

// OnServerError registers an observer for error frames reported by the
// server. Set it before Connect.
func (s *Session) OnServerError(fn func(message string)) {
	s.mu.Lock()
	s.onServerError = fn
	s.mu.Unlock()
}

// ConnectionState returns the transport's current state.
func (s *Session) ConnectionState() transport.State { return s.tr.State() }

// Connect starts the connection lifecycle.
func (s *Session) Connect(ctx context.Context) { s.tr.Connect(ctx) }

// Reconnect forces a fresh connection attempt from any state.
func (s *Session) Reconnect() { s.tr.Reconnect() }

// Close detaches permanently.
func (s *Session) Close() { s.tr.Close() }

// SendKey sends one key event.
func (s *Session) SendKey(code protocol.KeyCode, mods protocol.KeyModifiers) error {
	return s.send(protocol.Key{Code: code, Modifiers: mods})
}

// SendScroll sends a scroll event.
func (s *Session) SendScroll(direction protocol.ScrollDirection, lines int) error {
	return s.send(protocol.Scroll{Direction: direction, Lines: lines})
}

// SendText sends free-form text as literal keystrokes: one Char event
// per character plus a trailing Enter.
func (s *Session) SendText(text string) error {
	for _, msg := range protocol.TextKeys(text) {
		if err := s.send(msg); err != nil {
			return err
		}
	}
	return nil
}

// RequestKeyframe asks the server for a full resync snapshot.
func (s *Session) RequestKeyframe() error {
	return s.send(protocol.RequestKeyframe{})
}

func (s *Session) send(msg protocol.ClientMessage) error {
	frame, err := protocol.Encode(msg)
	if err != nil {
		return err
	}
	return s.tr.Send(frame)
}

// handleOpen runs after every successful (re)open. The protocol has no
// sequence numbers, so the only recovery path for updates missed while
// disconnected is a fresh keyframe; request one proactively.
func (s *Session) handleOpen() {
	if err := s.RequestKeyframe(); err != nil {
		log.Warn("keyframe request failed", "session", s.id, "err", err)
	}
}

func (s *Session) handleFrame(data []byte) {
	msg, err := protocol.Decode(data)
	if err != nil {
		log.Warn("dropping malformed frame", "session", s.id, "err", err)
		return
	}
	switch m := msg.(type) {
	case protocol.ErrorMessage:
		log.Error("server error", "session", s.id, "message", m.Message)
		s.mu.Lock()
		fn := s.onServerError
		s.mu.Unlock()
		if fn != nil {
			fn(m.Message)
		}
	case protocol.RawOutput:
		log.Debug("raw output frame", "session", s.id, "bytes", len(m.Data))
	case protocol.Unknown:
		log.Debug("ignoring unknown frame", "session", s.id, "type", m.Type)
	default:
		s.store.Apply(msg)
	}
}

func (s *Session) handleError(err error) {
	log.Warn("transport error", "session", s.id, "err", err)
}

func (s *Session) handleState(st transport.State) {
	log.Debug("connection state", "session", s.id, "phase", st.Phase)
	s.mu.Lock()
	fn := s.onStateChange
	s.mu.Unlock()
	if fn != nil {
		fn(st)
	}
}
