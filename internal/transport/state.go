package transport

import (
	"fmt"
	"time"
)

// Phase is the connection lifecycle phase.
type Phase int

const (
	// PhaseConnecting means a dial is in flight.
	PhaseConnecting Phase = iota
	// PhaseOpen means frames can be sent and received.
	PhaseOpen
	// PhaseReconnecting means a retry timer is pending after an
	// abnormal close.
	PhaseReconnecting
	// PhaseExhausted means the attempt budget ran out. Terminal until
	// Reconnect is called.
	PhaseExhausted
	// PhaseClosed means Close was called or the server closed cleanly.
	// Terminal.
	PhaseClosed
)

// String returns a short lowercase name for status lines and logs.
func (p Phase) String() string {
	switch p {
	case PhaseConnecting:
		return "connecting"
	case PhaseOpen:
		return "open"
	case PhaseReconnecting:
		return "reconnecting"
	case PhaseExhausted:
		return "exhausted"
	case PhaseClosed:
		return "closed"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// State is the observable connection state. Attempt, Delay, and
// NextRetry are meaningful while reconnecting: Attempt is the 1-based
// number of the upcoming attempt, and NextRetry allows a live countdown
// display.
type State struct {
	Phase     Phase
	Attempt   int
	Delay     time.Duration
	NextRetry time.Time
}

// RetryIn returns the time remaining until the next attempt fires,
// clamped at zero. Zero when not reconnecting.
func (s State) RetryIn(now time.Time) time.Duration {
	if s.Phase != PhaseReconnecting {
		return 0
	}
	if d := s.NextRetry.Sub(now); d > 0 {
		return d
	}
	return 0
}
