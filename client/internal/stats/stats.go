// Package stats counts supervisor-level failures and lifecycle transitions.
// The OpenTelemetry implementation mirrors how the client records its other
// metrics; the noop implementation is for callers that do not collect any.
package stats

import (
	"github.com/tunnelguard/tunnelguard/client/internal/session"
)

// Recorder is the sink the supervisor increments. Implementations must not
// block the caller.
type Recorder interface {
	// SessionError counts a terminated session by its error kind.
	SessionError(kind session.ErrorKind)
	// ConnectionTimeout counts an attempt that did not connect in time.
	ConnectionTimeout()
	// Reconnect counts a rebuilt connection attempt.
	Reconnect()
	// Pause counts an entry into the paused state.
	Pause()
}

// NewNoopRecorder returns a Recorder that discards everything.
func NewNoopRecorder() Recorder {
	return &noopRecorder{}
}

type noopRecorder struct{}

func (n *noopRecorder) SessionError(session.ErrorKind) {}
func (n *noopRecorder) ConnectionTimeout()             {}
func (n *noopRecorder) Reconnect()                     {}
func (n *noopRecorder) Pause()                         {}
