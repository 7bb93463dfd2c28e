// Package session defines the contract between the connection supervisor and
// one protocol session. A Session performs the handshake and tunnel I/O for
// exactly one connection attempt (one supervisor generation) and reports back
// through the Callbacks it was constructed with: an interim Connected and
// exactly one terminal Terminated.
package session

import (
	"github.com/tunnelguard/tunnelguard/client/internal/remote"
)

// Config carries everything a Session needs for one connection attempt.
// It is rebuilt from the current client options on every reconnect.
type Config struct {
	// ID identifies this attempt in logs and events.
	ID string

	// Remote is the endpoint this attempt connects to.
	Remote remote.Endpoint

	// ProfilePath points to the OpenVPN profile used by process-backed sessions.
	ProfilePath string

	Username string
	Password string
}

// Callbacks is the sink a Session reports into. Both methods may be invoked
// from any goroutine; the supervisor marshals them onto its own context and
// discards calls from stale generations.
type Callbacks interface {
	// Connected signals the session reached the connected state.
	Connected()
	// Terminated reports the single terminal outcome of the session.
	// reason carries the server-supplied detail, e.g. the AUTH_FAILED text.
	Terminated(kind ErrorKind, reason string)
}

// Session is one live connection attempt. The supervisor owns at most one
// instance at a time and replaces it wholesale on every reconnect.
type Session interface {
	// Start begins the attempt asynchronously.
	Start()
	// Stop tears the session down without waiting for cleanup to finish.
	// When notifyPeer is set the remote side is told about the intentional
	// exit first, best effort.
	Stop(notifyPeer bool)
	// SendExitNotify tells the remote peer we are leaving on purpose.
	// Fire and forget, delivery is not guaranteed and not awaited.
	SendExitNotify()
	// FirstPacketReceived reports whether any inbound packet arrived yet.
	FirstPacketReceived() bool
	// ReachedConnectedState reports whether the session ever connected.
	ReachedConnectedState() bool
}

// Factory builds the session for one generation from the current options.
type Factory func(cfg Config, cb Callbacks) Session
