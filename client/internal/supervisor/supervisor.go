// Package supervisor owns the lifecycle of a client connection: when to
// (re)connect, when to pause, when to give up, and how a terminated session
// maps onto retry-vs-halt policy.
//
// The supervisor implements an always-try-to-reconnect approach with
// remote-list rotation. It only gives up on auth failure or other fatal
// errors that retrying cannot remedy. Everything it owns runs on a single
// consumer goroutine draining a command channel; the exported control
// methods are safe to call from any goroutine because they only post onto
// that channel and return.
package supervisor

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/tunnelguard/tunnelguard/client/internal/challenge"
	"github.com/tunnelguard/tunnelguard/client/internal/event"
	"github.com/tunnelguard/tunnelguard/client/internal/session"
	"github.com/tunnelguard/tunnelguard/client/internal/stats"
)

// restartDelay is how long to wait before rebuilding a session that ended
// without a fatal error.
var restartDelay = 2 * time.Second

const opsQueueSize = 64

// Options supplies the supervisor's policy knobs and builds per-attempt
// session configs. Implementations are read from the supervisor's goroutine
// only.
type Options interface {
	// ConnTimeout bounds how long one attempt may stay unconnected.
	// Zero or negative disables the timeout.
	ConnTimeout() time.Duration
	// ServerPollTimeout bounds how long to wait for the first inbound
	// packet before cycling to the next endpoint. ok false disables it.
	ServerPollTimeout() (d time.Duration, ok bool)
	// PauseOnConnectionTimeout selects pausing instead of halting when the
	// connection timeout fires.
	PauseOnConnectionTimeout() bool
	// Next advances the remote-list cursor.
	Next()
	// SessionConfig builds the config for the next connection attempt from
	// the current options and remote-list cursor.
	SessionConfig() session.Config
}

// PreResolver is the one-shot address resolution helper consumed during
// startup. See the resolver package for the concrete implementation.
type PreResolver interface {
	WorkAvailable() bool
	// Start runs asynchronously and invokes done exactly once on
	// completion, unless Cancel aborted the run.
	Start(done func())
	// Cancel aborts the run. Idempotent, safe if never started.
	Cancel()
}

// timer is one armed single-shot timer. The generation captured at arm time
// travels with the callback, so a firing that raced a cancellation or a
// reconnect identifies itself as stale at the call site.
type timer struct {
	t   *time.Timer
	gen uint64
}

// Status is a point-in-time snapshot of the supervisor.
type Status struct {
	Generation uint64 `json:"generation"`
	Paused     bool   `json:"paused"`
	Halted     bool   `json:"halted"`
	Resolving  bool   `json:"resolving"`
	HasSession bool   `json:"hasSession"`
}

// Supervisor drives session construction, reconnection, pausing and
// halting. Create one with New; it is addressable until Stop (or a fatal
// session error) halts it, which closes Done.
type Supervisor struct {
	opts    Options
	factory session.Factory
	events  event.Sink
	stats   stats.Recorder
	preRes  PreResolver

	ops  chan func()
	done chan struct{}

	log *log.Entry

	// Fields below are owned by the run loop goroutine.
	generation  uint64
	started     bool
	halted      bool
	paused      bool
	dontRestart bool
	resolving   bool
	keepAlive   bool
	sess        session.Session

	restartTimer *timer
	pollTimer    *timer
	connTimer    *timer
}

// New creates a Supervisor and starts its consumer loop. preRes may be nil
// when no pre-resolution is wanted.
func New(opts Options, factory session.Factory, events event.Sink, recorder stats.Recorder, preRes PreResolver) *Supervisor {
	s := &Supervisor{
		opts:    opts,
		factory: factory,
		events:  events,
		stats:   recorder,
		preRes:  preRes,
		ops:     make(chan func(), opsQueueSize),
		done:    make(chan struct{}),
		log:     log.WithField("component", "supervisor"),
	}
	go s.run()
	return s
}

// Done is closed once the supervisor halted and its loop exited.
func (s *Supervisor) Done() <-chan struct{} {
	return s.done
}

// Start begins connecting. No-op while a session exists, while resolution is
// running, or after the supervisor halted.
func (s *Supervisor) Start() {
	s.post(s.start)
}

// Stop halts the supervisor permanently. Idempotent.
func (s *Supervisor) Stop() {
	s.post(s.stop)
}

// GracefulStop asks the live session to notify the peer of the intentional
// exit, then stops.
func (s *Supervisor) GracefulStop() {
	s.post(s.gracefulStop)
}

// Pause tears the live session down and idles until Resume. No-op when
// halted or already paused.
func (s *Supervisor) Pause() {
	s.post(s.pause)
}

// Resume leaves the paused state and builds a new session. No-op unless
// paused.
func (s *Supervisor) Resume() {
	s.post(s.resume)
}

// Reconnect schedules a session rebuild after the given delay. Negative
// delays are treated as zero.
func (s *Supervisor) Reconnect(delay time.Duration) {
	s.post(func() { s.reconnect(delay) })
}

// DontRestart suppresses the automatic retry for the next session
// termination only: the supervisor halts instead.
func (s *Supervisor) DontRestart() {
	s.post(func() { s.dontRestart = true })
}

// Status returns a snapshot of the supervisor state. After halt it reports
// the terminal state.
func (s *Supervisor) Status() Status {
	res := make(chan Status, 1)
	s.post(func() {
		res <- Status{
			Generation: s.generation,
			Paused:     s.paused,
			Halted:     s.halted,
			Resolving:  s.resolving,
			// The paused slot only exists to decide cursor rotation on
			// resume; the stopped session in it is not live.
			HasSession: s.sess != nil && !s.paused,
		}
	})
	select {
	case st := <-res:
		return st
	case <-s.done:
		return Status{Halted: true}
	}
}

// post hands fn to the consumer loop. Once the loop exited every post is
// dropped, which makes all control calls no-ops after halt.
func (s *Supervisor) post(fn func()) {
	select {
	case <-s.done:
	case s.ops <- fn:
	}
}

// run is the single execution context. The loop ends when the supervisor
// halted, or when it was started and ran out of work the way an event loop
// does: no session, no pending timer, no resolution and no keep-alive token.
func (s *Supervisor) run() {
	defer close(s.done)
	for fn := range s.ops {
		fn()
		if s.halted {
			return
		}
		if s.started && !s.workPending() {
			s.log.Debug("no work left, supervisor loop exiting")
			return
		}
	}
}

func (s *Supervisor) workPending() bool {
	return s.sess != nil || s.resolving || s.keepAlive ||
		s.restartTimer != nil || s.pollTimer != nil || s.connTimer != nil
}

func (s *Supervisor) start() {
	if s.sess != nil || s.halted || s.resolving {
		return
	}
	s.started = true
	if s.preRes != nil && s.preRes.WorkAvailable() {
		s.events.AddEvent(event.New(event.TypeResolving, ""))
		s.resolving = true
		s.preRes.Start(func() {
			s.post(s.preResolveDone)
		})
		return
	}
	s.startSession(true)
}

func (s *Supervisor) preResolveDone() {
	s.resolving = false
	if !s.halted {
		s.startSession(true)
	}
}

func (s *Supervisor) stop() {
	if s.halted {
		return
	}
	s.halted = true
	if s.preRes != nil {
		s.preRes.Cancel()
	}
	if s.sess != nil {
		s.sess.Stop(false)
	}
	s.cancelTimers()
	s.keepAlive = false
	s.events.AddEvent(event.New(event.TypeDisconnected, ""))
	s.log.Info("client stopped")
}

func (s *Supervisor) gracefulStop() {
	if !s.halted && s.sess != nil {
		s.sess.SendExitNotify()
	}
	s.stop()
}

func (s *Supervisor) pause() {
	if s.halted || s.paused {
		return
	}
	s.paused = true
	if s.sess != nil {
		s.sess.SendExitNotify()
		s.sess.Stop(false)
	}
	s.cancelTimers()
	// Nothing is scheduled while paused; the token is what keeps the loop
	// addressable until Resume.
	s.keepAlive = true
	s.events.AddEvent(event.New(event.TypePause, ""))
	s.stats.Pause()
	s.log.Info("client paused")
}

func (s *Supervisor) resume() {
	if s.halted || !s.paused {
		return
	}
	s.paused = false
	s.events.AddEvent(event.New(event.TypeResume, ""))
	s.log.Info("client resuming")
	s.startSession(true)
}

func (s *Supervisor) reconnect(delay time.Duration) {
	if s.halted {
		return
	}
	if delay < 0 {
		delay = 0
	}
	s.log.Infof("client terminated, reconnecting in %v...", delay)
	s.cancelTimer(&s.pollTimer)
	s.arm(&s.restartTimer, delay, s.onRestartWait)
}

func (s *Supervisor) queueRestart() {
	s.log.Infof("client terminated, restarting in %v...", restartDelay)
	s.cancelTimer(&s.pollTimer)
	s.arm(&s.restartTimer, restartDelay, s.onRestartWait)
}

// startSession replaces the session slot with a fresh session bound to the
// next generation. The replaced session is stopped and discarded; it is
// consulted once to decide whether the remote-list cursor moves on: an
// endpoint that worked before is retried in place, one that never connected
// is rotated past.
func (s *Supervisor) startSession(announce bool) {
	s.generation++
	s.keepAlive = false
	prev := s.sess
	if prev != nil {
		prev.Stop(false)
	}
	if s.generation > 1 {
		if announce {
			s.events.AddEvent(event.New(event.TypeReconnecting, ""))
			s.stats.Reconnect()
		}
		if prev == nil || !prev.ReachedConnectedState() {
			s.opts.Next()
		}
	}

	cfg := s.opts.SessionConfig()
	s.sess = s.factory(cfg, &callbacks{s: s, gen: s.generation})

	s.cancelTimer(&s.restartTimer)
	if d, ok := s.opts.ServerPollTimeout(); ok {
		s.arm(&s.pollTimer, d, s.onServerPoll)
	}
	if d := s.opts.ConnTimeout(); d > 0 {
		s.arm(&s.connTimer, d, s.onConnTimeout)
	}

	s.log.Infof("connecting to %s (generation %d)", cfg.Remote, s.generation)
	s.sess.Start()
}

// arm replaces the timer in slot with a fresh one for the current
// generation. The fired callback is posted onto the loop, clears the slot it
// still owns, checks its captured generation against the current one, then
// the halted flag, and only then acts. That ordering is the sole defense
// against a firing racing a cancellation or a reconnect.
func (s *Supervisor) arm(slot **timer, d time.Duration, fire func()) {
	s.cancelTimer(slot)
	tm := &timer{gen: s.generation}
	tm.t = time.AfterFunc(d, func() {
		s.post(func() {
			if *slot == tm {
				*slot = nil
			}
			if tm.gen != s.generation {
				return
			}
			if s.halted {
				return
			}
			fire()
		})
	})
	*slot = tm
}

func (s *Supervisor) cancelTimer(slot **timer) {
	if *slot != nil {
		(*slot).t.Stop()
		*slot = nil
	}
}

func (s *Supervisor) cancelTimers() {
	s.cancelTimer(&s.restartTimer)
	s.cancelTimer(&s.pollTimer)
	s.cancelTimer(&s.connTimer)
}

func (s *Supervisor) onRestartWait() {
	if s.paused {
		s.resume()
		return
	}
	if s.sess != nil {
		s.sess.SendExitNotify()
	}
	s.startSession(true)
}

// onServerPoll fires when the current endpoint produced no inbound packet
// within the poll timeout. Cycling to the next endpoint is routine, so no
// event and no counter.
func (s *Supervisor) onServerPoll() {
	if s.sess == nil || s.sess.FirstPacketReceived() {
		return
	}
	s.log.Info("server poll timeout, trying next remote entry...")
	s.startSession(false)
}

func (s *Supervisor) onConnTimeout() {
	s.stats.ConnectionTimeout()
	if !s.paused && s.opts.PauseOnConnectionTimeout() {
		s.pause()
		return
	}
	s.events.AddEvent(event.New(event.TypeConnectionTimeout, ""))
	s.stop()
}

func (s *Supervisor) onConnected() {
	s.cancelTimer(&s.connTimer)
	s.log.Info("session connected")
}

// onTerminated applies the retry-vs-halt policy for a finished session.
// The kind set is closed: a value outside it is a defect in this table and
// must blow up rather than be coerced into either policy.
func (s *Supervisor) onTerminated(kind session.ErrorKind, reason string) {
	if s.dontRestart {
		s.stop()
		return
	}

	switch kind {
	case session.KindUndef:
		// No fatal error, plain retry.
		s.queueRestart()
	case session.KindAuthFailed:
		if challenge.IsDynamic(reason) {
			s.events.AddEvent(event.New(event.TypeDynamicChallenge, reason))
		} else {
			s.events.AddEvent(event.New(event.TypeAuthFailed, reason))
			s.stats.SessionError(kind)
		}
		s.stop()
	case session.KindTunSetupFailed:
		s.haltOn(event.TypeTunSetupFailed, kind, reason)
	case session.KindTunIfaceCreate:
		s.haltOn(event.TypeTunIfaceCreate, kind, reason)
	case session.KindTunIfaceDisabled:
		s.haltOn(event.TypeTunIfaceDisabled, kind, reason)
	case session.KindProxyError:
		s.haltOn(event.TypeProxyError, kind, reason)
	case session.KindProxyNeedCreds:
		s.haltOn(event.TypeProxyNeedCreds, kind, reason)
	case session.KindCertVerifyFail:
		s.haltOn(event.TypeCertVerifyFail, kind, reason)
	case session.KindTLSVersionMin:
		s.haltOn(event.TypeTLSVersionMin, kind, reason)
	case session.KindClientHalt:
		s.haltOn(event.TypeClientHalt, kind, reason)
	case session.KindInactiveTimeout:
		s.haltOn(event.TypeInactiveTimeout, kind, reason)
	case session.KindClientRestart:
		s.events.AddEvent(event.New(event.TypeClientRestart, reason))
		s.stats.SessionError(kind)
		s.queueRestart()
	default:
		panic(fmt.Sprintf("unhandled session error kind %d (%s)", kind, kind))
	}
}

func (s *Supervisor) haltOn(t event.Type, kind session.ErrorKind, reason string) {
	s.events.AddEvent(event.New(t, reason))
	s.stats.SessionError(kind)
	s.stop()
}

// callbacks adapts one generation's session callbacks onto the loop. The
// bound generation makes a late callback from a replaced session a no-op.
type callbacks struct {
	s   *Supervisor
	gen uint64
}

func (c *callbacks) Connected() {
	c.s.post(func() {
		if c.gen != c.s.generation {
			return
		}
		if c.s.halted {
			return
		}
		c.s.onConnected()
	})
}

func (c *callbacks) Terminated(kind session.ErrorKind, reason string) {
	c.s.post(func() {
		if c.gen != c.s.generation {
			return
		}
		if c.s.halted {
			return
		}
		c.s.onTerminated(kind, reason)
	})
}
