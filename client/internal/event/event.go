// Package event defines the typed client events the supervisor publishes and
// a fan-out notifier observers subscribe to.
package event

import (
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Type enumerates the client event types.
type Type int32

const (
	// TypeResolving indicate remote hostnames are being pre-resolved
	TypeResolving Type = iota
	// TypeReconnecting indicate a new connection attempt is being built
	TypeReconnecting
	// TypePause indicate the client entered the paused state
	TypePause
	// TypeResume indicate the client left the paused state
	TypeResume
	// TypeDisconnected indicate the client halted
	TypeDisconnected
	// TypeConnectionTimeout indicate the attempt did not connect in time
	TypeConnectionTimeout
	// TypeDynamicChallenge indicate the server requested an interactive credential challenge
	TypeDynamicChallenge
	// TypeAuthFailed indicate the server rejected our credentials
	TypeAuthFailed
	// TypeTunSetupFailed indicate tunnel interface configuration failed
	TypeTunSetupFailed
	// TypeTunIfaceCreate indicate tunnel interface creation failed
	TypeTunIfaceCreate
	// TypeTunIfaceDisabled indicate the tunnel interface is disabled
	TypeTunIfaceDisabled
	// TypeProxyError indicate a proxy failure
	TypeProxyError
	// TypeProxyNeedCreds indicate the proxy requires credentials
	TypeProxyNeedCreds
	// TypeCertVerifyFail indicate server certificate verification failed
	TypeCertVerifyFail
	// TypeTLSVersionMin indicate the minimum TLS version could not be met
	TypeTLSVersionMin
	// TypeClientHalt indicate the server ordered a halt
	TypeClientHalt
	// TypeClientRestart indicate the server ordered a reconnect
	TypeClientRestart
	// TypeInactiveTimeout indicate the session was closed for inactivity
	TypeInactiveTimeout
)

func (t Type) String() string {
	switch t {
	case TypeResolving:
		return "RESOLVING"
	case TypeReconnecting:
		return "RECONNECTING"
	case TypePause:
		return "PAUSE"
	case TypeResume:
		return "RESUME"
	case TypeDisconnected:
		return "DISCONNECTED"
	case TypeConnectionTimeout:
		return "CONNECTION_TIMEOUT"
	case TypeDynamicChallenge:
		return "DYNAMIC_CHALLENGE"
	case TypeAuthFailed:
		return "AUTH_FAILED"
	case TypeTunSetupFailed:
		return "TUN_SETUP_FAILED"
	case TypeTunIfaceCreate:
		return "TUN_IFACE_CREATE"
	case TypeTunIfaceDisabled:
		return "TUN_IFACE_DISABLED"
	case TypeProxyError:
		return "PROXY_ERROR"
	case TypeProxyNeedCreds:
		return "PROXY_NEED_CREDS"
	case TypeCertVerifyFail:
		return "CERT_VERIFY_FAIL"
	case TypeTLSVersionMin:
		return "TLS_VERSION_MIN"
	case TypeClientHalt:
		return "CLIENT_HALT"
	case TypeClientRestart:
		return "CLIENT_RESTART"
	case TypeInactiveTimeout:
		return "INACTIVE_TIMEOUT"
	default:
		log.Errorf("unknown event type: %d", t)
		return "INVALID_EVENT_TYPE"
	}
}

// Event is one published client event.
type Event struct {
	ID        string    `json:"id"`
	Type      Type      `json:"-"`
	Name      string    `json:"type"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// New builds an event of the given type. reason carries server-supplied
// detail where the type has one, e.g. the AUTH_FAILED text.
func New(t Type, reason string) Event {
	return Event{
		ID:        uuid.New().String(),
		Type:      t,
		Name:      t.String(),
		Reason:    reason,
		Timestamp: time.Now(),
	}
}

// Sink receives published events. Implementations must not block the caller.
type Sink interface {
	AddEvent(Event)
}
