package session

// ErrorKind classifies why a session terminated. It is a closed set: the
// supervisor switches over every kind and treats an unknown value as a
// programming error, so new kinds must be added to its policy table too.
type ErrorKind int32

const (
	// KindUndef means the session ended without a fatal error.
	KindUndef ErrorKind = iota
	// KindAuthFailed indicate the server rejected our credentials
	KindAuthFailed
	// KindTunSetupFailed indicate the tunnel interface could not be configured
	KindTunSetupFailed
	// KindTunIfaceCreate indicate the tunnel interface could not be created
	KindTunIfaceCreate
	// KindTunIfaceDisabled indicate the tunnel interface is administratively disabled
	KindTunIfaceDisabled
	// KindProxyError indicate a failure talking through the configured proxy
	KindProxyError
	// KindProxyNeedCreds indicate the proxy requires credentials
	KindProxyNeedCreds
	// KindCertVerifyFail indicate the server certificate failed verification
	KindCertVerifyFail
	// KindTLSVersionMin indicate the peer cannot satisfy our minimum TLS version
	KindTLSVersionMin
	// KindClientHalt indicate the server ordered the client to halt
	KindClientHalt
	// KindClientRestart indicate the server ordered the client to reconnect
	KindClientRestart
	// KindInactiveTimeout indicate the session was closed after traffic inactivity
	KindInactiveTimeout
)

func (k ErrorKind) String() string {
	switch k {
	case KindUndef:
		return "UNDEF"
	case KindAuthFailed:
		return "AUTH_FAILED"
	case KindTunSetupFailed:
		return "TUN_SETUP_FAILED"
	case KindTunIfaceCreate:
		return "TUN_IFACE_CREATE"
	case KindTunIfaceDisabled:
		return "TUN_IFACE_DISABLED"
	case KindProxyError:
		return "PROXY_ERROR"
	case KindProxyNeedCreds:
		return "PROXY_NEED_CREDS"
	case KindCertVerifyFail:
		return "CERT_VERIFY_FAIL"
	case KindTLSVersionMin:
		return "TLS_VERSION_MIN"
	case KindClientHalt:
		return "CLIENT_HALT"
	case KindClientRestart:
		return "CLIENT_RESTART"
	case KindInactiveTimeout:
		return "INACTIVE_TIMEOUT"
	default:
		return "INVALID_SESSION_ERROR_KIND"
	}
}
