package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorKindString(t *testing.T) {
	tables := []struct {
		name string
		kind ErrorKind
		want string
	}{
		{"Undef", KindUndef, "UNDEF"},
		{"AuthFailed", KindAuthFailed, "AUTH_FAILED"},
		{"TunSetupFailed", KindTunSetupFailed, "TUN_SETUP_FAILED"},
		{"TunIfaceCreate", KindTunIfaceCreate, "TUN_IFACE_CREATE"},
		{"TunIfaceDisabled", KindTunIfaceDisabled, "TUN_IFACE_DISABLED"},
		{"ProxyError", KindProxyError, "PROXY_ERROR"},
		{"ProxyNeedCreds", KindProxyNeedCreds, "PROXY_NEED_CREDS"},
		{"CertVerifyFail", KindCertVerifyFail, "CERT_VERIFY_FAIL"},
		{"TLSVersionMin", KindTLSVersionMin, "TLS_VERSION_MIN"},
		{"ClientHalt", KindClientHalt, "CLIENT_HALT"},
		{"ClientRestart", KindClientRestart, "CLIENT_RESTART"},
		{"InactiveTimeout", KindInactiveTimeout, "INACTIVE_TIMEOUT"},
		{"Unknown", ErrorKind(9000), "INVALID_SESSION_ERROR_KIND"},
	}

	for _, table := range tables {
		t.Run(table.name, func(t *testing.T) {
			got := table.kind.String()
			assert.Equal(t, table.want, got, "they should be equal")
		})
	}
}
