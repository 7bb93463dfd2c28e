package session

import (
	"os"
	"sync"
	"syscall"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingCallbacks struct {
	mu         sync.Mutex
	connected  int
	terminated int
	kind       ErrorKind
	reason     string
}

func (r *recordingCallbacks) Connected() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connected++
}

func (r *recordingCallbacks) Terminated(kind ErrorKind, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.terminated++
	r.kind = kind
	r.reason = reason
}

func newTestProc(cb *recordingCallbacks) *openvpnProc {
	return &openvpnProc{
		cfg: Config{ID: "test"},
		cb:  cb,
		log: log.WithField("session", "test"),
	}
}

func TestScanLineClassification(t *testing.T) {
	cases := []struct {
		name string
		line string
		kind ErrorKind
	}{
		{"AuthFailed", "AUTH: Received control message: AUTH_FAILED", KindAuthFailed},
		{"CertVerify", "VERIFY ERROR: depth=0, error=certificate has expired", KindCertVerifyFail},
		{"TLSVersionMin", "TLS handshake failed, tls-version-min not met by peer", KindTLSVersionMin},
		{"TunCreate", "Cannot open TUN/TAP dev /dev/net/tun: Permission denied", KindTunIfaceCreate},
		{"TunSetup", "Linux ip addr add failed: external program exited with error status: 2", KindTunSetupFailed},
		{"ProxyCreds", "Proxy requires authentication", KindProxyNeedCreds},
		{"ProxyError", "HTTP proxy returned bad status, error 502", KindProxyError},
		{"Halt", "Halt command was pushed by server ('maintenance')", KindClientHalt},
		{"Restart", "RESTART command was pushed by server ('reconfiguring')", KindClientRestart},
		{"Inactive", "Inactivity timeout (--inactive), exiting", KindInactiveTimeout},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			o := newTestProc(&recordingCallbacks{})
			o.scanLine(tc.line)
			kind, _ := o.outcome()
			assert.Equal(t, tc.kind, kind)
		})
	}
}

func TestScanLineAuthFailedReason(t *testing.T) {
	o := newTestProc(&recordingCallbacks{})
	o.scanLine("AUTH: Received control message: AUTH_FAILED,bad credentials")
	kind, reason := o.outcome()
	assert.Equal(t, KindAuthFailed, kind)
	assert.Equal(t, "bad credentials", reason)
}

func TestScanLineDynamicChallengeReason(t *testing.T) {
	o := newTestProc(&recordingCallbacks{})
	o.scanLine("AUTH: Received control message: AUTH_FAILED,CRV1:R,E:st-1:dXNlcg==:Enter OTP")
	kind, reason := o.outcome()
	assert.Equal(t, KindAuthFailed, kind)
	assert.Equal(t, "CRV1:R,E:st-1:dXNlcg==:Enter OTP", reason)
}

func TestScanLineFirstOutcomeWins(t *testing.T) {
	o := newTestProc(&recordingCallbacks{})
	o.scanLine("VERIFY ERROR: depth=1, self signed certificate")
	o.scanLine("AUTH: Received control message: AUTH_FAILED,rejected")
	kind, _ := o.outcome()
	assert.Equal(t, KindCertVerifyFail, kind)
}

func TestScanLineNoMarkerKeepsUndef(t *testing.T) {
	o := newTestProc(&recordingCallbacks{})
	o.scanLine("UDPv4 link remote: [AF_INET]192.0.2.1:1194")
	kind, reason := o.outcome()
	assert.Equal(t, KindUndef, kind)
	assert.Equal(t, "", reason)
}

func TestScanLineConnectionProgress(t *testing.T) {
	cb := &recordingCallbacks{}
	o := newTestProc(cb)

	assert.False(t, o.FirstPacketReceived())
	o.scanLine("[server] Peer Connection Initiated with [AF_INET]192.0.2.1:1194")
	assert.True(t, o.FirstPacketReceived())
	assert.False(t, o.ReachedConnectedState())

	o.scanLine("Initialization Sequence Completed")
	o.scanLine("Initialization Sequence Completed")
	assert.True(t, o.ReachedConnectedState())

	cb.mu.Lock()
	defer cb.mu.Unlock()
	assert.Equal(t, 1, cb.connected)
}

func TestWriteCredentials(t *testing.T) {
	o := newTestProc(&recordingCallbacks{})
	o.cfg.Username = "alice"
	o.cfg.Password = "s3cret"

	file, err := o.writeCredentials()
	require.NoError(t, err)
	require.NotEmpty(t, file)
	defer os.Remove(file)

	content, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Equal(t, "alice\ns3cret\n", string(content))

	info, err := os.Stat(file)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestStopSignal(t *testing.T) {
	o := newTestProc(&recordingCallbacks{})
	assert.Equal(t, syscall.SIGKILL, o.stopSignal(false))
	assert.Equal(t, syscall.SIGTERM, o.stopSignal(true))
}

func TestStopAfterExitNotifyStaysGraceful(t *testing.T) {
	o := newTestProc(&recordingCallbacks{})
	o.SendExitNotify()
	assert.Equal(t, syscall.SIGTERM, o.stopSignal(false))
}

func TestWriteCredentialsEmpty(t *testing.T) {
	o := newTestProc(&recordingCallbacks{})
	file, err := o.writeCredentials()
	require.NoError(t, err)
	assert.Empty(t, file)
}
