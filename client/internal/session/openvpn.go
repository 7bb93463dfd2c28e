package session

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
)

// openvpnProc drives one `openvpn` process as a Session. The process output
// is scanned for the canonical markers that reveal connection progress and
// the reason a session died; the exit of the process is the single terminal
// outcome. A session the owner stopped reports nothing: the owner already
// decided its fate.
type openvpnProc struct {
	cfg Config
	cb  Callbacks
	log *log.Entry

	mu       sync.Mutex
	cmd      *exec.Cmd
	stopped  bool
	notified bool

	firstPacket atomic.Bool
	connected   atomic.Bool
	connectOnce sync.Once

	outcomeMu     sync.Mutex
	outcomeKind   ErrorKind
	outcomeReason string
	outcomeSet    bool
}

// NewOpenVPN builds a Session backed by a local openvpn process.
func NewOpenVPN(cfg Config, cb Callbacks) Session {
	return &openvpnProc{
		cfg: cfg,
		cb:  cb,
		log: log.WithField("session", cfg.ID),
	}
}

func (o *openvpnProc) Start() {
	go o.runProcess()
}

func (o *openvpnProc) Stop(notifyPeer bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.stopped {
		return
	}
	o.stopped = true
	if o.cmd == nil || o.cmd.Process == nil {
		return
	}
	if err := o.cmd.Process.Signal(o.stopSignal(notifyPeer)); err != nil {
		o.log.Debugf("failed signaling openvpn process: %v", err)
	}
}

// stopSignal picks the teardown signal, o.mu held. SIGTERM lets openvpn
// deliver its explicit exit notice, SIGKILL does not, so a hard stop must not
// override an exit notify the owner already requested with a SIGKILL the
// process never gets to act on.
func (o *openvpnProc) stopSignal(notifyPeer bool) syscall.Signal {
	if notifyPeer || o.notified {
		return syscall.SIGTERM
	}
	return syscall.SIGKILL
}

func (o *openvpnProc) SendExitNotify() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.notified = true
	if o.cmd == nil || o.cmd.Process == nil {
		return
	}
	if err := o.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		o.log.Debugf("failed sending exit notify: %v", err)
	}
}

func (o *openvpnProc) FirstPacketReceived() bool {
	return o.firstPacket.Load()
}

func (o *openvpnProc) ReachedConnectedState() bool {
	return o.connected.Load()
}

func (o *openvpnProc) runProcess() {
	credFile, err := o.writeCredentials()
	if err != nil {
		o.log.Errorf("failed writing credentials file: %v", err)
		o.terminate(KindUndef, err.Error())
		return
	}
	defer func() {
		if credFile != "" {
			if err := os.Remove(credFile); err != nil {
				o.log.Debugf("failed removing credentials file: %v", err)
			}
		}
	}()

	args := []string{
		"--config", o.cfg.ProfilePath,
		"--remote", o.cfg.Remote.Host, fmt.Sprintf("%d", o.cfg.Remote.Port), strings.ToLower(o.cfg.Remote.Proto),
		"--verb", "3",
	}
	if credFile != "" {
		args = append(args, "--auth-user-pass", credFile)
	}
	cmd := exec.Command("openvpn", args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		o.terminate(KindUndef, err.Error())
		return
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		o.terminate(KindUndef, err.Error())
		return
	}

	o.mu.Lock()
	if o.stopped {
		o.mu.Unlock()
		return
	}
	if err := cmd.Start(); err != nil {
		o.mu.Unlock()
		o.log.Errorf("failed starting openvpn: %v", err)
		o.terminate(KindUndef, err.Error())
		return
	}
	o.cmd = cmd
	o.mu.Unlock()

	o.log.Debugf("openvpn started with pid %d", cmd.Process.Pid)

	var wg sync.WaitGroup
	wg.Add(2)
	go o.scanOutput(stdout, &wg)
	go o.scanOutput(stderr, &wg)
	wg.Wait()

	err = cmd.Wait()

	o.mu.Lock()
	stoppedByOwner := o.stopped
	o.mu.Unlock()
	if stoppedByOwner {
		return
	}

	kind, reason := o.outcome()
	if err != nil && kind == KindUndef && reason == "" {
		reason = err.Error()
	}
	o.terminate(kind, reason)
}

func (o *openvpnProc) scanOutput(pipe io.Reader, wg *sync.WaitGroup) {
	defer wg.Done()
	scanner := bufio.NewScanner(pipe)
	for scanner.Scan() {
		o.scanLine(scanner.Text())
	}
}

// scanLine inspects one openvpn log line for connection progress and for the
// control messages that decide the terminal classification.
func (o *openvpnProc) scanLine(line string) {
	o.log.Tracef("openvpn: %s", line)

	switch {
	case strings.Contains(line, "Peer Connection Initiated"):
		o.firstPacket.Store(true)

	case strings.Contains(line, "Initialization Sequence Completed"):
		o.firstPacket.Store(true)
		o.connected.Store(true)
		o.connectOnce.Do(o.cb.Connected)

	case strings.Contains(line, "AUTH_FAILED"):
		reason := ""
		if idx := strings.Index(line, "AUTH_FAILED,"); idx >= 0 {
			reason = strings.TrimSpace(line[idx+len("AUTH_FAILED,"):])
		}
		o.setOutcome(KindAuthFailed, reason)

	case strings.Contains(line, "VERIFY ERROR") || strings.Contains(line, "certificate verify failed"):
		o.setOutcome(KindCertVerifyFail, strings.TrimSpace(line))

	case strings.Contains(line, "tls-version-min"):
		o.setOutcome(KindTLSVersionMin, strings.TrimSpace(line))

	case strings.Contains(line, "Cannot open TUN/TAP dev") || strings.Contains(line, "Cannot allocate TUN/TAP dev"):
		o.setOutcome(KindTunIfaceCreate, strings.TrimSpace(line))

	case strings.Contains(line, "ifconfig failed") || strings.Contains(line, "ip addr add failed"):
		o.setOutcome(KindTunSetupFailed, strings.TrimSpace(line))

	case strings.Contains(line, "Proxy requires authentication"):
		o.setOutcome(KindProxyNeedCreds, strings.TrimSpace(line))

	case strings.Contains(line, "HTTP proxy") && strings.Contains(line, "error"):
		o.setOutcome(KindProxyError, strings.TrimSpace(line))

	case strings.Contains(line, "Halt command was pushed"):
		o.setOutcome(KindClientHalt, strings.TrimSpace(line))

	case strings.Contains(line, "RESTART command was pushed"):
		o.setOutcome(KindClientRestart, strings.TrimSpace(line))

	case strings.Contains(line, "Inactivity timeout (--inactive)"):
		o.setOutcome(KindInactiveTimeout, strings.TrimSpace(line))
	}
}

// setOutcome records the first classification only. Later lines routinely
// repeat or follow up on the original cause.
func (o *openvpnProc) setOutcome(kind ErrorKind, reason string) {
	o.outcomeMu.Lock()
	defer o.outcomeMu.Unlock()
	if o.outcomeSet {
		return
	}
	o.outcomeSet = true
	o.outcomeKind = kind
	o.outcomeReason = reason
}

func (o *openvpnProc) outcome() (ErrorKind, string) {
	o.outcomeMu.Lock()
	defer o.outcomeMu.Unlock()
	if !o.outcomeSet {
		return KindUndef, ""
	}
	return o.outcomeKind, o.outcomeReason
}

func (o *openvpnProc) terminate(kind ErrorKind, reason string) {
	o.cb.Terminated(kind, reason)
}

func (o *openvpnProc) writeCredentials() (string, error) {
	if o.cfg.Username == "" && o.cfg.Password == "" {
		return "", nil
	}
	dir := filepath.Join(os.TempDir(), "tunnelguard")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("create credentials dir: %w", err)
	}
	file := filepath.Join(dir, fmt.Sprintf("cred-%d", time.Now().UnixNano()))
	content := fmt.Sprintf("%s\n%s\n", o.cfg.Username, o.cfg.Password)
	if err := os.WriteFile(file, []byte(content), 0o600); err != nil {
		return "", fmt.Errorf("write credentials file: %w", err)
	}
	return file, nil
}
