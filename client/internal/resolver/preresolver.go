// Package resolver pre-resolves the remote-endpoint hostnames once, before
// the first connection attempt. The supervisor starts it, waits for its
// completion callback and never looks at the result: resolution failures are
// logged here and the affected endpoints simply connect by hostname.
package resolver

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/miekg/dns"
	log "github.com/sirupsen/logrus"

	"github.com/tunnelguard/tunnelguard/client/internal/remote"
)

const (
	defaultQueryTimeout = 5 * time.Second
	maxQueryRetries     = 3
	resolvConfPath      = "/etc/resolv.conf"
)

// PreResolver resolves every hostname in the remote list exactly once.
// Start runs asynchronously and invokes the completion callback once, unless
// Cancel aborted the run first.
type PreResolver struct {
	list *remote.List
	log  *log.Entry

	// nameserver is a host:port to query. Empty means use the first server
	// from resolv.conf.
	nameserver string
	timeout    time.Duration

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
}

// New creates a PreResolver over the given list. nameserver may be empty to
// use the system resolver configuration.
func New(list *remote.List, nameserver string) *PreResolver {
	return &PreResolver{
		list:       list,
		log:        log.WithField("component", "pre-resolver"),
		nameserver: nameserver,
		timeout:    defaultQueryTimeout,
	}
}

// WorkAvailable reports whether any endpoint still needs resolution.
func (p *PreResolver) WorkAvailable() bool {
	return len(p.list.UnresolvedHosts()) > 0
}

// Start begins resolution asynchronously. done is invoked exactly once when
// the run finishes, regardless of per-host success; it is not invoked after
// Cancel. Start is a no-op when called twice.
func (p *PreResolver) Start(done func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	go p.run(ctx, done)
}

// Cancel aborts a running resolution. Idempotent, safe before Start and
// after completion.
func (p *PreResolver) Cancel() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		p.cancel()
	}
}

func (p *PreResolver) run(ctx context.Context, done func()) {
	defer func() {
		if ctx.Err() == nil {
			done()
		}
	}()

	server := p.nameserver
	if server == "" {
		server = systemNameserver()
	}
	client := &dns.Client{Timeout: p.timeout}

	for _, host := range p.list.UnresolvedHosts() {
		if ctx.Err() != nil {
			return
		}
		addrs, err := p.resolveHost(ctx, client, server, host)
		if err != nil {
			p.log.Warnf("failed resolving %s via %s: %v", host, server, err)
			continue
		}
		p.log.Debugf("resolved %s to %v", host, addrs)
		p.list.SetAddrs(host, addrs)
	}
}

func (p *PreResolver) resolveHost(ctx context.Context, client *dns.Client, server, host string) ([]netip.Addr, error) {
	var addrs []netip.Addr
	operation := func() error {
		addrs = addrs[:0]
		for _, qtype := range []uint16{dns.TypeA, dns.TypeAAAA} {
			m := new(dns.Msg)
			m.SetQuestion(dns.Fqdn(host), qtype)
			r, _, err := client.ExchangeContext(ctx, m, server)
			if err != nil {
				return fmt.Errorf("query %s %s: %w", host, dns.TypeToString[qtype], err)
			}
			for _, rr := range r.Answer {
				switch record := rr.(type) {
				case *dns.A:
					if addr, ok := netip.AddrFromSlice(record.A.To4()); ok {
						addrs = append(addrs, addr)
					}
				case *dns.AAAA:
					if addr, ok := netip.AddrFromSlice(record.AAAA); ok {
						addrs = append(addrs, addr)
					}
				}
			}
		}
		if len(addrs) == 0 {
			return fmt.Errorf("no addresses for %s", host)
		}
		return nil
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxQueryRetries), ctx)
	if err := backoff.Retry(operation, bo); err != nil {
		return nil, err
	}
	return addrs, nil
}

func systemNameserver() string {
	cfg, err := dns.ClientConfigFromFile(resolvConfPath)
	if err != nil || len(cfg.Servers) == 0 {
		return "127.0.0.1:53"
	}
	return net.JoinHostPort(cfg.Servers[0], cfg.Port)
}
