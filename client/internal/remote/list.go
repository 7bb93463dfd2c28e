// Package remote holds the ordered list of remote endpoints a client may
// connect to, with a cursor the supervisor rotates past endpoints that never
// worked.
package remote

import (
	"fmt"
	"net/netip"
	"strings"
	"sync"
)

// Endpoint is one remote server entry.
type Endpoint struct {
	Host  string `json:"host"`
	Port  uint16 `json:"port"`
	Proto string `json:"proto"`

	// Addrs holds pre-resolved addresses for Host, filled by the
	// pre-resolver. Empty until resolution ran or when Host is a literal IP.
	Addrs []netip.Addr `json:"-"`
}

func (e Endpoint) String() string {
	return fmt.Sprintf("%s:%d/%s", e.Host, e.Port, strings.ToLower(e.Proto))
}

// List is a cursor over the configured endpoints. Next wraps around, so the
// supervisor can rotate forever without running off the end.
type List struct {
	mu      sync.Mutex
	entries []Endpoint
	cursor  int
}

// NewList creates a List over the given endpoints. The cursor starts at the
// first entry.
func NewList(entries []Endpoint) *List {
	return &List{entries: entries}
}

// Len returns the number of configured endpoints.
func (l *List) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Current returns the endpoint under the cursor.
func (l *List) Current() Endpoint {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.entries) == 0 {
		return Endpoint{}
	}
	return l.entries[l.cursor]
}

// Next advances the cursor to the following endpoint, wrapping around.
func (l *List) Next() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.entries) == 0 {
		return
	}
	l.cursor = (l.cursor + 1) % len(l.entries)
}

// UnresolvedHosts lists the hostnames that still need DNS resolution,
// deduplicated, in list order. Literal IP entries are skipped.
func (l *List) UnresolvedHosts() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	seen := make(map[string]struct{})
	var hosts []string
	for _, e := range l.entries {
		if len(e.Addrs) > 0 {
			continue
		}
		if _, err := netip.ParseAddr(e.Host); err == nil {
			continue
		}
		if _, ok := seen[e.Host]; ok {
			continue
		}
		seen[e.Host] = struct{}{}
		hosts = append(hosts, e.Host)
	}
	return hosts
}

// SetAddrs stores resolved addresses for every entry with the given host.
func (l *List) SetAddrs(host string, addrs []netip.Addr) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.entries {
		if l.entries[i].Host == host {
			l.entries[i].Addrs = addrs
		}
	}
}
