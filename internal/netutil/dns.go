package netutil

import (
	"net"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/miekg/dns"
)

// Resolver answers forward and reverse DNS queries, optionally against a
// configured server instead of the system default. Results are cached in
// memory for the lifetime of the resolver (one scan). Invalid inputs yield
// empty results, never errors, so collectors can chain lookups freely.
type Resolver struct {
	server  string
	timeout time.Duration

	mu    sync.Mutex
	cache map[string][]string
}

// NewResolver builds a resolver. server may be empty (system default),
// a bare host, or host:port.
func NewResolver(server string, timeout time.Duration) *Resolver {
	if server == "" {
		if conf, err := dns.ClientConfigFromFile("/etc/resolv.conf"); err == nil && len(conf.Servers) > 0 {
			server = conf.Servers[0]
		} else {
			server = "8.8.8.8"
		}
	}
	if !strings.Contains(server, ":") {
		server += ":53"
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Resolver{
		server:  server,
		timeout: timeout,
		cache:   make(map[string][]string),
	}
}

// ResolveHost returns the IPv4 addresses of a name.
func (r *Resolver) ResolveHost(name string) []string {
	if !ValidHost(name) {
		return nil
	}
	return r.cached("A:"+name, func() []string {
		return r.queryAddrs(name, dns.TypeA)
	})
}

// ResolveHost6 returns the IPv6 addresses of a name.
func (r *Resolver) ResolveHost6(name string) []string {
	if !ValidHost(name) {
		return nil
	}
	return r.cached("AAAA:"+name, func() []string {
		return r.queryAddrs(name, dns.TypeAAAA)
	})
}

// ResolveIP reverse-resolves an IP to its PTR names.
func (r *Resolver) ResolveIP(ip string) []string {
	if !ValidIP(ip) && !ValidIP6(ip) {
		return nil
	}
	return r.cached("PTR:"+ip, func() []string {
		arpa, err := dns.ReverseAddr(ip)
		if err != nil {
			return nil
		}
		var names []string
		for _, rr := range r.Query(arpa, dns.TypePTR) {
			if ptr, ok := rr.(*dns.PTR); ok {
				names = append(names, strings.ToLower(strings.TrimSuffix(ptr.Ptr, ".")))
			}
		}
		sort.Strings(names)
		return names
	})
}

// ValidateIP confirms that a name still forward-resolves to the given IP.
// Used before accepting reverse-resolved aliases and co-hosted sites.
func (r *Resolver) ValidateIP(name, ip string) bool {
	addrs := r.ResolveHost(name)
	if ValidIP6(ip) {
		addrs = r.ResolveHost6(name)
	}
	for _, a := range addrs {
		if a == ip {
			return true
		}
	}
	return false
}

// Query performs a raw DNS query and returns the answer section. Collectors
// needing record types beyond A/AAAA/PTR (TXT, NS, MX, ...) go through here
// so all wire traffic shares one resolver configuration.
func (r *Resolver) Query(name string, qtype uint16) []dns.RR {
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(name), qtype)
	m.RecursionDesired = true

	c := &dns.Client{Timeout: r.timeout}
	resp, _, err := c.Exchange(m, r.server)
	if err != nil || resp == nil {
		return nil
	}
	return resp.Answer
}

func (r *Resolver) queryAddrs(name string, qtype uint16) []string {
	var addrs []string
	for _, rr := range r.Query(name, qtype) {
		switch v := rr.(type) {
		case *dns.A:
			addrs = append(addrs, v.A.String())
		case *dns.AAAA:
			addrs = append(addrs, v.AAAA.String())
		case *dns.CNAME:
			// Follow one level so CNAMEd hosts still resolve; the
			// server normally inlines the chased records anyway.
		}
	}
	sort.Strings(addrs)
	return addrs
}

func (r *Resolver) cached(key string, resolve func() []string) []string {
	r.mu.Lock()
	if res, ok := r.cache[key]; ok {
		r.mu.Unlock()
		return res
	}
	r.mu.Unlock()

	res := resolve()

	r.mu.Lock()
	r.cache[key] = res
	r.mu.Unlock()
	return res
}

// SystemResolveHost is a fallback used by tests and non-scan tooling; it
// consults the OS resolver directly.
func SystemResolveHost(name string) []string {
	ips, err := net.LookupHost(name)
	if err != nil {
		return nil
	}
	sort.Strings(ips)
	return ips
}
