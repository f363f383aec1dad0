package collectors

import (
	"net"
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hakim/recongraph/internal/collector"
	"github.com/hakim/recongraph/internal/event"
	"github.com/hakim/recongraph/internal/netutil"
	"github.com/hakim/recongraph/internal/target"
)

func startZone(t *testing.T, zone map[string][]string) string {
	t.Helper()

	handler := dns.HandlerFunc(func(w dns.ResponseWriter, req *dns.Msg) {
		m := new(dns.Msg)
		m.SetReply(req)
		q := req.Question[0]
		for _, val := range zone[q.Name+dns.TypeToString[q.Qtype]] {
			rr, err := dns.NewRR(q.Name + " 60 IN " + dns.TypeToString[q.Qtype] + " " + val)
			if err == nil {
				m.Answer = append(m.Answer, rr)
			}
		}
		w.WriteMsg(m)
	})

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	srv := &dns.Server{PacketConn: pc, Handler: handler}
	go srv.ActivateAndServe()
	t.Cleanup(func() { srv.Shutdown() })

	return pc.LocalAddr().String()
}

func setupDNSResolve(t *testing.T, zone map[string][]string, opts map[string]any) (collector.Collector, *emitRecorder) {
	t.Helper()

	ctx := &collector.Context{
		Resolver: netutil.NewResolver(startZone(t, zone), time.Second),
		TLDs:     netutil.ParseSuffixList("com\nnet"),
	}
	c, err := Create("dnsresolve")
	require.NoError(t, err)

	tgt, err := target.New("example.com", "INTERNET_NAME")
	require.NoError(t, err)
	c.SetTarget(tgt)
	require.NoError(t, c.Setup(ctx, opts))

	rec := &emitRecorder{}
	c.SetEmitter(rec.emit)
	return c, rec
}

func seeded(t *testing.T, eventType, data string) *event.Event {
	t.Helper()
	root, err := event.New(event.TypeRoot, "example.com", "", nil)
	require.NoError(t, err)
	e, err := event.New(eventType, data, "framework", root)
	require.NoError(t, err)
	return e
}

func TestDNSResolve_ForwardResolution(t *testing.T) {
	c, rec := setupDNSResolve(t, map[string][]string{
		"www.example.com.A":    {"192.0.2.10", "192.0.2.20"},
		"www.example.com.AAAA": {"2001:db8::1"},
	}, nil)

	require.NoError(t, c.HandleEvent(seeded(t, "INTERNET_NAME", "www.example.com")))

	assert.Equal(t, []string{"192.0.2.10", "192.0.2.20"}, rec.data("IP_ADDRESS"))
	assert.Equal(t, []string{"2001:db8::1"}, rec.data("IPV6_ADDRESS"))
	assert.Equal(t, []string{"example.com"}, rec.data("DOMAIN_NAME"))
	assert.Empty(t, rec.data("INTERNET_NAME_UNRESOLVED"))

	// Resolved addresses widen the target scope.
	assert.True(t, c.(*DNSResolve).Target().Matches("192.0.2.10", false, false))
}

func TestDNSResolve_UnresolvableNameFlagged(t *testing.T) {
	c, rec := setupDNSResolve(t, nil, nil)

	require.NoError(t, c.HandleEvent(seeded(t, "INTERNET_NAME", "gone.example.com")))

	assert.Equal(t, []string{"gone.example.com"}, rec.data("INTERNET_NAME_UNRESOLVED"))
	assert.Empty(t, rec.data("IP_ADDRESS"))
}

func TestDNSResolve_AffiliateNameResolution(t *testing.T) {
	c, rec := setupDNSResolve(t, map[string][]string{
		"cdn.other.net.A": {"198.51.100.5"},
	}, nil)

	require.NoError(t, c.HandleEvent(seeded(t, "AFFILIATE_INTERNET_NAME", "cdn.other.net")))

	assert.Equal(t, []string{"198.51.100.5"}, rec.data("AFFILIATE_IPADDR"))
	assert.Empty(t, rec.data("IP_ADDRESS"))
	// Affiliates that do not resolve are not worth an unresolved flag.
	assert.Empty(t, rec.data("INTERNET_NAME_UNRESOLVED"))
}

func TestDNSResolve_ReverseWithRoundTrip(t *testing.T) {
	zone := map[string][]string{
		"10.2.0.192.in-addr.arpa.PTR": {"one.example.com.", "stale.example.com.", "two.other.net."},
		"one.example.com.A":           {"192.0.2.10"},
		"two.other.net.A":             {"192.0.2.10"},
		// stale.example.com has no A record, so it fails the round trip.
	}
	c, rec := setupDNSResolve(t, zone, nil)

	require.NoError(t, c.HandleEvent(seeded(t, "IP_ADDRESS", "192.0.2.10")))

	assert.Equal(t, []string{"one.example.com"}, rec.data("INTERNET_NAME"))
	assert.Equal(t, []string{"two.other.net"}, rec.data("AFFILIATE_INTERNET_NAME"))
}

func TestDNSResolve_ReverseWithoutValidation(t *testing.T) {
	zone := map[string][]string{
		"10.2.0.192.in-addr.arpa.PTR": {"stale.example.com."},
	}
	c, rec := setupDNSResolve(t, zone, map[string]any{"validatereverse": false})

	require.NoError(t, c.HandleEvent(seeded(t, "IP_ADDRESS", "192.0.2.10")))

	assert.Equal(t, []string{"stale.example.com"}, rec.data("INTERNET_NAME"))
}

func TestDNSResolve_NetblockEnumeration(t *testing.T) {
	zone := map[string][]string{
		"1.2.0.192.in-addr.arpa.PTR": {"a.example.com."},
		"2.2.0.192.in-addr.arpa.PTR": {"b.example.com."},
	}
	c, rec := setupDNSResolve(t, zone, map[string]any{"maxnetblock": 30})

	require.NoError(t, c.HandleEvent(seeded(t, "NETBLOCK_OWNER", "192.0.2.0/30")))

	// Only the two addresses with PTR records are reported live.
	assert.Equal(t, []string{"192.0.2.1", "192.0.2.2"}, rec.data("IP_ADDRESS"))
}

func TestDNSResolve_NetblockCeiling(t *testing.T) {
	c, rec := setupDNSResolve(t, nil, map[string]any{"maxnetblock": 30})

	// A /24 is larger than the configured /30 ceiling.
	require.NoError(t, c.HandleEvent(seeded(t, "NETBLOCK_OWNER", "192.0.2.0/24")))
	assert.Empty(t, rec.data("IP_ADDRESS"))
}

func TestDNSResolve_NetblockLookupDisabled(t *testing.T) {
	c, rec := setupDNSResolve(t, nil, map[string]any{"netblocklookup": false})

	require.NoError(t, c.HandleEvent(seeded(t, "NETBLOCK_OWNER", "192.0.2.0/30")))
	assert.Empty(t, rec.data("IP_ADDRESS"))
}
