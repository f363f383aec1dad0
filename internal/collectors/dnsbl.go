package collectors

import (
	"fmt"
	"strings"

	"github.com/hakim/recongraph/internal/collector"
	"github.com/hakim/recongraph/internal/event"
	"github.com/hakim/recongraph/internal/netutil"
)

// blocklists maps DNS blocklist zones to human-readable service names.
var blocklists = map[string]string{
	"zen.spamhaus.org":       "Spamhaus ZEN",
	"bl.spamcop.net":         "SpamCop",
	"b.barracudacentral.org": "Barracuda Reputation Block List",
	"dnsbl.sorbs.net":        "SORBS",
	"cbl.abuseat.org":        "Composite Blocking List",
}

// DNSBL checks IP addresses against public DNS blocklists.
type DNSBL struct {
	collector.Base
}

func init() {
	Register("dnsbl", func() collector.Collector { return &DNSBL{} })
}

func (d *DNSBL) Meta() collector.Meta {
	return collector.Meta{
		Name:       "DNS Blocklist Check",
		Summary:    "Queries public DNS blocklists for target and affiliate IP addresses.",
		UseCases:   []string{"Footprint", "Investigate", "Passive"},
		Categories: []string{"Reputation Systems"},
		DataSource: &collector.DataSource{
			Website:    "https://www.spamhaus.org/",
			Model:      "FREE_NOAUTH_UNLIMITED",
			References: []string{"https://www.spamhaus.org/zen/"},
		},
	}
}

func (d *DNSBL) Opts() map[string]any {
	return map[string]any{
		"checkaffiliates": true,
	}
}

func (d *DNSBL) OptDescs() map[string]string {
	return map[string]string{
		"checkaffiliates": "Check affiliate IP addresses as well as target addresses.",
	}
}

func (d *DNSBL) Setup(ctx *collector.Context, userOpts map[string]any) error {
	d.Init("dnsbl")
	d.Configure(ctx, d.Opts(), userOpts)
	return nil
}

func (d *DNSBL) WatchedEvents() []string {
	return []string{"IP_ADDRESS", "AFFILIATE_IPADDR"}
}

func (d *DNSBL) ProducedEvents() []string {
	return []string{
		"BLACKLISTED_IPADDR",
		"BLACKLISTED_AFFILIATE_IPADDR",
		"MALICIOUS_IPADDR",
		"MALICIOUS_AFFILIATE_IPADDR",
	}
}

func (d *DNSBL) HandleEvent(e *event.Event) error {
	if d.CheckForStop() {
		return nil
	}
	if e.Type == "AFFILIATE_IPADDR" && !d.OptBool("checkaffiliates") {
		return nil
	}
	if !netutil.ValidIP(e.Data) {
		return nil
	}
	if d.AlreadyProcessed(e.Data) {
		return nil
	}

	reversed := reverseOctets(e.Data)
	for zone, name := range blocklists {
		if d.CheckForStop() {
			return nil
		}
		lookup := reversed + "." + zone
		addrs := d.Ctx().Resolver.ResolveHost(lookup)
		if len(addrs) == 0 {
			continue
		}
		d.Debug("blocklist hit", "ip", e.Data, "list", name)

		listing := fmt.Sprintf("%s [%s]", name, e.Data)
		if e.Type == "IP_ADDRESS" {
			d.EmitEvent("BLACKLISTED_IPADDR", listing, e)
			d.EmitEvent("MALICIOUS_IPADDR", listing, e)
		} else {
			d.EmitEvent("BLACKLISTED_AFFILIATE_IPADDR", listing, e)
			d.EmitEvent("MALICIOUS_AFFILIATE_IPADDR", listing, e)
		}
	}
	return nil
}

// reverseOctets turns 1.2.3.4 into 4.3.2.1 for blocklist zone queries.
func reverseOctets(ip string) string {
	parts := strings.Split(ip, ".")
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, ".")
}

var _ collector.Collector = (*DNSBL)(nil)
