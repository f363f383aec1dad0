package collectors

import (
	"net/netip"
	"strings"

	"github.com/hakim/recongraph/internal/collector"
	"github.com/hakim/recongraph/internal/event"
)

// DNSResolve resolves discovered names to addresses and addresses back to
// names, classifying the results as in-scope or affiliate facts. It also
// enumerates netblocks the scan has proven ownership of, within the
// configured ceiling.
type DNSResolve struct {
	collector.Base
}

func init() {
	Register("dnsresolve", func() collector.Collector { return &DNSResolve{} })
}

// NewDNSResolve returns a configured instance for direct embedding in tests.
func NewDNSResolve() *DNSResolve {
	d := &DNSResolve{}
	d.Init("dnsresolve")
	return d
}

func (d *DNSResolve) Meta() collector.Meta {
	return collector.Meta{
		Name:       "DNS Resolver",
		Summary:    "Resolves hosts to IP addresses and IP addresses to hosts, and enumerates owned netblocks.",
		UseCases:   []string{"Footprint", "Investigate", "Passive"},
		Categories: []string{"DNS"},
	}
}

func (d *DNSResolve) Opts() map[string]any {
	return map[string]any{
		"validatereverse": true,
		"netblocklookup":  true,
		"maxnetblock":     24,
		"maxv6netblock":   120,
		"affiliatenames":  true,
	}
}

func (d *DNSResolve) OptDescs() map[string]string {
	return map[string]string{
		"validatereverse": "Validate that reverse-resolved hostnames still resolve back to the IP before accepting them.",
		"netblocklookup":  "Look up all IPs within identified owned netblocks.",
		"maxnetblock":     "Maximum netblock size to enumerate (CIDR prefix length, e.g. 24 means /24 and smaller).",
		"maxv6netblock":   "Maximum IPv6 netblock size to enumerate.",
		"affiliatenames":  "Report reverse-resolved names outside the target's domain as affiliates.",
	}
}

func (d *DNSResolve) Setup(ctx *collector.Context, userOpts map[string]any) error {
	d.Init("dnsresolve")
	d.Configure(ctx, d.Opts(), userOpts)
	return nil
}

func (d *DNSResolve) WatchedEvents() []string {
	return []string{
		"INTERNET_NAME",
		"AFFILIATE_INTERNET_NAME",
		"IP_ADDRESS",
		"IPV6_ADDRESS",
		"NETBLOCK_OWNER",
		"NETBLOCKV6_OWNER",
	}
}

func (d *DNSResolve) ProducedEvents() []string {
	return []string{
		"IP_ADDRESS",
		"IPV6_ADDRESS",
		"INTERNET_NAME",
		"INTERNET_NAME_UNRESOLVED",
		"DOMAIN_NAME",
		"AFFILIATE_INTERNET_NAME",
		"AFFILIATE_IPADDR",
		"AFFILIATE_IPV6_ADDRESS",
	}
}

func (d *DNSResolve) HandleEvent(e *event.Event) error {
	if d.CheckForStop() {
		return nil
	}
	if d.AlreadyProcessed(e.Type + ":" + e.Data) {
		return nil
	}

	switch e.Type {
	case "INTERNET_NAME", "DOMAIN_NAME":
		d.resolveName(e, false)
	case "AFFILIATE_INTERNET_NAME":
		d.resolveName(e, true)
	case "IP_ADDRESS", "IPV6_ADDRESS":
		d.reverseResolve(e)
	case "NETBLOCK_OWNER", "NETBLOCKV6_OWNER":
		d.enumerateNetblock(e)
	}
	return nil
}

// resolveName forward-resolves a host and emits its addresses. Unresolvable
// in-scope names become INTERNET_NAME_UNRESOLVED so downstream collectors
// can still flag dangling records.
func (d *DNSResolve) resolveName(e *event.Event, affiliate bool) {
	name := strings.ToLower(e.Data)
	res := d.Ctx().Resolver

	ips4 := res.ResolveHost(name)
	ips6 := res.ResolveHost6(name)

	if len(ips4) == 0 && len(ips6) == 0 {
		if !affiliate {
			d.EmitEvent("INTERNET_NAME_UNRESOLVED", name, e)
		}
		return
	}

	for _, ip := range ips4 {
		if d.CheckForStop() {
			return
		}
		if affiliate {
			d.EmitEvent("AFFILIATE_IPADDR", ip, e)
			continue
		}
		d.Target().SetAlias(ip, "IP_ADDRESS")
		d.EmitEvent("IP_ADDRESS", ip, e)
	}
	for _, ip := range ips6 {
		if d.CheckForStop() {
			return
		}
		if affiliate {
			d.EmitEvent("AFFILIATE_IPV6_ADDRESS", ip, e)
			continue
		}
		d.Target().SetAlias(ip, "IPV6_ADDRESS")
		d.EmitEvent("IPV6_ADDRESS", ip, e)
	}

	// Surface the registrable domain of in-scope hosts once.
	if !affiliate && e.Type == "INTERNET_NAME" && d.Ctx().TLDs != nil {
		if domain := d.Ctx().TLDs.HostDomain(name); domain != "" && domain != name {
			if d.Target().Matches(domain, true, true) {
				d.EmitEvent("DOMAIN_NAME", domain, e)
			}
		}
	}
}

// reverseResolve maps an address back to names. Names that fail the
// round-trip check are discarded; names outside the target's scope are
// affiliates.
func (d *DNSResolve) reverseResolve(e *event.Event) {
	ip := e.Data
	res := d.Ctx().Resolver

	for _, name := range res.ResolveIP(ip) {
		if d.CheckForStop() {
			return
		}
		if d.OptBool("validatereverse") && !res.ValidateIP(name, ip) {
			d.Debug("reverse name does not round-trip", "name", name, "ip", ip)
			continue
		}
		if d.Target().Matches(name, true, false) {
			d.Target().SetAlias(name, "INTERNET_NAME")
			d.EmitEvent("INTERNET_NAME", name, e)
		} else if d.OptBool("affiliatenames") {
			d.EmitEvent("AFFILIATE_INTERNET_NAME", name, e)
		}
	}
}

// enumerateNetblock walks every address of an owned netblock and reports
// the ones that reverse-resolve, i.e. are plausibly live.
func (d *DNSResolve) enumerateNetblock(e *event.Event) {
	if !d.OptBool("netblocklookup") {
		return
	}

	pfx, err := netip.ParsePrefix(e.Data)
	if err != nil {
		d.Debug("unparseable netblock", "data", e.Data, "err", err)
		return
	}

	ceiling := d.OptInt("maxnetblock")
	if pfx.Addr().Is6() {
		ceiling = d.OptInt("maxv6netblock")
	}
	if pfx.Bits() < ceiling {
		d.Debug("netblock larger than configured ceiling; skipping",
			"netblock", e.Data, "ceiling", ceiling)
		return
	}

	res := d.Ctx().Resolver
	for addr := pfx.Masked().Addr(); pfx.Contains(addr); addr = addr.Next() {
		if d.CheckForStop() {
			return
		}
		ip := addr.String()
		if names := res.ResolveIP(ip); len(names) > 0 {
			if addr.Is6() {
				d.EmitEvent("IPV6_ADDRESS", ip, e)
			} else {
				d.EmitEvent("IP_ADDRESS", ip, e)
			}
		}
	}
}

var _ collector.Collector = (*DNSResolve)(nil)
