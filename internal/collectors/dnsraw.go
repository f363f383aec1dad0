package collectors

import (
	"strings"

	"github.com/miekg/dns"

	"github.com/hakim/recongraph/internal/collector"
	"github.com/hakim/recongraph/internal/event"
)

// DNSRaw pulls the full record set of a domain: nameservers, mail
// exchangers, TXT records and SOA. Providers are reported individually,
// the raw record dump as one RAW_DNS_RECORDS blob.
type DNSRaw struct {
	collector.Base
}

func init() {
	Register("dnsraw", func() collector.Collector { return &DNSRaw{} })
}

func (d *DNSRaw) Meta() collector.Meta {
	return collector.Meta{
		Name:       "DNS Raw Records",
		Summary:    "Retrieves NS, MX, TXT and SOA records for identified domains.",
		UseCases:   []string{"Footprint", "Investigate"},
		Categories: []string{"DNS"},
	}
}

func (d *DNSRaw) Opts() map[string]any {
	return map[string]any{
		"checkaffiliates": false,
	}
}

func (d *DNSRaw) OptDescs() map[string]string {
	return map[string]string{
		"checkaffiliates": "Also pull raw records for affiliate domains.",
	}
}

func (d *DNSRaw) Setup(ctx *collector.Context, userOpts map[string]any) error {
	d.Init("dnsraw")
	d.Configure(ctx, d.Opts(), userOpts)
	return nil
}

func (d *DNSRaw) WatchedEvents() []string {
	return []string{"DOMAIN_NAME", "AFFILIATE_DOMAIN_NAME"}
}

func (d *DNSRaw) ProducedEvents() []string {
	return []string{
		"RAW_DNS_RECORDS",
		"DNS_TEXT",
		"DNS_SPF",
		"PROVIDER_DNS",
		"PROVIDER_MAIL",
	}
}

func (d *DNSRaw) HandleEvent(e *event.Event) error {
	if d.CheckForStop() {
		return nil
	}
	if e.Type == "AFFILIATE_DOMAIN_NAME" && !d.OptBool("checkaffiliates") {
		return nil
	}
	domain := strings.ToLower(e.Data)
	if d.AlreadyProcessed(domain) {
		return nil
	}

	res := d.Ctx().Resolver
	var raw []string

	for _, qtype := range []uint16{dns.TypeNS, dns.TypeMX, dns.TypeTXT, dns.TypeSOA} {
		if d.CheckForStop() {
			return nil
		}
		for _, rr := range res.Query(domain, qtype) {
			raw = append(raw, rr.String())

			switch v := rr.(type) {
			case *dns.NS:
				d.EmitEvent("PROVIDER_DNS", strings.TrimSuffix(strings.ToLower(v.Ns), "."), e)
			case *dns.MX:
				d.EmitEvent("PROVIDER_MAIL", strings.TrimSuffix(strings.ToLower(v.Mx), "."), e)
			case *dns.TXT:
				txt := strings.Join(v.Txt, "")
				if strings.HasPrefix(strings.ToLower(txt), "v=spf1") {
					d.EmitEvent("DNS_SPF", txt, e)
				} else {
					d.EmitEvent("DNS_TEXT", txt, e)
				}
			}
		}
	}

	if len(raw) > 0 {
		d.EmitEvent("RAW_DNS_RECORDS", strings.Join(raw, "\n"), e)
	}
	return nil
}

var _ collector.Collector = (*DNSRaw)(nil)
