package collectors

import (
	"strings"

	"github.com/hakim/recongraph/internal/collector"
	"github.com/hakim/recongraph/internal/event"
	"github.com/hakim/recongraph/internal/netutil"
)

// Email extracts e-mail addresses from harvested text blobs. Addresses on
// target domains are facts; addresses with a local part from the generic
// list (abuse@, admin@, ...) are classified separately since they rarely
// identify a person.
type Email struct {
	collector.Base
}

func init() {
	Register("email", func() collector.Collector { return &Email{} })
}

func (m *Email) Meta() collector.Meta {
	return collector.Meta{
		Name:       "E-Mail Address Extractor",
		Summary:    "Identifies e-mail addresses in retrieved web content, WHOIS data and DNS records.",
		UseCases:   []string{"Footprint", "Investigate", "Passive"},
		Categories: []string{"Content Analysis"},
	}
}

func (m *Email) Opts() map[string]any {
	return map[string]any{
		"onlytargetdomain": true,
	}
}

func (m *Email) OptDescs() map[string]string {
	return map[string]string{
		"onlytargetdomain": "Only report addresses on the target's own domains.",
	}
}

func (m *Email) Setup(ctx *collector.Context, userOpts map[string]any) error {
	m.Init("email")
	m.Configure(ctx, m.Opts(), userOpts)
	return nil
}

func (m *Email) WatchedEvents() []string {
	return []string{"TARGET_WEB_CONTENT", "RAW_RIR_DATA", "RAW_DNS_RECORDS", "DNS_TEXT", "LEAKSITE_CONTENT"}
}

func (m *Email) ProducedEvents() []string {
	return []string{"EMAILADDR", "EMAILADDR_GENERIC"}
}

func (m *Email) HandleEvent(e *event.Event) error {
	if m.CheckForStop() {
		return nil
	}

	generics := m.genericSet()

	for _, addr := range netutil.ParseEmails(e.Data) {
		if m.CheckForStop() {
			return nil
		}
		if m.AlreadyProcessed(addr) {
			continue
		}

		local, host, ok := strings.Cut(addr, "@")
		if !ok {
			continue
		}
		if m.OptBool("onlytargetdomain") && !m.Target().Matches(host, true, true) {
			continue
		}

		if _, generic := generics[local]; generic {
			m.EmitEvent("EMAILADDR_GENERIC", addr, e)
		} else {
			m.EmitEvent("EMAILADDR", addr, e)
		}
	}
	return nil
}

// genericSet parses the framework's generic local-part list.
func (m *Email) genericSet() map[string]struct{} {
	out := make(map[string]struct{})
	for _, u := range strings.Split(m.OptString("_genericusers"), ",") {
		u = strings.TrimSpace(strings.ToLower(u))
		if u != "" {
			out[u] = struct{}{}
		}
	}
	return out
}

var _ collector.Collector = (*Email)(nil)
