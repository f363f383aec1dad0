package collectors

import (
	"strings"

	"github.com/likexian/whois"
	whoisparser "github.com/likexian/whois-parser"

	"github.com/hakim/recongraph/internal/collector"
	"github.com/hakim/recongraph/internal/event"
)

// Whois queries registration data for domains, addresses and netblocks.
// The raw response is always reported; for domains, the parsed registrar,
// registrant organization and nameservers become individual facts.
type Whois struct {
	collector.Base
}

func init() {
	Register("whois", func() collector.Collector { return &Whois{} })
}

func (w *Whois) Meta() collector.Meta {
	return collector.Meta{
		Name:       "Whois",
		Summary:    "Performs a WHOIS look-up on domains, IP addresses and netblocks.",
		UseCases:   []string{"Footprint", "Investigate", "Passive"},
		Categories: []string{"Public Registries"},
		DataSource: &collector.DataSource{
			Website: "https://www.iana.org/whois",
			Model:   "FREE_NOAUTH_UNLIMITED",
		},
	}
}

func (w *Whois) Opts() map[string]any {
	return map[string]any{
		"cachehours": 24,
	}
}

func (w *Whois) OptDescs() map[string]string {
	return map[string]string{
		"cachehours": "Hours to cache WHOIS responses before querying again.",
	}
}

func (w *Whois) Setup(ctx *collector.Context, userOpts map[string]any) error {
	w.Init("whois")
	w.Configure(ctx, w.Opts(), userOpts)
	return nil
}

func (w *Whois) WatchedEvents() []string {
	return []string{"DOMAIN_NAME", "IP_ADDRESS", "NETBLOCK_OWNER", "NETBLOCK_MEMBER"}
}

func (w *Whois) ProducedEvents() []string {
	return []string{
		"RAW_RIR_DATA",
		"COMPANY_NAME",
		"PROVIDER_DNS",
	}
}

func (w *Whois) HandleEvent(e *event.Event) error {
	if w.CheckForStop() {
		return nil
	}
	query := strings.ToLower(e.Data)
	// Query the netblock by its base address.
	if e.Type == "NETBLOCK_OWNER" || e.Type == "NETBLOCK_MEMBER" {
		query, _, _ = strings.Cut(query, "/")
	}
	if w.AlreadyProcessed(query) {
		return nil
	}

	raw := w.lookup(query)
	if raw == "" {
		return nil
	}

	ev, err := w.NewEvent("RAW_RIR_DATA", raw, e)
	if err == nil {
		ev.ActualSource = query
		w.Notify(ev)
	}

	if e.Type != "DOMAIN_NAME" {
		return nil
	}

	parsed, err := whoisparser.Parse(raw)
	if err != nil {
		w.Debug("whois response did not parse", "query", query, "err", err)
		return nil
	}

	if parsed.Registrar != nil && parsed.Registrar.Name != "" {
		w.EmitEvent("COMPANY_NAME", parsed.Registrar.Name, e)
	}
	if parsed.Registrant != nil && parsed.Registrant.Organization != "" {
		w.EmitEvent("COMPANY_NAME", parsed.Registrant.Organization, e)
	}
	if parsed.Domain != nil {
		for _, ns := range parsed.Domain.NameServers {
			w.EmitEvent("PROVIDER_DNS", strings.ToLower(strings.TrimSpace(ns)), e)
		}
	}
	return nil
}

// lookup serves the WHOIS response from cache when fresh enough, querying
// the registry otherwise.
func (w *Whois) lookup(query string) string {
	if cached := w.CacheGet(query, w.OptInt("cachehours")); cached != nil {
		return string(cached)
	}

	raw, err := whois.Whois(query)
	if err != nil {
		w.Debug("whois query failed", "query", query, "err", err)
		return ""
	}
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	if strings.TrimSpace(raw) == "" {
		return ""
	}
	w.CachePut(query, []byte(raw))
	return raw
}

var _ collector.Collector = (*Whois)(nil)
