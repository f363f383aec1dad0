package collectors

import (
	"strings"

	"github.com/hakim/recongraph/internal/collector"
	"github.com/hakim/recongraph/internal/event"
)

// Cohost finds other sites hosted on the target's IP addresses by reverse
// resolution. Names that belong to the target itself are left for the DNS
// resolver collector; everything else is a co-hosted site.
type Cohost struct {
	collector.Base
}

func init() {
	Register("cohost", func() collector.Collector { return &Cohost{} })
}

func (c *Cohost) Meta() collector.Meta {
	return collector.Meta{
		Name:       "Co-Hosted Site Finder",
		Summary:    "Identifies other websites sharing the target's IP addresses.",
		UseCases:   []string{"Footprint", "Investigate"},
		Categories: []string{"DNS"},
	}
}

func (c *Cohost) Opts() map[string]any {
	return map[string]any{
		"verifyreverse": true,
		"cohostdomains": true,
	}
}

func (c *Cohost) OptDescs() map[string]string {
	return map[string]string{
		"verifyreverse": "Verify co-hosted names still resolve to the shared IP before reporting them.",
		"cohostdomains": "Also report the registrable domain of each co-hosted site.",
	}
}

func (c *Cohost) Setup(ctx *collector.Context, userOpts map[string]any) error {
	c.Init("cohost")
	c.Configure(ctx, c.Opts(), userOpts)
	return nil
}

func (c *Cohost) WatchedEvents() []string {
	return []string{"IP_ADDRESS", "IPV6_ADDRESS"}
}

func (c *Cohost) ProducedEvents() []string {
	return []string{"CO_HOSTED_SITE", "CO_HOSTED_SITE_DOMAIN"}
}

func (c *Cohost) HandleEvent(e *event.Event) error {
	if c.CheckForStop() {
		return nil
	}
	if c.AlreadyProcessed(e.Data) {
		return nil
	}

	res := c.Ctx().Resolver
	for _, name := range res.ResolveIP(e.Data) {
		if c.CheckForStop() {
			return nil
		}
		name = strings.ToLower(strings.TrimSuffix(name, "."))
		if c.Target().Matches(name, true, true) {
			continue
		}
		if c.OptBool("verifyreverse") && !res.ValidateIP(name, e.Data) {
			c.Debug("cohost name does not round-trip", "name", name, "ip", e.Data)
			continue
		}
		c.EmitEvent("CO_HOSTED_SITE", name, e)

		if c.OptBool("cohostdomains") && c.Ctx().TLDs != nil {
			if domain := c.Ctx().TLDs.HostDomain(name); domain != "" && domain != name {
				c.EmitEvent("CO_HOSTED_SITE_DOMAIN", domain, e)
			}
		}
	}
	return nil
}

var _ collector.Collector = (*Cohost)(nil)
