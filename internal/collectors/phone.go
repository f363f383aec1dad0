package collectors

import (
	"regexp"
	"strings"

	"github.com/hakim/recongraph/internal/collector"
	"github.com/hakim/recongraph/internal/event"
)

// E.164-ish numbers: a plus, a country code, then 7-14 further digits with
// optional separators.
var phoneRe = regexp.MustCompile(`\+[1-9]\d{0,2}[\s.\-]?(?:\(?\d{1,4}\)?[\s.\-]?)?\d{2,4}[\s.\-]?\d{2,4}[\s.\-]?\d{0,4}`)

// Phone extracts phone numbers in international format from harvested text.
type Phone struct {
	collector.Base
}

func init() {
	Register("phone", func() collector.Collector { return &Phone{} })
}

func (p *Phone) Meta() collector.Meta {
	return collector.Meta{
		Name:       "Phone Number Extractor",
		Summary:    "Identifies international-format phone numbers in retrieved content.",
		UseCases:   []string{"Footprint", "Investigate", "Passive"},
		Categories: []string{"Content Analysis"},
	}
}

func (p *Phone) Opts() map[string]any {
	return map[string]any{
		"maxnumbers": 50,
	}
}

func (p *Phone) OptDescs() map[string]string {
	return map[string]string{
		"maxnumbers": "Maximum phone numbers to report per content blob.",
	}
}

func (p *Phone) Setup(ctx *collector.Context, userOpts map[string]any) error {
	p.Init("phone")
	p.Configure(ctx, p.Opts(), userOpts)
	return nil
}

func (p *Phone) WatchedEvents() []string {
	return []string{"TARGET_WEB_CONTENT", "RAW_RIR_DATA", "RAW_FILE_META_DATA"}
}

func (p *Phone) ProducedEvents() []string {
	return []string{"PHONE_NUMBER"}
}

func (p *Phone) HandleEvent(e *event.Event) error {
	if p.CheckForStop() {
		return nil
	}

	found := 0
	maxNumbers := p.OptInt("maxnumbers")

	for _, m := range phoneRe.FindAllString(e.Data, -1) {
		if p.CheckForStop() {
			return nil
		}
		number := normalizePhone(m)
		if number == "" || p.AlreadyProcessed(number) {
			continue
		}
		p.EmitEvent("PHONE_NUMBER", number, e)
		found++
		if maxNumbers > 0 && found >= maxNumbers {
			return nil
		}
	}
	return nil
}

// normalizePhone strips separators and validates overall length; returns
// the empty string for implausible matches.
func normalizePhone(raw string) string {
	var b strings.Builder
	b.WriteByte('+')
	for _, r := range raw[1:] {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	number := b.String()
	// +, country code, subscriber number: 9-16 characters all told.
	if len(number) < 9 || len(number) > 16 {
		return ""
	}
	return number
}

var _ collector.Collector = (*Phone)(nil)
