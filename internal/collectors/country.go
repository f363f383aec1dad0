package collectors

import (
	"sort"
	"strings"

	"github.com/hakim/recongraph/internal/collector"
	"github.com/hakim/recongraph/internal/event"
)

// callingCodes maps international dialing prefixes to country names. Longer
// prefixes are tried before shorter ones so +1242 resolves to the Bahamas
// rather than the United States.
var callingCodes = map[string]string{
	"1":    "United States",
	"1242": "Bahamas",
	"1246": "Barbados",
	"1264": "Anguilla",
	"1345": "Cayman Islands",
	"1441": "Bermuda",
	"1876": "Jamaica",
	"20":   "Egypt",
	"212":  "Morocco",
	"213":  "Algeria",
	"216":  "Tunisia",
	"234":  "Nigeria",
	"254":  "Kenya",
	"27":   "South Africa",
	"30":   "Greece",
	"31":   "Netherlands",
	"32":   "Belgium",
	"33":   "France",
	"34":   "Spain",
	"351":  "Portugal",
	"352":  "Luxembourg",
	"353":  "Ireland",
	"358":  "Finland",
	"36":   "Hungary",
	"39":   "Italy",
	"40":   "Romania",
	"41":   "Switzerland",
	"420":  "Czech Republic",
	"421":  "Slovakia",
	"43":   "Austria",
	"44":   "United Kingdom",
	"45":   "Denmark",
	"46":   "Sweden",
	"47":   "Norway",
	"48":   "Poland",
	"49":   "Germany",
	"52":   "Mexico",
	"54":   "Argentina",
	"55":   "Brazil",
	"56":   "Chile",
	"57":   "Colombia",
	"60":   "Malaysia",
	"61":   "Australia",
	"62":   "Indonesia",
	"63":   "Philippines",
	"64":   "New Zealand",
	"65":   "Singapore",
	"66":   "Thailand",
	"7":    "Russia",
	"81":   "Japan",
	"82":   "South Korea",
	"84":   "Vietnam",
	"852":  "Hong Kong",
	"86":   "China",
	"886":  "Taiwan",
	"90":   "Turkey",
	"91":   "India",
	"92":   "Pakistan",
	"93":   "Afghanistan",
	"94":   "Sri Lanka",
	"966":  "Saudi Arabia",
	"971":  "United Arab Emirates",
	"972":  "Israel",
	"98":   "Iran",
}

// ccTLDs maps country-code top level domains to country names.
var ccTLDs = map[string]string{
	"ae": "United Arab Emirates",
	"ar": "Argentina",
	"at": "Austria",
	"au": "Australia",
	"be": "Belgium",
	"br": "Brazil",
	"ca": "Canada",
	"ch": "Switzerland",
	"cl": "Chile",
	"cn": "China",
	"co": "Colombia",
	"cz": "Czech Republic",
	"de": "Germany",
	"dk": "Denmark",
	"eg": "Egypt",
	"es": "Spain",
	"fi": "Finland",
	"fr": "France",
	"gr": "Greece",
	"hk": "Hong Kong",
	"hu": "Hungary",
	"id": "Indonesia",
	"ie": "Ireland",
	"il": "Israel",
	"in": "India",
	"it": "Italy",
	"jp": "Japan",
	"ke": "Kenya",
	"kr": "South Korea",
	"mx": "Mexico",
	"my": "Malaysia",
	"ng": "Nigeria",
	"nl": "Netherlands",
	"no": "Norway",
	"nz": "New Zealand",
	"ph": "Philippines",
	"pk": "Pakistan",
	"pl": "Poland",
	"pt": "Portugal",
	"ro": "Romania",
	"ru": "Russia",
	"sa": "Saudi Arabia",
	"se": "Sweden",
	"sg": "Singapore",
	"sk": "Slovakia",
	"th": "Thailand",
	"tr": "Turkey",
	"tw": "Taiwan",
	"ua": "Ukraine",
	"uk": "United Kingdom",
	"us": "United States",
	"vn": "Vietnam",
	"za": "South Africa",
}

// prefixesByLength caches calling-code prefixes sorted longest first.
var prefixesByLength = func() []string {
	out := make([]string, 0, len(callingCodes))
	for p := range callingCodes {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if len(out[i]) != len(out[j]) {
			return len(out[i]) > len(out[j])
		}
		return out[i] < out[j]
	})
	return out
}()

// Country derives country names from phone numbers and domain registrations.
type Country struct {
	collector.Base
}

func init() {
	Register("country", func() collector.Collector { return &Country{} })
}

func (c *Country) Meta() collector.Meta {
	return collector.Meta{
		Name:       "Country Identifier",
		Summary:    "Derives country names from phone number dialing codes and ccTLDs.",
		UseCases:   []string{"Footprint", "Investigate", "Passive"},
		Categories: []string{"Content Analysis"},
	}
}

func (c *Country) Opts() map[string]any {
	return map[string]any{
		"cctld": true,
	}
}

func (c *Country) OptDescs() map[string]string {
	return map[string]string{
		"cctld": "Derive countries from country-code top level domains.",
	}
}

func (c *Country) Setup(ctx *collector.Context, userOpts map[string]any) error {
	c.Init("country")
	c.Configure(ctx, c.Opts(), userOpts)
	return nil
}

func (c *Country) WatchedEvents() []string {
	return []string{"PHONE_NUMBER", "DOMAIN_NAME", "AFFILIATE_DOMAIN_NAME"}
}

func (c *Country) ProducedEvents() []string {
	return []string{"COUNTRY_NAME"}
}

func (c *Country) HandleEvent(e *event.Event) error {
	if c.CheckForStop() {
		return nil
	}

	var country string
	switch e.Type {
	case "PHONE_NUMBER":
		country = countryFromPhone(e.Data)
	case "DOMAIN_NAME", "AFFILIATE_DOMAIN_NAME":
		if !c.OptBool("cctld") {
			return nil
		}
		country = countryFromTLD(e.Data)
	}
	if country == "" {
		return nil
	}

	if c.AlreadyProcessed(country + ":" + e.Data) {
		return nil
	}
	c.EmitEvent("COUNTRY_NAME", country, e)
	return nil
}

// countryFromPhone matches the longest known dialing prefix of an
// international-format number.
func countryFromPhone(number string) string {
	digits := strings.TrimPrefix(number, "+")
	if digits == number {
		return ""
	}
	for _, prefix := range prefixesByLength {
		if strings.HasPrefix(digits, prefix) {
			return callingCodes[prefix]
		}
	}
	return ""
}

func countryFromTLD(domain string) string {
	idx := strings.LastIndex(domain, ".")
	if idx < 0 {
		return ""
	}
	return ccTLDs[strings.ToLower(domain[idx+1:])]
}

var _ collector.Collector = (*Country)(nil)
