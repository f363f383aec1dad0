package collectors

import (
	"fmt"
	"sort"
	"strings"
)

// Preset is a named collector selection for a common kind of engagement.
type Preset struct {
	Name        string
	Description string
	Collectors  []string // empty means every registered collector
}

// builtinPresets is the registry of all known presets.
var builtinPresets = map[string]Preset{
	"all": {
		Name:        "all",
		Description: "Every registered collector",
		Collectors:  nil,
	},
	"passive": {
		Name:        "passive",
		Description: "Third-party lookups and content analysis only, no direct probing of the target",
		Collectors:  []string{"country", "dnsbl", "email", "phone", "whois"},
	},
	"footprint": {
		Name:        "footprint",
		Description: "Map the target's visible perimeter through DNS, web and certificate collection",
		Collectors:  []string{"cohost", "country", "dnsraw", "dnsresolve", "email", "phone", "sslcert", "webfetch", "whois"},
	},
	"investigate": {
		Name:        "investigate",
		Description: "Footprint plus blocklist and port checks for suspected-malicious targets",
		Collectors: []string{
			"cohost", "country", "dnsbl", "dnsraw", "dnsresolve",
			"email", "phone", "portscan", "sslcert", "webfetch", "whois",
		},
	},
}

// Presets returns the available preset names, sorted.
func Presets() []string {
	out := make([]string, 0, len(builtinPresets))
	for name := range builtinPresets {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// GetPreset returns a preset by name.
func GetPreset(name string) (*Preset, error) {
	p, ok := builtinPresets[name]
	if !ok {
		return nil, fmt.Errorf("unknown preset %q, available: %s", name, strings.Join(Presets(), ", "))
	}
	cp := p
	cp.Collectors = append([]string(nil), p.Collectors...)
	return &cp, nil
}
