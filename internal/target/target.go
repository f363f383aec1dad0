// Package target models the subject of a scan and decides whether a
// discovered value is "tightly" related to it.
package target

import (
	"fmt"
	"net/netip"
	"regexp"
	"strings"
	"sync"

	"golang.org/x/net/idna"
)

// ValidTypes enumerates the event types accepted as a scan target.
var ValidTypes = []string{
	"INTERNET_NAME",
	"IP_ADDRESS",
	"IPV6_ADDRESS",
	"NETBLOCK_OWNER",
	"NETBLOCKV6_OWNER",
	"EMAILADDR",
	"HUMAN_NAME",
	"PHONE_NUMBER",
	"USERNAME",
	"BITCOIN_ADDRESS",
	"COMPANY_NAME",
	"LEI",
	"BGP_AS_OWNER",
}

var (
	phoneTargetRe   = regexp.MustCompile(`^\+[0-9]{7,15}$`)
	bitcoinTargetRe = regexp.MustCompile(`^[13][a-km-zA-HJ-NP-Z1-9]{25,34}$`)
	hostTargetRe    = regexp.MustCompile(`^[a-z0-9][a-z0-9\-.]*\.[a-z]{2,}$`)
)

// GuessType infers the target type from the shape of a seed value. Quoted
// values containing a space are human names; other quoted values are
// usernames. Returns the empty string when no type fits.
func GuessType(value string) string {
	value = strings.TrimSpace(value)
	if len(value) > 1 && value[0] == '"' && value[len(value)-1] == '"' {
		inner := value[1 : len(value)-1]
		if strings.Contains(inner, " ") {
			return "HUMAN_NAME"
		}
		return "USERNAME"
	}

	if addr, err := netip.ParseAddr(value); err == nil {
		if addr.Is4() {
			return "IP_ADDRESS"
		}
		return "IPV6_ADDRESS"
	}
	if pfx, err := netip.ParsePrefix(value); err == nil {
		if pfx.Addr().Is4() {
			return "NETBLOCK_OWNER"
		}
		return "NETBLOCKV6_OWNER"
	}

	switch {
	case strings.Contains(value, "@"):
		return "EMAILADDR"
	case phoneTargetRe.MatchString(value):
		return "PHONE_NUMBER"
	case bitcoinTargetRe.MatchString(value):
		return "BITCOIN_ADDRESS"
	case hostTargetRe.MatchString(strings.ToLower(value)):
		return "INTERNET_NAME"
	}
	return ""
}

// Alias is another identity of the target discovered during scoping, e.g. an
// IP the target hostname resolves to.
type Alias struct {
	Value string
	Type  string
}

// Target is the canonical subject of one scan. The alias set is monotonic:
// entries are only ever added while the scan runs.
type Target struct {
	value string
	typ   string

	mu      sync.Mutex
	aliases []Alias
}

// New validates the value/type pair and returns a Target. Internet names are
// lowercased and IDN-normalized to ASCII.
func New(value, typeName string) (*Target, error) {
	if value == "" {
		return nil, fmt.Errorf("target: value is empty")
	}
	valid := false
	for _, t := range ValidTypes {
		if t == typeName {
			valid = true
			break
		}
	}
	if !valid {
		return nil, fmt.Errorf("target: invalid target type %q", typeName)
	}

	switch typeName {
	case "INTERNET_NAME", "EMAILADDR":
		value = normalizeName(value)
	case "IP_ADDRESS", "IPV6_ADDRESS":
		addr, err := netip.ParseAddr(value)
		if err != nil {
			return nil, fmt.Errorf("target: invalid address %q: %w", value, err)
		}
		value = addr.String()
	case "NETBLOCK_OWNER", "NETBLOCKV6_OWNER":
		pfx, err := netip.ParsePrefix(value)
		if err != nil {
			return nil, fmt.Errorf("target: invalid netblock %q: %w", value, err)
		}
		value = pfx.String()
	}

	return &Target{value: value, typ: typeName}, nil
}

// Value returns the canonical target value.
func (t *Target) Value() string { return t.value }

// Type returns the target's event type.
func (t *Target) Type() string { return t.typ }

// SetAlias records another identity for the target. Idempotent; empty values
// are ignored.
func (t *Target) SetAlias(value, typeName string) {
	if value == "" || typeName == "" {
		return
	}
	value = strings.ToLower(value)

	t.mu.Lock()
	defer t.mu.Unlock()
	for _, a := range t.aliases {
		if a.Value == value && a.Type == typeName {
			return
		}
	}
	t.aliases = append(t.aliases, Alias{Value: value, Type: typeName})
}

// Aliases returns a copy of the alias set.
func (t *Target) Aliases() []Alias {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Alias, len(t.aliases))
	copy(out, t.aliases)
	return out
}

// Names returns every internet name associated with the target, including
// the target value itself for name and e-mail targets.
func (t *Target) Names() []string {
	names := t.equivalents("INTERNET_NAME")
	switch t.typ {
	case "INTERNET_NAME":
		names = appendUnique(names, strings.ToLower(t.value))
	case "EMAILADDR":
		if _, host, ok := strings.Cut(t.value, "@"); ok {
			names = appendUnique(names, strings.ToLower(host))
		}
	}
	return names
}

// Addresses returns every IP address associated with the target, including
// the target value itself for address targets.
func (t *Target) Addresses() []string {
	addrs := t.equivalents("IP_ADDRESS")
	addrs = append(addrs, t.equivalents("IPV6_ADDRESS")...)
	if t.typ == "IP_ADDRESS" || t.typ == "IPV6_ADDRESS" {
		addrs = appendUnique(addrs, strings.ToLower(t.value))
	}
	return addrs
}

// Matches reports whether a discovered value is tightly related to the
// target:
//
//   - For addresses: literal equality with the target or an alias, or CIDR
//     containment for netblock targets.
//   - For names: equality with the target or an alias; a sub-domain of one
//     when includeChildren is set; a parent domain when includeParents is set.
//   - Human name, phone and username targets accept everything, since no
//     structural relation can be stated.
func (t *Target) Matches(value string, includeChildren, includeParents bool) bool {
	if value == "" {
		return false
	}
	value = normalizeName(value)

	switch t.typ {
	case "HUMAN_NAME", "PHONE_NUMBER", "USERNAME", "BITCOIN_ADDRESS", "COMPANY_NAME", "LEI":
		return true
	}

	if addr, err := netip.ParseAddr(value); err == nil {
		return t.matchesAddr(addr)
	}

	for _, name := range t.Names() {
		if value == name {
			return true
		}
		if includeParents && strings.HasSuffix(name, "."+value) {
			return true
		}
		if includeChildren && strings.HasSuffix(value, "."+name) {
			return true
		}
	}
	return false
}

func (t *Target) matchesAddr(addr netip.Addr) bool {
	for _, a := range t.Addresses() {
		if known, err := netip.ParseAddr(a); err == nil && known == addr {
			return true
		}
	}
	if t.typ == "NETBLOCK_OWNER" || t.typ == "NETBLOCKV6_OWNER" {
		if pfx, err := netip.ParsePrefix(t.value); err == nil && pfx.Contains(addr) {
			return true
		}
	}
	return false
}

func (t *Target) equivalents(typeName string) []string {
	var out []string
	for _, a := range t.Aliases() {
		if a.Type == typeName {
			out = appendUnique(out, a.Value)
		}
	}
	return out
}

// normalizeName lowercases and converts IDN names to their ASCII form.
// Values that fail IDN conversion are returned lowercased as-is.
func normalizeName(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	if ascii, err := idna.ToASCII(value); err == nil && ascii != "" {
		return ascii
	}
	return value
}

func appendUnique(slice []string, s string) []string {
	for _, existing := range slice {
		if existing == s {
			return slice
		}
	}
	return append(slice, s)
}
