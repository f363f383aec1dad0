package event

import "sort"

// TypeRoot is the reserved type for the synthetic event every scan starts
// from. Its hash is the literal string "ROOT" rather than a fingerprint so
// that provenance chains terminate on a well-known value.
const TypeRoot = "ROOT"

// typeInfo describes a single registered fact type.
type typeInfo struct {
	// Parents are broader tags this type specializes. A collector watching
	// a parent tag also receives events of this type.
	Parents []string

	// Raw marks container types (page bodies, RIR dumps, DNS record blobs)
	// that are deduplicated by exact (type, data) only, ignoring ancestry.
	Raw bool
}

// registry is the closed vocabulary of fact types. Collectors cannot add
// tags at runtime; the bus rejects events carrying unknown tags.
var registry = map[string]typeInfo{
	TypeRoot: {},

	"IP_ADDRESS":               {},
	"IPV6_ADDRESS":             {},
	"INTERNET_NAME":            {},
	"INTERNET_NAME_UNRESOLVED": {Parents: []string{"INTERNET_NAME"}},
	"DOMAIN_NAME":              {Parents: []string{"INTERNET_NAME"}},
	"DOMAIN_NAME_PARENT":       {Parents: []string{"DOMAIN_NAME"}},
	"NETBLOCK_OWNER":           {},
	"NETBLOCK_MEMBER":          {},
	"NETBLOCKV6_OWNER":         {Parents: []string{"NETBLOCK_OWNER"}},
	"NETBLOCKV6_MEMBER":        {Parents: []string{"NETBLOCK_MEMBER"}},

	"AFFILIATE_INTERNET_NAME":            {},
	"AFFILIATE_INTERNET_NAME_UNRESOLVED": {Parents: []string{"AFFILIATE_INTERNET_NAME"}},
	"AFFILIATE_IPADDR":                   {},
	"AFFILIATE_IPV6_ADDRESS":             {Parents: []string{"AFFILIATE_IPADDR"}},
	"AFFILIATE_DOMAIN_NAME":              {Parents: []string{"AFFILIATE_INTERNET_NAME"}},
	"CO_HOSTED_SITE":                     {},
	"CO_HOSTED_SITE_DOMAIN":              {Parents: []string{"CO_HOSTED_SITE"}},

	"EMAILADDR":         {},
	"EMAILADDR_GENERIC": {Parents: []string{"EMAILADDR"}},
	"PHONE_NUMBER":      {},
	"HUMAN_NAME":        {},
	"USERNAME":          {},
	"COMPANY_NAME":      {},
	"COUNTRY_NAME":      {},
	"BITCOIN_ADDRESS":   {},
	"LEI":               {},
	"IBAN_NUMBER":       {},

	"PROVIDER_TELCO": {},
	"PROVIDER_DNS":   {},
	"PROVIDER_MAIL":  {},

	"BGP_AS_OWNER":  {},
	"BGP_AS_MEMBER": {},
	"BGP_AS_PEER":   {},

	"GEOINFO":          {},
	"PHYSICAL_ADDRESS": {},

	"TCP_PORT_OPEN":           {},
	"UDP_PORT_OPEN":           {},
	"TCP_PORT_OPEN_BANNER":    {},
	"WEBSERVER_BANNER":        {},
	"WEBSERVER_HTTPHEADERS":   {Raw: true},
	"WEBSERVER_STRANGEHEADER": {},
	"OPERATING_SYSTEM":        {},
	"SOFTWARE_USED":           {},

	"SSL_CERTIFICATE_ISSUED":   {},
	"SSL_CERTIFICATE_ISSUER":   {},
	"SSL_CERTIFICATE_MISMATCH": {},
	"SSL_CERTIFICATE_EXPIRED":  {},
	"SSL_CERTIFICATE_EXPIRING": {},
	"SSL_CERTIFICATE_RAW":      {Raw: true},

	"DNS_TEXT":           {},
	"DNS_SPF":            {},
	"RAW_DNS_RECORDS":    {Raw: true},
	"RAW_RIR_DATA":       {Raw: true},
	"RAW_FILE_META_DATA": {Raw: true},

	"TARGET_WEB_CONTENT":  {Raw: true},
	"LINKED_URL_INTERNAL": {},
	"LINKED_URL_EXTERNAL": {},
	"LEAKSITE_CONTENT":    {Raw: true},
	"PUBLIC_CODE_REPO":    {},
	"APPSTORE_ENTRY":      {},

	"BLACKLISTED_IPADDR":                  {},
	"BLACKLISTED_AFFILIATE_IPADDR":        {},
	"BLACKLISTED_INTERNET_NAME":           {},
	"BLACKLISTED_AFFILIATE_INTERNET_NAME": {},
	"BLACKLISTED_COHOST":                  {},
	"BLACKLISTED_NETBLOCK":                {},
	"BLACKLISTED_SUBNET":                  {},
	"MALICIOUS_IPADDR":                    {},
	"MALICIOUS_AFFILIATE_IPADDR":          {},
	"MALICIOUS_INTERNET_NAME":             {},
	"MALICIOUS_AFFILIATE_INTERNET_NAME":   {},
	"MALICIOUS_COHOST":                    {},
	"MALICIOUS_EMAILADDR":                 {},
	"MALICIOUS_PHONE_NUMBER":              {},
	"MALICIOUS_NETBLOCK":                  {},
	"MALICIOUS_SUBNET":                    {},

	"PROXY_HOST":    {},
	"VPN_HOST":      {},
	"TOR_EXIT_NODE": {},
}

// IsRegistered reports whether the tag is part of the closed vocabulary.
func IsRegistered(eventType string) bool {
	_, ok := registry[eventType]
	return ok
}

// Parents returns the broader tags the given type specializes, or nil.
func Parents(eventType string) []string {
	info, ok := registry[eventType]
	if !ok {
		return nil
	}
	return info.Parents
}

// IsRaw reports whether the type is a raw container type, deduplicated by
// exact (type, data) only.
func IsRaw(eventType string) bool {
	return registry[eventType].Raw
}

// AllTypes returns every registered tag in sorted order.
func AllTypes() []string {
	out := make([]string, 0, len(registry))
	for t := range registry {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
