package netutil

import (
	"crypto/x509"
	"net/netip"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	hostRe  = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?(\.[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?)+$`)
	emailRe = regexp.MustCompile(`([a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,})`)
)

// ValidIP reports whether the string is a literal IPv4 address.
func ValidIP(s string) bool {
	addr, err := netip.ParseAddr(s)
	return err == nil && addr.Is4()
}

// ValidIP6 reports whether the string is a literal IPv6 address.
func ValidIP6(s string) bool {
	addr, err := netip.ParseAddr(s)
	return err == nil && addr.Is6() && !addr.Is4In6()
}

// ValidHost reports whether the string looks like a resolvable host name.
func ValidHost(s string) bool {
	s = strings.ToLower(strings.TrimSuffix(s, "."))
	if len(s) == 0 || len(s) > 253 {
		return false
	}
	return hostRe.MatchString(s)
}

// URLFQDN extracts the host name from a URL, without the port.
func URLFQDN(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// ParseEmails extracts e-mail addresses from arbitrary text, deduplicated
// and lowercased. Addresses with clearly bogus hosts are dropped.
func ParseEmails(text string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, m := range emailRe.FindAllString(text, -1) {
		addr := strings.ToLower(m)
		_, host, ok := strings.Cut(addr, "@")
		if !ok || !ValidHost(host) {
			continue
		}
		if _, dup := seen[addr]; dup {
			continue
		}
		seen[addr] = struct{}{}
		out = append(out, addr)
	}
	sort.Strings(out)
	return out
}

// ExtractURLs pulls href and src links out of an HTML document, resolved
// against the page URL. Relative links become absolute; fragments and
// non-http schemes are dropped.
func ExtractURLs(pageURL, body string) []string {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil
	}

	seen := make(map[string]struct{})
	var out []string
	add := func(raw string) {
		u, err := base.Parse(raw)
		if err != nil {
			return
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return
		}
		u.Fragment = ""
		link := u.String()
		if _, dup := seen[link]; dup {
			return
		}
		seen[link] = struct{}{}
		out = append(out, link)
	}

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		if href, ok := s.Attr("href"); ok {
			add(href)
		}
	})
	doc.Find("script[src], img[src], iframe[src]").Each(func(_ int, s *goquery.Selection) {
		if src, ok := s.Attr("src"); ok {
			add(src)
		}
	})

	sort.Strings(out)
	return out
}

// ParseCert parses a DER certificate.
func ParseCert(der []byte) (*x509.Certificate, error) {
	return x509.ParseCertificate(der)
}
