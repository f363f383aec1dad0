package netutil

import (
	"bufio"
	"strings"
)

// SuffixSet is the parsed public-suffix list. It supports the host-to-domain
// reduction used for domain seeding and scope decisions.
type SuffixSet struct {
	suffixes map[string]struct{}
}

// ParseSuffixList builds a SuffixSet from the raw public-suffix list format:
// one suffix per line, comments starting with "//". Wildcard and exception
// rules are reduced to their literal part, which is sufficient for domain
// detection on ordinary internet names.
func ParseSuffixList(data string) *SuffixSet {
	set := &SuffixSet{suffixes: make(map[string]struct{})}
	scanner := bufio.NewScanner(strings.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "//") {
			continue
		}
		line = strings.TrimPrefix(line, "*.")
		line = strings.TrimPrefix(line, "!")
		set.suffixes[strings.ToLower(line)] = struct{}{}
	}
	return set
}

// IsTLD reports whether the name is itself a public suffix.
func (s *SuffixSet) IsTLD(name string) bool {
	_, ok := s.suffixes[strings.ToLower(strings.TrimSuffix(name, "."))]
	return ok
}

// IsDomain reports whether the name is a registrable domain: exactly one
// label in front of a public suffix.
func (s *SuffixSet) IsDomain(name string) bool {
	name = strings.ToLower(strings.TrimSuffix(name, "."))
	label, rest, ok := strings.Cut(name, ".")
	if !ok || label == "" {
		return false
	}
	return s.IsTLD(rest)
}

// HostDomain reduces a host name to its registrable domain, or returns the
// empty string when no public suffix matches.
func (s *SuffixSet) HostDomain(name string) string {
	name = strings.ToLower(strings.TrimSuffix(name, "."))
	labels := strings.Split(name, ".")
	for i := 0; i < len(labels)-1; i++ {
		candidate := strings.Join(labels[i:], ".")
		if s.IsDomain(candidate) {
			return candidate
		}
	}
	return ""
}

// Count returns how many suffixes are loaded.
func (s *SuffixSet) Count() int {
	return len(s.suffixes)
}
