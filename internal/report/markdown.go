// Package report renders stored scan results as markdown.
package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hakim/recongraph/internal/event"
	"github.com/hakim/recongraph/internal/models"
)

// ScanMarkdown generates a markdown report for one scan from its metadata
// and stored events.
func ScanMarkdown(meta *models.ScanMeta, events []*models.StoredEvent) string {
	var b strings.Builder

	// Header
	b.WriteString(fmt.Sprintf("# Scan Report: %s\n\n", meta.Target))
	b.WriteString(fmt.Sprintf("**Scan ID:** %s\n", meta.ID))
	b.WriteString(fmt.Sprintf("**Target type:** %s\n", meta.TargetType))
	b.WriteString(fmt.Sprintf("**Status:** %s\n", meta.Status))
	b.WriteString(fmt.Sprintf("**Started:** %s\n", meta.StartedAt.Format("2006-01-02 15:04:05")))
	if meta.CompletedAt != nil {
		b.WriteString(fmt.Sprintf("**Completed:** %s\n", meta.CompletedAt.Format("2006-01-02 15:04:05")))
	}

	byType := groupByType(events)
	b.WriteString(fmt.Sprintf("**Unique results:** %d across %d types\n\n", totalCount(byType), len(byType)))

	// Summary section
	b.WriteString("## Summary\n\n")
	types := sortedTypes(byType)
	if len(types) > 0 {
		b.WriteString("| Type | Count |\n")
		b.WriteString("|------|-------|\n")
		for _, t := range types {
			b.WriteString(fmt.Sprintf("| %s | %d |\n", t, len(byType[t])))
		}
	} else {
		b.WriteString("No results.\n")
	}
	b.WriteString("\n")

	// Malicious and blacklisted findings get their own section up front.
	risky := riskyFindings(byType, types)
	b.WriteString("## Findings of Note\n\n")
	if len(risky) > 0 {
		b.WriteString("| Type | Data | Collector |\n")
		b.WriteString("|------|------|-----------|\n")
		for _, e := range risky {
			b.WriteString(fmt.Sprintf("| %s | %s | %s |\n", e.Type, mdEscape(e.Data), e.Module))
		}
	} else {
		b.WriteString("None found.\n")
	}
	b.WriteString("\n")

	// Full listing per type
	b.WriteString("## Results\n\n")
	for _, t := range types {
		b.WriteString(fmt.Sprintf("### %s\n\n", t))
		b.WriteString("| Data | Collector |\n")
		b.WriteString("|------|-----------|\n")
		for _, e := range byType[t] {
			b.WriteString(fmt.Sprintf("| %s | %s |\n", mdEscape(e.Data), e.Module))
		}
		b.WriteString("\n")
	}

	return b.String()
}

// groupByType buckets events by type, one entry per unique (type, data) pair
// in publication order. The seed event is excluded.
func groupByType(events []*models.StoredEvent) map[string][]*models.StoredEvent {
	out := make(map[string][]*models.StoredEvent)
	seen := make(map[string]struct{}, len(events))
	for _, e := range events {
		if e.Type == event.TypeRoot {
			continue
		}
		key := e.Type + "\x00" + e.Data
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out[e.Type] = append(out[e.Type], e)
	}
	return out
}

func sortedTypes(byType map[string][]*models.StoredEvent) []string {
	types := make([]string, 0, len(byType))
	for t := range byType {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

func totalCount(byType map[string][]*models.StoredEvent) int {
	total := 0
	for _, events := range byType {
		total += len(events)
	}
	return total
}

// riskyFindings selects the blacklist and malicious results in type order.
func riskyFindings(byType map[string][]*models.StoredEvent, types []string) []*models.StoredEvent {
	var out []*models.StoredEvent
	for _, t := range types {
		if strings.HasPrefix(t, "MALICIOUS_") || strings.HasPrefix(t, "BLACKLISTED_") {
			out = append(out, byType[t]...)
		}
	}
	return out
}

// mdEscape keeps payloads from breaking table markup. Multi-line data is
// collapsed and long values truncated.
func mdEscape(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "|", "\\|")
	if len(s) > 120 {
		s = s[:117] + "..."
	}
	return s
}
