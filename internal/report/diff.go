package report

import (
	"fmt"
	"strings"

	"github.com/hakim/recongraph/internal/diff"
	"github.com/hakim/recongraph/internal/models"
)

// DiffMarkdown generates a markdown report for the delta between two scans
// of the same target.
func DiffMarkdown(previous, current *models.ScanMeta, res *diff.Result) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("# Scan Comparison: %s\n\n", current.Target))
	b.WriteString(fmt.Sprintf("**Previous:** %s (%s)\n", previous.ID, previous.StartedAt.Format("2006-01-02 15:04:05")))
	b.WriteString(fmt.Sprintf("**Current:** %s (%s)\n", current.ID, current.StartedAt.Format("2006-01-02 15:04:05")))
	b.WriteString(fmt.Sprintf("**Unique results:** %d previously, %d now\n\n", res.PreviousTotal, res.CurrentTotal))

	if res.Unchanged() {
		b.WriteString("No changes between the two scans.\n")
		return b.String()
	}

	b.WriteString("## New Results\n\n")
	writeChangeTable(&b, res.Appeared)

	b.WriteString("## Removed Results\n\n")
	writeChangeTable(&b, res.Disappeared)

	b.WriteString("## Count Shifts\n\n")
	b.WriteString("| Type | Previous | Current |\n")
	b.WriteString("|------|----------|--------|\n")
	for _, s := range res.Shifts {
		b.WriteString(fmt.Sprintf("| %s | %d | %d |\n", s.Type, s.Previous, s.Current))
	}
	b.WriteString("\n")

	return b.String()
}

func writeChangeTable(b *strings.Builder, changes []diff.Change) {
	if len(changes) == 0 {
		b.WriteString("None.\n\n")
		return
	}
	b.WriteString("| Type | Data | Collector |\n")
	b.WriteString("|------|------|-----------|\n")
	for _, c := range changes {
		b.WriteString(fmt.Sprintf("| %s | %s | %s |\n", c.Type, mdEscape(c.Data), c.Module))
	}
	b.WriteString("\n")
}
