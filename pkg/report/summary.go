package report

import (
	"cmp"
	"fmt"
	"io"
	"strings"
	"time"
)

const (
	// summaryTimeFormat is the human-readable timestamp inside the document.
	summaryTimeFormat = "2006-01-02 15:04:05"

	// fileTimeFormat is the timestamp embedded in generated file names.
	fileTimeFormat = "20060102-150405"
)

// SummaryFileName returns the dated file name for a summary document.
func SummaryFileName(at time.Time) string {
	return fmt.Sprintf("CHECKOV_SUMMARY_%s.md", at.Format(fileTimeFormat))
}

// WriteSummary renders the Markdown summary for the given reports.
func WriteSummary(w io.Writer, reports []Report, at time.Time) error {
	totals := Aggregate(reports)
	failed := FailedChecks(reports)

	b := &strings.Builder{}
	b.WriteString("# Checkov Scan Summary\n\n")
	b.WriteString("## Scan Metadata\n")
	fmt.Fprintf(b, "- **Timestamp:** %s\n", at.Format(summaryTimeFormat))
	fmt.Fprintf(b, "- **Passed Checks:** %d\n", totals.Passed)
	fmt.Fprintf(b, "- **Failed Checks:** %d\n", totals.Failed)
	fmt.Fprintf(b, "- **Skipped Checks:** %d\n", totals.Skipped)
	fmt.Fprintf(b, "- **Parsing Errors:** %d\n", totals.ParsingErrors)
	fmt.Fprintf(b, "- **Resources Scanned:** %d\n", totals.ResourceCount)
	fmt.Fprintf(b, "- **Checkov Version:** %s\n\n", totals.Version)

	if len(failed) > 0 {
		b.WriteString("## Failed Checks Detail\n\n")

		for _, check := range failed {
			writeCheckDetail(b, check)
		}
	}

	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}

	return nil
}

func writeCheckDetail(b *strings.Builder, check Check) {
	fmt.Fprintf(b, "### %s - %s\n",
		cmp.Or(check.CheckID, "UNKNOWN"),
		cmp.Or(check.CheckName, "Unnamed Check"),
	)
	fmt.Fprintf(b, "- **File:** `%s`\n", cmp.Or(check.FilePath, "unknown"))
	fmt.Fprintf(b, "- **Resource:** `%s`\n", cmp.Or(check.Resource, "unknown"))
	fmt.Fprintf(b, "- **Severity:** %s\n", cmp.Or(check.Severity, "N/A"))

	if check.Guideline != "" {
		fmt.Fprintf(b, "- **Guideline:** [%s](%s)\n", check.Guideline, check.Guideline)
	}

	b.WriteString("\n")
}
