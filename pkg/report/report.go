package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrEmptyReport is returned when the report data is empty.
	ErrEmptyReport = errors.New("empty report")

	// ErrInvalidReport is returned when the report data cannot be parsed.
	ErrInvalidReport = errors.New("invalid report")
)

// Report is one checkov framework report.
type Report struct {
	CheckType string  `json:"check_type"`
	Results   Results `json:"results"`
	Summary   Summary `json:"summary"`
}

// Results contains the per-check outcomes of a report.
type Results struct {
	PassedChecks  []Check  `json:"passed_checks"`
	FailedChecks  []Check  `json:"failed_checks"`
	SkippedChecks []Check  `json:"skipped_checks"`
	ParsingErrors []string `json:"parsing_errors"`
}

// Summary contains the aggregate counts of a report.
type Summary struct {
	CheckovVersion string `json:"checkov_version"`
	Passed         int    `json:"passed"`
	Failed         int    `json:"failed"`
	Skipped        int    `json:"skipped"`
	ParsingErrors  int    `json:"parsing_errors"`
	ResourceCount  int    `json:"resource_count"`
}

// Check is a single policy check result.
type Check struct {
	CheckID   string `json:"check_id"`
	CheckName string `json:"check_name"`
	FilePath  string `json:"file_path"`
	Resource  string `json:"resource"`
	Severity  string `json:"severity"`
	Guideline string `json:"guideline"`
}

// Load parses checkov JSON output. Checkov writes a single report object
// when one framework runs and an array of reports when several do; both
// forms are accepted.
func Load(data []byte) ([]Report, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, ErrEmptyReport
	}

	if data[0] == '[' {
		var reports []Report
		if err := json.Unmarshal(data, &reports); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidReport, err)
		}

		return reports, nil
	}

	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidReport, err)
	}

	return []Report{r}, nil
}

// Totals aggregates summary counts across reports.
type Totals struct {
	Version       string
	Passed        int
	Failed        int
	Skipped       int
	ParsingErrors int
	ResourceCount int
}

// Aggregate combines the summaries of all reports into one set of totals.
// The version falls back to "N/A" when no report carries one.
func Aggregate(reports []Report) Totals {
	t := Totals{Version: "N/A"}
	for _, r := range reports {
		t.Passed += r.Summary.Passed
		t.Failed += r.Summary.Failed
		t.Skipped += r.Summary.Skipped
		t.ParsingErrors += r.Summary.ParsingErrors
		t.ResourceCount += r.Summary.ResourceCount

		if t.Version == "N/A" && r.Summary.CheckovVersion != "" {
			t.Version = r.Summary.CheckovVersion
		}
	}

	return t
}

// FailedChecks returns the failed checks of all reports, in report order.
func FailedChecks(reports []Report) []Check {
	var checks []Check
	for _, r := range reports {
		checks = append(checks, r.Results.FailedChecks...)
	}

	return checks
}
