package mcp

import (
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/macropower/skan/pkg/scan"
)

// ScanParams defines parameters for the scan tool.
type ScanParams struct {
	Path string `json:"path,omitempty" jsonschema:"description=the directory path to scan, relative to the project root"`
}

// ScanTotals aggregates check counts for a scan.
type ScanTotals struct {
	Version       string `json:"version,omitempty"`
	Passed        int    `json:"passed"`
	Failed        int    `json:"failed"`
	Skipped       int    `json:"skipped"`
	ParsingErrors int    `json:"parsingErrors"`
	ResourceCount int    `json:"resourceCount"`
}

// ScanResult contains the result of a scan.
type ScanResult struct {
	Error       string     `json:"error,omitempty"`
	Status      string     `json:"status"`
	Target      string     `json:"target,omitempty"`
	Profile     string     `json:"profile,omitempty"`
	ReportPath  string     `json:"reportPath,omitempty"`
	SummaryPath string     `json:"summaryPath,omitempty"`
	Message     string     `json:"message"`
	Totals      ScanTotals `json:"totals"`
	ExitCode    int        `json:"exitCode"`
}

// createScanResult creates the MCP tool result from ScanResult.
func createScanResult(result ScanResult) *mcp.CallToolResultFor[ScanResult] {
	var msg string
	if result.Error != "" {
		msg = fmt.Sprintf("Scan finished with error: %s", result.Error)
	} else {
		msg = fmt.Sprintf("Scan completed: %d passed, %d failed, %d skipped.",
			result.Totals.Passed, result.Totals.Failed, result.Totals.Skipped)
	}

	result.Message = msg

	return &mcp.CallToolResultFor[ScanResult]{
		Content: []mcp.Content{
			&mcp.TextContent{
				Text: msg,
			},
		},
		StructuredContent: result,
	}
}

// populateScanResult populates the result with data from the scan result.
func populateScanResult(result *ScanResult, res *scan.Result) {
	result.Target = res.Target
	result.Profile = res.Profile
	result.ReportPath = res.ReportPath
	result.SummaryPath = res.SummaryPath
	result.ExitCode = res.ExitCode
	result.Totals = ScanTotals{
		Version:       res.Totals.Version,
		Passed:        res.Totals.Passed,
		Failed:        res.Totals.Failed,
		Skipped:       res.Totals.Skipped,
		ParsingErrors: res.Totals.ParsingErrors,
		ResourceCount: res.Totals.ResourceCount,
	}
}
