package mcp

import (
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/macropower/skan/pkg/scan"
)

// ListFindingsParams defines parameters for the list_findings tool.
type ListFindingsParams struct{}

// Finding describes a single failed check.
type Finding struct {
	CheckID   string `json:"checkId"`
	CheckName string `json:"checkName"`
	FilePath  string `json:"filePath"`
	Resource  string `json:"resource"`
	Severity  string `json:"severity,omitempty"`
	Guideline string `json:"guideline,omitempty"`
}

// ListFindingsResult contains the result of listing failed checks.
type ListFindingsResult struct {
	Error        string    `json:"error,omitempty"`
	Status       string    `json:"status"`
	Message      string    `json:"message"`
	Findings     []Finding `json:"findings"`
	FindingCount int       `json:"findingCount"`
}

// createListFindingsResult creates the MCP tool result from ListFindingsResult.
func createListFindingsResult(result ListFindingsResult) *mcp.CallToolResultFor[ListFindingsResult] {
	msg := fmt.Sprintf("Found %d failed checks.", result.FindingCount)
	result.Message = msg

	return &mcp.CallToolResultFor[ListFindingsResult]{
		Content: []mcp.Content{
			&mcp.TextContent{
				Text: msg,
			},
		},
		StructuredContent: result,
	}
}

// populateFindings populates the result with failed checks from the scan result.
func populateFindings(result *ListFindingsResult, res *scan.Result) {
	for _, check := range res.FailedChecks {
		result.Findings = append(result.Findings, Finding{
			CheckID:   check.CheckID,
			CheckName: check.CheckName,
			FilePath:  check.FilePath,
			Resource:  check.Resource,
			Severity:  check.Severity,
			Guideline: check.Guideline,
		})
	}

	result.FindingCount = len(result.Findings)
}
