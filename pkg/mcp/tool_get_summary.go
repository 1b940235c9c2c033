package mcp

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// GetSummaryParams defines parameters for the get_summary tool.
type GetSummaryParams struct{}

// GetSummaryResult contains the result of getting the scan summary.
type GetSummaryResult struct {
	Error       string `json:"error,omitempty"`
	Status      string `json:"status"`
	Summary     string `json:"summary,omitempty"`
	SummaryPath string `json:"summaryPath,omitempty"`
	Message     string `json:"message"`
}

// createGetSummaryResult creates the MCP tool result from GetSummaryResult.
func createGetSummaryResult(result GetSummaryResult) *mcp.CallToolResultFor[GetSummaryResult] {
	msg := "No summary available. Run the scan tool first."
	text := msg

	if result.Summary != "" {
		msg = "Markdown summary available."
		text = result.Summary
	}

	result.Message = msg

	return &mcp.CallToolResultFor[GetSummaryResult]{
		Content: []mcp.Content{
			&mcp.TextContent{
				Text: text,
			},
		},
		StructuredContent: result,
	}
}
