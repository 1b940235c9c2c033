package mcp

import (
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/macropower/skan/pkg/kube"
	"github.com/macropower/skan/pkg/scan"
)

// ListResourcesParams defines parameters for the list_resources tool.
type ListResourcesParams struct {
	Path string `json:"path" jsonschema:"description=the directory path to operate on, relative to the project root"`
}

// ListResourcesResult contains the result of listing resources.
type ListResourcesResult struct {
	Error         string                  `json:"error,omitempty"`
	Status        string                  `json:"status"`
	StdoutPreview string                  `json:"stdoutPreview,omitempty"`
	StderrPreview string                  `json:"stderrPreview,omitempty"`
	Message       string                  `json:"message"`
	Resources     []kube.ResourceMetadata `json:"resources"`
	ResourceCount int                     `json:"resourceCount"`
}

// createListResourcesResult creates the MCP tool result from ListResourcesResult.
func createListResourcesResult(result ListResourcesResult) *mcp.CallToolResultFor[ListResourcesResult] {
	msg := fmt.Sprintf("Found %d Kubernetes resources.", result.ResourceCount)
	result.Message = msg

	return &mcp.CallToolResultFor[ListResourcesResult]{
		Content: []mcp.Content{
			&mcp.TextContent{
				Text: msg,
			},
		},
		StructuredContent: result,
	}
}

// populateResultFromResult populates the result with data from the scan result.
func populateResultFromResult(result *ListResourcesResult, res *scan.Result) {
	// Add stdout/stderr previews (truncated for readability).
	result.StdoutPreview = truncateString(res.Stdout, 200)
	result.StderrPreview = truncateString(res.Stderr, 200)

	// Process resources.
	if res.Resources != nil {
		result.ResourceCount = len(res.Resources)
		for _, resource := range res.Resources {
			if resource.Object != nil {
				result.Resources = append(result.Resources, resource.Object.GetMetadata())
			}
		}
	}
}
