package mcp

const (
	name         = "skan"
	instructions = `MCP Server 'skan' enables scanning Kubernetes manifests for policy violations and browsing the scanned resources.

When to use these tools:
- Checking which policy violations a set of manifests produces
- Re-checking results after modifying manifests, values, or overlays
- Inspecting the rendered YAML that was scanned

REQUIRED workflow:
1. Use 'scan' with a directory path containing Kubernetes manifests (e.g., ".", "./deploy")
2. STOP and carefully READ the output to see the result status and check totals
3. Use 'list_findings' to enumerate failed checks, and 'get_summary' for the Markdown summary
4. For rendered runs, use 'list_resources' and then 'get_resource' with the EXACT apiVersion, kind, namespace, and name values from the 'list_resources' output
`
)

// truncateString truncates a string to maxLen characters with ellipsis if needed.
func truncateString(str string, maxLen int) string {
	if str == "" {
		return ""
	}
	if len(str) > maxLen {
		return str[:maxLen] + "\n[OUTPUT TRUNCATED]"
	}

	return str
}
