// Package scan orchestrates policy scans of Kubernetes manifests.
//
// A [Runner] drives the pipeline for a target path: it discovers manifest
// files, optionally renders them with a [profile.Profile] selected via
// [rule.Rule] matching, executes the policy scanner, aggregates the scanner's
// JSON report, and writes a Markdown summary. [Static] runs the same scanner
// against statically provided input, e.g. from stdin.
//
// Runners broadcast [Event] values to subscribers, which allows interfaces
// like the MCP server to observe scans without polling.
package scan
