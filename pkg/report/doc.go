// Package report models checkov scan output and renders it as Markdown.
//
// Checkov writes one JSON report per framework. This package parses both
// the single-object and array forms, aggregates their summaries, and
// produces the summary document written next to the raw report.
package report
