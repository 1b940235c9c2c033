package scan

import (
	"context"
	"time"

	"github.com/macropower/skan/pkg/kube"
	"github.com/macropower/skan/pkg/report"
)

type Type int

const (
	// TypeScan indicates a scan of a target path.
	TypeScan Type = iota
	// TypeStatic indicates a scan of statically provided input.
	TypeStatic
)

// Result holds everything produced by a single scan.
type Result struct {
	ctx context.Context

	Timestamp time.Time
	Error     error

	// Target is the path that was scanned.
	Target string
	// Profile is the name of the renderer profile that was used, if any.
	Profile string
	// Manifest is the path of the staged manifest file, when the target was
	// rendered before scanning.
	Manifest string
	// ReportPath is the path of the scanner's JSON report.
	ReportPath string
	// SummaryPath is the path of the generated Markdown summary.
	SummaryPath string

	Stdout string
	Stderr string

	// Resources contains the Kubernetes resources that were scanned.
	Resources []*kube.Resource
	// FailedChecks contains every failed check across all reports.
	FailedChecks []report.Check

	// Totals aggregates check counts across all reports.
	Totals report.Totals

	Duration time.Duration

	// ExitCode is the scanner's exit code. It is only meaningful if the
	// scanner process ran to completion.
	ExitCode int

	Type Type
}

// NewResult creates a new [Result] timestamped with the current time.
func NewResult(t Type, opts ...ResultOpt) Result {
	r := &Result{
		Type:      t,
		Timestamp: time.Now(),
	}
	for _, opt := range opts {
		opt(r)
	}

	return *r
}

type ResultOpt func(*Result)

// WithError sets the error for the result.
func WithError(err error) ResultOpt {
	return func(r *Result) {
		r.Error = err
	}
}
