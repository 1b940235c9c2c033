package scan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/macropower/skan/pkg/kube"
	"github.com/macropower/skan/pkg/log"
	"github.com/macropower/skan/pkg/report"
)

// Static scans statically provided manifest input, e.g. from stdin. The input
// is staged as a temporary manifest file so the scanner can read it.
type Static struct {
	scanner   *Scanner
	outputDir string
	input     string
	Resources []*kube.Resource
	listeners []chan<- Event
}

func NewStatic(input string, opts ...StaticOpt) (*Static, error) {
	if input == "" {
		return nil, errors.New("input cannot be empty")
	}

	resources, err := kube.SplitYAML([]byte(input))
	if err != nil {
		return nil, fmt.Errorf("split yaml: %w", err)
	}

	rg := &Static{
		input:     input,
		Resources: resources,
		scanner:   DefaultConfig.Scanner,
	}
	for _, opt := range opts {
		opt(rg)
	}

	return rg, nil
}

type StaticOpt func(*Static)

// WithStaticScanner overrides the scanner used for static input.
func WithStaticScanner(s *Scanner) StaticOpt {
	return func(rg *Static) {
		rg.scanner = s
	}
}

// WithStaticOutputDir sets the directory that receives scanner reports and
// summaries. Defaults to the current working directory.
func WithStaticOutputDir(dir string) StaticOpt {
	return func(rg *Static) {
		rg.outputDir = dir
	}
}

func (rg *Static) String() string {
	return "static"
}

func (rg *Static) Run() Result {
	return rg.RunContext(context.Background())
}

// RunContext stages the input as a manifest file, runs the policy scanner
// against it, aggregates the JSON report, and writes a Markdown summary.
func (rg *Static) RunContext(ctx context.Context) Result {
	rg.broadcast(NewEventStart(ctx, TypeStatic))

	res := NewResult(TypeStatic)
	res.Target = "-"
	res.Resources = rg.Resources

	finish := func(res Result) Result {
		res.Duration = time.Since(res.Timestamp)
		end := NewEventEnd(ctx, res)
		rg.broadcast(end)

		return Result(end)
	}

	dir, err := os.MkdirTemp("", "skan-*")
	if err != nil {
		res.Error = fmt.Errorf("create temp directory: %w", err)

		return finish(res)
	}
	defer os.RemoveAll(dir) //nolint:errcheck // Best effort cleanup.

	manifest := filepath.Join(dir, renderFileName)

	err = os.WriteFile(manifest, []byte(rg.input), 0o600)
	if err != nil {
		res.Error = fmt.Errorf("write manifest: %w", err)

		return finish(res)
	}

	res.Manifest = manifest

	outDir := filepath.Join(rg.outputDir, scanOutputDir)

	err = os.MkdirAll(outDir, 0o755)
	if err != nil {
		res.Error = fmt.Errorf("create output directory: %w", err)

		return finish(res)
	}

	result, err := rg.scanner.Exec(ctx, ".", manifest, true, outDir)
	if result != nil {
		res.Stdout = result.Stdout
		res.Stderr = result.Stderr
		res.ExitCode = result.ExitCode
	}
	if result == nil && err != nil {
		res.Error = fmt.Errorf("%s: %w", rg.scanner.Command.Command, err)

		return finish(res)
	}

	logger := log.WithContext(ctx)
	if res.ExitCode == 0 {
		logger.InfoContext(ctx, "scan completed with no policy violations", slog.String("target", res.Target))
	} else {
		logger.WarnContext(ctx, "scan completed with violations",
			slog.String("target", res.Target),
			slog.Int("exitCode", res.ExitCode),
		)
	}

	reportPath := rg.scanner.ReportPath(outDir)

	reports, _, err := loadReports(reportPath)
	if err != nil {
		res.Error = err

		return finish(res)
	}

	res.ReportPath = reportPath
	res.Totals = report.Aggregate(reports)
	res.FailedChecks = report.FailedChecks(reports)

	summaryPath, err := writeSummaryFile(outDir, reports, time.Now())
	if err != nil {
		res.Error = err

		return finish(res)
	}

	res.SummaryPath = summaryPath

	return finish(res)
}

func (rg *Static) RunOnEvent() {
	// No events to watch for in static input.
}

func (rg *Static) Close() {
	// No resources to close.
}

func (rg *Static) Subscribe(ch chan<- Event) {
	rg.listeners = append(rg.listeners, ch)
}

func (rg *Static) broadcast(evt Event) {
	// Send the event to all listeners.
	for _, ch := range rg.listeners {
		ch <- evt
	}
}
