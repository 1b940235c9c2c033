package scan

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/mattn/go-shellwords"

	"github.com/macropower/skan/pkg/execs"
	"github.com/macropower/skan/pkg/profile"
)

const (
	// defaultFramework limits the scanner to Kubernetes checks.
	defaultFramework = "kubernetes"
	// defaultReportFile is the JSON report Checkov writes for `--output json`.
	defaultReportFile = "results_json.json"
)

// Scanner invokes the policy scanner over a manifest file or directory, and
// knows where the scanner leaves its JSON report.
type Scanner struct {
	// Init is an optional hook executed when a runner is configured, e.g. to
	// verify the scanner version.
	Init *profile.HookCommand `json:"init,omitempty" jsonschema:"title=Init Hook"`

	// Command contains the command execution configuration. Args are passed
	// before the arguments assembled by [Scanner.BuildArgs], which allows
	// wrappers like `docker run <image>`.
	Command execs.Command `json:",inline"`

	// Framework selects the scanner framework. Defaults to "kubernetes".
	Framework string `json:"framework,omitempty" jsonschema:"title=Framework"`

	// ReportFile is the name of the JSON report inside the output directory.
	ReportFile string `json:"reportFile,omitempty" jsonschema:"title=Report File"`

	// ExtraArgs contains extra arguments that are appended after the
	// arguments assembled by [Scanner.BuildArgs].
	ExtraArgs []string `json:"extraArgs,omitempty" jsonschema:"title=Optional Arguments" yaml:"extraArgs,flow,omitempty"`
}

// ScannerOpt is a functional option for configuring a Scanner.
type ScannerOpt func(*Scanner)

// NewScanner creates a new scanner with the given command and options.
func NewScanner(command string, opts ...ScannerOpt) (*Scanner, error) {
	s := &Scanner{
		Command: execs.Command{Command: command},
	}
	for _, opt := range opts {
		opt(s)
	}

	err := s.Build()
	if err != nil {
		return nil, fmt.Errorf("scanner %q: %w", command, err)
	}

	return s, nil
}

// MustNewScanner creates a new scanner and panics if there's an error.
func MustNewScanner(command string, opts ...ScannerOpt) *Scanner {
	s, err := NewScanner(command, opts...)
	if err != nil {
		panic(err)
	}

	return s
}

// NewScannerFromString creates a scanner from a shell-like command string,
// e.g. `docker run --rm bridgecrew/checkov`.
func NewScannerFromString(command string, opts ...ScannerOpt) (*Scanner, error) {
	parts, err := shellwords.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse scanner command: %w", err)
	}
	if len(parts) == 0 {
		return nil, execs.ErrEmptyCommand
	}

	opts = append([]ScannerOpt{WithScanArgs(parts[1:]...)}, opts...)

	return NewScanner(parts[0], opts...)
}

// WithScanArgs sets the base command arguments for the scanner.
func WithScanArgs(args ...string) ScannerOpt {
	return func(s *Scanner) {
		s.Command.Args = args
	}
}

// WithScanExtraArgs sets extra arguments appended to the assembled arguments.
func WithScanExtraArgs(args ...string) ScannerOpt {
	return func(s *Scanner) {
		s.ExtraArgs = args
	}
}

// WithFramework sets the scanner framework.
func WithFramework(framework string) ScannerOpt {
	return func(s *Scanner) {
		s.Framework = framework
	}
}

// WithReportFile sets the name of the JSON report file.
func WithReportFile(name string) ScannerOpt {
	return func(s *Scanner) {
		s.ReportFile = name
	}
}

// WithInit sets the init hook for the scanner.
func WithInit(hook *profile.HookCommand) ScannerOpt {
	return func(s *Scanner) {
		s.Init = hook
	}
}

// WithScanEnvFrom sets environment variable sources for the scanner.
func WithScanEnvFrom(envFrom []execs.EnvFromSource) ScannerOpt {
	return func(s *Scanner) {
		s.Command.EnvFrom = envFrom
	}
}

// Build prepares the scanner for execution. It must be called if the scanner
// was created directly rather than via [NewScanner].
func (s *Scanner) Build() error {
	if s.Framework == "" {
		s.Framework = defaultFramework
	}
	if s.ReportFile == "" {
		s.ReportFile = defaultReportFile
	}

	s.Command.SetBaseEnv(os.Environ())

	err := s.Command.CompilePatterns()
	if err != nil {
		return fmt.Errorf("compile patterns: %w", err)
	}

	if s.Init != nil {
		err := s.Init.Build()
		if err != nil {
			return fmt.Errorf("init hook: %w", err)
		}
	}

	return nil
}

// BuildArgs assembles the scanner arguments for the given target. The scanner
// treats files and directories differently, so the caller indicates which one
// it has. outputDir receives the JSON report.
func (s *Scanner) BuildArgs(target string, targetIsFile bool, outputDir string) []string {
	args := slices.Clone(s.Command.Args)
	args = append(args, "--framework", s.Framework, "--quiet", "--compact", "--soft-fail")

	if targetIsFile {
		args = append(args, "--file", target)
	} else {
		args = append(args, "--directory", target)
	}

	args = append(args, "--output", "json", "--output-file-path", outputDir)

	return append(args, s.ExtraArgs...)
}

// Exec runs the scanner from dir against the target.
func (s *Scanner) Exec(ctx context.Context, dir, target string, targetIsFile bool, outputDir string) (*execs.Result, error) {
	cmd := s.Command
	cmd.Args = s.BuildArgs(target, targetIsFile, outputDir)

	return cmd.Exec(ctx, dir) //nolint:wrapcheck // Return the original error.
}

// ReportPath returns the path of the JSON report inside outputDir.
func (s *Scanner) ReportPath(outputDir string) string {
	return filepath.Join(outputDir, s.ReportFile)
}

func (s *Scanner) String() string {
	return s.Command.String()
}
