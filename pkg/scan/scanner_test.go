package scan_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macropower/skan/pkg/execs"
	"github.com/macropower/skan/pkg/scan"
)

func TestScanner_BuildArgs(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		scanner      *scan.Scanner
		target       string
		outputDir    string
		want         []string
		targetIsFile bool
	}{
		"directory target": {
			scanner:   scan.MustNewScanner("checkov"),
			target:    "manifests",
			outputDir: "out",
			want: []string{
				"--framework", "kubernetes", "--quiet", "--compact", "--soft-fail",
				"--directory", "manifests",
				"--output", "json", "--output-file-path", "out",
			},
		},
		"file target": {
			scanner:      scan.MustNewScanner("checkov"),
			target:       "manifests/deployment.yaml",
			targetIsFile: true,
			outputDir:    "out",
			want: []string{
				"--framework", "kubernetes", "--quiet", "--compact", "--soft-fail",
				"--file", "manifests/deployment.yaml",
				"--output", "json", "--output-file-path", "out",
			},
		},
		"wrapper command keeps base args first": {
			scanner: scan.MustNewScanner("docker",
				scan.WithScanArgs("run", "--rm", "bridgecrew/checkov")),
			target:    "manifests",
			outputDir: "out",
			want: []string{
				"run", "--rm", "bridgecrew/checkov",
				"--framework", "kubernetes", "--quiet", "--compact", "--soft-fail",
				"--directory", "manifests",
				"--output", "json", "--output-file-path", "out",
			},
		},
		"extra args appended last": {
			scanner: scan.MustNewScanner("checkov",
				scan.WithScanExtraArgs("--skip-check", "CKV_K8S_21")),
			target:    "manifests",
			outputDir: "out",
			want: []string{
				"--framework", "kubernetes", "--quiet", "--compact", "--soft-fail",
				"--directory", "manifests",
				"--output", "json", "--output-file-path", "out",
				"--skip-check", "CKV_K8S_21",
			},
		},
		"custom framework": {
			scanner: scan.MustNewScanner("checkov",
				scan.WithFramework("helm")),
			target:    "chart",
			outputDir: "out",
			want: []string{
				"--framework", "helm", "--quiet", "--compact", "--soft-fail",
				"--directory", "chart",
				"--output", "json", "--output-file-path", "out",
			},
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got := tc.scanner.BuildArgs(tc.target, tc.targetIsFile, tc.outputDir)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestScanner_BuildArgs_DoesNotMutateBaseArgs(t *testing.T) {
	t.Parallel()

	s := scan.MustNewScanner("docker", scan.WithScanArgs("run", "--rm", "bridgecrew/checkov"))

	_ = s.BuildArgs("manifests", false, "out")
	_ = s.BuildArgs("other", true, "elsewhere")

	assert.Equal(t, []string{"run", "--rm", "bridgecrew/checkov"}, s.Command.Args)
}

func TestNewScannerFromString(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		wantErr     error
		command     string
		errContains string
		wantCommand string
		wantArgs    []string
	}{
		"bare command": {
			command:     "checkov",
			wantCommand: "checkov",
		},
		"command with args": {
			command:     "docker run --rm bridgecrew/checkov",
			wantCommand: "docker",
			wantArgs:    []string{"run", "--rm", "bridgecrew/checkov"},
		},
		"quoted argument": {
			command:     `sh -c "checkov --version"`,
			wantCommand: "sh",
			wantArgs:    []string{"-c", "checkov --version"},
		},
		"empty command": {
			command: "",
			wantErr: execs.ErrEmptyCommand,
		},
		"unbalanced quote": {
			command:     `checkov "unclosed`,
			errContains: "parse scanner command",
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			s, err := scan.NewScannerFromString(tc.command)

			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)

				return
			}
			if tc.errContains != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.errContains)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.wantCommand, s.Command.Command)
			assert.Equal(t, tc.wantArgs, s.Command.Args)
		})
	}
}

func TestScanner_Defaults(t *testing.T) {
	t.Parallel()

	s := scan.MustNewScanner("checkov")

	assert.Equal(t, "kubernetes", s.Framework)
	assert.Equal(t, "results_json.json", s.ReportFile)
}

func TestScanner_ReportPath(t *testing.T) {
	t.Parallel()

	t.Run("default report file", func(t *testing.T) {
		t.Parallel()

		s := scan.MustNewScanner("checkov")
		assert.Equal(t, filepath.Join("out", "results_json.json"), s.ReportPath("out"))
	})

	t.Run("custom report file", func(t *testing.T) {
		t.Parallel()

		s := scan.MustNewScanner("checkov", scan.WithReportFile("custom.json"))
		assert.Equal(t, filepath.Join("out", "custom.json"), s.ReportPath("out"))
	})
}

func TestScanner_String(t *testing.T) {
	t.Parallel()

	s := scan.MustNewScanner("docker", scan.WithScanArgs("run", "--rm", "bridgecrew/checkov"))
	assert.Equal(t, "docker run --rm bridgecrew/checkov", s.String())
}
