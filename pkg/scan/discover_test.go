package scan_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macropower/skan/pkg/scan"
)

func TestIsManifest(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		path string
		want bool
	}{
		"yaml extension": {
			path: "deployment.yaml",
			want: true,
		},
		"yml extension": {
			path: "service.yml",
			want: true,
		},
		"nested path": {
			path: "overlays/prod/deployment.yaml",
			want: true,
		},
		"hidden file": {
			path: ".env.yaml",
			want: true,
		},
		"uppercase extension": {
			path: "deployment.YAML",
			want: false,
		},
		"json": {
			path: "deployment.json",
			want: false,
		},
		"no extension": {
			path: "Makefile",
			want: false,
		},
		"yaml as basename": {
			path: "yaml",
			want: false,
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.want, scan.IsManifest(tc.path))
		})
	}
}

func TestRunner_DiscoverManifests(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		path  string
		files map[string]string
		opts  []scan.RunnerOpt
		want  []string
	}{
		"returns every manifest recursively": {
			files: map[string]string{
				"app.yaml":            "kind: Deployment",
				"service.yml":         "kind: Service",
				"sub/nested/pod.yaml": "kind: Pod",
				"README.md":           "# readme",
				"values.json":         "{}",
			},
			path: ".",
			want: []string{"app.yaml", "service.yml", "sub/nested/pod.yaml"},
		},
		"hidden files are included": {
			files: map[string]string{
				"app.yaml":            "kind: Deployment",
				".env.yaml":           "kind: Secret",
				".hidden/secret.yaml": "kind: Secret",
			},
			path: ".",
			want: []string{".env.yaml", ".hidden/secret.yaml", "app.yaml"},
		},
		"extension match is case sensitive": {
			files: map[string]string{
				"app.yaml": "kind: Deployment",
				"APP.YAML": "kind: Deployment",
			},
			path: ".",
			want: []string{"app.yaml"},
		},
		"exclude pattern drops matches": {
			files: map[string]string{
				"app.yaml":     "kind: Deployment",
				"sub/gen.yaml": "kind: ConfigMap",
			},
			path: ".",
			opts: []scan.RunnerOpt{scan.WithExclude("^sub/")},
			want: []string{"app.yaml"},
		},
		"single file target": {
			files: map[string]string{
				"app.yaml":   "kind: Deployment",
				"other.yaml": "kind: Service",
			},
			path: "app.yaml",
			want: []string{"app.yaml"},
		},
		"non-manifest file target": {
			files: map[string]string{
				"README.md": "# readme",
			},
			path: "README.md",
			want: []string{},
		},
		"empty directory": {
			files: map[string]string{},
			path:  ".",
			want:  []string{},
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			tempDir := t.TempDir()
			for f, content := range tc.files {
				path := filepath.Join(tempDir, f)
				require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
				require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
			}

			root, err := os.OpenRoot(tempDir)
			require.NoError(t, err)

			opts := append([]scan.RunnerOpt{
				scan.WithRules(TestConfig.Rules),
				scan.WithProfiles(TestConfig.Profiles),
				scan.WithScanner(testScanner),
			}, tc.opts...)

			runner, err := scan.NewRunnerWithRoot(root, tc.path, opts...)
			require.NoError(t, err)
			t.Cleanup(runner.Close)

			files, err := runner.DiscoverManifests()
			require.NoError(t, err)

			// Results are sorted, and an empty result is not an error.
			assert.Equal(t, tc.want, files)
		})
	}
}

func TestRunner_DiscoverManifests_Testdata(t *testing.T) {
	t.Parallel()

	runner, err := scan.NewRunner("testdata/simple",
		scan.WithRules(TestConfig.Rules),
		scan.WithProfiles(TestConfig.Profiles),
		scan.WithScanner(testScanner))
	require.NoError(t, err)
	t.Cleanup(runner.Close)

	files, err := runner.DiscoverManifests()
	require.NoError(t, err)

	assert.Equal(t, []string{
		"testdata/simple/.hidden/secret.yaml",
		"testdata/simple/deployment.yaml",
		"testdata/simple/nested/pod.yaml",
		"testdata/simple/service.yml",
	}, files)
}
