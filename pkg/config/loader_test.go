package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macropower/skan/api/v1beta1/configs"
	"github.com/macropower/skan/pkg/config"
)

func TestNewLoaderFromFile(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		setupFile func(t *testing.T) string
		wantErr   bool
	}{
		"valid file": {
			setupFile: func(t *testing.T) string {
				t.Helper()

				content := `apiVersion: skan.jacobcolvin.com/v1beta1
kind: Configuration
`

				return createTempFile(t, content)
			},
			wantErr: false,
		},
		"non-existent file": {
			setupFile: func(t *testing.T) string {
				t.Helper()

				return "/non/existent/file.yaml"
			},
			wantErr: true,
		},
		"directory instead of file": {
			setupFile: func(t *testing.T) string {
				t.Helper()

				return t.TempDir()
			},
			wantErr: true,
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			path := tc.setupFile(t)

			got, err := config.NewLoaderFromFile(path, configs.New, configs.DefaultValidator)

			if tc.wantErr {
				require.Error(t, err)
				assert.Nil(t, got)
			} else {
				require.NoError(t, err)
				assert.NotNil(t, got)
			}
		})
	}
}

func TestNewLoaderFromBytes(t *testing.T) {
	t.Parallel()

	input := `apiVersion: skan.jacobcolvin.com/v1beta1
kind: Configuration
rules:
  - match: 'true'
    profile: test
profiles:
  test:
    command: echo
    args: ["test"]
`

	cl := config.NewLoaderFromBytes([]byte(input), configs.New, configs.DefaultValidator)
	require.NotNil(t, cl)

	err := cl.Validate()
	require.NoError(t, err)

	cfg, err := cl.Load()
	require.NoError(t, err)
	assert.Equal(t, "skan.jacobcolvin.com/v1beta1", cfg.GetAPIVersion())
	assert.Equal(t, "Configuration", cfg.GetKind())
}

func TestLoader_Validate(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		input   string
		errMsg  string
		wantErr bool
	}{
		"valid config": {
			input: `apiVersion: skan.jacobcolvin.com/v1beta1
kind: Configuration
rules:
  - match: 'true'
    profile: test
profiles:
  test:
    command: echo
    args: ["test"]
`,
			wantErr: false,
		},
		"valid config with scanner": {
			input: `apiVersion: skan.jacobcolvin.com/v1beta1
kind: Configuration
scanner:
  command: checkov
  framework: kubernetes
exclude: '\.generated\.yaml$'
`,
			wantErr: false,
		},
		"invalid yaml": {
			input: `apiVersion: skan.jacobcolvin.com/v1beta1
kind: Configuration
invalid: [unclosed
`,
			wantErr: true,
			errMsg:  "sequence end token ']' not found",
		},
		"missing required fields": {
			input: `profiles:
  test:
    command: echo
`,
			wantErr: true,
			errMsg:  "missing properties 'apiVersion', 'kind'",
		},
		"scanner missing command": {
			input: `apiVersion: skan.jacobcolvin.com/v1beta1
kind: Configuration
scanner:
  framework: kubernetes
`,
			wantErr: true,
			errMsg:  "missing property 'command'",
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			cl := config.NewLoaderFromBytes([]byte(tc.input), configs.New, configs.DefaultValidator)

			err := cl.Validate()
			if tc.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.errMsg)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestLoader_Load(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		input   string
		errMsg  string
		wantErr bool
	}{
		"valid config": {
			input: `apiVersion: skan.jacobcolvin.com/v1beta1
kind: Configuration
rules:
  - match: 'true'
    profile: test
profiles:
  test:
    command: echo
    args: ["test"]
`,
			wantErr: false,
		},
		"invalid yaml": {
			input: `apiVersion: skan.jacobcolvin.com/v1beta1
kind: Configuration
invalid: [unclosed
`,
			wantErr: true,
			errMsg:  "sequence end token ']' not found",
		},
		"missing required fields still loads": {
			// Load() only parses YAML, it doesn't validate schema.
			// Use Validate() to check schema requirements.
			input: `profiles:
  test:
    command: echo
`,
			wantErr: false,
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			cl := config.NewLoaderFromBytes([]byte(tc.input), configs.New, configs.DefaultValidator)

			cfg, err := cl.Load()
			if tc.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.errMsg)
				assert.Nil(t, cfg)
			} else {
				require.NoError(t, err)
				assert.NotNil(t, cfg)
			}
		})
	}
}

func TestLoader_WithValidator(t *testing.T) {
	t.Parallel()

	input := `apiVersion: skan.jacobcolvin.com/v1beta1
kind: Configuration
`

	// Test with nil validator (no validation).
	cl := config.NewLoaderFromBytes([]byte(input), configs.New, nil, config.WithValidator(nil))
	require.NotNil(t, cl)

	err := cl.Validate()
	require.NoError(t, err)
}

// createTempFile creates a temporary file with the given content.
func createTempFile(t *testing.T, content string) string {
	t.Helper()

	tmpFile, err := os.CreateTemp(t.TempDir(), "config-*.yaml")
	require.NoError(t, err)

	_, err = tmpFile.WriteString(content)
	require.NoError(t, err)

	err = tmpFile.Close()
	require.NoError(t, err)

	return tmpFile.Name()
}

func TestLoader_LoadCallsEnsureDefaults(t *testing.T) {
	t.Parallel()

	// Config with only apiVersion and kind - Scan should be nil before EnsureDefaults.
	input := `apiVersion: skan.jacobcolvin.com/v1beta1
kind: Configuration
`

	cl := config.NewLoaderFromBytes([]byte(input), configs.New, configs.DefaultValidator)

	cfg, err := cl.Load()
	require.NoError(t, err)

	// After Load(), EnsureDefaults should have been called.
	require.NotNil(t, cfg.Scan, "EnsureDefaults should initialize Scan")
	assert.NotNil(t, cfg.Scan.Profiles)
	assert.NotNil(t, cfg.Scan.Rules)
	require.NotNil(t, cfg.Scan.Scanner)
	assert.Equal(t, "checkov", cfg.Scan.Scanner.Command.Command)
}

func TestLoader_RoundTrip(t *testing.T) {
	t.Parallel()

	// Write the embedded default config.
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "config.yaml")

	err := configs.WriteDefault(configPath, false)
	require.NoError(t, err)

	// Load the config.
	cl, err := config.NewLoaderFromFile(configPath, configs.New, configs.DefaultValidator)
	require.NoError(t, err)

	err = cl.Validate()
	require.NoError(t, err)

	cfg, err := cl.Load()
	require.NoError(t, err)

	// Test that the config can be marshaled back to YAML.
	yamlConfig, err := cfg.MarshalYAML()
	require.NoError(t, err)
	assert.NotEmpty(t, yamlConfig)

	// Verify the marshaled config can be loaded again (round-trip test).
	cl2 := config.NewLoaderFromBytes(yamlConfig, configs.New, configs.DefaultValidator)
	cfg2, err := cl2.Load()
	require.NoError(t, err)
	assert.Equal(t, cfg.GetAPIVersion(), cfg2.GetAPIVersion())
	assert.Equal(t, cfg.GetKind(), cfg2.GetKind())
	assert.Len(t, cfg2.Scan.Profiles, len(cfg.Scan.Profiles))
	assert.Len(t, cfg2.Scan.Rules, len(cfg.Scan.Rules))
}
