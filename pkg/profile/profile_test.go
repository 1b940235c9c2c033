package profile_test

import (
	"testing"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macropower/skan/pkg/execs"
	"github.com/macropower/skan/pkg/profile"
)

func TestNew(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		command string
		opts    []profile.ProfileOpt
		wantErr bool
	}{
		{
			name:    "valid profile",
			command: "echo",
			opts:    []profile.ProfileOpt{profile.WithArgs("hello")},
			wantErr: false,
		},
		{
			name:    "profile with source expression",
			command: "kubectl",
			opts: []profile.ProfileOpt{
				profile.WithArgs("apply", "-f", "-"),
				profile.WithSource(`files.filter(f, pathExt(f) in [".yaml", ".yml"])`),
			},
			wantErr: false,
		},
		{
			name:    "profile with invalid source expression",
			command: "kubectl",
			opts: []profile.ProfileOpt{
				profile.WithSource("invalid.expression()"),
			},
			wantErr: true,
		},
		{
			name:    "profile with reload expression",
			command: "echo",
			opts: []profile.ProfileOpt{
				profile.WithReload(`fs.event.has(fs.WRITE)`),
			},
			wantErr: false,
		},
		{
			name:    "profile with invalid reload expression",
			command: "echo",
			opts: []profile.ProfileOpt{
				profile.WithReload("not.a.thing()"),
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p, err := profile.New(tt.command, tt.opts...)

			if tt.wantErr {
				require.Error(t, err)
				assert.Nil(t, p)
			} else {
				require.NoError(t, err)
				require.NotNil(t, p)
				assert.Equal(t, tt.command, p.Command.Command)
			}
		})
	}
}

func TestMustNew(t *testing.T) {
	t.Parallel()

	t.Run("valid profile", func(t *testing.T) {
		t.Parallel()

		p := profile.MustNew("echo", profile.WithArgs("test"))
		require.NotNil(t, p)
		assert.Equal(t, "echo", p.Command.Command)
		assert.Equal(t, []string{"test"}, p.Command.Args)
	})

	t.Run("invalid profile panics", func(t *testing.T) {
		t.Parallel()

		assert.Panics(t, func() {
			profile.MustNew("test", profile.WithSource("invalid.expression()"))
		})
	})
}

func TestProfile_MatchFiles(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		source        string
		files         []string
		expectedFiles []string
		expectedMatch bool
	}{
		{
			name:          "no source expression",
			source:        "",
			files:         []string{"/app/test.yaml", "/app/config.json"},
			expectedMatch: true,
			expectedFiles: nil, // nil means use default filtering
		},
		{
			name:          "filter yaml files",
			source:        `files.filter(f, pathExt(f) in [".yaml", ".yml"])`,
			files:         []string{"/app/test.yaml", "/app/config.json", "/app/service.yml"},
			expectedMatch: true,
			expectedFiles: []string{"/app/test.yaml", "/app/service.yml"},
		},
		{
			name:          "no matches",
			source:        `files.filter(f, pathExt(f) == ".xml")`,
			files:         []string{"/app/test.yaml", "/app/config.json"},
			expectedMatch: false,
			expectedFiles: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			opts := []profile.ProfileOpt{}
			if tt.source != "" {
				opts = append(opts, profile.WithSource(tt.source))
			}

			p, err := profile.New("test", opts...)
			require.NoError(t, err)

			match, files := p.MatchFiles("/app", tt.files)
			assert.Equal(t, tt.expectedMatch, match)
			if tt.expectedFiles != nil {
				assert.ElementsMatch(t, tt.expectedFiles, files)
			} else {
				assert.Nil(t, files)
			}
		})
	}
}

func TestProfile_MatchFileEvent(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		reload  string
		file    string
		op      fsnotify.Op
		want    bool
		wantErr bool
	}{
		"no reload expression always reloads": {
			reload: "",
			file:   "/app/deployment.yaml",
			op:     fsnotify.Write,
			want:   true,
		},
		"matching event": {
			reload: `fs.event.has(fs.WRITE, fs.RENAME)`,
			file:   "/app/deployment.yaml",
			op:     fsnotify.Write,
			want:   true,
		},
		"non-matching event": {
			reload: `fs.event.has(fs.WRITE)`,
			file:   "/app/deployment.yaml",
			op:     fsnotify.Chmod,
			want:   false,
		},
		"file name filter": {
			reload: `pathBase(file) != "kustomization.yaml"`,
			file:   "/app/kustomization.yaml",
			op:     fsnotify.Write,
			want:   false,
		},
		"non-boolean result": {
			reload:  `pathBase(file)`,
			file:    "/app/deployment.yaml",
			op:      fsnotify.Write,
			wantErr: true,
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			opts := []profile.ProfileOpt{}
			if tc.reload != "" {
				opts = append(opts, profile.WithReload(tc.reload))
			}

			p, err := profile.New("echo", opts...)
			require.NoError(t, err)

			got, err := p.MatchFileEvent(tc.file, tc.op)

			if tc.wantErr {
				require.Error(t, err)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestProfile_Exec(t *testing.T) {
	t.Parallel()

	t.Run("successful execution", func(t *testing.T) {
		t.Parallel()

		p := profile.MustNew("echo", profile.WithArgs("hello", "world"))
		result, err := p.Exec(t.Context(), "/tmp")

		require.NoError(t, err)
		require.NotNil(t, result)
		assert.Contains(t, result.Stdout, "hello world")
		assert.Empty(t, result.Stderr)
	})

	t.Run("failed execution", func(t *testing.T) {
		t.Parallel()

		p := profile.MustNew("false") // command that always fails
		_, err := p.Exec(t.Context(), "/tmp")

		require.Error(t, err)
		require.ErrorIs(t, err, execs.ErrCommandExecution)
	})

	t.Run("empty command", func(t *testing.T) {
		t.Parallel()

		p := profile.MustNew("")
		_, err := p.Exec(t.Context(), "/tmp")

		require.Error(t, err)
		require.ErrorIs(t, err, execs.ErrEmptyCommand)
	})

	t.Run("extra args are appended", func(t *testing.T) {
		t.Parallel()

		p := profile.MustNew("echo",
			profile.WithArgs("a"),
			profile.WithExtraArgs("b"),
		)
		result, err := p.Exec(t.Context(), "/tmp")

		require.NoError(t, err)
		require.NotNil(t, result)
		assert.Contains(t, result.Stdout, "a b")
	})
}

func TestProfile_WithHooks(t *testing.T) {
	t.Parallel()

	t.Run("successful pre-render hook", func(t *testing.T) {
		t.Parallel()

		hooks := profile.MustNewHooks(
			profile.WithPreRender(
				profile.MustNewHookCommand("echo", profile.WithHookArgs("pre-render")),
			),
		)

		p := profile.MustNew("echo",
			profile.WithArgs("main command"),
			profile.WithHooks(hooks),
		)

		result, err := p.Exec(t.Context(), "/tmp")
		require.NoError(t, err)
		require.NotNil(t, result)
		assert.Contains(t, result.Stdout, "main command")
	})

	t.Run("failing pre-render hook", func(t *testing.T) {
		t.Parallel()

		hooks := profile.MustNewHooks(
			profile.WithPreRender(
				profile.MustNewHookCommand("false"), // always fails
			),
		)

		p := profile.MustNew("echo",
			profile.WithArgs("should not execute"),
			profile.WithHooks(hooks),
		)

		_, err := p.Exec(t.Context(), "/tmp")
		require.Error(t, err)
		require.ErrorIs(t, err, profile.ErrHookExecution)
		assert.Contains(t, err.Error(), "preRender")
	})

	t.Run("successful post-render hook", func(t *testing.T) {
		t.Parallel()

		hooks := profile.MustNewHooks(
			profile.WithPostRender(
				profile.MustNewHookCommand("grep", profile.WithHookArgs("main")),
			),
		)

		p := profile.MustNew("echo",
			profile.WithArgs("main command output"),
			profile.WithHooks(hooks),
		)

		result, err := p.Exec(t.Context(), "/tmp")
		require.NoError(t, err)
		require.NotNil(t, result)
		assert.Contains(t, result.Stdout, "main command output")
	})

	t.Run("failing post-render hook", func(t *testing.T) {
		t.Parallel()

		hooks := profile.MustNewHooks(
			profile.WithPostRender(
				profile.MustNewHookCommand("grep", profile.WithHookArgs("no-such-text")),
			),
		)

		p := profile.MustNew("echo",
			profile.WithArgs("main command output"),
			profile.WithHooks(hooks),
		)

		_, err := p.Exec(t.Context(), "/tmp")
		require.Error(t, err)
		require.ErrorIs(t, err, profile.ErrHookExecution)
		assert.Contains(t, err.Error(), "postRender")
	})
}
