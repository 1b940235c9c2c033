package yaml_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macropower/skan/pkg/yaml"
)

func TestYAMLError(t *testing.T) {
	t.Parallel()

	err := yaml.NewError(
		errors.New("test error"),
		yaml.WithPath(yaml.NewPathBuilder().Root().Child("key").Build()),
		yaml.WithSourceLines(2),
		yaml.WithSource([]byte(`a: b
b: c
foo: "bar"
key: value
baz: 5
c: d
e: f`)),
	)

	require.Error(t, err)

	msg := err.Error()
	assert.Contains(t, msg, "test error")
	assert.Contains(t, msg, "key: value")
	// The error line is marked and the column marker points at the key.
	assert.Contains(t, msg, "> 4 | key: value")
	assert.Contains(t, msg, "^")
}

func TestYAMLError_NoAnnotation(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		err  *yaml.Error
		want string
	}{
		"nil inner error": {
			err:  yaml.NewError(nil),
			want: "",
		},
		"no path or token": {
			err:  yaml.NewError(errors.New("plain error")),
			want: "plain error",
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.want, tc.err.Error())
		})
	}
}

func TestErrorWrapper(t *testing.T) {
	t.Parallel()

	source := []byte("key: value\n")
	ew := yaml.NewErrorWrapper(yaml.WithSource(source))

	t.Run("wraps yaml errors", func(t *testing.T) {
		t.Parallel()

		inner := yaml.NewError(
			errors.New("bad value"),
			yaml.WithPath(yaml.NewPathBuilder().Root().Child("key").Build()),
		)

		err := ew.Wrap(inner)
		require.Error(t, err)

		var yamlErr *yaml.Error
		require.ErrorAs(t, err, &yamlErr)
		assert.Equal(t, source, yamlErr.Source)
	})

	t.Run("passes through other errors", func(t *testing.T) {
		t.Parallel()

		inner := errors.New("not a yaml error")
		err := ew.Wrap(inner)
		assert.Equal(t, inner, err)
	})

	t.Run("nil error", func(t *testing.T) {
		t.Parallel()

		assert.NoError(t, ew.Wrap(nil))
	})
}
