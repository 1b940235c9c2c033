package telemetry_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macropower/skan/pkg/telemetry"
)

//nolint:paralleltest // Uses t.Setenv.
func TestEnabled(t *testing.T) {
	tcs := map[string]struct {
		endpoint       string
		tracesEndpoint string
		want           bool
	}{
		"no endpoints": {
			want: false,
		},
		"generic endpoint": {
			endpoint: "http://localhost:4317",
			want:     true,
		},
		"traces endpoint": {
			tracesEndpoint: "http://localhost:4317",
			want:           true,
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", tc.endpoint)
			t.Setenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT", tc.tracesEndpoint)

			assert.Equal(t, tc.want, telemetry.Enabled())
		})
	}
}

//nolint:paralleltest // Uses t.Setenv.
func TestSetup(t *testing.T) {
	t.Run("disabled without endpoint", func(t *testing.T) {
		t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
		t.Setenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT", "")

		shutdown, err := telemetry.Setup(t.Context(), "skan", "test")
		require.NoError(t, err)
		assert.Nil(t, shutdown)
	})

	t.Run("enabled with endpoint", func(t *testing.T) {
		// The gRPC client dials lazily, so no collector is needed.
		t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "http://localhost:4317")

		shutdown, err := telemetry.Setup(t.Context(), "skan", "test")
		require.NoError(t, err)
		require.NotNil(t, shutdown)

		ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
		defer cancel()

		err = shutdown(ctx)
		require.NoError(t, err)
	})
}
