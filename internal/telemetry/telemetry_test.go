package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap/zaptest"

	"github.com/swarmroute/swarmroute/config"
)

// preserveGlobals snapshots the process-global OTel providers and puts
// them back on cleanup so tests don't leak into each other.
func preserveGlobals(t *testing.T) {
	t.Helper()
	tp := otel.GetTracerProvider()
	mp := otel.GetMeterProvider()
	t.Cleanup(func() {
		otel.SetTracerProvider(tp)
		otel.SetMeterProvider(mp)
	})
}

func TestInitDisabled(t *testing.T) {
	preserveGlobals(t)

	p, err := Init(config.TelemetryConfig{Enabled: false}, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Nil(t, p.traces)
	assert.Nil(t, p.metrics)
}

func TestInitEnabled(t *testing.T) {
	preserveGlobals(t)

	cfg := config.TelemetryConfig{
		Enabled:      true,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "swarmroute-test",
		SampleRate:   0.5,
	}
	p, err := Init(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NotNil(t, p.traces)
	require.NotNil(t, p.metrics)

	// Init must install the SDK providers globally, not leave the noops.
	_, tracesOK := otel.GetTracerProvider().(*sdktrace.TracerProvider)
	_, metricsOK := otel.GetMeterProvider().(*sdkmetric.MeterProvider)
	assert.True(t, tracesOK)
	assert.True(t, metricsOK)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = p.Shutdown(ctx)
	})
}

func TestShutdownNil(t *testing.T) {
	var p *Providers
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestShutdownDisabled(t *testing.T) {
	preserveGlobals(t)

	p, err := Init(config.TelemetryConfig{Enabled: false}, nil)
	require.NoError(t, err)
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestShutdownFlushesProviders(t *testing.T) {
	preserveGlobals(t)

	cfg := config.TelemetryConfig{
		Enabled:      true,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "swarmroute-shutdown-test",
		SampleRate:   1.0,
	}
	p, err := Init(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)

	// No collector is listening, so the exporters may report a dial
	// error. Shutdown still has to finish within the deadline.
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NotPanics(t, func() {
		_ = p.Shutdown(ctx)
	})
}

func TestModuleVersion(t *testing.T) {
	// Test binaries report "(devel)", which maps to the "dev" fallback.
	assert.Equal(t, "dev", moduleVersion())
}
