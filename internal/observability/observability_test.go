package observability

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func histogramSampleCount(t *testing.T, families []*dto.MetricFamily, name string) uint64 {
	t.Helper()
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		var total uint64
		for _, m := range mf.GetMetric() {
			total += m.GetHistogram().GetSampleCount()
		}
		return total
	}
	return 0
}

func TestCollectorRecords(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewCollector(reg)
	require.NoError(t, err)

	c.ObserveRequest(PathNative, ResultOK)
	c.ObserveRequest(PathNative, ResultOK)
	c.ObserveRequest(PathResampled, ResultError)
	c.ObservePhase("grid", 3*time.Millisecond)
	c.ObserveGrid(16, 16)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.Requests.WithLabelValues(PathNative, ResultOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Requests.WithLabelValues(PathResampled, ResultError)))

	families, err := c.Gather()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), histogramSampleCount(t, families, "terrain_phase_duration_seconds"))
	assert.Equal(t, uint64(1), histogramSampleCount(t, families, "terrain_output_cells"))
	assert.Equal(t, uint64(1), histogramSampleCount(t, families, "terrain_input_vertices"))
}

func TestCollectorReRegisterReusesExisting(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewCollector(reg)
	require.NoError(t, err)
	second, err := NewCollector(reg)
	require.NoError(t, err)

	first.ObserveRequest(PathNative, ResultOK)
	assert.Equal(t, 1.0, testutil.ToFloat64(second.Requests.WithLabelValues(PathNative, ResultOK)))
}

func TestCollectorIncompatibleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "terrain_requests_total",
		Help: "Total number of finalized terrain requests, labeled by build path and result.",
	}))

	_, err := NewCollector(reg)
	assert.Error(t, err)
}

func TestNilCollectorIsSafe(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.ObserveRequest(PathNative, ResultOK)
		c.ObservePhase("grid", time.Second)
		c.ObserveGrid(1, 1)
	})
}

func TestWriteText(t *testing.T) {
	c, err := NewCollector(prometheus.NewRegistry())
	require.NoError(t, err)
	c.ObserveRequest(PathResampled, ResultOK)

	var buf bytes.Buffer
	require.NoError(t, c.WriteText(&buf))
	assert.Contains(t, buf.String(), `terrain_requests_total{path="resampled",result="ok"} 1`)
}

func TestInitTracingDisabled(t *testing.T) {
	tp, shutdown, err := InitTracing(context.Background(), TracingConfig{}, nil)
	require.NoError(t, err)

	_, span := tp.Tracer(TracerName).Start(context.Background(), "noop")
	assert.False(t, span.SpanContext().IsValid())
	span.End()
	assert.NoError(t, shutdown(context.Background()))
}

func TestInitTracingExportsSpans(t *testing.T) {
	var buf bytes.Buffer
	tp, shutdown, err := InitTracing(context.Background(), TracingConfig{
		Enabled:     true,
		ServiceName: "terrain-test",
		Writer:      &buf,
	}, nil)
	require.NoError(t, err)

	_, span := tp.Tracer(TracerName).Start(context.Background(), "terrain.build")
	assert.True(t, span.SpanContext().IsValid())
	span.End()

	ShutdownWithTimeout(context.Background(), shutdown, nil)
	assert.Contains(t, buf.String(), "terrain.build")
	assert.Contains(t, buf.String(), "terrain-test")
}
