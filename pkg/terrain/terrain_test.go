package terrain

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/1F47E/go-terrain-grid/internal/observability"
	"github.com/1F47E/go-terrain-grid/pkg/lod"
	"github.com/1F47E/go-terrain-grid/pkg/models"
	"github.com/1F47E/go-terrain-grid/pkg/octet"
)

var unitBox = models.BoundingBox{MinX: 0, MinZ: 0, MaxX: 3, MaxZ: 3}

// lattice returns an n x n grid of coordinates over [0, n-1]^2 with a
// height that encodes the position
func lattice(n int) models.PointSet {
	var ps models.PointSet
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			ps = append(ps, models.Coordinate{X: float64(x), Y: float64(y), Z: float64(10*y + x)})
		}
	}
	return ps
}

func intPtr(v int) *int { return &v }

func TestEndToEndNativeLattice(t *testing.T) {
	tr := New(Request{BBox: unitBox, CRS: "EPSG:WGS 84"}, Config{})
	require.NoError(t, tr.AddGeometry(lattice(4)))

	var buf bytes.Buffer
	n, err := tr.WriteOutput(context.Background(), &buf)
	require.NoError(t, err)
	assert.Equal(t, octet.HeaderSize+4*16, n)
	assert.Equal(t, StateFinalized, tr.State())

	h, g, err := octet.Decode(buf.Bytes(), binary.BigEndian)
	require.NoError(t, err)
	assert.Equal(t, int32(4), h.Width)
	assert.Equal(t, int32(4), h.Height)
	assert.Equal(t, float32(0.75), h.SpacingX)
	assert.Equal(t, float32(0.75), h.SpacingY)

	// interior untouched, upper-right corner smoothed
	assert.Equal(t, 22.0, g.At(1, 1))
	assert.Equal(t, (33.0+32+23+22)/4, g.At(0, 0))
}

func TestBuildNonGeodeticKeepsSize(t *testing.T) {
	tr := New(Request{BBox: models.BoundingBox{MinX: -1, MinZ: -1, MaxX: 4, MaxZ: 4}, CRS: "EPSG:3067"}, Config{})
	require.NoError(t, tr.AddGeometry(lattice(4)))

	g, err := tr.Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, g.Width)
	assert.Equal(t, 4, g.Height)
}

func TestBuildTrimsUncoveredEdges(t *testing.T) {
	// the data stops one unit short of the box on the right and the top
	box := models.BoundingBox{MinX: 0, MinZ: 0, MaxX: 4, MaxZ: 4}
	tr := New(Request{BBox: box, CRS: "EPSG:4326"}, Config{})
	require.NoError(t, tr.AddGeometry(lattice(4)))

	g, err := tr.Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, g.Width)
	assert.Equal(t, 3, g.Height)
}

func TestResamplePath(t *testing.T) {
	res := lod.Resolution{X: 5, Y: 6}
	tr := New(Request{BBox: unitBox, CRS: "EPSG:4326", Resolution: &res}, Config{Workers: 2})
	require.NoError(t, tr.AddGeometry(lattice(4)))

	var buf bytes.Buffer
	_, err := tr.WriteOutput(context.Background(), &buf)
	require.NoError(t, err)

	h, _, err := octet.Decode(buf.Bytes(), nil)
	require.NoError(t, err)
	assert.Equal(t, int32(5), h.Width)
	assert.Equal(t, int32(6), h.Height)
	assert.Equal(t, float32(0.6), h.SpacingX)
	assert.Equal(t, float32(0.5), h.SpacingY)
}

func TestResampleTooSmall(t *testing.T) {
	res := lod.Resolution{X: 2, Y: 8}
	tr := New(Request{BBox: unitBox, CRS: "EPSG:4326", Resolution: &res}, Config{})
	require.NoError(t, tr.AddGeometry(lattice(4)))

	var buf bytes.Buffer
	_, err := tr.WriteOutput(context.Background(), &buf)
	assert.ErrorIs(t, err, models.ErrInvalidTargetSize)
	assert.Zero(t, buf.Len())
}

func TestLittleEndianOutput(t *testing.T) {
	tr := New(Request{BBox: unitBox, CRS: "EPSG:4326"}, Config{ByteOrder: binary.LittleEndian})
	require.NoError(t, tr.AddGeometry(lattice(4)))

	var buf bytes.Buffer
	_, err := tr.WriteOutput(context.Background(), &buf)
	require.NoError(t, err)
	assert.Equal(t, uint32(4), binary.LittleEndian.Uint32(buf.Bytes()[0:4]))
}

func TestStateTransitions(t *testing.T) {
	tr := New(Request{BBox: unitBox, CRS: "EPSG:4326"}, Config{})
	assert.Equal(t, StateEmpty, tr.State())

	require.NoError(t, tr.AddCoordinates(models.Coordinate{X: 1, Y: 1, Z: 5}))
	assert.Equal(t, StateAccumulating, tr.State())

	_, err := tr.Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateFinalized, tr.State())

	err = tr.AddGeometry(lattice(2))
	assert.ErrorIs(t, err, models.ErrInvalidState)

	_, err = tr.Build(context.Background())
	assert.ErrorIs(t, err, models.ErrInvalidState)

	_, err = tr.WriteOutput(context.Background(), &bytes.Buffer{})
	assert.ErrorIs(t, err, models.ErrInvalidState)
}

func TestEmptyInput(t *testing.T) {
	tr := New(Request{BBox: unitBox, CRS: "EPSG:4326"}, Config{})

	var buf bytes.Buffer
	_, err := tr.WriteOutput(context.Background(), &buf)
	assert.ErrorIs(t, err, models.ErrEmptyInput)
	assert.Equal(t, StateFinalized, tr.State())
	assert.Zero(t, buf.Len())
}

func TestRaggedInput(t *testing.T) {
	tr := New(Request{BBox: unitBox, CRS: "EPSG:4326"}, Config{})
	require.NoError(t, tr.AddCoordinates(
		models.Coordinate{X: 0, Y: 0}, models.Coordinate{X: 1, Y: 0}, models.Coordinate{X: 2, Y: 0},
		models.Coordinate{X: 0, Y: 1}, models.Coordinate{X: 1, Y: 1},
	))

	_, err := tr.Build(context.Background())
	assert.ErrorIs(t, err, models.ErrRaggedGrid)
}

func TestDuplicateGeometryIsIgnored(t *testing.T) {
	tr := New(Request{BBox: unitBox, CRS: "EPSG:4326"}, Config{})
	require.NoError(t, tr.AddGeometry(lattice(4)))
	require.NoError(t, tr.AddGeometry(lattice(4)))
	assert.Equal(t, 16, tr.VertexCount())

	g, err := tr.Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, g.Width)
}

func TestAddNilGeometry(t *testing.T) {
	tr := New(Request{}, Config{})
	assert.Error(t, tr.AddGeometry(nil))
	assert.Equal(t, StateEmpty, tr.State())
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("connection reset") }

func TestWriteFailure(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics, err := observability.NewCollector(reg)
	require.NoError(t, err)

	tr := New(Request{BBox: unitBox, CRS: "EPSG:4326"}, Config{Metrics: metrics})
	require.NoError(t, tr.AddGeometry(lattice(4)))

	_, err = tr.WriteOutput(context.Background(), failingWriter{})
	assert.ErrorIs(t, err, models.ErrWrite)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Requests.WithLabelValues(observability.PathNative, observability.ResultError)))
}

func TestResolveLOD(t *testing.T) {
	table := lod.Table{1: 1000, 3: 500, 5: 100}
	planar := models.BoundingBox{MinX: 0, MinZ: 0, MaxX: 3000, MaxZ: 6000}

	testCases := []struct {
		name     string
		req      Request
		table    lod.Table
		expected int
	}{
		{"explicit exact", Request{LOD: intPtr(3)}, table, 3},
		{"explicit falls back down", Request{LOD: intPtr(4)}, table, 3},
		{"explicit falls back up", Request{LOD: intPtr(0)}, table, 1},
		{"explicit beats resolution", Request{LOD: intPtr(5), Resolution: &lod.Resolution{X: 1, Y: 1}, BBox: planar}, table, 5},
		{"from resolution", Request{BBox: planar, CRS: "EPSG:3067", Resolution: &lod.Resolution{X: 10, Y: 10}}, table, 3},
		{"default lowest", Request{}, table, 1},
		{"default lowest available", Request{}, lod.Table{2: 800, 4: 400}, 2},
		{"incomplete resolution ignored", Request{Resolution: &lod.Resolution{X: 10}}, table, 1},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			id, err := New(tc.req, Config{}).ResolveLOD(tc.table)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, id)
		})
	}
}

func TestResolveLODGeodetic(t *testing.T) {
	// one degree square at the equator, ~111 km per side
	box := models.BoundingBox{MinX: 0, MinZ: 0, MaxX: 1, MaxZ: 1}
	res := lod.Resolution{X: 100, Y: 100}
	table := lod.Table{1: 5000, 2: 2000, 3: 1000, 4: 500}

	id, err := New(Request{BBox: box, CRS: "EPSG:4326", Resolution: &res}, Config{}).ResolveLOD(table)
	require.NoError(t, err)
	assert.Equal(t, 2, id)
}

func TestResolveLODCached(t *testing.T) {
	tr := New(Request{LOD: intPtr(3)}, Config{})

	id, err := tr.ResolveLOD(lod.Table{3: 500})
	require.NoError(t, err)
	assert.Equal(t, 3, id)

	id, err = tr.ResolveLOD(lod.Table{7: 10})
	require.NoError(t, err)
	assert.Equal(t, 3, id)
}

func TestResolveLODEmptyTable(t *testing.T) {
	_, err := New(Request{}, Config{}).ResolveLOD(nil)
	assert.ErrorIs(t, err, models.ErrNoLOD)
}

func TestResolveLODAfterFinalize(t *testing.T) {
	table := lod.Table{1: 1000, 3: 500}

	late := New(Request{BBox: unitBox, CRS: "EPSG:4326"}, Config{})
	require.NoError(t, late.AddGeometry(lattice(4)))
	_, err := late.WriteOutput(context.Background(), &bytes.Buffer{})
	require.NoError(t, err)

	_, err = late.ResolveLOD(table)
	assert.ErrorIs(t, err, models.ErrInvalidState)

	early := New(Request{BBox: unitBox, CRS: "EPSG:4326", LOD: intPtr(3)}, Config{})
	id, err := early.ResolveLOD(table)
	require.NoError(t, err)
	require.NoError(t, early.AddGeometry(lattice(4)))
	_, err = early.WriteOutput(context.Background(), &bytes.Buffer{})
	require.NoError(t, err)

	// a result cached before finalize is still returned
	id2, err := early.ResolveLOD(table)
	require.NoError(t, err)
	assert.Equal(t, id, id2)
}

func TestLogsTiming(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	tr := New(Request{BBox: unitBox, CRS: "EPSG:4326"}, Config{Logger: zap.New(core)})
	require.NoError(t, tr.AddGeometry(lattice(4)))

	_, err := tr.WriteOutput(context.Background(), &bytes.Buffer{})
	require.NoError(t, err)

	entries := logs.FilterMessage("terrain written").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, int64(4), fields["width"])
	assert.Equal(t, int64(octet.HeaderSize+4*16), fields["bytes"])
	assert.Contains(t, fields, "elapsed")
}

func TestSpans(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))

	tr := New(Request{BBox: unitBox, CRS: "EPSG:4326"}, Config{Tracer: tp.Tracer(observability.TracerName)})
	require.NoError(t, tr.AddGeometry(lattice(4)))
	_, err := tr.WriteOutput(context.Background(), &bytes.Buffer{})
	require.NoError(t, err)

	var names []string
	for _, s := range sr.Ended() {
		names = append(names, s.Name())
	}
	assert.ElementsMatch(t, []string{"terrain.grid", "terrain.border", "terrain.build", "terrain.write"}, names)
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics, err := observability.NewCollector(reg)
	require.NoError(t, err)

	res := lod.Resolution{X: 8, Y: 8}
	tr := New(Request{BBox: unitBox, CRS: "EPSG:4326", Resolution: &res}, Config{Metrics: metrics})
	require.NoError(t, tr.AddGeometry(lattice(4)))
	_, err = tr.Build(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Requests.WithLabelValues(observability.PathResampled, observability.ResultOK)))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.Requests.WithLabelValues(observability.PathNative, observability.ResultOK)))
}

func BenchmarkWriteOutput(b *testing.B) {
	coords := lattice(64)
	box := models.BoundingBox{MinX: 0, MinZ: 0, MaxX: 63, MaxZ: 63}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		tr := New(Request{BBox: box, CRS: "EPSG:4326"}, Config{})
		if err := tr.AddGeometry(coords); err != nil {
			b.Fatal(err)
		}
		if _, err := tr.WriteOutput(context.Background(), &bytes.Buffer{}); err != nil {
			b.Fatal(err)
		}
	}
}
