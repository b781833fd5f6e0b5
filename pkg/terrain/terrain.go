// Package terrain drives one height-field request from accumulated
// geometry to the encoded output stream.
package terrain

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/1F47E/go-terrain-grid/internal/observability"
	"github.com/1F47E/go-terrain-grid/pkg/border"
	"github.com/1F47E/go-terrain-grid/pkg/grid"
	"github.com/1F47E/go-terrain-grid/pkg/lod"
	"github.com/1F47E/go-terrain-grid/pkg/models"
	"github.com/1F47E/go-terrain-grid/pkg/octet"
	"github.com/1F47E/go-terrain-grid/pkg/resample"
	"github.com/1F47E/go-terrain-grid/pkg/spatial"
)

// State is the lifecycle stage of a Terrain
type State int

const (
	StateEmpty State = iota
	StateAccumulating
	StateFinalized
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateAccumulating:
		return "accumulating"
	case StateFinalized:
		return "finalized"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Request describes what to render. LOD takes priority over Resolution
// when choosing a level of detail; a valid Resolution always selects the
// resampling path for the output grid.
type Request struct {
	BBox       models.BoundingBox
	CRS        string
	LOD        *int
	Resolution *lod.Resolution
}

func (r Request) targetResolution() (lod.Resolution, bool) {
	if r.Resolution == nil || !r.Resolution.Valid() {
		return lod.Resolution{}, false
	}
	return *r.Resolution, true
}

// Terrain accumulates vertices for one request and produces its grid.
// It is owned by a single goroutine and cannot be reused once finalized.
type Terrain struct {
	req      Request
	cfg      Config
	state    State
	vertices *models.VertexSet

	lodResolved bool
	lodID       int
	lodErr      error
}

// New starts a request. Coordinates passed to it later are expected to be
// finite; NaN or infinite values are not filtered and end up either as a
// ragged grid error or in the output heights.
func New(req Request, cfg Config) *Terrain {
	return &Terrain{
		req:      req,
		cfg:      cfg.withDefaults(),
		state:    StateEmpty,
		vertices: models.NewVertexSet(),
	}
}

// State returns the current lifecycle stage
func (t *Terrain) State() State {
	return t.state
}

// VertexCount returns the number of distinct vertices accumulated so far
func (t *Terrain) VertexCount() int {
	return t.vertices.Len()
}

func (t *Terrain) geodetic() bool {
	return border.IsGeodetic(t.req.CRS, t.cfg.GeodeticCRS)
}

// ResolveLOD chooses the level of detail for the request from table.
// An explicit LOD wins, then the spacing implied by the requested
// resolution, then the lowest available LOD. The answer of the first
// call is returned by every later one. The first call must happen before
// the terrain is finalized.
func (t *Terrain) ResolveLOD(table lod.Table) (int, error) {
	if t.lodResolved {
		return t.lodID, t.lodErr
	}
	if t.state == StateFinalized {
		return 0, fmt.Errorf("%w: LOD must be resolved before finalize", models.ErrInvalidState)
	}
	t.lodResolved = true
	t.lodID, t.lodErr = t.resolveLOD(table)

	if t.lodErr == nil {
		t.cfg.Logger.Debug("resolved LOD", zap.Int("lod", t.lodID))
	}
	return t.lodID, t.lodErr
}

func (t *Terrain) resolveLOD(table lod.Table) (int, error) {
	var (
		id int
		ok bool
	)

	switch res, hasRes := t.req.targetResolution(); {
	case t.req.LOD != nil:
		id, ok = table.Closest(*t.req.LOD)
	case hasRes:
		dx, dy, err := lod.SampleDistance(t.req.BBox, res, t.geodetic())
		if err != nil {
			return 0, err
		}
		t.cfg.Logger.Debug("sample distance",
			zap.Float64("dx", dx),
			zap.Float64("dy", dy),
			zap.Bool("geodetic", t.geodetic()))
		id, ok = table.ClosestByDistance(dx, dy)
	default:
		id, ok = table.Closest(1)
	}

	if !ok {
		return 0, models.ErrNoLOD
	}
	return id, nil
}

// AddGeometry adds every coordinate of g to the request
func (t *Terrain) AddGeometry(g models.Geometry) error {
	if t.state == StateFinalized {
		return fmt.Errorf("%w: cannot add geometry after finalize", models.ErrInvalidState)
	}
	if g == nil {
		return errors.New("geometry is nil")
	}

	for _, c := range g.Coordinates() {
		t.vertices.Add(c.Vertex())
	}
	t.state = StateAccumulating
	return nil
}

// AddCoordinates adds raw coordinates to the request
func (t *Terrain) AddCoordinates(coords ...models.Coordinate) error {
	return t.AddGeometry(models.PointSet(coords))
}

// Build finalizes the request and returns its height grid
func (t *Terrain) Build(ctx context.Context) (*grid.Grid, error) {
	if err := t.finalize(); err != nil {
		return nil, err
	}

	g, err := t.build(ctx)
	t.observe(err)
	return g, err
}

// WriteOutput finalizes the request and writes the encoded grid to w in
// a single write. On error nothing has been written unless w itself
// accepted part of the stream before failing.
func (t *Terrain) WriteOutput(ctx context.Context, w io.Writer) (int, error) {
	if err := t.finalize(); err != nil {
		return 0, err
	}
	start := time.Now()

	ctx, span := t.cfg.Tracer.Start(ctx, "terrain.write")
	defer span.End()

	n, g, err := t.buildAndWrite(ctx, w)
	t.observe(err)
	if err != nil {
		fail(span, err)
		return n, err
	}

	span.SetAttributes(attribute.Int("bytes", n))
	t.cfg.Logger.Info("terrain written",
		zap.Int("width", g.Width),
		zap.Int("height", g.Height),
		zap.Int("bytes", n),
		zap.Duration("elapsed", time.Since(start)))
	return n, nil
}

func (t *Terrain) buildAndWrite(ctx context.Context, w io.Writer) (int, *grid.Grid, error) {
	g, err := t.build(ctx)
	if err != nil {
		return 0, nil, err
	}

	start := time.Now()
	n, err := octet.Write(w, g, t.req.BBox, t.cfg.ByteOrder)
	t.cfg.Metrics.ObservePhase("write", time.Since(start))
	if err != nil {
		return n, nil, err
	}
	return n, g, nil
}

func (t *Terrain) finalize() error {
	if t.state == StateFinalized {
		return fmt.Errorf("%w: already finalized", models.ErrInvalidState)
	}
	t.state = StateFinalized
	return nil
}

func (t *Terrain) path() string {
	if _, ok := t.req.targetResolution(); ok {
		return observability.PathResampled
	}
	return observability.PathNative
}

func (t *Terrain) observe(err error) {
	result := observability.ResultOK
	if err != nil {
		result = observability.ResultError
	}
	t.cfg.Metrics.ObserveRequest(t.path(), result)
}

func (t *Terrain) build(ctx context.Context) (*grid.Grid, error) {
	ctx, span := t.cfg.Tracer.Start(ctx, "terrain.build", trace.WithAttributes(
		attribute.String("crs", t.req.CRS),
		attribute.String("path", t.path()),
		attribute.Int("vertices", t.vertices.Len()),
	))
	defer span.End()

	if t.vertices.Len() == 0 {
		fail(span, models.ErrEmptyInput)
		return nil, models.ErrEmptyInput
	}

	g, err := t.buildGrid(ctx)
	if err != nil {
		fail(span, err)
		return nil, err
	}

	if res, ok := t.req.targetResolution(); ok {
		g, err = t.resample(ctx, g, res)
	} else {
		g, err = t.correct(ctx, g)
	}
	if err != nil {
		fail(span, err)
		return nil, err
	}

	t.cfg.Metrics.ObserveGrid(t.vertices.Len(), g.Width*g.Height)
	span.SetAttributes(attribute.Int("width", g.Width), attribute.Int("height", g.Height))
	return g, nil
}

func (t *Terrain) buildGrid(ctx context.Context) (*grid.Grid, error) {
	_, span := t.cfg.Tracer.Start(ctx, "terrain.grid")
	defer span.End()
	start := time.Now()

	rows, err := grid.Build(t.vertices, t.cfg.RowTolerance)
	if err != nil {
		return nil, fmt.Errorf("failed to cluster vertices: %w", err)
	}
	g, err := grid.FromRows(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to build grid: %w", err)
	}

	t.cfg.Metrics.ObservePhase("grid", time.Since(start))
	t.cfg.Logger.Debug("grid built",
		zap.Int("vertices", t.vertices.Len()),
		zap.Int("width", g.Width),
		zap.Int("height", g.Height))
	return g, nil
}

func (t *Terrain) correct(ctx context.Context, g *grid.Grid) (*grid.Grid, error) {
	_, span := t.cfg.Tracer.Start(ctx, "terrain.border")
	defer span.End()
	start := time.Now()

	corrector := &border.Corrector{
		Tolerance:   t.cfg.EdgeTolerance,
		GeodeticCRS: t.cfg.GeodeticCRS,
		Logger:      t.cfg.Logger,
	}

	var index *spatial.VertexIndex
	if corrector.IsGeodetic(t.req.CRS) {
		index = spatial.NewVertexIndexWithPartitions(t.req.BBox, t.cfg.Workers)
		index.IndexVertices(t.vertices.Vertices())
	}

	out, err := corrector.Correct(g, index, t.req.BBox, t.req.CRS)
	if err != nil {
		return nil, fmt.Errorf("failed to correct borders: %w", err)
	}
	t.cfg.Metrics.ObservePhase("border", time.Since(start))
	return out, nil
}

func (t *Terrain) resample(ctx context.Context, g *grid.Grid, res lod.Resolution) (*grid.Grid, error) {
	_, span := t.cfg.Tracer.Start(ctx, "terrain.resample", trace.WithAttributes(
		attribute.String("kernel", t.cfg.Kernel.Name()),
		attribute.String("target", res.String()),
	))
	defer span.End()
	start := time.Now()

	out, err := resample.New(t.cfg.Kernel, t.cfg.Workers).Resample(g, res.X, res.Y)
	if err != nil {
		return nil, fmt.Errorf("failed to resample grid: %w", err)
	}

	t.cfg.Metrics.ObservePhase("resample", time.Since(start))
	t.cfg.Logger.Debug("grid resampled",
		zap.Int("from_width", g.Width),
		zap.Int("from_height", g.Height),
		zap.Stringer("to", res))
	return out, nil
}

func fail(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
