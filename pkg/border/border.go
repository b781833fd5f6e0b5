// Package border suppresses sampling artifacts along the edges of a
// native-resolution terrain grid.
package border

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/1F47E/go-terrain-grid/pkg/grid"
	"github.com/1F47E/go-terrain-grid/pkg/models"
	"github.com/1F47E/go-terrain-grid/pkg/spatial"
)

// DefaultEdgeTolerance is the absolute distance at which a vertex counts
// as lying on a bounding box edge.
const DefaultEdgeTolerance = 1e-5

// DefaultGeodeticCRS lists the CRS names treated as lat/lon datums
var DefaultGeodeticCRS = []string{"EPSG:WGS 84", "EPSG:4326", "CRS:84"}

// Edges is a set of bounding box sides
type Edges struct {
	Left  bool // minimum X, last grid column
	Right bool // maximum X, first grid column
	Upper bool // maximum Z, first grid row
	Lower bool // minimum Z, last grid row
}

// AllEdges selects every side
var AllEdges = Edges{Left: true, Right: true, Upper: true, Lower: true}

func (e Edges) String() string {
	var parts []string
	if e.Left {
		parts = append(parts, "left")
	}
	if e.Right {
		parts = append(parts, "right")
	}
	if e.Upper {
		parts = append(parts, "upper")
	}
	if e.Lower {
		parts = append(parts, "lower")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ",")
}

// Corrector trims and smooths grid borders
type Corrector struct {
	Tolerance   float64
	GeodeticCRS []string
	Logger      *zap.Logger
}

// NewCorrector returns a corrector with default tolerance and CRS names
func NewCorrector(logger *zap.Logger) *Corrector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Corrector{
		Tolerance:   DefaultEdgeTolerance,
		GeodeticCRS: DefaultGeodeticCRS,
		Logger:      logger,
	}
}

// IsGeodetic reports whether crs names a lat/lon datum
func (c *Corrector) IsGeodetic(crs string) bool {
	return IsGeodetic(crs, c.GeodeticCRS)
}

// IsGeodetic reports whether crs matches one of names, ignoring case
func IsGeodetic(crs string, names []string) bool {
	for _, name := range names {
		if strings.EqualFold(crs, name) {
			return true
		}
	}
	return false
}

// Correct trims and smooths g in place and returns it.
//
// For geodetic CRS the edges without a vertex within tolerance lose one
// row or column, and the remaining covered edges are smoothed. Other CRS
// are smoothed on every side with no trimming, since a tolerance in
// degrees means nothing in projected units.
func (c *Corrector) Correct(g *grid.Grid, index *spatial.VertexIndex, bbox models.BoundingBox, crs string) (*grid.Grid, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}

	if !c.IsGeodetic(crs) {
		c.Logger.Debug("non-geodetic CRS, smoothing all edges", zap.String("crs", crs))
		Smooth(g, AllEdges)
		return g, nil
	}

	covered, err := c.Coverage(index, bbox)
	if err != nil {
		return nil, err
	}
	c.Logger.Debug("edge coverage",
		zap.Stringer("covered", covered),
		zap.Int("width", g.Width),
		zap.Int("height", g.Height))

	Trim(g, Edges{
		Left:  !covered.Left,
		Right: !covered.Right,
		Upper: !covered.Upper,
		Lower: !covered.Lower,
	})
	Smooth(g, covered)
	return g, nil
}

// Coverage reports for each edge whether some vertex lies within tolerance of it
func (c *Corrector) Coverage(index *spatial.VertexIndex, bbox models.BoundingBox) (Edges, error) {
	if index == nil {
		return Edges{}, fmt.Errorf("vertex index is required for edge detection")
	}
	tol := c.Tolerance
	if tol <= 0 {
		tol = DefaultEdgeTolerance
	}

	// Only the coordinate across the edge matters, so strips run over
	// everything that was indexed.
	span := bbox
	if data, ok := index.DataBounds(); ok {
		span = union(bbox, data)
	}

	var covered Edges
	strips := []edgeStrip{
		{&covered.Left, verticalStrip(bbox.MinX, span, tol)},
		{&covered.Right, verticalStrip(bbox.MaxX, span, tol)},
		{&covered.Lower, horizontalStrip(bbox.MinZ, span, tol)},
		{&covered.Upper, horizontalStrip(bbox.MaxZ, span, tol)},
	}

	for _, s := range strips {
		found, err := index.Any(s.box)
		if err != nil {
			return Edges{}, fmt.Errorf("failed to query edge strip: %w", err)
		}
		*s.flag = found
	}
	return covered, nil
}

type edgeStrip struct {
	flag *bool
	box  models.BoundingBox
}

func verticalStrip(x float64, span models.BoundingBox, tol float64) models.BoundingBox {
	return models.BoundingBox{MinX: x - tol, MinZ: span.MinZ - tol, MaxX: x + tol, MaxZ: span.MaxZ + tol}
}

func horizontalStrip(z float64, span models.BoundingBox, tol float64) models.BoundingBox {
	return models.BoundingBox{MinX: span.MinX - tol, MinZ: z - tol, MaxX: span.MaxX + tol, MaxZ: z + tol}
}

func union(a, b models.BoundingBox) models.BoundingBox {
	return models.BoundingBox{
		MinX: min(a.MinX, b.MinX),
		MinZ: min(a.MinZ, b.MinZ),
		MaxX: max(a.MaxX, b.MaxX),
		MaxZ: max(a.MaxZ, b.MaxZ),
	}
}

// Trim drops the outer column or row of every selected edge.
// A dimension is never reduced below one sample.
func Trim(g *grid.Grid, edges Edges) {
	if edges.Left && g.Width > 1 {
		g.DropColumn(g.Width - 1)
	}
	if edges.Right && g.Width > 1 {
		g.DropColumn(0)
	}
	if edges.Upper && g.Height > 1 {
		g.DropRow(0)
	}
	if edges.Lower && g.Height > 1 {
		g.DropRow(g.Height - 1)
	}
}

// Smooth averages border cells of the selected edges with their inward
// neighbours. Corners take the mean of themselves, their two in-grid
// neighbours and the diagonal, and are only touched when both adjacent
// edges are selected. Edge cells take the mean with their inward
// neighbour. Updates happen in place in a fixed order (left side, right
// side, upper row, lower row) and later steps read earlier results.
// Grids smaller than 2x2 are left unchanged.
func Smooth(g *grid.Grid, edges Edges) {
	if g.Width < 2 || g.Height < 2 {
		return
	}
	lastRow := g.Height - 1
	lastCol := g.Width - 1

	corner := func(r, c, dr, dc int) {
		g.Set(r, c, (g.At(r, c)+g.At(r, c+dc)+g.At(r+dr, c)+g.At(r+dr, c+dc))/4)
	}

	if edges.Left {
		if edges.Upper {
			corner(0, lastCol, 1, -1)
		}
		if edges.Lower {
			corner(lastRow, lastCol, -1, -1)
		}
		for i := 1; i < lastRow; i++ {
			g.Set(i, lastCol, (g.At(i, lastCol)+g.At(i, lastCol-1))/2)
		}
	}

	if edges.Right {
		if edges.Upper {
			corner(0, 0, 1, 1)
		}
		if edges.Lower {
			corner(lastRow, 0, -1, 1)
		}
		for i := 1; i < lastRow; i++ {
			g.Set(i, 0, (g.At(i, 0)+g.At(i, 1))/2)
		}
	}

	if edges.Upper {
		for j := 1; j < lastCol; j++ {
			g.Set(0, j, (g.At(0, j)+g.At(1, j))/2)
		}
	}

	if edges.Lower {
		for j := 1; j < lastCol; j++ {
			g.Set(lastRow, j, (g.At(lastRow, j)+g.At(lastRow-1, j))/2)
		}
	}
}
