package grid

import (
	"fmt"

	"github.com/1F47E/go-terrain-grid/pkg/models"
)

// Grid is a rectangular height field stored row-major in a single slice.
// Column 0 is the eastmost (largest X) sample and row 0 the northmost
// (largest Z), matching the order produced by Build.
type Grid struct {
	Width   int
	Height  int
	Heights []float64
}

// New allocates a zeroed width x height grid
func New(width, height int) *Grid {
	return &Grid{
		Width:   width,
		Height:  height,
		Heights: make([]float64, width*height),
	}
}

// FromRows flattens clustered rows into a Grid, failing with
// models.ErrRaggedGrid if the rows are not all the same length.
func FromRows(rows Rows) (*Grid, error) {
	if len(rows) == 0 || rows.Width() == 0 {
		return nil, models.ErrEmptyInput
	}
	if err := rows.checkRectangular(); err != nil {
		return nil, err
	}

	g := New(rows.Width(), len(rows))
	for i, row := range rows {
		for j, v := range row {
			g.Heights[i*g.Width+j] = v.Y
		}
	}
	return g, nil
}

// FromValues builds a grid from a slice of equally long rows of heights
func FromValues(values [][]float64) (*Grid, error) {
	if len(values) == 0 || len(values[0]) == 0 {
		return nil, models.ErrEmptyInput
	}
	g := New(len(values[0]), len(values))
	for i, row := range values {
		if len(row) != g.Width {
			return nil, fmt.Errorf("%w: row %d has %d columns, expected %d",
				models.ErrRaggedGrid, i, len(row), g.Width)
		}
		copy(g.Heights[i*g.Width:], row)
	}
	return g, nil
}

// At returns the height at row, col
func (g *Grid) At(row, col int) float64 {
	return g.Heights[row*g.Width+col]
}

// Set stores a height at row, col
func (g *Grid) Set(row, col int, h float64) {
	g.Heights[row*g.Width+col] = h
}

// Row returns a view of one row
func (g *Grid) Row(row int) []float64 {
	return g.Heights[row*g.Width : (row+1)*g.Width]
}

// Values copies the grid back into nested rows
func (g *Grid) Values() [][]float64 {
	out := make([][]float64, g.Height)
	for i := range out {
		out[i] = append([]float64(nil), g.Row(i)...)
	}
	return out
}

// Validate checks that the arena length matches the declared dimensions
func (g *Grid) Validate() error {
	if g == nil || g.Width <= 0 || g.Height <= 0 {
		return models.ErrEmptyInput
	}
	if len(g.Heights) != g.Width*g.Height {
		return fmt.Errorf("%w: %d samples for %dx%d grid",
			models.ErrRaggedGrid, len(g.Heights), g.Width, g.Height)
	}
	return nil
}

// DropColumn removes one column in place
func (g *Grid) DropColumn(col int) {
	out := g.Heights[:0]
	for i := 0; i < g.Height; i++ {
		for j := 0; j < g.Width; j++ {
			if j != col {
				out = append(out, g.Heights[i*g.Width+j])
			}
		}
	}
	g.Heights = out
	g.Width--
}

// DropRow removes one row in place
func (g *Grid) DropRow(row int) {
	g.Heights = append(g.Heights[:row*g.Width], g.Heights[(row+1)*g.Width:]...)
	g.Height--
}
