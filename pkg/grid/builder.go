// Package grid reconstructs a regular height field from an unordered
// vertex cloud and holds the rectangular grid used by later stages.
package grid

import (
	"fmt"
	"slices"

	"github.com/1F47E/go-terrain-grid/pkg/models"
)

// DefaultRowTolerance is the Z distance under which two vertices share a row.
// It is the single precision value of 2e-5, so gaps between that and 2e-5
// split into separate rows.
const DefaultRowTolerance = float64(float32(2e-5))

// Rows is the clustered vertex grid before rectangularity is asserted.
// Row 0 has the largest Z, column 0 the largest X once sorted.
type Rows [][]models.Vertex

// Build clusters vertices into rows and sorts them into grid order.
//
// Clustering is first-match in encounter order: a vertex joins the first
// row whose representative (element 0) lies strictly within tolerance
// on Z. Rows are not merged afterwards, so the result depends on the
// order vertices arrive in when bands are closer than the tolerance.
func Build(vertices *models.VertexSet, tolerance float64) (Rows, error) {
	if vertices == nil || vertices.Len() == 0 {
		return nil, models.ErrEmptyInput
	}
	if tolerance <= 0 {
		tolerance = DefaultRowTolerance
	}

	rows := cluster(vertices.Vertices(), tolerance)
	rows.sort()
	return rows, nil
}

func cluster(vertices []models.Vertex, tolerance float64) Rows {
	var rows Rows
	for _, v := range vertices {
		found := false
		for i := range rows {
			first := rows[i][0]
			if first.Z-tolerance < v.Z && first.Z+tolerance > v.Z {
				rows[i] = append(rows[i], v)
				found = true
				break
			}
		}
		if !found {
			rows = append(rows, []models.Vertex{v})
		}
	}
	return rows
}

// sort orders columns by descending X and rows by descending Z of their
// first element. Both sorts are stable.
func (r Rows) sort() {
	for _, row := range r {
		slices.SortStableFunc(row, func(a, b models.Vertex) int {
			return descending(a.X, b.X)
		})
	}
	slices.SortStableFunc(r, func(a, b []models.Vertex) int {
		return descending(a[0].Z, b[0].Z)
	})
}

func descending(a, b float64) int {
	switch {
	case a > b:
		return -1
	case a < b:
		return 1
	default:
		return 0
	}
}

// Width returns the length of the first row
func (r Rows) Width() int {
	if len(r) == 0 {
		return 0
	}
	return len(r[0])
}

// Rectangular reports whether every row has the same length
func (r Rows) Rectangular() bool {
	return r.checkRectangular() == nil
}

func (r Rows) checkRectangular() error {
	width := r.Width()
	for i, row := range r {
		if len(row) != width {
			return fmt.Errorf("%w: row %d has %d columns, expected %d",
				models.ErrRaggedGrid, i, len(row), width)
		}
	}
	return nil
}
