// Package lod picks a level of detail for a terrain request, either by
// id or by the sample spacing a requested output resolution implies.
package lod

import (
	"fmt"
	"math"
	"slices"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"

	"github.com/1F47E/go-terrain-grid/pkg/models"
)

// Table maps LOD id to the ground distance between its samples in metres
type Table map[int]float64

// Resolution is a requested output size in samples
type Resolution struct {
	X int
	Y int
}

// Valid reports whether both components are positive
func (r Resolution) Valid() bool {
	return r.X > 0 && r.Y > 0
}

func (r Resolution) String() string {
	return fmt.Sprintf("%dx%d", r.X, r.Y)
}

// IDs returns the LOD ids in ascending order
func (t Table) IDs() []int {
	ids := make([]int, 0, len(t))
	for id := range t {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Closest returns requested if the table has it, otherwise the nearest
// coarser id below it, otherwise the nearest finer id above it
func (t Table) Closest(requested int) (int, bool) {
	if len(t) == 0 {
		return 0, false
	}
	if _, ok := t[requested]; ok {
		return requested, true
	}

	ids := t.IDs()
	i, _ := slices.BinarySearch(ids, requested)
	if i > 0 {
		return ids[i-1], true
	}
	return ids[0], true
}

// ClosestByDistance picks the LOD for a requested sample spacing of dx by
// dy. The finer of the two is used. Among the LODs whose spacing is at
// least that value, the densest wins, with ties going to the higher id.
// If every LOD is denser than requested, the highest id is returned.
func (t Table) ClosestByDistance(dx, dy float64) (int, bool) {
	if len(t) == 0 {
		return 0, false
	}
	d := math.Min(dx, dy)

	best, found := 0, false
	for _, id := range t.IDs() {
		dist := t[id]
		if dist < d {
			continue
		}
		if !found || dist <= t[best] {
			best, found = id, true
		}
	}
	if !found {
		ids := t.IDs()
		return ids[len(ids)-1], true
	}
	return best, true
}

// SampleDistance returns the ground distance between output samples when
// bbox is rendered at res. Geodetic boxes are measured with the haversine
// formula along the lower edge for X and the left edge for Z, in metres.
// Other boxes use their own units.
func SampleDistance(bbox models.BoundingBox, res Resolution, geodetic bool) (dx, dy float64, err error) {
	if !res.Valid() {
		return 0, 0, fmt.Errorf("invalid resolution %s", res)
	}

	width, depth := bbox.Width(), bbox.Depth()
	if geodetic {
		lowerLeft := orb.Point{bbox.MinX, bbox.MinZ}
		width = geo.DistanceHaversine(lowerLeft, orb.Point{bbox.MaxX, bbox.MinZ})
		depth = geo.DistanceHaversine(lowerLeft, orb.Point{bbox.MinX, bbox.MaxZ})
	}
	return width / float64(res.X), depth / float64(res.Y), nil
}
