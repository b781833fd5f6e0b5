// Package spatial indexes terrain vertices in partitioned R-Trees so the
// border corrector can ask which samples lie near a bounding box edge.
package spatial

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/dhconnelly/rtreego"
	"github.com/1F47E/go-terrain-grid/pkg/models"
)

const (
	pointTolerance = 1e-9
	minChildren    = 25
	maxChildren    = 50
	dimensions     = 2
)

// spatialVertex wraps a vertex to implement rtreego.Spatial
type spatialVertex struct {
	models.Vertex
	rect *rtreego.Rect
}

func (sv *spatialVertex) Bounds() *rtreego.Rect {
	return sv.rect
}

// VertexIndex is an R-Tree index over the planar (X, Z) position of vertices,
// split into bands along X so inserts and queries run per partition.
type VertexIndex struct {
	partitions []*rtreego.Rtree
	bounds     []models.BoundingBox
	extent     models.BoundingBox
	data       models.BoundingBox
	hasData    bool
	mu         sync.RWMutex
	itemCount  atomic.Int64
}

// NewVertexIndex creates an index covering extent with one partition per CPU
func NewVertexIndex(extent models.BoundingBox) *VertexIndex {
	return NewVertexIndexWithPartitions(extent, runtime.NumCPU())
}

// NewVertexIndexWithPartitions creates an index with the given number of X bands
func NewVertexIndexWithPartitions(extent models.BoundingBox, numPartitions int) *VertexIndex {
	if numPartitions <= 0 {
		numPartitions = runtime.NumCPU()
	}

	partitions := make([]*rtreego.Rtree, numPartitions)
	bounds := make([]models.BoundingBox, numPartitions)

	band := extent.Width() / float64(numPartitions)
	for i := 0; i < numPartitions; i++ {
		partitions[i] = rtreego.NewTree(dimensions, minChildren, maxChildren)

		minX := extent.MinX + float64(i)*band
		maxX := minX + band
		if i == numPartitions-1 {
			maxX = extent.MaxX
		}
		bounds[i] = models.BoundingBox{MinX: minX, MinZ: extent.MinZ, MaxX: maxX, MaxZ: extent.MaxZ}
	}

	return &VertexIndex{
		partitions: partitions,
		bounds:     bounds,
		extent:     extent,
	}
}

// IndexVertices inserts vertices, one goroutine per partition
func (idx *VertexIndex) IndexVertices(vertices []models.Vertex) {
	if len(vertices) == 0 {
		return
	}

	n := len(idx.partitions)
	grouped := make([][]*spatialVertex, n)
	for _, v := range vertices {
		rect := rtreego.Point{v.X, v.Z}.ToRect(pointTolerance)
		p := idx.partitionFor(v.X)
		grouped[p] = append(grouped[p], &spatialVertex{Vertex: v, rect: rect})
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.growData(vertices)

	var wg sync.WaitGroup
	var inserted atomic.Int64
	for i := 0; i < n; i++ {
		if len(grouped[i]) == 0 {
			continue
		}

		wg.Add(1)
		go func(p int, items []*spatialVertex) {
			defer wg.Done()
			for _, item := range items {
				idx.partitions[p].Insert(item)
			}
			inserted.Add(int64(len(items)))
		}(i, grouped[i])
	}

	wg.Wait()
	idx.itemCount.Add(inserted.Load())
}

// QueryBox returns the vertices whose planar position lies inside box (inclusive)
func (idx *VertexIndex) QueryBox(box models.BoundingBox) ([]models.Vertex, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	lengths := []float64{box.Width(), box.Depth()}
	if lengths[0] <= 0 || lengths[1] <= 0 {
		return nil, fmt.Errorf("invalid query box %+v", box)
	}
	bounds, err := rtreego.NewRect(rtreego.Point{box.MinX, box.MinZ}, lengths)
	if err != nil {
		return nil, fmt.Errorf("invalid query box: %w", err)
	}

	relevant := idx.relevantPartitions(box)
	resultsChan := make(chan []models.Vertex, len(relevant))

	for _, p := range relevant {
		go func(p int) {
			results := idx.partitions[p].SearchIntersect(bounds)

			found := make([]models.Vertex, 0, len(results))
			for _, result := range results {
				item, ok := result.(*spatialVertex)
				if !ok {
					continue
				}
				// Strict boundary check, the tree works on padded rects
				if item.X >= box.MinX && item.X <= box.MaxX &&
					item.Z >= box.MinZ && item.Z <= box.MaxZ {
					found = append(found, item.Vertex)
				}
			}
			resultsChan <- found
		}(p)
	}

	var all []models.Vertex
	for range relevant {
		all = append(all, <-resultsChan...)
	}
	return all, nil
}

// Any reports whether at least one vertex lies inside box
func (idx *VertexIndex) Any(box models.BoundingBox) (bool, error) {
	found, err := idx.QueryBox(box)
	if err != nil {
		return false, err
	}
	return len(found) > 0, nil
}

// DataBounds returns the planar extent of the indexed vertices.
// ok is false when the index is empty.
func (idx *VertexIndex) DataBounds() (box models.BoundingBox, ok bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.data, idx.hasData
}

func (idx *VertexIndex) growData(vertices []models.Vertex) {
	for _, v := range vertices {
		if !idx.hasData {
			idx.data = models.BoundingBox{MinX: v.X, MinZ: v.Z, MaxX: v.X, MaxZ: v.Z}
			idx.hasData = true
			continue
		}
		idx.data.MinX = min(idx.data.MinX, v.X)
		idx.data.MaxX = max(idx.data.MaxX, v.X)
		idx.data.MinZ = min(idx.data.MinZ, v.Z)
		idx.data.MaxZ = max(idx.data.MaxZ, v.Z)
	}
}

// Count returns the number of indexed vertices
func (idx *VertexIndex) Count() int64 {
	return idx.itemCount.Load()
}

// Clear removes all vertices from the index
func (idx *VertexIndex) Clear() {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	for i := range idx.partitions {
		idx.partitions[i] = rtreego.NewTree(dimensions, minChildren, maxChildren)
	}
	idx.itemCount.Store(0)
	idx.data = models.BoundingBox{}
	idx.hasData = false
}

func (idx *VertexIndex) partitionFor(x float64) int {
	n := len(idx.partitions)
	band := idx.extent.Width() / float64(n)
	if band <= 0 {
		return 0
	}
	p := int((x - idx.extent.MinX) / band)
	if p >= n {
		p = n - 1
	}
	if p < 0 {
		p = 0
	}
	return p
}

// relevantPartitions returns the partitions whose X band intersects box.
// The outermost bands also hold vertices that fall outside the extent.
func (idx *VertexIndex) relevantPartitions(box models.BoundingBox) []int {
	var relevant []int
	last := len(idx.bounds) - 1
	for i, b := range idx.bounds {
		lowOK := box.MaxX >= b.MinX || i == 0
		highOK := box.MinX <= b.MaxX || i == last
		if lowOK && highOK {
			relevant = append(relevant, i)
		}
	}
	return relevant
}
