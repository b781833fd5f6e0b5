package spatial

import (
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"github.com/1F47E/go-terrain-grid/pkg/models"
	"github.com/dhconnelly/rtreego"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var unitBox = models.BoundingBox{MinX: 0, MinZ: 0, MaxX: 3, MaxZ: 3}

func latticeVertices(cols, rows int) []models.Vertex {
	var out []models.Vertex
	for z := 0; z < rows; z++ {
		for x := 0; x < cols; x++ {
			out = append(out, models.Vertex{X: float64(x), Y: 1, Z: float64(z)})
		}
	}
	return out
}

func TestNewVertexIndex(t *testing.T) {
	idx := NewVertexIndex(unitBox)
	assert.NotNil(t, idx)
	assert.NotEmpty(t, idx.partitions)
	assert.Equal(t, int64(0), idx.Count())
}

var _ rtreego.Spatial = (*spatialVertex)(nil)

func TestSpatialVertexBounds(t *testing.T) {
	v := models.Vertex{X: 2, Y: 7, Z: 1}
	sv := &spatialVertex{Vertex: v, rect: rtreego.Point{v.X, v.Z}.ToRect(pointTolerance)}

	b := sv.Bounds()
	require.NotNil(t, b)
	assert.InDelta(t, 2, b.PointCoord(0), 1e-6)
	assert.InDelta(t, 1, b.PointCoord(1), 1e-6)
}

func TestIndexVertices(t *testing.T) {
	idx := NewVertexIndexWithPartitions(unitBox, 3)
	idx.IndexVertices(latticeVertices(4, 4))

	assert.Equal(t, int64(16), idx.Count())
}

func TestQueryBoxStrips(t *testing.T) {
	testCases := []struct {
		name     string
		box      models.BoundingBox
		expected int
	}{
		{"left edge", models.BoundingBox{MinX: -1e-5, MinZ: -1e-5, MaxX: 1e-5, MaxZ: 3 + 1e-5}, 4},
		{"right edge", models.BoundingBox{MinX: 3 - 1e-5, MinZ: -1e-5, MaxX: 3 + 1e-5, MaxZ: 3 + 1e-5}, 4},
		{"lower edge", models.BoundingBox{MinX: -1e-5, MinZ: -1e-5, MaxX: 3 + 1e-5, MaxZ: 1e-5}, 4},
		{"interior gap", models.BoundingBox{MinX: 0.2, MinZ: 0.2, MaxX: 0.8, MaxZ: 0.8}, 0},
		{"whole box", models.BoundingBox{MinX: 0, MinZ: 0, MaxX: 3, MaxZ: 3}, 16},
	}

	for _, partitions := range []int{1, 2, 5} {
		idx := NewVertexIndexWithPartitions(unitBox, partitions)
		idx.IndexVertices(latticeVertices(4, 4))

		for _, tc := range testCases {
			t.Run(fmt.Sprintf("%s/%d", tc.name, partitions), func(t *testing.T) {
				results, err := idx.QueryBox(tc.box)
				require.NoError(t, err)
				assert.Len(t, results, tc.expected)
			})
		}
	}
}

func TestQueryBoxOutsideExtent(t *testing.T) {
	idx := NewVertexIndexWithPartitions(unitBox, 4)
	idx.IndexVertices([]models.Vertex{{X: -2, Z: 1}, {X: 5, Z: 1}})

	found, err := idx.Any(models.BoundingBox{MinX: -2.1, MinZ: 0, MaxX: -1.9, MaxZ: 2})
	require.NoError(t, err)
	assert.True(t, found)

	found, err = idx.Any(models.BoundingBox{MinX: 4.9, MinZ: 0, MaxX: 5.1, MaxZ: 2})
	require.NoError(t, err)
	assert.True(t, found)
}

func TestQueryBoxInvalid(t *testing.T) {
	idx := NewVertexIndex(unitBox)
	_, err := idx.QueryBox(models.BoundingBox{MinX: 1, MinZ: 1, MaxX: 1, MaxZ: 2})
	assert.Error(t, err)
}

func TestClear(t *testing.T) {
	idx := NewVertexIndex(unitBox)
	idx.IndexVertices(latticeVertices(2, 2))
	idx.Clear()

	assert.Equal(t, int64(0), idx.Count())
	found, err := idx.Any(unitBox)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestDataBounds(t *testing.T) {
	idx := NewVertexIndexWithPartitions(unitBox, 2)
	_, ok := idx.DataBounds()
	assert.False(t, ok)

	idx.IndexVertices([]models.Vertex{{X: 1, Z: 2}, {X: -4, Z: 7}, {X: 2.5, Z: -1}})
	data, ok := idx.DataBounds()
	require.True(t, ok)
	assert.Equal(t, models.BoundingBox{MinX: -4, MinZ: -1, MaxX: 2.5, MaxZ: 7}, data)

	idx.Clear()
	_, ok = idx.DataBounds()
	assert.False(t, ok)
}

func TestConcurrentQueries(t *testing.T) {
	idx := NewVertexIndex(unitBox)
	idx.IndexVertices(latticeVertices(4, 4))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			x := rand.Float64() * 2
			_, err := idx.QueryBox(models.BoundingBox{MinX: x, MinZ: 0, MaxX: x + 1, MaxZ: 3})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
}

func BenchmarkQueryBox(b *testing.B) {
	extent := models.BoundingBox{MinX: 0, MinZ: 0, MaxX: 255, MaxZ: 255}
	idx := NewVertexIndex(extent)
	idx.IndexVertices(latticeVertices(256, 256))

	strip := models.BoundingBox{MinX: -1e-5, MinZ: -1e-5, MaxX: 1e-5, MaxZ: 255 + 1e-5}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = idx.QueryBox(strip)
	}
}
