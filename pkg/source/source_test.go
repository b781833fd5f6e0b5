package source

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1F47E/go-terrain-grid/pkg/models"
)

func TestReadXYZ(t *testing.T) {
	input := `# x y z
0 0 10.5
1,0,11
2;0;-3

  3	0	1e2
`
	points, err := ReadXYZ(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, models.PointSet{
		{X: 0, Y: 0, Z: 10.5},
		{X: 1, Y: 0, Z: 11},
		{X: 2, Y: 0, Z: -3},
		{X: 3, Y: 0, Z: 100},
	}, points)
}

func TestReadXYZErrors(t *testing.T) {
	testCases := []struct {
		name  string
		input string
		msg   string
	}{
		{"too few fields", "1 2\n", "line 1"},
		{"too many fields", "0 0 0\n1 2 3 4\n", "line 2"},
		{"not a number", "1 two 3\n", "line 1"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ReadXYZ(strings.NewReader(tc.input))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.msg)
		})
	}
}

func TestReadXYZEmpty(t *testing.T) {
	points, err := ReadXYZ(strings.NewReader("\n# nothing\n"))
	require.NoError(t, err)
	assert.Empty(t, points)
}

func TestSnapshotRoundTrip(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "points.gob")
	snap := Snapshot{
		BBox:   models.BoundingBox{MinX: 24.5, MinZ: 60.1, MaxX: 25.1, MaxZ: 60.4},
		CRS:    "EPSG:4326",
		LOD:    3,
		Points: models.PointSet{{X: 24.6, Y: 60.2, Z: 12}, {X: 24.7, Y: 60.2, Z: 15.5}},
	}

	require.NoError(t, SaveSnapshot(filename, snap))

	loaded, err := LoadSnapshot(filename)
	require.NoError(t, err)
	assert.Equal(t, snap.BBox, loaded.BBox)
	assert.Equal(t, snap.CRS, loaded.CRS)
	assert.Equal(t, snap.LOD, loaded.LOD)
	assert.Equal(t, snap.Points, loaded.Points)
	assert.Equal(t, int64(2), loaded.Count)
}

func TestLoadSnapshotErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadSnapshot(filepath.Join(dir, "missing.gob"))
	assert.Error(t, err)

	garbage := filepath.Join(dir, "garbage.gob")
	require.NoError(t, os.WriteFile(garbage, []byte("not gob"), 0644))
	_, err = LoadSnapshot(garbage)
	assert.Error(t, err)
}

func TestReadFileByExtension(t *testing.T) {
	dir := t.TempDir()

	xyz := filepath.Join(dir, "points.xyz")
	require.NoError(t, os.WriteFile(xyz, []byte("1 2 3\n"), 0644))
	points, err := ReadFile(xyz)
	require.NoError(t, err)
	assert.Equal(t, models.PointSet{{X: 1, Y: 2, Z: 3}}, points)

	gobFile := filepath.Join(dir, "points.GOB")
	require.NoError(t, SaveSnapshot(gobFile, Snapshot{Points: models.PointSet{{X: 4, Y: 5, Z: 6}}}))
	points, err = ReadFile(gobFile)
	require.NoError(t, err)
	assert.Equal(t, models.PointSet{{X: 4, Y: 5, Z: 6}}, points)
}
