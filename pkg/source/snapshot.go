package source

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/1F47E/go-terrain-grid/pkg/models"
)

// Snapshot is the serializable form of a fetched point set
type Snapshot struct {
	BBox   models.BoundingBox
	CRS    string
	LOD    int
	Points models.PointSet
	Count  int64
}

// SaveSnapshot writes snap to a binary file
func SaveSnapshot(filename string, snap Snapshot) error {
	snap.Count = int64(len(snap.Points))

	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	encoder := gob.NewEncoder(file)
	if err := encoder.Encode(snap); err != nil {
		return fmt.Errorf("failed to encode data: %w", err)
	}
	return nil
}

// LoadSnapshot reads a snapshot written by SaveSnapshot
func LoadSnapshot(filename string) (Snapshot, error) {
	file, err := os.Open(filename)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	var snap Snapshot
	decoder := gob.NewDecoder(file)
	if err := decoder.Decode(&snap); err != nil {
		return Snapshot{}, fmt.Errorf("failed to decode data: %w", err)
	}
	if snap.Count != int64(len(snap.Points)) {
		return Snapshot{}, fmt.Errorf("snapshot holds %d points, header says %d", len(snap.Points), snap.Count)
	}
	return snap, nil
}

// ReadFile loads coordinates from a snapshot (.gob) or XYZ text file,
// chosen by extension
func ReadFile(filename string) (models.PointSet, error) {
	if strings.EqualFold(filepath.Ext(filename), ".gob") {
		snap, err := LoadSnapshot(filename)
		if err != nil {
			return nil, err
		}
		return snap.Points, nil
	}
	return ReadXYZFile(filename)
}
