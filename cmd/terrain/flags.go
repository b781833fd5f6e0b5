package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/1F47E/go-terrain-grid/pkg/lod"
	"github.com/1F47E/go-terrain-grid/pkg/models"
	"github.com/1F47E/go-terrain-grid/pkg/terrain"
)

// requestFlags are shared by commands that describe a terrain request
type requestFlags struct {
	bbox   string
	crs    string
	lod    int
	width  int
	height int
}

func (f *requestFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.bbox, "bbox", "b", "", "Bounding box as minX,minZ,maxX,maxZ")
	cmd.Flags().StringVar(&f.crs, "crs", "EPSG:4326", "Coordinate reference system of the bbox")
	cmd.Flags().IntVarP(&f.lod, "lod", "l", 0, "Requested level of detail (0 = choose automatically)")
	cmd.Flags().IntVar(&f.width, "width", 0, "Output width in samples (resamples when set with --height)")
	cmd.Flags().IntVar(&f.height, "height", 0, "Output height in samples")
	_ = cmd.MarkFlagRequired("bbox")
}

func (f *requestFlags) request() (terrain.Request, error) {
	bbox, err := parseBBox(f.bbox)
	if err != nil {
		return terrain.Request{}, err
	}
	res, err := parseResolution(f.width, f.height)
	if err != nil {
		return terrain.Request{}, err
	}

	req := terrain.Request{BBox: bbox, CRS: f.crs, Resolution: res}
	if f.lod > 0 {
		id := f.lod
		req.LOD = &id
	}
	return req, nil
}

// parseBBox reads "minX,minZ,maxX,maxZ"
func parseBBox(s string) (models.BoundingBox, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return models.BoundingBox{}, fmt.Errorf("bbox needs 4 comma separated values, got %d", len(parts))
	}

	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return models.BoundingBox{}, fmt.Errorf("invalid bbox value %q: %w", p, err)
		}
		v[i] = f
	}

	bbox := models.BoundingBox{MinX: v[0], MinZ: v[1], MaxX: v[2], MaxZ: v[3]}
	if bbox.Width() <= 0 || bbox.Depth() <= 0 {
		return models.BoundingBox{}, fmt.Errorf("bbox %s is empty", s)
	}
	return bbox, nil
}

// parseResolution returns nil when neither dimension is given and an error
// when only one is
func parseResolution(width, height int) (*lod.Resolution, error) {
	if width == 0 && height == 0 {
		return nil, nil
	}
	res := lod.Resolution{X: width, Y: height}
	if !res.Valid() {
		return nil, fmt.Errorf("resolution needs both --width and --height, got %s", res)
	}
	return &res, nil
}
