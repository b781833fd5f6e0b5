package main

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"log"
	"math"

	"github.com/1F47E/go-terrain-grid/pkg/lod"
	"github.com/1F47E/go-terrain-grid/pkg/models"
	"github.com/1F47E/go-terrain-grid/pkg/octet"
	"github.com/1F47E/go-terrain-grid/pkg/source"
	"github.com/1F47E/go-terrain-grid/pkg/terrain"
)

func main() {
	// A small hill over a tenth of a degree near Helsinki
	bbox := models.BoundingBox{MinX: 24.9, MinZ: 60.1, MaxX: 25.0, MaxZ: 60.2}

	var points models.PointSet
	for row := 0; row <= 20; row++ {
		for col := 0; col <= 20; col++ {
			x := bbox.MinX + float64(col)*bbox.Width()/20
			y := bbox.MinZ + float64(row)*bbox.Depth()/20
			r := math.Hypot(float64(col-10), float64(row-10))
			points = append(points, models.Coordinate{X: x, Y: y, Z: 40 * math.Exp(-r*r/30)})
		}
	}

	// Example 1: pick a level of detail for a 64x64 output
	fmt.Println("=== Level of detail ===")
	levels := lod.Table{1: 200, 2: 50, 3: 10}
	res := lod.Resolution{X: 64, Y: 64}
	dx, dy, err := lod.SampleDistance(bbox, res, true)
	if err != nil {
		log.Fatal(err)
	}

	req := terrain.Request{BBox: bbox, CRS: "EPSG:4326", Resolution: &res}
	t := terrain.New(req, terrain.DefaultConfig())
	id, err := t.ResolveLOD(levels)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Requested spacing %.1f x %.1f m, using LOD %d\n", dx, dy, id)

	// Example 2: build the resampled stream
	fmt.Println("\n=== Resampled build ===")
	if err := t.AddGeometry(points); err != nil {
		log.Fatal(err)
	}
	var buf bytes.Buffer
	n, err := t.WriteOutput(context.Background(), &buf)
	if err != nil {
		log.Fatal(err)
	}
	h, g, err := octet.Decode(buf.Bytes(), binary.BigEndian)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Wrote %d bytes: %dx%d samples, spacing %g x %g\n", n, h.Width, h.Height, h.SpacingX, h.SpacingY)
	fmt.Printf("Peak height %.2f\n", g.At(int(h.Height)/2, int(h.Width)/2))

	// Example 3: native build with border correction
	fmt.Println("\n=== Native build ===")
	native := terrain.New(terrain.Request{BBox: bbox, CRS: "EPSG:4326"}, terrain.DefaultConfig())
	if err := native.AddGeometry(points); err != nil {
		log.Fatal(err)
	}
	buf.Reset()
	if _, err := native.WriteOutput(context.Background(), &buf); err != nil {
		log.Fatal(err)
	}
	h, _, err = octet.Decode(buf.Bytes(), binary.BigEndian)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Native grid %dx%d\n", h.Width, h.Height)

	// Save the points as a snapshot
	fmt.Println("\n=== Saving Snapshot ===")
	snap := source.Snapshot{BBox: bbox, CRS: "EPSG:4326", LOD: id, Points: points}
	if err := source.SaveSnapshot("hill.gob", snap); err != nil {
		log.Fatal(err)
	}
	fmt.Println("Snapshot saved to hill.gob")

	// Load it back
	fmt.Println("\n=== Loading Snapshot ===")
	loaded, err := source.LoadSnapshot("hill.gob")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Loaded %d points for LOD %d\n", loaded.Count, loaded.LOD)
}
