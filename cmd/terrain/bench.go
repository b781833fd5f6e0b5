package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math/rand"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"github.com/1F47E/go-terrain-grid/pkg/models"
	"github.com/1F47E/go-terrain-grid/pkg/terrain"
)

// BenchmarkResult summarizes a bench run
type BenchmarkResult struct {
	Path          string
	TotalBuilds   int
	Failed        int64
	TotalDuration time.Duration
	AvgDuration   time.Duration
	BuildsPerSec  float64
	MinDuration   time.Duration
	MaxDuration   time.Duration
	TotalBytes    int64
}

func newBenchCmd(a *app) *cobra.Command {
	var (
		size    int
		builds  int
		workers int
		width   int
		height  int
		seed    int64
	)

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Benchmark terrain builds on a synthetic lattice",
		Long: `Generate a random size x size vertex lattice over a one degree box and run
repeated builds on concurrent workers, each with its own request.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if size < 2 || builds < 1 || workers < 1 {
				return fmt.Errorf("size must be at least 2, builds and workers at least 1")
			}
			res, err := parseResolution(width, height)
			if err != nil {
				return err
			}
			tcfg, err := a.terrainConfig("")
			if err != nil {
				return err
			}

			box := models.BoundingBox{MinX: 24, MinZ: 60, MaxX: 25, MaxZ: 61}
			points := generateLattice(size, box, seed, workers)

			fmt.Fprintf(a.stderr, "Running %d builds of a %dx%d lattice with %d workers...\n", builds, size, size, workers)
			result := runBench(cmd.Context(), points, terrain.Request{BBox: box, CRS: "EPSG:4326", Resolution: res}, tcfg, builds, workers)
			printBenchResult(a.stdout, result, workers)
			return nil
		},
	}

	cmd.Flags().IntVarP(&size, "size", "s", 256, "Lattice side length in vertices")
	cmd.Flags().IntVarP(&builds, "builds", "n", 50, "Number of builds to run")
	cmd.Flags().IntVarP(&workers, "workers", "w", runtime.NumCPU(), "Number of concurrent builds")
	cmd.Flags().IntVar(&width, "width", 0, "Resample to this width")
	cmd.Flags().IntVar(&height, "height", 0, "Resample to this height")
	cmd.Flags().Int64Var(&seed, "seed", 1, "Random seed for heights")
	return cmd
}

// generateLattice fills a size x size lattice over box with random heights,
// splitting rows across workers
func generateLattice(size int, box models.BoundingBox, seed int64, workers int) models.PointSet {
	points := make(models.PointSet, size*size)
	stepX := box.Width() / float64(size-1)
	stepZ := box.Depth() / float64(size-1)

	if workers > size {
		workers = size
	}
	rowsPerWorker := size / workers

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		startRow := w * rowsPerWorker
		endRow := startRow + rowsPerWorker
		if w == workers-1 {
			endRow = size
		}

		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(seed + int64(start)))

			for row := start; row < end; row++ {
				for col := 0; col < size; col++ {
					points[row*size+col] = models.Coordinate{
						X: box.MinX + float64(col)*stepX,
						Y: box.MinZ + float64(row)*stepZ,
						Z: r.Float64() * 500,
					}
				}
			}
		}(startRow, endRow)
	}

	wg.Wait()
	return points
}

func runBench(ctx context.Context, points models.PointSet, req terrain.Request, cfg terrain.Config, builds, workers int) BenchmarkResult {
	var (
		failed      atomic.Int64
		totalBytes  atomic.Int64
		minDuration = time.Hour
		maxDuration time.Duration
		sumDuration time.Duration
		mu          sync.Mutex
	)

	jobs := make(chan int, builds)
	for i := 0; i < builds; i++ {
		jobs <- i
	}
	close(jobs)

	start := time.Now()

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			var buf bytes.Buffer

			for range jobs {
				buf.Reset()
				buildStart := time.Now()

				t := terrain.New(req, cfg)
				err := t.AddGeometry(points)
				var n int
				if err == nil {
					n, err = t.WriteOutput(ctx, &buf)
				}
				d := time.Since(buildStart)

				if err != nil {
					failed.Add(1)
					continue
				}
				totalBytes.Add(int64(n))

				mu.Lock()
				sumDuration += d
				minDuration = min(minDuration, d)
				maxDuration = max(maxDuration, d)
				mu.Unlock()
			}
		}()
	}

	wg.Wait()
	total := time.Since(start)

	result := BenchmarkResult{
		Path:          "native",
		TotalBuilds:   builds,
		Failed:        failed.Load(),
		TotalDuration: total,
		BuildsPerSec:  float64(builds) / total.Seconds(),
		MinDuration:   minDuration,
		MaxDuration:   maxDuration,
		TotalBytes:    totalBytes.Load(),
	}
	if req.Resolution != nil {
		result.Path = "resampled " + req.Resolution.String()
	}
	if ok := int64(builds) - result.Failed; ok > 0 {
		result.AvgDuration = sumDuration / time.Duration(ok)
	} else {
		result.MinDuration = 0
	}
	return result
}

func printBenchResult(w io.Writer, r BenchmarkResult, workers int) {
	fmt.Fprintln(w, "=== Benchmark Results ===")
	fmt.Fprintf(w, "Path: %s\n", r.Path)
	fmt.Fprintf(w, "Total Builds: %d\n", r.TotalBuilds)
	fmt.Fprintf(w, "Failed Builds: %d\n", r.Failed)
	fmt.Fprintf(w, "Total Duration: %v\n", r.TotalDuration)
	fmt.Fprintf(w, "Average Duration: %v\n", r.AvgDuration)
	fmt.Fprintf(w, "Builds/Second: %.2f\n", r.BuildsPerSec)
	fmt.Fprintf(w, "Min Duration: %v\n", r.MinDuration)
	fmt.Fprintf(w, "Max Duration: %v\n", r.MaxDuration)
	fmt.Fprintf(w, "Bytes Written: %d\n", r.TotalBytes)
	fmt.Fprintf(w, "Workers Used: %d\n", workers)
	fmt.Fprintf(w, "CPU Cores: %d\n", runtime.NumCPU())
}
