package resample

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/1F47E/go-terrain-grid/pkg/grid"
	"github.com/1F47E/go-terrain-grid/pkg/models"
)

// MinTargetSize is the smallest accepted output dimension
const MinTargetSize = 3

// Resampler scales grids with a separable kernel
type Resampler struct {
	Kernel  Kernel
	Workers int
}

// New creates a resampler. A nil kernel selects DefaultKernel and a
// non-positive worker count one worker per CPU.
func New(kernel Kernel, workers int) *Resampler {
	if kernel == nil {
		kernel = DefaultKernel
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Resampler{Kernel: kernel, Workers: workers}
}

// Resample returns a new destWidth x destHeight grid. The input is not modified.
func (r *Resampler) Resample(g *grid.Grid, destWidth, destHeight int) (*grid.Grid, error) {
	if destWidth < MinTargetSize || destHeight < MinTargetSize {
		return nil, fmt.Errorf("%w: %dx%d, minimum is %dx%d",
			models.ErrInvalidTargetSize, destWidth, destHeight, MinTargetSize, MinTargetSize)
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}

	kernel := r.Kernel
	if kernel == nil {
		kernel = DefaultKernel
	}
	horizontal := NewTable(kernel, g.Width, destWidth)
	vertical := NewTable(kernel, g.Height, destHeight)

	// rows first
	work := grid.New(destWidth, g.Height)
	r.parallel(g.Height, func(row int) {
		src := g.Row(row)
		dst := work.Row(row)
		for x, contribs := range horizontal {
			var sum float64
			for _, c := range contribs {
				sum += src[c.Index] * c.Weight
			}
			dst[x] = sum
		}
	})

	out := grid.New(destWidth, destHeight)
	r.parallel(destWidth, func(col int) {
		for y, contribs := range vertical {
			var sum float64
			for _, c := range contribs {
				sum += work.At(c.Index, col) * c.Weight
			}
			out.Set(y, col, sum)
		}
	})

	return out, nil
}

// parallel runs fn for every index in [0, n), split into contiguous
// ranges over the configured workers
func (r *Resampler) parallel(n int, fn func(i int)) {
	workers := r.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > n {
		workers = n
	}

	perWorker := n / workers
	remainder := n % workers

	var wg sync.WaitGroup
	start := 0
	for w := 0; w < workers; w++ {
		size := perWorker
		if w < remainder {
			size++
		}

		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			for i := start; i < end; i++ {
				fn(i)
			}
		}(start, start+size)
		start += size
	}
	wg.Wait()
}
