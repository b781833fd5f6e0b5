package resample

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Contribution is the weight one source sample adds to a destination sample
type Contribution struct {
	Index  int
	Weight float64
}

// Table holds the contributions for every destination index of one axis
type Table [][]Contribution

// NewTable computes the filter weights mapping srcSize samples onto destSize.
//
// Sample j of the source is centred at j+0.5 and destination sample i at
// (i+0.5)/scale in source units. When shrinking, the support widens to
// radius/scale so every source sample is covered. Indices that fall off
// either end are mirrored back into range. Each destination's weights are
// normalized to sum to one. Measuring from sample centres shifts the
// output half a source sample from filters that centre sample j at j.
func NewTable(kernel Kernel, srcSize, destSize int) Table {
	scale := float64(destSize) / float64(srcSize)
	radius := kernel.SamplingRadius()

	width := radius
	normFac := 1.0
	maxContrib := int(radius*2 + 1)
	if scale < 1 {
		width = radius / scale
		normFac = radius / math.Ceil(width)
		maxContrib = int(width*2 + 2)
	}

	table := make(Table, destSize)
	for i := 0; i < destSize; i++ {
		center := float64(i)/scale + 0.5/scale
		left := int(math.Floor(center - 0.5 - width))
		right := int(math.Ceil(center - 0.5 + width))

		indices := make([]int, 0, maxContrib)
		weights := make([]float64, 0, maxContrib)
		for j := left; j <= right && len(weights) < maxContrib; j++ {
			w := kernel.Apply((center - (float64(j) + 0.5)) * normFac)
			if w == 0 {
				continue
			}
			indices = append(indices, mirror(j, srcSize))
			weights = append(weights, w)
		}

		if sum := floats.Sum(weights); sum != 0 {
			floats.Scale(1/sum, weights)
		}

		row := make([]Contribution, len(weights))
		for k := range weights {
			row[k] = Contribution{Index: indices[k], Weight: weights[k]}
		}
		table[i] = row
	}
	return table
}

// mirror reflects j about the ends of [0, n) until it lands inside
func mirror(j, n int) int {
	if n <= 1 {
		return 0
	}
	for j < 0 || j >= n {
		if j < 0 {
			j = -j
		} else {
			j = 2*n - j - 1
		}
	}
	return j
}
