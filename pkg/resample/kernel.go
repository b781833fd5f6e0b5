// Package resample rescales height grids with a separable convolution
// filter, first along rows and then along columns.
package resample

import (
	"fmt"
	"math"
	"strings"
)

// Kernel is a symmetric 1-D reconstruction filter
type Kernel interface {
	Apply(t float64) float64
	SamplingRadius() float64
	Name() string
}

// Bicubic is the Keys cubic convolution kernel with parameter A
type Bicubic struct {
	A float64
}

// DefaultKernel is Bicubic with A = -0.5
var DefaultKernel Kernel = Bicubic{A: -0.5}

func (b Bicubic) Apply(t float64) float64 {
	a := b.A
	t = math.Abs(t)
	t2 := t * t
	t3 := t2 * t
	switch {
	case t <= 1:
		return (a+2)*t3 - (a+3)*t2 + 1
	case t < 2:
		return a*t3 - 5*a*t2 + 8*a*t - 4*a
	default:
		return 0
	}
}

func (Bicubic) SamplingRadius() float64 { return 2 }

func (Bicubic) Name() string { return "bicubic" }

// KernelByName looks up a kernel by its name, ignoring case.
// An empty name selects DefaultKernel.
func KernelByName(name string) (Kernel, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "bicubic":
		return DefaultKernel, nil
	default:
		return nil, fmt.Errorf("unknown resampling kernel %q", name)
	}
}
