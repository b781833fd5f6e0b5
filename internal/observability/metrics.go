// Package observability carries the Prometheus metrics and OpenTelemetry
// tracing used by terrain builds.
package observability

import (
	"fmt"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

// Build paths and results used as label values
const (
	PathNative    = "native"
	PathResampled = "resampled"

	ResultOK    = "ok"
	ResultError = "error"
)

// Collector bundles the terrain build metrics
type Collector struct {
	gatherer prometheus.Gatherer

	Requests       *prometheus.CounterVec
	PhaseDurations *prometheus.HistogramVec
	InputVertices  prometheus.Histogram
	OutputCells    prometheus.Histogram
}

// NewCollector registers terrain metrics against the provided registerer,
// defaulting to the global Prometheus registry when nil.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	requests, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "terrain_requests_total",
		Help: "Total number of finalized terrain requests, labeled by build path and result.",
	}, []string{"path", "result"}), "terrain_requests_total")
	if err != nil {
		return nil, err
	}

	phases, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "terrain_phase_duration_seconds",
		Help:    "Duration of terrain build phases in seconds.",
		Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	}, []string{"phase"}), "terrain_phase_duration_seconds")
	if err != nil {
		return nil, err
	}

	vertices, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "terrain_input_vertices",
		Help:    "Distinct vertices accumulated per request.",
		Buckets: prometheus.ExponentialBuckets(16, 4, 10),
	}), "terrain_input_vertices")
	if err != nil {
		return nil, err
	}

	cells, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "terrain_output_cells",
		Help:    "Height samples written per request.",
		Buckets: prometheus.ExponentialBuckets(16, 4, 10),
	}), "terrain_output_cells")
	if err != nil {
		return nil, err
	}

	return &Collector{
		gatherer:       gatherer,
		Requests:       requests,
		PhaseDurations: phases,
		InputVertices:  vertices,
		OutputCells:    cells,
	}, nil
}

// ObserveRequest counts one finalized request
func (c *Collector) ObserveRequest(path, result string) {
	if c == nil || c.Requests == nil {
		return
	}
	c.Requests.WithLabelValues(path, result).Inc()
}

// ObservePhase records how long a build phase took
func (c *Collector) ObservePhase(phase string, d time.Duration) {
	if c == nil || c.PhaseDurations == nil {
		return
	}
	c.PhaseDurations.WithLabelValues(phase).Observe(d.Seconds())
}

// ObserveGrid records input and output sizes of a request
func (c *Collector) ObserveGrid(vertices, cells int) {
	if c == nil {
		return
	}
	if c.InputVertices != nil {
		c.InputVertices.Observe(float64(vertices))
	}
	if c.OutputCells != nil {
		c.OutputCells.Observe(float64(cells))
	}
}

// Gather collects the current metric families
func (c *Collector) Gather() ([]*dto.MetricFamily, error) {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return gatherer.Gather()
}

// WriteText writes the gathered families in the Prometheus text format
func (c *Collector) WriteText(w io.Writer) error {
	families, err := c.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("failed to write metric family %s: %w", mf.GetName(), err)
		}
	}
	return nil
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogram(reg prometheus.Registerer, h prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(h); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return h, nil
}
