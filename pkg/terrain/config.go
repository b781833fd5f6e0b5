package terrain

import (
	"encoding/binary"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/1F47E/go-terrain-grid/internal/observability"
	"github.com/1F47E/go-terrain-grid/pkg/border"
	"github.com/1F47E/go-terrain-grid/pkg/grid"
	"github.com/1F47E/go-terrain-grid/pkg/resample"
)

// Config carries the tunables and collaborators of a terrain build.
// Zero values fall back to the package defaults.
type Config struct {
	RowTolerance  float64
	EdgeTolerance float64
	ByteOrder     binary.ByteOrder
	GeodeticCRS   []string
	Kernel        resample.Kernel
	Workers       int

	Logger  *zap.Logger
	Metrics *observability.Collector
	Tracer  trace.Tracer
}

// DefaultConfig returns a Config with every default filled in
func DefaultConfig() Config {
	return Config{}.withDefaults()
}

func (c Config) withDefaults() Config {
	if c.RowTolerance <= 0 {
		c.RowTolerance = grid.DefaultRowTolerance
	}
	if c.EdgeTolerance <= 0 {
		c.EdgeTolerance = border.DefaultEdgeTolerance
	}
	if c.ByteOrder == nil {
		c.ByteOrder = binary.BigEndian
	}
	if len(c.GeodeticCRS) == 0 {
		c.GeodeticCRS = border.DefaultGeodeticCRS
	}
	if c.Kernel == nil {
		c.Kernel = resample.DefaultKernel
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	if c.Tracer == nil {
		c.Tracer = noop.NewTracerProvider().Tracer(observability.TracerName)
	}
	return c
}
