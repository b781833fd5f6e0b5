// Package octet encodes height grids into the binary terrain stream:
//
//	int32   column count
//	int32   row count
//	float32 sample spacing along X
//	float32 sample spacing along Z
//	float32 heights, row-major, each row in reversed column order
//
// Big-endian unless another byte order is requested.
package octet

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/1F47E/go-terrain-grid/pkg/grid"
	"github.com/1F47E/go-terrain-grid/pkg/models"
)

// HeaderSize is the encoded size of Header in bytes
const HeaderSize = 16

// ErrTruncated is returned by Decode when the stream is shorter than its header claims
var ErrTruncated = errors.New("truncated octet stream")

// Header leads every stream
type Header struct {
	Width    int32
	Height   int32
	SpacingX float32
	SpacingY float32
}

// NewHeader derives the header of g covering bbox
func NewHeader(g *grid.Grid, bbox models.BoundingBox) Header {
	return Header{
		Width:    int32(g.Width),
		Height:   int32(g.Height),
		SpacingX: float32(bbox.Width()) / float32(g.Width),
		SpacingY: float32(bbox.Depth()) / float32(g.Height),
	}
}

// ParseByteOrder maps a configuration name to a byte order.
// An empty name selects big-endian.
func ParseByteOrder(name string) (binary.ByteOrder, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	n = strings.NewReplacer("-", "", "_", "", " ", "").Replace(n)
	switch n {
	case "", "big", "bigendian":
		return binary.BigEndian, nil
	case "little", "littleendian":
		return binary.LittleEndian, nil
	default:
		return nil, fmt.Errorf("unknown byte order %q", name)
	}
}

// Encode serializes g into a new buffer
func Encode(g *grid.Grid, bbox models.BoundingBox, order binary.ByteOrder) ([]byte, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	if order == nil {
		order = binary.BigEndian
	}

	heights := make([]float32, 0, len(g.Heights))
	for row := 0; row < g.Height; row++ {
		r := g.Row(row)
		for col := len(r) - 1; col >= 0; col-- {
			heights = append(heights, float32(r[col]))
		}
	}

	buf := bytes.NewBuffer(make([]byte, 0, HeaderSize+4*len(heights)))
	if err := binary.Write(buf, order, NewHeader(g, bbox)); err != nil {
		return nil, fmt.Errorf("failed to encode header: %w", err)
	}
	if err := binary.Write(buf, order, heights); err != nil {
		return nil, fmt.Errorf("failed to encode heights: %w", err)
	}
	return buf.Bytes(), nil
}

// Write encodes g and hands it to w in a single call. Nothing is written
// when encoding fails. A failing or short write yields models.ErrWrite.
func Write(w io.Writer, g *grid.Grid, bbox models.BoundingBox, order binary.ByteOrder) (int, error) {
	data, err := Encode(g, bbox, order)
	if err != nil {
		return 0, err
	}

	n, err := w.Write(data)
	if err != nil {
		return n, fmt.Errorf("%w: %w", models.ErrWrite, err)
	}
	if n != len(data) {
		return n, fmt.Errorf("%w: wrote %d of %d bytes", models.ErrWrite, n, len(data))
	}
	return n, nil
}

// Decode parses a stream back into its header and grid, restoring the
// column order of the encoded grid
func Decode(data []byte, order binary.ByteOrder) (Header, *grid.Grid, error) {
	if order == nil {
		order = binary.BigEndian
	}

	var h Header
	r := bytes.NewReader(data)
	if err := binary.Read(r, order, &h); err != nil {
		return Header{}, nil, fmt.Errorf("%w: %v", ErrTruncated, err)
	}
	if h.Width <= 0 || h.Height <= 0 {
		return Header{}, nil, fmt.Errorf("invalid grid size %dx%d", h.Width, h.Height)
	}

	n := int(h.Width) * int(h.Height)
	if r.Len() != 4*n {
		return Header{}, nil, fmt.Errorf("%w: %d bytes of heights for %dx%d grid",
			ErrTruncated, r.Len(), h.Width, h.Height)
	}

	heights := make([]float32, n)
	if err := binary.Read(r, order, heights); err != nil {
		return Header{}, nil, fmt.Errorf("%w: %v", ErrTruncated, err)
	}

	g := grid.New(int(h.Width), int(h.Height))
	for row := 0; row < g.Height; row++ {
		dst := g.Row(row)
		src := heights[row*g.Width : (row+1)*g.Width]
		for col := range dst {
			dst[col] = float64(src[g.Width-1-col])
		}
	}
	return h, g, nil
}
