// Package grid provides the dense 2-D sample and mask containers shared by
// every micrograph transform in microprep.
//
// All containers are row-major: the sample at row i, column j lives at
// Data[i*Width+j].
package grid

import (
	"errors"
	"fmt"

	"golang.org/x/exp/constraints"
)

// ErrShapeMismatch is returned when two containers that must share a shape do not.
var ErrShapeMismatch = errors.New("shape mismatch")

// Number is the set of sample types a Grid can hold.
type Number interface {
	constraints.Integer | constraints.Float
}

// Shape is the height and width of a grid or mask.
type Shape struct {
	Height int
	Width  int
}

// Len returns the number of cells covered by the shape.
func (s Shape) Len() int { return s.Height * s.Width }

func (s Shape) String() string { return fmt.Sprintf("%dx%d", s.Height, s.Width) }

// Grid is a dense, row-major 2-D array of samples.
type Grid[T Number] struct {
	Height int
	Width  int
	Data   []T
}

// New allocates a zero-filled grid of the given shape.
func New[T Number](height, width int) *Grid[T] {
	if height < 0 || width < 0 {
		panic(fmt.Sprintf("grid: negative dimensions %dx%d", height, width))
	}
	return &Grid[T]{
		Height: height,
		Width:  width,
		Data:   make([]T, height*width),
	}
}

// FromData wraps an existing row-major buffer. The buffer is not copied.
func FromData[T Number](height, width int, data []T) (*Grid[T], error) {
	if height < 0 || width < 0 {
		return nil, fmt.Errorf("grid: negative dimensions %dx%d", height, width)
	}
	if len(data) != height*width {
		return nil, fmt.Errorf("%w: buffer holds %d samples, %dx%d needs %d",
			ErrShapeMismatch, len(data), height, width, height*width)
	}
	return &Grid[T]{Height: height, Width: width, Data: data}, nil
}

// Fill returns a grid of the given shape with every sample set to v.
func Fill[T Number](height, width int, v T) *Grid[T] {
	g := New[T](height, width)
	for i := range g.Data {
		g.Data[i] = v
	}
	return g
}

// Shape returns the grid's dimensions.
func (g *Grid[T]) Shape() Shape { return Shape{Height: g.Height, Width: g.Width} }

// At returns the sample at row i, column j.
func (g *Grid[T]) At(i, j int) T { return g.Data[i*g.Width+j] }

// Set stores v at row i, column j.
func (g *Grid[T]) Set(i, j int, v T) { g.Data[i*g.Width+j] = v }

// Row returns row i as a slice aliasing the grid's buffer.
func (g *Grid[T]) Row(i int) []T { return g.Data[i*g.Width : (i+1)*g.Width] }

// Clone returns a deep copy of the grid.
func (g *Grid[T]) Clone() *Grid[T] {
	out := &Grid[T]{Height: g.Height, Width: g.Width, Data: make([]T, len(g.Data))}
	copy(out.Data, g.Data)
	return out
}

// SubGrid copies the rectangle [r0,r1) x [c0,c1) into a new grid.
func (g *Grid[T]) SubGrid(r0, r1, c0, c1 int) (*Grid[T], error) {
	if r0 < 0 || c0 < 0 || r1 > g.Height || c1 > g.Width || r0 > r1 || c0 > c1 {
		return nil, fmt.Errorf("grid: rectangle [%d,%d)x[%d,%d) outside %s",
			r0, r1, c0, c1, g.Shape())
	}
	out := New[T](r1-r0, c1-c0)
	for i := r0; i < r1; i++ {
		copy(out.Row(i-r0), g.Data[i*g.Width+c0:i*g.Width+c1])
	}
	return out, nil
}

// Convert copies a grid into a grid of another sample type using Go's
// numeric conversion rules.
func Convert[D, S Number](src *Grid[S]) *Grid[D] {
	out := New[D](src.Height, src.Width)
	for i, v := range src.Data {
		out.Data[i] = D(v)
	}
	return out
}

// Float64s returns the samples widened to float64.
func Float64s[T Number](g *Grid[T]) []float64 {
	out := make([]float64, len(g.Data))
	for i, v := range g.Data {
		out[i] = float64(v)
	}
	return out
}

// CheckShape returns an ErrShapeMismatch wrapped with name when got differs from want.
func CheckShape(name string, want, got Shape) error {
	if want != got {
		return fmt.Errorf("%w: %s is %s, want %s", ErrShapeMismatch, name, got, want)
	}
	return nil
}
