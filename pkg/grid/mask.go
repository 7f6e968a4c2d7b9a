package grid

import "fmt"

// Mask marks which cells of a grid are eligible for analysis.
type Mask struct {
	Height int
	Width  int
	Data   []bool
}

// NewMask allocates a mask with every cell set to fill.
func NewMask(height, width int, fill bool) *Mask {
	if height < 0 || width < 0 {
		panic(fmt.Sprintf("grid: negative mask dimensions %dx%d", height, width))
	}
	m := &Mask{Height: height, Width: width, Data: make([]bool, height*width)}
	if fill {
		for i := range m.Data {
			m.Data[i] = true
		}
	}
	return m
}

// MaskFromData wraps an existing row-major buffer. The buffer is not copied.
func MaskFromData(height, width int, data []bool) (*Mask, error) {
	if len(data) != height*width {
		return nil, fmt.Errorf("%w: mask buffer holds %d cells, %dx%d needs %d",
			ErrShapeMismatch, len(data), height, width, height*width)
	}
	return &Mask{Height: height, Width: width, Data: data}, nil
}

// MaskWhere builds a mask that is true wherever keep returns true for the sample.
func MaskWhere[T Number](g *Grid[T], keep func(T) bool) *Mask {
	m := NewMask(g.Height, g.Width, false)
	for i, v := range g.Data {
		m.Data[i] = keep(v)
	}
	return m
}

func (m *Mask) Shape() Shape { return Shape{Height: m.Height, Width: m.Width} }

func (m *Mask) At(i, j int) bool { return m.Data[i*m.Width+j] }

func (m *Mask) Set(i, j int, v bool) { m.Data[i*m.Width+j] = v }

// Count returns the number of true cells.
func (m *Mask) Count() int {
	n := 0
	for _, v := range m.Data {
		if v {
			n++
		}
	}
	return n
}
