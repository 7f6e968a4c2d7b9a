package imgops

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"microprep/pkg/grid"
)

// Bounds is a half-open rectangle [Row0,Row1) x [Col0,Col1).
type Bounds struct {
	Row0, Row1 int
	Col0, Col1 int
}

// Rebin reduces g to height x width by averaging equal blocks. The source
// dimensions must be multiples of the target ones.
func Rebin[T grid.Number](g *grid.Grid[T], height, width int) (*grid.Grid[float64], error) {
	if height <= 0 || width <= 0 || g.Height%height != 0 || g.Width%width != 0 {
		return nil, fmt.Errorf("%w: cannot rebin %s to %dx%d", ErrInvalidArgument, g.Shape(), height, width)
	}
	bh, bw := g.Height/height, g.Width/width
	out := grid.New[float64](height, width)
	for i := 0; i < g.Height; i++ {
		row := g.Row(i)
		dst := out.Row(i / bh)
		for j, v := range row {
			dst[j/bw] += float64(v)
		}
	}
	floats.Scale(1/float64(bh*bw), out.Data)
	return out, nil
}

// MakeSquare crops the largest square from g. With start nil the square is
// centred; otherwise start (0 <= start <= |H-W|) offsets it along the longer axis.
func MakeSquare[T grid.Number](g *grid.Grid[T], start *int) (*grid.Grid[T], Bounds, error) {
	side := min(g.Height, g.Width)
	delta := max(g.Height, g.Width) - side

	offset := delta / 2
	if start != nil {
		if *start < 0 || *start > delta {
			return nil, Bounds{}, fmt.Errorf("%w: start must be in [0,%d], got %d", ErrInvalidArgument, delta, *start)
		}
		offset = *start
	}

	b := Bounds{Row0: 0, Row1: side, Col0: 0, Col1: side}
	if g.Height > g.Width {
		b.Row0, b.Row1 = offset, offset+side
	} else {
		b.Col0, b.Col1 = offset, offset+side
	}
	sq, err := g.SubGrid(b.Row0, b.Row1, b.Col0, b.Col1)
	if err != nil {
		return nil, Bounds{}, err
	}
	return sq, b, nil
}

// PeriodicTiling repeats g tiles x tiles times. tiles must be odd; the
// returned bounds locate the centre copy.
func PeriodicTiling[T grid.Number](g *grid.Grid[T], tiles int) (*grid.Grid[T], Bounds, error) {
	if tiles <= 0 || tiles%2 == 0 {
		return nil, Bounds{}, fmt.Errorf("%w: tiles must be odd and positive, got %d", ErrInvalidArgument, tiles)
	}
	h, w := g.Height, g.Width
	out := grid.New[T](h*tiles, w*tiles)
	for i := 0; i < out.Height; i++ {
		src := g.Row(i % h)
		dst := out.Row(i)
		for t := 0; t < tiles; t++ {
			copy(dst[t*w:(t+1)*w], src)
		}
	}
	c := tiles / 2
	return out, Bounds{Row0: h * c, Row1: h * (c + 1), Col0: w * c, Col1: w * (c + 1)}, nil
}
