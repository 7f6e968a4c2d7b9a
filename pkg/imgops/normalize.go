package imgops

import (
	"gonum.org/v1/gonum/floats"

	"microprep/pkg/grid"
)

// ToUint8 shifts g so its minimum is zero and scales the maximum to 255.
// A flat grid maps to zeros.
func ToUint8[T grid.Number](g *grid.Grid[T]) *grid.Grid[uint8] {
	return stretch[uint8](g, 255.5)
}

// ToUint16 is ToUint8 for the 16-bit range.
func ToUint16[T grid.Number](g *grid.Grid[T]) *grid.Grid[uint16] {
	return stretch[uint16](g, 65535.5)
}

func stretch[D grid.Number, S grid.Number](g *grid.Grid[S], top float64) *grid.Grid[D] {
	out := grid.New[D](g.Height, g.Width)
	if len(g.Data) == 0 {
		return out
	}
	values := grid.Float64s(g)
	floats.AddConst(-floats.Min(values), values)
	hi := floats.Max(values)
	if hi == 0 {
		return out
	}
	for i, v := range values {
		out.Data[i] = D(v / hi * top)
	}
	return out
}
