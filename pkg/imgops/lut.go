package imgops

import (
	"fmt"
	"math"

	"microprep/pkg/grid"
)

// LUT maps every 8-bit sample through a 256-entry table.
type LUT [256]uint8

// Apply returns a new grid with every sample looked up in the table.
func (t *LUT) Apply(g *grid.Grid[uint8]) *grid.Grid[uint8] {
	out := grid.New[uint8](g.Height, g.Width)
	for i, v := range g.Data {
		out.Data[i] = t[v]
	}
	return out
}

// GammaLUT builds the table ((i/255)^(1/gamma))*255, truncated.
func GammaLUT(gamma float64) (*LUT, error) {
	if !(gamma > 0) || math.IsInf(gamma, 0) {
		return nil, fmt.Errorf("%w: gamma must be a positive finite number, got %v", ErrInvalidArgument, gamma)
	}
	inv := 1 / gamma
	var t LUT
	for i := range t {
		t[i] = uint8(math.Pow(float64(i)/255, inv) * 255)
	}
	return &t, nil
}

// GammaCorrect applies GammaLUT(gamma) to g.
func GammaCorrect(g *grid.Grid[uint8], gamma float64) (*grid.Grid[uint8], error) {
	t, err := GammaLUT(gamma)
	if err != nil {
		return nil, err
	}
	return t.Apply(g), nil
}

// DefaultClipLimit is the histogram clip limit used by the preparation
// transforms, as a fraction of the tile area.
const DefaultClipLimit = 0.01

// EqualizeAdaptive performs contrast limited adaptive histogram equalisation
// (CLAHE). g is split into tiles of kh x kw pixels (clamped to the grid);
// each tile gets a 256-bin histogram clipped at clipLimit times its area,
// with the excess spread evenly over all bins, and a lookup table built
// from its cumulative distribution. Every pixel blends the tables of the
// four nearest tile centres bilinearly.
func EqualizeAdaptive(g *grid.Grid[uint8], kh, kw int, clipLimit float64) (*grid.Grid[uint8], error) {
	if kh <= 0 || kw <= 0 {
		return nil, fmt.Errorf("%w: kernel must be positive, got %dx%d", ErrInvalidArgument, kh, kw)
	}
	if !(clipLimit > 0 && clipLimit <= 1) {
		return nil, fmt.Errorf("%w: clip limit must be in (0, 1], got %v", ErrInvalidArgument, clipLimit)
	}
	out := grid.New[uint8](g.Height, g.Width)
	if len(g.Data) == 0 {
		return out, nil
	}
	kh, kw = min(kh, g.Height), min(kw, g.Width)
	ny := (g.Height + kh - 1) / kh
	nx := (g.Width + kw - 1) / kw

	luts := make([]LUT, ny*nx)
	for ty := 0; ty < ny; ty++ {
		for tx := 0; tx < nx; tx++ {
			tile, err := g.SubGrid(ty*kh, min((ty+1)*kh, g.Height), tx*kw, min((tx+1)*kw, g.Width))
			if err != nil {
				return nil, err
			}
			luts[ty*nx+tx] = clippedLUT(tile.Data, clipLimit)
		}
	}

	// neighbours returns the two tile indices around position p and the
	// weight of the second one.
	neighbours := func(p, size, tiles int) (int, int, float64) {
		c := (float64(p)+0.5)/float64(size) - 0.5
		t0 := int(math.Floor(c))
		if t0 < 0 {
			return 0, 0, 0
		}
		if t0 >= tiles-1 {
			return tiles - 1, tiles - 1, 0
		}
		return t0, t0 + 1, c - float64(t0)
	}

	for y := 0; y < g.Height; y++ {
		y0, y1, wy := neighbours(y, kh, ny)
		for x := 0; x < g.Width; x++ {
			x0, x1, wx := neighbours(x, kw, nx)
			v := g.At(y, x)
			top := (1-wx)*float64(luts[y0*nx+x0][v]) + wx*float64(luts[y0*nx+x1][v])
			bottom := (1-wx)*float64(luts[y1*nx+x0][v]) + wx*float64(luts[y1*nx+x1][v])
			out.Set(y, x, uint8(math.Round((1-wy)*top+wy*bottom)))
		}
	}
	return out, nil
}

// clippedLUT builds the equalisation table of one tile.
func clippedLUT(samples []uint8, clipLimit float64) LUT {
	var hist [256]int
	for _, v := range samples {
		hist[v]++
	}

	limit := max(int(clipLimit*float64(len(samples))), 1)
	excess := 0
	for i, c := range hist {
		if c > limit {
			excess += c - limit
			hist[i] = limit
		}
	}
	for i := range hist {
		hist[i] += excess / 256
		if i < excess%256 {
			hist[i]++
		}
	}

	var t LUT
	cdf := 0
	scale := 255 / float64(len(samples))
	for i, c := range hist {
		cdf += c
		t[i] = uint8(math.Round(float64(cdf) * scale))
	}
	return t
}
