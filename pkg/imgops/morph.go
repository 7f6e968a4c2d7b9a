// Package imgops holds the stateless image-to-image transforms used when
// preparing micrographs: morphology, lookup tables, normalisation, cropping,
// tiling, resampling and the composite preparation transforms.
package imgops

import (
	"errors"
	"fmt"

	"microprep/pkg/grid"
)

// ErrInvalidArgument is returned when a transform's arguments are out of range.
var ErrInvalidArgument = errors.New("invalid argument")

// Erode replaces every sample with the minimum over a kh x kw rectangle.
// Samples outside the grid are ignored.
func Erode[T grid.Number](g *grid.Grid[T], kh, kw int) (*grid.Grid[T], error) {
	return rectFilter(g, kh, kw, func(a, b T) bool { return a < b })
}

// Dilate replaces every sample with the maximum over a kh x kw rectangle.
// Samples outside the grid are ignored.
func Dilate[T grid.Number](g *grid.Grid[T], kh, kw int) (*grid.Grid[T], error) {
	return rectFilter(g, kh, kw, func(a, b T) bool { return a > b })
}

// rectFilter applies a separable rank filter. better(a, b) reports whether a
// should replace b. The rectangle for (i, j) starts at (i-kh/2, j-kw/2).
func rectFilter[T grid.Number](g *grid.Grid[T], kh, kw int, better func(a, b T) bool) (*grid.Grid[T], error) {
	if kh <= 0 || kw <= 0 {
		return nil, fmt.Errorf("%w: kernel must be positive, got %dx%d", ErrInvalidArgument, kh, kw)
	}
	h, w := g.Height, g.Width
	tmp := grid.New[T](h, w)
	for i := 0; i < h; i++ {
		src, dst := g.Row(i), tmp.Row(i)
		for j := 0; j < w; j++ {
			lo := max(j-kw/2, 0)
			hi := min(j-kw/2+kw, w)
			best := src[lo]
			for x := lo + 1; x < hi; x++ {
				if better(src[x], best) {
					best = src[x]
				}
			}
			dst[j] = best
		}
	}

	out := grid.New[T](h, w)
	for j := 0; j < w; j++ {
		for i := 0; i < h; i++ {
			lo := max(i-kh/2, 0)
			hi := min(i-kh/2+kh, h)
			best := tmp.Data[lo*w+j]
			for y := lo + 1; y < hi; y++ {
				if v := tmp.Data[y*w+j]; better(v, best) {
					best = v
				}
			}
			out.Data[i*w+j] = best
		}
	}
	return out, nil
}

// MorphLaplace computes erode + dilate - 2*img - 128 over a kh x kw
// rectangle. The arithmetic wraps modulo 256 like any uint8 sum, so flat
// regions map to 128.
func MorphLaplace(g *grid.Grid[uint8], kh, kw int) (*grid.Grid[uint8], error) {
	e, err := Erode(g, kh, kw)
	if err != nil {
		return nil, err
	}
	d, err := Dilate(g, kh, kw)
	if err != nil {
		return nil, err
	}
	out := grid.New[uint8](g.Height, g.Width)
	for i, v := range g.Data {
		out.Data[i] = e.Data[i] + d.Data[i] - 2*v - 128
	}
	return out, nil
}

// SuppressNoiseLines removes bright horizontal structures shorter than k
// pixels with a 1 x k opening (erode then dilate).
func SuppressNoiseLines[T grid.Number](g *grid.Grid[T], k int) (*grid.Grid[T], error) {
	e, err := Erode(g, 1, k)
	if err != nil {
		return nil, err
	}
	return Dilate(e, 1, k)
}
