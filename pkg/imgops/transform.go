package imgops

import (
	"fmt"
	"math"

	"golang.org/x/image/draw"
	"gonum.org/v1/gonum/floats"

	"microprep/pkg/fourier"
	"microprep/pkg/grid"
)

// logIntensity returns log(max(v, 1)) for every sample, so non-positive
// samples map to zero.
func logIntensity[T grid.Number](g *grid.Grid[T]) *grid.Grid[float64] {
	out := grid.New[float64](g.Height, g.Width)
	for i, v := range g.Data {
		f := float64(v)
		if f <= 0 {
			f = 1
		}
		out.Data[i] = math.Log(f)
	}
	return out
}

// scaleToByteRange maps [0, max] onto [1, 255] with truncation.
func scaleToByteRange(g *grid.Grid[float64]) *grid.Grid[uint8] {
	out := grid.New[uint8](g.Height, g.Width)
	hi := 0.0
	if len(g.Data) > 0 {
		hi = floats.Max(g.Data)
	}
	for i, v := range g.Data {
		if hi > 0 {
			v = v / hi * 254
		} else {
			v = 0
		}
		out.Data[i] = uint8(v + 1)
	}
	return out
}

// Transform prepares a raw micrograph for directional filtering: log
// intensity, resize to height x width, Fourier-domain masking with
// spectralMask (height x (width/2+1)), adaptive histogram equalisation over
// 128x128 tiles and, when
// rebin is set, 2x2 averaging. The result spans [1, 255].
func Transform[T grid.Number](g *grid.Grid[T], height, width int, spectralMask *grid.Grid[float64], rebin bool) (*grid.Grid[uint8], error) {
	if rebin && (height%2 != 0 || width%2 != 0) {
		return nil, fmt.Errorf("%w: rebinning needs an even target shape, got %dx%d", ErrInvalidArgument, height, width)
	}
	resized, err := Resize(logIntensity(g), height, width, draw.BiLinear)
	if err != nil {
		return nil, err
	}
	filtered, err := fourier.ApplyMask(resized, spectralMask)
	if err != nil {
		return nil, err
	}
	adapted, err := EqualizeAdaptive(ToUint8(filtered), 128, 128, DefaultClipLimit)
	if err != nil {
		return nil, err
	}
	equ := grid.Convert[float64](adapted)
	if rebin {
		equ, err = Rebin(equ, height/2, width/2)
		if err != nil {
			return nil, err
		}
	}
	floats.AddConst(-floats.Min(equ.Data), equ.Data)
	return scaleToByteRange(equ), nil
}

// TransformMinimal is the lighter preparation path: log intensity, resize,
// then a morphological Laplacian sharpening with a kh x kw kernel followed by
// adaptive histogram equalisation over 32x32 tiles.
func TransformMinimal[T grid.Number](g *grid.Grid[T], height, width, kh, kw int) (*grid.Grid[uint8], error) {
	resized, err := Resize(logIntensity(g), height, width, draw.BiLinear)
	if err != nil {
		return nil, err
	}
	equ := scaleToByteRange(resized)
	lapl, err := MorphLaplace(equ, kh, kw)
	if err != nil {
		return nil, err
	}
	summed := grid.New[float64](equ.Height, equ.Width)
	for i := range summed.Data {
		summed.Data[i] = 255 - float64(lapl.Data[i]) + float64(equ.Data[i])
	}
	adapted, err := EqualizeAdaptive(ToUint8(summed), 32, 32, DefaultClipLimit)
	if err != nil {
		return nil, err
	}
	return ToUint8(adapted), nil
}
