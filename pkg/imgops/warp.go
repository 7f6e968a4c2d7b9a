package imgops

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
	"gonum.org/v1/gonum/mat"

	"microprep/pkg/grid"
	"microprep/pkg/imageio"
)

// Interpolator returns the resampling kernel for a configuration name:
// "nearest", "linear" or "cubic".
func Interpolator(name string) (draw.Interpolator, error) {
	switch name {
	case "nearest":
		return draw.NearestNeighbor, nil
	case "linear", "":
		return draw.BiLinear, nil
	case "cubic":
		return draw.CatmullRom, nil
	}
	return nil, fmt.Errorf("%w: unknown interpolation %q", ErrInvalidArgument, name)
}

// Resize resamples g to height x width. The samples pass through a 16-bit
// normalised image, so precision is limited to 1/65535 of g's range.
func Resize(g *grid.Grid[float64], height, width int, interp draw.Interpolator) (*grid.Grid[float64], error) {
	if height <= 0 || width <= 0 {
		return nil, fmt.Errorf("%w: target size must be positive, got %dx%d", ErrInvalidArgument, height, width)
	}
	if g.Height == 0 || g.Width == 0 {
		return nil, fmt.Errorf("%w: cannot resize an empty grid", ErrInvalidArgument)
	}
	src, lo, hi := imageio.Normalized(g)
	dst := image.NewGray16(image.Rect(0, 0, width, height))
	interp.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return imageio.Denormalize(dst, lo, hi), nil
}

// Border selects what a warp writes where the source does not reach.
type Border int

const (
	// BorderConstant leaves uncovered pixels at zero.
	BorderConstant Border = iota
	// BorderReplicate extends the source by repeating its edge pixels,
	// which keeps a rotate-back close to the original along the edges.
	BorderReplicate
)

// Rotation records what RotateBack needs to undo RotateBound.
type Rotation struct {
	Height, Width int
	// Inverse maps rotated coordinates back onto the original image.
	Inverse f64.Aff3
	Border  Border
}

// RotateBound rotates g clockwise by angle degrees about its centre, growing
// the canvas so no part of the image is cut off. Canvas pixels outside the
// rotated image are filled according to border.
func RotateBound(g *grid.Grid[uint8], angle float64, interp draw.Interpolator, border Border) (*grid.Grid[uint8], Rotation, error) {
	w, h := float64(g.Width), float64(g.Height)
	cx, cy := w/2, h/2

	theta := -angle * math.Pi / 180
	alpha, beta := math.Cos(theta), math.Sin(theta)
	cos, sin := math.Abs(alpha), math.Abs(beta)
	nW := int(math.Round(h*sin + w*cos))
	nH := int(math.Round(h*cos + w*sin))

	fwd := f64.Aff3{
		alpha, beta, (1-alpha)*cx - beta*cy + float64(nW)/2 - cx,
		-beta, alpha, beta*cx + (1-alpha)*cy + float64(nH)/2 - cy,
	}
	inv, err := invertAffine(fwd)
	if err != nil {
		return nil, Rotation{}, err
	}

	out, err := warp(g, nH, nW, fwd, interp, border)
	if err != nil {
		return nil, Rotation{}, err
	}
	return out, Rotation{Height: g.Height, Width: g.Width, Inverse: inv, Border: border}, nil
}

// RotateBack undoes RotateBound, cropping back to the original shape with
// the border RotateBound used.
func RotateBack(g *grid.Grid[uint8], rot Rotation, interp draw.Interpolator) (*grid.Grid[uint8], error) {
	return warp(g, rot.Height, rot.Width, rot.Inverse, interp, rot.Border)
}

// warp maps g through s2d onto a height x width canvas.
func warp(g *grid.Grid[uint8], height, width int, s2d f64.Aff3, interp draw.Interpolator, border Border) (*grid.Grid[uint8], error) {
	dst := image.NewGray(image.Rect(0, 0, width, height))
	var src *image.Gray
	switch border {
	case BorderConstant:
		src = imageio.FromGray8(g)
	case BorderReplicate:
		d2s, err := invertAffine(s2d)
		if err != nil {
			return nil, err
		}
		src = replicatePad(g, reach(d2s, width, height, g.Width, g.Height)+2)
	default:
		return nil, fmt.Errorf("%w: unknown border %d", ErrInvalidArgument, int(border))
	}
	interp.Transform(dst, s2d, src, src.Bounds(), draw.Src, nil)
	return imageio.Gray8(dst), nil
}

// reach returns how far, in whole pixels, the corners of a width x height
// canvas land outside a srcW x srcH source under d2s.
func reach(d2s f64.Aff3, width, height, srcW, srcH int) int {
	over := 0.0
	for _, c := range [][2]float64{{0, 0}, {float64(width), 0}, {0, float64(height)}, {float64(width), float64(height)}} {
		sx := d2s[0]*c[0] + d2s[1]*c[1] + d2s[2]
		sy := d2s[3]*c[0] + d2s[4]*c[1] + d2s[5]
		over = max(over, -sx, -sy, sx-float64(srcW), sy-float64(srcH))
	}
	return int(math.Ceil(over))
}

// replicatePad returns g as an image whose bounds extend pad pixels past
// every edge, the extension repeating the nearest edge pixel. The original
// pixels keep their coordinates.
func replicatePad(g *grid.Grid[uint8], pad int) *image.Gray {
	img := image.NewGray(image.Rect(-pad, -pad, g.Width+pad, g.Height+pad))
	if len(g.Data) == 0 {
		return img
	}
	for y := -pad; y < g.Height+pad; y++ {
		sy := min(max(y, 0), g.Height-1)
		for x := -pad; x < g.Width+pad; x++ {
			sx := min(max(x, 0), g.Width-1)
			img.SetGray(x, y, color.Gray{Y: g.At(sy, sx)})
		}
	}
	return img
}

func invertAffine(a f64.Aff3) (f64.Aff3, error) {
	m := mat.NewDense(3, 3, []float64{
		a[0], a[1], a[2],
		a[3], a[4], a[5],
		0, 0, 1,
	})
	var inv mat.Dense
	if err := inv.Inverse(m); err != nil {
		return f64.Aff3{}, fmt.Errorf("%w: affine transform is not invertible: %v", ErrInvalidArgument, err)
	}
	return f64.Aff3{
		inv.At(0, 0), inv.At(0, 1), inv.At(0, 2),
		inv.At(1, 0), inv.At(1, 1), inv.At(1, 2),
	}, nil
}
