// Package fourier filters grids in the frequency domain.
//
// Spectra use the half-plane layout of a real 2-D transform: a grid of
// height H and width W has a spectrum of H x (W/2+1) coefficients, row-major.
package fourier

import (
	"fmt"

	"gonum.org/v1/gonum/dsp/fourier"

	"microprep/pkg/grid"
)

// Spectrum is the half-plane 2-D transform of a real grid.
type Spectrum struct {
	Height int
	Width  int // width of the spatial grid, not of Coeffs
	Coeffs []complex128
}

// Cols returns the number of coefficient columns, Width/2+1.
func (s *Spectrum) Cols() int { return s.Width/2 + 1 }

// Forward2D computes the real 2-D FFT of g.
// Rows are transformed with a real FFT, then each coefficient column with a complex FFT.
func Forward2D(g *grid.Grid[float64]) *Spectrum {
	h, w := g.Height, g.Width
	cols := w/2 + 1
	out := &Spectrum{Height: h, Width: w, Coeffs: make([]complex128, h*cols)}
	if h == 0 || w == 0 {
		return out
	}

	rowFFT := fourier.NewFFT(w)
	for i := 0; i < h; i++ {
		rowFFT.Coefficients(out.Coeffs[i*cols:(i+1)*cols], g.Row(i))
	}

	colFFT := fourier.NewCmplxFFT(h)
	col := make([]complex128, h)
	coef := make([]complex128, h)
	for j := 0; j < cols; j++ {
		for i := 0; i < h; i++ {
			col[i] = out.Coeffs[i*cols+j]
		}
		colFFT.Coefficients(coef, col)
		for i := 0; i < h; i++ {
			out.Coeffs[i*cols+j] = coef[i]
		}
	}
	return out
}

// Inverse2D reverses Forward2D, returning a normalised real grid.
func Inverse2D(s *Spectrum) *grid.Grid[float64] {
	h, w := s.Height, s.Width
	cols := s.Cols()
	out := grid.New[float64](h, w)
	if h == 0 || w == 0 {
		return out
	}

	work := make([]complex128, len(s.Coeffs))
	copy(work, s.Coeffs)

	colFFT := fourier.NewCmplxFFT(h)
	col := make([]complex128, h)
	seq := make([]complex128, h)
	for j := 0; j < cols; j++ {
		for i := 0; i < h; i++ {
			col[i] = work[i*cols+j]
		}
		colFFT.Sequence(seq, col)
		for i := 0; i < h; i++ {
			work[i*cols+j] = seq[i]
		}
	}

	rowFFT := fourier.NewFFT(w)
	norm := 1 / float64(h*w)
	for i := 0; i < h; i++ {
		row := out.Row(i)
		rowFFT.Sequence(row, work[i*cols:(i+1)*cols])
		for j := range row {
			row[j] *= norm
		}
	}
	return out
}

// ApplyMask multiplies the spectrum of g by mask and transforms back.
// The mask must be H x (W/2+1).
func ApplyMask(g *grid.Grid[float64], mask *grid.Grid[float64]) (*grid.Grid[float64], error) {
	want := grid.Shape{Height: g.Height, Width: g.Width/2 + 1}
	if err := grid.CheckShape("spectral mask", want, mask.Shape()); err != nil {
		return nil, err
	}
	s := Forward2D(g)
	for i, m := range mask.Data {
		s.Coeffs[i] *= complex(m, 0)
	}
	return Inverse2D(s), nil
}

// LowPassMask builds a spectral mask passing frequencies whose normalised
// radius is at most cutoff (0 < cutoff <= 1, where 1 is the Nyquist corner).
func LowPassMask(height, width int, cutoff float64) (*grid.Grid[float64], error) {
	if cutoff <= 0 || cutoff > 1 {
		return nil, fmt.Errorf("fourier: cutoff must be in (0,1], got %v", cutoff)
	}
	cols := width/2 + 1
	m := grid.New[float64](height, cols)
	for i := 0; i < height; i++ {
		fi := i
		if fi > height/2 {
			fi -= height
		}
		fy := float64(fi) / float64(max(height/2, 1))
		for j := 0; j < cols; j++ {
			fx := float64(j) / float64(max(width/2, 1))
			if fx*fx+fy*fy <= cutoff*cutoff {
				m.Set(i, j, 1)
			}
		}
	}
	return m, nil
}
