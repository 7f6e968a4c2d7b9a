package anms

import (
	"fmt"
	"math"

	"microprep/pkg/grid"
)

// BoundaryPolicy decides what the aggregator reads for a window position
// that falls outside the grid.
type BoundaryPolicy int

const (
	// Isolated treats out-of-bounds samples as zero.
	Isolated BoundaryPolicy = iota
	// Replicate repeats the nearest edge sample.
	Replicate
	// Reflect mirrors about the edge sample without repeating it (dcb|abcd|cba).
	Reflect
)

var boundaryNames = map[BoundaryPolicy]string{
	Isolated:  "isolated",
	Replicate: "replicate",
	Reflect:   "reflect",
}

func (b BoundaryPolicy) String() string {
	if name, ok := boundaryNames[b]; ok {
		return name
	}
	return fmt.Sprintf("BoundaryPolicy(%d)", int(b))
}

func (b BoundaryPolicy) valid() bool {
	_, ok := boundaryNames[b]
	return ok
}

// ParseBoundaryPolicy maps a policy name back to its value.
func ParseBoundaryPolicy(name string) (BoundaryPolicy, error) {
	for policy, n := range boundaryNames {
		if n == name {
			return policy, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown boundary policy %q", ErrInvalidParameter, name)
}

// index maps a possibly out-of-range position onto [0,n). ok is false when
// the position contributes nothing.
func (b BoundaryPolicy) index(k, n int) (idx int, ok bool) {
	if k >= 0 && k < n {
		return k, true
	}
	switch b {
	case Replicate:
		if k < 0 {
			return 0, true
		}
		return n - 1, true
	case Reflect:
		if n == 1 {
			return 0, true
		}
		period := 2 * (n - 1)
		k %= period
		if k < 0 {
			k += period
		}
		if k >= n {
			k = period - k
		}
		return k, true
	default:
		return 0, false
	}
}

// Fields holds the two directional aggregates of a grid.
type Fields struct {
	// Column sums KSize samples along the vertical axis.
	Column *grid.Grid[float64]
	// Row sums KSize+AsymPix samples along the horizontal axis.
	Row *grid.Grid[float64]

	KSize    int
	AsymPix  int
	Boundary BoundaryPolicy
}

// Shape returns the shape shared by both fields.
func (f *Fields) Shape() grid.Shape { return f.Column.Shape() }

// Aggregate computes the column and row fields of img. Sums are accumulated
// in float64 with a sliding window, so the cost is independent of the window length.
func Aggregate[T grid.Number](img *grid.Grid[T], ksize, asympix int, boundary BoundaryPolicy) (*Fields, error) {
	if img == nil {
		return nil, fmt.Errorf("%w: img is nil", ErrInvalidParameter)
	}
	if err := validateWindow(ksize, asympix); err != nil {
		return nil, err
	}
	if !boundary.valid() {
		return nil, fmt.Errorf("%w: unknown boundary policy %d", ErrInvalidParameter, int(boundary))
	}

	h, w := img.Height, img.Width
	column := grid.New[float64](h, w)
	row := grid.New[float64](h, w)

	line := make([]float64, max(h, w))
	out := make([]float64, max(h, w))

	// Vertical pass: one column at a time.
	for j := 0; j < w; j++ {
		for i := 0; i < h; i++ {
			line[i] = float64(img.Data[i*w+j])
		}
		boxSum(line[:h], out[:h], ksize, boundary)
		for i := 0; i < h; i++ {
			column.Data[i*w+j] = out[i]
		}
	}

	// Horizontal pass: rows are contiguous, write straight into the field.
	for i := 0; i < h; i++ {
		src := img.Row(i)
		for j, v := range src {
			line[j] = float64(v)
		}
		boxSum(line[:w], row.Row(i), ksize+asympix, boundary)
	}

	return &Fields{
		Column:   column,
		Row:      row,
		KSize:    ksize,
		AsymPix:  asympix,
		Boundary: boundary,
	}, nil
}

// boxSum writes to dst the sum of length consecutive samples of src around
// each position. The window for position k covers [k-length/2, k-length/2+length-1],
// which is centred for odd lengths and anchored one sample left for even ones.
func boxSum(src, dst []float64, length int, boundary BoundaryPolicy) {
	n := len(src)
	if n == 0 {
		return
	}
	sample := func(k int) float64 {
		idx, ok := boundary.index(k, n)
		if !ok {
			return 0
		}
		return src[idx]
	}
	reseed := func(first int) windowSum {
		var w windowSum
		for k := first; k < first+length; k++ {
			w.add(sample(k))
		}
		return w
	}

	lo := -length / 2
	w := reseed(lo)
	dst[0] = w.value()
	for k := 1; k < n; k++ {
		w.add(sample(k + lo + length - 1))
		w.remove(sample(k + lo - 1))
		if w.overflowed() {
			w = reseed(k + lo)
		}
		dst[k] = w.value()
	}
}

// windowSum is a sliding sum that stays local to its window. Finite samples
// use Neumaier compensation, so a large sample that leaves the window takes
// no precision with it. Non-finite samples are counted rather than summed.
type windowSum struct {
	sum, comp            float64
	posInf, negInf, nans int
}

func (w *windowSum) add(x float64)    { w.update(x, 1) }
func (w *windowSum) remove(x float64) { w.update(x, -1) }

func (w *windowSum) update(x float64, n int) {
	switch {
	case math.IsNaN(x):
		w.nans += n
	case math.IsInf(x, 1):
		w.posInf += n
	case math.IsInf(x, -1):
		w.negInf += n
	default:
		if n < 0 {
			x = -x
		}
		t := w.sum + x
		if math.Abs(w.sum) >= math.Abs(x) {
			w.comp += (w.sum - t) + x
		} else {
			w.comp += (x - t) + w.sum
		}
		w.sum = t
	}
}

// overflowed reports whether the finite part left float64 range and has to
// be rebuilt from the window.
func (w *windowSum) overflowed() bool {
	return math.IsInf(w.sum, 0) || math.IsNaN(w.sum) || math.IsInf(w.comp, 0) || math.IsNaN(w.comp)
}

func (w *windowSum) value() float64 {
	switch {
	case w.nans > 0 || (w.posInf > 0 && w.negInf > 0):
		return math.NaN()
	case w.posInf > 0:
		return math.Inf(1)
	case w.negInf > 0:
		return math.Inf(-1)
	}
	return w.sum + w.comp
}
