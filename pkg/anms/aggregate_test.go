package anms

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"microprep/pkg/grid"
)

// naiveBoxSum sums the window directly, for comparison with the sliding version.
func naiveBoxSum(src []float64, length int, boundary BoundaryPolicy) []float64 {
	n := len(src)
	out := make([]float64, n)
	for k := 0; k < n; k++ {
		lo := k - length/2
		for x := lo; x < lo+length; x++ {
			if idx, ok := boundary.index(x, n); ok {
				out[k] += src[idx]
			}
		}
	}
	return out
}

func rampGrid(h, w int) *grid.Grid[uint16] {
	g := grid.New[uint16](h, w)
	for i := range g.Data {
		g.Data[i] = uint16((i*37 + 11) % 251)
	}
	return g
}

func TestBoxSumMatchesNaive(t *testing.T) {
	src := []float64{3, 1, 4, 1, 5, 9, 2, 6, 5}
	for _, policy := range []BoundaryPolicy{Isolated, Replicate, Reflect} {
		for _, length := range []int{1, 2, 3, 4, 5, 8, 9, 13} {
			dst := make([]float64, len(src))
			boxSum(src, dst, length, policy)
			assert.Equal(t, naiveBoxSum(src, length, policy), dst,
				"policy=%s length=%d", policy, length)
		}
	}
}

func TestBoundaryIndex(t *testing.T) {
	tests := []struct {
		policy BoundaryPolicy
		k, n   int
		want   int
		ok     bool
	}{
		{Isolated, -1, 5, 0, false},
		{Isolated, 5, 5, 0, false},
		{Isolated, 2, 5, 2, true},
		{Replicate, -3, 5, 0, true},
		{Replicate, 7, 5, 4, true},
		{Reflect, -1, 5, 1, true},
		{Reflect, -2, 5, 2, true},
		{Reflect, 5, 5, 3, true},
		{Reflect, 6, 5, 2, true},
		{Reflect, -4, 1, 0, true},
	}
	for _, tt := range tests {
		got, ok := tt.policy.index(tt.k, tt.n)
		assert.Equal(t, tt.ok, ok, "%s index(%d,%d)", tt.policy, tt.k, tt.n)
		if tt.ok {
			assert.Equal(t, tt.want, got, "%s index(%d,%d)", tt.policy, tt.k, tt.n)
		}
	}
}

func TestAggregateIsolatedEdges(t *testing.T) {
	img := grid.Fill[uint8](6, 7, 1)

	f, err := Aggregate(img, 3, 2, Isolated)
	require.NoError(t, err)

	// Column field: 3-tall window, clipped to 2 on the top and bottom rows.
	assert.Equal(t, 2.0, f.Column.At(0, 3))
	assert.Equal(t, 3.0, f.Column.At(2, 3))
	assert.Equal(t, 2.0, f.Column.At(5, 3))

	// Row field: 5-wide window covering [j-2, j+2].
	assert.Equal(t, 3.0, f.Row.At(1, 0))
	assert.Equal(t, 4.0, f.Row.At(1, 1))
	assert.Equal(t, 5.0, f.Row.At(1, 3))
	assert.Equal(t, 3.0, f.Row.At(1, 6))
}

func TestAggregateReplicateUniform(t *testing.T) {
	img := grid.Fill[float32](5, 5, 2)

	f, err := Aggregate(img, 5, 2, Replicate)
	require.NoError(t, err)

	for i := range f.Column.Data {
		assert.Equal(t, 10.0, f.Column.Data[i])
		assert.Equal(t, 14.0, f.Row.Data[i])
	}
}

func TestAggregateMatchesNaive(t *testing.T) {
	img := rampGrid(9, 13)
	for _, policy := range []BoundaryPolicy{Isolated, Replicate, Reflect} {
		f, err := Aggregate(img, 3, 3, policy)
		require.NoError(t, err)

		for j := 0; j < img.Width; j++ {
			col := make([]float64, img.Height)
			for i := range col {
				col[i] = float64(img.At(i, j))
			}
			want := naiveBoxSum(col, 3, policy)
			for i := range col {
				assert.Equal(t, want[i], f.Column.At(i, j), "%s column (%d,%d)", policy, i, j)
			}
		}
		for i := 0; i < img.Height; i++ {
			want := naiveBoxSum(grid.Float64s(img)[i*img.Width:(i+1)*img.Width], 6, policy)
			assert.Equal(t, want, f.Row.Row(i), "%s row %d", policy, i)
		}
	}
}

// assertSumsClose compares box sums allowing for the rounding a direct
// summation makes next to very large samples.
func assertSumsClose(t *testing.T, want, got []float64, msg string) {
	t.Helper()
	require.Len(t, got, len(want))
	for k := range want {
		switch {
		case math.IsNaN(want[k]):
			assert.True(t, math.IsNaN(got[k]), "%s [%d]: got %v, want NaN", msg, k, got[k])
		case math.IsInf(want[k], 0):
			assert.Equal(t, want[k], got[k], "%s [%d]", msg, k)
		default:
			assert.InDelta(t, want[k], got[k], 1e-9*math.Max(1, math.Abs(want[k])), "%s [%d]", msg, k)
		}
	}
}

func TestAggregateOutliersStayLocal(t *testing.T) {
	img := grid.Fill(6, 40, 1.0)
	img.Set(2, 0, 1e16)
	img.Set(4, 3, math.Inf(-1))
	img.Set(5, 10, math.Inf(1))
	img.Set(5, 12, math.Inf(-1))
	img.Set(1, 20, math.NaN())

	for _, policy := range []BoundaryPolicy{Isolated, Replicate, Reflect} {
		f, err := Aggregate(img, 3, 2, policy)
		require.NoError(t, err)

		for i := 0; i < img.Height; i++ {
			want := naiveBoxSum(img.Row(i), 5, policy)
			assertSumsClose(t, want, f.Row.Row(i), fmt.Sprintf("%s row %d", policy, i))
		}
		for j := 0; j < img.Width; j++ {
			col := make([]float64, img.Height)
			for i := range col {
				col[i] = img.At(i, j)
			}
			got := make([]float64, img.Height)
			for i := range got {
				got[i] = f.Column.At(i, j)
			}
			assertSumsClose(t, naiveBoxSum(col, 3, policy), got, fmt.Sprintf("%s column %d", policy, j))
		}

		// Far from every outlier the sums are the plain window counts.
		assert.Equal(t, 5.0, f.Row.At(2, 30), policy.String())
		assert.Equal(t, 5.0, f.Row.At(4, 30), policy.String())
		assert.Equal(t, 5.0, f.Row.At(5, 30), policy.String())
		assert.Equal(t, 5.0, f.Row.At(1, 30), policy.String())
	}
}

func TestSuppressIgnoresDistantOutliers(t *testing.T) {
	img := grid.Fill(5, 40, 1.0)
	img.Set(2, 0, 1e16)
	img.Set(4, 0, math.Inf(1))
	img.Set(3, 0, math.Inf(-1))

	out, err := Suppress(context.Background(), img, grid.NewMask(5, 40, true), params(1, 2, 0.5, 5))
	require.NoError(t, err)
	for i := 2; i < 5; i++ {
		for j := 30; j < 35; j++ {
			assert.Equal(t, 1.0, out.At(i, j), "(%d,%d)", i, j)
		}
	}
}

func TestAggregateWideType(t *testing.T) {
	img := grid.Fill[uint8](3, 40, 255)
	f, err := Aggregate(img, 3, 30, Isolated)
	require.NoError(t, err)
	assert.Equal(t, 33.0*255, f.Row.At(1, 20))
}

func TestAggregateRejectsBadWindow(t *testing.T) {
	img := grid.New[uint8](4, 4)
	for _, tc := range []struct{ ksize, asympix int }{{0, 0}, {-3, 0}, {4, 0}, {3, -1}} {
		_, err := Aggregate(img, tc.ksize, tc.asympix, Isolated)
		assert.True(t, errors.Is(err, ErrInvalidParameter), "ksize=%d asympix=%d", tc.ksize, tc.asympix)
	}
	_, err := Aggregate(img, 3, 0, BoundaryPolicy(42))
	assert.True(t, errors.Is(err, ErrInvalidParameter))
}

func TestParseBoundaryPolicy(t *testing.T) {
	for _, p := range []BoundaryPolicy{Isolated, Replicate, Reflect} {
		got, err := ParseBoundaryPolicy(p.String())
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}
	_, err := ParseBoundaryPolicy("wrap")
	assert.True(t, errors.Is(err, ErrInvalidParameter))
}
