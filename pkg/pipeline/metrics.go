package pipeline

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"microprep/internal/models"
	"microprep/pkg/grid"
)

// computeMetrics compares a filtered grid with its input.
func computeMetrics[T grid.Number](in, out *grid.Grid[T]) models.Metrics {
	a, b := grid.Float64s(in), grid.Float64s(out)
	var m models.Metrics
	if len(a) == 0 {
		return m
	}
	m.Input = describe(a)
	m.Output = describe(b)
	m.RMSE = floats.Distance(a, b, 2) / math.Sqrt(float64(len(a)))

	changed := 0
	for i := range a {
		if a[i] != b[i] {
			changed++
		}
	}
	m.SuppressedFraction = float64(changed) / float64(len(a))
	return m
}

func describe(x []float64) models.Stats {
	mean, std := stat.MeanStdDev(x, nil)
	return models.Stats{
		Mean:   mean,
		StdDev: std,
		Min:    floats.Min(x),
		Max:    floats.Max(x),
	}
}
