package models

import (
	"microprep/pkg/grid"
)

// Micrograph is one input image with its metadata
type Micrograph struct {
	// Samples holds the intensity values
	Samples *grid.Grid[uint16]

	// BitDepth is 8 or 16, the depth of the source file
	BitDepth int

	// Index is the position of this micrograph in the sorted input sequence
	Index int

	// Filename is the original filename
	Filename string
}

// Stats summarises one grid
type Stats struct {
	Mean   float64
	StdDev float64
	Min    float64
	Max    float64
}

// Metrics compares a filtered micrograph with its input
type Metrics struct {
	// Input and Output describe the grids before and after suppression
	Input  Stats
	Output Stats

	// SuppressedFraction is the share of all pixels whose value changed
	SuppressedFraction float64

	// RMSE is the root mean square difference between input and output
	RMSE float64
}

// Result is the outcome of filtering one micrograph with one threshold
type Result struct {
	Filename    string
	ThreshRatio float64
	OutputPath  string
	Metrics     Metrics
}
