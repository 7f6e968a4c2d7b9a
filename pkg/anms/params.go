// Package anms implements asymmetric directional non-maximum suppression
// for micrographs.
//
// The filter works in two stages. Aggregate builds a column field (box sums
// of ksize samples along each column) and a row field (box sums of
// ksize+asympix samples along each row). Suppress then keeps every interior,
// mask-valid pixel whose strongest nearby horizontal response beats the
// strongest nearby vertical response by ThreshRatio, and divides every other
// analysed pixel by Damping. Everything else is copied from the input.
//
// Aggregation does not depend on ThreshRatio or Damping, so fields built once
// with Aggregate can be reused across many SuppressFields calls.
package anms

import (
	"errors"
	"fmt"
	"math"
	"runtime"
)

// ErrInvalidParameter is returned for parameter values outside their contract.
var ErrInvalidParameter = errors.New("invalid parameter")

// Params configures one suppression run.
type Params struct {
	// KSize is the base window length for both directions. Must be odd and positive.
	KSize int

	// AsymPix is the extra window length added to the horizontal direction only.
	AsymPix int

	// ThreshRatio multiplies the vertical response before it is compared
	// with the horizontal one.
	ThreshRatio float64

	// Damping divides every suppressed pixel.
	Damping float64

	// Boundary selects how the aggregator treats samples outside the grid.
	Boundary BoundaryPolicy

	// Workers bounds the number of row bands processed concurrently.
	// Zero means runtime.NumCPU().
	Workers int
}

// DefaultParams returns the parameters the preparation pipeline uses when
// nothing else is configured.
func DefaultParams() Params {
	return Params{
		KSize:       5,
		AsymPix:     0,
		ThreshRatio: 1.5,
		Damping:     5,
		Boundary:    Isolated,
	}
}

// Validate reports the first parameter that violates its contract.
func (p Params) Validate() error {
	if err := validateWindow(p.KSize, p.AsymPix); err != nil {
		return err
	}
	if math.IsNaN(p.ThreshRatio) || p.ThreshRatio <= 0 || math.IsInf(p.ThreshRatio, 0) {
		return fmt.Errorf("%w: thresh_ratio must be a positive finite number, got %v",
			ErrInvalidParameter, p.ThreshRatio)
	}
	// +Inf damping is allowed and zeroes suppressed pixels.
	if math.IsNaN(p.Damping) || p.Damping <= 0 {
		return fmt.Errorf("%w: damping must be positive, got %v", ErrInvalidParameter, p.Damping)
	}
	if !p.Boundary.valid() {
		return fmt.Errorf("%w: unknown boundary policy %d", ErrInvalidParameter, int(p.Boundary))
	}
	if p.Workers < 0 {
		return fmt.Errorf("%w: workers must not be negative, got %d", ErrInvalidParameter, p.Workers)
	}
	return nil
}

func validateWindow(ksize, asympix int) error {
	if ksize <= 0 || ksize%2 == 0 {
		return fmt.Errorf("%w: ksize must be odd and positive, got %d", ErrInvalidParameter, ksize)
	}
	if asympix < 0 {
		return fmt.Errorf("%w: asympix must not be negative, got %d", ErrInvalidParameter, asympix)
	}
	return nil
}

// Offsets returns the half-widths that bound the analysed interior:
// rows [ioffs, H-ioffs) and columns [joffs, W-joffs).
func (p Params) Offsets() (ioffs, joffs int) {
	return p.KSize / 2, p.KSize/2 + p.AsymPix/2
}

func (p Params) workers() int {
	if p.Workers > 0 {
		return p.Workers
	}
	return runtime.NumCPU()
}
