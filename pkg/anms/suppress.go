package anms

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"

	"microprep/pkg/grid"
)

// minBandRows is the smallest row band handed to one worker.
const minBandRows = 16

// Suppress aggregates img and runs the suppression kernel in one call.
func Suppress[T grid.Number](ctx context.Context, img *grid.Grid[T], mask *grid.Mask, p Params) (*grid.Grid[T], error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := checkInputs(img, mask); err != nil {
		return nil, err
	}
	fields, err := Aggregate(img, p.KSize, p.AsymPix, p.Boundary)
	if err != nil {
		return nil, err
	}
	return SuppressFields(ctx, img, mask, fields, p)
}

// SuppressFields runs the suppression kernel against precomputed fields.
// The fields must have been built from img with p.KSize and p.AsymPix.
//
// The result starts as a copy of img. Pixels in the interior band whose
// mask cell and four diagonal neighbours at (±ioffs, ±joffs) are all valid
// are kept when the horizontal response exceeds ThreshRatio times the
// vertical response, and divided by Damping otherwise. Equality damps.
//
// Row bands are processed concurrently; ctx is checked before each band.
func SuppressFields[T grid.Number](ctx context.Context, img *grid.Grid[T], mask *grid.Mask, fields *Fields, p Params) (*grid.Grid[T], error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := checkInputs(img, mask); err != nil {
		return nil, err
	}
	if fields == nil || fields.Column == nil || fields.Row == nil {
		return nil, fmt.Errorf("%w: fields are nil", ErrInvalidParameter)
	}
	if err := grid.CheckShape("column field", img.Shape(), fields.Column.Shape()); err != nil {
		return nil, err
	}
	if err := grid.CheckShape("row field", img.Shape(), fields.Row.Shape()); err != nil {
		return nil, err
	}
	if fields.KSize != p.KSize || fields.AsymPix != p.AsymPix {
		return nil, fmt.Errorf("%w: fields built with ksize=%d asympix=%d, params have ksize=%d asympix=%d",
			ErrInvalidParameter, fields.KSize, fields.AsymPix, p.KSize, p.AsymPix)
	}

	out := img.Clone()
	ioffs, joffs := p.Offsets()
	rowStart, rowEnd := ioffs, img.Height-ioffs
	if rowStart >= rowEnd || joffs >= img.Width-joffs {
		return out, nil
	}

	k := kernel[T]{
		img:    img,
		out:    out,
		mask:   mask,
		column: fields.Column,
		row:    fields.Row,
		ioffs:  ioffs,
		joffs:  joffs,
		scale:  float64(p.KSize),
		span:   float64(p.KSize + p.AsymPix),
		thresh: p.ThreshRatio,
		damp:   p.Damping,
	}

	workers := p.workers()
	rows := rowEnd - rowStart
	band := (rows + workers - 1) / workers
	if band < minBandRows {
		band = minBandRows
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for lo := rowStart; lo < rowEnd; lo += band {
		lo, hi := lo, min(lo+band, rowEnd)
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			for i := lo; i < hi; i++ {
				k.suppressRow(i)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func checkInputs[T grid.Number](img *grid.Grid[T], mask *grid.Mask) error {
	if img == nil {
		return fmt.Errorf("%w: img is nil", ErrInvalidParameter)
	}
	if mask == nil {
		return fmt.Errorf("%w: mask is nil", ErrInvalidParameter)
	}
	return grid.CheckShape("mask", img.Shape(), mask.Shape())
}

type kernel[T grid.Number] struct {
	img, out     *grid.Grid[T]
	mask         *grid.Mask
	column, row  *grid.Grid[float64]
	ioffs, joffs int
	scale, span  float64
	thresh, damp float64
}

// suppressRow decides every interior pixel of row i. Only out's row i is written.
func (k *kernel[T]) suppressRow(i int) {
	w := k.img.Width
	m := k.mask.Data
	up, down := (i-k.ioffs)*w, (i+k.ioffs)*w
	base := i * w
	colRow := k.column.Data[base : base+w]

	for j := k.joffs; j < w-k.joffs; j++ {
		if !m[base+j] {
			continue
		}
		left, right := j-k.joffs, j+k.joffs
		if !m[up+left] || !m[down+right] || !m[up+right] || !m[down+left] {
			continue
		}

		v := floats.Max(colRow[left : right+1])

		hmax := k.row.Data[up+j]
		for r := up + w; r <= down; r += w {
			if x := k.row.Data[r+j]; x > hmax {
				hmax = x
			}
		}
		h := hmax * k.scale / k.span

		if h > v*k.thresh {
			continue
		}
		k.out.Data[base+j] = T(float64(k.img.Data[base+j]) / k.damp)
	}
}
