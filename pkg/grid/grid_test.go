package grid

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromDataRejectsWrongLength(t *testing.T) {
	_, err := FromData(3, 4, make([]float32, 11))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrShapeMismatch))

	g, err := FromData(3, 4, make([]float32, 12))
	require.NoError(t, err)
	assert.Equal(t, Shape{Height: 3, Width: 4}, g.Shape())
}

func TestRowAliasesBuffer(t *testing.T) {
	g := New[uint16](2, 3)
	g.Row(1)[2] = 7
	assert.Equal(t, uint16(7), g.At(1, 2))
	assert.Equal(t, uint16(7), g.Data[5])
}

func TestCloneIsDeep(t *testing.T) {
	g := Fill[int32](2, 2, 5)
	c := g.Clone()
	c.Set(0, 0, 9)
	assert.Equal(t, int32(5), g.At(0, 0))
	assert.Equal(t, int32(9), c.At(0, 0))
}

func TestSubGrid(t *testing.T) {
	g := New[uint8](4, 5)
	for i := range g.Data {
		g.Data[i] = uint8(i)
	}

	sub, err := g.SubGrid(1, 3, 2, 5)
	require.NoError(t, err)
	assert.Equal(t, []uint8{7, 8, 9, 12, 13, 14}, sub.Data)

	_, err = g.SubGrid(0, 5, 0, 1)
	assert.Error(t, err)
}

func TestConvertTruncates(t *testing.T) {
	src, err := FromData(1, 3, []float64{1.9, 2.2, 255})
	require.NoError(t, err)
	dst := Convert[uint8](src)
	assert.Equal(t, []uint8{1, 2, 255}, dst.Data)
}

func TestCheckShape(t *testing.T) {
	assert.NoError(t, CheckShape("mask", Shape{2, 2}, Shape{2, 2}))

	err := CheckShape("mask", Shape{2, 2}, Shape{2, 3})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrShapeMismatch))
	assert.Contains(t, err.Error(), "mask is 2x3")
}

func TestMaskHelpers(t *testing.T) {
	m := NewMask(3, 3, true)
	m.Set(1, 1, false)
	assert.Equal(t, 8, m.Count())
	assert.False(t, m.At(1, 1))

	g, err := FromData(1, 4, []uint8{0, 3, 0, 9})
	require.NoError(t, err)
	nz := MaskWhere(g, func(v uint8) bool { return v != 0 })
	assert.Equal(t, []bool{false, true, false, true}, nz.Data)

	_, err = MaskFromData(2, 2, []bool{true})
	assert.True(t, errors.Is(err, ErrShapeMismatch))
}
