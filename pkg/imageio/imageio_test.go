package imageio

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"microprep/pkg/grid"
)

// createTestImage creates a grayscale test image with the specified dimensions and pattern
func createTestImage(width, height int, pattern func(x, y int) uint16) *image.Gray16 {
	img := image.NewGray16(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.Gray16{Y: pattern(x, y)})
		}
	}
	return img
}

func TestIsImageFile(t *testing.T) {
	assert.True(t, IsImageFile("a/b/001.TIF"))
	assert.True(t, IsImageFile("slice.jpeg"))
	assert.False(t, IsImageFile("notes.txt"))
	assert.False(t, IsImageFile("noext"))
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	src := createTestImage(12, 7, func(x, y int) uint16 { return uint16(x*5000 + y*300) })

	for _, name := range []string{"out.png", "out.tif"} {
		path := filepath.Join(dir, "nested", name)
		require.NoError(t, Save(path, src))

		got, err := Load(path)
		require.NoError(t, err, name)
		assert.Empty(t, cmp.Diff(Gray16(src).Data, Gray16(got).Data), name)
	}
}

func TestLoadRejectsUnknownExtension(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "x.bmp"))
	assert.Error(t, err)
	assert.Error(t, Save(filepath.Join(t.TempDir(), "x.bmp"), image.NewGray(image.Rect(0, 0, 1, 1))))
}

func TestSaveReportsWriteFailure(t *testing.T) {
	if _, err := os.Stat("/dev/full"); err != nil {
		t.Skip("/dev/full not available")
	}
	// Small enough to sit in the write buffer until the final flush.
	path := filepath.Join(t.TempDir(), "full.png")
	require.NoError(t, os.Symlink("/dev/full", path))
	assert.Error(t, Save(path, createTestImage(2, 2, func(x, y int) uint16 { return 0 })))
}

func TestSaveRejectsUnknownExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.bmp")
	assert.Error(t, Save(path, createTestImage(2, 2, func(x, y int) uint16 { return 0 })))
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestGray8UsesBoundsOrigin(t *testing.T) {
	full := image.NewGray(image.Rect(0, 0, 4, 4))
	for i := range full.Pix {
		full.Pix[i] = uint8(i)
	}
	sub := full.SubImage(image.Rect(1, 1, 3, 4)).(*image.Gray)

	g := Gray8(sub)
	assert.Equal(t, grid.Shape{Height: 3, Width: 2}, g.Shape())
	assert.Equal(t, []uint8{5, 6, 9, 10, 13, 14}, g.Data)
}

func TestFloatRange(t *testing.T) {
	img := createTestImage(2, 1, func(x, y int) uint16 { return uint16(x * 65535) })
	g := Float(img)
	assert.Equal(t, []float64{0, 1}, g.Data)
}

func TestMaskFromImage(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 3, 1))
	img.Pix[1] = 200
	m := Mask(img)
	assert.Equal(t, []bool{false, true, false}, m.Data)
	assert.Equal(t, []uint8{0, 255, 0}, MaskImage(m).Pix)
}

func TestNormalizedRoundTrip(t *testing.T) {
	g, err := grid.FromData(2, 2, []float64{-2, 0, 2, 6})
	require.NoError(t, err)

	img, lo, hi := Normalized(g)
	assert.Equal(t, -2.0, lo)
	assert.Equal(t, 6.0, hi)
	assert.Equal(t, uint16(0), img.Gray16At(0, 0).Y)
	assert.Equal(t, uint16(65535), img.Gray16At(1, 1).Y)

	back := Denormalize(img, lo, hi)
	assert.InDeltaSlice(t, g.Data, back.Data, 1e-3)
}

func TestNormalizedFlatGrid(t *testing.T) {
	img, lo, hi := Normalized(grid.Fill(2, 3, 4.5))
	assert.Equal(t, lo, hi)
	assert.Equal(t, uint16(0), img.Gray16At(2, 1).Y)
}

func TestSaveGrid(t *testing.T) {
	dir := t.TempDir()

	g8 := grid.Fill[uint8](3, 3, 17)
	require.NoError(t, SaveGrid(filepath.Join(dir, "g8.png"), g8))
	img, err := Load(filepath.Join(dir, "g8.png"))
	require.NoError(t, err)
	assert.Equal(t, g8.Data, Gray8(img).Data)

	gf := grid.Fill(3, 3, 0.25)
	gf.Set(1, 1, 1)
	require.NoError(t, SaveGrid(filepath.Join(dir, "gf.png"), gf))
	img, err = Load(filepath.Join(dir, "gf.png"))
	require.NoError(t, err)
	assert.Equal(t, uint16(65535), Gray16(img).At(1, 1))
	assert.Equal(t, uint16(0), Gray16(img).At(0, 0))
}
