// Package imageio moves micrographs between image files, image.Image values
// and grids.
//
// Decoding supports PNG, JPEG and TIFF. Colour images are reduced to their
// luminance with the standard library's gray colour models.
package imageio

import (
	"bufio"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/tiff"
	"gonum.org/v1/gonum/floats"

	"microprep/pkg/grid"
)

// Extensions lists the file extensions Load understands, lower case.
var Extensions = []string{".png", ".jpg", ".jpeg", ".tif", ".tiff"}

// IsImageFile reports whether name has one of the supported extensions.
func IsImageFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// Load decodes the image stored at path.
func Load(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var img image.Image
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		img, err = png.Decode(file)
	case ".jpg", ".jpeg":
		img, err = jpeg.Decode(file)
	case ".tif", ".tiff":
		img, err = tiff.Decode(file)
	default:
		return nil, fmt.Errorf("unsupported image format: %s", filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", filepath.Base(path), err)
	}
	return img, nil
}

// Save encodes img to path, choosing the format from the extension.
// Missing parent directories are created. Errors from flushing or closing
// the file are reported.
func Save(path string, img image.Image) error {
	if !IsImageFile(path) {
		return fmt.Errorf("unsupported image format: %s", filepath.Ext(path))
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}

	w := bufio.NewWriter(file)
	if err := Encode(w, filepath.Ext(path), img); err != nil {
		file.Close()
		return fmt.Errorf("failed to encode %s: %w", filepath.Base(path), err)
	}
	if err := w.Flush(); err != nil {
		file.Close()
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", filepath.Base(path), err)
	}
	return nil
}

// Encode writes img to w in the format named by ext (".png", ".jpg",
// ".jpeg", ".tif" or ".tiff").
func Encode(w io.Writer, ext string, img image.Image) error {
	switch strings.ToLower(ext) {
	case ".png":
		return png.Encode(w, img)
	case ".jpg", ".jpeg":
		return jpeg.Encode(w, img, &jpeg.Options{Quality: 90})
	case ".tif", ".tiff":
		return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	}
	return fmt.Errorf("unsupported image format: %s", ext)
}

// Gray8 converts img to an 8-bit grid.
func Gray8(img image.Image) *grid.Grid[uint8] {
	b := img.Bounds()
	g := grid.New[uint8](b.Dy(), b.Dx())
	if gray, ok := img.(*image.Gray); ok {
		for y := 0; y < b.Dy(); y++ {
			copy(g.Row(y), gray.Pix[y*gray.Stride:y*gray.Stride+b.Dx()])
		}
		return g
	}
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			g.Set(y, x, color.GrayModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray).Y)
		}
	}
	return g
}

// Gray16 converts img to a 16-bit grid.
func Gray16(img image.Image) *grid.Grid[uint16] {
	b := img.Bounds()
	g := grid.New[uint16](b.Dy(), b.Dx())
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			g.Set(y, x, color.Gray16Model.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray16).Y)
		}
	}
	return g
}

// Float converts img to a float grid in the 0-1 range.
func Float(img image.Image) *grid.Grid[float64] {
	g16 := Gray16(img)
	g := grid.New[float64](g16.Height, g16.Width)
	for i, v := range g16.Data {
		g.Data[i] = float64(v) / 65535.0
	}
	return g
}

// Mask marks every pixel of img with non-zero luminance as valid.
func Mask(img image.Image) *grid.Mask {
	return grid.MaskWhere(Gray16(img), func(v uint16) bool { return v != 0 })
}

// MaskImage renders a mask as black (invalid) and white (valid).
func MaskImage(m *grid.Mask) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, m.Width, m.Height))
	for i, v := range m.Data {
		if v {
			img.Pix[i] = 255
		}
	}
	return img
}

// FromGray8 wraps an 8-bit grid as an image.
func FromGray8(g *grid.Grid[uint8]) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, g.Width, g.Height))
	copy(img.Pix, g.Data)
	return img
}

// FromGray16 wraps a 16-bit grid as an image.
func FromGray16(g *grid.Grid[uint16]) *image.Gray16 {
	img := image.NewGray16(image.Rect(0, 0, g.Width, g.Height))
	for y := 0; y < g.Height; y++ {
		for x := 0; x < g.Width; x++ {
			img.SetGray16(x, y, color.Gray16{Y: g.At(y, x)})
		}
	}
	return img
}

// Normalized stretches any grid onto the full 16-bit range for display.
// It returns the sample range that was mapped onto [0, 65535].
func Normalized[T grid.Number](g *grid.Grid[T]) (img *image.Gray16, lo, hi float64) {
	img = image.NewGray16(image.Rect(0, 0, g.Width, g.Height))
	if len(g.Data) == 0 {
		return img, 0, 0
	}
	values := grid.Float64s(g)
	lo, hi = floats.Min(values), floats.Max(values)
	span := hi - lo
	for i, v := range values {
		var y uint16
		if span > 0 {
			y = uint16(math.Round((v - lo) / span * 65535))
		}
		img.SetGray16(i%g.Width, i/g.Width, color.Gray16{Y: y})
	}
	return img, lo, hi
}

// Denormalize maps a 16-bit image produced by Normalized back onto [lo, hi].
func Denormalize(img *image.Gray16, lo, hi float64) *grid.Grid[float64] {
	g16 := Gray16(img)
	g := grid.New[float64](g16.Height, g16.Width)
	for i, v := range g16.Data {
		g.Data[i] = lo + float64(v)/65535*(hi-lo)
	}
	return g
}

// SaveGrid writes g to path. 8- and 16-bit grids are written as-is; other
// sample types are stretched with Normalized.
func SaveGrid[T grid.Number](path string, g *grid.Grid[T]) error {
	switch v := any(g).(type) {
	case *grid.Grid[uint8]:
		return Save(path, FromGray8(v))
	case *grid.Grid[uint16]:
		return Save(path, FromGray16(v))
	}
	img, _, _ := Normalized(g)
	return Save(path, img)
}
