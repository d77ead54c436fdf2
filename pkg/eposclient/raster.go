package eposclient

import (
	"image"

	"github.com/disintegration/imaging"
)

// Raster is a packed one-bit image, row-major, most significant bit first.
// A set bit prints black.
type Raster struct {
	Width  int
	Height int
	Bits   []byte
}

// Rasterize converts an image to the printer's one-bit format. Images wider
// than maxWidth are scaled down proportionally first. Pixels with a gray
// value below threshold print black.
func Rasterize(img image.Image, maxWidth int, threshold uint8) Raster {
	if maxWidth > 0 && img.Bounds().Dx() > maxWidth {
		img = imaging.Resize(img, maxWidth, 0, imaging.Lanczos)
	}

	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	rowBytes := (width + 7) / 8
	bits := make([]byte, rowBytes*height)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			gray := uint8((r + g + b) / 3 / 256)
			if gray < threshold {
				bits[y*rowBytes+x/8] |= 0x80 >> (x % 8)
			}
		}
	}

	return Raster{Width: width, Height: height, Bits: bits}
}
