package eposclient

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func whiteGray(w, h int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 0xFF
	}
	return img
}

func TestRasterize_PacksBitsHighFirst(t *testing.T) {
	img := whiteGray(16, 2)
	for x := 0; x < 4; x++ {
		img.SetGray(x, 0, color.Gray{Y: 0})
	}
	img.SetGray(15, 1, color.Gray{Y: 0})

	r := Rasterize(img, 0, 128)

	assert.Equal(t, 16, r.Width)
	assert.Equal(t, 2, r.Height)
	assert.Equal(t, []byte{0xF0, 0x00, 0x00, 0x01}, r.Bits)
}

func TestRasterize_ScalesWideImages(t *testing.T) {
	img := whiteGray(1200, 100)

	r := Rasterize(img, 576, 128)

	assert.Equal(t, 576, r.Width)
	assert.Equal(t, 48, r.Height)
	assert.Len(t, r.Bits, 72*48)
}

func TestRasterize_LeavesNarrowImagesAlone(t *testing.T) {
	img := whiteGray(100, 10)

	r := Rasterize(img, 576, 128)

	assert.Equal(t, 100, r.Width)
	assert.Equal(t, 10, r.Height)
	assert.Len(t, r.Bits, 13*10)
}

func TestRasterize_RespectsThreshold(t *testing.T) {
	img := whiteGray(8, 1)
	img.SetGray(0, 0, color.Gray{Y: 100})

	dark := Rasterize(img, 0, 128)
	assert.Equal(t, []byte{0x80}, dark.Bits, "gray 100 should print black below threshold 128")

	light := Rasterize(img, 0, 90)
	assert.Equal(t, []byte{0x00}, light.Bits, "gray 100 should stay white below threshold 90")
}

func TestQRCode(t *testing.T) {
	img, err := QRCode("https://example.com/receipt/1234", 200)

	require.NoError(t, err)
	assert.Equal(t, 200, img.Bounds().Dx())
	assert.Equal(t, 200, img.Bounds().Dy())
}

func TestBarcode(t *testing.T) {
	img, err := Barcode("CODE128", "EPOS-1234", 400, 120)

	require.NoError(t, err)
	assert.Equal(t, 400, img.Bounds().Dx())
	assert.Equal(t, 120, img.Bounds().Dy())
}

func TestBarcode_Errors(t *testing.T) {
	_, err := Barcode("AZTEC", "1234", 400, 120)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported barcode format")

	_, err = Barcode("EAN13", "not-a-number", 400, 120)
	require.Error(t, err)
}

func TestTestPage(t *testing.T) {
	img := TestPage(576)

	require.Equal(t, 576, img.Bounds().Dx())
	require.Equal(t, 272, img.Bounds().Dy())

	var black, white bool
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y && !(black && white); y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, _, _, _ := img.At(x, y).RGBA()
			if r == 0 {
				black = true
			} else if r == 0xFFFF {
				white = true
			}
		}
	}
	assert.True(t, black, "test page should contain ink")
	assert.True(t, white, "test page should contain background")
}

func TestTestPage_MinimumWidth(t *testing.T) {
	img := TestPage(8)

	assert.Equal(t, 64, img.Bounds().Dx())
}
