package eposclient

import (
	"fmt"
	"image"
	"image/color"
	"time"

	"github.com/fogleman/gg"
)

// TestPage draws a diagnostic page for the given paper width in dots: a
// title block, a checkerboard density patch, and a centering ladder whose
// bars reveal horizontal drift. Print it to verify the full pipeline
// without a POS terminal.
func TestPage(width int) image.Image {
	if width < 64 {
		width = 64
	}

	const height = 272
	ctx := gg.NewContext(width, height)
	ctx.SetColor(color.White)
	ctx.Clear()
	ctx.SetColor(color.Black)

	loadTestPageFont(ctx, 22)

	w := float64(width)
	y := 16.0

	// Full-width rules at top and bottom prove edge alignment.
	ctx.DrawRectangle(0, y, w, 4)
	ctx.Fill()

	ctx.DrawStringAnchored("PRINTER TEST PAGE", w/2, 48, 0.5, 0.5)
	ctx.DrawStringAnchored(fmt.Sprintf("%d dots", width), w/2, 80, 0.5, 0.5)
	ctx.DrawStringAnchored(time.Now().Format("2006-01-02 15:04:05"), w/2, 108, 0.5, 0.5)

	// Checkerboard patch shows head density and dead columns.
	const cell = 8
	y = 128
	for row := 0; row < 6; row++ {
		off := 0
		if row%2 == 1 {
			off = cell
		}
		for x := off; x < width; x += cell * 2 {
			ctx.DrawRectangle(float64(x), y+float64(row*cell), cell, cell)
		}
	}
	ctx.Fill()

	// Centering ladder.
	y = 192
	for i, frac := range []float64{1, 0.75, 0.5, 0.25} {
		bar := w * frac
		ctx.DrawRectangle((w-bar)/2, y+float64(i*12), bar, 6)
	}
	ctx.Fill()

	ctx.DrawRectangle(0, 252, w, 4)
	ctx.Fill()

	return ctx.Image()
}

// loadTestPageFont tries common system fonts; the context's built-in
// bitmap face still renders if none load.
func loadTestPageFont(ctx *gg.Context, size float64) {
	for _, path := range []string{
		"/usr/share/fonts/truetype/dejavu/DejaVuSans-Bold.ttf",
		"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
		"/usr/share/fonts/truetype/liberation/LiberationSans-Regular.ttf",
		"/System/Library/Fonts/Supplemental/Arial.ttf",
		"C:\\Windows\\Fonts\\arial.ttf",
	} {
		if err := ctx.LoadFontFace(path, size); err == nil {
			return
		}
	}
}
