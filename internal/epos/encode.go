package epos

import "bytes"

// ESC/POS control bytes.
const (
	ESC byte = 0x1B
	GS  byte = 0x1D
)

// feedLines is the paper advance appended after the last raster so the
// printed area clears the cutter blade.
const feedLines byte = 6

// Encoder builds a raw ESC/POS command stream.
type Encoder struct {
	buf bytes.Buffer
}

// NewEncoder creates a new ESC/POS encoder.
func NewEncoder() *Encoder {
	return &Encoder{}
}

// Initialize resets the printer to its power-on state (ESC @).
func (e *Encoder) Initialize() {
	e.buf.WriteByte(ESC)
	e.buf.WriteByte('@')
}

// Raster emits a GS v 0 raster block for the given image. The bitmap is
// truncated or zero-filled to exactly the byte count the declared
// dimensions require, so a mis-sized payload can never desynchronize the
// printer's command stream.
func (e *Encoder) Raster(img RasterImage) {
	if img.Width <= 0 || img.Height <= 0 {
		return
	}
	rowBytes := bytesPerRow(img.Width)

	e.buf.WriteByte(GS)
	e.buf.WriteByte('v')
	e.buf.WriteByte('0')
	e.buf.WriteByte(0x00)
	e.buf.WriteByte(byte(rowBytes))
	e.buf.WriteByte(byte(rowBytes >> 8))
	e.buf.WriteByte(byte(img.Height))
	e.buf.WriteByte(byte(img.Height >> 8))

	need := rowBytes * img.Height
	if len(img.Bitmap) >= need {
		e.buf.Write(img.Bitmap[:need])
		return
	}
	e.buf.Write(img.Bitmap)
	e.buf.Write(make([]byte, need-len(img.Bitmap)))
}

// DrawerKick emits ESC p to pulse a cash drawer connector pin. Timing is
// in units of 2ms.
func (e *Encoder) DrawerKick(pin int, onTime, offTime byte) {
	e.buf.WriteByte(ESC)
	e.buf.WriteByte('p')
	e.buf.WriteByte(byte(pin) & 1)
	e.buf.WriteByte(onTime)
	e.buf.WriteByte(offTime)
}

// Feed advances the paper by n lines (ESC d).
func (e *Encoder) Feed(n byte) {
	e.buf.WriteByte(ESC)
	e.buf.WriteByte('d')
	e.buf.WriteByte(n)
}

// Cut performs a full paper cut (GS V 0).
func (e *Encoder) Cut() {
	e.buf.WriteByte(GS)
	e.buf.WriteByte('V')
	e.buf.WriteByte(0x00)
}

// Bytes returns the accumulated command stream.
func (e *Encoder) Bytes() []byte {
	return e.buf.Bytes()
}

// Encode translates a parsed job into a single ESC/POS command stream for
// a printer of the given paper width in pixels. Images narrower than the
// paper are centered. The stream always begins with initialize and ends
// with feed and cut, so even an empty job produces a complete, well-formed
// ticket sequence.
func Encode(job PrintJob, paperWidth int) []byte {
	enc := NewEncoder()
	enc.Initialize()

	for _, d := range job.Directives {
		switch d := d.(type) {
		case RasterImage:
			enc.Raster(centerRaster(d, paperWidth))
		case DrawerPulse:
			enc.DrawerKick(d.Drawer, d.OnTime, d.OffTime)
		}
	}

	enc.Feed(feedLines)
	enc.Cut()
	return enc.Bytes()
}

// bytesPerRow returns the encoded width of a row in bytes.
func bytesPerRow(width int) int {
	return (width + 7) / 8
}

// centerRaster pads an image narrower than the paper with blank bit
// columns so that it prints centered. Images at least as wide as the
// paper pass through untouched.
func centerRaster(img RasterImage, paperWidth int) RasterImage {
	if paperWidth <= 0 || img.Width >= paperWidth {
		return img
	}

	srcRow := bytesPerRow(img.Width)
	dstRow := bytesPerRow(paperWidth)
	leftPad := (paperWidth - img.Width) / 2

	out := make([]byte, dstRow*img.Height)
	for y := 0; y < img.Height; y++ {
		src := img.Bitmap[y*srcRow : (y+1)*srcRow]
		blitRow(out[y*dstRow:(y+1)*dstRow], src, img.Width, leftPad)
	}
	return RasterImage{Width: paperWidth, Height: img.Height, Bitmap: out}
}

// blitRow copies width bits from src into dst, shifted right by shift bit
// columns. dst must be zeroed; bits beyond width in src's final byte are
// masked off so stray padding bits cannot bleed into the output.
func blitRow(dst, src []byte, width, shift int) {
	byteOff := shift / 8
	bitOff := shift % 8
	for i, b := range src {
		if rem := width - i*8; rem < 8 {
			b &= 0xFF << (8 - rem)
		}
		if byteOff+i < len(dst) {
			dst[byteOff+i] |= b >> bitOff
		}
		if bitOff > 0 && byteOff+i+1 < len(dst) {
			dst[byteOff+i+1] |= b << (8 - bitOff)
		}
	}
}
