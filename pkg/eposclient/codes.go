package eposclient

import (
	"fmt"
	"image"
	"strings"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/code128"
	"github.com/boombuler/barcode/code39"
	"github.com/boombuler/barcode/ean"
	"github.com/skip2/go-qrcode"
)

// QRCode renders value as a QR code image, size pixels on a side.
func QRCode(value string, size int) (image.Image, error) {
	if size <= 0 {
		size = 256
	}

	qr, err := qrcode.New(value, qrcode.Medium)
	if err != nil {
		return nil, fmt.Errorf("failed to generate QR code: %w", err)
	}

	return qr.Image(size), nil
}

// Barcode renders value in the named linear symbology, scaled to width by
// height pixels. Supported formats are CODE128, CODE39, EAN13 and EAN8;
// an empty format means CODE128.
func Barcode(format, value string, width, height int) (image.Image, error) {
	var (
		code barcode.Barcode
		err  error
	)

	switch strings.ToUpper(format) {
	case "", "CODE128":
		code, err = code128.Encode(value)
	case "CODE39":
		code, err = code39.Encode(value, false, false)
	case "EAN13", "EAN8":
		code, err = ean.Encode(value)
	default:
		return nil, fmt.Errorf("unsupported barcode format %q", format)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to encode barcode: %w", err)
	}

	scaled, err := barcode.Scale(code, width, height)
	if err != nil {
		return nil, fmt.Errorf("failed to scale barcode: %w", err)
	}

	return scaled, nil
}
