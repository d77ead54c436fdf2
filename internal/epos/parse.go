package epos

import (
	"bytes"
	"encoding/base64"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ErrMalformed reports an ePOS request body that could not be parsed as XML.
var ErrMalformed = errors.New("epos: malformed request")

// Drawer pulse defaults: 25 units of 2ms, i.e. 50ms on / 50ms off.
const (
	defaultPulseOn  byte = 25
	defaultPulseOff byte = 25
)

// ParseDefaults supplies the configured fallbacks substituted for optional
// ePOS attributes.
type ParseDefaults struct {
	// PaperWidth is used as the image width when the width attribute is
	// absent, in pixels.
	PaperWidth int
}

// Parse decodes an ePOS SOAP/XML request body into a PrintJob.
//
// The document is scanned in order for the recognized directive elements
// (image, pulse); unrecognized elements and attributes are skipped so that
// requests from newer clients still print what this proxy understands.
// A well-formed document with no recognized directives yields an empty job.
func Parse(body []byte, defaults ParseDefaults) (PrintJob, error) {
	dec := xml.NewDecoder(bytes.NewReader(body))

	var job PrintJob
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return PrintJob{}, fmt.Errorf("%w: %v", ErrMalformed, err)
		}

		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}

		switch start.Name.Local {
		case "image":
			img, skip, err := parseImage(dec, start, defaults)
			if err != nil {
				return PrintJob{}, err
			}
			if !skip {
				job.Directives = append(job.Directives, img)
			}
		case "pulse":
			pulse, err := parsePulse(dec, start)
			if err != nil {
				return PrintJob{}, err
			}
			job.Directives = append(job.Directives, pulse)
		}
	}

	return job, nil
}

// parseImage decodes one image element. Directives whose dimensions cannot
// be determined (no bitmap data and no height attribute) are skipped rather
// than failing the request, matching what clients expect from partial jobs.
func parseImage(dec *xml.Decoder, start xml.StartElement, defaults ParseDefaults) (RasterImage, bool, error) {
	var el struct {
		Width  string `xml:"width,attr"`
		Height string `xml:"height,attr"`
		Data   string `xml:",chardata"`
	}
	if err := dec.DecodeElement(&el, &start); err != nil {
		return RasterImage{}, false, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	bitmap, err := decodeBitmap(el.Data)
	if err != nil {
		return RasterImage{}, false, fmt.Errorf("%w: image data: %v", ErrMalformed, err)
	}

	width := parseDimension(el.Width)
	if width == 0 {
		width = defaults.PaperWidth
	}
	if width <= 0 {
		return RasterImage{}, true, nil
	}

	rowBytes := bytesPerRow(width)
	height := parseDimension(el.Height)
	if height == 0 {
		height = (len(bitmap) + rowBytes - 1) / rowBytes
	}
	if height <= 0 {
		return RasterImage{}, true, nil
	}

	// Normalize to whole rows: truncate excess bytes, zero-fill a short
	// final row so the declared dimensions always match the data.
	need := rowBytes * height
	if len(bitmap) > need {
		bitmap = bitmap[:need]
	} else if len(bitmap) < need {
		bitmap = append(bitmap, make([]byte, need-len(bitmap))...)
	}

	return RasterImage{Width: width, Height: height, Bitmap: bitmap}, false, nil
}

func parsePulse(dec *xml.Decoder, start xml.StartElement) (DrawerPulse, error) {
	var el struct {
		Drawer string `xml:"drawer,attr"`
		Time   string `xml:"time,attr"`
	}
	if err := dec.DecodeElement(&el, &start); err != nil {
		return DrawerPulse{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	pulse := DrawerPulse{
		Drawer:  parseDrawer(el.Drawer),
		OnTime:  defaultPulseOn,
		OffTime: defaultPulseOff,
	}
	if units, ok := parsePulseTime(el.Time); ok {
		pulse.OnTime = units
		pulse.OffTime = units
	}
	return pulse, nil
}

// parseDrawer accepts a numeric connector pin as well as the ePOS names
// drawer_1 and drawer_2. Anything else selects pin 0.
func parseDrawer(raw string) int {
	switch strings.TrimSpace(raw) {
	case "drawer_1":
		return 0
	case "drawer_2":
		return 1
	}
	if n, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil && n >= 0 {
		return n
	}
	return 0
}

// parsePulseTime maps the ePOS time names (pulse_100 .. pulse_500, in
// milliseconds) to drawer-kick timing units of 2ms.
func parsePulseTime(raw string) (byte, bool) {
	ms, ok := strings.CutPrefix(strings.TrimSpace(raw), "pulse_")
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(ms)
	if err != nil || n <= 0 {
		return 0, false
	}
	units := n / 2
	if units > 255 {
		units = 255
	}
	return byte(units), true
}

// parseDimension reads a numeric attribute value. Absent, non-numeric, or
// non-positive values all mean "not specified".
func parseDimension(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// decodeBitmap decodes the base64 element content, tolerating the line
// breaks and indentation that SDK clients embed in large payloads.
func decodeBitmap(data string) ([]byte, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r':
			return -1
		}
		return r
	}, data)
	if cleaned == "" {
		return nil, nil
	}
	return base64.StdEncoding.DecodeString(cleaned)
}
