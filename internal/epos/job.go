// Package epos implements the Epson ePOS print protocol: parsing inbound
// SOAP/XML request bodies into print jobs, encoding jobs as ESC/POS command
// streams, and building the acknowledgement envelope returned to the client.
package epos

// Directive is a single instruction extracted from an ePOS request.
type Directive interface {
	directive()
}

// RasterImage is a pre-rendered 1-bit bitmap to print as-is. Rows are
// byte-aligned, MSB-first, in device raster form; the proxy never rasterizes
// content itself.
type RasterImage struct {
	Width  int    // pixels
	Height int    // rows
	Bitmap []byte // Height rows of ceil(Width/8) bytes each
}

// DrawerPulse opens the cash drawer attached to the given connector pin.
// Timings are in 2ms units, matching the drawer-kick command.
type DrawerPulse struct {
	Drawer  int // connector pin, 0 or 1
	OnTime  byte
	OffTime byte
}

func (RasterImage) directive() {}
func (DrawerPulse) directive() {}

// PrintJob is the canonical description of one ePOS request: the recognized
// directives in document order. Order is preserved exactly as parsed.
type PrintJob struct {
	Directives []Directive
}

// IsEmpty reports whether the job carries no directives.
func (j PrintJob) IsEmpty() bool {
	return len(j.Directives) == 0
}

// Summary counts the directives of each kind, for logging and job records.
func (j PrintJob) Summary() (rasters, pulses int) {
	for _, d := range j.Directives {
		switch d.(type) {
		case RasterImage:
			rasters++
		case DrawerPulse:
			pulses++
		}
	}
	return rasters, pulses
}
