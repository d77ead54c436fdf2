package eposclient

import (
	"bytes"
	"encoding/base64"
	"fmt"
)

const (
	xmlHeader  = `<?xml version="1.0" encoding="utf-8"?>`
	soapOpen   = `<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/"><s:Body>`
	printOpen  = `<epos-print xmlns="http://www.epson-pos.com/schemas/2011/03/epos-print">`
	printClose = `</epos-print>`
	soapClose  = `</s:Body></s:Envelope>`
)

// Document accumulates print directives for one request body. Directives
// print in the order they are added.
type Document struct {
	elements []string
}

// NewDocument creates an empty document. Submitting it as-is still feeds
// and cuts the paper.
func NewDocument() *Document {
	return &Document{}
}

// AddImage appends a raster to print. The bitmap travels base64-encoded in
// the element body.
func (d *Document) AddImage(r Raster) *Document {
	d.elements = append(d.elements, fmt.Sprintf(`<image width="%d" height="%d">%s</image>`,
		r.Width, r.Height, base64.StdEncoding.EncodeToString(r.Bits)))
	return d
}

// AddPulse appends a cash drawer kick. Drawer 0 and 1 select the two kick
// pins; pulseMs is rounded to the protocol's 100 to 500ms steps.
func (d *Document) AddPulse(drawer, pulseMs int) *Document {
	name := "drawer_1"
	if drawer == 1 {
		name = "drawer_2"
	}
	d.elements = append(d.elements, fmt.Sprintf(`<pulse drawer="%s" time="pulse_%d"/>`,
		name, clampPulse(pulseMs)))
	return d
}

// Len reports the number of directives added so far.
func (d *Document) Len() int {
	return len(d.elements)
}

// Build renders the SOAP request body.
func (d *Document) Build() []byte {
	var buf bytes.Buffer
	buf.WriteString(xmlHeader)
	buf.WriteString("\n")
	buf.WriteString(soapOpen)
	buf.WriteString(printOpen)
	for _, el := range d.elements {
		buf.WriteString(el)
	}
	buf.WriteString(printClose)
	buf.WriteString(soapClose)
	return buf.Bytes()
}

func clampPulse(ms int) int {
	switch {
	case ms <= 100:
		return 100
	case ms >= 500:
		return 500
	}
	return (ms + 50) / 100 * 100
}
