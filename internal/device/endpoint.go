package device

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidAddress reports a printer address that matches no supported
// transport form.
var ErrInvalidAddress = errors.New("device: invalid printer address")

// Kind identifies the transport a printer address selects.
type Kind string

const (
	KindNetwork Kind = "network"
	KindDevice  Kind = "device"
	KindUSB     Kind = "usb"
	KindSerial  Kind = "serial"
)

// Endpoint is a resolved printer address. Exactly the fields for its Kind
// are populated; an Endpoint never changes after ParseEndpoint returns it.
type Endpoint struct {
	Kind Kind

	// Network
	Host string
	Port int

	// Device and serial
	Path string

	// USB
	VID   uint16
	PID   uint16
	OutEP uint8 // optional bulk-out endpoint hint, 0 means discover
	InEP  uint8 // accepted for address compatibility, unused
}

// serialPathPrefixes are device paths that address serial ports rather
// than raw character devices.
var serialPathPrefixes = []string{
	"/dev/ttyS",
	"/dev/ttyUSB",
	"/dev/ttyACM",
	"/dev/cu.",
	"/dev/tty.",
}

// ParseEndpoint resolves a printer address string into an Endpoint.
//
// Supported forms:
//
//	192.168.1.87            network, default port
//	192.168.1.87:9101       network, explicit port
//	printer.lan:9100        network by hostname
//	USB:0x04b8:0x0202       USB by vendor/product id
//	/dev/usb/lp0            character device path
//	/dev/ttyUSB0, COM3      serial port
//
// Anything else is ErrInvalidAddress.
func ParseEndpoint(addr string, defaultPort int) (Endpoint, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return Endpoint{}, fmt.Errorf("%w: empty address", ErrInvalidAddress)
	}

	if len(addr) >= 4 && strings.EqualFold(addr[:4], "USB:") {
		return parseUSBAddress(addr)
	}

	if isCOMPort(addr) {
		return Endpoint{Kind: KindSerial, Path: addr}, nil
	}

	if strings.HasPrefix(addr, "/") {
		for _, prefix := range serialPathPrefixes {
			if strings.HasPrefix(addr, prefix) {
				return Endpoint{Kind: KindSerial, Path: addr}, nil
			}
		}
		return Endpoint{Kind: KindDevice, Path: addr}, nil
	}

	return parseNetworkAddress(addr, defaultPort)
}

// parseUSBAddress reads USB:vid:pid with an optional :out:in endpoint
// suffix. The hex ids accept an optional 0x prefix.
func parseUSBAddress(addr string) (Endpoint, error) {
	parts := strings.Split(addr[4:], ":")
	if len(parts) != 2 && len(parts) != 4 {
		return Endpoint{}, fmt.Errorf("%w: %q", ErrInvalidAddress, addr)
	}

	vid, err := parseHexID(parts[0], 16)
	if err != nil {
		return Endpoint{}, fmt.Errorf("%w: %q", ErrInvalidAddress, addr)
	}
	pid, err := parseHexID(parts[1], 16)
	if err != nil {
		return Endpoint{}, fmt.Errorf("%w: %q", ErrInvalidAddress, addr)
	}

	ep := Endpoint{Kind: KindUSB, VID: uint16(vid), PID: uint16(pid)}
	if len(parts) == 4 {
		out, err := parseHexID(parts[2], 8)
		if err != nil {
			return Endpoint{}, fmt.Errorf("%w: %q", ErrInvalidAddress, addr)
		}
		in, err := parseHexID(parts[3], 8)
		if err != nil {
			return Endpoint{}, fmt.Errorf("%w: %q", ErrInvalidAddress, addr)
		}
		ep.OutEP = uint8(out)
		ep.InEP = uint8(in)
	}
	return ep, nil
}

func parseHexID(s string, bits int) (uint64, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if s == "" {
		return 0, fmt.Errorf("empty hex id")
	}
	return strconv.ParseUint(s, 16, bits)
}

// isCOMPort reports whether addr names a Windows COM port.
func isCOMPort(addr string) bool {
	rest, ok := strings.CutPrefix(addr, "COM")
	if !ok || rest == "" {
		return false
	}
	for _, r := range rest {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func parseNetworkAddress(addr string, defaultPort int) (Endpoint, error) {
	host, port := addr, defaultPort
	if i := strings.LastIndex(addr, ":"); i >= 0 {
		p, err := strconv.Atoi(addr[i+1:])
		if err != nil || p < 1 || p > 65535 {
			return Endpoint{}, fmt.Errorf("%w: %q", ErrInvalidAddress, addr)
		}
		host, port = addr[:i], p
	}
	if !isHostname(host) {
		return Endpoint{}, fmt.Errorf("%w: %q", ErrInvalidAddress, addr)
	}
	return Endpoint{Kind: KindNetwork, Host: host, Port: port}, nil
}

// isHostname accepts IPv4 literals and DNS names: letters, digits, dots,
// and hyphens, never at the very start or end.
func isHostname(host string) bool {
	if host == "" {
		return false
	}
	for _, r := range host {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '.' || r == '-':
		default:
			return false
		}
	}
	if host[0] == '.' || host[0] == '-' {
		return false
	}
	last := host[len(host)-1]
	return last != '.' && last != '-'
}

// String renders the endpoint in the address form it was parsed from,
// suitable for logs.
func (e Endpoint) String() string {
	switch e.Kind {
	case KindNetwork:
		return fmt.Sprintf("%s:%d", e.Host, e.Port)
	case KindUSB:
		return fmt.Sprintf("USB:%04X:%04X", e.VID, e.PID)
	default:
		return e.Path
	}
}
