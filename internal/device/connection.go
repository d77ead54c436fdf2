package device

import (
	"fmt"
	"time"
)

// Connection is an open byte channel to a printer.
type Connection interface {
	// Write sends raw command bytes to the printer.
	Write(data []byte) (int, error)
	// Close releases the underlying transport.
	Close() error
}

// ConnectOptions carries transport tuning shared by the concrete
// connection kinds. Zero values select the transport's own default (or,
// for timeouts, no deadline).
type ConnectOptions struct {
	DialTimeout  time.Duration
	WriteTimeout time.Duration
	Baud         int
}

// Connect opens a connection for the endpoint's transport kind.
func Connect(ep Endpoint, opts ConnectOptions) (Connection, error) {
	switch ep.Kind {
	case KindNetwork:
		return ConnectNetwork(ep.Host, ep.Port, opts.DialTimeout, opts.WriteTimeout)
	case KindSerial:
		return ConnectSerial(ep.Path, opts.Baud)
	case KindUSB:
		return ConnectUSB(ep.VID, ep.PID, ep.OutEP)
	case KindDevice:
		return ConnectDevice(ep.Path)
	default:
		return nil, fmt.Errorf("unsupported endpoint kind %q", ep.Kind)
	}
}
