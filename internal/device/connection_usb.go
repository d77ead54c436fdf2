package device

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/gousb"
)

// USBConnection is a direct libusb connection to a printer's bulk-out
// endpoint.
type USBConnection struct {
	ctx      *gousb.Context
	device   *gousb.Device
	release  func()
	endpoint *gousb.OutEndpoint
	mu       sync.Mutex
}

// ConnectUSB opens a USB printer by vendor/product id and claims a
// bulk-out endpoint. A nonzero outHint names the endpoint to try first;
// otherwise the first OUT endpoint found wins. Requires libusb.
func ConnectUSB(vid, pid uint16, outHint uint8) (*USBConnection, error) {
	ctx := gousb.NewContext()

	dev, err := ctx.OpenDeviceWithVIDPID(gousb.ID(vid), gousb.ID(pid))
	if err != nil {
		ctx.Close()
		return nil, fmt.Errorf("failed to open USB device: %w", err)
	}
	if dev == nil {
		ctx.Close()
		return nil, fmt.Errorf("USB device not found: %04X:%04X", vid, pid)
	}

	// Most printers expose the bulk-out endpoint on interface 0, alt 0.
	iface, done, err := dev.DefaultInterface()
	if err != nil {
		// A kernel driver (usblp) may hold the interface.
		dev.SetAutoDetach(true)
		iface, done, err = dev.DefaultInterface()
	}
	if err == nil {
		if ep := findOutEndpoint(iface, outHint); ep != nil {
			return &USBConnection{ctx: ctx, device: dev, release: done, endpoint: ep}, nil
		}
		done()
	}

	ep, release, err := claimByEnumeration(dev, vid, pid, outHint)
	if err != nil {
		dev.Close()
		ctx.Close()
		return nil, err
	}
	return &USBConnection{ctx: ctx, device: dev, release: release, endpoint: ep}, nil
}

// claimByEnumeration walks the device's configurations and interfaces
// until one yields a usable OUT endpoint. The active configuration is
// tried first so an already-configured device is not reset needlessly.
func claimByEnumeration(dev *gousb.Device, vid, pid uint16, outHint uint8) (*gousb.OutEndpoint, func(), error) {
	desc := dev.Desc
	var lastErr error

	tryConfig := func(num int) (*gousb.OutEndpoint, func()) {
		cfgDesc, ok := desc.Configs[num]
		if !ok {
			return nil, nil
		}
		cfg, err := dev.Config(num)
		if err != nil {
			lastErr = fmt.Errorf("failed to set config %d: %w", num, err)
			return nil, nil
		}
		for _, ifaceDesc := range cfgDesc.Interfaces {
			iface, err := cfg.Interface(ifaceDesc.Number, 0)
			if err != nil {
				// Some devices need a moment after a failed claim.
				time.Sleep(100 * time.Millisecond)
				iface, err = cfg.Interface(ifaceDesc.Number, 0)
			}
			if err != nil {
				lastErr = fmt.Errorf("failed to claim interface %d: %w", ifaceDesc.Number, err)
				continue
			}
			if ep := findOutEndpoint(iface, outHint); ep != nil {
				return ep, func() {
					iface.Close()
					cfg.Close()
				}
			}
			iface.Close()
		}
		cfg.Close()
		return nil, nil
	}

	if num, err := dev.ActiveConfigNum(); err == nil && num > 0 {
		if ep, release := tryConfig(num); ep != nil {
			return ep, release, nil
		}
	}
	for num := range desc.Configs {
		if ep, release := tryConfig(num); ep != nil {
			return ep, release, nil
		}
	}

	if lastErr != nil {
		return nil, nil, fmt.Errorf("failed to connect to USB printer: %w", lastErr)
	}
	return nil, nil, fmt.Errorf("no bulk-out endpoint on USB printer %04X:%04X", vid, pid)
}

// findOutEndpoint picks an OUT endpoint on a claimed interface, trying
// the hinted endpoint number first when one was given.
func findOutEndpoint(iface *gousb.Interface, hint uint8) *gousb.OutEndpoint {
	if hint != 0 {
		if ep, err := iface.OutEndpoint(int(hint & 0x0F)); err == nil {
			return ep
		}
	}
	for _, epDesc := range iface.Setting.Endpoints {
		if epDesc.Direction == gousb.EndpointDirectionOut {
			if ep, err := iface.OutEndpoint(epDesc.Number); err == nil {
				return ep
			}
		}
	}
	return nil
}

// Write sends data to the USB printer.
func (c *USBConnection) Write(data []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.endpoint.Write(data)
}

// Close releases the claimed interface and the libusb context.
func (c *USBConnection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.release != nil {
		c.release()
		c.release = nil
	}
	if c.device != nil {
		c.device.Close()
		c.device = nil
	}
	if c.ctx != nil {
		c.ctx.Close()
		c.ctx = nil
	}
	return nil
}
