package device

import (
	"fmt"
	"os"
	"sync"
)

// DeviceConnection writes to a character device node such as
// /dev/usb/lp0, the kernel's usblp interface.
type DeviceConnection struct {
	file *os.File
	mu   sync.Mutex
}

// ConnectDevice opens a printer character device for writing.
func ConnectDevice(path string) (*DeviceConnection, error) {
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open printer device: %w", err)
	}

	return &DeviceConnection{file: file}, nil
}

// Write sends data to the device node.
func (c *DeviceConnection) Write(data []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.file.Write(data)
}

// Close closes the device node.
func (c *DeviceConnection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.file != nil {
		return c.file.Close()
	}
	return nil
}
