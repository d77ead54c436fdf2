package device

import (
	"fmt"
	"net"
	"sync"
	"time"
)

// NetworkConnection is a TCP connection to a printer's raw JetDirect port.
type NetworkConnection struct {
	conn         net.Conn
	writeTimeout time.Duration
	mu           sync.Mutex
}

// ConnectNetwork dials a network printer. A zero dialTimeout waits
// indefinitely; a zero writeTimeout disables per-write deadlines.
func ConnectNetwork(host string, port int, dialTimeout, writeTimeout time.Duration) (*NetworkConnection, error) {
	address := fmt.Sprintf("%s:%d", host, port)

	conn, err := net.DialTimeout("tcp", address, dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to network printer: %w", err)
	}

	return &NetworkConnection{
		conn:         conn,
		writeTimeout: writeTimeout,
	}, nil
}

// Write sends data to the network printer.
func (c *NetworkConnection) Write(data []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.writeTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return 0, fmt.Errorf("failed to set write deadline: %w", err)
		}
	}
	return c.conn.Write(data)
}

// Close closes the network connection.
func (c *NetworkConnection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
