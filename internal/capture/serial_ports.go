// internal/capture/serial_ports.go
package capture

import (
	"fmt"
	"slices"

	"go.bug.st/serial"
)

// SerialPortInfo describes a serial port present on the host
type SerialPortInfo struct {
	Name      string `json:"name"`
	Capturing bool   `json:"capturing"`
}

// ListSerialPorts returns the names of the host's serial ports, sorted.
func ListSerialPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to get serial ports: %w", err)
	}
	slices.Sort(ports)
	return ports, nil
}

// Port returns the name of the captured serial port.
func (sc *SerialCapture) Port() string {
	return sc.config.Port
}
