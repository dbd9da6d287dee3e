package led

import (
	"fmt"
	"sync"

	"go.bug.st/serial"

	"github.com/RyanBlaney/sonido-coach/logging"
)

// DefaultBaudRate matches the strip controller firmware
const DefaultBaudRate = 115200

// SerialPort is the byte link to the strip controller
type SerialPort struct {
	mu     sync.Mutex
	port   serial.Port
	device string
	logger logging.Logger
}

// OpenSerial opens the named serial device at the given baud rate
func OpenSerial(device string, baud int) (*SerialPort, error) {
	if baud <= 0 {
		baud = DefaultBaudRate
	}

	p, err := serial.Open(device, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", device, err)
	}

	logger := logging.WithFields(logging.Fields{
		"component": "led_serial",
		"device":    device,
	})
	logger.Info("Serial port opened", logging.Fields{"baud": baud})

	return &SerialPort{port: p, device: device, logger: logger}, nil
}

// Write sends raw bytes to the controller
func (s *SerialPort) Write(b []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port.Write(b)
}

// Close closes the underlying serial port
func (s *SerialPort) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger.Info("Closing serial port")
	return s.port.Close()
}
