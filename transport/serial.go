package transport

import (
	"fmt"
	"time"

	"github.com/tarm/serial"
)

// SerialConfig configures a directly wired analyzer connection (§6).
type SerialConfig struct {
	// Device is the OS path to the serial port (e.g. "/dev/ttyUSB0").
	Device string
	// Baud is the line rate; ASTM instruments commonly run 9600 or
	// 19200.
	Baud int
	// DataBits is 7 or 8.
	DataBits byte
	// Parity is "N", "E", or "O".
	Parity string
	// StopBits is 1 or 2.
	StopBits float32
	// ReadTimeout bounds each underlying Read call so the reader loop
	// can periodically check for context cancellation.
	ReadTimeout time.Duration
}

// DefaultSerialConfig returns the common 8N1 ASTM serial defaults for
// device.
func DefaultSerialConfig(device string) SerialConfig {
	return SerialConfig{
		Device:      device,
		Baud:        9600,
		DataBits:    8,
		Parity:      "N",
		StopBits:    1,
		ReadTimeout: 200 * time.Millisecond,
	}
}

func (c SerialConfig) toLibConfig() (*serial.Config, error) {
	var parity serial.Parity
	switch c.Parity {
	case "", "N":
		parity = serial.ParityNone
	case "E":
		parity = serial.ParityEven
	case "O":
		parity = serial.ParityOdd
	default:
		return nil, fmt.Errorf("transport: unknown parity %q", c.Parity)
	}

	var stopBits serial.StopBits
	switch c.StopBits {
	case 0, 1:
		stopBits = serial.Stop1
	case 2:
		stopBits = serial.Stop2
	default:
		return nil, fmt.Errorf("transport: unknown stop bits %v", c.StopBits)
	}

	size := c.DataBits
	if size == 0 {
		size = 8
	}

	return &serial.Config{
		Name:        c.Device,
		Baud:        c.Baud,
		Size:        size,
		Parity:      parity,
		StopBits:    stopBits,
		ReadTimeout: c.ReadTimeout,
	}, nil
}

// serialTransport wraps a tarm/serial port as a Transport.
type serialTransport struct {
	port *serial.Port
}

// OpenSerial opens the configured serial device.
func OpenSerial(cfg SerialConfig) (Transport, error) {
	libCfg, err := cfg.toLibConfig()
	if err != nil {
		return nil, err
	}
	port, err := serial.OpenPort(libCfg)
	if err != nil {
		return nil, fmt.Errorf("transport: open serial port %s: %w", cfg.Device, err)
	}
	return &serialTransport{port: port}, nil
}

// SerialOpener returns an Opener that reopens cfg.Device on every call,
// for use with the session reconnect loop.
func SerialOpener(cfg SerialConfig) Opener {
	return OpenerFunc(func() (Transport, error) { return OpenSerial(cfg) })
}

func (s *serialTransport) Read(b []byte) (int, error)  { return s.port.Read(b) }
func (s *serialTransport) Write(b []byte) (int, error) { return s.port.Write(b) }
func (s *serialTransport) Close() error                { return s.port.Close() }
