package bridge

import (
	"fmt"
	"io"
	"time"

	"github.com/cjeanneret/NikBot/internal/debug"
	tarm "github.com/tarm/serial"
	"go.bug.st/serial"
)

// Serial backends selectable from configuration.
const (
	DriverBugst = "bugst"
	DriverTarm  = "tarm"
)

// Port is the character stream to the companion module.
// go.bug.st/serial ports satisfy it directly; other backends are adapted.
type Port interface {
	io.ReadWriteCloser

	// SetReadTimeout bounds how long Read blocks when no byte is pending.
	// A Read that times out returns 0, nil.
	SetReadTimeout(t time.Duration) error

	// ResetInputBuffer discards bytes received but not yet read.
	ResetInputBuffer() error
}

// PortConfig describes how to reach the companion module.
type PortConfig struct {
	Device      string
	Baud        int
	Driver      string        // DriverBugst (default) or DriverTarm
	ReadTimeout time.Duration // tarm only: fixed at open time
}

// OpenPort opens the serial device with 8N1 framing.
func OpenPort(cfg PortConfig) (Port, error) {
	switch cfg.Driver {
	case "", DriverBugst:
		debug.Verbose("Opening %s at %d baud (go.bug.st/serial)", cfg.Device, cfg.Baud)
		mode := &serial.Mode{
			BaudRate: cfg.Baud,
			Parity:   serial.NoParity,
			DataBits: 8,
			StopBits: serial.OneStopBit,
		}
		port, err := serial.Open(cfg.Device, mode)
		if err != nil {
			return nil, fmt.Errorf("failed to open serial port %s: %w", cfg.Device, err)
		}
		return port, nil
	case DriverTarm:
		debug.Verbose("Opening %s at %d baud (tarm/serial)", cfg.Device, cfg.Baud)
		timeout := cfg.ReadTimeout
		if timeout <= 0 {
			timeout = 100 * time.Millisecond
		}
		port, err := tarm.OpenPort(&tarm.Config{
			Name:        cfg.Device,
			Baud:        cfg.Baud,
			Size:        8,
			Parity:      tarm.ParityNone,
			StopBits:    tarm.Stop1,
			ReadTimeout: timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open serial port %s: %w", cfg.Device, err)
		}
		return &tarmPort{port: port}, nil
	default:
		return nil, fmt.Errorf("unsupported serial driver: %s", cfg.Driver)
	}
}

// tarmPort adapts a tarm/serial port. Its read timeout is fixed when the
// port is opened, so SetReadTimeout is a no-op.
type tarmPort struct {
	port *tarm.Port
}

func (p *tarmPort) Read(b []byte) (int, error) {
	n, err := p.port.Read(b)
	if n == 0 && err == io.EOF {
		// VTIME expiry surfaces as a zero-length read.
		return 0, nil
	}
	return n, err
}

func (p *tarmPort) Write(b []byte) (int, error) { return p.port.Write(b) }

func (p *tarmPort) Close() error { return p.port.Close() }

func (p *tarmPort) SetReadTimeout(time.Duration) error { return nil }

func (p *tarmPort) ResetInputBuffer() error { return p.port.Flush() }
