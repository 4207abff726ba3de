package gpio

import (
	"fmt"

	"github.com/cjeanneret/NikBot/internal/debug"
)

// Level represents the logical state of a GPIO pin.
type Level bool

const (
	Low  Level = false
	High Level = true
)

func (l Level) String() string {
	if l {
		return "HIGH"
	}
	return "LOW"
}

// LevelOf converts a boolean channel state into a pin level.
func LevelOf(on bool) Level {
	return Level(on)
}

// PinMode indicates how a GPIO is used.
type PinMode int

const (
	Input PinMode = iota
	Output
	PWM
)

func (m PinMode) String() string {
	switch m {
	case Input:
		return "input"
	case Output:
		return "output"
	case PWM:
		return "pwm"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// MaxDuty is the full-scale duty value of a pulse-width output.
const MaxDuty = 255

// DigitalOutput drives a line high or low.
type DigitalOutput interface {
	WritePin(pin int, level Level) error
}

// PulseOutput drives a line with a duty cycle in 0..MaxDuty.
type PulseOutput interface {
	WriteDuty(pin int, duty uint8) error
}

// Driver defines the abstract interface for controlling GPIOs.
// This allows plugging in a real Raspberry Pi implementation
// or a mock for development on PC.
type Driver interface {
	DigitalOutput
	PulseOutput
	SetupPin(pin int, mode PinMode) error
	ReadPin(pin int) (Level, error)
	Close() error
}

// MockDriver is a development implementation that logs actions and
// remembers the last level written to each pin.
type MockDriver struct {
	levels map[int]Level
	duties map[int]uint8
}

// NewDriver creates a GPIO driver based on the chosen mode.
// If mock is true, returns a MockDriver (for dev/test).
// If mock is false, returns a real RPiDriver (for Raspberry Pi).
func NewDriver(mock bool) (Driver, error) {
	if mock {
		debug.Info("Using MOCK GPIO driver (development mode)")
		return NewMockDriver(), nil
	}
	return NewRPiRealDriver()
}

func NewMockDriver() *MockDriver {
	return &MockDriver{
		levels: make(map[int]Level),
		duties: make(map[int]uint8),
	}
}

func (m *MockDriver) SetupPin(pin int, mode PinMode) error {
	debug.GPIO("SetupPin", pin, mode)
	return nil
}

func (m *MockDriver) WritePin(pin int, level Level) error {
	debug.GPIO("WritePin", pin, level)
	if m.levels == nil {
		m.levels = make(map[int]Level)
	}
	m.levels[pin] = level
	delete(m.duties, pin)
	return nil
}

func (m *MockDriver) WriteDuty(pin int, duty uint8) error {
	debug.GPIO("WriteDuty", pin, duty)
	if m.duties == nil {
		m.duties = make(map[int]uint8)
	}
	m.duties[pin] = duty
	if m.levels == nil {
		m.levels = make(map[int]Level)
	}
	m.levels[pin] = LevelOf(duty > 0)
	return nil
}

// ReadPin returns the last level written to pin (Low if never written).
func (m *MockDriver) ReadPin(pin int) (Level, error) {
	debug.GPIO("ReadPin", pin, nil)
	return m.levels[pin], nil
}

// Duty returns the last duty written to pin and whether one was written
// since the last digital write.
func (m *MockDriver) Duty(pin int) (uint8, bool) {
	d, ok := m.duties[pin]
	return d, ok
}

func (m *MockDriver) Close() error {
	debug.Trace("GPIO Close (mock)")
	return nil
}
