package motor

import (
	"github.com/cjeanneret/NikBot/internal/debug"
	"github.com/cjeanneret/NikBot/internal/hw/gpio"
)

// FullSpeed is the speed value that always maps to a plain digital HIGH.
const FullSpeed uint8 = gpio.MaxDuty

// Config holds the H-bridge wiring of one DC motor.
type Config struct {
	PinA     int
	PinB     int
	PWM      bool // terminals can take a duty cycle; otherwise any speed is full speed
	Inverted bool // mirrored mount: swap which terminal is active for forward
}

// Motor drives one DC motor through two H-bridge control lines.
type Motor struct {
	gpio gpio.Driver
	cfg  Config
}

// New creates a motor on the given driver. Call Begin before driving it.
func New(g gpio.Driver, cfg Config) *Motor {
	return &Motor{gpio: g, cfg: cfg}
}

// Config returns the motor wiring.
func (m *Motor) Config() Config {
	return m.cfg
}

// Begin configures both control lines as outputs and stops the motor.
func (m *Motor) Begin() error {
	if err := m.gpio.SetupPin(m.cfg.PinA, gpio.Output); err != nil {
		return err
	}
	if err := m.gpio.SetupPin(m.cfg.PinB, gpio.Output); err != nil {
		return err
	}
	return m.Stop()
}

// Forward drives the motor forward at speed (0-255).
func (m *Motor) Forward(speed uint8) error {
	if m.cfg.Inverted {
		return m.drive(m.cfg.PinB, m.cfg.PinA, speed)
	}
	return m.drive(m.cfg.PinA, m.cfg.PinB, speed)
}

// Reverse drives the motor backward at speed (0-255).
func (m *Motor) Reverse(speed uint8) error {
	if m.cfg.Inverted {
		return m.drive(m.cfg.PinA, m.cfg.PinB, speed)
	}
	return m.drive(m.cfg.PinB, m.cfg.PinA, speed)
}

// Stop de-energizes both control lines.
func (m *Motor) Stop() error {
	debug.Trace("Motor %d/%d: stop", m.cfg.PinA, m.cfg.PinB)
	if err := m.gpio.WritePin(m.cfg.PinA, gpio.Low); err != nil {
		return err
	}
	return m.gpio.WritePin(m.cfg.PinB, gpio.Low)
}

// drive releases the inactive line before asserting the active one, so
// both terminals are never high together. On a PWM motor speed 0 is a
// zero duty cycle and the motor coasts.
func (m *Motor) drive(active, inactive int, speed uint8) error {
	debug.Trace("Motor %d/%d: active=%d speed=%d", m.cfg.PinA, m.cfg.PinB, active, speed)
	if err := m.gpio.WritePin(inactive, gpio.Low); err != nil {
		return err
	}
	if m.cfg.PWM && speed < FullSpeed {
		return m.gpio.WriteDuty(active, speed)
	}
	return m.gpio.WritePin(active, gpio.High)
}
