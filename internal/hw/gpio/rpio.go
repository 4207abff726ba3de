package gpio

import (
	"fmt"

	"github.com/cjeanneret/NikBot/internal/debug"
	"github.com/stianeikeland/go-rpio/v4"
)

// PWMFrequency is the carrier frequency (Hz) used for pulse-width outputs.
const PWMFrequency = 1000

// hardwarePWMPins lists the BCM pins wired to the BCM283x PWM channels.
var hardwarePWMPins = map[int]bool{12: true, 13: true, 18: true, 19: true}

// SupportsPWM reports whether pin can be driven by the hardware PWM block.
func SupportsPWM(pin int) bool {
	return hardwarePWMPins[pin]
}

// RPiDriver is the real implementation for Raspberry Pi using go-rpio.
type RPiDriver struct {
	pins  map[int]rpio.Pin
	modes map[int]PinMode
}

// NewRPiRealDriver creates a real GPIO driver for Raspberry Pi.
// Requires running on a Raspberry Pi with access to /dev/gpiomem or as root.
func NewRPiRealDriver() (*RPiDriver, error) {
	debug.Info("Initializing real GPIO driver (go-rpio)")

	if err := rpio.Open(); err != nil {
		return nil, fmt.Errorf("failed to open GPIO: %w (are you running on a Raspberry Pi?)", err)
	}

	debug.Verbose("GPIO memory mapped successfully")

	return &RPiDriver{
		pins:  make(map[int]rpio.Pin),
		modes: make(map[int]PinMode),
	}, nil
}

func (r *RPiDriver) SetupPin(pin int, mode PinMode) error {
	debug.GPIO("SetupPin", pin, mode)

	p := rpio.Pin(pin)

	switch mode {
	case Input:
		p.Input()
	case Output:
		p.Output()
	case PWM:
		if !SupportsPWM(pin) {
			return fmt.Errorf("pin %d has no hardware PWM channel", pin)
		}
		p.Pwm()
		p.Freq(PWMFrequency * MaxDuty)
		rpio.StartPwm()
	default:
		return fmt.Errorf("unknown pin mode: %d", mode)
	}

	r.pins[pin] = p
	r.modes[pin] = mode
	return nil
}

func (r *RPiDriver) WritePin(pin int, level Level) error {
	debug.GPIO("WritePin", pin, level)

	p, ok := r.pins[pin]
	if !ok || r.modes[pin] != Output {
		// Pin not setup yet (or left in PWM mode), switch to output
		if err := r.SetupPin(pin, Output); err != nil {
			return err
		}
		p = r.pins[pin]
	}

	if level == High {
		p.High()
	} else {
		p.Low()
	}

	return nil
}

func (r *RPiDriver) WriteDuty(pin int, duty uint8) error {
	debug.GPIO("WriteDuty", pin, duty)

	if r.modes[pin] != PWM {
		if err := r.SetupPin(pin, PWM); err != nil {
			return err
		}
	}
	r.pins[pin].DutyCycle(uint32(duty), MaxDuty)
	return nil
}

func (r *RPiDriver) ReadPin(pin int) (Level, error) {
	debug.GPIO("ReadPin", pin, nil)

	p, ok := r.pins[pin]
	if !ok {
		// Pin not setup yet, setup as input
		if err := r.SetupPin(pin, Input); err != nil {
			return Low, err
		}
		p = r.pins[pin]
	}

	if p.Read() == rpio.High {
		return High, nil
	}
	return Low, nil
}

func (r *RPiDriver) Close() error {
	debug.Trace("GPIO Close (real driver)")

	// Reset all pins to input (safe state)
	for pin, p := range r.pins {
		if r.modes[pin] == PWM {
			p.DutyCycle(0, MaxDuty)
		}
		debug.Verbose("Resetting pin %d to input", pin)
		p.Input()
	}
	rpio.StopPwm()

	return rpio.Close()
}
