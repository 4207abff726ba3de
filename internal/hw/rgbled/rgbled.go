package rgbled

import (
	"fmt"
	"strings"

	"github.com/cjeanneret/NikBot/internal/debug"
	"github.com/cjeanneret/NikBot/internal/hw/gpio"
)

// Pins holds the three color channel lines.
type Pins struct {
	Red   int
	Green int
	Blue  int
}

// Color is the on/off state of the three channels.
type Color struct {
	Red   bool `json:"red"`
	Green bool `json:"green"`
	Blue  bool `json:"blue"`
}

var (
	Off     = Color{}
	White   = Color{true, true, true}
	Red     = Color{Red: true}
	Green   = Color{Green: true}
	Blue    = Color{Blue: true}
	Yellow  = Color{Red: true, Green: true}
	Cyan    = Color{Green: true, Blue: true}
	Magenta = Color{Red: true, Blue: true}
)

var namedColors = map[string]Color{
	"off":     Off,
	"on":      White,
	"white":   White,
	"red":     Red,
	"green":   Green,
	"blue":    Blue,
	"yellow":  Yellow,
	"cyan":    Cyan,
	"magenta": Magenta,
}

// ParseColor maps a color name to its channel combination.
func ParseColor(name string) (Color, error) {
	c, ok := namedColors[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Off, fmt.Errorf("unknown color %q", name)
	}
	return c, nil
}

// RgbLed drives a three-channel status light with binary channels.
type RgbLed struct {
	out   gpio.Driver
	pins  Pins
	isOn  bool
	state Color
}

func New(g gpio.Driver, pins Pins) *RgbLed {
	return &RgbLed{out: g, pins: pins}
}

// Begin configures the channels as outputs and turns the light off.
func (l *RgbLed) Begin() error {
	for _, pin := range []int{l.pins.Red, l.pins.Green, l.pins.Blue} {
		if err := l.out.SetupPin(pin, gpio.Output); err != nil {
			return err
		}
	}
	return l.Off()
}

// SetColor writes all three channels.
func (l *RgbLed) SetColor(red, green, blue bool) error {
	debug.Trace("RGB: r=%v g=%v b=%v", red, green, blue)
	if err := l.out.WritePin(l.pins.Red, gpio.LevelOf(red)); err != nil {
		return err
	}
	if err := l.out.WritePin(l.pins.Green, gpio.LevelOf(green)); err != nil {
		return err
	}
	if err := l.out.WritePin(l.pins.Blue, gpio.LevelOf(blue)); err != nil {
		return err
	}
	l.state = Color{red, green, blue}
	return nil
}

// Set writes a Color.
func (l *RgbLed) Set(c Color) error {
	return l.SetColor(c.Red, c.Green, c.Blue)
}

func (l *RgbLed) On() error  { return l.Set(White) }
func (l *RgbLed) Off() error { return l.Set(Off) }

// SetRed, SetGreen and SetBlue overwrite all three channels.
func (l *RgbLed) SetRed() error   { return l.Set(Red) }
func (l *RgbLed) SetGreen() error { return l.Set(Green) }
func (l *RgbLed) SetBlue() error  { return l.Set(Blue) }

// Toggle flips the remembered on/off flag and applies all-on or all-off.
// Colors set in between are not restored.
func (l *RgbLed) Toggle() error {
	l.isOn = !l.isOn
	if l.isOn {
		return l.On()
	}
	return l.Off()
}

// State returns the channel levels last written.
func (l *RgbLed) State() Color {
	return l.state
}
