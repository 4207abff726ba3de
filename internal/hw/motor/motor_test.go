package motor

import (
	"errors"
	"testing"

	"github.com/cjeanneret/NikBot/internal/hw/gpio"
)

// recordingDriver records GPIO calls and tracks the resulting line state.
type recordingDriver struct {
	calls    []gpioCall
	asserted map[int]bool
	failPin  int
}

type gpioCall struct {
	op    string // "setup", "write", "duty"
	pin   int
	level gpio.Level
	duty  uint8
}

func newRecordingDriver() *recordingDriver {
	return &recordingDriver{asserted: make(map[int]bool), failPin: -1}
}

func (d *recordingDriver) SetupPin(pin int, mode gpio.PinMode) error {
	d.calls = append(d.calls, gpioCall{op: "setup", pin: pin})
	return nil
}

func (d *recordingDriver) WritePin(pin int, level gpio.Level) error {
	if pin == d.failPin {
		return errors.New("write failed")
	}
	d.calls = append(d.calls, gpioCall{op: "write", pin: pin, level: level})
	d.asserted[pin] = bool(level)
	return nil
}

func (d *recordingDriver) WriteDuty(pin int, duty uint8) error {
	d.calls = append(d.calls, gpioCall{op: "duty", pin: pin, duty: duty})
	d.asserted[pin] = duty > 0
	return nil
}

func (d *recordingDriver) ReadPin(pin int) (gpio.Level, error) {
	return gpio.LevelOf(d.asserted[pin]), nil
}

func (d *recordingDriver) Close() error { return nil }

func (d *recordingDriver) last() gpioCall {
	return d.calls[len(d.calls)-1]
}

const (
	pinA = 17
	pinB = 27
)

func TestMotor_BeginStops(t *testing.T) {
	drv := newRecordingDriver()
	m := New(drv, Config{PinA: pinA, PinB: pinB})
	if err := m.Begin(); err != nil {
		t.Fatalf("Begin: %v", err)
	}

	want := []gpioCall{
		{op: "setup", pin: pinA},
		{op: "setup", pin: pinB},
		{op: "write", pin: pinA, level: gpio.Low},
		{op: "write", pin: pinB, level: gpio.Low},
	}
	if len(drv.calls) != len(want) {
		t.Fatalf("got %d calls, want %d: %v", len(drv.calls), len(want), drv.calls)
	}
	for i, w := range want {
		if drv.calls[i] != w {
			t.Errorf("call %d = %+v, want %+v", i, drv.calls[i], w)
		}
	}
}

func TestMotor_Direction(t *testing.T) {
	cases := []struct {
		name     string
		inverted bool
		forward  bool
		active   int
	}{
		{"forward", false, true, pinA},
		{"reverse", false, false, pinB},
		{"inverted_forward", true, true, pinB},
		{"inverted_reverse", true, false, pinA},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			drv := newRecordingDriver()
			m := New(drv, Config{PinA: pinA, PinB: pinB, Inverted: tc.inverted})
			var err error
			if tc.forward {
				err = m.Forward(FullSpeed)
			} else {
				err = m.Reverse(FullSpeed)
			}
			if err != nil {
				t.Fatal(err)
			}
			if !drv.asserted[tc.active] {
				t.Errorf("pin %d should be asserted", tc.active)
			}
			// Inactive line is released first.
			if drv.calls[0].level != gpio.Low || drv.calls[0].pin == tc.active {
				t.Errorf("first call should release the inactive pin, got %+v", drv.calls[0])
			}
			if got := drv.last(); got.op != "write" || got.pin != tc.active || got.level != gpio.High {
				t.Errorf("last call = %+v, want HIGH on %d", got, tc.active)
			}
		})
	}
}

func TestMotor_NeverBothAsserted(t *testing.T) {
	for _, inverted := range []bool{false, true} {
		for _, pwm := range []bool{false, true} {
			drv := newRecordingDriver()
			m := New(drv, Config{PinA: pinA, PinB: pinB, PWM: pwm, Inverted: inverted})
			for speed := 0; speed <= 255; speed++ {
				// Duty 0 on a PWM motor leaves both lines low.
				idle := pwm && speed == 0
				m.Forward(uint8(speed))
				if drv.asserted[pinA] && drv.asserted[pinB] {
					t.Fatalf("both lines asserted after Forward(%d) inverted=%v pwm=%v", speed, inverted, pwm)
				}
				if !idle && !drv.asserted[pinA] && !drv.asserted[pinB] {
					t.Fatalf("no line asserted after Forward(%d) inverted=%v pwm=%v", speed, inverted, pwm)
				}
				m.Reverse(uint8(speed))
				if drv.asserted[pinA] && drv.asserted[pinB] {
					t.Fatalf("both lines asserted after Reverse(%d) inverted=%v pwm=%v", speed, inverted, pwm)
				}
				if !idle && !drv.asserted[pinA] && !drv.asserted[pinB] {
					t.Fatalf("no line asserted after Reverse(%d) inverted=%v pwm=%v", speed, inverted, pwm)
				}
			}
		}
	}
}

func TestMotor_PWMSpeed(t *testing.T) {
	drv := newRecordingDriver()
	m := New(drv, Config{PinA: pinA, PinB: pinB, PWM: true})

	m.Forward(120)
	if got := drv.last(); got.op != "duty" || got.pin != pinA || got.duty != 120 {
		t.Errorf("Forward(120) last call = %+v, want duty 120 on %d", got, pinA)
	}

	m.Forward(FullSpeed)
	if got := drv.last(); got.op != "write" || got.level != gpio.High {
		t.Errorf("Forward(255) should use digital HIGH, got %+v", got)
	}
}

func TestMotor_ZeroSpeed(t *testing.T) {
	cases := []struct {
		name     string
		pwm      bool
		inverted bool
		wantLast gpioCall
	}{
		{"pwm_forward", true, false, gpioCall{op: "duty", pin: pinA, duty: 0}},
		{"pwm_inverted_forward", true, true, gpioCall{op: "duty", pin: pinB, duty: 0}},
		{"digital_forward", false, false, gpioCall{op: "write", pin: pinA, level: gpio.High}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			drv := newRecordingDriver()
			m := New(drv, Config{PinA: pinA, PinB: pinB, PWM: tc.pwm, Inverted: tc.inverted})
			if err := m.Forward(0); err != nil {
				t.Fatal(err)
			}
			if len(drv.calls) != 2 || drv.calls[0].op != "write" || drv.calls[0].level != gpio.Low {
				t.Fatalf("calls = %+v, want inactive LOW then the active line", drv.calls)
			}
			if got := drv.last(); got != tc.wantLast {
				t.Errorf("last call = %+v, want %+v", got, tc.wantLast)
			}
		})
	}
}

func TestMotor_NoPWMIsFullSpeed(t *testing.T) {
	drv := newRecordingDriver()
	m := New(drv, Config{PinA: pinA, PinB: pinB, PWM: false})

	m.Reverse(10)
	if got := drv.last(); got.op != "write" || got.pin != pinB || got.level != gpio.High {
		t.Errorf("Reverse(10) without PWM = %+v, want digital HIGH on %d", got, pinB)
	}
	for _, c := range drv.calls {
		if c.op == "duty" {
			t.Errorf("non-PWM motor issued a duty write: %+v", c)
		}
	}
}

func TestMotor_StopAlwaysReleasesBoth(t *testing.T) {
	prep := map[string]func(*Motor){
		"idle":    func(*Motor) {},
		"forward": func(m *Motor) { m.Forward(200) },
		"reverse": func(m *Motor) { m.Reverse(FullSpeed) },
	}
	for name, fn := range prep {
		t.Run(name, func(t *testing.T) {
			drv := newRecordingDriver()
			m := New(drv, Config{PinA: pinA, PinB: pinB, PWM: true, Inverted: true})
			fn(m)
			if err := m.Stop(); err != nil {
				t.Fatal(err)
			}
			if drv.asserted[pinA] || drv.asserted[pinB] {
				t.Errorf("lines still asserted after Stop: %v", drv.asserted)
			}
		})
	}
}

func TestMotor_WriteErrorPropagates(t *testing.T) {
	drv := newRecordingDriver()
	drv.failPin = pinB
	m := New(drv, Config{PinA: pinA, PinB: pinB})
	if err := m.Forward(FullSpeed); err == nil {
		t.Error("expected error when releasing the inactive line fails")
	}
	if drv.asserted[pinA] {
		t.Error("active line must not be asserted if the inactive release failed")
	}
}
