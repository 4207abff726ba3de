package heartbeat

import (
	"time"

	"github.com/cjeanneret/NikBot/internal/debug"
	"github.com/cjeanneret/NikBot/internal/hw/gpio"
)

// Heartbeat blinks a LED at a fixed interval and reports each flip.
// It is a pure liveness signal, independent of the rest of the robot.
type Heartbeat struct {
	out      gpio.Driver
	pin      int
	interval time.Duration
	last     time.Time
	on       bool
	report   func(format string, args ...interface{})
}

// New creates a heartbeat on pin. report receives the status line; nil
// uses debug.Always, so the line shows even with debugging off.
func New(g gpio.Driver, pin int, interval time.Duration, report func(string, ...interface{})) *Heartbeat {
	if report == nil {
		report = debug.Always
	}
	return &Heartbeat{out: g, pin: pin, interval: interval, report: report}
}

// Begin configures the LED pin, switches it off and starts the interval at now.
func (h *Heartbeat) Begin(now time.Time) error {
	if err := h.out.SetupPin(h.pin, gpio.Output); err != nil {
		return err
	}
	h.last = now
	h.on = false
	return h.out.WritePin(h.pin, gpio.Low)
}

// Poll flips the LED when at least one interval has passed since the last
// flip. It reports whether a flip happened.
func (h *Heartbeat) Poll(now time.Time) (bool, error) {
	if now.Sub(h.last) < h.interval {
		return false, nil
	}
	h.on = !h.on
	h.last = now
	if err := h.out.WritePin(h.pin, gpio.LevelOf(h.on)); err != nil {
		return true, err
	}
	h.report("Heartbeat, LED is %s", onOff(h.on))
	return true, nil
}

// On reports the current LED state.
func (h *Heartbeat) On() bool {
	return h.on
}

func onOff(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}
