package drive

import (
	"fmt"
	"strings"

	"github.com/cjeanneret/NikBot/internal/config"
	"github.com/cjeanneret/NikBot/internal/debug"
	"github.com/cjeanneret/NikBot/internal/hw/gpio"
	"github.com/cjeanneret/NikBot/internal/hw/motor"
)

// Action is a whole-robot maneuver.
type Action string

const (
	Forward   Action = "forward"
	Reverse   Action = "reverse"
	TurnLeft  Action = "left"
	TurnRight Action = "right"
	Stop      Action = "stop"
)

// ParseAction maps a maneuver name to an Action.
func ParseAction(s string) (Action, error) {
	switch a := Action(strings.ToLower(strings.TrimSpace(s))); a {
	case Forward, Reverse, TurnLeft, TurnRight, Stop:
		return a, nil
	default:
		return "", fmt.Errorf("unknown drive action %q", s)
	}
}

// pair is a front and back motor on the same side.
type pair struct {
	front *motor.Motor
	back  *motor.Motor
}

func (p pair) forward(speed uint8) error {
	if err := p.front.Forward(speed); err != nil {
		return err
	}
	return p.back.Forward(speed)
}

func (p pair) reverse(speed uint8) error {
	if err := p.front.Reverse(speed); err != nil {
		return err
	}
	return p.back.Reverse(speed)
}

// Controller drives the four wheels as a left and a right pair.
// It's the layer between maneuver logic (scripts, manual commands) and
// the individual H-bridge motors.
type Controller struct {
	motors [4]*motor.Motor // left front, right front, left back, right back
	left   pair
	right  pair
}

// NewController groups motors 1 and 3 on the left, 2 and 4 on the right.
func NewController(leftFront, rightFront, leftBack, rightBack *motor.Motor) *Controller {
	return &Controller{
		motors: [4]*motor.Motor{leftFront, rightFront, leftBack, rightBack},
		left:   pair{front: leftFront, back: leftBack},
		right:  pair{front: rightFront, back: rightBack},
	}
}

// NewFromConfig builds the four motors from the pin map.
func NewFromConfig(g gpio.Driver, m config.MotorsConfig) *Controller {
	build := func(p config.MotorPins) *motor.Motor {
		return motor.New(g, motor.Config{PinA: p.A, PinB: p.B, PWM: p.PWM, Inverted: p.Inverted})
	}
	return NewController(build(m.LeftFront), build(m.RightFront), build(m.LeftBack), build(m.RightBack))
}

// Motor returns motor n (1-4) for individual access.
func (c *Controller) Motor(n int) (*motor.Motor, error) {
	if n < 1 || n > len(c.motors) {
		return nil, fmt.Errorf("motor index must be 1-%d, got %d", len(c.motors), n)
	}
	return c.motors[n-1], nil
}

// Begin configures every motor and leaves them stopped.
func (c *Controller) Begin() error {
	return c.each(func(m *motor.Motor) error { return m.Begin() })
}

func (c *Controller) Forward(speed uint8) error {
	debug.Drive(string(Forward), speed)
	return c.each(func(m *motor.Motor) error { return m.Forward(speed) })
}

func (c *Controller) Reverse(speed uint8) error {
	debug.Drive(string(Reverse), speed)
	return c.each(func(m *motor.Motor) error { return m.Reverse(speed) })
}

// TurnLeft pivots in place: left wheels backward, right wheels forward.
func (c *Controller) TurnLeft(speed uint8) error {
	debug.Drive(string(TurnLeft), speed)
	if err := c.left.reverse(speed); err != nil {
		return err
	}
	return c.right.forward(speed)
}

// TurnRight mirrors TurnLeft.
func (c *Controller) TurnRight(speed uint8) error {
	debug.Drive(string(TurnRight), speed)
	if err := c.left.forward(speed); err != nil {
		return err
	}
	return c.right.reverse(speed)
}

func (c *Controller) Stop() error {
	debug.Drive(string(Stop), 0)
	return c.each(func(m *motor.Motor) error { return m.Stop() })
}

// Apply runs one maneuver. Speed is ignored for Stop.
func (c *Controller) Apply(a Action, speed uint8) error {
	switch a {
	case Forward:
		return c.Forward(speed)
	case Reverse:
		return c.Reverse(speed)
	case TurnLeft:
		return c.TurnLeft(speed)
	case TurnRight:
		return c.TurnRight(speed)
	case Stop:
		return c.Stop()
	default:
		return fmt.Errorf("unknown drive action %q", a)
	}
}

// each applies op to all four motors, stopping at the first error.
func (c *Controller) each(op func(*motor.Motor) error) error {
	for _, m := range c.motors {
		if err := op(m); err != nil {
			return err
		}
	}
	return nil
}
