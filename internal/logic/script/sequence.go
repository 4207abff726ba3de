package script

import (
	"context"
	"fmt"
	"time"

	"github.com/cjeanneret/NikBot/internal/debug"
)

// Executor performs a single step on the robot's peripherals.
type Executor interface {
	Execute(ctx context.Context, st Step) error
}

// Sequence advances through its steps by elapsed time. It never sleeps:
// the owner calls Poll from its loop and each step starts as soon as the
// previous one has lasted its duration. At most one step starts per Poll.
type Sequence struct {
	steps   []Step
	loop    bool
	exec    Executor
	current int // -1 before the first step
	started time.Time
	done    bool
	errs    int
}

func NewSequence(steps []Step, loop bool, exec Executor) *Sequence {
	return &Sequence{
		steps:   steps,
		loop:    loop,
		exec:    exec,
		current: -1,
	}
}

// Poll starts the next step when the current one has run its course.
// A failing step is logged and the sequence goes on. It reports whether a
// step was started.
func (s *Sequence) Poll(ctx context.Context, now time.Time) bool {
	if s.done || len(s.steps) == 0 {
		return false
	}

	next := 0
	if s.current >= 0 {
		if now.Sub(s.started) < s.steps[s.current].Duration {
			return false
		}
		next = s.current + 1
		if next == len(s.steps) {
			if !s.loop {
				s.done = true
				debug.Live("Script finished")
				return false
			}
			next = 0
			debug.Verbose("Script restarting")
		}
	}

	s.current = next
	s.started = now
	st := s.steps[next]
	debug.Step(next+1, st.String())
	if err := s.exec.Execute(ctx, st); err != nil {
		s.errs++
		debug.Error(fmt.Errorf("script step %d (%s): %w", next+1, st.Kind, err))
	}
	return true
}

// Current returns the index of the running step, or -1 before the start.
func (s *Sequence) Current() int {
	return s.current
}

// Done reports whether a non-looping sequence has run all its steps.
func (s *Sequence) Done() bool {
	return s.done
}

// Failures returns how many steps returned an error so far.
func (s *Sequence) Failures() int {
	return s.errs
}

// Len returns the number of steps.
func (s *Sequence) Len() int {
	return len(s.steps)
}

// Reset rewinds the sequence so the next Poll starts the first step.
func (s *Sequence) Reset() {
	s.current = -1
	s.done = false
}
