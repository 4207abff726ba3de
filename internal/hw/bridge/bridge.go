// Package bridge exchanges newline-terminated ASCII commands with the
// companion camera/WiFi module over a serial line.
//
// Every wait is bounded by a timeout and re-checks the line at a fixed poll
// interval. There is no retry: a failed exchange is reported and the caller
// decides whether to re-issue it. A line split by a timeout is not
// recovered; the next read simply continues mid-stream.
package bridge

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/cjeanneret/NikBot/internal/debug"
	"github.com/cjeanneret/NikBot/internal/poll"
)

var (
	// ErrTimeout means the expected response did not arrive in time.
	ErrTimeout = errors.New("bridge: response timeout")
	// ErrNotConnected means a network command was issued while the
	// module is not joined to a WiFi network. No I/O was performed.
	ErrNotConnected = errors.New("bridge: wifi not connected")
	// ErrNotStarted means the bridge has no open port.
	ErrNotStarted = errors.New("bridge: not started")
	// ErrLineBreak means an argument would break the one-command-per-line
	// framing. No I/O was performed.
	ErrLineBreak = errors.New("bridge: argument contains a line break")
)

// Options tunes the bridge timing.
type Options struct {
	PollInterval time.Duration // pause between two checks for input (default 10ms)
	SettleDelay  time.Duration // wait after opening before flushing stale input
}

// LineResult describes one ReadLine call. The payload is buf[:N] and
// buf[N] is always 0.
type LineResult struct {
	N          int  // payload bytes stored (carriage returns excluded)
	Terminated bool // a '\n' ended the line
	Truncated  bool // stopped because the buffer filled up; the rest of the line stays queued
}

// OK reports whether at least one byte was consumed (a bare '\n' counts).
func (r LineResult) OK() bool {
	return r.N > 0 || r.Terminated
}

// Bridge owns the serial port to the companion module.
type Bridge struct {
	port      Port
	opts      Options
	rx        []byte // received, not yet consumed
	connected bool
}

// New wraps an open port. Call Begin before exchanging commands.
func New(port Port, opts Options) *Bridge {
	if opts.PollInterval <= 0 {
		opts.PollInterval = poll.DefaultInterval
	}
	return &Bridge{port: port, opts: opts}
}

// Begin lets the module settle and discards whatever it printed at power-up.
func (b *Bridge) Begin() error {
	if b.port == nil {
		return ErrNotStarted
	}
	if err := b.port.SetReadTimeout(b.opts.PollInterval); err != nil {
		return err
	}
	if b.opts.SettleDelay > 0 {
		time.Sleep(b.opts.SettleDelay)
	}
	debug.Verbose("Bridge: discarding stale input")
	return b.discard()
}

// Close releases the port.
func (b *Bridge) Close() error {
	if b.port == nil {
		return nil
	}
	err := b.port.Close()
	b.port = nil
	b.connected = false
	return err
}

// SendCommand discards pending input, writes cmd followed by a line break,
// then waits up to timeout for any byte to arrive. Arrival is not checked
// for meaning: any byte counts as an acknowledgment.
func (b *Bridge) SendCommand(ctx context.Context, cmd string, timeout time.Duration) error {
	if b.port == nil {
		return ErrNotStarted
	}
	if err := b.discard(); err != nil {
		return err
	}
	if err := b.WriteLine(cmd); err != nil {
		return err
	}
	ok, err := b.waitByte(ctx, timeout)
	if err != nil {
		return err
	}
	if !ok {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		debug.Verbose("Bridge: no answer to %q within %v", cmd, timeout)
		return ErrTimeout
	}
	return nil
}

// WriteLine writes cmd followed by a line break without waiting.
func (b *Bridge) WriteLine(cmd string) error {
	if b.port == nil {
		return ErrNotStarted
	}
	if strings.ContainsAny(cmd, "\r\n") {
		return ErrLineBreak
	}
	debug.Command(cmd)
	_, err := b.WriteString(cmd + "\n")
	return err
}

// ReadLine reads bytes into buf until a '\n', the timeout, or len(buf)-1
// payload bytes. '\r' bytes are dropped. buf[N] is set to 0 on every path.
func (b *Bridge) ReadLine(ctx context.Context, buf []byte, timeout time.Duration) (LineResult, error) {
	var res LineResult
	if len(buf) == 0 {
		return res, io.ErrShortBuffer
	}
	defer func() { buf[res.N] = 0 }()
	if b.port == nil {
		return res, ErrNotStarted
	}

	deadline := time.Now().Add(timeout)
	for first := true; res.N < len(buf)-1; first = false {
		// A zero timeout still gets one look at the port.
		if !first && !time.Now().Before(deadline) {
			break
		}
		ok, err := b.waitByte(ctx, poll.Remaining(deadline))
		if err != nil {
			return res, err
		}
		if !ok {
			break
		}
		c := b.rx[0]
		b.rx = b.rx[1:]
		if c == '\n' {
			res.Terminated = true
			break
		}
		if c == '\r' {
			continue
		}
		buf[res.N] = c
		res.N++
	}
	if res.N == len(buf)-1 && !res.Terminated {
		res.Truncated = true
	}
	if res.OK() {
		debug.Response(string(buf[:res.N]))
	}
	return res, nil
}

// Available returns the number of received bytes not yet consumed. When
// none are queued it polls the port once (blocking up to one poll interval).
func (b *Bridge) Available() int {
	if len(b.rx) == 0 && b.port != nil {
		if err := b.fill(); err != nil {
			debug.Error(err)
		}
	}
	return len(b.rx)
}

// ReadByte consumes one received byte, waiting at most one poll interval.
func (b *Bridge) ReadByte() (byte, error) {
	if b.Available() == 0 {
		if b.port == nil {
			return 0, ErrNotStarted
		}
		return 0, ErrTimeout
	}
	c := b.rx[0]
	b.rx = b.rx[1:]
	return c, nil
}

// ReadAvailable copies received bytes into p without waiting for a line
// break, waiting at most one poll interval for the first byte.
func (b *Bridge) ReadAvailable(p []byte) (int, error) {
	if b.port == nil {
		return 0, ErrNotStarted
	}
	if len(p) == 0 || b.Available() == 0 {
		return 0, nil
	}
	n := copy(p, b.rx)
	b.rx = b.rx[n:]
	return n, nil
}

// WriteString writes raw text to the module.
func (b *Bridge) WriteString(s string) (int, error) {
	if b.port == nil {
		return 0, ErrNotStarted
	}
	debug.Serial(">>", []byte(s))
	return b.port.Write([]byte(s))
}

func (b *Bridge) discard() error {
	b.rx = b.rx[:0]
	return b.port.ResetInputBuffer()
}

// fill reads whatever the port has, blocking at most its read timeout.
func (b *Bridge) fill() error {
	var chunk [64]byte
	n, err := b.port.Read(chunk[:])
	if n > 0 {
		debug.Serial("<<", chunk[:n])
		b.rx = append(b.rx, chunk[:n]...)
	}
	if err != nil && err != io.EOF {
		return err
	}
	return nil
}

// waitByte reports whether a byte is queued within timeout.
func (b *Bridge) waitByte(ctx context.Context, timeout time.Duration) (bool, error) {
	var ioErr error
	ok := poll.Until(ctx, timeout, b.opts.PollInterval, func() bool {
		if len(b.rx) > 0 {
			return true
		}
		if err := b.fill(); err != nil {
			ioErr = err
			return true
		}
		return len(b.rx) > 0
	})
	if ioErr != nil {
		return false, ioErr
	}
	return ok, nil
}
