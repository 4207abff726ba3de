package camera

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cjeanneret/NikBot/internal/debug"
	"github.com/cjeanneret/NikBot/internal/hw/bridge"
)

// Link is the part of the serial bridge the camera needs.
type Link interface {
	SendCommand(ctx context.Context, cmd string, timeout time.Duration) error
	WriteLine(cmd string) error
	ReadLine(ctx context.Context, buf []byte, timeout time.Duration) (bridge.LineResult, error)
}

// ESP32Cam drives the camera of the companion module over the serial
// bridge. With a zero ack timeout commands are written without waiting;
// otherwise each command waits for the bridge's any-byte acknowledgment.
type ESP32Cam struct {
	link       Link
	ackTimeout time.Duration
}

// NewESP32Cam creates a camera on the given bridge link.
func NewESP32Cam(link Link, ackTimeout time.Duration) *ESP32Cam {
	return &ESP32Cam{link: link, ackTimeout: ackTimeout}
}

// Capture requests a photo, honoring ctx while waiting for the ack.
func (c *ESP32Cam) Capture(ctx context.Context) error {
	return c.send(ctx, CmdCapture)
}

func (c *ESP32Cam) StartStream(ctx context.Context) error {
	return c.send(ctx, CmdStreamStart)
}

func (c *ESP32Cam) StopStream(ctx context.Context) error {
	return c.send(ctx, CmdStreamStop)
}

func (c *ESP32Cam) RequestStatus(ctx context.Context) error {
	return c.send(ctx, CmdStatus)
}

// SetResolution selects a frame size by code (e.g. "VGA").
func (c *ESP32Cam) SetResolution(ctx context.Context, code string) error {
	code = strings.ToUpper(strings.TrimSpace(code))
	if !ValidResolution(code) {
		return fmt.Errorf("unsupported resolution %q", code)
	}
	return c.send(ctx, PrefixRes+code)
}

// SetQuality sets the JPEG quality, 0 (best) to MaxQuality.
func (c *ESP32Cam) SetQuality(ctx context.Context, quality int) error {
	if quality < 0 || quality > MaxQuality {
		return fmt.Errorf("quality must be between 0 and %d, got %d", MaxQuality, quality)
	}
	return c.send(ctx, PrefixQuality+strconv.Itoa(quality))
}

func (c *ESP32Cam) SetFlash(ctx context.Context, on bool) error {
	if on {
		return c.send(ctx, CmdFlashOn)
	}
	return c.send(ctx, CmdFlashOff)
}

// ReadResponse reads one response line from the module into buf.
func (c *ESP32Cam) ReadResponse(ctx context.Context, buf []byte, timeout time.Duration) (string, error) {
	res, err := c.link.ReadLine(ctx, buf, timeout)
	if err != nil {
		return "", err
	}
	if !res.OK() {
		return "", bridge.ErrTimeout
	}
	return string(buf[:res.N]), nil
}

func (c *ESP32Cam) send(ctx context.Context, cmd string) error {
	debug.Live("Camera: %s", cmd)
	if c.ackTimeout <= 0 {
		return c.link.WriteLine(cmd)
	}
	if err := c.link.SendCommand(ctx, cmd, c.ackTimeout); err != nil {
		return fmt.Errorf("camera %s: %w", cmd, err)
	}
	return nil
}
