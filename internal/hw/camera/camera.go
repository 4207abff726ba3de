// Package camera drives the camera of the companion module. The module
// firmware owns the sensor; the host only sends one-line commands.
package camera

import (
	"context"
	"time"
)

// Camera is what the control loop drives: photo and stream requests,
// sensor settings and the module's status line.
type Camera interface {
	Capture(ctx context.Context) error
	StartStream(ctx context.Context) error
	StopStream(ctx context.Context) error
	SetResolution(ctx context.Context, code string) error
	SetQuality(ctx context.Context, quality int) error
	SetFlash(ctx context.Context, on bool) error
	RequestStatus(ctx context.Context) error
	ReadResponse(ctx context.Context, buf []byte, timeout time.Duration) (string, error)
}

// Camera commands understood by the companion module firmware.
const (
	CmdCapture     = "CAPTURE"
	CmdStreamStart = "STREAM_START"
	CmdStreamStop  = "STREAM_STOP"
	CmdStatus      = "STATUS"
	CmdFlashOn     = "FLASH_ON"
	CmdFlashOff    = "FLASH_OFF"
	PrefixRes      = "RES_"
	PrefixQuality  = "QUALITY_"

	// MaxQuality is the worst JPEG quality setting (lower is better).
	MaxQuality = 63
)

// Resolutions lists the frame size codes accepted by SetResolution.
var Resolutions = []string{"QQVGA", "QCIF", "HQVGA", "QVGA", "CIF", "HVGA", "VGA", "SVGA", "XGA", "HD", "SXGA", "UXGA"}

// ValidResolution reports whether code is a known frame size.
func ValidResolution(code string) bool {
	for _, r := range Resolutions {
		if r == code {
			return true
		}
	}
	return false
}

var _ Camera = (*ESP32Cam)(nil)
