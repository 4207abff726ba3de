package robot

import (
	"fmt"

	"github.com/cjeanneret/NikBot/internal/config"
	"github.com/cjeanneret/NikBot/internal/logic/script"
)

// Manual command kinds accepted by Submit.
const (
	KindDrive   = "drive"
	KindLED     = "led"
	KindBridge  = "bridge"
	KindCapture = "capture"
	KindCamera  = "camera" // Action: stream_start, stream_stop, flash, resolution, quality, status
)

// Command is a manual request, typically from the web surface.
type Command struct {
	Kind    string `json:"kind"`
	Action  string `json:"action,omitempty"`  // drive: forward, reverse, left, right, stop
	Speed   int    `json:"speed,omitempty"`   // drive: 1-255, 0 = full speed
	Color   string `json:"color,omitempty"`   // led
	Command string `json:"command,omitempty"` // bridge

	Resolution string `json:"resolution,omitempty"` // camera resolution
	Quality    *int   `json:"quality,omitempty"`    // camera quality
	Flash      bool   `json:"flash,omitempty"`      // camera flash
}

var cameraActions = map[script.Kind]bool{
	script.KindStreamStart: true,
	script.KindStreamStop:  true,
	script.KindFlash:       true,
	script.KindResolution:  true,
	script.KindQuality:     true,
	script.KindStatus:      true,
}

// Step validates the command and converts it to a step that runs
// immediately and lasts no time.
func (c Command) Step() (script.Step, error) {
	var sc config.StepConfig
	switch c.Kind {
	case KindDrive:
		sc = config.StepConfig{Action: c.Action, Speed: c.Speed}
	case KindLED:
		sc = config.StepConfig{Action: string(script.KindLED), Color: c.Color}
	case KindBridge:
		sc = config.StepConfig{Action: string(script.KindBridge), Command: c.Command}
	case KindCapture:
		sc = config.StepConfig{Action: string(script.KindCapture)}
	case KindCamera:
		if !cameraActions[script.Kind(c.Action)] {
			return script.Step{}, fmt.Errorf("unknown camera action %q", c.Action)
		}
		sc = config.StepConfig{
			Action:     c.Action,
			Resolution: c.Resolution,
			Quality:    c.Quality,
			Flash:      c.Flash,
		}
	case "":
		return script.Step{}, fmt.Errorf("kind is required")
	default:
		return script.Step{}, fmt.Errorf("unknown command kind %q", c.Kind)
	}

	st, err := script.ParseStep(sc)
	if err != nil {
		return st, err
	}
	// A drive command must name a maneuver, not another step action.
	if c.Kind == KindDrive && st.Kind != script.KindDrive {
		return st, fmt.Errorf("unknown drive action %q", c.Action)
	}
	return st, nil
}
