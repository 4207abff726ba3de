package script

import (
	"fmt"
	"strings"
	"time"

	"github.com/cjeanneret/NikBot/internal/config"
	"github.com/cjeanneret/NikBot/internal/hw/camera"
	"github.com/cjeanneret/NikBot/internal/hw/motor"
	"github.com/cjeanneret/NikBot/internal/hw/rgbled"
	"github.com/cjeanneret/NikBot/internal/logic/drive"
)

// Kind groups the step actions by the peripheral they use.
type Kind string

const (
	KindDrive          Kind = "drive"
	KindLED            Kind = "led"
	KindBridge         Kind = "bridge"
	KindCapture        Kind = "capture"
	KindWifiConnect    Kind = "wifi_connect"
	KindWifiDisconnect Kind = "wifi_disconnect"
	KindHTTPGet        Kind = "http_get"
	KindHTTPPost       Kind = "http_post"
	KindGetIP          Kind = "get_ip"
	KindStreamStart    Kind = "stream_start"
	KindStreamStop     Kind = "stream_stop"
	KindFlash          Kind = "flash"
	KindResolution     Kind = "resolution"
	KindQuality        Kind = "quality"
	KindStatus         Kind = "status"
)

// Step is one validated entry of a sequence.
type Step struct {
	Kind     Kind
	Drive    drive.Action // KindDrive
	Speed    uint8        // KindDrive
	Color    rgbled.Color // KindLED
	Command  string       // KindBridge
	URL      string       // KindHTTPGet, KindHTTPPost
	Body     string       // KindHTTPPost
	Res      string       // KindResolution
	Quality  int          // KindQuality
	Flash    bool         // KindFlash
	Duration time.Duration
}

func (s Step) String() string {
	switch s.Kind {
	case KindDrive:
		if s.Drive == drive.Stop {
			return string(s.Drive)
		}
		return fmt.Sprintf("%s speed=%d", s.Drive, s.Speed)
	case KindLED:
		return fmt.Sprintf("led r=%t g=%t b=%t", s.Color.Red, s.Color.Green, s.Color.Blue)
	case KindBridge:
		return "bridge " + s.Command
	case KindHTTPGet, KindHTTPPost:
		return fmt.Sprintf("%s %s", s.Kind, s.URL)
	case KindResolution:
		return "resolution " + s.Res
	case KindQuality:
		return fmt.Sprintf("quality %d", s.Quality)
	case KindFlash:
		return fmt.Sprintf("flash on=%t", s.Flash)
	default:
		return string(s.Kind)
	}
}

// ParseStep validates one configured step. A drive step with speed 0 runs
// at full speed.
func ParseStep(sc config.StepConfig) (Step, error) {
	st := Step{Duration: sc.Duration()}
	if sc.DurationMs < 0 {
		return st, fmt.Errorf("duration must be >= 0, got %d ms", sc.DurationMs)
	}

	name := strings.ToLower(strings.TrimSpace(sc.Action))
	if a, err := drive.ParseAction(name); err == nil {
		if sc.Speed < 0 || sc.Speed > int(motor.FullSpeed) {
			return st, fmt.Errorf("speed must be between 0 and %d, got %d", motor.FullSpeed, sc.Speed)
		}
		st.Kind = KindDrive
		st.Drive = a
		st.Speed = uint8(sc.Speed)
		if st.Speed == 0 {
			st.Speed = motor.FullSpeed
		}
		return st, nil
	}

	st.Kind = Kind(name)
	switch st.Kind {
	case KindLED:
		c, err := rgbled.ParseColor(sc.Color)
		if err != nil {
			return st, err
		}
		st.Color = c
	case KindBridge:
		if strings.TrimSpace(sc.Command) == "" {
			return st, fmt.Errorf("bridge step needs a command")
		}
		if strings.ContainsAny(sc.Command, "\r\n") {
			return st, fmt.Errorf("bridge command must be a single line")
		}
		st.Command = sc.Command
	case KindHTTPGet, KindHTTPPost:
		if sc.URL == "" {
			return st, fmt.Errorf("%s step needs a url", st.Kind)
		}
		st.URL = sc.URL
		st.Body = sc.Body
	case KindResolution:
		code := strings.ToUpper(strings.TrimSpace(sc.Resolution))
		if !camera.ValidResolution(code) {
			return st, fmt.Errorf("unsupported resolution %q", sc.Resolution)
		}
		st.Res = code
	case KindQuality:
		if sc.Quality == nil {
			return st, fmt.Errorf("quality step needs a quality")
		}
		if *sc.Quality < 0 || *sc.Quality > camera.MaxQuality {
			return st, fmt.Errorf("quality must be between 0 and %d, got %d", camera.MaxQuality, *sc.Quality)
		}
		st.Quality = *sc.Quality
	case KindFlash:
		st.Flash = sc.Flash
	case KindCapture, KindStreamStart, KindStreamStop, KindStatus,
		KindWifiConnect, KindWifiDisconnect, KindGetIP:
	default:
		return st, fmt.Errorf("unknown action %q", sc.Action)
	}
	return st, nil
}

// Build validates every configured step.
func Build(cfg config.ScriptConfig) ([]Step, error) {
	steps := make([]Step, 0, len(cfg.Steps))
	for i, sc := range cfg.Steps {
		st, err := ParseStep(sc)
		if err != nil {
			return nil, fmt.Errorf("script.steps[%d]: %w", i, err)
		}
		steps = append(steps, st)
	}
	return steps, nil
}
