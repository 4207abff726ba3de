package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cjeanneret/NikBot/internal/hw/gpio"
)

// MaxConfigFileBytes caps the size of a configuration file.
const MaxConfigFileBytes = 1 << 20

// MaxBCMPin is the highest GPIO on the 40-pin header.
const MaxBCMPin = 27

// unsetPin marks a pin role the file did not assign, so BCM 0 stays usable.
const unsetPin = -1

func unsetPins() PinsConfig {
	m := MotorPins{A: unsetPin, B: unsetPin}
	return PinsConfig{
		Motors:    MotorsConfig{LeftFront: m, RightFront: m, LeftBack: m, RightBack: m},
		RGB:       RGBPins{Red: unsetPin, Green: unsetPin, Blue: unsetPin},
		StatusLED: unsetPin,
	}
}

// MotorPins describes the H-bridge wiring of one motor.
type MotorPins struct {
	A        int  `yaml:"a"`        // terminal A (BCM)
	B        int  `yaml:"b"`        // terminal B (BCM)
	PWM      bool `yaml:"pwm"`      // both terminals support hardware PWM
	Inverted bool `yaml:"inverted"` // mirrored mount: forward drives terminal B
}

// MotorsConfig assigns the four drive motors.
type MotorsConfig struct {
	LeftFront  MotorPins `yaml:"left_front"`
	RightFront MotorPins `yaml:"right_front"`
	LeftBack   MotorPins `yaml:"left_back"`
	RightBack  MotorPins `yaml:"right_back"`
}

// RGBPins assigns the three status light channels.
type RGBPins struct {
	Red   int `yaml:"red"`
	Green int `yaml:"green"`
	Blue  int `yaml:"blue"`
}

// PinsConfig maps every logical role to a physical pin.
type PinsConfig struct {
	Motors    MotorsConfig `yaml:"motors"`
	RGB       RGBPins      `yaml:"rgb"`
	StatusLED int          `yaml:"status_led"` // heartbeat LED
}

// BridgeConfig describes the serial link to the camera/WiFi module.
type BridgeConfig struct {
	Device           string `yaml:"device"`             // e.g. /dev/ttyS0
	Baud             int    `yaml:"baud"`               // default 9600
	Driver           string `yaml:"driver"`             // "bugst" (default) or "tarm"
	Mock             bool   `yaml:"mock"`               // use the in-process simulated module
	CommandTimeoutMs int    `yaml:"command_timeout_ms"` // plain command ack wait
	ConnectTimeoutMs int    `yaml:"connect_timeout_ms"` // WIFI_CONNECT wait
	IPTimeoutMs      int    `yaml:"ip_timeout_ms"`      // GET_IP wait
	HTTPTimeoutMs    int    `yaml:"http_timeout_ms"`    // HTTP_GET / HTTP_POST wait
	PollIntervalMs   int    `yaml:"poll_interval_ms"`   // pause between input checks
	SettleDelayMs    int    `yaml:"settle_delay_ms"`    // wait after opening the port
	ResponseBuffer   int    `yaml:"response_buffer"`    // bytes kept per response line
}

// WifiConfig holds the credentials the module joins with.
type WifiConfig struct {
	SSID           string `yaml:"ssid"`
	Password       string `yaml:"password"`
	ConnectOnStart bool   `yaml:"connect_on_start"`
}

// CameraConfig holds the initial camera settings.
type CameraConfig struct {
	AckTimeoutMs int    `yaml:"ack_timeout_ms"` // 0 = write commands without waiting
	Resolution   string `yaml:"resolution"`     // e.g. "VGA"; empty = module default
	Quality      *int   `yaml:"quality"`        // 0-63; nil = module default
	Flash        bool   `yaml:"flash"`
}

// HeartbeatConfig configures the liveness blink.
type HeartbeatConfig struct {
	IntervalMs int `yaml:"interval_ms"`
}

// StepConfig is one scripted maneuver or bridge command.
type StepConfig struct {
	Action     string `yaml:"action"`
	Speed      int    `yaml:"speed"`       // 1-255, 0 = full speed
	DurationMs int    `yaml:"duration_ms"` // time before the next step starts
	Color      string `yaml:"color"`       // led steps
	Command    string `yaml:"command"`     // bridge steps
	URL        string `yaml:"url"`         // http steps
	Body       string `yaml:"body"`        // http_post steps
	Resolution string `yaml:"resolution"`  // resolution steps, e.g. VGA
	Quality    *int   `yaml:"quality"`     // quality steps, 0 (best) to 63
	Flash      bool   `yaml:"flash"`       // flash steps
}

// ScriptConfig is the sequence run by the main loop.
type ScriptConfig struct {
	Loop  bool         `yaml:"loop"`
	Steps []StepConfig `yaml:"steps"`
}

// DefaultsConfig contains generic parameters.
type DefaultsConfig struct {
	LoopIntervalMs int  `yaml:"loop_interval_ms"` // main loop poll period
	QueueSize      int  `yaml:"queue_size"`       // pending manual commands
	DebugLevel     int  `yaml:"debug_level"`      // debug level 0-4 (0=off, 1=info, 2=live, 3=verbose, 4=trace)
	MockGPIO       bool `yaml:"mock_gpio"`        // use mock GPIO (true=dev/test, false=real Raspberry Pi)
}

// Config aggregates all application configuration.
type Config struct {
	Pins      PinsConfig      `yaml:"pins"`
	Bridge    BridgeConfig    `yaml:"bridge"`
	Wifi      WifiConfig      `yaml:"wifi"`
	Camera    CameraConfig    `yaml:"camera"`
	Heartbeat HeartbeatConfig `yaml:"heartbeat"`
	Script    ScriptConfig    `yaml:"script"`
	Defaults  DefaultsConfig  `yaml:"defaults"`
}

// ValidateConfigPath accepts only .yaml files inside a "configs" directory,
// without parent-directory traversal.
func ValidateConfigPath(path string) error {
	if path == "" {
		return fmt.Errorf("config path is empty")
	}
	clean := filepath.Clean(path)
	for _, part := range strings.Split(filepath.ToSlash(clean), "/") {
		if part == ".." {
			return fmt.Errorf("config path %q must not traverse parent directories", path)
		}
	}
	if filepath.Ext(clean) != ".yaml" {
		return fmt.Errorf("config path %q must have a .yaml extension", path)
	}
	abs, err := filepath.Abs(clean)
	if err != nil {
		return fmt.Errorf("resolve config path: %w", err)
	}
	if filepath.Base(filepath.Dir(abs)) != "configs" {
		return fmt.Errorf("config path %q must be inside a configs/ directory", path)
	}
	return nil
}

// Load reads a YAML file and returns the configuration.
func Load(path string) (*Config, error) {
	if err := ValidateConfigPath(path); err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat config file: %w", err)
	}
	if info.Size() > MaxConfigFileBytes {
		return nil, fmt.Errorf("config file is %d bytes, limit is %d", info.Size(), MaxConfigFileBytes)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Config{Pins: unsetPins()}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}

	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() error {
	if err := c.Pins.validate(); err != nil {
		return err
	}

	// Bridge
	if c.Bridge.Driver == "" {
		c.Bridge.Driver = "bugst"
	}
	if c.Bridge.Driver != "bugst" && c.Bridge.Driver != "tarm" {
		return fmt.Errorf("bridge.driver must be \"bugst\" or \"tarm\", got %q", c.Bridge.Driver)
	}
	if !c.Bridge.Mock && c.Bridge.Device == "" {
		return fmt.Errorf("bridge.device is required unless bridge.mock is set")
	}
	if c.Bridge.Baud <= 0 {
		c.Bridge.Baud = 9600
	}
	if c.Bridge.CommandTimeoutMs <= 0 {
		c.Bridge.CommandTimeoutMs = 1000
	}
	if c.Bridge.ConnectTimeoutMs <= 0 {
		c.Bridge.ConnectTimeoutMs = 10000
	}
	if c.Bridge.IPTimeoutMs <= 0 {
		c.Bridge.IPTimeoutMs = 2000
	}
	if c.Bridge.HTTPTimeoutMs <= 0 {
		c.Bridge.HTTPTimeoutMs = 5000
	}
	if c.Bridge.PollIntervalMs <= 0 {
		c.Bridge.PollIntervalMs = 10
	}
	if c.Bridge.SettleDelayMs < 0 {
		c.Bridge.SettleDelayMs = 0
	}
	if c.Bridge.ResponseBuffer <= 1 {
		c.Bridge.ResponseBuffer = 128
	}

	// WiFi
	if c.Wifi.ConnectOnStart && c.Wifi.SSID == "" {
		return fmt.Errorf("wifi.ssid is required when wifi.connect_on_start is set")
	}

	// Camera
	if c.Camera.Quality != nil && (*c.Camera.Quality < 0 || *c.Camera.Quality > 63) {
		return fmt.Errorf("camera.quality must be between 0 and 63, got %d", *c.Camera.Quality)
	}
	if c.Camera.AckTimeoutMs < 0 {
		c.Camera.AckTimeoutMs = 0
	}

	// Heartbeat
	if c.Heartbeat.IntervalMs <= 0 {
		c.Heartbeat.IntervalMs = 500
	}

	// Script
	for i, s := range c.Script.Steps {
		if s.Action == "" {
			return fmt.Errorf("script.steps[%d].action is required", i)
		}
		if s.Speed < 0 || s.Speed > 255 {
			return fmt.Errorf("script.steps[%d].speed must be between 0 and 255, got %d", i, s.Speed)
		}
		if s.DurationMs < 0 {
			return fmt.Errorf("script.steps[%d].duration_ms must be >= 0, got %d", i, s.DurationMs)
		}
	}

	// Defaults
	if c.Defaults.LoopIntervalMs <= 0 {
		c.Defaults.LoopIntervalMs = 10
	}
	if c.Defaults.QueueSize <= 0 {
		c.Defaults.QueueSize = 16
	}
	return nil
}

func (p *PinsConfig) validate() error {
	m := &p.Motors
	roles := []struct {
		name string
		pin  int
		pwm  bool
	}{
		{"pins.motors.left_front.a", m.LeftFront.A, m.LeftFront.PWM},
		{"pins.motors.left_front.b", m.LeftFront.B, m.LeftFront.PWM},
		{"pins.motors.right_front.a", m.RightFront.A, m.RightFront.PWM},
		{"pins.motors.right_front.b", m.RightFront.B, m.RightFront.PWM},
		{"pins.motors.left_back.a", m.LeftBack.A, m.LeftBack.PWM},
		{"pins.motors.left_back.b", m.LeftBack.B, m.LeftBack.PWM},
		{"pins.motors.right_back.a", m.RightBack.A, m.RightBack.PWM},
		{"pins.motors.right_back.b", m.RightBack.B, m.RightBack.PWM},
		{"pins.rgb.red", p.RGB.Red, false},
		{"pins.rgb.green", p.RGB.Green, false},
		{"pins.rgb.blue", p.RGB.Blue, false},
		{"pins.status_led", p.StatusLED, false},
	}
	used := make(map[int]string, len(roles))
	for _, r := range roles {
		if r.pin == unsetPin {
			return fmt.Errorf("%s is required", r.name)
		}
		if r.pin < 0 || r.pin > MaxBCMPin {
			return fmt.Errorf("%s must be a BCM pin between 0 and %d, got %d", r.name, MaxBCMPin, r.pin)
		}
		if r.pwm && !gpio.SupportsPWM(r.pin) {
			return fmt.Errorf("%s: pin %d has no hardware PWM, pwm motors need BCM 12, 13, 18 or 19", r.name, r.pin)
		}
		if other, ok := used[r.pin]; ok {
			return fmt.Errorf("%s reuses pin %d already assigned to %s", r.name, r.pin, other)
		}
		used[r.pin] = r.name
	}
	return nil
}

func ms(v int) time.Duration {
	return time.Duration(v) * time.Millisecond
}

// CommandTimeout returns the wait for a plain command acknowledgment.
func (c *Config) CommandTimeout() time.Duration { return ms(c.Bridge.CommandTimeoutMs) }

// ConnectTimeout returns the wait for the WiFi join token.
func (c *Config) ConnectTimeout() time.Duration { return ms(c.Bridge.ConnectTimeoutMs) }

// IPTimeout returns the wait for a GET_IP answer.
func (c *Config) IPTimeout() time.Duration { return ms(c.Bridge.IPTimeoutMs) }

// HTTPTimeout returns the wait for a proxied HTTP answer.
func (c *Config) HTTPTimeout() time.Duration { return ms(c.Bridge.HTTPTimeoutMs) }

// PollInterval returns the pause between two checks for serial input.
func (c *Config) PollInterval() time.Duration { return ms(c.Bridge.PollIntervalMs) }

// SettleDelay returns the wait after opening the serial port.
func (c *Config) SettleDelay() time.Duration { return ms(c.Bridge.SettleDelayMs) }

// CameraAckTimeout returns the camera command ack wait (0 = no wait).
func (c *Config) CameraAckTimeout() time.Duration { return ms(c.Camera.AckTimeoutMs) }

// HeartbeatInterval returns the LED toggle period.
func (c *Config) HeartbeatInterval() time.Duration { return ms(c.Heartbeat.IntervalMs) }

// LoopInterval returns the main loop poll period.
func (c *Config) LoopInterval() time.Duration { return ms(c.Defaults.LoopIntervalMs) }

// Duration returns the step's duration.
func (s StepConfig) Duration() time.Duration { return ms(s.DurationMs) }
