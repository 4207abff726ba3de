// Package robot runs the control loop. One goroutine owns every
// peripheral: each poll runs the heartbeat, advances the script and then
// executes at most one queued manual command.
package robot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cjeanneret/NikBot/internal/config"
	"github.com/cjeanneret/NikBot/internal/debug"
	"github.com/cjeanneret/NikBot/internal/hw/bridge"
	"github.com/cjeanneret/NikBot/internal/hw/camera"
	"github.com/cjeanneret/NikBot/internal/hw/gpio"
	"github.com/cjeanneret/NikBot/internal/hw/rgbled"
	"github.com/cjeanneret/NikBot/internal/logic/drive"
	"github.com/cjeanneret/NikBot/internal/logic/heartbeat"
	"github.com/cjeanneret/NikBot/internal/logic/script"
)

// ErrBusy is returned by Submit when the command queue is full.
var ErrBusy = errors.New("robot: command queue full")

// Result describes the last manual command that ran.
type Result struct {
	ID    string    `json:"id"`
	Kind  string    `json:"kind"`
	Error string    `json:"error,omitempty"`
	At    time.Time `json:"at"`
}

// Status is a snapshot of the robot, refreshed after every poll.
type Status struct {
	Connected      bool         `json:"connected"`
	IP             string       `json:"ip,omitempty"`
	Heartbeat      bool         `json:"heartbeat"`
	RGB            rgbled.Color `json:"rgb"`
	Step           int          `json:"step"` // -1 before the script starts
	ScriptDone     bool         `json:"script_done"`
	ScriptFailures int          `json:"script_failures"`
	Queued         int          `json:"queued"`
	LastCommand    *Result      `json:"last_command,omitempty"`
	LastResponse   string       `json:"last_response,omitempty"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

type queued struct {
	id   string
	kind string
	step script.Step
}

// Robot owns the drive, the RGB light, the heartbeat LED, the bridge and
// the camera behind it, and the configured script.
type Robot struct {
	cfg       *config.Config
	drive     *drive.Controller
	rgb       *rgbled.RgbLed
	heartbeat *heartbeat.Heartbeat
	link      *bridge.Bridge
	camera    camera.Camera
	script    *script.Sequence
	queue     chan queued
	buf       []byte
	now       func() time.Time

	// loop-owned, copied into status by publish
	ip           string
	lastResponse string
	last         *Result

	mu     sync.Mutex
	status Status
}

// New builds the robot from the configuration. The bridge must wrap an
// open port; Begin starts it.
func New(cfg *config.Config, g gpio.Driver, link *bridge.Bridge) (*Robot, error) {
	steps, err := script.Build(cfg.Script)
	if err != nil {
		return nil, err
	}
	r := &Robot{
		cfg:   cfg,
		drive: drive.NewFromConfig(g, cfg.Pins.Motors),
		rgb: rgbled.New(g, rgbled.Pins{
			Red:   cfg.Pins.RGB.Red,
			Green: cfg.Pins.RGB.Green,
			Blue:  cfg.Pins.RGB.Blue,
		}),
		heartbeat: heartbeat.New(g, cfg.Pins.StatusLED, cfg.HeartbeatInterval(), nil),
		link:      link,
		camera:    camera.NewESP32Cam(link, cfg.CameraAckTimeout()),
		queue:     make(chan queued, cfg.Defaults.QueueSize),
		buf:       make([]byte, cfg.Bridge.ResponseBuffer),
		now:       time.Now,
	}
	r.script = script.NewSequence(steps, cfg.Script.Loop, r)
	r.status.Step = -1
	return r, nil
}

// Begin initialises every peripheral. Camera settings and the WiFi join
// are best effort: failures are logged and startup goes on.
func (r *Robot) Begin(ctx context.Context) error {
	debug.Section("Initializing peripherals")
	if err := r.drive.Begin(); err != nil {
		return fmt.Errorf("motors: %w", err)
	}
	if err := r.rgb.Begin(); err != nil {
		return fmt.Errorf("rgb led: %w", err)
	}
	if err := r.heartbeat.Begin(r.now()); err != nil {
		return fmt.Errorf("status led: %w", err)
	}
	if err := r.link.Begin(); err != nil {
		return fmt.Errorf("bridge: %w", err)
	}
	r.configureCamera(ctx)

	if r.cfg.Wifi.ConnectOnStart {
		if err := r.join(ctx); err != nil {
			debug.Error(fmt.Errorf("wifi: %w", err))
		}
	}
	r.publish(r.now())
	debug.Info("Robot ready (%d script steps, loop=%t)", r.script.Len(), r.cfg.Script.Loop)
	return nil
}

func (r *Robot) configureCamera(ctx context.Context) {
	cc := r.cfg.Camera
	if cc.Resolution != "" {
		if err := r.camera.SetResolution(ctx, cc.Resolution); err != nil {
			debug.Error(err)
		}
	}
	if cc.Quality != nil {
		if err := r.camera.SetQuality(ctx, *cc.Quality); err != nil {
			debug.Error(err)
		}
	}
	if err := r.camera.SetFlash(ctx, cc.Flash); err != nil {
		debug.Error(err)
	}
}

// Run polls every interval until ctx is done, then stops the motors and
// switches the RGB light off.
func (r *Robot) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	defer r.shutdown()

	debug.Live("Control loop running every %v", interval)
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			r.Poll(ctx, now)
		}
	}
}

func (r *Robot) shutdown() {
	debug.Info("Stopping robot")
	if err := r.drive.Stop(); err != nil {
		debug.Error(err)
	}
	if err := r.rgb.Off(); err != nil {
		debug.Error(err)
	}
}

// Poll runs one iteration of the control loop.
func (r *Robot) Poll(ctx context.Context, now time.Time) {
	if _, err := r.heartbeat.Poll(now); err != nil {
		debug.Error(fmt.Errorf("heartbeat: %w", err))
	}
	r.script.Poll(ctx, now)

	select {
	case q := <-r.queue:
		r.run(ctx, q, now)
	default:
	}
	r.publish(now)
}

func (r *Robot) run(ctx context.Context, q queued, now time.Time) {
	debug.Live("Command %s (%s): %s", q.id, q.kind, q.step)
	res := &Result{ID: q.id, Kind: q.kind, At: now}
	if err := r.Execute(ctx, q.step); err != nil {
		res.Error = err.Error()
		debug.Error(fmt.Errorf("command %s: %w", q.id, err))
	}
	r.last = res
}

// Submit validates and queues a manual command for the control loop. It
// never blocks: a full queue returns ErrBusy.
func (r *Robot) Submit(cmd Command) (string, error) {
	st, err := cmd.Step()
	if err != nil {
		return "", err
	}
	q := queued{id: uuid.NewString(), kind: cmd.Kind, step: st}
	select {
	case r.queue <- q:
		debug.Verbose("Queued command %s (%s)", q.id, q.kind)
		return q.id, nil
	default:
		return "", ErrBusy
	}
}

// Status returns the snapshot taken after the last poll.
func (r *Robot) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.status
	s.Queued = len(r.queue)
	if s.LastCommand != nil {
		last := *s.LastCommand
		s.LastCommand = &last
	}
	return s
}

func (r *Robot) publish(now time.Time) {
	s := Status{
		Connected:      r.link.IsConnected(),
		IP:             r.ip,
		Heartbeat:      r.heartbeat.On(),
		RGB:            r.rgb.State(),
		Step:           r.script.Current(),
		ScriptDone:     r.script.Done(),
		ScriptFailures: r.script.Failures(),
		LastCommand:    r.last,
		LastResponse:   r.lastResponse,
		UpdatedAt:      now,
	}
	r.mu.Lock()
	r.status = s
	r.mu.Unlock()
}

// Execute performs one step on the peripherals. It implements
// script.Executor and also runs manual commands.
func (r *Robot) Execute(ctx context.Context, st script.Step) error {
	switch st.Kind {
	case script.KindDrive:
		return r.drive.Apply(st.Drive, st.Speed)
	case script.KindLED:
		return r.rgb.Set(st.Color)
	case script.KindBridge:
		return r.link.SendCommand(ctx, st.Command, r.cfg.CommandTimeout())
	case script.KindCapture:
		return r.camera.Capture(ctx)
	case script.KindStreamStart:
		return r.camera.StartStream(ctx)
	case script.KindStreamStop:
		return r.camera.StopStream(ctx)
	case script.KindFlash:
		return r.camera.SetFlash(ctx, st.Flash)
	case script.KindResolution:
		return r.camera.SetResolution(ctx, st.Res)
	case script.KindQuality:
		return r.camera.SetQuality(ctx, st.Quality)
	case script.KindStatus:
		return r.cameraStatus(ctx)
	case script.KindWifiConnect:
		return r.join(ctx)
	case script.KindWifiDisconnect:
		r.ip = ""
		return r.link.Disconnect(ctx, r.cfg.CommandTimeout())
	case script.KindGetIP:
		return r.queryIP(ctx)
	case script.KindHTTPGet:
		res, err := r.link.HTTPGet(ctx, st.URL, r.buf, r.cfg.HTTPTimeout())
		return r.response(res, err)
	case script.KindHTTPPost:
		res, err := r.link.HTTPPost(ctx, st.URL, st.Body, r.buf, r.cfg.HTTPTimeout())
		return r.response(res, err)
	default:
		return fmt.Errorf("unknown step kind %q", st.Kind)
	}
}

// join connects to the configured network and records the address.
func (r *Robot) join(ctx context.Context) error {
	w := r.cfg.Wifi
	debug.Info("Connecting to WiFi %q", w.SSID)
	if err := r.link.Connect(ctx, w.SSID, w.Password, r.cfg.ConnectTimeout()); err != nil {
		r.ip = ""
		return err
	}
	debug.Info("WiFi connected")
	return r.queryIP(ctx)
}

func (r *Robot) queryIP(ctx context.Context) error {
	res, err := r.link.IPAddress(ctx, r.buf, r.cfg.IPTimeout())
	if err != nil {
		return err
	}
	r.ip = string(r.buf[:res.N])
	debug.Info("IP address: %s", r.ip)
	return nil
}

// cameraStatus asks the module for its status line and keeps it as the
// last response.
func (r *Robot) cameraStatus(ctx context.Context) error {
	if err := r.camera.RequestStatus(ctx); err != nil {
		return err
	}
	line, err := r.camera.ReadResponse(ctx, r.buf, r.cfg.CommandTimeout())
	if err != nil {
		return err
	}
	r.lastResponse = line
	debug.Response(line)
	return nil
}

func (r *Robot) response(res bridge.LineResult, err error) error {
	if err != nil {
		return err
	}
	r.lastResponse = string(r.buf[:res.N])
	if res.Truncated {
		debug.Verbose("Response truncated to %d bytes", res.N)
	}
	debug.Response(r.lastResponse)
	return nil
}
