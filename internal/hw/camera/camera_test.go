package camera

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cjeanneret/NikBot/internal/hw/bridge"
)

// recordingLink records the commands the camera sends.
type recordingLink struct {
	sent    []string // via SendCommand
	written []string // via WriteLine
	sendErr error
	line    string
}

func (l *recordingLink) SendCommand(ctx context.Context, cmd string, timeout time.Duration) error {
	l.sent = append(l.sent, cmd)
	return l.sendErr
}

func (l *recordingLink) WriteLine(cmd string) error {
	l.written = append(l.written, cmd)
	return nil
}

func (l *recordingLink) ReadLine(ctx context.Context, buf []byte, timeout time.Duration) (bridge.LineResult, error) {
	n := copy(buf[:len(buf)-1], l.line)
	buf[n] = 0
	return bridge.LineResult{N: n, Terminated: l.line != ""}, nil
}

func TestESP32Cam_CommandVocabulary(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		name string
		call func(*ESP32Cam) error
		want string
	}{
		{"capture", func(c *ESP32Cam) error { return c.Capture(ctx) }, "CAPTURE"},
		{"stream_start", func(c *ESP32Cam) error { return c.StartStream(ctx) }, "STREAM_START"},
		{"stream_stop", func(c *ESP32Cam) error { return c.StopStream(ctx) }, "STREAM_STOP"},
		{"status", func(c *ESP32Cam) error { return c.RequestStatus(ctx) }, "STATUS"},
		{"resolution", func(c *ESP32Cam) error { return c.SetResolution(ctx, "vga") }, "RES_VGA"},
		{"quality", func(c *ESP32Cam) error { return c.SetQuality(ctx, 10) }, "QUALITY_10"},
		{"flash_on", func(c *ESP32Cam) error { return c.SetFlash(ctx, true) }, "FLASH_ON"},
		{"flash_off", func(c *ESP32Cam) error { return c.SetFlash(ctx, false) }, "FLASH_OFF"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			link := &recordingLink{}
			cam := NewESP32Cam(link, time.Second)
			if err := tc.call(cam); err != nil {
				t.Fatal(err)
			}
			if len(link.sent) != 1 || link.sent[0] != tc.want {
				t.Errorf("sent = %v, want [%s]", link.sent, tc.want)
			}
		})
	}
}

func TestESP32Cam_NoAckWritesOnly(t *testing.T) {
	link := &recordingLink{}
	cam := NewESP32Cam(link, 0)
	if err := cam.Capture(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(link.sent) != 0 || len(link.written) != 1 || link.written[0] != "CAPTURE" {
		t.Errorf("sent=%v written=%v, want only a plain write", link.sent, link.written)
	}
}

func TestESP32Cam_QualityBounds(t *testing.T) {
	link := &recordingLink{}
	cam := NewESP32Cam(link, time.Second)
	for _, q := range []int{-1, 64, 255} {
		if err := cam.SetQuality(context.Background(), q); err == nil {
			t.Errorf("SetQuality(%d) should fail", q)
		}
	}
	if len(link.sent) != 0 {
		t.Errorf("invalid quality must not reach the module, sent %v", link.sent)
	}
	for _, q := range []int{0, 63} {
		if err := cam.SetQuality(context.Background(), q); err != nil {
			t.Errorf("SetQuality(%d): %v", q, err)
		}
	}
}

func TestESP32Cam_UnknownResolution(t *testing.T) {
	link := &recordingLink{}
	cam := NewESP32Cam(link, time.Second)
	if err := cam.SetResolution(context.Background(), "8K"); err == nil {
		t.Error("expected error for unknown resolution")
	}
	if len(link.sent) != 0 {
		t.Errorf("sent %v, want nothing", link.sent)
	}
}

func TestESP32Cam_AckTimeoutWrapped(t *testing.T) {
	link := &recordingLink{sendErr: bridge.ErrTimeout}
	cam := NewESP32Cam(link, time.Millisecond)
	err := cam.Capture(context.Background())
	if !errors.Is(err, bridge.ErrTimeout) {
		t.Errorf("err = %v, want wrapped ErrTimeout", err)
	}
}

func TestESP32Cam_ReadResponse(t *testing.T) {
	link := &recordingLink{line: "OK PHOTO 1"}
	cam := NewESP32Cam(link, time.Second)
	got, err := cam.ReadResponse(context.Background(), make([]byte, 32), time.Second)
	if err != nil || got != "OK PHOTO 1" {
		t.Errorf("ReadResponse = %q, %v", got, err)
	}

	link.line = ""
	if _, err := cam.ReadResponse(context.Background(), make([]byte, 32), time.Second); !errors.Is(err, bridge.ErrTimeout) {
		t.Errorf("empty read err = %v, want ErrTimeout", err)
	}
}

func TestESP32Cam_OverBridgeSimulator(t *testing.T) {
	b := bridge.New(bridge.NewSimulator(), bridge.Options{PollInterval: time.Millisecond})
	if err := b.Begin(); err != nil {
		t.Fatal(err)
	}
	cam := NewESP32Cam(b, 200*time.Millisecond)
	if err := cam.Capture(context.Background()); err != nil {
		t.Fatalf("Capture: %v", err)
	}
	got, err := cam.ReadResponse(context.Background(), make([]byte, 32), 200*time.Millisecond)
	if err != nil || got != "OK PHOTO 1" {
		t.Errorf("response = %q, %v", got, err)
	}
}

func TestESP32Cam_ImplementsCamera(t *testing.T) {
	var _ Camera = NewESP32Cam(&recordingLink{}, 0)
	var _ Link = (*bridge.Bridge)(nil)
}
