package bridge

import (
	"bytes"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Simulator is an in-process stand-in for the companion module, used with
// mock GPIO when no hardware is attached. It answers every command line
// with "\r\n"-terminated responses the way the module firmware does.
type Simulator struct {
	mu          sync.Mutex
	rx          bytes.Buffer // module -> host
	pending     []byte       // partial host -> module line
	readTimeout time.Duration
	closed      bool

	connected bool
	ssid      string
	streaming bool
	flash     bool
	res       string
	quality   string
	photos    int
}

// NewSimulator returns a simulated module that is powered on and idle.
func NewSimulator() *Simulator {
	return &Simulator{res: "VGA", quality: "12"}
}

func (s *Simulator) Read(p []byte) (int, error) {
	s.mu.Lock()
	if s.rx.Len() == 0 {
		timeout := s.readTimeout
		s.mu.Unlock()
		time.Sleep(timeout)
		s.mu.Lock()
	}
	defer s.mu.Unlock()
	if s.closed {
		return 0, fmt.Errorf("simulator: port closed")
	}
	if s.rx.Len() == 0 {
		return 0, nil
	}
	return s.rx.Read(p)
}

func (s *Simulator) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, fmt.Errorf("simulator: port closed")
	}
	s.pending = append(s.pending, p...)
	for {
		i := bytes.IndexByte(s.pending, '\n')
		if i < 0 {
			break
		}
		line := strings.TrimRight(string(s.pending[:i]), "\r")
		s.pending = s.pending[i+1:]
		for _, resp := range s.handle(line) {
			s.rx.WriteString(resp + "\r\n")
		}
	}
	return len(p), nil
}

func (s *Simulator) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *Simulator) SetReadTimeout(t time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readTimeout = t
	return nil
}

func (s *Simulator) ResetInputBuffer() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rx.Reset()
	return nil
}

// handle returns the response lines for one command line.
func (s *Simulator) handle(line string) []string {
	cmd, arg, _ := strings.Cut(line, ":")
	switch {
	case cmd == "CAPTURE":
		s.photos++
		return []string{fmt.Sprintf("OK PHOTO %d", s.photos)}
	case cmd == "STREAM_START":
		s.streaming = true
		return []string{"OK"}
	case cmd == "STREAM_STOP":
		s.streaming = false
		return []string{"OK"}
	case cmd == "STATUS":
		return []string{fmt.Sprintf("STATUS res=%s quality=%s stream=%t flash=%t wifi=%t",
			s.res, s.quality, s.streaming, s.flash, s.connected)}
	case strings.HasPrefix(cmd, "RES_"):
		s.res = strings.TrimPrefix(cmd, "RES_")
		return []string{"OK"}
	case strings.HasPrefix(cmd, "QUALITY_"):
		s.quality = strings.TrimPrefix(cmd, "QUALITY_")
		return []string{"OK"}
	case cmd == "FLASH_ON":
		s.flash = true
		return []string{"OK"}
	case cmd == "FLASH_OFF":
		s.flash = false
		return []string{"OK"}
	case cmd == CmdWifiConnect:
		ssid, _, _ := strings.Cut(arg, ",")
		if ssid == "" {
			return []string{"CONNECTING", "ERROR no ssid"}
		}
		s.connected = true
		s.ssid = ssid
		return []string{"CONNECTING", "WIFI OK"}
	case cmd == CmdWifiDisconnect:
		s.connected = false
		return []string{"OK"}
	case cmd == CmdGetIP:
		if !s.connected {
			return []string{"0.0.0.0"}
		}
		return []string{"192.168.4.2"}
	case cmd == CmdHTTPGet:
		return []string{"200 " + arg}
	case cmd == CmdHTTPPost:
		url, body, _ := strings.Cut(arg, "|")
		return []string{fmt.Sprintf("201 %s %d", url, len(body))}
	default:
		return []string{"ERROR unknown command"}
	}
}
