package bridge

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cjeanneret/NikBot/internal/debug"
	"github.com/cjeanneret/NikBot/internal/poll"
)

// Wire commands of the WiFi vocabulary.
const (
	CmdWifiConnect    = "WIFI_CONNECT"
	CmdWifiDisconnect = "WIFI_DISCONNECT"
	CmdGetIP          = "GET_IP"
	CmdHTTPGet        = "HTTP_GET"
	CmdHTTPPost       = "HTTP_POST"

	// ConnectedToken must appear in a response line for Connect to succeed.
	ConnectedToken = "OK"
)

// tokenLineSize bounds the lines scanned while waiting for ConnectedToken.
const tokenLineSize = 64

// Connect asks the module to join a network. The credentials travel in
// clear text on the serial line. Unlike SendCommand, success requires a
// response line containing ConnectedToken before the timeout; any other
// outcome leaves the bridge disconnected and returns ErrTimeout.
func (b *Bridge) Connect(ctx context.Context, ssid, password string, timeout time.Duration) error {
	b.connected = false
	if strings.ContainsAny(ssid+password, "\r\n") {
		return ErrLineBreak
	}

	cmd := fmt.Sprintf("%s:%s,%s", CmdWifiConnect, ssid, password)
	if err := b.SendCommand(ctx, cmd, timeout); err != nil {
		return err
	}

	ok, err := b.waitForToken(ctx, ConnectedToken, timeout)
	if err != nil {
		return err
	}
	if !ok {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		debug.Info("WiFi: no %q from module within %v", ConnectedToken, timeout)
		return ErrTimeout
	}
	b.connected = true
	debug.Info("WiFi: connected to %q", ssid)
	return nil
}

// Disconnect asks the module to leave the network. The bridge is
// disconnected afterwards whatever the module answers.
func (b *Bridge) Disconnect(ctx context.Context, timeout time.Duration) error {
	defer func() { b.connected = false }()
	if b.port == nil {
		return ErrNotStarted
	}
	return b.SendCommand(ctx, CmdWifiDisconnect, timeout)
}

// IsConnected reports the last known WiFi state.
func (b *Bridge) IsConnected() bool {
	return b.connected
}

// IPAddress requests the module's current IP address into buf.
func (b *Bridge) IPAddress(ctx context.Context, buf []byte, timeout time.Duration) (LineResult, error) {
	return b.query(ctx, CmdGetIP, buf, timeout)
}

// HTTPGet proxies a GET request through the module and reads one response
// line into buf.
func (b *Bridge) HTTPGet(ctx context.Context, url string, buf []byte, timeout time.Duration) (LineResult, error) {
	if strings.ContainsAny(url, "\r\n") {
		return terminate(buf), ErrLineBreak
	}
	return b.query(ctx, CmdHTTPGet+":"+url, buf, timeout)
}

// HTTPPost proxies a POST request through the module and reads one response
// line into buf. The body must not contain a line break.
func (b *Bridge) HTTPPost(ctx context.Context, url, body string, buf []byte, timeout time.Duration) (LineResult, error) {
	if strings.ContainsAny(url+body, "\r\n") {
		return terminate(buf), ErrLineBreak
	}
	return b.query(ctx, CmdHTTPPost+":"+url+"|"+body, buf, timeout)
}

// query runs a network command: connectivity check, weak ack, one line.
func (b *Bridge) query(ctx context.Context, cmd string, buf []byte, timeout time.Duration) (LineResult, error) {
	if !b.connected {
		return terminate(buf), ErrNotConnected
	}
	if err := b.SendCommand(ctx, cmd, timeout); err != nil {
		return terminate(buf), err
	}
	res, err := b.ReadLine(ctx, buf, timeout)
	if err != nil {
		return res, err
	}
	if !res.OK() {
		return res, ErrTimeout
	}
	return res, nil
}

// waitForToken reads lines until one contains token or the timeout elapses.
func (b *Bridge) waitForToken(ctx context.Context, token string, timeout time.Duration) (bool, error) {
	var line [tokenLineSize]byte
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) && ctx.Err() == nil {
		res, err := b.ReadLine(ctx, line[:], poll.Remaining(deadline))
		if err != nil {
			return false, err
		}
		if res.OK() && strings.Contains(string(line[:res.N]), token) {
			return true, nil
		}
	}
	return false, nil
}

func terminate(buf []byte) LineResult {
	if len(buf) > 0 {
		buf[0] = 0
	}
	return LineResult{}
}
