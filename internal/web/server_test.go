package web

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cjeanneret/NikBot/internal/logic/robot"
)

func newTestServer(t *testing.T, rb Robot) (*Server, *httptest.Server) {
	t.Helper()
	s := NewServer(":0", NewStatusBroadcaster(), rb)
	ts := httptest.NewServer(s.Mux())
	t.Cleanup(ts.Close)
	return s, ts
}

// waitClients waits until n stream clients are subscribed.
func waitClients(t *testing.T, b *StatusBroadcaster, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for b.Clients() < n {
		if time.Now().After(deadline) {
			t.Fatalf("timeout waiting for %d clients, have %d", n, b.Clients())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestMux_Routes(t *testing.T) {
	_, ts := newTestServer(t, &fakeRobot{})

	cases := []struct {
		method, path, body string
		want               int
	}{
		{http.MethodGet, "/", "", http.StatusOK},
		{http.MethodGet, "/static/app.js", "", http.StatusOK},
		{http.MethodGet, "/status", "", http.StatusOK},
		{http.MethodPost, "/command", `{"kind":"capture"}`, http.StatusAccepted},
		{http.MethodGet, "/command", "", http.StatusMethodNotAllowed},
		{http.MethodGet, "/nope", "", http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			req, err := http.NewRequest(tc.method, ts.URL+tc.path, strings.NewReader(tc.body))
			if err != nil {
				t.Fatal(err)
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatal(err)
			}
			resp.Body.Close()
			if resp.StatusCode != tc.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tc.want)
			}
		})
	}
}

func TestStatusStream_SSE(t *testing.T) {
	s, ts := newTestServer(t, &fakeRobot{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/status/stream", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q", ct)
	}

	waitClients(t, s.handlers.Broadcaster, 1)
	s.handlers.Broadcaster.Broadcast(LevelInfo, "Heartbeat, LED is ON")

	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var evt StatusEvent
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &evt); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if evt.Msg != "Heartbeat, LED is ON" {
			t.Errorf("msg = %q", evt.Msg)
		}
		return
	}
	t.Fatalf("stream ended without data: %v", sc.Err())
}

func TestStatusStream_WebSocket(t *testing.T) {
	s, ts := newTestServer(t, &fakeRobot{})

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/status/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	waitClients(t, s.handlers.Broadcaster, 1)
	s.handlers.Broadcaster.Broadcast(LevelError, "bridge: response timeout")

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var evt StatusEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if evt.Level != LevelError || evt.Msg != "bridge: response timeout" {
		t.Errorf("event = %+v", evt)
	}

	// Closing the client unsubscribes it.
	conn.Close()
	waitClients(t, s.handlers.Broadcaster, 0)
}

func TestPublishStatus(t *testing.T) {
	rb := &fakeRobot{status: robot.Status{Step: 4}}
	s := NewServer(":0", NewStatusBroadcaster(), rb)
	s.StatusInterval = 5 * time.Millisecond

	ch, unsub := s.handlers.Broadcaster.Subscribe()
	defer unsub()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.publishStatus(ctx)

	select {
	case msg := <-ch:
		var evt StatusEvent
		if err := json.Unmarshal([]byte(msg), &evt); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if evt.Level != LevelStatus {
			t.Fatalf("level = %q, want status", evt.Level)
		}
		var st robot.Status
		if err := json.Unmarshal([]byte(evt.Msg), &st); err != nil {
			t.Fatalf("unmarshal status: %v", err)
		}
		if st.Step != 4 {
			t.Errorf("step = %d, want 4", st.Step)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for a status snapshot")
	}
}
