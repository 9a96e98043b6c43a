package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/fieldlens/go-fieldlens/pkg/agent"
	"github.com/fieldlens/go-fieldlens/pkg/capture"
	"github.com/fieldlens/go-fieldlens/pkg/device"
	"github.com/fieldlens/go-fieldlens/pkg/netcheck"
	"github.com/fieldlens/go-fieldlens/pkg/web"
)

// blockingChecker stalls every probe until its context expires, like a
// dead network under netcheck.Probe.
type blockingChecker struct{}

func (blockingChecker) Online(ctx context.Context) bool {
	<-ctx.Done()
	return false
}

func startServer(t *testing.T, backend device.Backend, checker netcheck.Checker, webhook http.HandlerFunc) string {
	t.Helper()

	hook := httptest.NewServer(webhook)
	t.Cleanup(hook.Close)

	core, err := agent.New(agent.Config{
		WebhookURL: hook.URL,
		Source:     "test",
		SpoolDir:   t.TempDir(),
		Session: capture.Config{
			ReadinessTimeout: 250 * time.Millisecond,
			PollInterval:     2 * time.Millisecond,
			SwitchDelay:      1 * time.Millisecond,
		},
	}, backend, nil, checker)
	if err != nil {
		t.Fatalf("agent: %v", err)
	}

	srv := web.NewServer("0", "", core)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go srv.Serve(ln)
	t.Cleanup(func() { srv.Shutdown() })

	return "http://" + ln.Addr().String()
}

func okWebhook(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte(`{"textResponse": "ok"}`))
}

var testClient = &http.Client{Timeout: 5 * time.Second}

func doJSON(t *testing.T, method, url string, body any) (int, map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := testClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	var parsed map[string]any
	if len(raw) > 0 {
		json.Unmarshal(raw, &parsed)
	}
	return resp.StatusCode, parsed
}

func TestStatusEndpoint(t *testing.T) {
	base := startServer(t, device.NewMock(), netcheck.Static(true), okWebhook)

	status, body := doJSON(t, http.MethodGet, base+"/api/status", nil)
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if body["session_state"] != "idle" {
		t.Errorf("session_state = %v, want idle", body["session_state"])
	}
	if body["online"] != true {
		t.Errorf("online = %v", body["online"])
	}
}

func TestSessionLifecycleEndpoints(t *testing.T) {
	base := startServer(t, device.NewMock(), netcheck.Static(true), okWebhook)

	t.Run("open", func(t *testing.T) {
		status, body := doJSON(t, http.MethodPost, base+"/api/session/open", map[string]string{"facing": "environment"})
		if status != http.StatusOK {
			t.Fatalf("status = %d", status)
		}
		if body["session_state"] != "ready" {
			t.Errorf("session_state = %v, want ready", body["session_state"])
		}
	})

	t.Run("switch facing", func(t *testing.T) {
		status, body := doJSON(t, http.MethodPost, base+"/api/session/facing", map[string]string{"facing": "user"})
		if status != http.StatusOK {
			t.Fatalf("status = %d", status)
		}
		if body["session_state"] != "ready" {
			t.Errorf("session_state = %v", body["session_state"])
		}
	})

	t.Run("hide releases the camera", func(t *testing.T) {
		status, body := doJSON(t, http.MethodPost, base+"/api/session/hide", nil)
		if status != http.StatusOK {
			t.Fatalf("status = %d", status)
		}
		if body["session_state"] != "idle" {
			t.Errorf("session_state = %v, want idle", body["session_state"])
		}
	})
}

func TestOpenDeniedEndpoint(t *testing.T) {
	backend := device.NewMock().Script(
		device.ErrPermissionDenied, device.ErrPermissionDenied,
		device.ErrPermissionDenied, device.ErrPermissionDenied,
	)
	base := startServer(t, backend, netcheck.Static(true), okWebhook)

	status, body := doJSON(t, http.MethodPost, base+"/api/session/open", nil)
	if status != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", status)
	}
	if body["reason"] != "permission-denied" {
		t.Errorf("reason = %v", body["reason"])
	}
	if remedy, _ := body["remedy"].(string); remedy == "" {
		t.Error("expected a remedy string")
	}
}

func TestCaptureEndpoint(t *testing.T) {
	t.Run("while idle conflicts", func(t *testing.T) {
		base := startServer(t, device.NewMock(), netcheck.Static(true), okWebhook)
		status, _ := doJSON(t, http.MethodPost, base+"/api/capture", map[string]any{"filename": "x"})
		if status != http.StatusConflict {
			t.Fatalf("status = %d, want 409", status)
		}
	})

	t.Run("delivers and reports the reply", func(t *testing.T) {
		base := startServer(t, device.NewMock(), netcheck.Static(true), okWebhook)
		if status, _ := doJSON(t, http.MethodPost, base+"/api/session/open", nil); status != http.StatusOK {
			t.Fatalf("open failed: %d", status)
		}

		status, body := doJSON(t, http.MethodPost, base+"/api/capture", map[string]any{
			"filename":  "site-42",
			"display_w": 360,
			"display_h": 480,
		})
		if status != http.StatusOK {
			t.Fatalf("status = %d", status)
		}
		if body["queued"] != false || body["text"] != "ok" {
			t.Errorf("body = %v", body)
		}
	})

	t.Run("offline capture queues", func(t *testing.T) {
		base := startServer(t, device.NewMock(), netcheck.Static(false), okWebhook)
		if status, _ := doJSON(t, http.MethodPost, base+"/api/session/open", nil); status != http.StatusOK {
			t.Fatalf("open failed")
		}

		status, body := doJSON(t, http.MethodPost, base+"/api/capture", map[string]any{
			"filename":  "q1",
			"display_w": 360,
			"display_h": 480,
		})
		if status != http.StatusOK {
			t.Fatalf("status = %d", status)
		}
		if body["queued"] != true {
			t.Errorf("queued = %v", body["queued"])
		}

		_, qbody := doJSON(t, http.MethodGet, base+"/api/queue", nil)
		if qbody["depth"] != float64(1) {
			t.Errorf("depth = %v, want 1", qbody["depth"])
		}
	})
}

func TestChatEndpoint(t *testing.T) {
	base := startServer(t, device.NewMock(), netcheck.Static(true), okWebhook)
	doJSON(t, http.MethodPost, base+"/api/session/open", nil)
	doJSON(t, http.MethodPost, base+"/api/capture", map[string]any{
		"filename": "pic", "display_w": 360, "display_h": 480,
	})

	resp, err := testClient.Get(base + "/api/chat")
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	defer resp.Body.Close()

	var entries []map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	if entries[1]["role"] != "assistant" || entries[1]["text"] != "ok" {
		t.Errorf("assistant entry = %v", entries[1])
	}
}

func TestOpenUnblockedByDeadNetwork(t *testing.T) {
	base := startServer(t, device.NewMock(), blockingChecker{}, okWebhook)

	// Session transitions trigger status snapshots, and snapshots
	// probe connectivity. With a stalled probe the open must still
	// return promptly.
	start := time.Now()
	status, _ := doJSON(t, http.MethodPost, base+"/api/session/open", nil)
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("open took %v with a stalled connectivity probe", elapsed)
	}
}

func TestStatusWebsocket(t *testing.T) {
	base := startServer(t, device.NewMock(), netcheck.Static(true), okWebhook)

	url := fmt.Sprintf("ws%s/ws/status", base[len("http"):])
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var state web.AgentState
	if err := conn.ReadJSON(&state); err != nil {
		t.Fatalf("read: %v", err)
	}
	if state.SessionState != "idle" {
		t.Errorf("session_state = %q, want idle", state.SessionState)
	}
}
