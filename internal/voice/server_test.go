package voice

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/duetvoice/duet/internal/bus"
	"github.com/duetvoice/duet/internal/config"
)

func init() { gin.SetMode(gin.TestMode) }

func newTestServer(t *testing.T) (*Server, *bus.MessageBus) {
	t.Helper()
	b := bus.NewMessageBus(4)
	return NewServer(config.VoiceConfig{ListenAddr: "127.0.0.1:0"}, b), b
}

func do(t *testing.T, h http.Handler, method, path, body string) (int, map[string]string) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	var out map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %s: %v (%q)", path, err, w.Body.String())
	}
	return w.Code, out
}

// ─── Routes ───

func TestServer_Root(t *testing.T) {
	s, _ := newTestServer(t)
	code, out := do(t, s.Handler(), http.MethodGet, "/", "")
	if code != http.StatusOK || out["message"] != "Hello, World!" {
		t.Errorf("got %d %v", code, out)
	}
}

func TestServer_NotFound(t *testing.T) {
	s, _ := newTestServer(t)
	code, out := do(t, s.Handler(), http.MethodPost, "/nope", "")
	if code != http.StatusNotFound || out["message"] != "Not Found" {
		t.Errorf("got %d %v", code, out)
	}
}

func TestServer_PingMarksConnected(t *testing.T) {
	s, _ := newTestServer(t)
	if s.Connected() {
		t.Fatal("connected before any ping")
	}
	code, out := do(t, s.Handler(), http.MethodPost, "/is_llm_service_online", "")
	if code != http.StatusOK || out["status"] != "success" {
		t.Errorf("got %d %v", code, out)
	}
	if !s.Connected() {
		t.Error("not connected after ping")
	}
}

func TestServer_VoiceInputPublishes(t *testing.T) {
	s, b := newTestServer(t)
	code, out := do(t, s.Handler(), http.MethodPost, "/voice_input", `{"text":" 你好 "}`)
	if code != http.StatusOK || out["status"] != "success" {
		t.Fatalf("got %d %v", code, out)
	}
	select {
	case msg := <-b.InboundChan():
		if msg.Source() != bus.SourceVoice || msg.Content() != "你好" {
			t.Errorf("msg = %s %q", msg.Source(), msg.Content())
		}
	default:
		t.Fatal("nothing published")
	}
}

func TestServer_VoiceInputRejectsEmpty(t *testing.T) {
	s, b := newTestServer(t)
	code, out := do(t, s.Handler(), http.MethodPost, "/voice_input", `{"text":"  "}`)
	if code != http.StatusBadRequest || out["message"] == "" {
		t.Errorf("got %d %v", code, out)
	}
	code, _ = do(t, s.Handler(), http.MethodPost, "/voice_input", `not json`)
	if code != http.StatusBadRequest {
		t.Errorf("bad json: got %d", code)
	}
	if b.Pending() != 0 {
		t.Errorf("pending = %d", b.Pending())
	}
}

func TestServer_Mount(t *testing.T) {
	s, _ := newTestServer(t)
	s.Mount("/ws", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"message":"feed"}`))
	}))
	_, out := do(t, s.Handler(), http.MethodGet, "/ws", "")
	if out["message"] != "feed" {
		t.Errorf("got %v", out)
	}
}

// ─── Watchdog ───

func TestServer_CheckConnectionTimesOut(t *testing.T) {
	s, _ := newTestServer(t)
	now := time.Unix(1_700_000_000, 0)
	s.now = func() time.Time { return now }

	do(t, s.Handler(), http.MethodGet, "/is_llm_service_online", "")
	now = now.Add(29 * time.Second)
	s.checkConnection()
	if !s.Connected() {
		t.Fatal("disconnected before timeout")
	}
	now = now.Add(2 * time.Second)
	s.checkConnection()
	if s.Connected() {
		t.Error("still connected after timeout")
	}
}

func TestServer_StartStopsOnCancel(t *testing.T) {
	s, _ := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

// ─── Hotwords ───

func TestWriteHotwords(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "hot")
	if err := WriteHotwords(dir, "爱莉希雅\n琪亚娜", "毛毛 = 猫猫"); err != nil {
		t.Fatalf("WriteHotwords: %v", err)
	}
	zh, _ := os.ReadFile(filepath.Join(dir, HotZhFile))
	if string(zh) != "爱莉希雅\n琪亚娜\n" {
		t.Errorf("hot-zh = %q", zh)
	}
	rule, _ := os.ReadFile(filepath.Join(dir, HotRuleFile))
	if string(rule) != "毛毛 = 猫猫\n" {
		t.Errorf("hot-rule = %q", rule)
	}
}

func TestWriteHotwords_NoDir(t *testing.T) {
	if err := WriteHotwords("", "x", "y"); err != nil {
		t.Errorf("err = %v", err)
	}
}
