package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/craftdeck/craftdeck/internal/hub"
	"github.com/craftdeck/craftdeck/internal/properties"
	"github.com/craftdeck/craftdeck/internal/supervisor"
)

const routerFakeServer = `#!/bin/sh
echo "Done (0.1s)! For help, type \"help\""
while read line; do
  if [ "$line" = "stop" ]; then exit 0; fi
  echo "cmd:$line"
done
exit 0
`

func setupRouter(t *testing.T, base string) (http.Handler, *supervisor.Supervisor) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir := t.TempDir()
	script := filepath.Join(dir, "fake-server.sh")
	if err := os.WriteFile(script, []byte(routerFakeServer), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	propsPath := filepath.Join(dir, "server.properties")
	if err := os.WriteFile(propsPath, []byte("motd=Hello World\n"), 0o644); err != nil {
		t.Fatalf("write properties: %v", err)
	}

	cfg := supervisor.DefaultConfig()
	cfg.Java = script
	cfg.JavaArgs = nil
	cfg.WorkDir = dir
	cfg.Properties = "server.properties"

	ws := hub.New(nil)
	sup := supervisor.New(cfg, ws, nil)
	ws.SetController(sup)
	props := func() map[string]string {
		return properties.Load(filepath.Join(dir, cfg.Properties))
	}
	ws.SetPropertiesSource(props)

	r := NewRouter(sup, ws, props, nil, base)
	t.Cleanup(func() {
		sup.Stop()
		waitStatus(t, sup, supervisor.StatusStopped)
	})
	return r.Handler(), sup
}

func waitStatus(t *testing.T, sup *supervisor.Supervisor, want supervisor.Status) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if sup.Status() == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("status never reached %s (now %s)", want, sup.Status())
}

func doReq(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		rdr = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestStatusWhenStopped(t *testing.T) {
	h, _ := setupRouter(t, "")
	rec := doReq(t, h, http.MethodGet, "/status", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var st map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatalf("parse json: %v", err)
	}
	if st["status"] != "stopped" {
		t.Fatalf("expected stopped, got %v", st["status"])
	}
	if st["pid"] != float64(0) {
		t.Fatalf("expected pid 0, got %v", st["pid"])
	}
}

func TestLifecycleViaAPI(t *testing.T) {
	h, sup := setupRouter(t, "/api/") // ensure base sanitization works

	rec := doReq(t, h, http.MethodPost, "/api/start", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("start expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	waitStatus(t, sup, supervisor.StatusRunning)

	rec = doReq(t, h, http.MethodPost, "/api/command", map[string]string{"command": "say hi"})
	if rec.Code != http.StatusOK {
		t.Fatalf("command expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		rec = doReq(t, h, http.MethodGet, "/api/console", nil)
		if strings.Contains(rec.Body.String(), "cmd:say hi") {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if !strings.Contains(rec.Body.String(), "> say hi") {
		t.Fatalf("console missing command echo: %s", rec.Body.String())
	}

	rec = doReq(t, h, http.MethodPost, "/api/stop", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("stop expected 200, got %d", rec.Code)
	}
	waitStatus(t, sup, supervisor.StatusStopped)
}

func TestStartWhenAlreadyRunningStillOK(t *testing.T) {
	h, sup := setupRouter(t, "")
	doReq(t, h, http.MethodPost, "/start", nil)
	waitStatus(t, sup, supervisor.StatusRunning)

	// refusal is a console notice, not an HTTP error
	rec := doReq(t, h, http.MethodPost, "/start", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	rec = doReq(t, h, http.MethodGet, "/console", nil)
	if !strings.Contains(rec.Body.String(), "already running") {
		t.Fatalf("console missing notice: %s", rec.Body.String())
	}
}

func TestCommandValidation(t *testing.T) {
	h, _ := setupRouter(t, "")
	rec := doReq(t, h, http.MethodPost, "/command", map[string]string{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("empty command expected 400, got %d", rec.Code)
	}
	req := httptest.NewRequest(http.MethodPost, "/command", strings.NewReader("{not json"))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad json expected 400, got %d", rec.Code)
	}
}

func TestPropertiesEndpoint(t *testing.T) {
	h, _ := setupRouter(t, "")
	rec := doReq(t, h, http.MethodGet, "/properties", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var props map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &props); err != nil {
		t.Fatalf("parse json: %v", err)
	}
	if props["motd"] != "Hello World" {
		t.Fatalf("expected motd, got %v", props)
	}
}

func TestHistoryEndpoint(t *testing.T) {
	h, _ := setupRouter(t, "")
	// history disabled: empty list, not an error
	rec := doReq(t, h, http.MethodGet, "/history", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Fatalf("expected empty list, got %s", rec.Body.String())
	}
	rec = doReq(t, h, http.MethodGet, "/history?limit=abc", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad limit expected 400, got %d", rec.Code)
	}
}

func TestDashboardServed(t *testing.T) {
	h, _ := setupRouter(t, "/dash")
	rec := doReq(t, h, http.MethodGet, "/dash/", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Fatalf("unexpected content type %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "CraftDeck") {
		t.Fatal("dashboard body missing")
	}
}

func TestNewServerStartClose(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := supervisor.DefaultConfig()
	cfg.WorkDir = t.TempDir()
	ws := hub.New(nil)
	sup := supervisor.New(cfg, ws, nil)
	ws.SetController(sup)

	srv, err := NewServer("127.0.0.1:0", NewRouter(sup, ws, nil, nil, "/x"))
	if err != nil {
		t.Fatalf("NewServer error: %v", err)
	}
	_ = srv.Close()
}
