package craftdeck

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"
)

func requireUnix(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires Unix-like environment")
	}
}

const facadeFakeServer = `#!/bin/sh
echo "Done (0.1s)! For help, type \"help\""
while read line; do
  if [ "$line" = "stop" ]; then exit 0; fi
  echo "cmd:$line"
done
exit 0
`

func newTestDeck(t *testing.T) *Deck {
	t.Helper()
	requireUnix(t)
	dir := t.TempDir()
	script := filepath.Join(dir, "fake-server.sh")
	if err := os.WriteFile(script, []byte(facadeFakeServer), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "server.properties"), []byte("motd=Hello World\nmax-players=20\n"), 0o644); err != nil {
		t.Fatalf("write properties: %v", err)
	}

	cfg := DefaultConfig()
	cfg.Server.Java = script
	cfg.Server.JavaArgs = nil
	cfg.Server.WorkDir = dir
	cfg.Metrics.Enabled = false
	cfg.History.Type = "sqlite"
	cfg.History.DSN = filepath.Join(dir, "events.db")

	deck, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("new deck: %v", err)
	}
	t.Cleanup(func() { _ = deck.Close() })
	return deck
}

func waitDeck(t *testing.T, deck *Deck, want Status) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if deck.Status() == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("status never reached %s (now %s)", want, deck.Status())
}

func TestDeckLifecycle(t *testing.T) {
	deck := newTestDeck(t)

	if deck.Status() != StatusStopped {
		t.Fatalf("expected stopped, got %s", deck.Status())
	}
	deck.Start()
	waitDeck(t, deck, StatusRunning)
	if deck.PID() == 0 {
		t.Fatal("expected a live pid")
	}

	deck.Stop()
	waitDeck(t, deck, StatusStopped)

	recs, err := deck.History(context.Background(), 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(recs) < 3 {
		t.Fatalf("expected start/ready/stop events, got %d", len(recs))
	}
}

func TestDeckProperties(t *testing.T) {
	deck := newTestDeck(t)
	props := deck.Properties()
	if props["motd"] != "Hello World" {
		t.Fatalf("unexpected properties: %v", props)
	}
	if props["max-players"] != "20" {
		t.Fatalf("unexpected properties: %v", props)
	}
}
