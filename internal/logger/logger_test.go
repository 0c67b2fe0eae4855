package logger

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFileConfigWriterNilWithoutDir(t *testing.T) {
	var c FileConfig
	if w := c.Writer("server"); w != nil {
		t.Fatal("expected nil writer when no dir configured")
	}
}

func TestFileConfigWriterWritesFile(t *testing.T) {
	dir := t.TempDir()
	c := FileConfig{Dir: dir}
	w := c.Writer("server")
	if w == nil {
		t.Fatal("expected writer")
	}
	if _, err := w.Write([]byte("hello\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	b, err := os.ReadFile(filepath.Join(dir, "server.log"))
	if err != nil {
		t.Fatalf("read mirror: %v", err)
	}
	if string(b) != "hello\n" {
		t.Fatalf("unexpected mirror content: %q", string(b))
	}
}
