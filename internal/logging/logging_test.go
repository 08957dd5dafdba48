package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewWritesToStderrWriter(t *testing.T) {
	var buf bytes.Buffer
	logger, closer, err := New(Options{Level: "warn", Prefix: "test", Stderr: &buf})
	if err != nil {
		t.Fatal(err)
	}
	defer closer.Close()

	logger.Info("hidden")
	logger.Warn("shown", "player", 3)
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info logged at warn level: %q", out)
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "player=3") || !strings.Contains(out, "test") {
		t.Errorf("output = %q", out)
	}
}

func TestNewRejectsBadLevel(t *testing.T) {
	if _, _, err := New(Options{Level: "loud"}); err == nil {
		t.Fatal("bad level accepted")
	}
}

func TestNewFileJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lockstep.log")
	logger, closer, err := New(Options{File: path, JSON: true})
	if err != nil {
		t.Fatal(err)
	}
	logger.Info("arena started", "arena", "lobby")
	if err := closer.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"arena":"lobby"`) {
		t.Errorf("file = %q", data)
	}
}
