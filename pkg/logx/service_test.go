package logx

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestFormatActivity(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	line := formatActivity([]byte(`{"level":"error","message":"install failed","rule":"ab12cd34","caller":"x.go:1"}`), now)
	want := "[2026-03-04 05:06:07] [ERROR] install failed rule=ab12cd34"
	if line != want {
		t.Fatalf("formatActivity = %q, want %q", line, want)
	}
}

func TestFormatActivityKeepsFullOutput(t *testing.T) {
	t.Parallel()
	out := strings.Repeat("Load failed: 5: Input/output error ", 20)
	other := strings.Repeat("x", 400)
	p, _ := json.Marshal(map[string]string{"level": "warn", "message": "register failed", "output": out, "path": other})
	line := formatActivity(p, time.Now())
	if !strings.Contains(line, "output="+out) {
		t.Fatalf("output field truncated: %q", line)
	}
	if strings.Contains(line, other) || !strings.Contains(line, "path="+other[:297]+"...") {
		t.Fatalf("other fields should stay capped: %q", line)
	}
}

func TestFormatActivityNonJSON(t *testing.T) {
	t.Parallel()
	if got := formatActivity([]byte("  plain text \n"), time.Now()); got != "plain text" {
		t.Fatalf("formatActivity = %q", got)
	}
}

func TestActivityWriterSkipsDebug(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	w := &activityWriter{w: &buf}
	if _, err := w.WriteLevel(zerolog.DebugLevel, []byte(`{"level":"debug","message":"noise"}`)); err != nil {
		t.Fatalf("WriteLevel: %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("debug line leaked into activity log: %q", buf.String())
	}
	if _, err := w.WriteLevel(zerolog.InfoLevel, []byte(`{"level":"info","message":"loaded"}`)); err != nil {
		t.Fatalf("WriteLevel: %v", err)
	}
	if !strings.Contains(buf.String(), "[INFO] loaded") {
		t.Fatalf("activity line missing: %q", buf.String())
	}
}

func TestServiceWritesActivityFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "logs", "activity.log")
	svc, log := New(Config{Level: "info", Activity: FileConfig{Enabled: true, Path: path}})
	log.Info("rule installed", String("label", "com.automata.on-login.open-apps.ab12cd34"))
	_ = svc.Close()

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read activity log: %v", err)
	}
	if !strings.Contains(string(b), "[INFO] rule installed label=com.automata.on-login.open-apps.ab12cd34") {
		t.Fatalf("unexpected activity log: %q", string(b))
	}
}

func TestZeroLoggerIsSafe(t *testing.T) {
	t.Parallel()
	var l Logger
	if !l.IsZero() {
		t.Fatal("zero logger should report IsZero")
	}
	l.Info("ignored")
	l.With(String("k", "v")).Error("ignored")
}
