package noop

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"reportbot/internal/transport"
	logx "reportbot/pkg/logx"
)

func TestSendAppendsLogAndOverwritesSnapshot(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	a := New(dir, logx.Nop())
	a.now = func() time.Time { return time.Date(2025, 7, 14, 9, 0, 0, 0, time.UTC) }

	for _, body := range []string{"primer mensaje", "segundo mensaje"} {
		if err := a.Send(context.Background(), transport.Message{To: "+51911", Body: body}); err != nil {
			t.Fatalf("Send: %v", err)
		}
	}

	logBytes, err := os.ReadFile(filepath.Join(dir, LogFileName))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	logStr := string(logBytes)
	if strings.Count(logStr, "=== 2025-07-14 09:00:00 ===") != 2 {
		t.Fatalf("log should hold two timestamped blocks:\n%s", logStr)
	}
	if !strings.Contains(logStr, "primer mensaje") || !strings.Contains(logStr, "segundo mensaje") {
		t.Fatalf("log missing appended bodies:\n%s", logStr)
	}
	if strings.Count(logStr, separator) != 2 {
		t.Fatalf("log should hold two separators:\n%s", logStr)
	}

	snap, err := os.ReadFile(filepath.Join(dir, MessageFileName))
	if err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if string(snap) != "segundo mensaje" {
		t.Fatalf("snapshot = %q, want only the latest message", snap)
	}
}

func TestSendLogBlockLayout(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	a := New(dir, logx.Nop())
	a.now = func() time.Time { return time.Date(2025, 7, 14, 9, 0, 0, 0, time.UTC) }

	if err := a.Send(context.Background(), transport.Message{To: "+51911", Body: "hola"}); err != nil {
		t.Fatalf("Send: %v", err)
	}

	logBytes, err := os.ReadFile(filepath.Join(dir, LogFileName))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	// Exactly: timestamp line, body, separator. No extra lines in between.
	want := "=== 2025-07-14 09:00:00 ===\nhola\n" + separator + "\n"
	if string(logBytes) != want {
		t.Fatalf("log block = %q, want %q", logBytes, want)
	}
}

func TestSendCreatesDir(t *testing.T) {
	t.Parallel()
	dir := filepath.Join(t.TempDir(), "outputs")
	a := New(dir, logx.Nop())
	if err := a.Send(context.Background(), transport.Message{To: "+51911", Body: "hola"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, LogFileName)); err != nil {
		t.Fatalf("log not created: %v", err)
	}
}
