package localrun

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"reportbot/internal/transport"
	logx "reportbot/pkg/logx"
)

func TestSendPassesDestinationAndBody(t *testing.T) {
	t.Parallel()
	if runtime.GOOS == "windows" {
		t.Skip("shell script fixture")
	}
	dir := t.TempDir()
	outFile := filepath.Join(dir, "sent.txt")
	script := filepath.Join(dir, "send.sh")
	content := "#!/bin/sh\nprintf '%s\\n' \"$1\" > " + outFile + "\ncat >> " + outFile + "\n"
	if err := os.WriteFile(script, []byte(content), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}

	a, err := New(Config{Command: script}, logx.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := a.Send(context.Background(), transport.Message{To: "+51911", Body: "hola mundo"}); err != nil {
		t.Fatalf("Send: %v", err)
	}

	b, err := os.ReadFile(outFile)
	if err != nil {
		t.Fatalf("read capture: %v", err)
	}
	got := string(b)
	if !strings.HasPrefix(got, "+51911\n") || !strings.Contains(got, "hola mundo") {
		t.Fatalf("capture = %q", got)
	}
}

func TestSendReportsCommandFailure(t *testing.T) {
	t.Parallel()
	a, err := New(Config{Command: "false"}, logx.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := a.Send(context.Background(), transport.Message{To: "+51911", Body: "x"}); err == nil {
		t.Fatal("expected error from failing command")
	}
}

func TestNewRequiresCommand(t *testing.T) {
	t.Parallel()
	if _, err := New(Config{}, logx.Nop()); err == nil {
		t.Fatal("expected error for empty command")
	}
}
