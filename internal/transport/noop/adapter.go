// Package noop is the simulation transport: instead of contacting a live
// provider it writes the composed message to durable local files, so a run
// without credentials (or one degraded by a rate limit) still leaves evidence.
package noop

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"reportbot/internal/transport"
	logx "reportbot/pkg/logx"
)

const (
	LogFileName     = "simulation_log.txt"
	MessageFileName = "simulation_message.txt"

	separator = "=================================================="
)

type Adapter struct {
	dir string
	log logx.Logger

	now func() time.Time
}

// New writes simulation records under dir (the outputs root).
func New(dir string, log logx.Logger) *Adapter {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Adapter{dir: dir, log: log, now: time.Now}
}

func (a *Adapter) Name() string { return "simulation" }

func (a *Adapter) Close(ctx context.Context) error { return nil }

// Send appends a timestamped block to the simulation log and overwrites the
// latest-message snapshot. The record is the durable artifact; it is written,
// never read back.
func (a *Adapter) Send(ctx context.Context, msg transport.Message) error {
	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return fmt.Errorf("simulation dir: %w", err)
	}

	// Block layout is fixed: timestamp line, message body, separator line.
	// The destination is logged, not written, to keep the file contract flat.
	ts := a.now().Format("2006-01-02 15:04:05")
	var b strings.Builder
	fmt.Fprintf(&b, "=== %s ===\n", ts)
	b.WriteString(msg.Body)
	if !strings.HasSuffix(msg.Body, "\n") {
		b.WriteByte('\n')
	}
	b.WriteString(separator + "\n")

	logPath := filepath.Join(a.dir, LogFileName)
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open simulation log: %w", err)
	}
	if _, err := f.WriteString(b.String()); err != nil {
		_ = f.Close()
		return fmt.Errorf("append simulation log: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}

	msgPath := filepath.Join(a.dir, MessageFileName)
	if err := os.WriteFile(msgPath, []byte(msg.Body), 0o644); err != nil {
		return fmt.Errorf("write simulation message: %w", err)
	}

	a.log.Info("message simulated", logx.String("to", msg.To), logx.String("log", logPath))
	return nil
}
