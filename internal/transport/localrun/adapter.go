// Package localrun delegates delivery to a configured local command, covering
// scheduler-triggered scripts and webhook relays that own the actual send.
package localrun

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"reportbot/internal/transport"
	logx "reportbot/pkg/logx"
)

type Config struct {
	// Command is invoked as: command [args...] <destination>.
	// The message body is written to the command's stdin.
	Command string
	Args    []string
	// Timeout bounds one invocation. 0 means no limit.
	Timeout time.Duration
}

type Adapter struct {
	cfg Config
	log logx.Logger
}

func New(cfg Config, log logx.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Command) == "" {
		return nil, errors.New("localrun command is empty")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Adapter{cfg: cfg, log: log}, nil
}

func (a *Adapter) Name() string { return "localrun" }

func (a *Adapter) Close(ctx context.Context) error { return nil }

func (a *Adapter) Send(ctx context.Context, msg transport.Message) error {
	if a.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.cfg.Timeout)
		defer cancel()
	}

	args := append(append([]string(nil), a.cfg.Args...), msg.To)
	cmd := exec.CommandContext(ctx, a.cfg.Command, args...)
	cmd.Stdin = strings.NewReader(msg.Body)

	start := time.Now()
	out, err := cmd.CombinedOutput()
	if err != nil {
		detail := strings.TrimSpace(string(out))
		if len(detail) > 400 {
			detail = detail[:400]
		}
		if detail != "" {
			return fmt.Errorf("localrun %s: %w: %s", a.cfg.Command, err, detail)
		}
		return fmt.Errorf("localrun %s: %w", a.cfg.Command, err)
	}
	a.log.Info("localrun delivery handed off",
		logx.String("command", a.cfg.Command),
		logx.String("to", msg.To),
		logx.Duration("took", time.Since(start)))
	return nil
}
