package graphs

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// Renderer is the external chart-rendering collaborator. Given a results
// bundle path it materializes the canonical png set under dir.
type Renderer interface {
	RenderAll(ctx context.Context, resultsPath, dir string) error
}

// NopRenderer skips rendering; charts are expected to already be on disk.
type NopRenderer struct{}

func (NopRenderer) RenderAll(ctx context.Context, resultsPath, dir string) error { return nil }

// CommandRenderer shells out to a configured renderer command. The command
// receives the results path and target directory as its last two arguments.
type CommandRenderer struct {
	Command string
	Args    []string
	Timeout time.Duration
}

func (r CommandRenderer) RenderAll(ctx context.Context, resultsPath, dir string) error {
	if strings.TrimSpace(r.Command) == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create graphs dir: %w", err)
	}
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}
	args := append(append([]string(nil), r.Args...), resultsPath, dir)
	cmd := exec.CommandContext(ctx, r.Command, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		msg := strings.TrimSpace(string(out))
		if len(msg) > 400 {
			msg = msg[:400]
		}
		if msg != "" {
			return fmt.Errorf("renderer %s: %w: %s", r.Command, err, msg)
		}
		return fmt.Errorf("renderer %s: %w", r.Command, err)
	}
	return nil
}
