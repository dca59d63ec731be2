package notify

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
)

type runFunc func(ctx context.Context, name string, args ...string) error

// Desktop shows notifications through notify-send.
type Desktop struct {
	command string
	run     runFunc
}

// NewDesktop creates a Desktop notifier.
func NewDesktop() *Desktop {
	return &Desktop{command: "notify-send", run: runCommand}
}

// Notify implements Notifier.
func (d *Desktop) Notify(ctx context.Context, title, body string) error {
	if err := d.run(ctx, d.command, title, body); err != nil {
		return fmt.Errorf("desktop notification: %w", err)
	}
	return nil
}

func runCommand(ctx context.Context, name string, args ...string) error {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		if msg := bytes.TrimSpace(out); len(msg) > 0 {
			return fmt.Errorf("run %s: %w: %s", name, err, msg)
		}
		return fmt.Errorf("run %s: %w", name, err)
	}
	return nil
}
