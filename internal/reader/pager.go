package reader

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/mattn/go-isatty"
)

// Pager displays long output.
type Pager interface {
	Page(ctx context.Context, text string) error
}

// LessPager pipes output through less when writing to a terminal and
// writes it directly otherwise.
type LessPager struct {
	out     io.Writer
	command string
	args    []string
}

// NewLessPager creates a pager writing to out.
func NewLessPager(out io.Writer) *LessPager {
	return &LessPager{out: out, command: "less", args: []string{"-R"}}
}

func (p *LessPager) Page(ctx context.Context, text string) error {
	if !p.interactive() {
		_, err := io.WriteString(p.out, text)
		return err
	}

	cmd := exec.CommandContext(ctx, p.command, p.args...)
	cmd.Stdin = strings.NewReader(text)
	cmd.Stdout = p.out
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("run %s: %w", p.command, err)
	}
	return nil
}

func (p *LessPager) interactive() bool {
	f, ok := p.out.(*os.File)
	if !ok {
		return false
	}
	if !isatty.IsTerminal(f.Fd()) && !isatty.IsCygwinTerminal(f.Fd()) {
		return false
	}
	_, err := exec.LookPath(p.command)
	return err == nil
}
