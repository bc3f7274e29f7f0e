package pkgbuild

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"time"
)

// Command is one child-process invocation. Argv is passed to the kernel
// directly, never through a shell, so paths with spaces and user-supplied
// settings can not be reinterpreted.
type Command struct {
	Argv []string
	Dir  string // working directory override; empty means inherit
	Echo bool   // stream merged output to stdout while the child runs
}

// CommandRunner executes a child process and returns its merged
// stdout/stderr. Output is returned even when the process fails. The returned
// error is non-nil for a non-zero exit, a missing binary, or a context
// deadline that forced termination.
type CommandRunner interface {
	Run(ctx context.Context, cmd Command) (string, error)
}

// ExecRunner runs commands with os/exec. The zero value is ready to use and
// echoes to os.Stdout when asked.
type ExecRunner struct {
	EchoTo io.Writer
}

func (r *ExecRunner) Run(ctx context.Context, cmd Command) (string, error) {
	c := exec.CommandContext(ctx, cmd.Argv[0], cmd.Argv[1:]...)
	c.Dir = cmd.Dir

	var buf bytes.Buffer
	var sink io.Writer = &buf
	if cmd.Echo {
		echo := r.EchoTo
		if echo == nil {
			echo = os.Stdout
		}
		sink = io.MultiWriter(&buf, echo)
	}
	// stdout and stderr merged into one stream; diagnostics from make and the
	// solver arrive on either.
	c.Stdout = sink
	c.Stderr = sink

	// Bound the window between context cancellation and forced kill so an
	// echoing reader never blocks past the caller's deadline.
	c.WaitDelay = 5 * time.Second

	slog.Debug("Running command", "argv", cmd.Argv, "dir", cmd.Dir)
	start := time.Now()
	err := c.Run()
	slog.Debug("Command finished", "argv0", cmd.Argv[0], "duration", time.Since(start), "error", err)

	return buf.String(), err
}
