// Package subprocess runs shell commands in their own process group.
package subprocess

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// Shell is the interpreter used for every command.
var Shell = "sh"

func command(ctx context.Context, shell, cmdline string) *exec.Cmd {
	if shell == "" {
		shell = Shell
	}
	cmd := exec.CommandContext(ctx, shell, "-c", cmdline)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	// Kill the whole group so that children of the shell do not outlive
	// a cancelled command.
	cmd.Cancel = func() error {
		return unix.Kill(-cmd.Process.Pid, unix.SIGKILL)
	}
	cmd.WaitDelay = time.Second
	return cmd
}

// Spawn starts cmdline detached from the bar: stdin and stdout are closed
// and the child is reaped in the background.
func Spawn(cmdline string) error {
	cmd := command(context.Background(), "", cmdline)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("spawning %q: %w", cmdline, err)
	}
	go func() { _ = cmd.Wait() }()
	return nil
}

// Output runs cmdline and returns its standard output. A non-zero exit is
// an error carrying the command's standard error.
func Output(ctx context.Context, cmdline string) (string, error) {
	return OutputShell(ctx, "", cmdline)
}

// OutputShell is Output with another interpreter than Shell. An empty
// shell means Shell.
func OutputShell(ctx context.Context, shell, cmdline string) (string, error) {
	var stderr bytes.Buffer
	cmd := command(ctx, shell, cmdline)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("%q: %w", cmdline, ctx.Err())
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", fmt.Errorf("%q: %w: %s", cmdline, err, msg)
		}
		return "", fmt.Errorf("%q: %w", cmdline, err)
	}
	return string(out), nil
}

// Succeeds runs cmdline and reports whether it exited with status zero.
func Succeeds(ctx context.Context, cmdline string) bool {
	cmd := command(ctx, "", cmdline)
	return cmd.Run() == nil
}
