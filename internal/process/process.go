// Package process runs external command-line tools for the collectors.
package process

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"applister/internal/applister"
)

// ErrCommandTimeout is wrapped by errors from commands killed after their timeout.
var ErrCommandTimeout = errors.New("command timed out")

// ExitError reports a command that exited with a non-zero status.
type ExitError struct {
	Command string
	Code    int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("command failed (exit %d): %s", e.Code, e.Command)
}

// IOError reports a command that could not be started or whose output could not be read.
type IOError struct {
	Command string
	Err     error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("running %s: %v", e.Command, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// waitDelay bounds how long Wait blocks on output pipes held open by
// grandchildren after the command itself was killed.
const waitDelay = 2 * time.Second

// Runner implements applister.CommandRunner on the host operating system.
type Runner struct{}

var _ applister.CommandRunner = (*Runner)(nil)

// NewRunner creates a Runner.
func NewRunner() *Runner {
	return &Runner{}
}

// IsToolAvailable reports whether name resolves on PATH. It never fails.
func (r *Runner) IsToolAvailable(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

// RunLines runs name with args, merging stdout and stderr, and returns the output
// split into lines. The process is killed when timeout elapses.
func (r *Runner) RunLines(ctx context.Context, timeout time.Duration, name string, args ...string) ([]string, error) {
	cmdline := strings.Join(append([]string{name}, args...), " ")

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &out
	cmd.Stderr = &out
	cmd.WaitDelay = waitDelay

	err := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return nil, fmt.Errorf("%w after %s: %s", ErrCommandTimeout, timeout, cmdline)
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, &ExitError{Command: cmdline, Code: exitErr.ExitCode()}
		}
		return nil, &IOError{Command: cmdline, Err: err}
	}

	lines, err := SplitLines(&out)
	if err != nil {
		return nil, &IOError{Command: cmdline, Err: err}
	}
	return lines, nil
}

// SplitLines splits output into lines, dropping line terminators ("\n" or "\r\n").
func SplitLines(r *bytes.Buffer) ([]string, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}
