// Package runner is the single channel through which the engine executes
// external programs.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"syscall"

	"github.com/kballard/go-shellquote"
	"github.com/sirupsen/logrus"
)

// Cmd describes one invocation.
type Cmd struct {
	Args []string // program followed by its arguments
	Dir  string   // working directory; empty means the current one
	Env  []string // complete child environment as KEY=VALUE pairs; nil inherits
}

func (c Cmd) String() string {
	return shellquote.Join(c.Args...)
}

// Executor runs commands and returns their combined output.
type Executor interface {
	Run(ctx context.Context, cmd Cmd) (string, error)
}

// CommandError reports a command that could not start or exited nonzero.
type CommandError struct {
	Args     []string
	Dir      string
	Output   string
	ExitCode int // -1 when the process never ran to completion
	Err      error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command %s failed: %v", shellquote.Join(e.Args...), e.Err)
}

// Tail returns the last n lines of the command's output.
func (e *CommandError) Tail(n int) string {
	return lastLines(e.Output, n)
}

func (e *CommandError) Unwrap() error { return e.Err }

// Runner executes commands on the host.
type Runner struct {
	// Stream, when non-nil, receives command output as it is produced in
	// addition to it being captured.
	Stream io.Writer
	Log    logrus.FieldLogger
}

// New returns a Runner logging through log.
func New(log logrus.FieldLogger) *Runner {
	return &Runner{Log: log}
}

// Run executes cmd and returns its combined stdout and stderr. The child is
// placed in its own process group, which is killed when ctx is done.
func (r *Runner) Run(ctx context.Context, cmd Cmd) (string, error) {
	if len(cmd.Args) == 0 {
		return "", errors.New("runner: empty command")
	}
	if r.Log != nil {
		r.Log.WithField("command", cmd.String()).WithField("dir", cmd.Dir).Debug("running")
	}

	c := exec.CommandContext(ctx, resolve(cmd.Args[0], cmd.Env), cmd.Args[1:]...)
	c.Dir = cmd.Dir
	c.Env = cmd.Env
	c.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	c.Cancel = func() error {
		return syscall.Kill(-c.Process.Pid, syscall.SIGKILL)
	}

	var out bytes.Buffer
	var w io.Writer = &out
	if r.Stream != nil {
		w = io.MultiWriter(&out, r.Stream)
	}
	c.Stdout = w
	c.Stderr = w

	err := c.Run()
	if err == nil {
		return out.String(), nil
	}
	if ctx.Err() != nil {
		err = fmt.Errorf("command aborted: %w", ctx.Err())
	}
	code := -1
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code = exitErr.ExitCode()
	}
	return out.String(), &CommandError{
		Args:     cmd.Args,
		Dir:      cmd.Dir,
		Output:   out.String(),
		ExitCode: code,
		Err:      err,
	}
}

// resolve locates a bare program name on the PATH of the child environment,
// which exec.Command would otherwise ignore in favor of the process PATH.
func resolve(name string, environ []string) string {
	if strings.ContainsRune(name, '/') {
		return name
	}
	for i := len(environ) - 1; i >= 0; i-- {
		if path, ok := strings.CutPrefix(environ[i], "PATH="); ok {
			if found, err := LookPath(name, path); err == nil {
				return found
			}
			break
		}
	}
	return name
}

func lastLines(s string, n int) string {
	s = strings.TrimRight(s, "\n")
	if s == "" {
		return ""
	}
	lines := strings.Split(s, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
