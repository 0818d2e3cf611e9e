package vcs

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// DefaultInactivityTimeout is how long a git command may produce no output
// before it is killed.
const DefaultInactivityTimeout = 2 * time.Minute

// monitoredCmd runs a command until it finishes, the context is cancelled,
// or it shows no output for the inactivity timeout.
type monitoredCmd struct {
	cmd     *exec.Cmd
	timeout time.Duration
	stdout  *activityBuffer
	stderr  *activityBuffer
}

func newMonitoredCmd(cmd *exec.Cmd, timeout time.Duration) *monitoredCmd {
	stdout, stderr := &activityBuffer{}, &activityBuffer{}
	cmd.Stdout, cmd.Stderr = stdout, stderr
	return &monitoredCmd{cmd: cmd, timeout: timeout, stdout: stdout, stderr: stderr}
}

func (c *monitoredCmd) run(ctx context.Context) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	now := time.Now()
	c.stdout.touch(now)
	c.stderr.touch(now)

	ticker := time.NewTicker(c.timeout)
	defer ticker.Stop()
	done := make(chan error, 1)
	if err := c.cmd.Start(); err != nil {
		return err
	}
	go func() { done <- c.cmd.Wait() }()

	for {
		select {
		case <-ticker.C:
			if c.hasTimedOut() {
				c.cmd.Process.Kill()
				<-done
				return &timeoutError{c.timeout}
			}
		case <-ctx.Done():
			c.cmd.Process.Kill()
			<-done
			return ctx.Err()
		case err := <-done:
			return err
		}
	}
}

func (c *monitoredCmd) hasTimedOut() bool {
	t := time.Now().Add(-c.timeout)
	return c.stderr.lastActivity().Before(t) && c.stdout.lastActivity().Before(t)
}

// output runs the command and returns its stdout. On failure the error
// carries the command line and its stderr.
func (c *monitoredCmd) output(ctx context.Context) ([]byte, error) {
	if err := c.run(ctx); err != nil {
		return nil, &CommandError{
			Args:   c.cmd.Args,
			Dir:    c.cmd.Dir,
			Stderr: strings.TrimSpace(c.stderr.String()),
			Err:    err,
		}
	}
	return c.stdout.Bytes(), nil
}

// activityBuffer is a buffer that records the time of the last write.
type activityBuffer struct {
	mu   sync.Mutex
	buf  bytes.Buffer
	last time.Time
}

func (b *activityBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.last = time.Now()
	return b.buf.Write(p)
}

func (b *activityBuffer) lastActivity() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.last
}

func (b *activityBuffer) touch(t time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.last = t
}

func (b *activityBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]byte(nil), b.buf.Bytes()...)
}

func (b *activityBuffer) String() string { return string(b.Bytes()) }

type timeoutError struct {
	timeout time.Duration
}

func (e *timeoutError) Error() string {
	return fmt.Sprintf("command killed after %s of no activity", e.timeout)
}

// CommandError is a failed git invocation.
type CommandError struct {
	Args   []string
	Dir    string
	Stderr string
	Err    error
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("%s (in %s): %v", strings.Join(e.Args, " "), e.Dir, e.Err)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

func (e *CommandError) Unwrap() error { return e.Err }
