package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultMaxOutputBytes bounds how much of each stream is kept.
const DefaultMaxOutputBytes = 1 << 20

// killGrace bounds how long RunCommand waits for the streams to drain once
// the process has exited or been killed. A descendant that escaped the process
// group may keep the pipes open indefinitely.
const killGrace = 2 * time.Second

// RealCommandRunner implements CommandRunner using actual exec commands.
// Stdout and stderr are drained concurrently so that a process writing heavily
// to both streams never blocks on a full pipe.
type RealCommandRunner struct {
	// MaxOutputBytes caps each captured stream; excess output is drained and
	// discarded. Zero means DefaultMaxOutputBytes.
	MaxOutputBytes int
}

// RunCommand executes the given command with arguments
func (r RealCommandRunner) RunCommand(ctx context.Context, args []string, stdin []byte, timeout time.Duration) (CommandResult, error) {
	if len(args) < 1 {
		return CommandResult{}, fmt.Errorf("no command provided")
	}
	if err := ctx.Err(); err != nil {
		return CommandResult{}, err
	}

	cmd := exec.Command(args[0], args[1:]...) //nolint:gosec // Commands are assembled by sandbox backends
	configureProcessGroup(cmd)
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}
	// Bounds how long Wait blocks on stdin copying after the process exits.
	cmd.WaitDelay = killGrace

	// Wait must track process exit only, so the pipes are owned here rather
	// than by exec.
	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		return CommandResult{}, fmt.Errorf("%w: %w", ErrLaunch, err)
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		closeAll(stdoutR, stdoutW)
		return CommandResult{}, fmt.Errorf("%w: %w", ErrLaunch, err)
	}
	cmd.Stdout, cmd.Stderr = stdoutW, stderrW

	if err := cmd.Start(); err != nil {
		closeAll(stdoutR, stdoutW, stderrR, stderrW)
		return CommandResult{}, fmt.Errorf("%w: %s: %w", ErrLaunch, args[0], err)
	}
	closeAll(stdoutW, stderrW)

	stdout := newCappedBuffer(r.limit())
	stderr := newCappedBuffer(r.limit())

	var readers errgroup.Group
	readers.Go(func() error {
		_, err := io.Copy(stdout, stdoutR)
		return err
	})
	readers.Go(func() error {
		_, err := io.Copy(stderr, stderrR)
		return err
	})
	drain := func() {
		drainStreams(&readers, stdoutR, stderrR)
	}

	exited := make(chan error, 1)
	go func() {
		exited <- cmd.Wait()
	}()

	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	select {
	case waitErr := <-exited:
		// Descendants left behind must not hold the streams open.
		killProcessGroup(cmd)
		drain()

		result := CommandResult{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
		if waitErr != nil && !errors.Is(waitErr, exec.ErrWaitDelay) {
			var exitErr *exec.ExitError
			if !errors.As(waitErr, &exitErr) {
				return result, fmt.Errorf("failed waiting for %s: %w", args[0], waitErr)
			}
			result.ExitCode = exitErr.ExitCode()
		}
		return result, nil

	case <-deadline:
		killAndReap(cmd, exited)
		drain()
		return CommandResult{ExitCode: -1, Stdout: stdout.Bytes(), Stderr: stderr.Bytes()},
			fmt.Errorf("%w after %s", ErrTimeout, timeout)

	case <-ctx.Done():
		killAndReap(cmd, exited)
		drain()
		return CommandResult{ExitCode: -1, Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}, ctx.Err()
	}
}

func (r RealCommandRunner) limit() int {
	if r.MaxOutputBytes <= 0 {
		return DefaultMaxOutputBytes
	}
	return r.MaxOutputBytes
}

func killAndReap(cmd *exec.Cmd, exited <-chan error) {
	killProcessGroup(cmd)
	select {
	case <-exited:
	case <-time.After(killGrace):
	}
}

// drainStreams waits up to killGrace for the readers to hit EOF, then closes
// the read ends so that a descendant outside the process group cannot pin
// them.
func drainStreams(readers *errgroup.Group, pipes ...*os.File) {
	done := make(chan struct{})
	go func() {
		_ = readers.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(killGrace):
	}
	closeAll(pipes...)
	<-done
}

// interrupted reports whether err means the process was killed before it
// exited on its own.
func interrupted(ctx context.Context, err error) bool {
	return errors.Is(err, ErrTimeout) || (err != nil && ctx.Err() != nil)
}

func closeAll(files ...*os.File) {
	for _, f := range files {
		_ = f.Close()
	}
}

// cappedBuffer keeps the first max bytes written to it and silently drops the
// rest, always reporting a full write so the producer keeps draining.
type cappedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
	max int
}

func newCappedBuffer(max int) *cappedBuffer {
	return &cappedBuffer{max: max}
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if room := b.max - b.buf.Len(); room > 0 {
		if len(p) > room {
			b.buf.Write(p[:room])
		} else {
			b.buf.Write(p)
		}
	}
	return len(p), nil
}

func (b *cappedBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return bytes.Clone(b.buf.Bytes())
}
