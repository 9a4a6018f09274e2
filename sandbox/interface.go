package sandbox

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/isdmx/judgebox/model"
)

var (
	// ErrTimeout is returned by Execute when the process was killed because it
	// did not exit within its time limit.
	ErrTimeout = errors.New("process timed out")

	// ErrLaunch is returned when a process could not be started at all.
	ErrLaunch = errors.New("failed to launch process")
)

// Sandbox is an isolated filesystem and process namespace bound to a single
// submission. Implementations are not safe for concurrent use.
type Sandbox interface {
	// Unpack copies files into a fresh directory inside the sandbox and
	// returns that directory as seen from inside the sandbox.
	Unpack(files []model.SubmissionFile) (string, error)

	// UnpackInput stages an input payload at a path that is distinct from
	// every other staged input of this sandbox and returns that path.
	UnpackInput(input []byte) (string, error)

	// Execute runs command inside the sandbox, feeding input on its standard
	// input when non-nil. It blocks until the process exits or timeout
	// elapses; in the latter case the process is killed and the returned
	// error wraps ErrTimeout.
	Execute(ctx context.Context, command []string, input []byte, timeout time.Duration) (CommandResult, error)

	// Close destroys the sandbox and everything created inside it. Calling it
	// again returns the result of the first call.
	Close() error
}

// CommandResult is the captured outcome of one process invocation.
type CommandResult struct {
	ExitCode int
	Stdout   []byte
	Stderr   []byte
}

// Err reports a non-zero exit as an *ExitError.
func (r CommandResult) Err() error {
	if r.ExitCode == 0 {
		return nil
	}
	return &ExitError{Code: r.ExitCode, Stderr: string(r.Stderr)}
}

// ExitError describes a process that ran but exited with a non-zero status.
type ExitError struct {
	Code   int
	Stderr string
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exited with status %d", e.Code)
}

// CommandRunner defines an interface for executing system commands
type CommandRunner interface {
	RunCommand(ctx context.Context, args []string, stdin []byte, timeout time.Duration) (CommandResult, error)
}

// FileSystem defines an interface for file system operations
type FileSystem interface {
	MkdirTemp(dir, pattern string) (string, error)
	MkdirAll(path string, perm os.FileMode) error
	WriteFile(filename string, data []byte, perm os.FileMode) error
	RemoveAll(path string) error
	FileExists(path string) (bool, error)
}

// RealFileSystem implements FileSystem using actual file system operations
type RealFileSystem struct{}

func (RealFileSystem) MkdirTemp(dir, pattern string) (string, error) {
	return os.MkdirTemp(dir, pattern)
}

func (RealFileSystem) MkdirAll(path string, perm os.FileMode) error {
	return os.MkdirAll(path, perm)
}

func (RealFileSystem) WriteFile(filename string, data []byte, perm os.FileMode) error {
	return os.WriteFile(filename, data, perm)
}

func (RealFileSystem) RemoveAll(path string) error {
	return os.RemoveAll(path)
}

func (RealFileSystem) FileExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	return err == nil, err
}

// File permission constants
const (
	DirPermission  = 0755
	FilePermission = 0644
)

// Layout of the staging area inside every sandbox.
const (
	SandboxRoot   = "/judgebox"
	submissionDir = "submission"
	inputDir      = "input"
)
