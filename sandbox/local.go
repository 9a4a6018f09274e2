package sandbox

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/isdmx/judgebox/model"
)

// LocalSandbox runs commands directly on the host inside a private temporary
// directory. It provides no isolation and is meant for development only.
type LocalSandbox struct {
	logger    *zap.Logger
	cmdRunner CommandRunner
	fs        FileSystem

	root string
	ws   *workspace

	closeOnce sync.Once
	closeErr  error
}

// LocalOption defines a functional option for LocalSandbox
type LocalOption func(*LocalSandbox)

// WithLocalCommandRunner sets the CommandRunner for LocalSandbox
func WithLocalCommandRunner(cmdRunner CommandRunner) LocalOption {
	return func(l *LocalSandbox) {
		l.cmdRunner = cmdRunner
	}
}

// WithLocalFileSystem sets the FileSystem for LocalSandbox
func WithLocalFileSystem(fs FileSystem) LocalOption {
	return func(l *LocalSandbox) {
		l.fs = fs
	}
}

// NewLocalSandbox creates a temporary directory under tempDir (or the system
// default when empty) to act as the sandbox.
func NewLocalSandbox(logger *zap.Logger, tempDir string, opts ...LocalOption) (*LocalSandbox, error) {
	l := &LocalSandbox{
		logger:    logger,
		cmdRunner: &RealCommandRunner{},
		fs:        &RealFileSystem{},
	}
	for _, opt := range opts {
		opt(l)
	}

	root, err := l.fs.MkdirTemp(tempDir, "judgebox-local-")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	l.root = root

	// Commands run on the host, so the sandbox sees the host path.
	if l.ws, err = newWorkspace(l.fs, root, root); err != nil {
		_ = l.fs.RemoveAll(root)
		return nil, err
	}

	logger.Warn("using local sandbox, submissions run without isolation", zap.String("root", root))
	return l, nil
}

// Root returns the host directory backing the sandbox.
func (l *LocalSandbox) Root() string {
	return l.root
}

func (l *LocalSandbox) Unpack(files []model.SubmissionFile) (string, error) {
	return l.ws.unpack(files)
}

func (l *LocalSandbox) UnpackInput(input []byte) (string, error) {
	return l.ws.unpackInput(input)
}

func (l *LocalSandbox) Execute(ctx context.Context, command []string, input []byte, timeout time.Duration) (CommandResult, error) {
	if len(command) == 0 {
		return CommandResult{}, fmt.Errorf("no command provided")
	}
	return l.cmdRunner.RunCommand(ctx, command, input, timeout)
}

func (l *LocalSandbox) Close() error {
	l.closeOnce.Do(func() {
		if err := l.fs.RemoveAll(l.root); err != nil {
			l.closeErr = fmt.Errorf("failed to remove temp dir: %w", err)
		}
	})
	return l.closeErr
}
