package sandbox

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/isdmx/judgebox/model"
)

// LXCConfig holds configuration for the LXC sandbox
type LXCConfig struct {
	Template     string
	UseSudo      bool
	AdminTimeout time.Duration
	// TempDir is the host directory under which container roots are created.
	// Empty means the system default.
	TempDir string
}

// LXCSandbox implements Sandbox using LXC containers
type LXCSandbox struct {
	logger    *zap.Logger
	config    LXCConfig
	cmdRunner CommandRunner
	fs        FileSystem

	name string
	root string
	ws   *workspace

	closeOnce sync.Once
	closeErr  error
}

// LXCOption defines a functional option for LXCSandbox
type LXCOption func(*LXCSandbox)

// WithLXCCommandRunner sets the CommandRunner for LXCSandbox
func WithLXCCommandRunner(cmdRunner CommandRunner) LXCOption {
	return func(l *LXCSandbox) {
		l.cmdRunner = cmdRunner
	}
}

// WithLXCFileSystem sets the FileSystem for LXCSandbox
func WithLXCFileSystem(fs FileSystem) LXCOption {
	return func(l *LXCSandbox) {
		l.fs = fs
	}
}

// NewLXCSandbox creates a fresh, uniquely named container. The caller owns the
// returned sandbox and must Close it.
func NewLXCSandbox(ctx context.Context, logger *zap.Logger, config LXCConfig, opts ...LXCOption) (*LXCSandbox, error) {
	l := &LXCSandbox{
		logger:    logger,
		config:    config,
		cmdRunner: &RealCommandRunner{},
		fs:        &RealFileSystem{},
	}
	for _, opt := range opts {
		opt(l)
	}

	existing, err := l.listContainers(ctx)
	if err != nil {
		return nil, err
	}
	if l.name, err = generateName(existing); err != nil {
		return nil, err
	}

	if l.root, err = l.fs.MkdirTemp(config.TempDir, "judgebox-"); err != nil {
		return nil, fmt.Errorf("failed to create container root: %w", err)
	}

	if _, err := l.admin(ctx, "lxc-create", "-t", config.Template, "-n", l.name, "--dir", l.root); err != nil {
		l.removeRoot()
		return nil, fmt.Errorf("failed to create container %s: %w", l.name, err)
	}

	l.ws, err = newWorkspace(l.fs, filepath.Join(l.root, filepath.FromSlash(SandboxRoot)), SandboxRoot)
	if err != nil {
		if closeErr := l.Close(); closeErr != nil {
			logger.Warn("failed to destroy half-created container", zap.String("container", l.name), zap.Error(closeErr))
		}
		return nil, err
	}

	logger.Debug("container created", zap.String("container", l.name), zap.String("root", l.root))
	return l, nil
}

// Name returns the container name.
func (l *LXCSandbox) Name() string {
	return l.name
}

// Unpack writes submission files into the container root filesystem.
func (l *LXCSandbox) Unpack(files []model.SubmissionFile) (string, error) {
	return l.ws.unpack(files)
}

// UnpackInput stages a case input inside the container root filesystem.
func (l *LXCSandbox) UnpackInput(input []byte) (string, error) {
	return l.ws.unpackInput(input)
}

// Execute runs command inside the container via lxc-execute.
func (l *LXCSandbox) Execute(ctx context.Context, command []string, input []byte, timeout time.Duration) (CommandResult, error) {
	if len(command) == 0 {
		return CommandResult{}, fmt.Errorf("no command provided")
	}
	args := append(l.prefix("lxc-execute", "-n", l.name, "--"), command...)
	res, err := l.cmdRunner.RunCommand(ctx, args, input, timeout)
	if interrupted(ctx, err) {
		l.stop()
	}
	return res, err
}

// stop kills the running application container. Killing lxc-execute, or the
// sudo in front of it, leaves the container's processes running.
func (l *LXCSandbox) stop() {
	if _, err := l.admin(context.Background(), "lxc-stop", "-k", "-n", l.name); err != nil {
		l.logger.Debug("lxc-stop after interrupted execution failed", zap.String("name", l.name), zap.Error(err))
	}
}

// Close destroys the container and its root filesystem. A container that is
// already gone is not an error.
func (l *LXCSandbox) Close() error {
	l.closeOnce.Do(func() {
		// Teardown must run even when the caller's context is already done.
		ctx := context.Background()

		var errs []error
		if _, err := l.admin(ctx, "lxc-destroy", "-f", "-n", l.name); err != nil {
			existing, listErr := l.listContainers(ctx)
			if listErr != nil || slices.Contains(existing, l.name) {
				errs = append(errs, fmt.Errorf("failed to destroy container %s: %w", l.name, err))
			}
		}
		if err := l.fs.RemoveAll(l.root); err != nil {
			errs = append(errs, fmt.Errorf("failed to remove container root: %w", err))
		}
		l.closeErr = errors.Join(errs...)
	})
	return l.closeErr
}

func (l *LXCSandbox) listContainers(ctx context.Context) ([]string, error) {
	res, err := l.admin(ctx, "lxc-ls", "-1")
	if err != nil {
		return nil, fmt.Errorf("failed to list containers: %w", err)
	}
	return splitLines(res.Stdout), nil
}

// admin runs an LXC management command and treats a non-zero exit as failure.
func (l *LXCSandbox) admin(ctx context.Context, args ...string) (CommandResult, error) {
	res, err := l.cmdRunner.RunCommand(ctx, l.prefix(args...), nil, l.config.AdminTimeout)
	if err != nil {
		return res, err
	}
	if exitErr := res.Err(); exitErr != nil {
		return res, fmt.Errorf("%s %w: %s", args[0], exitErr, string(res.Stderr))
	}
	return res, nil
}

func (l *LXCSandbox) prefix(args ...string) []string {
	if l.config.UseSudo {
		return append([]string{"sudo"}, args...)
	}
	return args
}

func (l *LXCSandbox) removeRoot() {
	if err := l.fs.RemoveAll(l.root); err != nil {
		l.logger.Warn("failed to remove container root", zap.String("path", l.root), zap.Error(err))
	}
}
