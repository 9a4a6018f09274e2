package sandbox

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/isdmx/judgebox/model"
)

// ContainerConfig holds configuration for the OCI container sandbox.
type ContainerConfig struct {
	// Binary is the container CLI to drive, "docker" or "podman".
	Binary         string
	Image          string
	MemoryMB       int
	NetworkEnabled bool
	AdminTimeout   time.Duration
	TempDir        string
}

// ContainerSandbox implements Sandbox with a long-lived OCI container whose
// staging directory is bind-mounted from the host.
type ContainerSandbox struct {
	logger    *zap.Logger
	config    ContainerConfig
	cmdRunner CommandRunner
	fs        FileSystem

	name    string
	hostDir string
	ws      *workspace

	closeOnce sync.Once
	closeErr  error
}

// ContainerOption defines a functional option for ContainerSandbox
type ContainerOption func(*ContainerSandbox)

// WithContainerCommandRunner sets the CommandRunner for ContainerSandbox
func WithContainerCommandRunner(cmdRunner CommandRunner) ContainerOption {
	return func(c *ContainerSandbox) {
		c.cmdRunner = cmdRunner
	}
}

// WithContainerFileSystem sets the FileSystem for ContainerSandbox
func WithContainerFileSystem(fs FileSystem) ContainerOption {
	return func(c *ContainerSandbox) {
		c.fs = fs
	}
}

// NewContainerSandbox starts a detached container that idles until commands
// are exec'ed into it.
func NewContainerSandbox(ctx context.Context, logger *zap.Logger, config ContainerConfig, opts ...ContainerOption) (*ContainerSandbox, error) {
	c := &ContainerSandbox{
		logger:    logger,
		config:    config,
		cmdRunner: &RealCommandRunner{},
		fs:        &RealFileSystem{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.config.Binary == "" {
		c.config.Binary = "docker"
	}

	existing, err := c.listContainers(ctx)
	if err != nil {
		return nil, err
	}
	if c.name, err = generateName(existing); err != nil {
		return nil, err
	}

	if c.hostDir, err = c.fs.MkdirTemp(config.TempDir, "judgebox-"); err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}
	if c.ws, err = newWorkspace(c.fs, c.hostDir, SandboxRoot); err != nil {
		c.removeHostDir()
		return nil, err
	}

	if _, err := c.admin(ctx, c.runArgs()...); err != nil {
		if closeErr := c.Close(); closeErr != nil {
			logger.Warn("failed to clean up container", zap.String("container", c.name), zap.Error(closeErr))
		}
		return nil, fmt.Errorf("failed to start container %s: %w", c.name, err)
	}

	logger.Debug("container started",
		zap.String("binary", c.config.Binary),
		zap.String("container", c.name),
		zap.String("image", c.config.Image))
	return c, nil
}

func (c *ContainerSandbox) runArgs() []string {
	args := []string{"run", "-d", "--name", c.name}
	if !c.config.NetworkEnabled {
		args = append(args, "--network", "none")
	}
	if c.config.MemoryMB > 0 {
		args = append(args, "--memory", strconv.Itoa(c.config.MemoryMB)+"m")
	}
	return append(args,
		"--security-opt", "no-new-privileges:true",
		"--cap-drop", "ALL",
		"-v", c.hostDir+":"+SandboxRoot,
		"--workdir", SandboxRoot,
		c.config.Image,
		"sleep", "infinity",
	)
}

// Name returns the container name.
func (c *ContainerSandbox) Name() string {
	return c.name
}

func (c *ContainerSandbox) Unpack(files []model.SubmissionFile) (string, error) {
	return c.ws.unpack(files)
}

func (c *ContainerSandbox) UnpackInput(input []byte) (string, error) {
	return c.ws.unpackInput(input)
}

// Execute runs command through "exec" in the running container.
func (c *ContainerSandbox) Execute(ctx context.Context, command []string, input []byte, timeout time.Duration) (CommandResult, error) {
	if len(command) == 0 {
		return CommandResult{}, fmt.Errorf("no command provided")
	}
	args := []string{c.config.Binary, "exec"}
	if input != nil {
		args = append(args, "-i")
	}
	args = append(append(args, c.name), command...)
	res, err := c.cmdRunner.RunCommand(ctx, args, input, timeout)
	if interrupted(ctx, err) {
		c.killAll()
	}
	return res, err
}

// killAll kills every process in the container except its init. Killing the
// exec client does not reach the process the runtime started for it.
func (c *ContainerSandbox) killAll() {
	if _, err := c.admin(context.Background(), "exec", c.name, "kill", "-KILL", "-1"); err != nil {
		c.logger.Warn("failed to kill container processes", zap.String("name", c.name), zap.Error(err))
	}
}

// Close force-removes the container and its staging directory.
func (c *ContainerSandbox) Close() error {
	c.closeOnce.Do(func() {
		ctx := context.Background()

		var errs []error
		if _, err := c.admin(ctx, "rm", "-f", c.name); err != nil {
			existing, listErr := c.listContainers(ctx)
			if listErr != nil || slices.Contains(existing, c.name) {
				errs = append(errs, fmt.Errorf("failed to remove container %s: %w", c.name, err))
			}
		}
		if err := c.fs.RemoveAll(c.hostDir); err != nil {
			errs = append(errs, fmt.Errorf("failed to remove staging directory: %w", err))
		}
		c.closeErr = errors.Join(errs...)
	})
	return c.closeErr
}

func (c *ContainerSandbox) listContainers(ctx context.Context) ([]string, error) {
	res, err := c.admin(ctx, "ps", "-a", "--format", "{{.Names}}")
	if err != nil {
		return nil, fmt.Errorf("failed to list containers: %w", err)
	}
	return splitLines(res.Stdout), nil
}

func (c *ContainerSandbox) admin(ctx context.Context, args ...string) (CommandResult, error) {
	res, err := c.cmdRunner.RunCommand(ctx, append([]string{c.config.Binary}, args...), nil, c.config.AdminTimeout)
	if err != nil {
		return res, err
	}
	if exitErr := res.Err(); exitErr != nil {
		return res, fmt.Errorf("%s %s %w: %s", c.config.Binary, args[0], exitErr, string(res.Stderr))
	}
	return res, nil
}

func (c *ContainerSandbox) removeHostDir() {
	if err := c.fs.RemoveAll(c.hostDir); err != nil {
		c.logger.Warn("failed to remove staging directory", zap.String("path", c.hostDir), zap.Error(err))
	}
}
