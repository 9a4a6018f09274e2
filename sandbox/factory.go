package sandbox

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/isdmx/judgebox/config"
)

// Factory provisions a fresh Sandbox per submission.
type Factory interface {
	New(ctx context.Context) (Sandbox, error)
}

// FactoryFunc adapts a function to the Factory interface.
type FactoryFunc func(ctx context.Context) (Sandbox, error)

func (f FactoryFunc) New(ctx context.Context) (Sandbox, error) {
	return f(ctx)
}

// Config selects and parameterizes a sandbox backend.
type Config struct {
	Backend        string // lxc, docker, podman or local
	AdminTimeout   time.Duration
	MaxOutputBytes int
	TempDir        string
	LXC            LXCConfig
	Container      ContainerConfig
}

// NewFactory creates an appropriate sandbox factory based on the configuration
func NewFactory(logger *zap.Logger, cfg Config) (Factory, error) {
	runner := &RealCommandRunner{MaxOutputBytes: cfg.MaxOutputBytes}

	switch cfg.Backend {
	case "lxc":
		lxcCfg := cfg.LXC
		lxcCfg.AdminTimeout = cfg.AdminTimeout
		lxcCfg.TempDir = cfg.TempDir
		log := logger.Named("sandbox.lxc")
		return FactoryFunc(func(ctx context.Context) (Sandbox, error) {
			return NewLXCSandbox(ctx, log, lxcCfg, WithLXCCommandRunner(runner))
		}), nil
	case "docker", "podman":
		containerCfg := cfg.Container
		containerCfg.Binary = cfg.Backend
		containerCfg.AdminTimeout = cfg.AdminTimeout
		containerCfg.TempDir = cfg.TempDir
		log := logger.Named("sandbox." + cfg.Backend)
		return FactoryFunc(func(ctx context.Context) (Sandbox, error) {
			return NewContainerSandbox(ctx, log, containerCfg, WithContainerCommandRunner(runner))
		}), nil
	case "local":
		log := logger.Named("sandbox.local")
		return FactoryFunc(func(context.Context) (Sandbox, error) {
			return NewLocalSandbox(log, cfg.TempDir, WithLocalCommandRunner(runner))
		}), nil
	default:
		return nil, fmt.Errorf("unsupported backend: %s", cfg.Backend)
	}
}

// NewFactoryFromConfig builds a Factory from application configuration.
func NewFactoryFromConfig(logger *zap.Logger, cfg *config.Config) (Factory, error) {
	return NewFactory(logger, Config{
		Backend:        cfg.Sandbox.Backend,
		AdminTimeout:   cfg.AdminTimeout(),
		MaxOutputBytes: cfg.Sandbox.MaxOutputKB * 1024,
		TempDir:        cfg.Sandbox.TempDir,
		LXC: LXCConfig{
			Template: cfg.Sandbox.LXC.Template,
			UseSudo:  cfg.Sandbox.LXC.UseSudo,
		},
		Container: ContainerConfig{
			Image:          cfg.Sandbox.Container.Image,
			MemoryMB:       cfg.Sandbox.Container.MemoryMB,
			NetworkEnabled: cfg.Sandbox.Container.NetworkEnabled,
		},
	})
}
