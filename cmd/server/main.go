package main

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/isdmx/judgebox/config"
	"github.com/isdmx/judgebox/coordinator"
	"github.com/isdmx/judgebox/executor"
	"github.com/isdmx/judgebox/intake"
	"github.com/isdmx/judgebox/logger"
	"github.com/isdmx/judgebox/mcpserver"
	"github.com/isdmx/judgebox/pipeline"
	"github.com/isdmx/judgebox/problem"
	"github.com/isdmx/judgebox/sandbox"
)

func main() {
	app := fx.New(
		fx.Provide(
			config.New,
			logger.NewFromConfig,
			newRegistry,

			executor.NewRegistryFromConfig,
			fx.Annotate(problem.NewFSStoreFromConfig, fx.As(new(problem.Store))),
			sandbox.NewFactoryFromConfig,
			fx.Annotate(coordinator.NewClientFromConfig, fx.As(new(coordinator.Reporter))),

			newManager,
			newIntake,
			newMCPServer,
		),

		fx.Invoke(registerLifecycle),

		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Named("fx")}
		}),
	)

	app.Run()
}

// newRegistry returns the registry behind /metrics, preloaded with the
// process and Go runtime collectors.
func newRegistry() (prometheus.Registerer, prometheus.Gatherer) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg, reg
}

func newManager(
	log *zap.Logger,
	cfg *config.Config,
	registry *executor.Registry,
	problems problem.Store,
	sandboxes sandbox.Factory,
	reporter coordinator.Reporter,
	reg prometheus.Registerer,
) *pipeline.Manager {
	log.Info("configuration loaded",
		zap.String("coordinator.url", cfg.Coordinator.URL),
		zap.String("problems.path", cfg.Problems.Path),
		zap.String("sandbox.backend", cfg.Sandbox.Backend),
		zap.Int("pipeline.workers", cfg.Pipeline.Workers),
		zap.Strings("languages", registry.AvailableLanguages()))

	return pipeline.New(log.Named("pipeline"), pipeline.Options{
		Name:      cfg.Service.Name,
		Executors: registry,
		Problems:  problems,
		Sandboxes: sandboxes,
		Reporter:  reporter,
		Workers:   cfg.Pipeline.Workers,
		Metrics:   pipeline.NewMetrics(reg),
	})
}

func newIntake(log *zap.Logger, cfg *config.Config, m *pipeline.Manager, gatherer prometheus.Gatherer) *intake.Server {
	return intake.NewServerFromConfig(log, cfg, m, gatherer)
}

func newMCPServer(log *zap.Logger, cfg *config.Config, m *pipeline.Manager) *mcpserver.MCPServer {
	return mcpserver.NewFromConfig(log, cfg, m)
}

// registerLifecycle starts the pipeline before either intake surface and
// stops it after them.
func registerLifecycle(lc fx.Lifecycle, m *pipeline.Manager, rest *intake.Server, mcp *mcpserver.MCPServer) {
	lc.Append(fx.Hook{
		// The pipeline outlives the start hook's context.
		OnStart: func(context.Context) error { return m.Start(context.Background()) },
		OnStop:  m.Shutdown,
	})
	lc.Append(fx.Hook{OnStart: rest.Start, OnStop: rest.Stop})
	lc.Append(fx.Hook{OnStart: mcp.Start, OnStop: mcp.Stop})
}
