package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Service     ServiceConfig             `mapstructure:"service"`
	Coordinator CoordinatorConfig         `mapstructure:"coordinator"`
	Problems    ProblemsConfig            `mapstructure:"problems"`
	Executors   map[string]string         `mapstructure:"executors"`
	Templates   map[string]TemplateConfig `mapstructure:"templates"`
	Sandbox     SandboxConfig             `mapstructure:"sandbox"`
	Pipeline    PipelineConfig            `mapstructure:"pipeline"`
	Server      ServerConfig              `mapstructure:"server"`
	MCP         MCPConfig                 `mapstructure:"mcp"`
	Logging     LoggingConfig             `mapstructure:"logging"`
}

// ServiceConfig identifies this executor instance to the coordinator
type ServiceConfig struct {
	Name string `mapstructure:"name"`
}

// CoordinatorConfig holds the address of the upstream coordinator
type CoordinatorConfig struct {
	URL        string `mapstructure:"url"`
	TimeoutSec int    `mapstructure:"timeout_sec"`
}

// ProblemsConfig holds the location of problem definitions
type ProblemsConfig struct {
	Path string `mapstructure:"path"`
}

// TemplateConfig describes a command-template executor
type TemplateConfig struct {
	Compile string `mapstructure:"compile"`
	Run     string `mapstructure:"run"`
}

// SandboxConfig holds sandbox configuration
type SandboxConfig struct {
	Backend            string          `mapstructure:"backend"`
	EnableLocalBackend bool            `mapstructure:"enable_local_backend"`
	AdminTimeoutSec    int             `mapstructure:"admin_timeout_sec"`
	CompileTimeoutSec  int             `mapstructure:"compile_timeout_sec"`
	MaxOutputKB        int             `mapstructure:"max_output_kb"`
	TimingWrapper      string          `mapstructure:"timing_wrapper"`
	TempDir            string          `mapstructure:"temp_dir"`
	LXC                LXCConfig       `mapstructure:"lxc"`
	Container          ContainerConfig `mapstructure:"container"`
}

// LXCConfig holds LXC backend settings
type LXCConfig struct {
	Template string `mapstructure:"template"`
	UseSudo  bool   `mapstructure:"use_sudo"`
}

// ContainerConfig holds docker/podman backend settings
type ContainerConfig struct {
	Image          string `mapstructure:"image"`
	MemoryMB       int    `mapstructure:"memory_mb"`
	NetworkEnabled bool   `mapstructure:"network_enabled"`
}

// PipelineConfig holds execution pipeline settings
type PipelineConfig struct {
	Workers int `mapstructure:"workers"`
}

// ServerConfig holds REST server configuration
type ServerConfig struct {
	HTTPPort      int  `mapstructure:"http_port"`
	Release       bool `mapstructure:"release"`
	EnableMetrics bool `mapstructure:"enable_metrics"`
}

// MCPConfig holds MCP server configuration
type MCPConfig struct {
	Transport string `mapstructure:"transport"`
	HTTPPort  int    `mapstructure:"http_port"`
}

// LoggingConfig holds logger configuration
type LoggingConfig struct {
	Mode  string `mapstructure:"mode"`
	Level string `mapstructure:"level"`
}

// New loads and validates the application configuration
func New() (*Config, error) {
	return Load(viper.New())
}

// Load reads configuration into v, which the caller may have pre-populated
// with explicit settings or config paths.
func Load(v *viper.Viper) (*Config, error) {
	// A missing .env is normal outside development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvPrefix("JUDGEBOX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// If config file not found, continue with defaults
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	// Applied after unmarshaling since viper merges map defaults key by key.
	if len(config.Executors) == 0 {
		config.Executors = map[string]string{"java": "java"}
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation error: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("service.name", "judgebox-executor")

	// Registered so that JUDGEBOX_COORDINATOR_URL is seen by Unmarshal.
	v.SetDefault("coordinator.url", "")
	v.SetDefault("coordinator.timeout_sec", 10)
	v.SetDefault("problems.path", "./problems")

	v.SetDefault("sandbox.backend", "lxc")
	v.SetDefault("sandbox.enable_local_backend", false)
	v.SetDefault("sandbox.admin_timeout_sec", 10)
	v.SetDefault("sandbox.compile_timeout_sec", 30)
	v.SetDefault("sandbox.max_output_kb", 1024)
	v.SetDefault("sandbox.timing_wrapper", "cputime")
	v.SetDefault("sandbox.lxc.template", "judgebox")
	v.SetDefault("sandbox.lxc.use_sudo", true)
	v.SetDefault("sandbox.container.image", "judgebox-runtime:latest")
	v.SetDefault("sandbox.container.memory_mb", 512)
	v.SetDefault("sandbox.container.network_enabled", false)

	v.SetDefault("pipeline.workers", 1)

	v.SetDefault("server.http_port", 8080)
	v.SetDefault("server.release", true)
	v.SetDefault("server.enable_metrics", true)

	v.SetDefault("mcp.transport", "none")
	v.SetDefault("mcp.http_port", 8081)

	v.SetDefault("logging.mode", "production")
	v.SetDefault("logging.level", "info")
}

// validate ensures the configuration is valid
//
//nolint:gocyclo // flat list of independent checks
func (c *Config) validate() error {
	if c.Service.Name == "" {
		return fmt.Errorf("service.name must not be empty")
	}

	if c.Coordinator.URL == "" {
		return fmt.Errorf("coordinator.url is required")
	}
	u, err := url.Parse(c.Coordinator.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid coordinator.url: %s, must be an absolute http or https URL", c.Coordinator.URL)
	}
	if c.Coordinator.TimeoutSec <= 0 {
		return fmt.Errorf("coordinator.timeout_sec must be positive, got: %d", c.Coordinator.TimeoutSec)
	}

	if c.Problems.Path == "" {
		return fmt.Errorf("problems.path must not be empty")
	}

	if len(c.Executors) == 0 {
		return fmt.Errorf("executors must map at least one language")
	}
	for id, tmpl := range c.Templates {
		if strings.TrimSpace(tmpl.Run) == "" {
			return fmt.Errorf("templates.%s.run must not be empty", id)
		}
	}

	supportedBackends := map[string]bool{
		"lxc":    true,
		"docker": true,
		"podman": true,
		"local":  c.Sandbox.EnableLocalBackend, // local only enabled if specifically allowed
	}
	if !supportedBackends[c.Sandbox.Backend] {
		return fmt.Errorf("unsupported sandbox.backend: %s", c.Sandbox.Backend)
	}

	if c.Sandbox.AdminTimeoutSec <= 0 {
		return fmt.Errorf("sandbox.admin_timeout_sec must be positive, got: %d", c.Sandbox.AdminTimeoutSec)
	}
	if c.Sandbox.CompileTimeoutSec <= 0 {
		return fmt.Errorf("sandbox.compile_timeout_sec must be positive, got: %d", c.Sandbox.CompileTimeoutSec)
	}
	if c.Sandbox.MaxOutputKB <= 0 {
		return fmt.Errorf("sandbox.max_output_kb must be positive, got: %d", c.Sandbox.MaxOutputKB)
	}
	if c.Sandbox.Backend == "lxc" && c.Sandbox.LXC.Template == "" {
		return fmt.Errorf("sandbox.lxc.template must not be empty")
	}
	if c.Sandbox.Backend == "docker" || c.Sandbox.Backend == "podman" {
		if c.Sandbox.Container.Image == "" {
			return fmt.Errorf("sandbox.container.image must not be empty")
		}
		if c.Sandbox.Container.MemoryMB <= 0 {
			return fmt.Errorf("sandbox.container.memory_mb must be positive, got: %d", c.Sandbox.Container.MemoryMB)
		}
	}

	if c.Pipeline.Workers <= 0 {
		return fmt.Errorf("pipeline.workers must be positive, got: %d", c.Pipeline.Workers)
	}

	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid server.http_port: %d", c.Server.HTTPPort)
	}

	switch c.MCP.Transport {
	case "none", "stdio":
	case "http":
		if c.MCP.HTTPPort <= 0 || c.MCP.HTTPPort > 65535 {
			return fmt.Errorf("invalid mcp.http_port: %d", c.MCP.HTTPPort)
		}
		if c.MCP.HTTPPort == c.Server.HTTPPort {
			return fmt.Errorf("mcp.http_port must differ from server.http_port")
		}
	default:
		return fmt.Errorf("invalid mcp.transport: %s, must be 'none', 'stdio' or 'http'", c.MCP.Transport)
	}

	if c.Logging.Mode != "production" && c.Logging.Mode != "development" {
		return fmt.Errorf("invalid logging.mode: %s, must be 'production' or 'development'", c.Logging.Mode)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error", "dpanic", "panic", "fatal":
	default:
		return fmt.Errorf("invalid logging.level: %s", c.Logging.Level)
	}

	return nil
}

// AdminTimeout bounds container management commands.
func (c *Config) AdminTimeout() time.Duration {
	return time.Duration(c.Sandbox.AdminTimeoutSec) * time.Second
}

// CompileTimeout bounds a single compilation.
func (c *Config) CompileTimeout() time.Duration {
	return time.Duration(c.Sandbox.CompileTimeoutSec) * time.Second
}

// CoordinatorTimeout bounds a single outbound report.
func (c *Config) CoordinatorTimeout() time.Duration {
	return time.Duration(c.Coordinator.TimeoutSec) * time.Second
}
