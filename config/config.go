package config

import (
	"errors"
	"fmt"
	"os"
	"path"
	"strconv"
	"time"

	"github.com/bskracic/langs-executor/lang"
	"github.com/bskracic/langs-executor/logger"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultGRPCAddr           = ":9090"
	defaultHTTPAddr           = ":1337"
	defaultNamespace          = "/code"
	defaultInnerTimeout       = 10 * time.Second
	defaultSupervisoryTimeout = 15 * time.Second
	defaultCleanupTimeout     = 10 * time.Second
	defaultJanitorInterval    = time.Hour
	defaultJanitorMaxAge      = 2 * time.Hour
	defaultShutdownTimeout    = 10 * time.Second
)

// ServerConfig holds the listen addresses.
type ServerConfig struct {
	GRPCAddr        string        `yaml:"grpcAddr"`
	HTTPAddr        string        `yaml:"httpAddr"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// ExecutionConfig holds the limits of a single execution unit.
type ExecutionConfig struct {
	Namespace          string        `yaml:"namespace"`
	WorkspaceRoot      string        `yaml:"workspaceRoot"`
	InnerTimeout       time.Duration `yaml:"innerTimeout"`
	SupervisoryTimeout time.Duration `yaml:"supervisoryTimeout"`
	CleanupTimeout     time.Duration `yaml:"cleanupTimeout"`
	Parallelism        int           `yaml:"parallelism"`
}

// JanitorConfig holds the periodic sweep settings.
type JanitorConfig struct {
	Interval time.Duration `yaml:"interval"`
	MaxAge   time.Duration `yaml:"maxAge"`
}

// Config is the executor configuration.
type Config struct {
	Server    ServerConfig      `yaml:"server"`
	Logger    logger.Config     `yaml:"logger"`
	Execution ExecutionConfig   `yaml:"execution"`
	Janitor   JanitorConfig     `yaml:"janitor"`
	Runtimes  map[string]string `yaml:"runtimes"` // language -> container name
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			GRPCAddr:        defaultGRPCAddr,
			HTTPAddr:        defaultHTTPAddr,
			ShutdownTimeout: defaultShutdownTimeout,
		},
		Logger: logger.Config{Level: "info", Format: "console", OutputPath: "stdout"},
		Execution: ExecutionConfig{
			Namespace:          defaultNamespace,
			InnerTimeout:       defaultInnerTimeout,
			SupervisoryTimeout: defaultSupervisoryTimeout,
			CleanupTimeout:     defaultCleanupTimeout,
			Parallelism:        1,
		},
		Janitor: JanitorConfig{
			Interval: defaultJanitorInterval,
			MaxAge:   defaultJanitorMaxAge,
		},
		Runtimes: map[string]string{
			lang.Java:   "java-runner",
			lang.Cpp:    "cpp-runner",
			lang.Python: "python-runner",
		},
	}
}

// Load reads an optional .env file, then the YAML file at path (if any),
// then environment overrides, and validates the result.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env file failed: %w", err)
	}
	if path == "" {
		path = os.Getenv("EXECUTOR_CONFIG")
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file failed: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file failed: %w", err)
		}
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	setString(&cfg.Server.GRPCAddr, "EXECUTOR_GRPC_ADDR")
	setString(&cfg.Server.HTTPAddr, "EXECUTOR_HTTP_ADDR")
	setString(&cfg.Logger.Level, "EXECUTOR_LOG_LEVEL")
	setString(&cfg.Execution.Namespace, "EXECUTOR_NAMESPACE")

	if v := os.Getenv("EXECUTOR_PARALLELISM"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("EXECUTOR_PARALLELISM: %w", err)
		}
		cfg.Execution.Parallelism = n
	}

	if cfg.Runtimes == nil {
		cfg.Runtimes = make(map[string]string)
	}
	for language, key := range map[string]string{
		lang.Java:   "EXECUTOR_JAVA_RUNTIME",
		lang.Cpp:    "EXECUTOR_CPP_RUNTIME",
		lang.Python: "EXECUTOR_PYTHON_RUNTIME",
	} {
		if v := os.Getenv(key); v != "" {
			cfg.Runtimes[language] = v
		}
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// Validate checks the invariants between the configured limits.
func (c *Config) Validate() error {
	e := c.Execution
	if !path.IsAbs(e.Namespace) {
		return fmt.Errorf("execution namespace must be an absolute path, got %q", e.Namespace)
	}
	if e.InnerTimeout <= 0 {
		return fmt.Errorf("execution inner timeout must be positive")
	}
	if e.SupervisoryTimeout <= e.InnerTimeout {
		return fmt.Errorf("supervisory timeout (%s) must exceed inner timeout (%s)", e.SupervisoryTimeout, e.InnerTimeout)
	}
	if e.Parallelism < 1 {
		return fmt.Errorf("execution parallelism must be at least 1")
	}
	if c.Janitor.Interval <= 0 {
		return fmt.Errorf("janitor interval must be positive")
	}
	if c.Janitor.MaxAge <= e.SupervisoryTimeout {
		return fmt.Errorf("janitor max age (%s) must exceed supervisory timeout (%s)", c.Janitor.MaxAge, e.SupervisoryTimeout)
	}
	if c.Server.GRPCAddr == "" && c.Server.HTTPAddr == "" {
		return fmt.Errorf("at least one of server grpcAddr and httpAddr is required")
	}
	return nil
}
