package executor

import (
	"time"

	"go.uber.org/zap"

	"github.com/caffeineduck/nativebind/binding"
	"github.com/caffeineduck/nativebind/hostfunc"
)

// Option configures a single Run.
type Option func(*runConfig)

type runConfig struct {
	timeout time.Duration
	args    []string
	env     [][2]string
}

func defaultRunConfig() runConfig {
	return runConfig{
		timeout: 30 * time.Second,
	}
}

// WithTimeout sets the maximum execution time. Zero disables the timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *runConfig) {
		c.timeout = d
	}
}

// WithArgs sets the guest's command-line arguments after the program name.
func WithArgs(args ...string) Option {
	return func(c *runConfig) {
		c.args = append(c.args, args...)
	}
}

// WithEnv adds an environment variable visible to the guest.
func WithEnv(key, value string) Option {
	return func(c *runConfig) {
		c.env = append(c.env, [2]string{key, value})
	}
}

// ExecutorOption configures the Executor at creation time.
type ExecutorOption func(*executorConfig)

type moduleSpec struct {
	name string
	hook binding.Hook
}

type executorConfig struct {
	diskCache        bool
	cacheDir         string
	memoryLimitPages uint32 // Max memory pages (each page = 64KB), 0 = default (4GB)
	compiledCache    int
	modules          []moduleSpec
	sandbox          *hostfunc.Config
	logger           *zap.Logger
}

func defaultExecutorConfig() executorConfig {
	return executorConfig{
		compiledCache: 32,
		logger:        zap.NewNop(),
	}
}

// WithDiskCache enables persistent compilation cache for faster CLI startup.
// Optionally provide a custom directory; otherwise uses ~/.cache/nativebind
// or XDG_CACHE_HOME/nativebind.
//
// Examples:
//
//	executor.New(executor.WithDiskCache())             // default dir
//	executor.New(executor.WithDiskCache("/tmp/cache")) // custom dir
func WithDiskCache(dir ...string) ExecutorOption {
	return func(c *executorConfig) {
		c.diskCache = true
		if len(dir) > 0 && dir[0] != "" {
			c.cacheDir = dir[0]
		}
	}
}

// WithMemoryLimit sets the maximum memory available to WASM modules.
// Each page is 64KB. Examples:
//   - WithMemoryLimit(16) = 1MB max
//   - WithMemoryLimit(256) = 16MB max
//   - WithMemoryLimit(1024) = 64MB max
//
// Default is 0 (no limit, up to 4GB).
func WithMemoryLimit(pages uint32) ExecutorOption {
	return func(c *executorConfig) {
		c.memoryLimitPages = pages
	}
}

// WithCompiledCacheSize bounds how many compiled guests are kept in memory.
func WithCompiledCacheSize(n int) ExecutorOption {
	return func(c *executorConfig) {
		if n > 0 {
			c.compiledCache = n
		}
	}
}

// WithModule loads a native module through its registration hook when the
// Executor is created.
func WithModule(name string, hook binding.Hook) ExecutorOption {
	return func(c *executorConfig) {
		c.modules = append(c.modules, moduleSpec{name: name, hook: hook})
	}
}

// WithSandbox loads the sandbox module with the given capabilities.
func WithSandbox(cfg hostfunc.Config) ExecutorOption {
	return func(c *executorConfig) {
		c.sandbox = &cfg
	}
}

// WithLogger sets the logger for the Executor and the native calls it runs.
func WithLogger(l *zap.Logger) ExecutorOption {
	return func(c *executorConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// Memory limit constants for convenience.
const (
	MemoryLimit1MB   uint32 = 16    // 1 MB
	MemoryLimit16MB  uint32 = 256   // 16 MB
	MemoryLimit64MB  uint32 = 1024  // 64 MB
	MemoryLimit256MB uint32 = 4096  // 256 MB
	MemoryLimit1GB   uint32 = 16384 // 1 GB
)
