package executor

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/puzpuzpuz/xsync/v4"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"github.com/tetratelabs/wazero/sys"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/caffeineduck/nativebind/binding"
	"github.com/caffeineduck/nativebind/hostfunc"
	"github.com/caffeineduck/nativebind/wasmhost"
)

var (
	ErrClosed        = errors.New("executor closed")
	ErrModuleLoaded  = errors.New("module already loaded")
	ErrLoadFailed    = errors.New("module load failed")
	ErrUnknownModule = errors.New("unknown module")
)

// Result holds the output and metadata from a guest run.
type Result struct {
	Output   string
	Stderr   string
	Calls    int
	Duration time.Duration
	Error    error
}

// Executor owns a wazero runtime, the native modules loaded into it, and a
// cache of compiled guests.
type Executor struct {
	runtime  wazero.Runtime
	cache    wazero.CompilationCache
	host     *wasmhost.Host
	logger   *zap.Logger
	modules  *xsync.Map[string, *wasmhost.Exports]
	compiled *lru.Cache[string, wazero.CompiledModule]
	compiles singleflight.Group

	loadMu sync.Mutex
	mu     sync.RWMutex
	closed bool
}

// New creates an Executor and loads the configured native modules.
func New(opts ...ExecutorOption) (*Executor, error) {
	cfg := defaultExecutorConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	ctx := context.Background()

	var cache wazero.CompilationCache
	var err error

	if cfg.diskCache {
		cacheDir := cfg.cacheDir
		if cacheDir == "" {
			cacheDir = defaultCacheDir()
		}
		cache, err = wazero.NewCompilationCacheWithDir(cacheDir)
		if err != nil {
			return nil, fmt.Errorf("create disk cache: %w", err)
		}
	}

	rtConfig := wazero.NewRuntimeConfig().WithCloseOnContextDone(true)
	if cache != nil {
		rtConfig = rtConfig.WithCompilationCache(cache)
	}
	if cfg.memoryLimitPages > 0 {
		rtConfig = rtConfig.WithMemoryLimitPages(cfg.memoryLimitPages)
	}

	rt := wazero.NewRuntimeWithConfig(ctx, rtConfig)
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
		err = multierr.Append(fmt.Errorf("instantiate WASI: %w", err), rt.Close(ctx))
		if cache != nil {
			err = multierr.Append(err, cache.Close(ctx))
		}
		return nil, err
	}

	compiled, err := lru.NewWithEvict(cfg.compiledCache, func(_ string, cm wazero.CompiledModule) {
		cm.Close(context.Background())
	})
	if err != nil {
		return nil, multierr.Append(fmt.Errorf("create compiled cache: %w", err), rt.Close(ctx))
	}

	e := &Executor{
		runtime:  rt,
		cache:    cache,
		host:     wasmhost.New(ctx, rt, wasmhost.WithLogger(cfg.logger)),
		logger:   cfg.logger,
		modules:  xsync.NewMap[string, *wasmhost.Exports](),
		compiled: compiled,
	}

	modules := cfg.modules
	if cfg.sandbox != nil {
		mod, err := hostfunc.NewModule(*cfg.sandbox)
		if err != nil {
			return nil, multierr.Append(err, e.Close())
		}
		modules = append(modules, moduleSpec{name: mod.Name(), hook: mod.Register})
	}
	for _, m := range modules {
		if _, err := e.Load(ctx, m.name, m.hook); err != nil {
			return nil, multierr.Append(err, e.Close())
		}
	}

	return e, nil
}

// Load installs a native module by calling its registration hook with a
// fresh exports object named name. A hook that returns nil has failed; the
// error carries the exception it left pending.
func (e *Executor) Load(ctx context.Context, name string, hook binding.Hook) (*wasmhost.Exports, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return nil, ErrClosed
	}

	// The host's exception state is shared by all loads.
	e.loadMu.Lock()
	defer e.loadMu.Unlock()

	exports := wasmhost.NewExports(name)
	if _, loaded := e.modules.LoadOrStore(name, exports); loaded {
		return nil, fmt.Errorf("%s: %w", name, ErrModuleLoaded)
	}

	env := e.host.Env()
	if hook(env, exports) == nil {
		e.modules.Delete(name)
		err := fmt.Errorf("%s: %w", name, ErrLoadFailed)
		if exc, pending, _ := env.PendingException(); pending {
			err = fmt.Errorf("%w: %v", err, exc)
		}
		e.logger.Warn("native module load failed", zap.String("module", name), zap.Error(err))
		return nil, err
	}

	e.logger.Debug("native module loaded",
		zap.String("module", name),
		zap.Strings("exports", exports.Names()))
	return exports, nil
}

// Exports returns the exports of a loaded module.
func (e *Executor) Exports(name string) (*wasmhost.Exports, bool) {
	return e.modules.Load(name)
}

// Modules returns the names of loaded modules in sorted order.
func (e *Executor) Modules() []string {
	var names []string
	e.modules.Range(func(name string, _ *wasmhost.Exports) bool {
		names = append(names, name)
		return true
	})
	sort.Strings(names)
	return names
}

// Call invokes one export of a loaded module from Go.
func (e *Executor) Call(ctx context.Context, module, fn string, args ...any) (any, error) {
	exports, ok := e.Exports(module)
	if !ok {
		return nil, fmt.Errorf("%s: %w", module, ErrUnknownModule)
	}
	return exports.Call(ctx, fn, args...)
}

// Run executes a WASI guest. The guest reaches loaded native modules through
// the stderr call protocol.
func (e *Executor) Run(ctx context.Context, wasm []byte, opts ...Option) Result {
	start := time.Now()

	cfg := defaultRunConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.timeout)
		defer cancel()
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return Result{Error: ErrClosed, Duration: time.Since(start)}
	}

	compiled, err := e.getCompiled(ctx, wasm)
	if err != nil {
		return Result{Error: err, Duration: time.Since(start)}
	}

	var stdout bytes.Buffer
	stdinReader, stdinWriter := io.Pipe()
	protocol := newProtocolHandler(ctx, e.Exports, stdinWriter, e.logger)

	moduleConfig := wazero.NewModuleConfig().
		WithStdout(&stdout).
		WithStderr(protocol).
		WithStdin(stdinReader).
		WithArgs(append([]string{"guest"}, cfg.args...)...).
		WithName("")
	for _, kv := range cfg.env {
		moduleConfig = moduleConfig.WithEnv(kv[0], kv[1])
	}

	mod, err := e.runtime.InstantiateModule(ctx, compiled, moduleConfig)
	if mod != nil {
		mod.Close(ctx)
	}
	stdinReader.Close()
	protocol.close()

	result := Result{
		Output:   stdout.String(),
		Stderr:   protocol.Stderr(),
		Calls:    protocol.Calls(),
		Duration: time.Since(start),
	}

	var exitErr *sys.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == 0 {
		err = nil
	}
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			result.Error = fmt.Errorf("timeout after %v", cfg.timeout)
		} else {
			result.Error = fmt.Errorf("execution failed: %w", err)
		}
	}

	e.logger.Debug("guest run finished",
		zap.Duration("duration", result.Duration),
		zap.Int("calls", result.Calls),
		zap.Error(result.Error))
	return result
}

// getCompiled returns a cached compiled module, compiling if necessary.
// Concurrent runs of the same binary share one compilation.
func (e *Executor) getCompiled(ctx context.Context, wasm []byte) (wazero.CompiledModule, error) {
	sum := sha256.Sum256(wasm)
	key := hex.EncodeToString(sum[:])

	if compiled, ok := e.compiled.Get(key); ok {
		return compiled, nil
	}

	v, err, _ := e.compiles.Do(key, func() (any, error) {
		if compiled, ok := e.compiled.Get(key); ok {
			return compiled, nil
		}
		compiled, err := e.runtime.CompileModule(ctx, wasm)
		if err != nil {
			return nil, fmt.Errorf("compile: %w", err)
		}
		e.compiled.Add(key, compiled)
		return compiled, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(wazero.CompiledModule), nil
}

// Close releases all resources held by the Executor.
func (e *Executor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true

	ctx := context.Background()

	e.compiled.Purge()
	err := e.runtime.Close(ctx)
	if e.cache != nil {
		err = multierr.Append(err, e.cache.Close(ctx))
	}
	return err
}

func defaultCacheDir() string {
	if dir := os.Getenv("XDG_CACHE_HOME"); dir != "" {
		return filepath.Join(dir, "nativebind")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".cache", "nativebind")
	}
	return filepath.Join(os.TempDir(), "nativebind-cache")
}
