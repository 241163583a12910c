package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/caffeineduck/nativebind/addon"
	"github.com/caffeineduck/nativebind/binding"
	"github.com/caffeineduck/nativebind/executor"
	"github.com/caffeineduck/nativebind/hostfunc"
)

var rootCmd = &cobra.Command{
	Use:   "nativebind",
	Short: "Load native Go modules into a WebAssembly host",
	Long: `nativebind - Register native Go exports with a WebAssembly host.

Two native modules are available: "nativebind", which exports initialize,
and "sandbox", which exports time_now plus the key-value, HTTP and
filesystem functions enabled with flags. List the exports, call one from
the command line, run a WASI guest against them, or serve them over HTTP.`,
	SilenceUsage:      true,
	PersistentPreRunE: setupLogging,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log loader and call diagnostics to stderr")
	rootCmd.PersistentFlags().Bool("no-cache", false, "Disable compilation cache")
	rootCmd.PersistentFlags().String("memory", "256mb", "Memory limit: 1mb, 16mb, 64mb, 256mb, 1gb")
}

// logger is the process logger, installed by setupLogging.
var logger = zap.NewNop()

func setupLogging(cmd *cobra.Command, _ []string) error {
	verbose, _ := cmd.Flags().GetBool("verbose")
	if !verbose {
		logger = zap.NewNop()
	} else {
		l, err := zap.NewDevelopment()
		if err != nil {
			return fmt.Errorf("create logger: %w", err)
		}
		logger = l
	}
	binding.SetLogger(logger)
	hostfunc.SetLogger(logger)
	return nil
}

// addSandboxFlags adds the capability flags of the sandbox module.
func addSandboxFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("kv", false, "Enable key-value store")
	cmd.Flags().String("kv-dir", "", "Persist the key-value store in this directory (implies --kv)")
	cmd.Flags().StringSlice("allow-host", nil, "Allow HTTP to host (repeatable)")
	cmd.Flags().StringSlice("mount", nil, "Mount filesystem virtual:host:mode (repeatable)")

	// Security limits
	cmd.Flags().Int("http-max-url", hostfunc.DefaultMaxURLLength, "Max HTTP URL length")
	cmd.Flags().Int64("http-max-body", hostfunc.DefaultMaxBodySize, "Max HTTP response body size")
	cmd.Flags().Duration("http-timeout", hostfunc.DefaultRequestTimeout, "HTTP request timeout")
	cmd.Flags().Int64("fs-max-file", hostfunc.DefaultMaxFileSize, "Max file read size")
	cmd.Flags().Int64("fs-max-write", hostfunc.DefaultMaxWriteSize, "Max file write size")
	cmd.Flags().Int("fs-max-path", hostfunc.DefaultMaxPathLength, "Max path length")
}

// sandboxConfig builds the sandbox capabilities from flags. The returned
// close function releases the key-value store.
func sandboxConfig(cmd *cobra.Command) (hostfunc.Config, func() error, error) {
	enableKV, _ := cmd.Flags().GetBool("kv")
	kvDir, _ := cmd.Flags().GetString("kv-dir")
	allowedHosts, _ := cmd.Flags().GetStringSlice("allow-host")
	mounts, _ := cmd.Flags().GetStringSlice("mount")

	httpMaxURL, _ := cmd.Flags().GetInt("http-max-url")
	httpMaxBody, _ := cmd.Flags().GetInt64("http-max-body")
	httpTimeout, _ := cmd.Flags().GetDuration("http-timeout")
	fsMaxFile, _ := cmd.Flags().GetInt64("fs-max-file")
	fsMaxWrite, _ := cmd.Flags().GetInt64("fs-max-write")
	fsMaxPath, _ := cmd.Flags().GetInt("fs-max-path")

	var cfg hostfunc.Config
	closeKV := func() error { return nil }

	for _, spec := range mounts {
		m, err := hostfunc.ParseMount(spec)
		if err != nil {
			return cfg, closeKV, err
		}
		cfg.Mounts = append(cfg.Mounts, m)
	}
	cfg.FSOptions = []hostfunc.FSOption{
		hostfunc.WithMaxFileSize(fsMaxFile),
		hostfunc.WithMaxWriteSize(fsMaxWrite),
		hostfunc.WithMaxPathLength(fsMaxPath),
	}

	if len(allowedHosts) > 0 {
		cfg.HTTP = &hostfunc.HTTPConfig{
			AllowedHosts:   allowedHosts,
			MaxBodySize:    httpMaxBody,
			MaxURLLength:   httpMaxURL,
			RequestTimeout: httpTimeout,
		}
	}

	switch {
	case kvDir != "":
		kv, err := hostfunc.OpenKVStore(kvDir)
		if err != nil {
			return cfg, closeKV, err
		}
		cfg.KV = kv
		closeKV = kv.Close
	case enableKV:
		cfg.KV = hostfunc.NewKVStore()
	}

	return cfg, closeKV, nil
}

// newExecutor creates an executor with both native modules loaded. The
// returned close function shuts down the executor and the sandbox storage
// and resets the addon so a later executor in this process can load it.
func newExecutor(cmd *cobra.Command) (*executor.Executor, func(), error) {
	noCache, _ := cmd.Flags().GetBool("no-cache")
	memoryLimit, _ := cmd.Flags().GetString("memory")

	sandbox, closeKV, err := sandboxConfig(cmd)
	if err != nil {
		return nil, nil, err
	}

	opts := []executor.ExecutorOption{
		executor.WithLogger(logger),
		executor.WithModule(addon.ModuleName, addon.Register),
		executor.WithSandbox(sandbox),
	}
	if !noCache {
		opts = append(opts, executor.WithDiskCache())
	}
	if pages := parseMemoryLimit(memoryLimit); pages > 0 {
		opts = append(opts, executor.WithMemoryLimit(pages))
	}

	exec, err := executor.New(opts...)
	if err != nil {
		addon.Reset()
		closeKV()
		return nil, nil, err
	}

	return exec, func() {
		if err := exec.Close(); err != nil {
			logger.Warn("close executor", zap.Error(err))
		}
		if err := closeKV(); err != nil {
			logger.Warn("close kv store", zap.Error(err))
		}
		addon.Reset()
		_ = logger.Sync()
	}, nil
}

func parseMemoryLimit(s string) uint32 {
	switch strings.ToLower(s) {
	case "1mb":
		return executor.MemoryLimit1MB
	case "16mb":
		return executor.MemoryLimit16MB
	case "64mb":
		return executor.MemoryLimit64MB
	case "256mb":
		return executor.MemoryLimit256MB
	case "1gb":
		return executor.MemoryLimit1GB
	default:
		return 0 // use default
	}
}
