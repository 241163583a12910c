package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/caffeineduck/nativebind/executor"
)

var runCmd = &cobra.Command{
	Use:   "run <file.wasm> [-- guest args]",
	Short: "Run a WASI guest against the native modules",
	Long: `Run a WASI (preview1) guest with both native modules loaded.

The guest reaches native exports through the stderr call protocol:
  nativebind run --kv guest.wasm -- 'sandbox.kv_set={"key":"a","value":1}'`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().Duration("timeout", 30*time.Second, "Execution timeout")
	runCmd.Flags().StringSlice("env", nil, "Guest environment variable KEY=VALUE (repeatable)")
	addSandboxFlags(runCmd)
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	timeout, _ := cmd.Flags().GetDuration("timeout")
	env, _ := cmd.Flags().GetStringSlice("env")

	wasm, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}

	runOpts := []executor.Option{
		executor.WithTimeout(timeout),
		executor.WithArgs(args[1:]...),
	}
	for _, kv := range env {
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			return fmt.Errorf("invalid env %q (expected KEY=VALUE)", kv)
		}
		runOpts = append(runOpts, executor.WithEnv(key, value))
	}

	exec, closeExec, err := newExecutor(cmd)
	if err != nil {
		return err
	}
	defer closeExec()

	result := exec.Run(cmd.Context(), wasm, runOpts...)
	fmt.Fprint(cmd.OutOrStdout(), result.Output)
	fmt.Fprint(cmd.ErrOrStderr(), result.Stderr)
	return result.Error
}
