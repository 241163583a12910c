package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var exportsCmd = &cobra.Command{
	Use:   "exports",
	Short: "List installed native exports",
	Long: `Load the native modules and print one module.name line per installed
export. Sandbox functions appear only when their capability is enabled.`,
	Args: cobra.NoArgs,
	RunE: runExports,
}

func init() {
	addSandboxFlags(exportsCmd)
	rootCmd.AddCommand(exportsCmd)
}

func runExports(cmd *cobra.Command, _ []string) error {
	exec, closeExec, err := newExecutor(cmd)
	if err != nil {
		return err
	}
	defer closeExec()

	out := cmd.OutOrStdout()
	for _, module := range exec.Modules() {
		exports, _ := exec.Exports(module)
		for _, name := range exports.Names() {
			fmt.Fprintf(out, "%s.%s\n", module, name)
		}
	}
	return nil
}
