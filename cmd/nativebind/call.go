package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var callCmd = &cobra.Command{
	Use:   "call <module> <fn> [json-arg...]",
	Short: "Invoke one native export",
	Long: `Invoke one native export and print its result as JSON.

Each argument after the function name is parsed as JSON:
  nativebind call nativebind initialize
  nativebind call sandbox time_now '{}'
  nativebind call --kv-dir ./data sandbox kv_get '{"key":"a"}'`,
	Args: cobra.MinimumNArgs(2),
	RunE: runCall,
}

func init() {
	addSandboxFlags(callCmd)
	rootCmd.AddCommand(callCmd)
}

func runCall(cmd *cobra.Command, args []string) error {
	module, fn := args[0], args[1]

	callArgs := make([]any, 0, len(args)-2)
	for i, raw := range args[2:] {
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return fmt.Errorf("argument %d: invalid json: %w", i+1, err)
		}
		callArgs = append(callArgs, v)
	}

	exec, closeExec, err := newExecutor(cmd)
	if err != nil {
		return err
	}
	defer closeExec()

	result, err := exec.Call(cmd.Context(), module, fn, callArgs...)
	if err != nil {
		return err
	}
	return writeJSON(cmd, result)
}

// writeJSON prints v, indented when stdout is a terminal.
func writeJSON(cmd *cobra.Command, v any) error {
	out := cmd.OutOrStdout()

	var data []byte
	var err error
	if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		data, err = json.MarshalIndent(v, "", "  ")
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	_, err = fmt.Fprintf(out, "%s\n", data)
	return err
}
