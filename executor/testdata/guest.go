//go:build wasip1

// Sample guest that reaches native modules through the stderr protocol.
// Build with: GOOS=wasip1 GOARCH=wasm go build -o guest.wasm guest.go
//
// Each argument is a call of the form module.fn or module.fn=<json object>,
// for example:
//
//	nativebind run guest.wasm -- nativebind.initialize 'sandbox.kv_set={"key":"a","value":1}'
package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
)

type reply struct {
	ID    string          `json:"id"`
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error"`
}

func main() {
	stdin := bufio.NewScanner(os.Stdin)

	for i, arg := range os.Args[1:] {
		target, rawArg, _ := strings.Cut(arg, "=")
		module, fn, ok := strings.Cut(target, ".")
		if !ok {
			fmt.Fprintf(os.Stderr, "bad call %q\n", arg)
			os.Exit(2)
		}

		args := []json.RawMessage{}
		if rawArg != "" {
			args = append(args, json.RawMessage(rawArg))
		}
		req, _ := json.Marshal(map[string]any{
			"id":     strconv.Itoa(i),
			"module": module,
			"fn":     fn,
			"args":   args,
		})
		fmt.Fprintf(os.Stderr, "\x00NATIVE:%s\x00", req)

		if !stdin.Scan() {
			fmt.Fprintln(os.Stderr, "no reply")
			os.Exit(1)
		}
		var r reply
		if err := json.Unmarshal(stdin.Bytes(), &r); err != nil {
			fmt.Fprintf(os.Stderr, "bad reply: %v\n", err)
			os.Exit(1)
		}
		if r.Error != "" {
			fmt.Printf("%s: error: %s\n", target, r.Error)
			continue
		}
		fmt.Printf("%s: %s\n", target, r.Data)
	}
}
