package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/caffeineduck/nativebind/executor"
	"github.com/caffeineduck/nativebind/wasmhost"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start HTTP server for native calls",
	Long: `Start an HTTP server exposing the native modules.

Endpoints:
  GET    /modules              List modules and their exports
  POST   /call/{module}/{fn}   Call an export, body is a JSON array of arguments
  POST   /run                  Run a WASI guest, body is the .wasm binary
  GET    /health               Health check`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntP("port", "p", 8080, "Port to listen on")
	serveCmd.Flags().Duration("timeout", 30*time.Second, "Default execution timeout")
	addSandboxFlags(serveCmd)
	rootCmd.AddCommand(serveCmd)
}

const maxWasmSize = 64 << 20

type callResponse struct {
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

type runResponse struct {
	Output     string `json:"output"`
	Stderr     string `json:"stderr,omitempty"`
	Calls      int    `json:"calls"`
	DurationMs int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

type server struct {
	exec    *executor.Executor
	timeout time.Duration
	logger  *zap.Logger
}

func newRouter(exec *executor.Executor, timeout time.Duration, logger *zap.Logger) *chi.Mux {
	s := &server{exec: exec, timeout: timeout, logger: logger}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(s.logRequests)

	r.Get("/health", s.handleHealth)
	r.Get("/modules", s.handleModules)
	r.Post("/call/{module}/{fn}", s.handleCall)
	r.Post("/run", s.handleRun)
	return r
}

func (s *server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			zap.String("id", chimw.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)))
	})
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *server) handleModules(w http.ResponseWriter, r *http.Request) {
	modules := make(map[string][]string)
	for _, name := range s.exec.Modules() {
		if exports, ok := s.exec.Exports(name); ok {
			modules[name] = exports.Names()
		}
	}
	writeResponse(w, http.StatusOK, modules)
}

func (s *server) handleCall(w http.ResponseWriter, r *http.Request) {
	module := chi.URLParam(r, "module")
	fn := chi.URLParam(r, "fn")

	var args []any
	if err := json.NewDecoder(r.Body).Decode(&args); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "invalid json: body must be an array of arguments", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	result, err := s.exec.Call(ctx, module, fn, args...)
	switch {
	case errors.Is(err, executor.ErrUnknownModule), errors.Is(err, wasmhost.ErrUnknownExport):
		writeResponse(w, http.StatusNotFound, callResponse{Error: err.Error()})
	case err != nil:
		writeResponse(w, http.StatusUnprocessableEntity, callResponse{Error: err.Error()})
	default:
		writeResponse(w, http.StatusOK, callResponse{Data: result})
	}
}

func (s *server) handleRun(w http.ResponseWriter, r *http.Request) {
	wasm, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWasmSize))
	if err != nil {
		http.Error(w, "read body: "+err.Error(), http.StatusRequestEntityTooLarge)
		return
	}
	if len(wasm) == 0 {
		http.Error(w, "wasm body required", http.StatusBadRequest)
		return
	}

	query := r.URL.Query()
	timeout := s.timeout
	if v := query.Get("timeout"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			http.Error(w, "invalid timeout", http.StatusBadRequest)
			return
		}
		timeout = d
	}

	result := s.exec.Run(r.Context(), wasm,
		executor.WithTimeout(timeout),
		executor.WithArgs(query["arg"]...))

	resp := runResponse{
		Output:     result.Output,
		Stderr:     result.Stderr,
		Calls:      result.Calls,
		DurationMs: result.Duration.Milliseconds(),
	}
	if result.Error != nil {
		resp.Error = result.Error.Error()
	}
	writeResponse(w, http.StatusOK, resp)
}

func writeResponse(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func runServe(cmd *cobra.Command, _ []string) error {
	port, _ := cmd.Flags().GetInt("port")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	exec, closeExec, err := newExecutor(cmd)
	if err != nil {
		return err
	}
	defer closeExec()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           newRouter(exec, timeout, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(cmd.ErrOrStderr(), "nativebind server listening on %s\n", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
