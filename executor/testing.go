package executor

import (
	"sync"

	"github.com/caffeineduck/nativebind/addon"
	"github.com/caffeineduck/nativebind/binding"
	"github.com/caffeineduck/nativebind/hostfunc"
)

// Shared executor for tests that only need the default modules.
var (
	testExecutor     *Executor
	testExecutorOnce sync.Once
	testExecutorErr  error
)

// GetTestExecutor returns a shared executor with the nativebind module and a
// clock-only sandbox module loaded. It is created once and reused.
func GetTestExecutor() (*Executor, error) {
	testExecutorOnce.Do(func() {
		testExecutor, testExecutorErr = New(
			WithModule(addon.ModuleName, binding.NewModule(addon.ModuleName, addon.Exports).Register),
			WithSandbox(hostfunc.Config{}),
		)
	})
	return testExecutor, testExecutorErr
}

// CloseTestExecutor closes the shared test executor.
// Call this in TestMain if needed, but typically not necessary.
func CloseTestExecutor() {
	if testExecutor != nil {
		testExecutor.Close()
		testExecutor = nil
		testExecutorOnce = sync.Once{} // Reset for next test run
	}
}
