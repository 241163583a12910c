package binding

import (
	"errors"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/caffeineduck/nativebind/napi"
)

// InstallationFailedMessage is the diagnostic thrown into the host when the
// batched install call fails.
const InstallationFailedMessage = "installation failed: (env.DefineProperties(exports, descriptors)) != napi_ok"

var (
	// ErrInstallation matches every *InstallError.
	ErrInstallation = errors.New("installation failed")

	ErrAlreadyLoaded      = errors.New("module already loaded")
	ErrPreviousLoadFailed = errors.New("previous load failed")
)

// InstallError reports a failed batched install. Cause is the host error.
type InstallError struct {
	Cause error
}

func (e *InstallError) Error() string {
	return InstallationFailedMessage + ": " + e.Cause.Error()
}

func (e *InstallError) Unwrap() []error {
	return []error{ErrInstallation, e.Cause}
}

// Hook is a module registration entry point: the host passes its
// environment and an empty exports object and gets back the populated
// exports, or nil when the load failed and an error has been thrown.
type Hook func(env *napi.Env, exports napi.Value) napi.Value

// Init installs every entry of t on exports with exactly one
// DefineProperties call. On success exports is returned unchanged in
// identity. On failure a single error is thrown into the host, no further
// host call is made, and the returned value is nil.
func Init(env *napi.Env, exports napi.Value, t Table) (napi.Value, error) {
	descs := t.Descriptors()

	if err := env.DefineProperties(exports, descs); err != nil {
		var installErr error = &InstallError{Cause: err}
		if throwErr := env.ThrowError("", InstallationFailedMessage); throwErr != nil {
			installErr = &InstallError{Cause: multierr.Append(err, throwErr)}
		}
		Logger().Debug("export installation failed",
			zap.Int("exports", len(descs)),
			zap.Error(err))
		return nil, installErr
	}

	Logger().Debug("exports installed", zap.Strings("names", t.Names()))
	return exports, nil
}

// State is the lifecycle state of a Module.
type State int

const (
	Uninitialized State = iota
	Initialized
	Failed
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Initialized:
		return "initialized"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Module is a named export table that is loaded at most once.
type Module struct {
	name  string
	table Table

	mu    sync.Mutex
	state State
}

// NewModule returns an uninitialized module.
func NewModule(name string, t Table) *Module {
	return &Module{name: name, table: t}
}

func (m *Module) Name() string { return m.name }

func (m *Module) Table() Table { return m.table }

// State returns the current lifecycle state.
func (m *Module) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Init loads the module into exports. Only the first call talks to the
// host; later calls return ErrAlreadyLoaded, or ErrPreviousLoadFailed
// when that first call failed. Reset allows another attempt.
func (m *Module) Init(env *napi.Env, exports napi.Value) (napi.Value, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case Initialized:
		return nil, ErrAlreadyLoaded
	case Failed:
		return nil, ErrPreviousLoadFailed
	}

	v, err := Init(env, exports, m.table)
	if err != nil {
		m.state = Failed
		Logger().Debug("module load failed", zap.String("module", m.name), zap.Error(err))
		return nil, err
	}
	m.state = Initialized
	Logger().Info("module loaded", zap.String("module", m.name), zap.Int("exports", m.table.Len()))
	return v, nil
}

// Register is the module's Hook. A repeated load throws ErrAlreadyLoaded or
// ErrPreviousLoadFailed into the host; installation failures have already
// been thrown by Init.
func (m *Module) Register(env *napi.Env, exports napi.Value) napi.Value {
	v, err := m.Init(env, exports)
	if errors.Is(err, ErrAlreadyLoaded) || errors.Is(err, ErrPreviousLoadFailed) {
		if throwErr := env.ThrowError("", m.name+": "+err.Error()); throwErr != nil {
			Logger().Warn("could not report repeated load", zap.String("module", m.name), zap.Error(throwErr))
		}
		return nil
	}
	if err != nil {
		return nil
	}
	return v
}

// Reset returns the module to Uninitialized, for hosts that tear down and
// rebuild their environment.
func (m *Module) Reset() {
	m.mu.Lock()
	m.state = Uninitialized
	m.mu.Unlock()
}
