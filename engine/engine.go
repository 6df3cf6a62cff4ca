package engine

import (
	"context"
	stderrors "errors"
	"io/fs"
	"os"
	"sort"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/canister-runtime/errors"
	"github.com/wippyai/canister-runtime/internal/wasmbin"
)

// DefaultHostMemoryPages is the initial size of a host-provided memory
// when the guest imports one.
const DefaultHostMemoryPages = 100

// Config holds configuration for engine creation
type Config struct {
	// MemoryLimitPages sets the maximum memory per instance in pages (64KB each).
	// 0 means default (65536 pages = 4GB).
	MemoryLimitPages uint32

	// HostMemoryPages is the minimum initial size of a memory the engine
	// provides for a guest that imports one. 0 means DefaultHostMemoryPages.
	HostMemoryPages uint32

	// Interruptible lets a cancelled or expired call context abort guest
	// execution. wazero closes the guest when that happens, so later calls
	// on the same instance fail.
	Interruptible bool
}

// Engine compiles canister modules and instantiates them against a host
// surface. A wazero runtime resolves imports by module name, so at most
// one instance is live per engine at a time.
type Engine struct {
	runtime wazero.Runtime
	cfg     Config
	live    *Instance
	mu      sync.Mutex
}

// New creates a new wazero-based engine
func New(ctx context.Context, cfg Config) (*Engine, error) {
	runtimeCfg := wazero.NewRuntimeConfig()
	if cfg.MemoryLimitPages > 0 {
		runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
	}
	if cfg.Interruptible {
		runtimeCfg = runtimeCfg.WithCloseOnContextDone(true)
	}
	if cfg.HostMemoryPages == 0 {
		cfg.HostMemoryPages = DefaultHostMemoryPages
	}
	return &Engine{
		runtime: wazero.NewRuntimeWithConfig(ctx, runtimeCfg),
		cfg:     cfg,
	}, nil
}

// Close releases the wazero runtime and every module compiled by it.
func (e *Engine) Close(ctx context.Context) error {
	return e.runtime.Close(ctx)
}

// LoadFile reads and compiles the module at path.
func (e *Engine) LoadFile(ctx context.Context, path string) (*Module, error) {
	bin, err := os.ReadFile(path)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return nil, errors.FileNotFound(path, err)
		}
		return nil, errors.Load("read "+path, err)
	}
	return e.Load(ctx, bin)
}

// Load compiles wasm bytes and records the export order.
func (e *Engine) Load(ctx context.Context, bin []byte) (*Module, error) {
	compiled, err := e.runtime.CompileModule(ctx, bin)
	if err != nil {
		return nil, errors.Compile(err)
	}

	exports, err := wasmbin.FunctionExports(bin)
	if err != nil {
		// wazero accepted the module, so fall back to its unordered view.
		Logger().Warn("export section unreadable, using sorted exports", zap.Error(err))
		exports = exports[:0]
		for name := range compiled.ExportedFunctions() {
			exports = append(exports, name)
		}
		sort.Strings(exports)
	}

	Logger().Debug("module compiled",
		zap.Int("bytes", len(bin)),
		zap.Int("exports", len(exports)),
		zap.Int("imports", len(compiled.ImportedFunctions())))

	return &Module{
		compiled: compiled,
		exports:  exports,
		size:     len(bin),
	}, nil
}

// Module is a compiled canister module.
type Module struct {
	compiled wazero.CompiledModule
	exports  []string
	size     int
}

// Exports returns exported function names in export-section order.
func (m *Module) Exports() []string {
	out := make([]string, len(m.exports))
	copy(out, m.exports)
	return out
}

// HasExport reports whether name is an exported function.
func (m *Module) HasExport(name string) bool {
	_, ok := m.compiled.ExportedFunctions()[name]
	return ok
}

// Imports returns the imported function definitions.
func (m *Module) Imports() []api.FunctionDefinition {
	return m.compiled.ImportedFunctions()
}

// MemoryImport returns the guest's memory import, if any.
func (m *Module) MemoryImport() (api.MemoryDefinition, bool) {
	mems := m.compiled.ImportedMemories()
	if len(mems) == 0 {
		return nil, false
	}
	return mems[0], true
}

// Size returns the binary size in bytes.
func (m *Module) Size() int {
	return m.size
}

// Close releases the compiled code.
func (m *Module) Close(ctx context.Context) error {
	return m.compiled.Close(ctx)
}
