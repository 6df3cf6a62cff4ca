package engine

import (
	"context"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/canister-runtime/errors"
	"github.com/wippyai/canister-runtime/internal/wasmbin"
)

// DefaultInstanceName is the wazero module name given to the guest.
const DefaultInstanceName = "canister"

// Host supplies the guest's function imports.
type Host interface {
	// Export registers a function on b for each definition in imports
	// that belongs to module and returns how many were registered.
	Export(b wazero.HostModuleBuilder, module string, imports []api.FunctionDefinition) int
}

// InstanceConfig holds configuration for module instantiation
type InstanceConfig struct {
	Host Host
	// Bind is called with the memory the guest will use: first with a
	// host-provided memory before the guest starts, then with the guest's
	// own memory once it is instantiated.
	Bind func(api.Memory)
	Name string
}

// Instance is a live guest plus the host modules created for it.
type Instance struct {
	engine   *Engine
	guest    api.Module
	hosts    []api.Module
	provided api.Memory
}

// Instantiate links mod against cfg.Host and instantiates it. One host
// module is created per imported module name, each served by cfg.Host.
// A memory import is satisfied with a host-provided memory; it fails with a
// MissingImportsError when its module also supplies functions, since one
// wazero module cannot hold both.
func (e *Engine) Instantiate(ctx context.Context, mod *Module, cfg InstanceConfig) (*Instance, error) {
	if mod == nil {
		return nil, errors.NotInitialized(errors.PhaseInstantiate, "module")
	}
	if cfg.Host == nil {
		return nil, errors.NotInitialized(errors.PhaseInstantiate, "host")
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.live != nil {
		return nil, errors.New(errors.PhaseInstantiate, errors.KindBusy).
			Detail("engine already has a live instance").
			Build()
	}

	if missing := conflictingImports(mod); len(missing) > 0 {
		return nil, errors.NewMissingImportsError(missing)
	}

	inst := &Instance{engine: e}
	fail := func(err error) (*Instance, error) {
		inst.closeModules(ctx)
		return nil, err
	}

	if def, ok := mod.MemoryImport(); ok {
		mem, hostMod, err := e.provideMemory(ctx, def)
		if err != nil {
			return fail(err)
		}
		inst.hosts = append(inst.hosts, hostMod)
		inst.provided = mem
		if cfg.Bind != nil {
			cfg.Bind(mem)
		}
	}

	imports := mod.Imports()
	for _, module := range importModules(imports) {
		builder := e.runtime.NewHostModuleBuilder(module)
		n := cfg.Host.Export(builder, module, imports)
		if n == 0 {
			continue
		}
		hostMod, err := builder.Instantiate(ctx)
		if err != nil {
			return fail(errors.Wrap(errors.PhaseInstantiate, errors.KindInstantiation, err,
				"instantiate host module "+module))
		}
		inst.hosts = append(inst.hosts, hostMod)
		Logger().Debug("host module linked",
			zap.String("module", module),
			zap.Int("functions", n))
	}

	name := cfg.Name
	if name == "" {
		name = DefaultInstanceName
	}
	// Canister entry points are driven explicitly; never auto-run _start.
	modCfg := wazero.NewModuleConfig().WithName(name).WithStartFunctions()
	guest, err := e.runtime.InstantiateModule(ctx, mod.compiled, modCfg)
	if err != nil {
		return fail(errors.Instantiation(err))
	}
	inst.guest = guest

	if cfg.Bind != nil {
		if mem := inst.Memory(); mem != nil {
			cfg.Bind(mem)
		}
	}

	e.live = inst
	return inst, nil
}

// importModules returns the distinct module names of imports in order of
// first appearance.
func importModules(imports []api.FunctionDefinition) []string {
	var mods []string
	seen := make(map[string]bool)
	for _, def := range imports {
		m, _, _ := def.Import()
		if !seen[m] {
			seen[m] = true
			mods = append(mods, m)
		}
	}
	return mods
}

// conflictingImports reports the memory import, as "module.name", when its
// module also has function imports.
func conflictingImports(mod *Module) []string {
	def, ok := mod.MemoryImport()
	if !ok {
		return nil
	}
	memMod, name, _ := def.Import()
	for _, m := range importModules(mod.Imports()) {
		if m == memMod {
			return []string{memMod + "." + name}
		}
	}
	return nil
}

// provideMemory instantiates a module exporting a memory that satisfies
// def. The initial size is the larger of the import's minimum and the
// configured host pages, capped by the import's maximum.
func (e *Engine) provideMemory(ctx context.Context, def api.MemoryDefinition) (api.Memory, api.Module, error) {
	modName, name, _ := def.Import()

	pages := max(def.Min(), e.cfg.HostMemoryPages)
	limits := wasmbin.Limits{Min: pages}
	if hi, ok := def.Max(); ok {
		limits.Max, limits.HasMax = hi, true
		if limits.Min > hi {
			limits.Min = hi
		}
	}
	if e.cfg.MemoryLimitPages > 0 && limits.Min > e.cfg.MemoryLimitPages {
		limits.Min = max(def.Min(), e.cfg.MemoryLimitPages)
	}

	hostMod, err := e.runtime.InstantiateWithConfig(ctx, wasmbin.MemoryModule(name, limits),
		wazero.NewModuleConfig().WithName(modName))
	if err != nil {
		return nil, nil, errors.New(errors.PhaseInstantiate, errors.KindMissingMemory).
			Detail("provide memory %s.%s (%d pages)", modName, name, limits.Min).
			Cause(err).
			Build()
	}

	mem := hostMod.ExportedMemory(name)
	if mem == nil {
		_ = hostMod.Close(ctx)
		return nil, nil, errors.New(errors.PhaseInstantiate, errors.KindMissingMemory).
			Detail("provided module does not export %q", name).
			Build()
	}

	Logger().Debug("memory provided",
		zap.String("import", modName+"."+name),
		zap.Uint32("pages", limits.Min))
	return mem, hostMod, nil
}

// Memory returns the guest's memory: its "memory" export when present,
// else its memory 0, else the host-provided memory.
func (i *Instance) Memory() api.Memory {
	if i.guest != nil {
		if mem := i.guest.ExportedMemory("memory"); mem != nil {
			return mem
		}
		if mem := i.guest.Memory(); mem != nil {
			return mem
		}
	}
	return i.provided
}

// Function returns the exported function name, or nil.
func (i *Instance) Function(name string) api.Function {
	if i.guest == nil {
		return nil
	}
	return i.guest.ExportedFunction(name)
}

// Closed reports whether the guest is gone, e.g. closed by the engine
// when an interruptible call's context ended.
func (i *Instance) Closed() bool {
	return i.guest == nil || i.guest.IsClosed()
}

// Provided reports whether the engine supplied the guest's memory.
func (i *Instance) Provided() bool {
	return i.provided != nil
}

func (i *Instance) closeModules(ctx context.Context) error {
	var firstErr error
	if i.guest != nil {
		if err := i.guest.Close(ctx); err != nil {
			firstErr = err
		}
		i.guest = nil
	}
	for n := len(i.hosts) - 1; n >= 0; n-- {
		if err := i.hosts[n].Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	i.hosts = nil
	i.provided = nil
	return firstErr
}

// Close closes the guest and its host modules, freeing the engine for the
// next instance.
func (i *Instance) Close(ctx context.Context) error {
	err := i.closeModules(ctx)

	i.engine.mu.Lock()
	if i.engine.live == i {
		i.engine.live = nil
	}
	i.engine.mu.Unlock()
	return err
}
