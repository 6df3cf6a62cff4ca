package host

import (
	"context"
	"sort"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	canisterruntime "github.com/wippyai/canister-runtime"
	"github.com/wippyai/canister-runtime/errors"
	"github.com/wippyai/canister-runtime/ledger"
	"github.com/wippyai/canister-runtime/memory"
	"github.com/wippyai/canister-runtime/message"
	"github.com/wippyai/canister-runtime/stable"
)

// ModuleName is the import namespace the surface serves.
const ModuleName = "ic0"

// Handler implements one behavioral system call.
type Handler func(s *Surface, c *Call)

// PrintFunc receives debug_print output.
type PrintFunc func(export, text string)

// Config wires a surface to the emulator state it acts on. Nil fields get
// fresh defaults.
type Config struct {
	Window  *memory.Window
	Message *message.Context
	Reply   *message.Reply
	Stable  *stable.Region
	Ledger  *ledger.Ledger
	Clock   canisterruntime.Clock
	Print   PrintFunc
}

// Surface is the ic0 import table plus the per-invocation state its
// handlers share.
type Surface struct {
	behaviors map[string]Handler
	window    *memory.Window
	msg       *message.Context
	reply     *message.Reply
	stable    *stable.Region
	ledger    *ledger.Ledger
	clock     canisterruntime.Clock
	print     PrintFunc
	trap      *errors.TrapError
	counters  map[uint64]uint64
	export    string
	version   uint64
	replied   bool
}

// New creates a surface with the full behavioral table.
func New(cfg Config) *Surface {
	s := &Surface{
		behaviors: make(map[string]Handler, len(behaviors)),
		window:    cfg.Window,
		msg:       cfg.Message,
		reply:     cfg.Reply,
		stable:    cfg.Stable,
		ledger:    cfg.Ledger,
		clock:     cfg.Clock,
		print:     cfg.Print,
		counters:  make(map[uint64]uint64),
	}
	if s.window == nil {
		s.window = memory.NewWindow(nil)
	}
	if s.msg == nil {
		s.msg = message.NewContext(nil, nil)
	}
	if s.reply == nil {
		s.reply = &message.Reply{}
	}
	if s.stable == nil {
		s.stable = stable.New(0)
	}
	if s.ledger == nil {
		s.ledger = ledger.New(0)
	}
	if s.clock == nil {
		s.clock = WallClock
	}
	for name, h := range behaviors {
		s.behaviors[name] = h
	}
	return s
}

// Handle overrides or adds a behavioral handler.
func (s *Surface) Handle(name string, h Handler) {
	s.behaviors[name] = h
}

// Has reports whether name has a behavioral handler.
func (s *Surface) Has(name string) bool {
	_, ok := s.behaviors[name]
	return ok
}

// Names returns the behavioral import names, sorted.
func (s *Surface) Names() []string {
	names := make([]string, 0, len(s.behaviors))
	for n := range s.behaviors {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Begin resets per-invocation state before calling export.
func (s *Surface) Begin(export string) {
	s.export = export
	s.trap = nil
	s.replied = false
	s.version++
}

// Trap returns the trap raised by the guest during the current
// invocation, or nil.
func (s *Surface) Trap() *errors.TrapError {
	return s.trap
}

// Replied reports whether the guest called msg_reply.
func (s *Surface) Replied() bool {
	return s.replied
}

// Window returns the byte window the handlers use.
func (s *Surface) Window() *memory.Window {
	return s.window
}

// Export registers one handler per function import of module on b, each
// with the signature from its definition, and returns how many were
// registered. Definitions from other modules are skipped.
//
// Imports of ModuleName are keyed by their bare name. Imports of any other
// module are keyed "module.name", so they fall to the stub tier unless a
// handler was added for that qualified name with Handle.
func (s *Surface) Export(b wazero.HostModuleBuilder, module string, imports []api.FunctionDefinition) int {
	n := 0
	seen := make(map[string]bool)
	for _, def := range imports {
		mod, name, ok := def.Import()
		if !ok || mod != module || seen[name] {
			continue
		}
		seen[name] = true

		key := name
		if mod != ModuleName {
			key = mod + "." + name
		}
		b.NewFunctionBuilder().
			WithGoModuleFunction(s.bind(key, def.ParamTypes(), def.ResultTypes()), def.ParamTypes(), def.ResultTypes()).
			WithName(name).
			Export(name)
		n++

		if !s.Has(key) {
			Logger().Debug("stubbing import", zap.String("name", key))
		}
	}
	return n
}

// bind builds the wazero callback for one import.
func (s *Surface) bind(name string, params, results []api.ValueType) api.GoModuleFunc {
	return func(_ context.Context, _ api.Module, stack []uint64) {
		c := &Call{Name: name, params: params, results: results, stack: stack}
		s.ledger.Record(name, c.values()...)

		h, ok := s.behaviors[name]
		if !ok {
			c.zero()
			return
		}
		h(s, c)
		if !c.done {
			c.zero()
		}
	}
}

// Invoke runs the handler for name directly, as if the guest had called
// it with the given 32-bit arguments. It is used by tests and tooling that
// exercise the surface without a guest.
func (s *Surface) Invoke(name string, args ...uint32) uint64 {
	params := make([]api.ValueType, len(args))
	stack := make([]uint64, max(len(args), 1))
	for i, a := range args {
		params[i] = api.ValueTypeI32
		stack[i] = api.EncodeU32(a)
	}
	s.bind(name, params, []api.ValueType{api.ValueTypeI64})(context.Background(), nil, stack)
	return stack[0]
}
