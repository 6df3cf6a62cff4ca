package runtime

import (
	"context"
	"sync"
	"time"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	canisterruntime "github.com/wippyai/canister-runtime"
	"github.com/wippyai/canister-runtime/engine"
	"github.com/wippyai/canister-runtime/errors"
	"github.com/wippyai/canister-runtime/host"
	"github.com/wippyai/canister-runtime/ledger"
	"github.com/wippyai/canister-runtime/memory"
	"github.com/wippyai/canister-runtime/message"
	"github.com/wippyai/canister-runtime/stable"
)

// Options configures a Runtime. Zero values select defaults.
type Options struct {
	Clock canisterruntime.Clock
	Print host.PrintFunc
	// Caller and Canister override the mock principal.
	Caller   []byte
	Canister []byte
	Name     string
	// StableCapacityPages bounds stable memory; 0 means stable.DefaultCapacityPages.
	StableCapacityPages uint64
	// LedgerLimit keeps only the most recent entries per invocation; 0 keeps all.
	LedgerLimit int
	// CallTimeout bounds each invocation. It only interrupts the guest when
	// the engine was created with Interruptible set.
	CallTimeout time.Duration
}

// Call selects an entry point and the message it receives.
type Call struct {
	Export string
	// Method is what msg_method_name reports.
	Method string
	// Argument is the message payload; nil selects message.EmptyArgs.
	Argument []byte
}

// Outcome is the result of one invocation.
type Outcome struct {
	Trap     *errors.TrapError
	Reject   *message.Reject
	Export   string
	Method   string
	Results  []uint64
	Reply    []byte
	Ledger   []ledger.Entry
	Dropped  int
	Duration time.Duration
	State    State
	Replied  bool
}

// Trapped reports whether the invocation ended in a trap.
func (o *Outcome) Trapped() bool {
	return o.State == StateTrapped
}

// Runtime owns one guest instance and all emulator state shared by its
// invocations.
type Runtime struct {
	eng     *engine.Engine
	mod     *engine.Module
	inst    *engine.Instance
	surface *host.Surface
	window  *memory.Window
	msg     *message.Context
	reply   *message.Reply
	stable  *stable.Region
	ledger  *ledger.Ledger
	opts    Options
	state   State
	mu      sync.Mutex
}

// New builds the emulator state and instantiates mod on eng with the
// host surface bound to it.
func New(ctx context.Context, eng *engine.Engine, mod *engine.Module, opts Options) (*Runtime, error) {
	if eng == nil {
		return nil, errors.NotInitialized(errors.PhaseInstantiate, "engine")
	}

	r := &Runtime{
		eng:    eng,
		mod:    mod,
		window: memory.NewWindow(nil),
		msg:    message.NewContext(opts.Caller, opts.Canister),
		reply:  &message.Reply{},
		stable: stable.New(opts.StableCapacityPages),
		ledger: ledger.New(opts.LedgerLimit),
		opts:   opts,
	}
	r.surface = host.New(host.Config{
		Window:  r.window,
		Message: r.msg,
		Reply:   r.reply,
		Stable:  r.stable,
		Ledger:  r.ledger,
		Clock:   opts.Clock,
		Print:   opts.Print,
	})

	if err := r.instantiate(ctx); err != nil {
		return nil, err
	}

	Logger().Debug("runtime ready",
		zap.Bool("provided_memory", r.inst.Provided()),
		zap.Uint32("memory_bytes", r.window.Size()))
	return r, nil
}

func (r *Runtime) instantiate(ctx context.Context) error {
	inst, err := r.eng.Instantiate(ctx, r.mod, engine.InstanceConfig{
		Host: r.surface,
		Bind: r.window.Bind,
		Name: r.opts.Name,
	})
	if err != nil {
		return err
	}
	r.inst = inst
	return nil
}

// restart replaces a guest the engine closed after an interrupted call.
// The stable region survives; guest memory and globals start over and
// canister_init is not run again.
func (r *Runtime) restart(ctx context.Context, export string) {
	if !r.inst.Closed() {
		return
	}
	_ = r.inst.Close(ctx)
	r.inst = nil
	if err := r.instantiate(ctx); err != nil {
		Logger().Error("reinstantiate after interrupt failed",
			zap.String("export", export), zap.Error(err))
		return
	}
	Logger().Warn("guest reinstantiated after interrupt",
		zap.String("export", export),
		zap.Uint64("stable_pages", r.stable.SizePages()))
}

// Invoke runs one entry point. Guest traps are reported in the Outcome;
// the returned error is reserved for an unknown export or a closed
// runtime. A guest interrupted by CallTimeout or ctx is instantiated
// again so later entry points can run.
func (r *Runtime) Invoke(ctx context.Context, call Call) (*Outcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.inst == nil {
		return nil, errors.NotInitialized(errors.PhaseDispatch, "runtime")
	}
	if call.Export == "" {
		return nil, errors.InvalidInput(errors.PhaseDispatch, "empty export name")
	}
	fn := r.inst.Function(call.Export)
	if fn == nil {
		return nil, errors.NotFound(errors.PhaseDispatch, "export", call.Export)
	}

	r.state = StateDispatching
	r.msg.Reset(call.Method, call.Argument)
	r.reply.Reset()
	r.ledger.Reset()
	r.surface.Begin(call.Export)

	parent := ctx
	if r.opts.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.CallTimeout)
		defer cancel()
	}

	r.state = StateExecuting
	start := time.Now()
	results, err := call0(ctx, fn)
	out := &Outcome{
		Export:   call.Export,
		Method:   call.Method,
		Duration: time.Since(start),
	}

	if err != nil {
		out.State = StateTrapped
		// A host trap reaches us wrapped in the engine error, so it keeps
		// no Cause of its own; linking err would make the chain cyclic.
		out.Trap = r.surface.Trap()
		if out.Trap == nil {
			out.Trap = errors.EngineTrap(err)
			out.Trap.Export = call.Export
		}
		r.restart(context.WithoutCancel(parent), call.Export)
	} else {
		out.State = StateCompleted
		out.Results = results
	}

	out.Reply = r.reply.Bytes()
	out.Replied = r.surface.Replied()
	out.Ledger = r.ledger.Entries()
	out.Dropped = r.ledger.Dropped()
	out.Reject = r.msg.Reject()
	r.state = out.State

	fields := []zap.Field{
		zap.String("export", call.Export),
		zap.Stringer("state", out.State),
		zap.Int("reply_bytes", len(out.Reply)),
		zap.Int("host_calls", len(out.Ledger)+out.Dropped),
		zap.Duration("duration", out.Duration),
	}
	if out.Trap != nil {
		fields = append(fields, zap.String("trap", out.Trap.Message))
	}
	Logger().Debug("invocation finished", fields...)
	return out, nil
}

// call0 calls an entry point, which takes no parameters. A guest that
// declares parameters receives zeros.
func call0(ctx context.Context, fn api.Function) ([]uint64, error) {
	params := fn.Definition().ParamTypes()
	if len(params) == 0 {
		return fn.Call(ctx)
	}
	return fn.Call(ctx, make([]uint64, len(params))...)
}

// State returns the state of the last invocation.
func (r *Runtime) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Stable returns the stable region shared by all invocations.
func (r *Runtime) Stable() *stable.Region {
	return r.stable
}

// Window returns the byte window over guest memory.
func (r *Runtime) Window() *memory.Window {
	return r.window
}

// Surface returns the host surface, e.g. to override a handler.
func (r *Runtime) Surface() *host.Surface {
	return r.surface
}

// Close releases the guest instance.
func (r *Runtime) Close(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.inst == nil {
		return nil
	}
	err := r.inst.Close(ctx)
	r.inst = nil
	r.state = StateIdle
	return err
}
