package runtime

import (
	"bytes"
	"context"
	stderrors "errors"
	"strings"
	"testing"
	"time"

	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/canister-runtime/engine"
	"github.com/wippyai/canister-runtime/errors"
	"github.com/wippyai/canister-runtime/internal/wasmbin"
)

var (
	i32 = api.ValueTypeI32

	sigPtrLen    = []api.ValueType{i32, i32}
	sigCopy      = []api.ValueType{i32, i32, i32}
	resultI32    = []api.ValueType{i32}
	argPayload   = []byte("DIDL\x00\x01\x71")
	replyPayload = []byte{0x44, 0x49, 0x44, 0x4c, 0x00, 0x00, 0x00, 0x00}
)

// guest is a canister fixture exercising the common ic0 calls.
type guest struct {
	b                                        *wasmbin.ModuleBuilder
	argCopy, appendReply, reply, trap, print uint32
	grow, swrite, sread, methodSize          uint32
}

func newGuest() *guest {
	b := wasmbin.NewModuleBuilder()
	g := &guest{b: b}
	g.argCopy = b.ImportFunc("ic0", "msg_arg_data_copy", sigCopy, nil)
	g.appendReply = b.ImportFunc("ic0", "msg_reply_data_append", sigPtrLen, nil)
	g.reply = b.ImportFunc("ic0", "msg_reply", nil, nil)
	g.trap = b.ImportFunc("ic0", "trap", sigPtrLen, nil)
	g.print = b.ImportFunc("ic0", "debug_print", sigPtrLen, nil)
	g.grow = b.ImportFunc("ic0", "stable_grow", resultI32, resultI32)
	g.swrite = b.ImportFunc("ic0", "stable_write", sigCopy, nil)
	g.sread = b.ImportFunc("ic0", "stable_read", sigCopy, nil)
	g.methodSize = b.ImportFunc("ic0", "msg_method_name_size", nil, resultI32)
	return g
}

func (g *guest) export(name string, results []api.ValueType, code ...[]byte) {
	g.b.ExportFunc(name, g.b.Func(nil, results, nil, wasmbin.Code(code...)))
}

func c32(v int32) []byte { return wasmbin.I32Const(v) }

// standardGuest defines memory with fixtures at fixed offsets:
//
//	100: 16 bytes of 0xEE    200: "keep"    256: "boom"    512: reply payload
func standardGuest() []byte {
	g := newGuest()
	g.b.Memory(wasmbin.Limits{Min: 1}).ExportMemory("memory")
	g.b.Data(100, bytes.Repeat([]byte{0xEE}, 16))
	g.b.Data(200, []byte("keep"))
	g.b.Data(256, []byte("boom"))
	g.b.Data(512, replyPayload)

	g.export("canister_init", nil,
		c32(512), c32(8), wasmbin.Call(g.appendReply),
		wasmbin.Call(g.reply))
	g.export("canister_query copy", nil,
		c32(100), c32(4), c32(10), wasmbin.Call(g.argCopy),
		c32(100), c32(8), wasmbin.Call(g.appendReply),
		wasmbin.Call(g.reply))
	g.export("canister_query small", nil,
		c32(512), c32(2), wasmbin.Call(g.appendReply),
		wasmbin.Call(g.reply))
	g.export("canister_update save", nil,
		c32(1), wasmbin.Call(g.grow), wasmbin.Drop(),
		c32(0), c32(200), c32(4), wasmbin.Call(g.swrite))
	g.export("canister_query load", nil,
		c32(300), c32(0), c32(4), wasmbin.Call(g.sread),
		c32(300), c32(4), wasmbin.Call(g.appendReply),
		wasmbin.Call(g.reply))
	g.export("canister_query boom", nil,
		c32(512), c32(4), wasmbin.Call(g.appendReply),
		c32(256), c32(4), wasmbin.Call(g.trap),
		wasmbin.Call(g.reply))
	g.export("canister_query crash", nil, wasmbin.Unreachable())
	g.export("canister_query print", nil,
		c32(200), c32(4), wasmbin.Call(g.print))
	g.export("canister_query method", resultI32, wasmbin.Call(g.methodSize))
	return g.b.Build()
}

func newRuntime(t *testing.T, bin []byte, opts Options) *Runtime {
	t.Helper()
	return newRuntimeOn(t, engine.Config{}, bin, opts)
}

func newRuntimeOn(t *testing.T, cfg engine.Config, bin []byte, opts Options) *Runtime {
	t.Helper()
	ctx := context.Background()
	eng, err := engine.New(ctx, cfg)
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	t.Cleanup(func() { eng.Close(ctx) })

	mod, err := eng.Load(ctx, bin)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	rt, err := New(ctx, eng, mod, opts)
	if err != nil {
		t.Fatalf("runtime: %v", err)
	}
	t.Cleanup(func() { rt.Close(ctx) })
	return rt
}

func invoke(t *testing.T, rt *Runtime, call Call) *Outcome {
	t.Helper()
	out, err := rt.Invoke(context.Background(), call)
	if err != nil {
		t.Fatalf("Invoke(%s): %v", call.Export, err)
	}
	return out
}

func TestInvoke_InitReply(t *testing.T) {
	rt := newRuntime(t, standardGuest(), Options{})
	out := invoke(t, rt, Call{Export: "canister_init"})

	if out.State != StateCompleted {
		t.Fatalf("State = %s, trap = %v", out.State, out.Trap)
	}
	if !bytes.Equal(out.Reply, replyPayload) {
		t.Errorf("Reply = %x", out.Reply)
	}
	if !out.Replied {
		t.Error("Replied = false")
	}
	if len(out.Ledger) != 2 {
		t.Fatalf("Ledger = %v", out.Ledger)
	}
	if got := out.Ledger[0].String(); got != "msg_reply_data_append(512, 8)" {
		t.Errorf("ledger[0] = %s", got)
	}
	if rt.State() != StateCompleted {
		t.Errorf("runtime State = %s", rt.State())
	}
}

func TestInvoke_ArgCopyClampsWithoutZeroFill(t *testing.T) {
	rt := newRuntime(t, standardGuest(), Options{})
	out := invoke(t, rt, Call{Export: "canister_query copy", Method: "copy", Argument: argPayload})

	want := []byte{0x00, 0x01, 0x71, 0xEE, 0xEE, 0xEE, 0xEE, 0xEE}
	if !bytes.Equal(out.Reply, want) {
		t.Errorf("Reply = %x, want %x", out.Reply, want)
	}
}

func TestInvoke_ReplyIndependence(t *testing.T) {
	rt := newRuntime(t, standardGuest(), Options{})

	first := invoke(t, rt, Call{Export: "canister_init"})
	second := invoke(t, rt, Call{Export: "canister_query small", Method: "small"})

	if !bytes.Equal(second.Reply, replyPayload[:2]) {
		t.Errorf("second Reply = %x", second.Reply)
	}
	if !bytes.Equal(first.Reply, replyPayload) {
		t.Errorf("first Reply changed to %x", first.Reply)
	}
	if len(second.Ledger) != 2 {
		t.Errorf("second ledger carried entries: %v", second.Ledger)
	}
}

func TestInvoke_StableSharedAcrossInvocations(t *testing.T) {
	rt := newRuntime(t, standardGuest(), Options{StableCapacityPages: 2})

	invoke(t, rt, Call{Export: "canister_update save", Method: "save"})
	out := invoke(t, rt, Call{Export: "canister_query load", Method: "load"})

	if string(out.Reply) != "keep" {
		t.Errorf("Reply = %q", out.Reply)
	}
	if rt.Stable().SizePages() != 1 {
		t.Errorf("SizePages = %d", rt.Stable().SizePages())
	}
}

func TestInvoke_HostTrap(t *testing.T) {
	rt := newRuntime(t, standardGuest(), Options{})
	out := invoke(t, rt, Call{Export: "canister_query boom", Method: "boom"})

	if out.State != StateTrapped || !out.Trapped() {
		t.Fatalf("State = %s", out.State)
	}
	if out.Trap == nil || out.Trap.Message != "boom" || !out.Trap.Host {
		t.Fatalf("Trap = %+v", out.Trap)
	}
	if out.Trap.Export != "canister_query boom" {
		t.Errorf("Trap.Export = %q", out.Trap.Export)
	}
	if out.Replied {
		t.Error("msg_reply after trap should not run")
	}
	if len(out.Ledger) != 2 || out.Ledger[1].Name != "trap" {
		t.Errorf("partial ledger = %v", out.Ledger)
	}
	if !bytes.Equal(out.Reply, replyPayload[:4]) {
		t.Errorf("partial reply = %x", out.Reply)
	}

	next := invoke(t, rt, Call{Export: "canister_init"})
	if next.State != StateCompleted || next.Trap != nil {
		t.Errorf("invocation after trap: state %s trap %v", next.State, next.Trap)
	}
}

func TestInvoke_HostTrapErrorChain(t *testing.T) {
	rt := newRuntime(t, standardGuest(), Options{})
	out := invoke(t, rt, Call{Export: "canister_query boom", Method: "boom"})
	if out.Trap == nil {
		t.Fatal("expected trap")
	}

	var err error = out.Trap
	for depth := 0; err != nil; depth++ {
		if depth > 8 {
			t.Fatal("trap error chain does not terminate")
		}
		err = stderrors.Unwrap(err)
	}

	if stderrors.Is(out.Trap, context.DeadlineExceeded) {
		t.Error("host trap should not match DeadlineExceeded")
	}
	if !stderrors.Is(out.Trap, errors.New(errors.PhaseHost, errors.KindTrap).Build()) {
		t.Error("host trap should match the host phase")
	}
}

func TestInvoke_EngineTrap(t *testing.T) {
	rt := newRuntime(t, standardGuest(), Options{})
	out := invoke(t, rt, Call{Export: "canister_query crash"})

	if out.State != StateTrapped || out.Trap == nil {
		t.Fatalf("State = %s", out.State)
	}
	if out.Trap.Host {
		t.Error("unreachable should be an engine trap")
	}
	if !strings.Contains(out.Trap.Message, "unreachable") {
		t.Errorf("Message = %q", out.Trap.Message)
	}
	if !errors.IsTrap(out.Trap) {
		t.Error("IsTrap = false")
	}
}

func TestInvoke_TimeoutRestartsGuest(t *testing.T) {
	g := newGuest()
	g.b.Memory(wasmbin.Limits{Min: 1}).ExportMemory("memory")
	g.b.Data(200, []byte("keep"))
	g.export("canister_update save", nil,
		c32(1), wasmbin.Call(g.grow), wasmbin.Drop(),
		c32(0), c32(200), c32(4), wasmbin.Call(g.swrite))
	g.export("canister_update spin", nil, wasmbin.Spin())
	g.export("canister_query load", nil,
		c32(300), c32(0), c32(4), wasmbin.Call(g.sread),
		c32(300), c32(4), wasmbin.Call(g.appendReply),
		wasmbin.Call(g.reply))

	rt := newRuntimeOn(t, engine.Config{Interruptible: true}, g.b.Build(),
		Options{CallTimeout: 50 * time.Millisecond})

	if out := invoke(t, rt, Call{Export: "canister_update save"}); out.Trapped() {
		t.Fatalf("save trapped: %v", out.Trap)
	}

	out := invoke(t, rt, Call{Export: "canister_update spin"})
	if !out.Trapped() {
		t.Fatalf("spin State = %s", out.State)
	}
	if out.Trap.Host {
		t.Errorf("interrupt reported as host trap: %v", out.Trap)
	}

	out = invoke(t, rt, Call{Export: "canister_query load"})
	if out.Trapped() {
		t.Fatalf("load after interrupt trapped: %v", out.Trap)
	}
	if string(out.Reply) != "keep" {
		t.Errorf("Reply = %q", out.Reply)
	}
	if got := rt.Stable().SizePages(); got != 1 {
		t.Errorf("stable pages = %d", got)
	}
}

func TestInvoke_MethodName(t *testing.T) {
	rt := newRuntime(t, standardGuest(), Options{})
	out := invoke(t, rt, Call{Export: "canister_query method", Method: "method"})
	if len(out.Results) != 1 || out.Results[0] != uint64(len("method")) {
		t.Errorf("Results = %v", out.Results)
	}
}

func TestInvoke_DebugPrint(t *testing.T) {
	var got []string
	rt := newRuntime(t, standardGuest(), Options{
		Print: func(export, text string) { got = append(got, export+": "+text) },
	})
	invoke(t, rt, Call{Export: "canister_query print"})
	if len(got) != 1 || got[0] != "canister_query print: keep" {
		t.Errorf("prints = %v", got)
	}
}

func TestInvoke_UnknownExport(t *testing.T) {
	rt := newRuntime(t, standardGuest(), Options{})
	_, err := rt.Invoke(context.Background(), Call{Export: "canister_query nope"})

	var rerr *errors.Error
	if !stderrors.As(err, &rerr) || rerr.Kind != errors.KindNotFound {
		t.Fatalf("error = %v", err)
	}
}

func TestInvoke_EmptyExport(t *testing.T) {
	rt := newRuntime(t, standardGuest(), Options{})
	_, err := rt.Invoke(context.Background(), Call{})

	var rerr *errors.Error
	if !stderrors.As(err, &rerr) || rerr.Kind != errors.KindInvalidInput {
		t.Fatalf("error = %v", err)
	}
}

func TestInvoke_AfterClose(t *testing.T) {
	rt := newRuntime(t, standardGuest(), Options{})
	if err := rt.Close(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := rt.Invoke(context.Background(), Call{Export: "canister_init"}); err == nil {
		t.Error("expected error after Close")
	}
}

func TestInvoke_LedgerLimit(t *testing.T) {
	rt := newRuntime(t, standardGuest(), Options{LedgerLimit: 1})
	out := invoke(t, rt, Call{Export: "canister_init"})
	if len(out.Ledger) != 1 || out.Ledger[0].Name != "msg_reply" || out.Dropped != 1 {
		t.Errorf("Ledger = %v, Dropped = %d", out.Ledger, out.Dropped)
	}
}

func TestNew_ProvidedMemory(t *testing.T) {
	g := newGuest()
	g.b.ImportMemory("env", "memory", wasmbin.Limits{Min: 1})
	g.export("canister_query ping", nil,
		c32(0), c32(0), wasmbin.Call(g.appendReply),
		wasmbin.Call(g.reply))

	rt := newRuntime(t, g.b.Build(), Options{})
	if got := rt.Window().Size(); got != engine.DefaultHostMemoryPages*65536 {
		t.Errorf("window size = %d", got)
	}
	out := invoke(t, rt, Call{Export: "canister_query ping", Method: "ping"})
	if out.State != StateCompleted {
		t.Errorf("State = %s", out.State)
	}
}

func TestState_String(t *testing.T) {
	tests := map[State]string{
		StateIdle:        "idle",
		StateDispatching: "dispatching",
		StateExecuting:   "executing",
		StateCompleted:   "completed",
		StateTrapped:     "trapped",
		State(99):        "unknown",
	}
	for s, want := range tests {
		if got := s.String(); got != want {
			t.Errorf("State(%d) = %q, want %q", int(s), got, want)
		}
	}
}
