// Package runtime owns the emulator state for one canister instance and
// runs its entry points.
//
// # Quick Start
//
//	rt, err := runtime.New(ctx, eng, mod, runtime.Options{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rt.Close(ctx)
//
//	out, err := rt.Invoke(ctx, runtime.Call{Export: "canister_init"})
//	if err != nil {
//	    log.Fatal(err) // unknown export or closed runtime
//	}
//	if out.State == runtime.StateTrapped {
//	    fmt.Println(out.Trap.Message)
//	}
//
// # Invocation States
//
// Each Invoke moves through Dispatching (state reset, context prepared),
// Executing (guest running) and ends Completed or Trapped. A trap ends
// only the current invocation; stable memory and guest memory keep their
// contents for the next one.
//
// # State Lifetime
//
//	Stable region     - whole Runtime
//	Message context   - reset per invocation (method name, argument, reject)
//	Reply accumulator - reset per invocation, snapshot in Outcome.Reply
//	Call ledger       - reset per invocation, snapshot in Outcome.Ledger
package runtime
