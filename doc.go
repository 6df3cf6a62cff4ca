// Package canisterruntime emulates the host side of a canister execution
// environment so compiled canister WebAssembly modules can be exercised
// without a replica.
//
// # Architecture Overview
//
//	canisterruntime/     Root package with the Clock contract
//	├── runtime/         Runtime: emulator state and the per-call state machine
//	├── host/            The emulated ic0 system-call table
//	├── engine/          wazero integration (compile, memory provider, instantiate)
//	├── driver/          Entry point discovery, run loop and text report
//	├── memory/          Clamped byte window over guest memory
//	├── message/         Message context and reply accumulator
//	├── stable/          Stable memory region
//	├── ledger/          Ordered log of system calls per invocation
//	├── config/          Flag, file and environment configuration
//	└── errors/          Structured error types
//
// # Quick Start
//
//	eng, err := engine.New(ctx, engine.Config{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer eng.Close(ctx)
//
//	mod, err := eng.Load(ctx, wasmBytes)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	rt, err := runtime.New(ctx, eng, mod, runtime.Options{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rt.Close(ctx)
//
//	out, err := rt.Invoke(ctx, runtime.Call{Export: "canister_query greet", Method: "greet"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("%x\n", out.Reply)
//
// # Thread Safety
//
// A Runtime owns one guest instance and runs one entry point at a time.
// Invocations are serialized; the emulator is not meant for concurrent use.
//
// # Memory Model
//
// Stable memory persists across entry points within one Runtime and is
// discarded when the process exits. Message context, reply data and the
// call ledger are reset before every entry point.
package canisterruntime
