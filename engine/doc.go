// Package engine wraps wazero for canister modules.
//
// # Architecture
//
//	Engine   - owns the wazero runtime, compiles modules
//	Module   - a compiled module with its export order and imports
//	Instance - a live guest plus the host modules linked for it
//
// # Instantiation Flow
//
//  1. Engine.Load compiles the binary and reads the export section so
//     entry points can be enumerated in declaration order
//  2. Engine.Instantiate rejects imports outside the host's namespace,
//     provides a memory when the guest imports one, registers the host
//     functions with the guest's declared signatures and instantiates
//  3. InstanceConfig.Bind receives the memory the guest will use so the
//     host surface can reach it before any entry point runs
//
// A wazero runtime resolves imports by module name, so one Engine holds at
// most one live Instance. Close the instance to instantiate again.
package engine
