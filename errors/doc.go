// Package errors provides structured error types for the canister runtime.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// Load, compile and instantiate errors are fatal to a run; traps are reported per
// entry point through TrapError and never abort the run.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseDispatch, errors.KindNotFound).
//		Export("canister_query greet").
//		Detail("export not present").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.FileNotFound(path, cause)
//	err := errors.Instantiation(cause)
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
