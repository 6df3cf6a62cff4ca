// Package host implements the ic0 system-call surface offered to a guest.
//
// The surface has two tiers. Behavioral handlers emulate the calls a
// canister needs to read its message, reply, use stable memory, print and
// trap. Every other ic0 import the guest declares is bound to a stub that
// writes zero to its results. Both tiers are registered with the exact
// signature the guest declared, so i32 and i64 variants of a name link
// alike, and both append one ledger entry per invocation before acting.
//
// The trap import records a TrapError on the surface and unwinds the
// guest by panicking; wazero returns the unwind to the caller of the
// export as an error, and the caller consults Surface.Trap.
package host
