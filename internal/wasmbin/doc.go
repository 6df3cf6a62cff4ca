// Package wasmbin provides WASM binary helpers used by the engine and by
// tests: LEB128 codecs, an export-section reader that preserves
// declaration order, and a small module builder for synthetic modules
// (the host-provided env.memory and guest fixtures).
package wasmbin
