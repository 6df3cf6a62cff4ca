package wasmbin

import (
	"github.com/tetratelabs/wazero/api"
)

// Limits describes a memory's page bounds.
type Limits struct {
	Min    uint32
	Max    uint32
	HasMax bool
}

func (l Limits) encode() []byte {
	if l.HasMax {
		out := append([]byte{0x01}, EncodeULEB128(l.Min)...)
		return append(out, EncodeULEB128(l.Max)...)
	}
	return append([]byte{0x00}, EncodeULEB128(l.Min)...)
}

type funcType struct {
	params  []api.ValueType
	results []api.ValueType
}

func (t funcType) encode() []byte {
	out := []byte{0x60}
	out = append(out, EncodeULEB128(uint32(len(t.params)))...)
	for _, p := range t.params {
		out = append(out, ValType(p))
	}
	out = append(out, EncodeULEB128(uint32(len(t.results)))...)
	for _, r := range t.results {
		out = append(out, ValType(r))
	}
	return out
}

type funcImport struct {
	module, name string
	typeIdx      uint32
}

type funcDef struct {
	typeIdx uint32
	locals  []api.ValueType
	body    []byte
}

type exportEntry struct {
	name string
	kind ExternKind
	idx  uint32
}

type dataSegment struct {
	offset uint32
	data   []byte
}

// ModuleBuilder assembles a WASM module from imports, functions, a single
// memory, exports and data segments. Exports are written in the order they
// were added. All function imports must be added before the first Func.
type ModuleBuilder struct {
	types     []funcType
	imports   []funcImport
	memImport *struct {
		module, name string
		limits       Limits
	}
	memory  *Limits
	funcs   []funcDef
	exports []exportEntry
	data    []dataSegment
}

// NewModuleBuilder creates an empty module builder.
func NewModuleBuilder() *ModuleBuilder {
	return &ModuleBuilder{}
}

func (b *ModuleBuilder) typeIndex(params, results []api.ValueType) uint32 {
	ft := funcType{params: params, results: results}
	enc := string(ft.encode())
	for i, t := range b.types {
		if string(t.encode()) == enc {
			return uint32(i)
		}
	}
	b.types = append(b.types, ft)
	return uint32(len(b.types) - 1)
}

// ImportFunc adds a function import and returns its function index.
func (b *ModuleBuilder) ImportFunc(module, name string, params, results []api.ValueType) uint32 {
	b.imports = append(b.imports, funcImport{
		module:  module,
		name:    name,
		typeIdx: b.typeIndex(params, results),
	})
	return uint32(len(b.imports) - 1)
}

// ImportMemory makes memory 0 an import.
func (b *ModuleBuilder) ImportMemory(module, name string, limits Limits) *ModuleBuilder {
	b.memImport = &struct {
		module, name string
		limits       Limits
	}{module, name, limits}
	b.memory = nil
	return b
}

// Memory defines memory 0 locally.
func (b *ModuleBuilder) Memory(limits Limits) *ModuleBuilder {
	b.memory = &limits
	b.memImport = nil
	return b
}

// ExportMemory exports memory 0 under name.
func (b *ModuleBuilder) ExportMemory(name string) *ModuleBuilder {
	b.exports = append(b.exports, exportEntry{name: name, kind: KindMemory})
	return b
}

// Func defines a function and returns its index. body holds the
// instructions without the trailing end opcode.
func (b *ModuleBuilder) Func(params, results, locals []api.ValueType, body []byte) uint32 {
	b.funcs = append(b.funcs, funcDef{
		typeIdx: b.typeIndex(params, results),
		locals:  locals,
		body:    body,
	})
	return uint32(len(b.imports) + len(b.funcs) - 1)
}

// ExportFunc exports the function at idx under name.
func (b *ModuleBuilder) ExportFunc(name string, idx uint32) *ModuleBuilder {
	b.exports = append(b.exports, exportEntry{name: name, kind: KindFunc, idx: idx})
	return b
}

// Data adds an active data segment for memory 0.
func (b *ModuleBuilder) Data(offset uint32, data []byte) *ModuleBuilder {
	b.data = append(b.data, dataSegment{offset: offset, data: data})
	return b
}

// Build generates the module bytes.
func (b *ModuleBuilder) Build() []byte {
	wasm := append([]byte{}, magicVersion...)

	if len(b.types) > 0 {
		var sec []byte
		sec = append(sec, EncodeULEB128(uint32(len(b.types)))...)
		for _, t := range b.types {
			sec = append(sec, t.encode()...)
		}
		wasm = appendSection(wasm, 0x01, sec)
	}

	if n := len(b.imports); n > 0 || b.memImport != nil {
		if b.memImport != nil {
			n++
		}
		sec := EncodeULEB128(uint32(n))
		for _, imp := range b.imports {
			sec = appendName(sec, imp.module)
			sec = appendName(sec, imp.name)
			sec = append(sec, byte(KindFunc))
			sec = append(sec, EncodeULEB128(imp.typeIdx)...)
		}
		if m := b.memImport; m != nil {
			sec = appendName(sec, m.module)
			sec = appendName(sec, m.name)
			sec = append(sec, byte(KindMemory))
			sec = append(sec, m.limits.encode()...)
		}
		wasm = appendSection(wasm, 0x02, sec)
	}

	if len(b.funcs) > 0 {
		sec := EncodeULEB128(uint32(len(b.funcs)))
		for _, f := range b.funcs {
			sec = append(sec, EncodeULEB128(f.typeIdx)...)
		}
		wasm = appendSection(wasm, 0x03, sec)
	}

	if b.memory != nil {
		sec := append([]byte{0x01}, b.memory.encode()...)
		wasm = appendSection(wasm, 0x05, sec)
	}

	if len(b.exports) > 0 {
		sec := EncodeULEB128(uint32(len(b.exports)))
		for _, e := range b.exports {
			sec = appendName(sec, e.name)
			sec = append(sec, byte(e.kind))
			sec = append(sec, EncodeULEB128(e.idx)...)
		}
		wasm = appendSection(wasm, 0x07, sec)
	}

	if len(b.funcs) > 0 {
		sec := EncodeULEB128(uint32(len(b.funcs)))
		for _, f := range b.funcs {
			body := EncodeULEB128(uint32(len(f.locals)))
			for _, l := range f.locals {
				body = append(body, 0x01, ValType(l))
			}
			body = append(body, f.body...)
			body = append(body, 0x0b)
			sec = append(sec, EncodeULEB128(uint32(len(body)))...)
			sec = append(sec, body...)
		}
		wasm = appendSection(wasm, 0x0a, sec)
	}

	if len(b.data) > 0 {
		sec := EncodeULEB128(uint32(len(b.data)))
		for _, d := range b.data {
			sec = append(sec, 0x00)
			sec = append(sec, I32Const(int32(d.offset))...)
			sec = append(sec, 0x0b)
			sec = append(sec, EncodeULEB128(uint32(len(d.data)))...)
			sec = append(sec, d.data...)
		}
		wasm = appendSection(wasm, 0x0b, sec)
	}

	return wasm
}

func appendSection(wasm []byte, id byte, payload []byte) []byte {
	wasm = append(wasm, id)
	wasm = append(wasm, EncodeULEB128(uint32(len(payload)))...)
	return append(wasm, payload...)
}

func appendName(buf []byte, s string) []byte {
	buf = append(buf, EncodeULEB128(uint32(len(s)))...)
	return append(buf, s...)
}

// MemoryModule builds a module that defines one memory with the given
// limits and exports it under name. The engine instantiates it to satisfy
// a guest's memory import.
func MemoryModule(name string, limits Limits) []byte {
	return NewModuleBuilder().Memory(limits).ExportMemory(name).Build()
}
