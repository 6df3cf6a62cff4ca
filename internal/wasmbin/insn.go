package wasmbin

// Instruction encoders for hand-built function bodies.

// Code concatenates instruction sequences.
func Code(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func I32Const(v int32) []byte { return append([]byte{0x41}, EncodeSLEB128(v)...) }

func I64Const(v int64) []byte { return append([]byte{0x42}, EncodeSLEB128(v)...) }

func LocalGet(idx uint32) []byte { return append([]byte{0x20}, EncodeULEB128(idx)...) }

func LocalSet(idx uint32) []byte { return append([]byte{0x21}, EncodeULEB128(idx)...) }

func Call(idx uint32) []byte { return append([]byte{0x10}, EncodeULEB128(idx)...) }

func Drop() []byte { return []byte{0x1a} }

func Unreachable() []byte { return []byte{0x00} }

// I32Load loads a 32-bit value from the address on the stack.
func I32Load(offset uint32) []byte {
	return append([]byte{0x28, 0x02}, EncodeULEB128(offset)...)
}

// I32Store stores a 32-bit value; the stack holds address then value.
func I32Store(offset uint32) []byte {
	return append([]byte{0x36, 0x02}, EncodeULEB128(offset)...)
}

// MemoryGrow grows memory 0 by the page count on the stack.
func MemoryGrow() []byte { return []byte{0x40, 0x00} }

// Spin is a loop that never exits.
func Spin() []byte { return []byte{0x03, 0x40, 0x0c, 0x00, 0x0b} }
