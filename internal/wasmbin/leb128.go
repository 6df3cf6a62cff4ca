package wasmbin

import (
	"errors"

	"github.com/tetratelabs/wazero/api"
)

var (
	errTruncated = errors.New("wasmbin: truncated LEB128")
	errOverflow  = errors.New("wasmbin: LEB128 overflows u32")
)

// EncodeULEB128 encodes an unsigned value in LEB128 format.
func EncodeULEB128(v uint32) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		out = append(out, b)
		if v == 0 {
			return out
		}
	}
}

// EncodeSLEB128 encodes a signed value in LEB128 format.
func EncodeSLEB128[T int32 | int64](v T) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0) {
			return append(out, b)
		}
		out = append(out, b|0x80)
	}
}

// DecodeULEB128 decodes an unsigned LEB128 value and returns it with the
// number of bytes consumed.
func DecodeULEB128(data []byte) (uint32, int, error) {
	var result uint32
	for i := 0; i < len(data) && i < 5; i++ {
		b := data[i]
		if i == 4 && b&0xf0 != 0 {
			return 0, 0, errOverflow
		}
		result |= uint32(b&0x7f) << (7 * i)
		if b&0x80 == 0 {
			return result, i + 1, nil
		}
	}
	return 0, 0, errTruncated
}

// ValType converts a wazero value type to its binary encoding.
func ValType(t api.ValueType) byte {
	switch t {
	case api.ValueTypeI64:
		return 0x7e
	case api.ValueTypeF32:
		return 0x7d
	case api.ValueTypeF64:
		return 0x7c
	default:
		return 0x7f
	}
}
