package wasmbin

import (
	"errors"
	"fmt"
)

// ExternKind is the kind byte of an import or export entry.
type ExternKind byte

const (
	KindFunc   ExternKind = 0x00
	KindTable  ExternKind = 0x01
	KindMemory ExternKind = 0x02
	KindGlobal ExternKind = 0x03
)

const (
	sectionExport = 0x07
)

var magicVersion = []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

// Export is one entry of the export section.
type Export struct {
	Name  string
	Kind  ExternKind
	Index uint32
}

// reader walks a byte slice with bounds checks.
type reader struct {
	data []byte
	pos  int
}

func (r *reader) u32() (uint32, error) {
	v, n, err := DecodeULEB128(r.data[r.pos:])
	if err != nil {
		return 0, fmt.Errorf("at offset %d: %w", r.pos, err)
	}
	r.pos += n
	return v, nil
}

func (r *reader) readByte() (byte, error) {
	if r.pos >= len(r.data) {
		return 0, fmt.Errorf("at offset %d: unexpected end", r.pos)
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}

func (r *reader) name() (string, error) {
	n, err := r.u32()
	if err != nil {
		return "", err
	}
	if int(n) > len(r.data)-r.pos {
		return "", fmt.Errorf("at offset %d: name length %d out of bounds", r.pos, n)
	}
	s := string(r.data[r.pos : r.pos+int(n)])
	r.pos += int(n)
	return s, nil
}

// section returns the payload of the first section with the given id, or
// nil when the module has none.
func section(bin []byte, id byte) ([]byte, error) {
	if len(bin) < len(magicVersion) || string(bin[:4]) != string(magicVersion[:4]) {
		return nil, errors.New("wasmbin: not a wasm binary")
	}
	r := &reader{data: bin, pos: len(magicVersion)}
	for r.pos < len(bin) {
		sid, err := r.readByte()
		if err != nil {
			return nil, err
		}
		size, err := r.u32()
		if err != nil {
			return nil, err
		}
		if int(size) > len(bin)-r.pos {
			return nil, fmt.Errorf("wasmbin: section %d overruns module", sid)
		}
		if sid == id {
			return bin[r.pos : r.pos+int(size)], nil
		}
		r.pos += int(size)
	}
	return nil, nil
}

// Exports returns the export section entries in declaration order.
func Exports(bin []byte) ([]Export, error) {
	payload, err := section(bin, sectionExport)
	if err != nil || payload == nil {
		return nil, err
	}
	r := &reader{data: payload}
	count, err := r.u32()
	if err != nil {
		return nil, err
	}

	exports := make([]Export, 0, min(int(count), len(payload)))
	for i := uint32(0); i < count; i++ {
		name, err := r.name()
		if err != nil {
			return nil, fmt.Errorf("wasmbin: export %d: %w", i, err)
		}
		kind, err := r.readByte()
		if err != nil {
			return nil, fmt.Errorf("wasmbin: export %q: %w", name, err)
		}
		idx, err := r.u32()
		if err != nil {
			return nil, fmt.Errorf("wasmbin: export %q: %w", name, err)
		}
		exports = append(exports, Export{Name: name, Kind: ExternKind(kind), Index: idx})
	}
	return exports, nil
}

// FunctionExports returns the names of exported functions in declaration
// order.
func FunctionExports(bin []byte) ([]string, error) {
	exports, err := Exports(bin)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range exports {
		if e.Kind == KindFunc {
			names = append(names, e.Name)
		}
	}
	return names, nil
}
