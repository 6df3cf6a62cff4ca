// Package memory provides the byte window the host surface uses to reach
// guest linear memory.
package memory

import (
	"strings"
	"unicode/utf8"

	"github.com/tetratelabs/wazero/api"
)

// Window adapts wazero api.Memory to a clamped, never-failing accessor.
// The zero value is an unbound window that behaves like empty memory.
type Window struct {
	mem api.Memory
}

// NewWindow returns a window bound to mem. mem may be nil.
func NewWindow(mem api.Memory) *Window {
	return &Window{mem: mem}
}

// Bind points the window at a different memory, typically the one the
// guest exports after instantiation.
func (w *Window) Bind(mem api.Memory) {
	w.mem = mem
}

// Bound reports whether the window has a backing memory.
func (w *Window) Bound() bool {
	return w.mem != nil
}

// Size returns the current memory size in bytes. It tracks memory.grow
// performed by the guest since wazero reports the live size.
func (w *Window) Size() uint32 {
	if w.mem == nil {
		return 0
	}
	return w.mem.Size()
}

// span clamps [ptr, ptr+length) to the current memory size.
func (w *Window) span(ptr, length uint64) (uint32, uint32) {
	size := uint64(w.Size())
	if ptr >= size || length == 0 {
		return 0, 0
	}
	if avail := size - ptr; length > avail {
		length = avail
	}
	return uint32(ptr), uint32(length)
}

// Read copies up to length bytes starting at ptr. The result is shorter
// than length when the range runs past the end of memory, and empty when
// ptr itself is out of range.
func (w *Window) Read(ptr, length uint64) []byte {
	off, n := w.span(ptr, length)
	if n == 0 {
		return []byte{}
	}
	view, ok := w.mem.Read(off, n)
	if !ok {
		return []byte{}
	}
	out := make([]byte, len(view))
	copy(out, view)
	return out
}

// Write copies data to ptr, truncating at the end of memory. It returns
// the number of bytes written.
func (w *Window) Write(ptr uint64, data []byte) int {
	off, n := w.span(ptr, uint64(len(data)))
	if n == 0 {
		return 0
	}
	if !w.mem.Write(off, data[:n]) {
		return 0
	}
	return int(n)
}

// ReadString decodes a best-effort UTF-8 string from guest memory.
func (w *Window) ReadString(ptr, length uint64) string {
	b := w.Read(ptr, length)
	if utf8.Valid(b) {
		return string(b)
	}
	return strings.ToValidUTF8(string(b), "�")
}
