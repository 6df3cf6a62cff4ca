// Package stable emulates the canister's stable memory: a page-granular
// byte region that survives across invocations within a run.
package stable

// PageSize is the stable memory page size (64 KiB).
const PageSize = 65536

// DefaultCapacityPages bounds the region when no capacity is configured
// (64 MiB).
const DefaultCapacityPages = 1024

// Region is a growable byte array with a fixed capacity. SizeBytes is a
// high-water mark: it grows through Grow and through writes past it, and
// never shrinks. The backing store is allocated lazily up to SizeBytes.
type Region struct {
	data     []byte
	size     uint64
	capacity uint64
}

// New creates a region holding at most capacityPages pages. Zero selects
// DefaultCapacityPages.
func New(capacityPages uint64) *Region {
	if capacityPages == 0 {
		capacityPages = DefaultCapacityPages
	}
	return &Region{capacity: capacityPages * PageSize}
}

// Capacity returns the maximum size in bytes.
func (r *Region) Capacity() uint64 {
	return r.capacity
}

// SizeBytes returns the current high-water mark in bytes.
func (r *Region) SizeBytes() uint64 {
	return r.size
}

// SizePages returns the high-water mark rounded up to whole pages.
func (r *Region) SizePages() uint64 {
	return (r.size + PageSize - 1) / PageSize
}

// Grow adds pages to the region, clamped to capacity, and returns the
// size in pages before growing.
func (r *Region) Grow(pages uint64) uint64 {
	prev := r.SizePages()
	if pages == 0 {
		return prev
	}
	want := r.capacity
	if room := (r.capacity - prev*PageSize) / PageSize; pages < room {
		want = (prev + pages) * PageSize
	}
	if want > r.size {
		r.size = want
	}
	return prev
}

// ensure grows the backing store to cover [0, end).
func (r *Region) ensure(end uint64) {
	if end <= uint64(len(r.data)) {
		return
	}
	if end <= uint64(cap(r.data)) {
		r.data = r.data[:end]
		return
	}
	grown := make([]byte, end, end+end/2)
	copy(grown, r.data)
	r.data = grown
}

// Write copies data to offset, truncating at capacity, and extends the
// high-water mark to cover the written range. It returns the number of
// bytes written.
func (r *Region) Write(offset uint64, data []byte) int {
	if offset >= r.capacity || len(data) == 0 {
		return 0
	}
	n := uint64(len(data))
	if avail := r.capacity - offset; n > avail {
		n = avail
	}
	end := offset + n
	r.ensure(end)
	copy(r.data[offset:end], data[:n])
	if end > r.size {
		r.size = end
	}
	return int(n)
}

// Read returns length bytes from offset, truncated at capacity. Bytes
// beyond the backing store read as zero.
func (r *Region) Read(offset, length uint64) []byte {
	if offset >= r.capacity || length == 0 {
		return []byte{}
	}
	if avail := r.capacity - offset; length > avail {
		length = avail
	}
	out := make([]byte, length)
	if offset < uint64(len(r.data)) {
		copy(out, r.data[offset:])
	}
	return out
}
