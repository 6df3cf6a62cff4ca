package message

// Reply accumulates reply data in the order the guest appends it. Reads
// address the concatenation of all chunks, not any single chunk.
type Reply struct {
	chunks [][]byte
	size   uint64
}

// Append stores a copy of data as a new chunk. Empty appends are recorded
// as no-ops.
func (r *Reply) Append(data []byte) {
	if len(data) == 0 {
		return
	}
	chunk := make([]byte, len(data))
	copy(chunk, data)
	r.chunks = append(r.chunks, chunk)
	r.size += uint64(len(chunk))
}

// Size returns the total number of accumulated bytes.
func (r *Reply) Size() uint64 {
	return r.size
}

// Chunks returns how many non-empty appends were made.
func (r *Reply) Chunks() int {
	return len(r.chunks)
}

// ReadAt returns concat(chunks)[offset:offset+length], clamped to Size.
func (r *Reply) ReadAt(offset, length uint64) []byte {
	if offset >= r.size || length == 0 {
		return []byte{}
	}
	if avail := r.size - offset; length > avail {
		length = avail
	}

	out := make([]byte, 0, length)
	var pos uint64
	for _, c := range r.chunks {
		clen := uint64(len(c))
		if pos+clen <= offset {
			pos += clen
			continue
		}
		start := uint64(0)
		if offset > pos {
			start = offset - pos
		}
		need := length - uint64(len(out))
		end := clen
		if end-start > need {
			end = start + need
		}
		out = append(out, c[start:end]...)
		if uint64(len(out)) == length {
			break
		}
		pos += clen
	}
	return out
}

// Bytes returns the full concatenated reply.
func (r *Reply) Bytes() []byte {
	return r.ReadAt(0, r.size)
}

// Reset discards all chunks.
func (r *Reply) Reset() {
	r.chunks = nil
	r.size = 0
}
