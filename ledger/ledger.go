// Package ledger records every host system call made during one invocation.
package ledger

import (
	"strconv"
	"strings"
)

// Value is a raw argument as it crossed the boundary. Wide marks a 64-bit
// operand.
type Value struct {
	Raw  uint64
	Wide bool
}

// I32 wraps a 32-bit operand.
func I32(v uint32) Value { return Value{Raw: uint64(v)} }

// I64 wraps a 64-bit operand.
func I64(v uint64) Value { return Value{Raw: v, Wide: true} }

// String renders the value as a signed integer; 64-bit values carry an
// "n" suffix.
func (v Value) String() string {
	if v.Wide {
		return strconv.FormatInt(int64(v.Raw), 10) + "n"
	}
	return strconv.FormatInt(int64(int32(uint32(v.Raw))), 10)
}

// Entry is one host call.
type Entry struct {
	Name string
	Args []Value
}

// String renders "name(a, b, cn)".
func (e Entry) String() string {
	var b strings.Builder
	b.WriteString(e.Name)
	b.WriteByte('(')
	for i, a := range e.Args {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(a.String())
	}
	b.WriteByte(')')
	return b.String()
}

// Ledger is an ordered list of host calls. When Limit is positive only the
// most recent Limit entries are kept and the rest are counted as dropped.
type Ledger struct {
	entries []Entry
	dropped int
	limit   int
}

// New creates a ledger. limit <= 0 means unbounded.
func New(limit int) *Ledger {
	if limit < 0 {
		limit = 0
	}
	return &Ledger{limit: limit}
}

// Limit returns the configured retention limit, 0 when unbounded.
func (l *Ledger) Limit() int {
	return l.limit
}

// Record appends one entry.
func (l *Ledger) Record(name string, args ...Value) {
	e := Entry{Name: name}
	if len(args) > 0 {
		e.Args = append([]Value(nil), args...)
	}
	if l.limit > 0 && len(l.entries) == l.limit {
		copy(l.entries, l.entries[1:])
		l.entries = l.entries[:len(l.entries)-1]
		l.dropped++
	}
	l.entries = append(l.entries, e)
}

// Entries returns a copy of the retained entries in call order.
func (l *Ledger) Entries() []Entry {
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of retained entries.
func (l *Ledger) Len() int {
	return len(l.entries)
}

// Dropped returns how many entries were evicted by the limit since the
// last Reset.
func (l *Ledger) Dropped() int {
	return l.dropped
}

// Reset clears the ledger before a new invocation.
func (l *Ledger) Reset() {
	l.entries = l.entries[:0]
	l.dropped = 0
}

// Format renders entries as numbered lines, "  N. name(args)". The first
// number accounts for dropped entries so numbering stays absolute.
func Format(entries []Entry, dropped int) string {
	var b strings.Builder
	for i, e := range entries {
		b.WriteString("  ")
		b.WriteString(strconv.Itoa(dropped + i + 1))
		b.WriteString(". ")
		b.WriteString(e.String())
		b.WriteByte('\n')
	}
	return b.String()
}
