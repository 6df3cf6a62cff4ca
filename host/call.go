package host

import (
	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/canister-runtime/ledger"
)

// Call is one host invocation as seen by a handler. Arguments and results
// follow the signature the guest declared for the import.
type Call struct {
	Name    string
	params  []api.ValueType
	results []api.ValueType
	stack   []uint64
	done    bool
}

// Arg returns parameter i as an unsigned value. 32-bit parameters are
// zero-extended; missing parameters read as 0.
func (c *Call) Arg(i int) uint64 {
	if i >= len(c.params) {
		return 0
	}
	if c.params[i] == api.ValueTypeI32 {
		return uint64(api.DecodeU32(c.stack[i]))
	}
	return c.stack[i]
}

// Return writes v to the first declared result, truncated to its width,
// and zeroes any further results. Imports with no results ignore it.
func (c *Call) Return(v uint64) {
	c.done = true
	for i, t := range c.results {
		if i > 0 {
			c.stack[i] = 0
			continue
		}
		if t == api.ValueTypeI32 {
			c.stack[0] = api.EncodeU32(uint32(v))
		} else {
			c.stack[0] = v
		}
	}
}

// zero clears every declared result.
func (c *Call) zero() {
	for i := range c.results {
		c.stack[i] = 0
	}
}

// values renders the arguments for the ledger.
func (c *Call) values() []ledger.Value {
	if len(c.params) == 0 {
		return nil
	}
	vals := make([]ledger.Value, len(c.params))
	for i, t := range c.params {
		if t == api.ValueTypeI32 {
			vals[i] = ledger.I32(api.DecodeU32(c.stack[i]))
		} else {
			vals[i] = ledger.I64(c.stack[i])
		}
	}
	return vals
}
