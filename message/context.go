package message

import "bytes"

// PrincipalLen is the length of the mock principals used by default.
const PrincipalLen = 32

// RejectCodeCanister is the reject code recorded when the guest rejects
// the message itself.
const RejectCodeCanister = 4

// EmptyArgs is a minimal valid Candid envelope with no values.
var EmptyArgs = []byte{'D', 'I', 'D', 'L', 0x00, 0x00}

// MockPrincipal returns the default 32-byte identity: first byte 0x01,
// last byte 0x02, zero elsewhere.
func MockPrincipal() []byte {
	p := make([]byte, PrincipalLen)
	p[0] = 0x01
	p[PrincipalLen-1] = 0x02
	return p
}

// Reject is the outcome of a msg_reject call.
type Reject struct {
	Message string
	Code    uint32
}

// Context is the "current call" seen by the guest. Caller and Canister are
// fixed for the lifetime of a run; MethodName and Argument change per call.
type Context struct {
	reject     *Reject
	Caller     []byte
	Canister   []byte
	MethodName []byte
	Argument   []byte
}

// NewContext creates a context with the given identities. Nil identities
// fall back to MockPrincipal.
func NewContext(caller, canister []byte) *Context {
	if caller == nil {
		caller = MockPrincipal()
	}
	if canister == nil {
		canister = MockPrincipal()
	}
	return &Context{
		Caller:   bytes.Clone(caller),
		Canister: bytes.Clone(canister),
		Argument: bytes.Clone(EmptyArgs),
	}
}

// Reset prepares the context for a new call. A nil argument selects
// EmptyArgs.
func (c *Context) Reset(method string, argument []byte) {
	c.MethodName = []byte(method)
	if argument == nil {
		c.Argument = bytes.Clone(EmptyArgs)
	} else {
		c.Argument = bytes.Clone(argument)
	}
	c.reject = nil
}

// SetReject records a guest rejection for the current call.
func (c *Context) SetReject(code uint32, msg string) {
	c.reject = &Reject{Code: code, Message: msg}
}

// Reject returns the rejection recorded for the current call, or nil.
func (c *Context) Reject() *Reject {
	return c.reject
}

// Slice returns field[offset:offset+size] clamped to the field length.
// It is the shared read path of every *_copy system call.
func Slice(field []byte, offset, size uint64) []byte {
	n := uint64(len(field))
	if offset >= n || size == 0 {
		return nil
	}
	end := n
	if size < n-offset {
		end = offset + size
	}
	return field[offset:end]
}
