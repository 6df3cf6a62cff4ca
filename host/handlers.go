package host

import (
	"time"

	"go.uber.org/zap"

	"github.com/wippyai/canister-runtime/errors"
	"github.com/wippyai/canister-runtime/message"
)

// WallClock reports the host time in nanoseconds since the Unix epoch.
func WallClock() uint64 {
	return uint64(time.Now().UnixNano())
}

// performanceStep is how far each performance_counter read advances.
const performanceStep = 1000

var behaviors = map[string]Handler{
	"msg_arg_data_size": sizeOf(func(s *Surface) []byte { return s.msg.Argument }),
	"msg_arg_data_copy": copyOf(func(s *Surface) []byte { return s.msg.Argument }),

	"msg_caller_size":      sizeOf(func(s *Surface) []byte { return s.msg.Caller }),
	"msg_caller_copy":      copyOf(func(s *Surface) []byte { return s.msg.Caller }),
	"canister_self_size":   sizeOf(func(s *Surface) []byte { return s.msg.Canister }),
	"canister_self_copy":   copyOf(func(s *Surface) []byte { return s.msg.Canister }),
	"msg_method_name_size": sizeOf(func(s *Surface) []byte { return s.msg.MethodName }),
	"msg_method_name_copy": copyOf(func(s *Surface) []byte { return s.msg.MethodName }),

	"msg_reply_data_append": replyAppend,
	"msg_reply":             reply,
	"msg_reply_data_size":   func(s *Surface, c *Call) { c.Return(s.reply.Size()) },
	"msg_reply_data_copy":   replyCopy,

	"msg_reject":          reject,
	"msg_reject_code":     rejectCode,
	"msg_reject_msg_size": sizeOf(rejectMessage),
	"msg_reject_msg_copy": copyOf(rejectMessage),

	"stable_size":    stableSize,
	"stable_grow":    stableGrow,
	"stable_write":   stableWrite,
	"stable_read":    stableRead,
	"stable64_size":  stableSize,
	"stable64_grow":  stableGrow,
	"stable64_write": stableWrite,
	"stable64_read":  stableRead,

	"debug_print":         debugPrint,
	"trap":                trap,
	"time":                func(s *Surface, c *Call) { c.Return(s.clock()) },
	"performance_counter": performanceCounter,
	"accept_message":      func(*Surface, *Call) {},
	"canister_version":    func(s *Surface, c *Call) { c.Return(s.version) },
}

// sizeOf reports the length of a message field.
func sizeOf(field func(*Surface) []byte) Handler {
	return func(s *Surface, c *Call) {
		c.Return(uint64(len(field(s))))
	}
}

// copyOf implements the (dst, offset, size) copy convention: it writes
// field[offset:offset+size] to guest memory at dst, clamped to the field
// and to memory. Bytes past the field are not written.
func copyOf(field func(*Surface) []byte) Handler {
	return func(s *Surface, c *Call) {
		data := message.Slice(field(s), c.Arg(1), c.Arg(2))
		s.window.Write(c.Arg(0), data)
	}
}

func rejectMessage(s *Surface) []byte {
	if r := s.msg.Reject(); r != nil {
		return []byte(r.Message)
	}
	return nil
}

func replyAppend(s *Surface, c *Call) {
	s.reply.Append(s.window.Read(c.Arg(0), c.Arg(1)))
}

func reply(s *Surface, _ *Call) {
	s.replied = true
}

func replyCopy(s *Surface, c *Call) {
	s.window.Write(c.Arg(0), s.reply.ReadAt(c.Arg(1), c.Arg(2)))
}

func reject(s *Surface, c *Call) {
	msg := s.window.ReadString(c.Arg(0), c.Arg(1))
	s.msg.SetReject(message.RejectCodeCanister, msg)
	Logger().Info("guest rejected message",
		zap.String("export", s.export),
		zap.String("message", msg))
}

func rejectCode(s *Surface, c *Call) {
	if r := s.msg.Reject(); r != nil {
		c.Return(uint64(r.Code))
		return
	}
	c.Return(0)
}

func stableSize(s *Surface, c *Call) {
	c.Return(s.stable.SizePages())
}

func stableGrow(s *Surface, c *Call) {
	c.Return(s.stable.Grow(c.Arg(0)))
}

// stableWrite follows the ic0 order (offset, src, size).
func stableWrite(s *Surface, c *Call) {
	s.stable.Write(c.Arg(0), s.window.Read(c.Arg(1), c.Arg(2)))
}

// stableRead follows the ic0 order (dst, offset, size).
func stableRead(s *Surface, c *Call) {
	s.window.Write(c.Arg(0), s.stable.Read(c.Arg(1), c.Arg(2)))
}

func debugPrint(s *Surface, c *Call) {
	text := s.window.ReadString(c.Arg(0), c.Arg(1))
	Logger().Info("debug_print", zap.String("export", s.export), zap.String("text", text))
	if s.print != nil {
		s.print(s.export, text)
	}
}

// trap records the guest's message and unwinds the invocation. wazero
// recovers the panic and returns it from the export call.
func trap(s *Surface, c *Call) {
	t := errors.NewTrap(s.window.Read(c.Arg(0), c.Arg(1)))
	t.Export = s.export
	s.trap = t
	Logger().Debug("guest trapped", zap.String("export", s.export), zap.String("message", t.Message))
	panic(t)
}

func performanceCounter(s *Surface, c *Call) {
	kind := c.Arg(0)
	s.counters[kind] += performanceStep
	c.Return(s.counters[kind])
}
