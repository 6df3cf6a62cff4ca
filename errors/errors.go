package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseLoad        Phase = "load"        // reading the module file
	PhaseCompile     Phase = "compile"     // wasm validation and compilation
	PhaseInstantiate Phase = "instantiate" // import resolution and instantiation
	PhaseConfig      Phase = "config"      // flag/file/env configuration
	PhaseDispatch    Phase = "dispatch"    // entry point invocation
	PhaseHost        Phase = "host"        // emulated system call
)

// Kind categorizes the error
type Kind string

const (
	KindNotFound       Kind = "not_found"
	KindInvalidData    Kind = "invalid_data"
	KindInvalidInput   Kind = "invalid_input"
	KindMissingImport  Kind = "missing_import"
	KindMissingMemory  Kind = "missing_memory"
	KindInstantiation  Kind = "instantiation"
	KindNotInitialized Kind = "not_initialized"
	KindBusy           Kind = "busy"
	KindTrap           Kind = "trap"
)

// Error is the structured error type used throughout the runtime
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Detail string
	Export string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Export != "" {
		b.WriteString(" in ")
		b.WriteString(e.Export)
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Export sets the entry point the error belongs to
func (b *Builder) Export(name string) *Builder {
	b.err.Export = name
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// Load creates a module loading error
func Load(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindInvalidData,
		Detail: detail,
		Cause:  cause,
	}
}

// FileNotFound creates the error reported when the module path does not exist
func FileNotFound(path string, cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("wasm not found: %s", path),
		Value:  path,
		Cause:  cause,
	}
}

// Compile creates a compilation error
func Compile(cause error) *Error {
	return &Error{
		Phase:  PhaseCompile,
		Kind:   KindInvalidData,
		Detail: "compile module",
		Cause:  cause,
	}
}

// Instantiation creates an instantiation error
func Instantiation(cause error) *Error {
	return &Error{
		Phase:  PhaseInstantiate,
		Kind:   KindInstantiation,
		Detail: "instantiate module",
		Cause:  cause,
	}
}

// NotInitialized creates a not-initialized error for missing module/instance
func NotInitialized(phase Phase, component string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotInitialized,
		Detail: fmt.Sprintf("%s not initialized", component),
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
		Value:  name,
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// MissingImport represents a single import no host module provides
type MissingImport struct {
	Module string // e.g., "wasi_snapshot_preview1"
	Name   string // e.g., "fd_write"
}

// MissingImportsError is returned when instantiation cannot satisfy some
// imports.
type MissingImportsError struct {
	Imports []MissingImport
}

// NewMissingImportsError creates an error from a list of "module.name" strings
func NewMissingImportsError(imports []string) *MissingImportsError {
	result := &MissingImportsError{
		Imports: make([]MissingImport, 0, len(imports)),
	}
	for _, imp := range imports {
		mod, name, _ := strings.Cut(imp, ".")
		result.Imports = append(result.Imports, MissingImport{Module: mod, Name: name})
	}
	return result
}

func (e *MissingImportsError) Error() string {
	if len(e.Imports) == 0 {
		return "[instantiate] missing_import: no imports specified"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "missing %d host import(s):\n", len(e.Imports))

	byMod := make(map[string][]string)
	var modOrder []string
	for _, imp := range e.Imports {
		if _, exists := byMod[imp.Module]; !exists {
			modOrder = append(modOrder, imp.Module)
		}
		byMod[imp.Module] = append(byMod[imp.Module], imp.Name)
	}

	for _, mod := range modOrder {
		b.WriteString("\n  ")
		b.WriteString(mod)
		b.WriteString(":\n")
		for _, name := range byMod[mod] {
			b.WriteString("    - ")
			b.WriteString(name)
			b.WriteByte('\n')
		}
	}

	return strings.TrimSuffix(b.String(), "\n")
}

// Is reports whether target matches this error type
func (e *MissingImportsError) Is(target error) bool {
	_, ok := target.(*MissingImportsError)
	return ok
}

// TrapError is the decoded message of a guest trap. It aborts only the
// entry point that raised it.
type TrapError struct {
	Cause   error
	Export  string
	Message string
	// RawLen is the byte length of the trap message as the guest supplied it.
	RawLen int
	// Malformed is true when the raw message was not valid UTF-8 and
	// Message holds a replacement-character rendering.
	Malformed bool
	// Host is true when the guest called the trap import, false for
	// engine-level traps such as unreachable or out-of-bounds access.
	Host bool
}

// NewTrap decodes raw trap bytes. Invalid UTF-8 is replaced rather than
// rejected so malformed messages still surface.
func NewTrap(raw []byte) *TrapError {
	msg := string(raw)
	malformed := !utf8.ValidString(msg)
	if malformed {
		msg = strings.ToValidUTF8(msg, "�")
	}
	return &TrapError{
		Message:   msg,
		RawLen:    len(raw),
		Malformed: malformed,
		Host:      true,
	}
}

// EngineTrap wraps an error returned by the wasm engine. The message keeps
// only the first line; engine errors append a stack trace.
func EngineTrap(cause error) *TrapError {
	msg, _, _ := strings.Cut(cause.Error(), "\n")
	return &TrapError{
		Message: msg,
		Cause:   cause,
	}
}

// Phase is PhaseHost for traps raised through the trap import and
// PhaseDispatch for engine traps.
func (e *TrapError) Phase() Phase {
	if e.Host {
		return PhaseHost
	}
	return PhaseDispatch
}

func (e *TrapError) Error() string {
	var b strings.Builder
	b.WriteByte('[')
	b.WriteString(string(e.Phase()))
	b.WriteString("] ")
	b.WriteString(string(KindTrap))
	if e.Export != "" {
		b.WriteString(" in ")
		b.WriteString(e.Export)
	}
	b.WriteString(": ")
	if e.Message == "" && e.RawLen > 0 {
		fmt.Fprintf(&b, "<%d undecodable bytes>", e.RawLen)
	} else {
		b.WriteString(e.Message)
	}
	if e.Malformed {
		fmt.Fprintf(&b, " (%d raw bytes)", e.RawLen)
	}
	return b.String()
}

// Unwrap returns the engine error behind an engine-level trap
func (e *TrapError) Unwrap() error {
	return e.Cause
}

// Is matches other traps and any *Error with KindTrap whose Phase is
// empty or equal to the trap's phase
func (e *TrapError) Is(target error) bool {
	switch t := target.(type) {
	case *TrapError:
		return true
	case *Error:
		return t.Kind == KindTrap && (t.Phase == "" || t.Phase == e.Phase())
	}
	return false
}

// IsTrap reports whether err is or wraps a trap
func IsTrap(err error) bool {
	var trap *TrapError
	return stderrors.As(err, &trap)
}

// AsTrap extracts the trap from err
func AsTrap(err error) (*TrapError, bool) {
	var trap *TrapError
	ok := stderrors.As(err, &trap)
	return trap, ok
}
