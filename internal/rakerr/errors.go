// Package rakerr defines the closed error taxonomy shared by the lexer,
// compiler and virtual machine. Every error carries a human-readable
// message and, where known, a source location.
package rakerr

import "fmt"

// Kind is the error category. The taxonomy is closed: callers switch on it
// rather than testing error strings.
type Kind string

const (
	// Fatal: the fiber or VM cannot continue.
	OutOfMemory   Kind = "OutOfMemory"
	StackOverflow Kind = "StackOverflow"

	// Lexical.
	UnexpectedCharacter Kind = "UnexpectedCharacter"
	UnexpectedEndOfFile Kind = "UnexpectedEndOfFile"

	// Syntactic.
	UnexpectedToken       Kind = "UnexpectedToken"
	ExpectedToken         Kind = "ExpectedToken"
	TooManyLocals         Kind = "TooManyLocals"
	TooManyConstants      Kind = "TooManyConstants"
	TooManyInstructions   Kind = "TooManyInstructions"
	TooManyNestedFuncs    Kind = "TooManyNestedFunctions"
	DuplicateLocal        Kind = "DuplicateLocal"
	UndefinedLocal        Kind = "UndefinedLocal"
	FormatError           Kind = "FormatError"

	// Runtime.
	TypeError       Kind = "TypeError"
	IndexOutOfRange Kind = "IndexOutOfRange"
	ArityMismatch   Kind = "ArityMismatch"
	FieldMissing    Kind = "FieldMissing"
	DivisionByZero  Kind = "DivisionByZero"
	UndefinedName   Kind = "UndefinedName"
	NameError       Kind = "NameError"
)

// maxMessage caps Error.Message, matching the spec's ~512 byte budget for a
// formatted diagnostic.
const maxMessage = 512

// Location is a 1-based source position.
type Location struct {
	File   string
	Line   int
	Column int
}

func (l Location) String() string {
	if l.Line == 0 {
		return ""
	}
	if l.File == "" {
		return fmt.Sprintf("%d:%d", l.Line, l.Column)
	}
	return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
}

// Error is the single error type produced anywhere in the core: the
// compiler surfaces at most one per invocation, the VM at most one per
// dispatch turn.
type Error struct {
	Kind     Kind
	Message  string
	Location Location
}

func (e *Error) Error() string {
	msg := e.Message
	if len(msg) > maxMessage {
		msg = msg[:maxMessage]
	}
	if loc := e.Location.String(); loc != "" {
		return fmt.Sprintf("%s: %s (at %s)", e.Kind, msg, loc)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

// New builds an Error with no location, for runtime errors raised deep
// inside the VM where only the faulting frame's IP is meaningful.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// NewAt builds an Error carrying a source location, used by the lexer and
// compiler.
func NewAt(kind Kind, loc Location, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Location: loc}
}

// IsFatal reports whether the fiber that raised err can no longer be
// resumed.
func IsFatal(err *Error) bool {
	return err.Kind == OutOfMemory || err.Kind == StackOverflow
}
