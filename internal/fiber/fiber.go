// Package fiber implements the virtual machine: a VM holds the native
// registry shared by every fiber it creates, and a Fiber is one
// cooperatively-scheduled stack of call frames executing a chunk of
// bytecode (spec §4.5-4.6).
package fiber

import (
	"rak/internal/bytecode"
	"rak/internal/rakerr"
	"rak/internal/value"
)

// Status is a fiber's scheduling state.
type Status int

const (
	StatusSuspended Status = iota
	StatusRunning
	StatusDone
)

func (s Status) String() string {
	switch s {
	case StatusSuspended:
		return "suspended"
	case StatusRunning:
		return "running"
	case StatusDone:
		return "done"
	default:
		return "unknown"
	}
}

const (
	DefaultValueStackSize = 1024
	DefaultCallStackSize  = 128
)

// callFrame is one activation record. Its slots alias directly into the
// fiber's value stack starting at base (slot 0 is the closure itself, per
// spec §4.6), which is what lets RETURN and TAIL_CALL collapse a frame by
// just moving the stack pointer rather than copying locals elsewhere.
type callFrame struct {
	closure     *value.ClosureObj
	ip          int
	base        int
	nativeState interface{}
}

// Fiber is a single cooperatively-scheduled execution context.
type Fiber struct {
	status  Status
	stack   []value.Value
	sp      int
	frames  []callFrame
	globals value.Value
	err     *rakerr.Error
}

// NewFiber lays out the initial call as CALL would: closure then args on
// the value stack, followed by one frame pointing at slot 0. vstkSize/
// cstkSize follow spec §6's `fiber_new` signature.
func NewFiber(globals value.Value, vstkSize, cstkSize int, closure value.Value, args []value.Value) (*Fiber, *rakerr.Error) {
	if vstkSize <= 0 {
		vstkSize = DefaultValueStackSize
	}
	if cstkSize <= 0 {
		cstkSize = DefaultCallStackSize
	}
	if !closure.IsClosure() {
		return nil, rakerr.New(rakerr.TypeError, "fiber_new: expected a closure, got %s", value.TypeName(closure))
	}
	f := &Fiber{
		status:  StatusSuspended,
		stack:   make([]value.Value, vstkSize),
		frames:  make([]callFrame, 0, cstkSize),
		globals: globals,
	}
	value.Retain(globals)
	clo := value.AsClosure(closure)
	if clo.Arity() != len(args) {
		return nil, rakerr.New(rakerr.ArityMismatch, "expected %d argument(s), got %d", clo.Arity(), len(args))
	}
	base := f.sp
	if err := f.pushRaw(closure); err != nil {
		return nil, err
	}
	for _, a := range args {
		if err := f.pushRaw(a); err != nil {
			return nil, err
		}
	}
	f.frames = append(f.frames, callFrame{closure: clo, base: base})
	return f, nil
}

func (f *Fiber) Status() Status       { return f.status }
func (f *Fiber) Err() *rakerr.Error   { return f.err }
func (f *Fiber) Globals() value.Value { return f.globals }

// Result reports the fiber's single remaining stack value once Done —
// the value RETURN/RETURN_NIL left at the outermost frame's slot 0.
func (f *Fiber) Result() value.Value {
	if f.sp == 0 {
		return value.Nil()
	}
	return f.stack[0]
}

// Run starts dispatch on a freshly created, Suspended fiber.
func (f *Fiber) Run() *rakerr.Error {
	f.status = StatusRunning
	return f.dispatch()
}

// Resume re-enters dispatch after a YIELD or a suspended native call.
func (f *Fiber) Resume() *rakerr.Error {
	if f.status != StatusSuspended {
		return rakerr.New(rakerr.NameError, "cannot resume a fiber that is %s", f.status)
	}
	f.status = StatusRunning
	return f.dispatch()
}

func (f *Fiber) fail(err *rakerr.Error) *rakerr.Error {
	f.status = StatusSuspended
	f.err = err
	return err
}

// push installs v onto the stack, retaining it — matching every PUSH_*/
// LOAD_* opcode's documented "(retained)" effect.
func (f *Fiber) push(v value.Value) *rakerr.Error {
	value.Retain(v)
	return f.pushRaw(v)
}

// pushRaw installs v without an extra retain, for moves that already own
// exactly one reference (constructing the initial call, reinstalling a
// RETURN value at the frame's base).
func (f *Fiber) pushRaw(v value.Value) *rakerr.Error {
	if f.sp >= len(f.stack) {
		return rakerr.New(rakerr.StackOverflow, "value stack exhausted (%d slots)", len(f.stack))
	}
	f.stack[f.sp] = v
	f.sp++
	return nil
}

// pop discards the top value, releasing it (POP's effect).
func (f *Fiber) pop() value.Value {
	v := f.popRaw()
	value.Release(v)
	return v
}

// popRaw removes the top value without releasing it: ownership moves to
// whatever the caller is about to install it into (NEW_ARRAY/NEW_RECORD/
// NEW_RANGE elements, a RETURN value already sitted for reinstallation).
func (f *Fiber) popRaw() value.Value {
	f.sp--
	v := f.stack[f.sp]
	f.stack[f.sp] = value.Value{}
	return v
}

// popN removes and returns the top n values in the order they were
// pushed (left-to-right / bottom-to-top), without releasing them.
func (f *Fiber) popN(n int) []value.Value {
	start := f.sp - n
	out := make([]value.Value, n)
	copy(out, f.stack[start:f.sp])
	for i := start; i < f.sp; i++ {
		f.stack[i] = value.Value{}
	}
	f.sp = start
	return out
}

// Destroy releases everything the fiber still owns: globals, and any
// value left on the stack (locals a HALTed top-level script never popped,
// or a frame still live on a fiber abandoned mid-suspend). Matches spec
// §5's fiber destructor — the point at which every heap object the
// program allocated and never explicitly released comes back down to
// its creator's single reference.
func (f *Fiber) Destroy() {
	for i := 0; i < f.sp; i++ {
		value.Release(f.stack[i])
		f.stack[i] = value.Value{}
	}
	f.sp = 0
	value.Release(f.globals)
}

func (f *Fiber) peek() value.Value { return f.stack[f.sp-1] }

func (f *Fiber) currentFrame() *callFrame { return &f.frames[len(f.frames)-1] }

func (f *Fiber) fetch(frame *callFrame) bytecode.Instruction {
	instr := frame.closure.Fn.Chunk.Code[frame.ip]
	frame.ip++
	return instr
}
