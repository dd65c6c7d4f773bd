package value

import (
	"rak/internal/bytecode"
	"rak/internal/rakerr"
)

// NativeContext is the view a native function gets onto the fiber that
// called it: its arguments, a slot to stash state across a yield, and the
// ability to suspend. Defined here (rather than in the fiber package) so
// that Closure can reference native functions without an import cycle.
type NativeContext interface {
	NumArgs() int
	Arg(i int) Value
	State() interface{}
	SetState(interface{})
	Suspend()
	Globals() *ArrayObj
}

// NativeFunc is the signature every registered builtin implements. It
// returns the call's result value, or an error. Calling ctx.Suspend()
// before returning marks the fiber Suspended instead of completing the
// call; state previously stored with SetState is handed back on the next
// invocation via ctx.State().
type NativeFunc func(ctx NativeContext) (Value, *rakerr.Error)

// NativeDescriptor is a closure's callable when it wraps a native function:
// arity plus the function pointer-equivalent.
type NativeDescriptor struct {
	Name  string
	Arity int
	Fn    NativeFunc
}

// ClosureObj is an Object tagged as Function or NativeFunction. It owns a
// reference to exactly one of the two callables.
type ClosureObj struct {
	Object
	Fn     *bytecode.Function
	Native *NativeDescriptor
}

func (c *ClosureObj) header() *Object { return &c.Object }

func (c *ClosureObj) destroy() {
	c.Fn = nil
	c.Native = nil
}

func NewClosure(fn *bytecode.Function) Value {
	obj := &ClosureObj{Fn: fn}
	trackAlloc()
	return Value{kind: KindClosure, obj: obj}
}

func NewNativeClosure(native *NativeDescriptor) Value {
	obj := &ClosureObj{Native: native}
	trackAlloc()
	return Value{kind: KindClosure, obj: obj}
}

func AsClosure(v Value) *ClosureObj { return v.obj.(*ClosureObj) }

func (c *ClosureObj) IsNative() bool { return c.Native != nil }

func (c *ClosureObj) Arity() int {
	if c.Native != nil {
		return c.Native.Arity
	}
	return c.Fn.Arity
}

func (c *ClosureObj) Name() string {
	if c.Native != nil {
		return c.Native.Name
	}
	return c.Fn.Name
}
