package fiber

import (
	"rak/internal/rakerr"
	"rak/internal/value"
)

// nativeContext is the value.NativeContext a native function sees while
// it runs. A native frame keeps no bytecode IP of its own; instead
// nativeState carries whatever the function itself chose to stash via
// SetState, so a call that suspends can be re-invoked from scratch next
// Resume and pick its place back up purely from that opaque value.
type nativeContext struct {
	fiber     *Fiber
	frame     *callFrame
	args      []value.Value
	suspended bool
}

func (ctx *nativeContext) NumArgs() int          { return len(ctx.args) }
func (ctx *nativeContext) Arg(i int) value.Value { return ctx.args[i] }
func (ctx *nativeContext) State() interface{}    { return ctx.frame.nativeState }
func (ctx *nativeContext) SetState(s interface{}) { ctx.frame.nativeState = s }
func (ctx *nativeContext) Suspend()              { ctx.suspended = true }
func (ctx *nativeContext) Globals() *value.ArrayObj {
	return value.AsArray(ctx.fiber.globals)
}

// stepNative invokes the native closure occupying frame. It never steps
// bytecode — the whole call happens in this one Go call — but it
// participates in the same frame/base bookkeeping a bytecode RETURN
// would, so the caller's stack layout comes out identical either way.
// done reports whether the call actually completed (false means the
// native suspended and frame was left untouched for the next Resume).
func (f *Fiber) stepNative(frame *callFrame) (done bool, err *rakerr.Error) {
	argc := frame.closure.Native.Arity
	if argc < 0 {
		argc = f.sp - frame.base - 1
	}
	args := make([]value.Value, argc)
	copy(args, f.stack[frame.base+1:frame.base+1+argc])

	ctx := &nativeContext{fiber: f, frame: frame, args: args}
	result, nerr := frame.closure.Native.Fn(ctx)
	if nerr != nil {
		return false, nerr
	}
	if ctx.suspended {
		return false, nil
	}

	for i := frame.base; i < f.sp; i++ {
		value.Release(f.stack[i])
		f.stack[i] = value.Value{}
	}
	f.sp = frame.base
	f.push(result)
	f.frames = f.frames[:len(f.frames)-1]
	if len(f.frames) == 0 {
		f.status = StatusDone
	}
	return true, nil
}
