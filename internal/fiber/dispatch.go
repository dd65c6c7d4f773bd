package fiber

import (
	"rak/internal/bytecode"
	"rak/internal/rakerr"
	"rak/internal/value"
)

// dispatch runs instructions until the fiber halts, yields, blocks on a
// suspended native call, or faults. It is the single entry point Run and
// Resume both funnel through.
func (f *Fiber) dispatch() *rakerr.Error {
	for {
		frame := f.currentFrame()

		if frame.closure.IsNative() {
			done, err := f.stepNative(frame)
			if err != nil {
				return f.fail(err)
			}
			if !done {
				// ctx.Suspend() was called; leave the frame as-is for Resume.
				f.status = StatusSuspended
				return nil
			}
			continue
		}

		instr := f.fetch(frame)
		switch instr.Op() {

		case bytecode.Nop:
			// no-op

		case bytecode.PushNil:
			f.push(value.Nil())
		case bytecode.PushFalse:
			f.push(value.Bool(false))
		case bytecode.PushTrue:
			f.push(value.Bool(true))

		case bytecode.LoadConst:
			if err := f.loadConst(frame, instr.A()); err != nil {
				return f.fault(frame, err)
			}

		case bytecode.LoadLocal:
			f.push(f.stack[frame.base+int(instr.A())])

		case bytecode.StoreLocal:
			slot := frame.base + int(instr.A())
			v := f.popRaw()
			value.Release(f.stack[slot])
			f.stack[slot] = v

		case bytecode.NewArray:
			n := int(instr.A())
			elems := f.popN(n)
			f.push(value.NewArray(elems))

		case bytecode.NewRecord:
			n := int(instr.A())
			flat := f.popN(n * 2)
			fields := make([]value.Field, n)
			for i := 0; i < n; i++ {
				name := flat[2*i]
				fields[i] = value.Field{Name: value.AsString(name).String(), Val: flat[2*i+1]}
				value.Release(name)
			}
			f.push(value.NewRecord(fields))

		case bytecode.NewRange:
			pair := f.popN(2)
			defer value.ReleaseAll(pair)
			if !pair[0].IsNumber() || !pair[1].IsNumber() {
				return f.fault(frame, rakerr.New(rakerr.TypeError, "range bounds must be numbers, got %s and %s", value.TypeName(pair[0]), value.TypeName(pair[1])))
			}
			f.push(value.NewRange(pair[0].AsNumber(), pair[1].AsNumber()))

		case bytecode.GetElement:
			if err := f.execGetElement(frame); err != nil {
				return f.fault(frame, err)
			}

		case bytecode.GetField:
			if err := f.execGetField(frame, instr.A()); err != nil {
				return f.fault(frame, err)
			}

		case bytecode.Pop:
			f.pop()

		case bytecode.Jump:
			frame.ip = int(instr.AB())

		case bytecode.JumpIfFalse:
			if f.peek().IsFalsy() {
				frame.ip = int(instr.AB())
			}

		case bytecode.JumpIfTrue:
			if !f.peek().IsFalsy() {
				frame.ip = int(instr.AB())
			}

		case bytecode.Eq:
			pair := f.popN(2)
			eq := value.Equals(pair[0], pair[1])
			value.ReleaseAll(pair)
			f.push(value.Bool(eq))

		case bytecode.Gt, bytecode.Lt:
			if err := f.execCompare(frame, instr.Op()); err != nil {
				return f.fault(frame, err)
			}

		case bytecode.Add:
			if err := f.execAdd(frame); err != nil {
				return f.fault(frame, err)
			}

		case bytecode.Sub, bytecode.Mul, bytecode.Div, bytecode.Mod:
			if err := f.execArith(frame, instr.Op()); err != nil {
				return f.fault(frame, err)
			}

		case bytecode.Not:
			v := f.popRaw()
			b := v.IsFalsy()
			value.Release(v)
			f.push(value.Bool(b))

		case bytecode.Neg:
			v := f.popRaw()
			if !v.IsNumber() {
				value.Release(v)
				return f.fault(frame, rakerr.New(rakerr.TypeError, "cannot negate %s", value.TypeName(v)))
			}
			n := v.AsNumber()
			value.Release(v)
			f.push(value.Number(-n))

		case bytecode.Echo:
			v := f.popRaw()
			Stdout(value.Print(v) + "\n")
			value.Release(v)

		case bytecode.Call:
			if err := f.execCall(int(instr.A())); err != nil {
				return f.fault(frame, err)
			}

		case bytecode.TailCall:
			if err := f.execTailCall(int(instr.A())); err != nil {
				return f.fault(frame, err)
			}

		case bytecode.Yield:
			f.status = StatusSuspended
			return nil

		case bytecode.Return:
			v := f.popRaw()
			f.doReturn(v)
			if len(f.frames) == 0 {
				f.status = StatusDone
				return nil
			}

		case bytecode.ReturnNil:
			f.doReturn(value.Nil())
			if len(f.frames) == 0 {
				f.status = StatusDone
				return nil
			}

		case bytecode.Halt:
			f.status = StatusDone
			return nil

		case bytecode.MakeClosure:
			child := frame.closure.Fn.Children[int(instr.A())]
			f.push(value.NewClosure(child))

		case bytecode.PushGlobals:
			f.push(f.globals)

		default:
			return f.fault(frame, rakerr.New(rakerr.NameError, "unknown opcode %d", instr.Op()))
		}
	}
}

// fault records the faulting instruction's position (by rewinding ip back
// to the instruction that raised it) before propagating, leaving the
// frame inspectable rather than unwound (spec §7).
func (f *Fiber) fault(frame *callFrame, err *rakerr.Error) *rakerr.Error {
	frame.ip--
	return f.fail(err)
}

func (f *Fiber) loadConst(frame *callFrame, idx byte) *rakerr.Error {
	raw := frame.closure.Fn.Chunk.Constants[idx]
	switch c := raw.(type) {
	case float64:
		f.push(value.Number(c))
	case string:
		f.push(value.NewString(c))
	default:
		return rakerr.New(rakerr.FormatError, "unsupported constant payload %T", raw)
	}
	return nil
}

func (f *Fiber) execGetElement(frame *callFrame) *rakerr.Error {
	pair := f.popN(2) // [container, index]
	container, index := pair[0], pair[1]
	switch {
	case container.IsArray():
		arr := value.AsArray(container)
		if !index.IsNumber() || !index.IsInteger() {
			value.ReleaseAll(pair)
			return rakerr.New(rakerr.TypeError, "array index must be an integer, got %s", value.TypeName(index))
		}
		i := int(index.AsInt())
		if i < 0 || i >= arr.Len() {
			value.ReleaseAll(pair)
			return rakerr.New(rakerr.IndexOutOfRange, "index %d out of range for array of length %d", i, arr.Len())
		}
		elem := arr.At(i)
		f.push(elem)
		value.ReleaseAll(pair)
		return nil
	case container.IsRange():
		rg := value.AsRange(container)
		if !index.IsNumber() || !index.IsInteger() {
			value.ReleaseAll(pair)
			return rakerr.New(rakerr.TypeError, "range index must be an integer, got %s", value.TypeName(index))
		}
		i := int(index.AsInt())
		if i < 0 || i >= rg.Len() {
			value.ReleaseAll(pair)
			return rakerr.New(rakerr.IndexOutOfRange, "index %d out of range for range of length %d", i, rg.Len())
		}
		f.push(value.Number(rg.At(i)))
		value.ReleaseAll(pair)
		return nil
	case container.IsString():
		s := value.AsString(container)
		if !index.IsNumber() || !index.IsInteger() {
			value.ReleaseAll(pair)
			return rakerr.New(rakerr.TypeError, "string index must be an integer, got %s", value.TypeName(index))
		}
		i := int(index.AsInt())
		if i < 0 || i >= s.Len() {
			value.ReleaseAll(pair)
			return rakerr.New(rakerr.IndexOutOfRange, "index %d out of range for string of length %d", i, s.Len())
		}
		f.push(value.StringSlice(container, i, i+1))
		value.ReleaseAll(pair)
		return nil
	case container.IsRecord():
		if !index.IsString() {
			value.ReleaseAll(pair)
			return rakerr.New(rakerr.TypeError, "record index must be a string, got %s", value.TypeName(index))
		}
		rec := value.AsRecord(container)
		v, _ := rec.Get(value.AsString(index).String()) // missing field yields Nil (spec §4.5)
		f.push(v)
		value.ReleaseAll(pair)
		return nil
	default:
		value.ReleaseAll(pair)
		return rakerr.New(rakerr.TypeError, "cannot index into %s", value.TypeName(container))
	}
}

func (f *Fiber) execGetField(frame *callFrame, constIdx byte) *rakerr.Error {
	container := f.popRaw()
	name, _ := frame.closure.Fn.Chunk.Constants[constIdx].(string)
	if !container.IsRecord() {
		value.Release(container)
		return rakerr.New(rakerr.TypeError, "cannot access field %q on %s", name, value.TypeName(container))
	}
	rec := value.AsRecord(container)
	v, _ := rec.Get(name) // missing field yields Nil (spec §4.5)
	f.push(v)
	value.Release(container)
	return nil
}

func (f *Fiber) execCompare(frame *callFrame, op bytecode.Op) *rakerr.Error {
	pair := f.popN(2)
	cmp, err := value.Compare(pair[0], pair[1])
	value.ReleaseAll(pair)
	if err != nil {
		return err
	}
	if op == bytecode.Gt {
		f.push(value.Bool(cmp > 0))
	} else {
		f.push(value.Bool(cmp < 0))
	}
	return nil
}

// execAdd handles ADD's three overloads: numeric sum, string concat and
// array concat (spec §4.4).
func (f *Fiber) execAdd(frame *callFrame) *rakerr.Error {
	pair := f.popN(2)
	a, b := pair[0], pair[1]
	switch {
	case a.IsNumber() && b.IsNumber():
		f.push(value.Number(a.AsNumber() + b.AsNumber()))
	case a.IsString() && b.IsString():
		f.push(value.StringConcat(a, b))
	case a.IsArray() && b.IsArray():
		f.push(value.ArrayConcat(a, b))
	default:
		value.ReleaseAll(pair)
		return rakerr.New(rakerr.TypeError, "cannot add %s and %s", value.TypeName(a), value.TypeName(b))
	}
	value.ReleaseAll(pair)
	return nil
}

func (f *Fiber) execArith(frame *callFrame, op bytecode.Op) *rakerr.Error {
	pair := f.popN(2)
	a, b := pair[0], pair[1]
	defer value.ReleaseAll(pair)
	if !a.IsNumber() || !b.IsNumber() {
		return rakerr.New(rakerr.TypeError, "cannot apply %s to %s and %s", op, value.TypeName(a), value.TypeName(b))
	}
	x, y := a.AsNumber(), b.AsNumber()
	switch op {
	case bytecode.Sub:
		f.push(value.Number(x - y))
	case bytecode.Mul:
		f.push(value.Number(x * y))
	case bytecode.Div:
		if y == 0 {
			return rakerr.New(rakerr.DivisionByZero, "division by zero")
		}
		f.push(value.Number(x / y))
	case bytecode.Mod:
		if y == 0 {
			return rakerr.New(rakerr.DivisionByZero, "division by zero")
		}
		f.push(value.Number(mod(x, y)))
	}
	return nil
}

func mod(x, y float64) float64 {
	r := x - y*float64(int64(x/y))
	return r
}

// execCall implements CALL: the callee and its arguments already sit on
// the stack as [closure, arg0, ..., argN-1] (subscr's call syntax lays
// them out left to right), so a new frame can reference that region in
// place with no copy (spec §4.6).
func (f *Fiber) execCall(argc int) *rakerr.Error {
	base := f.sp - 1 - argc
	callee := f.stack[base]
	if !callee.IsClosure() {
		return rakerr.New(rakerr.TypeError, "cannot call %s", value.TypeName(callee))
	}
	clo := value.AsClosure(callee)
	if clo.Arity() >= 0 && clo.Arity() != argc {
		return rakerr.New(rakerr.ArityMismatch, "%s expects %d argument(s), got %d", clo.Name(), clo.Arity(), argc)
	}
	if len(f.frames) >= cap(f.frames) {
		return rakerr.New(rakerr.StackOverflow, "call stack exhausted (%d frames)", cap(f.frames))
	}
	f.frames = append(f.frames, callFrame{closure: clo, base: base})
	return nil
}

// execTailCall replaces the current frame instead of pushing a new one:
// the callee and args are first slid down to the current frame's base
// (releasing whatever locals/temporaries occupied that range), then the
// frame's fields are overwritten in place.
func (f *Fiber) execTailCall(argc int) *rakerr.Error {
	newBase := f.sp - 1 - argc
	callee := f.stack[newBase]
	if !callee.IsClosure() {
		return rakerr.New(rakerr.TypeError, "cannot call %s", value.TypeName(callee))
	}
	clo := value.AsClosure(callee)
	if clo.Arity() >= 0 && clo.Arity() != argc {
		return rakerr.New(rakerr.ArityMismatch, "%s expects %d argument(s), got %d", clo.Name(), clo.Arity(), argc)
	}
	top := f.currentFrame()
	oldBase := top.base
	for i := oldBase; i < newBase; i++ {
		value.Release(f.stack[i])
		f.stack[i] = value.Value{}
	}
	n := argc + 1
	for i := 0; i < n; i++ {
		f.stack[oldBase+i] = f.stack[newBase+i]
		f.stack[newBase+i] = value.Value{}
	}
	f.sp = oldBase + n
	top.closure = clo
	top.ip = 0
	top.base = oldBase
	top.nativeState = nil
	return nil
}

// doReturn installs v at the current frame's base slot (the closure's own
// slot), releasing the closure and every local above it, then pops the
// frame — the same slot-0-landing RETURN performs for any depth of call.
func (f *Fiber) doReturn(v value.Value) {
	top := f.frames[len(f.frames)-1]
	for i := top.base; i < f.sp; i++ {
		value.Release(f.stack[i])
		f.stack[i] = value.Value{}
	}
	f.sp = top.base
	f.pushRaw(v)
	f.frames = f.frames[:len(f.frames)-1]
}
