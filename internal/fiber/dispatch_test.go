package fiber

import (
	"math"
	"testing"

	"rak/internal/bytecode"
	"rak/internal/rakerr"
	"rak/internal/value"
)

func newFunc(arity int, code []bytecode.Instruction, constants []interface{}) *bytecode.Function {
	fn := bytecode.NewFunction("", arity)
	fn.Chunk.Code = code
	fn.Chunk.Constants = constants
	fn.Chunk.Lines = make([]int, len(code))
	return fn
}

// runProgram builds a fresh VM-less fiber (no natives needed) around fn,
// runs it to completion and returns the fiber for inspection.
func runProgram(t *testing.T, fn *bytecode.Function, args []value.Value) *Fiber {
	t.Helper()
	closure := value.NewClosure(fn)
	globals := value.NewArray(nil)
	f, err := NewFiber(globals, 0, 0, closure, args)
	if err != nil {
		t.Fatalf("NewFiber: %v", err)
	}
	if rerr := f.Run(); rerr != nil {
		t.Fatalf("Run: %v", rerr)
	}
	return f
}

func numResult(t *testing.T, f *Fiber) float64 {
	t.Helper()
	r := f.Result()
	if !r.IsNumber() {
		t.Fatalf("Result() = %v (%s), want a number", value.Print(r), value.TypeName(r))
	}
	return r.AsNumber()
}

func TestArithmeticOpcodes(t *testing.T) {
	tests := []struct {
		name string
		op   bytecode.Op
		a, b float64
		want float64
	}{
		{"add", bytecode.Add, 10, 20, 30},
		{"sub", bytecode.Sub, 50, 20, 30},
		{"mul", bytecode.Mul, 5, 6, 30},
		{"div", bytecode.Div, 60, 2, 30},
		{"mod", bytecode.Mod, 17, 5, 2},
		{"mod truncating", bytecode.Mod, 10, 3, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			value.ResetObjectStats()
			fn := newFunc(0, []bytecode.Instruction{
				bytecode.EncodeA(bytecode.LoadConst, 0),
				bytecode.EncodeA(bytecode.LoadConst, 1),
				bytecode.Encode0(tt.op),
				bytecode.Encode0(bytecode.Return),
			}, []interface{}{tt.a, tt.b})

			f := runProgram(t, fn, nil)
			got := numResult(t, f)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("got %v, want %v", got, tt.want)
			}
			if f.Status() != StatusDone {
				t.Errorf("Status() = %v, want Done", f.Status())
			}
		})
	}
}

func TestNegation(t *testing.T) {
	fn := newFunc(0, []bytecode.Instruction{
		bytecode.EncodeA(bytecode.LoadConst, 0),
		bytecode.Encode0(bytecode.Neg),
		bytecode.Encode0(bytecode.Return),
	}, []interface{}{42.0})

	f := runProgram(t, fn, nil)
	if got := numResult(t, f); got != -42 {
		t.Errorf("got %v, want -42", got)
	}
}

func TestDivisionByZero(t *testing.T) {
	fn := newFunc(0, []bytecode.Instruction{
		bytecode.EncodeA(bytecode.LoadConst, 0),
		bytecode.EncodeA(bytecode.LoadConst, 1),
		bytecode.Encode0(bytecode.Div),
		bytecode.Encode0(bytecode.Return),
	}, []interface{}{10.0, 0.0})

	closure := value.NewClosure(fn)
	globals := value.NewArray(nil)
	f, err := NewFiber(globals, 0, 0, closure, nil)
	if err != nil {
		t.Fatalf("NewFiber: %v", err)
	}
	rerr := f.Run()
	if rerr == nil {
		t.Fatalf("expected a DivisionByZero error")
	}
	if rerr.Kind != "DivisionByZero" {
		t.Errorf("Kind = %v, want DivisionByZero", rerr.Kind)
	}
	if f.Status() != StatusSuspended {
		t.Errorf("Status() = %v, want Suspended (a fault leaves the fiber suspended for inspection)", f.Status())
	}
}

func TestArrayLiteralAndIndex(t *testing.T) {
	value.ResetObjectStats()
	fn := newFunc(0, []bytecode.Instruction{
		bytecode.EncodeA(bytecode.LoadConst, 0),
		bytecode.EncodeA(bytecode.LoadConst, 1),
		bytecode.EncodeA(bytecode.LoadConst, 2),
		bytecode.EncodeA(bytecode.NewArray, 3),
		bytecode.EncodeA(bytecode.LoadConst, 3),
		bytecode.Encode0(bytecode.GetElement),
		bytecode.Encode0(bytecode.Return),
	}, []interface{}{1.0, 2.0, 3.0, 1.0})

	f := runProgram(t, fn, nil)
	if got := numResult(t, f); got != 2 {
		t.Errorf("array[1] = %v, want 2", got)
	}
	f.Destroy()
	if got := value.LiveObjects(); got != 0 {
		t.Errorf("LiveObjects() = %d, want 0 after Destroy", got)
	}
}

func TestArrayIndexOutOfRange(t *testing.T) {
	fn := newFunc(0, []bytecode.Instruction{
		bytecode.EncodeA(bytecode.LoadConst, 0),
		bytecode.EncodeA(bytecode.NewArray, 1),
		bytecode.EncodeA(bytecode.LoadConst, 1),
		bytecode.Encode0(bytecode.GetElement),
		bytecode.Encode0(bytecode.Return),
	}, []interface{}{1.0, 5.0})

	closure := value.NewClosure(fn)
	globals := value.NewArray(nil)
	f, _ := NewFiber(globals, 0, 0, closure, nil)
	rerr := f.Run()
	if rerr == nil || rerr.Kind != "IndexOutOfRange" {
		t.Fatalf("got %v, want IndexOutOfRange", rerr)
	}
}

func TestRangeIndexing(t *testing.T) {
	// 0..3 -> r[0]==0, r[2]==2, r[3] is IndexOutOfRange
	build := func(idx float64) *bytecode.Function {
		return newFunc(0, []bytecode.Instruction{
			bytecode.EncodeA(bytecode.LoadConst, 0), // 0
			bytecode.EncodeA(bytecode.LoadConst, 1), // 3
			bytecode.Encode0(bytecode.NewRange),
			bytecode.EncodeA(bytecode.LoadConst, 2), // idx
			bytecode.Encode0(bytecode.GetElement),
			bytecode.Encode0(bytecode.Return),
		}, []interface{}{0.0, 3.0, idx})
	}

	if f := runProgram(t, build(0), nil); numResult(t, f) != 0 {
		t.Errorf("r[0] != 0")
	}
	if f := runProgram(t, build(2), nil); numResult(t, f) != 2 {
		t.Errorf("r[2] != 2")
	}

	closure := value.NewClosure(build(3))
	globals := value.NewArray(nil)
	f, _ := NewFiber(globals, 0, 0, closure, nil)
	rerr := f.Run()
	if rerr == nil || rerr.Kind != "IndexOutOfRange" {
		t.Fatalf("r[3]: got %v, want IndexOutOfRange", rerr)
	}
}

func TestRecordFieldAccess(t *testing.T) {
	// { a: 1 } . a  -> via GET_FIELD
	fn := newFunc(0, []bytecode.Instruction{
		bytecode.EncodeA(bytecode.LoadConst, 0), // "a"
		bytecode.EncodeA(bytecode.LoadConst, 1), // 1
		bytecode.EncodeA(bytecode.NewRecord, 1),
		bytecode.EncodeA(bytecode.GetField, 0), // field name constant "a" reused
		bytecode.Encode0(bytecode.Return),
	}, []interface{}{"a", 1.0})

	f := runProgram(t, fn, nil)
	if got := numResult(t, f); got != 1 {
		t.Errorf("record.a = %v, want 1", got)
	}
}

func TestMissingRecordFieldYieldsNil(t *testing.T) {
	// { a: 1 } . missing -> Nil, not an error (spec §4.5)
	fn := newFunc(0, []bytecode.Instruction{
		bytecode.EncodeA(bytecode.LoadConst, 0), // "a"
		bytecode.EncodeA(bytecode.LoadConst, 1), // 1
		bytecode.EncodeA(bytecode.NewRecord, 1),
		bytecode.EncodeA(bytecode.GetField, 2), // constant index 2 -> "missing"
		bytecode.Encode0(bytecode.Return),
	}, []interface{}{"a", 1.0, "missing"})

	f := runProgram(t, fn, nil)
	r := f.Result()
	if !r.IsNil() {
		t.Errorf("Result() = %v, want Nil", value.Print(r))
	}
}

func TestMissingRecordFieldViaGetElementYieldsNil(t *testing.T) {
	fn := newFunc(0, []bytecode.Instruction{
		bytecode.EncodeA(bytecode.LoadConst, 0), // "a"
		bytecode.EncodeA(bytecode.LoadConst, 1), // 1
		bytecode.EncodeA(bytecode.NewRecord, 1),
		bytecode.EncodeA(bytecode.LoadConst, 2), // "missing"
		bytecode.Encode0(bytecode.GetElement),
		bytecode.Encode0(bytecode.Return),
	}, []interface{}{"a", 1.0, "missing"})

	f := runProgram(t, fn, nil)
	if !f.Result().IsNil() {
		t.Errorf("Result() = %v, want Nil", value.Print(f.Result()))
	}
}

func TestStringConcat(t *testing.T) {
	fn := newFunc(0, []bytecode.Instruction{
		bytecode.EncodeA(bytecode.LoadConst, 0),
		bytecode.EncodeA(bytecode.LoadConst, 1),
		bytecode.Encode0(bytecode.Add),
		bytecode.Encode0(bytecode.Return),
	}, []interface{}{"foo", "bar"})

	f := runProgram(t, fn, nil)
	r := f.Result()
	if !r.IsString() || value.AsString(r).String() != "foobar" {
		t.Errorf("Result() = %v, want \"foobar\"", value.Print(r))
	}
}

func TestEquality(t *testing.T) {
	tests := []struct {
		name string
		code []bytecode.Instruction
		want bool
	}{
		{
			name: "arrays equal",
			code: []bytecode.Instruction{
				bytecode.EncodeA(bytecode.LoadConst, 0),
				bytecode.EncodeA(bytecode.LoadConst, 1),
				bytecode.EncodeA(bytecode.NewArray, 2),
				bytecode.EncodeA(bytecode.LoadConst, 0),
				bytecode.EncodeA(bytecode.LoadConst, 1),
				bytecode.EncodeA(bytecode.NewArray, 2),
				bytecode.Encode0(bytecode.Eq),
				bytecode.Encode0(bytecode.Return),
			},
			want: true,
		},
		{
			name: "arrays not equal when order differs",
			code: []bytecode.Instruction{
				bytecode.EncodeA(bytecode.LoadConst, 0),
				bytecode.EncodeA(bytecode.LoadConst, 1),
				bytecode.EncodeA(bytecode.NewArray, 2),
				bytecode.EncodeA(bytecode.LoadConst, 1),
				bytecode.EncodeA(bytecode.LoadConst, 0),
				bytecode.EncodeA(bytecode.NewArray, 2),
				bytecode.Encode0(bytecode.Eq),
				bytecode.Encode0(bytecode.Return),
			},
			want: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fn := newFunc(0, tt.code, []interface{}{1.0, 2.0})
			f := runProgram(t, fn, nil)
			r := f.Result()
			if !r.IsBool() || r.AsBool() != tt.want {
				t.Errorf("Result() = %v, want %v", value.Print(r), tt.want)
			}
		})
	}
}

// TestCallAndReturn exercises a user-defined closure: a "double" function
// (slot 0 reserved for its own closure, slot 1 its single parameter) called
// with one argument, matching the CALL convention [closure, arg0, ...]
// (spec §4.6).
func TestCallAndReturn(t *testing.T) {
	double := newFunc(1, []bytecode.Instruction{
		bytecode.EncodeA(bytecode.LoadLocal, 1),
		bytecode.EncodeA(bytecode.LoadLocal, 1),
		bytecode.Encode0(bytecode.Add),
		bytecode.Encode0(bytecode.Return),
	}, nil)

	outer := newFunc(0, []bytecode.Instruction{
		bytecode.EncodeA(bytecode.MakeClosure, 0),
		bytecode.EncodeA(bytecode.LoadConst, 0),
		bytecode.EncodeA(bytecode.Call, 1),
		bytecode.Encode0(bytecode.Return),
	}, []interface{}{5.0})
	outer.AddChild(double)

	f := runProgram(t, outer, nil)
	if got := numResult(t, f); got != 10 {
		t.Errorf("double(5) = %v, want 10", got)
	}
}

// TestTailCallReusesFrame exercises TAIL_CALL directly (spec's grammar
// supplement never emits it from source, so it is tested against
// hand-built chunks rather than compiler output): calling a function that
// immediately tail-calls a second one should produce the second function's
// result, with the caller's frame having already been collapsed.
func TestTailCallReusesFrame(t *testing.T) {
	inner := newFunc(1, []bytecode.Instruction{
		bytecode.EncodeA(bytecode.LoadLocal, 1),
		bytecode.EncodeA(bytecode.LoadConst, 0),
		bytecode.Encode0(bytecode.Add),
		bytecode.Encode0(bytecode.Return),
	}, []interface{}{1.0})

	outer := newFunc(1, []bytecode.Instruction{
		bytecode.EncodeA(bytecode.MakeClosure, 0),
		bytecode.EncodeA(bytecode.LoadLocal, 1),
		bytecode.EncodeA(bytecode.TailCall, 1),
	}, nil)
	outer.AddChild(inner)

	f := runProgram(t, outer, []value.Value{value.Number(41)})
	if got := numResult(t, f); got != 42 {
		t.Errorf("tail call result = %v, want 42", got)
	}
	if len(f.frames) != 0 {
		t.Errorf("expected no frames left after the tail-called function returns, got %d", len(f.frames))
	}
}

func TestYieldAndResume(t *testing.T) {
	fn := newFunc(0, []bytecode.Instruction{
		bytecode.EncodeA(bytecode.LoadConst, 0),
		bytecode.Encode0(bytecode.Yield),
		bytecode.EncodeA(bytecode.LoadConst, 1),
		bytecode.Encode0(bytecode.Return),
	}, []interface{}{1.0, 2.0})

	closure := value.NewClosure(fn)
	globals := value.NewArray(nil)
	f, err := NewFiber(globals, 0, 0, closure, nil)
	if err != nil {
		t.Fatalf("NewFiber: %v", err)
	}
	if rerr := f.Run(); rerr != nil {
		t.Fatalf("Run: %v", rerr)
	}
	if f.Status() != StatusSuspended {
		t.Fatalf("Status() = %v, want Suspended after YIELD", f.Status())
	}
	if rerr := f.Resume(); rerr != nil {
		t.Fatalf("Resume: %v", rerr)
	}
	if f.Status() != StatusDone {
		t.Fatalf("Status() = %v, want Done", f.Status())
	}
	if got := numResult(t, f); got != 2 {
		t.Errorf("Result() = %v, want 2", got)
	}
}

func TestResumeNotSuspendedIsAnError(t *testing.T) {
	fn := newFunc(0, []bytecode.Instruction{
		bytecode.Encode0(bytecode.ReturnNil),
	}, nil)
	f := runProgram(t, fn, nil)
	if err := f.Resume(); err == nil {
		t.Fatalf("expected an error resuming a Done fiber")
	}
}

func TestStoreLocalReleasesOldValue(t *testing.T) {
	value.ResetObjectStats()
	// fn(x) { x = "new"; return x }
	fn := newFunc(1, []bytecode.Instruction{
		bytecode.EncodeA(bytecode.LoadConst, 0),
		bytecode.EncodeA(bytecode.StoreLocal, 1),
		bytecode.EncodeA(bytecode.LoadLocal, 1),
		bytecode.Encode0(bytecode.Return),
	}, []interface{}{"new"})

	f := runProgram(t, fn, []value.Value{value.NewString("old")})
	r := f.Result()
	if !r.IsString() || value.AsString(r).String() != "new" {
		t.Errorf("Result() = %v, want \"new\"", value.Print(r))
	}
	f.Destroy()
	if got := value.LiveObjects(); got != 0 {
		t.Errorf("LiveObjects() = %d, want 0 (both the replaced \"old\" and the final \"new\" released)", got)
	}
}

func TestHaltLeavesLocalsForDestroy(t *testing.T) {
	value.ResetObjectStats()
	// top-level script: let x = "unreleased"; -- a declaration's initializer
	// is left sitting on the stack as the local's home slot (no explicit
	// STORE_LOCAL at declaration time); HALT ends the script without any
	// RETURN ever popping it.
	fn := newFunc(0, []bytecode.Instruction{
		bytecode.EncodeA(bytecode.LoadConst, 0),
		bytecode.Encode0(bytecode.Halt),
	}, []interface{}{"unreleased"})

	closure := value.NewClosure(fn)
	globals := value.NewArray(nil)
	f, err := NewFiber(globals, 0, 0, closure, nil)
	if err != nil {
		t.Fatalf("NewFiber: %v", err)
	}
	if rerr := f.Run(); rerr != nil {
		t.Fatalf("Run: %v", rerr)
	}
	if got := value.LiveObjects(); got == 0 {
		t.Fatalf("expected the HALTed script's local to still be live before Destroy")
	}
	f.Destroy()
	if got := value.LiveObjects(); got != 0 {
		t.Errorf("LiveObjects() = %d, want 0 after Destroy", got)
	}
}

func TestNativeCallThroughGlobals(t *testing.T) {
	vm := NewVM()
	called := false
	vm.RegisterNative("double", 1, func(ctx value.NativeContext) (value.Value, *rakerr.Error) {
		called = true
		return value.Number(ctx.Arg(0).AsNumber() * 2), nil
	})
	idx := vm.ResolveGlobal("double")
	if idx < 0 {
		t.Fatalf("ResolveGlobal(double) = %d, want >= 0", idx)
	}

	fn := newFunc(0, []bytecode.Instruction{
		bytecode.Encode0(bytecode.PushGlobals),
		bytecode.EncodeA(bytecode.LoadConst, 0),
		bytecode.Encode0(bytecode.GetElement),
		bytecode.EncodeA(bytecode.LoadConst, 1),
		bytecode.EncodeA(bytecode.Call, 1),
		bytecode.Encode0(bytecode.Return),
	}, []interface{}{float64(idx), 21.0})

	closure := value.NewClosure(fn)
	f, err := NewFiber(vm.Globals(), 0, 0, closure, nil)
	if err != nil {
		t.Fatalf("NewFiber: %v", err)
	}
	if rerr := f.Run(); rerr != nil {
		t.Fatalf("Run: %v", rerr)
	}
	if !called {
		t.Errorf("native function was never invoked")
	}
	if got := numResult(t, f); got != 42 {
		t.Errorf("double(21) = %v, want 42", got)
	}
}
