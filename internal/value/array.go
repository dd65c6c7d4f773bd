package value

// ArrayObj is an Object plus a growable sequence of values. The array owns
// every element it holds: destroy releases them all before the backing
// slice is dropped.
type ArrayObj struct {
	Object
	elems []Value
}

func (a *ArrayObj) header() *Object { return &a.Object }

func (a *ArrayObj) destroy() {
	ReleaseAll(a.elems)
	a.elems = nil
}

// NewArray takes ownership of elems: the caller must already hold the
// retains on them (e.g. they were popped off the value stack, which owned
// them) and must not release them afterwards.
func NewArray(elems []Value) Value {
	obj := &ArrayObj{elems: elems}
	trackAlloc()
	return Value{kind: KindArray, obj: obj}
}

func AsArray(v Value) *ArrayObj { return v.obj.(*ArrayObj) }

func (a *ArrayObj) Len() int { return len(a.elems) }

// At is unchecked; the caller verifies bounds first (GET_ELEMENT does the
// bounds check and raises IndexOutOfRange itself).
func (a *ArrayObj) At(i int) Value { return a.elems[i] }

// ArrayConcat produces a new array holding copies of a's then b's
// elements, each freshly retained since the new array is a second owner.
func ArrayConcat(a, b Value) Value {
	aa, ab := AsArray(a), AsArray(b)
	out := make([]Value, 0, aa.Len()+ab.Len())
	out = append(out, aa.elems...)
	out = append(out, ab.elems...)
	RetainAll(out)
	return NewArray(out)
}

// ArrayConcatInPlace extends a with retained copies of b's elements and
// returns a unchanged (same identity), for the refcount==1 optimization.
func ArrayConcatInPlace(a, b Value) Value {
	aa, ab := AsArray(a), AsArray(b)
	RetainAll(ab.elems)
	aa.elems = append(aa.elems, ab.elems...)
	return a
}

func (a *ArrayObj) Refcount() int { return a.RefCount }
