package value

import "sync/atomic"

// Kind discriminates the Value union.
type Kind byte

const (
	KindNil Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindRange
	KindRecord
	KindClosure
)

// Object is the header every heap-allocated variant embeds. A heap object
// is created with RefCount zero; whichever operation installs it into a
// stack slot or a container field is responsible for the first Retain.
type Object struct {
	RefCount int
	Shared   bool // reserved for value-sharing optimizations; policy unspecified
}

// heapObj is implemented by every heap variant (String, Array, Range,
// Record, Closure). destroy releases the values the object owns; it is
// called exactly once, when RefCount reaches zero.
type heapObj interface {
	header() *Object
	destroy()
}

// live and freed are instrumentation only: they let tests assert the
// refcount-balance invariant (total allocations == total frees once a
// program halts) without threading a counter through every constructor
// call site.
var live int64
var freed int64

func trackAlloc() { atomic.AddInt64(&live, 1) }
func trackFree()  { atomic.AddInt64(&freed, 1) }

// LiveObjects returns allocated-minus-freed heap objects, for property
// tests. It is not part of the embedding API.
func LiveObjects() int64 {
	return atomic.LoadInt64(&live) - atomic.LoadInt64(&freed)
}

// ResetObjectStats zeroes the allocation counters; call between test cases.
func ResetObjectStats() {
	atomic.StoreInt64(&live, 0)
	atomic.StoreInt64(&freed, 0)
}

// Retain increments v's refcount. No-op for non-object values.
func Retain(v Value) {
	if v.obj != nil {
		v.obj.header().RefCount++
	}
}

// Release decrements v's refcount and, on reaching zero, invokes the
// variant's destructor, which releases owned children before the object
// itself is dropped. No-op for non-object values.
func Release(v Value) {
	if v.obj == nil {
		return
	}
	h := v.obj.header()
	h.RefCount--
	if h.RefCount <= 0 {
		v.obj.destroy()
		trackFree()
	}
}

// RetainAll/ReleaseAll are conveniences for containers adjusting several
// fields at once (array concat, record construction).
func RetainAll(vs []Value) {
	for _, v := range vs {
		Retain(v)
	}
}

func ReleaseAll(vs []Value) {
	for _, v := range vs {
		Release(v)
	}
}
