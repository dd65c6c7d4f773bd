package value

import "math"

// RangeObj is an Object plus a half-open numeric interval [Start, End).
type RangeObj struct {
	Object
	Start, End float64
}

func (r *RangeObj) header() *Object { return &r.Object }
func (r *RangeObj) destroy()        {}

func NewRange(start, end float64) Value {
	obj := &RangeObj{Start: start, End: end}
	trackAlloc()
	return Value{kind: KindRange, obj: obj}
}

func AsRange(v Value) *RangeObj { return v.obj.(*RangeObj) }

func (r *RangeObj) Len() int {
	n := r.End - r.Start
	if n < 0 {
		return 0
	}
	return int(math.Floor(n))
}

// At is unchecked; the caller verifies 0 <= i < Len() first.
func (r *RangeObj) At(i int) float64 { return r.Start + float64(i) }
