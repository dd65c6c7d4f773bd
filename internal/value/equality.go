package value

import (
	"bytes"
	"math"

	"rak/internal/rakerr"
)

// NumberEpsilon is the absolute tolerance used for Number equality and
// ordering.
const NumberEpsilon = 1e-9

func numEq(a, b float64) bool {
	return math.Abs(a-b) <= NumberEpsilon
}

// Equals implements same-type structural equality. Different types are
// never equal.
func Equals(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNil:
		return true
	case KindBool:
		return a.AsBool() == b.AsBool()
	case KindNumber:
		return numEq(a.num, b.num)
	case KindString:
		return AsString(a).String() == AsString(b).String()
	case KindArray:
		aa, ab := AsArray(a), AsArray(b)
		if aa.Len() != ab.Len() {
			return false
		}
		for i := range aa.elems {
			if !Equals(aa.elems[i], ab.elems[i]) {
				return false
			}
		}
		return true
	case KindRange:
		ra, rb := AsRange(a), AsRange(b)
		return numEq(ra.Start, rb.Start) && numEq(ra.End, rb.End)
	case KindRecord:
		ra, rb := AsRecord(a), AsRecord(b)
		if ra.Len() != rb.Len() {
			return false
		}
		for i := range ra.fields {
			if ra.fields[i].Name != rb.fields[i].Name {
				return false
			}
			if !Equals(ra.fields[i].Val, rb.fields[i].Val) {
				return false
			}
		}
		return true
	case KindClosure:
		return AsClosure(a) == AsClosure(b)
	default:
		return false
	}
}

// Compare orders Numbers (epsilon-aware) and Strings (lexicographic byte
// order). Any other type pairing is a TypeError.
func Compare(a, b Value) (int, *rakerr.Error) {
	if a.kind == KindNumber && b.kind == KindNumber {
		if numEq(a.num, b.num) {
			return 0, nil
		}
		if a.num < b.num {
			return -1, nil
		}
		return 1, nil
	}
	if a.kind == KindString && b.kind == KindString {
		return bytes.Compare(AsString(a).buf, AsString(b).buf), nil
	}
	return 0, rakerr.New(rakerr.TypeError, "cannot order %s and %s", TypeName(a), TypeName(b))
}
