package value

import (
	"fmt"
	"strconv"
	"strings"

	"rak/internal/rakerr"
)

// TypeName returns the printable type name used in diagnostics.
func TypeName(v Value) string {
	switch v.kind {
	case KindNil:
		return "nil"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindRange:
		return "range"
	case KindRecord:
		return "record"
	case KindClosure:
		return "function"
	default:
		return "unknown"
	}
}

// ParseNumber parses a decimal with an optional fractional part and an
// optional exponent (e/E with an optional sign). The full string must be
// consumed; otherwise a FormatError is returned.
func ParseNumber(s string) (float64, *rakerr.Error) {
	if s == "" || s[0] < '0' || s[0] > '9' || strings.Trim(s, "0123456789.eE+-") != "" {
		return 0, rakerr.New(rakerr.FormatError, "invalid number literal %q", s)
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, rakerr.New(rakerr.FormatError, "invalid number literal %q", s)
	}
	return n, nil
}

// Print renders v the way ECHO does: no surrounding quotes on strings,
// recursive rendering of aggregates.
func Print(v Value) string {
	switch v.kind {
	case KindNil:
		return "nil"
	case KindBool:
		if v.AsBool() {
			return "true"
		}
		return "false"
	case KindNumber:
		return formatNumber(v.num)
	case KindString:
		return AsString(v).String()
	case KindArray:
		arr := AsArray(v)
		parts := make([]string, arr.Len())
		for i, e := range arr.elems {
			parts[i] = Print(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case KindRange:
		r := AsRange(v)
		return fmt.Sprintf("%s..%s", formatNumber(r.Start), formatNumber(r.End))
	case KindRecord:
		rec := AsRecord(v)
		parts := make([]string, rec.Len())
		for i, f := range rec.fields {
			parts[i] = fmt.Sprintf("%s: %s", f.Name, Print(f.Val))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case KindClosure:
		c := AsClosure(v)
		if c.Name() == "" {
			return "<function>"
		}
		return fmt.Sprintf("<function %s>", c.Name())
	default:
		return "<unknown>"
	}
}

func formatNumber(n float64) string {
	if float64(int64(n)) == n && n > -1e15 && n < 1e15 {
		return strconv.FormatInt(int64(n), 10)
	}
	return strconv.FormatFloat(n, 'g', -1, 64)
}
