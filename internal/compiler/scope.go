package compiler

import (
	"golang.org/x/exp/slices"

	"rak/internal/bytecode"
	"rak/internal/rakerr"
)

// local is one entry of a function's symbol stack: name -> slot index,
// plus the scope depth it was declared at so end_scope knows which
// locals to pop.
type local struct {
	name  string
	depth int
}

// funcState is the per-function compiler context: its own chunk, its own
// symbol stack and scope depth, and a link to the enclosing function's
// state for nested function literals.
type funcState struct {
	enclosing *funcState
	fn        *bytecode.Function
	locals    []local
	depth     int
}

func newFuncState(enclosing *funcState, name string, arity int) *funcState {
	return &funcState{
		enclosing: enclosing,
		fn:        bytecode.NewFunction(name, arity),
	}
}

func (fs *funcState) beginScope() { fs.depth++ }

// endScope pops every local declared at the current depth, emitting one
// POP per variable to balance the value stack (spec §4.3, testable
// property #3), then decrements depth.
func (fs *funcState) endScope(emit func(bytecode.Op)) {
	for len(fs.locals) > 0 && fs.locals[len(fs.locals)-1].depth == fs.depth {
		emit(bytecode.Pop)
		fs.locals = fs.locals[:len(fs.locals)-1]
	}
	fs.depth--
}

// endScopeValue closes the current scope the same way endScope does, but
// a value produced by the block (its tail expression, or an explicit Nil)
// already sits on top of the locals being removed. Because frame.slots IS
// the value stack (LOAD_LOCAL/STORE_LOCAL address the same cells PUSH/POP
// do), the value and the topmost local alias once the value has been
// pushed: STORE_LOCAL at the top local's own slot both consumes the kept
// value and releases that local in one step, landing the value exactly
// where the next-lower local's slot needs it. Repeating downward to the
// scope's first slot removes every local while preserving the value, the
// same slot-0-landing RETURN uses for its own frame teardown.
func (fs *funcState) endScopeValue(emitA func(bytecode.Op, byte)) {
	n := 0
	for len(fs.locals) > 0 && fs.locals[len(fs.locals)-1].depth == fs.depth {
		n++
		fs.locals = fs.locals[:len(fs.locals)-1]
	}
	fs.depth--
	if n == 0 {
		return
	}
	base := len(fs.locals)
	for slot := base + n - 1; slot >= base; slot-- {
		emitA(bytecode.StoreLocal, byte(slot))
	}
}

// declareLocal installs a new symbol in the current scope. Duplicates
// within the same scope are a DuplicateLocal error.
func (fs *funcState) declareLocal(name string, loc rakerr.Location) (slot int, err *rakerr.Error) {
	for i := len(fs.locals) - 1; i >= 0; i-- {
		l := fs.locals[i]
		if l.depth < fs.depth {
			break
		}
		if l.name == name {
			return 0, rakerr.NewAt(rakerr.DuplicateLocal, loc, "duplicate local %q", name)
		}
	}
	if len(fs.locals) >= bytecode.MaxLocals {
		return 0, rakerr.NewAt(rakerr.TooManyLocals, loc, "too many locals in function %q", fs.fn.Name)
	}
	fs.locals = append(fs.locals, local{name: name, depth: fs.depth})
	return len(fs.locals) - 1, nil
}

// resolveLocal finds name in the nearest enclosing scope of this
// function only; it does not look at outer functions (Rak functions do
// not capture outer locals — see spec §9 on upvalues being future work).
func (fs *funcState) resolveLocal(name string) (slot int, ok bool) {
	for i := len(fs.locals) - 1; i >= 0; i-- {
		if fs.locals[i].name == name {
			return i, true
		}
	}
	return 0, false
}

// duplicateCandidates lists locals sharing name's first letter, sorted
// alphabetically for a deterministic diagnostic, so resolveIdent's
// UndefinedLocal error can suggest likely typos instead of just failing.
func (fs *funcState) duplicateCandidates(name string) []string {
	var out []string
	for _, l := range fs.locals {
		if len(l.name) > 0 && len(name) > 0 && l.name[0] == name[0] {
			out = append(out, l.name)
		}
	}
	slices.Sort(out)
	return out
}

// GlobalResolver maps a built-in name to its index in the fiber's global
// array (spec §6 `resolve_global`). The embedding host builds one from
// whatever it passed to register_native before calling Compile.
type GlobalResolver interface {
	Resolve(name string) (index int, ok bool)
}

// MapResolver is the trivial GlobalResolver built from a name->index map.
type MapResolver map[string]int

func (m MapResolver) Resolve(name string) (int, bool) {
	idx, ok := m[name]
	return idx, ok
}
