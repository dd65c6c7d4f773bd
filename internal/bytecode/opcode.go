// Package bytecode defines the instruction word, the opcode table and the
// per-function Chunk the compiler emits into.
package bytecode

// Op is the low byte of every instruction word.
type Op byte

const (
	Nop Op = iota

	PushNil
	PushFalse
	PushTrue

	LoadConst // A: chunk.Constants[A]
	LoadLocal // A: frame.slots[A]
	StoreLocal

	NewArray  // A: element count
	NewRecord // A: field count (2A values popped: name, value, ...)
	NewRange

	GetElement // pop index, container -> element
	GetField   // A: constant index of the field name

	Pop

	Jump         // AB: absolute target
	JumpIfFalse  // AB: absolute target, does not pop
	JumpIfTrue   // AB: absolute target, does not pop

	Eq
	Gt
	Lt

	Add
	Sub
	Mul
	Div
	Mod

	Not
	Neg

	Echo

	Call     // A: argument count
	TailCall // A: argument count

	Yield

	Return
	ReturnNil

	Halt

	// MakeClosure is a grammar-supplement opcode (SPEC_FULL.md §1): it
	// wraps the enclosing function's Nth child Function as a Closure
	// value and pushes it, reachable from a function-literal expression.
	MakeClosure // A: child function index

	// PushGlobals pushes the fiber's global array, the supplement's
	// mechanism for resolving an identifier that isn't a local: the
	// compiler emits PushGlobals, LOAD_CONST(index), GET_ELEMENT,
	// reusing array-indexing semantics instead of adding a dedicated
	// global-variable opcode.
	PushGlobals
)

var names = map[Op]string{
	Nop:         "NOP",
	PushNil:     "PUSH_NIL",
	PushFalse:   "PUSH_FALSE",
	PushTrue:    "PUSH_TRUE",
	LoadConst:   "LOAD_CONST",
	LoadLocal:   "LOAD_LOCAL",
	StoreLocal:  "STORE_LOCAL",
	NewArray:    "NEW_ARRAY",
	NewRecord:   "NEW_RECORD",
	NewRange:    "NEW_RANGE",
	GetElement:  "GET_ELEMENT",
	GetField:    "GET_FIELD",
	Pop:         "POP",
	Jump:        "JUMP",
	JumpIfFalse: "JUMP_IF_FALSE",
	JumpIfTrue:  "JUMP_IF_TRUE",
	Eq:          "EQ",
	Gt:          "GT",
	Lt:          "LT",
	Add:         "ADD",
	Sub:         "SUB",
	Mul:         "MUL",
	Div:         "DIV",
	Mod:         "MOD",
	Not:         "NOT",
	Neg:         "NEG",
	Echo:        "ECHO",
	Call:        "CALL",
	TailCall:    "TAIL_CALL",
	Yield:       "YIELD",
	Return:      "RETURN",
	ReturnNil:   "RETURN_NIL",
	Halt:        "HALT",
	MakeClosure: "MAKE_CLOSURE",
	PushGlobals: "PUSH_GLOBALS",
}

func (op Op) String() string {
	if n, ok := names[op]; ok {
		return n
	}
	return "UNKNOWN"
}

// Operand width bounds from the spec: 256 constants/locals/nested
// functions per chunk, 65536 instructions, 16-bit absolute jump targets.
const (
	MaxConstants  = 256
	MaxLocals     = 256
	MaxChildFuncs = 256
	MaxInstrs     = 65536
)
