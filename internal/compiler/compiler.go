// Package compiler is a single-pass recursive-descent compiler: every
// parse function directly appends bytecode, with no intermediate AST.
package compiler

import (
	"rak/internal/bytecode"
	"rak/internal/lexer"
	"rak/internal/rakerr"
	"rak/internal/value"
)

type Compiler struct {
	p        *parser
	fs       *funcState
	resolver GlobalResolver
}

// Compile takes a file name and source buffer and returns a Closure
// wrapping the root Function, or the single compile error encountered.
// No partial chunk is ever returned on error.
func Compile(fileName, source string, resolver GlobalResolver) (value.Value, *rakerr.Error) {
	c := &Compiler{
		p:        newParser(fileName, source),
		resolver: resolver,
	}
	c.fs = newFuncState(nil, "<script>", 0)
	// Slot 0 is reserved for the script's own closure, the same convention
	// fnExpr uses for a nested function literal (spec §4.6: "slot 0
	// aliases the closure") — fiber.NewFiber lays out the initial call
	// exactly like CALL does, closure at frame.base, so the top-level
	// frame needs the reservation too or a top-level `let` would collide
	// with it.
	// The locals list is empty at this point, so this can never actually
	// fail (TooManyLocals/DuplicateLocal both require existing entries).
	_, _ = c.fs.declareLocal("<script>", rakerr.Location{})

	for !c.p.atEnd() {
		c.statement()
	}
	c.emit0(bytecode.Halt)

	if c.p.err != nil {
		return value.Value{}, c.p.err
	}
	return value.NewClosure(c.fs.fn), nil
}

func (c *Compiler) chunk() *bytecode.Chunk { return c.fs.fn.Chunk }

func (c *Compiler) line() int {
	if c.p.err != nil {
		return c.p.prev.Line
	}
	return c.p.prev.Line
}

func (c *Compiler) emit0(op bytecode.Op) int {
	return c.chunk().Write(bytecode.Encode0(op), c.line())
}

func (c *Compiler) emitA(op bytecode.Op, a byte) int {
	return c.chunk().Write(bytecode.EncodeA(op, a), c.line())
}

// emitJump appends a jump-family instruction with a placeholder target of
// 0 and returns its offset for later patching.
func (c *Compiler) emitJump(op bytecode.Op) int {
	return c.chunk().Write(bytecode.EncodeAB16(op, 0), c.line())
}

func (c *Compiler) patchJumpHere(at int) {
	c.patchJumpTo(at, len(c.chunk().Code))
}

func (c *Compiler) patchJumpTo(at, target int) {
	instr := c.chunk().Code[at]
	c.chunk().Patch(at, bytecode.EncodeAB16(instr.Op(), uint16(target)))
}

func (c *Compiler) here() int { return len(c.chunk().Code) }

func (c *Compiler) addConst(v interface{}) (byte, *rakerr.Error) {
	if len(c.chunk().Constants) >= bytecode.MaxConstants {
		return 0, rakerr.NewAt(rakerr.TooManyConstants, c.p.loc(), "too many constants in function %q", c.fs.fn.Name)
	}
	return byte(c.chunk().AddConstant(v)), nil
}

func (c *Compiler) fail(err *rakerr.Error) {
	if c.p.err == nil {
		c.p.err = err
	}
}

// ---- statements --------------------------------------------------------

func (c *Compiler) statement() {
	switch {
	case c.p.check(lexer.TokLBrace):
		c.p.advance()
		if c.block(false) {
			c.emit0(bytecode.Pop)
		}
	case c.p.match(lexer.TokLet):
		c.letDecl()
	case c.p.check(lexer.TokIf):
		c.ifStatement()
	case c.p.match(lexer.TokEcho):
		c.echoStatement()
	case c.p.match(lexer.TokYield):
		c.yieldStatement()
	default:
		c.exprStatement()
	}
}

func (c *Compiler) yieldStatement() {
	if c.p.check(lexer.TokSemicolon) {
		c.emit0(bytecode.PushNil)
	} else {
		c.expression()
	}
	c.emit0(bytecode.Yield)
	c.emit0(bytecode.Pop) // YIELD leaves its operand on the stack for the resumer to discard/inspect
	c.p.expect(lexer.TokSemicolon, "';'")
}

// block compiles '{' stmt* '}'. Its last member may be a bare expression
// with no trailing ';', which becomes the block's value instead of being
// popped (testable property #10: `if 1<2 {10} else {20}` evaluates to
// 10) — needValue forces a Nil result when no such tail expression is
// present, for callers (if-expression branches, function bodies) that
// always need exactly one value left behind. block reports whether a
// tail expression was found.
func (c *Compiler) block(needValue bool) bool {
	c.fs.beginScope()
	hadTail := false
	for !c.p.check(lexer.TokRBrace) && !c.p.atEnd() {
		switch {
		case c.p.check(lexer.TokLBrace):
			c.p.advance()
			if c.block(false) {
				c.emit0(bytecode.Pop)
			}
		case c.p.match(lexer.TokLet):
			c.letDecl()
		case c.p.check(lexer.TokIf):
			c.ifStatement()
		case c.p.match(lexer.TokEcho):
			c.echoStatement()
		case c.p.match(lexer.TokYield):
			c.yieldStatement()
		default:
			c.expression()
			if c.p.match(lexer.TokSemicolon) {
				c.emit0(bytecode.Pop)
			} else {
				hadTail = true
			}
		}
		if hadTail || c.p.err != nil {
			break
		}
	}
	if needValue && !hadTail {
		c.emit0(bytecode.PushNil)
	}
	c.p.expect(lexer.TokRBrace, "'}'")
	if hadTail || needValue {
		c.fs.endScopeValue(func(op bytecode.Op, a byte) { c.emitA(op, a) })
	} else {
		c.fs.endScope(func(op bytecode.Op) { c.emit0(op) })
	}
	return hadTail
}

func (c *Compiler) letDecl() {
	loc := c.p.loc()
	name := c.p.expect(lexer.TokIdent, "identifier").Lexeme
	if c.p.match(lexer.TokAssign) {
		c.expression()
	} else {
		c.emit0(bytecode.PushNil)
	}
	c.p.expect(lexer.TokSemicolon, "';'")
	if c.p.err != nil {
		return
	}
	if _, err := c.fs.declareLocal(name, loc); err != nil {
		c.fail(err)
		return
	}
	// The value is already on the stack at the slot the local now owns;
	// no STORE_LOCAL is needed because locals live directly at their
	// stack position (LOAD_LOCAL/STORE_LOCAL address slots by index into
	// the same stack region), matching the spec's slot-addressed frame.
}

func (c *Compiler) ifStatement() {
	c.ifExpr()
	c.emit0(bytecode.Pop) // statement context discards the expression's value
}

func (c *Compiler) echoStatement() {
	c.expression()
	c.emit0(bytecode.Echo)
	c.p.expect(lexer.TokSemicolon, "';'")
}

func (c *Compiler) exprStatement() {
	c.expression()
	c.emit0(bytecode.Pop)
	c.p.expect(lexer.TokSemicolon, "';'")
}
