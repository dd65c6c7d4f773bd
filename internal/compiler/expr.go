package compiler

import (
	"rak/internal/bytecode"
	"rak/internal/lexer"
	"rak/internal/rakerr"
	"rak/internal/value"
)

// ---- expressions (spec §4.3 precedence chain) --------------------------

func (c *Compiler) expression() {
	c.andExpr()
	for c.p.match(lexer.TokOrOr) {
		jt := c.emitJump(bytecode.JumpIfTrue)
		c.emit0(bytecode.Pop)
		c.andExpr()
		c.patchJumpHere(jt)
	}
}

func (c *Compiler) andExpr() {
	c.eqExpr()
	for c.p.match(lexer.TokAndAnd) {
		jf := c.emitJump(bytecode.JumpIfFalse)
		c.emit0(bytecode.Pop)
		c.eqExpr()
		c.patchJumpHere(jf)
	}
}

func (c *Compiler) eqExpr() {
	c.cmpExpr()
	for {
		switch {
		case c.p.match(lexer.TokEq):
			c.cmpExpr()
			c.emit0(bytecode.Eq)
		case c.p.match(lexer.TokNotEq):
			c.cmpExpr()
			c.emit0(bytecode.Eq)
			c.emit0(bytecode.Not)
		default:
			return
		}
	}
}

// cmpExpr lowers >= as LT;NOT, <= as GT;NOT (spec §4.3 relational
// reductions); > and < map directly to GT/LT.
func (c *Compiler) cmpExpr() {
	c.rangeExpr()
	for {
		switch {
		case c.p.match(lexer.TokGt):
			c.rangeExpr()
			c.emit0(bytecode.Gt)
		case c.p.match(lexer.TokGtEq):
			c.rangeExpr()
			c.emit0(bytecode.Lt)
			c.emit0(bytecode.Not)
		case c.p.match(lexer.TokLt):
			c.rangeExpr()
			c.emit0(bytecode.Lt)
		case c.p.match(lexer.TokLtEq):
			c.rangeExpr()
			c.emit0(bytecode.Gt)
			c.emit0(bytecode.Not)
		default:
			return
		}
	}
}

func (c *Compiler) rangeExpr() {
	c.addExpr()
	if c.p.match(lexer.TokDotDot) {
		c.addExpr()
		c.emit0(bytecode.NewRange)
	}
}

func (c *Compiler) addExpr() {
	c.mulExpr()
	for {
		switch {
		case c.p.match(lexer.TokPlus):
			c.mulExpr()
			c.emit0(bytecode.Add)
		case c.p.match(lexer.TokMinus):
			c.mulExpr()
			c.emit0(bytecode.Sub)
		default:
			return
		}
	}
}

func (c *Compiler) mulExpr() {
	c.unary()
	for {
		switch {
		case c.p.match(lexer.TokStar):
			c.unary()
			c.emit0(bytecode.Mul)
		case c.p.match(lexer.TokSlash):
			c.unary()
			c.emit0(bytecode.Div)
		case c.p.match(lexer.TokPercent):
			c.unary()
			c.emit0(bytecode.Mod)
		default:
			return
		}
	}
}

func (c *Compiler) unary() {
	switch {
	case c.p.match(lexer.TokBang):
		c.unary()
		c.emit0(bytecode.Not)
	case c.p.match(lexer.TokMinus):
		c.unary()
		c.emit0(bytecode.Neg)
	default:
		c.subscr()
	}
}

// subscr chains postfix indexing, field access and calls onto a primary
// expression (spec §1 extends this production with call syntax).
func (c *Compiler) subscr() {
	c.primary()
	for {
		switch {
		case c.p.match(lexer.TokLBracket):
			c.expression()
			c.p.expect(lexer.TokRBracket, "']'")
			c.emit0(bytecode.GetElement)
		case c.p.match(lexer.TokDot):
			name := c.p.expect(lexer.TokIdent, "field name").Lexeme
			idx, err := c.addConst(name)
			if err != nil {
				c.fail(err)
				return
			}
			c.emitA(bytecode.GetField, idx)
		case c.p.match(lexer.TokLParen):
			argc := c.callArgs()
			c.emitA(bytecode.Call, byte(argc))
		default:
			return
		}
	}
}

// callArgs compiles a parenthesized, comma-separated argument list; the
// callee closure is already on the stack below these from subscr's chain,
// matching the `[closure, arg0, ..., arg_{n-1}]` layout CALL expects.
func (c *Compiler) callArgs() int {
	argc := 0
	if !c.p.check(lexer.TokRParen) {
		for {
			c.expression()
			argc++
			if !c.p.match(lexer.TokComma) {
				break
			}
		}
	}
	c.p.expect(lexer.TokRParen, "')'")
	return argc
}

func (c *Compiler) primary() {
	loc := c.p.loc()
	switch {
	case c.p.match(lexer.TokNil):
		c.emit0(bytecode.PushNil)
	case c.p.match(lexer.TokFalse):
		c.emit0(bytecode.PushFalse)
	case c.p.match(lexer.TokTrue):
		c.emit0(bytecode.PushTrue)
	case c.p.check(lexer.TokNumber):
		c.numberLit()
	case c.p.check(lexer.TokString):
		c.stringLit()
	case c.p.check(lexer.TokIdent):
		name := c.p.cur.Lexeme
		c.p.advance()
		c.resolveIdent(name, loc)
	case c.p.match(lexer.TokLBracket):
		c.arrayLit()
	case c.p.match(lexer.TokLBrace):
		c.recordLit()
	case c.p.check(lexer.TokIf):
		c.ifExpr()
	case c.p.match(lexer.TokFn):
		c.fnExpr(loc)
	case c.p.match(lexer.TokLParen):
		c.expression()
		c.p.expect(lexer.TokRParen, "')'")
	default:
		c.fail(rakerr.NewAt(rakerr.UnexpectedToken, loc, "unexpected token %s", c.p.cur.Type))
	}
}

func (c *Compiler) numberLit() {
	tok := c.p.cur
	c.p.advance()
	n, err := value.ParseNumber(tok.Lexeme)
	if err != nil {
		c.fail(err)
		return
	}
	idx, err := c.addConst(n)
	if err != nil {
		c.fail(err)
		return
	}
	c.emitA(bytecode.LoadConst, idx)
}

func (c *Compiler) stringLit() {
	tok := c.p.cur
	c.p.advance()
	idx, err := c.addConst(tok.Lexeme)
	if err != nil {
		c.fail(err)
		return
	}
	c.emitA(bytecode.LoadConst, idx)
}

// resolveIdent looks a bare name up as a local first, then as a global
// (PUSH_GLOBALS; LOAD_CONST index; GET_ELEMENT — see bytecode.PushGlobals).
// If neither resolves and the function has a local sharing name's first
// letter, the miss is almost certainly a typo of that local, so it fails
// with UndefinedLocal and the candidate list instead of a bare
// UndefinedName.
func (c *Compiler) resolveIdent(name string, loc rakerr.Location) {
	if slot, ok := c.fs.resolveLocal(name); ok {
		c.emitA(bytecode.LoadLocal, byte(slot))
		return
	}
	if c.resolver != nil {
		if idx, ok := c.resolver.Resolve(name); ok {
			c.emit0(bytecode.PushGlobals)
			cidx, err := c.addConst(float64(idx))
			if err != nil {
				c.fail(err)
				return
			}
			c.emitA(bytecode.LoadConst, cidx)
			c.emit0(bytecode.GetElement)
			return
		}
	}
	if candidates := c.fs.duplicateCandidates(name); len(candidates) > 0 {
		c.fail(rakerr.NewAt(rakerr.UndefinedLocal, loc, "undefined name %q, did you mean one of %v?", name, candidates))
		return
	}
	c.fail(rakerr.NewAt(rakerr.UndefinedName, loc, "undefined name %q", name))
}

func (c *Compiler) arrayLit() {
	count := 0
	if !c.p.check(lexer.TokRBracket) {
		for {
			c.expression()
			count++
			if !c.p.match(lexer.TokComma) {
				break
			}
		}
	}
	c.p.expect(lexer.TokRBracket, "']'")
	if count > 255 {
		c.fail(rakerr.NewAt(rakerr.TooManyConstants, c.p.loc(), "array literal has more than 255 elements"))
		return
	}
	c.emitA(bytecode.NewArray, byte(count))
}

func (c *Compiler) recordLit() {
	count := 0
	if !c.p.check(lexer.TokRBrace) {
		for {
			name := c.p.expect(lexer.TokIdent, "field name").Lexeme
			idx, err := c.addConst(name)
			if err != nil {
				c.fail(err)
				return
			}
			c.emitA(bytecode.LoadConst, idx)
			c.p.expect(lexer.TokColon, "':'")
			c.expression()
			count++
			if !c.p.match(lexer.TokComma) {
				break
			}
		}
	}
	c.p.expect(lexer.TokRBrace, "'}'")
	if count > 255 {
		c.fail(rakerr.NewAt(rakerr.TooManyConstants, c.p.loc(), "record literal has more than 255 fields"))
		return
	}
	c.emitA(bytecode.NewRecord, byte(count))
}

// ifExpr compiles `if expr block ('else' (if | block))?`; both branches
// always leave exactly one value (testable property #10), so it doubles
// as the statement form with one extra POP from the caller.
func (c *Compiler) ifExpr() {
	c.p.expect(lexer.TokIf, "'if'")
	c.expression()
	jf := c.emitJump(bytecode.JumpIfFalse)
	c.emit0(bytecode.Pop) // discard the (truthy) condition on the fallthrough path
	c.p.expect(lexer.TokLBrace, "'{'")
	c.block(true)
	end := c.emitJump(bytecode.Jump)
	c.patchJumpHere(jf)
	c.emit0(bytecode.Pop) // discard the (falsy) condition on the taken-jump path
	switch {
	case c.p.match(lexer.TokElse):
		if c.p.check(lexer.TokIf) {
			c.ifExpr()
		} else {
			c.p.expect(lexer.TokLBrace, "'{'")
			c.block(true)
		}
	default:
		c.emit0(bytecode.PushNil)
	}
	c.patchJumpHere(end)
}

// fnExpr compiles `'fn' '(' params? ')' block` (spec §1 grammar
// supplement) into a child Function of the enclosing one, then emits
// MAKE_CLOSURE to wrap and push it.
func (c *Compiler) fnExpr(loc rakerr.Location) {
	parent := c.fs
	if len(parent.fn.Children) >= bytecode.MaxChildFuncs {
		c.fail(rakerr.NewAt(rakerr.TooManyNestedFuncs, loc, "too many nested functions in %q", parent.fn.Name))
		return
	}

	child := newFuncState(parent, "", 0)
	c.fs = child
	// Slot 0 is reserved for the closure itself (spec §4.6: "slot 0
	// aliases the closure"); params start at slot 1.
	if _, err := child.declareLocal("<closure>", loc); err != nil {
		c.fail(err)
		c.fs = parent
		return
	}

	c.p.expect(lexer.TokLParen, "'('")
	arity := 0
	if !c.p.check(lexer.TokRParen) {
		for {
			pname := c.p.expect(lexer.TokIdent, "parameter name").Lexeme
			ploc := c.p.loc()
			if _, err := child.declareLocal(pname, ploc); err != nil {
				c.fail(err)
				c.fs = parent
				return
			}
			arity++
			if !c.p.match(lexer.TokComma) {
				break
			}
		}
	}
	c.p.expect(lexer.TokRParen, "')'")
	child.fn.Arity = arity

	c.p.expect(lexer.TokLBrace, "'{'")
	hadTail := c.block(false)
	if hadTail {
		c.emit0(bytecode.Return)
	} else {
		c.emit0(bytecode.ReturnNil)
	}

	idx := parent.fn.AddChild(child.fn)
	c.fs = parent
	c.emitA(bytecode.MakeClosure, byte(idx))
}
