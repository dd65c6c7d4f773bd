package compiler

import (
	"rak/internal/lexer"
	"rak/internal/rakerr"
)

// parser wraps the token stream shared by every nested function
// compiler: there is one lexer for the whole source buffer, but one
// *funcState per function being compiled (see scope.go).
type parser struct {
	scan     *lexer.Scanner
	fileName string
	cur      lexer.Token
	prev     lexer.Token
	err      *rakerr.Error
}

func newParser(fileName, source string) *parser {
	p := &parser{scan: lexer.New(source), fileName: fileName}
	p.advance()
	return p
}

func (p *parser) loc() rakerr.Location {
	return rakerr.Location{File: p.fileName, Line: p.cur.Line, Column: p.cur.Column}
}

func (p *parser) advance() {
	if p.err != nil {
		return
	}
	p.prev = p.cur
	tok, err := p.scan.Next()
	if err != nil {
		p.err = err
		p.cur = lexer.Token{Type: lexer.TokEOF}
		return
	}
	p.cur = tok
}

func (p *parser) check(t lexer.TokenType) bool {
	return p.err == nil && p.cur.Type == t
}

func (p *parser) match(t lexer.TokenType) bool {
	if !p.check(t) {
		return false
	}
	p.advance()
	return true
}

// expect consumes cur if it matches t, recording UnexpectedToken otherwise.
// Once p.err is set, expect is a no-op so callers can keep calling parse
// functions without checking after every token; compile() bails out once
// at the end.
func (p *parser) expect(t lexer.TokenType, what string) lexer.Token {
	if p.err != nil {
		return p.prev
	}
	if !p.check(t) {
		p.err = rakerr.NewAt(rakerr.UnexpectedToken, p.loc(),
			"expected %s but got %s", what, p.cur.Type)
		return p.cur
	}
	tok := p.cur
	p.advance()
	return tok
}

func (p *parser) atEnd() bool {
	return p.err != nil || p.cur.Type == lexer.TokEOF
}
