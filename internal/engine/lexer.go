// Package engine contains the minidb statement lexer, parser, evaluators and
// executor.
//
// What: A small tokenizer producing a typed token stream for one statement.
// How: Single-pass byte scanner. Whitespace separates tokens; unquoted commas,
// parentheses and comparison operators are tokens of their own; a single
// quoted literal is one token including its quotes, whatever it contains.
// Why: Keeping quotes on literals lets TEXT values flow into storage exactly
// as written, and every token keeps its source offset so builders can still
// slice the raw statement where the dialect demands it (INSERT, UPDATE SET).
package engine

import (
	"fmt"
	"strings"
)

type tokenType int

const (
	tEOF tokenType = iota
	tWord
	tString
	tComma
	tLParen
	tRParen
	tOp
)

func (t tokenType) String() string {
	switch t {
	case tEOF:
		return "end of statement"
	case tWord:
		return "word"
	case tString:
		return "quoted literal"
	case tComma:
		return "','"
	case tLParen:
		return "'('"
	case tRParen:
		return "')'"
	case tOp:
		return "operator"
	}
	return "token"
}

// token.Val is always the exact source text, so Pos+len(Val) is the end offset.
type token struct {
	Typ tokenType
	Val string
	Pos int
}

func (t token) end() int { return t.Pos + len(t.Val) }

type lexer struct {
	s   string
	pos int
}

func newLexer(s string) *lexer { return &lexer{s: s} }

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v'
}

func isOpChar(c byte) bool { return c == '=' || c == '<' || c == '>' || c == '!' }

func (lx *lexer) skipWS() {
	for lx.pos < len(lx.s) && isSpace(lx.s[lx.pos]) {
		lx.pos++
	}
}

func (lx *lexer) nextToken() (token, error) {
	lx.skipWS()
	start := lx.pos
	if start >= len(lx.s) {
		return token{Typ: tEOF, Pos: start}, nil
	}
	c := lx.s[start]
	switch {
	case c == '\'':
		return lx.tokenizeString(start)
	case c == ',':
		lx.pos++
		return token{Typ: tComma, Val: ",", Pos: start}, nil
	case c == '(':
		lx.pos++
		return token{Typ: tLParen, Val: "(", Pos: start}, nil
	case c == ')':
		lx.pos++
		return token{Typ: tRParen, Val: ")", Pos: start}, nil
	case isOpChar(c):
		return lx.tokenizeOp(start), nil
	}
	return lx.tokenizeWord(start), nil
}

func (lx *lexer) tokenizeString(start int) (token, error) {
	end := strings.IndexByte(lx.s[start+1:], '\'')
	if end < 0 {
		return token{}, fmt.Errorf("%w: unterminated quoted literal at offset %d", ErrMalformed, start)
	}
	lx.pos = start + 1 + end + 1
	return token{Typ: tString, Val: lx.s[start:lx.pos], Pos: start}, nil
}

func (lx *lexer) tokenizeOp(start int) token {
	lx.pos++
	if lx.pos < len(lx.s) {
		a, b := lx.s[start], lx.s[lx.pos]
		if (a == '!' && b == '=') || (a == '<' && (b == '=' || b == '>')) || (a == '>' && b == '=') {
			lx.pos++
		}
	}
	return token{Typ: tOp, Val: lx.s[start:lx.pos], Pos: start}
}

// tokenizeWord reads identifiers, numbers, qualified names and '*'. A quote
// inside a word (O'Brien) does not start a literal.
func (lx *lexer) tokenizeWord(start int) token {
	for lx.pos < len(lx.s) {
		c := lx.s[lx.pos]
		if isSpace(c) || c == ',' || c == '(' || c == ')' || isOpChar(c) {
			break
		}
		lx.pos++
	}
	return token{Typ: tWord, Val: lx.s[start:lx.pos], Pos: start}
}

// tokenize lexes the whole statement. The returned slice always ends with tEOF.
func tokenize(s string) ([]token, error) {
	lx := newLexer(s)
	var out []token
	for {
		tok, err := lx.nextToken()
		if err != nil {
			return nil, err
		}
		out = append(out, tok)
		if tok.Typ == tEOF {
			return out, nil
		}
	}
}
