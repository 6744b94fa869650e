// Package engine provides the hand-written statement parser for minidb.
//
// What: Builds one Statement from one semicolon-free statement string.
// How: The statement is lexed into tokens, then a builder chosen by the
// leading keyword consumes them. INSERT value lists and UPDATE SET segments
// are read from the raw text, delimited by token offsets, so punctuation
// inside quoted values and arithmetic survives untouched.
// Why: Per-keyword builders keep each command shape in one place and make
// the accepted dialect easy to audit.
package engine

import (
	"fmt"
	"strings"

	"github.com/minidb/minidb/internal/storage"
)

// ------------------------------ AST ------------------------------

// Statement is the root interface for all parsed statements.
type Statement interface{ stmtNode() }

type (
	// CreateDatabase represents CREATE DATABASE name.
	CreateDatabase struct{ Name string }
	// CreateTable represents CREATE TABLE name (col type, ...).
	CreateTable struct {
		Name string
		Cols []storage.Column
	}
	// DropTable represents DROP TABLE name.
	DropTable struct{ Name string }
	// UseDatabase represents USE name.
	UseDatabase struct{ Name string }
	// Insert represents INSERT INTO table (v1, v2, ...). Values are raw text.
	Insert struct {
		Table string
		Vals  []string
	}
	// Select represents a single-table SELECT. Cols keep the spelling used in
	// the statement; Star means every column of the table.
	Select struct {
		Table string
		Cols  []string
		Star  bool
		Where Predicate
	}
	// JoinSelect represents SELECT ... FROM left INNER JOIN right ON l = r.
	JoinSelect struct {
		Left, Right string
		Cols        []ColumnRef
		Star        bool
		On          [2]ColumnRef
		Where       Predicate
	}
	// Update represents UPDATE table SET col = expr, ... [WHERE ...].
	Update struct {
		Table string
		Sets  []Assignment
		Where Predicate
	}
	// Delete represents DELETE FROM table [WHERE ...].
	Delete struct {
		Table string
		Where Predicate
	}
)

func (*CreateDatabase) stmtNode() {}
func (*CreateTable) stmtNode()    {}
func (*DropTable) stmtNode()      {}
func (*UseDatabase) stmtNode()    {}
func (*Insert) stmtNode()         {}
func (*Select) stmtNode()         {}
func (*JoinSelect) stmtNode()     {}
func (*Update) stmtNode()         {}
func (*Delete) stmtNode()         {}

// ColumnRef is a column reference, optionally qualified with a table name.
type ColumnRef struct{ Table, Column string }

// parseColumnRef splits a reference on its first dot.
func parseColumnRef(s string) ColumnRef {
	if i := strings.IndexByte(s, '.'); i >= 0 {
		return ColumnRef{Table: s[:i], Column: s[i+1:]}
	}
	return ColumnRef{Column: s}
}

func (r ColumnRef) String() string {
	if r.Table == "" {
		return r.Column
	}
	return r.Table + "." + r.Column
}

// Assignment is one col = expr pair of an UPDATE. Expr is the trimmed raw
// right-hand side.
type Assignment struct {
	Column string
	Expr   string
}

// ------------------------------ Parser ------------------------------

// Parser holds the token stream of one statement.
type Parser struct {
	src  string
	toks []token
	pos  int
	err  error
}

// NewParser creates a parser for a single statement. Surrounding whitespace
// and a trailing semicolon are ignored.
func NewParser(sql string) *Parser {
	src := strings.TrimSpace(sql)
	src = strings.TrimSpace(strings.TrimSuffix(src, ";"))
	toks, err := tokenize(src)
	return &Parser{src: src, toks: toks, err: err}
}

// ParseSQL is a convenience wrapper around NewParser(sql).ParseStatement().
func ParseSQL(sql string) (Statement, error) {
	return NewParser(sql).ParseStatement()
}

var statementBuilders = map[string]func(*Parser) (Statement, error){
	"CREATE": (*Parser).parseCreate,
	"USE":    (*Parser).parseUse,
	"INSERT": (*Parser).parseInsert,
	"SELECT": (*Parser).parseSelect,
	"UPDATE": (*Parser).parseUpdate,
	"DELETE": (*Parser).parseDelete,
	"DROP":   (*Parser).parseDrop,
}

// ParseStatement parses the statement into an AST node.
func (p *Parser) ParseStatement() (Statement, error) {
	if p.err != nil {
		return nil, p.err
	}
	first := p.cur()
	if first.Typ == tEOF {
		return nil, fmt.Errorf("%w: empty statement", ErrMalformed)
	}
	build, ok := statementBuilders[strings.ToUpper(first.Val)]
	if first.Typ != tWord || !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownCommand, first.Val)
	}
	p.next()
	return build(p)
}

func (p *Parser) cur() token { return p.toks[p.pos] }

func (p *Parser) next() token {
	t := p.toks[p.pos]
	if t.Typ != tEOF {
		p.pos++
	}
	return t
}

func (p *Parser) isKeyword(kw string) bool {
	t := p.cur()
	return t.Typ == tWord && strings.EqualFold(t.Val, kw)
}

func (p *Parser) expectKeyword(kw string) (token, error) {
	if !p.isKeyword(kw) {
		return token{}, p.errf("expected %s", kw)
	}
	return p.next(), nil
}

func (p *Parser) expectName(what string) (string, error) {
	if p.cur().Typ != tWord {
		return "", p.errf("expected %s", what)
	}
	return p.next().Val, nil
}

func (p *Parser) expectEOF() error {
	if p.cur().Typ != tEOF {
		return p.errf("unexpected trailing input")
	}
	return nil
}

func (p *Parser) errf(format string, a ...any) error {
	near := p.cur().Val
	if p.cur().Typ == tEOF {
		near = "end of statement"
	}
	return fmt.Errorf("%w: parse error near %q: %s", ErrMalformed, near, fmt.Sprintf(format, a...))
}

// ------------------------------ Builders ------------------------------

func (p *Parser) parseCreate() (Statement, error) {
	switch {
	case p.isKeyword("DATABASE"):
		p.next()
		name, err := p.expectName("database name")
		if err != nil {
			return nil, err
		}
		if err := p.expectEOF(); err != nil {
			return nil, err
		}
		return &CreateDatabase{Name: name}, nil
	case p.isKeyword("TABLE"):
		p.next()
		return p.parseCreateTable()
	}
	return nil, p.errf("expected DATABASE or TABLE after CREATE")
}

func (p *Parser) parseCreateTable() (Statement, error) {
	name, err := p.expectName("table name")
	if err != nil {
		return nil, err
	}
	if p.cur().Typ != tLParen {
		return nil, p.errf("expected '(' after table name")
	}
	p.next()
	var cols []storage.Column
	seen := map[string]bool{}
	for p.cur().Typ != tRParen {
		colName, err := p.expectName("column name")
		if err != nil {
			return nil, err
		}
		colType, err := p.expectName("column type")
		if err != nil {
			return nil, err
		}
		if seen[colName] {
			return nil, fmt.Errorf("CREATE TABLE %s: column %q: %w", name, colName, ErrDuplicate)
		}
		seen[colName] = true
		cols = append(cols, storage.Column{Name: colName, Type: storage.ColType(colType)})
		if p.cur().Typ == tComma {
			p.next()
			continue
		}
		if p.cur().Typ != tRParen {
			return nil, p.errf("expected ',' or ')' in column list")
		}
	}
	p.next()
	if len(cols) == 0 {
		return nil, p.errf("CREATE TABLE %s: no columns", name)
	}
	if err := p.expectEOF(); err != nil {
		return nil, err
	}
	return &CreateTable{Name: name, Cols: cols}, nil
}

// parseUse accepts both USE name and USE DATABASE name.
func (p *Parser) parseUse() (Statement, error) {
	if p.isKeyword("DATABASE") && p.toks[p.pos+1].Typ == tWord {
		p.next()
	}
	name, err := p.expectName("database name")
	if err != nil {
		return nil, err
	}
	if err := p.expectEOF(); err != nil {
		return nil, err
	}
	return &UseDatabase{Name: name}, nil
}

func (p *Parser) parseDrop() (Statement, error) {
	if _, err := p.expectKeyword("TABLE"); err != nil {
		return nil, err
	}
	name, err := p.expectName("table name")
	if err != nil {
		return nil, err
	}
	if err := p.expectEOF(); err != nil {
		return nil, err
	}
	return &DropTable{Name: name}, nil
}

// parseInsert reads INSERT INTO table [VALUES] (v1, v2, ...). The values are
// cut from the raw statement between the first '(' and the next unquoted ')'.
func (p *Parser) parseInsert() (Statement, error) {
	if _, err := p.expectKeyword("INTO"); err != nil {
		return nil, err
	}
	table, err := p.expectName("table name")
	if err != nil {
		return nil, err
	}
	if p.isKeyword("VALUES") {
		p.next()
	}
	if p.cur().Typ != tLParen {
		return nil, p.errf("expected '(' before values")
	}
	open := p.cur().Pos
	closeIdx := indexUnquoted(p.src, open+1, ')')
	if closeIdx < 0 {
		return nil, p.errf("missing ')' after values")
	}
	if rest := strings.TrimSpace(p.src[closeIdx+1:]); rest != "" {
		return nil, fmt.Errorf("%w: INSERT: unexpected %q after values", ErrMalformed, rest)
	}
	var vals []string
	for _, v := range splitUnquoted(p.src[open+1:closeIdx], ',') {
		v = strings.TrimRight(strings.TrimSpace(v), ", ")
		if v == "" {
			return nil, fmt.Errorf("%w: INSERT INTO %s: empty value", ErrMalformed, table)
		}
		vals = append(vals, v)
	}
	return &Insert{Table: table, Vals: vals}, nil
}

func (p *Parser) parseSelect() (Statement, error) {
	var cols []string
	star := false
	if p.cur().Typ == tWord && p.cur().Val == "*" {
		p.next()
		star = true
	} else {
		for {
			if p.isKeyword("FROM") || p.cur().Typ != tWord {
				return nil, p.errf("expected column name")
			}
			cols = append(cols, p.next().Val)
			if p.cur().Typ != tComma {
				break
			}
			p.next()
		}
	}
	if _, err := p.expectKeyword("FROM"); err != nil {
		return nil, err
	}
	table, err := p.expectName("table name")
	if err != nil {
		return nil, err
	}

	if p.isKeyword("INNER") {
		p.next()
		if _, err := p.expectKeyword("JOIN"); err != nil {
			return nil, err
		}
		return p.parseJoin(table, cols, star)
	}
	if p.isKeyword("JOIN") {
		p.next()
		return p.parseJoin(table, cols, star)
	}

	where, err := p.parseOptionalWhere()
	if err != nil {
		return nil, err
	}
	return &Select{Table: table, Cols: cols, Star: star, Where: where}, nil
}

func (p *Parser) parseJoin(left string, cols []string, star bool) (Statement, error) {
	right, err := p.expectName("table name after JOIN")
	if err != nil {
		return nil, err
	}
	if _, err := p.expectKeyword("ON"); err != nil {
		return nil, err
	}
	lhs, err := p.expectName("join column")
	if err != nil {
		return nil, err
	}
	if p.cur().Typ != tOp || p.cur().Val != "=" {
		return nil, p.errf("join condition must use '='")
	}
	p.next()
	rhs, err := p.expectName("join column")
	if err != nil {
		return nil, err
	}
	where, err := p.parseOptionalWhere()
	if err != nil {
		return nil, err
	}
	js := &JoinSelect{
		Left:  left,
		Right: right,
		Star:  star,
		On:    [2]ColumnRef{parseColumnRef(lhs), parseColumnRef(rhs)},
		Where: where,
	}
	for _, c := range cols {
		js.Cols = append(js.Cols, parseColumnRef(c))
	}
	return js, nil
}

// parseUpdate reads UPDATE table SET a = expr, b = expr [WHERE ...]. The SET
// segment runs from the SET keyword to the first WHERE token.
func (p *Parser) parseUpdate() (Statement, error) {
	table, err := p.expectName("table name")
	if err != nil {
		return nil, err
	}
	set, err := p.expectKeyword("SET")
	if err != nil {
		return nil, err
	}
	end := len(p.src)
	wherePos := len(p.toks) - 1
	for i := p.pos; i < len(p.toks); i++ {
		t := p.toks[i]
		if t.Typ == tWord && strings.EqualFold(t.Val, "WHERE") {
			end, wherePos = t.Pos, i
			break
		}
	}
	sets, err := parseAssignments(p.src[set.end():end])
	if err != nil {
		return nil, fmt.Errorf("UPDATE %s: %w", table, err)
	}
	p.pos = wherePos
	where, err := p.parseOptionalWhere()
	if err != nil {
		return nil, err
	}
	return &Update{Table: table, Sets: sets, Where: where}, nil
}

func (p *Parser) parseDelete() (Statement, error) {
	if _, err := p.expectKeyword("FROM"); err != nil {
		return nil, err
	}
	table, err := p.expectName("table name")
	if err != nil {
		return nil, err
	}
	where, err := p.parseOptionalWhere()
	if err != nil {
		return nil, err
	}
	return &Delete{Table: table, Where: where}, nil
}

// parseOptionalWhere parses [WHERE cmp [AND|OR cmp]] up to the end of the
// statement. A nil predicate matches every row.
func (p *Parser) parseOptionalWhere() (Predicate, error) {
	if p.cur().Typ == tEOF {
		return nil, nil
	}
	if _, err := p.expectKeyword("WHERE"); err != nil {
		return nil, err
	}
	first, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	var pred Predicate = first
	switch {
	case p.isKeyword("AND"):
		p.next()
		second, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		pred = &And{Left: first, Right: second}
	case p.isKeyword("OR"):
		p.next()
		second, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		pred = &Or{Left: first, Right: second}
	}
	if err := p.expectEOF(); err != nil {
		return nil, err
	}
	return pred, nil
}

func (p *Parser) parseComparison() (*Comparison, error) {
	col, err := p.expectName("column name in WHERE")
	if err != nil {
		return nil, err
	}
	if p.cur().Typ != tOp {
		return nil, p.errf("expected comparison operator")
	}
	op := p.next().Val
	lit := p.cur()
	if lit.Typ != tWord && lit.Typ != tString {
		return nil, p.errf("expected literal after %s", op)
	}
	p.next()
	ref := parseColumnRef(col)
	return &Comparison{Table: ref.Table, Column: ref.Column, Op: op, Literal: lit.Val}, nil
}

// parseAssignments splits "a = expr, b = expr". Each right-hand side runs to
// the next unquoted comma, so '=' inside a value is kept.
func parseAssignments(seg string) ([]Assignment, error) {
	var out []Assignment
	rest := seg
	for strings.TrimSpace(rest) != "" {
		eq := strings.IndexByte(rest, '=')
		if eq < 0 {
			return nil, fmt.Errorf("%w: expected '=' in %q", ErrMalformed, strings.TrimSpace(rest))
		}
		col := strings.TrimSpace(rest[:eq])
		rest = rest[eq+1:]
		cut := indexUnquoted(rest, 0, ',')
		var expr string
		if cut < 0 {
			expr, rest = rest, ""
		} else {
			expr, rest = rest[:cut], rest[cut+1:]
		}
		expr = strings.TrimSpace(expr)
		if col == "" || strings.ContainsAny(col, " \t'") {
			return nil, fmt.Errorf("%w: invalid column %q in SET", ErrMalformed, col)
		}
		if expr == "" {
			return nil, fmt.Errorf("%w: missing value for %q in SET", ErrMalformed, col)
		}
		out = append(out, Assignment{Column: col, Expr: expr})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no assignments after SET", ErrMalformed)
	}
	return out, nil
}

// indexUnquoted returns the index of the first c at or after from that is not
// inside single quotes, or -1.
func indexUnquoted(s string, from int, c byte) int {
	inQuotes := false
	for i := from; i < len(s); i++ {
		switch {
		case s[i] == '\'':
			inQuotes = !inQuotes
		case s[i] == c && !inQuotes:
			return i
		}
	}
	return -1
}

// splitUnquoted splits s on every sep outside single quotes.
func splitUnquoted(s string, sep byte) []string {
	var out []string
	for {
		i := indexUnquoted(s, 0, sep)
		if i < 0 {
			return append(out, s)
		}
		out = append(out, s[:i])
		s = s[i+1:]
	}
}
