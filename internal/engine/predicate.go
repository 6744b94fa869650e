package engine

import (
	"fmt"

	"github.com/minidb/minidb/internal/storage"
)

// Predicate is a WHERE clause: a single Comparison, or two comparisons joined
// by And or Or. Deeper nesting is not part of the dialect.
type Predicate interface{ predNode() }

// Comparison is `[table.]column op literal`. Literal keeps its quotes.
type Comparison struct {
	Table   string
	Column  string
	Op      string
	Literal string
}

// And is true when both comparisons hold.
type And struct{ Left, Right *Comparison }

// Or is true when either comparison holds.
type Or struct{ Left, Right *Comparison }

func (*Comparison) predNode() {}
func (*And) predNode()        {}
func (*Or) predNode()         {}

// Ref returns the column reference of the comparison.
func (c *Comparison) Ref() ColumnRef { return ColumnRef{Table: c.Table, Column: c.Column} }

// comparisons flattens a predicate into its one or two comparisons.
func comparisons(p Predicate) []*Comparison {
	switch p := p.(type) {
	case *Comparison:
		return []*Comparison{p}
	case *And:
		return []*Comparison{p.Left, p.Right}
	case *Or:
		return []*Comparison{p.Left, p.Right}
	}
	return nil
}

// boundComparison is a comparison resolved against the tables of a
// statement. src indexes the row tuple passed to eval.
type boundComparison struct {
	src     int
	col     int
	typ     storage.ColType
	op, lit string
	missing bool
}

func (b *boundComparison) eval(rows [][]string) (bool, error) {
	if b.missing {
		return false, nil
	}
	return Compare(rows[b.src][b.col], b.lit, b.typ, b.op)
}

// rowFilter is a predicate bound to concrete column positions. A zero
// rowFilter matches every row.
type rowFilter struct {
	first, second *boundComparison
	or            bool
}

// match evaluates both comparisons before combining them so a malformed
// literal is reported regardless of the first result.
func (f rowFilter) match(rows ...[]string) (bool, error) {
	if f.first == nil {
		return true, nil
	}
	a, err := f.first.eval(rows)
	if err != nil {
		return false, err
	}
	if f.second == nil {
		return a, nil
	}
	b, err := f.second.eval(rows)
	if err != nil {
		return false, err
	}
	if f.or {
		return a || b, nil
	}
	return a && b, nil
}

// bindFilter resolves the predicate against srcs. A qualified column is looked
// up in the table it names; an unqualified one in each table in order. A
// column that cannot be resolved is reported once and evaluates to false.
func (s *Session) bindFilter(p Predicate, srcs []*storage.Table) (rowFilter, error) {
	var f rowFilter
	cmps := comparisons(p)
	for i, c := range cmps {
		if !validOp(c.Op) {
			return rowFilter{}, fmt.Errorf("%w: unsupported operator %q", ErrMalformed, c.Op)
		}
		b := s.bindComparison(c, srcs)
		if i == 0 {
			f.first = b
		} else {
			f.second = b
		}
	}
	_, f.or = p.(*Or)
	return f, nil
}

func (s *Session) bindComparison(c *Comparison, srcs []*storage.Table) *boundComparison {
	for si, t := range srcs {
		if c.Table != "" && c.Table != t.Name {
			continue
		}
		if ci, err := t.ColIndex(c.Column); err == nil {
			return &boundComparison{src: si, col: ci, typ: t.Cols[ci].Type, op: c.Op, lit: c.Literal}
		}
		if c.Table != "" {
			break
		}
	}
	s.logf("column %s does not exist", c.Ref())
	return &boundComparison{missing: true}
}
