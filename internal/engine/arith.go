package engine

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/minidb/minidb/internal/storage"
)

// negate is the operator-stack marker for unary minus.
const negate = 'n'

func precedence(op byte) int {
	switch op {
	case '+', '-':
		return 1
	case '*', '/':
		return 2
	case negate:
		return 3
	}
	return 0
}

type arithStacks struct {
	vals []float64
	ops  []byte
}

func (st *arithStacks) reduce() error {
	op := st.ops[len(st.ops)-1]
	st.ops = st.ops[:len(st.ops)-1]
	if op == negate {
		if len(st.vals) < 1 {
			return fmt.Errorf("%w: missing operand", ErrMalformed)
		}
		st.vals[len(st.vals)-1] = -st.vals[len(st.vals)-1]
		return nil
	}
	if len(st.vals) < 2 {
		return fmt.Errorf("%w: missing operand for %q", ErrMalformed, op)
	}
	a, b := st.vals[len(st.vals)-2], st.vals[len(st.vals)-1]
	st.vals = st.vals[:len(st.vals)-2]
	var r float64
	switch op {
	case '+':
		r = a + b
	case '-':
		r = a - b
	case '*':
		r = a * b
	case '/':
		r = a / b
	}
	st.vals = append(st.vals, r)
	return nil
}

// EvalArithmetic evaluates an infix expression of numbers, + - * / and
// parentheses with the usual precedence. Division follows IEEE rules, so x/0
// yields Inf or NaN rather than an error. Single quotes are ignored.
func EvalArithmetic(expr string) (float64, error) {
	var st arithStacks
	wantOperand := true
	for i := 0; i < len(expr); {
		c := expr[i]
		switch {
		case isSpace(c) || c == '\'':
			i++
		case (c >= '0' && c <= '9') || c == '.':
			if !wantOperand {
				return 0, fmt.Errorf("%w: unexpected number in %q", ErrMalformed, expr)
			}
			n := floatPrefixLen(expr[i:])
			if n == 0 {
				return 0, fmt.Errorf("%w: bad number in %q", ErrMalformed, expr)
			}
			v, err := strconv.ParseFloat(expr[i:i+n], 64)
			if err != nil {
				return 0, fmt.Errorf("%w: bad number in %q", ErrMalformed, expr)
			}
			st.vals = append(st.vals, v)
			i += n
			wantOperand = false
		case c == 'i' || c == 'I' || c == 'n' || c == 'N':
			// inf and nan are stored by earlier FLOAT updates.
			n := floatPrefixLen(expr[i:])
			if !wantOperand || n == 0 {
				return 0, fmt.Errorf("%w: unexpected %q in expression %q", ErrMalformed, c, expr)
			}
			v, _ := strconv.ParseFloat(expr[i:i+n], 64)
			st.vals = append(st.vals, v)
			i += n
			wantOperand = false
		case c == '(':
			if !wantOperand {
				return 0, fmt.Errorf("%w: unexpected '(' in %q", ErrMalformed, expr)
			}
			st.ops = append(st.ops, c)
			i++
		case c == ')':
			if wantOperand {
				return 0, fmt.Errorf("%w: unexpected ')' in %q", ErrMalformed, expr)
			}
			for len(st.ops) > 0 && st.ops[len(st.ops)-1] != '(' {
				if err := st.reduce(); err != nil {
					return 0, err
				}
			}
			if len(st.ops) == 0 {
				return 0, fmt.Errorf("%w: unbalanced ')' in %q", ErrMalformed, expr)
			}
			st.ops = st.ops[:len(st.ops)-1]
			i++
		case c == '+' || c == '-' || c == '*' || c == '/':
			i++
			if wantOperand {
				switch c {
				case '-':
					st.ops = append(st.ops, negate)
					continue
				case '+':
					continue
				}
				return 0, fmt.Errorf("%w: missing operand before %q in %q", ErrMalformed, c, expr)
			}
			for len(st.ops) > 0 && precedence(st.ops[len(st.ops)-1]) >= precedence(c) {
				if err := st.reduce(); err != nil {
					return 0, err
				}
			}
			st.ops = append(st.ops, c)
			wantOperand = true
		default:
			return 0, fmt.Errorf("%w: unexpected %q in expression %q", ErrMalformed, c, expr)
		}
	}
	if wantOperand {
		return 0, fmt.Errorf("%w: incomplete expression %q", ErrMalformed, expr)
	}
	for len(st.ops) > 0 {
		if st.ops[len(st.ops)-1] == '(' {
			return 0, fmt.Errorf("%w: unbalanced '(' in %q", ErrMalformed, expr)
		}
		if err := st.reduce(); err != nil {
			return 0, err
		}
	}
	if len(st.vals) != 1 {
		return 0, fmt.Errorf("%w: malformed expression %q", ErrMalformed, expr)
	}
	return st.vals[0], nil
}

// substituteColumns replaces every occurrence of each column name, in schema
// order, with the row's stored value for that column.
func substituteColumns(expr string, cols []storage.Column, row []string) string {
	for i, c := range cols {
		if c.Name == "" {
			continue
		}
		expr = strings.ReplaceAll(expr, c.Name, row[i])
	}
	return expr
}

// formatNumeric renders an arithmetic result for storage in a column of the
// given numeric type.
func formatNumeric(v float64, typ storage.ColType) (string, error) {
	if typ == storage.IntegerType {
		t := math.Trunc(v)
		if math.IsNaN(t) || t < math.MinInt64 || t >= math.MaxInt64 {
			return "", fmt.Errorf("%w: result %v does not fit an INTEGER column", ErrMalformed, v)
		}
		return strconv.FormatInt(int64(t), 10), nil
	}
	switch {
	case math.IsNaN(v):
		return "nan", nil
	case math.IsInf(v, 1):
		return "inf", nil
	case math.IsInf(v, -1):
		return "-inf", nil
	}
	return strconv.FormatFloat(v, 'f', 6, 64), nil
}
