package engine

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/minidb/minidb/internal/storage"
)

// Compare evaluates v1 op v2 under the semantics of the column type.
//
// INTEGER operands are read as a leading integer prefix ("12abc" is 12).
// FLOAT operands lose one layer of surrounding quotes and are read as a
// leading floating prefix. Every other type compares the raw strings byte by
// byte, quotes included. Supported operators are = < > and !=.
func Compare(v1, v2 string, typ storage.ColType, op string) (bool, error) {
	switch typ {
	case storage.IntegerType:
		a, err := parseIntPrefix(v1)
		if err != nil {
			return false, err
		}
		b, err := parseIntPrefix(v2)
		if err != nil {
			return false, err
		}
		return applyCompare(cmpOrdered(a, b), op)
	case storage.FloatType:
		a, err := parseFloatPrefix(stripQuotes(v1))
		if err != nil {
			return false, err
		}
		b, err := parseFloatPrefix(stripQuotes(v2))
		if err != nil {
			return false, err
		}
		// NaN is unordered: only != holds.
		if math.IsNaN(a) || math.IsNaN(b) {
			if !validOp(op) {
				return false, fmt.Errorf("%w: unsupported operator %q", ErrMalformed, op)
			}
			return op == "!=", nil
		}
		return applyCompare(cmpOrdered(a, b), op)
	}
	return applyCompare(strings.Compare(v1, v2), op)
}

func validOp(op string) bool {
	return op == "=" || op == "<" || op == ">" || op == "!="
}

func applyCompare(c int, op string) (bool, error) {
	switch op {
	case "=":
		return c == 0, nil
	case "<":
		return c < 0, nil
	case ">":
		return c > 0, nil
	case "!=":
		return c != 0, nil
	}
	return false, fmt.Errorf("%w: unsupported operator %q", ErrMalformed, op)
}

func cmpOrdered[T int64 | float64](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// stripQuotes removes the first and last byte when s starts with a quote.
func stripQuotes(s string) string {
	if !strings.HasPrefix(s, "'") {
		return s
	}
	if len(s) < 2 {
		return ""
	}
	return s[1 : len(s)-1]
}

func skipLeadingSpace(s string) string {
	return strings.TrimLeft(s, " \t\n\r\f\v")
}

// parseIntPrefix reads optional whitespace, an optional sign and at least
// one digit. Anything after the digits is ignored.
func parseIntPrefix(s string) (int64, error) {
	t := skipLeadingSpace(s)
	i := 0
	if i < len(t) && (t[i] == '+' || t[i] == '-') {
		i++
	}
	start := i
	for i < len(t) && t[i] >= '0' && t[i] <= '9' {
		i++
	}
	if i == start {
		return 0, fmt.Errorf("%w: %q is not an integer", ErrMalformed, s)
	}
	n, err := strconv.ParseInt(t[:i], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: integer %q out of range", ErrMalformed, s)
	}
	return n, nil
}

// parseFloatPrefix reads optional whitespace followed by the longest decimal
// floating literal (sign, digits, fraction, exponent) or inf/infinity/nan.
func parseFloatPrefix(s string) (float64, error) {
	t := skipLeadingSpace(s)
	n := floatPrefixLen(t)
	if n == 0 {
		return 0, fmt.Errorf("%w: %q is not a number", ErrMalformed, s)
	}
	v, err := strconv.ParseFloat(t[:n], 64)
	if err != nil {
		return 0, fmt.Errorf("%w: number %q out of range", ErrMalformed, s)
	}
	return v, nil
}

// floatPrefixLen returns the length of the numeric literal at the start of t,
// or 0 when there is none.
func floatPrefixLen(t string) int {
	i := 0
	if i < len(t) && (t[i] == '+' || t[i] == '-') {
		i++
	}
	rest := strings.ToLower(t[i:])
	for _, word := range []string{"infinity", "inf", "nan"} {
		if strings.HasPrefix(rest, word) {
			return i + len(word)
		}
	}
	digits := 0
	for i < len(t) && t[i] >= '0' && t[i] <= '9' {
		i++
		digits++
	}
	if i < len(t) && t[i] == '.' {
		i++
		for i < len(t) && t[i] >= '0' && t[i] <= '9' {
			i++
			digits++
		}
	}
	if digits == 0 {
		return 0
	}
	if i < len(t) && (t[i] == 'e' || t[i] == 'E') {
		j := i + 1
		if j < len(t) && (t[j] == '+' || t[j] == '-') {
			j++
		}
		k := j
		for k < len(t) && t[k] >= '0' && t[k] <= '9' {
			k++
		}
		if k > j {
			i = k
		}
	}
	return i
}
