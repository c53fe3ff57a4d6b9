// Package query evaluates property filters, predicate groups and textual
// expressions against tree nodes, and encodes page cursors.
package query

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/alexanderramin/arbor/internal/tree"
)

var (
	ErrUnknownOperator = errors.New("unknown operator")
	ErrUnknownMode     = errors.New("unknown group mode")
	ErrSyntax          = errors.New("syntax error")
)

// Operator compares a resolved property value with a filter value.
type Operator string

const (
	OpContains    Operator = "contains"
	OpNotContains Operator = "not_contains"
	OpEquals      Operator = "equals"
	OpNotEquals   Operator = "not_equals"
	OpGreater     Operator = "gt"
	OpGreaterEq   Operator = "gte"
	OpLess        Operator = "lt"
	OpLessEq      Operator = "lte"
	OpStartsWith  Operator = "starts_with"
	OpEndsWith    Operator = "ends_with"
)

var operatorAliases = map[string]Operator{
	"contains":     OpContains,
	"not_contains": OpNotContains,
	"equals":       OpEquals,
	"eq":           OpEquals,
	"==":           OpEquals,
	"=":            OpEquals,
	"not_equals":   OpNotEquals,
	"ne":           OpNotEquals,
	"!=":           OpNotEquals,
	"gt":           OpGreater,
	">":            OpGreater,
	"gte":          OpGreaterEq,
	">=":           OpGreaterEq,
	"lt":           OpLess,
	"<":            OpLess,
	"lte":          OpLessEq,
	"<=":           OpLessEq,
	"starts_with":  OpStartsWith,
	"ends_with":    OpEndsWith,
}

// ParseOperator normalizes an operator name or symbol.
func ParseOperator(s string) (Operator, error) {
	op, ok := operatorAliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", fmt.Errorf("%q: %w", s, ErrUnknownOperator)
	}
	return op, nil
}

// Filter is one (path, operator, value) predicate.
type Filter struct {
	Path  string
	Op    Operator
	Value any
}

// Validate checks the filter is evaluable and normalizes its operator.
func (f *Filter) Validate() error {
	if strings.TrimSpace(f.Path) == "" {
		return fmt.Errorf("filter path is required: %w", ErrSyntax)
	}
	op, err := ParseOperator(string(f.Op))
	if err != nil {
		return err
	}
	f.Op = op
	return nil
}

// Match reports whether n satisfies the filter. A path that does not
// resolve only satisfies the negated operators.
func (f Filter) Match(n *tree.Node) bool {
	v, ok := tree.ResolvePath(n, f.Path)
	if !ok || v == nil {
		return f.Op == OpNotContains || f.Op == OpNotEquals
	}
	return Compare(v, f.Op, f.Value)
}

// Compare applies op to a property value and an operand. Substring
// operators fold case; ordering and equality are numeric when both sides
// parse as numbers.
func Compare(actual any, op Operator, operand any) bool {
	switch op {
	case OpContains:
		return strings.Contains(lower(actual), lower(operand))
	case OpNotContains:
		return !strings.Contains(lower(actual), lower(operand))
	case OpStartsWith:
		return strings.HasPrefix(lower(actual), lower(operand))
	case OpEndsWith:
		return strings.HasSuffix(lower(actual), lower(operand))
	case OpEquals:
		return equal(actual, operand)
	case OpNotEquals:
		return !equal(actual, operand)
	case OpGreater:
		return order(actual, operand) > 0
	case OpGreaterEq:
		return order(actual, operand) >= 0
	case OpLess:
		return order(actual, operand) < 0
	case OpLessEq:
		return order(actual, operand) <= 0
	}
	return false
}

func equal(a, b any) bool {
	if x, ok := number(a); ok {
		if y, ok := number(b); ok {
			return x == y
		}
	}
	return strings.EqualFold(text(a), text(b))
}

// order compares numerically when possible, otherwise case-insensitively
// as text.
func order(a, b any) int {
	if x, ok := number(a); ok {
		if y, ok := number(b); ok {
			switch {
			case x < y:
				return -1
			case x > y:
				return 1
			}
			return 0
		}
	}
	return strings.Compare(lower(a), lower(b))
}

func number(v any) (float64, bool) {
	switch x := v.(type) {
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case float32:
		return float64(x), true
	case float64:
		return x, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	}
	return 0, false
}

func text(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func lower(v any) string { return strings.ToLower(text(v)) }
