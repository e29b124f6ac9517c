package evaluator

import (
	"github.com/thomasrohde/pairlisp/pkg/diagnostics"
)

// specialKind identifies a special form. Operands of a special form are
// handed over unevaluated.
type specialKind int

const (
	specialQuote specialKind = iota + 1
	specialProgn
	specialCond
	specialLambda
)

var specialForms = map[string]specialKind{
	"quote":  specialQuote,
	"progn":  specialProgn,
	"cond":   specialCond,
	"lambda": specialLambda,
}

// SpecialFormNames lists the recognized special-form keywords.
func SpecialFormNames() []string {
	return []string{"quote", "progn", "cond", "lambda"}
}

// IsSpecialForm reports whether name is a special-form keyword.
func IsSpecialForm(name string) bool {
	_, ok := specialForms[name]
	return ok
}

func (ev *evaluator) evalSpecial(s specialKind, cell *Pair, operands []Value, env *Env) (Value, error) {
	switch s {
	case specialQuote:
		if len(operands) != 1 {
			return nil, ev.fail(diagnostics.EArity, cell, "quote expects 1 argument, got %d", len(operands))
		}
		return operands[0], nil
	case specialProgn:
		return ev.progn(operands, env)
	case specialCond:
		return ev.cond(operands, env)
	case specialLambda:
		return ev.lambda(cell, operands, env)
	}
	return nil, ev.fail(diagnostics.EEval, cell, "cannot evaluate")
}

// progn evaluates forms left to right and returns the last value, or Nil.
func (ev *evaluator) progn(forms []Value, env *Env) (Value, error) {
	var last Value = Nil{}
	for _, f := range forms {
		val, err := ev.eval(f, env)
		if err != nil {
			return nil, err
		}
		last = val
	}
	return last, nil
}

// cond returns the evaluated result of the first clause whose test is truthy.
// Clauses after the match are never inspected.
func (ev *evaluator) cond(clauses []Value, env *Env) (Value, error) {
	for _, clause := range clauses {
		parts, ok := Slice(clause)
		if !ok || len(parts) != 2 {
			return nil, ev.fail(diagnostics.EEval, clause, "malformed cond clause: expected (test result)")
		}
		test, err := ev.eval(parts[0], env)
		if err != nil {
			return nil, err
		}
		if Truthy(test) {
			return ev.eval(parts[1], env)
		}
	}
	return Nil{}, nil
}

func (ev *evaluator) lambda(cell *Pair, operands []Value, env *Env) (Value, error) {
	if len(operands) == 0 {
		return nil, ev.fail(diagnostics.ELambda, cell, "lambda requires a parameter list")
	}
	if msg := CheckParams(operands[0]); msg != "" {
		return nil, ev.fail(diagnostics.ELambda, cell, "%s", msg)
	}
	if len(operands) < 2 {
		return nil, ev.fail(diagnostics.ELambda, cell, "lambda requires at least one body form")
	}
	return &Closure{
		Params: operands[0],
		Body:   List(operands[1:]...),
		env:    env.Copy(),
	}, nil
}

// CheckParams validates a lambda parameter list and returns a description of
// the problem, or "" if params is a proper chain of distinct symbols. The
// empty list is accepted.
func CheckParams(params Value) string {
	if IsNil(params) {
		return ""
	}
	if _, ok := params.(*Pair); !ok {
		return "lambda parameter list must be a list, got " + params.String()
	}
	items, ok := Slice(params)
	if !ok {
		return "lambda parameter list must be a proper list"
	}
	seen := make(map[string]bool, len(items))
	for _, item := range items {
		sym, ok := item.(Symbol)
		if !ok {
			return "lambda parameter must be a symbol, got " + item.String()
		}
		if seen[sym.Name] {
			return "duplicate lambda parameter '" + sym.Name + "'"
		}
		seen[sym.Name] = true
	}
	return ""
}
