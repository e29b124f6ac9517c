// Package validator implements static checks of pairlisp programs.
//
// Validate walks a read program without evaluating it and reports malformed
// lambdas, wrong operand counts, malformed cond clauses, improper call lists
// and symbols that no enclosing lambda binds. Quoted data is not inspected.
package validator

import (
	"fmt"

	"github.com/thomasrohde/pairlisp/pkg/diagnostics"
	"github.com/thomasrohde/pairlisp/pkg/evaluator"
)

type scope struct {
	bindings map[string]bool
	parent   *scope
}

func newScope(parent *scope) *scope {
	return &scope{bindings: make(map[string]bool), parent: parent}
}

func (s *scope) has(name string) bool {
	if s.bindings[name] {
		return true
	}
	if s.parent != nil {
		return s.parent.has(name)
	}
	return false
}

func (s *scope) add(name string) {
	s.bindings[name] = true
}

type validator struct {
	diags []diagnostics.Diagnostic
}

// Validate checks expr. globals names symbols bound in the top-level
// environment the program will run under.
func Validate(expr evaluator.Value, globals ...string) []diagnostics.Diagnostic {
	v := &validator{}
	root := newScope(nil)
	for _, g := range globals {
		root.add(g)
	}
	v.walk(expr, "$", root)
	return v.diags
}

func (v *validator) report(code string, form evaluator.Value, path, msg, hint string) {
	d := diagnostics.MakeDiag(code, msg, path, hint)
	if form != nil {
		d = d.WithForm(evaluator.Abbreviate(form.String(), 120))
	}
	v.diags = append(v.diags, d)
}

func (v *validator) walk(expr evaluator.Value, path string, sc *scope) {
	switch e := expr.(type) {
	case evaluator.Symbol:
		if !sc.has(e.Name) {
			v.report(diagnostics.EUnbound, expr, path,
				fmt.Sprintf("unbound symbol '%s'", e.Name),
				"symbols are bound only by lambda parameters; use (quote ...) for literal data")
		}
		return
	case *evaluator.Pair:
	default:
		return
	}

	cell := expr.(*evaluator.Pair)
	operands, ok := evaluator.Slice(cell.Tail())
	if !ok {
		v.report(diagnostics.EEval, expr, path, "cannot evaluate: improper operand list", "")
		return
	}
	at := func(i int) string { return diagnostics.ChildPath(path, i+1) }

	head, isSym := cell.Head().(evaluator.Symbol)
	if !isSym {
		switch cell.Head().(type) {
		case *evaluator.Pair, *evaluator.Closure:
			v.walk(cell.Head(), diagnostics.ChildPath(path, 0), sc)
		default:
			v.report(diagnostics.EEval, expr, path,
				fmt.Sprintf("cannot evaluate: %s is not callable", cell.Head()), "")
			return
		}
		v.walkAll(operands, at, sc)
		return
	}

	if arity := evaluator.PrimitiveArity(head.Name); arity >= 0 {
		if len(operands) != arity {
			v.report(diagnostics.EArity, expr, path,
				fmt.Sprintf("%s expects %d argument%s, got %d", head.Name, arity, plural(arity), len(operands)), "")
		}
		v.walkAll(operands, at, sc)
		return
	}

	if !evaluator.IsSpecialForm(head.Name) {
		v.walk(head, diagnostics.ChildPath(path, 0), sc)
		v.walkAll(operands, at, sc)
		return
	}

	switch head.Name {
	case "quote":
		if len(operands) != 1 {
			v.report(diagnostics.EArity, expr, path,
				fmt.Sprintf("quote expects 1 argument, got %d", len(operands)), "")
		}
	case "progn":
		v.walkAll(operands, at, sc)
	case "cond":
		for i, clause := range operands {
			parts, ok := evaluator.Slice(clause)
			if !ok || len(parts) != 2 {
				v.report(diagnostics.EEval, clause, at(i),
					"malformed cond clause: expected (test result)", "")
				continue
			}
			v.walk(parts[0], diagnostics.ChildPath(at(i), 0), sc)
			v.walk(parts[1], diagnostics.ChildPath(at(i), 1), sc)
		}
	case "lambda":
		v.checkLambda(cell, operands, path, at, sc)
	}
}

func (v *validator) walkAll(forms []evaluator.Value, at func(int) string, sc *scope) {
	for i, f := range forms {
		v.walk(f, at(i), sc)
	}
}

func (v *validator) checkLambda(cell *evaluator.Pair, operands []evaluator.Value, path string, at func(int) string, sc *scope) {
	if len(operands) == 0 {
		v.report(diagnostics.ELambda, cell, path, "lambda requires a parameter list", "write (lambda (x) body)")
		return
	}
	if msg := evaluator.CheckParams(operands[0]); msg != "" {
		v.report(diagnostics.ELambda, cell, at(0), msg, "")
		return
	}
	if len(operands) < 2 {
		v.report(diagnostics.ELambda, cell, path, "lambda requires at least one body form", "")
		return
	}

	body := newScope(sc)
	params, _ := evaluator.Slice(operands[0])
	for _, p := range params {
		body.add(p.(evaluator.Symbol).Name)
	}
	for i, f := range operands[1:] {
		v.walk(f, at(i+1), body)
	}
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
