package evaluator

import (
	"github.com/thomasrohde/pairlisp/pkg/diagnostics"
)

// primitiveKind identifies a primitive call. Operands of a primitive call are
// evaluated before the primitive is applied.
type primitiveKind int

const (
	primAtom primitiveKind = iota + 1
	primEq
	primCar
	primCdr
	primCons
	primFunctionp
)

var primitives = map[string]primitiveKind{
	"atom":      primAtom,
	"eq":        primEq,
	"car":       primCar,
	"cdr":       primCdr,
	"cons":      primCons,
	"functionp": primFunctionp,
}

// PrimitiveNames lists the recognized primitive-call names.
func PrimitiveNames() []string {
	return []string{"atom", "eq", "car", "cdr", "cons", "functionp"}
}

// PrimitiveArity returns the operand count of a primitive, or -1 if name is not one.
func PrimitiveArity(name string) int {
	p, ok := primitives[name]
	if !ok {
		return -1
	}
	return p.arity()
}

func (p primitiveKind) String() string {
	switch p {
	case primAtom:
		return "atom"
	case primEq:
		return "eq"
	case primCar:
		return "car"
	case primCdr:
		return "cdr"
	case primCons:
		return "cons"
	case primFunctionp:
		return "functionp"
	}
	return "?"
}

func (p primitiveKind) arity() int {
	switch p {
	case primEq, primCons:
		return 2
	default:
		return 1
	}
}

func (ev *evaluator) applyPrimitive(p primitiveKind, call *Pair, args []Value) (Value, error) {
	switch p {
	case primAtom:
		return NewBool(IsAtom(args[0])), nil
	case primEq:
		return NewBool(Eq(args[0], args[1])), nil
	case primCons:
		return Cons(args[0], args[1]), nil
	case primFunctionp:
		_, ok := args[0].(*Closure)
		return NewBool(ok), nil
	case primCar, primCdr:
		switch cell := args[0].(type) {
		case *Pair:
			if p == primCar {
				return cell.head, nil
			}
			return cell.tail, nil
		case Nil:
			return Nil{}, nil
		}
		return nil, ev.fail(diagnostics.EType, call, "%s: %s is not a list", p, args[0])
	}
	return nil, ev.fail(diagnostics.EEval, call, "cannot evaluate: unknown primitive")
}
